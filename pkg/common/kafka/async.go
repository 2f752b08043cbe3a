package kafka

import (
	"context"
	"sync"
	"time"
)

// Async publishes off the request path. Each event gets its own timeout and
// Close waits for in-flight sends before closing the producer.
type Async struct {
	producer *Producer
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewAsync(producer *Producer, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Async{producer: producer, timeout: timeout}
}

// PublishEvent never blocks on the broker; failures are logged by Producer.
func (a *Async) PublishEvent(_ context.Context, eventType, partitionKey string, data map[string]interface{}) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		_ = a.producer.PublishEvent(ctx, eventType, partitionKey, data)
	}()
	return nil
}

func (a *Async) Close() error {
	a.wg.Wait()
	return a.producer.Close()
}
