package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// New creates an HTTP client tuned for outbound downloads from artifact registries.
func New(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// ErrTooLarge is returned when a body exceeds the Download limit.
var ErrTooLarge = errors.New("response body exceeds size limit")

// Policy bounds retries. Delays double from BaseDelay up to MaxDelay.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay << attempt
	if p.MaxDelay > 0 && (d > p.MaxDelay || d <= 0) {
		return p.MaxDelay
	}
	return d
}

// Retry runs fn until it succeeds, returns an error IsRetriable rejects, or
// the attempts run out.
func Retry(ctx context.Context, policy Policy, fn func() error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = fn(); err == nil || !IsRetriable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(policy.delay(i))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return err
}

// Download GETs url with retries and returns at most maxBytes of body.
func Download(ctx context.Context, client *http.Client, url string, maxBytes int64, policy Policy) ([]byte, error) {
	var body []byte
	err := Retry(ctx, policy, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &StatusError{URL: url, Code: resp.StatusCode}
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
		if err != nil {
			return err
		}
		if int64(len(body)) > maxBytes {
			return ErrTooLarge
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// IsRetriable reports transport failures and 5xx/429 responses.
func IsRetriable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500 || statusErr.Code == http.StatusTooManyRequests
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
