package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/synaptica-ai/clinical-insights/pkg/common/logger"
)

// FeatureStore caches patient feature snapshots in Redis. A store without a
// client is a no-op so callers fall back to the database.
type FeatureStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

type snapshot struct {
	PatientID string             `json:"patient_id"`
	Features  map[string]float64 `json:"features"`
	CachedAt  time.Time          `json:"cached_at"`
}

func NewFeatureStore(client redis.Cmdable, ttl time.Duration) *FeatureStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &FeatureStore{client: client, ttl: ttl}
}

func featureKey(patientID string) string {
	return fmt.Sprintf("features:%s", patientID)
}

func (f *FeatureStore) enabled() bool {
	return f != nil && f.client != nil
}

// GetFeatures reports false on a cache miss.
func (f *FeatureStore) GetFeatures(ctx context.Context, patientID string) (map[string]float64, bool, error) {
	if !f.enabled() {
		return nil, false, nil
	}
	data, err := f.client.Get(ctx, featureKey(patientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cached features: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// Corrupt entries are dropped and treated as a miss.
		logger.Log.WithError(err).WithField("patient_id", patientID).Warn("Discarding unreadable feature snapshot")
		_ = f.client.Del(ctx, featureKey(patientID)).Err()
		return nil, false, nil
	}
	return snap.Features, true, nil
}

func (f *FeatureStore) PutFeatures(ctx context.Context, patientID string, features map[string]float64) error {
	if !f.enabled() {
		return nil
	}
	data, err := json.Marshal(snapshot{PatientID: patientID, Features: features, CachedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	logger.Log.WithFields(map[string]interface{}{
		"key":  featureKey(patientID),
		"size": len(data),
	}).Debug("Caching features")
	return f.client.Set(ctx, featureKey(patientID), data, f.ttl).Err()
}

func (f *FeatureStore) Invalidate(ctx context.Context, patientID string) error {
	if !f.enabled() {
		return nil
	}
	return f.client.Del(ctx, featureKey(patientID)).Err()
}
