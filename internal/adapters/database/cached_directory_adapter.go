package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/teleconsult/internal/domain/entities"
	"github.com/zatekoja/teleconsult/internal/domain/providers"
	"github.com/zatekoja/teleconsult/internal/domain/repositories"
	"github.com/zatekoja/teleconsult/internal/infrastructure/observability"
)

const defaultDirectoryTTL = 5 * time.Minute

// CachedDirectoryAdapter wraps a DirectoryRepository with read-through caching.
// Profiles change rarely and every booking reads two of them.
type CachedDirectoryAdapter struct {
	adapter repositories.DirectoryRepository
	cache   providers.CacheProvider
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCachedDirectoryAdapter creates a new cached directory adapter
func NewCachedDirectoryAdapter(adapter repositories.DirectoryRepository, cache providers.CacheProvider, ttl time.Duration, metrics *observability.Metrics) repositories.DirectoryRepository {
	if ttl <= 0 {
		ttl = defaultDirectoryTTL
	}
	return &CachedDirectoryAdapter{
		adapter: adapter,
		cache:   cache,
		ttl:     ttl,
		metrics: metrics,
	}
}

func doctorByIDKey(id int64) string        { return fmt.Sprintf("directory:doctor:id:%d", id) }
func doctorByUserKey(userID int64) string  { return fmt.Sprintf("directory:doctor:user:%d", userID) }
func patientByIDKey(id int64) string       { return fmt.Sprintf("directory:patient:id:%d", id) }
func patientByUserKey(userID int64) string { return fmt.Sprintf("directory:patient:user:%d", userID) }

// FindDoctorByID retrieves a doctor by ID with caching
func (a *CachedDirectoryAdapter) FindDoctorByID(ctx context.Context, id int64) (*entities.Doctor, error) {
	return readThrough(ctx, a, "doctor", doctorByIDKey(id), func() (*entities.Doctor, error) {
		return a.adapter.FindDoctorByID(ctx, id)
	})
}

// FindDoctorByUserID retrieves a doctor by account with caching
func (a *CachedDirectoryAdapter) FindDoctorByUserID(ctx context.Context, userID int64) (*entities.Doctor, error) {
	return readThrough(ctx, a, "doctor", doctorByUserKey(userID), func() (*entities.Doctor, error) {
		return a.adapter.FindDoctorByUserID(ctx, userID)
	})
}

// FindPatientByID retrieves a patient by ID with caching
func (a *CachedDirectoryAdapter) FindPatientByID(ctx context.Context, id int64) (*entities.Patient, error) {
	return readThrough(ctx, a, "patient", patientByIDKey(id), func() (*entities.Patient, error) {
		return a.adapter.FindPatientByID(ctx, id)
	})
}

// FindPatientByUserID retrieves a patient by account with caching
func (a *CachedDirectoryAdapter) FindPatientByUserID(ctx context.Context, userID int64) (*entities.Patient, error) {
	return readThrough(ctx, a, "patient", patientByUserKey(userID), func() (*entities.Patient, error) {
		return a.adapter.FindPatientByUserID(ctx, userID)
	})
}

// readThrough serves key from cache or loads it and caches the result in the
// background. Lookup failures, including NOT_FOUND, are never cached.
func readThrough[T any](ctx context.Context, a *CachedDirectoryAdapter, family, key string, load func() (*T, error)) (*T, error) {
	if cached, err := a.cache.Get(ctx, key); err == nil {
		var value T
		decodeErr := json.Unmarshal(cached, &value)
		if decodeErr == nil {
			observability.RecordCacheHit(ctx, a.metrics, family)
			return &value, nil
		}
		log.Warn().Err(decodeErr).Str("key", key).Msg("failed to unmarshal cached profile")
	}
	observability.RecordCacheMiss(ctx, a.metrics, family)

	value, err := load()
	if err != nil {
		return nil, err
	}

	go func() {
		data, err := json.Marshal(value)
		if err != nil {
			return
		}
		if err := a.cache.Set(context.Background(), key, data, a.ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to cache profile")
		}
	}()

	return value, nil
}
