package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amanullahtanweer/deepgram-relay/internal/config"
)

// SessionStore persists session transcripts and an active-session counter in
// Redis. A nil *SessionStore is valid and turns every operation into a no-op,
// so callers never have to check whether persistence is enabled.
type SessionStore struct {
	rc        *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewSessionStore creates the store, or returns nil when Redis is disabled.
func NewSessionStore(cfg config.RedisConfig) *SessionStore {
	if !cfg.Enabled {
		return nil
	}

	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &SessionStore{
		rc:        rc,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.TTL(),
	}
}

// Ping verifies the Redis connection.
func (s *SessionStore) Ping(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.rc.Ping(ctx).Err()
}

// SessionStarted increments the active-session counter.
func (s *SessionStore) SessionStarted(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.rc.Incr(ctx, s.activeKey()).Err()
}

// SessionEnded decrements the active-session counter.
func (s *SessionStore) SessionEnded(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.rc.Decr(ctx, s.activeKey()).Err()
}

// SaveTranscript stores the final transcript for a session with the
// configured TTL. Empty transcripts are not stored.
func (s *SessionStore) SaveTranscript(ctx context.Context, sessionID, text string) error {
	if s == nil || text == "" {
		return nil
	}
	return s.rc.Set(ctx, s.transcriptKey(sessionID), text, s.ttl).Err()
}

// Close releases the Redis connection.
func (s *SessionStore) Close() error {
	if s == nil {
		return nil
	}
	return s.rc.Close()
}

func (s *SessionStore) activeKey() string {
	return fmt.Sprintf("%s:sessions:active", s.keyPrefix)
}

func (s *SessionStore) transcriptKey(sessionID string) string {
	return fmt.Sprintf("%s:session:%s:transcript", s.keyPrefix, sessionID)
}
