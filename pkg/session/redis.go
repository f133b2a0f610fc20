package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/campuskit/registrar/pkg/tenant"
)

const redisKeyPrefix = "registrar:session:"

// RedisStore is a Redis-backed session cache for multi-replica
// deployments. Expiry is delegated to Redis key TTLs, so Sweep is a
// no-op here.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(sessionID string) string {
	return redisKeyPrefix + sessionID
}

func (s *RedisStore) save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(sess.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *RedisStore) load(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.client.Get(ctx, redisKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context, principalID string) (*Session, error) {
	now := time.Now()
	sess := &Session{
		ID:           uuid.NewString(),
		PrincipalID:  principalID,
		Contexts:     make(map[string]tenant.Context),
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get implements Store. Reading refreshes both the last-activity
// field and the Redis TTL.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.LastActivity = time.Now()
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// SetContext implements Store.
func (s *RedisStore) SetContext(ctx context.Context, sessionID string, tc tenant.Context) error {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Contexts == nil {
		sess.Contexts = make(map[string]tenant.Context)
	}
	sess.Contexts[tc.InstitutionID] = tc
	sess.CurrentInstitutionID = tc.InstitutionID
	sess.LastActivity = time.Now()
	return s.save(ctx, sess)
}

// SwitchContext implements Store. The session document is replaced in
// a single SET, so readers see either the old or the new context set,
// never a mixture.
func (s *RedisStore) SwitchContext(ctx context.Context, sessionID string, tc tenant.Context) error {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.Contexts = map[string]tenant.Context{tc.InstitutionID: tc}
	sess.CurrentInstitutionID = tc.InstitutionID
	sess.LastActivity = time.Now()
	return s.save(ctx, sess)
}

// ClearContexts implements Store.
func (s *RedisStore) ClearContexts(ctx context.Context, sessionID string) error {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.Contexts = make(map[string]tenant.Context)
	sess.CurrentInstitutionID = ""
	sess.LastActivity = time.Now()
	return s.save(ctx, sess)
}

// Destroy implements Store.
func (s *RedisStore) Destroy(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, redisKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Sweep implements Store. Redis expires keys on its own.
func (s *RedisStore) Sweep(context.Context) (int, error) {
	return 0, nil
}

// Len implements Store.
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan sessions: %w", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}
