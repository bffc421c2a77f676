// internal/session/redis.go
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "dealerdesk/internal/common/errors"
	"dealerdesk/internal/common/logger"
	"dealerdesk/internal/leads"
	"dealerdesk/internal/models"
)

const redisKeyPrefix = "session:"

// DefaultSessionTTL is the sliding window a session survives without
// traffic before Redis drops it.
const DefaultSessionTTL = 24 * time.Hour

// RedisStore persists sessions as JSON blobs in Redis so the chat
// survives process restarts and can be served by multiple replicas.
// Mutations run under WATCH so concurrent writers retry instead of
// clobbering each other.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	log    logger.Logger
}

func NewRedisStore(client *redis.Client, ttl time.Duration, log logger.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisStore{client: client, ttl: ttl, log: log}
}

func redisKey(id string) string { return redisKeyPrefix + id }

func (s *RedisStore) GetOrCreate(ctx context.Context, id string) (*models.Session, bool, error) {
	if id == "" {
		return nil, false, apperrors.ErrInvalidInput
	}
	now := time.Now().UTC()
	fresh := &models.Session{
		ID:        id,
		Flags:     make(map[string]bool),
		CreatedAt: now,
		UpdatedAt: now,
	}
	payload, err := json.Marshal(fresh)
	if err != nil {
		return nil, false, fmt.Errorf("marshal session: %w", err)
	}

	// SetNX makes creation idempotent across replicas: exactly one
	// caller wins, everyone else reads the winner's session back.
	created, err := s.client.SetNX(ctx, redisKey(id), payload, s.ttl).Result()
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrStorageUnavailable, err.Error())
	}
	if created {
		return fresh, true, nil
	}
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Session, error) {
	return s.load(ctx, id)
}

func (s *RedisStore) AppendTurn(ctx context.Context, id string, turn models.Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	return s.update(ctx, id, func(sess *models.Session) {
		sess.Turns = append(sess.Turns, turn)
	})
}

func (s *RedisStore) MergeLead(ctx context.Context, id string, p leads.Partial) (models.Lead, bool, error) {
	var (
		lead    models.Lead
		changed bool
	)
	err := s.update(ctx, id, func(sess *models.Session) {
		changed = leads.Merge(&sess.Lead, p)
		lead = copyLead(sess.Lead)
	})
	if err != nil {
		return models.Lead{}, false, err
	}
	return lead, changed, nil
}

func (s *RedisStore) AddInterest(ctx context.Context, id, note string) error {
	return s.update(ctx, id, func(sess *models.Session) {
		leads.AppendInterest(&sess.Lead, note)
	})
}

func (s *RedisStore) SetFlag(ctx context.Context, id, flag string) error {
	return s.update(ctx, id, func(sess *models.Session) {
		if sess.Flags == nil {
			sess.Flags = make(map[string]bool)
		}
		sess.Flags[flag] = true
	})
}

func (s *RedisStore) ClearFlag(ctx context.Context, id, flag string) error {
	return s.update(ctx, id, func(sess *models.Session) {
		delete(sess.Flags, flag)
	})
}

func (s *RedisStore) HasFlag(ctx context.Context, id, flag string) (bool, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return false, err
	}
	return sess.Flags[flag], nil
}

func (s *RedisStore) History(ctx context.Context, id string, n int) ([]models.Turn, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.LastTurns(n), nil
}

func (s *RedisStore) load(ctx context.Context, id string) (*models.Session, error) {
	raw, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if err == redis.Nil {
		return nil, apperrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageUnavailable, err.Error())
	}
	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return &sess, nil
}

// update runs a read-modify-write under WATCH, retrying on conflict,
// and refreshes the sliding TTL on every successful write.
func (s *RedisStore) update(ctx context.Context, id string, mutate func(*models.Session)) error {
	key := redisKey(id)

	for attempt := 0; attempt < 5; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err == redis.Nil {
				return apperrors.ErrSessionNotFound
			}
			if err != nil {
				return err
			}
			var sess models.Session
			if err := json.Unmarshal(raw, &sess); err != nil {
				return fmt.Errorf("unmarshal session %s: %w", id, err)
			}

			mutate(&sess)
			sess.UpdatedAt = time.Now().UTC()

			payload, err := json.Marshal(&sess)
			if err != nil {
				return fmt.Errorf("marshal session: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, s.ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			s.log.Debug("session write conflict, retrying", map[string]interface{}{
				"session_id": id,
				"attempt":    attempt + 1,
			})
			continue
		}
		if apperrors.Is(err, apperrors.ErrSessionNotFound) {
			return err
		}
		if err != nil {
			return apperrors.Wrap(apperrors.ErrStorageUnavailable, err.Error())
		}
		return nil
	}
	return apperrors.Wrap(apperrors.ErrStorageUnavailable, "too many write conflicts")
}
