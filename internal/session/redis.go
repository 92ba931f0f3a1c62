package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gridlens/outage-insight/internal/domain"
)

const (
	sessionKeyPrefix = "oi:session:"
	historyKeyPrefix = "oi:history:"
)

// RedisStore persists sessions in redis with a TTL, for deployments
// where tutorial progress should survive process restarts.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redis at url and verifies the connection.
func NewRedisStore(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) GetOrCreate(ctx context.Context, key string) (*domain.Session, bool, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+key).Bytes()
	if err == nil {
		var sess domain.Session
		if err := json.Unmarshal(raw, &sess); err != nil {
			return nil, false, fmt.Errorf("corrupt session %s: %w", key, err)
		}
		return &sess, false, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, false, fmt.Errorf("failed to load session: %w", err)
	}

	now := time.Now()
	sess := &domain.Session{
		Key:       key,
		Stage:     domain.StageIntro,
		Zips:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Save(ctx, sess); err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

func (s *RedisStore) Save(ctx context.Context, sess *domain.Session) error {
	sess.UpdatedAt = time.Now()
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+sess.Key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, key string) ([]domain.Message, error) {
	items, err := s.client.LRange(ctx, historyKeyPrefix+key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	messages := make([]domain.Message, 0, len(items))
	for _, item := range items {
		var msg domain.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("corrupt history entry for %s: %w", key, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *RedisStore) Append(ctx context.Context, key string, msg domain.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	historyKey := historyKeyPrefix + key
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, historyKey, raw)
	pipe.Expire(ctx, historyKey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// Close releases the redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
