package kv

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store and Notifier on a Redis connection. All keys
// are namespaced under a prefix so several deployments can share a server.
type RedisStore struct {
	client   *redis.Client
	prefix   string
	senderID string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, prefix), nil
}

// NewRedisStoreWithClient wraps an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client:   client,
		prefix:   prefix,
		senderID: uuid.NewString(),
	}
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

func (s *RedisStore) channel() string { return s.prefix + "changes" }

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	s.publish(ctx, key)
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	s.publish(ctx, key)
	return nil
}

// publish is best-effort: a missed notification degrades to a stale mirror
// until the next invalidation, never to data loss.
func (s *RedisStore) publish(ctx context.Context, key string) {
	_ = s.client.Publish(ctx, s.channel(), s.senderID+" "+key).Err()
}

func (s *RedisStore) SenderID() string { return s.senderID }

// Watch subscribes to the change channel and forwards decoded Changes until
// ctx is cancelled.
func (s *RedisStore) Watch(ctx context.Context) (<-chan Change, error) {
	sub := s.client.Subscribe(ctx, s.channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", s.channel(), err)
	}

	out := make(chan Change)
	go func() {
		defer close(out)
		defer sub.Close()
		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				sender, key, found := strings.Cut(msg.Payload, " ")
				if !found {
					continue
				}
				select {
				case out <- Change{Sender: sender, Key: key}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Session returns a session-scoped view of the store: keys live under a
// separate namespace, expire after ttl, and do not publish changes (session
// state is private to one client session).
func (s *RedisStore) Session(ttl time.Duration) Store {
	return &sessionView{client: s.client, prefix: s.prefix + "session:", ttl: ttl}
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

type sessionView struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (v *sessionView) Get(ctx context.Context, key string) (string, error) {
	value, err := v.client.Get(ctx, v.prefix+key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get session %s: %w", key, err)
	}
	return value, nil
}

func (v *sessionView) Set(ctx context.Context, key, value string) error {
	if err := v.client.Set(ctx, v.prefix+key, value, v.ttl).Err(); err != nil {
		return fmt.Errorf("set session %s: %w", key, err)
	}
	return nil
}

func (v *sessionView) Delete(ctx context.Context, key string) error {
	if err := v.client.Del(ctx, v.prefix+key).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", key, err)
	}
	return nil
}
