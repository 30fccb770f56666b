package kvstore

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the shared medium with Redis so instances in separate
// processes converge. Values are plain strings under a common key prefix;
// change events are published on a single pub/sub channel.
//
// Pub/sub delivery in Redis is fire-and-forget: a subscriber that is down or
// lagging misses events. That matches the Store contract (best-effort
// notification) and is why consumers also re-read on their own triggers.
type RedisStore struct {
	rdb     *redis.Client
	origin  string
	prefix  string
	channel string
	log     *slog.Logger
}

type RedisStoreConfig struct {
	// Origin identifies this instance in published events. Required.
	Origin string

	// Prefix namespaces keys, default "catalog:state:".
	Prefix string

	// Channel carries change events, default "catalog:state:events".
	Channel string
}

func NewRedisStore(rdb *redis.Client, cfg RedisStoreConfig, log *slog.Logger) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = "catalog:state:"
	}
	if cfg.Channel == "" {
		cfg.Channel = "catalog:state:events"
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisStore{
		rdb:     rdb,
		origin:  cfg.Origin,
		prefix:  cfg.Prefix,
		channel: cfg.Channel,
		log:     log,
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, s.prefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.rdb.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return err
	}
	s.publish(ctx, Event{Key: key, Value: value, Origin: s.origin})
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	n, err := s.rdb.Del(ctx, s.prefix+key).Result()
	if err != nil {
		return err
	}
	if n > 0 {
		s.publish(ctx, Event{Key: key, Deleted: true, Origin: s.origin})
	}
	return nil
}

func (s *RedisStore) publish(ctx context.Context, e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		s.log.Warn("kvstore: event marshal failed", "key", e.Key, "err", err)
		return
	}
	// Notification is best-effort; the write itself already succeeded.
	if err := s.rdb.Publish(ctx, s.channel, payload).Err(); err != nil {
		s.log.Warn("kvstore: event publish failed", "key", e.Key, "err", err)
	}
}

func (s *RedisStore) Subscribe(ctx context.Context, fn func(Event)) (func(), error) {
	ps := s.rdb.Subscribe(ctx, s.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	ch := ps.Channel()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					s.log.Warn("kvstore: malformed event", "err", err)
					continue
				}
				if e.Origin == s.origin {
					continue
				}
				fn(e)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		_ = ps.Close()
	}, nil
}
