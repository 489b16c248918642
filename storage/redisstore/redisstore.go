// Package redisstore adapts the storage.KeyValue port onto redis, for
// deployments where a rendering gateway keeps the per-browser session
// server-side instead of in the browser's own storage. Mutation
// notifications travel over redis pub/sub, so gateway instances converge
// on session changes the same way browser tabs do.
package redisstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/bundlefront/sessionguard/storage"
)

var _ storage.KeyValue = (*Store)(nil)

const opTimeout = 2 * time.Second

// Store implements storage.KeyValue over a redis client. Keys are scoped
// with a prefix (one prefix per browser session); change notifications are
// published on "<prefix>:changes".
type Store struct {
	rc       *redis.Client
	prefix   string
	handleID string
	logger   zerolog.Logger
}

func New(rc *redis.Client, prefix string, logger zerolog.Logger) *Store {
	return &Store{
		rc:       rc,
		prefix:   prefix,
		handleID: uuid.New().String(),
		logger:   logger.With().Str("component", "redisstore").Logger(),
	}
}

// Get returns the value for key. Any redis failure is logged and reported
// as an absent key, so a broken store can only ever fail closed.
func (s *Store) Get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	value, err := s.rc.Get(ctx, s.prefix+":"+key).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Err(err).Str("key", key).Msg("redis get failed")
		}
		return "", false
	}
	return value, true
}

func (s *Store) Set(key, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := s.rc.Set(ctx, s.prefix+":"+key, value, 0).Err(); err != nil {
		s.logger.Err(err).Str("key", key).Msg("redis set failed")
		return
	}
	s.publishChange(ctx, key)
}

func (s *Store) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := s.rc.Del(ctx, s.prefix+":"+key).Err(); err != nil {
		s.logger.Err(err).Str("key", key).Msg("redis del failed")
		return
	}
	s.publishChange(ctx, key)
}

// Watch subscribes to the store's change channel. Notifications published
// by this handle are skipped, matching the memory store's semantics.
func (s *Store) Watch(onChange func(key string)) (cancel func()) {
	sub := s.rc.Subscribe(context.Background(), s.changeChannel())

	done := make(chan struct{})
	go func() {
		for {
			select {
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				sourceID, key, found := strings.Cut(msg.Payload, " ")
				if !found || sourceID == s.handleID {
					continue
				}
				onChange(key)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			if err := sub.Close(); err != nil {
				s.logger.Err(err).Msg("redis unsubscribe failed")
			}
		})
	}
}

func (s *Store) publishChange(ctx context.Context, key string) {
	if err := s.rc.Publish(ctx, s.changeChannel(), s.handleID+" "+key).Err(); err != nil {
		s.logger.Err(err).Str("key", key).Msg("redis publish failed")
	}
}

func (s *Store) changeChannel() string {
	return s.prefix + ":changes"
}
