package redisstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Store keeps operational counters in redis. Increment failures are logged and
// dropped; metrics must never fail a turn.
type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{rdb: rdb}
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) incr(ctx context.Context, key string) {
	if err := s.rdb.Incr(ctx, key).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("metric incr failed")
	}
}

func (s *Store) IncrToolCall(ctx context.Context, tool string, success bool) {
	s.incr(ctx, fmt.Sprintf("metrics:tool_calls:%s:%t", tool, success))
}

func (s *Store) IncrLLMRequest(ctx context.Context, backend, model string) {
	s.incr(ctx, fmt.Sprintf("metrics:llm_requests:%s:%s", backend, model))
}

func (s *Store) IncrWebhook(ctx context.Context, channel, status string) {
	s.incr(ctx, fmt.Sprintf("metrics:webhook_requests:%s:%s", channel, status))
}

func (s *Store) IncrSpeechTask(ctx context.Context, task string, success bool) {
	s.incr(ctx, fmt.Sprintf("metrics:speech_tasks:%s:%t", task, success))
}
