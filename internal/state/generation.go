package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// GenerationTracker hands out monotonically increasing tokens per view. A
// selection takes a token when it starts and checks it is still the newest
// before publishing its result; an older cycle finishing late is discarded.
type GenerationTracker interface {
	Next(ctx context.Context, view string) (uint64, error)
	IsCurrent(ctx context.Context, view string, generation uint64) (bool, error)
}

type memoryGenerationTracker struct {
	mutex       sync.Mutex
	generations map[string]uint64
}

// NewMemoryGenerationTracker keeps generations in process memory.
func NewMemoryGenerationTracker() GenerationTracker {
	return &memoryGenerationTracker{generations: make(map[string]uint64)}
}

func (t *memoryGenerationTracker) Next(_ context.Context, view string) (uint64, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.generations[view]++
	return t.generations[view], nil
}

func (t *memoryGenerationTracker) IsCurrent(_ context.Context, view string, generation uint64) (bool, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.generations[view] == generation, nil
}

type redisGenerationTracker struct {
	redisClient *redis.Client
	keyPrefix   string
	ttl         time.Duration
}

// NewRedisGenerationTracker shares generations between server instances.
// Idle views expire after ttl.
func NewRedisGenerationTracker(redisClient *redis.Client, ttl time.Duration) GenerationTracker {
	return &redisGenerationTracker{
		redisClient: redisClient,
		keyPrefix:   "storefront:generation:",
		ttl:         ttl,
	}
}

func (t *redisGenerationTracker) Next(ctx context.Context, view string) (uint64, error) {
	key := t.keyPrefix + view

	pipe := t.redisClient.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to advance generation for view %s: %w", view, err)
	}

	return uint64(incr.Val()), nil
}

func (t *redisGenerationTracker) IsCurrent(ctx context.Context, view string, generation uint64) (bool, error) {
	val, err := t.redisClient.Get(ctx, t.keyPrefix+view).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Expired or never issued: nothing newer can exist.
			return true, nil
		}
		return false, fmt.Errorf("failed to read generation for view %s: %w", view, err)
	}

	current, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return false, fmt.Errorf("failed to parse generation %q for view %s: %w", val, view, err)
	}

	return current == generation, nil
}
