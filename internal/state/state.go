package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// StateManager remembers how far the audit producer got through the category
// listing so an interrupted run resumes instead of starting over.
type StateManager interface {
	GetLastListedPage(ctx context.Context) (int, error)
	SetLastListedPage(ctx context.Context, pageNumber int) error
	Reset(ctx context.Context) error
}

type redisStateManager struct {
	redisClient *redis.Client
	key         string
}

func NewRedisStateManager(redisClient *redis.Client) StateManager {
	return &redisStateManager{
		redisClient: redisClient,
		key:         "storefront:progress:category_page",
	}
}

func (s *redisStateManager) GetLastListedPage(ctx context.Context) (int, error) {
	val, err := s.redisClient.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil // No progress saved yet
		}
		return 0, fmt.Errorf("failed to get last listed category page: %w", err)
	}

	page, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("failed to parse last listed category page %q: %w", val, err)
	}

	return page, nil
}

func (s *redisStateManager) SetLastListedPage(ctx context.Context, pageNumber int) error {
	err := s.redisClient.Set(ctx, s.key, pageNumber, 0).Err() // No expiration
	if err != nil {
		return fmt.Errorf("failed to set last listed category page: %w", err)
	}
	return nil
}

func (s *redisStateManager) Reset(ctx context.Context) error {
	if err := s.redisClient.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to reset audit progress: %w", err)
	}
	return nil
}
