package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"kanban-api/domain"
)

type backend interface {
	FetchBoard(ctx context.Context) (domain.Board, error)
	ReplaceBoard(ctx context.Context, columns []domain.ColumnWrite, cards []domain.CardWrite) error
}

// Cache wraps a Storage instance with a Redis read-through cache for board
// fetches. Any Redis failure falls back to the backing storage.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) FetchBoard(ctx context.Context) (domain.Board, error) {
	if board, ok := c.loadFromCache(ctx); ok {
		return board, nil
	}

	board, err := c.base.FetchBoard(ctx)
	if err != nil {
		return domain.Board{}, err
	}

	c.store(ctx, board)
	return board, nil
}

// ReplaceBoard writes through to the backing storage and evicts the cached
// board before returning, so a subsequent fetch observes the replacement.
func (c *Cache) ReplaceBoard(ctx context.Context, columns []domain.ColumnWrite, cards []domain.CardWrite) error {
	if err := c.base.ReplaceBoard(ctx, columns, cards); err != nil {
		return err
	}
	c.evict(ctx)
	return nil
}

func (c *Cache) loadFromCache(ctx context.Context) (domain.Board, bool) {
	if c.redis == nil {
		return domain.Board{}, false
	}
	data, err := c.redis.Get(ctx, boardCacheKey()).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, boardCacheKey()).Err()
		}
		return domain.Board{}, false
	}
	var board domain.Board
	if err := sonic.Unmarshal(data, &board); err != nil {
		_ = c.redis.Del(ctx, boardCacheKey()).Err()
		return domain.Board{}, false
	}
	return board, true
}

func (c *Cache) store(ctx context.Context, board domain.Board) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(board)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, boardCacheKey(), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, boardCacheKey()).Result()
}

func boardCacheKey() string {
	return "board:" + DefaultBoardID
}
