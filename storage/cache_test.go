package storage

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"kanban-api/domain"
)

type countingBackend struct {
	board    domain.Board
	fetches  int
	replaces int
}

func (b *countingBackend) FetchBoard(ctx context.Context) (domain.Board, error) {
	b.fetches++
	return b.board, nil
}

func (b *countingBackend) ReplaceBoard(ctx context.Context, columns []domain.ColumnWrite, cards []domain.CardWrite) error {
	b.replaces++
	return nil
}

func testBoard() domain.Board {
	return domain.Board{
		Columns: []domain.Column{
			{ID: "col-1", Title: "Todo", CardIDs: []string{"card-1"}},
		},
		Cards: map[string]domain.Card{
			"card-1": {ID: "card-1", Title: "A", Details: "B"},
		},
	}
}

func newTestCache(t *testing.T) (*Cache, *countingBackend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	base := &countingBackend{board: testBoard()}
	return NewCache(base, client, time.Minute), base, mr
}

func TestCacheServesRepeatFetches(t *testing.T) {
	cache, base, _ := newTestCache(t)
	ctx := context.Background()

	first, err := cache.FetchBoard(ctx)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := cache.FetchBoard(ctx)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	if base.fetches != 1 {
		t.Errorf("backend fetches = %d, want 1", base.fetches)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached board differs:\n%+v\n%+v", first, second)
	}
	if !reflect.DeepEqual(second, testBoard()) {
		t.Errorf("cached board = %+v", second)
	}
}

func TestCacheEvictsOnReplace(t *testing.T) {
	cache, base, _ := newTestCache(t)
	ctx := context.Background()

	if _, err := cache.FetchBoard(ctx); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := cache.ReplaceBoard(ctx, nil, nil); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if _, err := cache.FetchBoard(ctx); err != nil {
		t.Fatalf("fetch after replace: %v", err)
	}

	if base.replaces != 1 {
		t.Errorf("backend replaces = %d, want 1", base.replaces)
	}
	if base.fetches != 2 {
		t.Errorf("backend fetches = %d, want 2 (cache must be evicted by replace)", base.fetches)
	}
}

func TestCacheExpiry(t *testing.T) {
	cache, base, mr := newTestCache(t)
	ctx := context.Background()

	if _, err := cache.FetchBoard(ctx); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := cache.FetchBoard(ctx); err != nil {
		t.Fatalf("fetch after expiry: %v", err)
	}

	if base.fetches != 2 {
		t.Errorf("backend fetches = %d, want 2", base.fetches)
	}
}

func TestCacheFallsBackWhenRedisDown(t *testing.T) {
	cache, base, mr := newTestCache(t)
	ctx := context.Background()
	mr.Close()

	board, err := cache.FetchBoard(ctx)
	if err != nil {
		t.Fatalf("fetch with redis down: %v", err)
	}
	if !reflect.DeepEqual(board, testBoard()) {
		t.Errorf("board = %+v", board)
	}
	if base.fetches != 1 {
		t.Errorf("backend fetches = %d, want 1", base.fetches)
	}
}

func TestCacheIgnoresCorruptEntry(t *testing.T) {
	cache, base, mr := newTestCache(t)
	ctx := context.Background()

	mr.Set(boardCacheKey(), "not json")
	board, err := cache.FetchBoard(ctx)
	if err != nil {
		t.Fatalf("fetch with corrupt cache: %v", err)
	}
	if !reflect.DeepEqual(board, testBoard()) {
		t.Errorf("board = %+v", board)
	}
	if base.fetches != 1 {
		t.Errorf("backend fetches = %d, want 1", base.fetches)
	}
}

func TestCacheZeroTTLSkipsStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	base := &countingBackend{board: testBoard()}
	cache := NewCache(base, client, 0)
	ctx := context.Background()

	if _, err := cache.FetchBoard(ctx); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if _, err := cache.FetchBoard(ctx); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if base.fetches != 2 {
		t.Errorf("backend fetches = %d, want 2 (ttl 0 disables caching)", base.fetches)
	}
}
