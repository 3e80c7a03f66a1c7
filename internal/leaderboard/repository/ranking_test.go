package repository_test

import (
	"context"
	"testing"

	"codearena/internal/common/cache"
	"codearena/internal/leaderboard/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRankingOrdersByOverallTotal(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	ranking := repository.NewRanking(c, "")
	ctx := context.Background()

	for user, total := range map[string]float64{"alice": 140, "bob": 283.33, "carol": 75} {
		if err := ranking.Update(ctx, user, total); err != nil {
			t.Fatalf("update %s: %v", user, err)
		}
	}
	top, err := ranking.Top(ctx, 2)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 || top[0].UserID != "bob" || top[0].Rank != 1 || top[1].UserID != "alice" {
		t.Fatalf("unexpected top %+v", top)
	}
	if rank, _ := ranking.Rank(ctx, "carol"); rank != 3 {
		t.Fatalf("expected carol third, got %d", rank)
	}
	if rank, _ := ranking.Rank(ctx, "nobody"); rank != 0 {
		t.Fatalf("expected unranked user to report 0, got %d", rank)
	}
}
