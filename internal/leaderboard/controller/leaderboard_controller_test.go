package controller_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"codearena/internal/common/cache"
	"codearena/internal/leaderboard/controller"
	"codearena/internal/leaderboard/model"
	"codearena/internal/leaderboard/repository"
	"codearena/internal/leaderboard/service"
	pkgerrors "codearena/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type memoryEntries map[string]*model.Entry

func (m memoryEntries) Get(_ context.Context, userID string) (*model.Entry, error) {
	return m[userID], nil
}

func (m memoryEntries) Upsert(_ context.Context, entry *model.Entry) error {
	m[entry.UserID] = entry
	return nil
}

type envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	ranking := repository.NewRanking(c, "")
	entries := memoryEntries{}
	ctx := context.Background()
	for user, total := range map[string]float64{"alice": 140, "bob": 283.33} {
		entries[user] = &model.Entry{UserID: user, Round: "r2", RoundTotal: total, OverallTotal: total}
		if err := ranking.Update(ctx, user, total); err != nil {
			t.Fatalf("ranking update: %v", err)
		}
	}

	router := gin.New()
	controller.NewLeaderboardController(service.NewBoard(entries, ranking)).Register(router.Group("/api/v1"))
	return router
}

func get(router http.Handler, path string) (*httptest.ResponseRecorder, envelope) {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestLeaderboardTop(t *testing.T) {
	router := newRouter(t)
	rec, env := get(router, "/api/v1/leaderboard?limit=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var top []model.Ranked
	if err := json.Unmarshal(env.Data, &top); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(top) != 1 || top[0].UserID != "bob" || top[0].Rank != 1 {
		t.Fatalf("unexpected top %+v", top)
	}

	if rec, _ := get(router, "/api/v1/leaderboard?limit=abc"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad limit, got %d", rec.Code)
	}
}

func TestLeaderboardStanding(t *testing.T) {
	router := newRouter(t)
	rec, env := get(router, "/api/v1/leaderboard/alice")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var standing struct {
		UserID       string  `json:"userId"`
		OverallTotal float64 `json:"overallTotal"`
		Rank         int64   `json:"rank"`
	}
	if err := json.Unmarshal(env.Data, &standing); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if standing.UserID != "alice" || standing.OverallTotal != 140 || standing.Rank != 2 {
		t.Fatalf("unexpected standing %+v", standing)
	}

	rec, env = get(router, "/api/v1/leaderboard/nobody")
	if rec.Code != http.StatusNotFound || env.Code != int(pkgerrors.LeaderboardEntryNotFound) {
		t.Fatalf("expected LeaderboardEntryNotFound, got %d %d", rec.Code, env.Code)
	}
}
