package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codearena/internal/common/cache"
	"codearena/internal/gateway/middleware"
	"codearena/internal/gateway/service"
	pkgerrors "codearena/pkg/errors"
	"codearena/pkg/utils/contextkey"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type apiResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func performRequest(router http.Handler, path string, headers map[string]string) (*httptest.ResponseRecorder, apiResponse) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	router.ServeHTTP(rec, req)
	var resp apiResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec, resp
}

func whoamiRouter(auth *service.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.AuthMiddleware(auth))
	router.GET("/whoami", func(c *gin.Context) {
		userID, team, _ := middleware.AuthenticatedUser(c)
		ctxUser, _ := c.Request.Context().Value(contextkey.UserID).(string)
		c.JSON(http.StatusOK, gin.H{"user": userID, "team": team, "ctx": ctxUser})
	})
	return router
}

func TestAuthMiddlewareWithoutTokenPassesThrough(t *testing.T) {
	router := whoamiRouter(service.NewAuthService("", ""))
	rec, _ := performRequest(router, "/whoami", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["user"] != "" {
		t.Fatalf("expected anonymous caller, got %q", body["user"])
	}
}

func TestAuthMiddlewareSetsIdentity(t *testing.T) {
	auth := service.NewAuthService("secret", "arena")
	token, err := auth.IssueToken("alice", "red", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	router := whoamiRouter(auth)
	rec, _ := performRequest(router, "/whoami", map[string]string{"Authorization": "Bearer " + token})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["user"] != "alice" || body["team"] != "red" || body["ctx"] != "alice" {
		t.Fatalf("unexpected identity %+v", body)
	}
}

func TestAuthMiddlewareRejectsInvalidToken(t *testing.T) {
	tests := []struct {
		name string
		auth *service.AuthService
	}{
		{name: "bad signature", auth: service.NewAuthService("secret", "")},
		{name: "auth disabled", auth: service.NewAuthService("", "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := whoamiRouter(tt.auth)
			rec, resp := performRequest(router, "/whoami", map[string]string{"Authorization": "Bearer not-a-token"})
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("unexpected status: %d", rec.Code)
			}
			if resp.Code != int(pkgerrors.TokenInvalid) {
				t.Fatalf("unexpected error code: %d", resp.Code)
			}
		})
	}
}

func newRateService(t *testing.T) *service.RateLimitService {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	return service.NewRateLimitService(c, time.Minute, time.Second)
}

func TestRateLimitMiddlewarePerIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.RateLimitMiddleware(newRateService(t), "jobs", service.SubmitQuota{IPMax: 2}))
	router.GET("/limited", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		rec, _ := performRequest(router, "/limited", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("unexpected status on attempt %d: %d", i+1, rec.Code)
		}
	}
	rec, resp := performRequest(router, "/limited", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if resp.Code != int(pkgerrors.TooManyRequests) {
		t.Fatalf("unexpected error code: %d", resp.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After 60, got %q", got)
	}
}

func TestRateLimitMiddlewarePerUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if user := c.GetHeader("X-Test-User"); user != "" {
			c.Set(middleware.UserIDKey, user)
		}
		c.Next()
	})
	router.Use(middleware.RateLimitMiddleware(newRateService(t), "jobs", service.SubmitQuota{UserMax: 1}))
	router.GET("/limited", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	if rec, _ := performRequest(router, "/limited", map[string]string{"X-Test-User": "alice"}); rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if rec, _ := performRequest(router, "/limited", map[string]string{"X-Test-User": "alice"}); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected alice to be limited, got %d", rec.Code)
	}
	if rec, _ := performRequest(router, "/limited", map[string]string{"X-Test-User": "bob"}); rec.Code != http.StatusOK {
		t.Fatalf("expected bob to pass, got %d", rec.Code)
	}
	// Anonymous callers are only subject to the ip limit.
	if rec, _ := performRequest(router, "/limited", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected anonymous caller to pass, got %d", rec.Code)
	}
}

func TestRateLimitMiddlewareNilService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.RateLimitMiddleware(nil, "jobs", service.SubmitQuota{IPMax: 1}))
	router.GET("/open", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	for i := 0; i < 3; i++ {
		if rec, _ := performRequest(router, "/open", nil); rec.Code != http.StatusOK {
			t.Fatalf("unexpected status: %d", rec.Code)
		}
	}
}
