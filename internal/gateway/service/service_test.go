package service_test

import (
	"context"
	"testing"
	"time"

	"codearena/internal/common/cache"
	"codearena/internal/gateway/service"
	pkgerrors "codearena/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

func TestAuthenticateRoundTrip(t *testing.T) {
	auth := service.NewAuthService("secret", "arena")
	token, err := auth.IssueToken("alice", "red", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	identity, err := auth.Authenticate(token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity.UserID != "alice" || identity.TeamName != "red" {
		t.Fatalf("unexpected identity %+v", identity)
	}
}

func TestAuthenticateRejects(t *testing.T) {
	auth := service.NewAuthService("secret", "arena")
	otherIssuer, _ := service.NewAuthService("secret", "elsewhere").IssueToken("alice", "", time.Minute)
	otherSecret, _ := service.NewAuthService("other", "arena").IssueToken("alice", "", time.Minute)
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "arena",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte("secret"))
	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer: "arena",
	}).SignedString([]byte("secret"))

	tests := []struct {
		name  string
		token string
		code  pkgerrors.ErrorCode
	}{
		{name: "empty", token: "", code: pkgerrors.TokenInvalid},
		{name: "garbage", token: "abc.def.ghi", code: pkgerrors.TokenInvalid},
		{name: "issuer", token: otherIssuer, code: pkgerrors.TokenInvalid},
		{name: "secret", token: otherSecret, code: pkgerrors.TokenInvalid},
		{name: "expired", token: expired, code: pkgerrors.TokenExpired},
		{name: "subject", token: noSubject, code: pkgerrors.TokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Authenticate(tt.token)
			if pkgerrors.GetCode(err) != tt.code {
				t.Fatalf("expected %v, got %v", tt.code, err)
			}
		})
	}
}

func TestIssueTokenRequiresSecret(t *testing.T) {
	if _, err := service.NewAuthService("", "").IssueToken("alice", "", time.Minute); pkgerrors.GetCode(err) != pkgerrors.ServiceUnavailable {
		t.Fatalf("expected ServiceUnavailable, got %v", err)
	}
}

func newCounters(t *testing.T) (*miniredis.Miniredis, *cache.RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	return mr, c
}

func TestAdmitSubmissionWindow(t *testing.T) {
	mr, c := newCounters(t)
	limiter := service.NewRateLimitService(c, time.Minute, time.Second)
	ctx := context.Background()
	who := service.Submitter{Route: "jobs.submit", ClientIP: "10.0.0.1"}
	quota := service.SubmitQuota{IPMax: 3}

	for i := 0; i < 3; i++ {
		if err := limiter.AdmitSubmission(ctx, who, quota); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	err := limiter.AdmitSubmission(ctx, who, quota)
	appErr := pkgerrors.GetError(err)
	if appErr == nil || appErr.Code != pkgerrors.TooManyRequests {
		t.Fatalf("expected TooManyRequests, got %v", err)
	}
	if appErr.Details["scope"] != service.ScopeIP || appErr.Details["retry_after"] != 60 {
		t.Fatalf("unexpected details %v", appErr.Details)
	}
	if ttl := mr.TTL(service.RateKey(service.ScopeIP, "10.0.0.1", "jobs.submit")); ttl != time.Minute {
		t.Fatalf("unexpected window ttl %s", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := limiter.AdmitSubmission(ctx, who, quota); err != nil {
		t.Fatalf("expected a fresh window, got %v", err)
	}
}

func TestAdmitSubmissionScopes(t *testing.T) {
	_, c := newCounters(t)
	limiter := service.NewRateLimitService(c, time.Minute, time.Second)
	ctx := context.Background()
	quota := service.SubmitQuota{IPMax: 10, UserMax: 1, Window: 30 * time.Second}

	alice := service.Submitter{Route: "jobs.submit", ClientIP: "10.0.0.1", UserID: "alice"}
	if err := limiter.AdmitSubmission(ctx, alice, quota); err != nil {
		t.Fatalf("first submission: %v", err)
	}
	err := limiter.AdmitSubmission(ctx, alice, quota)
	appErr := pkgerrors.GetError(err)
	if appErr == nil || appErr.Code != pkgerrors.TooManyRequests || appErr.Details["scope"] != service.ScopeUser {
		t.Fatalf("expected user scope rejection, got %v", err)
	}
	if appErr.Details["retry_after"] != 30 {
		t.Fatalf("retry_after should follow the quota window, got %v", appErr.Details["retry_after"])
	}

	// Same address, different user, and an anonymous caller are counted separately.
	bob := service.Submitter{Route: "jobs.submit", ClientIP: "10.0.0.1", UserID: "bob"}
	anonymous := service.Submitter{Route: "jobs.submit", ClientIP: "10.0.0.1"}
	for _, who := range []service.Submitter{bob, anonymous, anonymous} {
		if err := limiter.AdmitSubmission(ctx, who, quota); err != nil {
			t.Fatalf("unexpected rejection of %+v: %v", who, err)
		}
	}
}

func TestAdmitSubmissionReopensWindowWithoutExpiry(t *testing.T) {
	mr, c := newCounters(t)
	key := service.RateKey(service.ScopeIP, "10.0.0.2", "jobs.submit")
	if err := mr.Set(key, "5"); err != nil {
		t.Fatalf("seed counter: %v", err)
	}
	limiter := service.NewRateLimitService(c, time.Minute, time.Second)
	err := limiter.AdmitSubmission(context.Background(), service.Submitter{Route: "jobs.submit", ClientIP: "10.0.0.2"}, service.SubmitQuota{IPMax: 3})
	if pkgerrors.GetCode(err) != pkgerrors.TooManyRequests {
		t.Fatalf("expected TooManyRequests, got %v", err)
	}
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Fatalf("expected the window to be reopened, ttl %s", ttl)
	}
}

func TestAdmitSubmissionCacheUnavailable(t *testing.T) {
	limiter := service.NewRateLimitService(nil, time.Second, time.Second)
	err := limiter.AdmitSubmission(context.Background(), service.Submitter{ClientIP: "10.0.0.1"}, service.SubmitQuota{IPMax: 1})
	if pkgerrors.GetCode(err) != pkgerrors.ServiceUnavailable {
		t.Fatalf("expected ServiceUnavailable, got %v", err)
	}
}
