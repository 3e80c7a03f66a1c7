package service

import (
	"errors"
	"fmt"
	"time"

	pkgerrors "codearena/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the caller resolved from a bearer token.
type Identity struct {
	UserID   string
	TeamName string
}

// AuthService verifies optional HS256 bearer tokens. With no secret configured every
// token is rejected, so deployments without auth must not send one.
type AuthService struct {
	jwtSecret []byte
	jwtIssuer string
	leeway    time.Duration
}

func NewAuthService(jwtSecret, jwtIssuer string) *AuthService {
	return &AuthService{
		jwtSecret: []byte(jwtSecret),
		jwtIssuer: jwtIssuer,
		leeway:    5 * time.Second,
	}
}

// Enabled reports whether a signing secret is configured.
func (s *AuthService) Enabled() bool {
	return s != nil && len(s.jwtSecret) > 0
}

type tokenClaims struct {
	Team string `json:"team,omitempty"`
	jwt.RegisteredClaims
}

// Authenticate validates raw and returns the identity carried in its subject.
func (s *AuthService) Authenticate(raw string) (Identity, error) {
	if raw == "" || !s.Enabled() {
		return Identity{}, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(s.leeway),
	}
	if s.jwtIssuer != "" {
		opts = append(opts, jwt.WithIssuer(s.jwtIssuer))
	}
	parsed, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, pkgerrors.New(pkgerrors.TokenExpired)
		}
		return Identity{}, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return Identity{}, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	return Identity{UserID: claims.Subject, TeamName: claims.Team}, nil
}

// IssueToken signs a token for userID. It is used by operators and tests to mint
// credentials; the orchestrator itself never issues tokens on a request path.
func (s *AuthService) IssueToken(userID, team string, ttl time.Duration) (string, error) {
	if !s.Enabled() {
		return "", pkgerrors.New(pkgerrors.ServiceUnavailable).WithMessage("auth secret is not configured")
	}
	if userID == "" {
		return "", pkgerrors.New(pkgerrors.InvalidParams).WithMessage("user id is required")
	}
	now := time.Now()
	claims := tokenClaims{
		Team: team,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			Issuer:   s.jwtIssuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}
