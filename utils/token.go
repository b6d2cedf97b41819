package utils

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// BackendRole is the database role every proxied request runs as; the
// application role travels in app_role and is checked by the backend functions.
const BackendRole = "authenticated"

var ErrMissingIdentity = errors.New("session identity is missing")

type BackendClaims struct {
	Role     string `json:"role"`
	AppRole  string `json:"app_role"`
	TenantId int    `json:"don_vi"`
	UserId   int    `json:"user_id"`
	Username string `json:"username"`
	jwt.StandardClaims
}

// JwtSigner mints short-lived HS256 tokens the hosted backend accepts.
type JwtSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJwtSigner(secret string, ttl time.Duration) *JwtSigner {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &JwtSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// SignFromContext builds the claims from the session values the session
// middleware put into ctx.
func (s *JwtSigner) SignFromContext(ctx context.Context) (string, error) {
	userId, ok := GetUserIdFromContext(ctx)
	if !ok || userId <= 0 {
		return "", ErrMissingIdentity
	}
	username, _ := GetUsernameFromContext(ctx)
	role, _ := GetRoleFromContext(ctx)
	tenantId, _ := GetTenantIdFromContext(ctx)
	return s.Sign(userId, username, role, tenantId)
}

func (s *JwtSigner) Sign(userId int, username string, appRole string, tenantId int) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("jwt secret is empty")
	}
	now := s.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &BackendClaims{
		Role:     BackendRole,
		AppRole:  appRole,
		TenantId: tenantId,
		UserId:   userId,
		Username: username,
		StandardClaims: jwt.StandardClaims{
			Subject:   strconv.Itoa(userId),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.ttl).Unix(),
		},
	})
	return t.SignedString(s.secret)
}

func (s *JwtSigner) Validate(token string) (*BackendClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &BackendClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*BackendClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
