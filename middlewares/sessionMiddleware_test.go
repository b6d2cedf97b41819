package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medequip/equipment_backend/models"
	"github.com/medequip/equipment_backend/utils"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func fixedSessions(sessions map[string]*models.Session) SessionResolver {
	return func(_ context.Context, token string) (*models.Session, bool, error) {
		if token == "broken" {
			return nil, false, errors.New("redis down")
		}
		s, ok := sessions[token]
		return s, ok, nil
	}
}

type seen struct {
	username string
	userId   int
	role     string
	tenantId int
	token    string
	cid      string
}

func newSessionRouter(resolver SessionResolver, got *seen) *gin.Engine {
	r := gin.New()
	r.Use(CorrelationId(), SessionMiddleware(resolver))
	capture := func(c *gin.Context) {
		ctx := c.Request.Context()
		got.username, _ = utils.GetUsernameFromContext(ctx)
		got.userId, _ = utils.GetUserIdFromContext(ctx)
		got.role, _ = utils.GetRoleFromContext(ctx)
		got.tenantId, _ = utils.GetTenantIdFromContext(ctx)
		got.token, _ = utils.GetTokenFromContext(ctx)
		got.cid, _ = utils.GetCorrelationIdFromContext(ctx)
		c.Status(http.StatusNoContent)
	}
	r.GET("/open", capture)
	r.GET("/private", RequireSession(), capture)
	return r
}

func TestSessionMiddleware_PopulatesContext(t *testing.T) {
	got := &seen{}
	r := newSessionRouter(fixedSessions(map[string]*models.Session{
		"tok-1": {UserId: 12, Username: "ktv.hoa", Role: models.RoleTechnician, TenantId: 3},
	}), got)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("token", "tok-1")
	req.Header.Set(CorrelationHeader, "cid-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, seen{username: "ktv.hoa", userId: 12, role: "technician", tenantId: 3, token: "tok-1", cid: "cid-123"}, *got)
	assert.Equal(t, "cid-123", w.Header().Get(CorrelationHeader))
}

func TestSessionMiddleware_Anonymous(t *testing.T) {
	got := &seen{}
	r := newSessionRouter(fixedSessions(nil), got)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/open", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, got.username)
	assert.NotEmpty(t, got.cid)
	assert.Equal(t, got.cid, w.Header().Get(CorrelationHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionMiddleware_RejectsUnknownOrFailingToken(t *testing.T) {
	r := newSessionRouter(fixedSessions(nil), &seen{})

	for _, token := range []string{"expired", "broken"} {
		req := httptest.NewRequest(http.MethodGet, "/open", nil)
		req.Header.Set("token", token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, token)
		assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
	}
}

func TestRateLimiter_WithoutRedisPassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(NewRateLimiter(func() *redis.Client { return nil }, 1, time.Minute).Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
