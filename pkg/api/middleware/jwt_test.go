package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/leadflow/pkg/auth"
	"github.com/jordanlanch/leadflow/pkg/cache"
	"github.com/jordanlanch/leadflow/pkg/models"
)

const testSecret = "test-secret-key"

func run(t *testing.T, mw echo.MiddlewareFunc, authHeader string) (*httptest.ResponseRecorder, models.Actor, bool) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var (
		actor models.Actor
		found bool
	)
	handler := mw(func(c echo.Context) error {
		actor, found = ActorFrom(c)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	return rec, actor, found
}

func TestJWTMiddleware(t *testing.T) {
	t.Run("admits a valid bearer token and exposes the actor", func(t *testing.T) {
		token, err := auth.GenerateJWT("user-1", "eve@example.com", models.RoleEmployee, testSecret, 1)
		require.NoError(t, err)

		rec, actor, found := run(t, JWTMiddleware(testSecret), "Bearer "+token)
		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, found)
		assert.Equal(t, "user-1", actor.ID)
		assert.Equal(t, models.RoleEmployee, actor.Role)
	})

	t.Run("rejects a missing header", func(t *testing.T) {
		rec, _, found := run(t, JWTMiddleware(testSecret), "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, found)
	})

	t.Run("rejects a malformed header", func(t *testing.T) {
		rec, _, _ := run(t, JWTMiddleware(testSecret), "Token abc")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects a token signed with another secret", func(t *testing.T) {
		token, err := auth.GenerateJWT("user-1", "eve@example.com", models.RoleEmployee, "other-secret", 1)
		require.NoError(t, err)

		rec, _, _ := run(t, JWTMiddleware(testSecret), "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects a revoked token", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		blacklist := auth.NewTokenBlacklist(&cache.Client{Redis: client})

		token, err := auth.GenerateJWT("user-1", "eve@example.com", models.RoleEmployee, testSecret, 1)
		require.NoError(t, err)
		require.NoError(t, blacklist.Add(t.Context(), token, time.Hour))

		rec, _, _ := run(t, JWTMiddlewareWithBlacklist(testSecret, blacklist), "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRoles(t *testing.T) {
	call := func(role models.Role, mw echo.MiddlewareFunc) *httptest.ResponseRecorder {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set(ContextKeyActor, models.Actor{ID: "user-1", Role: role})

		handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
		require.NoError(t, handler(c))
		return rec
	}

	mw := RequireRoles(models.RoleAdmin, models.RoleManager)

	assert.Equal(t, http.StatusOK, call(models.RoleAdmin, mw).Code)
	assert.Equal(t, http.StatusOK, call(models.RoleManager, mw).Code)
	assert.Equal(t, http.StatusForbidden, call(models.RoleEmployee, mw).Code)

	t.Run("no actor means unauthorized", func(t *testing.T) {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
		require.NoError(t, handler(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
