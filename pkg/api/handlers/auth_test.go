package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apimw "github.com/jordanlanch/leadflow/pkg/api/middleware"
	"github.com/jordanlanch/leadflow/pkg/auth"
	"github.com/jordanlanch/leadflow/pkg/cache"
	"github.com/jordanlanch/leadflow/pkg/models"
	"github.com/jordanlanch/leadflow/pkg/users"
)

const testJWTSecret = "test-secret-key"

func newAuthHandler(t *testing.T) (*AuthHandler, *users.Service) {
	db := setupTestDB(t)
	userService := users.NewService(db, nil, nil, testJWTSecret, 1)
	return NewAuthHandler(userService, nil, nil, 1), userService
}

func TestAuthRegister(t *testing.T) {
	t.Run("creates a user and returns 201", func(t *testing.T) {
		h, _ := newAuthHandler(t)

		body := `{"fullName":"Ana Admin","email":"ana@example.com","phone":"+12125551234","password":"secret123"}`
		c, rec := newJSONRequest(http.MethodPost, "/api/v1/auth/register", body, nil)

		require.NoError(t, h.Register(c))
		require.Equal(t, http.StatusCreated, rec.Code)

		var info models.UserInfo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
		assert.Equal(t, "Ana Admin", info.FullName)
		assert.Equal(t, models.RoleEmployee, info.Role)
		assert.NotEmpty(t, info.ID)
	})

	t.Run("returns 409 for a duplicate email", func(t *testing.T) {
		h, _ := newAuthHandler(t)

		body := `{"fullName":"Ana Admin","email":"ana@example.com","phone":"+12125551234","password":"secret123"}`
		c, rec := newJSONRequest(http.MethodPost, "/api/v1/auth/register", body, nil)
		require.NoError(t, h.Register(c))
		require.Equal(t, http.StatusCreated, rec.Code)

		c, rec = newJSONRequest(http.MethodPost, "/api/v1/auth/register", body, nil)
		require.NoError(t, h.Register(c))
		assert.Equal(t, http.StatusConflict, rec.Code)

		var resp models.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "conflict", resp.Error)
		assert.Equal(t, "Email already exists", resp.Message)
	})

	t.Run("returns 400 when required fields are missing", func(t *testing.T) {
		h, _ := newAuthHandler(t)

		c, rec := newJSONRequest(http.MethodPost, "/api/v1/auth/register", `{"email":"ana@example.com"}`, nil)
		require.NoError(t, h.Register(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAuthLogin(t *testing.T) {
	register := func(t *testing.T, h *AuthHandler) {
		body := `{"fullName":"Ana Admin","email":"ana@example.com","phone":"+12125551234","password":"secret123"}`
		c, rec := newJSONRequest(http.MethodPost, "/api/v1/auth/register", body, nil)
		require.NoError(t, h.Register(c))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	t.Run("returns a valid token for correct credentials", func(t *testing.T) {
		h, _ := newAuthHandler(t)
		register(t, h)

		c, rec := newJSONRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"ana@example.com","password":"secret123"}`, nil)
		require.NoError(t, h.Login(c))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp models.AuthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.Token)

		claims, err := auth.ValidateJWT(resp.Token, testJWTSecret)
		require.NoError(t, err)
		assert.Equal(t, resp.User.ID, claims.Subject)
		assert.Equal(t, models.RoleEmployee, claims.Role)
	})

	t.Run("returns 401 for a wrong password", func(t *testing.T) {
		h, _ := newAuthHandler(t)
		register(t, h)

		c, rec := newJSONRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"ana@example.com","password":"wrong-pass"}`, nil)
		require.NoError(t, h.Login(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		var resp models.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "unauthorized", resp.Error)
	})

	t.Run("returns 401 for an unknown email", func(t *testing.T) {
		h, _ := newAuthHandler(t)

		c, rec := newJSONRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"nobody@example.com","password":"secret123"}`, nil)
		require.NoError(t, h.Login(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthLogout(t *testing.T) {
	t.Run("revokes the token for its full configured lifetime", func(t *testing.T) {
		h, _ := newAuthHandler(t)
		h.jwtExpiryHours = 24

		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		h.blacklist = auth.NewTokenBlacklist(&cache.Client{Redis: client})

		token, err := auth.GenerateJWT("user-1", "ana@example.com", models.RoleEmployee, testJWTSecret, 24)
		require.NoError(t, err)

		c, rec := newJSONRequest(http.MethodPost, "/api/v1/auth/logout", "", nil)
		c.Set(apimw.ContextKeyToken, token)
		require.NoError(t, h.Logout(c))
		require.Equal(t, http.StatusOK, rec.Code)

		// The token stays valid for 24 hours, so the revocation has to
		// survive well past the first hour.
		mr.FastForward(61 * time.Minute)
		revoked, err := h.blacklist.IsBlacklisted(t.Context(), token)
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("succeeds without a blacklist configured", func(t *testing.T) {
		h, _ := newAuthHandler(t)

		c, rec := newJSONRequest(http.MethodPost, "/api/v1/auth/logout", "", nil)
		require.NoError(t, h.Logout(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAuthDashboard(t *testing.T) {
	h, _ := newAuthHandler(t)
	db := setupTestDB(t)
	admin := createTestUser(t, db, "Ana Admin", "ana@example.com", models.RoleAdmin)

	actor := actorFor(admin)
	c, rec := newJSONRequest(http.MethodGet, "/api/v1/auth/dashboard", "", &actor)
	require.NoError(t, h.Dashboard(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Message  string          `json:"message"`
		Features map[string]bool `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Welcome to CRM Dashboard", resp.Message)
	assert.True(t, resp.Features["canManageUsers"])
	assert.True(t, resp.Features["canViewReports"])
}
