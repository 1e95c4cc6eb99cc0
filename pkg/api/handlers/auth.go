package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/leadflow/pkg/api/errors"
	apimw "github.com/jordanlanch/leadflow/pkg/api/middleware"
	"github.com/jordanlanch/leadflow/pkg/auth"
	"github.com/jordanlanch/leadflow/pkg/metrics"
	"github.com/jordanlanch/leadflow/pkg/models"
	"github.com/jordanlanch/leadflow/pkg/users"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	users          *users.Service
	blacklist      *auth.TokenBlacklist
	metrics        *metrics.Metrics
	validator      *validator.Validate
	jwtExpiryHours int
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(userService *users.Service, blacklist *auth.TokenBlacklist, m *metrics.Metrics, jwtExpiryHours int) *AuthHandler {
	return &AuthHandler{
		users:          userService,
		blacklist:      blacklist,
		metrics:        m,
		validator:      validator.New(),
		jwtExpiryHours: jwtExpiryHours,
	}
}

// Register godoc
// @Summary Register a new user
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Registration data"
// @Success 201 {object} models.UserInfo
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	info, err := h.users.Register(ctx, req)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordUserRegistered()
	}
	return c.JSON(http.StatusCreated, info)
}

// Login godoc
// @Summary Authenticate and receive a JWT
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Credentials"
// @Success 200 {object} models.AuthResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	resp, err := h.users.Login(ctx, req)
	if h.metrics != nil {
		h.metrics.RecordLoginAttempt(err == nil)
	}
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout godoc
// @Summary Revoke the current token
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SuccessResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	token, _ := c.Get(apimw.ContextKeyToken).(string)
	if token == "" || h.blacklist == nil {
		return c.JSON(http.StatusOK, models.SuccessResponse{Message: "Logged out"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	// Blacklist for the full configured token lifetime so the entry
	// outlives any outstanding token issued with it.
	expiry := time.Duration(h.jwtExpiryHours) * time.Hour
	if expiry <= 0 {
		expiry = time.Hour
	}
	if err := h.blacklist.Add(ctx, token, expiry); err != nil {
		return errors.InternalError(c, err)
	}
	return c.JSON(http.StatusOK, models.SuccessResponse{Message: "Logged out"})
}

// AddUser godoc
// @Summary Create a user as an admin
// @Tags Authentication
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Success 201 {object} models.UserInfo
// @Failure 403 {object} models.ErrorResponse
// @Router /auth/add-user [post]
func (h *AuthHandler) AddUser(c echo.Context) error {
	actor, ok := apimw.ActorFrom(c)
	if !ok {
		return errors.UnauthorizedError(c, "missing actor")
	}

	var req users.CreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	if f, err := openFormFile(c, "image"); err != nil {
		return errors.ValidationError(c, err)
	} else if f != nil {
		defer f.close()
		req.Avatar = &users.Upload{Filename: f.filename, ContentType: f.contentType, Body: f.body}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	info, err := h.users.Create(ctx, actor, req)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"message": "User created successfully",
		"user":    info,
	})
}

// Dashboard godoc
// @Summary Dashboard feature flags for the caller
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Router /auth/dashboard [get]
func (h *AuthHandler) Dashboard(c echo.Context) error {
	actor, ok := apimw.ActorFrom(c)
	if !ok {
		return errors.UnauthorizedError(c, "missing actor")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message": "Welcome to CRM Dashboard",
		"user": map[string]any{
			"id":    actor.ID,
			"email": actor.Email,
			"role":  actor.Role,
		},
		"features": map[string]bool{
			"canManageUsers":   actor.Role == models.RoleAdmin,
			"canViewReports":   actor.Role == models.RoleAdmin || actor.Role == models.RoleManager,
			"canEditProfile":   actor.Role != models.RoleGuest,
			"canViewDashboard": true,
		},
	})
}
