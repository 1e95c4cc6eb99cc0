package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/leadflow/pkg/api/errors"
	apimw "github.com/jordanlanch/leadflow/pkg/api/middleware"
	"github.com/jordanlanch/leadflow/pkg/metrics"
	"github.com/jordanlanch/leadflow/pkg/models"
	"github.com/jordanlanch/leadflow/pkg/notification"
)

// NotificationHandler handles the per-user notification endpoints
type NotificationHandler struct {
	notifications *notification.Service
	metrics       *metrics.Metrics
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notificationService *notification.Service, m *metrics.Metrics) *NotificationHandler {
	return &NotificationHandler{notifications: notificationService, metrics: m}
}

// Count godoc
// @Summary Unread notification count for the authenticated user
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]int64
// @Router /notifications/count [get]
func (h *NotificationHandler) Count(c echo.Context) error {
	actor, ok := apimw.ActorFrom(c)
	if !ok {
		return errors.UnauthorizedError(c, "missing actor")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	count, err := h.notifications.UnreadCount(ctx, actor.ID)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"count": count})
}

// List godoc
// @Summary List the authenticated user's notifications, newest first
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param isViewed query bool false "Filter by viewed state"
// @Param limit query int false "Max rows to return"
// @Success 200 {object} map[string]any
// @Router /notifications [get]
func (h *NotificationHandler) List(c echo.Context) error {
	actor, ok := apimw.ActorFrom(c)
	if !ok {
		return errors.UnauthorizedError(c, "missing actor")
	}

	var isViewed *bool
	if raw := c.QueryParam("isViewed"); raw != "" {
		viewed, err := strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid_request",
				Message: "isViewed must be true or false",
			})
		}
		isViewed = &viewed
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, err := h.notifications.List(ctx, actor.ID, isViewed, limit)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"notifications": list, "total": len(list)})
}

// MarkViewed godoc
// @Summary Mark specific notifications as viewed
// @Tags Notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object true "notificationIds to mark"
// @Success 200 {object} map[string]string
// @Failure 400 {object} models.ErrorResponse
// @Router /notifications/mark-viewed [post]
func (h *NotificationHandler) MarkViewed(c echo.Context) error {
	actor, ok := apimw.ActorFrom(c)
	if !ok {
		return errors.UnauthorizedError(c, "missing actor")
	}

	var body struct {
		NotificationIDs []string `json:"notificationIds"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.notifications.MarkViewed(ctx, actor.ID, body.NotificationIDs); err != nil {
		return errors.FromDomain(c, err)
	}
	if h.metrics != nil {
		h.metrics.RecordNotificationsViewed(len(body.NotificationIDs))
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Notifications marked as viewed"})
}

// MarkAllViewed godoc
// @Summary Mark every unviewed notification as viewed
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string
// @Router /notifications/mark-all-viewed [post]
func (h *NotificationHandler) MarkAllViewed(c echo.Context) error {
	actor, ok := apimw.ActorFrom(c)
	if !ok {
		return errors.UnauthorizedError(c, "missing actor")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.notifications.MarkAllViewed(ctx, actor.ID); err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "All notifications marked as viewed"})
}
