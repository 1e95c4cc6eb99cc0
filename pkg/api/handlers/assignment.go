package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/leadflow/pkg/api/errors"
	apimw "github.com/jordanlanch/leadflow/pkg/api/middleware"
	"github.com/jordanlanch/leadflow/pkg/assignment"
	"github.com/jordanlanch/leadflow/pkg/metrics"
	"github.com/jordanlanch/leadflow/pkg/models"
)

// AssignmentHandler handles the lead assignment workflow endpoints
type AssignmentHandler struct {
	assignments *assignment.Service
	metrics     *metrics.Metrics
	validator   *validator.Validate
}

// NewAssignmentHandler creates a new assignment handler
func NewAssignmentHandler(assignmentService *assignment.Service, m *metrics.Metrics) *AssignmentHandler {
	return &AssignmentHandler{
		assignments: assignmentService,
		metrics:     m,
		validator:   validator.New(),
	}
}

// List godoc
// @Summary List assignments visible to the caller
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param priority query string false "Filter by priority"
// @Param isActive query bool false "Filter by active flag"
// @Success 200 {object} map[string]any
// @Router /assignments [get]
func (h *AssignmentHandler) List(c echo.Context) error {
	actor, ok := apimw.ActorFrom(c)
	if !ok {
		return errors.UnauthorizedError(c, "missing actor")
	}

	filter := assignment.ListFilter{
		Status:   models.AssignmentStatus(c.QueryParam("status")),
		Priority: models.AssignmentPriority(c.QueryParam("priority")),
	}
	if raw := c.QueryParam("isActive"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid_request",
				Message: "isActive must be true or false",
			})
		}
		filter.IsActive = &active
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, err := h.assignments.List(ctx, actor, filter)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"assignments": list, "total": len(list)})
}

// Stats godoc
// @Summary Aggregate counts over the caller's visible assignments
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} assignment.Stats
// @Router /assignments/stats [get]
func (h *AssignmentHandler) Stats(c echo.Context) error {
	actor, ok := apimw.ActorFrom(c)
	if !ok {
		return errors.UnauthorizedError(c, "missing actor")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	stats, err := h.assignments.ComputeStats(ctx, actor)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// Get godoc
// @Summary Get an assignment with its full history
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} models.ErrorResponse
// @Router /assignments/{id} [get]
func (h *AssignmentHandler) Get(c echo.Context) error {
	actor, ok := apimw.ActorFrom(c)
	if !ok {
		return errors.UnauthorizedError(c, "missing actor")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, history, err := h.assignments.GetWithHistory(ctx, actor, c.Param("id"))
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"assignment": a, "history": history})
}

// Create godoc
// @Summary Assign a lead to an employee
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body assignment.CreateRequest true "Assignment data"
// @Success 201 {object} models.Assignment
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /assignments [post]
func (h *AssignmentHandler) Create(c echo.Context) error {
	actor, ok := apimw.ActorFrom(c)
	if !ok {
		return errors.UnauthorizedError(c, "missing actor")
	}

	var req assignment.CreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	a, err := h.assignments.Create(ctx, actor, req)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordAssignmentCreated(string(a.Priority))
	}
	return c.JSON(http.StatusCreated, a)
}

// Update godoc
// @Summary Update an assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Param request body assignment.UpdateRequest true "Fields to change"
// @Success 200 {object} models.Assignment
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /assignments/{id} [put]
func (h *AssignmentHandler) Update(c echo.Context) error {
	actor, ok := apimw.ActorFrom(c)
	if !ok {
		return errors.UnauthorizedError(c, "missing actor")
	}

	var req assignment.UpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	a, closed, err := h.assignments.Update(ctx, actor, c.Param("id"), req)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	if h.metrics != nil && closed {
		h.metrics.RecordAssignmentClosed(string(a.Status))
	}
	return c.JSON(http.StatusOK, a)
}

// Delete godoc
// @Summary Delete an assignment and its history
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 200 {object} map[string]any
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /assignments/{id} [delete]
func (h *AssignmentHandler) Delete(c echo.Context) error {
	actor, ok := apimw.ActorFrom(c)
	if !ok {
		return errors.UnauthorizedError(c, "missing actor")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id := c.Param("id")
	if err := h.assignments.Delete(ctx, actor, id); err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"message": "Assignment deleted", "id": id})
}
