package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/leadflow/pkg/api/errors"
	apimw "github.com/jordanlanch/leadflow/pkg/api/middleware"
	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/leads"
	"github.com/jordanlanch/leadflow/pkg/metrics"
	"github.com/jordanlanch/leadflow/pkg/models"
)

// LeadHandler handles lead intake endpoints
type LeadHandler struct {
	leads   *leads.Service
	metrics *metrics.Metrics
}

// NewLeadHandler creates a new lead handler
func NewLeadHandler(leadService *leads.Service, m *metrics.Metrics) *LeadHandler {
	return &LeadHandler{leads: leadService, metrics: m}
}

// List godoc
// @Summary List all leads
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Router /leads [get]
func (h *LeadHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, total, err := h.leads.List(ctx)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"total": total, "leads": list})
}

// Get godoc
// @Summary Get a lead by id
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Success 200 {object} models.Lead
// @Failure 404 {object} models.ErrorResponse
// @Router /leads/{id} [get]
func (h *LeadHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	l, err := h.leads.Get(ctx, c.Param("id"))
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, l)
}

// Create godoc
// @Summary Create a lead with optional KYC documents
// @Tags Leads
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Success 201 {object} models.Lead
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /leads [post]
func (h *LeadHandler) Create(c echo.Context) error {
	var req leads.CreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	files, closeFiles, err := h.leadAttachments(c)
	if err != nil {
		return errors.ValidationError(c, err)
	}
	defer closeFiles()

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	l, err := h.leads.Create(ctx, req, files)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordLeadCreated("form")
	}
	return c.JSON(http.StatusCreated, l)
}

// Update godoc
// @Summary Update a lead
// @Tags Leads
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Success 200 {object} models.Lead
// @Failure 404 {object} models.ErrorResponse
// @Router /leads/{id} [put]
func (h *LeadHandler) Update(c echo.Context) error {
	var req leads.UpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	files, closeFiles, err := h.leadAttachments(c)
	if err != nil {
		return errors.ValidationError(c, err)
	}
	defer closeFiles()

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	l, err := h.leads.Update(ctx, c.Param("id"), req, files)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, l)
}

// UpdateAssignmentStatus godoc
// @Summary Patch the workflow status tag of a lead
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Success 200 {object} models.Lead
// @Failure 400 {object} models.ErrorResponse
// @Router /leads/{id}/assignment-status [patch]
func (h *LeadHandler) UpdateAssignmentStatus(c echo.Context) error {
	var body struct {
		AssignmentStatus string `json:"assignmentStatus"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	l, err := h.leads.UpdateAssignmentStatus(ctx, c.Param("id"), body.AssignmentStatus)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, l)
}

// Assigned godoc
// @Summary List the leads visible to the caller
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Router /leads/assigned [get]
func (h *LeadHandler) Assigned(c echo.Context) error {
	actor, ok := apimw.ActorFrom(c)
	if !ok {
		return errors.UnauthorizedError(c, "missing actor")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, err := h.leads.AssignedLeads(ctx, actor)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"leads": list, "total": len(list)})
}

// Delete godoc
// @Summary Delete a lead and its documents
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} models.ErrorResponse
// @Router /leads/{id} [delete]
func (h *LeadHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	id := c.Param("id")
	if err := h.leads.Delete(ctx, id); err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"message": "Lead deleted", "id": id})
}

// BulkUpload godoc
// @Summary Bulk import leads from JSON rows or an .xlsx workbook
// @Tags Leads
// @Accept json
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Success 201 {object} leads.BulkResult
// @Failure 400 {object} models.ErrorResponse
// @Router /leads/bulk-upload [post]
func (h *LeadHandler) BulkUpload(c echo.Context) error {
	rows, err := h.bulkRows(c)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	result, err := h.leads.BulkImport(ctx, rows)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	if h.metrics != nil {
		for range result.Success {
			h.metrics.RecordBulkImportRow(true)
		}
		for range result.Failed {
			h.metrics.RecordBulkImportRow(false)
		}
	}
	return c.JSON(http.StatusCreated, result)
}

// bulkRows decodes the upload payload: an .xlsx file field when the request
// is multipart, otherwise a JSON body {"leads": [...]}.
func (h *LeadHandler) bulkRows(c echo.Context) ([]leads.ImportRow, error) {
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		f, err := openFormFile(c, "file")
		if err != nil || f == nil {
			return nil, domain.NewValidationError("An .xlsx file field named 'file' is required")
		}
		defer f.close()
		return leads.ParseWorkbook(f.body)
	}

	var body struct {
		Leads []leads.ImportRow `json:"leads"`
	}
	if err := c.Bind(&body); err != nil {
		return nil, domain.NewValidationError("Invalid request body")
	}
	return body.Leads, nil
}

// leadAttachments opens the five optional document fields of a multipart
// lead request. The returned closer must be called after the service has
// consumed the streams.
func (h *LeadHandler) leadAttachments(c echo.Context) (leads.Attachments, func(), error) {
	var (
		files  leads.Attachments
		opened []*multipartFile
	)
	closeAll := func() {
		for _, f := range opened {
			f.close()
		}
	}

	slots := []struct {
		field string
		dst   **leads.Attachment
	}{
		{"aadhaarPdf", &files.AadhaarPdf},
		{"panPdf", &files.PanPdf},
		{"optionalPdf", &files.OptionalPdf},
		{"clientImage", &files.ClientImage},
		{"billDoc", &files.BillDoc},
	}
	for _, slot := range slots {
		f, err := openFormFile(c, slot.field)
		if err != nil {
			closeAll()
			return leads.Attachments{}, func() {}, err
		}
		if f == nil {
			continue
		}
		opened = append(opened, f)
		*slot.dst = &leads.Attachment{
			Filename:    f.filename,
			ContentType: f.contentType,
			Body:        f.body,
		}
	}
	return files, closeAll, nil
}
