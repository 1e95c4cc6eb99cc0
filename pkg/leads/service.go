package leads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gorm.io/gorm"

	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/logger"
	"github.com/jordanlanch/leadflow/pkg/models"
	"github.com/jordanlanch/leadflow/pkg/notification"
	"github.com/jordanlanch/leadflow/pkg/phone"
	"github.com/jordanlanch/leadflow/pkg/storage"
)

// Service handles lead intake business logic
type Service struct {
	db            *gorm.DB
	media         storage.Uploader
	notifications *notification.Service
	log           logger.Logger
}

// NewService creates a new lead service. media and notifications may be nil;
// uploads are then rejected and intake notifications skipped.
func NewService(db *gorm.DB, media storage.Uploader, notifications *notification.Service, log logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{db: db, media: media, notifications: notifications, log: log}
}

// Attachment is an uploaded file accompanying a lead.
type Attachment struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// CreateRequest carries the three-step intake form. Dates are YYYY-MM-DD
// strings as sent by the form.
type CreateRequest struct {
	// Step 1
	EmployeeName      string `json:"employeeName" form:"employeeName"`
	Source            string `json:"source" form:"source"`
	OtherSource       string `json:"otherSource" form:"otherSource"`
	LeadCreatedAt     string `json:"leadCreatedAt" form:"leadCreatedAt"`
	ExpectedCloseDate string `json:"expectedCloseDate" form:"expectedCloseDate"`
	LastContactedAt   string `json:"lastContactedAt" form:"lastContactedAt"`
	Stage             string `json:"stage" form:"stage"`
	Comment           string `json:"comment" form:"comment"`
	Remarks           string `json:"remarks" form:"remarks"`

	// Step 2
	ClientName        string `json:"clientName" form:"clientName"`
	ClientCompanyName string `json:"clientCompanyName" form:"clientCompanyName"`
	ProductName       string `json:"productName" form:"productName"`
	AssignTeamMember  string `json:"assignTeamMember" form:"assignTeamMember"`
	Email             string `json:"email" form:"email"`
	Phone             string `json:"phone" form:"phone"`
	OrderID           string `json:"orderId" form:"orderId"`
	OrderDate         string `json:"orderDate" form:"orderDate"`
	ClientAddress     string `json:"clientAddress" form:"clientAddress"`
	ClientKycID       string `json:"clientKycId" form:"clientKycId"`
	KycPin            string `json:"kycPin" form:"kycPin"`
	DownloadStatus    string `json:"downloadStatus" form:"downloadStatus"`
	ProcessedBy       string `json:"processedBy" form:"processedBy"`
	ProcessedAt       string `json:"processedAt" form:"processedAt"`

	// Step 3
	QuotedPrice        float64 `json:"quotedPrice" form:"quotedPrice"`
	CompanyName        string  `json:"companyName" form:"companyName"`
	CompanyNameAddress string  `json:"companyNameAddress" form:"companyNameAddress"`
	ReferenceBy        string  `json:"referenceBy" form:"referenceBy"`
	PaymentStatus      string  `json:"paymentStatus" form:"paymentStatus"`
	PaymentStatusNote  string  `json:"paymentStatusNote" form:"paymentStatusNote"`
	InvoiceNumber      string  `json:"invoiceNumber" form:"invoiceNumber"`
	InvoiceDate        string  `json:"invoiceDate" form:"invoiceDate"`
	BillingSentStatus  string  `json:"billingSentStatus" form:"billingSentStatus"`
	BillingDate        string  `json:"billingDate" form:"billingDate"`

	AssignmentStatus string `json:"assignmentStatus" form:"assignmentStatus"`
}

// Attachments groups the multipart file fields of the intake form.
type Attachments struct {
	AadhaarPdf  *Attachment
	PanPdf      *Attachment
	OptionalPdf *Attachment
	ClientImage *Attachment
	BillDoc     *Attachment
}

// UpdateRequest carries a partial lead update. Nil fields stay unchanged.
type UpdateRequest struct {
	EmployeeName      *string `json:"employeeName" form:"employeeName"`
	Source            *string `json:"source" form:"source"`
	OtherSource       *string `json:"otherSource" form:"otherSource"`
	LeadCreatedAt     *string `json:"leadCreatedAt" form:"leadCreatedAt"`
	ExpectedCloseDate *string `json:"expectedCloseDate" form:"expectedCloseDate"`
	LastContactedAt   *string `json:"lastContactedAt" form:"lastContactedAt"`
	Stage             *string `json:"stage" form:"stage"`
	Comment           *string `json:"comment" form:"comment"`
	Remarks           *string `json:"remarks" form:"remarks"`

	ClientName        *string `json:"clientName" form:"clientName"`
	ClientCompanyName *string `json:"clientCompanyName" form:"clientCompanyName"`
	ProductName       *string `json:"productName" form:"productName"`
	AssignTeamMember  *string `json:"assignTeamMember" form:"assignTeamMember"`
	Email             *string `json:"email" form:"email"`
	Phone             *string `json:"phone" form:"phone"`
	OrderID           *string `json:"orderId" form:"orderId"`
	OrderDate         *string `json:"orderDate" form:"orderDate"`
	ClientAddress     *string `json:"clientAddress" form:"clientAddress"`
	ClientKycID       *string `json:"clientKycId" form:"clientKycId"`
	KycPin            *string `json:"kycPin" form:"kycPin"`
	DownloadStatus    *string `json:"downloadStatus" form:"downloadStatus"`
	ProcessedBy       *string `json:"processedBy" form:"processedBy"`
	ProcessedAt       *string `json:"processedAt" form:"processedAt"`

	QuotedPrice        *float64 `json:"quotedPrice" form:"quotedPrice"`
	CompanyName        *string  `json:"companyName" form:"companyName"`
	CompanyNameAddress *string  `json:"companyNameAddress" form:"companyNameAddress"`
	ReferenceBy        *string  `json:"referenceBy" form:"referenceBy"`
	PaymentStatus      *string  `json:"paymentStatus" form:"paymentStatus"`
	PaymentStatusNote  *string  `json:"paymentStatusNote" form:"paymentStatusNote"`
	InvoiceNumber      *string  `json:"invoiceNumber" form:"invoiceNumber"`
	InvoiceDate        *string  `json:"invoiceDate" form:"invoiceDate"`
	BillingSentStatus  *string  `json:"billingSentStatus" form:"billingSentStatus"`
	BillingDate        *string  `json:"billingDate" form:"billingDate"`

	AssignmentStatus *string `json:"assignmentStatus" form:"assignmentStatus"`
}

// List returns all leads, newest first, with a total count.
func (s *Service) List(ctx context.Context) ([]models.Lead, int64, error) {
	var leads []models.Lead
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&leads).Error; err != nil {
		return nil, 0, domain.NewInternalError(fmt.Errorf("failed to list leads: %w", err))
	}
	return leads, int64(len(leads)), nil
}

// Get returns a single lead by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Lead, error) {
	var l models.Lead
	if err := s.db.WithContext(ctx).First(&l, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Lead")
		}
		return nil, domain.NewInternalError(fmt.Errorf("failed to load lead: %w", err))
	}
	return &l, nil
}

// Create validates and stores a new lead, uploads its documents and
// notifies the assigned team member.
func (s *Service) Create(ctx context.Context, req CreateRequest, files Attachments) (*models.Lead, error) {
	var existing models.Lead
	err := s.db.WithContext(ctx).First(&existing, "order_id = ?", req.OrderID).Error
	if err == nil {
		return nil, domain.NewConflictError(
			fmt.Sprintf("Duplicate order ID: %s. A lead with this order ID already exists.", req.OrderID))
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewInternalError(fmt.Errorf("failed to check order id: %w", err))
	}

	if err := validateRequired(createRequiredFields(req)); err != nil {
		return nil, err
	}

	l := &models.Lead{
		EmployeeName:      req.EmployeeName,
		Source:            models.LeadSource(req.Source),
		OtherSource:       req.OtherSource,
		LeadCreatedAt:     req.LeadCreatedAt,
		ExpectedCloseDate: req.ExpectedCloseDate,
		LastContactedAt:   req.LastContactedAt,
		Stage:             models.LeadStage(req.Stage),
		Comment:           req.Comment,
		Remarks:           req.Remarks,

		ClientName:        req.ClientName,
		ClientCompanyName: req.ClientCompanyName,
		ProductName:       req.ProductName,
		AssignTeamMember:  req.AssignTeamMember,
		Email:             req.Email,
		Phone:             normalizePhone(req.Phone),
		OrderID:           req.OrderID,
		OrderDate:         req.OrderDate,
		ClientAddress:     req.ClientAddress,
		ClientKycID:       req.ClientKycID,
		KycPin:            req.KycPin,
		DownloadStatus:    defaultDownloadStatus(req.DownloadStatus),
		ProcessedBy:       req.ProcessedBy,
		ProcessedAt:       req.ProcessedAt,

		QuotedPrice:        req.QuotedPrice,
		CompanyName:        req.CompanyName,
		CompanyNameAddress: req.CompanyNameAddress,
		ReferenceBy:        req.ReferenceBy,
		PaymentStatus:      defaultPaymentStatus(req.PaymentStatus),
		PaymentStatusNote:  req.PaymentStatusNote,
		InvoiceNumber:      req.InvoiceNumber,
		InvoiceDate:        req.InvoiceDate,
		BillingSentStatus:  defaultBillingStatus(req.BillingSentStatus),
		BillingDate:        req.BillingDate,

		AssignmentStatus: defaultString(req.AssignmentStatus, "new"),
	}

	if err := s.storeAttachments(ctx, l, files); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(l).Error; err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to create lead: %w", err))
	}

	s.notifyTeamMember(ctx, l)
	return l, nil
}

// Update applies a partial update, replacing any re-uploaded documents.
// Changing the assigned team member notifies the new assignee.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest, files Attachments) (*models.Lead, error) {
	l, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.OrderID != nil && *req.OrderID != l.OrderID {
		var dup models.Lead
		err := s.db.WithContext(ctx).First(&dup, "order_id = ?", *req.OrderID).Error
		if err == nil {
			return nil, domain.NewConflictError(
				fmt.Sprintf("Duplicate order ID: %s. Another lead with this order ID already exists.", *req.OrderID))
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewInternalError(fmt.Errorf("failed to check order id: %w", err))
		}
	}

	oldTeamMember := l.AssignTeamMember
	applyUpdate(l, req)

	if err := s.storeAttachments(ctx, l, files); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Save(l).Error; err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to update lead: %w", err))
	}

	if l.AssignTeamMember != "" && l.AssignTeamMember != oldTeamMember {
		s.notifyTeamMember(ctx, l)
	}
	return l, nil
}

// UpdateAssignmentStatus sets the free-text workflow tag on a lead.
func (s *Service) UpdateAssignmentStatus(ctx context.Context, id, status string) (*models.Lead, error) {
	if strings.TrimSpace(status) == "" {
		return nil, domain.NewValidationError("Assignment status is required")
	}
	l, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	l.AssignmentStatus = status
	if err := s.db.WithContext(ctx).Save(l).Error; err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to update assignment status: %w", err))
	}
	return l, nil
}

// AssignedLeads returns the leads visible to the actor: everything for
// admins and managers, otherwise the leads assigned to the actor by name.
func (s *Service) AssignedLeads(ctx context.Context, actor models.Actor) ([]models.Lead, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC")

	if actor.Role != models.RoleAdmin && actor.Role != models.RoleManager {
		var user models.User
		if err := s.db.WithContext(ctx).First(&user, "id = ?", actor.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, domain.NewNotFoundError("User")
			}
			return nil, domain.NewInternalError(fmt.Errorf("failed to load user: %w", err))
		}
		query = query.Where("assign_team_member = ?", user.FullName)
	}

	var leads []models.Lead
	if err := query.Find(&leads).Error; err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to list assigned leads: %w", err))
	}
	return leads, nil
}

// Delete removes a lead and its stored documents.
func (s *Service) Delete(ctx context.Context, id string) error {
	l, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if s.media != nil {
		for _, u := range l.DocumentURLs() {
			if err := s.media.Delete(ctx, u); err != nil {
				s.log.Warn("failed to delete lead document", "lead_id", l.ID, "url", u, "error", err)
			}
		}
	}

	if err := s.db.WithContext(ctx).Delete(&models.Lead{}, "id = ?", id).Error; err != nil {
		return domain.NewInternalError(fmt.Errorf("failed to delete lead: %w", err))
	}
	return nil
}

func (s *Service) storeAttachments(ctx context.Context, l *models.Lead, files Attachments) error {
	type slot struct {
		file   *Attachment
		target *string
		folder string
	}
	slots := []slot{
		{files.AadhaarPdf, &l.AadhaarPdfURL, storage.FolderClientDocs},
		{files.PanPdf, &l.PanPdfURL, storage.FolderClientDocs},
		{files.OptionalPdf, &l.OptionalPdfURL, storage.FolderClientDocs},
		{files.ClientImage, &l.ClientImageURL, storage.FolderClientImages},
		{files.BillDoc, &l.BillDocURL, storage.FolderClientDocs},
	}

	for _, sl := range slots {
		if sl.file == nil {
			continue
		}
		if s.media == nil {
			return domain.NewInternalError(errors.New("media storage not configured"))
		}
		if old := *sl.target; old != "" {
			if err := s.media.Delete(ctx, old); err != nil {
				s.log.Warn("failed to delete replaced document", "lead_id", l.ID, "url", old, "error", err)
			}
		}
		url, err := s.media.Upload(ctx, sl.folder, sl.file.Filename, sl.file.ContentType, sl.file.Body)
		if err != nil {
			return domain.NewInternalError(fmt.Errorf("failed to upload document: %w", err))
		}
		*sl.target = url
	}
	return nil
}

// notifyTeamMember creates an in-app notification for the user whose display
// name matches assignTeamMember. Best effort: a failed lookup or write is
// logged and never fails the lead write.
func (s *Service) notifyTeamMember(ctx context.Context, l *models.Lead) {
	if l.AssignTeamMember == "" {
		return
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "full_name = ?", l.AssignTeamMember).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn("failed to resolve team member", "name", l.AssignTeamMember, "error", err)
		}
		return
	}

	n := &models.Notification{
		UserID:            user.ID,
		UserName:          user.FullName,
		LeadClientName:    l.ClientName,
		LeadClientCompany: l.ClientCompanyName,
		NotificationType:  models.NotificationLeadAssigned,
		Message:           fmt.Sprintf("New lead assigned: %s from %s", l.ClientName, l.ClientCompanyName),
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		s.log.Warn("failed to create lead notification", "lead_id", l.ID, "error", err)
		return
	}
	if s.notifications != nil {
		s.notifications.InvalidateCount(ctx, user.ID)
	}
}

type requiredField struct {
	name  string
	value string
}

func createRequiredFields(req CreateRequest) []requiredField {
	return []requiredField{
		{"employeeName", req.EmployeeName},
		{"source", req.Source},
		{"leadCreatedAt", req.LeadCreatedAt},
		{"stage", req.Stage},
		{"clientName", req.ClientName},
		{"clientCompanyName", req.ClientCompanyName},
		{"productName", req.ProductName},
		{"assignTeamMember", req.AssignTeamMember},
		{"email", req.Email},
		{"phone", req.Phone},
		{"orderId", req.OrderID},
		{"orderDate", req.OrderDate},
		{"clientAddress", req.ClientAddress},
		{"clientKycId", req.ClientKycID},
		{"kycPin", req.KycPin},
		{"processedBy", req.ProcessedBy},
		{"processedAt", req.ProcessedAt},
		{"quotedPrice", quotedPriceValue(req.QuotedPrice)},
		{"companyNameAddress", req.CompanyNameAddress},
		{"billingSentStatus", req.BillingSentStatus},
	}
}

func validateRequired(fields []requiredField) error {
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return domain.NewValidationError(fmt.Sprintf("Field '%s' is required", f.name))
		}
	}
	return nil
}

func quotedPriceValue(p float64) string {
	if p == 0 {
		return ""
	}
	return fmt.Sprintf("%g", p)
}

// normalizePhone stores valid numbers in E.164 form. Invalid or partial
// numbers are kept as typed; intake never rejects on phone format.
func normalizePhone(raw string) string {
	if normalized, err := phone.Normalize(raw, ""); err == nil {
		return normalized
	}
	return raw
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func defaultDownloadStatus(v string) models.DownloadStatus {
	if v == "" {
		return models.DownloadProcess
	}
	return models.DownloadStatus(v)
}

func defaultPaymentStatus(v string) models.PaymentStatus {
	if v == "" {
		return models.PaymentPending
	}
	return models.PaymentStatus(v)
}

func defaultBillingStatus(v string) models.BillingSentStatus {
	if v == "" {
		return models.BillingNotSent
	}
	return models.BillingSentStatus(v)
}

func applyUpdate(l *models.Lead, req UpdateRequest) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}

	setString(&l.EmployeeName, req.EmployeeName)
	if req.Source != nil {
		l.Source = models.LeadSource(*req.Source)
	}
	setString(&l.OtherSource, req.OtherSource)
	setString(&l.LeadCreatedAt, req.LeadCreatedAt)
	setString(&l.ExpectedCloseDate, req.ExpectedCloseDate)
	setString(&l.LastContactedAt, req.LastContactedAt)
	if req.Stage != nil {
		l.Stage = models.LeadStage(*req.Stage)
	}
	setString(&l.Comment, req.Comment)
	setString(&l.Remarks, req.Remarks)

	setString(&l.ClientName, req.ClientName)
	setString(&l.ClientCompanyName, req.ClientCompanyName)
	setString(&l.ProductName, req.ProductName)
	setString(&l.AssignTeamMember, req.AssignTeamMember)
	setString(&l.Email, req.Email)
	if req.Phone != nil {
		l.Phone = normalizePhone(*req.Phone)
	}
	setString(&l.OrderID, req.OrderID)
	setString(&l.OrderDate, req.OrderDate)
	setString(&l.ClientAddress, req.ClientAddress)
	setString(&l.ClientKycID, req.ClientKycID)
	setString(&l.KycPin, req.KycPin)
	if req.DownloadStatus != nil {
		l.DownloadStatus = models.DownloadStatus(*req.DownloadStatus)
	}
	setString(&l.ProcessedBy, req.ProcessedBy)
	setString(&l.ProcessedAt, req.ProcessedAt)

	if req.QuotedPrice != nil {
		l.QuotedPrice = *req.QuotedPrice
	}
	setString(&l.CompanyName, req.CompanyName)
	setString(&l.CompanyNameAddress, req.CompanyNameAddress)
	setString(&l.ReferenceBy, req.ReferenceBy)
	if req.PaymentStatus != nil {
		l.PaymentStatus = models.PaymentStatus(*req.PaymentStatus)
	}
	setString(&l.PaymentStatusNote, req.PaymentStatusNote)
	setString(&l.InvoiceNumber, req.InvoiceNumber)
	setString(&l.InvoiceDate, req.InvoiceDate)
	if req.BillingSentStatus != nil {
		l.BillingSentStatus = models.BillingSentStatus(*req.BillingSentStatus)
	}
	setString(&l.BillingDate, req.BillingDate)
	setString(&l.AssignmentStatus, req.AssignmentStatus)
}
