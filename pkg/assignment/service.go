package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/email"
	"github.com/jordanlanch/leadflow/pkg/logger"
	"github.com/jordanlanch/leadflow/pkg/models"
	"github.com/jordanlanch/leadflow/pkg/notification"
)

// Service manages the lifecycle of lead assignments: creation with a
// denormalized lead snapshot, status/priority tracking with an append-only
// history trail, and notification side effects.
type Service struct {
	db            *gorm.DB
	notifications *notification.Service
	emails        *email.Service
	log           logger.Logger
}

// NewService creates a new assignment service. The email service is
// optional; without it no assignment emails are sent.
func NewService(db *gorm.DB, notifications *notification.Service, emails *email.Service, log logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		db:            db,
		notifications: notifications,
		emails:        emails,
		log:           log,
	}
}

// CreateRequest represents a request to assign a lead to an employee.
type CreateRequest struct {
	LeadID       string                    `json:"leadId" validate:"required"`
	AssignedToID string                    `json:"assignedToId" validate:"required"`
	Priority     models.AssignmentPriority `json:"priority,omitempty"`
	DueDate      string                    `json:"dueDate,omitempty"`
	Notes        string                    `json:"notes,omitempty"`
}

// UpdateRequest represents a partial assignment update. Nil fields are
// left untouched.
type UpdateRequest struct {
	Status           *models.AssignmentStatus   `json:"status,omitempty"`
	Priority         *models.AssignmentPriority `json:"priority,omitempty"`
	ContactAttempts  *int                       `json:"contactAttempts,omitempty"`
	LastContactedAt  *time.Time                 `json:"lastContactedAt,omitempty"`
	NextFollowUpAt   *time.Time                 `json:"nextFollowUpAt,omitempty"`
	Notes            *string                    `json:"notes,omitempty"`
	InternalComments *string                    `json:"internalComments,omitempty"`
}

// ListFilter narrows List results. Filters are conjunctive.
type ListFilter struct {
	Status   models.AssignmentStatus
	Priority models.AssignmentPriority
	IsActive *bool
}

// Stats aggregates counts over the assignments visible to the actor.
type Stats struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	New          int `json:"new"`
	InProgress   int `json:"inProgress"`
	Won          int `json:"won"`
	Lost         int `json:"lost"`
	HighPriority int `json:"highPriority"`
	Overdue      int `json:"overdue"`
}

// Create assigns a lead to an employee. Only admins and managers may do
// this. The assignment row, its creation history entry and the assignee's
// notification are written in one transaction.
func (s *Service) Create(ctx context.Context, actor models.Actor, req CreateRequest) (*models.Assignment, error) {
	if !CanManage(actor) {
		return nil, domain.NewForbiddenError("Only admin and manager can create assignments")
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !models.ValidAssignmentPriority(priority) {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid priority: %s", priority))
	}

	var lead models.Lead
	if err := s.db.WithContext(ctx).First(&lead, "id = ?", req.LeadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("lead")
		}
		return nil, domain.NewInternalError(err)
	}

	var assignee models.User
	if err := s.db.WithContext(ctx).First(&assignee, "id = ?", req.AssignedToID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("assigned user")
		}
		return nil, domain.NewInternalError(err)
	}

	a := &models.Assignment{
		LeadID:            lead.ID,
		AssignedToID:      assignee.ID,
		AssignedToName:    assignee.FullName,
		AssignedByID:      actor.ID,
		AssignedByName:    actor.Email,
		LeadClientName:    lead.ClientName,
		LeadClientCompany: lead.ClientCompanyName,
		LeadClientAddress: lead.ClientAddress,
		LeadProductName:   lead.ProductName,
		LeadQuotedPrice:   lead.QuotedPrice,
		Status:            models.StatusNew,
		Priority:          priority,
		DueDate:           req.DueDate,
		Notes:             req.Notes,
		IsActive:          true,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(a).Error; err != nil {
			return err
		}

		history := &models.AssignmentHistory{
			AssignmentID:  a.ID,
			ChangedByID:   actor.ID,
			ChangedByName: actor.Email,
			Action:        models.ActionAssignmentCreated,
			Comment:       fmt.Sprintf("Assignment created with priority: %s", a.Priority),
		}
		if err := tx.Create(history).Error; err != nil {
			return err
		}

		n := &models.Notification{
			AssignmentID:      a.ID,
			UserID:            assignee.ID,
			UserName:          assignee.FullName,
			LeadClientName:    lead.ClientName,
			LeadClientCompany: lead.ClientCompanyName,
			NotificationType:  models.NotificationAssignmentCreated,
			Message:           fmt.Sprintf("New lead assigned: %s from %s", lead.ClientName, lead.ClientCompanyName),
		}
		return tx.Create(n).Error
	})
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	if s.notifications != nil {
		s.notifications.InvalidateCount(ctx, assignee.ID)
	}

	// Best-effort email after the transaction committed
	if s.emails != nil {
		if err := s.emails.SendAssignmentEmail(assignee.Email, assignee.FullName,
			lead.ClientName, lead.ClientCompanyName, string(a.Priority)); err != nil {
			s.log.Warn("assignment email failed", "assignment_id", a.ID, "error", err)
		}
	}

	return a, nil
}

// Update applies a partial update and appends one history entry per field
// that actually changed. Setting a field to its current value produces no
// audit entry. A transition into won or lost deactivates the assignment
// and stamps completion metadata; the second return reports whether this
// call performed such a closing transition.
func (s *Service) Update(ctx context.Context, actor models.Actor, id string, req UpdateRequest) (*models.Assignment, bool, error) {
	var a models.Assignment
	if err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, domain.NewNotFoundError("assignment")
		}
		return nil, false, domain.NewInternalError(err)
	}

	if !CanUpdate(actor, &a) {
		return nil, false, domain.NewForbiddenError("Access denied")
	}

	closed := false

	var changes []models.AssignmentHistory
	record := func(action, fieldName, oldValue, newValue, comment string) {
		changes = append(changes, models.AssignmentHistory{
			AssignmentID:  a.ID,
			ChangedByID:   actor.ID,
			ChangedByName: actor.Email,
			Action:        action,
			FieldName:     fieldName,
			OldValue:      oldValue,
			NewValue:      newValue,
			Comment:       comment,
		})
	}

	if req.Status != nil && *req.Status != a.Status {
		if !models.ValidAssignmentStatus(*req.Status) {
			return nil, false, domain.NewValidationError(fmt.Sprintf("invalid status: %s", *req.Status))
		}
		record(models.ActionStatusChanged, "status", string(a.Status), string(*req.Status), "")
		a.Status = *req.Status

		// A terminal status completes the assignment. Leaving it again
		// later does not re-activate.
		if a.Status.IsTerminal() {
			now := time.Now()
			a.IsActive = false
			a.CompletedAt = &now
			a.CompletedBy = actor.Email
			closed = true
		}
	}

	if req.Priority != nil && *req.Priority != a.Priority {
		if !models.ValidAssignmentPriority(*req.Priority) {
			return nil, false, domain.NewValidationError(fmt.Sprintf("invalid priority: %s", *req.Priority))
		}
		record(models.ActionPriorityChanged, "priority", string(a.Priority), string(*req.Priority), "")
		a.Priority = *req.Priority
	}

	if req.ContactAttempts != nil {
		a.ContactAttempts = *req.ContactAttempts
	}

	if req.LastContactedAt != nil && !timesEqual(a.LastContactedAt, req.LastContactedAt) {
		a.LastContactedAt = req.LastContactedAt
		record(models.ActionContacted, "", "", "", fmt.Sprintf("Contact attempt #%d", a.ContactAttempts))
	}

	if req.NextFollowUpAt != nil {
		a.NextFollowUpAt = req.NextFollowUpAt
	}

	if req.Notes != nil {
		a.Notes = *req.Notes
	}

	if req.InternalComments != nil && *req.InternalComments != a.InternalComments {
		a.InternalComments = *req.InternalComments
		record(models.ActionCommentAdded, "", "", "", *req.InternalComments)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&a).Error; err != nil {
			return err
		}
		if len(changes) > 0 {
			if err := tx.Create(&changes).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, domain.NewInternalError(err)
	}

	return &a, closed, nil
}

// Delete removes an assignment together with all of its history rows.
// History goes first so a failure can never orphan audit entries.
func (s *Service) Delete(ctx context.Context, actor models.Actor, id string) error {
	if !CanManage(actor) {
		return domain.NewForbiddenError("Only admin and manager can delete assignments")
	}

	var a models.Assignment
	if err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NewNotFoundError("assignment")
		}
		return domain.NewInternalError(err)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("assignment_id = ?", id).Delete(&models.AssignmentHistory{}).Error; err != nil {
			return err
		}
		return tx.Delete(&a).Error
	})
	if err != nil {
		return domain.NewInternalError(err)
	}
	return nil
}

// List returns assignments visible to the actor, newest first. Employees
// only see assignments where they are the assignee.
func (s *Service) List(ctx context.Context, actor models.Actor, filter ListFilter) ([]models.Assignment, error) {
	query := s.visibleQuery(ctx, actor)

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}

	var assignments []models.Assignment
	if err := query.Order("created_at DESC").Find(&assignments).Error; err != nil {
		return nil, domain.NewInternalError(err)
	}
	return assignments, nil
}

// GetWithHistory returns a single assignment plus its full audit trail,
// newest entries first.
func (s *Service) GetWithHistory(ctx context.Context, actor models.Actor, id string) (*models.Assignment, []models.AssignmentHistory, error) {
	var a models.Assignment
	if err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, domain.NewNotFoundError("assignment")
		}
		return nil, nil, domain.NewInternalError(err)
	}

	if !CanView(actor, &a) {
		return nil, nil, domain.NewForbiddenError("Access denied")
	}

	var history []models.AssignmentHistory
	err := s.db.WithContext(ctx).
		Where("assignment_id = ?", id).
		Order("created_at DESC").
		Find(&history).Error
	if err != nil {
		return nil, nil, domain.NewInternalError(err)
	}

	return &a, history, nil
}

// ComputeStats aggregates counts over the actor's visible assignments.
func (s *Service) ComputeStats(ctx context.Context, actor models.Actor) (*Stats, error) {
	var assignments []models.Assignment
	if err := s.visibleQuery(ctx, actor).Find(&assignments).Error; err != nil {
		return nil, domain.NewInternalError(err)
	}

	stats := &Stats{Total: len(assignments)}
	now := time.Now()
	for i := range assignments {
		a := &assignments[i]
		if a.IsActive {
			stats.Active++
		}
		switch a.Status {
		case models.StatusNew:
			stats.New++
		case models.StatusInProgress:
			stats.InProgress++
		case models.StatusWon:
			stats.Won++
		case models.StatusLost:
			stats.Lost++
		}
		if a.Priority == models.PriorityHigh || a.Priority == models.PriorityUrgent {
			stats.HighPriority++
		}
		if a.IsActive && isOverdue(a.DueDate, now) {
			stats.Overdue++
		}
	}
	return stats, nil
}

func (s *Service) visibleQuery(ctx context.Context, actor models.Actor) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Assignment{})
	if !SeesAll(actor) {
		query = query.Where("assigned_to_id = ?", actor.ID)
	}
	return query
}

// isOverdue reports whether the due date is strictly in the past.
// Due dates are written as YYYY-MM-DD strings, but a date column can come
// back from the driver in RFC 3339 form, so both layouts are accepted.
// Unparseable values never count as overdue.
func isOverdue(dueDate string, now time.Time) bool {
	if dueDate == "" {
		return false
	}
	due, err := time.Parse("2006-01-02", dueDate)
	if err != nil {
		due, err = time.Parse(time.RFC3339, dueDate)
	}
	if err != nil {
		return false
	}
	return due.Before(now)
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
