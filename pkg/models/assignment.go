package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AssignmentStatus is the workflow status of a lead assignment.
type AssignmentStatus string

const (
	StatusNew          AssignmentStatus = "new"
	StatusInProgress   AssignmentStatus = "in_progress"
	StatusContacted    AssignmentStatus = "contacted"
	StatusQualified    AssignmentStatus = "qualified"
	StatusProposalSent AssignmentStatus = "proposal_sent"
	StatusWon          AssignmentStatus = "won"
	StatusLost         AssignmentStatus = "lost"
	StatusOnHold       AssignmentStatus = "on_hold"
)

// ValidAssignmentStatus reports whether s is a known assignment status.
func ValidAssignmentStatus(s AssignmentStatus) bool {
	switch s {
	case StatusNew, StatusInProgress, StatusContacted, StatusQualified,
		StatusProposalSent, StatusWon, StatusLost, StatusOnHold:
		return true
	}
	return false
}

// IsTerminal reports whether s deactivates the assignment. Transitioning
// into a terminal status flips IsActive false and stamps completion
// metadata; moving away again does not re-activate.
func (s AssignmentStatus) IsTerminal() bool {
	return s == StatusWon || s == StatusLost
}

// AssignmentPriority is the urgency of a lead assignment.
type AssignmentPriority string

const (
	PriorityLow    AssignmentPriority = "low"
	PriorityMedium AssignmentPriority = "medium"
	PriorityHigh   AssignmentPriority = "high"
	PriorityUrgent AssignmentPriority = "urgent"
)

// ValidAssignmentPriority reports whether p is a known priority.
func ValidAssignmentPriority(p AssignmentPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Assignment links one lead to one employee with its own workflow state.
// Lead and user references are soft (plain ids, no FK constraints); client
// and product fields are snapshotted from the lead at assignment time.
type Assignment struct {
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"`

	LeadID         string `gorm:"type:varchar(36);index;not null" json:"leadId"`
	AssignedToID   string `gorm:"type:varchar(36);index;not null" json:"assignedToId"`
	AssignedToName string `gorm:"type:varchar(255);not null" json:"assignedToName"`
	AssignedByID   string `gorm:"type:varchar(36);index;not null" json:"assignedById"`
	AssignedByName string `gorm:"type:varchar(255);not null" json:"assignedByName"`

	// Denormalized lead data for quick access
	LeadClientName    string  `gorm:"type:varchar(255);not null" json:"leadClientName"`
	LeadClientCompany string  `gorm:"type:varchar(255);not null" json:"leadClientCompany"`
	LeadClientAddress string  `gorm:"type:text" json:"leadClientAddress,omitempty"`
	LeadProductName   string  `gorm:"type:varchar(255)" json:"leadProductName,omitempty"`
	LeadQuotedPrice   float64 `gorm:"type:decimal(12,2);default:0" json:"leadQuotedPrice"`

	Status          AssignmentStatus   `gorm:"type:varchar(50);default:new;index" json:"status"`
	Priority        AssignmentPriority `gorm:"type:varchar(50);default:medium" json:"priority"`
	DueDate         string             `gorm:"type:date" json:"dueDate,omitempty"`
	ContactAttempts int                `gorm:"default:0" json:"contactAttempts"`
	LastContactedAt *time.Time         `json:"lastContactedAt,omitempty"`
	NextFollowUpAt  *time.Time         `json:"nextFollowUpAt,omitempty"`

	Notes            string `gorm:"type:text" json:"notes,omitempty"`
	InternalComments string `gorm:"type:text" json:"internalComments,omitempty"`

	IsActive        bool       `gorm:"default:true" json:"isActive"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	CompletedBy     string     `gorm:"type:varchar(255)" json:"completedBy,omitempty"`
	CompletionNotes string     `gorm:"type:text" json:"completionNotes,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a UUID primary key
func (a *Assignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// History action tags. One tag per audited workflow event.
const (
	ActionAssignmentCreated = "assignment_created"
	ActionStatusChanged     = "status_changed"
	ActionPriorityChanged   = "priority_changed"
	ActionContacted         = "contacted"
	ActionCommentAdded      = "comment_added"
)

// AssignmentHistory is an immutable audit record of one field change or
// workflow event on an assignment. Rows are only ever deleted together
// with their parent assignment.
type AssignmentHistory struct {
	ID            string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	AssignmentID  string    `gorm:"type:varchar(36);index;not null" json:"assignmentId"`
	ChangedByID   string    `gorm:"type:varchar(36);not null" json:"changedById"`
	ChangedByName string    `gorm:"type:varchar(255);not null" json:"changedByName"`
	Action        string    `gorm:"type:varchar(100);not null" json:"action"`
	FieldName     string    `gorm:"type:varchar(100)" json:"fieldName,omitempty"`
	OldValue      string    `gorm:"type:text" json:"oldValue,omitempty"`
	NewValue      string    `gorm:"type:text" json:"newValue,omitempty"`
	Comment       string    `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt     time.Time `gorm:"index" json:"createdAt"`
}

// BeforeCreate assigns a UUID primary key
func (h *AssignmentHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

// TableName keeps the table singular-free name the schema always used
func (AssignmentHistory) TableName() string {
	return "assignment_history"
}
