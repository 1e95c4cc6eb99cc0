package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification types emitted by the assignment engine and lead intake.
const (
	NotificationAssignmentCreated    = "assignment_created"
	NotificationAssignmentUpdated    = "assignment_updated"
	NotificationAssignmentReassigned = "assignment_reassigned"
	NotificationLeadAssigned         = "lead_assigned"
)

// Notification is an in-app notification tied to an assignment event.
// Never auto-deleted; only the viewed flag is ever mutated.
type Notification struct {
	ID                string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	// Empty for notifications raised by lead intake
	AssignmentID      string     `gorm:"type:varchar(36);index" json:"assignmentId,omitempty"`
	UserID            string     `gorm:"type:varchar(36);index;not null" json:"userId"`
	UserName          string     `gorm:"type:varchar(255);not null" json:"userName"`
	LeadClientName    string     `gorm:"type:varchar(255);not null" json:"leadClientName"`
	LeadClientCompany string     `gorm:"type:varchar(255);not null" json:"leadClientCompany"`
	NotificationType  string     `gorm:"type:varchar(100);default:assignment_created" json:"notificationType"`
	Message           string     `gorm:"type:text" json:"message,omitempty"`
	IsViewed          bool       `gorm:"default:false;index" json:"isViewed"`
	ViewedAt          *time.Time `json:"viewedAt,omitempty"`
	CreatedAt         time.Time  `gorm:"index" json:"createdAt"`
}

// BeforeCreate assigns a UUID primary key
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
