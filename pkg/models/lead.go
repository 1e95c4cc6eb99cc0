package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Lead intake enums. Values match what the web form and bulk imports send.
type (
	LeadSource        string
	LeadStage         string
	DownloadStatus    string
	PaymentStatus     string
	BillingSentStatus string
)

const (
	SourceSurvey   LeadSource = "Survey"
	SourceFacebook LeadSource = "Facebook"
	SourceWebsite  LeadSource = "Website"
	SourceOther    LeadSource = "Other"
)

const (
	StageLead         LeadStage = "Lead"
	StageContacted    LeadStage = "Contacted"
	StageQualified    LeadStage = "Qualified"
	StageProposalMade LeadStage = "Proposal Made"
	StageWon          LeadStage = "Won"
	StageLost         LeadStage = "Lost"
	StageFridge       LeadStage = "Fridge"
)

const (
	DownloadCompleted   DownloadStatus = "completed"
	DownloadNotComplete DownloadStatus = "not_complete"
	DownloadProcess     DownloadStatus = "process"
)

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
	PaymentPending PaymentStatus = "pending"
	PaymentOther   PaymentStatus = "other"
)

const (
	BillingSent    BillingSentStatus = "sent"
	BillingNotSent BillingSentStatus = "not_sent"
	BillingProcess BillingSentStatus = "process"
)

// ValidLeadSource reports whether s is a known lead source.
func ValidLeadSource(s LeadSource) bool {
	switch s {
	case SourceSurvey, SourceFacebook, SourceWebsite, SourceOther:
		return true
	}
	return false
}

// ValidLeadStage reports whether s is a known lead stage.
func ValidLeadStage(s LeadStage) bool {
	switch s {
	case StageLead, StageContacted, StageQualified, StageProposalMade, StageWon, StageLost, StageFridge:
		return true
	}
	return false
}

// ValidDownloadStatus reports whether s is a known download status.
func ValidDownloadStatus(s DownloadStatus) bool {
	switch s {
	case DownloadCompleted, DownloadNotComplete, DownloadProcess:
		return true
	}
	return false
}

// ValidPaymentStatus reports whether s is a known payment status.
func ValidPaymentStatus(s PaymentStatus) bool {
	switch s {
	case PaymentPaid, PaymentFailed, PaymentPending, PaymentOther:
		return true
	}
	return false
}

// ValidBillingSentStatus reports whether s is a known billing sent status.
func ValidBillingSentStatus(s BillingSentStatus) bool {
	switch s {
	case BillingSent, BillingNotSent, BillingProcess:
		return true
	}
	return false
}

// Lead represents a three-step intake record: employee/source data,
// order/client data with KYC documents, and billing data.
type Lead struct {
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"`

	// Step 1 - Employee
	EmployeeName      string     `gorm:"type:varchar(255);not null" json:"employeeName"`
	Source            LeadSource `gorm:"type:varchar(50);not null" json:"source"`
	OtherSource       string     `gorm:"type:varchar(255)" json:"otherSource,omitempty"`
	LeadCreatedAt     string     `gorm:"type:date;not null" json:"leadCreatedAt"`
	ExpectedCloseDate string     `gorm:"type:date" json:"expectedCloseDate,omitempty"`
	LastContactedAt   string     `gorm:"type:date" json:"lastContactedAt,omitempty"`
	Stage             LeadStage  `gorm:"type:varchar(50);default:Lead" json:"stage"`
	Comment           string     `gorm:"type:text" json:"comment,omitempty"`
	Remarks           string     `gorm:"type:text" json:"remarks,omitempty"`

	// Step 2 - Order/Client
	ClientName        string         `gorm:"type:varchar(255);not null" json:"clientName"`
	ClientCompanyName string         `gorm:"type:varchar(255);not null" json:"clientCompanyName"`
	ProductName       string         `gorm:"type:varchar(255);not null" json:"productName"`
	AssignTeamMember  string         `gorm:"type:varchar(255);not null" json:"assignTeamMember"`
	Email             string         `gorm:"type:varchar(255);not null" json:"email"`
	Phone             string         `gorm:"type:varchar(50);not null" json:"phone"`
	OrderID           string         `gorm:"type:varchar(100);uniqueIndex;not null" json:"orderId"`
	OrderDate         string         `gorm:"type:date;not null" json:"orderDate"`
	ClientAddress     string         `gorm:"type:text;not null" json:"clientAddress"`
	ClientKycID       string         `gorm:"type:varchar(100);not null" json:"clientKycId"`
	KycPin            string         `gorm:"type:varchar(100);not null" json:"kycPin"`
	DownloadStatus    DownloadStatus `gorm:"type:varchar(50);default:process" json:"downloadStatus"`
	ProcessedBy       string         `gorm:"type:varchar(255);not null" json:"processedBy"`
	ProcessedAt       string         `gorm:"type:date;not null" json:"processedAt"`

	// Document URLs (media store)
	AadhaarPdfURL  string `gorm:"type:text" json:"aadhaarPdfUrl,omitempty"`
	PanPdfURL      string `gorm:"type:text" json:"panPdfUrl,omitempty"`
	OptionalPdfURL string `gorm:"type:text" json:"optionalPdfUrl,omitempty"`
	ClientImageURL string `gorm:"type:text" json:"clientImageUrl,omitempty"`

	// Step 3 - Billing
	QuotedPrice        float64           `gorm:"type:decimal(12,2);default:0" json:"quotedPrice"`
	CompanyName        string            `gorm:"type:varchar(255)" json:"companyName,omitempty"`
	CompanyNameAddress string            `gorm:"type:text;not null" json:"companyNameAddress"`
	ReferenceBy        string            `gorm:"type:varchar(255)" json:"referenceBy,omitempty"`
	PaymentStatus      PaymentStatus     `gorm:"type:varchar(50);default:pending" json:"paymentStatus"`
	PaymentStatusNote  string            `gorm:"type:varchar(255)" json:"paymentStatusNote,omitempty"`
	InvoiceNumber      string            `gorm:"type:varchar(100)" json:"invoiceNumber,omitempty"`
	InvoiceDate        string            `gorm:"type:date" json:"invoiceDate,omitempty"`
	BillingSentStatus  BillingSentStatus `gorm:"type:varchar(50);default:not_sent" json:"billingSentStatus"`
	BillingDate        string            `gorm:"type:date" json:"billingDate,omitempty"`
	BillDocURL         string            `gorm:"type:text" json:"billDocUrl,omitempty"`

	// Free-text workflow tag mirrored from the assignment workflow
	AssignmentStatus string `gorm:"type:varchar(50);default:new" json:"assignmentStatus"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a UUID primary key
func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// DocumentURLs returns all media store URLs attached to the lead.
func (l *Lead) DocumentURLs() []string {
	urls := make([]string, 0, 5)
	for _, u := range []string{l.AadhaarPdfURL, l.PanPdfURL, l.OptionalPdfURL, l.ClientImageURL, l.BillDocURL} {
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
