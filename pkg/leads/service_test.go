package leads

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jordanlanch/leadflow/pkg/database"
	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

// memUploader stores uploads in memory and records deletes.
type memUploader struct {
	uploads int
	deleted []string
}

func (m *memUploader) Upload(_ context.Context, folder, filename, _ string, body io.Reader) (string, error) {
	m.uploads++
	_, _ = io.Copy(io.Discard, body)
	return fmt.Sprintf("https://media.test/%s/%d-%s", folder, m.uploads, filename), nil
}

func (m *memUploader) Delete(_ context.Context, fileURL string) error {
	m.deleted = append(m.deleted, fileURL)
	return nil
}

func createTestUser(t *testing.T, db *gorm.DB, name, email string, role models.Role) *models.User {
	user := &models.User{
		FullName:     name,
		Email:        email,
		Phone:        "+15551234567",
		PasswordHash: "hashed",
		Role:         role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func validCreateRequest(orderID string) CreateRequest {
	return CreateRequest{
		EmployeeName:       "Sam Seller",
		Source:             "Website",
		LeadCreatedAt:      "2025-02-01",
		Stage:              "Lead",
		ClientName:         "Acme",
		ClientCompanyName:  "Acme Ltd",
		ProductName:        "Starter Plan",
		AssignTeamMember:   "Sam Seller",
		Email:              "client@example.com",
		Phone:              "+15559876543",
		OrderID:            orderID,
		OrderDate:          "2025-02-02",
		ClientAddress:      "12 Market St",
		ClientKycID:        "KYC-9",
		KycPin:             "1234",
		ProcessedBy:        "Sam Seller",
		ProcessedAt:        "2025-02-02",
		QuotedPrice:        1200,
		CompanyNameAddress: "12 Market St",
		BillingSentStatus:  "not_sent",
	}
}

func TestCreateLead(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	media := &memUploader{}
	service := NewService(db, media, nil, nil)

	seller := createTestUser(t, db, "Sam Seller", "sam@crm.test", models.RoleEmployee)

	t.Run("Success with defaults and notification", func(t *testing.T) {
		lead, err := service.Create(ctx, validCreateRequest("ORD-1"), Attachments{})
		require.NoError(t, err)
		assert.Equal(t, models.DownloadProcess, lead.DownloadStatus)
		assert.Equal(t, models.PaymentPending, lead.PaymentStatus)
		assert.Equal(t, "new", lead.AssignmentStatus)

		var notifications []models.Notification
		require.NoError(t, db.Where("user_id = ?", seller.ID).Find(&notifications).Error)
		require.Len(t, notifications, 1)
		assert.Equal(t, models.NotificationLeadAssigned, notifications[0].NotificationType)
		assert.Contains(t, notifications[0].Message, "Acme")
	})

	t.Run("Attachments are uploaded", func(t *testing.T) {
		req := validCreateRequest("ORD-2")
		lead, err := service.Create(ctx, req, Attachments{
			AadhaarPdf:  &Attachment{Filename: "aadhaar.pdf", ContentType: "application/pdf", Body: strings.NewReader("pdf")},
			ClientImage: &Attachment{Filename: "photo.jpg", ContentType: "image/jpeg", Body: strings.NewReader("jpg")},
		})
		require.NoError(t, err)
		assert.Contains(t, lead.AadhaarPdfURL, "crm/clients/docs")
		assert.Contains(t, lead.ClientImageURL, "crm/clients/images")
	})

	t.Run("Error - duplicate order id", func(t *testing.T) {
		_, err := service.Create(ctx, validCreateRequest("ORD-1"), Attachments{})
		require.Error(t, err)
		assert.True(t, domain.IsConflict(err))
		assert.Contains(t, err.Error(), "Duplicate order ID: ORD-1")
	})

	t.Run("Error - missing required field", func(t *testing.T) {
		req := validCreateRequest("ORD-3")
		req.ClientName = ""
		_, err := service.Create(ctx, req, Attachments{})
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
		assert.Contains(t, err.Error(), "Field 'clientName' is required")
	})

	t.Run("Unknown team member skips notification", func(t *testing.T) {
		req := validCreateRequest("ORD-4")
		req.AssignTeamMember = "Nobody Known"
		lead, err := service.Create(ctx, req, Attachments{})
		require.NoError(t, err)

		var count int64
		require.NoError(t, db.Model(&models.Notification{}).
			Where("lead_client_name = ? AND notification_type = ?", lead.ClientName, models.NotificationLeadAssigned).
			Where("user_name = ?", "Nobody Known").Count(&count).Error)
		assert.Zero(t, count)
	})
}

func TestUpdateLead(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	media := &memUploader{}
	service := NewService(db, media, nil, nil)

	createTestUser(t, db, "Sam Seller", "sam@crm.test", models.RoleEmployee)
	other := createTestUser(t, db, "Tina Taker", "tina@crm.test", models.RoleEmployee)

	t.Run("Partial update leaves other fields alone", func(t *testing.T) {
		lead, err := service.Create(ctx, validCreateRequest("ORD-10"), Attachments{})
		require.NoError(t, err)

		stage := "Contacted"
		updated, err := service.Update(ctx, lead.ID, UpdateRequest{Stage: &stage}, Attachments{})
		require.NoError(t, err)
		assert.Equal(t, models.StageContacted, updated.Stage)
		assert.Equal(t, "Acme", updated.ClientName)
	})

	t.Run("Replacing a document deletes the old object", func(t *testing.T) {
		lead, err := service.Create(ctx, validCreateRequest("ORD-11"), Attachments{
			AadhaarPdf: &Attachment{Filename: "a.pdf", ContentType: "application/pdf", Body: strings.NewReader("v1")},
		})
		require.NoError(t, err)
		oldURL := lead.AadhaarPdfURL

		updated, err := service.Update(ctx, lead.ID, UpdateRequest{}, Attachments{
			AadhaarPdf: &Attachment{Filename: "b.pdf", ContentType: "application/pdf", Body: strings.NewReader("v2")},
		})
		require.NoError(t, err)
		assert.NotEqual(t, oldURL, updated.AadhaarPdfURL)
		assert.Contains(t, media.deleted, oldURL)
	})

	t.Run("Reassignment notifies the new team member", func(t *testing.T) {
		lead, err := service.Create(ctx, validCreateRequest("ORD-12"), Attachments{})
		require.NoError(t, err)

		member := "Tina Taker"
		_, err = service.Update(ctx, lead.ID, UpdateRequest{AssignTeamMember: &member}, Attachments{})
		require.NoError(t, err)

		var count int64
		require.NoError(t, db.Model(&models.Notification{}).Where("user_id = ?", other.ID).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Error - changing to a taken order id", func(t *testing.T) {
		lead, err := service.Create(ctx, validCreateRequest("ORD-13"), Attachments{})
		require.NoError(t, err)

		taken := "ORD-10"
		_, err = service.Update(ctx, lead.ID, UpdateRequest{OrderID: &taken}, Attachments{})
		require.Error(t, err)
		assert.True(t, domain.IsConflict(err))
	})

	t.Run("Error - not found", func(t *testing.T) {
		_, err := service.Update(ctx, "missing", UpdateRequest{}, Attachments{})
		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestAssignedLeads(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	service := NewService(db, nil, nil, nil)

	admin := createTestUser(t, db, "Alice Admin", "alice@crm.test", models.RoleAdmin)
	sam := createTestUser(t, db, "Sam Seller", "sam@crm.test", models.RoleEmployee)
	createTestUser(t, db, "Tina Taker", "tina@crm.test", models.RoleEmployee)

	_, err := service.Create(ctx, validCreateRequest("ORD-20"), Attachments{})
	require.NoError(t, err)

	req := validCreateRequest("ORD-21")
	req.AssignTeamMember = "Tina Taker"
	_, err = service.Create(ctx, req, Attachments{})
	require.NoError(t, err)

	t.Run("Admin sees all leads", func(t *testing.T) {
		leads, err := service.AssignedLeads(ctx, models.Actor{ID: admin.ID, Email: admin.Email, Role: admin.Role})
		require.NoError(t, err)
		assert.Len(t, leads, 2)
	})

	t.Run("Employee sees leads assigned by name", func(t *testing.T) {
		leads, err := service.AssignedLeads(ctx, models.Actor{ID: sam.ID, Email: sam.Email, Role: sam.Role})
		require.NoError(t, err)
		require.Len(t, leads, 1)
		assert.Equal(t, "ORD-20", leads[0].OrderID)
	})
}

func TestDeleteLead(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	media := &memUploader{}
	service := NewService(db, media, nil, nil)

	createTestUser(t, db, "Sam Seller", "sam@crm.test", models.RoleEmployee)

	t.Run("Removes row and stored documents", func(t *testing.T) {
		lead, err := service.Create(ctx, validCreateRequest("ORD-30"), Attachments{
			BillDoc: &Attachment{Filename: "bill.pdf", ContentType: "application/pdf", Body: strings.NewReader("pdf")},
		})
		require.NoError(t, err)

		require.NoError(t, service.Delete(ctx, lead.ID))
		assert.Contains(t, media.deleted, lead.BillDocURL)

		err = db.First(&models.Lead{}, "id = ?", lead.ID).Error
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("Error - not found", func(t *testing.T) {
		err := service.Delete(ctx, "missing")
		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestBulkImport(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	service := NewService(db, nil, nil, nil)

	createTestUser(t, db, "Sam Seller", "sam@crm.test", models.RoleEmployee)

	validRow := func(orderID string) ImportRow {
		req := validCreateRequest(orderID)
		req.DownloadStatus = "process"
		req.PaymentStatus = "pending"
		return ImportRow{CreateRequest: req}
	}

	t.Run("Mixed batch reports per-row results", func(t *testing.T) {
		badUser := validRow("ORD-41")
		badUser.EmployeeName = "Ghost"

		badSource := validRow("ORD-42")
		badSource.Source = "Telegram"

		missing := validRow("ORD-43")
		missing.ClientKycID = ""

		result, err := service.BulkImport(ctx, []ImportRow{
			validRow("ORD-40"), badUser, badSource, missing,
		})
		require.NoError(t, err)

		assert.Equal(t, 4, result.TotalProcessed)
		require.Len(t, result.Success, 1)
		assert.Equal(t, 2, result.Success[0].Row)
		require.Len(t, result.Failed, 3)
		assert.Contains(t, result.Failed[0].Error, `Employee Name "Ghost" not found`)
		assert.Contains(t, result.Failed[1].Error, `Invalid Source "Telegram"`)
		assert.Contains(t, result.Failed[2].Error, "Missing required fields: clientKycId")
		assert.Equal(t, "Bulk upload completed. 1 succeeded, 3 failed.", result.Message)
	})

	t.Run("Duplicate order ids within the batch fail", func(t *testing.T) {
		result, err := service.BulkImport(ctx, []ImportRow{
			validRow("ORD-50"), validRow("ORD-50"),
		})
		require.NoError(t, err)
		assert.Len(t, result.Success, 1)
		require.Len(t, result.Failed, 1)
		assert.Contains(t, result.Failed[0].Error, "Duplicate order ID: ORD-50")
	})

	t.Run("Other source requires otherSource", func(t *testing.T) {
		row := validRow("ORD-60")
		row.Source = "Other"
		result, err := service.BulkImport(ctx, []ImportRow{row})
		require.NoError(t, err)
		require.Len(t, result.Failed, 1)
		assert.Contains(t, result.Failed[0].Error, "Other Source is required")
	})

	t.Run("Error - empty batch", func(t *testing.T) {
		_, err := service.BulkImport(ctx, nil)
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	})
}
