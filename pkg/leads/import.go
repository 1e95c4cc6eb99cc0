package leads

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/models"
)

// ImportRow is one lead in a bulk upload. Documents arrive as URLs rather
// than file uploads.
type ImportRow struct {
	CreateRequest
	AadhaarPdfURL  string `json:"aadhaarPdfUrl"`
	PanPdfURL      string `json:"panPdfUrl"`
	OptionalPdfURL string `json:"optionalPdfUrl"`
	ClientImageURL string `json:"clientImageUrl"`
	BillDocURL     string `json:"billDocUrl"`
}

// RowResult reports the outcome of a single imported row. Row numbers are
// spreadsheet rows: row 1 is the header, data starts at row 2.
type RowResult struct {
	Row        int    `json:"row"`
	ClientName string `json:"clientName"`
	ID         string `json:"id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// BulkResult summarizes a bulk upload.
type BulkResult struct {
	Message        string      `json:"message"`
	Success        []RowResult `json:"success"`
	Failed         []RowResult `json:"failed"`
	TotalProcessed int         `json:"totalProcessed"`
}

// BulkImport validates and stores a batch of leads. Rows are independent:
// a failed row never blocks the rest, and duplicate order ids are checked
// against both the database and earlier rows in the same batch.
func (s *Service) BulkImport(ctx context.Context, rows []ImportRow) (*BulkResult, error) {
	if len(rows) == 0 {
		return nil, domain.NewValidationError("No leads data provided")
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Find(&users).Error; err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to load users: %w", err))
	}
	userNames := make([]string, 0, len(users))
	knownNames := make(map[string]bool, len(users))
	for _, u := range users {
		userNames = append(userNames, u.FullName)
		knownNames[u.FullName] = true
	}

	var existing []models.Lead
	if err := s.db.WithContext(ctx).Select("order_id").Find(&existing).Error; err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to load order ids: %w", err))
	}
	seenOrderIDs := make(map[string]bool, len(existing))
	for _, l := range existing {
		seenOrderIDs[l.OrderID] = true
	}

	result := &BulkResult{
		Success:        []RowResult{},
		Failed:         []RowResult{},
		TotalProcessed: len(rows),
	}

	for i, row := range rows {
		rowNum := i + 2 // row 1 is the header

		fail := func(clientName, msg string) {
			if clientName == "" {
				clientName = "Unknown"
			}
			result.Failed = append(result.Failed, RowResult{Row: rowNum, ClientName: clientName, Error: msg})
		}

		if seenOrderIDs[row.OrderID] {
			fail(row.ClientName, fmt.Sprintf("Duplicate order ID: %s. A lead with this order ID already exists.", row.OrderID))
			continue
		}

		if missing := missingImportFields(row); len(missing) > 0 {
			fail(row.ClientName, "Missing required fields: "+strings.Join(missing, ", "))
			continue
		}

		if !knownNames[row.EmployeeName] {
			fail(row.ClientName, fmt.Sprintf("Employee Name %q not found. Available users: %s", row.EmployeeName, strings.Join(userNames, ", ")))
			continue
		}
		if !knownNames[row.AssignTeamMember] {
			fail(row.ClientName, fmt.Sprintf("Assign Team Member %q not found. Available users: %s", row.AssignTeamMember, strings.Join(userNames, ", ")))
			continue
		}
		if !knownNames[row.ProcessedBy] {
			fail(row.ClientName, fmt.Sprintf("Processed By %q not found. Available users: %s", row.ProcessedBy, strings.Join(userNames, ", ")))
			continue
		}

		if !models.ValidLeadSource(models.LeadSource(row.Source)) {
			fail(row.ClientName, fmt.Sprintf("Invalid Source %q. Must be one of: Survey, Facebook, Website, Other", row.Source))
			continue
		}
		if !models.ValidLeadStage(models.LeadStage(row.Stage)) {
			fail(row.ClientName, fmt.Sprintf("Invalid Stage %q. Must be one of: Lead, Contacted, Qualified, Proposal Made, Won, Lost, Fridge", row.Stage))
			continue
		}
		if !models.ValidDownloadStatus(models.DownloadStatus(row.DownloadStatus)) {
			fail(row.ClientName, fmt.Sprintf("Invalid Download Status %q. Must be one of: completed, not_complete, process", row.DownloadStatus))
			continue
		}
		if !models.ValidPaymentStatus(models.PaymentStatus(row.PaymentStatus)) {
			fail(row.ClientName, fmt.Sprintf("Invalid Payment Status %q. Must be one of: paid, pending, failed, other", row.PaymentStatus))
			continue
		}
		if !models.ValidBillingSentStatus(models.BillingSentStatus(row.BillingSentStatus)) {
			fail(row.ClientName, fmt.Sprintf("Invalid Billing Sent Status %q. Must be one of: sent, not_sent, process", row.BillingSentStatus))
			continue
		}
		if row.Source == string(models.SourceOther) && strings.TrimSpace(row.OtherSource) == "" {
			fail(row.ClientName, `Other Source is required when Source is "Other"`)
			continue
		}

		l := &models.Lead{
			EmployeeName:      row.EmployeeName,
			Source:            models.LeadSource(row.Source),
			OtherSource:       row.OtherSource,
			LeadCreatedAt:     row.LeadCreatedAt,
			ExpectedCloseDate: row.ExpectedCloseDate,
			LastContactedAt:   row.LastContactedAt,
			Stage:             models.LeadStage(row.Stage),
			Comment:           row.Comment,
			Remarks:           row.Remarks,

			ClientName:        row.ClientName,
			ClientCompanyName: row.ClientCompanyName,
			ProductName:       row.ProductName,
			AssignTeamMember:  row.AssignTeamMember,
			Email:             row.Email,
			Phone:             row.Phone,
			OrderID:           row.OrderID,
			OrderDate:         row.OrderDate,
			ClientAddress:     row.ClientAddress,
			ClientKycID:       row.ClientKycID,
			KycPin:            row.KycPin,
			DownloadStatus:    models.DownloadStatus(row.DownloadStatus),
			ProcessedBy:       row.ProcessedBy,
			ProcessedAt:       row.ProcessedAt,

			AadhaarPdfURL:  row.AadhaarPdfURL,
			PanPdfURL:      row.PanPdfURL,
			OptionalPdfURL: row.OptionalPdfURL,
			ClientImageURL: row.ClientImageURL,

			QuotedPrice:        row.QuotedPrice,
			CompanyName:        row.CompanyName,
			CompanyNameAddress: row.CompanyNameAddress,
			ReferenceBy:        row.ReferenceBy,
			PaymentStatus:      models.PaymentStatus(row.PaymentStatus),
			PaymentStatusNote:  row.PaymentStatusNote,
			InvoiceNumber:      row.InvoiceNumber,
			InvoiceDate:        row.InvoiceDate,
			BillingSentStatus:  models.BillingSentStatus(row.BillingSentStatus),
			BillingDate:        row.BillingDate,
			BillDocURL:         row.BillDocURL,

			AssignmentStatus: "new",
		}

		if err := s.db.WithContext(ctx).Create(l).Error; err != nil {
			fail(row.ClientName, "Failed to create lead")
			s.log.Warn("bulk import row failed", "row", rowNum, "error", err)
			continue
		}

		seenOrderIDs[l.OrderID] = true
		s.notifyTeamMember(ctx, l)

		result.Success = append(result.Success, RowResult{Row: rowNum, ClientName: l.ClientName, ID: l.ID})
	}

	result.Message = fmt.Sprintf("Bulk upload completed. %d succeeded, %d failed.", len(result.Success), len(result.Failed))
	return result, nil
}

func missingImportFields(row ImportRow) []string {
	fields := []requiredField{
		{"employeeName", row.EmployeeName},
		{"source", row.Source},
		{"leadCreatedAt", row.LeadCreatedAt},
		{"stage", row.Stage},
		{"clientName", row.ClientName},
		{"clientCompanyName", row.ClientCompanyName},
		{"productName", row.ProductName},
		{"assignTeamMember", row.AssignTeamMember},
		{"email", row.Email},
		{"phone", row.Phone},
		{"orderId", row.OrderID},
		{"orderDate", row.OrderDate},
		{"clientAddress", row.ClientAddress},
		{"clientKycId", row.ClientKycID},
		{"kycPin", row.KycPin},
		{"downloadStatus", row.DownloadStatus},
		{"processedBy", row.ProcessedBy},
		{"processedAt", row.ProcessedAt},
		{"quotedPrice", quotedPriceValue(row.QuotedPrice)},
		{"companyNameAddress", row.CompanyNameAddress},
		{"paymentStatus", row.PaymentStatus},
		{"billingSentStatus", row.BillingSentStatus},
	}

	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// ParseWorkbook reads lead rows from an .xlsx workbook. The first sheet is
// used; row 1 must be a header of field names (employeeName, source, ...)
// and each following row becomes one ImportRow.
func ParseWorkbook(r io.Reader) ([]ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, domain.NewValidationError("Invalid .xlsx workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.NewValidationError("Workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to read sheet: %w", err))
	}
	if len(rows) < 2 {
		return nil, domain.NewValidationError("Workbook has no data rows")
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	out := make([]ImportRow, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		values := make(map[string]string, len(header))
		for i, name := range header {
			if name == "" || i >= len(cells) {
				continue
			}
			values[name] = strings.TrimSpace(cells[i])
		}
		out = append(out, rowFromValues(values))
	}
	return out, nil
}

func rowFromValues(v map[string]string) ImportRow {
	price, _ := strconv.ParseFloat(v["quotedPrice"], 64)

	return ImportRow{
		CreateRequest: CreateRequest{
			EmployeeName:      v["employeeName"],
			Source:            v["source"],
			OtherSource:       v["otherSource"],
			LeadCreatedAt:     v["leadCreatedAt"],
			ExpectedCloseDate: v["expectedCloseDate"],
			LastContactedAt:   v["lastContactedAt"],
			Stage:             v["stage"],
			Comment:           v["comment"],
			Remarks:           v["remarks"],

			ClientName:        v["clientName"],
			ClientCompanyName: v["clientCompanyName"],
			ProductName:       v["productName"],
			AssignTeamMember:  v["assignTeamMember"],
			Email:             v["email"],
			Phone:             v["phone"],
			OrderID:           v["orderId"],
			OrderDate:         v["orderDate"],
			ClientAddress:     v["clientAddress"],
			ClientKycID:       v["clientKycId"],
			KycPin:            v["kycPin"],
			DownloadStatus:    v["downloadStatus"],
			ProcessedBy:       v["processedBy"],
			ProcessedAt:       v["processedAt"],

			QuotedPrice:        price,
			CompanyName:        v["companyName"],
			CompanyNameAddress: v["companyNameAddress"],
			ReferenceBy:        v["referenceBy"],
			PaymentStatus:      v["paymentStatus"],
			PaymentStatusNote:  v["paymentStatusNote"],
			InvoiceNumber:      v["invoiceNumber"],
			InvoiceDate:        v["invoiceDate"],
			BillingSentStatus:  v["billingSentStatus"],
			BillingDate:        v["billingDate"],
		},
		AadhaarPdfURL:  v["aadhaarPdfUrl"],
		PanPdfURL:      v["panPdfUrl"],
		OptionalPdfURL: v["optionalPdfUrl"],
		ClientImageURL: v["clientImageUrl"],
		BillDocURL:     v["billDocUrl"],
	}
}
