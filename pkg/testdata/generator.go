package testdata

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"

	"github.com/jordanlanch/leadflow/pkg/auth"
	"github.com/jordanlanch/leadflow/pkg/models"
)

// GeneratorConfig configures fake CRM data generation.
type GeneratorConfig struct {
	Users       int
	Leads       int
	Assignments int
	// Password assigned to every generated user. Empty means "secret123".
	Password string
}

var leadSources = []models.LeadSource{
	models.SourceSurvey,
	models.SourceFacebook,
	models.SourceWebsite,
	models.SourceOther,
}

var leadStages = []models.LeadStage{
	models.StageLead,
	models.StageContacted,
	models.StageQualified,
	models.StageProposalMade,
	models.StageWon,
	models.StageLost,
	models.StageFridge,
}

var priorities = []models.AssignmentPriority{
	models.PriorityLow,
	models.PriorityMedium,
	models.PriorityHigh,
	models.PriorityUrgent,
}

var productNames = []string{
	"Starter Plan", "Growth Plan", "Enterprise Plan",
	"Compliance Audit", "Onboarding Package", "Premium Support",
}

// GenerateUsers inserts fake users. The first generated user is always an
// admin so a seeded database is immediately usable.
func GenerateUsers(db *gorm.DB, cfg GeneratorConfig) ([]models.User, error) {
	password := cfg.Password
	if password == "" {
		password = "secret123"
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing seed password: %w", err)
	}

	roles := []models.Role{models.RoleManager, models.RoleEmployee, models.RoleEmployee, models.RoleEmployee}
	users := make([]models.User, 0, cfg.Users)
	for i := 0; i < cfg.Users; i++ {
		role := models.RoleAdmin
		if i > 0 {
			role = roles[rand.Intn(len(roles))]
		}
		user := models.User{
			FullName:     gofakeit.Name(),
			Email:        fmt.Sprintf("user%d@%s", i, gofakeit.DomainName()),
			Phone:        gofakeit.Phone(),
			PasswordHash: hash,
			Role:         role,
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("creating seed user: %w", err)
		}
		users = append(users, user)
	}
	return users, nil
}

// GenerateLeads inserts fake leads referencing the given users by name.
func GenerateLeads(db *gorm.DB, cfg GeneratorConfig, users []models.User) ([]models.Lead, error) {
	if len(users) == 0 {
		return nil, fmt.Errorf("at least one user is required to generate leads")
	}

	leads := make([]models.Lead, 0, cfg.Leads)
	for i := 0; i < cfg.Leads; i++ {
		employee := users[rand.Intn(len(users))]
		member := users[rand.Intn(len(users))]
		created := gofakeit.DateRange(time.Now().AddDate(0, -6, 0), time.Now())

		source := leadSources[rand.Intn(len(leadSources))]
		lead := models.Lead{
			EmployeeName:       employee.FullName,
			Source:             source,
			LeadCreatedAt:      created.Format("2006-01-02"),
			Stage:              leadStages[rand.Intn(len(leadStages))],
			ClientName:         gofakeit.Name(),
			ClientCompanyName:  gofakeit.Company(),
			ProductName:        productNames[rand.Intn(len(productNames))],
			AssignTeamMember:   member.FullName,
			Email:              gofakeit.Email(),
			Phone:              gofakeit.Phone(),
			OrderID:            fmt.Sprintf("ORD-%s-%04d", created.Format("200601"), i),
			OrderDate:          created.AddDate(0, 0, rand.Intn(10)).Format("2006-01-02"),
			ClientAddress:      gofakeit.Address().Address,
			ClientKycID:        fmt.Sprintf("KYC-%06d", rand.Intn(1000000)),
			KycPin:             fmt.Sprintf("%04d", rand.Intn(10000)),
			ProcessedBy:        employee.FullName,
			ProcessedAt:        created.AddDate(0, 0, rand.Intn(14)).Format("2006-01-02"),
			QuotedPrice:        float64(gofakeit.Number(500, 50000)),
			CompanyNameAddress: gofakeit.Address().Address,
		}
		if source == models.SourceOther {
			lead.OtherSource = gofakeit.BuzzWord()
		}
		if err := db.Create(&lead).Error; err != nil {
			return nil, fmt.Errorf("creating seed lead: %w", err)
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

// GenerateAssignments inserts fake assignments over the given leads, each
// with a creation history entry, mirroring what the workflow writes.
func GenerateAssignments(db *gorm.DB, cfg GeneratorConfig, users []models.User, leads []models.Lead) error {
	if len(users) < 2 || len(leads) == 0 {
		return fmt.Errorf("users and leads are required to generate assignments")
	}

	n := cfg.Assignments
	if n > len(leads) {
		n = len(leads)
	}
	for i := 0; i < n; i++ {
		lead := leads[i]
		assigner := users[0]
		assignee := users[1+rand.Intn(len(users)-1)]

		a := models.Assignment{
			LeadID:            lead.ID,
			LeadClientName:    lead.ClientName,
			LeadClientCompany: lead.ClientCompanyName,
			LeadProductName:   lead.ProductName,
			LeadQuotedPrice:   lead.QuotedPrice,
			AssignedToID:      assignee.ID,
			AssignedToName:    assignee.FullName,
			AssignedByID:      assigner.ID,
			AssignedByName:    assigner.FullName,
			Status:            models.StatusNew,
			Priority:          priorities[rand.Intn(len(priorities))],
			IsActive:          true,
		}
		if err := db.Create(&a).Error; err != nil {
			return fmt.Errorf("creating seed assignment: %w", err)
		}

		history := models.AssignmentHistory{
			AssignmentID:  a.ID,
			ChangedByID:   assigner.ID,
			ChangedByName: assigner.FullName,
			Action:        models.ActionAssignmentCreated,
			Comment:       fmt.Sprintf("Assigned to %s", assignee.FullName),
		}
		if err := db.Create(&history).Error; err != nil {
			return fmt.Errorf("creating seed history: %w", err)
		}
	}
	return nil
}
