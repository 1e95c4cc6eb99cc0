package handlers

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	apimw "github.com/jordanlanch/leadflow/pkg/api/middleware"
	"github.com/jordanlanch/leadflow/pkg/auth"
	"github.com/jordanlanch/leadflow/pkg/database"
	"github.com/jordanlanch/leadflow/pkg/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	// Unique database name per test to ensure isolation
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, name, email string, role models.Role) *models.User {
	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)
	user := &models.User{
		FullName:     name,
		Email:        email,
		Phone:        "+15551234567",
		PasswordHash: hash,
		Role:         role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func actorFor(u *models.User) models.Actor {
	return models.Actor{ID: u.ID, Email: u.Email, Role: u.Role}
}

// newJSONRequest builds an Echo context for a handler call. The actor,
// when given, is set the way the JWT middleware would set it.
func newJSONRequest(method, target, body string, actor *models.Actor) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if actor != nil {
		c.Set(apimw.ContextKeyActor, *actor)
	}
	return c, rec
}
