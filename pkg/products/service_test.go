package products

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

func TestProducts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	media := &memUploader{}
	service := NewService(db, media, nil)

	t.Run("Create with image", func(t *testing.T) {
		p, err := service.Create(ctx, "Starter Plan", "Entry level offering", &Image{
			Filename: "plan.png", ContentType: "image/png", Body: strings.NewReader("png"),
		})
		require.NoError(t, err)
		assert.Contains(t, p.ImageURL, "crm/products/images")
	})

	t.Run("Error - missing fields", func(t *testing.T) {
		_, err := service.Create(ctx, "", "desc", nil)
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("List newest first", func(t *testing.T) {
		_, err := service.Create(ctx, "Pro Plan", "Advanced offering", nil)
		require.NoError(t, err)

		products, total, err := service.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, products, 2)
	})

	t.Run("Update replaces the image", func(t *testing.T) {
		p, err := service.Create(ctx, "Temp Plan", "To be updated", &Image{
			Filename: "v1.png", ContentType: "image/png", Body: strings.NewReader("1"),
		})
		require.NoError(t, err)
		oldURL := p.ImageURL

		updated, err := service.Update(ctx, p.ID, "Temp Plan v2", "", &Image{
			Filename: "v2.png", ContentType: "image/png", Body: strings.NewReader("2"),
		})
		require.NoError(t, err)
		assert.Equal(t, "Temp Plan v2", updated.Name)
		assert.Equal(t, "To be updated", updated.Description)
		assert.NotEqual(t, oldURL, updated.ImageURL)
		assert.Contains(t, media.deleted, oldURL)
	})

	t.Run("Delete removes image and row", func(t *testing.T) {
		p, err := service.Create(ctx, "Doomed Plan", "Gone soon", &Image{
			Filename: "x.png", ContentType: "image/png", Body: strings.NewReader("x"),
		})
		require.NoError(t, err)

		require.NoError(t, service.Delete(ctx, p.ID))
		assert.Contains(t, media.deleted, p.ImageURL)

		err = db.First(&models.Product{}, "id = ?", p.ID).Error
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("Error - get missing", func(t *testing.T) {
		_, err := service.Get(ctx, "missing")
		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))
	})
}
