package products

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
	"github.com/jordanlanch/leadflow/pkg/storage"
)

// Service handles the product catalog
type Service struct {
	db    *gorm.DB
	media storage.Uploader
	log   logger.Logger
}

// NewService creates a new product service.
func NewService(db *gorm.DB, media storage.Uploader, log logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{db: db, media: media, log: log}
}

// Image is an uploaded product image.
type Image struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// List returns all products, newest first, with a total count.
func (s *Service) List(ctx context.Context) ([]models.Product, int64, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&products).Error; err != nil {
		return nil, 0, domain.NewInternalError(fmt.Errorf("failed to list products: %w", err))
	}
	return products, int64(len(products)), nil
}

// Get returns a single product by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Product")
		}
		return nil, domain.NewInternalError(fmt.Errorf("failed to load product: %w", err))
	}
	return &p, nil
}

// Create stores a new catalog product with an optional image.
func (s *Service) Create(ctx context.Context, name, description string, image *Image) (*models.Product, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(description) == "" {
		return nil, domain.NewValidationError("Product name and description are required")
	}

	p := &models.Product{Name: name, Description: description}

	if image != nil {
		url, err := s.uploadImage(ctx, image)
		if err != nil {
			return nil, err
		}
		p.ImageURL = url
	}

	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to create product: %w", err))
	}
	return p, nil
}

// Update applies a partial update. A new image replaces, and deletes, the
// old one.
func (s *Service) Update(ctx context.Context, id, name, description string, image *Image) (*models.Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if name != "" {
		p.Name = name
	}
	if description != "" {
		p.Description = description
	}

	if image != nil {
		if p.ImageURL != "" && s.media != nil {
			if err := s.media.Delete(ctx, p.ImageURL); err != nil {
				s.log.Warn("failed to delete replaced product image", "product_id", p.ID, "error", err)
			}
		}
		url, err := s.uploadImage(ctx, image)
		if err != nil {
			return nil, err
		}
		p.ImageURL = url
	}

	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to update product: %w", err))
	}
	return p, nil
}

// Delete removes a product and its stored image.
func (s *Service) Delete(ctx context.Context, id string) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if p.ImageURL != "" && s.media != nil {
		if err := s.media.Delete(ctx, p.ImageURL); err != nil {
			s.log.Warn("failed to delete product image", "product_id", p.ID, "error", err)
		}
	}

	if err := s.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id).Error; err != nil {
		return domain.NewInternalError(fmt.Errorf("failed to delete product: %w", err))
	}
	return nil
}

func (s *Service) uploadImage(ctx context.Context, image *Image) (string, error) {
	if s.media == nil {
		return "", domain.NewInternalError(errors.New("media storage not configured"))
	}
	url, err := s.media.Upload(ctx, storage.FolderProductImages, image.Filename, image.ContentType, image.Body)
	if err != nil {
		return "", domain.NewInternalError(fmt.Errorf("failed to upload product image: %w", err))
	}
	return url, nil
}
