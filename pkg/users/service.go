package users

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gorm.io/gorm"

	"github.com/jordanlanch/leadflow/pkg/auth"
	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/logger"
	"github.com/jordanlanch/leadflow/pkg/models"
	"github.com/jordanlanch/leadflow/pkg/phone"
	"github.com/jordanlanch/leadflow/pkg/storage"
)

// Service handles user accounts and authentication
type Service struct {
	db             *gorm.DB
	media          storage.Uploader
	log            logger.Logger
	jwtSecret      string
	jwtExpiryHours int
}

// NewService creates a new user service.
func NewService(db *gorm.DB, media storage.Uploader, log logger.Logger, jwtSecret string, jwtExpiryHours int) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{db: db, media: media, log: log, jwtSecret: jwtSecret, jwtExpiryHours: jwtExpiryHours}
}

// CreateRequest carries the fields for an admin-created user.
type CreateRequest struct {
	FullName string      `json:"fullName" form:"fullName" validate:"required,min=2"`
	Email    string      `json:"email" form:"email" validate:"required,email"`
	Phone    string      `json:"phone" form:"phone" validate:"required"`
	Password string      `json:"password" form:"password" validate:"required,min=6"`
	Role     models.Role `json:"role" form:"role"`
	Avatar   *Upload
}

// UpdateRequest carries a partial user update. Empty fields stay unchanged.
type UpdateRequest struct {
	FullName string      `json:"fullName" form:"fullName"`
	Email    string      `json:"email" form:"email"`
	Phone    string      `json:"phone" form:"phone"`
	Password string      `json:"password" form:"password"`
	Role     models.Role `json:"role" form:"role"`
	Avatar   *Upload
}

// Upload is an avatar image accompanying a create or update.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Register creates a new account and is open to unauthenticated callers,
// matching the first-user bootstrap flow. Role defaults to employee.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.UserInfo, error) {
	if err := s.checkEmailFree(ctx, req.Email, ""); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to hash password: %w", err))
	}

	role := req.Role
	if role == "" {
		role = models.RoleEmployee
	}
	if !models.ValidRole(role) {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid role: %s", role))
	}

	user := &models.User{
		FullName:     req.FullName,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         role,
		ImageURL:     req.ImageURL,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to create user: %w", err))
	}
	return userInfo(user), nil
}

// Login verifies credentials and issues a JWT.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", req.Email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewUnauthorizedError()
		}
		return nil, domain.NewInternalError(fmt.Errorf("failed to load user: %w", err))
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, domain.NewUnauthorizedError()
	}

	token, err := auth.GenerateJWT(user.ID, user.Email, user.Role, s.jwtSecret, s.jwtExpiryHours)
	if err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to sign token: %w", err))
	}

	return &models.AuthResponse{Token: token, User: userInfo(&user)}, nil
}

// List returns all users without password hashes.
func (s *Service) List(ctx context.Context) ([]models.UserInfo, int64, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, 0, domain.NewInternalError(fmt.Errorf("failed to list users: %w", err))
	}

	out := make([]models.UserInfo, 0, len(users))
	for i := range users {
		out = append(out, *userInfo(&users[i]))
	}
	return out, int64(len(out)), nil
}

// Get returns a single user by id.
func (s *Service) Get(ctx context.Context, id string) (*models.UserInfo, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return userInfo(user), nil
}

// Create adds a user on behalf of an admin. The contact phone must parse as
// a real number.
func (s *Service) Create(ctx context.Context, actor models.Actor, req CreateRequest) (*models.UserInfo, error) {
	if actor.Role != models.RoleAdmin {
		return nil, domain.NewForbiddenError("Admin access required")
	}

	if !phone.IsValid(req.Phone, "") {
		return nil, domain.NewValidationError("invalid phone number")
	}

	if err := s.checkEmailFree(ctx, req.Email, ""); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to hash password: %w", err))
	}

	role := req.Role
	if role == "" {
		role = models.RoleEmployee
	}
	if !models.ValidRole(role) {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid role: %s", role))
	}

	user := &models.User{
		FullName:     req.FullName,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         role,
	}

	if req.Avatar != nil {
		url, err := s.uploadAvatar(ctx, req.Avatar)
		if err != nil {
			return nil, err
		}
		user.ImageURL = url
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to create user: %w", err))
	}
	return userInfo(user), nil
}

// Update applies a partial update. Only admins may change roles, and nobody
// can elevate their own privileges.
func (s *Service) Update(ctx context.Context, actor models.Actor, id string, req UpdateRequest) (*models.UserInfo, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Role != "" && req.Role != user.Role && actor.Role != models.RoleAdmin {
		return nil, domain.NewForbiddenError("Only admins can change user roles")
	}
	if req.Role == models.RoleAdmin && actor.ID == id && actor.Role != models.RoleAdmin {
		return nil, domain.NewForbiddenError("Cannot elevate your own privileges")
	}
	if req.Role != "" && !models.ValidRole(req.Role) {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid role: %s", req.Role))
	}

	if req.Email != "" && req.Email != user.Email {
		if err := s.checkEmailFree(ctx, req.Email, user.ID); err != nil {
			return nil, err
		}
		user.Email = req.Email
	}

	if req.FullName != "" {
		user.FullName = req.FullName
	}
	if req.Phone != "" {
		if !phone.IsValid(req.Phone, "") {
			return nil, domain.NewValidationError("invalid phone number")
		}
		user.Phone = req.Phone
	}
	if req.Role != "" {
		user.Role = req.Role
	}

	if req.Avatar != nil {
		if user.ImageURL != "" && s.media != nil {
			if err := s.media.Delete(ctx, user.ImageURL); err != nil {
				s.log.Warn("failed to delete replaced avatar", "user_id", user.ID, "error", err)
			}
		}
		url, err := s.uploadAvatar(ctx, req.Avatar)
		if err != nil {
			return nil, err
		}
		user.ImageURL = url
	}

	if req.Password != "" {
		if len(req.Password) < 6 {
			return nil, domain.NewValidationError("Password must be at least 6 characters")
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			return nil, domain.NewInternalError(fmt.Errorf("failed to hash password: %w", err))
		}
		user.PasswordHash = hash
	}

	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to update user: %w", err))
	}
	return userInfo(user), nil
}

// Delete removes a user account. Admin only, and never the caller's own.
func (s *Service) Delete(ctx context.Context, actor models.Actor, id string) error {
	if actor.Role != models.RoleAdmin {
		return domain.NewForbiddenError("Admin access required")
	}
	if actor.ID == id {
		return domain.NewForbiddenError("Cannot delete your own account")
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	if user.ImageURL != "" && s.media != nil {
		if err := s.media.Delete(ctx, user.ImageURL); err != nil {
			s.log.Warn("failed to delete avatar", "user_id", user.ID, "error", err)
		}
	}

	if err := s.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id).Error; err != nil {
		return domain.NewInternalError(fmt.Errorf("failed to delete user: %w", err))
	}
	return nil
}

func (s *Service) load(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("User")
		}
		return nil, domain.NewInternalError(fmt.Errorf("failed to load user: %w", err))
	}
	return &user, nil
}

func (s *Service) checkEmailFree(ctx context.Context, email, excludeID string) error {
	query := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return domain.NewInternalError(fmt.Errorf("failed to check email: %w", err))
	}
	if count > 0 {
		return domain.NewConflictError("Email already exists")
	}
	return nil
}

func (s *Service) uploadAvatar(ctx context.Context, up *Upload) (string, error) {
	if s.media == nil {
		return "", domain.NewInternalError(errors.New("media storage not configured"))
	}
	url, err := s.media.Upload(ctx, storage.FolderUserAvatars, up.Filename, up.ContentType, up.Body)
	if err != nil {
		return "", domain.NewInternalError(fmt.Errorf("failed to upload avatar: %w", err))
	}
	return url, nil
}

func userInfo(u *models.User) *models.UserInfo {
	return &models.UserInfo{
		ID:       u.ID,
		FullName: u.FullName,
		Email:    u.Email,
		Phone:    u.Phone,
		Role:     u.Role,
		ImageURL: u.ImageURL,
	}
}
