package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/formation-lms-api/internal/models"
	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
	"github.com/noah-isme/formation-lms-api/pkg/upload"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindPublicProfile(ctx context.Context, id string) (*models.PublicProfile, error)
	UpdateName(ctx context.Context, id, name string) error
	UpdateAvatar(ctx context.Context, id string, avatarURL *string) error
}

// AvatarConfig bounds avatar uploads.
type AvatarConfig struct {
	MaxBytes int64
	Size     int
}

// UserService exposes self-service profile operations.
type UserService struct {
	repo      userRepository
	files     FileStore
	validator *validator.Validate
	logger    *zap.Logger
	avatar    AvatarConfig
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, files FileStore, validate *validator.Validate, logger *zap.Logger, avatar AvatarConfig) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if avatar.MaxBytes <= 0 {
		avatar.MaxBytes = 5 << 20
	}
	if avatar.Size <= 0 {
		avatar.Size = 256
	}
	return &UserService{repo: repo, files: files, validator: validate, logger: logger, avatar: avatar}
}

// Profile returns the caller's own account.
func (s *UserService) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, internalError(err, "failed to load user")
	}
	return user, nil
}

// UpdateProfile changes the caller's display name.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid profile payload")
	}
	if err := s.repo.UpdateName(ctx, userID, req.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, internalError(err, "failed to update profile")
	}
	return s.Profile(ctx, userID)
}

// UploadAvatar sniffs the image, stores a square PNG thumbnail and replaces the previous avatar.
func (s *UserService) UploadAvatar(ctx context.Context, userID string, r io.Reader) (*models.User, error) {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	data, err := upload.ReadLimited(r, s.avatar.MaxBytes)
	if err != nil {
		return nil, uploadError(err)
	}
	if _, err := upload.Detect(data, upload.ImageMIMEs); err != nil {
		return nil, uploadError(err)
	}
	thumb, err := upload.SquareThumbnail(data, s.avatar.Size)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "image could not be decoded")
	}

	rel := fmt.Sprintf("avatars/%s-%s.png", userID, uuid.NewString()[:8])
	if _, err := s.files.Save(rel, thumb); err != nil {
		return nil, internalError(err, "failed to store avatar")
	}
	url := s.files.PublicURL(rel)
	if err := s.repo.UpdateAvatar(ctx, userID, &url); err != nil {
		removeStoredFiles(s.files, s.logger, url)
		return nil, internalError(err, "failed to update avatar")
	}
	if user.AvatarURL != nil && *user.AvatarURL != url {
		removeStoredFiles(s.files, s.logger, *user.AvatarURL)
	}

	user.AvatarURL = &url
	return user, nil
}

// PublicProfile returns the subset of a user visible to any authenticated caller.
func (s *UserService) PublicProfile(ctx context.Context, id string) (*models.PublicProfile, error) {
	profile, err := s.repo.FindPublicProfile(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, internalError(err, "failed to load user")
	}
	return profile, nil
}
