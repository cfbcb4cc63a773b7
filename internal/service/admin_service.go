package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/formation-lms-api/internal/models"
	"github.com/noah-isme/formation-lms-api/pkg/database"
	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
)

type adminUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	UpdateFormateurStatus(ctx context.Context, id string, status models.FormateurStatus) error
	ListAuditLogs(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

type accountCreator interface {
	CreateAccount(ctx context.Context, req models.CreateUserRequest) (*models.User, error)
}

type ownedFormationLister interface {
	ListIDsByFormateur(ctx context.Context, exec sqlx.ExtContext, formateurID string) ([]string, error)
}

type userCascade interface {
	DeleteFormation(ctx context.Context, exec sqlx.ExtContext, formationID string) ([]string, error)
	DeleteStudentData(ctx context.Context, exec sqlx.ExtContext, studentID string) ([]string, error)
	DeleteUser(ctx context.Context, exec sqlx.ExtContext, userID string) error
}

// AdminDeps groups the collaborators of AdminService.
type AdminDeps struct {
	Users      adminUserRepository
	Accounts   accountCreator
	Formations ownedFormationLister
	Cascade    userCascade
	Audit      auditWriter
	Tx         database.TxBeginner
	Files      FileStore
	Cache      *CacheService
}

// AdminService manages accounts on behalf of administrators.
type AdminService struct {
	deps      AdminDeps
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAdminService constructs an AdminService.
func NewAdminService(deps AdminDeps, validate *validator.Validate, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AdminService{deps: deps, validator: validate, logger: logger}
}

// ListUsers returns users matching filter with pagination metadata.
func (s *AdminService) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid role filter")
	}
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	users, total, err := s.deps.Users.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list users")
	}
	if users == nil {
		users = []models.User{}
	}
	return users, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// CreateUser creates an account of any role, ADMIN included.
func (s *AdminService) CreateUser(ctx context.Context, req models.CreateUserRequest, meta AuditMeta) (*models.User, error) {
	user, err := s.deps.Accounts.CreateAccount(ctx, req)
	if err != nil {
		return nil, err
	}
	recordAudit(ctx, s.deps.Audit, s.logger, meta, models.AuditActionUserCreate, "users", user.ID, map[string]interface{}{
		"role":  user.Role,
		"email": user.Email,
	})
	return user, nil
}

// UpdateFormateurStatus approves or rejects a formateur account.
func (s *AdminService) UpdateFormateurStatus(ctx context.Context, id string, req models.UpdateFormateurStatusRequest, meta AuditMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid status payload")
	}
	user, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}
	errNotFormateur := appErrors.Clone(appErrors.ErrValidation, "user is not a formateur")
	if user.Role != models.RoleFormateur {
		return nil, errNotFormateur
	}
	if err := s.deps.Users.UpdateFormateurStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFormateur
		}
		return nil, internalError(err, "failed to update formateur status")
	}
	previous := ""
	if user.FormateurStatus != nil {
		previous = string(*user.FormateurStatus)
	}
	status := req.Status
	user.FormateurStatus = &status
	recordAudit(ctx, s.deps.Audit, s.logger, meta, models.AuditActionFormateurStatus, "users", id, map[string]interface{}{
		"previous": previous,
		"status":   status,
	})
	s.deps.Cache.InvalidateAnalytics(ctx)
	return user, nil
}

// DeleteUser removes an account and everything it owns in one transaction.
// A formateur's formations are cascaded first; a student's learning records
// follow. Stored files are removed after commit.
func (s *AdminService) DeleteUser(ctx context.Context, actor Actor, id string, meta AuditMeta) error {
	if id == actor.ID {
		return appErrors.Clone(appErrors.ErrValidation, "you cannot delete your own account")
	}
	user, err := s.findUser(ctx, id)
	if err != nil {
		return err
	}

	var urls []string
	err = database.WithTx(ctx, s.deps.Tx, func(tx *sqlx.Tx) error {
		if user.Role == models.RoleFormateur {
			ids, err := s.deps.Formations.ListIDsByFormateur(ctx, tx, id)
			if err != nil {
				return err
			}
			for _, formationID := range ids {
				files, err := s.deps.Cascade.DeleteFormation(ctx, tx, formationID)
				if err != nil {
					return err
				}
				urls = append(urls, files...)
			}
		}
		files, err := s.deps.Cascade.DeleteStudentData(ctx, tx, id)
		if err != nil {
			return err
		}
		urls = append(urls, files...)
		return s.deps.Cascade.DeleteUser(ctx, tx, id)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return internalError(err, "failed to delete user")
	}

	if user.AvatarURL != nil {
		urls = append(urls, *user.AvatarURL)
	}
	removeStoredFiles(s.deps.Files, s.logger, urls...)
	recordAudit(ctx, s.deps.Audit, s.logger, meta, models.AuditActionUserDelete, "users", id, map[string]interface{}{
		"role":  user.Role,
		"email": user.Email,
	})
	s.deps.Cache.InvalidateAnalytics(ctx)
	return nil
}

// AuditLogs lists audit records matching filter.
func (s *AdminService) AuditLogs(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	logs, total, err := s.deps.Users.ListAuditLogs(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list audit logs")
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return logs, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func (s *AdminService) findUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.deps.Users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, internalError(err, "failed to load user")
	}
	return user, nil
}
