package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/formation-lms-api/internal/models"
)

const userColumns = `id, name, email, password_hash, role, formateur_status, avatar_url, created_at, updated_at`

// UserRepository provides database access for user management.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail looks a user up by email, case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return getOne[models.User](ctx, r.db, "find user by email",
		`SELECT `+userColumns+` FROM users WHERE email = $1 LIMIT 1`, strings.ToLower(email))
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return getOne[models.User](ctx, r.db, "find user by id",
		`SELECT `+userColumns+` FROM users WHERE id = $1 LIMIT 1`, id)
}

// FindPublicProfile returns the externally visible fields of a user.
func (r *UserRepository) FindPublicProfile(ctx context.Context, id string) (*models.PublicProfile, error) {
	return getOne[models.PublicProfile](ctx, r.db, "find public profile",
		`SELECT id, name, role, avatar_url FROM users WHERE id = $1 LIMIT 1`, id)
}

var userSorts = map[string]bool{"email": true, "name": true, "created_at": true, "updated_at": true}

// List pages through users matching filter and returns the unpaged total.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	where := &whereBuilder{}
	if filter.Role != nil {
		where.add("role = ?", *filter.Role)
	}
	if filter.FormateurStatus != nil {
		where.add("formateur_status = ?", *filter.FormateurStatus)
	}
	if filter.Search != "" {
		where.add("(LOWER(email) LIKE ? OR LOWER(name) LIKE ?)", "%"+strings.ToLower(filter.Search)+"%")
	}
	baseQuery := `FROM users WHERE 1=1` + where.clause()

	sortBy := filter.SortBy
	if !userSorts[sortBy] {
		sortBy = "created_at"
	}
	_, pageSize, offset := normalizePage(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", userColumns, baseQuery, sortBy, normalizeOrder(filter.SortOrder), pageSize, offset)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, listQuery, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	return users, total, nil
}

// Create inserts a new user. The email is stored lowercased.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, name, email, password_hash, role, formateur_status, avatar_url, created_at, updated_at) VALUES (:id, :name, :email, :password_hash, :role, :formateur_status, :avatar_url, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateName changes the display name of a user.
func (r *UserRepository) UpdateName(ctx context.Context, id, name string) error {
	const query = `UPDATE users SET name = $2, updated_at = $3 WHERE id = $1`
	return execOne(ctx, r.db, "update user name", query, id, name, time.Now().UTC())
}

// UpdateAvatar sets or clears the avatar URL.
func (r *UserRepository) UpdateAvatar(ctx context.Context, id string, avatarURL *string) error {
	const query = `UPDATE users SET avatar_url = $2, updated_at = $3 WHERE id = $1`
	return execOne(ctx, r.db, "update avatar", query, id, avatarURL, time.Now().UTC())
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	return execOne(ctx, r.db, "update password", query, id, passwordHash, updatedAt)
}

// UpdateFormateurStatus records the admin decision on a formateur account.
func (r *UserRepository) UpdateFormateurStatus(ctx context.Context, id string, status models.FormateurStatus) error {
	const query = `UPDATE users SET formateur_status = $2, updated_at = $3 WHERE id = $1 AND role = 'FORMATEUR'`
	return execOne(ctx, r.db, "update formateur status", query, id, status, time.Now().UTC())
}
