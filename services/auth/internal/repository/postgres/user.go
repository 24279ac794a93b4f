package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ncsyvn/microservices-go/pkg/database"
	apperrors "github.com/ncsyvn/microservices-go/pkg/errors"
	"github.com/ncsyvn/microservices-go/services/auth/internal/domain"
)

const userColumns = `id, email, phone, password_hash, is_active, is_deleted, group_id, register_status,
	otp, otp_ttl, force_change_password, password_changed_at, created_at, modified_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	ctx, end := database.TraceQuery(ctx, "CreateUser", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		u.ID,
		u.Email,
		u.Phone,
		u.PasswordHash,
		u.IsActive,
		u.IsDeleted,
		u.GroupID,
		u.RegisterStatus,
		u.OTP,
		u.OTPTTL,
		u.ForceChangePassword,
		u.PasswordChangedAt,
		u.CreatedAt,
		u.ModifiedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND is_deleted = FALSE`

	return r.scanUser(ctx, "GetUserByID", query, id)
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1 AND is_deleted = FALSE`

	return r.scanUser(ctx, "GetUserByEmail", query, email)
}

// GetByPhone retrieves the first user matching any of phones with a register
// status of at least minStatus.
func (r *UserRepository) GetByPhone(ctx context.Context, phones []string, minStatus int) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE phone = ANY($1) AND register_status >= $2 AND is_deleted = FALSE
		ORDER BY created_at
		LIMIT 1`

	return r.scanUser(ctx, "GetUserByPhone", query, phones, minStatus)
}

// Update writes the mutable fields of u.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) (err error) {
	query := `
		UPDATE users
		SET email = $1, phone = $2, password_hash = $3, is_active = $4, group_id = $5,
		    register_status = $6, otp = $7, otp_ttl = $8, force_change_password = $9,
		    password_changed_at = $10, modified_at = $11
		WHERE id = $12 AND is_deleted = FALSE`

	ctx, end := database.TraceQuery(ctx, "UpdateUser", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query,
		u.Email,
		u.Phone,
		u.PasswordHash,
		u.IsActive,
		u.GroupID,
		u.RegisterStatus,
		u.OTP,
		u.OTPTTL,
		u.ForceChangePassword,
		u.PasswordChangedAt,
		u.ModifiedAt,
		u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("update user: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", u.ID)
	}

	return nil
}

// scanUser executes a query expected to return a single user row.
func (r *UserRepository) scanUser(ctx context.Context, op, query string, args ...any) (_ *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var u domain.User
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Email,
		&u.Phone,
		&u.PasswordHash,
		&u.IsActive,
		&u.IsDeleted,
		&u.GroupID,
		&u.RegisterStatus,
		&u.OTP,
		&u.OTPTTL,
		&u.ForceChangePassword,
		&u.PasswordChangedAt,
		&u.CreatedAt,
		&u.ModifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &u, nil
}

// isUniqueViolation reports whether err is a unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "23505")
}
