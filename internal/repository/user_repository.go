package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SamiTelo/API-Football/internal/models"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailTaken          = errors.New("email already registered")
	ErrRefreshHashMismatch = errors.New("refresh token hash mismatch")
	ErrChallengeNotFound   = errors.New("two factor challenge not found")
)

const uniqueViolation = "23505"

const userColumns = `
	u.id, u.email, u.first_name, u.last_name, u.password_hash, u.is_verified,
	u.refresh_token_hash, u.two_factor_code_hash, u.two_factor_expiry, u.two_factor_attempts,
	u.created_at, u.updated_at,
	r.id, r.name, r.requires_two_factor,
	COALESCE(array_agg(p.name ORDER BY p.name) FILTER (WHERE p.name IS NOT NULL), '{}')
`

const userFrom = `
	FROM users u
	LEFT JOIN roles r ON r.id = u.role_id
	LEFT JOIN role_permissions rp ON rp.role_id = r.id
	LEFT JOIN permissions p ON p.id = rp.permission_id
`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts user and fills in its generated id and timestamps.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	const query = `
		INSERT INTO users (
			email, first_name, last_name, password_hash, is_verified, role_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NOW(), NOW()
		)
		RETURNING id, created_at, updated_at
	`

	var roleID *int64
	if user.Role != nil {
		roleID = &user.Role.ID
	}

	err := r.pool.QueryRow(ctx, query,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.IsVerified,
		roleID,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	query := `SELECT ` + userColumns + userFrom + ` WHERE u.email = $1 GROUP BY u.id, r.id`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (models.User, error) {
	query := `SELECT ` + userColumns + userFrom + ` WHERE u.id = $1 GROUP BY u.id, r.id`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) MarkVerified(ctx context.Context, id int64) error {
	const query = `UPDATE users SET is_verified = TRUE, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, ErrUserNotFound, query, id)
}

// UpdatePassword replaces the password hash and revokes the refresh token and any pending 2FA challenge.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash []byte) error {
	const query = `
		UPDATE users
		SET password_hash = $2,
		    refresh_token_hash = NULL,
		    two_factor_code_hash = NULL,
		    two_factor_expiry = NULL,
		    two_factor_attempts = 0,
		    updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, ErrUserNotFound, query, id, passwordHash)
}

// SetRefreshHash overwrites the stored refresh hash, invalidating every earlier refresh token.
func (r *UserRepository) SetRefreshHash(ctx context.Context, id int64, hash string) error {
	const query = `UPDATE users SET refresh_token_hash = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, ErrUserNotFound, query, id, hash)
}

// RotateRefreshHash swaps expected for next only if expected is still the stored hash.
func (r *UserRepository) RotateRefreshHash(ctx context.Context, id int64, expected, next string) error {
	const query = `
		UPDATE users SET refresh_token_hash = $3, updated_at = NOW()
		WHERE id = $1 AND refresh_token_hash = $2
	`
	return r.execOne(ctx, ErrRefreshHashMismatch, query, id, expected, next)
}

func (r *UserRepository) ClearRefreshHash(ctx context.Context, id int64, expected string) error {
	const query = `
		UPDATE users SET refresh_token_hash = NULL, updated_at = NOW()
		WHERE id = $1 AND refresh_token_hash = $2
	`
	return r.execOne(ctx, ErrRefreshHashMismatch, query, id, expected)
}

func (r *UserRepository) SetTwoFactorChallenge(ctx context.Context, id int64, codeHash []byte, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET two_factor_code_hash = $2, two_factor_expiry = $3, two_factor_attempts = 0, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, ErrUserNotFound, query, id, codeHash, expiresAt)
}

// ConsumeTwoFactorChallenge clears the challenge identified by codeHash. Only one caller can win.
func (r *UserRepository) ConsumeTwoFactorChallenge(ctx context.Context, id int64, codeHash []byte) error {
	const query = `
		UPDATE users
		SET two_factor_code_hash = NULL, two_factor_expiry = NULL, two_factor_attempts = 0, updated_at = NOW()
		WHERE id = $1 AND two_factor_code_hash = $2
	`
	return r.execOne(ctx, ErrChallengeNotFound, query, id, codeHash)
}

// RecordTwoFactorFailure counts a wrong code and drops the challenge once maxAttempts is reached.
func (r *UserRepository) RecordTwoFactorFailure(ctx context.Context, id int64, codeHash []byte, maxAttempts int) (bool, error) {
	const query = `
		UPDATE users
		SET two_factor_attempts = two_factor_attempts + 1,
		    two_factor_code_hash = CASE WHEN two_factor_attempts + 1 >= $3 THEN NULL ELSE two_factor_code_hash END,
		    two_factor_expiry = CASE WHEN two_factor_attempts + 1 >= $3 THEN NULL ELSE two_factor_expiry END,
		    updated_at = NOW()
		WHERE id = $1 AND two_factor_code_hash = $2
		RETURNING two_factor_code_hash IS NULL
	`

	var cleared bool
	if err := r.pool.QueryRow(ctx, query, id, codeHash, maxAttempts).Scan(&cleared); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrChallengeNotFound
		}
		return false, err
	}
	return cleared, nil
}

func (r *UserRepository) ClearTwoFactorChallenge(ctx context.Context, id int64, codeHash []byte) error {
	return r.ConsumeTwoFactorChallenge(ctx, id, codeHash)
}

// PurgeExpiredTwoFactor clears challenges whose expiry is before now.
func (r *UserRepository) PurgeExpiredTwoFactor(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		UPDATE users
		SET two_factor_code_hash = NULL, two_factor_expiry = NULL, two_factor_attempts = 0, updated_at = NOW()
		WHERE two_factor_expiry IS NOT NULL AND two_factor_expiry < $1
	`
	cmd, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *UserRepository) execOne(ctx context.Context, notFound error, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return notFound
	}
	return nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var (
		user        models.User
		roleID      *int64
		roleName    *string
		requires2FA *bool
		permissions []string
	)

	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.IsVerified,
		&user.RefreshTokenHash,
		&user.TwoFactorCodeHash,
		&user.TwoFactorExpiry,
		&user.TwoFactorAttempts,
		&user.CreatedAt,
		&user.UpdatedAt,
		&roleID,
		&roleName,
		&requires2FA,
		&permissions,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}

	if roleID != nil && roleName != nil {
		user.Role = &models.Role{
			ID:                *roleID,
			Name:              models.RoleName(*roleName),
			RequiresTwoFactor: requires2FA != nil && *requires2FA,
			Permissions:       toPermissions(permissions),
		}
	}
	return user, nil
}

func toPermissions(names []string) []models.Permission {
	out := make([]models.Permission, 0, len(names))
	for _, name := range names {
		out = append(out, models.Permission(name))
	}
	return out
}
