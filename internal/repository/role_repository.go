package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SamiTelo/API-Football/internal/models"
)

var ErrRoleNotFound = errors.New("role not found")

type RoleRepository struct {
	pool *pgxpool.Pool
}

func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{pool: pool}
}

func (r *RoleRepository) FindByName(ctx context.Context, name models.RoleName) (models.Role, error) {
	const query = `
		SELECT r.id, r.name, r.requires_two_factor,
		       COALESCE(array_agg(p.name ORDER BY p.name) FILTER (WHERE p.name IS NOT NULL), '{}')
		FROM roles r
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE r.name = $1
		GROUP BY r.id
	`

	var (
		role        models.Role
		permissions []string
	)
	if err := r.pool.QueryRow(ctx, query, name).Scan(
		&role.ID,
		&role.Name,
		&role.RequiresTwoFactor,
		&permissions,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Role{}, ErrRoleNotFound
		}
		return models.Role{}, err
	}
	role.Permissions = toPermissions(permissions)
	return role, nil
}

// Ensure returns the named role, creating it without permissions when it does not exist.
func (r *RoleRepository) Ensure(ctx context.Context, name models.RoleName) (models.Role, error) {
	const query = `
		INSERT INTO roles (name, requires_two_factor) VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`
	requires2FA := name == models.RoleAdmin || name == models.RoleSuperAdmin
	if _, err := r.pool.Exec(ctx, query, name, requires2FA); err != nil {
		return models.Role{}, err
	}
	return r.FindByName(ctx, name)
}
