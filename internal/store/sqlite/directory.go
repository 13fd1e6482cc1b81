package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"gochat/internal/domain"
)

// Directory implements the user-directory lookup facade on top of the
// users table.
type Directory struct {
	db *sql.DB
}

func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

var _ domain.UserDirectory = (*Directory)(nil)

const userColumns = `id, email, first_name, last_name, display_name, provider_name, avatar, is_active, created_at`

func (d *Directory) FindByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	u := &domain.User{}
	err := d.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.DisplayName,
		&u.ProviderName,
		&u.Avatar,
		&u.IsActive,
		&u.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (d *Directory) ListActive(ctx context.Context) ([]*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE is_active = 1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u := &domain.User{}
		if err := rows.Scan(
			&u.ID,
			&u.Email,
			&u.FirstName,
			&u.LastName,
			&u.DisplayName,
			&u.ProviderName,
			&u.Avatar,
			&u.IsActive,
			&u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Upsert inserts or replaces a user row. The account system owns users;
// this exists for the seed command and tests.
func (d *Directory) Upsert(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, email, first_name, last_name, display_name, provider_name, avatar, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			display_name = excluded.display_name,
			provider_name = excluded.provider_name,
			avatar = excluded.avatar,
			is_active = excluded.is_active
	`
	if _, err := d.db.ExecContext(ctx, query,
		u.ID,
		u.Email,
		u.FirstName,
		u.LastName,
		u.DisplayName,
		u.ProviderName,
		u.Avatar,
		u.IsActive,
	); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
