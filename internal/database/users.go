package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gardenplots/internal/config"
	"gardenplots/internal/domain"
	"gardenplots/internal/models"
)

// UpsertUser creates the local profile on first sight and refreshes the
// fields owned by the auth provider (email, role) afterwards.
func (db *DB) UpsertUser(ctx context.Context, user *models.User) error {
	now := utcNow()
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	query := `INSERT INTO users (id, email, full_name, avatar_url, role, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET email = excluded.email, role = excluded.role, updated_at = excluded.updated_at`
	if db.driver == config.DriverMySQL {
		query = `INSERT INTO users (id, email, full_name, avatar_url, role, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE email = VALUES(email), role = VALUES(role), updated_at = VALUES(updated_at)`
	}

	_, err := db.ExecContext(ctx, query,
		user.ID, user.Email, user.FullName, user.AvatarURL, user.Role, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	user.UpdatedAt = now
	return nil
}

func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := db.QueryRowContext(ctx,
		`SELECT id, email, full_name, avatar_url, role, created_at, updated_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.FullName, &u.AvatarURL, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Newf(domain.KindNotFound, "user %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (db *DB) UpdateUserProfile(ctx context.Context, id, fullName, avatarURL string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE users SET full_name = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
		fullName, avatarURL, utcNow(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return domain.Newf(domain.KindNotFound, "user %s not found", id)
	}
	return nil
}
