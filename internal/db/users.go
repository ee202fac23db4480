package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wuwenbin0122/finbot/internal/auth"
	"github.com/wuwenbin0122/finbot/internal/models"
)

const (
	usernameIndex = "users_username_key"
	emailIndex    = "users_email_key"
)

func (p *Postgres) CreateUser(ctx context.Context, user models.User) error {
	_, err := p.Pool.Exec(ctx, `
INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			switch pgErr.ConstraintName {
			case emailIndex:
				return auth.ErrEmailExists
			default:
				return auth.ErrUserExists
			}
		}
		return fmt.Errorf("postgres: create user: %w", err)
	}
	return nil
}

// FindUser prefers a username match over an email match.
func (p *Postgres) FindUser(ctx context.Context, identifier string) (*models.User, error) {
	var user models.User
	err := p.Pool.QueryRow(ctx, `
SELECT id, username, email, password_hash, created_at, updated_at
FROM users
WHERE LOWER(username) = LOWER($1) OR (email <> '' AND LOWER(email) = LOWER($1))
ORDER BY (LOWER(username) = LOWER($1)) DESC
LIMIT 1`, identifier).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: find user: %w", err)
	}
	return &user, nil
}

func (p *Postgres) TouchUser(ctx context.Context, userID string, at time.Time) error {
	tag, err := p.Pool.Exec(ctx, "UPDATE users SET updated_at = $2 WHERE id = $1", userID, at)
	if err != nil {
		return fmt.Errorf("postgres: touch user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
