// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/reactforge-auth/internal/platform/dberr"
	"github.com/taibuivan/reactforge-auth/pkg/pointer"
)

// # Postgres User Repository

// Unique index names from the users migration.
const (
	constraintEmailKey    = "users_email_key"
	constraintGoogleIDKey = "users_google_id_key"
)

const userColumns = `id, email, first_name, last_name, password_hash, avatar_url, provider, google_id, is_active, created_at, updated_at`

// dbtx is the subset of [pgxpool.Pool] the repository needs.
type dbtx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresUserRepository implements [UserRepository] using pgx.
type PostgresUserRepository struct {
	pool dbtx
	now  func() time.Time
}

// NewPostgresUserRepository creates a PostgreSQL implementation of [UserRepository].
// pool is normally a [pgxpool.Pool].
func NewPostgresUserRepository(pool dbtx) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool, now: time.Now}
}

/*
Create persists a new user record into the users table.

Description: Initializes timestamps when absent and maps unique index
violations onto the domain sentinels.

Parameters:
  - ctx: context.Context
  - user: *User (Entity to persist)

Returns:
  - error: [ErrDuplicateEmail], [ErrDuplicateGoogleID] or database errors
*/
func (repository *PostgresUserRepository) Create(ctx context.Context, user *User) error {
	const query = `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	now := repository.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := repository.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.FirstName,
		user.LastName,
		pointer.NilIfZero(user.PasswordHash),
		pointer.NilIfZero(user.AvatarURL),
		string(user.Provider),
		pointer.NilIfZero(user.GoogleID),
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("postgres_user_repo_create_failed", err)
	}

	return nil
}

/*
FindByEmail retrieves a user by email, matched case-insensitively.

Parameters:
  - ctx: context.Context
  - email: string
  - filter: LookupFilter (empty Provider matches any provider)

Returns:
  - *User: Hydrated account entity
  - error: [ErrUserNotFound] or database errors
*/
func (repository *PostgresUserRepository) FindByEmail(ctx context.Context, email string, filter LookupFilter) (*User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(email) = LOWER($1)
		  AND ($2::text = '' OR provider = $2::text)
		  AND ($3::boolean = FALSE OR is_active)`

	row := repository.pool.QueryRow(ctx, query, email, string(filter.Provider), filter.ActiveOnly)
	return scanUser(row, "postgres_user_repo_find_by_email_failed")
}

// FindByGoogleID retrieves the user linked to a Google subject.
func (repository *PostgresUserRepository) FindByGoogleID(ctx context.Context, googleID string) (*User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE google_id = $1`

	row := repository.pool.QueryRow(ctx, query, googleID)
	return scanUser(row, "postgres_user_repo_find_by_google_id_failed")
}

/*
Update saves the profile fields that a Google login may resync.

Parameters:
  - ctx: context.Context
  - user: *User (ID selects the row; UpdatedAt is refreshed in place)

Returns:
  - error: [ErrUserNotFound], [ErrDuplicateGoogleID] or database errors
*/
func (repository *PostgresUserRepository) Update(ctx context.Context, user *User) error {
	const query = `
		UPDATE users
		SET first_name = $2, last_name = $3, avatar_url = $4, google_id = $5, updated_at = $6
		WHERE id = $1`

	user.UpdatedAt = repository.now()

	tag, err := repository.pool.Exec(ctx, query,
		user.ID,
		user.FirstName,
		user.LastName,
		pointer.NilIfZero(user.AvatarURL),
		pointer.NilIfZero(user.GoogleID),
		user.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("postgres_user_repo_update_failed", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// Deactivate flips is_active off. Deactivating twice is not an error.
func (repository *PostgresUserRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE users SET is_active = FALSE, updated_at = $2 WHERE id = $1`

	tag, err := repository.pool.Exec(ctx, query, id, repository.now())
	if err != nil {
		return fmt.Errorf("postgres_user_repo_deactivate_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// Delete removes the row. Used only to undo a half-finished signup.
func (repository *PostgresUserRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id = $1`

	if _, err := repository.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("postgres_user_repo_delete_failed: %w", err)
	}

	return nil
}

// # Helpers

func scanUser(row pgx.Row, op string) (*User, error) {
	var (
		user         User
		provider     string
		passwordHash *string
		avatarURL    *string
		googleID     *string
	)

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&passwordHash,
		&avatarURL,
		&provider,
		&googleID,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user.Provider = Provider(provider)
	user.PasswordHash = pointer.Val(passwordHash)
	user.AvatarURL = pointer.Val(avatarURL)
	user.GoogleID = pointer.Val(googleID)

	return &user, nil
}

// mapWriteError translates unique index violations into domain sentinels.
func mapWriteError(op string, err error) error {
	if dberr.CheckViolation(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrInconsistentUser, err)
	}

	constraint, ok := dberr.UniqueViolation(err)
	if !ok {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch constraint {
	case constraintEmailKey:
		return ErrDuplicateEmail
	case constraintGoogleIDKey:
		return ErrDuplicateGoogleID
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
