// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"

	"github.com/taibuivan/reactforge-auth/internal/session"
)

// # Storage Sentinels

var (
	// ErrUserNotFound is returned when no account matches a lookup.
	ErrUserNotFound = errors.New("auth: user not found")

	// ErrDuplicateEmail is returned when the unique email index rejects a write.
	ErrDuplicateEmail = errors.New("auth: duplicate email")

	// ErrDuplicateGoogleID is returned when the unique google id index rejects a write.
	ErrDuplicateGoogleID = errors.New("auth: duplicate google id")

	// ErrInconsistentUser is returned when a write breaks the provider and
	// password pairing enforced by the store.
	ErrInconsistentUser = errors.New("auth: inconsistent user record")

	// ErrInvalidAssertion is returned by an [IdentityVerifier] for any rejected assertion.
	ErrInvalidAssertion = errors.New("auth: invalid identity assertion")
)

// # User Data Access

// LookupFilter narrows an email lookup. Zero values mean "any".
type LookupFilter struct {
	Provider   Provider
	ActiveOnly bool
}

// UserRepository defines the data access contract for user accounts.
//
// # Implementations
//
// PostgreSQL ([PostgresUserRepository]) and MongoDB ([MongoUserRepository]),
// selected by configuration. Both enforce email and google id uniqueness
// with an index; the index is the only arbiter for racing writers.
type UserRepository interface {

	/*
		Create persists a brand-new account.

		Returns:
		  - error: [ErrDuplicateEmail], [ErrDuplicateGoogleID] or storage errors
	*/
	Create(ctx context.Context, user *User) error

	/*
		FindByEmail returns the account with the given normalized email.

		Parameters:
		  - ctx: context.Context
		  - email: string
		  - filter: LookupFilter

		Returns:
		  - *User: Hydrated entity
		  - error: [ErrUserNotFound] or storage errors
	*/
	FindByEmail(ctx context.Context, email string, filter LookupFilter) (*User, error)

	/*
		FindByGoogleID returns the account linked to a Google subject.

		Returns:
		  - *User: Hydrated entity
		  - error: [ErrUserNotFound] or storage errors
	*/
	FindByGoogleID(ctx context.Context, googleID string) (*User, error)

	/*
		Update persists the mutable profile fields (names, avatar, google id)
		and bumps UpdatedAt.

		Returns:
		  - error: [ErrUserNotFound], [ErrDuplicateGoogleID] or storage errors
	*/
	Update(ctx context.Context, user *User) error

	/*
		Deactivate marks the account inactive without removing it.

		Returns:
		  - error: [ErrUserNotFound] or storage errors
	*/
	Deactivate(ctx context.Context, id string) error

	/*
		Delete physically removes an account. It exists only to undo a signup
		whose session could not be created.

		Returns:
		  - error: Storage errors. Deleting a missing row is not an error.
	*/
	Delete(ctx context.Context, id string) error
}

// # Collaborators

// SessionStore issues and resolves server-side sessions.
type SessionStore interface {
	Create(ctx context.Context, user session.UserSummary) (string, *session.Session, error)
	Touch(ctx context.Context, token string) (*session.Session, error)
	Destroy(ctx context.Context, token string) error
}

// PasswordHasher hashes and verifies passwords. Implemented by [sec.PasswordHasher].
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, digest string) (bool, error)
	EqualizeTiming(ctx context.Context, plaintext string) error
}

// IdentityVerifier turns a Google assertion into a trusted claim.
//
// Any failure returns an error wrapping [ErrInvalidAssertion] and no claim.
type IdentityVerifier interface {
	Verify(ctx context.Context, assertion Assertion) (*IdentityClaim, error)
}

// Recorder receives authentication metrics. Implemented by [metrics.Collector].
type Recorder interface {
	RecordAttempt(operation, outcome string)
	RecordSessionCreated(provider string)
}
