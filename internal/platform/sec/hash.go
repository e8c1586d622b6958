// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives for the authentication service.
//
// # Architecture
//
// This package isolates security-sensitive code (password hashing, session
// token generation, cookie signing) from the domain logic. It acts as an
// Infrastructure service injected into the Application layer via interfaces.
package sec

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// # Password Hashing

const (
	// DefaultBcryptCost is the work factor used when none is configured.
	DefaultBcryptCost = 12

	// MinBcryptCost is the lowest work factor accepted outside of tests.
	MinBcryptCost = 10

	// bcryptInputLimit is the number of password bytes bcrypt consumes.
	bcryptInputLimit = 72
)

// ErrCostTooLow is returned when a hasher is constructed with a work factor
// that would make offline brute force cheap.
var ErrCostTooLow = errors.New("sec: bcrypt cost below minimum")

// PasswordHasher hashes and verifies passwords with bcrypt.
//
// # Concurrency
//
// bcrypt is intentionally slow. A weighted semaphore bounds how many hashes
// run at once so a burst of logins cannot starve the rest of the server.
// Waiting for a slot honors the caller's context.
type PasswordHasher struct {
	cost  int
	slots *semaphore.Weighted
	dummy []byte
}

// NewPasswordHasher builds a hasher with the given work factor and
// concurrency budget. A non-positive concurrency defaults to GOMAXPROCS.
func NewPasswordHasher(cost, concurrency int) (*PasswordHasher, error) {
	if cost < MinBcryptCost {
		return nil, fmt.Errorf("%w: %d < %d", ErrCostTooLow, cost, MinBcryptCost)
	}
	if cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("sec: bcrypt cost %d above maximum %d", cost, bcrypt.MaxCost)
	}
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	// Digest used to burn the same CPU time when an account does not exist.
	dummy, err := bcrypt.GenerateFromPassword([]byte("timing-equalizer"), cost)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to prepare dummy digest: %w", err)
	}

	return &PasswordHasher{
		cost:  cost,
		slots: semaphore.NewWeighted(int64(concurrency)),
		dummy: dummy,
	}, nil
}

// Hash returns a salted bcrypt digest of the plaintext password.
func (hasher *PasswordHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := hasher.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("sec: hash slot unavailable: %w", err)
	}
	defer hasher.slots.Release(1)

	digest, err := bcrypt.GenerateFromPassword(bcryptInput(plaintext), hasher.cost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest.
//
// A malformed digest is reported as a mismatch, not an error; the error
// return is reserved for the caller's context expiring while queued.
func (hasher *PasswordHasher) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	if err := hasher.slots.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("sec: hash slot unavailable: %w", err)
	}
	defer hasher.slots.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(digest), bcryptInput(plaintext))
	return err == nil, nil
}

// EqualizeTiming runs a comparison against a fixed digest and discards the
// result, so a lookup miss costs the same as a wrong password.
func (hasher *PasswordHasher) EqualizeTiming(ctx context.Context, plaintext string) error {
	if err := hasher.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("sec: hash slot unavailable: %w", err)
	}
	defer hasher.slots.Release(1)

	_ = bcrypt.CompareHashAndPassword(hasher.dummy, bcryptInput(plaintext))
	return nil
}

// bcryptInput maps a password onto bcrypt's 72-byte input window.
//
// Passwords that fit are used verbatim. Longer ones are pre-hashed with
// SHA-256 so that no suffix is silently ignored.
func bcryptInput(plaintext string) []byte {
	if len(plaintext) <= bcryptInputLimit {
		return []byte(plaintext)
	}
	sum := sha256.Sum256([]byte(plaintext))
	return []byte(base64.RawStdEncoding.EncodeToString(sum[:]))
}
