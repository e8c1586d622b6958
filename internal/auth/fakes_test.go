// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/reactforge-auth/internal/auth"
	"github.com/taibuivan/reactforge-auth/internal/platform/sec"
	"github.com/taibuivan/reactforge-auth/internal/session"
)

// errStoreDown simulates a lost database connection.
var errStoreDown = errors.New("connection refused")

// memoryUsers is an in-memory [auth.UserRepository] that enforces the same
// unique indexes as the real stores.
type memoryUsers struct {
	mu      sync.Mutex
	byID    map[string]*auth.User
	deleted []string
	failAll error

	// createErr fails only writes of new accounts.
	createErr error

	// beforeCreate runs outside the lock, letting tests stage a racing writer.
	beforeCreate func()
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: make(map[string]*auth.User)}
}

func (store *memoryUsers) Create(_ context.Context, user *auth.User) error {
	if hook := store.beforeCreate; hook != nil {
		store.beforeCreate = nil
		hook()
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if store.failAll != nil {
		return store.failAll
	}
	if store.createErr != nil {
		return store.createErr
	}
	for _, existing := range store.byID {
		if strings.EqualFold(existing.Email, user.Email) {
			return auth.ErrDuplicateEmail
		}
		if user.GoogleID != "" && existing.GoogleID == user.GoogleID {
			return auth.ErrDuplicateGoogleID
		}
	}

	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	stored := *user
	store.byID[user.ID] = &stored
	return nil
}

func (store *memoryUsers) FindByEmail(_ context.Context, email string, filter auth.LookupFilter) (*auth.User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.failAll != nil {
		return nil, store.failAll
	}
	for _, user := range store.byID {
		if !strings.EqualFold(user.Email, email) {
			continue
		}
		if filter.Provider != "" && user.Provider != filter.Provider {
			continue
		}
		if filter.ActiveOnly && !user.IsActive {
			continue
		}
		found := *user
		return &found, nil
	}
	return nil, auth.ErrUserNotFound
}

func (store *memoryUsers) FindByGoogleID(_ context.Context, googleID string) (*auth.User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.failAll != nil {
		return nil, store.failAll
	}
	for _, user := range store.byID {
		if user.GoogleID != "" && user.GoogleID == googleID {
			found := *user
			return &found, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

// findByID reads a stored account for assertions.
func (store *memoryUsers) findByID(_ context.Context, id string) (*auth.User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	user, ok := store.byID[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	found := *user
	return &found, nil
}

func (store *memoryUsers) Update(_ context.Context, user *auth.User) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	existing, ok := store.byID[user.ID]
	if !ok {
		return auth.ErrUserNotFound
	}
	existing.FirstName = user.FirstName
	existing.LastName = user.LastName
	existing.AvatarURL = user.AvatarURL
	existing.GoogleID = user.GoogleID
	existing.UpdatedAt = time.Now()
	return nil
}

func (store *memoryUsers) Deactivate(_ context.Context, id string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	existing, ok := store.byID[id]
	if !ok {
		return auth.ErrUserNotFound
	}
	existing.IsActive = false
	return nil
}

func (store *memoryUsers) Delete(_ context.Context, id string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	delete(store.byID, id)
	store.deleted = append(store.deleted, id)
	return nil
}

// insert seeds an account directly, bypassing the service.
func (store *memoryUsers) insert(user auth.User) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.byID[user.ID] = &user
}

func (store *memoryUsers) count() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.byID)
}

// stubVerifier returns a fixed claim or error.
type stubVerifier struct {
	claim *auth.IdentityClaim
	err   error
}

func (stub *stubVerifier) Verify(context.Context, auth.Assertion) (*auth.IdentityClaim, error) {
	if stub.err != nil {
		return nil, stub.err
	}
	claim := *stub.claim
	return &claim, nil
}

// countingRecorder tallies metric calls.
type countingRecorder struct {
	mu       sync.Mutex
	attempts map[string]int
	sessions map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{attempts: map[string]int{}, sessions: map[string]int{}}
}

func (recorder *countingRecorder) RecordAttempt(operation, outcome string) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.attempts[operation+"/"+outcome]++
}

func (recorder *countingRecorder) RecordSessionCreated(provider string) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.sessions[provider]++
}

func (recorder *countingRecorder) attempt(key string) int {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	return recorder.attempts[key]
}

// fixture wires a [auth.Service] to in-memory users, a miniredis-backed
// session store and a real bcrypt hasher at the minimum cost.
type fixture struct {
	service  *auth.Service
	users    *memoryUsers
	sessions *session.RedisStore
	redis    *miniredis.Miniredis
	verifier *stubVerifier
	recorder *countingRecorder
	hasher   *sec.PasswordHasher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hasher, err := sec.NewPasswordHasher(sec.MinBcryptCost, 4)
	require.NoError(t, err)

	fx := &fixture{
		users:    newMemoryUsers(),
		sessions: session.NewRedisStore(client, "test:sess:", time.Hour),
		redis:    server,
		verifier: &stubVerifier{},
		recorder: newCountingRecorder(),
		hasher:   hasher,
	}
	fx.service = auth.NewService(fx.users, fx.sessions, hasher, fx.verifier, fx.recorder)
	return fx
}

// seedEmailUser stores an email account with a real bcrypt digest.
func (fx *fixture) seedEmailUser(t *testing.T, id, email, password string) {
	t.Helper()

	digest, err := fx.hasher.Hash(context.Background(), password)
	require.NoError(t, err)

	fx.users.insert(auth.User{
		ID:           id,
		Email:        email,
		FirstName:    "Ada",
		LastName:     "Lovelace",
		PasswordHash: digest,
		Provider:     auth.ProviderEmail,
		IsActive:     true,
	})
}
