// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/reactforge-auth/internal/auth"
	"github.com/taibuivan/reactforge-auth/internal/metrics"
	"github.com/taibuivan/reactforge-auth/internal/platform/apperr"
	"github.com/taibuivan/reactforge-auth/internal/session"
)

func signupInput(email string) auth.SignupInput {
	return auth.SignupInput{Email: email, Password: "secret1", FirstName: "A", LastName: "B"}
}

/*
TestService_Signup covers account creation and the session it yields.
*/
func TestService_Signup(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	result, err := fx.service.Signup(ctx, signupInput("  A@X.com "))
	require.NoError(t, err)

	assert.Equal(t, "a@x.com", result.User.Email)
	assert.Equal(t, "email", result.User.Provider)
	assert.NotEmpty(t, result.Token)

	// The session resolves to the same user
	sess, err := fx.service.Authenticate(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User, sess.User)

	// The stored digest is bcrypt, never the plaintext
	stored, err := fx.users.findByID(ctx, result.User.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.True(t, stored.IsActive)

	assert.Equal(t, 1, fx.recorder.attempt(auth.OperationSignup+"/"+metrics.OutcomeSuccess))
	assert.Equal(t, 1, fx.recorder.sessions["email"])
}

/*
TestService_Signup_EmailTaken rejects a second signup for any provider.
*/
func TestService_Signup_EmailTaken(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.service.Signup(ctx, signupInput("a@x.com"))
	require.NoError(t, err)

	_, err = fx.service.Signup(ctx, signupInput("A@x.COM"))
	assert.True(t, apperr.HasCode(err, apperr.CodeEmailTaken))
	assert.Equal(t, 1, fx.users.count())
	assert.Equal(t, 1, fx.recorder.attempt(auth.OperationSignup+"/"+metrics.OutcomeRejected))
}

/*
TestService_Signup_Concurrent lets many goroutines race on one address. The
unique index admits exactly one.
*/
func TestService_Signup_Concurrent(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	const racers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		taken     int
	)

	for range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.service.Signup(ctx, signupInput("race@x.com"))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperr.HasCode(err, apperr.CodeEmailTaken):
				taken++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, racers-1, taken)
	assert.Equal(t, 1, fx.users.count())
}

/*
TestService_Signup_SessionFailureCompensates removes the user when no session
can be issued.
*/
func TestService_Signup_SessionFailureCompensates(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.redis.Close()

	_, err := fx.service.Signup(ctx, signupInput("a@x.com"))
	assert.True(t, apperr.HasCode(err, apperr.CodeStoreUnavailable))
	assert.Equal(t, 0, fx.users.count())
	assert.Len(t, fx.users.deleted, 1)
	assert.Equal(t, 1, fx.recorder.attempt(auth.OperationSignup+"/"+metrics.OutcomeError))
}

/*
TestService_Signup_StoreDown surfaces storage failure as StoreUnavailable.
*/
func TestService_Signup_StoreDown(t *testing.T) {
	fx := newFixture(t)
	fx.users.failAll = errStoreDown

	_, err := fx.service.Signup(context.Background(), signupInput("a@x.com"))
	assert.True(t, apperr.HasCode(err, apperr.CodeStoreUnavailable))
	assert.ErrorIs(t, err, errStoreDown)
}

/*
TestService_Signup_InconsistentRecord surfaces a rejected record as an internal error.
*/
func TestService_Signup_InconsistentRecord(t *testing.T) {
	fx := newFixture(t)
	fx.users.createErr = fmt.Errorf("insert user: %w", auth.ErrInconsistentUser)

	_, err := fx.service.Signup(context.Background(), signupInput("a@x.com"))
	assert.True(t, apperr.HasCode(err, apperr.CodeInternal))
	assert.Equal(t, 0, fx.users.count())
}

/*
TestService_Login checks that only an active email account with the right
password signs in, and that every failure looks the same.
*/
func TestService_Login(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	fx.seedEmailUser(t, "u-active", "a@x.com", "secret1")
	fx.seedEmailUser(t, "u-inactive", "off@x.com", "secret1")
	require.NoError(t, fx.users.Deactivate(ctx, "u-inactive"))
	fx.users.insert(auth.User{
		ID:       "u-google",
		Email:    "g@x.com",
		Provider: auth.ProviderGoogle,
		GoogleID: "g-1",
		IsActive: true,
	})

	tests := []struct {
		name     string
		email    string
		password string
		wantID   string
	}{
		{name: "correct password", email: "a@x.com", password: "secret1", wantID: "u-active"},
		{name: "email is normalized", email: " A@X.COM ", password: "secret1", wantID: "u-active"},
		{name: "wrong password", email: "a@x.com", password: "wrong1"},
		{name: "unknown account", email: "nobody@x.com", password: "secret1"},
		{name: "inactive account", email: "off@x.com", password: "secret1"},
		{name: "google account", email: "g@x.com", password: "secret1"},
	}

	var rejection *apperr.AppError

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := fx.service.Login(ctx, auth.LoginInput{Email: tt.email, Password: tt.password})

			if tt.wantID != "" {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, result.User.ID)
				return
			}

			require.Error(t, err)
			assert.Nil(t, result)

			appErr := apperr.As(err)
			require.NotNil(t, appErr)
			assert.Equal(t, apperr.CodeInvalidCredentials, appErr.Code)

			// Every rejection is byte-identical on the wire
			if rejection == nil {
				rejection = appErr
				return
			}
			want, _ := json.Marshal(rejection)
			got, _ := json.Marshal(appErr)
			assert.JSONEq(t, string(want), string(got))
		})
	}
}

/*
TestService_Login_StoreDown surfaces storage failure instead of a credential error.
*/
func TestService_Login_StoreDown(t *testing.T) {
	fx := newFixture(t)
	fx.users.failAll = errStoreDown

	_, err := fx.service.Login(context.Background(), auth.LoginInput{Email: "a@x.com", Password: "secret1"})
	assert.True(t, apperr.HasCode(err, apperr.CodeStoreUnavailable))
}

/*
TestService_SummaryHasNoPassword ensures no issued summary can carry a digest.
*/
func TestService_SummaryHasNoPassword(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	result, err := fx.service.Signup(ctx, signupInput("a@x.com"))
	require.NoError(t, err)

	payload, err := json.Marshal(result.User)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(payload, &fields))
	for key := range fields {
		assert.NotContains(t, key, "password")
		assert.NotContains(t, key, "Password")
	}

	// The domain entity hides it as well
	stored, err := fx.users.findByID(ctx, result.User.ID)
	require.NoError(t, err)
	payload, err = json.Marshal(stored)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), stored.PasswordHash)
}

/*
TestService_Logout is idempotent and ends the session.
*/
func TestService_Logout(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	result, err := fx.service.Signup(ctx, signupInput("a@x.com"))
	require.NoError(t, err)

	require.NoError(t, fx.service.Logout(ctx, result.Token))
	require.NoError(t, fx.service.Logout(ctx, result.Token))

	_, err = fx.service.Authenticate(ctx, result.Token)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthenticated))

	_, err = fx.service.CurrentUser(nil)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthenticated))
}

/*
TestService_Authenticate_StoreDown distinguishes an outage from a miss.
*/
func TestService_Authenticate_StoreDown(t *testing.T) {
	fx := newFixture(t)
	fx.redis.Close()

	_, err := fx.service.Authenticate(context.Background(), "anything")
	assert.True(t, apperr.HasCode(err, apperr.CodeStoreUnavailable))
}

/*
TestService_CurrentUser returns the session summary without a store read.
*/
func TestService_CurrentUser(t *testing.T) {
	fx := newFixture(t)
	fx.users.failAll = errStoreDown

	sess := &session.Session{User: session.UserSummary{ID: "u-1", Email: "a@x.com", Provider: "email"}}
	user, err := fx.service.CurrentUser(sess)
	require.NoError(t, err)
	assert.Equal(t, sess.User, user)
}

/*
TestService_Deactivate blocks further logins and ends the session.
*/
func TestService_Deactivate(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	result, err := fx.service.Signup(ctx, signupInput("a@x.com"))
	require.NoError(t, err)

	require.NoError(t, fx.service.Deactivate(ctx, result.Session, result.Token))

	_, err = fx.service.Authenticate(ctx, result.Token)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthenticated))

	_, err = fx.service.Login(ctx, auth.LoginInput{Email: "a@x.com", Password: "secret1"})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidCredentials))

	// The address stays reserved
	_, err = fx.service.Signup(ctx, signupInput("a@x.com"))
	assert.True(t, apperr.HasCode(err, apperr.CodeEmailTaken))
}

// # Identity Federation

func googleClaim(subject, email string) *auth.IdentityClaim {
	return &auth.IdentityClaim{
		Subject:   subject,
		Email:     email,
		FirstName: "Grace",
		LastName:  "Hopper",
		AvatarURL: "https://example.com/g.png",
		Assurance: auth.AssuranceClientClaims,
	}
}

/*
TestService_OAuthLogin_CreatesUser provisions a google account on first use.
*/
func TestService_OAuthLogin_CreatesUser(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.verifier.claim = googleClaim("g1", "New@X.com")

	result, err := fx.service.OAuthLogin(ctx, auth.Assertion{})
	require.NoError(t, err)
	assert.Equal(t, "google", result.User.Provider)
	assert.Equal(t, "new@x.com", result.User.Email)

	stored, err := fx.users.FindByGoogleID(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, stored.ID)
	assert.Empty(t, stored.PasswordHash)
	assert.Equal(t, 1, fx.recorder.sessions["google"])
}

/*
TestService_OAuthLogin_Resync updates the profile of a returning google user.
*/
func TestService_OAuthLogin_Resync(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.users.insert(auth.User{
		ID:        "u-g",
		Email:     "g@x.com",
		FirstName: "Old",
		LastName:  "Name",
		Provider:  auth.ProviderGoogle,
		GoogleID:  "g1",
		IsActive:  true,
	})
	fx.verifier.claim = googleClaim("g1", "g@x.com")

	result, err := fx.service.OAuthLogin(ctx, auth.Assertion{})
	require.NoError(t, err)
	assert.Equal(t, "u-g", result.User.ID)
	assert.Equal(t, "Grace", result.User.FirstName)

	stored, err := fx.users.findByID(ctx, "u-g")
	require.NoError(t, err)
	assert.Equal(t, "Hopper", stored.LastName)
	assert.Equal(t, "https://example.com/g.png", stored.AvatarURL)
	assert.Equal(t, 1, fx.users.count())
}

/*
TestService_OAuthLogin_ProviderConflict refuses to link a password account.
*/
func TestService_OAuthLogin_ProviderConflict(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.seedEmailUser(t, "u-email", "a@x.com", "secret1")
	fx.verifier.claim = googleClaim("g1", "a@x.com")

	_, err := fx.service.OAuthLogin(ctx, auth.Assertion{})
	assert.True(t, apperr.HasCode(err, apperr.CodeProviderConflict))
	assert.Equal(t, 1, fx.users.count())

	stored, err := fx.users.findByID(ctx, "u-email")
	require.NoError(t, err)
	assert.Empty(t, stored.GoogleID)
}

/*
TestService_OAuthLogin_InvalidAssertion maps verifier rejections.
*/
func TestService_OAuthLogin_InvalidAssertion(t *testing.T) {
	fx := newFixture(t)
	fx.verifier.err = errors.Join(auth.ErrInvalidAssertion, errors.New("bad signature"))

	_, err := fx.service.OAuthLogin(context.Background(), auth.Assertion{IDToken: "x.y.z"})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidAssertion))
	assert.Equal(t, 0, fx.users.count())
}

/*
TestService_OAuthLogin_Inactive rejects a deactivated google account.
*/
func TestService_OAuthLogin_Inactive(t *testing.T) {
	fx := newFixture(t)
	fx.users.insert(auth.User{ID: "u-g", Email: "g@x.com", Provider: auth.ProviderGoogle, GoogleID: "g1"})
	fx.verifier.claim = googleClaim("g1", "g@x.com")

	_, err := fx.service.OAuthLogin(context.Background(), auth.Assertion{})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidCredentials))
}

/*
TestService_OAuthLogin_CreateRace adopts the account a concurrent request
created between lookup and insert.
*/
func TestService_OAuthLogin_CreateRace(t *testing.T) {
	tests := []struct {
		name     string
		winner   auth.User
		wantCode string
	}{
		{
			name:   "winner is google",
			winner: auth.User{ID: "u-winner", Email: "g@x.com", Provider: auth.ProviderGoogle, GoogleID: "g1", IsActive: true},
		},
		{
			name:     "winner is email",
			winner:   auth.User{ID: "u-winner", Email: "g@x.com", Provider: auth.ProviderEmail, PasswordHash: "digest", IsActive: true},
			wantCode: apperr.CodeProviderConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			fx.verifier.claim = googleClaim("g1", "g@x.com")
			fx.users.beforeCreate = func() { fx.users.insert(tt.winner) }

			result, err := fx.service.OAuthLogin(context.Background(), auth.Assertion{})

			if tt.wantCode != "" {
				assert.True(t, apperr.HasCode(err, tt.wantCode))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u-winner", result.User.ID)
			assert.Equal(t, 1, fx.users.count())
		})
	}
}
