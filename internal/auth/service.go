// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/taibuivan/reactforge-auth/internal/metrics"
	"github.com/taibuivan/reactforge-auth/internal/platform/apperr"
	"github.com/taibuivan/reactforge-auth/internal/platform/ctxutil"
	"github.com/taibuivan/reactforge-auth/internal/session"
	"github.com/taibuivan/reactforge-auth/pkg/uuid"
)

// # Contracts & Types

// Result is a successfully established session.
type Result struct {
	User    session.UserSummary
	Token   string
	Session *session.Session
}

// Service implements the authentication use cases.
//
// # Error Contract
//
// Every error returned is an [apperr.AppError]. Storage sentinels are
// translated here so the transport layer never sees them.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, lookup
// scoping or session issuance must be reviewed by the security team.
type Service struct {
	userRepository UserRepository
	sessionStore   SessionStore
	hasher         PasswordHasher
	verifier       IdentityVerifier
	recorder       Recorder
}

// NewService constructs a new [Service] with necessary dependencies.
// A nil recorder disables metrics.
func NewService(
	userRepo UserRepository,
	sessionStore SessionStore,
	hasher PasswordHasher,
	verifier IdentityVerifier,
	recorder Recorder,
) *Service {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Service{
		userRepository: userRepo,
		sessionStore:   sessionStore,
		hasher:         hasher,
		verifier:       verifier,
		recorder:       recorder,
	}
}

// # Registration Flow

// SignupInput holds the data required to enroll a new member.
type SignupInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

/*
Signup registers an email/password account and signs it in.

Description: The email pre-check gives a fast answer; the unique index is
the real arbiter when two signups race. If no session can be created the
new account is removed again so the caller may retry.

Parameters:
  - ctx: context.Context
  - input: SignupInput

Returns:
  - *Result: The new session
  - error: EmailTaken, StoreUnavailable or Internal
*/
func (service *Service) Signup(ctx context.Context, input SignupInput) (*Result, error) {
	result, err := service.signup(ctx, input)
	service.recordAttempt(OperationSignup, err)
	return result, err
}

func (service *Service) signup(ctx context.Context, input SignupInput) (*Result, error) {
	logger := ctxutil.GetLogger(ctx)
	email := NormalizeEmail(input.Email)

	// Verify email uniqueness across every provider
	_, err := service.userRepository.FindByEmail(ctx, email, LookupFilter{})
	switch {
	case err == nil:
		return nil, apperr.EmailTaken()
	case !errors.Is(err, ErrUserNotFound):
		return nil, apperr.StoreUnavailable(err)
	}

	passwordHash, err := service.hasher.Hash(ctx, input.Password)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth_service_hash_failed: %w", err))
	}

	// Construct the new User entity. Time-sortable ID to prevent index fragmentation.
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		FirstName:    NormalizeName(input.FirstName),
		LastName:     NormalizeName(input.LastName),
		PasswordHash: passwordHash,
		Provider:     ProviderEmail,
		IsActive:     true,
	}

	if err := service.userRepository.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, apperr.EmailTaken()
		}
		return nil, writeFailure(err)
	}

	result, err := service.startSession(ctx, user)
	if err != nil {
		// Compensate: an account nobody can sign into yet would block a retry
		if deleteErr := service.userRepository.Delete(ctx, user.ID); deleteErr != nil {
			logger.ErrorContext(ctx, "auth_signup_compensation_failed",
				slog.String("user_id", user.ID),
				slog.Any("error", deleteErr),
			)
		}
		return nil, err
	}

	logger.InfoContext(ctx, "auth_signup_succeeded", slog.String("user_id", user.ID))
	return result, nil
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email    string
	Password string
}

/*
Login validates email/password credentials and issues a session.

Description: Only active email accounts are considered. A missing account, an
inactive one, a Google account and a wrong password all produce the same
error, and a miss still pays for one bcrypt comparison so response time does
not reveal which case applied.

Parameters:
  - ctx: context.Context
  - input: LoginInput

Returns:
  - *Result: The new session
  - error: InvalidCredentials, StoreUnavailable or Internal
*/
func (service *Service) Login(ctx context.Context, input LoginInput) (*Result, error) {
	result, err := service.login(ctx, input)
	service.recordAttempt(OperationLogin, err)
	return result, err
}

func (service *Service) login(ctx context.Context, input LoginInput) (*Result, error) {
	logger := ctxutil.GetLogger(ctx)
	email := NormalizeEmail(input.Email)

	user, err := service.userRepository.FindByEmail(ctx, email, LookupFilter{Provider: ProviderEmail, ActiveOnly: true})
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, apperr.StoreUnavailable(err)
		}
		if err := service.hasher.EqualizeTiming(ctx, input.Password); err != nil {
			return nil, apperr.Internal(fmt.Errorf("auth_service_hash_failed: %w", err))
		}
		logger.InfoContext(ctx, "auth_login_rejected", slog.String("reason", "unknown_account"))
		return nil, apperr.InvalidCredentials()
	}

	ok, err := service.hasher.Verify(ctx, input.Password, user.PasswordHash)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth_service_verify_failed: %w", err))
	}
	if !ok {
		logger.InfoContext(ctx, "auth_login_rejected",
			slog.String("reason", "wrong_password"),
			slog.String("user_id", user.ID),
		)
		return nil, apperr.InvalidCredentials()
	}

	result, err := service.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "auth_login_succeeded", slog.String("user_id", user.ID))
	return result, nil
}

// # Identity Federation Flow

/*
OAuthLogin signs a user in with a Google assertion, creating the account on
first use.

Description: The account is resolved by google id, then by email. An email
owned by a password account is never linked. A create that loses a race is
resolved once more so both racers end up on the same account.

Parameters:
  - ctx: context.Context
  - assertion: Assertion

Returns:
  - *Result: The new session
  - error: InvalidAssertion, ProviderConflict, InvalidCredentials or StoreUnavailable
*/
func (service *Service) OAuthLogin(ctx context.Context, assertion Assertion) (*Result, error) {
	result, err := service.oauthLogin(ctx, assertion)
	service.recordAttempt(OperationOAuth, err)
	return result, err
}

func (service *Service) oauthLogin(ctx context.Context, assertion Assertion) (*Result, error) {
	logger := ctxutil.GetLogger(ctx)

	claim, err := service.verifier.Verify(ctx, assertion)
	if err != nil {
		logger.InfoContext(ctx, "auth_google_assertion_rejected", slog.Any("error", err))
		return nil, apperr.InvalidAssertion(err)
	}

	claim.Email = NormalizeEmail(claim.Email)
	claim.FirstName = NormalizeName(claim.FirstName)
	claim.LastName = NormalizeName(claim.LastName)

	user, err := service.resolveGoogleUser(ctx, claim)
	switch {
	case errors.Is(err, ErrUserNotFound):
		user, err = service.createGoogleUser(ctx, claim)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := service.resyncGoogleUser(ctx, user, claim); err != nil {
			return nil, err
		}
	}

	result, err := service.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "auth_google_login_succeeded",
		slog.String("user_id", user.ID),
		slog.String("assurance", string(claim.Assurance)),
	)
	return result, nil
}

// resolveGoogleUser finds the account a claim belongs to. It returns the raw
// [ErrUserNotFound] when no account exists, and AppErrors otherwise.
func (service *Service) resolveGoogleUser(ctx context.Context, claim *IdentityClaim) (*User, error) {
	user, err := service.userRepository.FindByGoogleID(ctx, claim.Subject)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, apperr.StoreUnavailable(err)
	}

	if user == nil {
		user, err = service.userRepository.FindByEmail(ctx, claim.Email, LookupFilter{})
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, apperr.StoreUnavailable(err)
		}
		if user.Provider != ProviderGoogle {
			return nil, apperr.ProviderConflict()
		}
	}

	if !user.IsActive {
		return nil, apperr.InvalidCredentials()
	}

	return user, nil
}

func (service *Service) createGoogleUser(ctx context.Context, claim *IdentityClaim) (*User, error) {
	user := &User{
		ID:        uuid.New(),
		Email:     claim.Email,
		FirstName: claim.FirstName,
		LastName:  claim.LastName,
		AvatarURL: claim.AvatarURL,
		Provider:  ProviderGoogle,
		GoogleID:  claim.Subject,
		IsActive:  true,
	}

	err := service.userRepository.Create(ctx, user)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrDuplicateEmail) && !errors.Is(err, ErrDuplicateGoogleID) {
		return nil, writeFailure(err)
	}

	// Lost a race with a concurrent writer: adopt the winner if it is compatible
	winner, err := service.resolveGoogleUser(ctx, claim)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperr.ProviderConflict()
		}
		return nil, err
	}

	return winner, nil
}

// resyncGoogleUser refreshes profile fields from the latest claim.
func (service *Service) resyncGoogleUser(ctx context.Context, user *User, claim *IdentityClaim) error {
	if claim.FirstName != "" {
		user.FirstName = claim.FirstName
	}
	if claim.LastName != "" {
		user.LastName = claim.LastName
	}
	if claim.AvatarURL != "" {
		user.AvatarURL = claim.AvatarURL
	}
	user.GoogleID = claim.Subject

	if err := service.userRepository.Update(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateGoogleID) {
			return apperr.ProviderConflict()
		}
		return writeFailure(err)
	}

	return nil
}

// # Session Lifecycle

// Logout destroys the session. Destroying an already gone session succeeds.
func (service *Service) Logout(ctx context.Context, token string) error {
	if err := service.sessionStore.Destroy(ctx, token); err != nil {
		service.recorder.RecordAttempt(OperationLogout, metrics.OutcomeError)
		return apperr.StoreUnavailable(err)
	}

	service.recorder.RecordAttempt(OperationLogout, metrics.OutcomeSuccess)
	return nil
}

// RetireSession destroys the session a caller held before signing in again,
// leaving one live session per cookie. A failure is logged and not returned
// because the new session has already been issued.
func (service *Service) RetireSession(ctx context.Context, token string) {
	if err := service.sessionStore.Destroy(ctx, token); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "auth_session_retire_failed", slog.Any("error", err))
	}
}

// CurrentUser returns the summary held by the session. It never reads the
// credential store, so the data is as fresh as the last login.
func (service *Service) CurrentUser(sess *session.Session) (session.UserSummary, error) {
	if sess == nil {
		return session.UserSummary{}, apperr.Unauthenticated()
	}
	return sess.User, nil
}

/*
Deactivate disables the caller's account and ends the current session.

Parameters:
  - ctx: context.Context
  - sess: *session.Session (the caller's live session)
  - token: string (the caller's session token)

Returns:
  - error: Unauthenticated or StoreUnavailable
*/
func (service *Service) Deactivate(ctx context.Context, sess *session.Session, token string) error {
	if sess == nil {
		return apperr.Unauthenticated()
	}

	err := service.userRepository.Deactivate(ctx, sess.User.ID)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		service.recorder.RecordAttempt(OperationDeactivate, metrics.OutcomeError)
		return apperr.StoreUnavailable(err)
	}

	if err := service.sessionStore.Destroy(ctx, token); err != nil {
		service.recorder.RecordAttempt(OperationDeactivate, metrics.OutcomeError)
		return apperr.StoreUnavailable(err)
	}

	service.recorder.RecordAttempt(OperationDeactivate, metrics.OutcomeSuccess)
	ctxutil.GetLogger(ctx).InfoContext(ctx, "auth_account_deactivated", slog.String("user_id", sess.User.ID))
	return nil
}

// Authenticate resolves a token to its live session and renews the TTL.
func (service *Service) Authenticate(ctx context.Context, token string) (*session.Session, error) {
	sess, err := service.sessionStore.Touch(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, apperr.Unauthenticated()
		}
		return nil, apperr.StoreUnavailable(err)
	}
	return sess, nil
}

// # Helpers

func (service *Service) startSession(ctx context.Context, user *User) (*Result, error) {
	summary := user.Summary()

	token, sess, err := service.sessionStore.Create(ctx, summary)
	if err != nil {
		return nil, apperr.StoreUnavailable(err)
	}

	service.recorder.RecordSessionCreated(string(user.Provider))
	return &Result{User: summary, Token: token, Session: sess}, nil
}

// recordAttempt classifies err as a client rejection or a server failure.
func (service *Service) recordAttempt(operation string, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeRejected
		if appErr := apperr.As(err); appErr == nil || appErr.HTTPStatus >= 500 {
			outcome = metrics.OutcomeError
		}
	}
	service.recorder.RecordAttempt(operation, outcome)
}

// writeFailure translates a failed credential store write.
func writeFailure(err error) error {
	if errors.Is(err, ErrInconsistentUser) {
		return apperr.Internal(err)
	}
	return apperr.StoreUnavailable(err)
}

type noopRecorder struct{}

func (noopRecorder) RecordAttempt(string, string) {}
func (noopRecorder) RecordSessionCreated(string) {}
