// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/reactforge-auth/internal/platform/ctxutil"
	"github.com/taibuivan/reactforge-auth/internal/platform/middleware"
	requestutil "github.com/taibuivan/reactforge-auth/internal/platform/request"
	"github.com/taibuivan/reactforge-auth/internal/platform/respond"
	"github.com/taibuivan/reactforge-auth/internal/platform/validate"
)

// # Definitions & Constructors

// Rate limit bucket names, used as metric labels and log fields.
const (
	BucketAuth  = "auth"
	BucketLogin = "login"
)

// HandlerConfig carries the boundary policies of the auth endpoints.
type HandlerConfig struct {
	// GuestOnly rejects signup and login attempts from authenticated callers.
	GuestOnly bool

	// AuthLimiter budgets signup and Google login together. Nil disables it.
	AuthLimiter middleware.Limiter

	// LoginLimiter budgets password logins. Nil disables it.
	LoginLimiter middleware.Limiter

	// Recorder counts rate limit rejections. May be nil.
	Recorder middleware.RejectionRecorder
}

// Handler implements authentication-related HTTP endpoints.
//
// # Scope
//
// This handler owns the session cookie: it is written on every successful
// sign-in and cleared on logout and deactivation.
type Handler struct {
	authService *Service
	cookie      *middleware.SessionCookie
	config      HandlerConfig
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service, cookie *middleware.SessionCookie, config HandlerConfig) *Handler {
	return &Handler{authService: service, cookie: cookie, config: config}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
// It expects [middleware.Authenticate] to run before it.
//
// # Endpoints
//   - POST   /signup : Creates an email account and signs it in.
//   - POST   /login  : Signs in with email and password.
//   - POST   /google : Signs in with a Google assertion.
//   - POST   /logout : Ends the current session.
//   - GET    /me     : Returns the signed-in user.
//   - DELETE /me     : Deactivates the signed-in account.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Guest endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireGuest(handler.config.GuestOnly))

		r.With(handler.limit(handler.config.AuthLimiter, BucketAuth)).Post("/signup", handler.signup)
		r.With(handler.limit(handler.config.LoginLimiter, BucketLogin)).Post("/login", handler.login)
		r.With(handler.limit(handler.config.AuthLimiter, BucketAuth)).Post("/google", handler.google)
	})

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/logout", handler.logout)
		r.Get("/me", handler.me)
		r.Delete("/me", handler.deactivate)
	})

	return router
}

func (handler *Handler) limit(limiter middleware.Limiter, bucket string) func(http.Handler) http.Handler {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.RateLimit(limiter, bucket, handler.config.Recorder)
}

// issueSession writes the new session cookie and retires the session the
// request arrived with, if any.
func (handler *Handler) issueSession(writer http.ResponseWriter, request *http.Request, result *Result) {
	ctx := request.Context()
	if previous := ctxutil.GetSessionToken(ctx); previous != "" && previous != result.Token {
		handler.authService.RetireSession(ctx, previous)
	}
	handler.cookie.Set(writer, result.Token)
}

// # Request Payloads

type signupRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleRequest struct {
	Credential string `json:"credential"`
	GoogleID   string `json:"googleId"`
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Avatar     string `json:"avatar"`
}

/*
Signup handles the creation of a new email account.

POST /api/auth/signup

Request:
  - Body: signupRequest (FirstName, LastName, Email, Password)

Response:
  - 201: {user, message} plus the session cookie
  - 400: VALIDATION_ERROR or EMAIL_TAKEN
*/
func (handler *Handler) signup(writer http.ResponseWriter, request *http.Request) {
	var input signupRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	email := strings.TrimSpace(input.Email)
	firstName := NormalizeName(input.FirstName)
	lastName := NormalizeName(input.LastName)

	validator := &validate.Validator{}
	validator.Required(FieldFirstName, firstName).
		Length(FieldFirstName, firstName, NameMinLength, NameMaxLength).
		Required(FieldLastName, lastName).
		Length(FieldLastName, lastName, NameMinLength, NameMaxLength).
		Required(FieldEmail, email).
		Email(FieldEmail, email).
		Required(FieldPassword, input.Password).
		Length(FieldPassword, input.Password, PasswordMinLength, PasswordMaxLength)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.Signup(request.Context(), SignupInput{
		Email:     email,
		Password:  input.Password,
		FirstName: firstName,
		LastName:  lastName,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.issueSession(writer, request, result)
	respond.Created(writer, map[string]any{
		FieldUser:    result.User,
		FieldMessage: msgSignupSucceeded,
	})
}

/*
Login authenticates an email account.

POST /api/auth/login

Response:
  - 200: {user, message} plus the session cookie
  - 400: VALIDATION_ERROR
  - 401: INVALID_CREDENTIALS
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	email := strings.TrimSpace(input.Email)

	validator := &validate.Validator{}
	validator.Required(FieldEmail, email).
		Email(FieldEmail, email).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, PasswordMinLength)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.Login(request.Context(), LoginInput{
		Email:    email,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.issueSession(writer, request, result)
	respond.OK(writer, map[string]any{
		FieldUser:    result.User,
		FieldMessage: msgLoginSucceeded,
	})
}

/*
Google signs in with a Google identity.

POST /api/auth/google

Description: With a credential (ID token) only the token is read. Without
one the profile fields are required and are trusted only when client claims
are enabled.

Response:
  - 200: {user, message} plus the session cookie
  - 400: VALIDATION_ERROR or PROVIDER_CONFLICT
  - 401: INVALID_ASSERTION or INVALID_CREDENTIALS
*/
func (handler *Handler) google(writer http.ResponseWriter, request *http.Request) {
	var input googleRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	assertion := Assertion{IDToken: strings.TrimSpace(input.Credential)}

	if assertion.IDToken == "" {
		assertion.Claims = ClientClaims{
			GoogleID:  strings.TrimSpace(input.GoogleID),
			Email:     strings.TrimSpace(input.Email),
			FirstName: NormalizeName(input.FirstName),
			LastName:  NormalizeName(input.LastName),
			AvatarURL: strings.TrimSpace(input.Avatar),
		}
		claims := assertion.Claims

		validator := &validate.Validator{}
		validator.Required(FieldGoogleID, claims.GoogleID).
			Required(FieldEmail, claims.Email).
			Email(FieldEmail, claims.Email).
			Length(FieldFirstName, claims.FirstName, NameMinLength, NameMaxLength).
			Length(FieldLastName, claims.LastName, NameMinLength, NameMaxLength).
			URL(FieldAvatar, claims.AvatarURL)

		if err := validator.Err(); err != nil {
			respond.Error(writer, request, err)
			return
		}
	}

	result, err := handler.authService.OAuthLogin(request.Context(), assertion)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.issueSession(writer, request, result)
	respond.OK(writer, map[string]any{
		FieldUser:    result.User,
		FieldMessage: msgOAuthSucceeded,
	})
}

// logout ends the current session and clears the cookie.
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	_, token, err := requestutil.RequiredSession(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.Logout(request.Context(), token); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.cookie.Clear(writer)
	respond.OK(writer, map[string]any{FieldMessage: msgLogoutSucceeded})
}

// me returns the summary stored in the session.
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	user, err := handler.authService.CurrentUser(requestutil.Session(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{FieldUser: user})
}

// deactivate disables the account, ends the session and clears the cookie.
func (handler *Handler) deactivate(writer http.ResponseWriter, request *http.Request) {
	sess, token, err := requestutil.RequiredSession(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.Deactivate(request.Context(), sess, token); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.cookie.Clear(writer)
	respond.OK(writer, map[string]any{FieldMessage: msgDeactivateSucceeded})
}
