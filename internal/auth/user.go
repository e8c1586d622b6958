// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements registration, authentication and the session
lifecycle for the web application.

It defines the core domain entities (User, IdentityClaim) and the service
that decides who is authenticated: email/password login, Google identity
federation and server-side session issuance.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no
storage dependencies; the repositories, hasher, verifier and session store
are injected behind interfaces declared in store.go.
*/
package auth

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/taibuivan/reactforge-auth/internal/session"
)

// # Domain Entities

// Provider is the authentication method an account was created with.
type Provider string

const (
	// ProviderEmail accounts sign in with a password.
	ProviderEmail Provider = "email"
	// ProviderGoogle accounts sign in with a Google identity assertion.
	ProviderGoogle Provider = "google"
)

// User represents a registered account.
//
// # Invariants
//
//   - Email is unique across providers, stored trimmed and lower-cased.
//   - Email accounts always carry a PasswordHash; Google accounts never do.
//   - GoogleID is unique when present.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	PasswordHash string    `json:"-"` // Explicitly omitted from JSON for security.
	AvatarURL    string    `json:"avatar,omitempty"`
	Provider     Provider  `json:"provider"`
	GoogleID     string    `json:"googleId,omitempty"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Summary projects the user onto the public, password-free shape embedded in
// sessions and returned to clients.
func (user *User) Summary() session.UserSummary {
	return session.UserSummary{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		AvatarURL: user.AvatarURL,
		Provider:  string(user.Provider),
	}
}

// # Identity Federation

// Assurance records how an identity claim was established.
type Assurance string

const (
	// AssuranceVerifiedToken means the claim came from a signature-checked ID token.
	AssuranceVerifiedToken Assurance = "verified_token"
	// AssuranceClientClaims means the claim was taken from client-supplied fields.
	AssuranceClientClaims Assurance = "client_claims"
)

// ClientClaims are the profile fields a client may send alongside (or
// instead of) a Google ID token.
type ClientClaims struct {
	GoogleID  string
	Email     string
	FirstName string
	LastName  string
	AvatarURL string
}

// Assertion is the raw input to identity verification.
type Assertion struct {
	// IDToken is the Google-signed JWT credential. When set, only the token is trusted.
	IDToken string
	// Claims are the client-supplied fields used by the reduced-assurance path.
	Claims ClientClaims
}

// IdentityClaim is the normalized identity extracted after verification.
type IdentityClaim struct {
	Subject       string
	Email         string
	FirstName     string
	LastName      string
	AvatarURL     string
	EmailVerified *bool
	Assurance     Assurance
}

// # Normalization

// NormalizeEmail trims and lower-cases an address so lookups and the
// unique index agree on one canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeName trims a display name and puts it in Unicode NFC, so that
// visually identical names compare and count the same.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// clampName normalizes a provider-supplied name and cuts it to
// [NameMaxLength] characters. Verified tokens are not rejected for a long name.
func clampName(name string) string {
	name = NormalizeName(name)
	runes := []rune(name)
	if len(runes) <= NameMaxLength {
		return name
	}
	return strings.TrimSpace(string(runes[:NameMaxLength]))
}

// # Field Identifiers

// Field names used in validation details and response payloads.
const (
	FieldEmail      = "email"
	FieldPassword   = "password"
	FieldFirstName  = "firstName"
	FieldLastName   = "lastName"
	FieldGoogleID   = "googleId"
	FieldAvatar     = "avatar"
	FieldCredential = "credential"
	FieldUser       = "user"
	FieldMessage    = "message"
)
