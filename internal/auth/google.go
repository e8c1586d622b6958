// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"

	"github.com/taibuivan/reactforge-auth/internal/platform/ctxutil"
)

// # Google Identity Verification

// googleIssuers are the two issuer spellings Google signs ID tokens with.
var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// GoogleVerifierConfig configures [GoogleVerifier].
type GoogleVerifierConfig struct {
	// ClientID is the OAuth client the ID token audience must match.
	// Without it every ID token is rejected.
	ClientID string

	// AllowClientClaims accepts client-supplied profile fields when no ID
	// token is sent. Such claims are unauthenticated.
	AllowClientClaims bool

	// RequireVerifiedEmail rejects ID tokens whose email_verified is false.
	RequireVerifiedEmail bool

	// HTTPClient fetches Google's signing keys. Nil uses the default transport.
	HTTPClient *http.Client
}

// GoogleVerifier implements [IdentityVerifier] for Google sign-in.
//
// # Trust Modes
//
// An assertion carrying an ID token is verified against Google's JWKS (signature,
// audience, issuer and expiry) and nothing the client sent beside it is read.
// An assertion with only client claims is accepted at reduced assurance when
// [GoogleVerifierConfig.AllowClientClaims] is set. A claim is never upgraded
// from one mode to the other.
type GoogleVerifier struct {
	config    GoogleVerifierConfig
	validator *idtoken.Validator
}

// NewGoogleVerifier builds the verifier. The JWKS validator is only created
// when a client id is configured.
func NewGoogleVerifier(ctx context.Context, config GoogleVerifierConfig) (*GoogleVerifier, error) {
	verifier := &GoogleVerifier{config: config}

	if config.ClientID == "" {
		return verifier, nil
	}

	var opts []idtoken.ClientOption
	if config.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(config.HTTPClient))
	}

	validator, err := idtoken.NewValidator(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google_verifier_init_failed: %w", err)
	}
	verifier.validator = validator

	return verifier, nil
}

/*
Verify turns a Google assertion into an [IdentityClaim].

Parameters:
  - ctx: context.Context
  - assertion: Assertion (ID token, or client claims)

Returns:
  - *IdentityClaim: Normalized identity with its assurance mode
  - error: wraps [ErrInvalidAssertion] on any rejection
*/
func (verifier *GoogleVerifier) Verify(ctx context.Context, assertion Assertion) (*IdentityClaim, error) {
	if assertion.IDToken != "" {
		return verifier.verifyToken(ctx, assertion.IDToken)
	}
	return verifier.acceptClientClaims(ctx, assertion.Claims)
}

func (verifier *GoogleVerifier) verifyToken(ctx context.Context, idToken string) (*IdentityClaim, error) {
	if verifier.validator == nil {
		return nil, fmt.Errorf("%w: no google client id configured", ErrInvalidAssertion)
	}

	payload, err := verifier.validator.Validate(ctx, idToken, verifier.config.ClientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}

	// The validator checks signature, audience and expiry; the issuer is ours to check
	if !googleIssuers[payload.Issuer] {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidAssertion, payload.Issuer)
	}

	claim := &IdentityClaim{
		Subject:       payload.Subject,
		Email:         stringClaim(payload.Claims, "email"),
		FirstName:     clampName(stringClaim(payload.Claims, "given_name")),
		LastName:      clampName(stringClaim(payload.Claims, "family_name")),
		AvatarURL:     stringClaim(payload.Claims, "picture"),
		EmailVerified: boolClaim(payload.Claims, "email_verified"),
		Assurance:     AssuranceVerifiedToken,
	}

	if claim.Subject == "" || claim.Email == "" {
		return nil, fmt.Errorf("%w: token lacks sub or email", ErrInvalidAssertion)
	}
	if verifier.config.RequireVerifiedEmail && (claim.EmailVerified == nil || !*claim.EmailVerified) {
		return nil, fmt.Errorf("%w: email not verified", ErrInvalidAssertion)
	}

	return claim, nil
}

func (verifier *GoogleVerifier) acceptClientClaims(ctx context.Context, claims ClientClaims) (*IdentityClaim, error) {
	if !verifier.config.AllowClientClaims {
		return nil, fmt.Errorf("%w: client claims are disabled", ErrInvalidAssertion)
	}
	if claims.GoogleID == "" || claims.Email == "" {
		return nil, fmt.Errorf("%w: googleId and email are required", ErrInvalidAssertion)
	}

	ctxutil.GetLogger(ctx).WarnContext(ctx, "google_client_claims_accepted",
		slog.String("assurance", string(AssuranceClientClaims)),
		slog.String("google_id", claims.GoogleID),
	)

	return &IdentityClaim{
		Subject:   claims.GoogleID,
		Email:     claims.Email,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		AvatarURL: claims.AvatarURL,
		Assurance: AssuranceClientClaims,
	}, nil
}

func stringClaim(claims map[string]any, name string) string {
	value, _ := claims[name].(string)
	return value
}

// boolClaim reads a boolean that Google may encode as a JSON bool or string.
func boolClaim(claims map[string]any, name string) *bool {
	switch value := claims[name].(type) {
	case bool:
		return &value
	case string:
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil
		}
		return &parsed
	default:
		return nil
	}
}
