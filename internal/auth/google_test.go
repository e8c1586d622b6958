// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/reactforge-auth/internal/auth"
)

const (
	testClientID = "client-123.apps.googleusercontent.com"
	testKeyID    = "test-key"
)

// jwksTransport serves a fixed JWKS document for Google's certs endpoint.
type jwksTransport struct {
	body []byte
}

func (transport *jwksTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(transport.body)),
		Request:    request,
	}, nil
}

func newJWKSClient(t *testing.T, key *rsa.PublicKey) *http.Client {
	t.Helper()

	document := map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": testKeyID,
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	}
	body, err := json.Marshal(document)
	require.NoError(t, err)

	return &http.Client{Transport: &jwksTransport{body: body}}
}

func mintToken(t *testing.T, key *rsa.PrivateKey, overrides jwt.MapClaims) string {
	t.Helper()

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":            "https://accounts.google.com",
		"aud":            testClientID,
		"sub":            "g-123",
		"email":          "grace@x.com",
		"email_verified": true,
		"given_name":     "Grace",
		"family_name":    "Hopper",
		"picture":        "https://example.com/g.png",
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
	for name, value := range overrides {
		if value == nil {
			delete(claims, name)
			continue
		}
		claims[name] = value
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID

	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

/*
TestGoogleVerifier_IDToken checks the signature-verified path against a local JWKS.
*/
func TestGoogleVerifier_IDToken(t *testing.T) {
	key := generateKey(t)
	otherKey := generateKey(t)

	tests := []struct {
		name          string
		token         func(t *testing.T) string
		requireVerify bool
		wantErr       bool
		wantVerified  bool
		wantFirstName string
	}{
		{
			name:          "valid token",
			token:         func(t *testing.T) string { return mintToken(t, key, nil) },
			requireVerify: true,
			wantVerified:  true,
			wantFirstName: "Grace",
		},
		{
			name:          "bare issuer spelling",
			token:         func(t *testing.T) string { return mintToken(t, key, jwt.MapClaims{"iss": "accounts.google.com"}) },
			requireVerify: true,
			wantVerified:  true,
			wantFirstName: "Grace",
		},
		{
			name:          "email_verified as string",
			token:         func(t *testing.T) string { return mintToken(t, key, jwt.MapClaims{"email_verified": "true"}) },
			requireVerify: true,
			wantVerified:  true,
			wantFirstName: "Grace",
		},
		{
			name:          "padded given name is trimmed",
			token:         func(t *testing.T) string { return mintToken(t, key, jwt.MapClaims{"given_name": "  Grace "}) },
			requireVerify: true,
			wantVerified:  true,
			wantFirstName: "Grace",
		},
		{
			name: "long given name is cut to the name limit",
			token: func(t *testing.T) string {
				// Decomposed e + combining acute, composed to one character by NFC
				return mintToken(t, key, jwt.MapClaims{"given_name": strings.Repeat("e\u0301", 60)})
			},
			requireVerify: true,
			wantVerified:  true,
			wantFirstName: strings.Repeat("\u00e9", auth.NameMaxLength),
		},
		{
			name:          "unverified email allowed when not required",
			token:         func(t *testing.T) string { return mintToken(t, key, jwt.MapClaims{"email_verified": false}) },
			requireVerify: false,
			wantFirstName: "Grace",
		},
		{
			name:          "unverified email rejected",
			token:         func(t *testing.T) string { return mintToken(t, key, jwt.MapClaims{"email_verified": false}) },
			requireVerify: true,
			wantErr:       true,
		},
		{
			name:    "wrong audience",
			token:   func(t *testing.T) string { return mintToken(t, key, jwt.MapClaims{"aud": "someone-else"}) },
			wantErr: true,
		},
		{
			name:    "wrong issuer",
			token:   func(t *testing.T) string { return mintToken(t, key, jwt.MapClaims{"iss": "https://evil.example.com"}) },
			wantErr: true,
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				return mintToken(t, key, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})
			},
			wantErr: true,
		},
		{
			name:    "missing email",
			token:   func(t *testing.T) string { return mintToken(t, key, jwt.MapClaims{"email": nil}) },
			wantErr: true,
		},
		{
			name:    "signed by unknown key",
			token:   func(t *testing.T) string { return mintToken(t, otherKey, nil) },
			wantErr: true,
		},
		{
			name:    "not a jwt",
			token:   func(*testing.T) string { return "not-a-token" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			verifier, err := auth.NewGoogleVerifier(ctx, auth.GoogleVerifierConfig{
				ClientID:             testClientID,
				RequireVerifiedEmail: tt.requireVerify,
				HTTPClient:           newJWKSClient(t, &key.PublicKey),
			})
			require.NoError(t, err)

			claim, err := verifier.Verify(ctx, auth.Assertion{
				IDToken: tt.token(t),
				Claims:  auth.ClientClaims{GoogleID: "spoofed", Email: "spoofed@x.com"},
			})

			if tt.wantErr {
				assert.ErrorIs(t, err, auth.ErrInvalidAssertion)
				assert.Nil(t, claim)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, auth.AssuranceVerifiedToken, claim.Assurance)
			assert.Equal(t, "g-123", claim.Subject)
			assert.Equal(t, "grace@x.com", claim.Email)
			assert.Equal(t, tt.wantFirstName, claim.FirstName)
			require.NotNil(t, claim.EmailVerified)
			assert.Equal(t, tt.wantVerified, *claim.EmailVerified)
		})
	}
}

/*
TestGoogleVerifier_NoClientID rejects every ID token when no audience is configured.
*/
func TestGoogleVerifier_NoClientID(t *testing.T) {
	ctx := context.Background()
	verifier, err := auth.NewGoogleVerifier(ctx, auth.GoogleVerifierConfig{AllowClientClaims: true})
	require.NoError(t, err)

	_, err = verifier.Verify(ctx, auth.Assertion{IDToken: "a.b.c"})
	assert.ErrorIs(t, err, auth.ErrInvalidAssertion)
}

/*
TestGoogleVerifier_ClientClaims covers the reduced-assurance path.
*/
func TestGoogleVerifier_ClientClaims(t *testing.T) {
	tests := []struct {
		name    string
		allow   bool
		claims  auth.ClientClaims
		wantErr bool
	}{
		{
			name:   "accepted when enabled",
			allow:  true,
			claims: auth.ClientClaims{GoogleID: "g1", Email: "new@x.com", FirstName: "N", LastName: "U"},
		},
		{
			name:    "rejected when disabled",
			allow:   false,
			claims:  auth.ClientClaims{GoogleID: "g1", Email: "new@x.com"},
			wantErr: true,
		},
		{
			name:    "missing google id",
			allow:   true,
			claims:  auth.ClientClaims{Email: "new@x.com"},
			wantErr: true,
		},
		{
			name:    "missing email",
			allow:   true,
			claims:  auth.ClientClaims{GoogleID: "g1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			verifier, err := auth.NewGoogleVerifier(ctx, auth.GoogleVerifierConfig{AllowClientClaims: tt.allow})
			require.NoError(t, err)

			claim, err := verifier.Verify(ctx, auth.Assertion{Claims: tt.claims})

			if tt.wantErr {
				assert.ErrorIs(t, err, auth.ErrInvalidAssertion)
				assert.Nil(t, claim)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, auth.AssuranceClientClaims, claim.Assurance)
			assert.Equal(t, tt.claims.GoogleID, claim.Subject)
			assert.Nil(t, claim.EmailVerified)
		})
	}
}
