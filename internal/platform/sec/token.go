// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// # Opaque Tokens

// GenerateSecureToken returns a base64url encoded string of n random bytes.
func GenerateSecureToken(n int) (string, error) {
	buffer := make([]byte, n)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("sec: failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// HashToken returns the hex SHA-256 of a token. Stores key on this value so
// a dump of the store does not hand out live tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// # Cookie Signing

// ErrBadSignature is returned when a signed value was not produced by this signer.
var ErrBadSignature = errors.New("sec: invalid signature")

// Signer appends and checks an HMAC-SHA256 signature on cookie values.
type Signer struct {
	secret []byte
}

// NewSigner creates a [Signer] from a shared secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns "value.signature".
func (signer *Signer) Sign(value string) string {
	return value + "." + signer.mac(value)
}

// Unsign verifies a value produced by [Signer.Sign] and returns the original value.
func (signer *Signer) Unsign(signed string) (string, error) {
	index := strings.LastIndexByte(signed, '.')
	if index <= 0 || index == len(signed)-1 {
		return "", ErrBadSignature
	}

	value, signature := signed[:index], signed[index+1:]
	if !hmac.Equal([]byte(signature), []byte(signer.mac(value))) {
		return "", ErrBadSignature
	}
	return value, nil
}

func (signer *Signer) mac(value string) string {
	mac := hmac.New(sha256.New, signer.secret)
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
