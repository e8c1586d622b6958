// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package session defines the server-side session record and its Redis store.
//
// # Architecture
//
// A session proves that a client authenticated successfully. The client only
// holds an opaque token; everything else lives in the store under a key
// derived from that token. Existence of the record is the authentication
// state: no record, no session.
//
// The package is a leaf so that both the HTTP middleware and the domain
// service can depend on the [Session] type without importing each other.
package session

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a token does not resolve to a live session.
var ErrNotFound = errors.New("session: not found")

// TokenLength is the number of random bytes in a session token.
const TokenLength = 32

// UserSummary is the public projection of an account embedded in a session.
//
// It has no password field, so no code path that serializes a summary can
// leak a digest.
type UserSummary struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	AvatarURL string `json:"avatar,omitempty"`
	Provider  string `json:"provider"`
}

// Session is the record stored for an authenticated client.
//
// The embedded summary is a snapshot taken at login and may go stale until
// the next login.
type Session struct {
	User         UserSummary `json:"user"`
	CreatedAt    time.Time   `json:"createdAt"`
	LastAccessAt time.Time   `json:"lastAccessAt"`
}
