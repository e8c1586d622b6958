// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/taibuivan/reactforge-auth/internal/platform/apperr"
	"github.com/taibuivan/reactforge-auth/internal/platform/ctxutil"
	"github.com/taibuivan/reactforge-auth/internal/platform/respond"
	"github.com/taibuivan/reactforge-auth/internal/session"
)

// SessionAuthenticator resolves a raw token to a live session.
//
// # Why an interface?
//
// Defining it here decouples the middleware from the auth service, which
// also lets tests inject fakes.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*session.Session, error)
}

// sessionTracker lets the outer logging middleware learn which user the
// inner session middleware resolved.
type sessionTracker struct {
	userID string
}

type trackerKey struct{}

func withSessionTracker(ctx context.Context, tracker *sessionTracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, tracker)
}

func trackSession(ctx context.Context, userID string) {
	if tracker, ok := ctx.Value(trackerKey{}).(*sessionTracker); ok {
		tracker.userID = userID
	}
}

// Authenticate resolves the session cookie into a [session.Session].
//
// # Flow
//  1. No cookie, or a cookie whose signature fails: proceed as anonymous.
//  2. Resolve the token via [SessionAuthenticator], which renews its TTL.
//  3. A token with no live session: clear the cookie and proceed as anonymous.
//  4. Store failure: abort with the service error (500).
//  5. Otherwise re-issue the cookie (rolling expiry) and inject the session.
func Authenticate(authenticator SessionAuthenticator, cookie *SessionCookie) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// ── 1. Anonymous Access ───────────────────────────────────────────
			token, ok := cookie.Token(request)
			if !ok {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Session Resolution ─────────────────────────────────────────
			sess, err := authenticator.Authenticate(request.Context(), token)
			if err != nil {
				if apperr.HasCode(err, apperr.CodeUnauthenticated) {
					cookie.Clear(writer)
					next.ServeHTTP(writer, request)
					return
				}
				respond.Error(writer, request, err)
				return
			}

			// ── 3. Rolling Cookie & Context Injection ─────────────────────────
			cookie.Set(writer, token)
			trackSession(request.Context(), sess.User.ID)

			ctx := ctxutil.WithSession(request.Context(), token, sess)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAuth blocks requests that are not authenticated.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate].
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if ctxutil.GetSession(request.Context()) == nil {
			respond.Error(writer, request, apperr.Unauthenticated())
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// RequireGuest blocks requests that already carry a live session.
//
// The policy is a deployment switch. When disabled the middleware is a
// pass-through and an authenticated caller may sign in again, receiving a
// fresh session.
func RequireGuest(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if sess := ctxutil.GetSession(request.Context()); sess != nil {
				ctxutil.GetLogger(request.Context()).InfoContext(request.Context(), "guest_only_rejected",
					slog.String("user_id", sess.User.ID),
				)
				respond.Error(writer, request, apperr.AlreadyAuthenticated())
				return
			}
			next.ServeHTTP(writer, request)
		})
	}
}
