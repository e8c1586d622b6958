// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package request provides utilities for extracting data from HTTP requests.

It abstracts away common body decoding patterns and the authenticated
session lookup, ensuring consistent error handling and type safety.
*/
package requestutil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/taibuivan/reactforge-auth/internal/platform/apperr"
	"github.com/taibuivan/reactforge-auth/internal/platform/constants"
	"github.com/taibuivan/reactforge-auth/internal/platform/ctxutil"
	"github.com/taibuivan/reactforge-auth/internal/platform/validate"
	"github.com/taibuivan/reactforge-auth/internal/session"
)

/*
DecodeJSON reads the request body and decodes it into the target structure.

Description: Unknown fields are ignored, which strips them from the
decoded value. The body is capped at [constants.MaxBodyBytes].

Parameters:
  - writer: http.ResponseWriter (required by the body size limiter)
  - request: *http.Request
  - target: any (Pointer to the destination struct)

Returns:
  - error: validate.ErrInvalidJSON if decoding fails, otherwise nil
*/
func DecodeJSON(writer http.ResponseWriter, request *http.Request, target any) error {
	body := http.MaxBytesReader(writer, request.Body, constants.MaxBodyBytes)

	if err := json.NewDecoder(body).Decode(target); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.ValidationError("Request body too large")
		}
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
Session extracts the authenticated session from the request context.

Returns nil if the request is not authenticated.
*/
func Session(request *http.Request) *session.Session {
	return ctxutil.GetSession(request.Context())
}

/*
RequiredSession ensures the request is authenticated and returns the session
together with its raw token.

Returns:
  - *session.Session: The authenticated session
  - string: The raw session token
  - error: apperr.Unauthenticated if the request carries no live session
*/
func RequiredSession(request *http.Request) (*session.Session, string, error) {

	// Get the session placed by the authentication middleware
	sess := ctxutil.GetSession(request.Context())

	// If the user is not authenticated, return an error
	if sess == nil {
		return nil, "", apperr.Unauthenticated()
	}

	return sess, ctxutil.GetSessionToken(request.Context()), nil
}
