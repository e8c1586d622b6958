// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package respond_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/reactforge-auth/internal/platform/apperr"
	"github.com/taibuivan/reactforge-auth/internal/platform/respond"
)

/*
TestOK wraps payloads in the data envelope.
*/
func TestOK(t *testing.T) {
	recorder := httptest.NewRecorder()
	respond.OK(recorder, map[string]string{"message": "hi"})

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"data":{"message":"hi"}}`, recorder.Body.String())
	assert.Contains(t, recorder.Header().Get("Content-Type"), "application/json")
}

/*
TestError maps errors onto the error envelope.
*/
func TestError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
		retryAfter string
	}{
		{
			name:       "validation_with_details",
			err:        apperr.ValidationError("Validation failed", apperr.FieldError{Field: "email", Message: "Must be a valid email address"}),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Validation failed","code":"VALIDATION_ERROR","details":[{"field":"email","message":"Must be a valid email address"}]}`,
		},
		{
			name:       "store_unavailable_hides_cause",
			err:        apperr.StoreUnavailable(errors.New("dial tcp 10.0.0.1:5432: connection refused")),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"Internal server error","code":"STORE_UNAVAILABLE"}`,
		},
		{
			name:       "plain_error_becomes_internal",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"Internal server error","code":"INTERNAL_ERROR"}`,
		},
		{
			name:       "rate_limited_sets_retry_after",
			err:        apperr.RateLimited(42),
			wantStatus: http.StatusTooManyRequests,
			wantBody:   `{"error":"Too many requests. Try again in 42s.","code":"RATE_LIMITED"}`,
			retryAfter: "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			request := httptest.NewRequest(http.MethodGet, "/", nil)

			respond.Error(recorder, request, tt.err)

			assert.Equal(t, tt.wantStatus, recorder.Code)
			assert.JSONEq(t, tt.wantBody, recorder.Body.String())
			assert.Equal(t, tt.retryAfter, recorder.Header().Get("Retry-After"))

			var envelope map[string]any
			require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
			assert.NotContains(t, envelope, "cause")
		})
	}
}
