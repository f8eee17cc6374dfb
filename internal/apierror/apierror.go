// Package apierror maps engine errors onto HTTP statuses and the JSON error
// envelope shared by every handler:
//
//	{"error":{"code":"unauthorized","message":"unauthorized","request_id":"..."}}
//
// Code is a short stable string for machine handling on the frontend.
// Message is safe to show: only client-caused failures (validation, password
// policy) carry their detail, everything else uses a fixed text.
package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	webster "github.com/babymilooo/webster-backend"
	"github.com/babymilooo/webster-backend/internal/logctx"
)

// StatusClientClosedRequest is the non-standard status logged when the
// client goes away before the response.
const StatusClientClosedRequest = 499

const headerRequestID = "X-Request-Id"

// APIError is the body of an error response.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse is the root object of an error response.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

type mapping struct {
	target  error
	status  int
	code    string
	message string
	// detail exposes err.Error() instead of message.
	detail bool
}

// Order matters: the first matching target wins.
var mappings = []mapping{
	{webster.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "unauthorized", false},
	{webster.ErrInvalidCredentials, http.StatusForbidden, "invalid_credentials", "email or password is invalid", false},
	{webster.ErrPasswordMismatch, http.StatusForbidden, "password_mismatch", "current password is invalid", false},
	{webster.ErrAlreadyUsed, http.StatusForbidden, "token_already_used", "token is already used", false},
	{webster.ErrTokenInvalid, http.StatusForbidden, "invalid_token", "token is invalid or expired", false},
	{webster.ErrUserNotFound, http.StatusNotFound, "not_found", "user not found", false},
	{webster.ErrAccountExists, http.StatusConflict, "already_exists", "account already exists", false},
	{webster.ErrPasswordPolicy, http.StatusBadRequest, "password_policy", "", true},
	{webster.ErrInvalidInput, http.StatusBadRequest, "invalid_argument", "", true},
	{webster.ErrRateLimited, http.StatusTooManyRequests, "rate_limited", "too many requests", false},
	{webster.ErrRevocationUnavailable, http.StatusServiceUnavailable, "unavailable", "service unavailable", false},
	{webster.ErrBackendUnavailable, http.StatusServiceUnavailable, "unavailable", "service unavailable", false},
	{webster.ErrEmailVerificationDisabled, http.StatusNotFound, "disabled", "email verification is disabled", false},
	{webster.ErrPasswordResetDisabled, http.StatusNotFound, "disabled", "password reset is disabled", false},
	{webster.ErrTicketsDisabled, http.StatusNotFound, "disabled", "tickets are disabled", false},
	{context.Canceled, StatusClientClosedRequest, "canceled", "canceled", false},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded", false},
}

// ToHTTP converts err into a status and response body. A nil or unknown
// error maps to 500 so a caller bug never turns into a 200 with an error body.
func ToHTTP(err error) (int, ErrorResponse) {
	if err != nil {
		for _, m := range mappings {
			if !errors.Is(err, m.target) {
				continue
			}
			msg := m.message
			if m.detail {
				msg = err.Error()
			}
			return m.status, ErrorResponse{Error: APIError{Code: m.code, Message: msg}}
		}
	}
	return http.StatusInternalServerError, ErrorResponse{
		Error: APIError{
			Code:    "internal",
			Message: "internal error",
		},
	}
}

// Status returns only the HTTP status for err.
func Status(err error) int {
	status, _ := ToHTTP(err)
	return status
}

// WriteError writes the envelope for err and attaches the request id from the
// context or, failing that, from the X-Request-Id header. Server-side
// failures are logged with the request-scoped logger.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	rid := logctx.RequestID(r.Context())
	if rid == "" {
		rid = r.Header.Get(headerRequestID)
	}
	resp.Error.RequestID = rid

	if status >= http.StatusInternalServerError {
		logctx.From(r.Context()).Error("request failed",
			"path", r.URL.Path,
			"status", status,
			"err", err,
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
