package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidJSON  ErrorCode = "validation_invalid_json"
	ErrCodeValidationInvalidCoord ErrorCode = "validation_invalid_coordinate"

	// Auth (401/403)
	ErrCodeAuthMissingIdentity  ErrorCode = "auth_missing_identity"
	ErrCodeAuthForbidden        ErrorCode = "auth_forbidden"
	ErrCodeAuthInvalidSignature ErrorCode = "auth_invalid_signature"

	// Plan / quota
	ErrCodeQuotaPetsExceeded  ErrorCode = "quota_pets_exceeded"   // 403
	ErrCodePlanInvalidTarget  ErrorCode = "plan_invalid_target"   // 400
	ErrCodePlanNotAnUpgrade   ErrorCode = "plan_not_an_upgrade"   // 400
	ErrCodePlanAdminImmutable ErrorCode = "plan_admin_immutable"  // 409

	// Not Found (404)
	ErrCodeNotFoundPet      ErrorCode = "not_found_pet"
	ErrCodeNotFoundUser     ErrorCode = "not_found_user"
	ErrCodeNotFoundPurchase ErrorCode = "not_found_purchase"

	// Conflict (409)
	ErrCodePurchaseCanceled ErrorCode = "purchase_canceled"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB          ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamStripe      ErrorCode = "upstream_stripe_unavailable"
	ErrCodeUpstreamSMS         ErrorCode = "upstream_sms_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case c == ErrCodeAuthMissingIdentity, c == ErrCodeAuthInvalidSignature:
		return http.StatusUnauthorized // 401
	case c == ErrCodeAuthForbidden:
		return http.StatusForbidden // 403
	case c == ErrCodeQuotaPetsExceeded:
		return http.StatusForbidden // 403
	case c == ErrCodePlanInvalidTarget, c == ErrCodePlanNotAnUpgrade:
		return http.StatusBadRequest // 400
	case c == ErrCodePlanAdminImmutable:
		return http.StatusConflict // 409
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case c == ErrCodePurchaseCanceled:
		return http.StatusConflict // 409
	case c == ErrCodeUpstreamRateLimited:
		return http.StatusTooManyRequests // 429
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the
// platform. All domain and handler errors should be expressed as AppError to
// enable consistent error formatting, HTTP status mapping, and error chain
// support. The Message is always safe for direct display to the user.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error. This is the standard constructor for domain
// errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
