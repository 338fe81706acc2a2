package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents categorized error types.
// These codes are stable and can be used for programmatic error handling.
type ErrorCode string

const (
	ErrCodeConfigMissing          ErrorCode = "config_missing"
	ErrCodeCredentialsUnavailable ErrorCode = "credentials_unavailable"
	ErrCodeMetadataUnavailable    ErrorCode = "metadata_unavailable"
	ErrCodeAuthFailed             ErrorCode = "auth_failed"
	ErrCodeMappingFailed          ErrorCode = "mapping_failed"
	ErrCodeNotFound               ErrorCode = "not_found"
	ErrCodeServiceError           ErrorCode = "service_error"
)

// String returns the error code as a string.
func (c ErrorCode) String() string {
	return string(c)
}

// HTTPStatus returns the HTTP status code for this error code.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeAuthFailed, ErrCodeMappingFailed:
		return http.StatusUnauthorized
	case ErrCodeMetadataUnavailable, ErrCodeCredentialsUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AppError is a structured error with code, message, and optional cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// ConfigError creates a fatal configuration error. These are raised at
// startup/build time and are intended to stop application boot when
// fail-on-startup is configured.
func ConfigError(message string) *AppError {
	return &AppError{Code: ErrCodeConfigMissing, Message: message}
}

// AuthError creates an authentication failure with optional cause.
func AuthError(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeAuthFailed, Message: message, Cause: cause}
}

// MappingError creates a claim mapping/decoding failure. Malformed
// claims from a misbehaving IdP surface as authentication failures, not
// as half-populated principals.
func MappingError(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeMappingFailed, Message: message, Cause: cause}
}

// Sentinel errors for the trust-data lifecycle.
var (
	// ErrNoDecryptionCredential means the credential sources yielded no
	// usable decryption credential: a fatal misconfiguration.
	ErrNoDecryptionCredential = errors.New("no decryption credential configured")

	// ErrNoTrustConfiguration means no trust configuration resolves for
	// the requested registration id (metadata not loaded yet, or an
	// unknown registration).
	ErrNoTrustConfiguration = errors.New("no trust configuration available")

	// ErrUnknownAuthnContextClass means an AuthnContextClassRef URI is
	// not in the catalog.
	ErrUnknownAuthnContextClass = errors.New("unknown authentication context class reference")
)

// ValidationError is raised by a response validation pipeline check.
// The message names the exact violated invariant and is part of the
// observable contract; Check identifies the failing step.
type ValidationError struct {
	Check   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError for the named check.
func NewValidationError(check, format string, args ...any) *ValidationError {
	return &ValidationError{Check: check, Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is (or wraps) a pipeline
// validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
