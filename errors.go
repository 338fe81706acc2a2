package pnetidp

import "github.com/porscheinformatik/pnet-idp-client-go/internal/core/domain"

// Error types re-exported from the domain package.
type (
	ErrorCode       = domain.ErrorCode
	AppError        = domain.AppError
	ValidationError = domain.ValidationError
)

// Error codes.
const (
	ErrCodeConfigMissing          = domain.ErrCodeConfigMissing
	ErrCodeCredentialsUnavailable = domain.ErrCodeCredentialsUnavailable
	ErrCodeMetadataUnavailable    = domain.ErrCodeMetadataUnavailable
	ErrCodeAuthFailed             = domain.ErrCodeAuthFailed
	ErrCodeMappingFailed          = domain.ErrCodeMappingFailed
	ErrCodeNotFound               = domain.ErrCodeNotFound
	ErrCodeServiceError           = domain.ErrCodeServiceError
)

// Error constructors and sentinels.
var (
	ConfigError  = domain.ConfigError
	AuthError    = domain.AuthError
	MappingError = domain.MappingError

	ErrNoDecryptionCredential   = domain.ErrNoDecryptionCredential
	ErrNoTrustConfiguration     = domain.ErrNoTrustConfiguration
	ErrUnknownAuthnContextClass = domain.ErrUnknownAuthnContextClass

	IsValidationError = domain.IsValidationError
)
