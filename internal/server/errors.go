package server

import (
	"errors"

	"github.com/localrivet/kbrag/internal/errortypes"
)

// Error response codes carried in the code field of tool responses
const (
	StatusCodeValidationError  = "VALIDATION_ERROR"
	StatusCodeFormatError      = "UNSUPPORTED_FORMAT"
	StatusCodeIndexNotFound    = "INDEX_NOT_FOUND"
	StatusCodeEmbeddingError   = "EMBEDDING_ERROR"
	StatusCodeGenerationError  = "GENERATION_ERROR"
	StatusCodePersistenceError = "PERSISTENCE_ERROR"
	StatusCodeNetworkError     = "NETWORK_ERROR"
	StatusCodeConfigError      = "CONFIG_ERROR"
	StatusCodeExternalError    = "EXTERNAL_ERROR"
	StatusCodeInternalError    = "INTERNAL_ERROR"
	StatusCodeUnknownError     = "UNKNOWN_ERROR"
)

// errorCode maps an error to the machine-readable code reported to tool
// callers. Errors that are not AppErrors map to StatusCodeUnknownError.
func errorCode(err error) string {
	var appErr *errortypes.AppError
	if !errors.As(err, &appErr) {
		return StatusCodeUnknownError
	}

	switch appErr.Type {
	case errortypes.ErrorTypeValidation:
		return StatusCodeValidationError
	case errortypes.ErrorTypeFormat:
		return StatusCodeFormatError
	case errortypes.ErrorTypeIndexNotFound:
		return StatusCodeIndexNotFound
	case errortypes.ErrorTypeEmbedding:
		return StatusCodeEmbeddingError
	case errortypes.ErrorTypeGeneration:
		return StatusCodeGenerationError
	case errortypes.ErrorTypePersistence:
		return StatusCodePersistenceError
	case errortypes.ErrorTypeNetwork:
		return StatusCodeNetworkError
	case errortypes.ErrorTypeConfig:
		return StatusCodeConfigError
	case errortypes.ErrorTypeAPI, errortypes.ErrorTypeExternal:
		return StatusCodeExternalError
	case errortypes.ErrorTypeInternal:
		return StatusCodeInternalError
	default:
		return StatusCodeUnknownError
	}
}
