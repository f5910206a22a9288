package shared

import (
	"github.com/samber/oops"
)

// Error codes
const (
	ErrCodeInvalidInput = 1001

	// Position acquisition errors (2000-2999), all fatal to acquisition
	ErrCodePermissionDenied       = 2001
	ErrCodePositionUnavailable    = 2002
	ErrCodePositionTimeout        = 2003
	ErrCodeGeolocationUnsupported = 2004

	// Group sync errors (3000-3999)
	ErrCodeNetworkFailure = 3001
	ErrCodeGroupNotFound  = 3002
	ErrCodeGroupExpired   = 3003
	ErrCodeDeleteFailed   = 3004
)

const errorCodeKey = "error_code"

// NewDomainError creates a new domain error using oops
func NewDomainError(code int, message string) error {
	return oops.
		Code(codeToString(code)).
		In("domain").
		With(errorCodeKey, code).
		Errorf("%s", message)
}

// NewDomainErrorf creates a new domain error with formatted message
func NewDomainErrorf(code int, format string, args ...interface{}) error {
	return oops.
		Code(codeToString(code)).
		In("domain").
		With(errorCodeKey, code).
		Errorf(format, args...)
}

// WrapDomainError wraps an existing error with domain context
func WrapDomainError(err error, code int, message string) error {
	return oops.
		Code(codeToString(code)).
		In("domain").
		With(errorCodeKey, code).
		Wrapf(err, "%s", message)
}

// CodeOf returns the domain error code carried by err, or 0
func CodeOf(err error) int {
	if err == nil {
		return 0
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return 0
	}
	if code, ok := oopsErr.Context()[errorCodeKey].(int); ok {
		return code
	}
	return 0
}

// HasCode reports whether err carries the given domain code
func HasCode(err error, code int) bool {
	return CodeOf(err) == code
}

// IsGroupGone reports whether err means the remote group no longer exists
func IsGroupGone(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeGroupNotFound || code == ErrCodeGroupExpired
}

// UserMessage returns the text shown to the member for an error
func UserMessage(err error) string {
	switch CodeOf(err) {
	case ErrCodePermissionDenied:
		return "Location permission denied. Please enable location access to use this app."
	case ErrCodePositionUnavailable:
		return "Location information unavailable."
	case ErrCodePositionTimeout:
		return "Location request timed out."
	case ErrCodeGeolocationUnsupported:
		return "Geolocation is not supported by your device."
	case ErrCodeGroupNotFound, ErrCodeGroupExpired:
		return "Group not found or expired. Redirecting..."
	case ErrCodeDeleteFailed:
		return "Failed to delete group. Please try again."
	case 0:
		if err == nil {
			return ""
		}
	}
	return err.Error()
}

// codeToString converts int error code to string
func codeToString(code int) string {
	switch code {
	case ErrCodeInvalidInput:
		return "INVALID_INPUT"
	case ErrCodePermissionDenied:
		return "PERMISSION_DENIED"
	case ErrCodePositionUnavailable:
		return "POSITION_UNAVAILABLE"
	case ErrCodePositionTimeout:
		return "POSITION_TIMEOUT"
	case ErrCodeGeolocationUnsupported:
		return "GEOLOCATION_UNSUPPORTED"
	case ErrCodeNetworkFailure:
		return "NETWORK_FAILURE"
	case ErrCodeGroupNotFound:
		return "GROUP_NOT_FOUND"
	case ErrCodeGroupExpired:
		return "GROUP_EXPIRED"
	case ErrCodeDeleteFailed:
		return "DELETE_FAILED"
	default:
		return "UNKNOWN_ERROR"
	}
}

// Common error builders
func ErrInvalidInput(msg string) error {
	return NewDomainError(ErrCodeInvalidInput, msg)
}
