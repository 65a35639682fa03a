package errors

import (
	"errors"
)

// Wrap wraps an error with additional context, creating a ContentError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *ContentError {
	if err == nil {
		return nil
	}

	var ce *ContentError
	if errors.As(err, &ce) {
		return &ContentError{
			Type:     errType,
			Code:     code,
			Message:  message,
			Cause:    ce,
			Context:  ce.Context,
			Location: ce.Location,
		}
	}

	return &ContentError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, code, message string) *ContentError {
	return Wrap(err, ErrorTypeIO, code, message)
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, code, message string) *ContentError {
	return Wrap(err, ErrorTypeConfig, code, message)
}

// WrapTransform wraps an error as a transform failure
func WrapTransform(err error, code, message string) *ContentError {
	return Wrap(err, ErrorTypeTransform, code, message)
}

// FormatError formats an error for user display
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var ce *ContentError
	if errors.As(err, &ce) {
		return ce.Error()
	}

	return err.Error()
}

// IsContained reports whether err is scoped to a single include directive
// or a single locale, as opposed to invalidating a whole resolution.
func IsContained(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeResolution, ErrorTypeCycle, ErrorTypeDepth,
		ErrorTypeMissingTarget, ErrorTypeMissingDictionary, ErrorTypeTransform:
		return true
	default:
		return false
	}
}
