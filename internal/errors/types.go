package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeResolution         ErrorType = "resolution"
	ErrorTypeCycle              ErrorType = "cycle"
	ErrorTypeDepth              ErrorType = "depth"
	ErrorTypeMissingTarget      ErrorType = "missing_target"
	ErrorTypeUnconfiguredLocale ErrorType = "unconfigured_locale"
	ErrorTypeMissingDictionary  ErrorType = "missing_dictionary"
	ErrorTypeTransform          ErrorType = "transform"
	ErrorTypeValidation         ErrorType = "validation"
	ErrorTypeIO                 ErrorType = "io"
	ErrorTypeConfig             ErrorType = "config"
	ErrorTypeInternal           ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeNoHandler       = "ERR_NO_SCHEME_HANDLER"
	ErrCodeHandlerFactory  = "ERR_HANDLER_FACTORY"
	ErrCodeBadURI          = "ERR_BAD_URI"
	ErrCodeFetchFailed     = "ERR_FETCH_FAILED"
	ErrCodeParseFailed     = "ERR_PARSE_FAILED"
	ErrCodeIncludeCycle    = "ERR_INCLUDE_CYCLE"
	ErrCodeSelfInclude     = "ERR_SELF_INCLUDE"
	ErrCodeIncludeDepth    = "ERR_INCLUDE_DEPTH"
	ErrCodeBadSelector     = "ERR_BAD_SELECTOR"
	ErrCodeTargetNotFound  = "ERR_TARGET_NOT_FOUND"
	ErrCodeUnknownLocale   = "ERR_UNKNOWN_LOCALE"
	ErrCodeNoDictionary    = "ERR_NO_DICTIONARY"
	ErrCodeTemplateInvalid = "ERR_TEMPLATE_INVALID"
	ErrCodeTransformFailed = "ERR_TRANSFORM_FAILED"
	ErrCodeConfigInvalid   = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound    = "ERR_FILE_NOT_FOUND"
	ErrCodeWriteFailed     = "ERR_WRITE_FAILED"
	ErrCodeUnknownGroup    = "ERR_UNKNOWN_GROUP"
	ErrCodeInternalError   = "ERR_INTERNAL"
)

// ContentError is a structured error type with context.
type ContentError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	Context  map[string]interface{}
	Location string
}

// Error implements the error interface.
func (e *ContentError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Location != "" {
		parts = append(parts, e.Location)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *ContentError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *ContentError) Is(target error) bool {
	var t *ContentError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *ContentError) WithContext(key string, value interface{}) *ContentError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation records the resource the error refers to.
func (e *ContentError) WithLocation(location string) *ContentError {
	e.Location = location

	return e
}

// Error creation functions

// NewResolutionError reports a URI no handler could resolve.
func NewResolutionError(code, message string, cause error) *ContentError {
	return &ContentError{Type: ErrorTypeResolution, Code: code, Message: message, Cause: cause}
}

// NewCycleError reports an include directive that references itself.
func NewCycleError(code, message string) *ContentError {
	return &ContentError{Type: ErrorTypeCycle, Code: code, Message: message}
}

// NewDepthError reports include nesting beyond the fixed maximum.
func NewDepthError(message string) *ContentError {
	return &ContentError{Type: ErrorTypeDepth, Code: ErrCodeIncludeDepth, Message: message}
}

// NewMissingTargetError reports an intra-document selector that matched nothing.
func NewMissingTargetError(message string) *ContentError {
	return &ContentError{Type: ErrorTypeMissingTarget, Code: ErrCodeTargetNotFound, Message: message}
}

// NewUnconfiguredLocaleError reports a locale without a configuration entry.
func NewUnconfiguredLocaleError(locale string) *ContentError {
	return (&ContentError{
		Type:    ErrorTypeUnconfiguredLocale,
		Code:    ErrCodeUnknownLocale,
		Message: fmt.Sprintf("locale %q is not configured", locale),
	}).WithContext("locale", locale)
}

// NewMissingDictionaryError reports a locale whose fallback chain has no dictionary.
func NewMissingDictionaryError(group, locale string) *ContentError {
	return (&ContentError{
		Type:    ErrorTypeMissingDictionary,
		Code:    ErrCodeNoDictionary,
		Message: fmt.Sprintf("no dictionary for locale %q in group %q", locale, group),
	}).WithContext("locale", locale).WithContext("group", group)
}

// NewTransformError reports a failed transformation step.
func NewTransformError(code, message string, cause error) *ContentError {
	return &ContentError{Type: ErrorTypeTransform, Code: code, Message: message, Cause: cause}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *ContentError {
	return &ContentError{Type: ErrorTypeValidation, Code: code, Message: message}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *ContentError {
	return &ContentError{Type: ErrorTypeIO, Code: code, Message: message, Cause: cause}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *ContentError {
	return &ContentError{Type: ErrorTypeConfig, Code: code, Message: message}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *ContentError {
	return &ContentError{Type: ErrorTypeInternal, Code: code, Message: message, Cause: cause}
}

// IsType reports whether any error in err's chain is a ContentError of type t.
func IsType(err error, t ErrorType) bool {
	for err != nil {
		var ce *ContentError
		if !errors.As(err, &ce) {
			return false
		}
		if ce.Type == t {
			return true
		}
		err = ce.Cause
	}

	return false
}

// TypeOf returns the type of the outermost ContentError in err's chain.
func TypeOf(err error) ErrorType {
	var ce *ContentError
	if errors.As(err, &ce) {
		return ce.Type
	}

	return ""
}
