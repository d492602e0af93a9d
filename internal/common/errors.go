package common

import (
	"errors"
	"fmt"
)

// Error codes. Each pipeline failure carries exactly one of them.
const (
	CodeExtraction        = "EXTRACTION"
	CodeSegmentation      = "SEGMENTATION"
	CodeTransientDispatch = "TRANSIENT_DISPATCH"
	CodePermanentDispatch = "PERMANENT_DISPATCH"
	CodeResponseFormat    = "RESPONSE_FORMAT"
	CodePersistence       = "PERSISTENCE"
	CodeConfig            = "CONFIG_ERROR"
	CodeState             = "STATE"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// ErrInvalidInput is the cause of every configuration validation error.
var ErrInvalidInput = errors.New("invalid input")

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func ExtractionError(message string, cause error) error {
	return NewAppError(CodeExtraction, message, cause)
}

func SegmentationError(message string, cause error) error {
	return NewAppError(CodeSegmentation, message, cause)
}

func TransientDispatchError(message string, cause error) error {
	return NewAppError(CodeTransientDispatch, message, cause)
}

func PermanentDispatchError(message string, cause error) error {
	return NewAppError(CodePermanentDispatch, message, cause)
}

func ResponseFormatError(message string, cause error) error {
	return NewAppError(CodeResponseFormat, message, cause)
}

func PersistenceError(message string, cause error) error {
	return NewAppError(CodePersistence, message, cause)
}

// KindOf returns the code of the outermost AppError in err's chain, or "" when there is none.
func KindOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsKind reports whether err carries the given code.
func IsKind(err error, code string) bool {
	return err != nil && KindOf(err) == code
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return IsKind(err, CodeTransientDispatch)
}
