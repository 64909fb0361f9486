package errors

import (
	stderrors "errors"
	"fmt"
	"math"
	"strconv"
)

// WordgridError is the structured error type for wordgrid.
// It carries enough context (page, run, document) for a caller to retry.
type WordgridError struct {
	// Code is the unique error code (e.g., "ERR_202_FRAGMENT_DECODE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Validation, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Sentinels for errors.Is comparisons. Matching is by code.
var (
	ErrIndexNotBuilt   = &WordgridError{Code: ErrCodeIndexNotBuilt}
	ErrFragmentDecode  = &WordgridError{Code: ErrCodeFragmentDecode}
	ErrStoreWrite      = &WordgridError{Code: ErrCodeStoreWrite}
	ErrToleranceConfig = &WordgridError{Code: ErrCodeToleranceInvalid}
	ErrAllPagesFailed  = &WordgridError{Code: ErrCodeAllPagesFailed}
	ErrRunCancelled    = &WordgridError{Code: ErrCodeRunCancelled}
	ErrIndexLocked     = &WordgridError{Code: ErrCodeIndexLocked}
	ErrInvalidField    = &WordgridError{Code: ErrCodeInvalidField}
)

// Error implements the error interface.
func (e *WordgridError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *WordgridError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
func (e *WordgridError) Is(target error) bool {
	if t, ok := target.(*WordgridError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *WordgridError) WithDetail(key, value string) *WordgridError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *WordgridError) WithSuggestion(suggestion string) *WordgridError {
	e.Suggestion = suggestion
	return e
}

// New creates a new WordgridError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *WordgridError {
	return &WordgridError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a WordgridError from an existing error.
// The error's message becomes the WordgridError message.
func Wrap(code string, err error) *WordgridError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *WordgridError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *WordgridError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *WordgridError {
	return New(ErrCodeInternal, message, cause)
}

// FragmentDecodeError reports a page whose fragments could not be decoded.
// The page is skipped and the run continues.
func FragmentDecodeError(page int, cause error) *WordgridError {
	msg := fmt.Sprintf("page %d: cannot decode text fragments", page)
	if cause != nil {
		msg = fmt.Sprintf("page %d: %v", page, cause)
	}
	return New(ErrCodeFragmentDecode, msg, cause).
		WithDetail("page", strconv.Itoa(page))
}

// ToleranceConfigError rejects a row tolerance before clustering begins.
func ToleranceConfigError(tolerance float64) *WordgridError {
	reason := "must not be negative"
	if math.IsNaN(tolerance) || math.IsInf(tolerance, 0) {
		reason = "must be a finite number"
	}
	return New(ErrCodeToleranceInvalid,
		fmt.Sprintf("invalid row tolerance %v: %s", tolerance, reason), nil).
		WithDetail("tolerance", strconv.FormatFloat(tolerance, 'g', -1, 64)).
		WithSuggestion("Remove clustering.tolerance to derive it from fragment heights, or set a value >= 0")
}

// StoreWriteError reports a failed replace of a document's word set.
// The previous word set is left in place.
func StoreWriteError(runID string, cause error) *WordgridError {
	return New(ErrCodeStoreWrite, fmt.Sprintf("word store write failed: %v", cause), cause).
		WithDetail("run_id", runID).
		WithSuggestion("Re-run the index command; the previous index is unchanged")
}

// IndexNotBuiltError reports a query made before any successful index build.
func IndexNotBuiltError() *WordgridError {
	return New(ErrCodeIndexNotBuilt, "search index has not been built", nil).
		WithSuggestion("Run 'wordgrid index <file>' first")
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if we, ok := as(err); ok {
		return we.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if we, ok := as(err); ok {
		return we.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a WordgridError.
// Returns empty string if not a WordgridError.
func GetCode(err error) string {
	if we, ok := as(err); ok {
		return we.Code
	}
	return ""
}

// GetCategory extracts the category from a WordgridError.
func GetCategory(err error) Category {
	if we, ok := as(err); ok {
		return we.Category
	}
	return ""
}

// as finds the first WordgridError in err's chain.
func as(err error) (*WordgridError, bool) {
	var we *WordgridError
	if stderrors.As(err, &we) {
		return we, true
	}
	return nil, false
}
