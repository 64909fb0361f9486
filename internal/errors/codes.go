// Package errors provides structured error handling for wordgrid.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (documents, word store, locks)
//   - 4XX: Validation errors
//   - 5XX: Internal errors (indexing runs, search)
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates document, store and lock errors.
	CategoryIO Category = "IO"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates indexing and search failures.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal aborts the current run.
	SeverityFatal Severity = "FATAL"
	// SeverityError fails the operation; the caller may continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning is absorbed and logged.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeToleranceInvalid = "ERR_103_TOLERANCE_INVALID"

	// IO errors (200-299)
	ErrCodeFileNotFound      = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFragmentDecode    = "ERR_202_FRAGMENT_DECODE"
	ErrCodeStoreWrite        = "ERR_203_STORE_WRITE"
	ErrCodeStoreRead         = "ERR_204_STORE_READ"
	ErrCodeIndexLocked       = "ERR_205_INDEX_LOCKED"
	ErrCodeUnsupportedFormat = "ERR_206_UNSUPPORTED_FORMAT"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidField = "ERR_402_INVALID_FIELD"

	// Internal errors (500-599)
	ErrCodeInternal       = "ERR_501_INTERNAL"
	ErrCodeIndexNotBuilt  = "ERR_502_INDEX_NOT_BUILT"
	ErrCodeSearchFailed   = "ERR_503_SEARCH_FAILED"
	ErrCodeAllPagesFailed = "ERR_504_ALL_PAGES_FAILED"
	ErrCodeRunCancelled   = "ERR_505_RUN_CANCELLED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "1" from "ERR_101_CONFIG_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStoreWrite, ErrCodeAllPagesFailed, ErrCodeConfigInvalid, ErrCodeToleranceInvalid:
		return SeverityFatal
	case ErrCodeFragmentDecode, ErrCodeIndexNotBuilt:
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode reports whether retrying the same call can succeed.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeIndexLocked, ErrCodeStoreWrite, ErrCodeRunCancelled:
		return true
	default:
		return false
	}
}
