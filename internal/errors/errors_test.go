package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordgridError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("disk I/O error")

	// When: wrapping it as a store write failure
	err := StoreWriteError("run-1", originalErr)

	// Then: unwrapping returns the original error
	require.NotNil(t, err)
	assert.Equal(t, originalErr, errors.Unwrap(err))
	assert.True(t, errors.Is(err, originalErr))
	assert.Equal(t, "run-1", err.Details["run_id"])
}

func TestWordgridError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{"config", ErrCodeConfigNotFound, "config file not found", "[ERR_101_CONFIG_NOT_FOUND] config file not found"},
		{"decode", ErrCodeFragmentDecode, "page 3: bad", "[ERR_202_FRAGMENT_DECODE] page 3: bad"},
		{"search", ErrCodeSearchFailed, "boom", "[ERR_503_SEARCH_FAILED] boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestWordgridError_Is_MatchesByCodeThroughWrapping(t *testing.T) {
	// Given: a not-built error wrapped by fmt
	err := fmt.Errorf("query failed: %w", IndexNotBuiltError())

	// Then: the sentinel matches and unrelated sentinels do not
	assert.True(t, errors.Is(err, ErrIndexNotBuilt))
	assert.False(t, errors.Is(err, ErrStoreWrite))
	assert.Equal(t, ErrCodeIndexNotBuilt, GetCode(err))
}

func TestCategoryAndSeverity_DerivedFromCode(t *testing.T) {
	tests := []struct {
		code     string
		category Category
		severity Severity
	}{
		{ErrCodeToleranceInvalid, CategoryConfig, SeverityFatal},
		{ErrCodeFragmentDecode, CategoryIO, SeverityWarning},
		{ErrCodeStoreWrite, CategoryIO, SeverityFatal},
		{ErrCodeInvalidField, CategoryValidation, SeverityError},
		{ErrCodeIndexNotBuilt, CategoryInternal, SeverityWarning},
		{ErrCodeAllPagesFailed, CategoryInternal, SeverityFatal},
		{"bad", CategoryInternal, SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
		})
	}
}

func TestFragmentDecodeError_CarriesPage(t *testing.T) {
	err := FragmentDecodeError(7, errors.New("unexpected EOF"))

	assert.Equal(t, "7", err.Details["page"])
	assert.Contains(t, err.Message, "page 7")
	assert.False(t, IsFatal(err))
}

func TestToleranceConfigError_ReasonDependsOnValue(t *testing.T) {
	assert.Contains(t, ToleranceConfigError(-1).Message, "negative")
	assert.Contains(t, ToleranceConfigError(math.NaN()).Message, "finite")
	assert.True(t, IsFatal(ToleranceConfigError(-1)))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeIndexLocked, "locked", nil)))
	assert.False(t, IsRetryable(New(ErrCodeInvalidField, "bad field", nil)))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestFormatForCLI(t *testing.T) {
	out := FormatForCLI(IndexNotBuiltError())
	assert.Contains(t, out, "search index has not been built")
	assert.Contains(t, out, "Hint: Run 'wordgrid index <file>' first")
	assert.Contains(t, out, ErrCodeIndexNotBuilt)

	assert.Contains(t, FormatForCLI(errors.New("plain")), ErrCodeInternal)
	assert.Empty(t, FormatForCLI(nil))
}

func TestLogAttrs_IncludesSortedDetails(t *testing.T) {
	err := New(ErrCodeFragmentDecode, "bad page", errors.New("eof")).
		WithDetail("run_id", "r1").
		WithDetail("page", "2")

	attrs := LogAttrs(err)

	require.Len(t, attrs, 6)
	assert.Equal(t, "cause", attrs[3].(slog.Attr).Key)
	assert.Equal(t, "page", attrs[4].(slog.Attr).Key)
	assert.Equal(t, "run_id", attrs[5].(slog.Attr).Key)
	assert.Len(t, LogAttrs(errors.New("plain")), 1)
	assert.Nil(t, LogAttrs(nil))
}
