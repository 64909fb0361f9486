// Package document decodes source files into pages of positioned text
// fragments. Failures are reported per page so one bad page can be skipped.
package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/wordgrid/internal/errors"
	"github.com/Aman-CERP/wordgrid/internal/geometry"
)

// Page is one decoded page.
type Page struct {
	// Number is 1-based.
	Number int

	// Fragments are in decoder order, in native coordinates.
	Fragments []geometry.TextFragment

	// Transform maps native coordinates to the viewport.
	Transform geometry.Transform

	// Boundaries are optional manual row cut-lines in viewport Y.
	Boundaries []float64
}

// Decoder reads pages from a source document.
type Decoder interface {
	// PageCount returns the number of pages.
	PageCount(ctx context.Context) (int, error)

	// Page decodes page number (1-based). Errors are page-local and
	// match errors.ErrFragmentDecode.
	Page(ctx context.Context, number int) (*Page, error)

	// Close releases the source.
	Close() error
}

// Open returns a decoder for path chosen by file extension.
func Open(path string) (Decoder, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, fmt.Sprintf("document not found: %s", path), err)
		}
		return nil, errors.New(errors.ErrCodeFileNotFound, fmt.Sprintf("cannot access %s: %v", path, err), err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return OpenJSON(path)
	case ".pdf":
		return OpenPDF(path)
	default:
		return nil, errors.New(errors.ErrCodeUnsupportedFormat,
			fmt.Sprintf("unsupported document format %q", filepath.Ext(path)), nil).
			WithSuggestion("Use a .pdf file or a .json fragment file")
	}
}

// Validate checks that every fragment on p has finite geometry.
func (p *Page) Validate() error {
	for i, f := range p.Fragments {
		if !f.Finite() {
			return errors.FragmentDecodeError(p.Number, fmt.Errorf("fragment %d has non-finite geometry", i))
		}
	}
	return nil
}

func checkPage(number, count int) error {
	if number < 1 || number > count {
		return errors.FragmentDecodeError(number, fmt.Errorf("page out of range 1..%d", count))
	}
	return nil
}
