package document

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Aman-CERP/wordgrid/internal/errors"
	"github.com/Aman-CERP/wordgrid/internal/geometry"
)

// jsonFile is the on-disk fragment format. Pages stay raw until requested.
type jsonFile struct {
	Pages []json.RawMessage `json:"pages"`
}

type jsonPage struct {
	Height     float64                 `json:"height"`
	Scale      float64                 `json:"scale"`
	Origin     string                  `json:"origin"`
	Boundaries []float64               `json:"boundaries"`
	Fragments  []geometry.TextFragment `json:"fragments"`
}

// JSONDecoder reads pre-extracted fragments from a JSON file:
//
//	{"pages": [{"height": 792, "scale": 1, "origin": "bottom-left",
//	  "boundaries": [120.5],
//	  "fragments": [{"text": "Hello world.", "x": 72, "y": 700, "width": 80, "height": 12}]}]}
type JSONDecoder struct {
	pages []json.RawMessage
}

// OpenJSON reads path and splits it into raw pages.
func OpenJSON(path string) (*JSONDecoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileNotFound, fmt.Sprintf("read %s: %v", path, err), err)
	}
	return ParseJSON(data)
}

// ParseJSON splits data into raw pages. Only the outer structure is checked
// here; each page is decoded on demand.
func ParseJSON(data []byte) (*JSONDecoder, error) {
	var f jsonFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.New(errors.ErrCodeUnsupportedFormat, fmt.Sprintf("invalid fragment file: %v", err), err)
	}
	return &JSONDecoder{pages: f.Pages}, nil
}

// PageCount returns the number of pages in the file.
func (d *JSONDecoder) PageCount(ctx context.Context) (int, error) {
	return len(d.pages), nil
}

// Page decodes one page.
func (d *JSONDecoder) Page(ctx context.Context, number int) (*Page, error) {
	if err := checkPage(number, len(d.pages)); err != nil {
		return nil, err
	}

	var jp jsonPage
	if err := json.Unmarshal(d.pages[number-1], &jp); err != nil {
		return nil, errors.FragmentDecodeError(number, err)
	}

	origin := geometry.Origin(jp.Origin)
	switch origin {
	case "":
		origin = geometry.OriginTopLeft
	case geometry.OriginTopLeft, geometry.OriginBottomLeft:
	default:
		return nil, errors.FragmentDecodeError(number, fmt.Errorf("unknown origin %q", jp.Origin))
	}
	if origin == geometry.OriginBottomLeft && jp.Height <= 0 {
		return nil, errors.FragmentDecodeError(number, fmt.Errorf("bottom-left origin needs a positive page height"))
	}

	p := &Page{
		Number:     number,
		Fragments:  jp.Fragments,
		Transform:  geometry.Transform{Scale: jp.Scale, PageHeight: jp.Height, Origin: origin},
		Boundaries: jp.Boundaries,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Close is a no-op.
func (d *JSONDecoder) Close() error { return nil }
