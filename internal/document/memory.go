package document

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/wordgrid/internal/errors"
)

// MemoryDecoder serves pages held in memory. Failures injects a decode
// error for a page number.
type MemoryDecoder struct {
	Pages    []Page
	Failures map[int]error
}

// PageCount returns len(Pages).
func (d *MemoryDecoder) PageCount(ctx context.Context) (int, error) {
	return len(d.Pages), nil
}

// Page returns a copy of page number.
func (d *MemoryDecoder) Page(ctx context.Context, number int) (*Page, error) {
	if err := checkPage(number, len(d.Pages)); err != nil {
		return nil, err
	}
	if err, ok := d.Failures[number]; ok {
		return nil, errors.FragmentDecodeError(number, err)
	}

	p := d.Pages[number-1]
	p.Number = number
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Close is a no-op.
func (d *MemoryDecoder) Close() error { return nil }

// String describes the decoder for logs.
func (d *MemoryDecoder) String() string {
	return fmt.Sprintf("memory(%d pages)", len(d.Pages))
}
