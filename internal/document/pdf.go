package document

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/Aman-CERP/wordgrid/internal/errors"
	"github.com/Aman-CERP/wordgrid/internal/geometry"
)

const (
	// defaultPageHeight is US Letter, used when a page has no MediaBox.
	defaultPageHeight = 792.0

	// sameLineEpsilon is the baseline difference below which glyphs share a line.
	sameLineEpsilon = 0.5

	// fragmentGapFactor breaks a fragment when the gap between glyphs exceeds
	// this multiple of the font size.
	fragmentGapFactor = 1.5

	// spaceGapFactor inserts a space between glyphs separated by more than
	// this multiple of the font size when the PDF omits one.
	spaceGapFactor = 0.2
)

// PDFDecoder extracts glyph runs with github.com/ledongthuc/pdf and groups
// them into fragments. PDF user space has a bottom-left origin, so every page
// carries a flipping transform built from its MediaBox.
type PDFDecoder struct {
	mu     sync.Mutex // the reader is not safe for concurrent page access
	file   *os.File
	reader *pdf.Reader
}

// OpenPDF opens path for decoding.
func OpenPDF(path string) (*PDFDecoder, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeUnsupportedFormat, fmt.Sprintf("open pdf %s: %v", path, err), err)
	}
	return &PDFDecoder{file: f, reader: r}, nil
}

// PageCount returns the number of pages.
func (d *PDFDecoder) PageCount(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reader.NumPage(), nil
}

// Page decodes one page. Malformed content streams make the pdf library
// panic; that is recovered into a page-local decode error.
func (d *PDFDecoder) Page(ctx context.Context, number int) (page *Page, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := checkPage(number, d.reader.NumPage()); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			page = nil
			err = errors.FragmentDecodeError(number, fmt.Errorf("malformed content stream: %v", r))
		}
	}()

	p := d.reader.Page(number)
	if p.V.IsNull() {
		return nil, errors.FragmentDecodeError(number, fmt.Errorf("page object missing"))
	}

	content := p.Content()
	page = &Page{
		Number:    number,
		Fragments: groupGlyphs(content.Text),
		Transform: geometry.Transform{
			Scale:      1,
			PageHeight: pageHeight(p.V),
			Origin:     geometry.OriginBottomLeft,
		},
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}
	return page, nil
}

// Close closes the underlying file.
func (d *PDFDecoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// pageHeight reads the MediaBox height, following Parent for inherited boxes.
func pageHeight(v pdf.Value) float64 {
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		box := v.Key("MediaBox")
		if box.Len() == 4 {
			if h := math.Abs(box.Index(3).Float64() - box.Index(1).Float64()); h > 0 {
				return h
			}
		}
		v = v.Key("Parent")
	}
	return defaultPageHeight
}

// groupGlyphs merges consecutive glyphs on the same baseline, in the same font
// size and close enough horizontally, into fragments. Content-stream order is
// kept.
func groupGlyphs(glyphs []pdf.Text) []geometry.TextFragment {
	var (
		out     []geometry.TextFragment
		cur     *geometry.TextFragment
		sb      strings.Builder
		curSize float64
		lastEnd float64
		lastS   string
	)

	flush := func() {
		if cur == nil {
			return
		}
		cur.Text = sb.String()
		if strings.TrimSpace(cur.Text) != "" {
			out = append(out, *cur)
		}
		cur = nil
		sb.Reset()
	}

	for _, g := range glyphs {
		if g.S == "" || g.S == "\n" {
			continue
		}

		if cur != nil {
			gap := g.X - lastEnd
			sameLine := math.Abs(g.Y-cur.Y) < sameLineEpsilon
			sameSize := math.Abs(g.FontSize-curSize) < 0.01
			if !sameLine || !sameSize || gap < -curSize || gap > fragmentGapFactor*math.Max(curSize, 1) {
				flush()
			} else if gap > spaceGapFactor*curSize && !endsWithSpace(lastS) && !startsWithSpace(g.S) {
				sb.WriteByte(' ')
			}
		}

		if cur == nil {
			cur = &geometry.TextFragment{X: g.X, Y: g.Y, Height: g.FontSize}
			curSize = g.FontSize
		}
		sb.WriteString(g.S)
		lastEnd = g.X + g.W
		lastS = g.S
		cur.Width = lastEnd - cur.X
	}
	flush()

	return out
}

func endsWithSpace(s string) bool {
	return s != "" && unicode.IsSpace(rune(s[len(s)-1]))
}

func startsWithSpace(s string) bool {
	return s != "" && unicode.IsSpace(rune(s[0]))
}
