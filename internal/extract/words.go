// Package extract turns clustered rows into word records.
//
// Word boxes are reconstructed from whole-fragment geometry assuming every
// character in a fragment has the same width. This is an approximation and
// not glyph accurate.
package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/Aman-CERP/wordgrid/internal/geometry"
	"github.com/Aman-CERP/wordgrid/internal/layout"
	"github.com/Aman-CERP/wordgrid/internal/store"
)

// token is a word still attached to the fragment it came from.
type token struct {
	text string
	frag *geometry.Fragment
}

// Tokenize splits text on runs of whitespace. Punctuation stays attached.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// ExtractWords converts one row into words. Tokens from every fragment are
// collected first so IndexInRow runs 1..N across the whole row. Each token is
// pushed through buf in row order.
func ExtractWords(row layout.Row, page, rowNumber uint32, buf *SentenceBuffer) []store.Word {
	var tokens []token
	for i := range row.Fragments {
		f := &row.Fragments[i]
		for _, t := range Tokenize(f.Text) {
			tokens = append(tokens, token{text: t, frag: f})
		}
	}
	if len(tokens) == 0 {
		return nil
	}

	words := make([]store.Word, len(tokens))
	for i, t := range tokens {
		words[i] = store.Word{
			Text:       t.text,
			Page:       page,
			Row:        rowNumber,
			IndexInRow: uint32(i + 1),
			BBox:       WordBox(*t.frag, t.text),
			Sentence:   buf.Push(t.text),
		}
	}
	return words
}

// WordBox approximates the box of word inside f. The word is located at its
// first occurrence in the fragment text, so a word repeated within one
// fragment always maps to the first position.
func WordBox(f geometry.Fragment, word string) geometry.BBox {
	textLen := utf8.RuneCountInString(f.Text)
	if textLen == 0 {
		return geometry.BBox{f.X, f.Y - f.Height, f.X, f.Y}.Normalize()
	}

	offset := 0
	if idx := strings.Index(f.Text, word); idx > 0 {
		offset = utf8.RuneCountInString(f.Text[:idx])
	}

	charWidth := f.Width / float64(textLen)
	x0 := f.X + float64(offset)*charWidth
	x1 := x0 + float64(utf8.RuneCountInString(word))*charWidth

	return geometry.BBox{x0, f.Y - f.Height, x1, f.Y}.Normalize()
}
