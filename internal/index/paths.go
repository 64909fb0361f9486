package index

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// Paths locates a document's files in the data directory.
type Paths struct {
	// DocumentID is derived from the absolute source path.
	DocumentID string
	// Source is the absolute source path.
	Source string
	// Store is the SQLite word store.
	Store string
	// Lock guards indexing runs on the document.
	Lock string
}

// ResolvePaths returns the data files for source under dataDir.
func ResolvePaths(dataDir, source string) (Paths, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return Paths{}, fmt.Errorf("failed to resolve %s: %w", source, err)
	}
	id := DocumentID(abs)
	return Paths{
		DocumentID: id,
		Source:     abs,
		Store:      filepath.Join(dataDir, id+".db"),
		Lock:       filepath.Join(dataDir, id+".lock"),
	}, nil
}

// DocumentID returns "<name>-<hash>" where name is the sanitized base name
// and hash is the first 12 hex digits of sha256(path).
func DocumentID(path string) string {
	sum := sha256.Sum256([]byte(path))

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return unicode.ToLower(r)
		}
		return '_'
	}, base)
	if r := []rune(name); len(r) > 32 {
		name = string(r[:32])
	}
	if name == "" {
		name = "doc"
	}
	return name + "-" + hex.EncodeToString(sum[:6])
}
