package search

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/wordgrid/internal/errors"
)

// BuilderConfig selects and configures an index backend.
type BuilderConfig struct {
	// Backend is "memory" (default) or "bleve".
	Backend string
	// Fields maps scored fields to boosts. Empty uses DefaultFieldWeights.
	Fields FieldWeights
	// PrefixWeight scales prefix matches.
	PrefixWeight float64
}

// Backends lists the supported backend names.
var Backends = []string{BackendMemory, BackendBleve}

// NewBuilder returns the IndexBuilder for cfg.Backend.
func NewBuilder(cfg BuilderConfig) (IndexBuilder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendMemory:
		return NewInvertedBuilder(cfg.Fields, cfg.PrefixWeight)
	case BackendBleve:
		return NewBleveBuilder(cfg.Fields, cfg.PrefixWeight)
	default:
		return nil, errors.ConfigError(
			fmt.Sprintf("unknown search backend %q (want one of %s)", cfg.Backend, strings.Join(Backends, ", ")), nil)
	}
}
