package document

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/wordgrid/internal/errors"
)

// boundaryFile is the YAML format for manual row boundaries:
//
//	pages:
//	  1: [50, 120]
//	  4: [300.5]
type boundaryFile struct {
	Pages map[int][]float64 `yaml:"pages"`
}

// LoadBoundaries reads per-page row cut-lines from a YAML file.
func LoadBoundaries(path string) (map[int][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileNotFound, fmt.Sprintf("read boundaries %s: %v", path, err), err)
	}

	var f boundaryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid boundaries file %s: %v", path, err), err)
	}
	for page := range f.Pages {
		if page < 1 {
			return nil, errors.ConfigError(fmt.Sprintf("invalid boundaries file %s: page %d must be >= 1", path, page), nil)
		}
	}
	if f.Pages == nil {
		f.Pages = map[int][]float64{}
	}
	return f.Pages, nil
}
