// Package layout groups a page's projected text fragments into rows.
package layout

import (
	"math"
	"sort"
	"strings"

	"github.com/Aman-CERP/wordgrid/internal/errors"
	"github.com/Aman-CERP/wordgrid/internal/geometry"
)

// Row is a cluster of fragments judged to lie on one horizontal text line.
type Row struct {
	// AnchorY is the Y of the first fragment assigned to the row. Later
	// fragments are compared against it, not against each other.
	AnchorY float64

	// Fragments are sorted left to right.
	Fragments []geometry.Fragment
}

// Text joins the row's fragment texts with single spaces.
func (r Row) Text() string {
	parts := make([]string, len(r.Fragments))
	for i, f := range r.Fragments {
		parts[i] = f.Text
	}
	return strings.Join(parts, " ")
}

// Diagnostic flags a row that absorbed suspiciously many fragments.
type Diagnostic struct {
	// Row is the 1-based row number.
	Row int
	// Fragments is the number of fragments in the row.
	Fragments int
}

// RowLayout is the result of clustering one page.
type RowLayout struct {
	// Rows are sorted top to bottom.
	Rows []Row

	// Tolerance is the Y distance used for clustering. Zero when Manual is set.
	Tolerance float64

	// Manual reports that explicit boundaries decided the rows.
	Manual bool

	// OverMerged lists rows above Config.OverMergeThreshold.
	OverMerged []Diagnostic
}

// Config holds tuning for tolerance derivation and diagnostics.
type Config struct {
	// ToleranceRatio is the fraction of the average fragment height used as
	// the derived tolerance (default: 0.1).
	ToleranceRatio float64

	// Epsilon is the lower bound on a derived tolerance (default: 0.001).
	Epsilon float64

	// FallbackHeight stands in for the average height when no fragment has
	// a positive height (default: 12).
	FallbackHeight float64

	// OverMergeThreshold is the fragment count above which a row is reported
	// as over-merged (default: 20). Zero disables the diagnostic.
	OverMergeThreshold int
}

// DefaultConfig returns the default clustering configuration.
func DefaultConfig() Config {
	return Config{
		ToleranceRatio:     0.1,
		Epsilon:            0.001,
		FallbackHeight:     12,
		OverMergeThreshold: 20,
	}
}

// RowClusterer groups fragments into rows. It holds no per-page state and
// is safe for concurrent use.
type RowClusterer struct {
	config Config
}

// NewRowClusterer creates a clusterer. Zero-valued fields take defaults.
func NewRowClusterer(cfg Config) *RowClusterer {
	def := DefaultConfig()
	if cfg.ToleranceRatio <= 0 {
		cfg.ToleranceRatio = def.ToleranceRatio
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = def.Epsilon
	}
	if cfg.FallbackHeight <= 0 {
		cfg.FallbackHeight = def.FallbackHeight
	}
	if cfg.OverMergeThreshold < 0 {
		cfg.OverMergeThreshold = 0
	}
	return &RowClusterer{config: cfg}
}

// Config returns the effective configuration.
func (c *RowClusterer) Config() Config {
	return c.config
}

// Cluster groups fragments into rows.
//
// When boundaries is non-empty it is authoritative: the cut-lines split the
// Y axis into half-open intervals and every non-empty interval becomes a row.
// Otherwise rows are built first-fit: fragments are visited in ascending Y and
// each joins the earliest-created row whose anchor lies within the tolerance,
// or starts a new one. A nil tolerance is derived from fragment heights.
//
// A negative tolerance behaves like zero: only bit-identical Y values share a
// row. A non-finite tolerance is rejected.
func (c *RowClusterer) Cluster(fragments []geometry.Fragment, tolerance *float64, boundaries []float64) (*RowLayout, error) {
	if tolerance != nil && (math.IsNaN(*tolerance) || math.IsInf(*tolerance, 0)) {
		return nil, errors.ToleranceConfigError(*tolerance)
	}

	ordered := make([]geometry.Fragment, len(fragments))
	copy(ordered, fragments)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Y < ordered[j].Y
	})

	var out *RowLayout
	if cuts := sortedBoundaries(boundaries); len(cuts) > 0 {
		out = &RowLayout{Rows: splitByBoundaries(ordered, cuts), Manual: true}
	} else {
		tol := c.DeriveTolerance(fragments)
		if tolerance != nil {
			tol = *tolerance
		}
		out = &RowLayout{Rows: firstFit(ordered, tol), Tolerance: tol}
	}

	for i := range out.Rows {
		frags := out.Rows[i].Fragments
		sort.SliceStable(frags, func(a, b int) bool {
			return frags[a].X < frags[b].X
		})
	}
	sort.SliceStable(out.Rows, func(i, j int) bool {
		return out.Rows[i].AnchorY < out.Rows[j].AnchorY
	})

	if limit := c.config.OverMergeThreshold; limit > 0 {
		for i, row := range out.Rows {
			if len(row.Fragments) > limit {
				out.OverMerged = append(out.OverMerged, Diagnostic{Row: i + 1, Fragments: len(row.Fragments)})
			}
		}
	}

	return out, nil
}

// DeriveTolerance returns max(Epsilon, avgHeight*ToleranceRatio), where
// avgHeight is the mean of the positive fragment heights.
func (c *RowClusterer) DeriveTolerance(fragments []geometry.Fragment) float64 {
	var sum float64
	var n int
	for _, f := range fragments {
		if f.Height > 0 {
			sum += f.Height
			n++
		}
	}

	avg := c.config.FallbackHeight
	if n > 0 {
		avg = sum / float64(n)
	}

	return math.Max(c.config.Epsilon, avg*c.config.ToleranceRatio)
}

func firstFit(ordered []geometry.Fragment, tolerance float64) []Row {
	limit := math.Max(tolerance, 0)

	var rows []Row
	for _, f := range ordered {
		placed := false
		for i := range rows {
			if math.Abs(f.Y-rows[i].AnchorY) <= limit {
				rows[i].Fragments = append(rows[i].Fragments, f)
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, Row{AnchorY: f.Y, Fragments: []geometry.Fragment{f}})
		}
	}
	return rows
}

// splitByBoundaries assigns each fragment to the interval containing its Y.
// With k cut-lines there are k+1 intervals: (-inf,b0), [b0,b1), ..., [bk-1,+inf).
func splitByBoundaries(ordered []geometry.Fragment, cuts []float64) []Row {
	slots := make(map[int]int)
	var rows []Row
	for _, f := range ordered {
		interval := sort.Search(len(cuts), func(i int) bool { return cuts[i] > f.Y })
		idx, ok := slots[interval]
		if !ok {
			idx = len(rows)
			slots[interval] = idx
			rows = append(rows, Row{AnchorY: f.Y})
		}
		rows[idx].Fragments = append(rows[idx].Fragments, f)
	}
	return rows
}

// sortedBoundaries returns a sorted copy without NaN entries.
func sortedBoundaries(boundaries []float64) []float64 {
	if len(boundaries) == 0 {
		return nil
	}
	cuts := make([]float64, 0, len(boundaries))
	for _, b := range boundaries {
		if !math.IsNaN(b) {
			cuts = append(cuts, b)
		}
	}
	sort.Float64s(cuts)
	return cuts
}
