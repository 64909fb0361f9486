package layout

import (
	"errors"
	"fmt"
	"math"
	"testing"

	wgerrors "github.com/Aman-CERP/wordgrid/internal/errors"
	"github.com/Aman-CERP/wordgrid/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frag(text string, x, y float64) geometry.Fragment {
	return geometry.Fragment{Text: text, X: x, Y: y, Width: 10, Height: 10}
}

func tol(v float64) *float64 { return &v }

func rowTexts(l *RowLayout) []string {
	out := make([]string, len(l.Rows))
	for i, r := range l.Rows {
		out[i] = r.Text()
	}
	return out
}

func TestCluster_ToleranceDecidesMerge(t *testing.T) {
	c := NewRowClusterer(DefaultConfig())
	frags := []geometry.Fragment{frag("a", 0, 100.0), frag("b", 20, 100.4)}

	// When: tolerance covers the 0.4 gap
	merged, err := c.Cluster(frags, tol(1.0), nil)
	require.NoError(t, err)

	// Then: one row
	assert.Equal(t, []string{"a b"}, rowTexts(merged))

	// When: tolerance is below the gap
	split, err := c.Cluster(frags, tol(0.2), nil)
	require.NoError(t, err)

	// Then: two rows, top to bottom
	assert.Equal(t, []string{"a", "b"}, rowTexts(split))
}

func TestCluster_ManualBoundariesOverrideTolerance(t *testing.T) {
	c := NewRowClusterer(DefaultConfig())

	// Given: fragments far apart inside [50,120) and close together across 120
	frags := []geometry.Fragment{
		frag("top", 0, 55),
		frag("still-top", 30, 115),
		frag("bottom", 0, 121),
	}

	// When: clustering with a huge tolerance and boundaries [120, 50] (unsorted)
	layout, err := c.Cluster(frags, tol(1000), []float64{120, 50})
	require.NoError(t, err)

	// Then: boundaries decide, giving two rows
	assert.True(t, layout.Manual)
	assert.Equal(t, []string{"top still-top", "bottom"}, rowTexts(layout))
}

func TestCluster_ManualBoundariesOpenEndedIntervals(t *testing.T) {
	c := NewRowClusterer(DefaultConfig())
	frags := []geometry.Fragment{frag("below", 0, 500), frag("above", 0, 10), frag("mid", 0, 60)}

	layout, err := c.Cluster(frags, nil, []float64{50, 120})
	require.NoError(t, err)

	assert.Equal(t, []string{"above", "mid", "below"}, rowTexts(layout))
	assert.InDelta(t, 10, layout.Rows[0].AnchorY, 1e-9)
}

func TestCluster_AnchorIsFirstFragmentNotCentroid(t *testing.T) {
	c := NewRowClusterer(DefaultConfig())

	// Given: a slow drift where each step is within tolerance of the previous
	frags := []geometry.Fragment{frag("a", 0, 10), frag("b", 10, 10.9), frag("c", 20, 11.8)}

	layout, err := c.Cluster(frags, tol(1.0), nil)
	require.NoError(t, err)

	// Then: "c" is compared with anchor 10, not with "b"
	assert.Equal(t, []string{"a b", "c"}, rowTexts(layout))
	assert.InDelta(t, 10, layout.Rows[0].AnchorY, 1e-9)
}

func TestCluster_FragmentsSortedByXWithinRow(t *testing.T) {
	c := NewRowClusterer(DefaultConfig())
	frags := []geometry.Fragment{frag("c", 300, 50), frag("a", 10, 50.2), frag("b", 100, 49.9)}

	layout, err := c.Cluster(frags, nil, nil)
	require.NoError(t, err)

	require.Len(t, layout.Rows, 1)
	for i := 1; i < len(layout.Rows[0].Fragments); i++ {
		assert.LessOrEqual(t, layout.Rows[0].Fragments[i-1].X, layout.Rows[0].Fragments[i].X)
	}
	assert.Equal(t, "a b c", layout.Rows[0].Text())
}

func TestCluster_Deterministic(t *testing.T) {
	c := NewRowClusterer(DefaultConfig())
	var frags []geometry.Fragment
	for i := 0; i < 60; i++ {
		frags = append(frags, frag(fmt.Sprintf("w%d", i), float64((i*37)%200), float64((i*13)%90)/3))
	}

	first, err := c.Cluster(frags, tol(0.5), nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := c.Cluster(frags, tol(0.5), nil)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCluster_EdgeCases(t *testing.T) {
	c := NewRowClusterer(DefaultConfig())

	t.Run("no fragments", func(t *testing.T) {
		layout, err := c.Cluster(nil, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, layout.Rows)
	})

	t.Run("single fragment", func(t *testing.T) {
		layout, err := c.Cluster([]geometry.Fragment{frag("only", 1, 1)}, nil, nil)
		require.NoError(t, err)
		require.Len(t, layout.Rows, 1)
		assert.Len(t, layout.Rows[0].Fragments, 1)
	})

	t.Run("zero tolerance merges only identical Y", func(t *testing.T) {
		frags := []geometry.Fragment{frag("a", 0, 5), frag("b", 1, 5), frag("c", 2, 5.0001)}
		layout, err := c.Cluster(frags, tol(0), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"a b", "c"}, rowTexts(layout))
	})

	t.Run("negative tolerance behaves like zero", func(t *testing.T) {
		frags := []geometry.Fragment{frag("a", 0, 5), frag("b", 1, 5), frag("c", 2, 6)}
		layout, err := c.Cluster(frags, tol(-3), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"a b", "c"}, rowTexts(layout))
	})

	t.Run("non-finite tolerance rejected", func(t *testing.T) {
		_, err := c.Cluster([]geometry.Fragment{frag("a", 0, 0)}, tol(math.NaN()), nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, wgerrors.ErrToleranceConfig))
	})

	t.Run("input slice is not reordered", func(t *testing.T) {
		frags := []geometry.Fragment{frag("low", 0, 90), frag("high", 0, 10)}
		_, err := c.Cluster(frags, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "low", frags[0].Text)
	})
}

func TestDeriveTolerance(t *testing.T) {
	c := NewRowClusterer(DefaultConfig())

	tests := []struct {
		name    string
		heights []float64
		want    float64
	}{
		{"average of positive heights", []float64{10, 20, 0, -4}, 1.5},
		{"fallback when none positive", []float64{0, -1}, 1.2},
		{"fallback when empty", nil, 1.2},
		{"epsilon floor", []float64{0.001}, 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frags := make([]geometry.Fragment, len(tt.heights))
			for i, h := range tt.heights {
				frags[i] = geometry.Fragment{Height: h}
			}
			assert.InDelta(t, tt.want, c.DeriveTolerance(frags), 1e-12)
		})
	}
}

func TestCluster_OverMergedDiagnostic(t *testing.T) {
	c := NewRowClusterer(Config{OverMergeThreshold: 3})

	var frags []geometry.Fragment
	for i := 0; i < 4; i++ {
		frags = append(frags, frag("x", float64(i*10), 100))
	}
	frags = append(frags, frag("y", 0, 200))

	layout, err := c.Cluster(frags, nil, nil)
	require.NoError(t, err)

	require.Len(t, layout.Rows, 2)
	assert.Equal(t, []Diagnostic{{Row: 1, Fragments: 4}}, layout.OverMerged)
}

func TestNewRowClusterer_FillsDefaults(t *testing.T) {
	cfg := NewRowClusterer(Config{}).Config()
	assert.Equal(t, 0.1, cfg.ToleranceRatio)
	assert.Equal(t, 12.0, cfg.FallbackHeight)
	assert.Equal(t, 0, cfg.OverMergeThreshold)
}
