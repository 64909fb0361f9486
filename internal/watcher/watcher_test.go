package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationAndRoleStrings(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "DELETE", OpDelete.String())
	assert.Equal(t, "UNKNOWN", Operation(42).String())
	assert.Equal(t, "document", RoleDocument.String())
	assert.Equal(t, "boundaries", RoleBoundaries.String())
	assert.Equal(t, "config", RoleConfig.String())
}

func TestOptions_WithDefaults(t *testing.T) {
	o := Options{DebounceWindow: time.Second}.WithDefaults()

	assert.Equal(t, time.Second, o.DebounceWindow)
	assert.Equal(t, 2*time.Second, o.PollInterval)
	assert.Equal(t, 16, o.EventBufferSize)
}

func TestPollingWatcher_DetectChanges(t *testing.T) {
	// Given: a polling watcher tracking one existing and one missing file
	dir := t.TempDir()
	doc := filepath.Join(dir, "report.json")
	later := filepath.Join(dir, "bounds.yaml")
	require.NoError(t, os.WriteFile(doc, []byte("{}"), 0o644))

	p := NewPollingWatcher(time.Hour)
	defer func() { _ = p.Stop() }()
	p.Add(doc)
	p.Add(later)

	// When: the document grows and the second file appears
	require.NoError(t, os.WriteFile(doc, []byte(`{"pages":[]}`), 0o644))
	require.NoError(t, os.WriteFile(later, []byte("pages: {}"), 0o644))
	p.detectChanges()

	// Then: one MODIFY and one CREATE are emitted
	got := map[string]Operation{}
	for range 2 {
		e := <-p.Events()
		got[e.Path] = e.Operation
	}
	assert.Equal(t, OpModify, got[doc])
	assert.Equal(t, OpCreate, got[later])

	// And: a second pass with no changes is silent
	p.detectChanges()
	select {
	case e := <-p.Events():
		t.Fatalf("unexpected event %v", e)
	default:
	}

	// When: the document is removed
	require.NoError(t, os.Remove(doc))
	p.detectChanges()
	assert.Equal(t, OpDelete, (<-p.Events()).Operation)
}

func TestHybridWatcher_FiltersToWatchedFiles(t *testing.T) {
	for _, polling := range []bool{false, true} {
		t.Run(map[bool]string{false: "fsnotify", true: "polling"}[polling], func(t *testing.T) {
			// Given: a watcher on one file in a directory with siblings
			dir := t.TempDir()
			doc := filepath.Join(dir, "report.json")
			require.NoError(t, os.WriteFile(doc, []byte("{}"), 0o644))

			w, err := NewHybridWatcher(Options{
				DebounceWindow: 20 * time.Millisecond,
				PollInterval:   20 * time.Millisecond,
				ForcePolling:   polling,
			})
			require.NoError(t, err)
			require.NoError(t, w.Watch(doc, RoleDocument))

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() { _ = w.Start(ctx) }()
			time.Sleep(100 * time.Millisecond)

			// When: a sibling and the watched file change
			require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
			require.NoError(t, os.WriteFile(doc, []byte(`{"pages":[]}`), 0o644))

			// Then: only the watched file is reported
			select {
			case batch := <-w.Events():
				require.NotEmpty(t, batch)
				for _, e := range batch {
					assert.Equal(t, doc, e.Path)
					assert.Equal(t, RoleDocument, e.Role)
				}
			case <-time.After(3 * time.Second):
				t.Fatal("timeout waiting for watcher events")
			}

			require.NoError(t, w.Stop())
			require.NoError(t, w.Stop())
		})
	}
}
