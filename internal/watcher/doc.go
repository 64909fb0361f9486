// Package watcher reports changes to a small set of files: the indexed
// document and the files that shape how it is indexed.
//
// fsnotify watches the parent directories so editors that save by rename
// are still seen. Polling is the fallback when fsnotify is unavailable.
// Events are debounced per path and delivered in batches.
//
// Usage:
//
//	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	_ = w.Watch("/docs/report.pdf", watcher.RoleDocument)
//	go func() { _ = w.Start(ctx) }()
//
//	for batch := range w.Events() {
//	    // reindex
//	}
package watcher
