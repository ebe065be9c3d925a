// Package watch keeps the planner registry's metadata current by watching
// the plugin search paths for manifest and entry-source changes.
package watch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"overmind/internal/logging"
)

// Refresher is the slice of the factory the watcher drives.
type Refresher interface {
	RefreshMetadata(ctx context.Context) int
}

// PluginWatcher watches plugin search paths and triggers a metadata refresh
// when a plugin.yaml or entry source changes. Rapid saves are debounced.
type PluginWatcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	factory     Refresher
	searchPaths []string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats WatcherStats
}

// WatcherStats tracks watcher activity for debugging.
type WatcherStats struct {
	EventsSeen        int
	RefreshesTriggers int
	Errors            int
	LastEventPath     string
	LastEventTime     time.Time
}

// NewPluginWatcher creates a watcher over the given search paths.
func NewPluginWatcher(searchPaths []string, factory Refresher) (*PluginWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &PluginWatcher{
		watcher:     watcher,
		factory:     factory,
		searchPaths: append([]string(nil), searchPaths...),
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond, // Debounce rapid saves
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the watch loop runs in a goroutine.
func (pw *PluginWatcher) Start(ctx context.Context) error {
	pw.mu.Lock()
	if pw.running {
		pw.mu.Unlock()
		return nil // Already running
	}
	pw.running = true
	pw.mu.Unlock()

	for _, root := range pw.searchPaths {
		if err := pw.watcher.Add(root); err != nil {
			// Path may not exist yet; refresh will pick it up later.
			logging.Get(logging.CategoryWatch).Warn("watch failed for %s: %v", root, err)
			continue
		}
		logging.Watch("watching plugin path: %s", root)

		// fsnotify is not recursive; watch each existing plugin directory too.
		matches, err := filepath.Glob(filepath.Join(root, "*"))
		if err != nil {
			continue
		}
		for _, dir := range matches {
			if err := pw.watcher.Add(dir); err == nil {
				logging.WatchDebug("watching plugin dir: %s", dir)
			}
		}
	}

	go pw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the loop to exit.
func (pw *PluginWatcher) Stop() {
	pw.mu.Lock()
	if !pw.running {
		pw.mu.Unlock()
		return
	}
	pw.running = false
	pw.mu.Unlock()

	close(pw.stopCh)
	<-pw.doneCh
	pw.watcher.Close()
}

// Stats returns a copy of the watcher counters.
func (pw *PluginWatcher) Stats() WatcherStats {
	pw.mu.RLock()
	defer pw.mu.RUnlock()
	return pw.stats
}

// run is the watch loop.
func (pw *PluginWatcher) run(ctx context.Context) {
	defer close(pw.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-pw.stopCh:
			return
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			pw.handleEvent(ctx, event)
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			pw.mu.Lock()
			pw.stats.Errors++
			pw.mu.Unlock()
			logging.Get(logging.CategoryWatch).Warn("watch error: %v", err)
		}
	}
}

// handleEvent filters, debounces, and dispatches one fsnotify event.
func (pw *PluginWatcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !interestingPath(event.Name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	pw.mu.Lock()
	pw.stats.EventsSeen++
	pw.stats.LastEventPath = event.Name
	pw.stats.LastEventTime = time.Now()

	// New plugin directory: start watching it so inner files produce events.
	if event.Op&fsnotify.Create != 0 && filepath.Ext(event.Name) == "" {
		pw.watcher.Add(event.Name)
	}

	last, seen := pw.debounceMap[event.Name]
	now := time.Now()
	pw.debounceMap[event.Name] = now
	pw.mu.Unlock()

	if seen && now.Sub(last) < pw.debounceDur {
		logging.WatchDebug("debounced event for %s", event.Name)
		return
	}

	logging.Watch("plugin change detected: %s (%s)", event.Name, event.Op)
	refreshed := pw.factory.RefreshMetadata(ctx)

	pw.mu.Lock()
	pw.stats.RefreshesTriggers++
	pw.mu.Unlock()
	logging.WatchDebug("refresh after %s updated %d records", event.Name, refreshed)
}

// interestingPath reports whether the changed path can affect the registry.
func interestingPath(path string) bool {
	base := filepath.Base(path)
	if base == "plugin.yaml" {
		return true
	}
	return strings.HasSuffix(base, ".go")
}
