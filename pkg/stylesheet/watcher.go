package stylesheet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchOptions configures a Watcher.
type WatchOptions struct {
	// Debounce groups rapid writes to the same file into one rescore.
	Debounce time.Duration
	// Excludes are doublestar patterns matched against paths relative to a
	// watched directory.
	Excludes []string
}

// DefaultWatchOptions returns the options used by the command line tool.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		Debounce: 200 * time.Millisecond,
		Excludes: DefaultExcludes,
	}
}

// Watcher rescores stylesheets whenever they change on disk and hands the
// new sheet to a callback.
//
// Usage:
//
//	w, err := NewWatcher(parser, func(s *Sheet) { ... }, DefaultWatchOptions(), log)
//	if err != nil {
//	    return err
//	}
//	if err := w.Start(ctx, "styles/"); err != nil {
//	    return err
//	}
//	defer w.Stop()
type Watcher struct {
	watcher *fsnotify.Watcher
	parser  *Parser
	onSheet func(*Sheet)
	log     *zap.Logger
	options WatchOptions

	// Watched directories and explicitly watched files, both absolute
	roots map[string]bool
	files map[string]bool

	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	stopChan chan struct{}
	started  bool
	stopped  bool
	mu       sync.Mutex
}

// NewWatcher creates a new stylesheet watcher.
func NewWatcher(parser *Parser, onSheet func(*Sheet), options WatchOptions, log *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if parser == nil {
		parser = NewParser(nil, log)
	}
	if log == nil {
		log = zap.NewNop()
	}
	if options.Debounce <= 0 {
		options.Debounce = DefaultWatchOptions().Debounce
	}

	return &Watcher{
		watcher:        fw,
		parser:         parser,
		onSheet:        onSheet,
		log:            log.Named("watcher"),
		options:        options,
		roots:          make(map[string]bool),
		files:          make(map[string]bool),
		debounceTimers: make(map[string]*time.Timer),
		stopChan:       make(chan struct{}),
	}, nil
}

// Start watches the given files and directories. Directories are watched
// recursively for .css files; a file is watched through its parent
// directory so that editors replacing it on save are still seen. The
// watcher runs until Stop is called or ctx is done. A watcher can only be
// started once.
func (w *Watcher) Start(ctx context.Context, paths ...string) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return fmt.Errorf("watcher already stopped")
	}
	if w.started {
		w.mu.Unlock()
		return fmt.Errorf("watcher already started")
	}
	w.started = true
	w.mu.Unlock()

	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve '%s': %w", path, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("failed to stat '%s': %w", path, err)
		}

		if !info.IsDir() {
			w.files[abs] = true
			if err := w.watcher.Add(filepath.Dir(abs)); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			continue
		}

		w.roots[abs] = true
		err = filepath.WalkDir(abs, func(dir string, d os.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			if dir != abs && w.isExcluded(dir) {
				return filepath.SkipDir
			}
			if err := w.watcher.Add(dir); err != nil {
				w.log.Warn("Failed to watch directory", zap.String("path", dir), zap.Error(err))
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to setup watches: %w", err)
		}
	}

	w.log.Info("Watcher started", zap.Strings("paths", paths))

	go w.eventLoop(ctx)

	return nil
}

// Stop stops the watcher. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}

	w.stopped = true
	close(w.stopChan)

	w.debounceMu.Lock()
	for _, timer := range w.debounceTimers {
		timer.Stop()
	}
	w.debounceTimers = make(map[string]*time.Timer)
	w.debounceMu.Unlock()

	err := w.watcher.Close()
	w.log.Info("Watcher stopped")
	return err
}

func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if err := w.Stop(); err != nil {
				w.log.Warn("Failed to stop watcher", zap.Error(err))
			}
			return

		case <-w.stopChan:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("Watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	// New directories under a watched root are picked up as they appear
	if event.Has(fsnotify.Create) && w.underRoot(path) {
		if info, err := os.Stat(path); err == nil && info.IsDir() && !w.isExcluded(path) {
			if err := w.watcher.Add(path); err != nil {
				w.log.Warn("Failed to watch directory", zap.String("path", path), zap.Error(err))
			}
			return
		}
	}

	if !w.wanted(path) {
		return
	}

	w.log.Debug("File event", zap.String("op", event.Op.String()), zap.String("file", path))

	switch {
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		w.debounceRescore(path)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.log.Debug("Stylesheet removed", zap.String("file", path))
	}
}

// wanted reports whether an event on path concerns a watched stylesheet.
func (w *Watcher) wanted(path string) bool {
	if w.files[path] {
		return true
	}
	return IsCSSFile(path) && w.underRoot(path) && !w.isExcluded(path)
}

func (w *Watcher) underRoot(path string) bool {
	for root := range w.roots {
		if rel, err := filepath.Rel(root, path); err == nil && filepath.IsLocal(rel) {
			return true
		}
	}
	return false
}

func (w *Watcher) isExcluded(path string) bool {
	for root := range w.roots {
		if rel, err := filepath.Rel(root, path); err == nil && filepath.IsLocal(rel) {
			if isExcluded(filepath.ToSlash(rel), w.options.Excludes) {
				return true
			}
		}
	}
	return false
}

func (w *Watcher) debounceRescore(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debounceTimers[path]; exists {
		timer.Stop()
	}

	w.debounceTimers[path] = time.AfterFunc(w.options.Debounce, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()

		w.rescore(path)
	})
}

func (w *Watcher) rescore(path string) {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}

	start := time.Now()
	sheet, err := w.parser.ParseFile(path)
	if err != nil {
		w.log.Warn("Failed to rescore stylesheet", zap.String("file", path), zap.Error(err))
		return
	}

	w.log.Debug("Rescored stylesheet",
		zap.String("file", path),
		zap.Int("rules", len(sheet.Rules)),
		zap.Duration("elapsed", time.Since(start)))

	if w.onSheet != nil {
		w.onSheet(sheet)
	}
}
