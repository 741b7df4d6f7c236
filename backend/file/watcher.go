package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const DefaultDebounce = 200 * time.Millisecond

// Watcher reports changes to mounted files and Secret directories. Kubernetes swaps a `..data`
// symlink when a volume is updated, so parent directories are watched rather than the files.
type Watcher struct {
	watcher  *fsnotify.Watcher
	paths    []string
	debounce time.Duration
	onChange func(path string)

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewWatcher(paths []string, debounce time.Duration, onChange func(path string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		watcher:  fsw,
		debounce: debounce,
		onChange: onChange,
		timers:   make(map[string]*time.Timer),
	}

	dirs := make(map[string]bool)
	for _, each := range paths {
		cleaned := filepath.Clean(each)
		w.paths = append(w.paths, cleaned)

		dirs[filepath.Dir(cleaned)] = true
		if info, statErr := os.Stat(cleaned); statErr == nil && info.IsDir() {
			dirs[cleaned] = true
		}
	}

	for dir := range dirs {
		if addErr := fsw.Add(dir); addErr != nil {
			log.Warn().Err(addErr).Msgf("Cannot watch %s", dir)
		}
	}

	return w, nil
}

// Run dispatches events until the context is done
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			for _, each := range w.affected(event.Name) {
				w.schedule(each)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("File watcher error")
		}
	}
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) affected(eventPath string) []string {
	eventPath = filepath.Clean(eventPath)
	eventDir := filepath.Dir(eventPath)
	atomicSwap := strings.HasPrefix(filepath.Base(eventPath), "..")

	var result []string
	for _, each := range w.paths {
		switch {
		case eventPath == each, eventDir == each:
			result = append(result, each)
		case atomicSwap && eventDir == filepath.Dir(each):
			result = append(result, each)
		}
	}
	return result
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}

	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		log.Debug().Msgf("Change detected at %s", path)
		w.onChange(path)
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}
