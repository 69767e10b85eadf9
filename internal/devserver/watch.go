package devserver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpipe/internal/telemetry"
)

const debounceInterval = 100 * time.Millisecond

// skipDirs are never watched.
var skipDirs = []string{"node_modules", "elm-stuff", ".git"}

// Watcher calls OnChange after a quiet period following changes under its
// directories.
type Watcher struct {
	dirs     []string
	ignore   []string
	debounce time.Duration
	onChange func(ctx context.Context, paths []string)
}

// NewWatcher watches dirs recursively, skipping anything below ignore.
func NewWatcher(dirs, ignore []string, onChange func(ctx context.Context, paths []string)) *Watcher {
	return &Watcher{
		dirs:     dirs,
		ignore:   ignore,
		debounce: debounceInterval,
		onChange: onChange,
	}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	for _, dir := range w.dirs {
		if err := w.addTree(fsw, dir); err != nil {
			return err
		}
	}

	log.Info().Strs("dirs", w.dirs).Msg("Watching for changes")

	var (
		pending = make(map[string]struct{})
		timer   = time.NewTimer(w.debounce)
	)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.ignored(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}

			// new directories need their own watch
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(fsw, event.Name); err != nil {
						log.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch directory")
					}
				}
			}

			log.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("File changed")
			telemetry.GetMetrics().WatchEventsTotal.Add(ctx, 1)

			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			slices.Sort(paths)
			clear(pending)

			w.onChange(ctx, paths)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Warn().Str("dir", path).Msg("Watch directory does not exist")
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (slices.Contains(skipDirs, d.Name()) || w.ignored(path)) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) ignored(path string) bool {
	for _, dir := range w.ignore {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if slices.Contains(skipDirs, part) {
			return true
		}
	}
	return false
}
