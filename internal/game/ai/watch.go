package ai

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDebounce is the quiet period after the last change before files are reloaded.
const reloadDebounce = 100 * time.Millisecond

// WatchProfiles reloads profile files from dir into reg whenever they are
// written or created, until ctx is cancelled. Invalid files are logged and
// skipped; the previous profile stays registered.
//
// Precondition: dir must be a readable directory; reg and logger must not be nil.
// Postcondition: Returns once the watcher is running, or an error if it could not start.
func WatchProfiles(ctx context.Context, dir string, reg *Registry, logger *zap.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ai.WatchProfiles: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("ai.WatchProfiles: watching %q: %w", dir, err)
	}

	go func() {
		defer w.Close()
		pending := make(map[string]struct{})
		timer := time.NewTimer(reloadDebounce)
		timer.Stop()
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 || !isYAML(ev.Name) {
					continue
				}
				pending[ev.Name] = struct{}{}
				timer.Reset(reloadDebounce)
			case <-timer.C:
				for name := range pending {
					reloadProfile(name, reg, logger)
				}
				clear(pending)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("profile watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

func reloadProfile(path string, reg *Registry, logger *zap.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("reading changed profile", zap.String("path", path), zap.Error(err))
		return
	}
	p, err := LoadProfileFromBytes(data)
	if err != nil {
		logger.Warn("invalid profile ignored", zap.String("path", path), zap.Error(err))
		return
	}
	if err := reg.Replace(p); err != nil {
		logger.Warn("replacing profile", zap.String("id", p.ID), zap.Error(err))
		return
	}
	logger.Info("profile reloaded", zap.String("id", p.ID), zap.String("path", path))
}
