package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// WatchLogLevel applies the log_level of the config file at path every time
// the file changes. The parent directory is watched because editors often
// replace the file instead of writing it in place. It returns when ctx ends.
func WatchLogLevel(ctx context.Context, path string, log zerolog.Logger) error {
	if path == "" {
		return nil
	}
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			reloadLogLevel(path, log)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("path", path).Msg("config watcher error")
		}
	}
}

func reloadLogLevel(path string, log zerolog.Logger) {
	settings, err := loadFileSettings(path)
	if err != nil {
		log.Warn().Err(err).Msg("reload config file")
		return
	}
	if settings.LogLevel == "" {
		return
	}

	level := parseLevel(settings.LogLevel)
	if level == zerolog.GlobalLevel() {
		return
	}
	zerolog.SetGlobalLevel(level)
	log.WithLevel(level).Str("log_level", level.String()).Msg("log level changed")
}
