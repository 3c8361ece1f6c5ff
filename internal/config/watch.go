package config

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the config file and calls onChange with the freshly loaded
// Config whenever its reloadable settings change. It runs until ctx is
// cancelled.
//
// A reload that fails to parse or validate is logged and discarded; the
// running settings stay in effect. Changes to the listen address or the
// scrape interval cannot be applied to a running process and only produce a
// warning.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	last, err := Load(path)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Editors often replace the file via rename (atomic save), which
			// arrives as Create rather than Write.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous settings",
					"path", path, "err", err)
				continue
			}

			// An atomic save may have replaced the inode; re-add so the next
			// save is still observed.
			_ = watcher.Add(path)

			prev, next := last.Exporter, cfg.Exporter
			if next.ListenAddress() != prev.ListenAddress() {
				slog.Warn("config: listen address changed, restart required to apply",
					"old", prev.ListenAddress(), "new", next.ListenAddress())
			}
			if next.ScrapeInterval != prev.ScrapeInterval {
				slog.Warn("config: scrape_interval changed, restart required to apply",
					"old", prev.ScrapeInterval, "new", next.ScrapeInterval)
			}

			if reloadableEqual(prev, next) {
				slog.Debug("config: file rewritten with no reloadable changes", "path", path)
				last = cfg
				continue
			}

			slog.Info("config: reloaded", "path", path)
			last = cfg
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

// reloadableEqual reports whether the settings the running engine consumes
// are unchanged between two configs.
func reloadableEqual(a, b ExporterConfig) bool {
	return a.FTLDBPath == b.FTLDBPath &&
		a.GravityDBPath == b.GravityDBPath &&
		a.HostnameLabel == b.HostnameLabel &&
		a.TopN == b.TopN &&
		a.Timezone == b.Timezone &&
		a.LifetimeDestinations == b.LifetimeDestinations &&
		a.FreshnessFactor == b.FreshnessFactor
}
