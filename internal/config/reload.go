package config

import (
	"time"

	"github.com/smazurov/framelink/internal/events"
	"github.com/smazurov/framelink/internal/logging"
)

// WatchLogging reapplies the [logging] table of the file at path whenever it
// changes and announces each reload on bus. The caller stops the returned watcher.
func WatchLogging(path string, bus *events.Bus, opts ...WatcherOption[logging.Config]) (*Watcher[logging.Config], error) {
	logger := logging.GetLogger("config")

	w := NewConfigWatcher(path, ReadLoggingConfig, logger, opts...)
	w.OnReload(func(cfg logging.Config) {
		logging.UpdateLevels(cfg)
		logger.Info("Logging levels reloaded", "level", cfg.Level, "modules", len(cfg.Modules))
		bus.Publish(events.ConfigReloadedEvent{
			Path:      path,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	})

	if err := w.Start(); err != nil {
		return nil, err
	}
	return w, nil
}
