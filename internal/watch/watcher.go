// Package watch turns new files in the upload directory into pipeline runs.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/capitalize-ai/vcon-datasets/pkg/logger"
	"github.com/capitalize-ai/vcon-datasets/pkg/metrics"
)

// DefaultExtension is the file extension that triggers ingestion.
const DefaultExtension = ".json"

// Event announces a new file in the watched directory.
type Event struct {
	// Path is the full path of the file.
	Path string
	// Name is the base name, used as the dataset's logical name.
	Name string
}

// Watcher publishes an Event for every qualifying file created in a directory.
type Watcher struct {
	dir       string
	extension string
	fsw       *fsnotify.Watcher
	events    chan Event
	logger    *logger.Logger
}

// NewWatcher starts watching dir (non-recursively), creating it if needed.
// Only files whose name ends in extension are published.
func NewWatcher(dir, extension string, buffer int, log *logger.Logger) (*Watcher, error) {
	if extension == "" {
		extension = DefaultExtension
	}
	if buffer < 0 {
		buffer = 0
	}
	if log == nil {
		log = logger.NewNop()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create watch directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		dir:       dir,
		extension: extension,
		fsw:       fsw,
		events:    make(chan Event, buffer),
		logger:    log.Named("watcher"),
	}, nil
}

// Events returns the channel qualifying files are published on.
// It is closed when Run returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Close releases the notifier of a watcher that will not be run.
// Run closes it on its own.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run forwards file-system notifications until ctx is done, then stops the
// underlying notifier and closes the event channel.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)
	defer w.fsw.Close()

	w.logger.Info("watching directory", zap.String("dir", w.dir), zap.String("extension", w.extension))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopped watching", zap.String("dir", w.dir))
			return nil

		case fe, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			ev, ok := w.qualify(fe)
			if !ok {
				continue
			}
			select {
			case w.events <- ev:
				metrics.WatchQueueDepth.Set(float64(len(w.events)))
			case <-ctx.Done():
				return nil
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) qualify(fe fsnotify.Event) (Event, bool) {
	if !fe.Has(fsnotify.Create) {
		return Event{}, false
	}

	if info, err := os.Stat(fe.Name); err == nil && info.IsDir() {
		return Event{}, false
	}

	name := filepath.Base(fe.Name)
	if !strings.HasSuffix(name, w.extension) {
		metrics.WatchEventsTotal.WithLabelValues("ignored").Inc()
		w.logger.Info("ignoring file with unrecognized extension", zap.String("path", fe.Name))
		return Event{}, false
	}

	metrics.WatchEventsTotal.WithLabelValues("accepted").Inc()
	w.logger.Debug("new file", zap.String("path", fe.Name))
	return Event{Path: fe.Name, Name: name}, true
}
