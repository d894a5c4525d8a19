package events

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/ikkim/storefront-sync/pkg/logger"
)

// FileWatchRelay turns writes to the file cache directory into signals. The
// storage write itself is the cross-process signal, so Announce does nothing.
// Writes made by this process are observed too; handlers must be idempotent.
type FileWatchRelay struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	dir     string
	files   map[string]Topic // base file name -> topic
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
	closed  bool
}

func NewFileWatchRelay(dir string, files map[string]Topic) (*FileWatchRelay, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	return &FileWatchRelay{
		watcher: watcher,
		dir:     dir,
		files:   files,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

func (r *FileWatchRelay) Announce(ctx context.Context, topic Topic) error {
	return nil
}

func (r *FileWatchRelay) Listen(ctx context.Context, deliver func(ctx context.Context, topic Topic)) error {
	r.mu.Lock()
	if r.running || r.closed {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.mu.Unlock()
	defer close(r.doneCh)

	logger.Info("Watching cache directory for changes", map[string]interface{}{
		"dir": r.dir,
	})

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.stopCh:
			return nil
		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			r.handleEvent(ctx, event, deliver)
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Cache directory watcher error", map[string]interface{}{
				"dir":   r.dir,
				"error": err.Error(),
			})
		}
	}
}

func (r *FileWatchRelay) handleEvent(ctx context.Context, event fsnotify.Event, deliver func(ctx context.Context, topic Topic)) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}
	topic, ok := r.files[filepath.Base(event.Name)]
	if !ok {
		return
	}

	logger.Debug("Cache file changed", map[string]interface{}{
		"file":  event.Name,
		"op":    event.Op.String(),
		"topic": string(topic),
	})
	deliver(ctx, topic)
}

// Close stops the listener, if any, and releases the watcher.
func (r *FileWatchRelay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	running := r.running
	r.mu.Unlock()

	close(r.stopCh)
	if running {
		<-r.doneCh
	}
	return r.watcher.Close()
}
