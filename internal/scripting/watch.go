package scripting

import (
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher observes the script roots and the item data file and coalesces
// change bursts into reload requests. The game loop drains Reloads between
// ticks, so the actual reload always runs with the engine quiescable.
type Watcher struct {
	watcher *fsnotify.Watcher
	log     *zap.Logger

	// Reloads receives one value per settled change burst.
	Reloads chan struct{}

	closeCh chan struct{}
	once    sync.Once
}

// NewWatcher watches every directory under the given roots plus the named
// extra files (e.g. the item data file).
func NewWatcher(roots []string, extraFiles []string, log *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // a missing override root is fine
			}
			if d.IsDir() {
				return fsw.Add(path)
			}
			return nil
		})
		if err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	for _, f := range extraFiles {
		// Watching the parent survives editors that replace the file.
		if err := fsw.Add(filepath.Dir(f)); err != nil {
			log.Warn("watch data file", zap.String("file", f), zap.Error(err))
		}
	}

	w := &Watcher{
		watcher: fsw,
		log:     log,
		Reloads: make(chan struct{}, 1),
		closeCh: make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) run() {
	const settle = 250 * time.Millisecond
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !isScriptSource(event.Name) {
				continue
			}
			w.log.Debug("script source changed", zap.String("file", event.Name))
			if timer == nil {
				timer = time.NewTimer(settle)
				timerC = timer.C
			} else {
				timer.Reset(settle)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			select {
			case w.Reloads <- struct{}{}:
			default: // a reload is already pending
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("script watcher error", zap.Error(err))
		case <-w.closeCh:
			return
		}
	}
}

func isScriptSource(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".lua", manifestExt, ".yaml", ".yml":
		return true
	}
	return false
}
