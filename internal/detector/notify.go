package detector

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Notifier turns fsnotify events under a directory into coalesced wake-ups.
// It only hints that a scan is worthwhile; Scan stays the source of truth.
type Notifier struct {
	dir       string
	recursive bool
	watcher   *fsnotify.Watcher
	wake      chan struct{}
	log       *slog.Logger
}

func NewNotifier(dir string, opts Options, log *slog.Logger) (*Notifier, error) {
	if log == nil {
		log = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	n := &Notifier{
		dir:       dir,
		recursive: opts.Recursive,
		watcher:   w,
		wake:      make(chan struct{}, 1),
		log:       log,
	}
	if err := n.add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	return n, nil
}

func (n *Notifier) add(root string) error {
	if !n.recursive {
		return n.watcher.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if err := n.watcher.Add(path); err != nil {
				n.log.Debug("watch add failed", "path", path, "error", err)
			}
		}
		return nil
	})
}

// Wake delivers at most one pending notification at a time.
func (n *Notifier) Wake() <-chan struct{} { return n.wake }

// Run forwards events until ctx ends or the watcher is closed.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			if n.recursive && ev.Op.Has(fsnotify.Create) {
				_ = n.add(ev.Name)
			}
			select {
			case n.wake <- struct{}{}:
			default:
			}
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			n.log.Warn("file watcher error", "error", err)
		}
	}
}

func (n *Notifier) Close() error { return n.watcher.Close() }
