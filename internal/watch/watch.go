package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"discbatch/internal/job"
	"discbatch/internal/logging"
)

// Handler converts one image. It runs on the watcher's processing loop, so
// at most one call is active at a time.
type Handler func(ctx context.Context, img job.DiscImage)

// Options configures a Watcher. At least one of Dir and Drive is required.
type Options struct {
	// Dir is watched for new image files.
	Dir        string
	Extensions []string
	// Settle is how long a new file's size must stay unchanged before it is
	// queued.
	Settle time.Duration
	// Poll is the interval between size checks. Defaults to one second.
	Poll time.Duration
	// Drive is the optical device to watch for media insertion.
	Drive string
	// ScanExisting queues images already present in Dir at startup.
	ScanExisting bool
	Logger       *slog.Logger
}

// Watcher feeds images from a directory and an optical drive into a single
// sequential handler.
type Watcher struct {
	opts    Options
	handler Handler
	logger  *slog.Logger
	exts    map[string]struct{}

	mu      sync.Mutex
	pending []job.DiscImage
	seen    map[string]struct{}
	wake    chan struct{}
	wg      sync.WaitGroup

	// ready is called once the sources are listening.
	ready func()
}

// New validates opts and builds a watcher.
func New(opts Options, handler Handler) (*Watcher, error) {
	opts.Dir = strings.TrimSpace(opts.Dir)
	opts.Drive = strings.TrimSpace(opts.Drive)
	if opts.Dir == "" && opts.Drive == "" {
		return nil, errors.New("watch requires a directory or a drive")
	}
	if handler == nil {
		return nil, errors.New("watch requires a handler")
	}
	if opts.Poll <= 0 {
		opts.Poll = time.Second
	}
	if opts.Settle < 0 {
		opts.Settle = 0
	}
	exts := make(map[string]struct{}, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = struct{}{}
	}
	return &Watcher{
		opts:    opts,
		handler: handler,
		logger:  logging.NewComponentLogger(opts.Logger, "watch"),
		exts:    exts,
		seen:    make(map[string]struct{}),
		wake:    make(chan struct{}, 1),
	}, nil
}

// Run watches until ctx is cancelled. Every goroutine it starts has exited
// when Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if w.opts.Dir != "" {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		if err := fsw.Add(w.opts.Dir); err != nil {
			_ = fsw.Close()
			return fmt.Errorf("watch %s: %w", w.opts.Dir, err)
		}
		var initial []string
		if w.opts.ScanExisting {
			initial = w.existing()
		}
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer fsw.Close()
			w.watchDir(ctx, fsw, initial)
		}()
		w.logger.Info("watching directory",
			logging.String("dir", w.opts.Dir),
			logging.Duration("settle", w.opts.Settle),
			logging.String(logging.FieldEventType, "watch_dir_started"),
		)
	}

	if w.opts.Drive != "" {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.watchDrive(ctx)
		}()
	}

	if w.ready != nil {
		w.ready()
	}
	w.process(ctx)
	cancel()
	w.wg.Wait()
	w.logger.Info("watch stopped", logging.String(logging.FieldEventType, "watch_stopped"))
	return nil
}

// Enqueue adds img unless it is already queued, in flight, or done.
func (w *Watcher) Enqueue(img job.DiscImage) bool {
	w.mu.Lock()
	if _, ok := w.seen[img.Path]; ok {
		w.mu.Unlock()
		w.logger.Debug("image already seen", logging.String("path", img.Path))
		return false
	}
	w.seen[img.Path] = struct{}{}
	w.pending = append(w.pending, img)
	w.mu.Unlock()

	w.logger.Info("image queued",
		logging.String("path", img.Path),
		logging.String("kind", img.Kind.String()),
		logging.String(logging.FieldEventType, "watch_image_queued"),
	)
	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

func (w *Watcher) next() (job.DiscImage, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) == 0 {
		return job.DiscImage{}, false
	}
	img := w.pending[0]
	w.pending = w.pending[1:]
	return img, true
}

// forget allows path to be queued again. Drives are forgotten once handled
// so the next inserted disc is converted.
func (w *Watcher) forget(path string) {
	w.mu.Lock()
	delete(w.seen, path)
	w.mu.Unlock()
}

func (w *Watcher) process(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		}
		for {
			if ctx.Err() != nil {
				return
			}
			img, ok := w.next()
			if !ok {
				break
			}
			w.handler(ctx, img)
			if img.Kind == job.KindDevice {
				w.forget(img.Path)
			}
		}
	}
}

type settling struct {
	size  int64
	since time.Time
}

func (w *Watcher) watchDir(ctx context.Context, fsw *fsnotify.Watcher, initial []string) {
	files := make(map[string]settling)
	track := func(path string) {
		if _, ok := files[path]; !ok {
			files[path] = settling{size: -1}
		}
	}
	for _, path := range initial {
		track(path)
	}

	ticker := time.NewTicker(w.opts.Poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if (event.Has(fsnotify.Create) || event.Has(fsnotify.Write)) && w.matches(event.Name) {
				track(event.Name)
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				delete(files, event.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logging.WarnWithContext(w.logger, "directory watcher error", "watch_dir_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "new images may be missed until restart"),
			)
		case now := <-ticker.C:
			for path, st := range files {
				info, err := os.Stat(path)
				if err != nil || !info.Mode().IsRegular() {
					delete(files, path)
					continue
				}
				if info.Size() != st.size {
					files[path] = settling{size: info.Size(), since: now}
					continue
				}
				if now.Sub(st.since) < w.opts.Settle {
					continue
				}
				delete(files, path)
				w.Enqueue(job.DiscImage{Path: path, Kind: job.KindFile})
			}
		}
	}
}

func (w *Watcher) existing() []string {
	images, err := job.Enumerate([]string{w.opts.Dir}, false, w.opts.Extensions)
	if err != nil {
		logging.WarnWithContext(w.logger, "initial scan incomplete", "watch_scan_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "some existing images are not queued"),
		)
	}
	out := make([]string, 0, len(images))
	for _, img := range images {
		if img.Kind == job.KindFile {
			out = append(out, img.Path)
		}
	}
	return out
}

func (w *Watcher) matches(path string) bool {
	_, ok := w.exts[strings.ToLower(filepath.Ext(path))]
	return ok
}
