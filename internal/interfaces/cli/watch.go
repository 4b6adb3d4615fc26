package cli

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/turtacn/rxntd/internal/infrastructure/database/redis"
	"github.com/turtacn/rxntd/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxntd/internal/infrastructure/storage/tabular"
	"github.com/turtacn/rxntd/pkg/errors"
)

// processFunc computes one input file.
type processFunc func(ctx context.Context, path string) error

// dirWatcher turns file events in one directory into compute calls. A file
// is processed once it has been quiet for settle.
type dirWatcher struct {
	dir        string
	extensions []string
	settle     time.Duration
	process    processFunc
	claim      func(ctx context.Context, path string) (release func(), ok bool)
	logger     logging.Logger
	now        func() time.Time

	mu      sync.Mutex
	pending map[string]time.Time
}

func newDirWatcher(dir string, extensions []string, settle time.Duration, process processFunc, logger logging.Logger) *dirWatcher {
	return &dirWatcher{
		dir:        dir,
		extensions: extensions,
		settle:     settle,
		process:    process,
		logger:     logger,
		now:        time.Now,
		pending:    make(map[string]time.Time),
	}
}

// eligible reports whether path is an input this watcher handles. Hidden
// files, temp files and outputs are skipped.
func (w *dirWatcher) eligible(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	if strings.HasSuffix(base, tabular.OutputSuffix) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, e := range w.extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// observe records activity on path.
func (w *dirWatcher) observe(path string) {
	if !w.eligible(path) {
		return
	}
	w.mu.Lock()
	w.pending[path] = w.now()
	w.mu.Unlock()
}

// due removes and returns the paths that have been quiet for settle.
func (w *dirWatcher) due() []string {
	now := w.now()
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.settle {
			out = append(out, path)
			delete(w.pending, path)
		}
	}
	sort.Strings(out)
	return out
}

// upToDate reports whether the default output of path exists and is not
// older than path.
func upToDate(path string) bool {
	in, err := os.Stat(path)
	if err != nil {
		return false
	}
	out, err := os.Stat(tabular.DefaultOutputPath(path))
	if err != nil {
		return false
	}
	return !out.ModTime().Before(in.ModTime())
}

func (w *dirWatcher) handle(ctx context.Context, path string) {
	log := w.logger.With(logging.String("input", path))
	if upToDate(path) {
		log.Debug("output up to date, skipping")
		return
	}
	if w.claim != nil {
		release, ok := w.claim(ctx, path)
		if !ok {
			log.Info("input claimed by another worker, skipping")
			return
		}
		defer release()
	}
	if err := w.process(ctx, path); err != nil {
		log.Error("compute failed", logging.Err(err))
	}
}

// scanExisting queues every eligible file already in the directory.
func (w *dirWatcher) scanExisting() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInputReadFailed, "cannot list watch directory").WithDetail(w.dir)
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			w.observe(filepath.Join(w.dir, e.Name()))
		}
	}
	return nil
}

// Run watches the directory until ctx is done.
func (w *dirWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "cannot create file watcher")
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return errors.Wrap(err, errors.ErrCodeInputReadFailed, "cannot watch directory").WithDetail(w.dir)
	}

	tick := w.settle / 2
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	w.logger.Info("watching directory", logging.String("dir", w.dir), logging.Duration("settle", w.settle))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				w.observe(ev.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", logging.Err(err))
		case <-ticker.C:
			for _, path := range w.due() {
				w.handle(ctx, path)
			}
		}
	}
}

// redisClaim serializes work on one input across workers sharing a redis.
func redisClaim(client *redis.Client, ttl time.Duration, logger logging.Logger) func(ctx context.Context, path string) (func(), bool) {
	factory := redis.NewLockFactory(client, logger)
	return func(ctx context.Context, path string) (func(), bool) {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		mu := factory.NewMutex("watch:"+abs, redis.WithLockTTL(ttl), redis.WithRetryCount(1))
		ok, err := mu.TryLock(ctx)
		if err != nil {
			logger.Warn("input lock failed", logging.String("input", path), logging.Err(err))
			return nil, false
		}
		if !ok {
			return nil, false
		}
		return func() {
			if err := mu.Unlock(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("input unlock failed", logging.String("input", path), logging.Err(err))
			}
		}, true
	}
}

func newWatchCmd() *cobra.Command {
	var (
		existing bool
		opts     pipelineOptions
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Compute descriptors for every reaction table written to a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			info, err := os.Stat(args[0])
			if err != nil || !info.IsDir() {
				return errors.InvalidParam("watch target must be a directory").WithDetail(args[0])
			}

			p, err := buildPipeline(ctx, cc, opts)
			if err != nil {
				return err
			}
			defer p.Close(ctx)
			if err := watchConfig(cc, p); err != nil {
				return err
			}

			wc := cc.Config.Watch
			w := newDirWatcher(args[0], wc.Extensions, wc.Settle, func(ctx context.Context, path string) error {
				report, err := p.compute(ctx, path, "")
				if err != nil {
					return err
				}
				p.flushMetrics(ctx)
				return PrintResult(cmd, report)
			}, cc.Logger)
			if p.redis != nil {
				w.claim = redisClaim(p.redis, wc.LockTTL, cc.Logger)
			}
			if existing {
				if err := w.scanExisting(); err != nil {
					return err
				}
			}
			return w.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&existing, "existing", false, "also process files already in the directory")
	cmd.Flags().BoolVar(&opts.Postgres, "postgres", false, "also write rows to the postgres feature sink")
	cmd.Flags().BoolVar(&opts.Publish, "publish", false, "publish a run-completed event per file")
	return cmd
}
