// Package daemon composes the queue, pipeline, correlation engine, watcher,
// and schedules into a single-instance background process. Exactly one
// worker consumes the queue; every dispatched job runs to completion before
// the next is pulled.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"chimera/internal/catalog"
	"chimera/internal/config"
	"chimera/internal/convo"
	"chimera/internal/correlation"
	"chimera/internal/logging"
	"chimera/internal/pipeline"
	"chimera/internal/queue"
	"chimera/internal/startup"
	"chimera/internal/vectorstore"
	"chimera/internal/watch"
)

// Daemon owns the background processing lifecycle.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	queue       *queue.Queue
	catalog     *catalog.Store
	vectors     vectorstore.Store
	pipeline    *pipeline.Coordinator
	correlation *correlation.Engine
	exports     *convo.Registry
	watcher     *watch.Watcher
	telemetry   *Telemetry

	lockPath string
	lock     *flock.Flock
	cron     *cron.Cron

	running atomic.Bool
	ready   atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Deps are the collaborators the daemon composes. All fields are required
// except Watcher, which may be nil when no library roots are configured.
type Deps struct {
	Queue       *queue.Queue
	Catalog     *catalog.Store
	Vectors     vectorstore.Store
	Pipeline    *pipeline.Coordinator
	Correlation *correlation.Engine
	Exports     *convo.Registry
	Watcher     *watch.Watcher
}

// New constructs a daemon.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if deps.Queue == nil || deps.Catalog == nil || deps.Vectors == nil || deps.Pipeline == nil || deps.Correlation == nil {
		return nil, errors.New("daemon requires queue, catalog, vectors, pipeline, and correlation")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if deps.Exports == nil {
		deps.Exports = convo.NewRegistry()
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "daemon"),
		queue:       deps.Queue,
		catalog:     deps.Catalog,
		vectors:     deps.Vectors,
		pipeline:    deps.Pipeline,
		correlation: deps.Correlation,
		exports:     deps.Exports,
		watcher:     deps.Watcher,
		telemetry:   NewTelemetry(time.Duration(cfg.Daemon.JustCompletedWindow) * time.Second),
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
	}, nil
}

// Start acquires the single-instance lock, runs the startup sequence,
// rehydrates pending jobs, starts the watcher bridge, worker loop, and
// schedules, then marks the daemon ready.
func (d *Daemon) Start(ctx context.Context, progress startup.Progress) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another chimera daemon instance is already running")
	}

	manager := startup.New(d.startupChecks(), progress, d.logger)
	result := manager.Run(ctx)
	if !result.Success {
		_ = d.lock.Unlock()
		return fmt.Errorf("startup checks failed: %w", errors.Join(result.Errors...))
	}

	rehydrated, err := d.queue.LoadPendingJobs(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("rehydrate pending jobs: %w", err)
	}
	if rehydrated > 0 {
		d.logger.Info("rehydrated pending jobs", logging.Args(logging.Int("count", rehydrated))...)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running.Store(true)

	d.wg.Add(1)
	go d.workerLoop(runCtx)

	if d.watcher != nil {
		d.watcher.Start(runCtx)
		d.wg.Add(1)
		go d.watchBridge(runCtx)
	}
	if err := d.startSchedules(runCtx); err != nil {
		d.logger.Warn("schedules disabled", logging.Args(logging.Error(err))...)
	}

	d.ready.Store(true)
	d.logger.Info("daemon started", logging.Args(logging.String("lock", d.lockPath))...)
	return nil
}

// Stop cancels the worker and waits for the in-flight job to finish its
// natural run; jobs are never aborted mid-flight.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.ready.Store(false)

	if d.cron != nil {
		cronCtx := d.cron.Stop()
		<-cronCtx.Done()
		d.cron = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()

	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			d.logger.Warn("failed to close watcher", logging.Args(logging.Error(err))...)
		}
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Args(logging.Error(err))...)
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and releases storage handles.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.queue != nil {
		errs = append(errs, d.queue.Store().Close())
	}
	if d.catalog != nil {
		errs = append(errs, d.catalog.Close())
	}
	if d.vectors != nil {
		errs = append(errs, d.vectors.Close())
	}
	return errors.Join(errs...)
}

// Ready reports whether the daemon finished its startup sequence.
func (d *Daemon) Ready() bool {
	return d.ready.Load()
}

// Queue exposes the job queue for the API layer.
func (d *Daemon) Queue() *queue.Queue {
	return d.queue
}

// Catalog exposes the catalog store for the API layer.
func (d *Daemon) Catalog() *catalog.Store {
	return d.catalog
}

// Telemetry exposes the current-operation tracker.
func (d *Daemon) Telemetry() *Telemetry {
	return d.telemetry
}

// LockPath reports the single-instance lock file location.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

func (d *Daemon) startupChecks() []startup.Check {
	probes := startup.Probes{
		QueueDB: func(ctx context.Context) error {
			_, err := d.queue.Stats(ctx)
			return err
		},
		CatalogDB: func(ctx context.Context) error {
			_, err := d.catalog.Stats(ctx)
			return err
		},
		VectorStore: func(ctx context.Context) error {
			_, err := d.vectors.Count(ctx)
			return err
		},
	}
	return startup.DefaultChecks(d.cfg, probes)
}

// startSchedules registers the cron-driven producers: periodic correlation
// runs and job-store cleanup.
func (d *Daemon) startSchedules(ctx context.Context) error {
	correlationSpec := d.cfg.Daemon.CorrelationSchedule
	cleanupSpec := d.cfg.Daemon.CleanupSchedule
	if correlationSpec == "" && cleanupSpec == "" {
		return nil
	}

	d.cron = cron.New()
	if correlationSpec != "" {
		_, err := d.cron.AddFunc(correlationSpec, func() {
			job, err := queue.NewCorrelationJob(queue.PriorityScheduled)
			if err != nil {
				return
			}
			if _, err := d.queue.Enqueue(ctx, job); err != nil {
				d.logger.Warn("failed to enqueue scheduled correlation", logging.Args(logging.Error(err))...)
			}
		})
		if err != nil {
			return fmt.Errorf("correlation schedule %q: %w", correlationSpec, err)
		}
	}
	if cleanupSpec != "" {
		retention := time.Duration(d.cfg.Daemon.JobRetentionDays) * 24 * time.Hour
		_, err := d.cron.AddFunc(cleanupSpec, func() {
			removed, err := d.queue.CleanupOldJobs(ctx, retention)
			if err != nil {
				d.logger.Warn("job cleanup failed", logging.Args(logging.Error(err))...)
				return
			}
			if removed > 0 {
				d.logger.Info("cleaned up old jobs", logging.Args(logging.Int64("removed", removed))...)
			}
		})
		if err != nil {
			return fmt.Errorf("cleanup schedule %q: %w", cleanupSpec, err)
		}
	}
	d.cron.Start()
	return nil
}
