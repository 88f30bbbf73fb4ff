package task

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mediahub/config"
	"mediahub/metrics"
	"mediahub/progress"
)

// Driver runs one kind of job to a terminal outcome. It reports everything
// through rep and returns nothing.
type Driver interface {
	Run(ctx context.Context, job Job, rep *progress.Reporter)
}

// JobValidator is implemented by drivers that check their own parameters
// before the dispatcher acknowledges a job.
type JobValidator interface {
	ValidateJob(job Job) error
}

// Running describes a driver that is currently executing.
type Running struct {
	TaskID    string    `json:"taskId"`
	Kind      Kind      `json:"kind"`
	StartedAt time.Time `json:"startedAt"`
}

type Dispatcher struct {
	logger   zerolog.Logger
	cfg      *config.Config
	registry *progress.Registry
	drivers  map[Kind]Driver

	concurrencySem chan struct{} // nil when unlimited

	ctx context.Context
	wg  sync.WaitGroup

	runningMu sync.Mutex
	running   map[uint64]Running
	seq       uint64
}

func NewDispatcher(cfg *config.Config, registry *progress.Registry) *Dispatcher {
	d := &Dispatcher{
		logger:   log.With().Str("module", "task").Str("submodule", "dispatcher").Logger(),
		cfg:      cfg,
		registry: registry,
		drivers:  make(map[Kind]Driver),
		ctx:      context.Background(),
		running:  make(map[uint64]Running),
	}
	if cfg.MaxConcurrency > 0 {
		d.concurrencySem = make(chan struct{}, cfg.MaxConcurrency)
	}
	return d
}

// Register binds a driver to a job kind. It must be called before Start.
func (d *Dispatcher) Register(kind Kind, drv Driver) {
	d.drivers[kind] = drv
}

// Start sets the context every driver runs under. Cancelling it is how the
// service winds drivers down on shutdown.
func (d *Dispatcher) Start(ctx context.Context) {
	d.ctx = ctx
	d.logger.Info().
		Int("max_concurrency", d.cfg.MaxConcurrency).
		Int("drivers", len(d.drivers)).
		Msg("dispatcher started")
}

// Submit validates job and starts exactly one driver for it. The returned
// error only ever reflects validation; the driver's outcome goes to the task.
func (d *Dispatcher) Submit(job Job) error {
	if job == nil {
		return &ClientError{Msg: "job is required"}
	}

	if err := job.Validate(); err != nil {
		metrics.JobsRejected.WithLabelValues(string(job.Kind())).Inc()
		return err
	}

	drv, ok := d.drivers[job.Kind()]
	if !ok {
		return fmt.Errorf("no driver registered for %s jobs", job.Kind())
	}

	if v, ok := drv.(JobValidator); ok {
		if err := v.ValidateJob(job); err != nil {
			metrics.JobsRejected.WithLabelValues(string(job.Kind())).Inc()
			return err
		}
	}

	rep := d.registry.NewReporter(job.ID())

	d.wg.Add(1)
	go d.run(drv, job, rep)

	d.logger.Info().Str("task_id", job.ID()).Str("kind", string(job.Kind())).Msg("job accepted")
	return nil
}

func (d *Dispatcher) run(drv Driver, job Job, rep *progress.Reporter) {
	defer d.wg.Done()

	ctx := d.ctx
	logger := d.logger.With().Str("task_id", job.ID()).Str("kind", string(job.Kind())).Logger()

	// Wait for a free processing slot
	if d.concurrencySem != nil {
		select {
		case d.concurrencySem <- struct{}{}:
			defer func() { <-d.concurrencySem }()
		case <-ctx.Done():
			rep.Fail(ctx.Err())
			<-rep.Done()
			return
		}
	}

	key := d.track(job)
	defer d.untrack(key)

	kind := string(job.Kind())
	metrics.JobsStarted.WithLabelValues(kind).Inc()
	metrics.JobsRunning.WithLabelValues(kind).Inc()
	defer metrics.JobsRunning.WithLabelValues(kind).Dec()

	started := time.Now()
	logger.Debug().Msg("driver started")

	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Msg("driver panicked")
				rep.Fail(fmt.Errorf("internal error: %v", r))
			}
		}()
		drv.Run(ctx, job, rep)
	}()

	if !rep.Finished() {
		rep.Fail(errors.New("driver returned without an outcome"))
	}
	<-rep.Done()

	result, _ := rep.Result()
	metrics.JobsFinished.WithLabelValues(kind, string(result.Status)).Inc()

	event := logger.Info()
	if result.Status == progress.StatusError {
		event = logger.Warn().Str("error", result.Message)
	}
	event.Dur("took", time.Since(started)).Msgf("job %s", result.Status)
}

func (d *Dispatcher) track(job Job) uint64 {
	d.runningMu.Lock()
	defer d.runningMu.Unlock()

	d.seq++
	d.running[d.seq] = Running{
		TaskID:    job.ID(),
		Kind:      job.Kind(),
		StartedAt: time.Now(),
	}
	return d.seq
}

func (d *Dispatcher) untrack(key uint64) {
	d.runningMu.Lock()
	defer d.runningMu.Unlock()

	delete(d.running, key)
}

// Active lists running drivers, oldest first.
func (d *Dispatcher) Active() []Running {
	d.runningMu.Lock()
	list := make([]Running, 0, len(d.running))
	for _, r := range d.running {
		list = append(list, r)
	}
	d.runningMu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].StartedAt.Before(list[j].StartedAt)
	})
	return list
}

// Wait blocks until every started driver returned or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
