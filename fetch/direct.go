package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cavaliergopher/grab/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mediahub/config"
	"mediahub/progress"
	"mediahub/storage"
	"mediahub/task"
)

const defaultSampleInterval = 250 * time.Millisecond

var ErrTooLarge = errors.New("input too large")

// Direct downloads a URL into the media directory.
type Direct struct {
	logger   zerolog.Logger
	store    *storage.Store
	client   *grab.Client
	interval time.Duration
	maxSize  int64
}

func NewDirect(cfg *config.Config, store *storage.Store) *Direct {
	client := grab.NewClient()
	if cfg.UserAgent != "" {
		client.UserAgent = cfg.UserAgent
	}

	interval := cfg.SampleInterval
	if interval <= 0 {
		interval = defaultSampleInterval
	}

	return &Direct{
		logger:   log.With().Str("module", "fetch").Str("submodule", "direct").Logger(),
		store:    store,
		client:   client,
		interval: interval,
		maxSize:  cfg.MaxInputSize,
	}
}

func (d *Direct) Run(ctx context.Context, job task.Job, rep *progress.Reporter) {
	j, ok := job.(*task.URLJob)
	if !ok {
		rep.Fail(fmt.Errorf("direct fetch cannot run %s jobs", job.Kind()))
		return
	}
	logger := d.logger.With().Str("task_id", j.TaskID).Str("url", j.URL).Logger()

	dst, err := d.store.Path(j.Filename)
	if err != nil {
		rep.Fail(err)
		return
	}

	req, err := grab.NewRequest(dst, j.URL)
	if err != nil {
		rep.Fail(&task.TransportError{Op: "fetch", Err: err})
		return
	}
	req = req.WithContext(ctx)
	// the destination is truncated, a stale partial file is never resumed
	req.NoResume = true
	if d.maxSize > 0 {
		req.BeforeCopy = func(resp *grab.Response) error {
			if size := resp.Size(); size > d.maxSize {
				return fmt.Errorf("%w: %d bytes exceeds limit of %d bytes", ErrTooLarge, size, d.maxSize)
			}
			return nil
		}
	}

	logger.Debug().Str("dst", dst).Msg("fetch started")
	resp := d.client.Do(req)

	var bp progress.ByteProgress
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ticker.C:
			rep.Emit(bp.Sample(resp.BytesComplete(), resp.Size()))
		case <-resp.Done:
			break loop
		}
	}

	if err := resp.Err(); err != nil {
		// the partial file stays where it is
		logger.Warn().Err(err).Int64("written", resp.BytesComplete()).Msg("fetch failed")
		rep.Fail(&task.TransportError{Op: "fetch " + j.URL, Err: err})
		return
	}

	rep.Emit(bp.Sample(resp.BytesComplete(), resp.Size()))
	logger.Info().Int64("bytes", resp.BytesComplete()).Msg("fetch finished")
	rep.Complete()
}
