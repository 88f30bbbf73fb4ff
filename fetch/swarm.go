package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mediahub/config"
	"mediahub/progress"
	"mediahub/storage"
	"mediahub/task"
)

var ErrSwarmClosed = errors.New("swarm session closed")

// SwarmClient is one peer-to-peer session. It holds network resources until
// Close is called.
type SwarmClient interface {
	AddMagnet(uri string) (SwarmTorrent, error)
	Close()
}

type SwarmTorrent interface {
	WaitInfo(ctx context.Context) error
	Name() string
	Length() int64
	BytesCompleted() int64
	DownloadAll()
	// Err is non-nil once the torrent stopped for good.
	Err() error
}

// Swarm downloads magnet descriptors into the media directory. Every job gets
// its own client, released on every exit path.
type Swarm struct {
	logger    zerolog.Logger
	store     *storage.Store
	interval  time.Duration
	newClient func(dataDir string) (SwarmClient, error)
}

func NewSwarm(cfg *config.Config, store *storage.Store) *Swarm {
	interval := cfg.SampleInterval
	if interval <= 0 {
		interval = defaultSampleInterval
	}

	return &Swarm{
		logger:   log.With().Str("module", "fetch").Str("submodule", "swarm").Logger(),
		store:    store,
		interval: interval,
		newClient: func(dataDir string) (SwarmClient, error) {
			return newTorrentClient(cfg, dataDir)
		},
	}
}

func (s *Swarm) Run(ctx context.Context, job task.Job, rep *progress.Reporter) {
	j, ok := job.(*task.SwarmJob)
	if !ok {
		rep.Fail(fmt.Errorf("swarm fetch cannot run %s jobs", job.Kind()))
		return
	}
	logger := s.logger.With().Str("task_id", j.TaskID).Logger()

	client, err := s.newClient(s.store.Dir())
	if err != nil {
		rep.Fail(&task.TransportError{Op: "swarm client", Err: err})
		return
	}
	defer func() {
		client.Close()
		logger.Debug().Msg("swarm client released")
	}()

	t, err := client.AddMagnet(j.MagnetLink)
	if err != nil {
		rep.Fail(&task.TransportError{Op: "add magnet", Err: err})
		return
	}

	if err := t.WaitInfo(ctx); err != nil {
		rep.Fail(&task.TransportError{Op: "swarm metadata", Err: err})
		return
	}

	length := t.Length()
	logger.Info().Str("name", t.Name()).Int64("length", length).Msg("swarm download started")

	t.DownloadAll()
	rep.Emit(progress.Event{Percent: 0, Status: progress.StatusDownloading})

	sp := progress.NewSwarmProgress(length)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var seen int64
	for {
		completed := t.BytesCompleted()
		if delta := completed - seen; delta > 0 {
			seen = completed
			if ev, ok := sp.Add(delta); ok {
				rep.Emit(ev)
			}
		}

		if completed >= length {
			logger.Info().Str("name", t.Name()).Msg("swarm download finished")
			rep.Complete()
			return
		}

		if err := t.Err(); err != nil {
			rep.Fail(&task.TransportError{Op: "swarm", Err: err})
			return
		}

		select {
		case <-ctx.Done():
			rep.Fail(&task.TransportError{Op: "swarm", Err: ctx.Err()})
			return
		case <-ticker.C:
		}
	}
}
