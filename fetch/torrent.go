package fetch

import (
	"context"

	"github.com/anacrolix/torrent"

	"mediahub/config"
)

type torrentClient struct {
	cl *torrent.Client
}

func newTorrentClient(cfg *config.Config, dataDir string) (SwarmClient, error) {
	tc := torrent.NewDefaultClientConfig()
	tc.DataDir = dataDir
	// every job runs its own client, so the port has to be free per job
	tc.ListenPort = cfg.SwarmListenPort
	tc.Seed = cfg.SwarmSeed
	tc.NoUpload = !cfg.SwarmSeed

	cl, err := torrent.NewClient(tc)
	if err != nil {
		return nil, err
	}
	return &torrentClient{cl: cl}, nil
}

func (c *torrentClient) AddMagnet(uri string) (SwarmTorrent, error) {
	t, err := c.cl.AddMagnet(uri)
	if err != nil {
		return nil, err
	}
	return &torrentHandle{t: t}, nil
}

func (c *torrentClient) Close() {
	c.cl.Close()
}

type torrentHandle struct {
	t *torrent.Torrent
}

func (h *torrentHandle) WaitInfo(ctx context.Context) error {
	select {
	case <-h.t.GotInfo():
		return nil
	case <-h.t.Closed():
		return ErrSwarmClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *torrentHandle) Name() string          { return h.t.Name() }
func (h *torrentHandle) Length() int64         { return h.t.Length() }
func (h *torrentHandle) BytesCompleted() int64 { return h.t.BytesCompleted() }
func (h *torrentHandle) DownloadAll()          { h.t.DownloadAll() }

func (h *torrentHandle) Err() error {
	select {
	case <-h.t.Closed():
		return ErrSwarmClosed
	default:
		return nil
	}
}
