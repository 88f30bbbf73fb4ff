package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mediahub/config"
	"mediahub/ffmpeg"
	"mediahub/progress"
	"mediahub/storage"
	"mediahub/task"
)

const defaultKeepAlive = 15 * time.Second

type Prober interface {
	Info(ctx context.Context, name string) (*ffmpeg.MediaInfo, error)
}

type SubtitleExtractor interface {
	Extract(ctx context.Context, name string) ([]byte, error)
}

// Deps are the services the HTTP layer is wired to.
type Deps struct {
	Registry   *progress.Registry
	Dispatcher *task.Dispatcher
	Store      *storage.Store
	Prober     Prober
	Subtitles  SubtitleExtractor
}

type Handler struct {
	logger zerolog.Logger
	cfg    *config.Config
	Deps
}

func NewHandler(cfg *config.Config, deps Deps) *Handler {
	return &Handler{
		logger: log.With().Str("module", "api").Logger(),
		cfg:    cfg,
		Deps:   deps,
	}
}

// handleProgress streams the events of one task as server-sent events.
func (h *Handler) handleProgress(c *gin.Context) {
	taskID := c.Param("taskId")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	sub := h.Registry.Subscribe(taskID)
	defer sub.Cancel()

	interval := h.cfg.KeepAliveInterval
	if interval <= 0 {
		interval = defaultKeepAlive
	}
	keepAlive := time.NewTicker(interval)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug().Str("task_id", taskID).Msg("progress client disconnected")
			return
		case <-keepAlive.C:
			if _, err := c.Writer.WriteString(": keepalive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case <-sub.Ready():
			events, open := sub.Drain()
			for _, ev := range events {
				c.Render(-1, sse.Event{Data: ev})
			}
			c.Writer.Flush()
			if !open {
				return
			}
		}
	}
}

func (h *Handler) submit(c *gin.Context, job task.Job) {
	if err := c.ShouldBindJSON(job); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.Dispatcher.Submit(job); err != nil {
		if task.IsClientError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error().Err(err).Str("kind", string(job.Kind())).Msg("job submission failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start job", "details": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"taskId": job.ID(), "status": "accepted"})
}

func (h *Handler) handleDownloadURL(c *gin.Context) {
	h.submit(c, &task.URLJob{})
}

func (h *Handler) handleDownloadTorrent(c *gin.Context) {
	h.submit(c, &task.SwarmJob{})
}

func (h *Handler) handleConvert(c *gin.Context) {
	h.submit(c, &task.TranscodeJob{})
}

// handleListJobs lists the drivers that are running right now.
func (h *Handler) handleListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, h.Dispatcher.Active())
}

// storageStatus maps store errors onto HTTP.
func storageStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, storage.ErrInvalidName):
		return http.StatusBadRequest, true
	}
	return 0, false
}
