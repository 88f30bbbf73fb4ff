package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mediahub/storage"
	"mediahub/task"
)

var ErrNoSubtitles = errors.New("no subtitle track found")

// SubtitleExtractor converts the first subtitle track of a stored file to
// WebVTT.
type SubtitleExtractor struct {
	logger zerolog.Logger
	runner *Runner
	store  *storage.Store
}

func NewSubtitleExtractor(runner *Runner, store *storage.Store) *SubtitleExtractor {
	return &SubtitleExtractor{
		logger: log.With().Str("module", "ffmpeg").Str("submodule", "subtitles").Logger(),
		runner: runner,
		store:  store,
	}
}

// Extract returns the WebVTT text. The temporary artifact is always removed.
func (e *SubtitleExtractor) Extract(ctx context.Context, name string) ([]byte, error) {
	in, _, err := e.store.Stat(name)
	if err != nil {
		return nil, err
	}

	tmp, err := e.store.TempPath(name, ".vtt")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			e.logger.Warn().Err(err).Str("path", tmp).Msg("could not delete subtitle file")
		}
	}()

	args := []string{
		"-hide_banner", "-y",
		"-i", in,
		"-map", "0:s:0?",
		"-f", "webvtt",
		tmp,
	}
	if err := e.runner.Run(ctx, args, nil); err != nil {
		// with an optional map and no subtitle stream ffmpeg has nothing to write
		if strings.Contains(err.Error(), "does not contain any stream") {
			return nil, ErrNoSubtitles
		}
		return nil, &task.EngineError{Op: "extract subtitles", Err: err}
	}

	data, err := os.ReadFile(tmp)
	if os.IsNotExist(err) {
		return nil, ErrNoSubtitles
	}
	if err != nil {
		return nil, &task.EngineError{Op: "read subtitles", Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrNoSubtitles
	}

	e.logger.Debug().Str("file", name).Int("bytes", len(data)).Msg("subtitles extracted")
	return data, nil
}
