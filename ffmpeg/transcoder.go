package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mediahub/config"
	"mediahub/progress"
	"mediahub/storage"
	"mediahub/task"
)

// ffmpeg writes key=value progress blocks. out_time_ms carries microseconds
// as well, older builds only print that one.
var progressKeys = []string{"out_time_us=", "out_time_ms="}

// Transcoder re-encodes stored files with ffmpeg.
type Transcoder struct {
	logger zerolog.Logger
	runner *Runner
	prober *Prober
	store  *storage.Store

	checkResources func(ctx context.Context) error
}

func NewTranscoder(cfg *config.Config, runner *Runner, prober *Prober, store *storage.Store) *Transcoder {
	t := &Transcoder{
		logger: log.With().Str("module", "ffmpeg").Str("submodule", "transcoder").Logger(),
		runner: runner,
		prober: prober,
		store:  store,
	}
	if cfg.ThrottleEnable {
		t.checkResources = func(ctx context.Context) error {
			return CheckResources(ctx, cfg, store.Dir())
		}
	}
	return t
}

// ValidateJob rejects unsafe extraArgs before the job is acknowledged.
func (t *Transcoder) ValidateJob(job task.Job) error {
	j, ok := job.(*task.TranscodeJob)
	if !ok {
		return fmt.Errorf("transcoder cannot run %s jobs", job.Kind())
	}
	if _, err := SplitExtraArgs(j.ExtraArgs); err != nil {
		return &task.ClientError{Msg: err.Error(), Fields: []string{"extraArgs"}}
	}
	return nil
}

// BuildOptionArgs translates the optional settings of a job into ffmpeg
// flags. Settings left empty produce nothing.
func BuildOptionArgs(j *task.TranscodeJob) ([]string, error) {
	var args []string
	if j.Codec != "" {
		args = append(args, "-c:v", j.Codec)
	}
	if j.Quality != nil {
		args = append(args, "-crf", strconv.Itoa(*j.Quality))
	}
	if j.Preset != "" {
		args = append(args, "-preset", j.Preset)
	}
	if j.Bitrate != "" {
		args = append(args, "-b:v", j.Bitrate)
	}
	if j.Resolution != "" {
		args = append(args, "-s", j.Resolution)
	}

	extra, err := SplitExtraArgs(j.ExtraArgs)
	if err != nil {
		return nil, err
	}
	return append(args, extra...), nil
}

// BuildArgs wraps option flags with the fixed input, output and progress plumbing.
func BuildArgs(in, out string, options []string) []string {
	args := []string{"-hide_banner", "-y", "-i", in}
	args = append(args, options...)
	return append(args, "-progress", "pipe:1", "-nostats", out)
}

// parseProgressLine extracts the encoded position from one progress line.
func parseProgressLine(line string) (time.Duration, bool) {
	line = strings.TrimSpace(line)
	for _, key := range progressKeys {
		if !strings.HasPrefix(line, key) {
			continue
		}
		us, err := strconv.ParseInt(strings.TrimPrefix(line, key), 10, 64)
		if err != nil || us < 0 {
			return 0, false
		}
		return time.Duration(us) * time.Microsecond, true
	}
	return 0, false
}

func (t *Transcoder) Run(ctx context.Context, job task.Job, rep *progress.Reporter) {
	j, ok := job.(*task.TranscodeJob)
	if !ok {
		rep.Fail(fmt.Errorf("transcoder cannot run %s jobs", job.Kind()))
		return
	}
	logger := t.logger.With().Str("task_id", j.TaskID).Str("input", j.InputFilename).Logger()

	in, _, err := t.store.Stat(j.InputFilename)
	if err != nil {
		rep.Fail(&task.EngineError{Op: "transcode " + j.InputFilename, Err: err})
		return
	}
	out, err := t.store.Path(j.OutputFilename)
	if err != nil {
		rep.Fail(&task.EngineError{Op: "transcode", Err: err})
		return
	}

	options, err := BuildOptionArgs(j)
	if err != nil {
		rep.Fail(&task.EngineError{Op: "transcode", Err: err})
		return
	}

	if t.checkResources != nil {
		if err := t.checkResources(ctx); err != nil {
			rep.Fail(&task.EngineError{Op: "transcode", Err: err})
			return
		}
	}

	duration, err := t.prober.Duration(ctx, in)
	if err != nil {
		logger.Warn().Err(err).Msg("unknown input duration, progress will stay at 0")
	}

	var fp progress.FrameProgress
	rep.Emit(fp.Sample(0, false))

	logger.Info().Str("output", j.OutputFilename).Strs("options", options).Msg("transcode started")
	err = t.runner.Run(ctx, BuildArgs(in, out, options), func(line string) {
		pos, ok := parseProgressLine(line)
		if !ok {
			return
		}
		if duration <= 0 {
			rep.Emit(fp.Sample(0, false))
			return
		}
		rep.Emit(fp.Sample(float64(pos)/float64(duration)*100, true))
	})
	if err != nil {
		// a half written output is useless
		if rmErr := os.Remove(out); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warn().Err(rmErr).Msg("could not remove partial output")
		}
		logger.Warn().Err(err).Msg("transcode failed")
		rep.Fail(&task.EngineError{Op: "transcode", Err: err})
		return
	}

	logger.Info().Str("output", j.OutputFilename).Msg("transcode finished")
	rep.Complete()
}
