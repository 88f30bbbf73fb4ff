package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Runner executes one engine binary (ffmpeg or ffprobe) without a shell.
type Runner struct {
	logger  zerolog.Logger
	bin     string
	timeout time.Duration
}

func NewRunner(bin string, timeout time.Duration) *Runner {
	return &Runner{
		logger:  log.With().Str("module", "ffmpeg").Str("bin", bin).Logger(),
		bin:     bin,
		timeout: timeout,
	}
}

// Available reports whether the binary can be found.
func (r *Runner) Available() error {
	if _, err := exec.LookPath(r.bin); err != nil {
		return fmt.Errorf("binary not found or not in PATH: %s", r.bin)
	}
	return nil
}

// Run executes the binary and hands every stdout line to onLine.
func (r *Runner) Run(ctx context.Context, args []string, onLine func(line string)) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}

	r.logger.Debug().Strs("args", args).Msg("executing")
	if err := cmd.Start(); err != nil {
		return err
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
	scanErr := scanner.Err()
	if scanErr != nil {
		// keep the pipe flowing so the child can exit
		r.logger.Warn().Err(scanErr).Msg("stopped reading progress output")
		_, _ = io.Copy(io.Discard, stdout)
	}

	if err := r.result(ctx, cmd.Wait(), &stderr); err != nil {
		return err
	}
	if scanErr != nil {
		return fmt.Errorf("reading %s output: %w", r.bin, scanErr)
	}
	return nil
}

// Output executes the binary and returns its stdout.
func (r *Runner) Output(ctx context.Context, args []string) ([]byte, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug().Strs("args", args).Msg("executing")
	if err := r.result(ctx, cmd.Run(), &stderr); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

func (r *Runner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout > 0 {
		return context.WithTimeout(ctx, r.timeout)
	}
	return context.WithCancel(ctx)
}

func (r *Runner) result(ctx context.Context, err error, stderr *bytes.Buffer) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s interrupted: %w", r.bin, ctxErr)
	}
	if tail := lastLine(stderr.String()); tail != "" {
		return fmt.Errorf("%w: %s", err, tail)
	}
	return err
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
