package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"mediahub/config"
)

var ErrInsufficientResources = errors.New("insufficient system resources")

// CheckResources verifies that the host has enough idle CPU, free memory and
// free disk under dir to start a transcode.
func CheckResources(ctx context.Context, cfg *config.Config, dir string) error {
	logger := log.With().Str("module", "ffmpeg").Str("submodule", "resources").Logger()

	p, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil {
		logger.Warn().Err(err).Msg("could not get CPU usage")
	} else if len(p) > 0 && p[0] > 100.0-cfg.ThrottleCPU {
		return fmt.Errorf("%w: CPU usage %.2f%%, idle threshold %.2f%%", ErrInsufficientResources, p[0], cfg.ThrottleCPU)
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("could not get memory usage")
	} else if vm.Available < uint64(cfg.ThrottleFreeMem) {
		return fmt.Errorf("%w: available memory %d, required %d", ErrInsufficientResources, vm.Available, cfg.ThrottleFreeMem)
	}

	d, err := disk.UsageWithContext(ctx, dir)
	if err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("could not get disk usage")
	} else if d.Free < uint64(cfg.ThrottleFreeDisk) {
		return fmt.Errorf("%w: free disk %d, required %d", ErrInsufficientResources, d.Free, cfg.ThrottleFreeDisk)
	}
	return nil
}
