package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"mediahub/api"
	"mediahub/config"
	"mediahub/fetch"
	"mediahub/ffmpeg"
	"mediahub/progress"
	"mediahub/storage"
	"mediahub/task"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "serve the media hub HTTP API",
		Long:  `serve the media hub HTTP API`,
		RunE:  serve,
	})
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// flags win over the config file
	logging := logFlags
	if logging.Level == "" {
		logging.Level = cfg.LogLevel
	}
	if logging.File == "" {
		logging.File = cfg.LogFile
	}
	initLogging(logging)
	logger := log.With().Str("module", "serve").Logger()

	store, err := storage.New(cfg.MediaDir)
	if err != nil {
		return fmt.Errorf("failed to open media directory: %w", err)
	}

	ffRunner := ffmpeg.NewRunner(cfg.FFBin, cfg.FFTimeout)
	probeRunner := ffmpeg.NewRunner(cfg.FFProbeBin, cfg.FFTimeout)
	for _, r := range []*ffmpeg.Runner{ffRunner, probeRunner} {
		if err := r.Available(); err != nil {
			logger.Warn().Err(err).Msg("processing endpoints will fail")
		}
	}
	prober := ffmpeg.NewProber(probeRunner, store)

	registry := progress.NewRegistry()
	dispatcher := task.NewDispatcher(cfg, registry)
	dispatcher.Register(task.KindURL, fetch.NewDirect(cfg, store))
	dispatcher.Register(task.KindSwarm, fetch.NewSwarm(cfg, store))
	dispatcher.Register(task.KindTranscode, ffmpeg.NewTranscoder(cfg, ffRunner, prober, store))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// jobs outlive requests, they only stop with the service
	jobsCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	dispatcher.Start(jobsCtx)

	gin.SetMode(gin.ReleaseMode)
	router := api.SetupRouter(cfg, api.Deps{
		Registry:   registry,
		Dispatcher: dispatcher,
		Store:      store,
		Prober:     prober,
		Subtitles:  ffmpeg.NewSubtitleExtractor(ffRunner, store),
	})
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.WithCORS(cfg, router),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("media_dir", store.Dir()).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	// Restore default behavior on the interrupt signal.
	stop()
	logger.Info().Msg("shutting down gracefully, press Ctrl+C again to force")

	// progress streams end first so Shutdown does not wait on them
	registry.Shutdown()
	cancelJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("server forced to shutdown")
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("jobs still running at exit")
	}

	logger.Info().Msg("server exiting")
	return nil
}
