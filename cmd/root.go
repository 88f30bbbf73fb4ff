package cmd

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var rootCmd = &cobra.Command{
	Use:          "mediahub",
	Short:        "Media hub server CLI.",
	Long:         `Media acquisition and processing service with live progress streaming.`,
	Version:      "1.0.0",
	SilenceUsage: true,
}

var (
	cfgFile  string
	logFlags logConfig
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "configuration file path")
	logFlags.Init(rootCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

//
// Logging initialization
//

type logConfig struct {
	// Set log level
	Level string
	// Enable console logging
	Console bool
	// Enable file logging and specify its path
	File string
	// MaxAge the max age in days to keep a logfile
	MaxAge int
	// MaxSize the max size in MB of the logfile before it's rolled
	MaxSize int
	// MaxBackups the max number of rolled files to keep
	MaxBackups int
}

func (c *logConfig) Init(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&c.Level, "log.level", "", "Set log level")
	cmd.PersistentFlags().BoolVar(&c.Console, "log.console", true, "Enable console logging")
	cmd.PersistentFlags().StringVar(&c.File, "log.file", "", "Enable file logging and specify its path")
	cmd.PersistentFlags().IntVar(&c.MaxAge, "log.maxage", 0, "MaxAge the max age in days to keep a logfile")
	cmd.PersistentFlags().IntVar(&c.MaxSize, "log.maxsize", 100, "MaxSize the max size in MB of the logfile before it's rolled")
	cmd.PersistentFlags().IntVar(&c.MaxBackups, "log.maxbackups", 0, "MaxBackups the max number of rolled files to keep")
}

func initLogging(config logConfig) {
	var writers []io.Writer

	if config.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out: os.Stderr,
		})
	}

	if config.File != "" {
		logger := &lumberjack.Logger{
			Filename:   config.File,
			MaxAge:     config.MaxAge,     // days
			MaxSize:    config.MaxSize,    // megabytes
			MaxBackups: config.MaxBackups, // files
		}

		// rotate in response to SIGHUP
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGHUP)

		go func() {
			for range c {
				_ = logger.Rotate()
			}
		}()

		writers = append(writers, logger)
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(io.MultiWriter(writers...))

	if config.Level == "" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		level, err := zerolog.ParseLevel(config.Level)
		if err != nil {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			log.Warn().Str("log-level", config.Level).Msg("unknown log level")
		} else {
			zerolog.SetGlobalLevel(level)
		}
	}

	log.Info().
		Bool("console", config.Console).
		Str("file", config.File).
		Str("level", zerolog.GlobalLevel().String()).
		Msg("logging configured")
}
