// mediahub/config/config.go
package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every configuration key read from the environment.
const EnvPrefix = "MEDIAHUB"

type Config struct {
	MediaDir          string        `mapstructure:"MEDIA_DIR"`
	FFBin             string        `mapstructure:"FF_BIN"`
	FFProbeBin        string        `mapstructure:"FFPROBE_BIN"`
	FFTimeout         time.Duration `mapstructure:"FF_TIMEOUT"`
	MaxInputSize      int64         `mapstructure:"MAX_INPUT_SIZE"`
	MaxConcurrency    int           `mapstructure:"MAX_CONCURRENCY"`
	ThrottleEnable    bool          `mapstructure:"THROTTLE_ENABLE"`
	ThrottleCPU       float64       `mapstructure:"THROTTLE_CPU"`
	ThrottleFreeMem   int64         `mapstructure:"THROTTLE_FREEMEM"`
	ThrottleFreeDisk  int64         `mapstructure:"THROTTLE_FREEDISK"`
	AuthEnable        bool          `mapstructure:"AUTH_ENABLE"`
	AuthKey           string        `mapstructure:"AUTH_KEY"`
	Port              string        `mapstructure:"PORT"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	SampleInterval    time.Duration `mapstructure:"SAMPLE_INTERVAL"`
	KeepAliveInterval time.Duration `mapstructure:"KEEPALIVE_INTERVAL"`
	SwarmListenPort   int           `mapstructure:"SWARM_LISTEN_PORT"`
	SwarmSeed         bool          `mapstructure:"SWARM_SEED"`
	UserAgent         string        `mapstructure:"USER_AGENT"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	LogFile           string        `mapstructure:"LOG_FILE"`
}

// stringToDurationHookFunc is a custom Viper hook for parsing Go's duration strings.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc is a custom Viper hook for parsing human-readable size strings.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		err := size.UnmarshalText([]byte(data.(string)))
		if err != nil {
			// Not a valid size string, let other parsers handle it.
			return data, nil
		}

		return int64(size.Bytes()), nil
	}
}

func setDefaults(vp *viper.Viper) {
	vp.SetDefault("MEDIA_DIR", "videos")
	vp.SetDefault("FF_BIN", "ffmpeg")
	vp.SetDefault("FFPROBE_BIN", "ffprobe")
	vp.SetDefault("FF_TIMEOUT", "2h")
	vp.SetDefault("MAX_INPUT_SIZE", "0")
	vp.SetDefault("MAX_CONCURRENCY", 0)
	vp.SetDefault("THROTTLE_ENABLE", false)
	vp.SetDefault("THROTTLE_CPU", 20.0)
	vp.SetDefault("THROTTLE_FREEMEM", "200MB")
	vp.SetDefault("THROTTLE_FREEDISK", "1GB")
	vp.SetDefault("AUTH_ENABLE", false)
	vp.SetDefault("AUTH_KEY", "")
	vp.SetDefault("PORT", "3000")
	vp.SetDefault("CORS_ORIGINS", []string{"*"})
	vp.SetDefault("SAMPLE_INTERVAL", "250ms")
	vp.SetDefault("KEEPALIVE_INTERVAL", "15s")
	vp.SetDefault("SWARM_LISTEN_PORT", 0)
	vp.SetDefault("SWARM_SEED", false)
	vp.SetDefault("USER_AGENT", "mediahub/1.0")
	vp.SetDefault("LOG_LEVEL", "info")
	vp.SetDefault("LOG_FILE", "")
}

// Load reads the configuration. An explicit file must exist; without one the
// default search paths are tried and a missing file is not an error.
func Load(file string) (*Config, error) {
	vp := viper.New()
	setDefaults(vp)

	if file != "" {
		vp.SetConfigFile(file)
	} else {
		vp.SetConfigName("mediahub_config")
		vp.SetConfigType("yaml")
		vp.AddConfigPath(".")
		vp.AddConfigPath("/etc/mediahub/")
	}

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, err
		}
	}

	vp.SetEnvPrefix(EnvPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	// The order matters: the first hook that succeeds is used.
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
