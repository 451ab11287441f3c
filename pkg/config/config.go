// Package config loads runtime settings from defaults, an optional YAML file,
// a .env file and PROTO_ZMQ_* environment variables, in increasing priority.
// CLI flags are applied on top by the caller through viper.Set.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "PROTO_ZMQ"

	DefaultPort        = 9800
	DefaultSender      = "zmq_srv"
	DefaultTransport   = "zmq"
	DefaultCodec       = "proto"
	DefaultNATSURL     = "nats://127.0.0.1:4222"
	DefaultNATSSubject = "proto-zmq.broadcast"
)

var (
	Transports = []string{"zmq", "tcp", "nats"}
	Codecs     = []string{"proto", "cbor"}

	ErrInvalidConfig = errors.New("config: invalid configuration")
)

type Config struct {
	Environment  string        `mapstructure:"environment"`
	Port         int           `mapstructure:"port"`
	Sender       string        `mapstructure:"sender"`
	Transport    string        `mapstructure:"transport"`
	Codec        string        `mapstructure:"codec"`
	LogLevel     string        `mapstructure:"log_level"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BufferSize   int           `mapstructure:"buffer_size"`
	NATS         NATSConfig    `mapstructure:"nats"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

// InitViperConfig prepares the global viper instance. An empty configFile
// searches for config.yaml in the working directory and tolerates its absence;
// an explicit file must exist.
func InitViperConfig(configFile string) error {
	setDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("port", DefaultPort)
	viper.SetDefault("sender", DefaultSender)
	viper.SetDefault("transport", DefaultTransport)
	viper.SetDefault("codec", DefaultCodec)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("write_timeout", "10s")
	viper.SetDefault("buffer_size", 64*1024)
	viper.SetDefault("nats.url", DefaultNATSURL)
	viper.SetDefault("nats.subject", DefaultNATSSubject)
}

// Load decodes the current viper settings and validates them.
func Load() (*Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(viper.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if !lo.Contains(Transports, c.Transport) {
		return fmt.Errorf("%w: unknown transport %q (want one of %s)",
			ErrInvalidConfig, c.Transport, strings.Join(Transports, ", "))
	}
	if !lo.Contains(Codecs, c.Codec) {
		return fmt.Errorf("%w: unknown codec %q (want one of %s)",
			ErrInvalidConfig, c.Codec, strings.Join(Codecs, ", "))
	}
	if c.Transport == "nats" && c.NATS.URL == "" {
		return fmt.Errorf("%w: nats.url is required for the nats transport", ErrInvalidConfig)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("%w: write_timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}
