package server

import (
	"errors"
	"fmt"
	"os"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/roomchat/pkg/protocol"
)

// Config holds server configuration.
// RoomsFile names a YAML file of rooms to create on startup; an empty MetricsAddr disables /metrics.
type Config struct {
	ListenAddr      string        `yaml:"listen_addr" env:"CHAT_LISTEN_ADDR" validate:"required,hostname_port"`
	DBPath          string        `yaml:"db_path" env:"CHAT_DB_PATH" validate:"required"`
	MaxClients      int           `yaml:"max_clients" env:"CHAT_MAX_CLIENTS" validate:"gte=1,lte=65536"`
	BufferSize      int           `yaml:"buffer_size" env:"CHAT_BUFFER_SIZE" validate:"gte=1"`
	RoomsFile       string        `yaml:"rooms_file" env:"CHAT_ROOMS_FILE"`
	MetricsAddr     string        `yaml:"metrics_addr" env:"CHAT_METRICS_ADDR" validate:"omitempty,hostname_port"`
	MetricsInterval time.Duration `yaml:"metrics_interval" env:"CHAT_METRICS_INTERVAL" validate:"gte=0"`

	// CLI-only actions (run and exit)
	ExportUsers bool `yaml:"-"`
	ExportRooms bool `yaml:"-"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      "127.0.0.1:8080",
		DBPath:          "chat.db",
		MaxClients:      100,
		BufferSize:      protocol.DefaultBufferSize,
		MetricsInterval: 60 * time.Second,
	}
}

// ErrBufferTooSmall is returned by Validate when the receive buffer cannot hold the largest frame.
var ErrBufferTooSmall = errors.New("server: buffer size smaller than largest frame")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the config for values the server cannot run with.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("server: invalid config: %w", err)
	}
	if c.BufferSize < protocol.MaxFrameSize {
		return fmt.Errorf("%w: %d < %d", ErrBufferTooSmall, c.BufferSize, protocol.MaxFrameSize)
	}
	return nil
}

// LoadConfigFile overlays the YAML file at path onto cfg. Keys missing from the file keep their value.
func LoadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI flag
	if err != nil {
		return fmt.Errorf("server: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("server: parse config: %w", err)
	}
	return nil
}

// ApplyEnv overlays CHAT_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return fmt.Errorf("server: read environment: %w", err)
	}
	return nil
}
