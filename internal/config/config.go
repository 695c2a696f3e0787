package config

import (
	"encoding/base64"
	"fmt"
	"time"
)

// Config is the complete savekit configuration.
type Config struct {
	// Company and Product name the local save directory.
	Company string `yaml:"company" toml:"company" json:"company" env:"COMPANY"`
	Product string `yaml:"product" toml:"product" json:"product" env:"PRODUCT"`

	// BaseDir is the parent of the company directory. Empty means the
	// platform default.
	BaseDir string `yaml:"base_dir" toml:"base_dir" json:"base_dir" env:"BASE_DIR"`

	// Lanes is the worker pool size; 0 means one per CPU.
	Lanes int `yaml:"lanes" toml:"lanes" json:"lanes" env:"LANES"`

	// ShutdownGrace bounds how long shutdown waits for important jobs.
	ShutdownGrace Duration `yaml:"shutdown_grace" toml:"shutdown_grace" json:"shutdown_grace" env:"SHUTDOWN_GRACE"`

	// AtomicWrites makes local saves write through a temp file.
	AtomicWrites bool `yaml:"atomic_writes" toml:"atomic_writes" json:"atomic_writes" env:"ATOMIC_WRITES"`

	// Mode is the default execution mode for local operations: sync or async.
	Mode string `yaml:"mode" toml:"mode" json:"mode" env:"MODE"`

	// KVPath is the SQLite file backing the remote namespace store.
	KVPath string `yaml:"kv_path" toml:"kv_path" json:"kv_path" env:"KV_PATH"`

	// Identity resumes a known anonymous identity. Empty mints a new one.
	Identity string `yaml:"identity" toml:"identity" json:"identity" env:"IDENTITY"`

	Log     LogConfig     `yaml:"log" toml:"log" json:"log" envPrefix:"LOG_"`
	Secrets SecretsConfig `yaml:"secrets" toml:"secrets" json:"secrets" envPrefix:"SECRET_"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level" json:"level" env:"LEVEL"`
	Format string `yaml:"format" toml:"format" json:"format" env:"FORMAT"`
}

// SecretsConfig is the encryption material served by the local secret
// endpoint. IV is base64.
type SecretsConfig struct {
	Key string `yaml:"key" toml:"key" json:"key" env:"KEY"`
	IV  string `yaml:"iv" toml:"iv" json:"iv" env:"IV"`
}

// IVBytes decodes the configured IV.
func (s SecretsConfig) IVBytes() ([]byte, error) {
	if s.IV == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(s.IV)
	if err != nil {
		return nil, fmt.Errorf("secrets.iv: %w", err)
	}
	return b, nil
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Company:       "savekit",
		Product:       "default",
		ShutdownGrace: Duration(5 * time.Second),
		Mode:          "async",
		KVPath:        "savekit.db",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Duration is a time.Duration read from strings like "5s" or "250ms".
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("negative duration %s", v)
	}
	*d = Duration(v)
	return nil
}
