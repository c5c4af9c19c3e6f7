package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort           = 8080
	DefaultDataFile           = "telemetry.json"
	DefaultThresholdMs        = 180.0
	DefaultMaxBodyBytes int64 = 1 << 20
	DefaultLogLevel           = "info"
	DefaultLogMaxSizeMB       = 50
	DefaultLogMaxBackups      = 3
)

// Config holds the server configuration parsed from the `server:` section of
// config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the API listens on (default 8080).
	HTTPPort int `yaml:"http_port" validate:"min=1,max=65535"`

	// DataFile is the telemetry JSON file loaded at startup.
	// A relative path is resolved against the executable's directory, see
	// ResolveDataPath. Default: telemetry.json.
	DataFile string `yaml:"data_file" validate:"required"`

	// DefaultThresholdMs is the breach threshold used when a request omits
	// threshold_ms (default 180).
	DefaultThresholdMs float64 `yaml:"default_threshold_ms" validate:"gte=0"`

	// MaxBodyBytes caps the size of a request body (default 1 MiB).
	MaxBodyBytes int64 `yaml:"max_body_bytes" validate:"gt=0"`

	// Watch reloads this file on change and applies the new log level.
	// Telemetry data is never reloaded.
	Watch bool `yaml:"watch"`

	CORS CORSConfig `yaml:"cors"`
	Log  LogConfig  `yaml:"log"`
}

// CORSConfig controls the cross-origin headers on every API response.
// Origins are always "*" and credentials are never allowed.
type CORSConfig struct {
	// AllowedMethods is echoed in Access-Control-Allow-Methods.
	// Default: GET, POST, OPTIONS.
	AllowedMethods []string `yaml:"allowed_methods" validate:"min=1,dive,oneof=GET POST OPTIONS HEAD"`

	// AllowedHeaders is echoed in Access-Control-Allow-Headers. The single
	// value "*" allows whatever the preflight asks for. Default: ["*"].
	AllowedHeaders []string `yaml:"allowed_headers" validate:"min=1,dive,required"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// File, when set, receives a copy of every log line. The file is rotated
	// once it reaches MaxSizeMB, keeping MaxBackups old files.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gt=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation. A missing file
// is not an error: the defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// ResolveDataPath returns DataFile as an absolute path. A relative DataFile
// is joined to exeDir, the directory holding the running executable.
func (s ServerConfig) ResolveDataPath(exeDir string) string {
	if filepath.IsAbs(s.DataFile) {
		return s.DataFile
	}
	return filepath.Join(exeDir, s.DataFile)
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:           DefaultHTTPPort,
			DataFile:           DefaultDataFile,
			DefaultThresholdMs: DefaultThresholdMs,
			MaxBodyBytes:       DefaultMaxBodyBytes,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"*"},
			},
			Log: LogConfig{
				Level:      DefaultLogLevel,
				MaxSizeMB:  DefaultLogMaxSizeMB,
				MaxBackups: DefaultLogMaxBackups,
			},
		},
	}
}

var validate = newValidator()

// newValidator reports field errors by their yaml names, e.g.
// "server.http_port", so messages match what the operator wrote.
func newValidator() func(*Config) error {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return func(cfg *Config) error {
		err := v.Struct(cfg)
		if err == nil {
			return nil
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q check (value %v)",
				strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag(), fe.Value()))
		}
		return errors.New(strings.Join(msgs, "; "))
	}
}
