package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Common errors for configuration loading.
var (
	ErrFileNotFound = errors.New("configuration file not found")
	ErrInvalidYAML  = errors.New("invalid YAML syntax")
	ErrEmptyFile    = errors.New("configuration file is empty")
)

// Error is a configuration validation failure.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Message)
}

// LogConfig selects the operational log output.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`

	// File receives a JSON copy of every log record when set.
	File string `yaml:"file,omitempty"`
}

// ServerConfig is the top-level configuration file.
type ServerConfig struct {
	// Host is the listen address for both servers.
	Host string `yaml:"host,omitempty"`

	// Port serves mock traffic.
	Port int `yaml:"port"`

	// AdminPort serves the control-plane API; 0 disables it.
	AdminPort int `yaml:"adminPort,omitempty"`

	// AdminAPIKey, when set, is required on every admin request except /health.
	AdminAPIKey string `yaml:"adminApiKey,omitempty"`

	// MappingsDir holds static mapping files loaded at startup.
	MappingsDir string `yaml:"mappingsDir,omitempty"`

	// RecordDir receives recorded mapping files; defaults to MappingsDir.
	RecordDir string `yaml:"recordDir,omitempty"`

	// Proxy enables proxying of unmatched requests.
	Proxy *ProxyConfig `yaml:"proxy,omitempty"`

	Log LogConfig `yaml:"log,omitempty"`

	ReadTimeout     time.Duration `yaml:"readTimeout,omitempty"`
	WriteTimeout    time.Duration `yaml:"writeTimeout,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty"`
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:            "127.0.0.1",
		Port:            8080,
		AdminPort:       8081,
		Log:             LogConfig{Level: "info", Format: "text"},
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration over the defaults and validates it.
func Parse(data []byte) (*ServerConfig, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	cfg := DefaultServerConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RecordingDir returns RecordDir, falling back to MappingsDir.
func (c *ServerConfig) RecordingDir() string {
	if c.RecordDir != "" {
		return c.RecordDir
	}
	return c.MappingsDir
}

// Validate checks the configuration.
func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return &Error{Field: "port", Message: "port must be between 1 and 65535"}
	}
	if c.AdminPort < 0 || c.AdminPort > 65535 {
		return &Error{Field: "adminPort", Message: "adminPort must be between 0 and 65535"}
	}
	if c.AdminPort != 0 && c.AdminPort == c.Port {
		return &Error{Field: "adminPort", Message: "adminPort must differ from port"}
	}
	if c.Proxy != nil {
		if err := c.Proxy.Validate(); err != nil {
			return err
		}
		if c.Proxy.SaveMappingToFile && c.RecordingDir() == "" {
			return &Error{Field: "recordDir", Message: "saveMappingToFile requires recordDir or mappingsDir"}
		}
	}
	return nil
}
