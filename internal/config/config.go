package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/IPCamMonitor/internal/logger"
)

// EnvPrefix prefixes environment overrides, e.g. IPCAMMON_CAMERA_PASSWORD
const EnvPrefix = "IPCAMMON"

// Config represents the application configuration
type Config struct {
	LogLevel   string          `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	LogPretty  bool            `json:"log_pretty" yaml:"log_pretty" mapstructure:"log_pretty"`
	ServerPort int             `json:"server_port" yaml:"server_port" mapstructure:"server_port"`
	Camera     CameraConfig    `json:"camera" yaml:"camera" mapstructure:"camera"`
	Pump       PumpConfig      `json:"pump" yaml:"pump" mapstructure:"pump"`
	Recording  RecordingConfig `json:"recording" yaml:"recording" mapstructure:"recording"`
	Display    DisplayConfig   `json:"display" yaml:"display" mapstructure:"display"`
}

// CameraConfig holds the last used connection parameters
type CameraConfig struct {
	URL      string `json:"url" yaml:"url" mapstructure:"url"`
	Host     string `json:"host" yaml:"host" mapstructure:"host"`
	Port     string `json:"port" yaml:"port" mapstructure:"port"`
	Username string `json:"username" yaml:"username" mapstructure:"username"`
	Password string `json:"-" yaml:"password,omitempty" mapstructure:"password"`
	Backend  string `json:"backend" yaml:"backend" mapstructure:"backend"`
}

// PumpConfig controls the frame polling loop
type PumpConfig struct {
	IntervalMS int `json:"interval_ms" yaml:"interval_ms" mapstructure:"interval_ms"`
}

// RecordingConfig controls the video writer
type RecordingConfig struct {
	Directory string  `json:"directory" yaml:"directory" mapstructure:"directory"`
	FileName  string  `json:"file_name" yaml:"file_name" mapstructure:"file_name"`
	FourCC    string  `json:"fourcc" yaml:"fourcc" mapstructure:"fourcc"`
	FPS       float64 `json:"fps" yaml:"fps" mapstructure:"fps"`
	Width     int     `json:"width" yaml:"width" mapstructure:"width"`
	Height    int     `json:"height" yaml:"height" mapstructure:"height"`
	Backend   string  `json:"backend" yaml:"backend" mapstructure:"backend"`
}

// DisplayConfig controls the main and floating surfaces
type DisplayConfig struct {
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`
	Width   int    `json:"width" yaml:"width" mapstructure:"width"`
	Height  int    `json:"height" yaml:"height" mapstructure:"height"`
	Quality int    `json:"quality" yaml:"quality" mapstructure:"quality"`
	Overlay bool   `json:"overlay" yaml:"overlay" mapstructure:"overlay"`
}

// Display backends
const (
	DisplayWeb = "web"
	DisplayX11 = "x11"
)

var defaults = map[string]any{
	"log_level":           "info",
	"log_pretty":          true,
	"server_port":         8080,
	"camera.url":          "",
	"camera.host":         "",
	"camera.port":         "",
	"camera.username":     "",
	"camera.password":     "",
	"camera.backend":      "mjpeg",
	"pump.interval_ms":    10,
	"recording.directory": "recorded_videos",
	"recording.file_name": "video.avi",
	"recording.fourcc":    "XVID",
	"recording.fps":       20.0,
	"recording.width":     640,
	"recording.height":    480,
	"recording.backend":   "ffmpeg",
	"display.backend":     DisplayWeb,
	"display.width":       640,
	"display.height":      480,
	"display.quality":     85,
	"display.overlay":     true,
}

// Keys returns every known configuration key, sorted
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Manager handles configuration
type Manager struct {
	v          *viper.Viper
	configPath string
	mu         sync.RWMutex
}

// DefaultPath returns $HOME/.config/ipcammon/config.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "ipcammon", "config.yaml"), nil
}

// NewManager loads configFile (or the default path) into the global viper
// instance, so flags bound by the CLI take precedence
func NewManager(configFile string) (*Manager, error) {
	return NewManagerWithViper(viper.GetViper(), configFile)
}

// NewManagerWithViper loads configuration into v. A missing file is created
// with defaults.
func NewManagerWithViper(v *viper.Viper, configFile string) (*Manager, error) {
	path := configFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	m := &Manager{v: v, configPath: path}
	log := logger.WithComponent("config")

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		log.Info().
			Str("path", path).
			Msg("Config file not found, creating new config")
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	cfg := m.Get()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Str("camera_backend", cfg.Camera.Backend).
		Str("display_backend", cfg.Display.Backend).
		Msg("Config loaded")
	return m, nil
}

// Get returns the current configuration including env and flag overrides
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		logger.WithComponent("config").Warn().Err(err).Msg("Failed to decode config, using defaults")
		return Defaults()
	}
	return &cfg
}

// Defaults returns the default configuration
func Defaults() *Config {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	var cfg Config
	// defaults always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("server_port %d out of range", c.ServerPort)
	}
	if c.Pump.IntervalMS <= 0 {
		return fmt.Errorf("pump.interval_ms must be positive")
	}
	if len(c.Recording.FourCC) != 4 {
		return fmt.Errorf("recording.fourcc %q must be four characters", c.Recording.FourCC)
	}
	if c.Recording.FPS <= 0 {
		return fmt.Errorf("recording.fps must be positive")
	}
	if c.Recording.Width <= 0 || c.Recording.Height <= 0 {
		return fmt.Errorf("recording size must be positive")
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return fmt.Errorf("display size must be positive")
	}
	if c.Display.Backend != DisplayWeb && c.Display.Backend != DisplayX11 {
		return fmt.Errorf("display.backend %q must be %s or %s", c.Display.Backend, DisplayWeb, DisplayX11)
	}
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	cfg := m.Get()

	m.mu.Lock()
	defer m.mu.Unlock()

	log := logger.WithComponent("config")
	log.Debug().Str("path", m.configPath).Msg("Saving config")

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// env-supplied secrets stay out of the file
	if _, ok := os.LookupEnv(EnvPrefix + "_CAMERA_PASSWORD"); ok {
		cfg.Camera.Password = ""
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		log.Error().
			Err(err).
			Str("path", m.configPath).
			Msg("Failed to write config")
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Set parses value for key, validates it and stores it. Call Save to
// persist.
func (m *Manager) Set(key, value string) error {
	if _, ok := defaults[key]; !ok {
		return fmt.Errorf("unknown config key %q", key)
	}

	var parsed any
	switch defaults[key].(type) {
	case int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid number for %s: %s", key, value)
		}
		parsed = n
	case float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number for %s: %s", key, value)
		}
		parsed = f
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s: %s (use: true or false)", key, value)
		}
		parsed = b
	default:
		parsed = value
	}

	if key == "camera.port" && value != "" {
		if n, err := strconv.Atoi(value); err != nil || n < 1 || n > 65535 {
			return fmt.Errorf("invalid port number: %s", value)
		}
	}

	m.mu.Lock()
	old := m.v.Get(key)
	m.v.Set(key, parsed)
	m.mu.Unlock()

	if err := m.Get().Validate(); err != nil {
		m.mu.Lock()
		m.v.Set(key, old)
		m.mu.Unlock()
		return err
	}
	return nil
}

// Value returns the effective value of key
func (m *Manager) Value(key string) (any, error) {
	if _, ok := defaults[key]; !ok {
		return nil, fmt.Errorf("unknown config key %q", key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.v.Get(key), nil
}

// GetConfigPath returns the configuration file path
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// Viper returns the underlying viper instance
func (m *Manager) Viper() *viper.Viper {
	return m.v
}
