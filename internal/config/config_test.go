package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ipcammon", "config.yaml")
	m, err := NewManagerWithViper(viper.New(), path)
	if err != nil {
		t.Fatalf("NewManagerWithViper() error = %v", err)
	}
	return m
}

func TestNewManager_CreatesDefaults(t *testing.T) {
	m := newTestManager(t)

	if _, err := os.Stat(m.GetConfigPath()); err != nil {
		t.Fatalf("config file not created: %v", err)
	}

	cfg := m.Get()
	if cfg.ServerPort != 8080 || cfg.LogLevel != "info" {
		t.Errorf("server_port=%d log_level=%q", cfg.ServerPort, cfg.LogLevel)
	}
	rec := cfg.Recording
	if rec.Directory != "recorded_videos" || rec.FileName != "video.avi" || rec.FourCC != "XVID" ||
		rec.FPS != 20 || rec.Width != 640 || rec.Height != 480 {
		t.Errorf("recording defaults = %+v", rec)
	}
	if cfg.Pump.IntervalMS != 10 {
		t.Errorf("pump.interval_ms = %d, want 10", cfg.Pump.IntervalMS)
	}
	if cfg.Display.Backend != DisplayWeb {
		t.Errorf("display.backend = %q", cfg.Display.Backend)
	}
}

func TestManager_SetAndReload(t *testing.T) {
	m := newTestManager(t)

	sets := map[string]string{
		"server_port":     "9090",
		"camera.host":     "10.0.0.5",
		"camera.port":     "8080",
		"recording.fps":   "15",
		"display.overlay": "false",
	}
	for k, v := range sets {
		if err := m.Set(k, v); err != nil {
			t.Fatalf("Set(%s, %s) error = %v", k, v, err)
		}
	}
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewManagerWithViper(viper.New(), m.GetConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	cfg := reloaded.Get()
	if cfg.ServerPort != 9090 || cfg.Camera.Host != "10.0.0.5" || cfg.Camera.Port != "8080" ||
		cfg.Recording.FPS != 15 || cfg.Display.Overlay {
		t.Errorf("reloaded config = %+v", cfg)
	}
}

func TestManager_SetRejectsInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"no_such_key", "1"},
		{"server_port", "abc"},
		{"server_port", "70000"},
		{"log_level", "verbose"},
		{"camera.port", "http"},
		{"recording.fourcc", "XVID2"},
		{"recording.fps", "0"},
		{"display.backend", "gtk"},
		{"display.overlay", "maybe"},
	}

	m := newTestManager(t)
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			before := m.Get()
			if err := m.Set(tt.key, tt.value); err == nil {
				t.Errorf("Set(%s, %s) should fail", tt.key, tt.value)
			}
			if after := m.Get(); *after != *before {
				t.Errorf("rejected Set changed the config: %+v", after)
			}
		})
	}
}

func TestManager_EnvOverride(t *testing.T) {
	t.Setenv("IPCAMMON_CAMERA_PASSWORD", "s3cret")
	t.Setenv("IPCAMMON_SERVER_PORT", "7070")

	m := newTestManager(t)
	cfg := m.Get()
	if cfg.Camera.Password != "s3cret" || cfg.ServerPort != 7070 {
		t.Errorf("env overrides not applied: port=%d", cfg.ServerPort)
	}
}

func TestManager_SaveOmitsEmptyPassword(t *testing.T) {
	m := newTestManager(t)
	data, err := os.ReadFile(m.GetConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "password") {
		t.Errorf("saved config contains an empty password field:\n%s", data)
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	if len(keys) == 0 || keys[0] > keys[len(keys)-1] {
		t.Errorf("Keys() = %v, want sorted", keys)
	}
	m := newTestManager(t)
	for _, k := range keys {
		if _, err := m.Value(k); err != nil {
			t.Errorf("Value(%s) error = %v", k, err)
		}
	}
}

func TestManager_SaveSkipsEnvPassword(t *testing.T) {
	t.Setenv("IPCAMMON_CAMERA_PASSWORD", "s3cret")

	m := newTestManager(t)
	data, err := os.ReadFile(m.GetConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "s3cret") {
		t.Error("password from the environment was written to the config file")
	}
}
