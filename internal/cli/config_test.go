package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/driftlane/driftlane/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "driftlane.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[overlay]
font_size = 18
speed_px_per_sec = 90
max_messages_per_second = 5

[server]
listen = ":9000"
width = 1920
height = 1080

[redis]
addr = "localhost:6379"
channel = "chat"
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Overlay.FontSize != 18 || cfg.Overlay.SpeedPxPerSec != 90 {
		t.Errorf("overlay section = %+v", cfg.Overlay)
	}
	if cfg.Server.Listen != ":9000" {
		t.Errorf("listen = %q, want :9000", cfg.Server.Listen)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.Channel != "chat" {
		t.Errorf("redis section = %+v", cfg.Redis)
	}

	s, err := cfg.settings()
	if err != nil {
		t.Fatalf("settings() error = %v", err)
	}
	if s.FontSize != 18 || s.MaxMessagesPerSecond != 5 {
		t.Errorf("settings = %+v", s)
	}
}

func TestLoadConfigEmptyPath(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig(\"\") error = %v", err)
	}
	if cfg.listenAddr() != defaultListen {
		t.Errorf("listen = %q, want %q", cfg.listenAddr(), defaultListen)
	}
	w, h := cfg.surfaceSize()
	if w != defaultWidth || h != defaultHeight {
		t.Errorf("surface = %gx%g, want %gx%g", w, h, defaultWidth, defaultHeight)
	}
	// Zero config still yields valid settings via defaults.
	if _, err := cfg.settings(); err != nil {
		t.Errorf("settings() on zero config: %v", err)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("missing explicit config path accepted")
	} else if errors.GetCode(err) != errors.ErrCodeInvalidConfig {
		t.Errorf("code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidConfig)
	}

	path := writeConfig(t, "[overlay\nfont_size=")
	if _, err := loadConfig(path); err == nil {
		t.Error("malformed toml accepted")
	}
}

func TestConfigSettingsRejectsInvalid(t *testing.T) {
	cfg := Config{}
	cfg.Overlay.FontSize = -4
	if _, err := cfg.settings(); err == nil {
		t.Error("negative font size accepted")
	}
}
