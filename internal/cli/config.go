package cli

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/driftlane/driftlane/pkg/errors"
	"github.com/driftlane/driftlane/pkg/overlay"
)

// Config is the on-disk configuration (driftlane.toml). All fields are
// optional; zero values fall back to overlay defaults.
type Config struct {
	Overlay OverlayConfig `toml:"overlay"`
	Server  ServerConfig  `toml:"server"`
	Redis   RedisConfig   `toml:"redis"`
}

// OverlayConfig mirrors overlay.Settings.
type OverlayConfig struct {
	FontSize             float64 `toml:"font_size"`
	SpeedPxPerSec        float64 `toml:"speed_px_per_sec"`
	MaxMessagesPerSecond int     `toml:"max_messages_per_second"`
	TopMarginFrac        float64 `toml:"top_margin_frac"`
	BottomMarginFrac     float64 `toml:"bottom_margin_frac"`
	VerticalPaddingPx    float64 `toml:"vertical_padding_px"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Listen string  `toml:"listen"`
	Width  float64 `toml:"width"`
	Height float64 `toml:"height"`
}

// RedisConfig configures the optional redis pub/sub source.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Channel  string `toml:"channel"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// Server defaults.
const (
	defaultListen = ":8750"
	defaultWidth  = 1280.0
	defaultHeight = 720.0
)

// loadConfig reads a toml config file. An empty path returns the zero config;
// a missing file at an explicit path is an error.
func loadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config %s", path)
	}
	return cfg, nil
}

// settings converts the overlay section to validated overlay.Settings.
func (c Config) settings() (overlay.Settings, error) {
	s := overlay.Settings{
		FontSize:             c.Overlay.FontSize,
		SpeedPxPerSec:        c.Overlay.SpeedPxPerSec,
		MaxMessagesPerSecond: c.Overlay.MaxMessagesPerSecond,
		TopMarginFrac:        c.Overlay.TopMarginFrac,
		BottomMarginFrac:     c.Overlay.BottomMarginFrac,
		VerticalPaddingPx:    c.Overlay.VerticalPaddingPx,
	}
	if err := s.ValidateAndSetDefaults(); err != nil {
		return overlay.Settings{}, err
	}
	return s, nil
}

func (c Config) listenAddr() string {
	if c.Server.Listen != "" {
		return c.Server.Listen
	}
	return defaultListen
}

func (c Config) surfaceSize() (width, height float64) {
	width, height = c.Server.Width, c.Server.Height
	if width == 0 {
		width = defaultWidth
	}
	if height == 0 {
		height = defaultHeight
	}
	return width, height
}
