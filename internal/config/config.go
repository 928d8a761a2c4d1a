package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes caps the size of a config file accepted by Load.
const MaxConfigFileBytes = 1 << 20

// Camera device types.
const (
	CameraSynthetic  = "synthetic"
	CameraStillImage = "still_image"
)

// CameraConfig describes which video device to open and how.
// Type selects a concrete implementation ("synthetic" or "still_image").
type CameraConfig struct {
	Type        string `yaml:"type"`          // e.g., "synthetic"
	FacingMode  string `yaml:"facing_mode"`   // "environment" (rear) or "user" (front)
	WidthPx     int    `yaml:"width_px"`      // requested frame width
	HeightPx    int    `yaml:"height_px"`     // requested frame height
	StillPath   string `yaml:"still_path"`    // image served by the still_image device
	OpenDelayMs int    `yaml:"open_delay_ms"` // simulated acquisition latency (synthetic only)
	Deny        bool   `yaml:"deny"`          // simulate a denied permission prompt (synthetic only)
}

// EncoderConfig controls still-frame encoding.
type EncoderConfig struct {
	JPEGQuality int `yaml:"jpeg_quality"` // 1-100
	MaxWidthPx  int `yaml:"max_width_px"` // 0 = keep native width
}

// RecognizerConfig holds the placeholder recognition result.
type RecognizerConfig struct {
	Label string `yaml:"label"`
	Price string `yaml:"price"`
}

// UIConfig contains presentation settings.
type UIConfig struct {
	Locale     string `yaml:"locale"`      // BCP 47 tag used for timestamps, e.g. "ru-RU"
	InitialTab string `yaml:"initial_tab"` // camera, gallery or settings
}

// GPIOConfig wires the optional torch lamp and shutter button.
type GPIOConfig struct {
	TorchPin     int `yaml:"torch_pin"`      // BCM pin driving the torch. 0 = not used.
	ButtonPin    int `yaml:"button_pin"`     // BCM pin of the shutter button (active LOW). 0 = not used.
	ButtonPollMs int `yaml:"button_poll_ms"` // polling interval for the button
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	OfflineMode *bool `yaml:"offline_mode"` // initial offline flag (default: true)
	DebugLevel  int   `yaml:"debug_level"`  // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO    bool  `yaml:"mock_gpio"`    // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Camera     CameraConfig     `yaml:"camera"`
	Encoder    EncoderConfig    `yaml:"encoder"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	UI         UIConfig         `yaml:"ui"`
	GPIO       GPIOConfig       `yaml:"gpio"`
	Defaults   DefaultsConfig   `yaml:"defaults"`
}

// ValidateConfigPath accepts only *.yaml files located directly in a
// "configs" directory, without any ".." element.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	switch c.Camera.Type {
	case "":
		return fmt.Errorf("camera.type is required")
	case CameraSynthetic:
	case CameraStillImage:
		if c.Camera.StillPath == "" {
			return fmt.Errorf("camera.still_path is required for type %q", CameraStillImage)
		}
	default:
		return fmt.Errorf("unsupported camera.type %q", c.Camera.Type)
	}
	switch c.Camera.FacingMode {
	case "":
		c.Camera.FacingMode = "environment" // rear camera, pointed at the price tag
	case "environment", "user":
	default:
		return fmt.Errorf("camera.facing_mode must be \"environment\" or \"user\", got %q", c.Camera.FacingMode)
	}
	if c.Camera.WidthPx < 0 || c.Camera.HeightPx < 0 {
		return fmt.Errorf("camera resolution must be >= 0, got %dx%d", c.Camera.WidthPx, c.Camera.HeightPx)
	}
	if c.Camera.WidthPx == 0 {
		c.Camera.WidthPx = 1280
	}
	if c.Camera.HeightPx == 0 {
		c.Camera.HeightPx = 720
	}
	if c.Camera.OpenDelayMs < 0 {
		return fmt.Errorf("camera.open_delay_ms must be >= 0, got %d", c.Camera.OpenDelayMs)
	}

	if c.Encoder.JPEGQuality == 0 {
		c.Encoder.JPEGQuality = 92 // same as canvas.toDataURL default
	}
	if c.Encoder.JPEGQuality < 1 || c.Encoder.JPEGQuality > 100 {
		return fmt.Errorf("encoder.jpeg_quality must be between 1 and 100, got %d", c.Encoder.JPEGQuality)
	}
	if c.Encoder.MaxWidthPx < 0 {
		return fmt.Errorf("encoder.max_width_px must be >= 0, got %d", c.Encoder.MaxWidthPx)
	}

	if c.Recognizer.Label == "" {
		c.Recognizer.Label = "Молоко 3.2%"
	}
	if c.Recognizer.Price == "" {
		c.Recognizer.Price = "89.90 ₽"
	}

	if c.UI.Locale == "" {
		c.UI.Locale = "ru-RU"
	}
	switch c.UI.InitialTab {
	case "":
		c.UI.InitialTab = "camera"
	case "camera", "gallery", "settings":
	default:
		return fmt.Errorf("ui.initial_tab must be camera, gallery or settings, got %q", c.UI.InitialTab)
	}

	if c.GPIO.TorchPin < 0 || c.GPIO.ButtonPin < 0 {
		return fmt.Errorf("gpio pins must be >= 0")
	}
	if c.GPIO.TorchPin != 0 && c.GPIO.TorchPin == c.GPIO.ButtonPin {
		return fmt.Errorf("gpio.torch_pin and gpio.button_pin must differ, both are %d", c.GPIO.TorchPin)
	}
	if c.GPIO.ButtonPollMs <= 0 {
		c.GPIO.ButtonPollMs = 20
	}

	if c.Defaults.OfflineMode == nil {
		on := true
		c.Defaults.OfflineMode = &on
	}
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

// OpenDelay returns the simulated device acquisition latency.
func (c *Config) OpenDelay() time.Duration {
	return time.Duration(c.Camera.OpenDelayMs) * time.Millisecond
}

// ButtonPoll returns the shutter button polling interval.
func (c *Config) ButtonPoll() time.Duration {
	return time.Duration(c.GPIO.ButtonPollMs) * time.Millisecond
}

// OfflineMode returns the initial offline flag.
func (c *Config) OfflineMode() bool {
	return c.Defaults.OfflineMode == nil || *c.Defaults.OfflineMode
}
