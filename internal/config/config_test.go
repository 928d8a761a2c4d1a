package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ---------- ValidateConfigPath ----------

func TestValidateConfigPath_Valid(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"default.yaml", "kiosk front.yaml", "магазин.yaml"} {
		path := filepath.Join(cfgDir, name)
		if err := ValidateConfigPath(path); err != nil {
			t.Errorf("ValidateConfigPath(%q): unexpected error: %v", name, err)
		}
	}
	if err := ValidateConfigPath("configs/default.yaml"); err != nil {
		t.Errorf("relative default path should be valid, got: %v", err)
	}
}

func TestValidateConfigPath_Rejected(t *testing.T) {
	cases := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"traversal", "../../etc/passwd"},
		{"traversal_inside_configs", "configs/../../../etc/shadow.yaml"},
		{"traversal_back_into_configs", "configs/../configs/default.yaml"},
		{"json_extension", "configs/default.json"},
		{"yml_extension", "configs/default.yml"},
		{"no_extension", "configs/default"},
		{"other_dir", "other/default.yaml"},
		{"bare_file", "default.yaml"},
		{"tmp", "/tmp/default.yaml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateConfigPath(tc.path); err == nil {
				t.Errorf("expected error for %q, got nil", tc.path)
			}
		})
	}
}

func TestValidateConfigPath_VeryLongPath(t *testing.T) {
	long := "configs/" + strings.Repeat("a", 1000) + ".yaml"
	if err := ValidateConfigPath(long); err != nil {
		t.Errorf("long but well-formed path should be valid, got: %v", err)
	}
}

// ---------- Load ----------

// writeConfig creates a temporary configs/ dir with the given YAML content and returns the path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
camera:
  type: "synthetic"
  facing_mode: "environment"
  width_px: 640
  height_px: 480
  open_delay_ms: 25
encoder:
  jpeg_quality: 80
  max_width_px: 320
recognizer:
  label: "Хлеб"
  price: "45.00 ₽"
ui:
  locale: "en-US"
  initial_tab: "gallery"
gpio:
  torch_pin: 18
  button_pin: 17
  button_poll_ms: 10
defaults:
  offline_mode: false
  debug_level: 3
  mock_gpio: true
`

func TestLoad_ValidFullConfig(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Camera.Type != CameraSynthetic {
		t.Errorf("camera.type = %q, want %q", cfg.Camera.Type, CameraSynthetic)
	}
	if cfg.Camera.WidthPx != 640 || cfg.Camera.HeightPx != 480 {
		t.Errorf("resolution = %dx%d, want 640x480", cfg.Camera.WidthPx, cfg.Camera.HeightPx)
	}
	if cfg.OpenDelay() != 25*time.Millisecond {
		t.Errorf("OpenDelay = %v, want 25ms", cfg.OpenDelay())
	}
	if cfg.Encoder.JPEGQuality != 80 || cfg.Encoder.MaxWidthPx != 320 {
		t.Errorf("encoder = %+v, want quality 80, max width 320", cfg.Encoder)
	}
	if cfg.Recognizer.Label != "Хлеб" || cfg.Recognizer.Price != "45.00 ₽" {
		t.Errorf("recognizer = %+v", cfg.Recognizer)
	}
	if cfg.UI.Locale != "en-US" || cfg.UI.InitialTab != "gallery" {
		t.Errorf("ui = %+v", cfg.UI)
	}
	if cfg.GPIO.TorchPin != 18 || cfg.GPIO.ButtonPin != 17 {
		t.Errorf("gpio = %+v", cfg.GPIO)
	}
	if cfg.ButtonPoll() != 10*time.Millisecond {
		t.Errorf("ButtonPoll = %v, want 10ms", cfg.ButtonPoll())
	}
	if cfg.OfflineMode() {
		t.Error("offline_mode: false should be kept")
	}
	if cfg.Defaults.DebugLevel != 3 {
		t.Errorf("debug_level = %d, want 3", cfg.Defaults.DebugLevel)
	}
	if !cfg.Defaults.MockGPIO {
		t.Error("mock_gpio should be true")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	path := writeConfig(t, "camera:\n  type: synthetic\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Camera.FacingMode != "environment" {
		t.Errorf("facing_mode default = %q, want environment", cfg.Camera.FacingMode)
	}
	if cfg.Camera.WidthPx != 1280 || cfg.Camera.HeightPx != 720 {
		t.Errorf("resolution default = %dx%d, want 1280x720", cfg.Camera.WidthPx, cfg.Camera.HeightPx)
	}
	if cfg.Encoder.JPEGQuality != 92 {
		t.Errorf("jpeg_quality default = %d, want 92", cfg.Encoder.JPEGQuality)
	}
	if cfg.Recognizer.Label != "Молоко 3.2%" {
		t.Errorf("label default = %q", cfg.Recognizer.Label)
	}
	if cfg.Recognizer.Price != "89.90 ₽" {
		t.Errorf("price default = %q", cfg.Recognizer.Price)
	}
	if cfg.UI.Locale != "ru-RU" {
		t.Errorf("locale default = %q, want ru-RU", cfg.UI.Locale)
	}
	if cfg.UI.InitialTab != "camera" {
		t.Errorf("initial_tab default = %q, want camera", cfg.UI.InitialTab)
	}
	if cfg.ButtonPoll() != 20*time.Millisecond {
		t.Errorf("button_poll default = %v, want 20ms", cfg.ButtonPoll())
	}
	if !cfg.OfflineMode() {
		t.Error("offline_mode should default to true")
	}
}

func TestLoad_StillImageRequiresPath(t *testing.T) {
	path := writeConfig(t, "camera:\n  type: still_image\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for still_image without still_path, got nil")
	}

	path = writeConfig(t, "camera:\n  type: still_image\n  still_path: tag.jpg\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Camera.StillPath != "tag.jpg" {
		t.Errorf("still_path = %q, want tag.jpg", cfg.Camera.StillPath)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing_type", "ui:\n  locale: ru-RU\n"},
		{"unknown_type", "camera:\n  type: nikon_d90_gpio\n"},
		{"bad_facing", "camera:\n  type: synthetic\n  facing_mode: sideways\n"},
		{"negative_width", "camera:\n  type: synthetic\n  width_px: -1\n"},
		{"negative_delay", "camera:\n  type: synthetic\n  open_delay_ms: -5\n"},
		{"quality_too_high", "camera:\n  type: synthetic\nencoder:\n  jpeg_quality: 101\n"},
		{"quality_negative", "camera:\n  type: synthetic\nencoder:\n  jpeg_quality: -1\n"},
		{"negative_max_width", "camera:\n  type: synthetic\nencoder:\n  max_width_px: -10\n"},
		{"bad_tab", "camera:\n  type: synthetic\nui:\n  initial_tab: history\n"},
		{"same_pins", "camera:\n  type: synthetic\ngpio:\n  torch_pin: 4\n  button_pin: 4\n"},
		{"negative_pin", "camera:\n  type: synthetic\ngpio:\n  torch_pin: -4\n"},
		{"debug_too_high", "camera:\n  type: synthetic\ndefaults:\n  debug_level: 9\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.yaml)
			if _, err := Load(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "big.yaml")
	data := make([]byte, MaxConfigFileBytes+1)
	for i := range data {
		data[i] = '#'
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for oversized config file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "{{{{invalid yaml!!!!")
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeConfig(t, "")
	if _, err := Load(path); err == nil {
		t.Error("expected error for empty config (camera.type missing), got nil")
	}
}

func TestLoad_UnknownFields(t *testing.T) {
	yaml := `
camera:
  type: "synthetic"
pan_stepper:
  step_pin: 17
`
	path := writeConfig(t, yaml)
	if _, err := Load(path); err != nil {
		t.Errorf("unknown fields should be ignored, got error: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "nonexistent.yaml")
	if _, err := Load(path); err == nil {
		t.Error("expected error for nonexistent file, got nil")
	}
}

func TestLoad_RepositoryDefault(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "default.yaml"))
	if err != nil {
		t.Fatalf("configs/default.yaml should load: %v", err)
	}
	if cfg.Camera.Type != CameraSynthetic {
		t.Errorf("default camera.type = %q, want synthetic", cfg.Camera.Type)
	}
	if !cfg.Defaults.MockGPIO {
		t.Error("default config should use mock GPIO")
	}
}
