package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/cjeanneret/PriceScan/internal/config"
	"github.com/cjeanneret/PriceScan/internal/debug"
	"github.com/cjeanneret/PriceScan/internal/hw/button"
	"github.com/cjeanneret/PriceScan/internal/hw/camera"
	"github.com/cjeanneret/PriceScan/internal/hw/gpio"
	"github.com/cjeanneret/PriceScan/internal/locale"
	"github.com/cjeanneret/PriceScan/internal/logic/capture"
	"github.com/cjeanneret/PriceScan/internal/logic/controller"
	"github.com/cjeanneret/PriceScan/internal/logic/session"
	"github.com/cjeanneret/PriceScan/internal/notify"
	"github.com/cjeanneret/PriceScan/internal/web"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// newGPIODriver is swapped in tests to observe the driver lifecycle.
var newGPIODriver = gpio.NewDriver

// run wires everything and returns the process exit code. Failures return
// instead of exiting so the deferred cleanup (GPIO reset, camera close)
// always runs.
func run(args []string, stdout io.Writer) int {
	// CLI flags
	flags := flag.NewFlagSet("pricescan", flag.ContinueOnError)
	webPort := &webPortFlag{defaultPort: 8080}
	flags.Var(webPort, "web", "start web UI on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flags.String("config", filepath.Join("configs", "default.yaml"), "path to config file (configs/*.yaml)")
	localeTag := flags.String("locale", "", "override ui.locale for timestamps, e.g. ru-RU or en-US")
	outPath := flags.String("out", "", "headless mode: write the captured JPEG to this file")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Printf("invalid -config: %v", err)
		return 2
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Printf("load config failed: %v", err)
		return 1
	}

	if err := validateCLIOverrides(*localeTag, *outPath); err != nil {
		log.Printf("invalid CLI override: %v", err)
		return 2
	}
	applyOverrides(cfg, *localeTag)

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Locale", cfg.UI.Locale)

	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := newGPIODriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Printf("init GPIO failed: %v", err)
		return 1
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	var broadcaster *web.StatusBroadcaster
	notifier := notify.Log
	if webPort.port() > 0 {
		broadcaster = web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(stdout, web.BroadcastWriter(broadcaster)))
		notifier = notify.Multi(notify.Log, broadcaster)
	}

	debug.Step(2, "Initializing camera")
	mgr, err := newSessionManager(cfg, gpioDriver, notifier)
	if err != nil {
		log.Printf("init camera failed: %v", err)
		return 1
	}
	debug.PrintStruct("Camera config", cfg.Camera)

	if port := webPort.port(); port > 0 {
		debug.Step(3, "Starting web UI")
		tab, err := controller.ParseTab(cfg.UI.InitialTab)
		if err != nil {
			log.Printf("invalid initial tab: %v", err)
			return 1
		}
		ctrl := controller.New(mgr, notifier, controller.Options{
			InitialTab:  tab,
			OfflineMode: cfg.OfflineMode(),
		})
		defer ctrl.Shutdown()

		if cfg.GPIO.ButtonPin > 0 {
			watcher, err := button.NewWatcher(gpioDriver, cfg.GPIO.ButtonPin, cfg.ButtonPoll(), func() {
				if _, err := ctrl.Capture(ctx); err != nil && !errors.Is(err, controller.ErrCaptureBusy) {
					debug.Error(err)
				}
			})
			if err != nil {
				log.Printf("init shutter button failed: %v", err)
				return 1
			}
			go func() {
				if err := watcher.Run(ctx); err != nil {
					debug.Error(err)
				}
			}()
		}

		srv := web.NewServer(fmt.Sprintf(":%d", port), broadcaster, ctrl)
		if err := srv.Run(ctx); err != nil {
			log.Printf("web server: %v", err)
			return 1
		}
		return 0
	}

	debug.Step(3, "Capturing one price tag")
	item, err := runHeadless(ctx, mgr, *outPath)
	if err != nil {
		log.Printf("capture failed: %v", err)
		return 1
	}
	debug.Summary("Capture Complete")
	fmt.Fprintf(stdout, "%s\t%s\t%s\t%s\n", item.ID, item.CapturedAt, item.Label, item.Price)
	return 0
}

// newSessionManager assembles device, pipeline and optional torch into a
// camera session manager.
func newSessionManager(cfg *config.Config, g gpio.Driver, n notify.Notifier) (*session.Manager, error) {
	dev, err := newDeviceFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	loc, err := locale.New(cfg.UI.Locale)
	if err != nil {
		return nil, err
	}
	pipeline := capture.NewPipeline(
		&capture.JPEGEncoder{Quality: cfg.Encoder.JPEGQuality, MaxWidth: cfg.Encoder.MaxWidthPx},
		capture.PlaceholderRecognizer{Label: cfg.Recognizer.Label, Price: cfg.Recognizer.Price},
		loc,
	)
	opts := []session.Option{session.WithNotifier(n)}
	if cfg.GPIO.TorchPin > 0 {
		debug.Value("Torch pin", cfg.GPIO.TorchPin)
		opts = append(opts, session.WithTorch(camera.NewGPIOTorch(g, cfg.GPIO.TorchPin)))
	}
	constraints := camera.Constraints{
		FacingMode: cfg.Camera.FacingMode,
		Width:      cfg.Camera.WidthPx,
		Height:     cfg.Camera.HeightPx,
	}
	return session.NewManager(dev, constraints, pipeline, opts...), nil
}

// runHeadless opens the camera, captures one item, optionally writes its
// JPEG to outPath and closes the camera again.
func runHeadless(ctx context.Context, mgr *session.Manager, outPath string) (capture.CapturedItem, error) {
	if err := mgr.Open(ctx); err != nil {
		return capture.CapturedItem{}, fmt.Errorf("open camera: %w", err)
	}
	defer mgr.Close()

	item, err := mgr.Capture(ctx)
	if err != nil {
		return capture.CapturedItem{}, err
	}
	if outPath != "" {
		if err := writeItemImage(outPath, item); err != nil {
			return item, err
		}
		debug.Info("Wrote %s", outPath)
	}
	return item, nil
}

func writeItemImage(path string, item capture.CapturedItem) error {
	_, data, err := capture.DecodeDataURI(item.ImageData)
	if err != nil {
		return fmt.Errorf("decode item image: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// validateCLIOverrides checks the optional flags. Empty values mean
// "use config default".
func validateCLIOverrides(localeTag, outPath string) error {
	if localeTag != "" {
		if _, err := locale.New(localeTag); err != nil {
			return err
		}
	}
	if outPath != "" {
		switch strings.ToLower(filepath.Ext(outPath)) {
		case ".jpg", ".jpeg":
		default:
			return fmt.Errorf("-out must be a .jpg or .jpeg file, got %q", outPath)
		}
	}
	return nil
}

// applyOverrides mutates cfg with the CLI overrides. Empty values are ignored.
func applyOverrides(cfg *config.Config, localeTag string) {
	if localeTag != "" {
		cfg.UI.Locale = localeTag
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }

// newDeviceFromConfig selects a camera device implementation based on configuration.
func newDeviceFromConfig(cfg *config.Config) (camera.Device, error) {
	switch cfg.Camera.Type {
	case config.CameraSynthetic:
		return camera.NewSyntheticDevice(cfg.OpenDelay(), cfg.Camera.Deny), nil
	case config.CameraStillImage:
		return camera.NewStillImageDevice(cfg.Camera.StillPath), nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
}
