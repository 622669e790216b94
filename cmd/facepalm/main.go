package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/ayusman/facepalm/internal/app"
	"github.com/ayusman/facepalm/internal/capture"
	"github.com/ayusman/facepalm/internal/config"
	"github.com/ayusman/facepalm/internal/log"
	"github.com/ayusman/facepalm/internal/photo"
	"github.com/ayusman/facepalm/internal/pose"
	"github.com/ayusman/facepalm/internal/server"
	"github.com/ayusman/facepalm/internal/store"
	"github.com/ayusman/facepalm/internal/tray"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config.json (default ~/.config/facepalm/config.json)")
	noTray := flag.Bool("no-tray", false, "run without the system tray")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "facepalm: %v\n", err)
		os.Exit(1)
	}
	if *noTray {
		cfg.Tray = false
	}

	log.Init(cfg.LogLevel)

	if err := run(cfg); err != nil {
		log.Error("facepalm stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(filepath.Join(cfg.DataDir, "facepalm.db"))
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	outputDir, err := photo.OutputDir(cfg.OutputDir, filepath.Join(cfg.DataDir, "photos"))
	if err != nil {
		return err
	}

	camera, err := newCamera(cfg.Camera)
	if err != nil {
		return err
	}

	a := app.New(app.Config{
		Camera:          camera,
		Estimator:       newEstimator(cfg.Pose),
		Store:           st,
		OutputDir:       outputDir,
		CaptureTimeout:  time.Duration(cfg.CaptureTimeoutMs) * time.Millisecond,
		WhileDisarmed:   cfg.Sampling.WhileDisarmed,
		MotionThreshold: cfg.Sampling.MotionThreshold,
		PluginDir:       cfg.PluginDir,
	})
	defer a.Close()

	if err := a.DiscoverPlugins(); err != nil {
		log.Warn("plugin discovery failed", "dir", cfg.PluginDir, "error", err)
	}

	if err := a.Start(); err != nil {
		return fmt.Errorf("start camera: %w", err)
	}
	log.Info("saving photos", "dir", outputDir)

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir)
	}
	if staticDir != "" {
		log.Info("serving static files", "dir", staticDir)
	}

	srv := server.New(server.Config{
		StaticDir:  staticDir,
		Store:      st,
		Controller: a,
		Bus:        a.Bus(),
		Shutter:    a.Shutter(),
	})
	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: srv}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	quit := make(chan struct{})
	var quitOnce sync.Once
	stop := func() { quitOnce.Do(func() { close(quit) }) }

	var t *tray.Tray
	if cfg.Tray {
		t = tray.New()
		t.OnArm(func() { a.Arm() })
		t.OnOpen(func() { openBrowser(localURL(cfg.ListenAddr)) })
		t.OnQuit(stop)
		detach := t.Attach(a.Bus())
		defer detach()
	}

	daemon.SdNotify(false, daemon.SdNotifyReady)

	errc := make(chan error, 1)
	go func() {
		errc <- wait(a, srvErr, quit)
		if t != nil {
			t.Quit()
		}
	}()

	// systray needs the main goroutine
	if t != nil {
		t.Run()
		stop()
	}
	err = <-errc

	daemon.SdNotify(false, daemon.SdNotifyStopping)
	log.Info("shutting down")

	srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := httpSrv.Shutdown(ctx); shutdownErr != nil {
		log.Warn("server shutdown", "error", shutdownErr)
	}

	return err
}

// wait blocks until a signal, a quit request, a server failure or the end of
// the camera stream.
func wait(a *app.App, srvErr <-chan error, quit <-chan struct{}) error {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigc)

	select {
	case sig := <-sigc:
		log.Info("caught signal", "signal", sig.String())
		return nil
	case <-quit:
		return nil
	case err := <-srvErr:
		return fmt.Errorf("server failed: %w", err)
	case <-a.Done():
		if err := a.Err(); err != nil {
			return fmt.Errorf("camera stream ended: %w", err)
		}
		return nil
	}
}

func newCamera(cfg config.CameraConfig) (capture.Camera, error) {
	var camera capture.Camera

	switch strings.ToLower(cfg.Backend) {
	case config.BackendV4L2:
		device := cfg.Device
		if _, err := strconv.Atoi(device); err == nil {
			device = "/dev/video" + device
		}
		camera = capture.NewWebcam(device, cfg.Width, cfg.Height, cfg.Rotation)
	default:
		id, err := strconv.Atoi(cfg.Device)
		if err != nil {
			return nil, fmt.Errorf("opencv camera device must be an index, got %q", cfg.Device)
		}
		camera = capture.NewCameraWithOptions(id, cfg.Width, cfg.Height, cfg.Rotation)
	}

	camera.SetFPS(cfg.FPS)
	return camera, nil
}

// newEstimator starts the MediaPipe pose service, falling back to the mock
// estimator when the service script is not installed.
func newEstimator(cfg config.PoseConfig) pose.Estimator {
	est, err := pose.NewMediaPipeEstimator(pose.Config{
		Python:        cfg.Python,
		Script:        cfg.Script,
		MinVisibility: cfg.MinVisibility,
	})
	if err != nil {
		log.Warn("MediaPipe not available, using mock estimator", "error", err)
		return pose.NewMockEstimator()
	}
	log.Info("using MediaPipe pose estimation")
	return est
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func localURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) {
	name := "xdg-open"
	if runtime.GOOS == "darwin" {
		name = "open"
	}
	if err := exec.Command(name, url).Start(); err != nil {
		log.Warn("could not open browser", "url", url, "error", err)
	}
}
