// Package app wires the camera, sampler, readiness machine and photo saver
// into the running Facepalm camera.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/ayusman/facepalm/internal/capture"
	"github.com/ayusman/facepalm/internal/event"
	"github.com/ayusman/facepalm/internal/gesture"
	"github.com/ayusman/facepalm/internal/log"
	"github.com/ayusman/facepalm/internal/photo"
	"github.com/ayusman/facepalm/internal/plugin"
	"github.com/ayusman/facepalm/internal/pose"
	"github.com/ayusman/facepalm/internal/sampler"
	"github.com/ayusman/facepalm/internal/store"
)

// Config holds configuration options for the application.
type Config struct {
	Camera    capture.Camera
	Estimator pose.Estimator
	// Store records saved photos. Nil skips the catalog.
	Store *store.Store
	// Bus receives every event. Nil creates a private bus.
	Bus *event.Bus

	OutputDir      string
	CaptureTimeout time.Duration
	JPEGQuality    int

	// WhileDisarmed keeps estimating poses while not armed.
	WhileDisarmed bool
	// MotionThreshold enables the motion filter when > 0.
	MotionThreshold float64

	// PluginDir enables event plugins when set.
	PluginDir string
}

// Status is a snapshot of the running app.
type Status struct {
	State       gesture.State `json:"state"`
	Label       string        `json:"label"`
	Running     bool          `json:"running"`
	CameraOpen  bool          `json:"camera_open"`
	Outstanding bool          `json:"outstanding"`
	Captures    int           `json:"captures"`
	Plugins     int           `json:"plugins"`
	Sampler     sampler.Stats `json:"sampler"`
}

// App is the main application.
type App struct {
	config     Config
	bus        *event.Bus
	shutter    *capture.Shutter
	saver      *photo.Saver
	machine    *gesture.Machine
	sampler    *sampler.Sampler
	motion     *capture.MotionFilter
	pluginMgr  *plugin.Manager
	dispatcher *plugin.Dispatcher

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	stopStream  context.CancelFunc
	streamDone  chan struct{}
	streamErr   error
	unsubscribe []func()
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	if config.Bus == nil {
		config.Bus = event.NewBus()
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		config:  config,
		bus:     config.Bus,
		shutter: capture.NewShutter(),
		ctx:     ctx,
		cancel:  cancel,
	}

	var catalog photo.Catalog
	if config.Store != nil {
		catalog = config.Store.Photos()
	}
	a.saver = photo.NewSaver(a.shutter, catalog, a.bus, photo.Config{
		OutputDir: config.OutputDir,
		Timeout:   config.CaptureTimeout,
		Quality:   config.JPEGQuality,
	})
	a.machine = gesture.NewMachine(a.saver, a.bus)

	opts := []sampler.Option{sampler.WithContext(ctx)}
	if !config.WhileDisarmed {
		opts = append(opts, sampler.WithGate(a.machine.IsArmed))
	}
	if config.MotionThreshold > 0 {
		a.motion = capture.NewMotionFilter(config.MotionThreshold)
		opts = append(opts, sampler.WithFilter(a.motion))
	}
	a.sampler = sampler.New(config.Estimator, a.machine, opts...)

	a.unsubscribe = append(a.unsubscribe, a.bus.Subscribe(logEvent))

	if config.PluginDir != "" {
		a.pluginMgr = plugin.NewManager(config.PluginDir)
		a.dispatcher = plugin.NewDispatcher(a.pluginMgr, plugin.NewExecutor(plugin.DefaultTimeoutMs))
		a.unsubscribe = append(a.unsubscribe, a.dispatcher.Attach(a.bus))
	}

	return a
}

func logEvent(e event.Event) {
	args := []any{"component", "app", "kind", e.Kind, "label", e.Label}
	if e.IntentID != "" {
		args = append(args, "intent", e.IntentID)
	}
	if e.Path != "" {
		args = append(args, "path", e.Path)
	}
	if e.Error != "" {
		args = append(args, "error", e.Error)
	}
	log.Info("event", args...)
}

// DiscoverPlugins scans the plugin directory and loads available plugins.
func (a *App) DiscoverPlugins() error {
	if a.pluginMgr == nil {
		return nil
	}
	if err := a.pluginMgr.Discover(); err != nil {
		return err
	}
	for _, p := range a.pluginMgr.List() {
		log.Info("plugin loaded", "component", "app", "plugin", p.Manifest.Name, "events", p.Manifest.Events)
	}
	return nil
}

// Start opens the camera and begins streaming frames into the pipeline.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Don't start if already running
	if a.stopStream != nil {
		return nil
	}

	if err := a.config.Camera.Open(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(a.ctx)
	a.stopStream = cancel
	a.streamDone = make(chan struct{})
	a.streamErr = nil
	go a.runPipeline(ctx, a.streamDone)

	log.Info("pipeline started", "component", "app", "fps", a.config.Camera.FPS())
	return nil
}

// Stop ends streaming and closes the camera. Started work is left to finish.
func (a *App) Stop() {
	a.mu.Lock()
	cancel, done := a.stopStream, a.streamDone
	a.stopStream = nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	if err := a.config.Camera.Close(); err != nil {
		log.Warn("error closing camera", "component", "app", "error", err)
	}
	log.Info("pipeline stopped", "component", "app")
}

// Done is closed when the current stream ends, by Stop or by the source.
// It returns nil when the app was never started.
func (a *App) Done() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.streamDone
}

// Err returns the error that ended the last stream, if any.
func (a *App) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.streamErr
}

// Close stops the pipeline, waits for in-flight work and releases resources.
func (a *App) Close() error {
	a.Stop()

	a.sampler.Wait()
	a.saver.Wait()
	a.cancel()

	for _, unsubscribe := range a.unsubscribe {
		unsubscribe()
	}
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.motion != nil {
		a.motion.Close()
	}
	return a.config.Estimator.Close()
}

// Arm makes the next facepalm take a picture.
func (a *App) Arm() bool {
	if a.motion != nil {
		a.motion.Reset()
	}
	return a.machine.Arm()
}

// Disarm cancels a pending arm.
func (a *App) Disarm() bool {
	return a.machine.Disarm()
}

// Snapshot returns the current status.
func (a *App) Snapshot() Status {
	a.mu.Lock()
	running := a.stopStream != nil
	a.mu.Unlock()

	state := a.machine.State()
	label := event.Disarmed.Label()
	if state == gesture.Armed {
		label = event.Armed.Label()
	}
	if last, ok := a.bus.Last(); ok {
		label = last.Label
	}

	s := Status{
		State:       state,
		Label:       label,
		Running:     running,
		CameraOpen:  a.config.Camera.IsOpen(),
		Outstanding: a.sampler.Outstanding(),
		Captures:    a.machine.Captures(),
		Sampler:     a.sampler.Stats(),
	}
	if a.pluginMgr != nil {
		s.Plugins = len(a.pluginMgr.List())
	}
	return s
}

// Status returns Snapshot as an untyped value for the HTTP server.
func (a *App) Status() any {
	return a.Snapshot()
}

// Bus returns the event bus.
func (a *App) Bus() *event.Bus {
	return a.bus
}

// Shutter returns the shutter fed by the camera stream.
func (a *App) Shutter() *capture.Shutter {
	return a.shutter
}

// Machine returns the readiness state machine.
func (a *App) Machine() *gesture.Machine {
	return a.machine
}

// Sampler returns the frame sampler.
func (a *App) Sampler() *sampler.Sampler {
	return a.sampler
}

// Saver returns the photo saver.
func (a *App) Saver() *photo.Saver {
	return a.saver
}

// PluginManager returns the plugin manager, or nil without a plugin dir.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}
