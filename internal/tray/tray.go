// Package tray provides the system tray interface for the Facepalm camera.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/facepalm/internal/event"
)

// Tray represents the system tray application.
type Tray struct {
	onArm  func()
	onOpen func()
	onQuit func()
	status string
	armed  bool
	mu     sync.RWMutex

	// Menu items stored for later updates
	menuReady  *systray.MenuItem
	menuStatus *systray.MenuItem
}

// New creates a new Tray showing the disarmed label.
func New() *Tray {
	return &Tray{
		status: event.Disarmed.Label(),
	}
}

// OnArm sets the callback invoked when "Ready" is clicked.
func (t *Tray) OnArm(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onArm = fn
}

// OnOpen sets the callback invoked when "Open Photos..." is clicked.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Attach keeps the tray in sync with bus events and returns the unsubscribe func.
func (t *Tray) Attach(bus *event.Bus) func() {
	return bus.Subscribe(t.Update)
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops a running tray.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Facepalm")
	systray.SetTooltip("Facepalm Camera")

	t.mu.Lock()
	t.menuReady = systray.AddMenuItem("Ready", "Take a picture on the next facepalm")
	t.menuStatus = systray.AddMenuItem(t.status, "Camera status")
	t.menuStatus.Disable()
	t.refresh()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Photos...", "Open the photo list in the browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Facepalm")

	go func() {
		for {
			select {
			case <-t.menuReady.ClickedCh:
				t.handleArm()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// Update applies e to the status label and the "Ready" item.
func (t *Tray) Update(e event.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status = e.Label
	if t.status == "" {
		t.status = e.Kind.Label()
	}
	switch e.Kind {
	case event.Armed:
		t.armed = true
	case event.Disarmed, event.Detected:
		t.armed = false
	}
	t.refresh()
}

// refresh pushes state to the menu items. Callers hold t.mu.
func (t *Tray) refresh() {
	if t.menuStatus == nil {
		return
	}
	t.menuStatus.SetTitle(t.status)
	if t.armed {
		t.menuReady.Disable()
	} else {
		t.menuReady.Enable()
	}
}

func (t *Tray) handleArm() {
	t.mu.RLock()
	callback := t.onArm
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Status returns the label currently shown.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// IsArmed reports whether the tray last saw the camera armed.
func (t *Tray) IsArmed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.armed
}
