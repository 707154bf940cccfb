// Package tray provides the system tray menu of the face unlock daemon.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray is the system tray application.
type Tray struct {
	onAuthenticate func()
	onToggle       func(enabled bool)
	onDashboard    func()
	onQuit         func()
	enabled        bool
	busy           bool
	last           string
	mu             sync.RWMutex

	// Menu items stored for later updates
	menuAuthenticate *systray.MenuItem
	menuToggle       *systray.MenuItem
	menuLastUser     *systray.MenuItem
}

// New creates a new Tray with watching enabled.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnAuthenticate sets the callback for the "Authenticate" item. It runs on
// its own goroutine so the menu stays responsive during a capture.
func (t *Tray) OnAuthenticate(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onAuthenticate = fn
}

// OnToggle sets the callback called when motion watching is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnDashboard sets the callback for the "Open Dashboard" item.
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
}

// OnQuit sets the callback called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Mukha")
	systray.SetTooltip("Mukha Face Unlock")

	t.mu.Lock()
	t.menuAuthenticate = systray.AddMenuItem("Authenticate", "Run a face authentication now")
	t.menuToggle = systray.AddMenuItem(toggleLabel(t.enabled), "Toggle motion-triggered authentication")
	systray.AddSeparator()

	t.menuLastUser = systray.AddMenuItem(lastLabel(t.last), "Last authenticated user")
	t.menuLastUser.Disable()
	systray.AddSeparator()
	t.mu.Unlock()

	menuDashboard := systray.AddMenuItem("Open Dashboard", "Open the dashboard in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Mukha")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuAuthenticate.ClickedCh:
				t.handleAuthenticate()
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuDashboard.ClickedCh:
				t.handleDashboard()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleAuthenticate runs the authenticate callback unless one is running.
func (t *Tray) handleAuthenticate() {
	t.mu.Lock()
	callback := t.onAuthenticate
	if callback == nil || t.busy {
		t.mu.Unlock()
		return
	}
	t.setBusyLocked(true)
	t.mu.Unlock()

	go func() {
		defer t.SetBusy(false)
		callback()
	}()
}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleLabel(enabled))
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleDashboard handles the dashboard menu item click.
func (t *Tray) handleDashboard() {
	t.mu.RLock()
	callback := t.onDashboard
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

// SetLastUser updates the last authenticated user shown in the menu.
func (t *Tray) SetLastUser(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = name
	if t.menuLastUser != nil {
		t.menuLastUser.SetTitle(lastLabel(name))
	}
}

// SetBusy greys out "Authenticate" while a capture is running.
func (t *Tray) SetBusy(busy bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setBusyLocked(busy)
}

func (t *Tray) setBusyLocked(busy bool) {
	t.busy = busy
	if t.menuAuthenticate == nil {
		return
	}
	if busy {
		t.menuAuthenticate.SetTitle("Authenticating...")
		t.menuAuthenticate.Disable()
	} else {
		t.menuAuthenticate.SetTitle("Authenticate")
		t.menuAuthenticate.Enable()
	}
}

// IsEnabled reports whether motion watching is enabled.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// LastUser returns the name shown as last authenticated user.
func (t *Tray) LastUser() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

func lastLabel(name string) string {
	if name == "" {
		return "Last: none"
	}
	return "Last: " + name
}

func toggleLabel(enabled bool) string {
	if enabled {
		return "● Watching"
	}
	return "○ Paused"
}
