// Package tray provides a system tray interface for the drowsiness monitor.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/drowsewatch/internal/app"
	"github.com/ayusman/drowsewatch/internal/classifier"
)

// Controller is the part of the monitor the tray drives.
type Controller interface {
	IsLive() bool
	SetLive(live bool) error
	Restart() (string, error)
	Snapshot() app.Update
	Subscribe(fn func(app.Update)) func()
}

// Tray represents the system tray application.
type Tray struct {
	controller  Controller
	onDashboard func()
	onQuit      func()
	onError     func(error)
	mu          sync.RWMutex
	unsubscribe func()

	// Menu items stored for later updates
	menuStatus *systray.MenuItem
	menuCounts *systray.MenuItem
	menuToggle *systray.MenuItem
}

// New creates a new Tray driving controller.
func New(controller Controller) *Tray {
	return &Tray{controller: controller}
}

// OnDashboard sets the callback function to be called when the dashboard menu item is clicked.
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// OnError sets the callback for failed toggle or restart actions.
func (t *Tray) OnError(fn func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onError = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops a running tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Drowsewatch")
	systray.SetTooltip("Drowsewatch Driver Drowsiness Monitor")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem("Status: "+classifier.Active.String(), "Current driver status")
	t.menuStatus.Disable()
	t.menuCounts = systray.AddMenuItem(countsTitle(app.Update{}), "Drowsiness events this session")
	t.menuCounts.Disable()
	systray.AddSeparator()

	t.menuToggle = systray.AddMenuItem(liveTitle(t.controller.IsLive()), "Start or stop live monitoring")
	menuRestart := systray.AddMenuItem("Restart Session", "Reset counters and start a new session")
	systray.AddSeparator()

	menuDashboard := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Drowsewatch")
	t.mu.Unlock()

	t.SetStatus(t.controller.Snapshot())
	unsubscribe := t.controller.Subscribe(t.SetStatus)
	t.mu.Lock()
	t.unsubscribe = unsubscribe
	t.mu.Unlock()

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuRestart.ClickedCh:
				t.handleRestart()
			case <-menuDashboard.ClickedCh:
				t.handleDashboard()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				systray.Quit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {
	t.mu.Lock()
	unsubscribe := t.unsubscribe
	t.unsubscribe = nil
	t.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// handleToggle flips live monitoring.
func (t *Tray) handleToggle() {
	live := !t.controller.IsLive()
	if err := t.controller.SetLive(live); err != nil {
		t.reportError(fmt.Errorf("set live %v: %w", live, err))
	}
}

func (t *Tray) handleRestart() {
	if _, err := t.controller.Restart(); err != nil {
		t.reportError(fmt.Errorf("restart session: %w", err))
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
}

func (t *Tray) reportError(err error) {
	t.mu.RLock()
	callback := t.onError
	t.mu.RUnlock()

	if callback != nil {
		callback(err)
	}
}

// SetStatus refreshes the status line, counters and toggle label from u.
// It is subscribed to the monitor and runs on its goroutine.
func (t *Tray) SetStatus(u app.Update) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuStatus != nil {
		t.menuStatus.SetTitle("Status: " + u.Status.String())
	}
	if t.menuCounts != nil {
		t.menuCounts.SetTitle(countsTitle(u))
	}
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(liveTitle(u.Live))
	}
}

func countsTitle(u app.Update) string {
	return fmt.Sprintf("Eyes closed: %d  Yawns: %d", u.EyeClosedCount, u.YawnCount)
}

func liveTitle(live bool) string {
	if live {
		return "● Stop Live"
	}
	return "○ Start Live"
}
