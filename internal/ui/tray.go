// Package ui provides the optional system tray for the agent. Headless
// deployments skip it entirely.
package ui

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"github.com/vidmark/vidmark-agent/internal/jobs"
)

type Tray struct {
	runner *jobs.Runner
	logger *slog.Logger

	statusItem *systray.MenuItem
	videosItem *systray.MenuItem
	pauseItem  *systray.MenuItem

	mu sync.Mutex

	onScan      func() error
	onQuit      func()
	videosCount func() int
}

type TrayConfig struct {
	Runner      *jobs.Runner
	Logger      *slog.Logger
	OnScan      func() error
	OnQuit      func()
	VideosCount func() int
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		runner:      cfg.Runner,
		logger:      cfg.Logger,
		onScan:      cfg.OnScan,
		onQuit:      cfg.OnQuit,
		videosCount: cfg.VideosCount,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Vidmark")
	systray.SetTooltip("Vidmark Agent")

	t.mu.Lock()
	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.videosItem = systray.AddMenuItem("Videos: 0", "Videos in the library")
	t.videosItem.Disable()
	t.mu.Unlock()

	if t.videosCount != nil {
		t.UpdateVideosCount(t.videosCount())
	}

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause", "Pause exports")

	scanItem := systray.AddMenuItem("Rescan Videos", "Rescan the videos folder")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Vidmark Agent")

	go func() {
		for {
			select {
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-scanItem.ClickedCh:
				t.handleScan()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner == nil {
		return
	}

	if t.runner.IsPaused() {
		t.runner.Resume()
		t.pauseItem.SetTitle("Pause")
		t.statusItem.SetTitle("Status: Idle")
	} else {
		t.runner.Pause()
		t.pauseItem.SetTitle("Resume")
		t.statusItem.SetTitle("Status: Paused")
	}
}

func (t *Tray) handleScan() {
	if t.onScan == nil {
		return
	}
	t.UpdateStatus("Scanning")
	if err := t.onScan(); err != nil {
		t.logger.Error("failed to rescan videos", "error", err)
	}
	if t.videosCount != nil {
		t.UpdateVideosCount(t.videosCount())
	}
	t.UpdateStatus("Idle")
}

// UpdateStatus sets the status line unless the runner is paused; the paused
// label sticks until the operator resumes. A no-op before the menu exists.
func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.statusItem == nil {
		return
	}
	if t.runner != nil && t.runner.IsPaused() {
		return
	}
	t.statusItem.SetTitle("Status: " + status)
}

// UpdateVideosCount refreshes the library size line. A no-op before the
// menu exists.
func (t *Tray) UpdateVideosCount(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.videosItem == nil {
		return
	}
	t.videosItem.SetTitle(fmt.Sprintf("Videos: %d", count))
}

func (t *Tray) Quit() {
	systray.Quit()
}
