package ui

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"
)

//go:embed icon.png
var iconBytes []byte

const refreshInterval = 2 * time.Second

// ExportCounter reports how many exports are running.
type ExportCounter interface {
	ActiveCount() int
}

type Tray struct {
	exports ExportCounter
	logger  *slog.Logger
	addr    string

	statusItem *systray.MenuItem

	mu       sync.Mutex
	lastText string
	stop     chan struct{}

	onOpen func()
	onQuit func()
}

type TrayConfig struct {
	Exports ExportCounter
	Logger  *slog.Logger
	// Addr is shown in the menu so the editor UI can be pointed at it.
	Addr   string
	OnOpen func()
	OnQuit func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		exports: cfg.Exports,
		logger:  cfg.Logger,
		addr:    cfg.Addr,
		stop:    make(chan struct{}),
		onOpen:  cfg.OnOpen,
		onQuit:  cfg.OnQuit,
	}
}

// Run blocks until the tray exits.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("clipforge")
	systray.SetTooltip("clipforge editor agent")

	t.statusItem = systray.AddMenuItem(StatusText(0), "Running exports")
	t.statusItem.Disable()

	if t.addr != "" {
		addrItem := systray.AddMenuItem("API: "+t.addr, "Local API address")
		addrItem.Disable()
	}

	systray.AddSeparator()

	openItem := systray.AddMenuItem("Open Exports Folder", "Show finished exports")
	quitItem := systray.AddMenuItem("Quit", "Quit clipforge")

	go t.poll()
	go func() {
		for {
			select {
			case <-openItem.ClickedCh:
				if t.onOpen != nil {
					t.onOpen()
				}
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				t.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) poll() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.UpdateStatus(t.exports.ActiveCount())
		case <-t.stop:
			return
		}
	}
}

// UpdateStatus sets the status line for n running exports.
func (t *Tray) UpdateStatus(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	text := StatusText(n)
	if text == t.lastText || t.statusItem == nil {
		return
	}
	t.lastText = text
	t.statusItem.SetTitle(text)
}

// StatusText is the tray status line for n running exports.
func StatusText(n int) string {
	switch n {
	case 0:
		return "Status: Idle"
	case 1:
		return "Status: Exporting 1 video"
	default:
		return fmt.Sprintf("Status: Exporting %d videos", n)
	}
}

func (t *Tray) Quit() {
	t.mu.Lock()
	select {
	case <-t.stop:
	default:
		close(t.stop)
	}
	t.mu.Unlock()
	systray.Quit()
}
