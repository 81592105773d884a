package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/atotto/clipboard"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"tailview/common"
)

// clipWrite allows tests to stub the system clipboard.
var clipWrite = clipboard.WriteAll

// asyncRun allows tests to stub the spinner-driven background executor.
var asyncRun = runAsync

// dashboardUI owns the tview widget tree and the only mutable UI state:
// the currently displayed snapshot and the table selection. Snapshots
// are replaced wholesale on publish; nothing here mutates one in place.
type dashboardUI struct {
	app    *tview.Application
	pages  *tview.Pages
	client *Client
	ref    *refresher

	header   *tview.TextView
	summary  *tview.TextView
	table    *tview.Table
	netcheck *tview.TextView
	status   *tview.TextView
	hints    *tview.TextView

	snap    *common.Snapshot
	banner  string // persistent error line (missing binary), empty when healthy
	pinging atomic.Bool
	clipOK  bool
	setting atomic.Bool // exit-node change in flight
}

func newDashboardUI(client *Client) *dashboardUI {
	ui := &dashboardUI{
		app:    tview.NewApplication(),
		pages:  tview.NewPages(),
		client: client,
		clipOK: !clipboard.Unsupported,
	}
	ui.app.EnableMouse(true)
	if !ui.clipOK {
		common.VLogf("clipboard utility not available; copy disabled")
	}

	ui.header = tview.NewTextView().SetDynamicColors(true)
	ui.header.SetText(headerLine(time.Now()))

	ui.summary = tview.NewTextView().SetDynamicColors(true)
	ui.summary.SetBorder(true).SetTitle("Summary")
	ui.summary.SetText("Waiting for first refresh...")

	ui.table = tview.NewTable()
	ui.table.SetBorder(true).SetTitle("Peers")
	ui.table.SetSelectable(true, false)
	ui.table.SetFixed(1, 0)
	renderPeerHeader(ui.table)
	ui.table.SetSelectedFunc(func(row, col int) {
		if p, ok := ui.selectedPeer(); ok {
			ui.startPing(p.IP)
		}
	})

	ui.netcheck = tview.NewTextView().SetDynamicColors(true)
	ui.netcheck.SetBorder(true).SetTitle("Netcheck")
	ui.netcheck.SetScrollable(true)
	ui.netcheck.SetWrap(true)

	ui.status = tview.NewTextView().SetDynamicColors(true).SetText("Starting")
	ui.status.SetBorder(true).SetTitle("Status")
	ui.status.SetWrap(true)

	ui.hints = tview.NewTextView().SetDynamicColors(true)
	ui.hints.SetText("[yellow]q[white] quit  [yellow]r[white] refresh  [yellow]enter[white] ping  [yellow]c[white] copy ip  [yellow]e[white] exit node  [yellow]l[white] exit-node list")

	main := tview.NewFlex().SetDirection(tview.FlexRow)
	main.AddItem(ui.header, 1, 0, false)
	main.AddItem(ui.summary, 5, 0, false)
	main.AddItem(ui.table, 0, 2, true)
	main.AddItem(ui.netcheck, 0, 1, false)
	main.AddItem(ui.status, 3, 0, false)
	main.AddItem(ui.hints, 1, 0, false)

	main.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			ui.app.Stop()
			return nil
		}
		if event.Key() != tcell.KeyRune {
			return event
		}
		switch event.Rune() {
		case 'q':
			ui.app.Stop()
			return nil
		case 'r':
			ui.requestRefresh()
			return nil
		case 'c':
			ui.copySelected()
			return nil
		case 'e':
			ui.exitNodeSelected()
			return nil
		case 'l':
			ui.showExitNodeList()
			return nil
		}
		return event
	})

	ui.pages.AddPage("main", main, true, true)
	ui.app.SetRoot(ui.pages, true)
	ui.app.SetFocus(ui.table)
	return ui
}

// run wires the refresher to the UI and blocks until quit.
func (ui *dashboardUI) run(interval time.Duration) error {
	ui.ref = newRefresher(interval,
		ui.client.Fetch,
		func(snap *common.Snapshot) {
			ui.app.QueueUpdateDraw(func() { ui.apply(snap) })
		},
		func(err error) {
			ui.app.QueueUpdateDraw(func() { ui.applyError(err) })
		},
	)
	ui.ref.Start()
	defer ui.ref.Stop()

	clockDone := make(chan struct{})
	defer close(clockDone)
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-clockDone:
				return
			case now := <-ticker.C:
				ui.app.QueueUpdateDraw(func() {
					ui.header.SetText(headerLine(now))
				})
			}
		}
	}()

	log.SetOutput(&uiLogWriter{app: ui.app, view: ui.status})
	defer log.SetOutput(os.Stderr)

	return ui.app.Run()
}

func headerLine(now time.Time) string {
	return fmt.Sprintf("[::b]tailview[::-] mesh dashboard  [gray]%s", now.Format("15:04:05"))
}

// apply installs a freshly published snapshot. The previous one is
// dropped in full; the table never shows a mix of old and new fields.
func (ui *dashboardUI) apply(snap *common.Snapshot) {
	ui.snap = snap
	ui.banner = ""
	ui.renderSummary()
	ui.renderTable()
	ui.netcheck.SetText(snap.Netcheck)
	ui.setStatus(fmt.Sprintf("[green]Updated %s", snap.When.Format("15:04:05")))
}

// applyError annotates the status area without touching displayed data.
// A missing binary sticks as a banner until a cycle succeeds; everything
// else is transient.
func (ui *dashboardUI) applyError(err error) {
	switch {
	case common.IsNotFound(err):
		ui.banner = fmt.Sprintf("[red]%s not found: install it or set `binary` in the config", ui.client.bin)
		ui.setStatus("[red]Refresh failed: tool not found")
	case common.IsTimeout(err):
		ui.setStatus("[red]Refresh timed out; showing last known state")
	default:
		ui.setStatus(fmt.Sprintf("[red]Refresh failed: %v", err))
	}
	ui.renderSummary()
}

func (ui *dashboardUI) setStatus(msg string) {
	ui.status.SetText(msg)
}

func (ui *dashboardUI) renderSummary() {
	if ui.snap == nil {
		if ui.banner != "" {
			ui.summary.SetText(ui.banner)
		}
		return
	}
	text := fmt.Sprintf("Local IP: [white]%s[-]  State: [white]%s[-]\n%s",
		ui.snap.LocalIP, ui.snap.BackendState, ui.snap.ExitSummary())
	if ui.banner != "" {
		text = ui.banner + "\n" + text
	}
	ui.summary.SetText(text)
}

func renderPeerHeader(table *tview.Table) {
	for col, name := range []string{"Hostname", "IP", "Online", "Exit Node", "OS"} {
		table.SetCell(0, col, tview.NewTableCell("[::b]"+name).
			SetSelectable(false).
			SetExpansion(1))
	}
}

// peerCells maps one peer to its table cell texts.
func peerCells(p common.Peer) []string {
	online := "[red]○ offline"
	if p.Online {
		online = "[green]● online"
	}
	exit := ""
	switch {
	case p.ExitNodeActive:
		exit = "[aqua]yes (in use)"
	case p.ExitNode:
		exit = "[aqua]yes"
	}
	return []string{p.Hostname, p.IP, online, exit, p.OS}
}

func (ui *dashboardUI) renderTable() {
	// Keep the selection on the same peer across refreshes when it is
	// still present.
	selectedIP := ""
	if p, ok := ui.selectedPeer(); ok {
		selectedIP = p.IP
	}

	for row := ui.table.GetRowCount() - 1; row > 0; row-- {
		ui.table.RemoveRow(row)
	}
	for i, p := range ui.snap.Peers {
		for col, text := range peerCells(p) {
			ui.table.SetCell(i+1, col, tview.NewTableCell(text).SetExpansion(1))
		}
	}

	if len(ui.snap.Peers) == 0 {
		return
	}
	newRow := 1
	for i, p := range ui.snap.Peers {
		if p.IP == selectedIP {
			newRow = i + 1
			break
		}
	}
	ui.table.Select(newRow, 0)
}

func (ui *dashboardUI) selectedPeer() (common.Peer, bool) {
	if ui.snap == nil {
		return common.Peer{}, false
	}
	row, _ := ui.table.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(ui.snap.Peers) {
		return common.Peer{}, false
	}
	return ui.snap.Peers[idx], true
}

func (ui *dashboardUI) requestRefresh() {
	if ui.ref == nil {
		return
	}
	if ui.ref.Trigger() {
		ui.setStatus("[yellow]Refreshing...")
	} else {
		ui.setStatus("[yellow]Refresh already in progress")
	}
}

// startPing dispatches one ping against addr. At most one ping is ever
// outstanding; further triggers are dropped until it resolves.
func (ui *dashboardUI) startPing(addr string) {
	if ui.snap == nil {
		return
	}
	if !ui.pinging.CompareAndSwap(false, true) {
		return
	}
	snap := ui.snap
	var out string
	asyncRun(ui.app, ui.status, "Pinging "+addr, func() error {
		var err error
		out, err = ui.client.Ping(context.Background(), snap, addr)
		return err
	}, func(err error) {
		ui.pinging.Store(false)
		if err != nil {
			ui.setStatus(fmt.Sprintf("[red]Ping %s failed: %v", addr, err))
			return
		}
		ui.setStatus(fmt.Sprintf("[green]Ping %s done", addr))
		ui.showOverlay("Ping "+addr, out)
	})
}

func (ui *dashboardUI) copySelected() {
	p, ok := ui.selectedPeer()
	if !ok {
		return
	}
	if !ui.clipOK {
		ui.setStatus("[yellow]Clipboard unavailable on this system")
		return
	}
	if err := clipWrite(p.IP); err != nil {
		// Degrade for the rest of the session, log the cause once.
		ui.clipOK = false
		common.VLogf("clipboard write failed: %v", err)
		ui.setStatus("[yellow]Clipboard unavailable on this system")
		return
	}
	ui.setStatus(fmt.Sprintf("[green]Copied %s", p.IP))
}

// exitNodeSelected routes traffic through the selected peer after a
// confirmation modal, or clears the exit node when the peer already is
// the active one.
func (ui *dashboardUI) exitNodeSelected() {
	p, ok := ui.selectedPeer()
	if !ok {
		return
	}
	if !p.ExitNode {
		ui.setStatus(fmt.Sprintf("[yellow]%s does not advertise exit-node capability", p.Hostname))
		return
	}
	if !ui.setting.CompareAndSwap(false, true) {
		return
	}

	target := p.Hostname
	text := fmt.Sprintf("Route all outbound traffic through %s?", p.Hostname)
	action := "Set"
	if ui.snap != nil && ui.snap.ActiveExit == p.Hostname {
		target = ""
		text = fmt.Sprintf("Stop using %s as exit node?", p.Hostname)
		action = "Clear"
	}

	snap := ui.snap
	modal := tview.NewModal().
		SetText(text).
		AddButtons([]string{"Cancel", action}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			ui.pages.RemovePage("confirm")
			ui.app.SetFocus(ui.table)
			if buttonLabel != action {
				ui.setting.Store(false)
				return
			}
			asyncRun(ui.app, ui.status, "Applying exit node", func() error {
				return ui.client.SetExitNode(context.Background(), snap, target)
			}, func(err error) {
				ui.setting.Store(false)
				if err != nil {
					ui.setStatus(fmt.Sprintf("[red]Exit node change failed: %v", err))
					return
				}
				ui.ref.Trigger()
			})
		})
	ui.pages.AddPage("confirm", modal, true, true)
}

// showExitNodeList fetches the tool's exit-node listing and shows it
// verbatim in an overlay.
func (ui *dashboardUI) showExitNodeList() {
	if !ui.setting.CompareAndSwap(false, true) {
		return
	}
	var out string
	asyncRun(ui.app, ui.status, "Listing exit nodes", func() error {
		var err error
		out, err = ui.client.ExitNodeList(context.Background())
		return err
	}, func(err error) {
		ui.setting.Store(false)
		if err != nil {
			ui.setStatus(fmt.Sprintf("[red]Exit node list failed: %v", err))
			return
		}
		ui.setStatus("[green]Exit node list loaded")
		ui.showOverlay("Exit nodes", out)
	})
}

// showOverlay displays raw command output in a dismissible full-screen
// page; any key closes it.
func (ui *dashboardUI) showOverlay(title, text string) {
	view := tview.NewTextView().SetDynamicColors(true).SetText(text)
	view.SetBorder(true).SetTitle(" " + title + " (any key to close) ")
	view.SetScrollable(true)
	view.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		ui.pages.RemovePage("overlay")
		ui.app.SetFocus(ui.table)
		return nil
	})
	ui.pages.AddPage("overlay", view, true, true)
	ui.app.SetFocus(view)
}

// runAsync executes work off the UI goroutine and animates a spinner in
// the status view until completion. onDone runs inside QueueUpdateDraw.
func runAsync(app *tview.Application, status *tview.TextView, label string, work func() error, onDone func(err error)) {
	frames := []rune{'|', '/', '-', '\\'}
	stop := make(chan struct{})
	go func() {
		i := 0
		for {
			select {
			case <-stop:
				return
			case <-time.After(120 * time.Millisecond):
				frame := frames[i%len(frames)]
				i++
				app.QueueUpdateDraw(func() {
					status.SetText(fmt.Sprintf("[yellow]%s %c", label, frame))
				})
			}
		}
	}()

	go func() {
		err := work()
		close(stop)
		app.QueueUpdateDraw(func() {
			if onDone != nil {
				onDone(err)
			}
		})
	}()
}

// uiLogWriter routes stray log output into the status view so it never
// corrupts the terminal while the UI owns the screen.
type uiLogWriter struct {
	app  *tview.Application
	view *tview.TextView
}

func (w *uiLogWriter) Write(p []byte) (int, error) {
	msg := string(p)
	w.app.QueueUpdateDraw(func() {
		w.view.SetText("[gray]" + msg)
	})
	return len(p), nil
}
