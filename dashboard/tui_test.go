package main

import (
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/atotto/clipboard"
	"github.com/rivo/tview"

	"tailview/common"
)

func testSnapshot() *common.Snapshot {
	return &common.Snapshot{
		LocalIP:      "100.64.0.1",
		BackendState: "Running",
		Peers: []common.Peer{
			{Hostname: "phone", IP: "100.64.0.3", Online: false, ExitNode: false, OS: "android"},
			{Hostname: "relay", IP: "100.64.0.2", Online: true, ExitNode: true, OS: "linux"},
		},
		ExitNodes: []string{"relay"},
		Netcheck:  "Report: ok",
		When:      time.Now(),
	}
}

func TestPeerCellsIndicators(t *testing.T) {
	online := peerCells(common.Peer{Hostname: "a", IP: "1", Online: true, ExitNode: true, OS: "linux"})
	if !strings.Contains(online[2], "online") || strings.Contains(online[2], "offline") {
		t.Fatalf("online cell: %q", online[2])
	}
	if !strings.Contains(online[3], "yes") {
		t.Fatalf("exit cell: %q", online[3])
	}

	offline := peerCells(common.Peer{Hostname: "b", IP: "2", Online: false, OS: "android"})
	if !strings.Contains(offline[2], "offline") {
		t.Fatalf("offline cell: %q", offline[2])
	}
	if offline[3] != "" {
		t.Fatalf("non-exit peer must render empty exit cell: %q", offline[3])
	}

	active := peerCells(common.Peer{Hostname: "c", IP: "3", Online: true, ExitNode: true, ExitNodeActive: true})
	if !strings.Contains(active[3], "in use") {
		t.Fatalf("active exit cell: %q", active[3])
	}
}

func TestApplyRendersPeerTable(t *testing.T) {
	ui := newDashboardUI(newClient(testConfig(), &fakeRunner{}))
	ui.apply(testSnapshot())

	// Header row plus exactly one row per peer.
	if got := ui.table.GetRowCount(); got != 3 {
		t.Fatalf("row count: %d", got)
	}
	if got := ui.table.GetCell(1, 0).Text; got != "phone" {
		t.Fatalf("row 1 hostname: %q", got)
	}
	if got := ui.table.GetCell(2, 0).Text; got != "relay" {
		t.Fatalf("row 2 hostname: %q", got)
	}
	if got := ui.table.GetCell(1, 2).Text; !strings.Contains(got, "offline") {
		t.Fatalf("phone online cell: %q", got)
	}
	if got := ui.table.GetCell(2, 3).Text; !strings.Contains(got, "yes") {
		t.Fatalf("relay exit cell: %q", got)
	}
}

func TestApplyReplacesTableWholesale(t *testing.T) {
	ui := newDashboardUI(newClient(testConfig(), &fakeRunner{}))
	ui.apply(testSnapshot())

	next := &common.Snapshot{
		LocalIP: "100.64.0.1",
		Peers:   []common.Peer{{Hostname: "desk", IP: "100.64.0.4", Online: true, OS: "windows"}},
		When:    time.Now(),
	}
	ui.apply(next)
	if got := ui.table.GetRowCount(); got != 2 {
		t.Fatalf("vanished peers still rendered, rows: %d", got)
	}
	if got := ui.table.GetCell(1, 0).Text; got != "desk" {
		t.Fatalf("hostname: %q", got)
	}
}

func TestApplyErrorKeepsDisplayedData(t *testing.T) {
	ui := newDashboardUI(newClient(testConfig(), &fakeRunner{}))
	ui.apply(testSnapshot())

	ui.applyError(&common.CommandError{Name: "tailscale", Err: exec.ErrNotFound})

	if got := ui.table.GetRowCount(); got != 3 {
		t.Fatalf("error blanked the table, rows: %d", got)
	}
	if ui.banner == "" {
		t.Fatalf("missing binary must raise a persistent banner")
	}
	if !strings.Contains(ui.summary.GetText(true), "not found") {
		t.Fatalf("banner not in summary: %q", ui.summary.GetText(true))
	}

	// A later successful cycle clears the banner.
	ui.apply(testSnapshot())
	if ui.banner != "" {
		t.Fatalf("banner not cleared after recovery")
	}
}

func TestStartPingSingleOutstanding(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"ping": "pong from relay (100.64.0.2) via DERP(fra)\n",
	}}
	ui := newDashboardUI(newClient(testConfig(), runner))
	ui.apply(testSnapshot())

	// Run the work synchronously but hold back completion so the ping
	// stays outstanding until the test resolves it.
	var pendingDone func()
	asyncRun = func(app *tview.Application, status *tview.TextView, label string, work func() error, onDone func(err error)) {
		err := work()
		pendingDone = func() { onDone(err) }
	}
	t.Cleanup(func() { asyncRun = runAsync })

	ui.startPing("100.64.0.2")
	if got := runner.callCount("ping"); got != 1 {
		t.Fatalf("ping invocations: %d", got)
	}

	// First ping still outstanding: further triggers are no-ops.
	ui.startPing("100.64.0.2")
	ui.startPing("100.64.0.3")
	if got := runner.callCount("ping"); got != 1 {
		t.Fatalf("concurrent ping dispatched, invocations: %d", got)
	}

	pendingDone()
	if ui.pinging.Load() {
		t.Fatalf("gate not released after completion")
	}
	ui.startPing("100.64.0.2")
	if got := runner.callCount("ping"); got != 2 {
		t.Fatalf("ping after completion not dispatched, invocations: %d", got)
	}
}

func TestStartPingUnknownTargetReleasesGate(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{}}
	ui := newDashboardUI(newClient(testConfig(), runner))
	ui.apply(testSnapshot())

	asyncRun = func(app *tview.Application, status *tview.TextView, label string, work func() error, onDone func(err error)) {
		onDone(work())
	}
	t.Cleanup(func() { asyncRun = runAsync })

	ui.startPing("100.64.0.99")
	if got := runner.callCount("ping"); got != 0 {
		t.Fatalf("rejected target reached the runner: %d", got)
	}
	if ui.pinging.Load() {
		t.Fatalf("gate stuck after rejection")
	}
}

func TestCopySelectedWritesPeerIP(t *testing.T) {
	ui := newDashboardUI(newClient(testConfig(), &fakeRunner{}))
	ui.apply(testSnapshot())
	ui.clipOK = true

	var captured string
	clipWrite = func(s string) error {
		captured = s
		return nil
	}
	t.Cleanup(func() { clipWrite = clipboard.WriteAll })

	ui.table.Select(2, 0)
	ui.copySelected()
	if captured != "100.64.0.2" {
		t.Fatalf("clipboard got %q", captured)
	}
}

func TestCopySelectedDegradesWhenClipboardFails(t *testing.T) {
	ui := newDashboardUI(newClient(testConfig(), &fakeRunner{}))
	ui.apply(testSnapshot())
	ui.clipOK = true

	calls := 0
	clipWrite = func(s string) error {
		calls++
		return errors.New("no clipboard utilities available")
	}
	t.Cleanup(func() { clipWrite = clipboard.WriteAll })

	ui.table.Select(1, 0)
	ui.copySelected()
	if ui.clipOK {
		t.Fatalf("clipboard feature not disabled after failure")
	}
	ui.copySelected()
	if calls != 1 {
		t.Fatalf("disabled feature still writing, calls: %d", calls)
	}
}
