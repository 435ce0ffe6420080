package ui

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/songbook/internal/docstore"
	"github.com/five82/songbook/internal/editor"
)

// Messages

type tickMsg time.Time

// eventMsg carries one subscription event.
type eventMsg docstore.Event

// streamEndMsg reports that the subscription delivered its last event.
type streamEndMsg struct{}

// writeDoneMsg carries a finished remote write back to the event loop.
type writeDoneMsg editor.Completion

type linkOpenedMsg struct {
	target string
	err    error
}

type copiedMsg struct {
	err error
}

// Collaborators, replaced in tests.
var (
	openURL        = openInBrowser
	writeClipboard = clipboard.WriteAll
)

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func receiveCmd(ctx context.Context, ctrl *editor.Controller) tea.Cmd {
	return func() tea.Msg {
		ev, ok := ctrl.Receive(ctx)
		if !ok {
			return streamEndMsg{}
		}
		return eventMsg(ev)
	}
}

func writeCmd(ctx context.Context, op *editor.Op) tea.Cmd {
	return func() tea.Msg {
		return writeDoneMsg(op.Run(ctx))
	}
}

func openLinkCmd(target string) tea.Cmd {
	return func() tea.Msg {
		return linkOpenedMsg{target: target, err: openURL(target)}
	}
}

func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{err: writeClipboard(text)}
	}
}

func openInBrowser(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", fmt.Sprintf("%q", target))
	default:
		cmd = exec.Command("xdg-open", target)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %s: %w", target, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
