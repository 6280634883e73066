package ui

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"

	"github.com/Joserraldo/diabetes/internal/domain"
)

// Run drives the terminal UI until the user quits. cancel stops the session
// engine; rec may be nil.
func Run(ctx context.Context, mode Mode, events <-chan domain.Event, actions chan<- domain.Action, meta Meta, cancel func(), rec Recorder) error {
	m := NewModel(mode, events, actions, meta, cancel)
	m.recorder = rec

	// Seed a size so the first frame renders even if WindowSizeMsg never
	// arrives.
	if w, h, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 && h > 0 {
		m.width, m.height = w, h
	} else {
		m.width, m.height = 80, 24
	}
	m.reflow()

	p := tea.NewProgram(m, tea.WithAltScreen())

	// A signal on the parent context ends the program like ctrl+c would.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			p.Quit()
		case <-stop:
		}
	}()

	_, err := p.Run()
	return err
}
