package ui

// spinner.go provides a blocking spinner for long-running operations.

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrCancelled is returned when the user aborts a spinner or prompt
var ErrCancelled = errors.New("cancelled")

// Interactive reports whether stdout is a terminal.
// Spinners and pickers are skipped when output is piped.
func Interactive() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// actionDoneMsg signals the action completed
type actionDoneMsg struct{}

// blockingSpinnerModel runs a spinner while an action executes
type blockingSpinnerModel struct {
	spinner   spinner.Model
	title     string
	done      <-chan struct{}
	cancel    context.CancelFunc
	finished  bool
	cancelled bool
}

// RunWithSpinner executes an action while displaying a spinner and returns the action's error.
// The action gets a context that is cancelled when the user presses ctrl+c, since the
// terminal is in raw mode and SIGINT never reaches the process. It always returns after
// the action does. Without a terminal the action simply runs.
//
//	var records []models.CDXRecord
//	err := RunWithSpinner(ctx, "Fetching captures...", func(ctx context.Context) (err error) {
//	    records, err = source.FetchCDX(ctx, target, 0)
//	    return err
//	})
func RunWithSpinner(ctx context.Context, title string, action func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !Interactive() {
		return action(ctx)
	}

	var actionErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		actionErr = action(ctx)
	}()

	m := newBlockingSpinnerModel(title, done, cancel)
	finalModel, err := tea.NewProgram(m).Run()
	if err != nil {
		cancel()
		<-done
		return fmt.Errorf("spinner program error: %w", err)
	}

	<-done
	if finalModel.(blockingSpinnerModel).cancelled {
		return ErrCancelled
	}
	return actionErr
}

func newBlockingSpinnerModel(title string, done <-chan struct{}, cancel context.CancelFunc) blockingSpinnerModel {
	return blockingSpinnerModel{
		spinner: NewAppSpinner(),
		title:   title,
		done:    done,
		cancel:  cancel,
	}
}

func (m blockingSpinnerModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.waitForAction(),
	)
}

func (m blockingSpinnerModel) waitForAction() tea.Cmd {
	return func() tea.Msg {
		<-m.done
		return actionDoneMsg{}
	}
}

func (m blockingSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case actionDoneMsg:
		m.finished = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancelled = true
			m.cancel()
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m blockingSpinnerModel) View() string {
	if m.finished || m.cancelled {
		return ""
	}
	return fmt.Sprintf("%s %s", m.spinner.View(), RenderNormal(m.title))
}
