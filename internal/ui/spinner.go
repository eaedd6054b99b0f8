package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner is a non-interactive line spinner for short blocking work
type Spinner struct {
	out     io.Writer
	message string
	done    chan struct{}
	stopped sync.WaitGroup
	once    sync.Once
}

// NewSpinner creates a spinner writing to stderr
func NewSpinner(message string) *Spinner {
	return &Spinner{out: os.Stderr, message: message, done: make(chan struct{})}
}

// Start begins the animation
func (s *Spinner) Start() {
	s.stopped.Add(1)
	go func() {
		defer s.stopped.Done()
		style := lipgloss.NewStyle().Foreground(PrimaryColor)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			fmt.Fprintf(s.out, "\r  %s %s", style.Render(spinnerFrames[i%len(spinnerFrames)]), WhiteStyle.Render(s.message))
			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop ends the animation and clears the line. It is safe to call twice.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		close(s.done)
		s.stopped.Wait()
		fmt.Fprint(s.out, "\r\033[K")
	})
}

// StopWith ends the animation and prints a status line
func (s *Spinner) StopWith(kind, message string) {
	s.Stop()
	fmt.Fprintln(s.out, RenderStatus(kind, message))
}

// WithSpinner runs fn while showing a spinner
func WithSpinner(message string, fn func() error) error {
	s := NewSpinner(message)
	s.Start()
	if err := fn(); err != nil {
		s.StopWith("error", err.Error())
		return err
	}
	s.Stop()
	return nil
}
