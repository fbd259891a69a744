package spinner

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner is an animated status line. Its message can change while it runs.
type Spinner struct {
	mu       sync.Mutex
	message  string
	width    int
	done     chan struct{}
	cleared  chan struct{}
	stopOnce sync.Once
}

// Start displays an animated spinner with the given message on w.
// Call Stop to stop the spinner and clear the line.
func Start(w io.Writer, message string) *Spinner {
	s := &Spinner{
		message: message,
		done:    make(chan struct{}),
		cleared: make(chan struct{}),
	}
	go s.loop(w)
	return s
}

// Set replaces the message shown on the next frame.
func (s *Spinner) Set(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Stop stops the spinner and waits for the line to be cleared. Safe to call
// more than once.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	<-s.cleared
}

func (s *Spinner) loop(w io.Writer) {
	i := 0
	for {
		select {
		case <-s.done:
			fmt.Fprintf(w, "\r%s\r", strings.Repeat(" ", s.width)) //nolint:errcheck
			close(s.cleared)
			return
		case <-time.After(80 * time.Millisecond):
			s.mu.Lock()
			line := frames[i%len(frames)] + " " + s.message
			s.mu.Unlock()
			// pad over a longer previous message
			lw := runewidth.StringWidth(line)
			pad := ""
			if lw < s.width {
				pad = strings.Repeat(" ", s.width-lw)
			}
			if lw > s.width {
				s.width = lw
			}
			fmt.Fprintf(w, "\r%s%s", line, pad) //nolint:errcheck
			i++
		}
	}
}
