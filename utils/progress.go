package utils

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
)

// Cooldown sleeps between batches. With Display set it shows a terminal
// spinner so an operator can see the run is throttling, not stuck.
type Cooldown struct {
	Display bool
	Writer  io.Writer
}

// Sleep blocks for d or until ctx is done. The spinner suffix counts the
// remaining time down once a second.
func (c *Cooldown) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	end := time.Now().Add(d)

	var (
		s     *spinner.Spinner
		ticks <-chan time.Time
	)
	if c.Display {
		s = spinner.New(spinner.CharSets[11], 100*time.Millisecond)
		s.Writer = c.Writer
		if s.Writer == nil {
			s.Writer = os.Stderr
		}
		s.HideCursor = true
		s.Suffix = cooldownSuffix(d)
		s.Start()
		defer s.Stop()

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		ticks = ticker.C
	}

	t := time.NewTimer(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		case <-ticks:
			s.Lock()
			s.Suffix = cooldownSuffix(time.Until(end))
			s.Unlock()
		}
	}
}

func cooldownSuffix(remaining time.Duration) string {
	return fmt.Sprintf(" cooling down, %s left", max(remaining, 0).Round(time.Second))
}
