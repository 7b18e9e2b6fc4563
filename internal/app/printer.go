package app

import (
	"fmt"
	"io"
	"sync"

	"github.com/adamidy7424/GeneNFT-Z/internal/events"
)

// StatusWriter prints status events as one line each, the CLI's stand-in
// for toasts
type StatusWriter struct {
	mu sync.Mutex
	w  io.Writer
}

var _ events.StatusPublisher = (*StatusWriter)(nil)

// NewStatusWriter prints to w
func NewStatusWriter(w io.Writer) *StatusWriter {
	return &StatusWriter{w: w}
}

// PublishStatus implements events.StatusPublisher
func (s *StatusWriter) PublishStatus(e events.StatusEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	marker := "…"
	switch e.Status {
	case events.StatusSuccess:
		marker = "✓"
	case events.StatusError:
		marker = "✗"
	}
	_, err := fmt.Fprintf(s.w, "%s %s\n", marker, e.Message)
	return err == nil
}
