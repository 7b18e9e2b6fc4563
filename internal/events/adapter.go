package events

import (
	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
)

// InitializeErrorsIntegration makes the errors package publish enhanced
// errors to eb. Passing nil detaches it.
func InitializeErrorsIntegration(eb *EventBus) {
	if eb == nil {
		errors.ClearEventPublisher()
		return
	}
	errors.SetEventPublisher(eb)
}

// Fanout publishes to several status publishers; handy when a CLI command
// wants both the bus and a local printer.
type Fanout []StatusPublisher

// PublishStatus reports whether at least one publisher accepted the event
func (f Fanout) PublishStatus(event StatusEvent) bool {
	accepted := false
	for _, p := range f {
		if p != nil && p.PublishStatus(event) {
			accepted = true
		}
	}
	return accepted
}
