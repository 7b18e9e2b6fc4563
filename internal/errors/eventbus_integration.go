// Package errors - event bus integration
package errors

import (
	"sync/atomic"
)

// EventPublisher is an interface for publishing error events.
// It lets the errors package publish without importing the events package.
type EventPublisher interface {
	TryPublish(event any) bool
}

// Global event publisher (set by the events package)
var globalEventPublisher atomic.Pointer[EventPublisher]

// SetEventPublisher sets the global event publisher
func SetEventPublisher(publisher EventPublisher) {
	if publisher == nil {
		globalEventPublisher.Store(nil)
	} else {
		globalEventPublisher.Store(&publisher)
	}
	updateActiveReporting()
}

// ClearEventPublisher removes the global event publisher
func ClearEventPublisher() {
	SetEventPublisher(nil)
}

func updateActiveReporting() {
	active := globalEventPublisher.Load() != nil
	if p := globalTelemetryReporter.Load(); p != nil && (*p).IsEnabled() {
		active = true
	}
	hasActiveReporting.Store(active)
}

// reportToTelemetry publishes to the event bus when present and otherwise
// reports synchronously.
func reportToTelemetry(ee *EnhancedError) {
	if !hasActiveReporting.Load() {
		return
	}

	if publisherPtr := globalEventPublisher.Load(); publisherPtr != nil {
		if (*publisherPtr).TryPublish(ee) {
			return
		}
	}

	reportToTelemetryDirect(ee)
}
