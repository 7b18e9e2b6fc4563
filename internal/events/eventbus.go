package events

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adamidy7424/GeneNFT-Z/internal/logger"
)

// Config holds event bus configuration
type Config struct {
	BufferSize int
	Workers    int
	Dedupe     *DeduplicationConfig
}

// DefaultConfig returns the default event bus configuration
func DefaultConfig() *Config {
	return &Config{
		BufferSize: 1000,
		Workers:    2,
		Dedupe:     DefaultDeduplicationConfig(),
	}
}

// envelope carries exactly one of its fields
type envelope struct {
	status *StatusEvent
	err    ErrorEvent
}

// EventBus provides asynchronous event processing with non-blocking publishing
type EventBus struct {
	events  chan envelope
	workers int

	// stateMu guards closing of the events channel against concurrent sends
	stateMu sync.RWMutex
	closed  bool
	running atomic.Bool
	wg      sync.WaitGroup

	mu              sync.Mutex
	statusConsumers []StatusConsumer
	errorConsumers  []ErrorConsumer

	dedupe *ErrorDeduplicator
	stats  Stats
	logger logger.Logger
}

// New creates an event bus. Workers start with the first registered consumer.
func New(config *Config, log logger.Logger) *EventBus {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if log == nil {
		log = logger.NewDiscardLogger()
	}

	return &EventBus{
		events:  make(chan envelope, config.BufferSize),
		workers: config.Workers,
		dedupe:  NewErrorDeduplicator(config.Dedupe),
		logger:  log.Module("events"),
	}
}

// RegisterConsumer adds a consumer implementing StatusConsumer, ErrorConsumer or both
func (eb *EventBus) RegisterConsumer(consumer any) error {
	if eb == nil {
		return fmt.Errorf("event bus not initialized")
	}

	statusConsumer, isStatus := consumer.(StatusConsumer)
	errorConsumer, isError := consumer.(ErrorConsumer)
	if !isStatus && !isError {
		return fmt.Errorf("consumer %T implements neither StatusConsumer nor ErrorConsumer", consumer)
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	name := consumerName(consumer)
	for _, existing := range eb.statusConsumers {
		if existing.Name() == name {
			return fmt.Errorf("consumer %s already registered", name)
		}
	}
	for _, existing := range eb.errorConsumers {
		if existing.Name() == name {
			return fmt.Errorf("consumer %s already registered", name)
		}
	}

	if isStatus {
		eb.statusConsumers = append(eb.statusConsumers, statusConsumer)
	}
	if isError {
		eb.errorConsumers = append(eb.errorConsumers, errorConsumer)
	}

	eb.logger.Info("registered event consumer",
		logger.String("consumer", name),
		logger.Bool("status", isStatus),
		logger.Bool("errors", isError))

	eb.start()
	return nil
}

func consumerName(consumer any) string {
	if named, ok := consumer.(interface{ Name() string }); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", consumer)
}

// PublishStatus queues a status notification without blocking.
// Returns false if the event was dropped.
func (eb *EventBus) PublishStatus(event StatusEvent) bool {
	if eb == nil {
		return false
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	return eb.enqueue(envelope{status: &event})
}

// TryPublish accepts a StatusEvent or an ErrorEvent. It satisfies the
// errors package's EventPublisher.
func (eb *EventBus) TryPublish(event any) bool {
	if eb == nil {
		return false
	}
	switch e := event.(type) {
	case StatusEvent:
		return eb.PublishStatus(e)
	case *StatusEvent:
		return eb.PublishStatus(*e)
	case ErrorEvent:
		if !eb.dedupe.ShouldProcess(e) {
			atomic.AddUint64(&eb.stats.EventsSuppressed, 1)
			return true
		}
		return eb.enqueue(envelope{err: e})
	default:
		return false
	}
}

func (eb *EventBus) enqueue(env envelope) bool {
	if !eb.running.Load() {
		return false
	}

	eb.stateMu.RLock()
	defer eb.stateMu.RUnlock()
	if eb.closed {
		return false
	}

	select {
	case eb.events <- env:
		atomic.AddUint64(&eb.stats.EventsReceived, 1)
		return true
	default:
		atomic.AddUint64(&eb.stats.EventsDropped, 1)
		eb.logger.Debug("event dropped due to full buffer")
		return false
	}
}

// start launches the workers once; caller holds eb.mu
func (eb *EventBus) start() {
	if eb.running.Swap(true) {
		return
	}

	eb.logger.Debug("starting event bus workers", logger.Int("count", eb.workers))
	for i := range eb.workers {
		eb.wg.Add(1)
		go eb.worker(i)
	}
}

// worker drains the channel until it is closed
func (eb *EventBus) worker(id int) {
	defer eb.wg.Done()

	log := eb.logger.With(logger.Int("worker_id", id))
	for env := range eb.events {
		eb.process(env, log)
	}
}

func (eb *EventBus) process(env envelope, log logger.Logger) {
	eb.mu.Lock()
	statusConsumers := append([]StatusConsumer(nil), eb.statusConsumers...)
	errorConsumers := append([]ErrorConsumer(nil), eb.errorConsumers...)
	eb.mu.Unlock()

	if env.status != nil {
		for _, c := range statusConsumers {
			eb.deliver(c.Name(), log, func() error { return c.ProcessStatus(*env.status) })
		}
		return
	}
	for _, c := range errorConsumers {
		eb.deliver(c.Name(), log, func() error { return c.ProcessError(env.err) })
	}
}

// deliver runs one consumer call, isolating panics
func (eb *EventBus) deliver(name string, log logger.Logger, call func() error) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
			log.Error("consumer panicked",
				logger.String("consumer", name),
				logger.Any("panic", r))
		}
	}()

	if err := call(); err != nil {
		atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
		log.Warn("consumer error",
			logger.String("consumer", name),
			logger.Error(err))
		return
	}
	atomic.AddUint64(&eb.stats.EventsProcessed, 1)
}

// Shutdown stops accepting events, lets workers drain what is queued and
// waits up to timeout for them to finish.
func (eb *EventBus) Shutdown(timeout time.Duration) error {
	if eb == nil {
		return nil
	}

	eb.stateMu.Lock()
	if eb.closed {
		eb.stateMu.Unlock()
		return nil
	}
	eb.closed = true
	close(eb.events)
	eb.stateMu.Unlock()

	eb.dedupe.Stop()

	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		eb.logger.Debug("event bus shutdown complete")
		return nil
	case <-time.After(timeout):
		eb.logger.Warn("event bus shutdown timeout exceeded", logger.Duration("timeout", timeout))
		return fmt.Errorf("event bus shutdown timeout exceeded")
	}
}

// GetStats returns current event bus statistics
func (eb *EventBus) GetStats() Stats {
	if eb == nil {
		return Stats{}
	}
	return Stats{
		EventsReceived:   atomic.LoadUint64(&eb.stats.EventsReceived),
		EventsSuppressed: atomic.LoadUint64(&eb.stats.EventsSuppressed),
		EventsProcessed:  atomic.LoadUint64(&eb.stats.EventsProcessed),
		EventsDropped:    atomic.LoadUint64(&eb.stats.EventsDropped),
		ConsumerErrors:   atomic.LoadUint64(&eb.stats.ConsumerErrors),
	}
}
