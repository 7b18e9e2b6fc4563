// Package records loads the ledger's genetic records into an immutable,
// atomically replaced in-memory set.
package records

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
	"github.com/adamidy7424/GeneNFT-Z/internal/events"
	"github.com/adamidy7424/GeneNFT-Z/internal/genetic"
	"github.com/adamidy7424/GeneNFT-Z/internal/ledger"
	"github.com/adamidy7424/GeneNFT-Z/internal/logger"
)

// DefaultFetchConcurrency bounds parallel GetRecord calls
const DefaultFetchConcurrency = 4

// MessageLoadFailed is the status message of a failed key listing
const MessageLoadFailed = "Failed to load data"

// Metrics receives refresh observations; observability.RecordMetrics implements it
type Metrics interface {
	SetRecordsLoaded(n int)
	IncFetchFailures()
	ObserveRefresh(d time.Duration, err error)
}

// Normalizer is safe for concurrent use
type Normalizer struct {
	reader      ledger.Reader
	concurrency int
	metrics     Metrics
	status      events.StatusPublisher
	logger      logger.Logger
	now         func() time.Time

	current atomic.Pointer[Set]
	started atomic.Uint64

	// publishMu orders publication so an older refresh cannot replace a newer set
	publishMu sync.Mutex
}

// Option configures a Normalizer
type Option func(*Normalizer)

// WithConcurrency sets the fetch concurrency
func WithConcurrency(limit int) Option {
	return func(n *Normalizer) {
		if limit > 0 {
			n.concurrency = limit
		}
	}
}

// WithMetrics installs refresh metrics
func WithMetrics(m Metrics) Option {
	return func(n *Normalizer) { n.metrics = m }
}

// WithStatus publishes a refresh failure event when the key listing fails
func WithStatus(p events.StatusPublisher) Option {
	return func(n *Normalizer) { n.status = p }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(n *Normalizer) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// NewNormalizer creates a normalizer reading from r
func NewNormalizer(r ledger.Reader, opts ...Option) *Normalizer {
	n := &Normalizer{
		reader:      r,
		concurrency: DefaultFetchConcurrency,
		logger:      logger.NewDiscardLogger(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.Module("records")
	n.current.Store(emptySet)
	return n
}

// Current returns the published set, empty before the first refresh
func (n *Normalizer) Current() *Set {
	return n.current.Load()
}

// Refresh reloads every record. Per-key failures are logged and skipped.
// A failed key listing leaves the previous set in place and is published
// as a refresh failure. When a newer
// refresh has already published, this one's result is discarded and the
// newer set returned.
func (n *Normalizer) Refresh(ctx context.Context) (set *Set, err error) {
	seq := n.started.Add(1)
	start := n.now()
	defer func() {
		if n.metrics != nil {
			n.metrics.ObserveRefresh(n.now().Sub(start), err)
		}
	}()

	keys, err := n.reader.ListRecordKeys(ctx)
	if err != nil {
		n.logger.Warn("failed to list record keys", logger.Error(err))
		err = errors.New(err).
			Component("records").
			Category(errors.CategoryLedger).
			Context("operation", "list_record_keys").
			Build()
		if n.status != nil {
			e := events.Failure(events.OperationRefresh, "", MessageLoadFailed, err)
			n.status.PublishStatus(e.WithTrace(logger.TraceIDFromContext(ctx)))
		}
		return nil, err
	}

	fetched := make([]*genetic.Record, len(keys))
	var g errgroup.Group
	g.SetLimit(n.concurrency)
	for i, key := range keys {
		g.Go(func() error {
			raw, err := n.reader.GetRecord(ctx, key)
			if err != nil {
				n.logger.Warn("skipping record",
					logger.String("record_key", key),
					logger.Error(err))
				if n.metrics != nil {
					n.metrics.IncFetchFailures()
				}
				return nil
			}
			r := Normalize(key, raw, n.now())
			fetched[i] = &r
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.New(err).
			Component("records").
			Category(errors.CategoryCancellation).
			Build()
	}

	out := make([]genetic.Record, 0, len(keys))
	for _, r := range fetched {
		if r != nil {
			out = append(out, *r)
		}
	}
	next := newSet(out, seq, n.now())

	n.publishMu.Lock()
	defer n.publishMu.Unlock()
	if cur := n.current.Load(); cur.seq > seq {
		n.logger.Debug("discarding stale refresh",
			logger.Uint64("seq", seq),
			logger.Uint64("published_seq", cur.seq))
		return cur, nil
	}
	n.current.Store(next)
	if n.metrics != nil {
		n.metrics.SetRecordsLoaded(next.Len())
	}

	n.logger.Debug("records refreshed",
		logger.Int("records", next.Len()),
		logger.Int("skipped", len(keys)-next.Len()),
		logger.Uint64("seq", seq))
	return next, nil
}

// Fetch reads and normalizes one record directly from the ledger without
// touching the published set.
func (n *Normalizer) Fetch(ctx context.Context, key string) (genetic.Record, error) {
	raw, err := n.reader.GetRecord(ctx, key)
	if err != nil {
		return genetic.Record{}, ledger.Classify(err, "get_record")
	}
	return Normalize(key, raw, n.now()), nil
}
