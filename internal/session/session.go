// Package session gates the record workflows on a connected wallet and an
// initialized encryption service.
package session

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
	"github.com/adamidy7424/GeneNFT-Z/internal/events"
	"github.com/adamidy7424/GeneNFT-Z/internal/fhe"
	"github.com/adamidy7424/GeneNFT-Z/internal/logger"
)

// Context is an explicit snapshot of the session passed to each workflow
type Context struct {
	Account     string `json:"account"`
	Contract    string `json:"contract"`
	Connected   bool   `json:"connected"`
	Initialized bool   `json:"initialized"`
}

// Ready reports whether workflows may run
func (c Context) Ready() bool {
	return c.Connected && c.Initialized && c.Account != ""
}

// Coordinator owns session readiness. It is safe for concurrent use.
type Coordinator struct {
	wallet   Wallet
	service  fhe.Initializer
	contract string
	status   events.StatusPublisher
	logger   logger.Logger

	group singleflight.Group

	mu          sync.RWMutex
	initialized bool
	// generation changes on every reset so an initialization that
	// completes after a disconnect does not mark the session ready
	generation uint64
}

// NewCoordinator creates a coordinator for the ledger contract at contract.
// status may be nil.
func NewCoordinator(wallet Wallet, service fhe.Initializer, contract string, status events.StatusPublisher, log logger.Logger) *Coordinator {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return &Coordinator{
		wallet:   wallet,
		service:  service,
		contract: contract,
		status:   status,
		logger:   log.Module("session"),
	}
}

// Initialize prepares the encryption service. Concurrent callers share one
// attempt; an initialized session returns immediately. A caller whose ctx
// ends stops waiting without canceling the attempt for the others.
func (c *Coordinator) Initialize(ctx context.Context) error {
	if !c.wallet.Connected() {
		return errors.New(errors.NewStd("wallet not connected")).
			Component("session").
			Category(errors.CategoryNotReady).
			Build()
	}

	c.mu.RLock()
	initialized, gen := c.initialized, c.generation
	c.mu.RUnlock()
	if initialized {
		return nil
	}

	ch := c.group.DoChan("initialize", func() (any, error) {
		c.logger.Info("initializing encryption service", logger.String("contract", c.contract))
		if err := c.service.Initialize(context.WithoutCancel(ctx)); err != nil {
			wrapped := errors.New(err).
				Component("session").
				Category(errors.CategoryService).
				Context("operation", "fhe_initialize").
				Build()
			c.logger.Error("encryption service initialization failed", logger.Error(err))
			c.publish(events.Failure(events.OperationInitialize, "", "FHE initialization failed", wrapped))
			return nil, wrapped
		}
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return errors.New(ctx.Err()).
			Component("session").
			Category(errors.CategoryCancellation).
			Context("operation", "fhe_initialize").
			Build()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen || !c.wallet.Connected() {
		return errors.New(errors.NewStd("session reset during initialization")).
			Component("session").
			Category(errors.CategoryNotReady).
			Build()
	}
	if !c.initialized {
		c.initialized = true
		c.logger.Info("session ready", logger.String("account", c.wallet.Account()))
		c.publish(events.Success(events.OperationInitialize, "", "FHE encryption ready"))
	}
	return nil
}

// Ready reports whether the current snapshot is ready
func (c *Coordinator) Ready() bool {
	return c.Context().Ready()
}

// Context returns a snapshot of the session
func (c *Coordinator) Context() Context {
	c.mu.RLock()
	initialized := c.initialized
	c.mu.RUnlock()
	connected := c.wallet.Connected()
	return Context{
		Account:     c.wallet.Account(),
		Contract:    c.contract,
		Connected:   connected,
		Initialized: initialized && connected,
	}
}

// Contract returns the ledger contract address
func (c *Coordinator) Contract() string {
	return c.contract
}

// WalletChanged must be called when the wallet connects or disconnects.
// A disconnect resets readiness.
func (c *Coordinator) WalletChanged(connected bool) {
	if connected {
		c.logger.Debug("wallet connected", logger.String("account", c.wallet.Account()))
		return
	}
	c.reset("wallet disconnected")
}

// Close tears the session down; Initialize must run again before use
func (c *Coordinator) Close() {
	c.reset("session closed")
}

func (c *Coordinator) reset(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	if c.initialized {
		c.initialized = false
		c.logger.Info("session reset", logger.String("reason", reason))
	}
}

func (c *Coordinator) publish(e events.StatusEvent) {
	if c.status != nil {
		c.status.PublishStatus(e)
	}
}
