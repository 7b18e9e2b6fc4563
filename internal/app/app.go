// Package app wires the configured backends, the status bus and the record
// workflows into one runtime shared by the CLI and the HTTP server.
package app

import (
	"context"
	"time"

	"github.com/adamidy7424/GeneNFT-Z/internal/conf"
	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
	"github.com/adamidy7424/GeneNFT-Z/internal/events"
	"github.com/adamidy7424/GeneNFT-Z/internal/fhe"
	fhedevnet "github.com/adamidy7424/GeneNFT-Z/internal/fhe/devnet"
	"github.com/adamidy7424/GeneNFT-Z/internal/fhe/relayer"
	"github.com/adamidy7424/GeneNFT-Z/internal/ledger"
	"github.com/adamidy7424/GeneNFT-Z/internal/ledger/devnet"
	"github.com/adamidy7424/GeneNFT-Z/internal/ledger/rpc"
	"github.com/adamidy7424/GeneNFT-Z/internal/logger"
	"github.com/adamidy7424/GeneNFT-Z/internal/mqtt"
	"github.com/adamidy7424/GeneNFT-Z/internal/notification"
	"github.com/adamidy7424/GeneNFT-Z/internal/observability"
	"github.com/adamidy7424/GeneNFT-Z/internal/records"
	"github.com/adamidy7424/GeneNFT-Z/internal/session"
	"github.com/adamidy7424/GeneNFT-Z/internal/telemetry"
	"github.com/adamidy7424/GeneNFT-Z/internal/workflow"
)

const (
	busShutdownTimeout = 5 * time.Second
	notifyTimeout      = 10 * time.Second
	telemetryFlush     = 2 * time.Second
)

// App holds every wired component. Close releases them in reverse order.
type App struct {
	Settings  *conf.Settings
	Bus       *events.EventBus
	Metrics   *observability.Metrics
	Ledger    ledger.Ledger
	FHE       fhe.Service
	Wallet    *session.StaticWallet
	Session   *session.Coordinator
	Records   *records.Normalizer
	Estimates *records.EstimateCache
	Creator   *workflow.Creator
	Verifier  *workflow.Verifier

	logger  logger.Logger
	closers []func() error
}

// Option customizes New
type Option func(*options)

type options struct {
	status  events.StatusPublisher
	release string
	logger  logger.Logger
}

// WithStatusPrinter also delivers status events to p, synchronously
func WithStatusPrinter(p events.StatusPublisher) Option {
	return func(o *options) {
		o.status = p
	}
}

// WithRelease sets the release reported to Sentry
func WithRelease(release string) Option {
	return func(o *options) {
		o.release = release
	}
}

// WithLogger overrides the global logger
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New builds the runtime from settings. On error everything opened so far
// is closed.
func New(ctx context.Context, settings *conf.Settings, opts ...Option) (*App, error) {
	o := options{release: "dev"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Global().Module("app")
	}

	a := &App{Settings: settings, logger: o.logger}
	if err := a.build(ctx, o); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, o options) (err error) {
	settings := a.Settings
	if err := telemetry.InitSentry(settings, o.release); err != nil {
		return err
	}
	a.onClose(func() error {
		telemetry.Flush(telemetryFlush)
		return nil
	})

	if a.Metrics, err = observability.NewMetrics(); err != nil {
		return errors.New(err).Component("app").Category(errors.CategoryConfiguration).Build()
	}

	if err := a.setupBus(ctx); err != nil {
		return err
	}

	gateway, err := a.setupFHE()
	if err != nil {
		return err
	}
	if err := a.setupLedger(ctx, gateway); err != nil {
		return err
	}

	var status events.StatusPublisher = a.Bus
	if o.status != nil {
		status = events.Fanout{a.Bus, o.status}
	}

	a.Wallet = session.NewStaticWallet(settings.Wallet.Account)
	a.Session = session.NewCoordinator(a.Wallet, a.FHE, a.Ledger.Address(), status, a.logger)
	a.onClose(func() error {
		a.Session.Close()
		return nil
	})

	a.Estimates = records.NewEstimateCache(settings.Records.EstimateTTL)
	a.Records = records.NewNormalizer(a.Ledger,
		records.WithConcurrency(settings.Records.FetchConcurrency),
		records.WithMetrics(a.Metrics.Records),
		records.WithStatus(status),
		records.WithLogger(a.logger))

	wfOpts := []workflow.Option{
		workflow.WithStatus(status),
		workflow.WithMetrics(a.Metrics.Workflow),
		workflow.WithLogger(a.logger),
		workflow.WithFinalityTimeout(settings.Ledger.FinalityTimeout),
		workflow.WithRetryPolicy(RetryPolicy(settings.Workflow.Retry)),
	}
	a.Creator = workflow.NewCreator(a.FHE, a.Ledger, a.Records, wfOpts...)
	a.Verifier = workflow.NewVerifier(a.Ledger, a.FHE, a.Records, a.Estimates, wfOpts...)

	return nil
}

// RetryPolicy converts the configured retry settings
func RetryPolicy(s conf.RetrySettings) workflow.RetryPolicy {
	p := workflow.DefaultRetryPolicy()
	p.MaxRetries = s.MaxRetries
	if s.InitialDelay > 0 {
		p.InitialDelay = s.InitialDelay
	}
	if s.MaxDelay > 0 {
		p.MaxDelay = s.MaxDelay
	}
	if s.Multiplier > 0 {
		p.Multiplier = s.Multiplier
	}
	return p
}

// SessionContext initializes the session if needed and returns a snapshot
func (a *App) SessionContext(ctx context.Context) (session.Context, error) {
	if err := a.Session.Initialize(ctx); err != nil {
		return session.Context{}, err
	}
	return a.Session.Context(), nil
}

func (a *App) setupBus(ctx context.Context) error {
	a.Bus = events.New(events.DefaultConfig(), a.logger)
	a.onClose(func() error {
		events.InitializeErrorsIntegration(nil)
		return a.Bus.Shutdown(busShutdownTimeout)
	})

	consumers := []any{events.NewLogConsumer(a.logger)}

	if telemetry.IsInitialized() {
		consumers = append(consumers, telemetry.NewErrorConsumer(errors.GetTelemetryReporter()))
	}

	if s := a.Settings.MQTT; s.Enabled {
		client, err := mqtt.NewClient(mqtt.Config{
			Broker:   s.Broker,
			ClientID: s.ClientID,
			Username: s.Username,
			Password: s.Password,
			Topic:    s.Topic,
			QoS:      s.QoS,
			Retain:   s.Retain,
		}, a.Metrics.MQTT, a.logger)
		if err != nil {
			return err
		}
		if err := client.Connect(ctx); err != nil {
			// Status publishing is best effort; paho keeps reconnecting
			a.logger.Warn("mqtt connect failed", logger.Error(err))
		}
		a.onClose(func() error {
			client.Disconnect()
			return nil
		})
		consumers = append(consumers, mqtt.NewStatusConsumer(client, s.Topic, 0))
	}

	if urls := a.Settings.Notify.URLs; len(urls) > 0 {
		provider, err := notification.NewShoutrrrProvider(urls, notifyTimeout)
		if err != nil {
			return err
		}
		consumers = append(consumers, notification.NewStatusConsumer(provider))
	}

	for _, c := range consumers {
		if err := a.Bus.RegisterConsumer(c); err != nil {
			return errors.New(err).Component("app").Category(errors.CategoryBroadcast).Build()
		}
	}
	events.InitializeErrorsIntegration(a.Bus)
	return nil
}

// setupFHE returns the devnet gateway as well when that backend is selected,
// so the devnet ledger can check its proofs
func (a *App) setupFHE() (*fhedevnet.Gateway, error) {
	s := a.Settings.FHE
	switch s.Backend {
	case conf.FHERelayer:
		client, err := relayer.New(relayer.Config{
			URL:     s.Relayer.URL,
			APIKey:  s.Relayer.APIKey,
			Timeout: s.Relayer.Timeout,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		a.onClose(func() error {
			client.Close()
			return nil
		})
		a.FHE = client
		return nil, nil
	default:
		gw, err := fhedevnet.NewGateway(s.Devnet.Key)
		if err != nil {
			return nil, err
		}
		a.FHE = gw
		return gw, nil
	}
}

func (a *App) setupLedger(ctx context.Context, gateway *fhedevnet.Gateway) error {
	s := a.Settings.Ledger
	switch s.Backend {
	case conf.LedgerRPC:
		client, err := rpc.Dial(ctx, rpc.Config{
			URL:          s.RPC.URL,
			Address:      s.ContractAddress,
			Timeout:      s.RPC.Timeout,
			RateLimit:    s.RPC.RateLimit,
			Burst:        s.RPC.Burst,
			PollInterval: s.RPC.PollInterval,
		}, a.logger)
		if err != nil {
			return err
		}
		client.SetObserver(a.Metrics.Ledger)
		a.onClose(func() error {
			client.Close()
			return nil
		})
		a.Ledger = client
	default:
		var checker devnet.ProofChecker
		if gateway != nil {
			checker = gateway
		}
		l, err := devnet.Open(devnet.Config{
			Driver:    s.Devnet.Driver,
			Path:      s.Devnet.Path,
			DSN:       s.Devnet.DSN,
			Address:   s.ContractAddress,
			BlockTime: s.Devnet.BlockTime,
		}, checker, a.logger)
		if err != nil {
			return err
		}
		a.onClose(l.Close)
		a.Ledger = l
	}
	return nil
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases every component, newest first, and joins their errors
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
