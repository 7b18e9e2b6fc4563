// Package rpc implements ledger.Ledger over a JSON-RPC 2.0 endpoint that
// fronts the record contract.
package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
	"github.com/adamidy7424/GeneNFT-Z/internal/fhe"
	"github.com/adamidy7424/GeneNFT-Z/internal/httpclient"
	"github.com/adamidy7424/GeneNFT-Z/internal/ledger"
	"github.com/adamidy7424/GeneNFT-Z/internal/logger"
)

// Method names
const (
	MethodAddress             = "genenft_address"
	MethodListRecordKeys      = "genenft_listRecordKeys"
	MethodGetRecord           = "genenft_getRecord"
	MethodGetCiphertextHandle = "genenft_getCiphertextHandle"
	MethodCreateRecord        = "genenft_createRecord"
	MethodSubmitVerification  = "genenft_submitVerification"
	MethodGetTransaction      = "genenft_getTransaction"
)

// Transaction statuses reported by genenft_getTransaction
const (
	TxPending = "pending"
	TxFinal   = "final"
	TxFailed  = "failed"
)

// CodeUserRejected is the provider error code for a declined signature
const CodeUserRejected = 4001

const (
	defaultRateLimit    = 10
	defaultBurst        = 5
	defaultPollInterval = time.Second
	componentName       = "ledger.rpc"
)

// Config configures the client
type Config struct {
	URL          string
	Address      string // contract address; fetched with genenft_address when empty
	Timeout      time.Duration
	RateLimit    float64 // requests per second
	Burst        int
	PollInterval time.Duration
}

// CallObserver receives one observation per RPC call
type CallObserver interface {
	ObserveCall(method, result string, duration time.Duration)
}

// Client implements ledger.Ledger
type Client struct {
	url      string
	address  string
	http     *httpclient.Client
	limiter  *rate.Limiter
	poll     time.Duration
	nextID   atomic.Uint64
	observer CallObserver
	logger   logger.Logger
}

var _ ledger.Ledger = (*Client)(nil)

// New creates a client without contacting the endpoint. Address must be set.
func New(cfg Config, log logger.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.Newf("rpc url is required").
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	httpCfg := httpclient.DefaultConfig()
	httpCfg.DefaultTimeout = cfg.Timeout

	return &Client{
		url:     cfg.URL,
		address: cfg.Address,
		http:    httpclient.New(&httpCfg),
		limiter: rate.NewLimiter(rate.Limit(limit), burst),
		poll:    poll,
		logger:  log.Module("rpc"),
	}, nil
}

// Dial creates a client and resolves the contract address when it is not
// configured.
func Dial(ctx context.Context, cfg Config, log logger.Logger) (*Client, error) {
	c, err := New(cfg, log)
	if err != nil {
		return nil, err
	}
	if c.address == "" {
		if err := c.resolveAddress(ctx); err != nil {
			return nil, err
		}
	}
	c.logger.Info("rpc ledger connected", logger.String("address", c.address))
	return c, nil
}

func (c *Client) resolveAddress(ctx context.Context) error {
	var addr string
	if err := c.call(ctx, MethodAddress, nil, &addr); err != nil {
		return err
	}
	if addr == "" {
		return c.wrap(errors.NewStd("empty contract address"), MethodAddress)
	}
	c.address = addr
	return nil
}

// SetObserver installs a per-call observer, e.g. ledger metrics
func (c *Client) SetObserver(o CallObserver) {
	c.observer = o
}

// HTTPClient exposes the transport for tests
func (c *Client) HTTPClient() *httpclient.Client {
	return c.http
}

// Close releases idle connections
func (c *Client) Close() {
	c.http.Close()
}

func (c *Client) Address() string {
	return c.address
}

func (c *Client) ListRecordKeys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := c.call(ctx, MethodListRecordKeys, []any{}, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

func (c *Client) GetRecord(ctx context.Context, key string) (*ledger.RawRecord, error) {
	var raw ledger.RawRecord
	if err := c.call(ctx, MethodGetRecord, []any{key}, &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

func (c *Client) GetCiphertextHandle(ctx context.Context, key string) (fhe.Handle, error) {
	var h string
	if err := c.call(ctx, MethodGetCiphertextHandle, []any{key}, &h); err != nil {
		return "", err
	}
	return fhe.Handle(h), nil
}

type createRecordParams struct {
	Key            string `json:"key"`
	Name           string `json:"name"`
	From           string `json:"from"`
	EncryptedValue string `json:"encryptedValue"`
	InputProof     string `json:"inputProof"`
	PublicValue1   uint64 `json:"publicValue1"`
	PublicValue2   uint64 `json:"publicValue2"`
	Description    string `json:"description"`
}

func (c *Client) CreateRecord(ctx context.Context, p ledger.CreateParams) (ledger.TxHandle, error) {
	params := createRecordParams{
		Key:            p.Key,
		Name:           p.Name,
		From:           p.From,
		EncryptedValue: string(p.EncryptedValue),
		InputProof:     hex0x(p.InputProof),
		PublicValue1:   p.PublicValue1,
		PublicValue2:   p.PublicValue2,
		Description:    p.Description,
	}
	var tx string
	if err := c.call(ctx, MethodCreateRecord, []any{params}, &tx); err != nil {
		return "", err
	}
	return ledger.TxHandle(tx), nil
}

type submitVerificationParams struct {
	Key         string `json:"key"`
	ClearValues string `json:"clearValues"`
	Proof       string `json:"proof"`
}

func (c *Client) SubmitVerification(ctx context.Context, key string, clearValuesEncoded, proof []byte) (ledger.TxHandle, error) {
	params := submitVerificationParams{
		Key:         key,
		ClearValues: hex0x(clearValuesEncoded),
		Proof:       hex0x(proof),
	}
	var tx string
	if err := c.call(ctx, MethodSubmitVerification, []any{params}, &tx); err != nil {
		return "", err
	}
	return ledger.TxHandle(tx), nil
}

// Transaction is the result of genenft_getTransaction
type Transaction struct {
	Hash   string `json:"hash"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// AwaitFinality polls the transaction until it is final or failed
func (c *Client) AwaitFinality(ctx context.Context, tx ledger.TxHandle) error {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		var t Transaction
		err := c.call(ctx, MethodGetTransaction, []any{string(tx)}, &t)
		switch {
		case err != nil && ctx.Err() == nil:
			c.logger.Debug("transaction poll failed", logger.String("tx", string(tx)), logger.Error(err))
		case err != nil:
			// context ended during the call
		case t.Status == TxFinal:
			return nil
		case t.Status == TxFailed:
			reason := t.Error
			if reason == "" {
				reason = "reverted"
			}
			return c.wrap(fmt.Errorf("%w: %s", ledger.ErrTxFailed, reason), MethodGetTransaction)
		}

		select {
		case <-ctx.Done():
			return errors.New(ctx.Err()).
				Component(componentName).
				Category(errors.CategoryFinality).
				Context("tx", string(tx)).
				Build()
		case <-ticker.C:
		}
	}
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
}

// Error is a JSON-RPC error object
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *Client) call(ctx context.Context, method string, params, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			result := "ok"
			if err != nil {
				result = string(errors.CategoryOf(err))
			}
			c.observer.ObserveCall(method, result, time.Since(start))
		}
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return c.wrap(err, method)
	}

	req := request{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params}
	var resp response
	if err := c.http.PostJSON(ctx, c.url, req, &resp); err != nil {
		return c.wrap(err, method)
	}
	if resp.Error != nil {
		return c.wrap(mapRPCError(resp.Error), method)
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(resp.Result))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return c.wrap(fmt.Errorf("decode %s result: %w", method, err), method)
	}
	return nil
}

// mapRPCError translates provider errors into the ledger sentinels
func mapRPCError(e *Error) error {
	msg := strings.ToLower(e.Message)
	switch {
	case e.Code == CodeUserRejected:
		return fmt.Errorf("%w: %w", ledger.ErrUserRejected, e)
	case strings.Contains(msg, "already verified"):
		return fmt.Errorf("%w: %w", ledger.ErrAlreadyVerified, e)
	case strings.Contains(msg, "record not found"):
		return fmt.Errorf("%w: %w", ledger.ErrRecordNotFound, e)
	default:
		return e
	}
}

func (c *Client) wrap(err error, method string) error {
	category := errors.CategoryLedger
	switch {
	case errors.Is(err, ledger.ErrUserRejected):
		category = errors.CategoryUserRejected
	case errors.Is(err, ledger.ErrRecordNotFound):
		category = errors.CategoryNotFound
	case errors.Is(err, context.DeadlineExceeded):
		category = errors.CategoryTimeout
	case errors.Is(err, context.Canceled):
		category = errors.CategoryCancellation
	}
	return errors.New(err).
		Component(componentName).
		Category(category).
		Context("method", method).
		NetworkContext(c.url, 0).
		Build()
}

func hex0x(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
