// Package relayer talks to a remote encryption relayer over HTTP.
package relayer

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
	"github.com/adamidy7424/GeneNFT-Z/internal/fhe"
	"github.com/adamidy7424/GeneNFT-Z/internal/httpclient"
	"github.com/adamidy7424/GeneNFT-Z/internal/logger"
)

const (
	pathKeysInit     = "/v1/keys/init"
	pathInputProof   = "/v1/input-proof"
	pathPublicDecrypt = "/v1/public-decrypt"

	// encryptedBits is the width of the encrypted integer type
	encryptedBits = 64
)

// Config configures the relayer client
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Client implements fhe.Service against a relayer
type Client struct {
	baseURL     string
	http        *httpclient.Client
	initialized atomic.Bool
	logger      logger.Logger
}

var _ fhe.Service = (*Client)(nil)

// New creates a relayer client. No request is made until Initialize.
func New(cfg Config, log logger.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New(errors.NewStd("relayer url is required")).
			Component("fhe.relayer").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if log == nil {
		log = logger.NewDiscardLogger()
	}

	httpCfg := httpclient.DefaultConfig()
	httpCfg.DefaultTimeout = cfg.Timeout
	if cfg.APIKey != "" {
		httpCfg.Headers = map[string]string{"X-Api-Key": cfg.APIKey}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    httpclient.New(&httpCfg),
		logger:  log.Module("fhe.relayer"),
	}, nil
}

// HTTPClient exposes the transport for tests
func (c *Client) HTTPClient() *httpclient.Client {
	return c.http
}

// Close releases idle connections
func (c *Client) Close() {
	c.http.Close()
}

type initResponse struct {
	KeyID string `json:"key_id"`
}

// Initialize fetches the relayer's public key material
func (c *Client) Initialize(ctx context.Context) error {
	var resp initResponse
	if err := c.http.PostJSON(ctx, c.baseURL+pathKeysInit, struct{}{}, &resp); err != nil {
		return c.serviceError(err, "keys_init")
	}
	c.initialized.Store(true)
	c.logger.Info("relayer initialized", logger.String("key_id", resp.KeyID))
	return nil
}

type inputProofRequest struct {
	Contract string   `json:"contract"`
	Account  string   `json:"account"`
	Bits     int      `json:"bits"`
	Values   []string `json:"values"`
}

type inputProofResponse struct {
	Handles    []string `json:"handles"`
	InputProof hexBytes `json:"input_proof"`
}

// Encrypt asks the relayer to encrypt value and prove the input
func (c *Client) Encrypt(ctx context.Context, contract, account string, value uint64) (*fhe.EncryptedInput, error) {
	if !c.initialized.Load() {
		return nil, errors.New(fhe.ErrNotInitialized).Component("fhe.relayer").Category(errors.CategoryNotReady).Build()
	}

	req := inputProofRequest{
		Contract: contract,
		Account:  account,
		Bits:     encryptedBits,
		Values:   []string{strconv.FormatUint(value, 10)},
	}
	var resp inputProofResponse
	if err := c.http.PostJSON(ctx, c.baseURL+pathInputProof, req, &resp); err != nil {
		return nil, c.serviceError(err, "input_proof")
	}
	if len(resp.Handles) != 1 || len(resp.InputProof) == 0 {
		return nil, c.serviceError(fmt.Errorf("relayer returned %d handles", len(resp.Handles)), "input_proof")
	}

	return &fhe.EncryptedInput{
		Handles:    []fhe.Handle{fhe.Handle(resp.Handles[0])},
		InputProof: resp.InputProof,
	}, nil
}

type publicDecryptRequest struct {
	Contract string       `json:"contract"`
	Handles  []fhe.Handle `json:"handles"`
}

type publicDecryptResponse struct {
	ClearValues     hexBytes `json:"clear_values"`
	DecryptionProof hexBytes `json:"decryption_proof"`
}

// ProveDecryption requests a public decryption with proof and forwards it
// to submit. Submit failures come back wrapped but unclassified.
func (c *Client) ProveDecryption(ctx context.Context, handles []fhe.Handle, contract string, submit fhe.SubmitFunc) (*fhe.Decryption, error) {
	if !c.initialized.Load() {
		return nil, errors.New(fhe.ErrNotInitialized).Component("fhe.relayer").Category(errors.CategoryNotReady).Build()
	}
	if len(handles) == 0 {
		return nil, errors.ValidationError("no handles to decrypt")
	}

	var resp publicDecryptResponse
	if err := c.http.PostJSON(ctx, c.baseURL+pathPublicDecrypt, publicDecryptRequest{Contract: contract, Handles: handles}, &resp); err != nil {
		return nil, c.serviceError(err, "public_decrypt")
	}

	values, err := fhe.DecodeClearValues(resp.ClearValues)
	if err != nil {
		return nil, c.serviceError(err, "public_decrypt")
	}
	clearValues, err := fhe.Zip(handles, values)
	if err != nil {
		return nil, c.serviceError(err, "public_decrypt")
	}

	if submit != nil {
		if err := submit(ctx, resp.ClearValues, resp.DecryptionProof); err != nil {
			return nil, fmt.Errorf("submit decryption: %w", err)
		}
	}

	return &fhe.Decryption{
		ClearValues: clearValues,
		Encoded:     resp.ClearValues,
		Proof:       resp.DecryptionProof,
	}, nil
}

func (c *Client) serviceError(err error, operation string) error {
	return errors.New(err).
		Component("fhe.relayer").
		Category(errors.CategoryService).
		Context("operation", operation).
		NetworkContext(c.baseURL, 0).
		Build()
}

// hexBytes is []byte carried as a 0x-prefixed hex JSON string
type hexBytes []byte

func (h hexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal("0x" + hex.EncodeToString(h))
}

func (h *hexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}
	*h = b
	return nil
}
