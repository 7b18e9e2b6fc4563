package devnet

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
	"github.com/adamidy7424/GeneNFT-Z/internal/fhe"
	fhedevnet "github.com/adamidy7424/GeneNFT-Z/internal/fhe/devnet"
	"github.com/adamidy7424/GeneNFT-Z/internal/ledger"
)

const (
	testSeed    = "000102030405060708090a0b0c0d0e0f"
	testAccount = "0xA11CE00000000000000000000000000000000001"
)

func openTestLedger(t *testing.T, blockTime time.Duration) (*Ledger, *fhedevnet.Gateway) {
	t.Helper()
	gw, err := fhedevnet.NewGateway(testSeed)
	require.NoError(t, err)
	require.NoError(t, gw.Initialize(context.Background()))

	l, err := Open(Config{
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		BlockTime:    blockTime,
		PollInterval: 5 * time.Millisecond,
	}, gw, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, gw
}

func createRecord(t *testing.T, l *Ledger, gw *fhedevnet.Gateway, key string, gene, research uint64) ledger.TxHandle {
	t.Helper()
	in, err := gw.Encrypt(context.Background(), l.Address(), testAccount, gene)
	require.NoError(t, err)
	tx, err := l.CreateRecord(context.Background(), ledger.CreateParams{
		Key:            key,
		Name:           "sample " + key,
		From:           testAccount,
		EncryptedValue: in.Handle(),
		InputProof:     in.InputProof,
		PublicValue1:   research,
		Description:    "Genetic NFT Data",
	})
	require.NoError(t, err)
	return tx
}

func TestCreateAndRead(t *testing.T) {
	l, gw := openTestLedger(t, 0)
	ctx := context.Background()

	tx := createRecord(t, l, gw, "genenft-1", 80, 5)
	assert.Len(t, string(tx), 34)
	require.NoError(t, l.AwaitFinality(ctx, tx))

	raw, err := l.GetRecord(ctx, "genenft-1")
	require.NoError(t, err)
	assert.Equal(t, "sample genenft-1", raw.Name)
	assert.Equal(t, testAccount, raw.Creator)
	assert.Equal(t, int64(5), raw.PublicValue1)
	assert.Equal(t, false, raw.IsVerified)
	assert.NotZero(t, raw.Timestamp)

	h, err := l.GetCiphertextHandle(ctx, "genenft-1")
	require.NoError(t, err)
	assert.Equal(t, h, h.Normalize())
}

func TestListPreservesInsertionOrder(t *testing.T) {
	l, gw := openTestLedger(t, 0)
	for _, k := range []string{"genenft-3", "genenft-1", "genenft-2"} {
		createRecord(t, l, gw, k, 1, 1)
	}
	keys, err := l.ListRecordKeys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"genenft-3", "genenft-1", "genenft-2"}, keys)
}

func TestCreateRejectsDuplicateKey(t *testing.T) {
	l, gw := openTestLedger(t, 0)
	createRecord(t, l, gw, "genenft-1", 1, 1)

	in, err := gw.Encrypt(context.Background(), l.Address(), testAccount, 2)
	require.NoError(t, err)
	_, err = l.CreateRecord(context.Background(), ledger.CreateParams{
		Key: "genenft-1", From: testAccount, EncryptedValue: in.Handle(), InputProof: in.InputProof,
	})
	require.ErrorIs(t, err, ledger.ErrDuplicateKey)
	assert.True(t, errors.IsCategory(err, errors.CategoryLedger))
}

func TestCreateRejectsBadInputProof(t *testing.T) {
	l, gw := openTestLedger(t, 0)
	in, err := gw.Encrypt(context.Background(), l.Address(), testAccount, 2)
	require.NoError(t, err)

	_, err = l.CreateRecord(context.Background(), ledger.CreateParams{
		Key: "genenft-1", From: "0xB0B", EncryptedValue: in.Handle(), InputProof: in.InputProof,
	})
	require.ErrorIs(t, err, ledger.ErrInvalidProof)

	keys, err := l.ListRecordKeys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestVerifyFlow(t *testing.T) {
	l, gw := openTestLedger(t, 0)
	ctx := context.Background()
	createRecord(t, l, gw, "genenft-7", 80, 5)

	h, err := l.GetCiphertextHandle(ctx, "genenft-7")
	require.NoError(t, err)

	var tx ledger.TxHandle
	dec, err := gw.ProveDecryption(ctx, []fhe.Handle{h}, l.Address(), func(ctx context.Context, encoded, proof []byte) error {
		var err error
		tx, err = l.SubmitVerification(ctx, "genenft-7", encoded, proof)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, l.AwaitFinality(ctx, tx))

	v, ok := dec.Value(h)
	require.True(t, ok)
	assert.Equal(t, uint64(80), v)

	raw, err := l.GetRecord(ctx, "genenft-7")
	require.NoError(t, err)
	assert.Equal(t, true, raw.IsVerified)
	assert.Equal(t, int64(80), raw.DecryptedValue)

	// A second submission is rejected with the contract's message
	_, err = l.SubmitVerification(ctx, "genenft-7", dec.Encoded, dec.Proof)
	require.Error(t, err)
	assert.True(t, ledger.IsAlreadyVerified(err))
	assert.Contains(t, err.Error(), "Data already verified")
}

func TestSubmitRejectsForgedProof(t *testing.T) {
	l, gw := openTestLedger(t, 0)
	createRecord(t, l, gw, "genenft-1", 10, 1)

	_, err := l.SubmitVerification(context.Background(), "genenft-1", fhe.EncodeClearValues([]uint64{99}), []byte("forged"))
	require.ErrorIs(t, err, ledger.ErrInvalidProof)

	raw, err := l.GetRecord(context.Background(), "genenft-1")
	require.NoError(t, err)
	assert.Equal(t, false, raw.IsVerified)
}

func TestGetRecordNotFound(t *testing.T) {
	l, _ := openTestLedger(t, 0)
	_, err := l.GetRecord(context.Background(), "genenft-404")
	require.ErrorIs(t, err, ledger.ErrRecordNotFound)
	assert.True(t, errors.IsNotFound(err))
}

func TestAwaitFinalityWaitsForBlockTime(t *testing.T) {
	l, gw := openTestLedger(t, 30*time.Millisecond)
	tx := createRecord(t, l, gw, "genenft-1", 1, 1)

	start := time.Now()
	require.NoError(t, l.AwaitFinality(context.Background(), tx))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestAwaitFinalityHonorsContext(t *testing.T) {
	l, gw := openTestLedger(t, time.Hour)
	tx := createRecord(t, l, gw, "genenft-1", 1, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.AwaitFinality(ctx, tx)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFinality))
}

func TestAwaitFinalityUnknownTx(t *testing.T) {
	l, _ := openTestLedger(t, 0)
	err := l.AwaitFinality(context.Background(), "0xdead")
	require.ErrorIs(t, err, ledger.ErrTxFailed)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "postgres"}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = Open(Config{Driver: "mysql"}, nil, nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
