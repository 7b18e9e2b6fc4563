package workflow

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fhedevnet "github.com/adamidy7424/GeneNFT-Z/internal/fhe/devnet"
	"github.com/adamidy7424/GeneNFT-Z/internal/genetic"
	"github.com/adamidy7424/GeneNFT-Z/internal/ledger/devnet"
	"github.com/adamidy7424/GeneNFT-Z/internal/records"
	"github.com/adamidy7424/GeneNFT-Z/internal/session"
)

func TestLifecycleOnDevnet(t *testing.T) {
	ctx := context.Background()

	gw, err := fhedevnet.NewGateway("000102030405060708090a0b0c0d0e0f")
	require.NoError(t, err)
	chain, err := devnet.Open(devnet.Config{
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		BlockTime:    10 * time.Millisecond,
		PollInterval: 2 * time.Millisecond,
	}, gw, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = chain.Close() })

	coord := session.NewCoordinator(session.NewStaticWallet(testAccount), gw, chain.Address(), nil, nil)
	t.Cleanup(coord.Close)
	require.NoError(t, coord.Initialize(ctx))
	sc := coord.Context()
	require.True(t, sc.Ready())

	status := &statusRecorder{}
	n := records.NewNormalizer(chain)
	estimates := records.NewEstimateCache(time.Minute)
	creator := NewCreator(gw, chain, n, WithStatus(status))
	verifier := NewVerifier(chain, gw, n, estimates, WithStatus(status))

	created, err := creator.Create(ctx, sc, CreateRequest{Name: "Patient A", GeneValue: "1,234", ResearchScore: 7})
	require.NoError(t, err)
	require.NotNil(t, created.Record)
	assert.Equal(t, "Patient A", created.Record.Name)
	assert.Equal(t, int64(7), created.Record.PublicScore)
	assert.False(t, created.Record.IsVerified)
	assert.Equal(t, testAccount, created.Record.Creator)

	res, err := verifier.Verify(ctx, sc, created.Key)
	require.NoError(t, err)
	assert.Equal(t, OutcomeVerified, res.Outcome)
	assert.Equal(t, genetic.VerifiedOf(1234), res.Value)

	rec, ok := n.Current().Get(created.Key)
	require.True(t, ok)
	assert.True(t, rec.IsVerified)
	assert.Equal(t, int64(1234), rec.VerifiedPlainValue)
	assert.Equal(t, genetic.VerifiedOf(1234), estimates.Best(rec))

	again, err := verifier.Verify(ctx, sc, created.Key)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyVerified, again.Outcome)
	assert.Equal(t, genetic.VerifiedOf(1234), again.Value)
	assert.Equal(t, "Data already verified on-chain", status.last().Message)
}
