package ledger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
)

func TestIsUserRejected(t *testing.T) {
	assert.True(t, IsUserRejected(ErrUserRejected))
	assert.True(t, IsUserRejected(fmt.Errorf("send: %w", ErrUserRejected)))
	assert.True(t, IsUserRejected(errors.NewStd("MetaMask Tx Signature: User denied transaction signature.")))
	assert.False(t, IsUserRejected(errors.NewStd("nonce too low")))
	assert.False(t, IsUserRejected(nil))
}

func TestIsAlreadyVerified(t *testing.T) {
	assert.True(t, IsAlreadyVerified(ErrAlreadyVerified))
	assert.True(t, IsAlreadyVerified(errors.NewStd("execution reverted: Data already verified")))
	assert.False(t, IsAlreadyVerified(errors.NewStd("invalid proof")))
	assert.False(t, IsAlreadyVerified(nil))
}

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify(nil, "create_record"))

	err := Classify(fmt.Errorf("wallet: %w", ErrUserRejected), "create_record")
	assert.True(t, errors.IsCategory(err, errors.CategoryUserRejected))
	assert.ErrorIs(t, err, ErrUserRejected)
	assert.False(t, errors.IsRetriable(err))

	err = Classify(errors.NewStd("connection reset"), "submit_verification")
	assert.True(t, errors.IsCategory(err, errors.CategoryLedger))
	assert.True(t, errors.IsRetriable(err))

	err = Classify(ErrRecordNotFound, "get_record")
	assert.True(t, errors.IsNotFound(err))
	assert.False(t, errors.IsRetriable(err))

	// Already classified errors pass through
	inner := errors.New(errors.NewStd("deadline")).Category(errors.CategoryFinality).Build()
	assert.Same(t, inner, Classify(inner, "await_finality"))
}
