package genetic

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveID(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123)

	tests := []struct {
		key  string
		want int64
	}{
		{"genenft-1699999999000", 1699999999000},
		{"genenft-42abc", 42},
		{"genenft-", now.UnixMilli()},
		{"genenft-0", now.UnixMilli()},
		{"custom", now.UnixMilli()},
		{"x-genenft-7", now.UnixMilli()},
		{"genenft-genenft-9", now.UnixMilli()},
		{"17", 17},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveID(tt.key, now))
		})
	}
}

func TestSanitizeDigits(t *testing.T) {
	assert.Equal(t, "80", SanitizeDigits(" 8a0 "))
	assert.Equal(t, "", SanitizeDigits("abc"))
	assert.Equal(t, "123", SanitizeDigits("1-2.3"))
}

func TestBestPrefersVerified(t *testing.T) {
	verified := Record{Key: "genenft-1", IsVerified: true, VerifiedPlainValue: 80}
	unverified := Record{Key: "genenft-2"}

	got := Best(verified, EstimateOf(12))
	assert.True(t, got.IsVerified())
	v, ok := got.Value()
	assert.True(t, ok)
	assert.Equal(t, int64(80), v)

	assert.Equal(t, EstimateOf(12), Best(unverified, EstimateOf(12)))
	assert.Equal(t, UnknownValue(), Best(unverified, UnknownValue()))
	assert.Equal(t, VerifiedOf(3), Best(unverified, VerifiedOf(3)))
}

func TestPrefer(t *testing.T) {
	assert.Equal(t, VerifiedOf(1), EstimateOf(2).Prefer(VerifiedOf(1)))
	assert.Equal(t, VerifiedOf(1), VerifiedOf(1).Prefer(EstimateOf(2)))
	assert.Equal(t, EstimateOf(2), UnknownValue().Prefer(EstimateOf(2)))
}

func TestProvenanceLabels(t *testing.T) {
	assert.Equal(t, "on-chain-verified", Verified.String())
	assert.Equal(t, "locally-decrypted", LocalEstimate.String())
	assert.Equal(t, "encrypted", Unknown.String())

	out, err := json.Marshal(map[string]Provenance{"p": LocalEstimate})
	require.NoError(t, err)
	assert.JSONEq(t, `{"p":"locally-decrypted"}`, string(out))

	var p Provenance
	require.NoError(t, p.UnmarshalText([]byte("on-chain-verified")))
	assert.Equal(t, Verified, p)
	require.Error(t, p.UnmarshalText([]byte("bogus")))
}

func TestUnknownValueHasNoPlaintext(t *testing.T) {
	_, ok := UnknownValue().Value()
	assert.False(t, ok)
	assert.Equal(t, "encrypted", UnknownValue().String())
	assert.Equal(t, "locally-decrypted(7)", EstimateOf(7).String())
}
