package fhe

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeClearValues(t *testing.T) {
	encoded := EncodeClearValues([]uint64{80, 1 << 40})
	require.Len(t, encoded, 64)

	assert.True(t, bytes.Equal(make([]byte, 31), encoded[:31]))
	assert.Equal(t, byte(80), encoded[31])

	values, err := DecodeClearValues(encoded)
	require.NoError(t, err)
	assert.Equal(t, []uint64{80, 1 << 40}, values)
}

func TestDecodeClearValuesRejectsBadInput(t *testing.T) {
	_, err := DecodeClearValues(make([]byte, 31))
	require.Error(t, err)

	wide := make([]byte, 32)
	wide[0] = 1
	_, err = DecodeClearValues(wide)
	require.Error(t, err)

	values, err := DecodeClearValues(nil)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestHandleBytes(t *testing.T) {
	h := HandleFromBytes([]byte{0xde, 0xad, 0xbe, 0xef})
	assert.Equal(t, Handle("0xdeadbeef"), h)

	b, err := Handle("0xDEADBEEF").Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, b)

	_, err = Handle("0xzz").Bytes()
	require.Error(t, err)
}

func TestZipAndValue(t *testing.T) {
	m, err := Zip([]Handle{"0xAB", "0xcd"}, []uint64{1, 2})
	require.NoError(t, err)

	d := &Decryption{ClearValues: m}
	v, ok := d.Value("0xab")
	assert.True(t, ok)
	assert.Equal(t, uint64(1), v)

	_, ok = d.Value("0xef")
	assert.False(t, ok)

	_, err = Zip([]Handle{"0xab"}, nil)
	require.Error(t, err)
}
