package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	canon, err := Normalize("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, err)
	assert.Len(t, canon, 42)
	assert.Equal(t, "0x", canon[:2])

	_, err = Normalize("not-an-address")
	require.ErrorIs(t, err, ErrBadAddress)
}

func TestNormalizeIsCaseInsensitive(t *testing.T) {
	a, err := Normalize("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	require.NoError(t, err)
	b, err := Normalize("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLower(t *testing.T) {
	lower, err := Lower("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	require.NoError(t, err)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", lower)
	assert.Len(t, lower, 42)
}
