package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := Message{
		Type:      Join,
		Addresses: []string{"0xaaaa", "0xbbbb"},
		MessageID: NewMessageID(1700000000000),
	}

	data, err := Encode(msg)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"kick","addresses":[],"timestamp":1,"uuid":"x"}`))
	assert.Error(t, err)
}

func TestNewMessageIDsAreUnique(t *testing.T) {
	a := NewMessageID(1)
	b := NewMessageID(1)
	assert.NotEqual(t, a.UUID, b.UUID)
}
