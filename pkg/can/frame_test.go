package can

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFrameDataInvariants(t *testing.T) {
	id, err := NewStandardCanID(0x123)
	require.NoError(t, err)
	payload := []byte{1, 2, 3}
	frame, err := NewFrame(id, payload)
	require.NoError(t, err)

	assert.Equal(t, payload, frame.Data())
	assert.False(t, frame.IsRTR())
	assert.Equal(t, uint8(len(payload)), frame.DataLengthCode())
	assert.True(t, id.Equal(frame.ID()))
}

func TestNewFrameWithLengthCode(t *testing.T) {
	id, err := NewExtendedCanID(0x1ABCDEF)
	require.NoError(t, err)
	payload := make([]byte, MaxDataLength)
	frame, err := NewFrameWithLengthCode(id, payload, 12)
	require.NoError(t, err)

	assert.Equal(t, payload, frame.Data())
	assert.Equal(t, uint8(12), frame.DataLengthCode())
	assert.False(t, frame.IsRTR())
}

func TestNewRTRFrameCarriesNoPayload(t *testing.T) {
	id, err := NewStandardCanID(0x42)
	require.NoError(t, err)
	frame, err := NewRTRFrame(id, 8)
	require.NoError(t, err)

	assert.True(t, frame.IsRTR())
	assert.Empty(t, frame.Data())
	assert.Equal(t, uint8(8), frame.DataLengthCode())
}

func TestFrameMarshalUnmarshalRoundTripStandard(t *testing.T) {
	id, err := NewStandardCanID(0x123)
	require.NoError(t, err)
	payload := []byte{1, 2, 3, 4, 5}
	frame, err := NewFrame(id, payload)
	require.NoError(t, err)

	buf, err := frame.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, buf, WireSize)

	decoded, err := UnmarshalFrame(buf)
	require.NoError(t, err)
	assert.True(t, id.Equal(decoded.ID()))
	assert.Equal(t, payload, decoded.Data())
	assert.False(t, decoded.IsRTR())
	assert.Equal(t, frame.DataLengthCode(), decoded.DataLengthCode())
}

func TestFrameMarshalUnmarshalRoundTripExtended(t *testing.T) {
	id, err := NewExtendedCanID(0x1FFFFFFF)
	require.NoError(t, err)
	payload := []byte{9, 8, 7, 6, 5, 4, 3, 2}
	frame, err := NewFrame(id, payload)
	require.NoError(t, err)

	buf, err := frame.MarshalBinary()
	require.NoError(t, err)

	decoded, err := UnmarshalFrame(buf)
	require.NoError(t, err)
	assert.True(t, id.Equal(decoded.ID()))
	assert.True(t, decoded.ID().IsExtended())
	assert.Equal(t, payload, decoded.Data())
}

func TestFrameMarshalUnmarshalRoundTripRTR(t *testing.T) {
	id, err := NewStandardCanID(0x55)
	require.NoError(t, err)
	frame, err := NewRTRFrame(id, 6)
	require.NoError(t, err)

	buf, err := frame.MarshalBinary()
	require.NoError(t, err)

	decoded, err := UnmarshalFrame(buf)
	require.NoError(t, err)
	assert.True(t, decoded.IsRTR())
	assert.Empty(t, decoded.Data())
	assert.Equal(t, uint8(6), decoded.DataLengthCode())
}

func TestFrameMarshalPreservesOpaqueDLCTag(t *testing.T) {
	id, err := NewStandardCanID(0x10)
	require.NoError(t, err)
	payload := make([]byte, MaxDataLength)
	frame, err := NewFrameWithLengthCode(id, payload, 15)
	require.NoError(t, err)

	buf, err := frame.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, byte(15), buf[7])

	decoded, err := UnmarshalFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, uint8(15), decoded.DataLengthCode())
	assert.Equal(t, payload, decoded.Data())
}

func TestUnmarshalFrameRejectsShortBuffer(t *testing.T) {
	_, err := UnmarshalFrame(make([]byte, WireSize-1))
	assert.Error(t, err)
}
