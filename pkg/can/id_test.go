package can

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStandardID(t *testing.T) {
	id, err := NewStandardID(MaxStandardID)
	require.NoError(t, err)
	assert.Equal(t, MaxStandardID, id.AsU16())

	_, err = NewStandardID(MaxStandardID + 1)
	var invalid *InvalidIDError
	require.ErrorAs(t, err, &invalid)
	assert.False(t, invalid.Extended)
}

func TestNewExtendedID(t *testing.T) {
	id, err := NewExtendedID(MaxExtendedID)
	require.NoError(t, err)
	assert.Equal(t, MaxExtendedID, id.AsU32())

	_, err = NewExtendedID(MaxExtendedID + 1)
	var invalid *InvalidIDError
	require.ErrorAs(t, err, &invalid)
	assert.True(t, invalid.Extended)
}

func TestExtendedFromStandard(t *testing.T) {
	std, err := NewStandardID(0x123)
	require.NoError(t, err)
	ext := ExtendedFromStandard(std)
	assert.Equal(t, uint32(0x123), ext.AsU32())
}

func TestNewIDPicksNarrowestVariant(t *testing.T) {
	id, err := NewID(uint32(MaxStandardID))
	require.NoError(t, err)
	assert.True(t, id.IsStandard())

	id, err = NewID(uint32(MaxStandardID) + 1)
	require.NoError(t, err)
	assert.True(t, id.IsExtended())

	_, err = NewID(MaxExtendedID + 1)
	assert.Error(t, err)
}

func TestIDRoundTripAsU32(t *testing.T) {
	for _, value := range []uint32{0, 1, uint32(MaxStandardID), uint32(MaxStandardID) + 1, MaxExtendedID} {
		id, err := NewID(value)
		require.NoError(t, err)
		assert.Equal(t, value, id.AsU32())
	}
}

func TestStandardAndExtendedSameValueNeverEqual(t *testing.T) {
	std, err := NewStandardCanID(0x42)
	require.NoError(t, err)
	ext, err := NewExtendedCanID(0x42)
	require.NoError(t, err)

	assert.False(t, std.Equal(ext))
	assert.NotEqual(t, 0, std.Compare(ext))
}

func TestIDCompareOrdersByValueThenVariant(t *testing.T) {
	low, err := NewStandardCanID(0x10)
	require.NoError(t, err)
	high, err := NewStandardCanID(0x20)
	require.NoError(t, err)
	assert.Equal(t, -1, low.Compare(high))
	assert.Equal(t, 1, high.Compare(low))

	stdTied, err := NewStandardCanID(0x42)
	require.NoError(t, err)
	extTied, err := NewExtendedCanID(0x42)
	require.NoError(t, err)
	assert.Equal(t, -1, stdTied.Compare(extTied))
	assert.Equal(t, 1, extTied.Compare(stdTied))
	assert.Equal(t, 0, stdTied.Compare(stdTied))
}

func TestAsStandardFailsForExtended(t *testing.T) {
	ext, err := NewExtendedCanID(0x100)
	require.NoError(t, err)
	_, err = ext.AsStandard()
	assert.Error(t, err)
}

func TestAsExtendedAlwaysSucceeds(t *testing.T) {
	std, err := NewStandardCanID(0x42)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x42), std.AsExtended().AsU32())
}

func TestIDString(t *testing.T) {
	std, err := NewStandardCanID(0x42)
	require.NoError(t, err)
	assert.Equal(t, "Standard(0x042)", std.String())

	ext, err := NewExtendedCanID(0x42)
	require.NoError(t, err)
	assert.Equal(t, "Extended(0x00000042)", ext.String())
}

func TestParseIDRoundTrip(t *testing.T) {
	cases := []string{"0", "42", "2047", "2048", "0x7FF", "0x800", "0o17", "0b101"}
	for _, text := range cases {
		id, err := ParseID(text)
		require.NoError(t, err, text)

		again, err := NewID(id.AsU32())
		require.NoError(t, err)
		assert.True(t, id.Equal(again), text)
	}
}

func TestParseIDInvalidFormat(t *testing.T) {
	_, err := ParseID("not-a-number")
	var parseErr *ParseIDError
	require.ErrorAs(t, err, &parseErr)
	assert.True(t, parseErr.InvalidFormat)
}

func TestParseIDInvalidValue(t *testing.T) {
	_, err := ParseID("0x20000000")
	var parseErr *ParseIDError
	require.ErrorAs(t, err, &parseErr)
	assert.True(t, parseErr.InvalidValue)
}
