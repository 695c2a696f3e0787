package wire

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/savekit/internal/fault"
)

func roundTrip[T Native](t *testing.T, v T) {
	t.Helper()

	w, err := ToWire(v)
	require.NoError(t, err)

	data, err := MarshalValue(w)
	require.NoError(t, err)
	decoded, err := UnmarshalValue(data)
	require.NoError(t, err)

	got, err := FromWire[T](decoded)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestRoundTrip_AllNativeTypes(t *testing.T) {
	roundTrip(t, "hello, world")
	roundTrip(t, "")
	roundTrip(t, true)
	roundTrip(t, false)
	roundTrip(t, 42)
	roundTrip(t, int8(-128))
	roundTrip(t, int16(32767))
	roundTrip(t, int32(-5))
	roundTrip(t, int64(math.MaxInt64))
	roundTrip(t, int64(math.MinInt64))
	roundTrip(t, uint(7))
	roundTrip(t, uint8(255))
	roundTrip(t, uint16(65535))
	roundTrip(t, uint32(math.MaxUint32))
	roundTrip(t, uint64(math.MaxInt64))
	roundTrip(t, float32(1.5))
	roundTrip(t, 3.0)
	roundTrip(t, -0.125)
	roundTrip(t, 1e300)
	roundTrip(t, []byte{0x00, 0xff, 0x10, 'a'})
	roundTrip(t, []byte{})
}

func TestToWire_BytesBecomeBlob(t *testing.T) {
	w, err := ToWire([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, KindBlob, w.Kind())

	data, err := MarshalValue(w)
	require.NoError(t, err)
	assert.Equal(t, `"cmF3"`, string(data))
}

func TestToWire_Unsupported(t *testing.T) {
	_, err := ToWire(map[string]int{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrConversion))

	_, err = ToWire(uint64(math.MaxUint64))
	assert.Error(t, err)

	_, err = ToWire(nil)
	assert.Error(t, err)
}

func TestFromWire_FailureYieldsZeroValue(t *testing.T) {
	n, err := FromWire[int](String("not a number"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrConversion))
	assert.Zero(t, n)

	b, err := FromWire[[]byte](String("!!not base64!!"))
	require.Error(t, err)
	assert.Nil(t, b)

	f, err := FromWire[bool](Blob{1})
	require.Error(t, err)
	assert.False(t, f)
}

func TestFromWire_NumericCoercion(t *testing.T) {
	i, err := FromWire[int](String(" 17 "))
	require.NoError(t, err)
	assert.Equal(t, 17, i)

	i, err = FromWire[int](Float(4))
	require.NoError(t, err)
	assert.Equal(t, 4, i)

	_, err = FromWire[int](Float(4.5))
	assert.Error(t, err, "lossy float to int must fail")

	_, err = FromWire[int8](Int(128))
	assert.Error(t, err)

	_, err = FromWire[uint](Int(-1))
	assert.Error(t, err)

	f, err := FromWire[float64](Int(3))
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)

	_, err = FromWire[float32](Float(1e300))
	assert.Error(t, err)
}

func TestFromWire_BoolCoercion(t *testing.T) {
	b, err := FromWire[bool](String("true"))
	require.NoError(t, err)
	assert.True(t, b)

	b, err = FromWire[bool](Int(0))
	require.NoError(t, err)
	assert.False(t, b)

	_, err = FromWire[bool](String("maybe"))
	assert.Error(t, err)
}

func TestFromWire_StringFromAnyKind(t *testing.T) {
	s, err := FromWire[string](Int(9))
	require.NoError(t, err)
	assert.Equal(t, "9", s)

	s, err = FromWire[string](Blob("hi"))
	require.NoError(t, err)
	assert.Equal(t, "aGk=", s)
}

func TestFromWire_NilValue(t *testing.T) {
	_, err := FromWire[string](nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no value"))
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "high_score", NormalizeKey("high score"))
	assert.Equal(t, "a__b", NormalizeKey("a  b"))
	// e + combining acute composes to U+00E9
	assert.Equal(t, "caf\u00e9", NormalizeKey("cafe\u0301"))
}
