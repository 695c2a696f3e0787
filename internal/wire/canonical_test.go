package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_RecordArray(t *testing.T) {
	records := []any{
		map[string]any{
			"type":   "Profile",
			"fields": Object{"score": Int(42), "coins": Int(3)},
		},
	}

	got, err := MarshalCanonical(records)
	require.NoError(t, err)
	assert.Equal(t, `[{"fields":{"coins":3,"score":42},"type":"Profile"}]`, string(got))
}

func TestMarshalCanonical_Deterministic(t *testing.T) {
	obj := Object{}
	for _, k := range []string{"z", "m", "a", "q", "b"} {
		obj[k] = String(k)
	}

	first, err := MarshalCanonical(obj)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := MarshalCanonical(obj)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMarshalCanonical_StringValuesByteExact(t *testing.T) {
	got, err := MarshalCanonical("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"cafe\u0301\"", string(got))

	got, err = MarshalValue(String("cafe\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"cafe\u0301\"", string(got))
}

func TestMarshalCanonical_KeysNFC(t *testing.T) {
	got, err := MarshalCanonical(Object{"cafe\u0301": String("cafe\u0301")})
	require.NoError(t, err)
	assert.Equal(t, "{\"caf\u00e9\":\"cafe\u0301\"}", string(got))

	_, err = MarshalCanonical(map[string]any{"cafe\u0301": 1, "caf\u00e9": 2})
	assert.ErrorContains(t, err, "collide")
}

func TestMarshalCanonical_LineSeparators(t *testing.T) {
	got, err := MarshalCanonical("a\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(got))

	got, err = MarshalCanonical(`a\u2028b`)
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(got))
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)

	_, err = MarshalCanonical(3.5)
	assert.Error(t, err)

	_, err = MarshalCanonical([]any{struct{}{}})
	assert.Error(t, err)
}
