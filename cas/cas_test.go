package cas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalJSONSortsKeys(t *testing.T) {
	a := map[string]any{"b": 1, "a": map[string]any{"z": true, "y": []any{3, 2}}}
	got, err := CanonicalJSON(a)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"y":[3,2],"z":true},"b":1}`, string(got))
}

func TestCanonicalJSONStructFieldOrder(t *testing.T) {
	type payload struct {
		Zeta  string  `json:"zeta"`
		Alpha float64 `json:"alpha"`
	}
	got, err := CanonicalJSON(payload{Zeta: "z", Alpha: 0.1})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":0.1,"zeta":"z"}`, string(got))
}

func TestCanonicalJSONPreservesLargeIntegers(t *testing.T) {
	got, err := CanonicalJSON(map[string]any{"n": int64(9007199254740993)})
	require.NoError(t, err)
	assert.Equal(t, `{"n":9007199254740993}`, string(got))
}

func TestPrettyJSON(t *testing.T) {
	got, err := PrettyJSON(map[string]any{"b": 1, "a": "x"})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": \"x\",\n  \"b\": 1\n}\n", string(got))
}

func TestDigest(t *testing.T) {
	d1 := Digest([]byte("snapshot"))
	d2 := Digest([]byte("snapshot"))
	d3 := Digest([]byte("snapshot2"))
	assert.Len(t, d1, 32)
	assert.Equal(t, d1, d2)
	assert.NotEqual(t, d1, d3)
	assert.Len(t, DigestHex([]byte("x")), 64)
}
