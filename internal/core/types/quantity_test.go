package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantityUnmarshal_NumberAndStringForms(t *testing.T) {
	cases := []struct {
		in   string
		want Quantity
	}{
		{"7", Quantity(70_000)},
		{"12.5", Quantity(125_000)},
		{"-0.25", Quantity(-2_500)},
		{`"3.0001"`, Quantity(30_001)},
		{`"0.12345"`, Quantity(1_234)}, // extra digits truncated to scale
	}
	for _, tc := range cases {
		var q Quantity
		require.NoError(t, json.Unmarshal([]byte(tc.in), &q), tc.in)
		assert.Equal(t, tc.want, q, tc.in)
	}
}

func TestQuantityUnmarshal_RejectsExponentForm(t *testing.T) {
	for _, in := range []string{"1e3", "2.5E2", `"1e-2"`} {
		var q Quantity
		err := json.Unmarshal([]byte(in), &q)
		require.Error(t, err, in)
	}
}

func TestQuantityUnmarshal_RejectsOutOfRange(t *testing.T) {
	var q Quantity
	err := json.Unmarshal([]byte("922337203685477"), &q)
	require.Error(t, err)

	require.NoError(t, json.Unmarshal([]byte("922337203685476.9999"), &q))
	assert.Equal(t, Quantity(9223372036854769999), q)
}

func TestQuantityJSONRoundTrip(t *testing.T) {
	q := NewQuantityFromFloat64(41.275)
	data, err := json.Marshal(q)
	require.NoError(t, err)
	assert.Equal(t, "41.2750", string(data))

	var back Quantity
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, q, back)
}
