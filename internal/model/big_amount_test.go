package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBigAmount_Positive(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"1", true},
		{"100000000000000000000000000", true},
		{"0", false},
		{"-1", false},
		{"", false},
		{"abc", false},
	}

	for _, tt := range tests {
		amount := BigAmount{Value: tt.value, Decimal: 8}
		assert.Equal(t, tt.want, amount.Positive(), "value %q", tt.value)
	}
}

func TestBigAmount_Arithmetic(t *testing.T) {
	a := &BigAmount{Value: "100000000", Decimal: 8}
	b := &BigAmount{Value: "50000000", Decimal: 8}

	assert.Equal(t, "150000000", a.Add(b).Value)
	assert.Equal(t, "50000000", a.Sub(b).Value)
	assert.InDelta(t, 1.0, a.ToFloat(), 1e-9)

	v, ok := a.Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(100000000), v)
}
