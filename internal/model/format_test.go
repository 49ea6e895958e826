package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	t.Parallel()

	// Variables, so the sum is computed in float64 rather than folded exactly.
	tenth, fifth := 0.1, 0.2

	tests := []struct {
		name string
		in   float64
		want string
	}{
		{name: "integer", in: 42, want: "42"},
		{name: "negative integer", in: -7, want: "-7"},
		{name: "negative zero", in: math.Copysign(0, -1), want: "0"},
		{name: "decimal", in: 3.14, want: "3.14"},
		{name: "shortest round-trip", in: tenth + fifth, want: "0.30000000000000004"},
		{name: "lower fixed bound", in: 1e-6, want: "0.000001"},
		{name: "below lower bound", in: 1.5e-7, want: "1.5e-7"},
		{name: "just below upper bound", in: 1e20, want: "100000000000000000000"},
		{name: "upper bound", in: 1e21, want: "1e+21"},
		{name: "large exponent", in: -1.2345e100, want: "-1.2345e+100"},
		{name: "nan", in: math.NaN(), want: "NaN"},
		{name: "positive infinity", in: math.Inf(1), want: "Infinity"},
		{name: "negative infinity", in: math.Inf(-1), want: "-Infinity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatNumber(tt.in))
		})
	}
}
