package probcache

import (
	"math"
	"testing"
)

func TestNewCacheValidation(t *testing.T) {
	tests := []struct {
		name              string
		epsilon, h, theta float64
		maxFragmentLength int
		wantErr           bool
	}{
		{"defaults", 0, 0, 0.001, 8, false},
		{"all zero", 0, 0, 0, 4, false},
		{"all one", 1, 1, 1, 4, false},
		{"epsilon too high", 1.5, 0, 0.001, 4, true},
		{"h negative", 0, -0.1, 0.001, 4, true},
		{"theta too high", 0, 0, 1.1, 4, true},
		{"zero length", 0, 0, 0.001, 0, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewCache(test.epsilon, test.h, test.theta, test.maxFragmentLength)
			if (err != nil) != test.wantErr {
				t.Errorf("NewCache(%v, %v, %v, %v) error = %v, wantErr %v", test.epsilon, test.h, test.theta, test.maxFragmentLength, err, test.wantErr)
			}
		})
	}
}

func TestPowersMatchRepeatedMultiplication(t *testing.T) {
	c, err := NewCache(0.01, 0.02, 0.001, 16)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	want := 1.0
	for k := 0; k < 16; k++ {
		got := c.PowEpsilon(k)
		if math.Abs(got-want) > 1e-12 {
			t.Errorf("PowEpsilon(%d) = %v, want %v", k, got, want)
		}
		want *= c.Epsilon
	}
}

func TestChoosePascalsTriangle(t *testing.T) {
	c, err := NewCache(0, 0, 0.001, 8)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	tests := []struct {
		n, k int
		want uint64
	}{
		{0, 0, 1},
		{1, 0, 1},
		{1, 1, 1},
		{4, 2, 6},
		{7, 3, 35},
		{7, 8, 0}, // k > n
		{3, -1, 0},
	}
	for _, test := range tests {
		if got := c.Choose(test.n, test.k); got != test.want {
			t.Errorf("Choose(%d, %d) = %d, want %d", test.n, test.k, got, test.want)
		}
	}
}

func TestPSameSamePDiffDiffComplementarity(t *testing.T) {
	c, err := NewCache(0, 0, 0.1, 4)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	if got, want := c.PSameSame+c.PSameDiff, 1.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("PSameSame+PSameDiff = %v, want %v", got, want)
	}
	if got, want := c.PDiffSame+c.PDiffDiff, 1.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("PDiffSame+PDiffDiff = %v, want %v", got, want)
	}
}
