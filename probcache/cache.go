// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package probcache precomputes the powers and binomial coefficients that
// the probability kernel (package probkernel) needs over and over again
// while scoring read pairs. Building this table once, up front, is what
// keeps the kernel's nested sums from recomputing the same pow()/choose()
// calls combinatorially many times.
package probcache

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Cache holds, for a fixed (mutation rate, heterozygous rate, sequencing
// error rate) triple, every power and binomial coefficient the kernel needs
// for overlap lengths up to MaxFragmentLength-1. It is immutable after
// NewCache returns; all reads are safe from any number of goroutines.
type Cache struct {
	Epsilon float64 // mutation rate
	H       float64 // heterozygous-site rate
	Theta   float64 // sequencing error rate

	// The four base match/mismatch probabilities derived from theta.
	PSameSame float64
	PSameDiff float64
	PDiffSame float64
	PDiffDiff float64

	// powers[i] is the vector [b^0, b^1, ..., b^(L-1)] for the i'th base
	// quantity, in the fixed order documented on the package-level powerIndex
	// constants below.
	powers [numPowers][]float64

	// comb is Pascal's triangle: comb[n][k] == C(n, k), for 0 <= k <= n < L.
	comb [][]uint64

	maxFragmentLength int
}

// powerIndex names the 12 base quantities powers[] holds powers of.
type powerIndex int

const (
	pwPSameSame powerIndex = iota
	pwPSameDiff
	pwPDiffSame
	pwPDiffDiff
	pwOneMinusEpsMinusH    // 1 - epsilon - h
	pwOneMinusHalfEpsMinusH // 1 - epsilon/2 - h
	pwHalfEpsPlusH         // h + epsilon/2
	pwH                    // h
	pwEpsilon              // epsilon
	pwHalf                 // 0.5
	pwPSSPlusPDS           // p_same_same + p_diff_same
	pwPSDPlusPDD           // p_same_diff + p_diff_diff
	numPowers
)

// NewCache builds a Cache for the given mutation/heterozygous/sequencing
// error rates, precomputing powers and binomial coefficients for overlap
// lengths in [0, maxFragmentLength). It validates that the three rates lie
// in [0, 1] and returns a config error otherwise.
func NewCache(epsilon, h, theta float64, maxFragmentLength int) (*Cache, error) {
	for _, p := range []struct {
		name string
		v    float64
	}{{"mutation_rate", epsilon}, {"heterozygous_rate", h}, {"seq_error_rate", theta}} {
		if p.v < 0 || p.v > 1 {
			return nil, errors.E("probcache.NewCache", fmt.Sprintf("%s=%v out of range [0, 1]", p.name, p.v))
		}
	}
	if maxFragmentLength < 1 {
		return nil, errors.E("probcache.NewCache", fmt.Sprintf("max_fragment_length=%d must be >= 1", maxFragmentLength))
	}

	theta2 := theta * theta
	pSameDiff := 2*theta*(1-theta) + 2*theta2/3
	pSameSame := 1 - pSameDiff
	pDiffSame := 2*(1-theta)*theta/3 + 2*theta2/9
	pDiffDiff := 1 - pDiffSame

	c := &Cache{
		Epsilon:           epsilon,
		H:                 h,
		Theta:             theta,
		PSameSame:         pSameSame,
		PSameDiff:         pSameDiff,
		PDiffSame:         pDiffSame,
		PDiffDiff:         pDiffDiff,
		maxFragmentLength: maxFragmentLength,
	}

	bases := [numPowers]float64{
		pSameSame,
		pSameDiff,
		pDiffSame,
		pDiffDiff,
		1 - epsilon - h,
		1 - epsilon/2 - h,
		h + epsilon/2,
		h,
		epsilon,
		0.5,
		pSameSame + pDiffSame,
		pSameDiff + pDiffDiff,
	}
	for i, b := range bases {
		c.powers[i] = powersOf(b, maxFragmentLength)
	}

	c.comb = pascalsTriangle(maxFragmentLength)

	return c, nil
}

// powersOf returns [b^0, b^1, ..., b^(n-1)].
func powersOf(b float64, n int) []float64 {
	p := make([]float64, n)
	p[0] = 1
	for i := 1; i < n; i++ {
		p[i] = p[i-1] * b
	}
	return p
}

// pascalsTriangle returns a jagged table t where t[n][k] == C(n, k), for
// 0 <= k <= n < rows.
func pascalsTriangle(rows int) [][]uint64 {
	t := make([][]uint64, rows)
	t[0] = []uint64{1}
	for n := 1; n < rows; n++ {
		row := make([]uint64, n+1)
		row[0] = 1
		row[n] = 1
		prev := t[n-1]
		for k := 1; k < n; k++ {
			row[k] = prev[k-1] + prev[k]
		}
		t[n] = row
	}
	return t
}

// MaxFragmentLength returns the L this cache was built for; callers must
// clamp every x_s, x_d, and x_s+x_d passed to the kernel to be < this value.
func (c *Cache) MaxFragmentLength() int { return c.maxFragmentLength }

// pow returns b^k for the base quantity named by idx.
func (c *Cache) pow(idx powerIndex, k int) float64 {
	return c.powers[idx][k]
}

// Choose returns C(n, k), or 0 if k is out of [0, n].
func (c *Cache) Choose(n, k int) uint64 {
	if k < 0 || k > n {
		return 0
	}
	return c.comb[n][k]
}

// Exported power accessors used by package probkernel. They are named after
// the quantity they return rather than their internal index so the kernel's
// formulas read naturally at the call site.

func (c *Cache) PowPSameSame(k int) float64             { return c.pow(pwPSameSame, k) }
func (c *Cache) PowPSameDiff(k int) float64             { return c.pow(pwPSameDiff, k) }
func (c *Cache) PowPDiffSame(k int) float64             { return c.pow(pwPDiffSame, k) }
func (c *Cache) PowPDiffDiff(k int) float64             { return c.pow(pwPDiffDiff, k) }
func (c *Cache) PowOneMinusEpsMinusH(k int) float64     { return c.pow(pwOneMinusEpsMinusH, k) }
func (c *Cache) PowOneMinusHalfEpsMinusH(k int) float64 { return c.pow(pwOneMinusHalfEpsMinusH, k) }
func (c *Cache) PowHalfEpsPlusH(k int) float64          { return c.pow(pwHalfEpsPlusH, k) }
func (c *Cache) PowH(k int) float64                     { return c.pow(pwH, k) }
func (c *Cache) PowEpsilon(k int) float64               { return c.pow(pwEpsilon, k) }
func (c *Cache) PowHalf(k int) float64                  { return c.pow(pwHalf, k) }
func (c *Cache) PowPSSPlusPDS(k int) float64            { return c.pow(pwPSSPlusPDS, k) }
func (c *Cache) PowPSDPlusPDD(k int) float64            { return c.pow(pwPSDPlusPDD, k) }
