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

// Package probkernel evaluates the two closed-form log-likelihoods the
// similarity engine's pair accumulator needs -- "these two reads' overlap is
// more likely if the originating cells share a genotype" vs. "...if they
// don't" -- and memoizes every (x_s, x_d) result it computes, since the
// nested sums below are expensive and the same few dozen (x_s, x_d) pairs
// recur constantly across a real pileup.
package probkernel

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/grailbio/base/errors"
	"github.com/scgenome/cellsim/probcache"
)

// notComputed is the memoization-table sentinel. Every valid result is <= 0
// (it is the log of a probability), so a value that large can never be
// mistaken for a real entry.
var notComputed = math.Float64bits(math.MaxFloat64)

// Kernel evaluates log_prob_same and log_prob_diff against a fixed
// probability cache, memoizing every result it computes. A Kernel is safe
// for concurrent use by multiple goroutines: table slots transition from
// "not computed" to a value exactly once in effect, via compare-and-swap, so
// concurrent first-queries of the same (x_s, x_d) may race to compute the
// (identical) value but never observe a torn read.
type Kernel struct {
	cache *probcache.Cache
	l     int

	// same[x_s*l+x_d] and diff[x_s*l+x_d] hold math.Float64bits of the
	// memoized log-probabilities, or notComputed.
	same []uint64
	diff []uint64
}

// New returns a Kernel backed by cache. The kernel accepts (x_s, x_d) pairs
// with x_s, x_d, and x_s+x_d all < cache.MaxFragmentLength().
func New(cache *probcache.Cache) *Kernel {
	l := cache.MaxFragmentLength()
	k := &Kernel{
		cache: cache,
		l:     l,
		same:  make([]uint64, l*l),
		diff:  make([]uint64, l*l),
	}
	for i := range k.same {
		k.same[i] = notComputed
		k.diff[i] = notComputed
	}
	return k
}

// checkDomain panics if x_s or x_d falls outside the cache's domain. This is
// a programming error in the caller -- the pair accumulator is responsible
// for never exceeding max_fragment_length -- not a recoverable condition.
func (k *Kernel) checkDomain(xs, xd int) {
	if xs < 0 || xd < 0 || xs >= k.l || xd >= k.l || xs+xd >= k.l {
		panic(errors.E("probkernel: x_s, x_d out of domain", fmt.Sprintf("x_s=%d x_d=%d max_fragment_length=%d", xs, xd, k.l)))
	}
}

// LogProbSame returns log P(x_s, x_d | same genotype), memoized.
func (k *Kernel) LogProbSame(xs, xd int) float64 {
	k.checkDomain(xs, xd)
	idx := xs*k.l + xd
	if bits := atomic.LoadUint64(&k.same[idx]); bits != notComputed {
		return math.Float64frombits(bits)
	}
	v := computeLogProbSame(k.cache, xs, xd)
	atomic.CompareAndSwapUint64(&k.same[idx], notComputed, math.Float64bits(v))
	return v
}

// LogProbDiff returns log P(x_s, x_d | different genotype), memoized.
func (k *Kernel) LogProbDiff(xs, xd int) float64 {
	k.checkDomain(xs, xd)
	idx := xs*k.l + xd
	if bits := atomic.LoadUint64(&k.diff[idx]); bits != notComputed {
		return math.Float64frombits(bits)
	}
	v := computeLogProbDiff(k.cache, xs, xd)
	atomic.CompareAndSwapUint64(&k.diff[idx], notComputed, math.Float64bits(v))
	return v
}

// computeLogProbSame implements the closed-form same-genotype likelihood.
func computeLogProbSame(c *probcache.Cache, xs, xd int) float64 {
	var p float64
	for k := 0; k <= xs; k++ {
		for l := 0; l <= xd; l++ {
			p += float64(c.Choose(xs, k)) * float64(c.Choose(xd, l)) *
				c.PowOneMinusHalfEpsMinusH(k+l) * 0.5 *
				(c.PowPSameSame(k)*c.PowPSameDiff(l) + c.PowPDiffSame(k)*c.PowPDiffDiff(l)) *
				c.PowHalfEpsPlusH(xs+xd-k-l) *
				c.PowPSameSame(xs-k) * c.PowPSameDiff(xd-l)
		}
	}
	p *= float64(c.Choose(xs+xd, xs))
	return math.Log(p)
}

// computeLogProbDiff implements the closed-form different-genotype
// likelihood.
func computeLogProbDiff(c *probcache.Cache, xs, xd int) float64 {
	var p float64
	for k := 0; k <= xs; k++ {
		for l := 0; l <= xd; l++ {
			for q := 0; q <= xs-k; q++ {
				for r := 0; r <= xd-l; r++ {
					rem := xs + xd - k - l - q - r
					p += float64(c.Choose(xs, k)) * float64(c.Choose(xd, l)) *
						float64(c.Choose(xs-k, q)) * float64(c.Choose(xd-l, r)) *
						c.PowOneMinusEpsMinusH(k+l) * 0.5 *
						(c.PowPSameSame(k)*c.PowPSameDiff(l) + c.PowPDiffSame(k)*c.PowPDiffDiff(l)) *
						c.PowEpsilon(rem) * c.PowHalf(rem) *
						c.PowPSSPlusPDS(xs-k-q) * c.PowPSDPlusPDD(xd-l-r) *
						c.PowH(q+r) * c.PowPSameSame(q) * c.PowPSameDiff(r)
				}
			}
		}
	}
	p *= float64(c.Choose(xs+xd, xs))
	return math.Log(p)
}
