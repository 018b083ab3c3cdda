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

// Package pairscore counts matching and mismatching bases between a pair of
// overlapping reads and turns that count pair into two staged log-likelihood
// updates, without ever touching a shared matrix directly.
package pairscore

import "github.com/scgenome/cellsim/probkernel"

// ActiveRead is one read the sliding-window driver is currently tracking.
// Positions and Bases are parallel, ordered by increasing Position.
type ActiveRead struct {
	CellID    uint16
	Start     uint32
	Positions []uint32
	Bases     []byte // values in [0, 4), see package bases
}

// Update is one staged contribution to the "same genotype" or "different
// genotype" accumulator matrix, destined for cell indices I and J.
type Update struct {
	I, J    int
	LogSame float64
	LogDiff float64
}

// Score compares r1 and r2 and, unless one of the skip conditions applies,
// returns the staged update for the cell-index pair (i, j). ok is false when
// the pair contributes nothing: same cell, disjoint position ranges, or zero
// overlap (x_s == x_d == 0).
func Score(k *probkernel.Kernel, r1, r2 *ActiveRead, i, j int) (Update, bool) {
	if r1.CellID == r2.CellID {
		return Update{}, false
	}
	if len(r1.Positions) == 0 || len(r2.Positions) == 0 {
		return Update{}, false
	}
	if r1.Positions[len(r1.Positions)-1] < r2.Positions[0] || r2.Positions[len(r2.Positions)-1] < r1.Positions[0] {
		return Update{}, false
	}

	xs, xd := overlap(r1, r2)
	if xs == 0 && xd == 0 {
		return Update{}, false
	}

	return Update{
		I:       i,
		J:       j,
		LogSame: k.LogProbSame(xs, xd),
		LogDiff: k.LogProbDiff(xs, xd),
	}, true
}

// overlap merge-scans the two reads' (monotone non-decreasing) position
// sequences and returns the count of positions at which both reads have an
// observation and agree (x_s) or disagree (x_d).
func overlap(r1, r2 *ActiveRead) (xs, xd int) {
	a, b := 0, 0
	for a < len(r1.Positions) && b < len(r2.Positions) {
		pa, pb := r1.Positions[a], r2.Positions[b]
		switch {
		case pa < pb:
			a++
		case pb < pa:
			b++
		default:
			if r1.Bases[a] == r2.Bases[b] {
				xs++
			} else {
				xd++
			}
			a++
			b++
		}
	}
	return xs, xd
}
