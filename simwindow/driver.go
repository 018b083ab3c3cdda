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

// Package simwindow is the cell-pair similarity engine's sliding-window
// driver: it streams genomic position records in order, tracks which reads
// are still "active" (within max_fragment_length of their start), batches
// completed reads for parallel pairwise scoring, and assembles the scored
// contributions into a normalized cell-by-cell similarity matrix.
package simwindow

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/traverse"
	"gonum.org/v1/gonum/mat"

	"github.com/scgenome/cellsim/pairscore"
	"github.com/scgenome/cellsim/probcache"
	"github.com/scgenome/cellsim/probkernel"
)

// batchSize is B in "flush when completed >= B*numThreads".
const batchSize = 4

// Driver runs the engine end to end: Run consumes a set of chromosome
// streams and returns the normalized similarity matrix.
type Driver struct {
	cfg    Config
	cache  *probcache.Cache
	kernel *probkernel.Kernel
}

// New validates cfg and builds a Driver, precomputing the probability cache.
func New(cfg Config) (*Driver, error) {
	if cfg.NumCells < 0 {
		return nil, errors.E("simwindow.New", fmt.Sprintf("num_cells=%d must be >= 0", cfg.NumCells))
	}
	if cfg.NumThreads < 1 {
		return nil, errors.E("simwindow.New", fmt.Sprintf("num_threads=%d must be >= 1", cfg.NumThreads))
	}
	switch cfg.Normalization {
	case AddMin, Exponentiate, ScaleMax1:
	default:
		return nil, errors.E("simwindow.New", fmt.Sprintf("normalization=%d is not a known mode", cfg.Normalization))
	}
	cache, err := probcache.NewCache(cfg.Epsilon, cfg.H, cfg.Theta, cfg.MaxFragmentLength)
	if err != nil {
		return nil, errors.E(err, "simwindow.New")
	}
	return &Driver{
		cfg:    cfg,
		cache:  cache,
		kernel: probkernel.New(cache),
	}, nil
}

// window is the driver's per-chromosome mutable state, reset at every
// chromosome boundary.
type window struct {
	active    map[uint32]*pairscore.ActiveRead
	order     []uint32
	completed int
}

func newWindow() *window {
	return &window{active: make(map[uint32]*pairscore.ActiveRead)}
}

// Run streams chromosomes in order and returns the normalized N x N
// similarity matrix. An empty chromosomes slice, or chromosomes that
// contribute no cross-cell overlaps, yields the all-zero matrix under AddMin
// and ScaleMax1; under Exponentiate every off-diagonal entry is 0.5
// (1 / (1 + exp(0))) and the diagonal is zero.
func (d *Driver) Run(chromosomes [][]PosRecord) (*mat.SymDense, error) {
	n := d.cfg.NumCells
	same := mat.NewSymDense(n, nil)
	diff := mat.NewSymDense(n, nil)

	for _, chrom := range chromosomes {
		w := newWindow()
		for _, p := range chrom {
			if err := d.ageAndFlush(w, p.Position, same, diff); err != nil {
				return nil, err
			}
			d.ingest(w, p)
		}
		// Residual pass: every read still in w.order -- whether or not it
		// had already aged out -- has never been pairwise-scored, since a
		// threshold-triggered flush always scores and discards its prefix
		// before returning. Score the whole thing.
		w.completed = len(w.order)
		if err := d.flush(w, same, diff); err != nil {
			return nil, err
		}
	}

	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			m.SetSym(i, j, diff.At(i, j)-same.At(i, j))
		}
	}
	normalize(m, d.cfg.Normalization)
	return m, nil
}

// ageAndFlush advances w.completed past every active read that has aged out
// as of position, then flushes a batch if the threshold is met.
func (d *Driver) ageAndFlush(w *window, position uint32, same, diff *mat.SymDense) error {
	l := uint32(d.cfg.MaxFragmentLength)
	for w.completed < len(w.order) {
		r := w.active[w.order[w.completed]]
		if r.Start+l > position {
			break
		}
		w.completed++
	}
	if w.completed >= batchSize*d.cfg.NumThreads {
		return d.flush(w, same, diff)
	}
	return nil
}

// flush scores every pair among the first w.completed reads in w.order
// against the rest of w.order, drains the results into same/diff, then
// drops the scored prefix.
func (d *Driver) flush(w *window, same, diff *mat.SymDense) error {
	completed := w.completed
	if completed == 0 {
		return nil
	}

	staged := make([][]pairscore.Update, completed)
	err := traverse.T{Limit: d.cfg.NumThreads}.Each(completed, func(i int) error {
		ri := w.active[w.order[i]]
		ii := d.cfg.CellIndex[ri.CellID]
		var local []pairscore.Update
		for j := i + 1; j < len(w.order); j++ {
			rj := w.active[w.order[j]]
			jj := d.cfg.CellIndex[rj.CellID]
			if u, ok := pairscore.Score(d.kernel, ri, rj, ii, jj); ok {
				local = append(local, u)
			}
		}
		staged[i] = local
		return nil
	})
	if err != nil {
		return errors.E(err, "simwindow: parallel scoring region")
	}

	for _, updates := range staged {
		for _, u := range updates {
			same.SetSym(u.I, u.J, same.At(u.I, u.J)+u.LogSame)
			diff.SetSym(u.I, u.J, diff.At(u.I, u.J)+u.LogDiff)
		}
	}

	for _, id := range w.order[:completed] {
		delete(w.active, id)
	}
	w.order = w.order[completed:]
	w.completed = 0
	return nil
}

// ingest applies one position record's observations to w, opening new
// active reads, appending to existing ones, or applying the paired-end
// coalescing rule.
func (d *Driver) ingest(w *window, p PosRecord) {
	for _, obs := range p.Observations {
		r, ok := w.active[obs.ReadID]
		if !ok {
			r = &pairscore.ActiveRead{
				CellID:    obs.CellID,
				Start:     p.Position,
				Positions: []uint32{p.Position},
				Bases:     []byte{obs.Base},
			}
			w.active[obs.ReadID] = r
			w.order = append(w.order, obs.ReadID)
			continue
		}
		last := len(r.Positions) - 1
		if r.Positions[last] == p.Position {
			d.coalesce(r, last, obs.Base)
			continue
		}
		r.Positions = append(r.Positions, p.Position)
		r.Bases = append(r.Bases, obs.Base)
	}
}

// coalesce applies the paired-end overlap rule to the already-recorded base
// at index last when a second observation arrives at the same position.
func (d *Driver) coalesce(r *pairscore.ActiveRead, last int, base byte) {
	if d.cfg.LegacyCoalescing {
		return
	}
	if r.Bases[last] != base {
		r.Positions = r.Positions[:last]
		r.Bases = r.Bases[:last]
	}
}
