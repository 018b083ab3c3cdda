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

// Package pileupio is a reference collaborator that reads a textual pileup
// TSV into the [][]simwindow.PosRecord shape the similarity engine expects.
// It is a convenience wrapper, not a dependency of the engine: nothing in
// package simwindow imports this package.
package pileupio

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"

	"github.com/scgenome/cellsim/bases"
	"github.com/scgenome/cellsim/simwindow"
)

// row is one line of the pileup TSV format:
//
//	chromosome_id  position  coverage  bases  cells  read_ids
//
// e.g. "22  10719571  2  TAG  0,0,3  read_id1,read_id2,read_id3" means three
// base-observations at that position: cell 0 read 'T' and 'A', cell 3 read
// 'G', covering 2 distinct cells.
type row struct {
	Chrom   string `tsv:"chrom"`
	Pos     uint32 `tsv:"pos"`
	Depth   int    `tsv:"depth"`
	Bases   string `tsv:"bases"`
	Cells   string `tsv:"cells"`
	ReadIDs string `tsv:"read_ids"`
}

// Result is the decoded form of one or more pileup files: a chromosome
// stream per distinct Chrom value encountered, in first-seen order, plus the
// cell_id -> compact cell index map the engine needs.
type Result struct {
	ChromOrder  []string
	Chromosomes map[string][]simwindow.PosRecord
	CellIndex   map[uint16]int
	NumCells    int
}

// ReadFiles reads and merges one or more pileup TSV files (optionally
// .gz/.zst-compressed, transparently). Within each file, rows must already
// be sorted by position; files are merged by chromosome name, not
// interleaved.
func ReadFiles(ctx context.Context, paths []string) (*Result, error) {
	res := &Result{
		Chromosomes: make(map[string][]simwindow.PosRecord),
		CellIndex:   make(map[uint16]int),
	}
	seenChrom := make(map[string]bool)
	seenCell := make(map[uint16]bool)

	for _, path := range paths {
		if err := res.readOne(ctx, path, seenChrom, seenCell); err != nil {
			return nil, errors.E(err, fmt.Sprintf("pileupio.ReadFiles: %s", path))
		}
	}

	cellIDs := make([]uint16, 0, len(seenCell))
	for id := range seenCell {
		cellIDs = append(cellIDs, id)
	}
	sort.Slice(cellIDs, func(i, j int) bool { return cellIDs[i] < cellIDs[j] })
	for i, id := range cellIDs {
		res.CellIndex[id] = i
	}
	res.NumCells = len(cellIDs)

	return res, nil
}

func (res *Result) readOne(ctx context.Context, path string, seenChrom map[string]bool, seenCell map[uint16]bool) error {
	f, err := file.Open(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close(ctx)
	}()

	reader, _ := compress.NewReader(f.Reader(ctx))
	defer func() {
		_ = reader.Close()
	}()

	tsvReader := tsv.NewReader(reader)
	tsvReader.Comment = '#'

	for {
		var r row
		if err := tsvReader.Read(&r); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		obs, err := parseObservations(r)
		if err != nil {
			return err
		}
		if !seenChrom[r.Chrom] {
			seenChrom[r.Chrom] = true
			res.ChromOrder = append(res.ChromOrder, r.Chrom)
		}
		for _, o := range obs {
			seenCell[o.CellID] = true
		}
		res.Chromosomes[r.Chrom] = append(res.Chromosomes[r.Chrom], simwindow.PosRecord{
			Position:     r.Pos,
			Observations: obs,
		})
	}
	return nil
}

// parseObservations decodes a row's Bases/Cells/ReadIDs comma/char columns
// into the engine's Observation triples.
func parseObservations(r row) ([]simwindow.Observation, error) {
	cellStrs := strings.Split(r.Cells, ",")
	readIDStrs := strings.Split(r.ReadIDs, ",")
	if len(r.Bases) != len(cellStrs) || len(r.Bases) != len(readIDStrs) {
		return nil, errors.E(fmt.Sprintf(
			"pileupio: row at %s:%d has mismatched bases/cells/read_ids lengths (%d/%d/%d)",
			r.Chrom, r.Pos, len(r.Bases), len(cellStrs), len(readIDStrs)))
	}
	obs := make([]simwindow.Observation, len(r.Bases))
	for i := 0; i < len(r.Bases); i++ {
		base, ok := bases.FromASCII(r.Bases[i])
		if !ok {
			return nil, errors.E(fmt.Sprintf("pileupio: row at %s:%d has unrecognized base %q", r.Chrom, r.Pos, r.Bases[i]))
		}
		cellID, err := strconv.ParseUint(strings.TrimSpace(cellStrs[i]), 10, 16)
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("pileupio: row at %s:%d cell_id %q", r.Chrom, r.Pos, cellStrs[i]))
		}
		readID, err := strconv.ParseUint(strings.TrimSpace(readIDStrs[i]), 10, 32)
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("pileupio: row at %s:%d read_id %q", r.Chrom, r.Pos, readIDStrs[i]))
		}
		obs[i] = simwindow.Observation{
			ReadID: uint32(readID),
			CellID: uint16(cellID),
			Base:   byte(base),
		}
	}
	return obs, nil
}

// ChromosomeStreams returns the decoded chromosomes in first-seen order,
// ready to hand to (*simwindow.Driver).Run.
func (res *Result) ChromosomeStreams() [][]simwindow.PosRecord {
	out := make([][]simwindow.PosRecord, 0, len(res.ChromOrder))
	for _, c := range res.ChromOrder {
		out = append(out, res.Chromosomes[c])
	}
	return out
}
