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
package main

/*
cellsim-matrix computes a cell-by-cell genotype-similarity matrix from one
or more pileup TSV files and writes it out as TSV.
*/

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/base/vcontext"

	"github.com/scgenome/cellsim/pileupio"
	"github.com/scgenome/cellsim/simwindow"
)

var (
	seqErrorRate      = flag.Float64("seq-error-rate", 0.001, "Sequencing error rate theta")
	mutationRate      = flag.Float64("mutation-rate", 0, "Mutation rate epsilon")
	hzygousProb       = flag.Float64("hzygous-prob", 0, "Heterozygous-site rate h")
	maxFragmentLength = flag.Int("max-fragment-length", 1000, "Upper bound on any read's span, and on x_s+x_d")
	numThreads        = flag.Int("num-threads", 8, "Number of scoring worker threads")
	normalization     = flag.String("normalization", "ADD_MIN", "Output normalization; one of ADD_MIN, EXPONENTIATE, SCALE_MAX_1")
	outPath           = flag.String("out", "cellsim-matrix.tsv", "Output TSV path")
)

func cellsimMatrixUsage() {
	fmt.Printf("Usage: %s [OPTIONS] pileup.tsv [pileup2.tsv ...]\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = cellsimMatrixUsage
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() < 1 {
		log.Fatalf("Missing positional arguments (at least one pileup TSV path required); please check flag syntax: '%s'", strings.Join(flag.Args(), " "))
	}
	mode, ok := simwindow.ParseMode(*normalization)
	if !ok {
		log.Fatalf("-normalization=%q is not one of ADD_MIN, EXPONENTIATE, SCALE_MAX_1", *normalization)
	}

	ctx := vcontext.Background()
	res, err := pileupio.ReadFiles(ctx, flag.Args())
	if err != nil {
		log.Panicf("%v", err)
	}

	cfg := simwindow.Config{
		NumCells:          res.NumCells,
		MaxFragmentLength: *maxFragmentLength,
		CellIndex:         res.CellIndex,
		Epsilon:           *mutationRate,
		H:                 *hzygousProb,
		Theta:             *seqErrorRate,
		NumThreads:        *numThreads,
		Normalization:     mode,
	}
	driver, err := simwindow.New(cfg)
	if err != nil {
		log.Panicf("%v", err)
	}

	m, err := driver.Run(res.ChromosomeStreams())
	if err != nil {
		log.Panicf("%v", err)
	}

	out, err := file.Create(ctx, *outPath)
	if err != nil {
		log.Panicf("%v", err)
	}
	defer file.CloseAndReport(ctx, out, &err)

	if err := writeMatrixTSV(m, res.NumCells, out.Writer(ctx)); err != nil {
		log.Panicf("%v", err)
	}
	log.Debug.Printf("exiting")
}

func writeMatrixTSV(m matrixAt, n int, w interface{ Write([]byte) (int, error) }) error {
	tsvWriter := tsv.NewWriter(w)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			tsvWriter.WriteString(strconv.FormatFloat(m.At(i, j), 'g', -1, 64))
		}
		if err := tsvWriter.EndLine(); err != nil {
			return err
		}
	}
	return tsvWriter.Flush()
}

// matrixAt is the subset of gonum.org/v1/gonum/mat.Matrix this command
// needs, named locally so writeMatrixTSV does not have to import gonum just
// to spell the parameter type.
type matrixAt interface {
	At(i, j int) float64
}
