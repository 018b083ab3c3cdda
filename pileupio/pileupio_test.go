package pileupio_test

import (
	"path/filepath"
	"testing"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"

	"github.com/scgenome/cellsim/pileupio"
)

func writeTestFile(t *testing.T, dir, name, contents string) string {
	ctx := vcontext.Background()
	path := filepath.Join(dir, name)
	out, err := file.Create(ctx, path)
	assert.NoError(t, err)
	_, err = out.Writer(ctx).Write([]byte(contents))
	assert.NoError(t, err)
	assert.NoError(t, out.Close(ctx))
	return path
}

func TestReadFilesParsesRowsAndBuildsCellIndex(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	contents := "chrom\tpos\tdepth\tbases\tcells\tread_ids\n" +
		"22\t10719571\t2\tTAG\t0,0,3\t1,2,3\n" +
		"22\t10719572\t1\tA\t3\t4\n"
	path := writeTestFile(t, tmpdir, "test.pileup.tsv", contents)

	ctx := vcontext.Background()
	res, err := pileupio.ReadFiles(ctx, []string{path})
	assert.NoError(t, err)

	if res.NumCells != 2 {
		t.Fatalf("NumCells = %d, want 2", res.NumCells)
	}
	if len(res.ChromOrder) != 1 || res.ChromOrder[0] != "22" {
		t.Fatalf("ChromOrder = %v, want [22]", res.ChromOrder)
	}
	chrom := res.Chromosomes["22"]
	if len(chrom) != 2 {
		t.Fatalf("len(Chromosomes[22]) = %d, want 2", len(chrom))
	}
	if len(chrom[0].Observations) != 3 {
		t.Fatalf("len(Observations) = %d, want 3", len(chrom[0].Observations))
	}
}

func TestReadFilesRejectsMismatchedColumns(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	contents := "chrom\tpos\tdepth\tbases\tcells\tread_ids\n" +
		"22\t10719571\t2\tTAG\t0,0\t1,2,3\n" // cells has only 2 entries for 3 bases
	path := writeTestFile(t, tmpdir, "bad.pileup.tsv", contents)

	ctx := vcontext.Background()
	_, err := pileupio.ReadFiles(ctx, []string{path})
	if err == nil {
		t.Fatal("ReadFiles with mismatched column lengths should return an error")
	}
}
