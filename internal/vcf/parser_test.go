package vcf

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_SingleVariant(t *testing.T) {
	testFile := findTestFile(t, "kras_g12c.vcf")

	parser, err := NewParser(testFile)
	require.NoError(t, err)
	defer parser.Close()

	r, err := parser.Next()
	require.NoError(t, err)
	require.NotNil(t, r)

	// KRAS G12C on reverse strand: coding G->T = genomic C->A
	assert.Equal(t, "12", r.Chrom)
	assert.Equal(t, int64(25245351), r.Pos)
	assert.Equal(t, "rs121913529", r.ID)
	assert.Equal(t, "C", r.Ref)
	assert.Equal(t, "A", r.Alt)
	assert.Equal(t, "100", r.Qual)
	assert.Equal(t, "PASS", r.Filter)

	dp, ok := r.GetInfo("DP")
	assert.True(t, ok)
	assert.Equal(t, "50", dp)

	// No more records
	r2, err := parser.Next()
	require.NoError(t, err)
	assert.Nil(t, r2)
}

func TestParser_MultipleVariants(t *testing.T) {
	testFile := findTestFile(t, "multi_variant.vcf")

	parser, err := NewParser(testFile)
	require.NoError(t, err)
	defer parser.Close()

	var records []*Record
	for {
		r, err := parser.Next()
		require.NoError(t, err)
		if r == nil {
			break
		}
		records = append(records, r)
	}

	require.Len(t, records, 5)
	assert.Equal(t, []string{"A", "T"}, records[1].Alts())
	assert.Equal(t, "GT\t1/2\t0/0", records[1].Samples)
	assert.Empty(t, records[2].Info())
	assert.Equal(t, []string{"TUMOR", "NORMAL"}, parser.Header().SampleNames())
}

func TestParser_Header(t *testing.T) {
	testFile := findTestFile(t, "kras_g12c.vcf")

	parser, err := NewParser(testFile)
	require.NoError(t, err)
	defer parser.Close()

	h := parser.Header()
	require.NotNil(t, h)
	assert.Equal(t, "##fileformat=VCFv4.2", h.Meta[0])
	assert.True(t, strings.HasPrefix(h.Columns, "#CHROM"))
	assert.True(t, h.HasInfo("DP"))
	assert.False(t, h.HasInfo("MM"))
	assert.Nil(t, h.SampleNames())
}

func TestParser_InfoFlagsAndOrder(t *testing.T) {
	input := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
		"1\t100\t.\tA\tG\t.\tPASS\tZ=1;SOMATIC;A=x=y;E=\n"

	p, err := NewParserFromReader(strings.NewReader(input))
	require.NoError(t, err)

	r, err := p.Next()
	require.NoError(t, err)
	require.NotNil(t, r)

	assert.Equal(t, []InfoEntry{
		{Key: "Z", Value: "1"},
		{Key: "SOMATIC", Flag: true},
		{Key: "A", Value: "x=y"},
		{Key: "E", Value: ""},
	}, r.Info())
}

func TestParser_TooFewColumns(t *testing.T) {
	input := "##fileformat=VCFv4.2\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
		"1\t100\t.\tA\tG\t.\tPASS\n"

	p, err := NewParserFromReader(strings.NewReader(input))
	require.NoError(t, err)

	_, err = p.Next()
	var fe *FormatError
	require.True(t, errors.As(err, &fe), "expected FormatError, got %v", err)
	assert.Equal(t, 3, fe.Line)
	assert.Contains(t, fe.Message, "found 7")
}

func TestParser_MissingColumnHeader(t *testing.T) {
	input := "##fileformat=VCFv4.2\n" +
		"1\t100\t.\tA\tG\t.\tPASS\t.\n"

	_, err := NewParserFromReader(strings.NewReader(input))
	var fe *FormatError
	require.True(t, errors.As(err, &fe), "expected FormatError, got %v", err)
	assert.Equal(t, 2, fe.Line)
}

func TestParser_BadHeaderLines(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		line    int
		message string
	}{
		{
			name:    "blank line",
			input:   "##fileformat=VCFv4.2\n\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n",
			line:    2,
			message: "blank line in header",
		},
		{
			name:    "single hash comment",
			input:   "##fileformat=VCFv4.2\n# note\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n",
			line:    2,
			message: "must start with ## or #CHROM",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParserFromReader(strings.NewReader(tt.input))
			var fe *FormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.line, fe.Line)
			assert.Contains(t, fe.Message, tt.message)
			assert.NotContains(t, fe.Message, "missing")
		})
	}
}

func TestParser_BlankLines(t *testing.T) {
	header := "##fileformat=VCFv4.2\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n"
	record := "1\t100\t.\tA\tG\t.\tPASS\t.\n"

	t.Run("between records", func(t *testing.T) {
		p, err := NewParserFromReader(strings.NewReader(header + record + "\n" + record))
		require.NoError(t, err)

		r, err := p.Next()
		require.NoError(t, err)
		require.NotNil(t, r)

		_, err = p.Next()
		var fe *FormatError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, 4, fe.Line)
		assert.Contains(t, fe.Message, "blank line")
	})

	t.Run("trailing", func(t *testing.T) {
		p, err := NewParserFromReader(strings.NewReader(header + record + "\n\n"))
		require.NoError(t, err)

		r, err := p.Next()
		require.NoError(t, err)
		require.NotNil(t, r)

		r, err = p.Next()
		require.NoError(t, err)
		assert.Nil(t, r)
	})
}

func TestParser_EmptyInput(t *testing.T) {
	_, err := NewParserFromReader(strings.NewReader(""))
	var fe *FormatError
	assert.True(t, errors.As(err, &fe))
}

func TestParser_InvalidPosition(t *testing.T) {
	for _, pos := range []string{"abc", "0", "-5"} {
		t.Run(pos, func(t *testing.T) {
			input := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
				"1\t" + pos + "\t.\tA\tG\t.\tPASS\t.\n"
			p, err := NewParserFromReader(strings.NewReader(input))
			require.NoError(t, err)

			_, err = p.Next()
			var fe *FormatError
			assert.True(t, errors.As(err, &fe))
		})
	}
}

func TestParser_NoTrailingNewline(t *testing.T) {
	input := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
		"1\t100\t.\tA\tG\t.\tPASS\tDP=1"

	p, err := NewParserFromReader(strings.NewReader(input))
	require.NoError(t, err)

	r, err := p.Next()
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "DP=1", r.InfoString())

	r, err = p.Next()
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestParser_Gzip(t *testing.T) {
	src, err := os.ReadFile(findTestFile(t, "multi_variant.vcf"))
	require.NoError(t, err)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err = zw.Write(src)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "multi_variant.vcf.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	p, err := NewParser(path)
	require.NoError(t, err)
	defer p.Close()

	n := 0
	for {
		r, err := p.Next()
		require.NoError(t, err)
		if r == nil {
			break
		}
		n++
	}
	assert.Equal(t, 5, n)
}

func TestParser_MissingFile(t *testing.T) {
	_, err := NewParser("/nonexistent/input.vcf")
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "open", ioErr.Op)
	assert.True(t, os.IsNotExist(errors.Unwrap(err)))
}

func TestFormatError(t *testing.T) {
	err := &FormatError{
		Line:    42,
		Message: "expected at least 8 columns, found 7",
	}
	assert.Equal(t, "vcf format error at line 42: expected at least 8 columns, found 7", err.Error())
}

// findTestFile locates a test file in the testdata directory.
func findTestFile(t *testing.T, name string) string {
	t.Helper()

	paths := []string{
		filepath.Join("testdata", name),
		filepath.Join("..", "..", "testdata", name),
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	t.Fatalf("Test file not found: %s", name)
	return ""
}
