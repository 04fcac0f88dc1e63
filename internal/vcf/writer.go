package vcf

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Writer writes VCF header and records to an output stream.
type Writer struct {
	w    *bufio.Writer
	gz   *gzip.Writer
	file *os.File
	path string
}

// NewWriter creates a VCF writer on top of w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Create creates the output file at path. Paths ending in ".gz" are
// gzip-compressed; "-" writes to stdout.
func Create(path string) (*Writer, error) {
	if path == "-" || path == "" {
		return NewWriter(os.Stdout), nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, &IOError{Op: "create", Path: path, Err: err}
	}

	vw := &Writer{file: f, path: path}
	if strings.HasSuffix(path, ".gz") {
		vw.gz = gzip.NewWriter(f)
		vw.w = bufio.NewWriter(vw.gz)
	} else {
		vw.w = bufio.NewWriter(f)
	}
	return vw, nil
}

// WriteHeader writes all meta lines followed by the #CHROM line.
func (vw *Writer) WriteHeader(h *Header) error {
	for _, line := range h.Lines() {
		if err := vw.writeLine(line); err != nil {
			return err
		}
	}
	return nil
}

// Write writes a single record as one tab-separated line.
func (vw *Writer) Write(r *Record) error {
	return vw.writeLine(r.String())
}

func (vw *Writer) writeLine(line string) error {
	if _, err := vw.w.WriteString(line); err != nil {
		return &IOError{Op: "write", Path: vw.path, Err: err}
	}
	if err := vw.w.WriteByte('\n'); err != nil {
		return &IOError{Op: "write", Path: vw.path, Err: err}
	}
	return nil
}

// Flush flushes buffered output to the underlying writer.
func (vw *Writer) Flush() error {
	if err := vw.w.Flush(); err != nil {
		return &IOError{Op: "write", Path: vw.path, Err: err}
	}
	return nil
}

// Close flushes and closes any compressor and file owned by the writer.
func (vw *Writer) Close() error {
	if err := vw.Flush(); err != nil {
		return err
	}
	if vw.gz != nil {
		if err := vw.gz.Close(); err != nil {
			return &IOError{Op: "write", Path: vw.path, Err: err}
		}
	}
	if vw.file != nil {
		if err := vw.file.Close(); err != nil {
			return &IOError{Op: "write", Path: vw.path, Err: err}
		}
	}
	return nil
}
