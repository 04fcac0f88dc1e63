package vcf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Parser reads records from a VCF file.
type Parser struct {
	reader     *bufio.Reader
	file       *os.File
	gzipReader *gzip.Reader
	path       string
	lineNumber int
	header     *Header
	eof        bool
}

// NewParser creates a new VCF parser for the given file.
// Supports both plain VCF and gzipped VCF (.vcf.gz) files.
func NewParser(path string) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}

	p := &Parser{file: file, path: path}

	// Check for gzip magic bytes
	br := bufio.NewReader(file)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		file.Close()
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}

	// Check for gzip magic number (0x1f, 0x8b)
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		p.gzipReader, err = gzip.NewReader(br)
		if err != nil {
			file.Close()
			return nil, &IOError{Op: "read", Path: path, Err: fmt.Errorf("create gzip reader: %w", err)}
		}
		p.reader = bufio.NewReader(p.gzipReader)
	} else {
		p.reader = br
	}

	if err := p.parseHeader(); err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader (e.g., stdin).
func NewParserFromReader(r io.Reader) (*Parser, error) {
	p := &Parser{
		reader: bufio.NewReader(r),
	}

	if err := p.parseHeader(); err != nil {
		return nil, err
	}

	return p, nil
}

// readLine returns the next line without its line terminator. The final
// line of a file is returned even if it lacks a newline.
func (p *Parser) readLine() (string, error) {
	if p.eof {
		return "", io.EOF
	}
	line, err := p.reader.ReadString('\n')
	if err != nil {
		if err != io.EOF {
			return "", &IOError{Op: "read", Path: p.path, Err: err}
		}
		p.eof = true
		if line == "" {
			return "", io.EOF
		}
	}
	p.lineNumber++
	return strings.TrimRight(line, "\r\n"), nil
}

// parseHeader reads meta lines up to and including the #CHROM line.
func (p *Parser) parseHeader() error {
	h := &Header{}
	for {
		line, err := p.readLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		if strings.HasPrefix(line, "##") {
			h.Meta = append(h.Meta, line)
			continue
		}

		if strings.HasPrefix(line, "#CHROM") {
			h.Columns = line
			p.header = h
			return nil
		}

		switch {
		case line == "":
			return &FormatError{Line: p.lineNumber, Message: "blank line in header"}
		case strings.HasPrefix(line, "#"):
			return &FormatError{
				Line:    p.lineNumber,
				Message: "header line must start with ## or #CHROM",
			}
		}

		// Data line encountered without #CHROM
		return &FormatError{
			Line:    p.lineNumber,
			Message: "column header line (#CHROM) missing before first data line",
		}
	}

	return &FormatError{
		Line:    p.lineNumber,
		Message: "no #CHROM header line found",
	}
}

// Header returns the parsed VCF header.
func (p *Parser) Header() *Header {
	return p.header
}

// Next reads the next record from the VCF file.
// Returns nil, nil when there are no more records. Blank lines are only
// accepted at the end of the file.
func (p *Parser) Next() (*Record, error) {
	blank := 0
	for {
		line, err := p.readLine()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if line == "" {
			if blank == 0 {
				blank = p.lineNumber
			}
			continue
		}
		if blank > 0 {
			return nil, &FormatError{Line: blank, Message: "blank line between data records"}
		}
		return p.parseLine(line)
	}
}

// parseLine parses a single VCF data line into a Record.
func (p *Parser) parseLine(line string) (*Record, error) {
	fields := strings.SplitN(line, "\t", 9)
	if len(fields) < 8 {
		return nil, &FormatError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("expected at least 8 columns, found %d", len(fields)),
		}
	}

	pos, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || pos <= 0 {
		return nil, &FormatError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("invalid position: %s", fields[1]),
		}
	}

	r := &Record{
		Chrom:   fields[0],
		Pos:     pos,
		ID:      fields[2],
		Ref:     fields[3],
		Alt:     fields[4],
		Qual:    fields[5],
		Filter:  fields[6],
		info:    parseInfo(fields[7]),
		rawInfo: fields[7],
	}

	// Capture FORMAT + sample columns if present
	if len(fields) > 8 {
		r.Samples = fields[8]
		r.hasSamples = true
	}

	return r, nil
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	if p.gzipReader != nil {
		p.gzipReader.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}
