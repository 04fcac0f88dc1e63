package vcf

import "fmt"

// FormatError represents malformed VCF structure with line context.
type FormatError struct {
	Line    int
	Message string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("vcf format error at line %d: %s", e.Line, e.Message)
}

// IOError is returned when a VCF file cannot be opened, read or written.
type IOError struct {
	Op   string // "open", "read", "create", "write"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("vcf %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("vcf %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
