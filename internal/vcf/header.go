package vcf

import (
	"fmt"
	"strings"
)

// InfoDef describes an ##INFO header declaration.
type InfoDef struct {
	ID          string
	Number      string // "1", "A", "R", "G", "." ...
	Type        string // Integer, Float, Flag, Character, String
	Description string
}

// Line renders the declaration as a header meta line.
func (d InfoDef) Line() string {
	desc := strings.ReplaceAll(d.Description, `"`, `\"`)
	return fmt.Sprintf("##INFO=<ID=%s,Number=%s,Type=%s,Description=\"%s\">", d.ID, d.Number, d.Type, desc)
}

// Header holds the VCF meta lines and the #CHROM column line in file order.
type Header struct {
	Meta    []string // ## lines, without trailing newline
	Columns string   // the #CHROM line
}

// Lines returns all header lines in output order.
func (h *Header) Lines() []string {
	lines := make([]string, 0, len(h.Meta)+1)
	lines = append(lines, h.Meta...)
	return append(lines, h.Columns)
}

// SampleNames returns sample names from the #CHROM header line.
// Returns nil if no sample columns are present.
func (h *Header) SampleNames() []string {
	fields := strings.Split(h.Columns, "\t")
	if len(fields) > 9 {
		return fields[9:]
	}
	return nil
}

// HasInfo reports whether an ##INFO line with the given ID is declared.
func (h *Header) HasInfo(id string) bool {
	prefix := "##INFO=<ID=" + id + ","
	for _, line := range h.Meta {
		if strings.HasPrefix(line, prefix) || line == "##INFO=<ID="+id+">" {
			return true
		}
	}
	return false
}

// AddInfo appends the declaration after the existing meta lines, directly
// before the #CHROM line. It is a no-op if the ID is already declared and
// reports whether a line was added.
func (h *Header) AddInfo(d InfoDef) bool {
	if h.HasInfo(d.ID) {
		return false
	}
	h.Meta = append(h.Meta, d.Line())
	return true
}
