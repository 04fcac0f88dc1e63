// Package vcf provides VCF file parsing and writing.
package vcf

import (
	"strconv"
	"strings"
)

// InfoEntry is a single INFO field: key=value, or a bare flag.
type InfoEntry struct {
	Key   string
	Value string
	Flag  bool // true for flag-type entries without '='
}

// Record represents a single data line from a VCF file.
// Multi-allelic sites are kept as one record; see Alts.
type Record struct {
	Chrom   string // Chromosome name (e.g., "12", "chr12")
	Pos     int64  // 1-based genomic position
	ID      string // Variant identifier (e.g., rs ID)
	Ref     string // Reference allele
	Alt     string // Alternate allele(s), comma-separated
	Qual    string // Quality score as written
	Filter  string // Filter status (PASS or filter name)
	Samples string // FORMAT + sample columns, tab-joined; "" if absent

	info       []InfoEntry
	rawInfo    string
	dirty      bool
	hasSamples bool
}

// Alts returns the alternate alleles of the record.
func (r *Record) Alts() []string {
	return strings.Split(r.Alt, ",")
}

// Info returns the INFO entries in file order.
func (r *Record) Info() []InfoEntry {
	return r.info
}

// GetInfo returns the value for key and whether the key is present.
// Flags return "" and true.
func (r *Record) GetInfo(key string) (string, bool) {
	for _, e := range r.info {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// SetInfo sets key=value. An existing entry is replaced in place;
// otherwise the entry is appended after the existing ones.
func (r *Record) SetInfo(key, value string) {
	r.dirty = true
	for i := range r.info {
		if r.info[i].Key == key {
			r.info[i] = InfoEntry{Key: key, Value: value}
			return
		}
	}
	r.info = append(r.info, InfoEntry{Key: key, Value: value})
}

// SetFlag sets a flag-type INFO entry.
func (r *Record) SetFlag(key string) {
	r.dirty = true
	for i := range r.info {
		if r.info[i].Key == key {
			r.info[i] = InfoEntry{Key: key, Flag: true}
			return
		}
	}
	r.info = append(r.info, InfoEntry{Key: key, Flag: true})
}

// DeleteInfo removes key from INFO. It reports whether the key was present.
func (r *Record) DeleteInfo(key string) bool {
	for i := range r.info {
		if r.info[i].Key == key {
			r.info = append(r.info[:i], r.info[i+1:]...)
			r.dirty = true
			return true
		}
	}
	return false
}

// InfoString returns the INFO column text. Unmodified records return
// the original text unchanged.
func (r *Record) InfoString() string {
	if !r.dirty && r.rawInfo != "" {
		return r.rawInfo
	}
	if len(r.info) == 0 {
		return "."
	}

	var b strings.Builder
	for i, e := range r.info {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(e.Key)
		if !e.Flag {
			b.WriteByte('=')
			b.WriteString(e.Value)
		}
	}
	return b.String()
}

// String formats the record as a VCF data line without a trailing newline.
func (r *Record) String() string {
	var lb strings.Builder
	lb.Grow(128)

	lb.WriteString(r.Chrom)
	lb.WriteByte('\t')
	lb.WriteString(strconv.FormatInt(r.Pos, 10))
	lb.WriteByte('\t')
	lb.WriteString(r.ID)
	lb.WriteByte('\t')
	lb.WriteString(r.Ref)
	lb.WriteByte('\t')
	lb.WriteString(r.Alt)
	lb.WriteByte('\t')
	lb.WriteString(r.Qual)
	lb.WriteByte('\t')
	lb.WriteString(r.Filter)
	lb.WriteByte('\t')
	lb.WriteString(r.InfoString())
	if r.Samples != "" || r.hasSamples {
		lb.WriteByte('\t')
		lb.WriteString(r.Samples)
	}
	return lb.String()
}

// NormalizeChrom returns the chromosome name without "chr" prefix.
func NormalizeChrom(chrom string) string {
	if len(chrom) > 3 && chrom[:3] == "chr" {
		return chrom[3:]
	}
	return chrom
}

// parseInfo parses the INFO column into ordered entries.
func parseInfo(info string) []InfoEntry {
	if info == "." || info == "" {
		return nil
	}

	fields := strings.Split(info, ";")
	entries := make([]InfoEntry, 0, len(fields))
	for _, kv := range fields {
		if kv == "" {
			continue
		}
		key, value, ok := strings.Cut(kv, "=")
		if ok {
			entries = append(entries, InfoEntry{Key: key, Value: value})
		} else {
			// Flag-type INFO field
			entries = append(entries, InfoEntry{Key: key, Flag: true})
		}
	}
	return entries
}
