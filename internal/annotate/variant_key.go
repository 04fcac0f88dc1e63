package annotate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/inodb/vibe-mm/internal/vcf"
)

// Assembly is a reference genome build.
type Assembly string

const (
	GRCh37 Assembly = "GRCh37"
	GRCh38 Assembly = "GRCh38"
)

// ParseAssembly parses an assembly name case-insensitively.
// UCSC aliases hg19 and hg38 are accepted.
func ParseAssembly(s string) (Assembly, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "grch37", "hg19":
		return GRCh37, nil
	case "grch38", "hg38":
		return GRCh38, nil
	}
	return "", fmt.Errorf("unknown assembly %q (expected GRCh37 or GRCh38)", s)
}

// APIName returns the lowercase form used in API query parameters.
func (a Assembly) APIName() string {
	return strings.ToLower(string(a))
}

// RefSeq chromosome accessions per assembly.
var accessions = map[Assembly]map[string]string{
	GRCh37: {
		"1": "NC_000001.10", "2": "NC_000002.11", "3": "NC_000003.11",
		"4": "NC_000004.11", "5": "NC_000005.9", "6": "NC_000006.11",
		"7": "NC_000007.13", "8": "NC_000008.10", "9": "NC_000009.11",
		"10": "NC_000010.10", "11": "NC_000011.9", "12": "NC_000012.11",
		"13": "NC_000013.10", "14": "NC_000014.8", "15": "NC_000015.9",
		"16": "NC_000016.9", "17": "NC_000017.10", "18": "NC_000018.9",
		"19": "NC_000019.9", "20": "NC_000020.10", "21": "NC_000021.8",
		"22": "NC_000022.10", "X": "NC_000023.10", "Y": "NC_000024.9",
	},
	GRCh38: {
		"1": "NC_000001.11", "2": "NC_000002.12", "3": "NC_000003.12",
		"4": "NC_000004.12", "5": "NC_000005.10", "6": "NC_000006.12",
		"7": "NC_000007.14", "8": "NC_000008.11", "9": "NC_000009.12",
		"10": "NC_000010.11", "11": "NC_000011.10", "12": "NC_000012.12",
		"13": "NC_000013.11", "14": "NC_000014.9", "15": "NC_000015.10",
		"16": "NC_000016.10", "17": "NC_000017.11", "18": "NC_000018.10",
		"19": "NC_000019.10", "20": "NC_000020.11", "21": "NC_000021.9",
		"22": "NC_000022.11", "X": "NC_000023.11", "Y": "NC_000024.10",
	},
}

// VariantKey identifies one evidence query: a single allele on one assembly.
type VariantKey struct {
	Chrom    string
	Pos      int64
	Ref      string
	Alt      string
	Assembly Assembly
}

// KeysForRecord returns one key per queryable ALT allele of the record.
// Spanning-deletion ("*") and missing (".") alleles are skipped.
func KeysForRecord(r *vcf.Record, assembly Assembly) []VariantKey {
	var keys []VariantKey
	for _, alt := range r.Alts() {
		if alt == "*" || alt == "." || alt == "" {
			continue
		}
		keys = append(keys, VariantKey{
			Chrom:    r.Chrom,
			Pos:      r.Pos,
			Ref:      r.Ref,
			Alt:      alt,
			Assembly: assembly,
		})
	}
	return keys
}

// String returns a stable identifier, e.g. "GRCh38:12:25245351:C:A".
func (k VariantKey) String() string {
	return fmt.Sprintf("%s:%s:%d:%s:%s", k.Assembly, k.Chrom, k.Pos, k.Ref, k.Alt)
}

// Accession returns the RefSeq accession for the key's chromosome, or the
// chromosome name unchanged when it has no known accession.
func (k VariantKey) Accession() string {
	chrom := vcf.NormalizeChrom(k.Chrom)
	if chrom == "23" {
		chrom = "X"
	} else if chrom == "24" {
		chrom = "Y"
	}
	if acc, ok := accessions[k.Assembly][chrom]; ok {
		return acc
	}
	return k.Chrom
}

// Descriptor formats the key as a genomic HGVS-style description accepted
// by the suggestions endpoint, e.g. "NC_000012.12:g.25245351C>A".
func (k VariantKey) Descriptor() string {
	ref, alt := k.Ref, k.Alt
	if ref == "." {
		ref = ""
	}
	if alt == "." {
		alt = ""
	}

	var b strings.Builder
	b.WriteString(k.Accession())
	b.WriteString(":g.")
	b.WriteString(strconv.FormatInt(k.Pos, 10))

	switch {
	case len(ref) == 1 && len(alt) == 1:
		b.WriteString(ref)
		b.WriteByte('>')
	case len(ref) == 0:
		b.WriteString("ins")
	default:
		if len(ref) > 1 {
			b.WriteByte('_')
			b.WriteString(strconv.FormatInt(k.Pos+int64(len(ref))-1, 10))
		}
		if len(alt) == 0 {
			b.WriteString("del")
		} else {
			b.WriteString("delins")
		}
	}
	b.WriteString(alt)
	return b.String()
}
