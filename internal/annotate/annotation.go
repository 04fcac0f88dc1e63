package annotate

import (
	"strconv"
	"strings"

	"github.com/inodb/vibe-mm/internal/vcf"
)

// DefaultInfoKey is the INFO key that carries evidence annotations.
const DefaultInfoKey = "MM"

// Evidence sub-field names in encoding order.
var evidenceFields = []string{
	"Allele",
	"Variant",
	"ArticleCount",
	"PMIDs",
	"Tags",
}

// InfoDefinition returns the ##INFO declaration for the evidence key.
func InfoDefinition(key string) vcf.InfoDef {
	return vcf.InfoDef{
		ID:     key,
		Number: ".",
		Type:   "String",
		Description: "Mastermind literature evidence. Entries separated by '|'. Format: " +
			strings.Join(evidenceFields, ":") +
			" (PMIDs and Tags separated by '&', values percent-encoded)",
	}
}

// EncodeEvidence formats one evidence item for the given allele.
func EncodeEvidence(allele string, ev Evidence) string {
	var b strings.Builder
	b.WriteString(escapeField(allele))
	b.WriteByte(':')
	b.WriteString(escapeField(ev.Variant))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(ev.ArticleCount))
	b.WriteByte(':')
	writeList(&b, ev.PMIDs)
	b.WriteByte(':')
	writeList(&b, ev.Tags)
	return b.String()
}

// EncodeInfoValue joins encoded entries into a single INFO value.
func EncodeInfoValue(entries []string) string {
	return strings.Join(entries, "|")
}

func writeList(b *strings.Builder, items []string) {
	for i, s := range items {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escapeField(s))
	}
}

// escapeField percent-encodes characters that would break INFO or entry
// structure.
func escapeField(s string) string {
	if !strings.ContainsAny(s, "%:;=,|& \t\r\n") {
		return s
	}
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '%', ':', ';', '=', ',', '|', '&', ' ', '\t', '\r', '\n':
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0xF])
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
