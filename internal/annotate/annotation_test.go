package annotate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeEvidence(t *testing.T) {
	ev := Evidence{
		Variant:      "BRAF:V600E",
		Genes:        []string{"BRAF"},
		ArticleCount: 1234,
		PMIDs:        []string{"12068308", "20818844"},
		Tags:         []string{"melanoma", "colorectal neoplasms"},
	}

	got := EncodeEvidence("T", ev)
	assert.Equal(t, "T:BRAF%3AV600E:1234:12068308&20818844:melanoma&colorectal%20neoplasms", got)
}

func TestEncodeEvidence_Empty(t *testing.T) {
	got := EncodeEvidence("A", Evidence{Variant: "KRAS:G12C"})
	assert.Equal(t, "A:KRAS%3AG12C:0::", got)
}

func TestEncodeInfoValue_NoReservedCharacters(t *testing.T) {
	entries := []string{
		EncodeEvidence("A", Evidence{Variant: "X:a;b=c,d|e&f%g", Tags: []string{"t 1\tt2"}}),
		EncodeEvidence("T", Evidence{Variant: "KRAS:G12V"}),
	}
	value := EncodeInfoValue(entries)

	// INFO structure characters never leak into the value.
	for _, c := range []string{";", "=", ",", " ", "\t"} {
		assert.NotContains(t, value, c)
	}
	assert.Len(t, strings.Split(value, "|"), 2)
}

func TestEscapeField(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a:b", "a%3Ab"},
		{"100%", "100%25"},
		{"x;y=z", "x%3By%3Dz"},
		{"a,b|c&d", "a%2Cb%7Cc%26d"},
		{"line\nbreak\r", "line%0Abreak%0D"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeField(tt.in))
		})
	}
}

func TestInfoDefinition(t *testing.T) {
	def := InfoDefinition("MM")
	assert.Equal(t, "MM", def.ID)
	assert.Equal(t, ".", def.Number)
	assert.Equal(t, "String", def.Type)
	assert.Contains(t, def.Description, "Allele:Variant:ArticleCount:PMIDs:Tags")
}

// TestAllocRegression_EscapeField verifies the fast path does not allocate.
func TestAllocRegression_EscapeField(t *testing.T) {
	allocs := testing.AllocsPerRun(100, func() {
		escapeField("12068308")
	})
	if allocs > 0 {
		t.Errorf("escapeField(plain) allocs: %.0f, want 0", allocs)
	}
}
