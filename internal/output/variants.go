package output

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/inodb/vibe-mm/internal/mastermind"
)

// VariantListHeader is the header of a gene variant listing.
const VariantListHeader = "Gene, Variant, # Citations, Link"

// WriteVariantList writes gene variants as comma-and-space separated rows
// under VariantListHeader.
func WriteVariantList(w io.Writer, variants []mastermind.GeneVariant) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(VariantListHeader + "\n"); err != nil {
		return err
	}
	for _, v := range variants {
		if _, err := fmt.Fprintf(bw, "%s, %s, %d, %s\n", v.Gene, v.Key, v.ArticleCount, v.URL); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteVariantJSON writes gene variants as an indented JSON array.
func WriteVariantJSON(w io.Writer, variants []mastermind.GeneVariant) error {
	if variants == nil {
		variants = []mastermind.GeneVariant{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(variants)
}

// WriteGeneCounts writes "gene,count" CSV rows without a header. Genes
// whose lookup failed are left out.
func WriteGeneCounts(w io.Writer, counts []mastermind.GeneCount) error {
	cw := csv.NewWriter(w)
	for _, c := range counts {
		if c.Err != nil {
			continue
		}
		if err := cw.Write([]string{c.Gene, strconv.Itoa(c.ArticleCount)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
