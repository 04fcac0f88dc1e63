package duckdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/inodb/vibe-mm/internal/annotate"
)

// EvidenceHit is a cached evidence item together with the allele it was
// found for.
type EvidenceHit struct {
	Key      annotate.VariantKey
	Evidence annotate.Evidence
}

// Stats summarizes the contents of the store.
type Stats struct {
	QueriedKeys   int // alleles with a cached lookup
	EvidenceItems int // cached evidence items
	EmptyKeys     int // cached lookups that found nothing
	Jobs          int // recorded annotation jobs
}

const hitColumns = `assembly, chrom, pos, ref, alt,
	variant, genes, article_count, pmids, tags, url`

// SearchByGene returns all cached evidence naming gene.
func (s *Store) SearchByGene(gene string) ([]EvidenceHit, error) {
	// genes holds a JSON list, so the quoted symbol matches whole entries.
	quoted, err := json.Marshal(gene)
	if err != nil {
		return nil, fmt.Errorf("query by gene: %w", err)
	}
	rows, err := s.db.Query(`SELECT `+hitColumns+`
		FROM evidence_cache
		WHERE genes LIKE ? ESCAPE '\'
		ORDER BY assembly, chrom, pos, ref, alt, ordinal`, "%"+likeEscaper.Replace(string(quoted))+"%")
	if err != nil {
		return nil, fmt.Errorf("query by gene: %w", err)
	}
	defer rows.Close()

	return scanHits(rows)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchByVariant returns all cached evidence for a canonical variant
// (e.g. "KRAS:G12C").
func (s *Store) SearchByVariant(variant string) ([]EvidenceHit, error) {
	rows, err := s.db.Query(`SELECT `+hitColumns+`
		FROM evidence_cache
		WHERE variant = ?
		ORDER BY assembly, chrom, pos, ref, alt, ordinal`, variant)
	if err != nil {
		return nil, fmt.Errorf("query by variant: %w", err)
	}
	defer rows.Close()

	return scanHits(rows)
}

// Stats counts cached lookups, evidence items and recorded jobs.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	err := s.db.QueryRow(`SELECT
		(SELECT count(*) FROM queried_keys),
		(SELECT count(*) FROM evidence_cache),
		(SELECT count(*) FROM queried_keys q WHERE NOT EXISTS (
			SELECT 1 FROM evidence_cache e
			WHERE e.assembly = q.assembly AND e.chrom = q.chrom AND e.pos = q.pos
				AND e.ref = q.ref AND e.alt = q.alt)),
		(SELECT count(*) FROM annotation_jobs)`).
		Scan(&st.QueriedKeys, &st.EvidenceItems, &st.EmptyKeys, &st.Jobs)
	if err != nil {
		return Stats{}, fmt.Errorf("cache stats: %w", err)
	}
	return st, nil
}

// scanHits scans rows selected with hitColumns.
func scanHits(rows *sql.Rows) ([]EvidenceHit, error) {
	var hits []EvidenceHit
	for rows.Next() {
		var (
			h                  EvidenceHit
			assembly           string
			genes, pmids, tags string
		)
		if err := rows.Scan(
			&assembly, &h.Key.Chrom, &h.Key.Pos, &h.Key.Ref, &h.Key.Alt,
			&h.Evidence.Variant, &genes, &h.Evidence.ArticleCount, &pmids, &tags, &h.Evidence.URL,
		); err != nil {
			return nil, fmt.Errorf("scan evidence hit: %w", err)
		}
		h.Key.Assembly = annotate.Assembly(assembly)
		for _, l := range []struct {
			raw string
			dst *[]string
		}{{genes, &h.Evidence.Genes}, {pmids, &h.Evidence.PMIDs}, {tags, &h.Evidence.Tags}} {
			if err := decodeList(l.raw, l.dst); err != nil {
				return nil, err
			}
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence hits: %w", err)
	}
	return hits, nil
}
