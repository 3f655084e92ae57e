package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"financial_dashboard/pkg/core/synonym"
	"financial_dashboard/pkg/models"
)

// SynonymsTable holds the client-maintained aliases.
const SynonymsTable = "financial_synonyms"

const selectSynonyms = `
	SELECT canonical, alias, score
	FROM ` + SynonymsTable + `
	WHERE active
	ORDER BY canonical, alias
`

// SynonymRepo reads client-maintained aliases from the financial_synonyms table
// and layers them over a base dictionary. It satisfies synonym.EntrySource
// for the periodic reload job.
type SynonymRepo struct {
	pool *pgxpool.Pool
	base []synonym.Entry
}

// NewSynonymRepo uses base (usually synonym.DefaultEntries) under the
// database rows.
func NewSynonymRepo(pool *pgxpool.Pool, base []synonym.Entry) *SynonymRepo {
	return &SynonymRepo{pool: pool, base: base}
}

var _ synonym.EntrySource = (*SynonymRepo)(nil)

// LoadEntries groups active aliases by canonical field and appends them to the
// base entries. Rows naming an unknown canonical field are skipped. No rows
// yields nil so the reload job keeps the current dictionary.
func (r *SynonymRepo) LoadEntries(ctx context.Context) ([]synonym.Entry, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database pool not configured")
	}
	rows, err := r.pool.Query(ctx, selectSynonyms)
	if err != nil {
		return nil, fmt.Errorf("failed to query synonyms: %w", err)
	}
	defer rows.Close()

	var (
		entries []synonym.Entry
		index   = map[models.CanonicalField]int{}
	)
	for rows.Next() {
		var (
			canonical, alias string
			score            float64
		)
		if err := rows.Scan(&canonical, &alias, &score); err != nil {
			return nil, fmt.Errorf("failed to scan synonym: %w", err)
		}
		f, ok := models.ParseField(canonical)
		if !ok {
			continue
		}
		i, seen := index[f]
		if !seen {
			i = len(entries)
			index[f] = i
			entries = append(entries, synonym.Entry{Canonical: f, Score: score})
		}
		entries[i].Aliases = append(entries[i].Aliases, alias)
		if score > entries[i].Score {
			entries[i].Score = score
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read synonyms: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return MergeEntries(r.base, entries), nil
}

// MergeEntries returns base followed by extra without aliasing either slice.
func MergeEntries(base, extra []synonym.Entry) []synonym.Entry {
	out := make([]synonym.Entry, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}
