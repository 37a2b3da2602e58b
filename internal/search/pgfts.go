package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS searches the PostgreSQL ledger mirror with full-text search.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Search uses plainto_tsquery against the generated fts column, ranked with
// ts_rank and highlighted with ts_headline.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	where := "fts @@ plainto_tsquery('simple', $1)"
	args := []any{q.Text}
	if q.Document != "" {
		where += " AND source_document = $2"
		args = append(args, q.Document)
	}

	var total int
	if err := p.db.QueryRowContext(ctx, "SELECT count(*) FROM ledger_entries WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT id, source_document, image_name, relative_link,
			ts_headline('simple', coalesce(payload_text, ''), plainto_tsquery('simple', $1), 'MaxFragments=1,MaxWords=30') AS snippet
		FROM ledger_entries
		WHERE %s
		ORDER BY ts_rank(fts, plainto_tsquery('simple', $1)) DESC, position
		LIMIT %d`, where, limit)
	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.EntryID, &r.SourceDocument, &r.ImageName, &r.RelativeLink, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}
