package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across sermons and blogs using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultSermon {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'sermon'::text AS type, s.id, s.title,
				ts_headline('english', coalesce(s.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				s.category_id::text AS category_id,
				''::text AS status,
				ts_rank(s.fts, %s) AS rank
			FROM sermons s
			WHERE s.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if q.FilterType == "" || q.FilterType == ResultBlog {
		blogWhere := "bl.fts @@ " + tsQuery
		if q.PublishedOnly {
			blogWhere += " AND bl.status = 'published'"
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'blog'::text AS type, bl.id, bl.title,
				ts_headline('english', coalesce(bl.content, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS category_id,
				bl.status,
				ts_rank(bl.fts, %s) AS rank
			FROM blogs bl
			WHERE %s`, tsQuery, tsQuery, blogWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, category_id, status
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.CategoryID, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]SermonRecord, []BlogRecord, error) {
	sermonRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, coalesce(description, ''), category_id
		FROM sermons
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load sermons: %w", err)
	}
	defer sermonRows.Close()

	sermons := make([]SermonRecord, 0)
	for sermonRows.Next() {
		var s SermonRecord
		if err := sermonRows.Scan(&s.ID, &s.Title, &s.Description, &s.CategoryID); err != nil {
			return nil, nil, fmt.Errorf("scan sermon: %w", err)
		}
		sermons = append(sermons, s)
	}
	if err := sermonRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate sermons: %w", err)
	}

	blogRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, content, status
		FROM blogs
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load blogs: %w", err)
	}
	defer blogRows.Close()

	blogs := make([]BlogRecord, 0)
	for blogRows.Next() {
		var b BlogRecord
		if err := blogRows.Scan(&b.ID, &b.Title, &b.Content, &b.Status); err != nil {
			return nil, nil, fmt.Errorf("scan blog: %w", err)
		}
		blogs = append(blogs, b)
	}
	if err := blogRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate blogs: %w", err)
	}

	return sermons, blogs, nil
}
