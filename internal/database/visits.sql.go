package database

import (
	"context"
)

const createPageVisit = `INSERT INTO page_visits (path, created_at) VALUES (?, ?)`

func (q *Queries) CreatePageVisit(ctx context.Context, path, createdAt string) (int64, error) {
	res, err := q.db.ExecContext(ctx, createPageVisit, path, createdAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getVisitStats = `SELECT
	COUNT(*),
	COALESCE(SUM(CASE WHEN date(created_at) = date(?) THEN 1 ELSE 0 END), 0)
FROM page_visits`

// GetVisitStats counts all visits and those recorded on day (YYYY-MM-DD).
func (q *Queries) GetVisitStats(ctx context.Context, day string) (VisitStats, error) {
	var s VisitStats
	err := q.db.QueryRowContext(ctx, getVisitStats, day).Scan(&s.Total, &s.Today)
	return s, err
}
