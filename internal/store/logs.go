package store

import (
	"context"
	"fmt"
	"time"
)

// AppendLog writes an activity log row. Logs are never updated or deleted.
// The insert runs as its own statement, outside any caller transaction.
func (s *SQLiteStore) AppendLog(ctx context.Context, entry *LogEntry) error {
	entry.Content = truncate(entry.Content, MaxLogContentLength)

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO logs (content, category, created_at) VALUES (?, ?, ?)",
		entry.Content, entry.Category, toMillis(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to execute log insert: %w", err)
	}
	entry.ID, _ = res.LastInsertId()
	return nil
}

// CountLogsByCategory counts log rows created in [from, to], keyed by category.
func (s *SQLiteStore) CountLogsByCategory(ctx context.Context, from, to time.Time) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT category, COUNT(*) FROM logs WHERE created_at BETWEEN ? AND ? GROUP BY category",
		toMillis(from), toMillis(to))
	if err != nil {
		return nil, fmt.Errorf("failed to count logs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var category string
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan log count: %w", err)
		}
		counts[category] = count
	}
	return counts, rows.Err()
}
