package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (s *SQLiteStore) CreateFeedback(ctx context.Context, feedback *Feedback) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO feedback (member_id, chat_id, content, is_positive, created_at, status) VALUES (?, ?, ?, ?, ?, ?)",
		feedback.MemberID, feedback.ChatID, feedback.Content, feedback.IsPositive, toMillis(feedback.CreatedAt), feedback.Status)
	if err != nil {
		return fmt.Errorf("failed to execute feedback insert: %w", err)
	}
	feedback.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read feedback id: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetFeedbackByID(ctx context.Context, id int64) (*Feedback, error) {
	var feedback Feedback
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, member_id, chat_id, content, is_positive, created_at, status FROM feedback WHERE id = ?", id).
		Scan(&feedback.ID, &feedback.MemberID, &feedback.ChatID, &feedback.Content, &feedback.IsPositive, &createdAt, &feedback.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	feedback.CreatedAt = fromMillis(createdAt)
	return &feedback, nil
}

func (s *SQLiteStore) UpdateFeedbackStatus(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE feedback SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to execute feedback update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("feedback %d not found, status not updated", id)
	}
	return nil
}
