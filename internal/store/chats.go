package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const chatColumns = "id, question, answer, created_at, member_id"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(row rowScanner) (*Chat, error) {
	var chat Chat
	var createdAt int64
	var memberID sql.NullInt64
	if err := row.Scan(&chat.ID, &chat.Question, &chat.Answer, &createdAt, &memberID); err != nil {
		return nil, err
	}
	chat.CreatedAt = fromMillis(createdAt)
	if memberID.Valid {
		id := memberID.Int64
		chat.MemberID = &id
	}
	return &chat, nil
}

func (s *SQLiteStore) CreateChat(ctx context.Context, chat *Chat) error {
	chat.Answer = truncate(chat.Answer, MaxAnswerLength)

	var memberID sql.NullInt64
	if chat.MemberID != nil {
		memberID = sql.NullInt64{Int64: *chat.MemberID, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO chats (question, answer, created_at, member_id) VALUES (?, ?, ?, ?)",
		chat.Question, chat.Answer, toMillis(chat.CreatedAt), memberID)
	if err != nil {
		return fmt.Errorf("failed to execute chat insert: %w", err)
	}
	chat.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read chat id: %w", err)
	}
	return nil
}

// UpdateChat overwrites question, answer and creation time of an existing chat.
func (s *SQLiteStore) UpdateChat(ctx context.Context, chat *Chat) error {
	chat.Answer = truncate(chat.Answer, MaxAnswerLength)

	res, err := s.db.ExecContext(ctx,
		"UPDATE chats SET question = ?, answer = ?, created_at = ? WHERE id = ?",
		chat.Question, chat.Answer, toMillis(chat.CreatedAt), chat.ID)
	if err != nil {
		return fmt.Errorf("failed to execute chat update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("chat %d not found, not updated", chat.ID)
	}
	return nil
}

func (s *SQLiteStore) GetChatByID(ctx context.Context, id int64) (*Chat, error) {
	chat, err := scanChat(s.db.QueryRowContext(ctx,
		"SELECT "+chatColumns+" FROM chats WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return chat, nil
}

// GetLatestChatByMember returns the member's most recently created chat, or nil.
func (s *SQLiteStore) GetLatestChatByMember(ctx context.Context, memberID int64) (*Chat, error) {
	chat, err := scanChat(s.db.QueryRowContext(ctx,
		"SELECT "+chatColumns+" FROM chats WHERE member_id = ? ORDER BY created_at DESC, id DESC LIMIT 1", memberID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest chat: %w", err)
	}
	return chat, nil
}

func (s *SQLiteStore) ListChatsByMember(ctx context.Context, memberID int64, limit, offset int, descending bool) ([]Chat, error) {
	order := "ASC"
	if descending {
		order = "DESC"
	}
	query := "SELECT " + chatColumns + " FROM chats WHERE member_id = ? ORDER BY created_at " + order + ", id " + order + " LIMIT ? OFFSET ?"

	rows, err := s.db.QueryContext(ctx, query, memberID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	chats := []Chat{}
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		chats = append(chats, *chat)
	}
	return chats, rows.Err()
}

func (s *SQLiteStore) CountChatsByMember(ctx context.Context, memberID int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chats WHERE member_id = ?", memberID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chats: %w", err)
	}
	return count, nil
}

// ListChatsCreatedBetween returns chats created in [from, to] with their owner's email.
func (s *SQLiteStore) ListChatsCreatedBetween(ctx context.Context, from, to time.Time) ([]ChatWithOwner, error) {
	query := `
        SELECT c.id, c.question, c.answer, c.created_at, c.member_id, COALESCE(m.email, '')
        FROM chats c
        LEFT JOIN members m ON m.id = c.member_id
        WHERE c.created_at BETWEEN ? AND ?
        ORDER BY c.created_at ASC, c.id ASC
    `
	rows, err := s.db.QueryContext(ctx, query, toMillis(from), toMillis(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	var chats []ChatWithOwner
	for rows.Next() {
		var item ChatWithOwner
		var createdAt int64
		var memberID sql.NullInt64
		if err := rows.Scan(&item.ID, &item.Question, &item.Answer, &createdAt, &memberID, &item.MemberEmail); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		item.CreatedAt = fromMillis(createdAt)
		if memberID.Valid {
			id := memberID.Int64
			item.MemberID = &id
		}
		chats = append(chats, item)
	}
	return chats, rows.Err()
}

func (s *SQLiteStore) DeleteChat(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("chat %d not found, not deleted", id)
	}
	return nil
}
