package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver ("sqlite3", cgo)
	_ "modernc.org/sqlite"          // SQLite driver ("sqlite", pure Go)
)

var ErrDuplicate = errors.New("duplicate record")

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database with the given driver ("sqlite3" or
// "sqlite") and makes sure the schema exists.
func NewSQLiteStore(driver, dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err = db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS members (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        name TEXT NOT NULL,
        role TEXT NOT NULL,
        created_at INTEGER NOT NULL
    );

    CREATE TABLE IF NOT EXISTS chats (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        question TEXT NOT NULL,
        answer TEXT NOT NULL,
        created_at INTEGER NOT NULL,
        member_id INTEGER,
        FOREIGN KEY (member_id) REFERENCES members (id) ON DELETE CASCADE
    );
    CREATE INDEX IF NOT EXISTS idx_chats_member_created ON chats (member_id, created_at);
    CREATE INDEX IF NOT EXISTS idx_chats_created ON chats (created_at);

    CREATE TABLE IF NOT EXISTS feedback (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        member_id TEXT NOT NULL,
        chat_id TEXT NOT NULL,
        content TEXT NOT NULL,
        is_positive BOOLEAN NOT NULL,
        created_at INTEGER NOT NULL,
        status TEXT NOT NULL CHECK (status IN ('pending', 'resolve'))
    );

    CREATE TABLE IF NOT EXISTS logs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        content TEXT NOT NULL,
        category TEXT NOT NULL,
        created_at INTEGER NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_logs_created ON logs (created_at);
    `
	_, err := s.db.Exec(schema)
	return err
}

// Timestamps are stored as Unix milliseconds so both drivers compare them the same way.
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// Member methods
func (s *SQLiteStore) CreateMember(ctx context.Context, member *Member) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO members (email, password_hash, name, role, created_at) VALUES (?, ?, ?, ?, ?)",
		member.Email, member.PasswordHash, member.Name, member.Role, toMillis(member.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: member %s", ErrDuplicate, member.Email)
		}
		return fmt.Errorf("failed to insert member: %w", err)
	}
	member.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read member id: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetMemberByEmail(ctx context.Context, email string) (*Member, error) {
	return s.scanMember(s.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, name, role, created_at FROM members WHERE email = ?", email))
}

func (s *SQLiteStore) GetMemberByID(ctx context.Context, id int64) (*Member, error) {
	return s.scanMember(s.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, name, role, created_at FROM members WHERE id = ?", id))
}

func (s *SQLiteStore) scanMember(row *sql.Row) (*Member, error) {
	var member Member
	var createdAt int64
	err := row.Scan(&member.ID, &member.Email, &member.PasswordHash, &member.Name, &member.Role, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Member not found
		}
		return nil, fmt.Errorf("failed to query member: %w", err)
	}
	member.CreatedAt = fromMillis(createdAt)
	return &member, nil
}

// DeleteMember removes the member and, through the foreign key, all of its chats.
func (s *SQLiteStore) DeleteMember(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM members WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
