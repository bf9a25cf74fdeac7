package store

import "time"

const (
	MaxAnswerLength     = 5000
	MaxLogContentLength = 3000

	FeedbackStatusPending = "pending"
	FeedbackStatusResolve = "resolve"
)

type Member struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Do not expose this in JSON responses
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Chat struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"createdAt"`
	MemberID  *int64    `json:"memberId"` // Nullable
}

// ChatWithOwner is a chat joined with its owner's email, blank when ownerless.
type ChatWithOwner struct {
	Chat
	MemberEmail string
}

type Feedback struct {
	ID         int64     `json:"id"`
	MemberID   string    `json:"memberId"`
	ChatID     string    `json:"chatId"`
	Content    string    `json:"content"`
	IsPositive bool      `json:"isPositive"`
	CreatedAt  time.Time `json:"createdAt"`
	Status     string    `json:"status"`
}

type LogEntry struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}
