// Package chatstore persists registered users and their chat history.
package chatstore

import (
	"context"
	"strings"
	"time"

	"github.com/darrellrafa/Nutribot/internal/domain"
	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
)

// DefaultHistoryLimit bounds History when the caller passes no limit.
const DefaultHistoryLimit = 50

// Sender identifies who wrote a stored message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// ParseSender accepts the stored names plus "assistant".
func ParseSender(raw string) (Sender, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "user":
		return SenderUser, true
	case "ai", "assistant", "bot":
		return SenderAI, true
	default:
		return "", false
	}
}

// User is a registered account with its optional profile.
type User struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Height        float64   `json:"height,omitempty"`
	Weight        float64   `json:"weight,omitempty"`
	Age           int       `json:"age,omitempty"`
	Gender        string    `json:"gender,omitempty"`
	Goal          string    `json:"goal,omitempty"`
	ActivityLevel string    `json:"activity_level,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Profile converts the stored fields into a generation profile. Unset or
// unrecognised values stay zero.
func (u User) Profile() *domain.UserProfile {
	p := &domain.UserProfile{
		Age:      u.Age,
		HeightCM: u.Height,
		WeightKG: u.Weight,
		Goal:     u.Goal,
	}
	if g, ok := domain.ParseGender(u.Gender); ok {
		p.Gender = g
	}
	if a, ok := domain.ParseActivityLevel(u.ActivityLevel); ok {
		p.ActivityLevel = a
	}
	return p
}

// ProfileUpdate carries the fields a profile edit may change. Nil fields
// are left untouched.
type ProfileUpdate struct {
	Height        *float64 `json:"height,omitempty"`
	Weight        *float64 `json:"weight,omitempty"`
	Age           *int     `json:"age,omitempty"`
	Gender        *string  `json:"gender,omitempty"`
	Goal          *string  `json:"goal,omitempty"`
	ActivityLevel *string  `json:"activity_level,omitempty"`
}

// Apply copies the set fields onto u.
func (p ProfileUpdate) Apply(u *User) {
	if p.Height != nil {
		u.Height = *p.Height
	}
	if p.Weight != nil {
		u.Weight = *p.Weight
	}
	if p.Age != nil {
		u.Age = *p.Age
	}
	if p.Gender != nil {
		u.Gender = *p.Gender
	}
	if p.Goal != nil {
		u.Goal = *p.Goal
	}
	if p.ActivityLevel != nil {
		u.ActivityLevel = *p.ActivityLevel
	}
}

// Message is one stored chat line.
type Message struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Message   string    `json:"message"`
	Sender    Sender    `json:"sender"`
	ModelUsed string    `json:"model_used,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Turn converts the message into a conversation turn.
func (m Message) Turn() domain.ConversationTurn {
	role := domain.RoleUser
	if m.Sender == SenderAI {
		role = domain.RoleAssistant
	}
	return domain.ConversationTurn{Role: role, Content: m.Message}
}

// Turns converts stored messages into model history, oldest first.
func Turns(messages []Message) []domain.ConversationTurn {
	turns := make([]domain.ConversationTurn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, m.Turn())
	}
	return turns
}

// Session summarises the messages sharing a session id.
type Session struct {
	SessionID     string    `json:"session_id"`
	StartedAt     time.Time `json:"started_at"`
	LastMessageAt time.Time `json:"last_message_at"`
	MessageCount  int       `json:"message_count"`
}

// Store is the persistence contract for accounts and history. Lookups of
// missing rows return errors.ErrNotFound; duplicate usernames or emails
// return errors.ErrConflict.
type Store interface {
	CreateUser(ctx context.Context, user User) (User, error)
	UserByID(ctx context.Context, id int64) (User, error)
	UserByUsername(ctx context.Context, username string) (User, error)
	UpdateProfile(ctx context.Context, id int64, update ProfileUpdate) (User, error)

	// AppendMessages stores messages for userID in one transaction and
	// returns them with ids assigned.
	AppendMessages(ctx context.Context, userID int64, messages []Message) ([]Message, error)
	// History returns the newest limit messages, oldest first. An empty
	// sessionID spans all sessions.
	History(ctx context.Context, userID int64, sessionID string, limit int) ([]Message, error)
	// Sessions lists sessions, most recently active first.
	Sessions(ctx context.Context, userID int64) ([]Session, error)
	DeleteSession(ctx context.Context, userID int64, sessionID string) (int64, error)
	ClearHistory(ctx context.Context, userID int64) (int64, error)

	Close() error
}

// validateUser checks the fields registration requires.
func validateUser(u User) error {
	if strings.TrimSpace(u.Username) == "" {
		return apperrors.Validationf("username is required")
	}
	if strings.TrimSpace(u.Email) == "" || !strings.Contains(u.Email, "@") {
		return apperrors.Validationf("a valid email is required")
	}
	if u.PasswordHash == "" {
		return apperrors.Validationf("password hash is required")
	}
	return nil
}

// prepareMessages validates messages and fills timestamps.
func prepareMessages(messages []Message, now time.Time) ([]Message, error) {
	out := make([]Message, len(messages))
	for i, m := range messages {
		if strings.TrimSpace(m.Message) == "" {
			return nil, apperrors.Validationf("message %d is empty", i)
		}
		if m.Sender != SenderUser && m.Sender != SenderAI {
			return nil, apperrors.Validationf("message %d has unknown sender %q", i, m.Sender)
		}
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		m.Timestamp = m.Timestamp.UTC()
		out[i] = m
	}
	return out, nil
}

func historyLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}
