package chatstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/darrellrafa/Nutribot/internal/errors"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    height REAL NOT NULL DEFAULT 0,
    weight REAL NOT NULL DEFAULT 0,
    age INTEGER NOT NULL DEFAULT 0,
    gender TEXT NOT NULL DEFAULT '',
    goal TEXT NOT NULL DEFAULT '',
    activity_level TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    message TEXT NOT NULL,
    sender TEXT NOT NULL,
    model_used TEXT NOT NULL DEFAULT '',
    session_id TEXT NOT NULL DEFAULT '',
    timestamp TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_user ON chat_messages(user_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(user_id, session_id);
`

const userColumns = `id, username, email, password_hash, height, weight, age, gender, goal, activity_level, created_at`

// SQLiteStore keeps accounts and history in a local SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open chat database: %w", err)
	}
	// SQLite serialises writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create chat schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateUser(ctx context.Context, user User) (User, error) {
	if err := validateUser(user); err != nil {
		return User{}, err
	}
	user.CreatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
INSERT INTO users (username, email, password_hash, height, weight, age, gender, goal, activity_level, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username, user.Email, user.PasswordHash,
		user.Height, user.Weight, user.Age, user.Gender, user.Goal, user.ActivityLevel,
		user.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		if field, ok := sqliteUniqueField(err); ok {
			return User{}, apperrors.Conflictf("%s already exists", field)
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	user.ID = id
	return user, nil
}

func (s *SQLiteStore) UserByID(ctx context.Context, id int64) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanSQLiteUser(row, fmt.Sprintf("user %d", id))
}

func (s *SQLiteStore) UserByUsername(ctx context.Context, username string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanSQLiteUser(row, fmt.Sprintf("user %q", username))
}

func (s *SQLiteStore) UpdateProfile(ctx context.Context, id int64, update ProfileUpdate) (User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, fmt.Errorf("begin profile update: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanSQLiteUser(row, fmt.Sprintf("user %d", id))
	if err != nil {
		return User{}, err
	}
	update.Apply(&user)

	_, err = tx.ExecContext(ctx, `
UPDATE users SET height = ?, weight = ?, age = ?, gender = ?, goal = ?, activity_level = ?
WHERE id = ?`,
		user.Height, user.Weight, user.Age, user.Gender, user.Goal, user.ActivityLevel, id,
	)
	if err != nil {
		return User{}, fmt.Errorf("update profile: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return User{}, fmt.Errorf("commit profile update: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) AppendMessages(ctx context.Context, userID int64, messages []Message) ([]Message, error) {
	prepared, err := prepareMessages(messages, s.now())
	if err != nil {
		return nil, err
	}
	if len(prepared) == 0 {
		return prepared, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO chat_messages (user_id, message, sender, model_used, session_id, timestamp)
VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	for i := range prepared {
		m := &prepared[i]
		m.UserID = userID
		res, err := stmt.ExecContext(ctx, userID, m.Message, string(m.Sender), m.ModelUsed, m.SessionID, m.Timestamp.Format(timeLayout))
		if err != nil {
			if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
				return nil, apperrors.NotFoundf("user %d", userID)
			}
			return nil, fmt.Errorf("insert message: %w", err)
		}
		if m.ID, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("insert message: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}
	return prepared, nil
}

func (s *SQLiteStore) History(ctx context.Context, userID int64, sessionID string, limit int) ([]Message, error) {
	query := `
SELECT id, user_id, message, sender, model_used, session_id, timestamp FROM (
    SELECT * FROM chat_messages WHERE user_id = ?%s
    ORDER BY timestamp DESC, id DESC LIMIT ?
) ORDER BY timestamp ASC, id ASC`
	args := []any{userID}
	filter := ""
	if sessionID != "" {
		filter = " AND session_id = ?"
		args = append(args, sessionID)
	}
	args = append(args, historyLimit(limit))

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(query, filter), args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var (
			m  Message
			ts string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Message, &m.Sender, &m.ModelUsed, &m.SessionID, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if m.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("parse message time: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *SQLiteStore) Sessions(ctx context.Context, userID int64) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT session_id, MIN(timestamp), MAX(timestamp) AS last_message_at, COUNT(id)
FROM chat_messages
WHERE user_id = ? AND session_id <> ''
GROUP BY session_id
ORDER BY last_message_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var (
			sess        Session
			first, last string
		)
		if err := rows.Scan(&sess.SessionID, &first, &last, &sess.MessageCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if sess.StartedAt, err = time.Parse(timeLayout, first); err != nil {
			return nil, fmt.Errorf("parse session time: %w", err)
		}
		if sess.LastMessageAt, err = time.Parse(timeLayout, last); err != nil {
			return nil, fmt.Errorf("parse session time: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, userID int64, sessionID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE user_id = ? AND session_id = ?`, userID, sessionID)
	if err != nil {
		return 0, fmt.Errorf("delete session: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) ClearHistory(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

func scanSQLiteUser(row *sql.Row, what string) (User, error) {
	var (
		u       User
		created string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Height, &u.Weight, &u.Age, &u.Gender, &u.Goal, &u.ActivityLevel, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, apperrors.NotFoundf("%s", what)
		}
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	if u.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return User{}, fmt.Errorf("parse user time: %w", err)
	}
	return u, nil
}

// sqliteUniqueField extracts the column name from a UNIQUE violation.
func sqliteUniqueField(err error) (string, bool) {
	msg := err.Error()
	const marker = "UNIQUE constraint failed: users."
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return "", false
	}
	field := msg[idx+len(marker):]
	if end := strings.IndexAny(field, " ,)"); end >= 0 {
		field = field[:end]
	}
	return field, true
}
