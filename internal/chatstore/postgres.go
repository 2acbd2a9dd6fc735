package chatstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/darrellrafa/Nutribot/internal/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    height DOUBLE PRECISION NOT NULL DEFAULT 0,
    weight DOUBLE PRECISION NOT NULL DEFAULT 0,
    age INTEGER NOT NULL DEFAULT 0,
    gender TEXT NOT NULL DEFAULT '',
    goal TEXT NOT NULL DEFAULT '',
    activity_level TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_messages (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    message TEXT NOT NULL,
    sender TEXT NOT NULL,
    model_used TEXT NOT NULL DEFAULT '',
    session_id TEXT NOT NULL DEFAULT '',
    timestamp TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_user ON chat_messages(user_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(user_id, session_id);
`

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresStore keeps accounts and history in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects with a pgx DSN and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

// EnsureSchema creates the tables when they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create chat schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	if err := validateUser(user); err != nil {
		return User{}, err
	}
	query := `
INSERT INTO users (username, email, password_hash, height, weight, age, gender, goal, activity_level, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + userColumns
	row := s.pool.QueryRow(ctx, query,
		user.Username, user.Email, user.PasswordHash,
		user.Height, user.Weight, user.Age, user.Gender, user.Goal, user.ActivityLevel,
		s.now().UTC(),
	)
	created, err := scanPostgresUser(row, "user")
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return User{}, apperrors.Conflictf("%s already exists", constraintField(pgErr.ConstraintName))
		}
		return User{}, err
	}
	return created, nil
}

func (s *PostgresStore) UserByID(ctx context.Context, id int64) (User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanPostgresUser(row, fmt.Sprintf("user %d", id))
}

func (s *PostgresStore) UserByUsername(ctx context.Context, username string) (User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanPostgresUser(row, fmt.Sprintf("user %q", username))
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, id int64, update ProfileUpdate) (User, error) {
	query := `
UPDATE users
SET height = COALESCE($2, height),
    weight = COALESCE($3, weight),
    age = COALESCE($4, age),
    gender = COALESCE($5, gender),
    goal = COALESCE($6, goal),
    activity_level = COALESCE($7, activity_level)
WHERE id = $1
RETURNING ` + userColumns
	row := s.pool.QueryRow(ctx, query, id,
		update.Height, update.Weight, update.Age, update.Gender, update.Goal, update.ActivityLevel,
	)
	return scanPostgresUser(row, fmt.Sprintf("user %d", id))
}

func (s *PostgresStore) AppendMessages(ctx context.Context, userID int64, messages []Message) ([]Message, error) {
	prepared, err := prepareMessages(messages, s.now())
	if err != nil {
		return nil, err
	}
	if len(prepared) == 0 {
		return prepared, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range prepared {
		m := &prepared[i]
		m.UserID = userID
		err := tx.QueryRow(ctx, `
INSERT INTO chat_messages (user_id, message, sender, model_used, session_id, timestamp)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`,
			userID, m.Message, string(m.Sender), m.ModelUsed, m.SessionID, m.Timestamp,
		).Scan(&m.ID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
				return nil, apperrors.NotFoundf("user %d", userID)
			}
			return nil, fmt.Errorf("insert message: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}
	return prepared, nil
}

func (s *PostgresStore) History(ctx context.Context, userID int64, sessionID string, limit int) ([]Message, error) {
	query := `
SELECT id, user_id, message, sender, model_used, session_id, timestamp FROM (
    SELECT * FROM chat_messages WHERE user_id = $1 AND ($2 = '' OR session_id = $2)
    ORDER BY timestamp DESC, id DESC LIMIT $3
) recent ORDER BY timestamp ASC, id ASC`
	rows, err := s.pool.Query(ctx, query, userID, sessionID, historyLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var (
			m      Message
			sender string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Message, &sender, &m.ModelUsed, &m.SessionID, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Sender = Sender(sender)
		m.Timestamp = m.Timestamp.UTC()
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *PostgresStore) Sessions(ctx context.Context, userID int64) ([]Session, error) {
	rows, err := s.pool.Query(ctx, `
SELECT session_id, MIN(timestamp), MAX(timestamp) AS last_message_at, COUNT(id)
FROM chat_messages
WHERE user_id = $1 AND session_id <> ''
GROUP BY session_id
ORDER BY last_message_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var (
			sess  Session
			count int64
		)
		if err := rows.Scan(&sess.SessionID, &sess.StartedAt, &sess.LastMessageAt, &count); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.MessageCount = int(count)
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *PostgresStore) DeleteSession(ctx context.Context, userID int64, sessionID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chat_messages WHERE user_id = $1 AND session_id = $2`, userID, sessionID)
	if err != nil {
		return 0, fmt.Errorf("delete session: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ClearHistory(ctx context.Context, userID int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chat_messages WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanPostgresUser(row pgx.Row, what string) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Height, &u.Weight, &u.Age, &u.Gender, &u.Goal, &u.ActivityLevel, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, apperrors.NotFoundf("%s", what)
		}
		return User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

// constraintField maps "users_email_key" to "email".
func constraintField(constraint string) string {
	field := strings.TrimPrefix(constraint, "users_")
	field = strings.TrimSuffix(field, "_key")
	if field == "" {
		return "user"
	}
	return field
}
