package chatstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/darrellrafa/Nutribot/internal/domain"
	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func createUser(t *testing.T, store Store, username string) User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
	})
	require.NoError(t, err)
	return user
}

func TestCreateAndLookupUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := createUser(t, store, "budi")
	assert.NotZero(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	byID, err := store.UserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "budi", byID.Username)
	assert.Equal(t, "budi@example.com", byID.Email)

	byName, err := store.UserByUsername(ctx, "budi")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	_, err = store.UserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCreateUserConflicts(t *testing.T) {
	checkUserConflicts(t, newTestStore(t))
}

func checkUserConflicts(t *testing.T, store Store) {
	ctx := context.Background()
	createUser(t, store, "sari")

	_, err := store.CreateUser(ctx, User{Username: "sari", Email: "other@example.com", PasswordHash: "x"})
	require.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Contains(t, err.Error(), "username")

	_, err = store.CreateUser(ctx, User{Username: "sari2", Email: "sari@example.com", PasswordHash: "x"})
	require.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Contains(t, err.Error(), "email")
}

func TestCreateUserValidation(t *testing.T) {
	store := newTestStore(t)
	_, err := store.CreateUser(context.Background(), User{Username: "x", Email: "not-an-email", PasswordHash: "h"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUpdateProfileKeepsUnsetFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := createUser(t, store, "andi")

	height, weight, age := 170.0, 70.0, 25
	gender, goal, activity := "male", "turun berat badan", "sedentary"
	_, err := store.UpdateProfile(ctx, user.ID, ProfileUpdate{
		Height: &height, Weight: &weight, Age: &age,
		Gender: &gender, Goal: &goal, ActivityLevel: &activity,
	})
	require.NoError(t, err)

	newWeight := 68.5
	updated, err := store.UpdateProfile(ctx, user.ID, ProfileUpdate{Weight: &newWeight})
	require.NoError(t, err)
	assert.Equal(t, 68.5, updated.Weight)
	assert.Equal(t, 170.0, updated.Height)
	assert.Equal(t, 25, updated.Age)

	profile := updated.Profile()
	assert.True(t, profile.IsComplete())
	assert.Equal(t, domain.GenderMale, profile.Gender)
	assert.Equal(t, domain.ActivitySedentary, profile.ActivityLevel)

	_, err = store.UpdateProfile(ctx, 9999, ProfileUpdate{Weight: &newWeight})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestHistoryReturnsNewestInOrder(t *testing.T) {
	checkHistoryOrder(t, newTestStore(t))
}

func checkHistoryOrder(t *testing.T, store Store) {
	ctx := context.Background()
	user := createUser(t, store, "dewi")

	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	var batch []Message
	for i := 0; i < 5; i++ {
		sender := SenderUser
		if i%2 == 1 {
			sender = SenderAI
		}
		batch = append(batch, Message{
			Message:   string(rune('a' + i)),
			Sender:    sender,
			SessionID: "s1",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}
	saved, err := store.AppendMessages(ctx, user.ID, batch)
	require.NoError(t, err)
	require.Len(t, saved, 5)
	for _, m := range saved {
		assert.NotZero(t, m.ID)
		assert.Equal(t, user.ID, m.UserID)
	}

	_, err = store.AppendMessages(ctx, user.ID, []Message{{Message: "other", Sender: SenderUser, SessionID: "s2", Timestamp: base.Add(time.Hour)}})
	require.NoError(t, err)

	recent, err := store.History(ctx, user.ID, "s1", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"c", "d", "e"}, []string{recent[0].Message, recent[1].Message, recent[2].Message})
	assert.True(t, recent[0].Timestamp.Equal(base.Add(2*time.Minute)))

	all, err := store.History(ctx, user.ID, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 6)
	assert.Equal(t, "other", all[5].Message)

	turns := Turns(recent)
	assert.Equal(t, domain.RoleUser, turns[0].Role)
	assert.Equal(t, domain.RoleAssistant, turns[1].Role)
}

func TestAppendMessagesValidates(t *testing.T) {
	checkAppendValidation(t, newTestStore(t))
}

func checkAppendValidation(t *testing.T, store Store) {
	ctx := context.Background()
	user := createUser(t, store, "eka")

	_, err := store.AppendMessages(ctx, user.ID, []Message{
		{Message: "ok", Sender: SenderUser},
		{Message: "bad", Sender: "robot"},
	})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	history, err := store.History(ctx, user.ID, "", 10)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = store.AppendMessages(ctx, 4242, []Message{{Message: "hi", Sender: SenderUser}})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSessionsDeleteAndClear(t *testing.T) {
	checkSessions(t, newTestStore(t))
}

func checkSessions(t *testing.T, store Store) {
	ctx := context.Background()
	user := createUser(t, store, "fajar")
	other := createUser(t, store, "gita")

	base := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	_, err := store.AppendMessages(ctx, user.ID, []Message{
		{Message: "1", Sender: SenderUser, SessionID: "old", Timestamp: base},
		{Message: "2", Sender: SenderAI, SessionID: "old", Timestamp: base.Add(time.Minute)},
		{Message: "3", Sender: SenderUser, SessionID: "new", Timestamp: base.Add(time.Hour)},
		{Message: "4", Sender: SenderUser, Timestamp: base.Add(2 * time.Hour)},
	})
	require.NoError(t, err)
	_, err = store.AppendMessages(ctx, other.ID, []Message{{Message: "x", Sender: SenderUser, SessionID: "old"}})
	require.NoError(t, err)

	sessions, err := store.Sessions(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "new", sessions[0].SessionID)
	assert.Equal(t, "old", sessions[1].SessionID)
	assert.Equal(t, 2, sessions[1].MessageCount)
	assert.True(t, sessions[1].StartedAt.Equal(base))
	assert.True(t, sessions[1].LastMessageAt.Equal(base.Add(time.Minute)))

	deleted, err := store.DeleteSession(ctx, user.ID, "old")
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	otherHistory, err := store.History(ctx, other.ID, "old", 10)
	require.NoError(t, err)
	assert.Len(t, otherHistory, 1)

	cleared, err := store.ClearHistory(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, cleared)
}

func TestParseSender(t *testing.T) {
	s, ok := ParseSender("Assistant")
	assert.True(t, ok)
	assert.Equal(t, SenderAI, s)
	_, ok = ParseSender("system")
	assert.False(t, ok)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestConstraintField(t *testing.T) {
	assert.Equal(t, "email", constraintField("users_email_key"))
	assert.Equal(t, "username", constraintField("users_username_key"))
}
