package chatstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/darrellrafa/Nutribot/internal/testutil"
)

func newPostgresTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	store := NewPostgresStore(testutil.NewPostgresPool(t))
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func TestPostgresStore(t *testing.T) {
	t.Run("conflicts", func(t *testing.T) { checkUserConflicts(t, newPostgresTestStore(t)) })
	t.Run("history", func(t *testing.T) { checkHistoryOrder(t, newPostgresTestStore(t)) })
	t.Run("append validation", func(t *testing.T) { checkAppendValidation(t, newPostgresTestStore(t)) })
	t.Run("sessions", func(t *testing.T) { checkSessions(t, newPostgresTestStore(t)) })
}
