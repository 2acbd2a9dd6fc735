package id

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserIDRoundTrip(t *testing.T) {
	ctx := WithUserID(context.Background(), 42)

	userID, ok := UserIDFromContext(ctx)
	assert.True(t, ok)
	assert.EqualValues(t, 42, userID)
}

func TestAnonymousContext(t *testing.T) {
	ctx := WithUserID(context.Background(), 0)
	_, ok := UserIDFromContext(ctx)
	assert.False(t, ok)
}

func TestNewSessionIDStrategies(t *testing.T) {
	t.Cleanup(func() { SetStrategy(StrategyKSUID) })

	SetStrategy(StrategyKSUID)
	sid := NewSessionID()
	require.True(t, strings.HasPrefix(sid, "chat-"))
	_, err := ksuid.Parse(strings.TrimPrefix(sid, "chat-"))
	assert.NoError(t, err)

	SetStrategy(ParseStrategy("uuidv7"))
	sid = NewSessionID()
	parsed, err := uuid.Parse(strings.TrimPrefix(sid, "chat-"))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestGeneratedIdentifiersAreUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		for _, v := range []string{NewSessionID(), NewRequestID()} {
			_, dup := seen[v]
			require.False(t, dup, "duplicate id %s", v)
			seen[v] = struct{}{}
		}
	}
}
