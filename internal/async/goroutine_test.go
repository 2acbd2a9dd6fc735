package async

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Error(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func TestGoRecoversPanic(t *testing.T) {
	logger := &recordingLogger{}
	done := make(chan struct{})
	Go(logger, "indexer", func() {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not run")
	}
	require.Eventually(t, func() bool { return len(logger.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Contains(t, logger.snapshot()[0], "background task indexer panicked: boom")
}

func TestRecoverWithoutPanicOrLogger(t *testing.T) {
	logger := &recordingLogger{}
	func() {
		defer Recover(logger, "quiet")
	}()
	assert.Empty(t, logger.snapshot())

	assert.NotPanics(t, func() {
		defer Recover(nil, "")
		panic("ignored")
	})
}
