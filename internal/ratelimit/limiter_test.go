package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckLimit_UnderLimit(t *testing.T) {
	l := New()

	assert.True(t, l.CheckLimit("alice", "chat", 10, time.Hour))
	l.RecordCall("alice", "chat")
	assert.True(t, l.CheckLimit("alice", "chat", 10, time.Hour))
}

func TestCheckLimit_AtLimit(t *testing.T) {
	l := New()

	for i := 0; i < 10; i++ {
		l.RecordCall("alice", "chat")
	}
	assert.False(t, l.CheckLimit("alice", "chat", 10, time.Hour))
}

func TestCheckLimit_WindowExpiry(t *testing.T) {
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := New()
	l.now = func() time.Time { return current }

	for i := 0; i < 10; i++ {
		l.RecordCall("alice", "chat")
	}
	assert.False(t, l.CheckLimit("alice", "chat", 10, time.Hour))

	// After the window elapses the calls fall out and checks pass again.
	current = current.Add(time.Hour + time.Second)
	assert.True(t, l.CheckLimit("alice", "chat", 10, time.Hour))
}

func TestCheckLimit_DoesNotRecord(t *testing.T) {
	l := New()

	for i := 0; i < 100; i++ {
		assert.True(t, l.CheckLimit("alice", "chat", 1, time.Hour))
	}
	l.RecordCall("alice", "chat")
	assert.False(t, l.CheckLimit("alice", "chat", 1, time.Hour))
}

func TestCheckLimit_IndependentKeys(t *testing.T) {
	l := New()

	l.RecordCall("alice", "chat")
	assert.False(t, l.CheckLimit("alice", "chat", 1, time.Hour))
	assert.True(t, l.CheckLimit("alice", "create_task", 1, time.Hour))
	assert.True(t, l.CheckLimit("bob", "chat", 1, time.Hour))
}

func TestPrune_RemovesEmptyKeys(t *testing.T) {
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := New()
	l.now = func() time.Time { return current }

	l.RecordCall("alice", "chat")
	current = current.Add(2 * time.Hour)
	l.CheckLimit("alice", "chat", 10, time.Hour)

	l.mu.Lock()
	_, exists := l.calls["alice:chat"]
	l.mu.Unlock()
	assert.False(t, exists)
}
