package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypingMarkIsIdempotent(t *testing.T) {
	tr := NewTypingTracker(10 * time.Second)

	assert.Equal(t, []string{"alice"}, tr.Mark("123456", "alice"))
	assert.Equal(t, []string{"alice"}, tr.Mark("123456", "alice"))
	assert.Equal(t, []string{"alice", "bob"}, tr.Mark("123456", "bob"))
}

func TestTypingClear(t *testing.T) {
	tr := NewTypingTracker(10 * time.Second)

	_, had := tr.Clear("123456", "alice")
	assert.False(t, had, "clearing an unknown room reports no typing set")

	tr.Mark("123456", "alice")
	tr.Mark("123456", "bob")
	set, had := tr.Clear("123456", "alice")
	require.True(t, had)
	assert.Equal(t, []string{"bob"}, set)

	// clearing a username that is not typing is a no-op
	set, had = tr.Clear("123456", "carol")
	require.True(t, had)
	assert.Equal(t, []string{"bob"}, set)

	// an emptied room drops its entry
	tr.Clear("123456", "bob")
	assert.Empty(t, tr.Snapshot("123456"))
	_, had = tr.Clear("123456", "bob")
	assert.False(t, had)
}

func TestTypingExpiry(t *testing.T) {
	tr := NewTypingTracker(10 * time.Second)
	now := time.Now()
	tr.now = func() time.Time { return now }

	tr.Mark("123456", "alice")
	now = now.Add(5 * time.Second)
	tr.Mark("123456", "bob")

	// alice's deadline passes, bob's does not
	now = now.Add(7 * time.Second)
	assert.Equal(t, []string{"bob"}, tr.Snapshot("123456"))

	// re-marking refreshes the deadline
	tr.Mark("123456", "bob")
	now = now.Add(9 * time.Second)
	assert.Equal(t, []string{"bob"}, tr.Snapshot("123456"))
}

func TestTypingSweepReportsChangedRooms(t *testing.T) {
	tr := NewTypingTracker(10 * time.Second)
	now := time.Now()
	tr.now = func() time.Time { return now }

	tr.Mark("111111", "alice")
	tr.Mark("222222", "bob")
	now = now.Add(5 * time.Second)
	tr.Mark("222222", "carol")

	assert.Empty(t, tr.Sweep(), "nothing expired yet")

	now = now.Add(7 * time.Second)
	changed := tr.Sweep()
	require.Len(t, changed, 2)
	assert.Equal(t, []string{}, changed["111111"])
	assert.Equal(t, []string{"carol"}, changed["222222"])

	// swept-empty rooms are gone entirely
	assert.Empty(t, tr.Sweep())
}
