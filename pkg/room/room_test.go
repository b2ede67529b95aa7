package room

import (
	"sync"
	"testing"
	"time"

	"collabhub/pkg/document"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		MaxUsers:             3,
		HistoryLimit:         10,
		PresenceActiveWindow: 30 * time.Second,
		StatsActiveWindow:    5 * time.Minute,
	}
}

func TestAddUserRejectsEmptyNameOrColor(t *testing.T) {
	r := New("ABC123", "welcome", testConfig())

	_, _, err := r.AddUser("u1", "", "#fff")
	assert.ErrorIs(t, err, ErrInvalidUserData)

	_, _, err = r.AddUser("u1", "Alex", "")
	assert.ErrorIs(t, err, ErrInvalidUserData)
}

func TestAddUserRejectsOverCapacity(t *testing.T) {
	r := New("ABC123", "welcome", testConfig())

	for i := 0; i < 3; i++ {
		_, _, err := r.AddUser(string(rune('a'+i)), "name", "#fff")
		require.NoError(t, err)
	}

	_, _, err := r.AddUser("overflow", "name", "#fff")
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestAddUserReturnsFullMemberSnapshot(t *testing.T) {
	r := New("ABC123", "welcome", testConfig())

	_, members, err := r.AddUser("u1", "Alex", "#fff")
	require.NoError(t, err)
	assert.Len(t, members, 1)

	_, members, err = r.AddUser("u2", "Blake", "#000")
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestRemoveUserIsIdempotent(t *testing.T) {
	r := New("ABC123", "welcome", testConfig())
	_, _, err := r.AddUser("u1", "Alex", "#fff")
	require.NoError(t, err)

	_, remaining, ok := r.RemoveUser("u1")
	assert.True(t, ok)
	assert.Equal(t, 0, remaining)

	_, remaining, ok = r.RemoveUser("u1")
	assert.False(t, ok)
	assert.Equal(t, 0, remaining)
}

func TestSubmitOperationAppliesAndRecordsHistory(t *testing.T) {
	r := New("ABC123", "hello", testConfig())

	op := document.Operation{Type: document.KindInsert, Position: 5, Content: "!", ID: "op1"}
	applied, err := r.SubmitOperation(op)
	require.NoError(t, err)
	assert.Equal(t, "ABC123", applied.RoomID)
	assert.NotZero(t, applied.Timestamp)

	text, version := r.DocumentSnapshot()
	assert.Equal(t, "hello!", text)
	assert.Equal(t, 1, version)

	history := r.RecentHistory(10)
	require.Len(t, history, 1)
	assert.Equal(t, "op1", history[0].Operation.ID)
}

func TestSubmitOperationRejectsInvalidLeavesDocumentUnchanged(t *testing.T) {
	r := New("ABC123", "hello", testConfig())

	_, err := r.SubmitOperation(document.Operation{Type: document.KindDelete, Position: 0, Length: 99})
	assert.Error(t, err)

	text, version := r.DocumentSnapshot()
	assert.Equal(t, "hello", text)
	assert.Equal(t, 0, version)
}

func TestHistoryIsBoundedByConfiguredLimit(t *testing.T) {
	cfg := testConfig()
	cfg.HistoryLimit = 3
	r := New("ABC123", "aaaaaaaaaa", cfg)

	for i := 0; i < 5; i++ {
		_, err := r.SubmitOperation(document.Operation{Type: document.KindInsert, Position: 0, Content: "x"})
		require.NoError(t, err)
	}

	history := r.RecentHistory(100)
	assert.Len(t, history, 3)
}

func TestShouldCleanupRequiresEmptyAndIdle(t *testing.T) {
	r := New("ABC123", "welcome", testConfig())
	assert.False(t, r.ShouldCleanup(time.Hour))

	_, _, err := r.AddUser("u1", "Alex", "#fff")
	require.NoError(t, err)
	assert.False(t, r.ShouldCleanup(0))

	r.RemoveUser("u1")
	assert.True(t, r.ShouldCleanup(0))
}

func TestGetStatsReflectsMembershipAndDocument(t *testing.T) {
	r := New("ABC123", "hello", testConfig())
	_, _, err := r.AddUser("u1", "Alex", "#fff")
	require.NoError(t, err)

	stats := r.GetStats()
	assert.Equal(t, 1, stats.UserCount)
	assert.Equal(t, 3, stats.MaxUsers)
	assert.Equal(t, 5, stats.DocumentLength)
	assert.True(t, stats.IsActive)
}

func TestConcurrentOperationsApplyOneAtATime(t *testing.T) {
	r := New("ABC123", "", testConfig())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.SubmitOperation(document.Operation{Type: document.KindInsert, Position: 0, Content: "x"})
		}()
	}
	wg.Wait()

	text, version := r.DocumentSnapshot()
	assert.Len(t, text, 50)
	assert.Equal(t, 10, version) // history limit caps recorded count, not applied count
}
