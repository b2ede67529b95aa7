package room

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	return NewRegistry(testConfig(), "welcome", time.Minute)
}

func TestCreateAllocatesUniqueRoom(t *testing.T) {
	reg := testRegistry()

	r1, err := reg.Create()
	require.NoError(t, err)
	r2, err := reg.Create()
	require.NoError(t, err)

	assert.NotEqual(t, r1.ID(), r2.ID())
	assert.Len(t, r1.ID(), 6)
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	reg := testRegistry()
	r, err := reg.Create()
	require.NoError(t, err)

	found, err := reg.Lookup(strings.ToLower(r.ID()))
	require.NoError(t, err)
	assert.Equal(t, r.ID(), found.ID())
}

func TestLookupUnknownRoomFails(t *testing.T) {
	reg := testRegistry()
	_, err := reg.Lookup("NOSUCH")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRemoveIfEmptyOnlyRemovesEmptyRoom(t *testing.T) {
	reg := testRegistry()
	r, err := reg.Create()
	require.NoError(t, err)

	_, _, err = r.AddUser("u1", "Alex", "#fff")
	require.NoError(t, err)

	assert.False(t, reg.RemoveIfEmpty(r.ID()))
	_, err = reg.Lookup(r.ID())
	assert.NoError(t, err)

	r.RemoveUser("u1")
	assert.True(t, reg.RemoveIfEmpty(r.ID()))
	_, err = reg.Lookup(r.ID())
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRemoveIfEmptyOnUnknownRoomIsFalse(t *testing.T) {
	reg := testRegistry()
	assert.False(t, reg.RemoveIfEmpty("NOSUCH"))
}

func TestSweepRemovesOnlyIdleEmptyRooms(t *testing.T) {
	reg := testRegistry()

	idleEmpty, err := reg.Create()
	require.NoError(t, err)

	occupied, err := reg.Create()
	require.NoError(t, err)
	_, _, err = occupied.AddUser("u1", "Alex", "#fff")
	require.NoError(t, err)

	removed := reg.Sweep(0)
	assert.Equal(t, 1, removed)

	_, err = reg.Lookup(idleEmpty.ID())
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = reg.Lookup(occupied.ID())
	assert.NoError(t, err)
}

func TestSweepRespectsIdleThreshold(t *testing.T) {
	reg := testRegistry()
	_, err := reg.Create()
	require.NoError(t, err)

	removed := reg.Sweep(time.Hour)
	assert.Equal(t, 0, removed)
}

func TestListReturnsAllRegisteredRooms(t *testing.T) {
	reg := testRegistry()
	_, err := reg.Create()
	require.NoError(t, err)
	_, err = reg.Create()
	require.NoError(t, err)

	assert.Len(t, reg.List(), 2)
}

func TestIsValidIDAcceptsSixCharUppercaseAlnum(t *testing.T) {
	assert.True(t, IsValidID("ABC123"))
	assert.False(t, IsValidID("abc123"))
	assert.False(t, IsValidID("ABC12"))
	assert.False(t, IsValidID("ABC-12"))
	assert.False(t, IsValidID(""))
}

