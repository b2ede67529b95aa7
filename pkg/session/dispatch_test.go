package session

import (
	"encoding/json"
	"testing"
	"time"

	"collabhub/pkg/document"
	"collabhub/pkg/protocol"
	"collabhub/pkg/room"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDispatchRegistry(maxUsers int) *room.Registry {
	cfg := room.Config{MaxUsers: maxUsers, HistoryLimit: 10, PresenceActiveWindow: time.Minute, StatsActiveWindow: time.Minute}
	return room.NewRegistry(cfg, "welcome", time.Minute)
}

func newTestSession(id string, reg *room.Registry, hub *Hub) *Session {
	return &Session{ID: id, send: make(chan []byte, 16), registry: reg, hub: hub}
}

func sendEnvelope(s *Session, name, ackID string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	raw, err := json.Marshal(protocol.Envelope{Name: name, Payload: body, AckID: ackID})
	if err != nil {
		panic(err)
	}
	s.dispatch(raw)
}

// recvEnvelope reads one frame already queued on s.send, failing the test
// if none is available: dispatch's synchronous reply paths (acks, direct
// unicasts, hub.Broadcast) enqueue before returning, so no wait is needed.
func recvEnvelope(t *testing.T, s *Session) protocol.Envelope {
	t.Helper()
	select {
	case raw := <-s.send:
		var env protocol.Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	default:
		t.Fatal("expected a queued frame, found none")
		return protocol.Envelope{}
	}
}

// recvEnvelopeEventually waits briefly for a frame delivered by a room's
// asynchronous drain goroutine rather than synchronously within dispatch
// (document-update broadcasts go through the outbox, not a direct send).
func recvEnvelopeEventually(t *testing.T, s *Session) (protocol.Envelope, bool) {
	t.Helper()
	select {
	case raw := <-s.send:
		var env protocol.Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env, true
	case <-time.After(200 * time.Millisecond):
		return protocol.Envelope{}, false
	}
}

func assertNoFrame(t *testing.T, s *Session) {
	t.Helper()
	select {
	case raw := <-s.send:
		t.Fatalf("expected no queued frame, got %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func createRoom(t *testing.T, creator *Session, userName string) string {
	t.Helper()
	sendEnvelope(creator, protocol.MsgCreateRoom, "1", protocol.CreateRoomRequest{UserName: userName})
	env := recvEnvelope(t, creator)
	require.Equal(t, protocol.MsgCreateRoomAck, env.Name)
	var ack protocol.CreateRoomAck
	require.NoError(t, json.Unmarshal(env.Payload, &ack))
	require.True(t, ack.Success)
	return ack.RoomID
}

func TestRejoinIsIdempotentAndSuppressesUserJoinedBroadcast(t *testing.T) {
	reg := testDispatchRegistry(5)
	hub := NewHub()

	alice := newTestSession("alice", reg, hub)
	bob := newTestSession("bob", reg, hub)

	roomID := createRoom(t, alice, "Alice")

	sendEnvelope(bob, protocol.MsgJoinRoom, "1", protocol.JoinRoomRequest{RoomID: roomID, UserName: "Bob"})
	bobAck := recvEnvelope(t, bob)
	require.Equal(t, protocol.MsgJoinRoomAck, bobAck.Name)

	aliceNotice := recvEnvelope(t, alice)
	assert.Equal(t, protocol.MsgUserJoined, aliceNotice.Name)

	sendEnvelope(bob, protocol.MsgJoinRoom, "2", protocol.JoinRoomRequest{RoomID: roomID, UserName: "Bob"})
	rejoinAck := recvEnvelope(t, bob)
	require.Equal(t, protocol.MsgJoinRoomAck, rejoinAck.Name)
	var ack protocol.JoinRoomAck
	require.NoError(t, json.Unmarshal(rejoinAck.Payload, &ack))
	assert.True(t, ack.Success)

	assertNoFrame(t, alice)
}

func TestJoinRoomFullRejectsWithNoBroadcast(t *testing.T) {
	reg := testDispatchRegistry(1)
	hub := NewHub()

	alice := newTestSession("alice", reg, hub)
	bob := newTestSession("bob", reg, hub)

	roomID := createRoom(t, alice, "Alice")

	sendEnvelope(bob, protocol.MsgJoinRoom, "1", protocol.JoinRoomRequest{RoomID: roomID, UserName: "Bob"})
	env := recvEnvelope(t, bob)
	require.Equal(t, protocol.MsgJoinRoomAck, env.Name)
	var errAck protocol.ErrorAck
	require.NoError(t, json.Unmarshal(env.Payload, &errAck))
	assert.False(t, errAck.Success)
	assert.Equal(t, protocol.ErrTextRoomFull, errAck.Error)

	assertNoFrame(t, alice)
}

func TestDocumentOperationOutOfBoundsDeleteRejectedWithNoBroadcast(t *testing.T) {
	reg := testDispatchRegistry(5)
	hub := NewHub()

	alice := newTestSession("alice", reg, hub)
	bob := newTestSession("bob", reg, hub)

	roomID := createRoom(t, alice, "Alice")
	sendEnvelope(bob, protocol.MsgJoinRoom, "1", protocol.JoinRoomRequest{RoomID: roomID, UserName: "Bob"})
	recvEnvelope(t, bob)
	recvEnvelope(t, alice) // drain the user-joined notice so it can't be mistaken for a broadcast below

	sendEnvelope(alice, protocol.MsgDocumentOperation, "", document.Operation{
		Type:     document.KindDelete,
		Position: 0,
		Length:   1_000_000,
	})

	errEnv := recvEnvelope(t, alice)
	require.Equal(t, protocol.MsgOperationError, errEnv.Name)
	var payload protocol.OperationErrorPayload
	require.NoError(t, json.Unmarshal(errEnv.Payload, &payload))
	assert.Equal(t, protocol.ErrTextInvalidOperation, payload.Error)

	_, ok := recvEnvelopeEventually(t, bob)
	assert.False(t, ok, "no document-update should have been broadcast for a rejected operation")
}

func TestDocumentOperationSuccessBroadcastsViaOutbox(t *testing.T) {
	reg := testDispatchRegistry(5)
	hub := NewHub()

	alice := newTestSession("alice", reg, hub)
	bob := newTestSession("bob", reg, hub)

	roomID := createRoom(t, alice, "Alice")
	sendEnvelope(bob, protocol.MsgJoinRoom, "1", protocol.JoinRoomRequest{RoomID: roomID, UserName: "Bob"})
	recvEnvelope(t, bob)
	recvEnvelope(t, alice)

	sendEnvelope(alice, protocol.MsgDocumentOperation, "", document.Operation{
		Type:     document.KindInsert,
		Position: 0,
		Content:  "x",
	})

	ackEnv := recvEnvelope(t, alice)
	assert.Equal(t, protocol.MsgOperationAck, ackEnv.Name)

	updateEnv, ok := recvEnvelopeEventually(t, bob)
	require.True(t, ok, "expected a document-update broadcast to bob")
	assert.Equal(t, protocol.MsgDocumentUpdate, updateEnv.Name)
}

func TestLeaveCurrentRoomRemovesEmptyRoom(t *testing.T) {
	reg := testDispatchRegistry(5)
	hub := NewHub()

	alice := newTestSession("alice", reg, hub)
	roomID := createRoom(t, alice, "Alice")

	alice.leaveCurrentRoom()

	_, err := reg.Lookup(roomID)
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestParseJoinRoomPayloadAcceptsObjectShape(t *testing.T) {
	raw, _ := json.Marshal(protocol.JoinRoomRequest{RoomID: "ABC123", UserName: "Alex"})
	roomID, userName := parseJoinRoomPayload(raw)
	assert.Equal(t, "ABC123", roomID)
	assert.Equal(t, "Alex", userName)
}

func TestParseJoinRoomPayloadAcceptsLegacyBareStringShape(t *testing.T) {
	raw, _ := json.Marshal("ABC123")
	roomID, userName := parseJoinRoomPayload(raw)
	assert.Equal(t, "ABC123", roomID)
	assert.Equal(t, "", userName)
}

func TestParseJoinRoomPayloadRejectsGarbage(t *testing.T) {
	roomID, userName := parseJoinRoomPayload(json.RawMessage(`123`))
	assert.Equal(t, "", roomID)
	assert.Equal(t, "", userName)
}

func TestToUserViewReflectsActivity(t *testing.T) {
	cfg := room.Config{MaxUsers: 5, HistoryLimit: 10, PresenceActiveWindow: 0}
	r := room.New("ABC123", "welcome", cfg)
	presence, _, err := r.AddUser("u1", "Alex", "#fff")
	assert.NoError(t, err)

	view := toUserView(presence, r)
	assert.Equal(t, "Alex", view.Name)
	assert.False(t, view.IsActive)
}
