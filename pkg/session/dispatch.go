package session

import (
	"encoding/json"
	"errors"
	"time"

	"collabhub/pkg/document"
	"collabhub/pkg/idgen"
	"collabhub/pkg/logger"
	"collabhub/pkg/metrics"
	"collabhub/pkg/protocol"
	"collabhub/pkg/room"

	"go.uber.org/zap"
)

// ErrAlreadyInRoom is returned when a session bound to one room attempts
// to join a different one without leaving first.
var ErrAlreadyInRoom = errors.New(protocol.ErrTextAlreadyInRoom)

// dispatch parses one inbound frame and routes it by message name,
// tolerating older payload shapes some clients still send for join-room
// (a bare room-id string instead of an object).
func (s *Session) dispatch(raw []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Warn("malformed envelope", logger.SessionID(s.ID), zap.Error(err))
		return
	}

	switch env.Name {
	case protocol.MsgCreateRoom:
		s.handleCreateRoom(env)
	case protocol.MsgJoinRoom:
		s.handleJoinRoom(env)
	case protocol.MsgDocumentOperation:
		s.handleDocumentOperation(env)
	case protocol.MsgCursorPosition:
		s.handleCursorPosition(env)
	case protocol.MsgLanguageChange:
		s.handleLanguageChange(env)
	case protocol.MsgRequestSync:
		s.handleRequestSync(env)
	default:
		logger.Warn("unknown message name", logger.SessionID(s.ID), zap.String("name", env.Name))
	}
}

func (s *Session) handleCreateRoom(env protocol.Envelope) {
	var req protocol.CreateRoomRequest
	if len(env.Payload) > 0 {
		_ = json.Unmarshal(env.Payload, &req) // legacy create-room(callback): empty payload -> zero value
	}

	r, err := s.registry.Create()
	if err != nil {
		logger.Error("room creation failed", zap.Error(err))
		s.replyError(env.AckID, protocol.MsgCreateRoomAck, "Room creation failed")
		return
	}

	name := req.UserName
	if name == "" {
		name = idgen.UserName(r.MemberCount())
	}
	color := idgen.NextColor()

	presence, members, err := r.AddUser(s.ID, name, color)
	if err != nil {
		s.replyError(env.AckID, protocol.MsgCreateRoomAck, err.Error())
		return
	}

	s.currentRoomID = r.ID()
	s.hub.Join(r.ID(), s)
	s.registry.Metrics().SetRoomParticipants(r.ID(), len(members))
	go s.hub.drainRoomBroadcasts(r)

	text, _ := r.DocumentSnapshot()
	ack := protocol.CreateRoomAck{
		Success:   true,
		RoomID:    r.ID(),
		Document:  text,
		Users:     toUserViews(members, r),
		User:      toUserView(presence, r),
		RoomStats: toRoomStats(r.GetStats()),
	}
	s.replyJSON(env.AckID, protocol.MsgCreateRoomAck, ack)
}

func (s *Session) handleJoinRoom(env protocol.Envelope) {
	roomID, userName := parseJoinRoomPayload(env.Payload)
	normalized := room.NormalizeID(roomID)

	if !room.IsValidID(normalized) {
		s.replyError(env.AckID, protocol.MsgJoinRoomAck, room.ErrInvalidRoomID.Error())
		return
	}

	if s.currentRoomID != "" {
		if s.currentRoomID == normalized {
			s.replyRejoin(env.AckID, normalized)
			return
		}
		s.replyError(env.AckID, protocol.MsgJoinRoomAck, ErrAlreadyInRoom.Error())
		return
	}

	r, err := s.registry.Lookup(normalized)
	if err != nil {
		s.replyError(env.AckID, protocol.MsgJoinRoomAck, protocol.ErrTextRoomNotFound)
		return
	}

	name := userName
	if name == "" {
		name = idgen.UserName(r.MemberCount())
	}
	color := idgen.NextColor()

	presence, members, err := r.AddUser(s.ID, name, color)
	if err != nil {
		s.replyError(env.AckID, protocol.MsgJoinRoomAck, err.Error())
		return
	}

	s.currentRoomID = r.ID()
	s.hub.Join(r.ID(), s)
	s.registry.Metrics().SetRoomParticipants(r.ID(), len(members))

	s.hub.Broadcast(r.ID(), s.ID, encodeJSON(protocol.MsgUserJoined, protocol.UserJoinedPayload{
		User:      toUserView(presence, r),
		UserCount: len(members),
	}))

	text, version := r.DocumentSnapshot()
	ack := protocol.JoinRoomAck{
		Success:         true,
		Document:        text,
		Users:           toUserViews(members, r),
		User:            toUserView(presence, r),
		RoomStats:       toRoomStats(r.GetStats()),
		DocumentVersion: version,
	}
	s.replyJSON(env.AckID, protocol.MsgJoinRoomAck, ack)
}

// replyRejoin answers an idempotent rejoin: current state, no new member,
// no broadcast.
func (s *Session) replyRejoin(ackID, roomID string) {
	r, err := s.registry.Lookup(roomID)
	if err != nil {
		s.replyError(ackID, protocol.MsgJoinRoomAck, protocol.ErrTextRoomNotFound)
		return
	}
	members := r.GetUserList()
	var self room.Presence
	for _, p := range members {
		if p.ID == s.ID {
			self = p
			break
		}
	}
	text, version := r.DocumentSnapshot()
	ack := protocol.JoinRoomAck{
		Success:         true,
		Document:        text,
		Users:           toUserViews(members, r),
		User:            toUserView(self, r),
		RoomStats:       toRoomStats(r.GetStats()),
		DocumentVersion: version,
	}
	s.replyJSON(ackID, protocol.MsgJoinRoomAck, ack)
}

func (s *Session) handleDocumentOperation(env protocol.Envelope) {
	if s.currentRoomID == "" {
		return
	}
	r, err := s.registry.Lookup(s.currentRoomID)
	if err != nil {
		return
	}

	var op document.Operation
	if err := json.Unmarshal(env.Payload, &op); err != nil {
		return
	}
	op.UserID = s.ID

	applied, err := r.SubmitOperation(op)
	if err != nil {
		metrics.RecordOperation(string(op.Type), false)
		s.deliver(encodeJSON(protocol.MsgOperationError, protocol.OperationErrorPayload{
			Error:       protocol.ErrTextInvalidOperation,
			Operation:   op,
			OperationID: op.ID,
		}))
		return
	}

	metrics.RecordOperation(string(applied.Type), true)
	s.deliver(encodeJSON(protocol.MsgOperationAck, protocol.OperationAckPayload{
		Success:     true,
		OperationID: applied.ID,
		Operation:   applied,
	}))
	// The document-update broadcast itself is not sent here: it is
	// enqueued on r's outbox by SubmitOperation, under the same lock that
	// serializes applies, and relayed by that room's single drain
	// goroutine so concurrent submitters can never race each other past
	// this point and broadcast out of apply order.
}

func (s *Session) handleCursorPosition(env protocol.Envelope) {
	if s.currentRoomID == "" {
		return
	}
	r, err := s.registry.Lookup(s.currentRoomID)
	if err != nil {
		return
	}

	var req protocol.CursorPositionRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return
	}

	presence, ok := r.UpdateUserCursor(s.ID, room.CursorPos{Line: req.Line, Column: req.Column})
	if !ok {
		return
	}

	s.hub.Broadcast(r.ID(), s.ID, encodeJSON(protocol.MsgCursorUpdate, protocol.CursorUpdatePayload{
		UserID:   s.ID,
		Position: protocol.CursorPos{Line: req.Line, Column: req.Column},
		User:     toUserView(presence, r),
	}))
}

func (s *Session) handleLanguageChange(env protocol.Envelope) {
	if s.currentRoomID == "" {
		return
	}
	r, err := s.registry.Lookup(s.currentRoomID)
	if err != nil {
		return
	}

	var req protocol.LanguageChangeRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return
	}

	userName := ""
	for _, p := range r.GetUserList() {
		if p.ID == s.ID {
			userName = p.Name
			break
		}
	}

	s.hub.Broadcast(r.ID(), s.ID, encodeJSON(protocol.MsgLanguageChanged, protocol.LanguageChangedPayload{
		UserID:   s.ID,
		Language: req.Language,
		UserName: userName,
	}))
}

func (s *Session) handleRequestSync(env protocol.Envelope) {
	if s.currentRoomID == "" {
		s.deliver(encodeJSON(protocol.MsgSyncError, protocol.SyncErrorPayload{Error: protocol.ErrTextRoomNotFound}))
		return
	}
	r, err := s.registry.Lookup(s.currentRoomID)
	if err != nil {
		s.deliver(encodeJSON(protocol.MsgSyncError, protocol.SyncErrorPayload{Error: protocol.ErrTextRoomNotFound}))
		return
	}

	text, version := r.DocumentSnapshot()
	recent := r.RecentHistory(protocol.SyncHistoryLimit)
	ops := make([]interface{}, 0, len(recent))
	for _, entry := range recent {
		ops = append(ops, entry.Operation)
	}

	s.deliver(encodeJSON(protocol.MsgDocumentSync, protocol.DocumentSyncPayload{
		Document:   text,
		Version:    version,
		Operations: ops,
		Timestamp:  time.Now().UnixMilli(),
	}))
}

// --- reply/encode helpers ---

func (s *Session) replyJSON(ackID, name string, payload interface{}) {
	s.deliver(encodeJSONWithAck(ackID, name, payload))
}

func (s *Session) replyError(ackID, name, errText string) {
	s.deliver(encodeJSONWithAck(ackID, name, protocol.ErrorAck{Success: false, Error: errText}))
}

func encodeJSON(name string, payload interface{}) []byte {
	return encodeJSONWithAck("", name, payload)
}

func encodeJSONWithAck(ackID, name string, payload interface{}) []byte {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal payload", zap.String("name", name), zap.Error(err))
		body = []byte("null")
	}
	env := protocol.Envelope{Name: name, Payload: body, AckID: ackID}
	data, err := json.Marshal(env)
	if err != nil {
		logger.Error("failed to marshal envelope", zap.String("name", name), zap.Error(err))
		return nil
	}
	return data
}

func encodeUserLeft(sessionID string) []byte {
	return encodeJSON(protocol.MsgUserLeft, sessionID)
}

func parseJoinRoomPayload(raw json.RawMessage) (roomID, userName string) {
	var req protocol.JoinRoomRequest
	if err := json.Unmarshal(raw, &req); err == nil && req.RoomID != "" {
		return req.RoomID, req.UserName
	}
	// legacy join-room(string) shape: the bare room id as the payload.
	var bare string
	if err := json.Unmarshal(raw, &bare); err == nil {
		return bare, ""
	}
	return "", ""
}

func toUserView(p room.Presence, r *room.Room) protocol.UserView {
	return protocol.UserView{
		ID:       p.ID,
		Name:     p.Name,
		Color:    p.Color,
		Cursor:   protocol.CursorPos{Line: p.Cursor.Line, Column: p.Cursor.Column},
		JoinedAt: p.JoinedAt.UnixMilli(),
		LastSeen: p.LastSeen.UnixMilli(),
		IsActive: r.IsActive(p),
	}
}

func toUserViews(members []room.Presence, r *room.Room) []protocol.UserView {
	out := make([]protocol.UserView, 0, len(members))
	for _, p := range members {
		out = append(out, toUserView(p, r))
	}
	return out
}

func toRoomStats(st room.Stats) protocol.RoomStats {
	return protocol.RoomStats{
		ID:             st.ID,
		UserCount:      st.UserCount,
		MaxUsers:       st.MaxUsers,
		DocumentLength: st.DocumentLength,
		OperationCount: st.OperationCount,
		CreatedAt:      st.CreatedAt.UnixMilli(),
		LastActivity:   st.LastActivity.UnixMilli(),
		IsActive:       st.IsActive,
	}
}
