package protocol

import "encoding/json"

// Envelope is the wire frame for every message in either direction: a
// name plus a JSON-shaped payload, and — for client requests that expect
// an acknowledgement — a correlation id the server echoes back on the
// reply so the sender can match it to the original request.
type Envelope struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
	AckID   string          `json:"ackId,omitempty"`
}

// CreateRoomRequest is the create-room payload. UserName is optional;
// the legacy create-room(callback) shape arrives with no payload at all,
// which the dispatcher treats as an empty CreateRoomRequest.
type CreateRoomRequest struct {
	UserName string `json:"userName"`
}

// JoinRoomRequest is the join-room payload. The legacy shape is a bare
// room-id string instead of this object; the dispatcher normalizes it
// before reaching room logic.
type JoinRoomRequest struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

// CursorPositionRequest is the free-form cursor-position payload.
type CursorPositionRequest struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// LanguageChangeRequest is the language-change payload.
type LanguageChangeRequest struct {
	Language string `json:"language"`
	UserID   string `json:"userId,omitempty"`
}

// UserView is the wire shape of a room member, derived from a Presence.
type UserView struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
	Cursor   CursorPos `json:"cursor"`
	JoinedAt int64     `json:"joinedAt"`
	LastSeen int64     `json:"lastSeen"`
	IsActive bool      `json:"isActive"`
}

// CursorPos is a {line, column} pair.
type CursorPos struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// RoomStats is the wire shape of Room.getStats().
type RoomStats struct {
	ID             string `json:"id"`
	UserCount      int    `json:"userCount"`
	MaxUsers       int    `json:"maxUsers"`
	DocumentLength int    `json:"documentLength"`
	OperationCount int    `json:"operationCount"`
	CreatedAt      int64  `json:"createdAt"`
	LastActivity   int64  `json:"lastActivity"`
	IsActive       bool   `json:"isActive"`
}

// CreateRoomAck is the create-room acknowledgement on success.
type CreateRoomAck struct {
	Success   bool       `json:"success"`
	RoomID    string     `json:"roomId"`
	Document  string     `json:"document"`
	Users     []UserView `json:"users"`
	User      UserView   `json:"user"`
	RoomStats RoomStats  `json:"roomStats"`
}

// JoinRoomAck is the join-room acknowledgement on success. It shares most
// fields with CreateRoomAck but additionally carries DocumentVersion,
// which create-room's reply does not.
type JoinRoomAck struct {
	Success         bool       `json:"success"`
	Document        string     `json:"document"`
	Users           []UserView `json:"users"`
	User            UserView   `json:"user"`
	RoomStats       RoomStats  `json:"roomStats"`
	DocumentVersion int        `json:"documentVersion"`
}

// ErrorAck is the shared shape of any failed acknowledgement.
type ErrorAck struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// UserJoinedPayload is broadcast to existing members when someone joins.
type UserJoinedPayload struct {
	User      UserView `json:"user"`
	UserCount int      `json:"userCount"`
}

// OperationAckPayload acknowledges a document-operation back to its
// originator only.
type OperationAckPayload struct {
	Success     bool        `json:"success"`
	OperationID string      `json:"operationId"`
	Operation   interface{} `json:"operation"`
}

// OperationErrorPayload reports a rejected or failed operation back to
// its originator only.
type OperationErrorPayload struct {
	Error       string      `json:"error"`
	Operation   interface{} `json:"operation"`
	OperationID string      `json:"operationId"`
}

// CursorUpdatePayload is broadcast on cursor-position, unordered with
// respect to document-update.
type CursorUpdatePayload struct {
	UserID   string    `json:"userId"`
	Position CursorPos `json:"position"`
	User     UserView  `json:"user"`
}

// LanguageChangedPayload is broadcast on language-change.
type LanguageChangedPayload struct {
	UserID   string `json:"userId"`
	Language string `json:"language"`
	UserName string `json:"userName"`
}

// DocumentSyncPayload answers request-sync for the requester only.
type DocumentSyncPayload struct {
	Document   string        `json:"document"`
	Version    int           `json:"version"`
	Operations []interface{} `json:"operations"`
	Timestamp  int64         `json:"timestamp"`
}

// SyncErrorPayload answers request-sync when the requester has no room.
type SyncErrorPayload struct {
	Error string `json:"error"`
}
