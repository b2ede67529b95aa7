// Package protocol defines the wire-level message names and payload
// shapes exchanged between a client and the collaboration server.
package protocol

// Client -> server message names.
const (
	MsgCreateRoom        = "create-room"
	MsgJoinRoom          = "join-room"
	MsgDocumentOperation = "document-operation"
	MsgCursorPosition    = "cursor-position"
	MsgLanguageChange    = "language-change"
	MsgRequestSync       = "request-sync"
)

// Server -> client message names.
const (
	// MsgCreateRoomAck and MsgJoinRoomAck are the reserved reply-message
	// pair used to correlate create-room/join-room acknowledgements via
	// Envelope.AckID instead of a callback.
	MsgCreateRoomAck = "create-room-ack"
	MsgJoinRoomAck   = "join-room-ack"

	MsgUserJoined      = "user-joined"
	MsgUserLeft        = "user-left"
	MsgDocumentUpdate  = "document-update"
	MsgOperationAck    = "operation-ack"
	MsgOperationError  = "operation-error"
	MsgCursorUpdate    = "cursor-update"
	MsgLanguageChanged = "language-changed"
	MsgDocumentSync    = "document-sync"
	MsgSyncError       = "sync-error"
)

// User-visible error strings, exact per the wire contract. Clients match
// on these strings, so they must never be reworded.
const (
	ErrTextInvalidRoomID    = "Invalid room ID format"
	ErrTextRoomNotFound     = "Room not found"
	ErrTextAlreadyInRoom    = "Already in a different room"
	ErrTextRoomFull         = "Room is full"
	ErrTextInvalidUserData  = "Invalid user data"
	ErrTextInvalidOperation = "Invalid operation"
)

// WelcomeDocument is the fixed initial content of every newly created room.
const WelcomeDocument = "// Welcome to the collaborative editor!\n" +
	"// Start typing to see real-time collaboration in action\n\n" +
	"console.log(\"Hello, collaborative world!\");"

// RoomIDLength is the fixed length of a generated room id.
const RoomIDLength = 6

// SyncHistoryLimit is the number of most-recent history entries returned
// in a document-sync response.
const SyncHistoryLimit = 50

// RecentOperationsLimit is the number of most-recent history entries
// returned by the HTTP introspection surface for a room.
const RecentOperationsLimit = 10
