package websocket

import (
	"encoding/json"

	"github.com/rocketscienceinc/ultimatettt-backend/internal/entity"
)

// Client actions.
const (
	actionConnect     = "connect"
	actionCreateRoom  = "create-room"
	actionJoinRoom    = "join-room"
	actionRejoinRoom  = "rejoin-room"
	actionMakeMove    = "make-move"
	actionRestartGame = "restart-game"
)

// Server events. The room events match the original relay protocol so
// existing clients keep working.
const (
	eventConnected     = "connected"
	eventRoomCreated   = "room-created"
	eventRoomJoined    = "room-joined"
	eventOpponentInfo  = "opponent-info"
	eventGameStart     = "game-start"
	eventSyncGameState = "sync-game-state"
	eventError         = "error"
)

// Message is one frame on the wire: an action name plus its payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Payload covers both request and event bodies; unused fields are
// omitted on the wire.
type Payload struct {
	SessionID    string            `json:"sessionId,omitempty"`
	PlayerName   string            `json:"playerName,omitempty"`
	RoomID       string            `json:"roomId,omitempty"`
	PlayerNumber int               `json:"playerNumber,omitempty"`
	Name         string            `json:"name,omitempty"`
	Players      []entity.Player   `json:"players,omitempty"`
	Move         *entity.Move      `json:"move,omitempty"`
	GameState    *entity.GameState `json:"gameState,omitempty"`
	CurrentTurn  *int              `json:"currentTurn,omitempty"`
	Session      *entity.Session   `json:"session,omitempty"`
	Error        string            `json:"error,omitempty"`
	Kind         string            `json:"kind,omitempty"`
}
