package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rocketscienceinc/ultimatettt-backend/internal/apperror"
	"github.com/rocketscienceinc/ultimatettt-backend/internal/entity"
)

const (
	actionCreateRoom  = "create-room"
	actionJoinRoom    = "join-room"
	actionRejoinRoom  = "rejoin-room"
	actionGetRoom     = "get-room"
	actionMakeMove    = "make-move"
	actionRestartGame = "restart-game"
)

// Error kinds reported to the caller alongside the message.
const (
	kindRoomNotFound = "RoomNotFound"
	kindRoomFull     = "RoomFull"
	kindNotYourTurn  = "NotYourTurn"
	kindInvalidMove  = "InvalidMove"
	kindBadRequest   = "BadRequest"
)

type actionRequest struct {
	Action       string       `json:"action"`
	RoomID       string       `json:"roomId,omitempty"`
	PlayerNumber int          `json:"playerNumber,omitempty"`
	PlayerName   string       `json:"playerName,omitempty"`
	Move         *entity.Move `json:"move,omitempty"`

	// Accepted for compatibility with older clients that push their
	// derived state; the server recomputes and ignores it.
	GameState json.RawMessage `json:"gameState,omitempty"`
}

type roomBody struct {
	Players     []entity.Player   `json:"players"`
	Game        *entity.GameState `json:"gameState"`
	CurrentTurn int               `json:"currentTurn"`
}

type actionResponse struct {
	Success        bool            `json:"success"`
	RoomID         string          `json:"roomId,omitempty"`
	PlayerNumber   int             `json:"playerNumber,omitempty"`
	Players        []entity.Player `json:"players,omitempty"`
	Room           *roomBody       `json:"room,omitempty"`
	Opponent       *entity.Player  `json:"opponent,omitempty"`
	StartingPlayer int             `json:"startingPlayer,omitempty"`
	Error          string          `json:"error,omitempty"`
	Kind           string          `json:"kind,omitempty"`
}

func (that *Server) roomsHandler(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "roomsHandler")

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kindBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()

	switch req.Action {
	case actionCreateRoom:
		snap := that.manager.CreateRoom(ctx, req.PlayerName, "")
		writeJSON(w, http.StatusOK, actionResponse{
			Success:      true,
			RoomID:       snap.ID,
			PlayerNumber: 1,
		})

	case actionJoinRoom:
		snap, err := that.manager.JoinRoom(ctx, req.RoomID, req.PlayerName, "")
		if err != nil {
			that.writeManagerError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, actionResponse{
			Success:      true,
			RoomID:       snap.ID,
			PlayerNumber: 2,
			Players:      snap.Players,
		})

	case actionRejoinRoom:
		snap, err := that.manager.RejoinRoom(ctx, req.RoomID, req.PlayerNumber, req.PlayerName, "")
		if err != nil {
			that.writeManagerError(w, log, err)
			return
		}

		resp := actionResponse{
			Success:      true,
			RoomID:       snap.ID,
			PlayerNumber: req.PlayerNumber,
			Room:         snapshotBody(snap),
		}
		if len(snap.Players) == entity.MaxPlayers {
			opponent := snap.Players[2-req.PlayerNumber]
			resp.Opponent = &opponent
		}
		writeJSON(w, http.StatusOK, resp)

	case actionGetRoom:
		snap, err := that.manager.GetRoom(ctx, req.RoomID)
		if err != nil {
			that.writeManagerError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, actionResponse{
			Success: true,
			Room:    snapshotBody(snap),
		})

	case actionMakeMove:
		if req.Move == nil {
			writeError(w, http.StatusBadRequest, kindBadRequest, "move is required")
			return
		}
		if _, err := that.manager.MakeMove(ctx, req.RoomID, req.PlayerNumber, *req.Move); err != nil {
			that.writeManagerError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, actionResponse{Success: true})

	case actionRestartGame:
		startingPlayer, err := that.manager.RestartGame(ctx, req.RoomID)
		if err != nil {
			that.writeManagerError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, actionResponse{
			Success:        true,
			StartingPlayer: startingPlayer,
		})

	default:
		writeError(w, http.StatusBadRequest, kindBadRequest, "unknown action")
	}
}

func snapshotBody(snap entity.Snapshot) *roomBody {
	return &roomBody{
		Players:     snap.Players,
		Game:        snap.Game,
		CurrentTurn: snap.CurrentTurn,
	}
}

// writeManagerError - maps protocol errors to structured failures; no
// error here ever kills the handling process.
func (that *Server) writeManagerError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, apperror.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, kindRoomNotFound, "room not found")
	case errors.Is(err, apperror.ErrRoomFull):
		writeError(w, http.StatusBadRequest, kindRoomFull, "room is full")
	case errors.Is(err, apperror.ErrNotYourTurn):
		writeError(w, http.StatusBadRequest, kindNotYourTurn, "it's not your turn")
	case apperror.IsInvalidMove(err):
		writeError(w, http.StatusBadRequest, kindInvalidMove, err.Error())
	default:
		log.Error("unexpected handler error", "error", err)
		writeError(w, http.StatusInternalServerError, "", "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, actionResponse{
		Success: false,
		Error:   message,
		Kind:    kind,
	})
}

func writeJSON(w http.ResponseWriter, status int, body actionResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
