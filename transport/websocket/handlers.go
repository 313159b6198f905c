package websocket

import (
	"context"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/ultimatettt-backend/internal/apperror"
	"github.com/rocketscienceinc/ultimatettt-backend/internal/entity"
)

func (that *Server) handleConnect(ctx context.Context, conn *connection, payload *Payload) error {
	log := that.logger.With("method", "handleConnect", "connectionID", conn.id)

	session, err := that.manager.GetOrCreateSession(ctx, payload.SessionID, payload.PlayerName)
	if err != nil {
		log.Error("failed to resolve session", "error", err)
		that.sendError(conn, "", "failed to resolve session")
		return nil
	}

	log.Info("session resolved", "sessionID", session.ID)

	return that.send(conn, eventConnected, Payload{Session: session})
}

func (that *Server) handleCreateRoom(ctx context.Context, conn *connection, payload *Payload) error {
	snap := that.manager.CreateRoom(ctx, payload.PlayerName, conn.id)
	that.bindSeat(conn, snap.ID, 1)

	that.rememberName(ctx, payload)

	return that.send(conn, eventRoomCreated, Payload{
		RoomID:       snap.ID,
		PlayerNumber: 1,
	})
}

func (that *Server) handleJoinRoom(ctx context.Context, conn *connection, payload *Payload) error {
	snap, err := that.manager.JoinRoom(ctx, payload.RoomID, payload.PlayerName, conn.id)
	if err != nil {
		that.sendManagerError(conn, err)
		return nil
	}

	that.bindSeat(conn, snap.ID, 2)
	that.rememberName(ctx, payload)

	if err = that.send(conn, eventRoomJoined, Payload{
		RoomID:       snap.ID,
		PlayerNumber: 2,
		Players:      snap.Players,
	}); err != nil {
		return err
	}

	if err = that.send(conn, eventOpponentInfo, Payload{Name: snap.Players[0].Name}); err != nil {
		return err
	}

	return that.send(conn, eventGameStart, Payload{Players: snap.Players})
}

// handleRejoinRoom - reclaims a seat after a transient disconnect. When
// both seats are filled the caller gets the opponent's name, the
// game-started signal and the current authoritative state, so its game
// resumes instead of resetting.
func (that *Server) handleRejoinRoom(ctx context.Context, conn *connection, payload *Payload) error {
	snap, err := that.manager.RejoinRoom(ctx, payload.RoomID, payload.PlayerNumber, payload.PlayerName, conn.id)
	if err != nil {
		that.sendManagerError(conn, err)
		return nil
	}

	that.bindSeat(conn, snap.ID, payload.PlayerNumber)
	that.rememberName(ctx, payload)

	if len(snap.Players) < entity.MaxPlayers {
		return nil
	}

	opponent := snap.Players[entity.MaxPlayers-payload.PlayerNumber]

	if err = that.send(conn, eventOpponentInfo, Payload{Name: opponent.Name}); err != nil {
		return err
	}

	if err = that.send(conn, eventGameStart, Payload{Players: snap.Players}); err != nil {
		return err
	}

	if snap.Game == nil {
		return nil
	}

	turn := snap.CurrentTurn
	return that.send(conn, eventSyncGameState, Payload{
		GameState:   snap.Game,
		CurrentTurn: &turn,
	})
}

func (that *Server) handleMakeMove(ctx context.Context, conn *connection, payload *Payload) error {
	if payload.Move == nil {
		that.sendError(conn, "", "move is required")
		return nil
	}

	if _, err := that.manager.MakeMove(ctx, payload.RoomID, payload.PlayerNumber, *payload.Move); err != nil {
		that.sendManagerError(conn, err)
		return nil
	}

	// no echo to the mover: the opponent alone receives the move event
	return nil
}

func (that *Server) handleRestartGame(ctx context.Context, conn *connection, payload *Payload) error {
	if _, err := that.manager.RestartGame(ctx, payload.RoomID); err != nil {
		that.sendManagerError(conn, err)
		return nil
	}

	// both seats receive game-restarted through the notifier
	return nil
}

// rememberName - keeps the session's display name current; failures are
// logged, never fatal to the operation.
func (that *Server) rememberName(ctx context.Context, payload *Payload) {
	if payload.SessionID == "" || payload.PlayerName == "" {
		return
	}

	if _, err := that.manager.GetOrCreateSession(ctx, payload.SessionID, payload.PlayerName); err != nil {
		that.logger.Error("failed to update session name", "sessionID", payload.SessionID, "error", err)
	}
}

func (that *Server) sendManagerError(conn *connection, err error) {
	switch {
	case errors.Is(err, apperror.ErrRoomNotFound):
		that.sendError(conn, "RoomNotFound", "room not found")
	case errors.Is(err, apperror.ErrRoomFull):
		that.sendError(conn, "RoomFull", "room is full")
	case errors.Is(err, apperror.ErrNotYourTurn):
		that.sendError(conn, "NotYourTurn", "it's not your turn")
	case apperror.IsInvalidMove(err):
		that.sendError(conn, "InvalidMove", fmt.Sprintf("invalid move: %v", err))
	default:
		that.sendError(conn, "", "internal server error")
	}
}
