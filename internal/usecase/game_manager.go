package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/ultimatettt-backend/internal/apperror"
	"github.com/rocketscienceinc/ultimatettt-backend/internal/entity"
	"github.com/rocketscienceinc/ultimatettt-backend/internal/metrics"
	"github.com/rocketscienceinc/ultimatettt-backend/internal/pkg"
	"github.com/rocketscienceinc/ultimatettt-backend/internal/registry"
	"github.com/rocketscienceinc/ultimatettt-backend/internal/repository"
	"github.com/rocketscienceinc/ultimatettt-backend/internal/ultimate"
)

// Push event names, shared by the websocket binding. The polling
// binding has no push; peers discover changes on the next poll.
const (
	EventOpponentJoined       = "opponent-joined"
	EventOpponentMove         = "opponent-move"
	EventGameStart            = "game-start"
	EventGameRestarted        = "game-restarted"
	EventOpponentDisconnected = "opponent-disconnected"
)

type sessionRepo interface {
	CreateOrUpdate(ctx context.Context, session *entity.Session) error
	GetByID(ctx context.Context, id string) (*entity.Session, error)
}

// Notifier delivers an event to one seated player. Implemented by the
// websocket server; nil when only the polling transport is running.
type Notifier interface {
	NotifyPlayer(roomID string, playerNumber int, event string, payload any)
}

// Options are the room lifecycle knobs. Zero values fall back to the
// defaults below.
type Options struct {
	IdleTimeout     time.Duration
	ReapInterval    time.Duration
	DisconnectGrace time.Duration
}

const (
	defaultIdleTimeout     = 30 * time.Minute
	defaultReapInterval    = 5 * time.Minute
	defaultDisconnectGrace = 3 * time.Second

	graceSweepInterval = time.Second
)

func (that *Options) applyDefaults() {
	if that.IdleTimeout <= 0 {
		that.IdleTimeout = defaultIdleTimeout
	}
	if that.ReapInterval <= 0 {
		that.ReapInterval = defaultReapInterval
	}
	if that.DisconnectGrace <= 0 {
		that.DisconnectGrace = defaultDisconnectGrace
	}
}

// MovePayload is relayed to the opponent after an accepted move.
type MovePayload struct {
	Move      entity.Move       `json:"move"`
	GameState *entity.GameState `json:"gameState"`
	Turn      int               `json:"currentTurn"`
}

// GameManager is the synchronization protocol handler: it dispatches
// room actions against the registry, runs the rule engine on every
// move, and relays outcomes to the right peers.
type GameManager struct {
	logger   *slog.Logger
	rooms    *registry.Registry
	sessions sessionRepo
	metrics  *metrics.Metrics
	opts     Options

	notifier Notifier
}

func NewGameManager(logger *slog.Logger, rooms *registry.Registry, sessions sessionRepo, m *metrics.Metrics, opts Options) *GameManager {
	opts.applyDefaults()

	return &GameManager{
		logger:   logger.With("component", "game-manager"),
		rooms:    rooms,
		sessions: sessions,
		metrics:  m,
		opts:     opts,
	}
}

// SetNotifier - binds the push transport. Must be called before Run.
func (that *GameManager) SetNotifier(notifier Notifier) {
	that.notifier = notifier
}

// CreateRoom - creates a room with the caller in slot 0.
func (that *GameManager) CreateRoom(_ context.Context, displayName, connectionID string) entity.Snapshot {
	snap := that.rooms.CreateRoom(displayName, connectionID)
	that.metrics.ActiveRooms.Set(float64(that.rooms.Len()))

	return snap
}

// JoinRoom - seats the caller in slot 1 and tells slot 0 about it.
func (that *GameManager) JoinRoom(_ context.Context, roomID, displayName, connectionID string) (entity.Snapshot, error) {
	snap, err := that.rooms.JoinRoom(roomID, displayName, connectionID)
	if err != nil {
		return entity.Snapshot{}, fmt.Errorf("failed to join room: %w", err)
	}

	that.notify(roomID, 1, EventOpponentJoined, map[string]string{"name": displayName})
	that.notify(roomID, 1, EventGameStart, map[string]any{"players": snap.Players})

	return snap, nil
}

// RejoinRoom - re-associates a returning connection with its seat so a
// transient disconnect does not lose the game. The caller's transport
// replays opponent info and the current authoritative state from the
// returned snapshot; the opponent is told about the reconnection here.
func (that *GameManager) RejoinRoom(_ context.Context, roomID string, playerNumber int, displayName, connectionID string) (entity.Snapshot, error) {
	slot := playerNumber - 1

	snap, err := that.rooms.Update(roomID, func(room *entity.Room) error {
		player := room.PlayerBySlot(slot)
		if player == nil {
			return fmt.Errorf("%w: no seat %d in %s", apperror.ErrRoomNotFound, playerNumber, roomID)
		}

		player.ConnectionID = connectionID
		player.Name = displayName
		player.Connected = true
		player.DisconnectedAt = time.Time{}
		player.DisconnectNotified = false

		return nil
	})
	if err != nil {
		return entity.Snapshot{}, fmt.Errorf("failed to rejoin room: %w", err)
	}

	if len(snap.Players) == entity.MaxPlayers {
		opponent := snap.Players[1-slot]
		that.notify(roomID, opponent.Number, EventOpponentJoined, map[string]string{"name": displayName})
	}

	that.logger.Info("player rejoined", "roomID", roomID, "playerNumber", playerNumber)

	return snap, nil
}

// GetRoom - poll snapshot: players, gameState, currentTurn.
func (that *GameManager) GetRoom(_ context.Context, roomID string) (entity.Snapshot, error) {
	snap, err := that.rooms.GetRoom(roomID)
	if err != nil {
		return entity.Snapshot{}, fmt.Errorf("failed to get room: %w", err)
	}

	return snap, nil
}

// MakeMove - applies a move for playerNumber. Turn order is checked
// against the room, then the move is recomputed through the rule
// engine from the prior authoritative state; a client-derived state is
// never trusted. On success the new state is stored, the turn pointer
// flips, and the opponent (only) is sent the move.
func (that *GameManager) MakeMove(_ context.Context, roomID string, playerNumber int, move entity.Move) (entity.Snapshot, error) {
	slot := playerNumber - 1

	snap, err := that.rooms.Update(roomID, func(room *entity.Room) error {
		if room.PlayerBySlot(slot) == nil || slot != room.CurrentTurn {
			return apperror.ErrNotYourTurn
		}

		prior := authoritativeState(room)

		next, moveErr := ultimate.ApplyMove(prior, move, entity.MarkForSlot(slot))
		if moveErr != nil {
			return moveErr
		}

		room.Game = &next
		room.CurrentTurn = (room.CurrentTurn + 1) % entity.MaxPlayers

		return nil
	})
	if err != nil {
		return entity.Snapshot{}, fmt.Errorf("failed to make move: %w", err)
	}

	that.metrics.MovesTotal.Inc()

	if opponent := opponentOf(snap, slot); opponent != nil {
		that.notify(roomID, opponent.Number, EventOpponentMove, MovePayload{
			Move:      move,
			GameState: snap.Game,
			Turn:      snap.CurrentTurn,
		})
	}

	return snap, nil
}

// RestartGame - clears the game and alternates who starts. Both seats
// are told the new starting player number.
func (that *GameManager) RestartGame(_ context.Context, roomID string) (int, error) {
	snap, err := that.rooms.Update(roomID, func(room *entity.Room) error {
		room.Game = nil
		room.CurrentTurn = (room.CurrentTurn + 1) % entity.MaxPlayers
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to restart game: %w", err)
	}

	startingPlayer := snap.CurrentTurn + 1
	for _, player := range snap.Players {
		that.notify(roomID, player.Number, EventGameRestarted, map[string]int{"startingPlayer": startingPlayer})
	}

	that.logger.Info("game restarted", "roomID", roomID, "startingPlayer", startingPlayer)

	return startingPlayer, nil
}

// Disconnect - marks a seat as disconnected. The room stays alive; the
// grace sweep announces the absence if the player never returns, and
// only the idle reaper removes the room.
func (that *GameManager) Disconnect(_ context.Context, roomID string, playerNumber int) error {
	slot := playerNumber - 1

	_, err := that.rooms.Update(roomID, func(room *entity.Room) error {
		player := room.PlayerBySlot(slot)
		if player == nil {
			return fmt.Errorf("%w: no seat %d in %s", apperror.ErrRoomNotFound, playerNumber, roomID)
		}

		player.Connected = false
		player.DisconnectedAt = time.Now()
		player.DisconnectNotified = false

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to mark disconnect: %w", err)
	}

	return nil
}

// GetOrCreateSession - resolves the caller's session, creating one when
// the id is empty or unknown.
func (that *GameManager) GetOrCreateSession(ctx context.Context, sessionID, displayName string) (*entity.Session, error) {
	if sessionID == "" {
		sessionID = pkg.GenerateNewSessionID()
	}

	session, err := that.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		session = &entity.Session{ID: sessionID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if displayName != "" {
		session.Name = displayName
	}
	session.LastSeen = time.Now()

	if err = that.sessions.CreateOrUpdate(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	return session, nil
}

// Run - the janitor loop: periodic idle reaping plus the much finer
// disconnect grace sweep. Blocks until ctx is done.
func (that *GameManager) Run(ctx context.Context) {
	reapTicker := time.NewTicker(that.opts.ReapInterval)
	defer reapTicker.Stop()

	graceTicker := time.NewTicker(graceSweepInterval)
	defer graceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-reapTicker.C:
			that.CheckIdle(now)
		case now := <-graceTicker.C:
			that.CheckDisconnected(now)
		}
	}
}

// CheckIdle - one reaper sweep.
func (that *GameManager) CheckIdle(now time.Time) {
	reaped := that.rooms.ReapIdle(now, that.opts.IdleTimeout)
	if len(reaped) > 0 {
		that.metrics.RoomsReapedTotal.Add(float64(len(reaped)))
	}
	that.metrics.ActiveRooms.Set(float64(that.rooms.Len()))
}

// CheckDisconnected - one grace-window sweep. Each expired seat is
// announced to the remaining opponent exactly once.
func (that *GameManager) CheckDisconnected(now time.Time) {
	for _, gone := range that.rooms.SweepDisconnected(now, that.opts.DisconnectGrace) {
		snap, err := that.rooms.GetRoom(gone.RoomID)
		if err != nil {
			continue
		}

		if gone.OpponentSlot < 0 || gone.OpponentSlot >= len(snap.Players) {
			continue
		}

		opponent := snap.Players[gone.OpponentSlot]
		that.notify(gone.RoomID, opponent.Number, EventOpponentDisconnected, map[string]int{
			"playerNumber": gone.PlayerNumber,
		})

		that.logger.Info("opponent disconnect announced", "roomID", gone.RoomID, "playerNumber", gone.PlayerNumber)
	}
}

// authoritativeState - the prior state for a move. A fresh game starts
// from the canonical empty state, with the first mark derived from the
// room's starting slot so restarts that hand the start to slot 1 open
// with O.
func authoritativeState(room *entity.Room) entity.GameState {
	if room.Game != nil {
		return *room.Game
	}

	state := ultimate.NewGameState()
	state.CurrentPlayer = entity.MarkForSlot(room.CurrentTurn)

	return state
}

func (that *GameManager) notify(roomID string, playerNumber int, event string, payload any) {
	if that.notifier == nil {
		return
	}
	that.notifier.NotifyPlayer(roomID, playerNumber, event, payload)
}

func opponentOf(snap entity.Snapshot, slot int) *entity.Player {
	opponentSlot := 1 - slot
	if opponentSlot < 0 || opponentSlot >= len(snap.Players) {
		return nil
	}
	return &snap.Players[opponentSlot]
}
