package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/ultimatettt-backend/internal/apperror"
	"github.com/rocketscienceinc/ultimatettt-backend/internal/entity"
	"github.com/rocketscienceinc/ultimatettt-backend/internal/metrics"
	"github.com/rocketscienceinc/ultimatettt-backend/internal/registry"
	"github.com/rocketscienceinc/ultimatettt-backend/internal/repository"
)

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]entity.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]entity.Session)}
}

func (that *fakeSessionRepo) CreateOrUpdate(_ context.Context, session *entity.Session) error {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.sessions[session.ID] = *session
	return nil
}

func (that *fakeSessionRepo) GetByID(_ context.Context, id string) (*entity.Session, error) {
	that.mu.Lock()
	defer that.mu.Unlock()
	session, ok := that.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return &session, nil
}

type notification struct {
	RoomID       string
	PlayerNumber int
	Event        string
	Payload      any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (that *recordingNotifier) NotifyPlayer(roomID string, playerNumber int, event string, payload any) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.events = append(that.events, notification{RoomID: roomID, PlayerNumber: playerNumber, Event: event, Payload: payload})
}

func (that *recordingNotifier) byEvent(event string) []notification {
	that.mu.Lock()
	defer that.mu.Unlock()
	var out []notification
	for _, n := range that.events {
		if n.Event == event {
			out = append(out, n)
		}
	}
	return out
}

func newTestManager(t *testing.T, opts Options) (*GameManager, *recordingNotifier) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := NewGameManager(logger, registry.New(logger), newFakeSessionRepo(), metrics.New("test", prometheus.NewRegistry()), opts)

	notifier := &recordingNotifier{}
	manager.SetNotifier(notifier)

	return manager, notifier
}

func fullRoom(t *testing.T, manager *GameManager) entity.Snapshot {
	t.Helper()

	ctx := context.Background()
	created := manager.CreateRoom(ctx, "alice", "conn-1")

	snap, err := manager.JoinRoom(ctx, created.ID, "bob", "conn-2")
	require.NoError(t, err)

	return snap
}

func TestGameManager_JoinRoom(t *testing.T) {
	// Given: a manager with one open room
	manager, notifier := newTestManager(t, Options{})

	// When: the second player joins
	snap := fullRoom(t, manager)

	// Then: player 1 is told about the opponent and the game start
	require.Len(t, snap.Players, 2)

	joined := notifier.byEvent(EventOpponentJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, 1, joined[0].PlayerNumber)
	assert.Equal(t, snap.ID, joined[0].RoomID)

	started := notifier.byEvent(EventGameStart)
	require.Len(t, started, 1)
	assert.Equal(t, 1, started[0].PlayerNumber)
}

func TestGameManager_MakeMove(t *testing.T) {
	ctx := context.Background()

	t.Run("First move is recomputed and relayed to the opponent", func(t *testing.T) {
		// Given: a full room with no game yet
		manager, notifier := newTestManager(t, Options{})
		room := fullRoom(t, manager)

		// When: player 1 plays the center cell of the center board
		move := entity.Move{BoardRow: 1, BoardCol: 1, CellRow: 1, CellCol: 1}
		snap, err := manager.MakeMove(ctx, room.ID, 1, move)
		require.NoError(t, err)

		// Then: the state was computed server-side and the turn flipped
		require.NotNil(t, snap.Game)
		assert.Equal(t, entity.PlayerX, snap.Game.MainBoard[1][1][1][1])
		assert.Equal(t, entity.PlayerO, snap.Game.CurrentPlayer)
		assert.Equal(t, 1, snap.CurrentTurn)

		// Then: only player 2 was sent the move
		relayed := notifier.byEvent(EventOpponentMove)
		require.Len(t, relayed, 1)
		assert.Equal(t, 2, relayed[0].PlayerNumber)

		payload, ok := relayed[0].Payload.(MovePayload)
		require.True(t, ok)
		assert.Equal(t, move, payload.Move)
		assert.Equal(t, 1, payload.Turn)
	})

	t.Run("Move out of turn leaves the room unchanged", func(t *testing.T) {
		// Given: a fresh game where player 1 is to move
		manager, notifier := newTestManager(t, Options{})
		room := fullRoom(t, manager)

		// When: player 2 tries to move first
		_, err := manager.MakeMove(ctx, room.ID, 2, entity.Move{})

		// Then: the move is rejected and nothing changed or was relayed
		require.ErrorIs(t, err, apperror.ErrNotYourTurn)

		snap, err := manager.GetRoom(ctx, room.ID)
		require.NoError(t, err)
		assert.Nil(t, snap.Game)
		assert.Equal(t, 0, snap.CurrentTurn)
		assert.Empty(t, notifier.byEvent(EventOpponentMove))
	})

	t.Run("Occupied cell is rejected by the recomputation", func(t *testing.T) {
		manager, _ := newTestManager(t, Options{})
		room := fullRoom(t, manager)

		_, err := manager.MakeMove(ctx, room.ID, 1, entity.Move{BoardRow: 1, BoardCol: 1, CellRow: 1, CellCol: 1})
		require.NoError(t, err)

		// When: player 2 targets the cell player 1 just took
		_, err = manager.MakeMove(ctx, room.ID, 2, entity.Move{BoardRow: 1, BoardCol: 1, CellRow: 1, CellCol: 1})

		require.ErrorIs(t, err, apperror.ErrCellOccupied)
		assert.True(t, apperror.IsInvalidMove(err))
	})

	t.Run("Forced board is enforced across moves", func(t *testing.T) {
		manager, _ := newTestManager(t, Options{})
		room := fullRoom(t, manager)

		// Given: player 1's move forces board (0,2)
		_, err := manager.MakeMove(ctx, room.ID, 1, entity.Move{BoardRow: 0, BoardCol: 0, CellRow: 0, CellCol: 2})
		require.NoError(t, err)

		// When: player 2 plays some other board
		_, err = manager.MakeMove(ctx, room.ID, 2, entity.Move{BoardRow: 2, BoardCol: 2, CellRow: 0, CellCol: 0})
		require.ErrorIs(t, err, apperror.ErrWrongBoard)

		// Then: the forced board itself is accepted
		snap, err := manager.MakeMove(ctx, room.ID, 2, entity.Move{BoardRow: 0, BoardCol: 2, CellRow: 1, CellCol: 1})
		require.NoError(t, err)
		assert.Equal(t, entity.PlayerO, snap.Game.MainBoard[0][2][1][1])
	})

	t.Run("Unknown room", func(t *testing.T) {
		manager, _ := newTestManager(t, Options{})

		_, err := manager.MakeMove(ctx, "NOSUCH", 1, entity.Move{})

		require.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})
}

func TestGameManager_RestartGame(t *testing.T) {
	ctx := context.Background()

	t.Run("Start alternates and both seats are told", func(t *testing.T) {
		// Given: a full room with a move already made
		manager, notifier := newTestManager(t, Options{})
		room := fullRoom(t, manager)

		_, err := manager.MakeMove(ctx, room.ID, 1, entity.Move{BoardRow: 1, BoardCol: 1, CellRow: 1, CellCol: 1})
		require.NoError(t, err)

		// When: the game restarts
		starting, err := manager.RestartGame(ctx, room.ID)
		require.NoError(t, err)

		// Then: player 2 starts and the board is cleared
		assert.Equal(t, 2, starting)

		snap, err := manager.GetRoom(ctx, room.ID)
		require.NoError(t, err)
		assert.Nil(t, snap.Game)
		assert.Equal(t, 1, snap.CurrentTurn)

		restarted := notifier.byEvent(EventGameRestarted)
		require.Len(t, restarted, 2)
		assert.ElementsMatch(t, []int{1, 2}, []int{restarted[0].PlayerNumber, restarted[1].PlayerNumber})

		// Then: a second restart hands the start back to player 1
		starting, err = manager.RestartGame(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, starting)
	})

	t.Run("Starting player 2 opens with O", func(t *testing.T) {
		// Given: a restart that handed the start to player 2
		manager, _ := newTestManager(t, Options{})
		room := fullRoom(t, manager)

		starting, err := manager.RestartGame(ctx, room.ID)
		require.NoError(t, err)
		require.Equal(t, 2, starting)

		// When: player 2 makes the opening move
		snap, err := manager.MakeMove(ctx, room.ID, 2, entity.Move{BoardRow: 0, BoardCol: 0, CellRow: 0, CellCol: 0})
		require.NoError(t, err)

		// Then: the mark on the board is O and X is up next
		assert.Equal(t, entity.PlayerO, snap.Game.MainBoard[0][0][0][0])
		assert.Equal(t, entity.PlayerX, snap.Game.CurrentPlayer)

		// Then: player 1 answers with X on the forced board
		_, err = manager.MakeMove(ctx, room.ID, 1, entity.Move{BoardRow: 0, BoardCol: 0, CellRow: 2, CellCol: 2})
		require.NoError(t, err)
		snap, err = manager.GetRoom(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.PlayerX, snap.Game.MainBoard[0][0][2][2])
	})
}

func TestGameManager_RejoinRoom(t *testing.T) {
	ctx := context.Background()

	// Given: a full room where player 2 dropped
	manager, notifier := newTestManager(t, Options{})
	room := fullRoom(t, manager)
	require.NoError(t, manager.Disconnect(ctx, room.ID, 2))

	// When: player 2 rejoins on a new connection
	snap, err := manager.RejoinRoom(ctx, room.ID, 2, "bob", "conn-3")
	require.NoError(t, err)

	// Then: the seat is connected again and the opponent was told
	require.Len(t, snap.Players, 2)
	assert.True(t, snap.Players[1].Connected)
	assert.Equal(t, "conn-3", snap.Players[1].ConnectionID)

	joined := notifier.byEvent(EventOpponentJoined)
	require.NotEmpty(t, joined)
	assert.Equal(t, 1, joined[len(joined)-1].PlayerNumber)

	// Then: a rejoin into a seat that does not exist fails
	_, err = manager.RejoinRoom(ctx, room.ID, 3, "mallory", "conn-4")
	require.ErrorIs(t, err, apperror.ErrRoomNotFound)
}

func TestGameManager_CheckDisconnected(t *testing.T) {
	ctx := context.Background()

	// Given: player 2 dropped and the grace window passed
	manager, notifier := newTestManager(t, Options{DisconnectGrace: 3 * time.Second})
	room := fullRoom(t, manager)
	require.NoError(t, manager.Disconnect(ctx, room.ID, 2))

	// When: the sweep runs past the window
	manager.CheckDisconnected(time.Now().Add(5 * time.Second))

	// Then: player 1 is told exactly once
	gone := notifier.byEvent(EventOpponentDisconnected)
	require.Len(t, gone, 1)
	assert.Equal(t, 1, gone[0].PlayerNumber)
	assert.Equal(t, room.ID, gone[0].RoomID)

	manager.CheckDisconnected(time.Now().Add(10 * time.Second))
	assert.Len(t, notifier.byEvent(EventOpponentDisconnected), 1)

	// Then: a rejoin rearms the announcement for a later drop
	_, err := manager.RejoinRoom(ctx, room.ID, 2, "bob", "conn-3")
	require.NoError(t, err)
	require.NoError(t, manager.Disconnect(ctx, room.ID, 2))

	manager.CheckDisconnected(time.Now().Add(5 * time.Second))
	assert.Len(t, notifier.byEvent(EventOpponentDisconnected), 2)
}

func TestGameManager_CheckDisconnected_WithinGrace(t *testing.T) {
	ctx := context.Background()

	// Given: player 2 dropped moments ago
	manager, notifier := newTestManager(t, Options{DisconnectGrace: time.Minute})
	room := fullRoom(t, manager)
	require.NoError(t, manager.Disconnect(ctx, room.ID, 2))

	// When: the sweep runs inside the grace window
	manager.CheckDisconnected(time.Now())

	// Then: nothing is announced
	assert.Empty(t, notifier.byEvent(EventOpponentDisconnected))
}

func TestGameManager_CheckIdle(t *testing.T) {
	// Given: a room that has seen no activity for too long
	manager, _ := newTestManager(t, Options{IdleTimeout: 30 * time.Minute})
	room := fullRoom(t, manager)

	// When: the reaper runs well past the timeout
	manager.CheckIdle(time.Now().Add(31 * time.Minute))

	// Then: the room is gone
	_, err := manager.GetRoom(context.Background(), room.ID)
	require.ErrorIs(t, err, apperror.ErrRoomNotFound)
}

func TestGameManager_GetOrCreateSession(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(t, Options{})

	t.Run("Empty id mints a session", func(t *testing.T) {
		session, err := manager.GetOrCreateSession(ctx, "", "alice")
		require.NoError(t, err)

		assert.NotEmpty(t, session.ID)
		assert.Equal(t, "alice", session.Name)
	})

	t.Run("Known id keeps its name when none is given", func(t *testing.T) {
		created, err := manager.GetOrCreateSession(ctx, "", "alice")
		require.NoError(t, err)

		session, err := manager.GetOrCreateSession(ctx, created.ID, "")
		require.NoError(t, err)

		assert.Equal(t, created.ID, session.ID)
		assert.Equal(t, "alice", session.Name)
	})

	t.Run("Unknown id is adopted", func(t *testing.T) {
		session, err := manager.GetOrCreateSession(ctx, "client-kept-id", "bob")
		require.NoError(t, err)

		assert.Equal(t, "client-kept-id", session.ID)
		assert.Equal(t, "bob", session.Name)
	})
}
