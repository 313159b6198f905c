package registry

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/ultimatettt-backend/internal/apperror"
	"github.com/rocketscienceinc/ultimatettt-backend/internal/entity"
	"github.com/rocketscienceinc/ultimatettt-backend/internal/pkg"
)

// Registry is the process-wide room registry. Rooms live only in this
// process's memory; losing them on restart is accepted. The raw map is
// never handed out - callers get snapshots, and every read-modify-write
// runs under the per-room lock.
type Registry struct {
	logger *slog.Logger

	mu    sync.RWMutex
	rooms map[string]*roomEntry

	now func() time.Time
}

type roomEntry struct {
	mu      sync.Mutex
	room    *entity.Room
	deleted bool
}

func New(logger *slog.Logger) *Registry {
	return &Registry{
		logger: logger.With("component", "registry"),
		rooms:  make(map[string]*roomEntry),
		now:    time.Now,
	}
}

// CreateRoom - creates a room with the creator in slot 0 and returns
// its snapshot. Codes colliding with a live room are regenerated.
func (that *Registry) CreateRoom(name, connectionID string) entity.Snapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	var code string
	for {
		code = pkg.GenerateRoomCode()
		if _, exists := that.rooms[code]; !exists {
			break
		}
	}

	room := &entity.Room{
		ID: code,
		Players: []*entity.Player{
			{
				Number:       1,
				Name:         name,
				ConnectionID: connectionID,
				Connected:    true,
			},
		},
		CurrentTurn:  0,
		LastActivity: that.now(),
	}

	that.rooms[code] = &roomEntry{room: room}
	that.logger.Info("room created", "roomID", code, "player", name)

	return room.Snapshot()
}

// JoinRoom - fills slot 1. Errors with ErrRoomNotFound or ErrRoomFull
// and never mutates the room on rejection.
func (that *Registry) JoinRoom(roomID, name, connectionID string) (entity.Snapshot, error) {
	var snap entity.Snapshot

	err := that.update(roomID, func(room *entity.Room) error {
		if room.IsFull() {
			return apperror.ErrRoomFull
		}

		room.Players = append(room.Players, &entity.Player{
			Number:       2,
			Name:         name,
			ConnectionID: connectionID,
			Connected:    true,
		})

		snap = room.Snapshot()
		return nil
	})
	if err != nil {
		return entity.Snapshot{}, err
	}

	return snap, nil
}

// GetRoom - returns a detached snapshot of the room.
func (that *Registry) GetRoom(roomID string) (entity.Snapshot, error) {
	entry, err := that.entry(roomID)
	if err != nil {
		return entity.Snapshot{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.deleted {
		return entity.Snapshot{}, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, roomID)
	}

	return entry.room.Snapshot(), nil
}

// Update - runs fn against the room under its lock and bumps the
// activity stamp when fn succeeds. The returned snapshot reflects the
// room after fn ran.
func (that *Registry) Update(roomID string, fn func(room *entity.Room) error) (entity.Snapshot, error) {
	var snap entity.Snapshot

	err := that.update(roomID, func(room *entity.Room) error {
		if err := fn(room); err != nil {
			return err
		}
		snap = room.Snapshot()
		return nil
	})
	if err != nil {
		return entity.Snapshot{}, err
	}

	return snap, nil
}

// Len - number of live rooms.
func (that *Registry) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()
	return len(that.rooms)
}

func (that *Registry) entry(roomID string) (*roomEntry, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	entry, ok := that.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, roomID)
	}

	return entry, nil
}

func (that *Registry) update(roomID string, fn func(room *entity.Room) error) error {
	entry, err := that.entry(roomID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.deleted {
		return fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, roomID)
	}

	if err = fn(entry.room); err != nil {
		return err
	}

	entry.room.Touch(that.now())

	return nil
}
