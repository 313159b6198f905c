package entity

import "time"

// MaxPlayers - a room never holds more than two seats.
const MaxPlayers = 2

// Player is one seat in a room. Number is the 1-based player number
// exposed to clients; the slot index is Number-1.
type Player struct {
	Number int    `json:"id"`
	Name   string `json:"name"`

	ConnectionID       string    `json:"-"`
	Connected          bool      `json:"-"`
	DisconnectedAt     time.Time `json:"-"`
	DisconnectNotified bool      `json:"-"`
}

// Room is one relay session between two players. All mutation goes
// through the registry, which serializes access per room.
type Room struct {
	ID           string
	Players      []*Player
	Game         *GameState // nil until the first move after create/restart
	CurrentTurn  int        // slot index 0|1
	LastActivity time.Time
}

func (that *Room) IsFull() bool {
	return len(that.Players) >= MaxPlayers
}

// PlayerBySlot - returns the seat at the given slot, or nil.
func (that *Room) PlayerBySlot(slot int) *Player {
	if slot < 0 || slot >= len(that.Players) {
		return nil
	}
	return that.Players[slot]
}

// Opponent - returns the other seat, or nil if it is not filled yet.
func (that *Room) Opponent(slot int) *Player {
	return that.PlayerBySlot(1 - slot)
}

// Touch - bumps the idle-reaper activity stamp.
func (that *Room) Touch(now time.Time) {
	that.LastActivity = now
}

// Snapshot is a read-only copy of a room handed to callers; the
// registry never exposes its live Room values.
type Snapshot struct {
	ID           string     `json:"roomId"`
	Players      []Player   `json:"players"`
	Game         *GameState `json:"gameState"`
	CurrentTurn  int        `json:"currentTurn"`
	LastActivity time.Time  `json:"-"`
}

// Snapshot - copies the room into a detached value. The game state is
// copied by value so later moves cannot reach through the snapshot.
func (that *Room) Snapshot() Snapshot {
	snap := Snapshot{
		ID:           that.ID,
		Players:      make([]Player, 0, len(that.Players)),
		CurrentTurn:  that.CurrentTurn,
		LastActivity: that.LastActivity,
	}

	for _, player := range that.Players {
		snap.Players = append(snap.Players, *player)
	}

	if that.Game != nil {
		game := *that.Game
		if that.Game.ForcedBoard != nil {
			forced := *that.Game.ForcedBoard
			game.ForcedBoard = &forced
		}
		snap.Game = &game
	}

	return snap
}
