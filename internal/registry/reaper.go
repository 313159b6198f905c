package registry

import "time"

// Disconnect describes a seat whose grace window ran out. The room
// itself stays alive; only the idle reaper removes rooms.
type Disconnect struct {
	RoomID       string
	PlayerNumber int
	OpponentSlot int
}

// ReapIdle - removes rooms whose last activity predates now-threshold
// and returns their IDs. Each room's lock is taken before deletion so
// an in-flight operation is never torn.
func (that *Registry) ReapIdle(now time.Time, threshold time.Duration) []string {
	cutoff := now.Add(-threshold)

	that.mu.Lock()
	defer that.mu.Unlock()

	var reaped []string
	for roomID, entry := range that.rooms {
		entry.mu.Lock()
		if entry.room.LastActivity.Before(cutoff) {
			entry.deleted = true
			delete(that.rooms, roomID)
			reaped = append(reaped, roomID)
		}
		entry.mu.Unlock()
	}

	for _, roomID := range reaped {
		that.logger.Info("room reaped after idle timeout", "roomID", roomID)
	}

	return reaped
}

// SweepDisconnected - finds seats that have been disconnected longer
// than the grace window and have not been announced yet. Each seat is
// reported exactly once; reconnection clears the marker.
func (that *Registry) SweepDisconnected(now time.Time, grace time.Duration) []Disconnect {
	that.mu.RLock()
	entries := make(map[string]*roomEntry, len(that.rooms))
	for roomID, entry := range that.rooms {
		entries[roomID] = entry
	}
	that.mu.RUnlock()

	var expired []Disconnect
	for roomID, entry := range entries {
		entry.mu.Lock()
		if entry.deleted {
			entry.mu.Unlock()
			continue
		}

		for slot, player := range entry.room.Players {
			if player.Connected || player.DisconnectNotified {
				continue
			}
			if now.Sub(player.DisconnectedAt) < grace {
				continue
			}

			player.DisconnectNotified = true
			expired = append(expired, Disconnect{
				RoomID:       roomID,
				PlayerNumber: player.Number,
				OpponentSlot: 1 - slot,
			})
		}
		entry.mu.Unlock()
	}

	return expired
}
