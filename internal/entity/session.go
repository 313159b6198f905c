package entity

import "time"

// Session identifies a browser/client across reconnects, so a returning
// player can be offered its previous seat.
type Session struct {
	ID       string    `json:"id"`
	Name     string    `json:"name,omitempty"`
	LastSeen time.Time `json:"last_seen"`
}
