package pkg

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
)

// Alphabet for room codes: uppercase base-36.
const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RoomCodeLength - room codes are always six characters.
const RoomCodeLength = 6

// GenerateRoomCode - draws a 6-character uppercase alphanumeric code.
// Uniqueness among live rooms is the registry's job; collisions are
// regenerated there.
func GenerateRoomCode() string {
	code := make([]byte, RoomCodeLength)
	max := big.NewInt(int64(len(roomCodeAlphabet)))

	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			code[i] = roomCodeAlphabet[0]
			continue
		}
		code[i] = roomCodeAlphabet[n.Int64()]
	}

	return string(code)
}

// GenerateNewSessionID - generates a new unique sessionID.
func GenerateNewSessionID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "error-generating-session-id"
	}

	return base64.RawURLEncoding.EncodeToString(b)
}
