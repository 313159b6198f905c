package apperror

import "errors"

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
	ErrNotYourTurn  = errors.New("it's not your turn")

	ErrGameFinished     = errors.New("game is already finished")
	ErrGameIsNotStarted = errors.New("game is not started")
	ErrCellOccupied     = errors.New("cell is already occupied")
	ErrWrongBoard       = errors.New("move is outside the forced board")
	ErrBoardUnavailable = errors.New("board is not available")
	ErrInvalidPosition  = errors.New("invalid board or cell position")
)

// IsInvalidMove reports whether err is one of the rule-engine rejections
// surfaced to clients as a single InvalidMove kind.
func IsInvalidMove(err error) bool {
	return errors.Is(err, ErrGameFinished) ||
		errors.Is(err, ErrCellOccupied) ||
		errors.Is(err, ErrWrongBoard) ||
		errors.Is(err, ErrBoardUnavailable) ||
		errors.Is(err, ErrInvalidPosition)
}
