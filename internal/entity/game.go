package entity

const (
	PlayerX = "X"
	PlayerO = "O"

	WinnerDraw = "draw"

	EmptyCell = ""
)

// MiniBoard is one of the nine 3x3 sub-boards of the main board.
type MiniBoard [3][3]string

// MainBoard is the 3x3 grid of mini-boards, 81 cells total.
type MainBoard [3][3]MiniBoard

// MiniBoardWinners records, per mini-board, the mark that captured it.
// An empty cell means the mini-board has no winner yet; a full-but-unwon
// mini-board stays empty here and is tracked as unavailable separately.
type MiniBoardWinners [3][3]string

// Position addresses a mini-board on the main grid.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Move addresses a single cell: the mini-board on the main grid and the
// cell inside it.
type Move struct {
	BoardRow int `json:"boardRow"`
	BoardCol int `json:"boardCol"`
	CellRow  int `json:"cellRow"`
	CellCol  int `json:"cellCol"`
}

// GameState is the full value of one game. It is treated as immutable:
// every transition produces a new state and the caller replaces the
// stored value atomically.
type GameState struct {
	MainBoard        MainBoard        `json:"mainBoard"`
	MiniBoardWinners MiniBoardWinners `json:"miniBoardWinners"`
	CurrentPlayer    string           `json:"currentPlayer"`
	ForcedBoard      *Position        `json:"nextBoardPosition"`
	Winner           string           `json:"gameWinner,omitempty"`
	IsOver           bool             `json:"isGameOver"`
}

// ToggleMark - returns the opposing mark.
func ToggleMark(mark string) string {
	if mark == PlayerX {
		return PlayerO
	}
	return PlayerX
}

// MarkForSlot - maps a room slot to its symbol: slot 0 is always X.
func MarkForSlot(slot int) string {
	if slot == 0 {
		return PlayerX
	}
	return PlayerO
}
