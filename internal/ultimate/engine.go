package ultimate

import (
	"github.com/rocketscienceinc/ultimatettt-backend/internal/apperror"
	"github.com/rocketscienceinc/ultimatettt-backend/internal/entity"
)

const gridSize = 3

// CheckWinner - checks 3 rows, 3 columns and 2 diagonals of a 3x3 grid
// and returns the common non-empty value, or an empty string.
//
// The same algorithm decides a mini-board (cell marks) and the overall
// game (the winners grid, treating captured mini-boards as marks).
func CheckWinner(grid [3][3]string) string {
	for i := 0; i < gridSize; i++ {
		if grid[i][0] != entity.EmptyCell && grid[i][0] == grid[i][1] && grid[i][1] == grid[i][2] {
			return grid[i][0]
		}
	}

	for i := 0; i < gridSize; i++ {
		if grid[0][i] != entity.EmptyCell && grid[0][i] == grid[1][i] && grid[1][i] == grid[2][i] {
			return grid[0][i]
		}
	}

	if grid[0][0] != entity.EmptyCell && grid[0][0] == grid[1][1] && grid[1][1] == grid[2][2] {
		return grid[0][0]
	}

	if grid[0][2] != entity.EmptyCell && grid[0][2] == grid[1][1] && grid[1][1] == grid[2][0] {
		return grid[0][2]
	}

	return entity.EmptyCell
}

// IsBoardFull - reports whether no empty cell remains in the mini-board.
func IsBoardFull(board entity.MiniBoard) bool {
	for row := 0; row < gridSize; row++ {
		for col := 0; col < gridSize; col++ {
			if board[row][col] == entity.EmptyCell {
				return false
			}
		}
	}
	return true
}

// IsBoardAvailable - a mini-board is playable unless it was already won
// or is completely full. A won board is unavailable even with empty
// cells remaining.
func IsBoardAvailable(row, col int, winners entity.MiniBoardWinners, mainBoard entity.MainBoard) bool {
	if winners[row][col] != entity.EmptyCell {
		return false
	}
	return !IsBoardFull(mainBoard[row][col])
}

// HasAvailableBoards - reports whether any mini-board is still playable.
func HasAvailableBoards(winners entity.MiniBoardWinners, mainBoard entity.MainBoard) bool {
	for row := 0; row < gridSize; row++ {
		for col := 0; col < gridSize; col++ {
			if IsBoardAvailable(row, col, winners, mainBoard) {
				return true
			}
		}
	}
	return false
}

// NewGameState - the canonical empty state: X to move, free board
// choice, game not over.
func NewGameState() entity.GameState {
	return entity.GameState{
		CurrentPlayer: entity.PlayerX,
		ForcedBoard:   nil,
	}
}

// ApplyMove - validates and applies one move, returning the next state.
// The input state is never mutated; on any rejection it is returned
// unchanged together with the error.
func ApplyMove(state entity.GameState, move entity.Move, actingPlayer string) (entity.GameState, error) {
	if err := validateMove(&state, move, actingPlayer); err != nil {
		return state, err
	}

	next := state
	next.MainBoard[move.BoardRow][move.BoardCol][move.CellRow][move.CellCol] = actingPlayer

	if winner := CheckWinner(next.MainBoard[move.BoardRow][move.BoardCol]); winner != entity.EmptyCell {
		next.MiniBoardWinners[move.BoardRow][move.BoardCol] = winner
	}

	next.ForcedBoard = nextForcedBoard(move, next.MiniBoardWinners, next.MainBoard)

	switch overall := CheckWinner(next.MiniBoardWinners); {
	case overall != entity.EmptyCell:
		next.Winner = overall
		next.IsOver = true
		next.ForcedBoard = nil
	case !HasAvailableBoards(next.MiniBoardWinners, next.MainBoard):
		next.Winner = entity.WinnerDraw
		next.IsOver = true
		next.ForcedBoard = nil
	}

	next.CurrentPlayer = entity.ToggleMark(actingPlayer)

	return next, nil
}

func validateMove(state *entity.GameState, move entity.Move, actingPlayer string) error {
	if state.IsOver {
		return apperror.ErrGameFinished
	}

	if !inGrid(move.BoardRow, move.BoardCol) || !inGrid(move.CellRow, move.CellCol) {
		return apperror.ErrInvalidPosition
	}

	if state.CurrentPlayer != actingPlayer {
		return apperror.ErrNotYourTurn
	}

	if !IsBoardAvailable(move.BoardRow, move.BoardCol, state.MiniBoardWinners, state.MainBoard) {
		return apperror.ErrBoardUnavailable
	}

	if state.ForcedBoard != nil && (state.ForcedBoard.Row != move.BoardRow || state.ForcedBoard.Col != move.BoardCol) {
		return apperror.ErrWrongBoard
	}

	if state.MainBoard[move.BoardRow][move.BoardCol][move.CellRow][move.CellCol] != entity.EmptyCell {
		return apperror.ErrCellOccupied
	}

	return nil
}

// nextForcedBoard - the cell position of the move names the next
// mini-board; when that board is unavailable the next player gets a
// free choice.
func nextForcedBoard(move entity.Move, winners entity.MiniBoardWinners, mainBoard entity.MainBoard) *entity.Position {
	if !IsBoardAvailable(move.CellRow, move.CellCol, winners, mainBoard) {
		return nil
	}
	return &entity.Position{Row: move.CellRow, Col: move.CellCol}
}

func inGrid(row, col int) bool {
	return row >= 0 && row < gridSize && col >= 0 && col < gridSize
}
