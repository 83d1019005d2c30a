package board_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randomtoy/hex-backend/internal/domain/board"
	"github.com/randomtoy/hex-backend/internal/domain/move"
)

func cell(t *testing.T, s string) move.Coords {
	t.Helper()
	c, err := move.ParseCoords(s)
	require.NoError(t, err)
	return c
}

func TestNew_InvalidSize(t *testing.T) {
	_, err := board.New(0)
	require.ErrorIs(t, err, board.ErrInvalidSize)
	_, err = board.New(100)
	require.ErrorIs(t, err, board.ErrInvalidSize)
}

func TestPlace_Errors(t *testing.T) {
	b, err := board.New(4)
	require.NoError(t, err)

	require.NoError(t, b.Place(cell(t, "b2"), 0))

	err = b.Place(cell(t, "b2"), 1)
	require.ErrorIs(t, err, board.ErrCellOccupied)

	err = b.Place(move.Coords{Row: 4, Col: 0}, 1)
	require.ErrorIs(t, err, board.ErrOutOfBounds)

	err = b.Place(cell(t, "a1"), 2)
	require.ErrorIs(t, err, board.ErrInvalidPlayer)

	assert.Equal(t, 1, b.StoneCount())
	assert.Equal(t, 0, b.At(cell(t, "b2")))
	assert.Equal(t, board.Empty, b.At(cell(t, "a1")))
}

func TestWinner_PlayerZeroConnectsTopToBottom(t *testing.T) {
	b, err := board.New(4)
	require.NoError(t, err)

	// d1 c2 b2 a3 a4 zig-zags from row 1 to row 4.
	for _, s := range []string{"d1", "c2", "b2", "a3"} {
		require.NoError(t, b.Place(cell(t, s), 0))
		assert.Equal(t, board.Empty, b.Winner(), s)
	}
	require.NoError(t, b.Place(cell(t, "a4"), 0))
	assert.Equal(t, 0, b.Winner())
}

func TestWinner_PlayerOneConnectsLeftToRight(t *testing.T) {
	b, err := board.New(3)
	require.NoError(t, err)

	require.NoError(t, b.Place(cell(t, "a2"), 1))
	require.NoError(t, b.Place(cell(t, "c2"), 1))
	assert.Equal(t, board.Empty, b.Winner())

	require.NoError(t, b.Place(cell(t, "b2"), 1))
	assert.Equal(t, 1, b.Winner())
}

func TestWinner_StraightColumnIsNotAWinForPlayerOne(t *testing.T) {
	b, err := board.New(3)
	require.NoError(t, err)

	for _, s := range []string{"b1", "b2", "b3"} {
		require.NoError(t, b.Place(cell(t, s), 1))
	}
	assert.Equal(t, board.Empty, b.Winner())
}

func TestWinner_NonAdjacentDiagonal(t *testing.T) {
	b, err := board.New(2)
	require.NoError(t, err)

	// a1 and b2 are not hex neighbours; a2 and b1 are.
	require.NoError(t, b.Place(cell(t, "a1"), 0))
	require.NoError(t, b.Place(cell(t, "b2"), 0))
	assert.Equal(t, board.Empty, b.Winner())

	require.NoError(t, b.Place(cell(t, "b1"), 0))
	assert.Equal(t, 0, b.Winner())
}

func TestSingleCellBoard(t *testing.T) {
	b, err := board.New(1)
	require.NoError(t, err)
	require.NoError(t, b.Place(cell(t, "a1"), 1))
	assert.Equal(t, 1, b.Winner())
}

func TestEmptyCells(t *testing.T) {
	b, err := board.New(2)
	require.NoError(t, err)
	require.NoError(t, b.Place(cell(t, "a1"), 0))
	assert.Equal(t, []move.Coords{{Row: 0, Col: 1}, {Row: 1, Col: 0}, {Row: 1, Col: 1}}, b.EmptyCells())
}
