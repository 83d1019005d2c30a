package board

import (
	"errors"
	"fmt"

	"github.com/randomtoy/hex-backend/internal/domain/move"
)

// Empty marks an unoccupied cell.
const Empty = -1

var (
	ErrCellOccupied  = errors.New("cell_occupied")
	ErrOutOfBounds   = errors.New("out_of_bounds")
	ErrInvalidPlayer = errors.New("invalid_player")
	ErrInvalidSize   = errors.New("invalid_board_size")
)

// Virtual edge nodes follow the size*size cell nodes. Player 0 joins top and
// bottom, player 1 joins left and right.
const (
	edgeTop = iota
	edgeBottom
	edgeLeft
	edgeRight
	edgeCount
)

var neighbourOffsets = [6][2]int{
	{-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0},
}

// Board holds stones and incrementally tracks connected groups.
type Board struct {
	size   int
	cells  []int
	parent []int
	rank   []uint8
	stones int
	winner int
}

// New returns an empty size x size board.
func New(size int) (*Board, error) {
	if size < 1 || size > move.MaxSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	n := size*size + edgeCount
	b := &Board{
		size:   size,
		cells:  make([]int, size*size),
		parent: make([]int, n),
		rank:   make([]uint8, n),
		winner: Empty,
	}
	for i := range b.cells {
		b.cells[i] = Empty
	}
	for i := range b.parent {
		b.parent[i] = i
	}
	return b, nil
}

func (b *Board) Size() int       { return b.size }
func (b *Board) StoneCount() int { return b.stones }

// Winner returns the connected player, or Empty.
func (b *Board) Winner() int { return b.winner }

// At returns the owner of c, or Empty. Out of bounds cells read as Empty.
func (b *Board) At(c move.Coords) int {
	if !c.InBounds(b.size) {
		return Empty
	}
	return b.cells[b.index(c)]
}

// Place puts a stone for player on c. The board is unchanged on error.
func (b *Board) Place(c move.Coords, player int) error {
	if player != 0 && player != 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPlayer, player)
	}
	if !c.InBounds(b.size) {
		return fmt.Errorf("%w: %s", ErrOutOfBounds, c)
	}
	idx := b.index(c)
	if b.cells[idx] != Empty {
		return fmt.Errorf("%w: %s", ErrCellOccupied, c)
	}
	b.cells[idx] = player
	b.stones++

	for _, off := range neighbourOffsets {
		n := move.Coords{Row: c.Row + off[0], Col: c.Col + off[1]}
		if n.InBounds(b.size) && b.cells[b.index(n)] == player {
			b.union(idx, b.index(n))
		}
	}
	for _, e := range b.touchedEdges(c, player) {
		b.union(idx, b.size*b.size+e)
	}

	if b.winner == Empty && b.connected(player) {
		b.winner = player
	}
	return nil
}

// EmptyCells lists unoccupied cells in row-major order.
func (b *Board) EmptyCells() []move.Coords {
	out := make([]move.Coords, 0, len(b.cells)-b.stones)
	for i, v := range b.cells {
		if v == Empty {
			out = append(out, move.Coords{Row: i / b.size, Col: i % b.size})
		}
	}
	return out
}

func (b *Board) touchedEdges(c move.Coords, player int) []int {
	var out []int
	last := b.size - 1
	if player == 0 {
		if c.Row == 0 {
			out = append(out, edgeTop)
		}
		if c.Row == last {
			out = append(out, edgeBottom)
		}
		return out
	}
	if c.Col == 0 {
		out = append(out, edgeLeft)
	}
	if c.Col == last {
		out = append(out, edgeRight)
	}
	return out
}

func (b *Board) connected(player int) bool {
	base := b.size * b.size
	if player == 0 {
		return b.find(base+edgeTop) == b.find(base+edgeBottom)
	}
	return b.find(base+edgeLeft) == b.find(base+edgeRight)
}

func (b *Board) index(c move.Coords) int { return c.Row*b.size + c.Col }

func (b *Board) find(x int) int {
	for b.parent[x] != x {
		b.parent[x] = b.parent[b.parent[x]]
		x = b.parent[x]
	}
	return x
}

func (b *Board) union(x, y int) {
	rx, ry := b.find(x), b.find(y)
	if rx == ry {
		return
	}
	switch {
	case b.rank[rx] < b.rank[ry]:
		b.parent[rx] = ry
	case b.rank[rx] > b.rank[ry]:
		b.parent[ry] = rx
	default:
		b.parent[ry] = rx
		b.rank[rx]++
	}
}
