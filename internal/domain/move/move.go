package move

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Special move tokens.
const (
	TokenSwap = "swap-pieces"
	TokenPass = "pass"
)

// MaxSize is the largest board side that the coordinate notation can address.
const MaxSize = 99

// ErrInvalidMoveFormat is returned for any token that is neither a coordinate
// nor one of the special tokens.
var ErrInvalidMoveFormat = errors.New("invalid_move_format")

var coordsRe = regexp.MustCompile(`^([a-z]{1,2})([1-9][0-9]?)$`)

// Kind distinguishes stone placements from special moves.
type Kind int

const (
	KindPlace Kind = iota
	KindSwap
	KindPass
)

// Coords addresses a cell. Row and Col are zero-based.
type Coords struct {
	Row int
	Col int
}

// ParseCoords parses the letter+number form, e.g. "c2" -> {Row: 1, Col: 2}.
func ParseCoords(s string) (Coords, error) {
	m := coordsRe.FindStringSubmatch(s)
	if m == nil {
		return Coords{}, fmt.Errorf("%w: %q", ErrInvalidMoveFormat, s)
	}
	row, err := strconv.Atoi(m[2])
	if err != nil {
		return Coords{}, fmt.Errorf("%w: %q", ErrInvalidMoveFormat, s)
	}
	return Coords{Row: row - 1, Col: parseColumn(m[1])}, nil
}

// String is the exact inverse of ParseCoords.
func (c Coords) String() string {
	return columnLetters(c.Col) + strconv.Itoa(c.Row+1)
}

// Mirror reflects the cell across the long diagonal.
func (c Coords) Mirror() Coords {
	return Coords{Row: c.Col, Col: c.Row}
}

// InBounds reports whether c lies on a size x size board.
func (c Coords) InBounds(size int) bool {
	return c.Row >= 0 && c.Row < size && c.Col >= 0 && c.Col < size
}

// Move is a parsed move token.
type Move struct {
	Kind   Kind
	Coords Coords
}

// Place builds a stone placement.
func Place(c Coords) Move { return Move{Kind: KindPlace, Coords: c} }

// Swap is the swap-pieces move.
func Swap() Move { return Move{Kind: KindSwap} }

// Pass is the pass move.
func Pass() Move { return Move{Kind: KindPass} }

// Parse accepts coordinates or a special token.
func Parse(token string) (Move, error) {
	switch token {
	case TokenSwap:
		return Swap(), nil
	case TokenPass:
		return Pass(), nil
	}
	c, err := ParseCoords(token)
	if err != nil {
		return Move{}, err
	}
	return Place(c), nil
}

// IsValidToken reports whether token parses as a move.
func IsValidToken(token string) bool {
	_, err := Parse(token)
	return err == nil
}

func (m Move) String() string {
	switch m.Kind {
	case KindSwap:
		return TokenSwap
	case KindPass:
		return TokenPass
	default:
		return m.Coords.String()
	}
}

// IsStone reports whether the move places a stone.
func (m Move) IsStone() bool { return m.Kind == KindPlace }

// columnLetters encodes 0..25 as a..z and from 26 on as two base-26 letters
// ("aa" = 26).
func columnLetters(col int) string {
	if col < 26 {
		return string(rune('a' + col))
	}
	return string([]rune{rune('a' + col/26 - 1), rune('a' + col%26)})
}

func parseColumn(s string) int {
	if len(s) == 1 {
		return int(s[0] - 'a')
	}
	return (int(s[0]-'a')+1)*26 + int(s[1]-'a')
}
