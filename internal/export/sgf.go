package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/randomtoy/hex-backend/internal/domain/game"
	"github.com/randomtoy/hex-backend/internal/ports"
)

// GameTree is one SGF game: the main line only, variations are never written.
type GameTree struct {
	Nodes []Node
}

// Node holds SGF properties; a property may repeat.
type Node struct {
	Properties map[string][]string
}

// fixed order of root properties
var orderedKeys = []string{"FF", "GM", "AP", "SZ", "PB", "PW", "DT", "RE", "C", "B", "W"}

var colorOf = [2]string{"B", "W"}

// SGF renders a game record in Hex SGF (FF[4] GM[11]). Player 0 is Black.
// Moves keep their wire tokens, so a swap is written as W[swap-pieces].
func SGF(rec ports.GameRecord) string {
	return Serialize(Tree(rec))
}

// Tree builds the SGF tree for rec.
func Tree(rec ports.GameRecord) GameTree {
	root := Node{Properties: map[string][]string{
		"FF": {"4"},
		"GM": {"11"},
		"AP": {"hex-backend"},
		"SZ": {strconv.Itoa(rec.Config.Size)},
		"PB": {seatName(rec.Seats[0])},
		"PW": {seatName(rec.Seats[1])},
		"DT": {rec.CreatedAt.UTC().Format(time.DateOnly)},
	}}
	if re := result(rec); re != "" {
		root.Properties["RE"] = []string{re}
	}

	tree := GameTree{Nodes: []Node{root}}
	for i, m := range rec.Moves {
		tree.Nodes = append(tree.Nodes, Node{
			Properties: map[string][]string{colorOf[i%2]: {m.Move}},
		})
	}
	return tree
}

func Serialize(tree GameTree) string {
	var builder strings.Builder
	builder.WriteString("(")
	for _, node := range tree.Nodes {
		builder.WriteString(";")
		for _, key := range orderedKeys {
			for _, v := range node.Properties[key] {
				fmt.Fprintf(&builder, "%s[%s]", key, escape(v))
			}
		}
	}
	builder.WriteString(")")
	return builder.String()
}

func result(rec ports.GameRecord) string {
	switch rec.State {
	case game.StateCanceled:
		return "Void"
	case game.StateEnded:
	default:
		return ""
	}
	if rec.Winner != 0 && rec.Winner != 1 {
		return ""
	}
	re := colorOf[rec.Winner] + "+"
	switch rec.Outcome {
	case game.OutcomeResign:
		re += "R"
	case game.OutcomeTime:
		re += "T"
	case game.OutcomeForfeit:
		re += "F"
	}
	return re
}

func seatName(s ports.Seat) string {
	switch {
	case s.PlayerID != "":
		return s.PlayerID
	case s.IsBot():
		return "bot:" + string(s.Kind)
	default:
		return "?"
	}
}

func escape(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, "]", `\]`)
}
