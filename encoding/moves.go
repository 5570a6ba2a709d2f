package encoding

import (
	"github.com/notnil/chess"
	"gorgonia.org/tensor"
)

// MoveToIndex maps a move onto the 72x8x8 policy space and returns its
// (plane, rank, file) index. The plane encodes direction and distance for
// sliding moves (8 directions with bases 0, 8, ..., 56, each plus a distance
// of 1-7, so the base planes themselves stay unused) and a fixed plane per
// knight jump in 64-71. Rank and file are those of the source square. When flip is
// set both squares are mirrored first, matching the position encoding.
// Promotion pieces are not encoded; an underpromotion shares its index with
// the queen promotion between the same squares.
func MoveToIndex(m *chess.Move, flip bool) (plane, rank, file int) {
	from := int(m.S1())
	to := int(m.S2())
	if flip {
		from ^= 0x38
		to ^= 0x38
	}

	fromRank, fromFile := from/8, from%8
	toRank, toFile := to/8, to%8
	dRank := toRank - fromRank
	dFile := toFile - fromFile

	switch {
	case dRank == 0 && dFile > 0:
		plane = 0 + dFile
	case dRank == 0 && dFile < 0:
		plane = 8 - dFile
	case dFile == 0 && dRank > 0:
		plane = 16 + dRank
	case dFile == 0 && dRank < 0:
		plane = 24 - dRank
	case dFile == dRank && dFile > 0:
		plane = 32 + dRank
	case dFile == dRank && dFile < 0:
		plane = 40 - dRank
	case dFile == -dRank && dFile > 0:
		plane = 48 + dFile
	case dFile == -dRank && dFile < 0:
		plane = 56 - dFile
	case dFile == 1 && dRank == 2:
		plane = 64
	case dFile == 2 && dRank == 1:
		plane = 65
	case dFile == 2 && dRank == -1:
		plane = 66
	case dFile == 1 && dRank == -2:
		plane = 67
	case dFile == -1 && dRank == 2:
		plane = 68
	case dFile == -2 && dRank == 1:
		plane = 69
	case dFile == -2 && dRank == -1:
		plane = 70
	case dFile == -1 && dRank == -2:
		plane = 71
	}

	return plane, fromRank, fromFile
}

// FlatIndex flattens a (plane, rank, file) policy index into the network's
// flat policy output.
func FlatIndex(plane, rank, file int) int {
	return plane*Rows*Cols + rank*Cols + file
}

// LegalMoveMasks builds the int32 [N, 72, 8, 8] mask tensor marking the
// policy index of every legal move of every position, under the same
// orientation as EncodePositions.
func LegalMoveMasks(positions []*chess.Position) *tensor.Dense {
	n := len(positions)
	backing := make([]int32, n*ActionSpace)

	for i, pos := range positions {
		flip := pos.Turn() == chess.Black
		for _, m := range pos.ValidMoves() {
			plane, rank, file := MoveToIndex(m, flip)
			backing[i*ActionSpace+FlatIndex(plane, rank, file)] = 1
		}
	}

	return tensor.New(tensor.WithShape(n, PolicyPlanes, Rows, Cols), tensor.WithBacking(backing))
}
