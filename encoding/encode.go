// Package encoding maps chess positions and moves onto the tensor shapes
// the network consumes: 16 input planes per position and a 72x8x8 policy
// space per move, always oriented from the side to move.
package encoding

import (
	"github.com/notnil/chess"
	"gorgonia.org/tensor"
)

// Tensor dimensions shared with the network.
const (
	Planes       = 16
	Rows         = 8
	Cols         = 8
	PolicyPlanes = 72
	ActionSpace  = PolicyPlanes * Rows * Cols
)

// piecePlane is the base plane per piece type; the side to move occupies the
// base plane, the opponent the base plane plus one.
var piecePlane = map[chess.PieceType]int{
	chess.Pawn:   0,
	chess.Rook:   2,
	chess.Bishop: 4,
	chess.Knight: 6,
	chess.Queen:  8,
	chess.King:   10,
}

// coords returns the (rank, file) of a square, vertically mirrored when
// flip is set so the side to move always plays from the bottom.
func coords(sq chess.Square, flip bool) (int, int) {
	if flip {
		sq = chess.Square(int(sq) ^ 0x38)
	}
	return int(sq.Rank()), int(sq.File())
}

// EncodePositions encodes a batch of positions into a float32 tensor of
// shape [N, 16, 8, 8]. Planes 0-11 hold piece occupancy (side to move on
// the even plane of each pair), planes 12-15 the castling rights.
func EncodePositions(positions []*chess.Position) *tensor.Dense {
	n := len(positions)
	backing := make([]float32, n*Planes*Rows*Cols)

	for i, pos := range positions {
		flip := pos.Turn() == chess.Black

		for sq, piece := range pos.Board().SquareMap() {
			if piece == chess.NoPiece {
				continue
			}
			plane := piecePlane[piece.Type()]
			if piece.Color() != pos.Turn() {
				plane++
			}
			r, f := coords(sq, flip)
			backing[offset(i, plane, r, f)] = 1.0
		}

		rights := pos.CastleRights()
		side, opp := chess.White, chess.Black
		if flip {
			side, opp = opp, side
		}
		if rights.CanCastle(side, chess.KingSide) {
			fillPlane(backing, i, 12)
		}
		if rights.CanCastle(opp, chess.KingSide) {
			fillPlane(backing, i, 13)
		}
		if rights.CanCastle(side, chess.QueenSide) {
			fillPlane(backing, i, 14)
		}
		if rights.CanCastle(opp, chess.QueenSide) {
			fillPlane(backing, i, 15)
		}
	}

	return tensor.New(tensor.WithShape(n, Planes, Rows, Cols), tensor.WithBacking(backing))
}

func offset(batch, plane, rank, file int) int {
	return ((batch*Planes+plane)*Rows+rank)*Cols + file
}

func fillPlane(backing []float32, batch, plane int) {
	start := (batch*Planes + plane) * Rows * Cols
	for j := start; j < start+Rows*Cols; j++ {
		backing[j] = 1.0
	}
}
