package encoding

import (
	"testing"

	"github.com/notnil/chess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func position(t *testing.T, fen string) *chess.Position {
	t.Helper()
	opt, err := chess.FEN(fen)
	require.NoError(t, err)
	return chess.NewGame(opt).Position()
}

func at(t *testing.T, enc *tensor.Dense, i, plane, rank, file int) float32 {
	t.Helper()
	v, err := enc.At(i, plane, rank, file)
	require.NoError(t, err)
	return v.(float32)
}

func TestEncodeStartingPosition(t *testing.T) {
	pos := chess.NewGame().Position()
	enc := EncodePositions([]*chess.Position{pos})
	require.Equal(t, []int{1, Planes, Rows, Cols}, []int(enc.Shape()))

	for f := 0; f < 8; f++ {
		assert.Equal(t, float32(1), at(t, enc, 0, 0, 1, f), "own pawn at rank 1 file %d", f)
		assert.Equal(t, float32(1), at(t, enc, 0, 1, 6, f), "opponent pawn at rank 6 file %d", f)
	}
	// no pawns anywhere else
	for r := 0; r < 8; r++ {
		if r == 1 {
			continue
		}
		for f := 0; f < 8; f++ {
			assert.Equal(t, float32(0), at(t, enc, 0, 0, r, f))
		}
	}

	assert.Equal(t, float32(1), at(t, enc, 0, 2, 0, 0), "own rook a1")
	assert.Equal(t, float32(1), at(t, enc, 0, 4, 0, 2), "own bishop c1")
	assert.Equal(t, float32(1), at(t, enc, 0, 6, 0, 1), "own knight b1")
	assert.Equal(t, float32(1), at(t, enc, 0, 8, 0, 3), "own queen d1")
	assert.Equal(t, float32(1), at(t, enc, 0, 10, 0, 4), "own king e1")
	assert.Equal(t, float32(1), at(t, enc, 0, 11, 7, 4), "opponent king e8")

	for plane := 12; plane < 16; plane++ {
		for r := 0; r < 8; r++ {
			for f := 0; f < 8; f++ {
				assert.Equal(t, float32(1), at(t, enc, 0, plane, r, f), "castling plane %d", plane)
			}
		}
	}
}

func TestEncodeBlackToMoveMirrors(t *testing.T) {
	pos := position(t, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR b KQkq - 0 1")
	enc := EncodePositions([]*chess.Position{pos})

	// the side to move's pawns land on rank 1 regardless of color
	for f := 0; f < 8; f++ {
		assert.Equal(t, float32(1), at(t, enc, 0, 0, 1, f))
		assert.Equal(t, float32(1), at(t, enc, 0, 1, 6, f))
	}
	assert.Equal(t, float32(1), at(t, enc, 0, 10, 0, 4), "own king on e1 after mirroring")
	assert.Equal(t, float32(1), at(t, enc, 0, 12, 0, 0), "own kingside castling right")
	assert.Equal(t, float32(1), at(t, enc, 0, 13, 0, 0), "opponent kingside castling right")
}

func TestEncodeColorSwappedPartnersMatch(t *testing.T) {
	white := position(t, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1")
	black := position(t, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR b KQkq - 0 1")

	encW := EncodePositions([]*chess.Position{white})
	encB := EncodePositions([]*chess.Position{black})
	assert.Equal(t, encW.Data(), encB.Data())
}

func TestEncodePartialCastlingRights(t *testing.T) {
	pos := position(t, "r3k2r/8/8/8/8/8/8/R3K2R w Kq - 0 1")
	enc := EncodePositions([]*chess.Position{pos})

	assert.Equal(t, float32(1), at(t, enc, 0, 12, 3, 3), "own kingside right present")
	assert.Equal(t, float32(0), at(t, enc, 0, 13, 3, 3), "opponent kingside right absent")
	assert.Equal(t, float32(0), at(t, enc, 0, 14, 3, 3), "own queenside right absent")
	assert.Equal(t, float32(1), at(t, enc, 0, 15, 3, 3), "opponent queenside right present")
}
