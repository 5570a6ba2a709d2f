// Package game wraps the chess library with the handful of game-level
// operations the search needs: draw declarations, UCI move resolution and
// promotion normalization.
package game

import (
	"github.com/notnil/chess"
	"github.com/pkg/errors"
)

// New returns a fresh game from the starting position with UCI notation.
func New() *chess.Game {
	return chess.NewGame(chess.UseNotation(chess.UCINotation{}))
}

// FromFEN returns a game starting from the given FEN position.
func FromFEN(fen string) (*chess.Game, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid FEN %q", fen)
	}
	return chess.NewGame(opt, chess.UseNotation(chess.UCINotation{})), nil
}

// ResolveMove decodes a UCI move string against the game's current position.
func ResolveMove(g *chess.Game, uci string) (*chess.Move, error) {
	m, err := chess.UCINotation{}.Decode(g.Position(), uci)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve move %q", uci)
	}
	return m, nil
}

// CanDeclareDraw reports whether the side to move may claim a draw by
// threefold repetition or the fifty-move rule.
func CanDeclareDraw(g *chess.Game) bool {
	for _, m := range g.EligibleDraws() {
		if m == chess.ThreefoldRepetition || m == chess.FiftyMoveRule {
			return true
		}
	}
	return false
}

// AllowsDraw reports whether playing m hands the opponent a draw claim:
// either the opponent may declare immediately, or any of the opponent's
// replies reaches a position where a draw may be declared.
func AllowsDraw(g *chess.Game, m *chess.Move) bool {
	after := g.Clone()
	if err := after.Move(m); err != nil {
		return false
	}
	if CanDeclareDraw(after) {
		return true
	}
	for _, reply := range after.ValidMoves() {
		next := after.Clone()
		if err := next.Move(reply); err != nil {
			continue
		}
		if CanDeclareDraw(next) {
			return true
		}
	}
	return false
}

// QueenPromotion maps a promotion move to the queen promotion between the
// same squares. Non-promotion moves are returned unchanged, as are
// promotions for which no queening move exists in the position.
func QueenPromotion(g *chess.Game, m *chess.Move) *chess.Move {
	if m.Promo() == chess.NoPieceType {
		return m
	}
	for _, vm := range g.ValidMoves() {
		if vm.S1() == m.S1() && vm.S2() == m.S2() && vm.Promo() == chess.Queen {
			return vm
		}
	}
	return m
}
