// internal/rules/chess.go
package rules

import (
	"fmt"

	"github.com/notnil/chess"
)

// ChessOracle validates SpeedChess moves by replaying the accepted move log
// through the notnil/chess engine. Legality and terminal detection are
// entirely the library's; nothing here re-specifies chess rules.
type ChessOracle struct{}

// NewChessOracle returns a chess legality oracle.
func NewChessOracle() *ChessOracle {
	return &ChessOracle{}
}

// Validate replays history and then attempts the proposed move. An illegal
// or malformed move yields Legal=false with no error; errors are reserved
// for a corrupted history, which should never pass validation twice.
func (o *ChessOracle) Validate(history []Move, proposed Move) (Verdict, error) {
	game := chess.NewGame()
	notation := chess.UCINotation{}

	for i, m := range history {
		mv, err := notation.Decode(game.Position(), uci(m))
		if err != nil {
			return Verdict{}, fmt.Errorf("corrupt move log at index %d: %w", i, err)
		}
		if err := game.Move(mv); err != nil {
			return Verdict{}, fmt.Errorf("corrupt move log at index %d: %w", i, err)
		}
	}

	mv, err := notation.Decode(game.Position(), uci(proposed))
	if err != nil {
		return Verdict{Legal: false}, nil
	}
	if err := game.Move(mv); err != nil {
		return Verdict{Legal: false}, nil
	}

	verdict := Verdict{Legal: true}
	switch game.Outcome() {
	case chess.WhiteWon:
		verdict.Terminal = &Terminal{Winner: "white", Reason: methodReason(game.Method())}
	case chess.BlackWon:
		verdict.Terminal = &Terminal{Winner: "black", Reason: methodReason(game.Method())}
	case chess.Draw:
		verdict.Terminal = &Terminal{Winner: "", Reason: methodReason(game.Method())}
	}
	return verdict, nil
}

func uci(m Move) string {
	return m.From + m.To + m.Promotion
}

func methodReason(m chess.Method) string {
	switch m {
	case chess.Checkmate:
		return "checkmate"
	case chess.Stalemate:
		return "stalemate"
	case chess.ThreefoldRepetition, chess.FivefoldRepetition:
		return "repetition"
	case chess.FiftyMoveRule, chess.SeventyFiveMoveRule:
		return "fifty-move"
	case chess.InsufficientMaterial:
		return "insufficient-material"
	default:
		return "terminal"
	}
}
