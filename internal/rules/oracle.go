// internal/rules/oracle.go
package rules

// Move is a proposed game action as seen by the legality oracle. From/To
// carry chess coordinates; Data carries game-specific payloads for games
// whose oracle does not inspect coordinates.
type Move struct {
	From      string
	To        string
	Promotion string
	Data      map[string]interface{}
}

// Terminal reports that the game reached an end condition as a consequence
// of the validated move. Winner is "white", "black", or "" for a draw.
type Terminal struct {
	Winner string
	Reason string
}

// Verdict is the oracle's answer for a single proposed move.
type Verdict struct {
	Legal    bool
	Terminal *Terminal
}

// Oracle is the external move-legality and terminal-condition authority.
// Implementations may be local computation or remote calls; the session
// treats them synchronously either way. History is the ordered log of
// previously accepted moves.
type Oracle interface {
	Validate(history []Move, proposed Move) (Verdict, error)
}
