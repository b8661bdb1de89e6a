// internal/session/events.go
package session

import "github.com/tbu5358/risko-realtime/internal/protocol"

// SeatView is the per-participant slice of a session snapshot.
type SeatView struct {
	Identity    string `json:"identity"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Connected   bool   `json:"connected"`
	RemainingMS int64  `json:"remainingMs"`
}

// StateEvent is the full session snapshot pushed on (re)connect and start.
type StateEvent struct {
	Type        string     `json:"type"`
	MatchID     string     `json:"matchId"`
	Game        string     `json:"game"`
	State       string     `json:"state"`
	Wager       float64    `json:"wager"`
	TimePerSide int        `json:"timePerSide"`
	YourRole    string     `json:"yourRole"`
	ActiveTurn  string     `json:"activeTurn"`
	Seats       []SeatView `json:"seats"`
	Moves       int        `json:"moves"`
}

// MoveEvent relays an accepted move to the opponent.
type MoveEvent struct {
	Type      string                 `json:"type"`
	From      string                 `json:"from,omitempty"`
	To        string                 `json:"to,omitempty"`
	Promotion string                 `json:"promotion,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	By        string                 `json:"by"`
	Ply       int                    `json:"ply"`
	Clocks    map[string]int64       `json:"clocks"`
	NextTurn  string                 `json:"nextTurn"`
}

// ChatEvent relays chat text between the two participants.
type ChatEvent struct {
	Type     string `json:"type"`
	From     string `json:"from"`
	Username string `json:"username"`
	Message  string `json:"message"`
	TS       int64  `json:"ts"`
}

// PresenceEvent notifies the remaining participant about the opponent's
// transport state.
type PresenceEvent struct {
	Type         string `json:"type"`
	Identity     string `json:"identity"`
	GraceSeconds int    `json:"graceSeconds,omitempty"`
}

// DrawOfferEvent relays a draw offer.
type DrawOfferEvent struct {
	Type string `json:"type"`
	From string `json:"from"`
}

// RematchEvent carries the rematch handshake and its outcome.
type RematchEvent struct {
	Type    string `json:"type"`
	From    string `json:"from,omitempty"`
	MatchID string `json:"matchId,omitempty"`
}

// EndEvent is the terminal event carrying winner, reason, and final state.
type EndEvent struct {
	Type        string           `json:"type"`
	Winner      string           `json:"winner"`
	WinnerRole  string           `json:"winnerRole,omitempty"`
	Reason      string           `json:"reason"`
	FinalClocks map[string]int64 `json:"finalClocks"`
	Moves       int              `json:"moves"`
}

func errorEvent(code, msg string) protocol.ErrorEvent {
	return protocol.MatchError(code, msg)
}
