// internal/lobby/events.go
package lobby

import "github.com/tbu5358/risko-realtime/internal/protocol"

// DirectoryEvent pushes the full match directory snapshot to one client.
type DirectoryEvent struct {
	Type    string             `json:"type"`
	Matches []*MatchDescriptor `json:"matches"`
}

// CreatedEvent announces a new waiting match to every lobby-scoped client.
type CreatedEvent struct {
	Type  string           `json:"type"`
	Match *MatchDescriptor `json:"match"`
}

// JoinedEvent announces that a waiting match has been filled and handed
// off to a session. Clients drop it from their directory view.
type JoinedEvent struct {
	Type     string `json:"type"`
	MatchID  string `json:"matchId"`
	Opponent string `json:"opponent"`
}

// RemovedEvent announces a cancelled match.
type RemovedEvent struct {
	Type    string `json:"type"`
	MatchID string `json:"matchId"`
}

func directoryEvent(matches []*MatchDescriptor) DirectoryEvent {
	return DirectoryEvent{Type: protocol.MsgLobbyMatchesUpdate, Matches: matches}
}
