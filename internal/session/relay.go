// internal/session/relay.go
package session

import (
	"time"

	"github.com/tbu5358/risko-realtime/internal/protocol"
)

// The relay handles message kinds that pass between the two participants
// without driving the state machine: chat and the rematch handshake.
// Requests from identities not seated in the session are silently dropped.

// Chat relays a chat message to the other participant.
func (s *Session) Chat(identity, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.seatIndex(identity)
	if idx < 0 || message == "" {
		return
	}
	s.sender.SendTo(s.other(idx).identity, s.scope, ChatEvent{
		Type:     protocol.MsgChatRelay,
		From:     s.seats[idx].role,
		Username: s.seats[idx].name,
		Message:  message,
		TS:       time.Now().Unix(),
	})
}

// RematchRequest relays a rematch proposal to the opponent. Only one
// request is pending at a time; repeating it is a no-op.
func (s *Session) RematchRequest(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.seatIndex(identity)
	if idx < 0 || s.state != StateEnded {
		return
	}
	if s.rematchWantIdx == idx {
		return
	}
	// Both sides requesting independently counts as mutual accept.
	if s.rematchWantIdx == 1-idx {
		s.completeRematch(idx)
		return
	}
	s.rematchWantIdx = idx
	s.sender.SendTo(s.other(idx).identity, s.scope, RematchEvent{
		Type: protocol.MsgRematchRequest,
		From: s.seats[idx].identity,
	})
}

// RematchAccept completes the handshake if the opponent has a standing
// request: the lobby manager creates a fresh private match with the same
// wager and time control, bypassing the public directory.
func (s *Session) RematchAccept(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.seatIndex(identity)
	if idx < 0 || s.rematchWantIdx != 1-idx {
		return
	}
	s.completeRematch(idx)
}

// RematchDeny clears the pending request and relays the denial. The pair
// stays connected and may start another handshake later.
func (s *Session) RematchDeny(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.seatIndex(identity)
	if idx < 0 || s.rematchWantIdx != 1-idx {
		return
	}
	s.rematchWantIdx = -1
	s.sender.SendTo(s.other(idx).identity, s.scope, RematchEvent{
		Type: protocol.MsgRematchDeny,
		From: s.seats[idx].identity,
	})
}

// completeRematch asks the lobby manager for the new match and tells both
// participants where to reconnect. Assumes lock is held.
func (s *Session) completeRematch(acceptorIdx int) {
	s.rematchWantIdx = -1
	if s.onRematch == nil {
		return
	}
	// The prior white started last game; seats swap for the rematch.
	creator := s.seats[1].identity
	opponent := s.seats[0].identity
	newID, err := s.onRematch(creator, opponent, s.game, s.wager, s.timePerSide)
	if err != nil {
		s.logger.Warnf("session %s: rematch creation failed: %v", s.ID, err)
		s.sender.SendTo(s.seats[acceptorIdx].identity, s.scope,
			errorEvent("InvalidInput", "could not create rematch"))
		return
	}
	s.sender.Broadcast(s.scope, RematchEvent{
		Type:    protocol.MsgRematchStart,
		MatchID: newID.String(),
	})
}
