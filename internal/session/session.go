// internal/session/session.go
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tbu5358/risko-realtime/internal/protocol"
	"github.com/tbu5358/risko-realtime/internal/registry"
	"github.com/tbu5358/risko-realtime/internal/rules"
)

// State is the session lifecycle phase.
type State string

const (
	// StateWaiting covers the window between match creation and both
	// participants' sockets completing their connect handshake.
	StateWaiting State = "waiting"
	StateActive  State = "active"
	StateEnded   State = "ended"
)

// Roles. The creator always takes RoleWhite and moves first.
const (
	RoleWhite = "white"
	RoleBlack = "black"
)

// End reasons.
const (
	ReasonResign    = "resign"
	ReasonTimeout   = "timeout"
	ReasonForfeit   = "forfeit"
	ReasonDraw      = "draw"
	ReasonError     = "error"
	ReasonAbandoned = "abandoned"
)

// maxOracleFailures is how many consecutive validation failures a session
// tolerates before declaring the match unplayable.
const maxOracleFailures = 3

// Errors surfaced to the offending connection. They never touch the
// opponent's state.
var (
	ErrNotYourTurn = errors.New("not your turn")
	ErrIllegalMove = errors.New("illegal move")
	ErrGameOver    = errors.New("game over")
	ErrNotActive   = errors.New("match not active")
	ErrNotSeated   = errors.New("not a participant in this match")
)

// Sender is the slice of the connection registry a session needs. The
// registry satisfies it; tests substitute a recorder.
type Sender interface {
	SendTo(identity string, scope registry.Scope, msg interface{})
	Broadcast(scope registry.Scope, msg interface{}, exclude ...string)
}

// Move is one applied entry of the append-only move log.
type Move struct {
	Role      string
	From      string
	To        string
	Promotion string
	Data      map[string]interface{}
	At        time.Time
}

// Result is handed to the OnEnd callback once, when the session enters
// StateEnded. Winner is empty for a draw.
type Result struct {
	MatchID     uuid.UUID
	Winner      string
	Loser       string
	WinnerRole  string
	Reason      string
	Wager       float64
	FinalClocks map[string]time.Duration
	Moves       int
}

// Config seeds a new session. Both identities are known at creation; the
// lobby manager only spawns a session once the opponent seat is filled.
type Config struct {
	MatchID      uuid.UUID
	Game         string
	Creator      string
	CreatorName  string
	Opponent     string
	OpponentName string
	Wager        float64
	TimePerSide  time.Duration
	GracePeriod  time.Duration

	Oracle rules.Oracle
	Sender Sender
	Logger *logrus.Logger

	// OnEnd is invoked exactly once after the terminal event has been
	// emitted, so the lobby manager can trigger settlement and release
	// the session.
	OnEnd func(Result)

	// OnRematch asks the lobby manager for a fresh private match of the
	// same game between the two prior participants. Returns the new
	// match ID.
	OnRematch func(creator, opponent, game string, wager float64, timePerSide time.Duration) (uuid.UUID, error)
}

type seat struct {
	identity  string
	name      string
	role      string
	live      bool
	remaining time.Duration

	// Each seat carries its own forfeit timer: with both players dropped,
	// one returning must not disturb the other's grace window.
	graceTimer *time.Timer
	graceGen   int
}

// Session is the live state machine for one match. All mutation happens
// under the session mutex; inbound messages for one session are therefore
// processed serially, which is what the event ordering guarantees rest on.
type Session struct {
	ID    uuid.UUID
	scope registry.Scope

	mu    sync.Mutex
	state State
	seats [2]*seat

	activeIdx   int
	turnStarted time.Time
	moves       []Move

	game        string
	wager       float64
	timePerSide time.Duration
	gracePeriod time.Duration

	clockTimer *time.Timer
	// clockGen invalidates scheduled clock callbacks; every freeze/stop
	// bumps it so a stale timer firing against a changed session is a
	// no-op. Grace timers keep their own generation per seat.
	clockGen int

	drawOfferIdx   int // seat index with a pending draw offer, -1 if none
	rematchWantIdx int // seat index with a pending rematch request, -1 if none

	// oracleFailures counts consecutive failed validations (each already
	// retried once); a streak ends the match as unplayable.
	oracleFailures int

	endReason string

	oracle    rules.Oracle
	sender    Sender
	logger    *logrus.Logger
	onEnd     func(Result)
	onRematch func(creator, opponent, game string, wager float64, timePerSide time.Duration) (uuid.UUID, error)
}

// New builds a session in StateWaiting. Clocks stay frozen until both
// participants' sockets are live.
func New(cfg Config) *Session {
	s := &Session{
		ID:             cfg.MatchID,
		scope:          registry.MatchScope(cfg.MatchID),
		state:          StateWaiting,
		activeIdx:      0,
		game:           cfg.Game,
		wager:          cfg.Wager,
		timePerSide:    cfg.TimePerSide,
		gracePeriod:    cfg.GracePeriod,
		drawOfferIdx:   -1,
		rematchWantIdx: -1,
		oracle:         cfg.Oracle,
		sender:         cfg.Sender,
		logger:         cfg.Logger,
		onEnd:          cfg.OnEnd,
		onRematch:      cfg.OnRematch,
	}
	s.seats[0] = &seat{identity: cfg.Creator, name: cfg.CreatorName, role: RoleWhite, remaining: cfg.TimePerSide}
	s.seats[1] = &seat{identity: cfg.Opponent, name: cfg.OpponentName, role: RoleBlack, remaining: cfg.TimePerSide}
	return s
}

// Scope returns the registry scope for this session's connections.
func (s *Session) Scope() registry.Scope { return s.scope }

// Seated reports whether identity occupies one of the two seats.
func (s *Session) Seated(identity string) bool {
	return s.seatIndex(identity) >= 0
}

func (s *Session) seatIndex(identity string) int {
	for i, st := range s.seats {
		if st.identity == identity {
			return i
		}
	}
	return -1
}

// PlayerConnected marks the participant's socket live. The first time both
// seats are live the session transitions to StateActive and clocks start;
// on a reconnect during the grace window the forfeit timer is cancelled and
// clocks resume from their frozen values.
func (s *Session) PlayerConnected(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.seatIndex(identity)
	if idx < 0 {
		return ErrNotSeated
	}
	if s.state == StateEnded {
		return ErrGameOver
	}

	st := s.seats[idx]
	wasLive := st.live
	st.live = true
	s.logger.Infof("session %s: %s connected (reconnect=%v)", s.ID, identity, wasLive)

	switch s.state {
	case StateWaiting:
		if s.bothLive() {
			s.state = StateActive
			s.resumeClocks()
			for i := range s.seats {
				s.sendSnapshot(i)
			}
			s.logger.Infof("session %s: both seats live, match active", s.ID)
		} else {
			s.sendSnapshot(idx)
		}
	case StateActive:
		if !wasLive {
			s.cancelGrace(idx)
			s.sender.SendTo(s.other(idx).identity, s.scope, PresenceEvent{
				Type:     protocol.MsgOpponentReconnected,
				Identity: identity,
			})
			if s.bothLive() {
				s.resumeClocks()
			}
		}
		s.sendSnapshot(idx)
	}
	return nil
}

// ApplyMove validates and applies a move from identity. On success the
// move is appended, the turn flips, and the move is relayed to the
// opponent; a terminal oracle verdict ends the session.
func (s *Session) ApplyMove(identity string, mv rules.Move) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.seatIndex(identity)
	if idx < 0 {
		return ErrNotSeated
	}
	if s.state == StateEnded {
		return ErrGameOver
	}
	if s.state != StateActive {
		return ErrNotActive
	}
	if idx != s.activeIdx {
		return ErrNotYourTurn
	}

	verdict, err := s.validateWithRetry(mv)
	if err != nil {
		// Oracle unavailable: fail closed, never accept an unvalidated
		// move. A streak of failures means the oracle (or the move log
		// it replays) is broken and the match cannot continue.
		s.oracleFailures++
		s.logger.Errorf("session %s: rules oracle failed twice, rejecting move: %v", s.ID, err)
		if s.oracleFailures >= maxOracleFailures {
			s.failLocked("rules oracle unavailable")
		}
		return ErrIllegalMove
	}
	s.oracleFailures = 0
	if !verdict.Legal {
		return ErrIllegalMove
	}

	now := time.Now()
	active := s.seats[s.activeIdx]
	active.remaining -= now.Sub(s.turnStarted)
	if active.remaining <= 0 {
		active.remaining = 0
		s.end(1-s.activeIdx, ReasonTimeout)
		return nil
	}

	s.moves = append(s.moves, Move{
		Role:      active.role,
		From:      mv.From,
		To:        mv.To,
		Promotion: mv.Promotion,
		Data:      mv.Data,
		At:        now,
	})
	s.drawOfferIdx = -1 // a move supersedes any standing draw offer

	s.activeIdx = 1 - s.activeIdx
	s.turnStarted = now
	s.scheduleClock()

	relay := MoveEvent{
		Type:      protocol.MsgMoveRelay,
		From:      mv.From,
		To:        mv.To,
		Promotion: mv.Promotion,
		Data:      mv.Data,
		By:        active.role,
		Ply:       len(s.moves),
		Clocks:    s.clockViewLocked(),
		NextTurn:  s.seats[s.activeIdx].role,
	}
	s.sender.SendTo(s.other(idx).identity, s.scope, relay)

	if verdict.Terminal != nil {
		winnerIdx := -1
		for i, st := range s.seats {
			if st.role == verdict.Terminal.Winner {
				winnerIdx = i
			}
		}
		s.end(winnerIdx, verdict.Terminal.Reason)
	}
	return nil
}

// validateWithRetry calls the oracle, retrying once on error. Transient
// network-class failures get one more chance; anything persistent is the
// caller's problem.
func (s *Session) validateWithRetry(mv rules.Move) (rules.Verdict, error) {
	history := make([]rules.Move, len(s.moves))
	for i, m := range s.moves {
		history[i] = rules.Move{From: m.From, To: m.To, Promotion: m.Promotion, Data: m.Data}
	}
	verdict, err := s.oracle.Validate(history, mv)
	if err == nil {
		return verdict, nil
	}
	s.logger.Warnf("session %s: rules oracle error, retrying once: %v", s.ID, err)
	return s.oracle.Validate(history, mv)
}

// Resign ends the session immediately with the opponent as winner. Always
// legal while the session is not ended.
func (s *Session) Resign(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.seatIndex(identity)
	if idx < 0 {
		return ErrNotSeated
	}
	if s.state == StateEnded {
		return ErrGameOver
	}
	s.applyElapsedLocked()
	s.end(1-idx, ReasonResign)
	return nil
}

// OfferDraw records a draw offer, or completes a draw if the opponent
// already has one standing. The offer is relayed to the opponent and
// cleared by any applied move.
func (s *Session) OfferDraw(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.seatIndex(identity)
	if idx < 0 {
		return ErrNotSeated
	}
	if s.state == StateEnded {
		return ErrGameOver
	}
	if s.state != StateActive {
		return ErrNotActive
	}

	if s.drawOfferIdx == 1-idx {
		s.applyElapsedLocked()
		s.end(-1, ReasonDraw)
		return nil
	}
	s.drawOfferIdx = idx
	s.sender.SendTo(s.other(idx).identity, s.scope, DrawOfferEvent{
		Type: protocol.MsgDrawOffer,
		From: s.seats[idx].role,
	})
	return nil
}

// Disconnect marks the participant's socket not-live. While active, both
// clocks freeze, the opponent is notified, and a grace timer starts; if
// the player does not return in time the session ends as a forfeit.
func (s *Session) Disconnect(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.seatIndex(identity)
	if idx < 0 {
		return
	}
	st := s.seats[idx]
	if !st.live {
		return
	}
	st.live = false
	s.logger.Infof("session %s: %s disconnected", s.ID, identity)

	if s.state != StateActive {
		return
	}

	s.freezeClocks()
	s.sender.SendTo(s.other(idx).identity, s.scope, PresenceEvent{
		Type:         protocol.MsgOpponentDisconnected,
		Identity:     identity,
		GraceSeconds: int(s.gracePeriod.Seconds()),
	})
	s.startGrace(idx)
}

// failLocked ends a session that cannot continue. Nobody wins; the
// terminal event reports reason "error" and settlement decides what to do
// with the wager.
func (s *Session) failLocked(detail string) {
	if s.state == StateEnded {
		return
	}
	s.logger.Errorf("session %s: fatal error, ending match: %s", s.ID, detail)
	s.applyElapsedLocked()
	s.end(-1, ReasonError)
}

// ExpireIfNeverStarted ends a session whose participants never both
// showed up. Reports whether it expired; a session that went active in
// the meantime is left alone.
func (s *Session) ExpireIfNeverStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateWaiting {
		return false
	}
	s.logger.Infof("session %s: never started, expiring", s.ID)
	s.end(-1, ReasonAbandoned)
	return true
}

// Snapshot returns the session state as seen by identity, for resync.
func (s *Session) Snapshot(identity string) (StateEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.seatIndex(identity)
	if idx < 0 {
		return StateEvent{}, ErrNotSeated
	}
	return s.snapshotLocked(idx), nil
}

// --- internals; every helper below assumes the lock is held ---

func (s *Session) bothLive() bool {
	return s.seats[0].live && s.seats[1].live
}

func (s *Session) other(idx int) *seat {
	return s.seats[1-idx]
}

// applyElapsedLocked charges the running time to the active clock without
// flipping the turn. No-op unless the clock is actually running.
func (s *Session) applyElapsedLocked() {
	if s.state != StateActive || !s.bothLive() || s.turnStarted.IsZero() {
		return
	}
	active := s.seats[s.activeIdx]
	active.remaining -= time.Since(s.turnStarted)
	if active.remaining < 0 {
		active.remaining = 0
	}
	s.turnStarted = time.Now()
}

// resumeClocks restarts the active clock from its stored remaining value.
func (s *Session) resumeClocks() {
	s.turnStarted = time.Now()
	s.scheduleClock()
}

// freezeClocks charges elapsed time to the active seat and stops the clock
// timer. Stale callbacks are invalidated by the generation bump.
func (s *Session) freezeClocks() {
	s.applyElapsedLocked()
	if s.clockTimer != nil {
		s.clockTimer.Stop()
		s.clockTimer = nil
	}
	s.clockGen++
}

func (s *Session) scheduleClock() {
	if s.clockTimer != nil {
		s.clockTimer.Stop()
	}
	s.clockGen++
	gen := s.clockGen
	remaining := s.seats[s.activeIdx].remaining
	s.clockTimer = time.AfterFunc(remaining, func() { s.onClockExpiry(gen) })
}

func (s *Session) onClockExpiry(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Liveness check: an ended or frozen session must never emit events
	// from a timer that outlived it.
	if gen != s.clockGen || s.state != StateActive || !s.bothLive() {
		return
	}
	s.seats[s.activeIdx].remaining = 0
	s.end(1-s.activeIdx, ReasonTimeout)
}

func (s *Session) startGrace(idx int) {
	st := s.seats[idx]
	if st.graceTimer != nil {
		st.graceTimer.Stop()
	}
	st.graceGen++
	gen := st.graceGen
	st.graceTimer = time.AfterFunc(s.gracePeriod, func() { s.onGraceExpiry(idx, gen) })
}

// cancelGrace stops one seat's forfeit timer. It must never touch the
// other seat: with both players gone, the first one returning leaves the
// absentee's window running.
func (s *Session) cancelGrace(idx int) {
	st := s.seats[idx]
	if st.graceTimer != nil {
		st.graceTimer.Stop()
		st.graceTimer = nil
	}
	st.graceGen++
}

func (s *Session) onGraceExpiry(idx, gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.seats[idx].graceGen || s.state != StateActive || s.seats[idx].live {
		return
	}
	s.logger.Infof("session %s: %s failed to reconnect within grace period, forfeiting", s.ID, s.seats[idx].identity)
	s.end(1-idx, ReasonForfeit)
}

// end transitions to StateEnded, emits the terminal event, and notifies
// the lobby manager. winnerIdx < 0 means a draw (or error). No further
// mutation is accepted afterwards.
func (s *Session) end(winnerIdx int, reason string) {
	if s.state == StateEnded {
		return
	}
	s.state = StateEnded
	s.endReason = reason
	if s.clockTimer != nil {
		s.clockTimer.Stop()
		s.clockTimer = nil
	}
	s.clockGen++
	for _, st := range s.seats {
		if st.graceTimer != nil {
			st.graceTimer.Stop()
			st.graceTimer = nil
		}
		st.graceGen++
	}

	var winner, loser, winnerRole string
	if winnerIdx >= 0 {
		winner = s.seats[winnerIdx].identity
		winnerRole = s.seats[winnerIdx].role
		loser = s.seats[1-winnerIdx].identity
	}
	s.logger.Infof("session %s: ended, winner=%q reason=%s", s.ID, winner, reason)

	s.sender.Broadcast(s.scope, EndEvent{
		Type:        protocol.MsgGameEnd,
		Winner:      winner,
		WinnerRole:  winnerRole,
		Reason:      reason,
		FinalClocks: s.clockViewLocked(),
		Moves:       len(s.moves),
	})

	if s.onEnd != nil {
		s.onEnd(Result{
			MatchID:    s.ID,
			Winner:     winner,
			Loser:      loser,
			WinnerRole: winnerRole,
			Reason:     reason,
			Wager:      s.wager,
			FinalClocks: map[string]time.Duration{
				s.seats[0].role: s.seats[0].remaining,
				s.seats[1].role: s.seats[1].remaining,
			},
			Moves: len(s.moves),
		})
	}
}

func (s *Session) clockViewLocked() map[string]int64 {
	view := make(map[string]int64, 2)
	for i, st := range s.seats {
		rem := st.remaining
		if s.state == StateActive && s.bothLive() && i == s.activeIdx && !s.turnStarted.IsZero() {
			rem -= time.Since(s.turnStarted)
			if rem < 0 {
				rem = 0
			}
		}
		view[st.role] = rem.Milliseconds()
	}
	return view
}

func (s *Session) snapshotLocked(idx int) StateEvent {
	clocks := s.clockViewLocked()
	seats := make([]SeatView, 0, 2)
	for _, st := range s.seats {
		seats = append(seats, SeatView{
			Identity:    st.identity,
			Name:        st.name,
			Role:        st.role,
			Connected:   st.live,
			RemainingMS: clocks[st.role],
		})
	}
	return StateEvent{
		Type:        protocol.MsgGameState,
		MatchID:     s.ID.String(),
		Game:        s.game,
		State:       string(s.state),
		Wager:       s.wager,
		TimePerSide: int(s.timePerSide.Seconds()),
		YourRole:    s.seats[idx].role,
		ActiveTurn:  s.seats[s.activeIdx].role,
		Seats:       seats,
		Moves:       len(s.moves),
	}
}

func (s *Session) sendSnapshot(idx int) {
	s.sender.SendTo(s.seats[idx].identity, s.scope, s.snapshotLocked(idx))
}
