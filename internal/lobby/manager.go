// internal/lobby/manager.go
package lobby

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sirupsen/logrus"

	"github.com/tbu5358/risko-realtime/internal/protocol"
	"github.com/tbu5358/risko-realtime/internal/registry"
	"github.com/tbu5358/risko-realtime/internal/rules"
	"github.com/tbu5358/risko-realtime/internal/session"
)

// Errors surfaced as lobby-error events to the offending connection.
var (
	ErrInvalidInput = errors.New("invalid match parameters")
	ErrNotFound     = errors.New("match not found")
	ErrForbidden    = errors.New("operation not permitted")
	ErrSelfJoin     = errors.New("cannot join your own match")
)

// Descriptor states. A descriptor leaves the directory when it is handed
// off to a session or cancelled; "ended" only appears in reporting.
const (
	StateWaiting = "waiting"
	StateActive  = "active"
	StateEnded   = "ended"
)

const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Supported games. Each maps to a rules oracle at manager construction.
const (
	GameSpeedChess  = "speed_chess"
	GameSnakeRoyale = "snake_royale"
)

// startTimeout is how long a spawned session may sit in the waiting state
// before it is expired and released.
const startTimeout = 5 * time.Minute

// MatchDescriptor is the lightweight directory record for a match awaiting
// an opponent. The opponent seat is set at most once.
type MatchDescriptor struct {
	MatchID     uuid.UUID `json:"matchId"`
	JoinCode    string    `json:"joinCode"`
	Game        string    `json:"game"`
	Creator     string    `json:"creator"`
	CreatorName string    `json:"creatorName"`
	Opponent    string    `json:"opponent,omitempty"`
	Wager       float64   `json:"wager"`
	TimePerSide int       `json:"timePerSide"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Settler receives terminal session results for wallet settlement.
type Settler interface {
	Publish(res session.Result)
}

// TimeControls constrains which timePerSide values CreateMatch accepts.
type TimeControls interface {
	AllowsTimeControl(seconds int) bool
}

// Manager is the authoritative directory of matches awaiting an opponent.
// It is the single writer of the descriptor map; every mutation and its
// broadcast happen under one mutex, so no two clients can observe
// directory events out of order.
type Manager struct {
	mu      sync.Mutex
	matches map[uuid.UUID]*MatchDescriptor
	order   []uuid.UUID
	codes   map[string]uuid.UUID

	sender       session.Sender
	sessions     *session.Store
	oracles      map[string]rules.Oracle
	timeControls TimeControls
	gracePeriod  time.Duration
	startWindow  time.Duration
	settler      Settler
	logger       *logrus.Logger
}

// NewManager wires a lobby manager. oracles keys are the accepted game
// identifiers; settler may be nil in development.
func NewManager(sender session.Sender, sessions *session.Store, oracles map[string]rules.Oracle,
	timeControls TimeControls, gracePeriod time.Duration, settler Settler, logger *logrus.Logger) *Manager {
	return &Manager{
		matches:      make(map[uuid.UUID]*MatchDescriptor),
		codes:        make(map[string]uuid.UUID),
		sender:       sender,
		sessions:     sessions,
		oracles:      oracles,
		timeControls: timeControls,
		gracePeriod:  gracePeriod,
		startWindow:  startTimeout,
		settler:      settler,
		logger:       logger,
	}
}

// Sessions exposes the session store for the transport layer.
func (m *Manager) Sessions() *session.Store { return m.sessions }

// CreateMatch validates parameters, stores a waiting descriptor, and
// broadcasts match-created to every lobby-scoped connection. An empty
// game defaults to speed chess.
func (m *Manager) CreateMatch(creator, creatorName, game string, wager float64, timePerSide int) (*MatchDescriptor, error) {
	if creator == "" || wager <= 0 || math.IsNaN(wager) || math.IsInf(wager, 0) {
		return nil, ErrInvalidInput
	}
	if game == "" {
		game = GameSpeedChess
	}
	if _, ok := m.oracles[game]; !ok {
		return nil, ErrInvalidInput
	}
	if !m.timeControls.AllowsTimeControl(timePerSide) {
		return nil, ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New()
	code, err := gonanoid.Generate(joinCodeAlphabet, 6)
	if err != nil {
		return nil, err
	}
	desc := &MatchDescriptor{
		MatchID:     id,
		JoinCode:    code,
		Game:        game,
		Creator:     creator,
		CreatorName: creatorName,
		Wager:       wager,
		TimePerSide: timePerSide,
		State:       StateWaiting,
		CreatedAt:   time.Now(),
	}
	m.matches[id] = desc
	m.order = append(m.order, id)
	m.codes[code] = id

	m.logger.Infof("lobby: %s created %s match %s (wager=%.2f, tc=%ds)", creator, game, id, wager, timePerSide)
	m.sender.Broadcast(registry.ScopeLobby, CreatedEvent{Type: protocol.MsgMatchCreated, Match: desc})
	return desc, nil
}

// JoinMatch fills the opponent seat and hands the match off to a new
// session. Exactly one concurrent join can succeed; later attempts see the
// descriptor gone and fail with ErrNotFound.
func (m *Manager) JoinMatch(matchID uuid.UUID, joiner, joinerName string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	desc, ok := m.matches[matchID]
	if !ok || desc.State != StateWaiting {
		return nil, ErrNotFound
	}
	if desc.Creator == joiner {
		return nil, ErrSelfJoin
	}

	desc.Opponent = joiner
	desc.State = StateActive
	m.removeLocked(matchID)

	sess := m.spawnLocked(desc, joinerName)
	m.logger.Infof("lobby: %s joined match %s, session started", joiner, matchID)
	m.sender.Broadcast(registry.ScopeLobby, JoinedEvent{
		Type:     protocol.MsgMatchJoined,
		MatchID:  matchID.String(),
		Opponent: joiner,
	})
	return sess, nil
}

// CancelMatch removes a waiting descriptor. Only the creator may cancel,
// and only while the match is still waiting; once a session exists the
// client must resign instead.
func (m *Manager) CancelMatch(matchID uuid.UUID, requester string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	desc, ok := m.matches[matchID]
	if !ok {
		return ErrNotFound
	}
	if desc.Creator != requester || desc.State != StateWaiting {
		return ErrForbidden
	}

	m.removeLocked(matchID)
	m.logger.Infof("lobby: %s cancelled match %s", requester, matchID)
	m.sender.Broadcast(registry.ScopeLobby, RemovedEvent{Type: protocol.MsgMatchRemoved, MatchID: matchID.String()})
	return nil
}

// RefreshMatches pushes the full directory snapshot to one connection.
// A read, not a mutation; it always succeeds.
func (m *Manager) RefreshMatches(identity string) {
	m.mu.Lock()
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.sender.SendTo(identity, registry.ScopeLobby, directoryEvent(snap))
}

// Snapshot returns waiting descriptors in creation order.
func (m *Manager) Snapshot() []*MatchDescriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// GetMatch returns the waiting descriptor for id, if still in the directory.
func (m *Manager) GetMatch(id uuid.UUID) (*MatchDescriptor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	desc, ok := m.matches[id]
	return desc, ok
}

// ResolveCode maps a join code to its match ID.
func (m *Manager) ResolveCode(code string) (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.codes[code]
	return id, ok
}

// CreateRematch spawns a private session between two prior participants
// with the same game, wager, and time control, bypassing the public
// directory.
func (m *Manager) CreateRematch(creator, opponent, game string, wager float64, timePerSide time.Duration) (uuid.UUID, error) {
	if creator == "" || opponent == "" || creator == opponent {
		return uuid.Nil, ErrInvalidInput
	}
	if game == "" {
		game = GameSpeedChess
	}
	if _, ok := m.oracles[game]; !ok {
		return uuid.Nil, ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	desc := &MatchDescriptor{
		MatchID:     uuid.New(),
		Game:        game,
		Creator:     creator,
		CreatorName: creator,
		Opponent:    opponent,
		Wager:       wager,
		TimePerSide: int(timePerSide.Seconds()),
		State:       StateActive,
		CreatedAt:   time.Now(),
	}
	sess := m.spawnLocked(desc, opponent)
	m.logger.Infof("lobby: rematch session %s created for %s vs %s", sess.ID, creator, opponent)
	return sess.ID, nil
}

// spawnLocked builds and stores the session for a filled descriptor. A
// session whose players never both attach is expired after the start
// window so the store does not accumulate abandoned matches.
func (m *Manager) spawnLocked(desc *MatchDescriptor, opponentName string) *session.Session {
	sess := session.New(session.Config{
		MatchID:      desc.MatchID,
		Game:         desc.Game,
		Creator:      desc.Creator,
		CreatorName:  desc.CreatorName,
		Opponent:     desc.Opponent,
		OpponentName: opponentName,
		Wager:        desc.Wager,
		TimePerSide:  time.Duration(desc.TimePerSide) * time.Second,
		GracePeriod:  m.gracePeriod,
		Oracle:       m.oracles[desc.Game],
		Sender:       m.sender,
		Logger:       m.logger,
		OnEnd:        m.handleSessionEnd,
		OnRematch:    m.CreateRematch,
	})
	m.sessions.Add(sess)

	id := sess.ID
	time.AfterFunc(m.startWindow, func() {
		if sess.ExpireIfNeverStarted() {
			m.sessions.Delete(id)
		}
	})
	return sess
}

// handleSessionEnd triggers settlement and releases the session. The
// settlement contract is fire-and-forget; the manager never blocks on it.
func (m *Manager) handleSessionEnd(res session.Result) {
	if m.settler != nil {
		m.settler.Publish(res)
	}
	// Keep the session around briefly so the participants can run the
	// rematch handshake over their still-open match sockets.
	time.AfterFunc(5*time.Minute, func() {
		m.sessions.Delete(res.MatchID)
	})
}

func (m *Manager) snapshotLocked() []*MatchDescriptor {
	out := make([]*MatchDescriptor, 0, len(m.matches))
	for _, id := range m.order {
		if desc, ok := m.matches[id]; ok {
			out = append(out, desc)
		}
	}
	return out
}

func (m *Manager) removeLocked(matchID uuid.UUID) {
	desc, ok := m.matches[matchID]
	if !ok {
		return
	}
	delete(m.matches, matchID)
	delete(m.codes, desc.JoinCode)
	for i, id := range m.order {
		if id == matchID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}
