// internal/lobby/manager_test.go
package lobby

import (
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbu5358/risko-realtime/internal/registry"
	"github.com/tbu5358/risko-realtime/internal/rules"
	"github.com/tbu5358/risko-realtime/internal/session"
)

type recordingSender struct {
	mu         sync.Mutex
	direct     map[string][]interface{}
	broadcasts []interface{}
}

func newRecordingSender() *recordingSender {
	return &recordingSender{direct: make(map[string][]interface{})}
}

func (r *recordingSender) SendTo(identity string, scope registry.Scope, msg interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct[identity] = append(r.direct[identity], msg)
}

func (r *recordingSender) Broadcast(scope registry.Scope, msg interface{}, exclude ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, msg)
}

func (r *recordingSender) lastBroadcast() interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.broadcasts) == 0 {
		return nil
	}
	return r.broadcasts[len(r.broadcasts)-1]
}

type allowAllOracle struct{}

func (allowAllOracle) Validate([]rules.Move, rules.Move) (rules.Verdict, error) {
	return rules.Verdict{Legal: true}, nil
}

type fixedTimeControls []int

func (f fixedTimeControls) AllowsTimeControl(seconds int) bool {
	for _, v := range f {
		if v == seconds {
			return true
		}
	}
	return false
}

type recordingSettler struct {
	mu      sync.Mutex
	results []session.Result
}

func (r *recordingSettler) Publish(res session.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recordingSettler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

func setupManager(t *testing.T) (*Manager, *recordingSender, *recordingSettler) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	sender := newRecordingSender()
	settler := &recordingSettler{}
	oracles := map[string]rules.Oracle{
		GameSpeedChess:  allowAllOracle{},
		GameSnakeRoyale: allowAllOracle{},
	}
	m := NewManager(sender, session.NewStore(), oracles,
		fixedTimeControls{60, 300}, 30*time.Second, settler, logger)
	return m, sender, settler
}

func TestCreateMatchValidation(t *testing.T) {
	m, _, _ := setupManager(t)

	cases := []struct {
		name  string
		wager float64
		tc    int
	}{
		{"zero wager", 0, 60},
		{"negative wager", -5, 60},
		{"NaN wager", math.NaN(), 60},
		{"infinite wager", math.Inf(1), 60},
		{"unsupported time control", 10, 61},
		{"zero time control", 10, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.CreateMatch("alice", "Alice", GameSpeedChess, tc.wager, tc.tc)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Empty(t, m.Snapshot())
}

func TestCreateMatchGameSelection(t *testing.T) {
	m, _, _ := setupManager(t)

	_, err := m.CreateMatch("alice", "Alice", "backgammon", 25, 60)
	assert.ErrorIs(t, err, ErrInvalidInput)

	desc, err := m.CreateMatch("alice", "Alice", "", 25, 60)
	require.NoError(t, err)
	assert.Equal(t, GameSpeedChess, desc.Game)

	desc, err = m.CreateMatch("bob", "Bob", GameSnakeRoyale, 25, 60)
	require.NoError(t, err)
	assert.Equal(t, GameSnakeRoyale, desc.Game)

	sess, err := m.JoinMatch(desc.MatchID, "carol", "Carol")
	require.NoError(t, err)
	snap, err := sess.Snapshot("carol")
	require.NoError(t, err)
	assert.Equal(t, GameSnakeRoyale, snap.Game)
}

func TestNeverStartedSessionExpires(t *testing.T) {
	m, _, settler := setupManager(t)
	m.startWindow = 20 * time.Millisecond

	desc, err := m.CreateMatch("alice", "Alice", GameSpeedChess, 25, 60)
	require.NoError(t, err)
	_, err = m.JoinMatch(desc.MatchID, "bob", "Bob")
	require.NoError(t, err)

	// Neither player ever connects; the session is reaped.
	require.Eventually(t, func() bool {
		_, ok := m.Sessions().Get(desc.MatchID)
		return !ok
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, 1, settler.count())
	settler.mu.Lock()
	res := settler.results[0]
	settler.mu.Unlock()
	assert.Equal(t, session.ReasonAbandoned, res.Reason)
	assert.Empty(t, res.Winner)
}

func TestStartWindowSparesStartedSession(t *testing.T) {
	m, _, settler := setupManager(t)
	m.startWindow = 20 * time.Millisecond

	desc, err := m.CreateMatch("alice", "Alice", GameSpeedChess, 25, 60)
	require.NoError(t, err)
	sess, err := m.JoinMatch(desc.MatchID, "bob", "Bob")
	require.NoError(t, err)
	require.NoError(t, sess.PlayerConnected("alice"))
	require.NoError(t, sess.PlayerConnected("bob"))

	time.Sleep(60 * time.Millisecond)
	_, ok := m.Sessions().Get(desc.MatchID)
	assert.True(t, ok)
	assert.Equal(t, 0, settler.count())
}

func TestCreateMatchBroadcastsAndLists(t *testing.T) {
	m, sender, _ := setupManager(t)

	desc, err := m.CreateMatch("alice", "Alice", GameSpeedChess, 25, 60)
	require.NoError(t, err)
	assert.Equal(t, StateWaiting, desc.State)
	assert.Len(t, desc.JoinCode, 6)

	created, ok := sender.lastBroadcast().(CreatedEvent)
	require.True(t, ok)
	assert.Equal(t, desc.MatchID, created.Match.MatchID)

	snap := m.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, desc.MatchID, snap[0].MatchID)
}

func TestSnapshotPreservesCreationOrder(t *testing.T) {
	m, _, _ := setupManager(t)

	first, err := m.CreateMatch("alice", "Alice", GameSpeedChess, 10, 60)
	require.NoError(t, err)
	second, err := m.CreateMatch("bob", "Bob", GameSpeedChess, 20, 300)
	require.NoError(t, err)

	snap := m.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, first.MatchID, snap[0].MatchID)
	assert.Equal(t, second.MatchID, snap[1].MatchID)
}

func TestJoinMatchSpawnsSession(t *testing.T) {
	m, sender, _ := setupManager(t)

	desc, err := m.CreateMatch("alice", "Alice", GameSpeedChess, 25, 60)
	require.NoError(t, err)

	sess, err := m.JoinMatch(desc.MatchID, "bob", "Bob")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.True(t, sess.Seated("alice"))
	assert.True(t, sess.Seated("bob"))

	stored, ok := m.Sessions().Get(desc.MatchID)
	require.True(t, ok)
	assert.Same(t, sess, stored)

	joined, ok := sender.lastBroadcast().(JoinedEvent)
	require.True(t, ok)
	assert.Equal(t, "bob", joined.Opponent)

	// The filled match leaves the directory; a second join finds nothing.
	assert.Empty(t, m.Snapshot())
	_, err = m.JoinMatch(desc.MatchID, "carol", "Carol")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJoinOwnMatch(t *testing.T) {
	m, _, _ := setupManager(t)
	desc, err := m.CreateMatch("alice", "Alice", GameSpeedChess, 25, 60)
	require.NoError(t, err)

	_, err = m.JoinMatch(desc.MatchID, "alice", "Alice")
	assert.ErrorIs(t, err, ErrSelfJoin)
	// Still joinable by someone else.
	_, err = m.JoinMatch(desc.MatchID, "bob", "Bob")
	assert.NoError(t, err)
}

func TestCancelMatch(t *testing.T) {
	m, sender, _ := setupManager(t)
	desc, err := m.CreateMatch("alice", "Alice", GameSpeedChess, 25, 60)
	require.NoError(t, err)

	assert.ErrorIs(t, m.CancelMatch(desc.MatchID, "bob"), ErrForbidden)
	assert.ErrorIs(t, m.CancelMatch(uuid.New(), "alice"), ErrNotFound)

	require.NoError(t, m.CancelMatch(desc.MatchID, "alice"))
	removed, ok := sender.lastBroadcast().(RemovedEvent)
	require.True(t, ok)
	assert.Equal(t, desc.MatchID.String(), removed.MatchID)
	assert.Empty(t, m.Snapshot())

	assert.ErrorIs(t, m.CancelMatch(desc.MatchID, "alice"), ErrNotFound)
}

func TestResolveCode(t *testing.T) {
	m, _, _ := setupManager(t)
	desc, err := m.CreateMatch("alice", "Alice", GameSpeedChess, 25, 60)
	require.NoError(t, err)

	id, ok := m.ResolveCode(desc.JoinCode)
	require.True(t, ok)
	assert.Equal(t, desc.MatchID, id)

	_, ok = m.ResolveCode("NOPE42")
	assert.False(t, ok)

	// The code dies with the descriptor.
	_, err = m.JoinMatch(desc.MatchID, "bob", "Bob")
	require.NoError(t, err)
	_, ok = m.ResolveCode(desc.JoinCode)
	assert.False(t, ok)
}

func TestRefreshMatchesSendsDirectory(t *testing.T) {
	m, sender, _ := setupManager(t)
	_, err := m.CreateMatch("alice", "Alice", GameSpeedChess, 25, 60)
	require.NoError(t, err)

	m.RefreshMatches("bob")

	sender.mu.Lock()
	defer sender.mu.Unlock()
	evs := sender.direct["bob"]
	require.NotEmpty(t, evs)
	dir, ok := evs[len(evs)-1].(DirectoryEvent)
	require.True(t, ok)
	assert.Len(t, dir.Matches, 1)
}

func TestSessionEndPublishesSettlement(t *testing.T) {
	m, _, settler := setupManager(t)
	desc, err := m.CreateMatch("alice", "Alice", GameSpeedChess, 25, 60)
	require.NoError(t, err)
	sess, err := m.JoinMatch(desc.MatchID, "bob", "Bob")
	require.NoError(t, err)

	require.NoError(t, sess.PlayerConnected("alice"))
	require.NoError(t, sess.PlayerConnected("bob"))
	require.NoError(t, sess.Resign("bob"))

	require.Equal(t, 1, settler.count())
	settler.mu.Lock()
	res := settler.results[0]
	settler.mu.Unlock()
	assert.Equal(t, "alice", res.Winner)
	assert.Equal(t, float64(25), res.Wager)

	// The session sticks around for the rematch window.
	_, ok := m.Sessions().Get(desc.MatchID)
	assert.True(t, ok)
}

func TestCreateRematchBypassesDirectory(t *testing.T) {
	m, _, _ := setupManager(t)

	id, err := m.CreateRematch("bob", "alice", GameSpeedChess, 25, time.Minute)
	require.NoError(t, err)

	sess, ok := m.Sessions().Get(id)
	require.True(t, ok)
	assert.True(t, sess.Seated("alice"))
	assert.True(t, sess.Seated("bob"))
	assert.Empty(t, m.Snapshot())

	_, err = m.CreateRematch("bob", "bob", GameSpeedChess, 25, time.Minute)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
