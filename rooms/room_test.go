package rooms

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/pong-tournaments/game"
	"github.com/Dosada05/pong-tournaments/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errConnClosed = errors.New("connection closed")

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (f *fakeConn) Send(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errConnClosed
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeConn) lastFrame(t *testing.T) Frame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.frames)
	var fr Frame
	require.NoError(t, json.Unmarshal(f.frames[len(f.frames)-1], &fr))
	return fr
}

type recordingReporter struct {
	mu      sync.Mutex
	results []models.MatchResult
	err     error
}

func (r *recordingReporter) ReportMatch(_ context.Context, result models.MatchResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	return r.err
}

func (r *recordingReporter) all() []models.MatchResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.MatchResult(nil), r.results...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		TickRate:      60,
		WaitSeconds:   45,
		GraceDelay:    10 * time.Millisecond,
		CancelDelay:   10 * time.Millisecond,
		ReportTimeout: time.Second,
	}
}

func newTestRoom(kind Kind, reporter Reporter, onComplete func(models.MatchResult), onClosed func(int)) *Room {
	return newRoom(Options{
		ID:         7,
		Kind:       kind,
		Player1:    Participant{ID: "alice", DisplayName: "Alice"},
		Player2:    Participant{ID: "bob", DisplayName: "Bob"},
		OnComplete: onComplete,
		OnClosed:   onClosed,
	}, testConfig(), reporter, testLogger())
}

// waitOut ticks once per simulated second until the wait window is exhausted.
func waitOut(r *Room, base time.Time, seconds int) {
	r.tick(base)
	for i := 1; i <= seconds; i++ {
		r.tick(base.Add(time.Duration(i) * time.Second))
	}
}

func TestRemoteRoomLonePlayerForfeits(t *testing.T) {
	reporter := &recordingReporter{}
	var completed []models.MatchResult
	var mu sync.Mutex
	r := newTestRoom(KindRemote, reporter, func(res models.MatchResult) {
		mu.Lock()
		completed = append(completed, res)
		mu.Unlock()
	}, nil)

	alice := &fakeConn{}
	side, err := r.Attach("alice", alice)
	require.NoError(t, err)
	require.Equal(t, 1, side)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	waitOut(r, base, 44)
	assert.Equal(t, StatusWaiting, r.Status())
	assert.Equal(t, 1, r.Snapshot().WaitTimer)

	r.tick(base.Add(45 * time.Second))

	snap := r.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 2, snap.Score.Winner)
	assert.Equal(t, StatusCompleted, alice.lastFrame(t).Status)

	mu.Lock()
	require.Len(t, completed, 1)
	assert.Equal(t, "bob", completed[0].WinnerID)
	assert.True(t, completed[0].Forfeit)
	mu.Unlock()

	assert.Eventually(t, func() bool { return len(reporter.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, alice.isClosed, time.Second, 5*time.Millisecond)
}

func TestCustomRoomLonePlayerCancels(t *testing.T) {
	closed := make(chan int, 1)
	completeCalled := false
	r := newTestRoom(KindCustom, nil, func(models.MatchResult) { completeCalled = true }, func(id int) { closed <- id })

	alice := &fakeConn{}
	_, err := r.Attach("alice", alice)
	require.NoError(t, err)

	waitOut(r, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), 45)

	snap := r.Snapshot()
	assert.Equal(t, StatusCancelled, snap.Status)
	assert.Equal(t, ReasonPlayerLeft, snap.Reason)
	assert.Equal(t, 0, snap.Score.Winner)
	assert.False(t, completeCalled)

	select {
	case id := <-closed:
		assert.Equal(t, 7, id)
	case <-time.After(time.Second):
		t.Fatal("room-closed callback not invoked")
	}
	assert.True(t, alice.isClosed())
}

func TestCustomRoomNobodyShowsUp(t *testing.T) {
	r := newTestRoom(KindCustom, nil, nil, nil)
	waitOut(r, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), 45)

	snap := r.Snapshot()
	assert.Equal(t, StatusCancelled, snap.Status)
	assert.Equal(t, ReasonInviteExpired, snap.Reason)
}

func TestWaitCounterResetsWhileBothPresent(t *testing.T) {
	r := newTestRoom(KindRemote, nil, nil, nil)
	alice, bob := &fakeConn{}, &fakeConn{}
	_, err := r.Attach("alice", alice)
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	waitOut(r, base, 10)
	assert.Equal(t, 35, r.Snapshot().WaitTimer)

	_, err = r.Attach("bob", bob)
	require.NoError(t, err)
	r.tick(base.Add(11 * time.Second))
	assert.Equal(t, StatusPlaying, r.Status())
	assert.Equal(t, 45, r.Snapshot().WaitTimer)

	r.Detach("bob", bob)
	r.tick(base.Add(11*time.Second + 500*time.Millisecond))
	assert.Equal(t, StatusWaiting, r.Status())
	assert.Equal(t, 45, r.Snapshot().WaitTimer)
	r.tick(base.Add(12 * time.Second))
	assert.Equal(t, 44, r.Snapshot().WaitTimer)
}

func TestAttachRejectsUnknownIdentity(t *testing.T) {
	r := newTestRoom(KindRemote, nil, nil, nil)
	stranger := &fakeConn{}

	_, err := r.Attach("mallory", stranger)

	assert.ErrorIs(t, err, ErrUnknownIdentity)
	assert.Zero(t, stranger.count())
	snap := r.Snapshot()
	assert.False(t, snap.Players[0].Connected)
	assert.False(t, snap.Players[1].Connected)
	assert.Equal(t, StatusWaiting, snap.Status)
}

func TestAttachSendsInitialFrameAndReplacesOldConnection(t *testing.T) {
	r := newTestRoom(KindRemote, nil, nil, nil)
	first, second := &fakeConn{}, &fakeConn{}

	_, err := r.Attach("bob", first)
	require.NoError(t, err)
	assert.Equal(t, models.MsgGameState, first.lastFrame(t).Type)

	side, err := r.Attach("bob", second)
	require.NoError(t, err)
	assert.Equal(t, 2, side)
	assert.True(t, first.isClosed())
	assert.True(t, second.lastFrame(t).Players[1].Connected)
}

func TestCleanupIsIdempotent(t *testing.T) {
	r := newTestRoom(KindRemote, nil, nil, nil)
	alice, bob := &fakeConn{}, &fakeConn{}
	_, _ = r.Attach("alice", alice)
	_, _ = r.Attach("bob", bob)
	r.Start()

	r.Cleanup()
	once := r.Snapshot()
	assert.NotPanics(t, r.Cleanup)
	twice := r.Snapshot()

	assert.Equal(t, once, twice)
	assert.True(t, alice.isClosed())
	assert.True(t, bob.isClosed())
	assert.False(t, r.loopOn)

	_, err := r.Attach("alice", &fakeConn{})
	assert.ErrorIs(t, err, ErrRoomClosed)
}

func TestThirdPointCompletesAndReports(t *testing.T) {
	reporter := &recordingReporter{err: errors.New("ledger down")}
	results := make(chan models.MatchResult, 1)
	r := newTestRoom(KindRemote, reporter, func(res models.MatchResult) { results <- res }, nil)
	alice, bob := &fakeConn{}, &fakeConn{}
	_, _ = r.Attach("alice", alice)
	_, _ = r.Attach("bob", bob)

	r.state.Running = true
	r.state.Score.Player1 = game.WinningScore - 1
	r.state.Ball.Moving = true
	r.state.Ball.Angle = 0
	r.state.Ball.X = game.CanvasWidth + game.BallRadius + 1

	r.tick(time.Now())

	select {
	case res := <-results:
		assert.Equal(t, "alice", res.WinnerID)
		assert.Equal(t, game.WinningScore, res.Score1)
		assert.Equal(t, 0, res.Score2)
		assert.False(t, res.Forfeit)
		assert.False(t, res.StartTime.IsZero())
	case <-time.After(time.Second):
		t.Fatal("completion callback not invoked")
	}
	assert.Equal(t, StatusCompleted, bob.lastFrame(t).Status)
	assert.Eventually(t, func() bool { return len(reporter.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return alice.isClosed() && bob.isClosed() }, time.Second, 5*time.Millisecond)

	before := bob.count()
	r.tick(time.Now())
	assert.Equal(t, before, bob.count(), "finished room must not broadcast")
}

func TestLeaveCommand(t *testing.T) {
	t.Run("remote room forfeits to opponent", func(t *testing.T) {
		results := make(chan models.MatchResult, 1)
		r := newTestRoom(KindRemote, nil, func(res models.MatchResult) { results <- res }, nil)
		_, _ = r.Attach("alice", &fakeConn{})
		_, _ = r.Attach("bob", &fakeConn{})

		require.NoError(t, r.HandleMessage("alice", models.InboundMessage{Type: models.MsgCommand, Key: "leave"}))

		res := <-results
		assert.Equal(t, "bob", res.WinnerID)
		assert.True(t, res.Forfeit)
		assert.Equal(t, "alice", res.LeaverID)
		assert.Equal(t, StatusCompleted, r.Status())
	})

	t.Run("custom room is cancelled", func(t *testing.T) {
		r := newTestRoom(KindCustom, nil, nil, nil)
		bob := &fakeConn{}
		_, _ = r.Attach("alice", &fakeConn{})
		_, _ = r.Attach("bob", bob)

		require.NoError(t, r.HandleMessage("alice", models.InboundMessage{Type: models.MsgCommand, Key: "leave"}))

		snap := r.Snapshot()
		assert.Equal(t, StatusCancelled, snap.Status)
		assert.Equal(t, ReasonPlayerLeft, snap.Reason)
		assert.Equal(t, 0, snap.Score.Winner)
		assert.Equal(t, StatusCancelled, bob.lastFrame(t).Status)
	})
}

func TestCommandsAndKeys(t *testing.T) {
	r := newTestRoom(KindRemote, nil, nil, nil)
	_, _ = r.Attach("alice", &fakeConn{})
	_, _ = r.Attach("bob", &fakeConn{})

	assert.ErrorIs(t, r.HandleMessage("alice", models.InboundMessage{Type: models.MsgCommand, Key: "reset"}), ErrResetNotAllowed)
	assert.ErrorIs(t, r.HandleMessage("alice", models.InboundMessage{Type: models.MsgCommand, Key: "dance"}), ErrUnknownCommand)
	assert.ErrorIs(t, r.HandleMessage("alice", models.InboundMessage{Type: "teleport"}), ErrUnknownMessage)

	require.NoError(t, r.HandleMessage("alice", models.InboundMessage{Type: models.MsgKeyDown, Key: "ArrowUp"}))
	startY := r.Snapshot().Paddle1.Y
	r.tick(time.Now())
	assert.Less(t, r.Snapshot().Paddle1.Y, startY)

	require.NoError(t, r.HandleMessage("alice", models.InboundMessage{Type: models.MsgKeyUp, Key: "ArrowUp"}))
	y := r.Snapshot().Paddle1.Y
	r.tick(time.Now())
	assert.Equal(t, y, r.Snapshot().Paddle1.Y)

	require.NoError(t, r.HandleMessage("bob", models.InboundMessage{Type: models.MsgCommand, Key: "p"}))
	assert.True(t, r.Snapshot().Paused)
}

func TestCustomRoomReset(t *testing.T) {
	r := newTestRoom(KindCustom, nil, nil, nil)
	_, _ = r.Attach("alice", &fakeConn{})
	_, _ = r.Attach("bob", &fakeConn{})
	r.state.Score.Player2 = 2

	require.NoError(t, r.HandleMessage("bob", models.InboundMessage{Type: models.MsgCommand, Key: "reset"}))
	assert.Equal(t, 0, r.Snapshot().Score.Player2)
}
