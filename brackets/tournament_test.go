package brackets

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/pong-tournaments/models"
)

func fixedClock() func() time.Time {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func newTestTournament(t *testing.T, opts ...Option) *Tournament {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock())}, opts...)
	tr, err := NewTournament("t-1", "Friday cup", "p1", models.DefaultTournamentConfig(), opts...)
	require.NoError(t, err)
	return tr
}

func fillAndStart(t *testing.T, tr *Tournament) {
	t.Helper()
	skills := map[string]float64{"p1": 4, "p2": 3, "p3": 2, "p4": 1}
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		require.NoError(t, tr.AddPlayer(models.Player{ID: id, DisplayName: id, Skill: skills[id]}))
	}
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		require.NoError(t, tr.SetReady(id, true))
	}
	require.NoError(t, tr.Start())
}

func TestNewTournamentRejectsOtherSizes(t *testing.T) {
	cfg := models.DefaultTournamentConfig()
	cfg.MaxPlayers = 8
	_, err := NewTournament("t", "x", "p1", cfg)
	assert.ErrorIs(t, err, models.ErrConfigBracketSize)
}

func TestFourReadyPlayersStartTournament(t *testing.T) {
	var phases []models.TournamentPhase
	tr := newTestTournament(t, WithEvents(Events{
		OnPhaseChange: func(_ *Tournament, _, to models.TournamentPhase) { phases = append(phases, to) },
	}))

	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		require.NoError(t, tr.AddPlayer(models.Player{ID: id}))
	}
	assert.Equal(t, models.PhaseRegistration, tr.Phase())
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		require.NoError(t, tr.SetReady(id, true))
	}
	assert.Equal(t, models.PhaseReady, tr.Phase())

	require.NoError(t, tr.Start())
	assert.Equal(t, models.PhaseInProgress, tr.Phase())
	assert.Equal(t, []models.TournamentPhase{models.PhaseReady, models.PhaseInProgress}, phases)

	b := tr.Bracket()
	require.NotNil(t, b)
	assert.Equal(t, models.MatchPending, b.Semifinals[0].Status)
	assert.Equal(t, models.MatchPending, b.Semifinals[1].Status)
	assert.Equal(t, models.MatchPending, b.Final.Status)
	require.NotNil(t, b.ThirdPlace)
	assert.Equal(t, models.MatchPending, b.ThirdPlace.Status)
	assert.Equal(t, models.RoundSemifinal, tr.CurrentRound())

	assert.ErrorIs(t, tr.Start(), ErrInvalidPhase)
}

func TestSemifinalsSeatFinalAndThirdPlace(t *testing.T) {
	tr := newTestTournament(t)
	fillAndStart(t, tr)
	b := tr.Bracket()

	require.NoError(t, tr.StartMatch("R1M1", 1))
	require.NoError(t, tr.StartMatch("R1M2", 2))

	require.NoError(t, tr.CompleteMatch("R1M1", "p1", models.Score{Player1: 3, Player2: 1}))
	assert.Empty(t, b.Final.Player1ID)
	assert.Equal(t, models.RoundSemifinal, tr.CurrentRound())

	require.NoError(t, tr.CompleteMatch("R1M2", "p3", models.Score{Player1: 2, Player2: 3}))
	assert.Equal(t, "p1", b.Final.Player1ID)
	assert.Equal(t, "p3", b.Final.Player2ID)
	assert.Equal(t, "p4", b.ThirdPlace.Player1ID)
	assert.Equal(t, "p2", b.ThirdPlace.Player2ID)
	assert.Equal(t, models.RoundFinal, tr.CurrentRound())
}

func TestFinalCompletesTournament(t *testing.T) {
	var winner string
	tr := newTestTournament(t, WithEvents(Events{
		OnCompleted: func(_ *Tournament, id string) { winner = id },
	}))
	fillAndStart(t, tr)

	for i, id := range []string{"R1M1", "R1M2"} {
		require.NoError(t, tr.StartMatch(id, i+1))
	}
	require.NoError(t, tr.CompleteMatch("R1M1", "p1", models.Score{Player1: 3}))
	require.NoError(t, tr.CompleteMatch("R1M2", "p2", models.Score{Player1: 3}))

	require.NoError(t, tr.StartMatch("R2M1", 3))
	require.NoError(t, tr.CompleteMatch("R2M1", "p2", models.Score{Player2: 3}))

	assert.Equal(t, models.PhaseCompleted, tr.Phase())
	assert.Equal(t, "p2", tr.WinnerID())
	assert.Equal(t, "p2", winner)

	// Матч за третье место можно доиграть после финала.
	require.NoError(t, tr.StartMatch("R0M1", 4))
	require.NoError(t, tr.CompleteMatch("R0M1", "p4", models.Score{Player1: 3}))
	assert.Equal(t, models.PhaseCompleted, tr.Phase())

	require.NoError(t, tr.Archive())
	assert.Equal(t, models.PhaseArchived, tr.Phase())
	assert.NotNil(t, tr.ArchivedAt())
}

func TestMatchGuards(t *testing.T) {
	tr := newTestTournament(t)
	fillAndStart(t, tr)

	assert.ErrorIs(t, tr.CompleteMatch("R1M1", "p1", models.Score{}), ErrMatchNotInProgress)
	assert.ErrorIs(t, tr.StartMatch("R2M1", 9), ErrMatchNotSeated)
	assert.ErrorIs(t, tr.StartMatch("R9M9", 9), ErrMatchNotFound)

	require.NoError(t, tr.StartMatch("R1M1", 1))
	assert.ErrorIs(t, tr.StartMatch("R1M1", 2), ErrMatchNotPending)
	assert.ErrorIs(t, tr.CompleteMatch("R1M1", "p2", models.Score{}), ErrInvalidWinner)

	m, _ := tr.Match("R1M1")
	assert.Empty(t, m.WinnerID, "winner is only set on completion")
	assert.Equal(t, 1, m.GameID)
}

func TestRegistrationGuards(t *testing.T) {
	tr := newTestTournament(t)
	require.NoError(t, tr.AddPlayer(models.Player{ID: "p1"}))
	assert.ErrorIs(t, tr.AddPlayer(models.Player{ID: "p1"}), ErrAlreadyRegistered)
	assert.ErrorIs(t, tr.SetReady("ghost", true), ErrPlayerNotFound)

	for _, id := range []string{"p2", "p3", "p4"} {
		require.NoError(t, tr.AddPlayer(models.Player{ID: id}))
	}
	assert.ErrorIs(t, tr.AddPlayer(models.Player{ID: "p5"}), ErrTournamentFull)
	assert.Equal(t, tr.Config.MaxPlayers, tr.PlayerCount())

	assert.ErrorIs(t, tr.Start(), ErrInvalidPhase)

	require.NoError(t, tr.RemovePlayer("p4"))
	assert.Equal(t, 3, tr.PlayerCount())
	require.NoError(t, tr.AddPlayer(models.Player{ID: "p5"}))
	assert.Equal(t, "p5", tr.Players()[3].ID)
}

func TestUnreadyBeforeQuorumKeepsRegistration(t *testing.T) {
	tr := newTestTournament(t)
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		require.NoError(t, tr.AddPlayer(models.Player{ID: id}))
	}
	for _, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, tr.SetReady(id, true))
	}
	require.NoError(t, tr.SetReady("p3", false))
	assert.Equal(t, models.PhaseRegistration, tr.Phase())

	tr.ForceReady()
	assert.Equal(t, models.PhaseReady, tr.Phase())
	assert.ErrorIs(t, tr.SetReady("p1", false), ErrInvalidPhase)
}

func TestRemoveAfterStartOnlyDisconnects(t *testing.T) {
	tr := newTestTournament(t)
	fillAndStart(t, tr)
	require.NoError(t, tr.SetConnected("p4", nil))

	require.NoError(t, tr.RemovePlayer("p4"))
	p, ok := tr.Player("p4")
	require.True(t, ok)
	assert.False(t, p.IsConnected)
	assert.Equal(t, 4, tr.PlayerCount())
	assert.Equal(t, "p4", tr.Bracket().Semifinals[0].Player2ID)
}

func TestNextMatchScanOrder(t *testing.T) {
	tr := newTestTournament(t)
	assert.Nil(t, tr.NextMatch("p1"))

	fillAndStart(t, tr)
	assert.Equal(t, "R1M1", tr.NextMatch("p1").ID)
	assert.Equal(t, "R1M2", tr.NextMatch("p3").ID)

	require.NoError(t, tr.StartMatch("R1M1", 1))
	require.NoError(t, tr.CompleteMatch("R1M1", "p4", models.Score{Player2: 3}))
	assert.Nil(t, tr.NextMatch("p1"))
	assert.False(t, tr.IsEliminated("p1"), "third place is still ahead")
	assert.False(t, tr.IsEliminated("p4"))

	require.NoError(t, tr.StartMatch("R1M2", 2))
	require.NoError(t, tr.CompleteMatch("R1M2", "p2", models.Score{Player1: 3}))
	assert.Equal(t, "R2M1", tr.NextMatch("p4").ID)
	assert.Equal(t, "R0M1", tr.NextMatch("p1").ID)
}

func TestEliminatedWithoutThirdPlace(t *testing.T) {
	cfg := models.DefaultTournamentConfig()
	cfg.ThirdPlaceMatch = false
	tr, err := NewTournament("t-2", "No bronze", "p1", cfg, WithClock(fixedClock()))
	require.NoError(t, err)
	fillAndStart(t, tr)

	require.NoError(t, tr.StartMatch("R1M1", 1))
	require.NoError(t, tr.CompleteMatch("R1M1", "p1", models.Score{Player1: 3}))
	assert.True(t, tr.IsEliminated("p4"))
	assert.False(t, tr.IsEliminated("p1"))
	assert.False(t, tr.IsEliminated("p2"))
}

func TestForfeitMatch(t *testing.T) {
	tr := newTestTournament(t)
	fillAndStart(t, tr)

	require.NoError(t, tr.ForfeitMatch("R1M1", "p1"))
	m, _ := tr.Match("R1M1")
	assert.Equal(t, models.MatchCompleted, m.Status)
	assert.Equal(t, "p4", m.WinnerID)
	assert.True(t, m.Forfeit)
	assert.Equal(t, 3, m.Score.Player2)
	assert.NotNil(t, m.StartedAt)

	assert.ErrorIs(t, tr.ForfeitMatch("R1M1", "p1"), ErrMatchNotInProgress)
	assert.ErrorIs(t, tr.ForfeitMatch("R2M1", "p4"), ErrMatchNotSeated)
	assert.ErrorIs(t, tr.ForfeitMatch("R1M2", "p1"), ErrInvalidWinner)
}

func TestSnapshotIsDetached(t *testing.T) {
	tr := newTestTournament(t)
	fillAndStart(t, tr)
	conn := &nopConn{}
	require.NoError(t, tr.SetConnected("p1", conn))

	snap := tr.Snapshot()
	snap.Bracket.Semifinals[0].Player1ID = "mallory"
	assert.Equal(t, "p1", tr.Bracket().Semifinals[0].Player1ID)

	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Conn")
	assert.True(t, snap.Players[0].IsConnected)
	assert.Equal(t, "p1", snap.Players[0].ID)
}

func TestSnapshotDeterminism(t *testing.T) {
	run := func() []byte {
		tr := newTestTournament(t)
		fillAndStart(t, tr)
		require.NoError(t, tr.StartMatch("R1M1", 10))
		require.NoError(t, tr.CompleteMatch("R1M1", "p1", models.Score{Player1: 3, Player2: 2}))
		require.NoError(t, tr.AddSpectator("viewer"))
		raw, err := json.Marshal(tr.Snapshot())
		require.NoError(t, err)
		return raw
	}
	assert.JSONEq(t, string(run()), string(run()))
}

func TestSpectatorsDisallowed(t *testing.T) {
	cfg := models.DefaultTournamentConfig()
	cfg.AllowSpectators = false
	tr, err := NewTournament("t-3", "Closed", "p1", cfg)
	require.NoError(t, err)
	assert.ErrorIs(t, tr.AddSpectator("viewer"), ErrSpectatorsNotAllowed)
}

type nopConn struct{}

func (nopConn) Send([]byte) error { return nil }
func (nopConn) Close() error      { return nil }
