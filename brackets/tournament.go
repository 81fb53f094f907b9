package brackets

import (
	"fmt"
	"time"

	"github.com/Dosada05/pong-tournaments/models"
)

// Events are optional callbacks fired synchronously after each state change.
type Events struct {
	OnPhaseChange    func(t *Tournament, from, to models.TournamentPhase)
	OnPlayerJoined   func(t *Tournament, p *models.Player)
	OnPlayerLeft     func(t *Tournament, p *models.Player)
	OnPlayerReady    func(t *Tournament, p *models.Player)
	OnMatchStarted   func(t *Tournament, m *models.Match)
	OnMatchCompleted func(t *Tournament, m *models.Match)
	OnCompleted      func(t *Tournament, winnerID string)
}

// Tournament is the state machine of one four-player single-elimination tournament.
// It is not safe for concurrent use; the manager serializes every call.
type Tournament struct {
	ID        string
	Name      string
	CreatorID string
	Config    models.TournamentConfig

	phase        models.TournamentPhase
	players      map[string]*models.Player
	order        []string
	bracket      *models.Bracket
	currentRound int
	spectators   map[string]struct{}
	winnerID     string

	createdAt   time.Time
	startedAt   *time.Time
	completedAt *time.Time
	archivedAt  *time.Time

	generator BracketGenerator
	events    Events
	now       func() time.Time
}

type Option func(*Tournament)

// WithClock replaces time.Now, mostly for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tournament) { t.now = now }
}

func WithEvents(ev Events) Option {
	return func(t *Tournament) { t.events = ev }
}

func WithGenerator(g BracketGenerator) Option {
	return func(t *Tournament) { t.generator = g }
}

func NewTournament(id, name, creatorID string, cfg models.TournamentConfig, opts ...Option) (*Tournament, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Tournament{
		ID:         id,
		Name:       name,
		CreatorID:  creatorID,
		Config:     cfg,
		phase:      models.PhaseRegistration,
		players:    make(map[string]*models.Player),
		spectators: make(map[string]struct{}),
		generator:  NewSeededFourPlayerGenerator(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.createdAt = t.now()
	return t, nil
}

func (t *Tournament) Phase() models.TournamentPhase {
	return t.phase
}

func (t *Tournament) WinnerID() string {
	return t.winnerID
}

func (t *Tournament) CurrentRound() int {
	return t.currentRound
}

func (t *Tournament) ArchivedAt() *time.Time {
	return t.archivedAt
}

// Bracket returns the live bracket; nil before the tournament starts.
func (t *Tournament) Bracket() *models.Bracket {
	return t.bracket
}

func (t *Tournament) PlayerCount() int {
	return len(t.players)
}

func (t *Tournament) Player(id string) (*models.Player, bool) {
	p, ok := t.players[id]
	return p, ok
}

// Players returns roster entries in join order.
func (t *Tournament) Players() []*models.Player {
	out := make([]*models.Player, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.players[id])
	}
	return out
}

func (t *Tournament) readyCount() int {
	n := 0
	for _, p := range t.players {
		if p.IsReady {
			n++
		}
	}
	return n
}

func (t *Tournament) quorum() bool {
	return len(t.players) >= t.Config.MinPlayers && t.readyCount() == len(t.players)
}

func (t *Tournament) setPhase(to models.TournamentPhase) {
	from := t.phase
	if from == to {
		return
	}
	t.phase = to
	if t.events.OnPhaseChange != nil {
		t.events.OnPhaseChange(t, from, to)
	}
}

func (t *Tournament) checkReady() {
	if t.phase == models.PhaseRegistration && t.quorum() {
		t.setPhase(models.PhaseReady)
	}
}

// AddPlayer registers p. Valid only during registration.
func (t *Tournament) AddPlayer(p models.Player) error {
	if t.phase != models.PhaseRegistration {
		return fmt.Errorf("%w: cannot join while %s", ErrInvalidPhase, t.phase)
	}
	if _, ok := t.players[p.ID]; ok {
		return ErrAlreadyRegistered
	}
	if len(t.players) >= t.Config.MaxPlayers {
		return ErrTournamentFull
	}
	p.JoinedAt = t.now()
	p.HasLeft = false
	player := &p
	t.players[p.ID] = player
	t.order = append(t.order, p.ID)
	if t.events.OnPlayerJoined != nil {
		t.events.OnPlayerJoined(t, player)
	}
	t.checkReady()
	return nil
}

// RemovePlayer drops the player during registration. Once the bracket exists the
// entry stays and is only flagged disconnected.
func (t *Tournament) RemovePlayer(playerID string) error {
	p, ok := t.players[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	switch t.phase {
	case models.PhaseRegistration:
		delete(t.players, playerID)
		for i, id := range t.order {
			if id == playerID {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
		if t.events.OnPlayerLeft != nil {
			t.events.OnPlayerLeft(t, p)
		}
		t.checkReady()
	default:
		p.IsConnected = false
		p.Conn = nil
		if t.events.OnPlayerLeft != nil {
			t.events.OnPlayerLeft(t, p)
		}
	}
	return nil
}

// SetReady toggles readiness during registration and re-checks the auto transition.
func (t *Tournament) SetReady(playerID string, ready bool) error {
	if t.phase != models.PhaseRegistration {
		return fmt.Errorf("%w: ready is only accepted during registration", ErrInvalidPhase)
	}
	p, ok := t.players[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	p.IsReady = ready
	if ready && t.events.OnPlayerReady != nil {
		t.events.OnPlayerReady(t, p)
	}
	t.checkReady()
	return nil
}

// ForceReady marks every registered player ready, as the registration timeout does.
func (t *Tournament) ForceReady() {
	if t.phase != models.PhaseRegistration {
		return
	}
	for _, id := range t.order {
		t.players[id].IsReady = true
	}
	t.checkReady()
}

// SetConnected updates the live connection of a roster entry.
func (t *Tournament) SetConnected(playerID string, conn models.Connection) error {
	p, ok := t.players[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	p.Conn = conn
	p.IsConnected = conn != nil
	return nil
}

// MarkLeft flags a player who explicitly abandoned the tournament after it started.
func (t *Tournament) MarkLeft(playerID string) error {
	p, ok := t.players[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	p.HasLeft = true
	p.IsConnected = false
	p.Conn = nil
	return nil
}

// Start moves READY to IN_PROGRESS and generates the bracket.
func (t *Tournament) Start() error {
	if t.phase != models.PhaseReady {
		return fmt.Errorf("%w: start requires %s, tournament is %s", ErrInvalidPhase, models.PhaseReady, t.phase)
	}
	if !t.quorum() {
		return ErrQuorumNotMet
	}
	if t.bracket != nil {
		return ErrBracketExists
	}
	now := t.now()
	b, err := t.generator.GenerateBracket(GenerateBracketParams{
		Players:         t.Players(),
		ThirdPlaceMatch: t.Config.ThirdPlaceMatch,
		CreatedAt:       now,
	})
	if err != nil {
		return fmt.Errorf("failed to generate bracket for tournament %s: %w", t.ID, err)
	}
	t.bracket = b
	t.currentRound = models.RoundSemifinal
	t.startedAt = &now
	t.setPhase(models.PhaseInProgress)
	return nil
}

// Match looks a bracket match up by id.
func (t *Tournament) Match(matchID string) (*models.Match, bool) {
	for _, m := range t.bracket.Matches() {
		if m.ID == matchID {
			return m, true
		}
	}
	return nil, false
}

// StartMatch moves a pending, fully seated match to IN_PROGRESS.
func (t *Tournament) StartMatch(matchID string, gameID int) error {
	m, ok := t.Match(matchID)
	if !ok {
		return ErrMatchNotFound
	}
	if m.Status != models.MatchPending {
		return ErrMatchNotPending
	}
	if !m.Seated() {
		return ErrMatchNotSeated
	}
	now := t.now()
	m.Status = models.MatchInProgress
	m.StartedAt = &now
	m.GameID = gameID
	if t.events.OnMatchStarted != nil {
		t.events.OnMatchStarted(t, m)
	}
	return nil
}

// CompleteMatch records the result of an in-progress match and progresses the bracket.
func (t *Tournament) CompleteMatch(matchID, winnerID string, score models.Score) error {
	m, ok := t.Match(matchID)
	if !ok {
		return ErrMatchNotFound
	}
	if m.Status != models.MatchInProgress {
		return ErrMatchNotInProgress
	}
	return t.finish(m, winnerID, score, false)
}

// ForfeitMatch resolves a pending or in-progress match against loserID.
func (t *Tournament) ForfeitMatch(matchID, loserID string) error {
	m, ok := t.Match(matchID)
	if !ok {
		return ErrMatchNotFound
	}
	if !m.IsActive() {
		return ErrMatchNotInProgress
	}
	if !m.Seated() {
		return ErrMatchNotSeated
	}
	winnerID := m.Opponent(loserID)
	if winnerID == "" {
		return ErrInvalidWinner
	}
	score := models.Score{}
	if m.Side(winnerID) == 1 {
		score.Player1 = 3
	} else {
		score.Player2 = 3
	}
	if m.StartedAt == nil {
		now := t.now()
		m.StartedAt = &now
	}
	return t.finish(m, winnerID, score, true)
}

func (t *Tournament) finish(m *models.Match, winnerID string, score models.Score, forfeit bool) error {
	if !m.HasPlayer(winnerID) {
		return ErrInvalidWinner
	}
	now := t.now()
	m.Status = models.MatchCompleted
	m.WinnerID = winnerID
	m.Score = &score
	m.Forfeit = forfeit
	m.CompletedAt = &now
	if t.events.OnMatchCompleted != nil {
		t.events.OnMatchCompleted(t, m)
	}
	t.progress(m)
	return nil
}

// progress seats the final and the third-place match once both semifinals are done,
// and closes the tournament when the final is decided.
func (t *Tournament) progress(m *models.Match) {
	b := t.bracket
	switch m.Round {
	case models.RoundSemifinal:
		sf1, sf2 := b.Semifinals[0], b.Semifinals[1]
		if sf1.Status != models.MatchCompleted || sf2.Status != models.MatchCompleted {
			return
		}
		b.Final.Player1ID = sf1.WinnerID
		b.Final.Player2ID = sf2.WinnerID
		if b.ThirdPlace != nil {
			b.ThirdPlace.Player1ID = sf1.Opponent(sf1.WinnerID)
			b.ThirdPlace.Player2ID = sf2.Opponent(sf2.WinnerID)
		}
		t.currentRound = models.RoundFinal
	case models.RoundFinal:
		if t.phase != models.PhaseInProgress {
			return
		}
		now := t.now()
		t.winnerID = m.WinnerID
		t.completedAt = &now
		t.setPhase(models.PhaseCompleted)
		if t.events.OnCompleted != nil {
			t.events.OnCompleted(t, t.winnerID)
		}
	}
}

// NextMatch scans semifinals, final, then third place and returns the first unfinished
// match seating playerID. Nil when the tournament is not running or the player is out.
func (t *Tournament) NextMatch(playerID string) *models.Match {
	if t.phase != models.PhaseInProgress && t.phase != models.PhaseCompleted {
		return nil
	}
	for _, m := range t.bracket.Matches() {
		if m.IsActive() && m.HasPlayer(playerID) {
			return m
		}
	}
	return nil
}

// IsEliminated reports whether a started tournament holds no unfinished match for the player,
// counting the slots that open once the other semifinal is decided.
func (t *Tournament) IsEliminated(playerID string) bool {
	if t.bracket == nil {
		return false
	}
	if t.NextMatch(playerID) != nil {
		return false
	}
	if t.bracket.Final.Seated() {
		return true
	}
	// Полуфинал сыгран, второй ещё нет: игрока ждёт финал или матч за третье место.
	for _, sf := range t.bracket.Semifinals {
		if sf.Status != models.MatchCompleted || !sf.HasPlayer(playerID) {
			continue
		}
		return sf.WinnerID != playerID && t.bracket.ThirdPlace == nil
	}
	return true
}

// Archive moves a completed tournament to ARCHIVED.
func (t *Tournament) Archive() error {
	if t.phase != models.PhaseCompleted {
		return fmt.Errorf("%w: only completed tournaments can be archived", ErrInvalidPhase)
	}
	now := t.now()
	t.archivedAt = &now
	t.setPhase(models.PhaseArchived)
	return nil
}

func (t *Tournament) AddSpectator(id string) error {
	if !t.Config.AllowSpectators {
		return ErrSpectatorsNotAllowed
	}
	t.spectators[id] = struct{}{}
	return nil
}

func (t *Tournament) RemoveSpectator(id string) {
	delete(t.spectators, id)
}

// Snapshot returns a deep copy safe to hand to clients. Connection handles are never included.
func (t *Tournament) Snapshot() *models.TournamentSnapshot {
	s := &models.TournamentSnapshot{
		ID:           t.ID,
		Name:         t.Name,
		Phase:        t.phase,
		Config:       t.Config,
		CreatorID:    t.CreatorID,
		Players:      make([]models.PlayerSnapshot, 0, len(t.order)),
		CurrentRound: t.currentRound,
		Spectators:   len(t.spectators),
		WinnerID:     t.winnerID,
		CreatedAt:    t.createdAt,
		StartedAt:    copyTime(t.startedAt),
		CompletedAt:  copyTime(t.completedAt),
		ArchivedAt:   copyTime(t.archivedAt),
	}
	for _, id := range t.order {
		p := t.players[id]
		s.Players = append(s.Players, models.PlayerSnapshot{
			ID:          p.ID,
			DisplayName: p.Name(),
			Avatar:      p.Avatar,
			Skill:       p.Skill,
			IsReady:     p.IsReady,
			IsConnected: p.IsConnected,
			HasLeft:     p.HasLeft,
		})
	}
	if t.bracket != nil {
		s.Bracket = &models.Bracket{
			Semifinals: [2]*models.Match{copyMatch(t.bracket.Semifinals[0]), copyMatch(t.bracket.Semifinals[1])},
			Final:      copyMatch(t.bracket.Final),
			ThirdPlace: copyMatch(t.bracket.ThirdPlace),
		}
	}
	return s
}

func copyMatch(m *models.Match) *models.Match {
	if m == nil {
		return nil
	}
	c := *m
	if m.Score != nil {
		score := *m.Score
		c.Score = &score
	}
	c.StartedAt = copyTime(m.StartedAt)
	c.CompletedAt = copyTime(m.CompletedAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
