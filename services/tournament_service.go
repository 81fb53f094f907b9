package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Dosada05/pong-tournaments/brackets"
	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/rooms"
)

const (
	maxTournamentNameLength = 64
	maxChatMessageLength    = 500
)

// GameHost allocates game ids and ends hosted rooms. *rooms.Registry implements it.
type GameHost interface {
	AllocateID() int
	Cancel(id int, reason string)
}

// Archiver exports the final snapshot of a finished tournament and returns its location.
type Archiver interface {
	ArchiveTournament(ctx context.Context, snapshot *models.TournamentSnapshot) (string, error)
}

type TournamentSettings struct {
	RegistrationTimeout time.Duration
	MatchTimeout        time.Duration
	ArchiveRetention    time.Duration
	ArchiveTimeout      time.Duration
}

func DefaultTournamentSettings() TournamentSettings {
	def := models.DefaultTournamentConfig()
	return TournamentSettings{
		RegistrationTimeout: def.RegistrationTimeout,
		MatchTimeout:        def.MatchTimeout,
		ArchiveRetention:    time.Hour,
		ArchiveTimeout:      30 * time.Second,
	}
}

type CreateTournamentInput struct {
	Name            string `json:"name"`
	IsRanked        bool   `json:"is_ranked"`
	AllowSpectators *bool  `json:"allow_spectators,omitempty"`
	ThirdPlaceMatch *bool  `json:"third_place_match,omitempty"`
}

// MatchAssignment answers a request for the next match. Status is one of
// match:assigned, match:pending or match:none; Assignment is set only for the first.
type MatchAssignment struct {
	Status     string
	Assignment *models.MatchAssignedMessage
}

type TournamentService interface {
	CreateTournament(creatorID string, input CreateTournamentInput) (*models.TournamentSnapshot, error)
	GetTournament(id string) (*models.TournamentSnapshot, error)
	ListTournaments() []*models.TournamentSnapshot

	Join(tournamentID string, player models.Player, conn models.Connection) (*models.TournamentSnapshot, error)
	Reconnect(tournamentID, playerID string, conn models.Connection) (*models.TournamentSnapshot, error)
	Spectate(tournamentID, spectatorID string, conn models.Connection) (*models.TournamentSnapshot, error)
	Disconnect(tournamentID, playerID string, conn models.Connection)
	RemoveSpectator(tournamentID, spectatorID string)

	SetReady(tournamentID, playerID string) error
	Start(tournamentID, requesterID string) error
	Leave(tournamentID, playerID string) error
	Chat(tournamentID, playerID, text string) error

	RequestMatch(tournamentID, playerID string) (*MatchAssignment, error)
	CompleteGame(result models.MatchResult) error
	RoomOptions(gameID int) (rooms.Options, bool)

	SweepArchived(now time.Time) int
	Shutdown()
}

// tournamentService serializes every tournament operation behind one mutex.
// Lock order: tournament service, then the rooms registry, then a room.
type tournamentService struct {
	mu       sync.Mutex
	reg      *Registry
	games    GameHost
	archiver Archiver
	reporter rooms.Reporter
	settings TournamentSettings
	logger   *slog.Logger
	now      func() time.Time

	closed  bool
	uploads sync.WaitGroup
}

func NewTournamentService(
	reg *Registry,
	games GameHost,
	archiver Archiver,
	reporter rooms.Reporter,
	settings TournamentSettings,
	logger *slog.Logger,
) TournamentService {
	if reg == nil {
		reg = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultTournamentSettings()
	if settings.RegistrationTimeout <= 0 {
		settings.RegistrationTimeout = def.RegistrationTimeout
	}
	if settings.MatchTimeout <= 0 {
		settings.MatchTimeout = def.MatchTimeout
	}
	if settings.ArchiveRetention <= 0 {
		settings.ArchiveRetention = def.ArchiveRetention
	}
	if settings.ArchiveTimeout <= 0 {
		settings.ArchiveTimeout = def.ArchiveTimeout
	}
	return &tournamentService{
		reg:      reg,
		games:    games,
		archiver: archiver,
		reporter: reporter,
		settings: settings,
		logger:   logger.With(slog.String("component", "tournaments")),
		now:      time.Now,
	}
}

func (s *tournamentService) events() brackets.Events {
	return brackets.Events{
		OnPhaseChange: func(t *brackets.Tournament, from, to models.TournamentPhase) {
			s.logger.Info("tournament phase changed",
				slog.String("tournament_id", t.ID),
				slog.String("from", string(from)),
				slog.String("to", string(to)))
		},
		OnPlayerJoined: func(t *brackets.Tournament, p *models.Player) {
			s.logger.Info("player joined tournament",
				slog.String("tournament_id", t.ID),
				slog.String("player_id", p.ID),
				slog.Int("players", t.PlayerCount()))
		},
		OnPlayerLeft: func(t *brackets.Tournament, p *models.Player) {
			s.logger.Info("player left tournament", slog.String("tournament_id", t.ID), slog.String("player_id", p.ID))
		},
		OnPlayerReady: func(t *brackets.Tournament, p *models.Player) {
			s.broadcastLocked(t, models.PlayerStatusMessage{Type: models.MsgPlayerStatus, PlayerID: p.ID, Status: models.PlayerReadyStatus}, "")
		},
		OnMatchStarted: func(t *brackets.Tournament, m *models.Match) {
			s.logger.Info("match started",
				slog.String("tournament_id", t.ID),
				slog.String("match_id", m.ID),
				slog.Int("game_id", m.GameID))
		},
		OnMatchCompleted: func(t *brackets.Tournament, m *models.Match) {
			s.logger.Info("match completed",
				slog.String("tournament_id", t.ID),
				slog.String("match_id", m.ID),
				slog.String("winner", m.WinnerID),
				slog.Bool("forfeit", m.Forfeit))
		},
		OnCompleted: func(t *brackets.Tournament, winnerID string) {
			s.logger.Info("tournament completed", slog.String("tournament_id", t.ID), slog.String("winner", winnerID))
		},
	}
}

func (s *tournamentService) CreateTournament(creatorID string, input CreateTournamentInput) (*models.TournamentSnapshot, error) {
	if creatorID == "" {
		return nil, fmt.Errorf("%w: creator is required", ErrValidationFailed)
	}
	name := strings.TrimSpace(input.Name)
	if n := utf8.RuneCountInString(name); n == 0 || n > maxTournamentNameLength {
		return nil, ErrTournamentNameLength
	}

	cfg := models.DefaultTournamentConfig()
	cfg.RegistrationTimeout = s.settings.RegistrationTimeout
	cfg.MatchTimeout = s.settings.MatchTimeout
	cfg.IsRanked = input.IsRanked
	if input.AllowSpectators != nil {
		cfg.AllowSpectators = *input.AllowSpectators
	}
	if input.ThirdPlaceMatch != nil {
		cfg.ThirdPlaceMatch = *input.ThirdPlaceMatch
	}

	id := uuid.NewString()
	t, err := brackets.NewTournament(id, name, creatorID, cfg,
		brackets.WithClock(s.now),
		brackets.WithEvents(s.events()),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.reg.addTournament(t)
	e.regTimer = time.AfterFunc(cfg.RegistrationTimeout, func() { s.registrationExpired(id) })

	s.logger.Info("tournament created",
		slog.String("tournament_id", id),
		slog.String("name", name),
		slog.String("creator_id", creatorID))
	return t.Snapshot(), nil
}

func (s *tournamentService) GetTournament(id string) (*models.TournamentSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.reg.tournament(id)
	if !ok {
		return nil, ErrTournamentNotFound
	}
	return e.t.Snapshot(), nil
}

func (s *tournamentService) ListTournaments() []*models.TournamentSnapshot {
	s.mu.Lock()
	out := make([]*models.TournamentSnapshot, 0, s.reg.Len())
	for _, e := range s.reg.tournaments {
		out = append(out, e.t.Snapshot())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// registrationExpired force-starts a tournament that gathered a quorum and abandons the rest.
func (s *tournamentService) registrationExpired(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	e, ok := s.reg.tournament(id)
	if !ok {
		return
	}
	e.regTimer = nil
	t := e.t

	switch t.Phase() {
	case models.PhaseRegistration:
		if t.PlayerCount() < t.Config.MinPlayers {
			s.logger.Warn("registration timed out without quorum, abandoning tournament",
				slog.String("tournament_id", id),
				slog.Int("players", t.PlayerCount()),
				slog.Int("min_players", t.Config.MinPlayers))
			s.abandonLocked(e, "registration timed out")
			return
		}
		t.ForceReady()
		fallthrough
	case models.PhaseReady:
		if err := s.startLocked(e); err != nil {
			s.logger.Error("failed to auto-start tournament", slog.String("tournament_id", id), slog.Any("error", err))
		}
	}
}

func (s *tournamentService) Join(tournamentID string, player models.Player, conn models.Connection) (*models.TournamentSnapshot, error) {
	if player.ID == "" {
		return nil, fmt.Errorf("%w: player identity is required", ErrValidationFailed)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.reg.tournament(tournamentID)
	if !ok {
		return nil, ErrTournamentNotFound
	}
	_, reserved := s.reg.TournamentOf(player.ID)
	if err := s.reg.reservePlayer(player.ID, tournamentID); err != nil {
		return nil, err
	}
	player.Conn = nil
	player.IsReady = false
	if err := e.t.AddPlayer(player); err != nil {
		if !reserved {
			s.reg.releasePlayer(player.ID, tournamentID)
		}
		return nil, err
	}
	_ = e.t.SetConnected(player.ID, conn)

	s.broadcastLocked(e.t, s.stateMessage(e.t), player.ID)
	return e.t.Snapshot(), nil
}

// Reconnect rebinds a live connection to a roster entry that still has matches to play.
func (s *tournamentService) Reconnect(tournamentID, playerID string, conn models.Connection) (*models.TournamentSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.reg.tournament(tournamentID)
	if !ok {
		return nil, ErrTournamentNotFound
	}
	t := e.t
	p, ok := t.Player(playerID)
	if !ok {
		return nil, brackets.ErrPlayerNotFound
	}
	if p.HasLeft {
		return nil, ErrPlayerHasLeft
	}
	if t.Bracket() != nil && t.IsEliminated(playerID) {
		return nil, ErrPlayerEliminated
	}

	old := p.Conn
	_ = t.SetConnected(playerID, conn)
	if old != nil && old != conn {
		_ = old.Close()
	}
	s.logger.Info("player reconnected", slog.String("tournament_id", tournamentID), slog.String("player_id", playerID))

	s.broadcastLocked(t, models.PlayerStatusMessage{Type: models.MsgPlayerStatus, PlayerID: playerID, Status: models.PlayerConnected}, playerID)
	s.broadcastLocked(t, s.stateMessage(t), playerID)
	return t.Snapshot(), nil
}

// Spectate registers a watcher. Spectators get the snapshot returned here and nothing else.
func (s *tournamentService) Spectate(tournamentID, spectatorID string, conn models.Connection) (*models.TournamentSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.reg.tournament(tournamentID)
	if !ok {
		return nil, ErrTournamentNotFound
	}
	if err := e.t.AddSpectator(spectatorID); err != nil {
		return nil, err
	}
	e.spectatorConns[spectatorID] = conn
	return e.t.Snapshot(), nil
}

func (s *tournamentService) RemoveSpectator(tournamentID, spectatorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.reg.tournament(tournamentID); ok {
		e.t.RemoveSpectator(spectatorID)
		delete(e.spectatorConns, spectatorID)
	}
}

// Disconnect handles a closed socket. During registration the player is dropped,
// afterwards the roster entry is only flagged as disconnected.
func (s *tournamentService) Disconnect(tournamentID, playerID string, conn models.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.reg.tournament(tournamentID)
	if !ok {
		return
	}
	t := e.t
	p, ok := t.Player(playerID)
	if !ok || p.Conn != conn {
		// сокет уже заменён переподключением
		return
	}

	if t.Phase() == models.PhaseRegistration {
		_ = t.RemovePlayer(playerID)
		s.reg.releasePlayer(playerID, tournamentID)
		if t.PlayerCount() == 0 {
			s.abandonLocked(e, "all players left")
			return
		}
	} else {
		_ = t.SetConnected(playerID, nil)
	}

	s.broadcastLocked(t, models.PlayerStatusMessage{Type: models.MsgPlayerStatus, PlayerID: playerID, Status: models.PlayerDisconnected}, "")
	s.broadcastLocked(t, s.stateMessage(t), "")
}

func (s *tournamentService) SetReady(tournamentID, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.reg.tournament(tournamentID)
	if !ok {
		return ErrTournamentNotFound
	}
	if err := e.t.SetReady(playerID, true); err != nil {
		return err
	}
	s.broadcastLocked(e.t, s.stateMessage(e.t), "")
	return nil
}

func (s *tournamentService) Start(tournamentID, requesterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.reg.tournament(tournamentID)
	if !ok {
		return ErrTournamentNotFound
	}
	if requesterID != e.t.CreatorID {
		return fmt.Errorf("%w: only the creator can start the tournament", ErrForbiddenOperation)
	}
	return s.startLocked(e)
}

func (s *tournamentService) startLocked(e *tournamentEntry) error {
	t := e.t
	if err := t.Start(); err != nil {
		return err
	}
	if e.regTimer != nil {
		e.regTimer.Stop()
		e.regTimer = nil
	}
	s.settleLeftLocked(e)
	s.broadcastLocked(t, models.SnapshotMessage{Type: models.MsgTournamentStarted, Snapshot: t.Snapshot()}, "")
	s.finishIfCompletedLocked(e)
	return nil
}

// Leave is an explicit departure. Once the bracket exists every match still seating the
// player is forfeited, including the ones its placement opens downstream.
func (s *tournamentService) Leave(tournamentID, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.reg.tournament(tournamentID)
	if !ok {
		return ErrTournamentNotFound
	}
	t := e.t
	if _, ok := t.Player(playerID); !ok {
		return brackets.ErrPlayerNotFound
	}
	s.reg.releasePlayer(playerID, tournamentID)

	if t.Phase() == models.PhaseRegistration {
		_ = t.RemovePlayer(playerID)
		if t.PlayerCount() == 0 {
			s.abandonLocked(e, "all players left")
			return nil
		}
	} else {
		_ = t.MarkLeft(playerID)
		if t.Bracket() != nil {
			s.forfeitCascadeLocked(e, playerID)
			s.settleLeftLocked(e)
		}
	}

	s.broadcastLocked(t, models.PlayerStatusMessage{Type: models.MsgPlayerStatus, PlayerID: playerID, Status: models.PlayerLeft}, "")
	s.broadcastLocked(t, s.stateMessage(t), "")
	s.finishIfCompletedLocked(e)
	return nil
}

func (s *tournamentService) Chat(tournamentID, playerID, text string) error {
	text = strings.TrimSpace(text)
	if n := utf8.RuneCountInString(text); n == 0 || n > maxChatMessageLength {
		return ErrChatMessageLength
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.reg.tournament(tournamentID)
	if !ok {
		return ErrTournamentNotFound
	}
	p, ok := e.t.Player(playerID)
	if !ok {
		return brackets.ErrPlayerNotFound
	}
	s.broadcastLocked(e.t, models.ChatMessage{
		Type:        models.MsgChat,
		PlayerID:    p.ID,
		DisplayName: p.Name(),
		Message:     text,
		Timestamp:   s.now().UTC().Format(time.RFC3339),
	}, "")
	return nil
}

// SweepArchived deletes archived tournaments whose retention window has passed.
func (s *tournamentService) SweepArchived(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.reg.tournaments {
		archivedAt := e.t.ArchivedAt()
		if e.t.Phase() != models.PhaseArchived || archivedAt == nil {
			continue
		}
		if now.Sub(*archivedAt) < s.settings.ArchiveRetention {
			continue
		}
		s.closeConnsLocked(e)
		s.reg.removeTournament(id)
		removed++
	}
	if removed > 0 {
		s.logger.Info("archived tournaments swept", slog.Int("removed", removed), slog.Int("remaining", s.reg.Len()))
	}
	return removed
}

// Shutdown stops every timer and waits for pending archive uploads.
func (s *tournamentService) Shutdown() {
	s.mu.Lock()
	s.closed = true
	for _, e := range s.reg.tournaments {
		s.stopTimersLocked(e)
	}
	s.mu.Unlock()

	s.uploads.Wait()
}

// abandonLocked deletes a tournament that never started.
func (s *tournamentService) abandonLocked(e *tournamentEntry, reason string) {
	s.stopTimersLocked(e)
	s.broadcastLocked(e.t, models.ErrorMessage{Type: models.MsgError, Message: "tournament abandoned: " + reason}, "")
	s.closeConnsLocked(e)
	s.reg.removeTournament(e.t.ID)
	s.logger.Info("tournament abandoned", slog.String("tournament_id", e.t.ID), slog.String("reason", reason))
}

func (s *tournamentService) stopTimersLocked(e *tournamentEntry) {
	if e.regTimer != nil {
		e.regTimer.Stop()
		e.regTimer = nil
	}
	for id, timer := range e.matchTimers {
		timer.Stop()
		delete(e.matchTimers, id)
	}
}

func (s *tournamentService) closeConnsLocked(e *tournamentEntry) {
	for _, p := range e.t.Players() {
		if p.Conn != nil {
			_ = p.Conn.Close()
			_ = e.t.SetConnected(p.ID, nil)
		}
	}
	for id, c := range e.spectatorConns {
		_ = c.Close()
		delete(e.spectatorConns, id)
	}
}

func (s *tournamentService) stateMessage(t *brackets.Tournament) models.SnapshotMessage {
	return models.SnapshotMessage{Type: models.MsgTournamentState, Snapshot: t.Snapshot()}
}

// broadcastLocked serializes v once and sends it to every connected player except skipID.
func (s *tournamentService) broadcastLocked(t *brackets.Tournament, v any, skipID string) {
	data := models.Encode(v)
	for _, p := range t.Players() {
		if p.Conn == nil || p.ID == skipID {
			continue
		}
		if err := p.Conn.Send(data); err != nil {
			s.logger.Debug("skipping unreachable player",
				slog.String("tournament_id", t.ID),
				slog.String("player_id", p.ID),
				slog.Any("error", err))
		}
	}
}
