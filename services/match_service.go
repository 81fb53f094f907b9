package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/pong-tournaments/brackets"
	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/rooms"
)

const tournamentGameMode = "tournament"

// RequestMatch hands the player its next bracket match. The first request for a seated
// pending match allocates the game id, starts the match and notifies the opponent too.
func (s *tournamentService) RequestMatch(tournamentID, playerID string) (*MatchAssignment, error) {
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
	// Архивный турнир больше не выдаёт матчей, в том числе несыгранный матч за третье место
	if t.Phase() == models.PhaseArchived {
		return &MatchAssignment{Status: models.MsgMatchNone}, nil
	}
	if phase := t.Phase(); phase != models.PhaseInProgress && phase != models.PhaseCompleted {
		return nil, fmt.Errorf("%w: tournament is %s", brackets.ErrInvalidPhase, phase)
	}

	m := t.NextMatch(playerID)
	if m == nil {
		if t.IsEliminated(playerID) {
			return &MatchAssignment{Status: models.MsgMatchNone}, nil
		}
		return &MatchAssignment{Status: models.MsgMatchPending}, nil
	}
	if !m.Seated() {
		return &MatchAssignment{Status: models.MsgMatchPending}, nil
	}

	if m.Status == models.MatchPending {
		gameID := s.games.AllocateID()
		if err := t.StartMatch(m.ID, gameID); err != nil {
			return nil, err
		}
		s.reg.bindGame(gameID, gameRef{TournamentID: tournamentID, MatchID: m.ID})
		s.startMatchTimerLocked(e, m.ID, gameID)

		if opp, ok := t.Player(m.Opponent(playerID)); ok && opp.Conn != nil {
			_ = opp.Conn.Send(models.Encode(s.assignmentLocked(t, m, opp.ID)))
		}
		s.broadcastLocked(t, s.stateMessage(t), "")
	}

	return &MatchAssignment{Status: models.MsgMatchAssigned, Assignment: s.assignmentLocked(t, m, playerID)}, nil
}

func (s *tournamentService) assignmentLocked(t *brackets.Tournament, m *models.Match, playerID string) *models.MatchAssignedMessage {
	msg := &models.MatchAssignedMessage{
		Type:         models.MsgMatchAssigned,
		TournamentID: t.ID,
		MatchID:      m.ID,
		Round:        m.Round,
		GameID:       m.GameID,
		GameMode:     tournamentGameMode,
		Side:         m.Side(playerID),
	}
	if opp, ok := t.Player(m.Opponent(playerID)); ok {
		msg.Opponent = models.OpponentInfo{ID: opp.ID, DisplayName: opp.Name(), Avatar: opp.Avatar}
	}
	return msg
}

// RoomOptions resolves a tournament game id into room options for the rooms registry.
func (s *tournamentService) RoomOptions(gameID int) (rooms.Options, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, ok := s.reg.game(gameID)
	if !ok {
		return rooms.Options{}, false
	}
	e, ok := s.reg.tournament(ref.TournamentID)
	if !ok {
		return rooms.Options{}, false
	}
	m, ok := e.t.Match(ref.MatchID)
	if !ok || m.Status != models.MatchInProgress || m.GameID != gameID {
		return rooms.Options{}, false
	}
	p1, _ := e.t.Player(m.Player1ID)
	p2, _ := e.t.Player(m.Player2ID)

	return rooms.Options{
		ID:           gameID,
		Kind:         rooms.KindTournament,
		Player1:      rooms.Participant{ID: m.Player1ID, DisplayName: p1.Name()},
		Player2:      rooms.Participant{ID: m.Player2ID, DisplayName: p2.Name()},
		TournamentID: ref.TournamentID,
		MatchID:      m.ID,
		FinalMatch:   m.Round == models.RoundFinal,
		OnComplete: func(result models.MatchResult) {
			if err := s.CompleteGame(result); err != nil {
				s.logger.Warn("room result not applied to bracket",
					slog.Int("game_id", result.GameID),
					slog.Any("error", err))
			}
		},
	}, true
}

// CompleteGame applies a finished room's result to its bracket match.
func (s *tournamentService) CompleteGame(result models.MatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, ok := s.reg.game(result.GameID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrGameNotFound, result.GameID)
	}
	e, ok := s.reg.tournament(ref.TournamentID)
	if !ok {
		s.reg.releaseGame(result.GameID)
		return ErrTournamentNotFound
	}
	t := e.t
	score := models.Score{Player1: result.Score1, Player2: result.Score2}
	if err := t.CompleteMatch(ref.MatchID, result.WinnerID, score); err != nil {
		return err
	}
	if m, ok := t.Match(ref.MatchID); ok && result.Forfeit {
		m.Forfeit = true
	}
	s.reg.releaseGame(result.GameID)
	s.stopMatchTimerLocked(e, ref.MatchID)
	if result.LeaverID != "" {
		// Выход из комнаты турнирного матча равен выходу из турнира
		if p, ok := t.Player(result.LeaverID); ok && !p.HasLeft {
			s.reg.releasePlayer(p.ID, t.ID)
			_ = t.MarkLeft(p.ID)
			s.forfeitCascadeLocked(e, p.ID)
			s.broadcastLocked(t, models.PlayerStatusMessage{Type: models.MsgPlayerStatus, PlayerID: p.ID, Status: models.PlayerLeft}, "")
		}
	}
	s.settleLeftLocked(e)

	s.broadcastLocked(t, s.stateMessage(t), "")
	s.finishIfCompletedLocked(e)
	return nil
}

func (s *tournamentService) startMatchTimerLocked(e *tournamentEntry, matchID string, gameID int) {
	tournamentID := e.t.ID
	e.matchTimers[matchID] = time.AfterFunc(e.t.Config.MatchTimeout, func() {
		s.matchTimedOut(tournamentID, matchID, gameID)
	})
}

func (s *tournamentService) stopMatchTimerLocked(e *tournamentEntry, matchID string) {
	if timer, ok := e.matchTimers[matchID]; ok {
		timer.Stop()
		delete(e.matchTimers, matchID)
	}
}

// matchTimedOut flags an overdue match. The room keeps running and decides the result.
func (s *tournamentService) matchTimedOut(tournamentID, matchID string, gameID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	e, ok := s.reg.tournament(tournamentID)
	if !ok {
		return
	}
	delete(e.matchTimers, matchID)
	m, ok := e.t.Match(matchID)
	if !ok || m.Status != models.MatchInProgress || m.GameID != gameID {
		return
	}
	m.TimedOut = true
	s.logger.Warn("match exceeded its timeout",
		slog.String("tournament_id", tournamentID),
		slog.String("match_id", matchID),
		slog.Int("game_id", gameID),
		slog.Duration("timeout", e.t.Config.MatchTimeout))
	s.broadcastLocked(e.t, s.stateMessage(e.t), "")
}

// forfeitCascadeLocked forfeits every seated match the player still holds. Forfeiting a
// semifinal may seat the player in the third-place match, which is forfeited in turn.
func (s *tournamentService) forfeitCascadeLocked(e *tournamentEntry, playerID string) {
	for {
		m := e.t.NextMatch(playerID)
		if m == nil || !m.Seated() {
			return
		}
		if err := s.forfeitLocked(e, m, playerID); err != nil {
			s.logger.Error("failed to forfeit match",
				slog.String("tournament_id", e.t.ID),
				slog.String("match_id", m.ID),
				slog.Any("error", err))
			return
		}
	}
}

// settleLeftLocked forfeits seated matches of players who already left, until nothing changes.
func (s *tournamentService) settleLeftLocked(e *tournamentEntry) {
	t := e.t
	for changed := true; changed; {
		changed = false
		for _, m := range t.Bracket().Matches() {
			if !m.IsActive() || !m.Seated() {
				continue
			}
			loser := ""
			if p, ok := t.Player(m.Player1ID); ok && p.HasLeft {
				loser = p.ID
			} else if p, ok := t.Player(m.Player2ID); ok && p.HasLeft {
				loser = p.ID
			}
			if loser == "" {
				continue
			}
			if err := s.forfeitLocked(e, m, loser); err == nil {
				changed = true
			}
		}
	}
}

func (s *tournamentService) forfeitLocked(e *tournamentEntry, m *models.Match, loserID string) error {
	gameID := m.GameID
	running := m.Status == models.MatchInProgress
	if err := e.t.ForfeitMatch(m.ID, loserID); err != nil {
		return err
	}
	s.stopMatchTimerLocked(e, m.ID)
	if gameID != 0 {
		s.reg.releaseGame(gameID)
		if running && s.games != nil {
			s.games.Cancel(gameID, rooms.ReasonForfeited)
		}
	}
	s.reportLocked(e.t, m)
	return nil
}

// reportLocked sends a forfeit decided outside a room to the result ledger.
func (s *tournamentService) reportLocked(t *brackets.Tournament, m *models.Match) {
	if s.reporter == nil || m.Score == nil {
		return
	}
	result := models.MatchResult{
		GameID:       m.GameID,
		TournamentID: t.ID,
		MatchID:      m.ID,
		Player1ID:    m.Player1ID,
		Player2ID:    m.Player2ID,
		Score1:       m.Score.Player1,
		Score2:       m.Score.Player2,
		WinnerID:     m.WinnerID,
		FinalMatch:   m.Round == models.RoundFinal,
		Forfeit:      true,
	}
	if m.StartedAt != nil {
		result.StartTime = *m.StartedAt
	}
	if m.CompletedAt != nil {
		result.EndTime = *m.CompletedAt
	}
	reporter := s.reporter
	logger := s.logger
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := reporter.ReportMatch(ctx, result); err != nil {
			logger.Error("failed to report forfeit", slog.String("match_id", result.MatchID), slog.Any("error", err))
		}
	}()
}

// finishIfCompletedLocked releases player reservations once the final is decided and
// archives the tournament when no match is still being played.
func (s *tournamentService) finishIfCompletedLocked(e *tournamentEntry) {
	t := e.t
	if t.Phase() != models.PhaseCompleted {
		return
	}
	for _, p := range t.Players() {
		s.reg.releasePlayer(p.ID, t.ID)
	}
	for _, m := range t.Bracket().Matches() {
		if m.Status == models.MatchInProgress {
			return
		}
	}

	s.stopTimersLocked(e)
	if err := t.Archive(); err != nil {
		s.logger.Error("failed to archive tournament", slog.String("tournament_id", t.ID), slog.Any("error", err))
		return
	}
	s.exportLocked(t.Snapshot())
}

func (s *tournamentService) exportLocked(snapshot *models.TournamentSnapshot) {
	if s.archiver == nil || s.closed {
		return
	}
	s.uploads.Add(1)
	go func() {
		defer s.uploads.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.settings.ArchiveTimeout)
		defer cancel()
		location, err := s.archiver.ArchiveTournament(ctx, snapshot)
		if err != nil {
			s.logger.Error("failed to export tournament archive",
				slog.String("tournament_id", snapshot.ID),
				slog.Any("error", err))
			return
		}
		s.logger.Info("tournament archive exported",
			slog.String("tournament_id", snapshot.ID),
			slog.String("location", location))
	}()
}
