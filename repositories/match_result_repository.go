package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Dosada05/pong-tournaments/models"
)

var (
	ErrMatchResultDuplicate = errors.New("match result already recorded")
	ErrMatchResultInvalid   = errors.New("match result is invalid")
)

const matchResultsSchema = `
	CREATE TABLE IF NOT EXISTS match_results (
		id            BIGSERIAL PRIMARY KEY,
		game_id       INTEGER     NOT NULL,
		tournament_id TEXT,
		match_id      TEXT,
		player1_id    TEXT        NOT NULL,
		player2_id    TEXT        NOT NULL,
		score1        INTEGER     NOT NULL,
		score2        INTEGER     NOT NULL,
		winner_id     TEXT        NOT NULL,
		start_time    TIMESTAMPTZ,
		end_time      TIMESTAMPTZ,
		final_match   BOOLEAN     NOT NULL DEFAULT FALSE,
		forfeit       BOOLEAN     NOT NULL DEFAULT FALSE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (game_id, player1_id, player2_id, end_time)
	)`

// MatchResultRepository is the result ledger. It satisfies rooms.Reporter.
type MatchResultRepository interface {
	EnsureSchema(ctx context.Context) error
	ReportMatch(ctx context.Context, result models.MatchResult) error
	ListByPlayer(ctx context.Context, playerID string, limit int) ([]models.MatchResult, error)
}

type postgresMatchResultRepository struct {
	db *sql.DB
}

func NewPostgresMatchResultRepository(db *sql.DB) MatchResultRepository {
	return &postgresMatchResultRepository{db: db}
}

func (r *postgresMatchResultRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, matchResultsSchema); err != nil {
		return fmt.Errorf("failed to create match_results table: %w", err)
	}
	return nil
}

func (r *postgresMatchResultRepository) ReportMatch(ctx context.Context, result models.MatchResult) error {
	if err := validateMatchResult(result); err != nil {
		return err
	}

	query := `
		INSERT INTO match_results
			(game_id, tournament_id, match_id, player1_id, player2_id, score1, score2,
			 winner_id, start_time, end_time, final_match, forfeit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		result.GameID,
		nullString(result.TournamentID),
		nullString(result.MatchID),
		result.Player1ID,
		result.Player2ID,
		result.Score1,
		result.Score2,
		result.WinnerID,
		nullTime(result.StartTime),
		nullTime(result.EndTime),
		result.FinalMatch,
		result.Forfeit,
	)
	return handleMatchResultError(err)
}

func (r *postgresMatchResultRepository) ListByPlayer(ctx context.Context, playerID string, limit int) ([]models.MatchResult, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT game_id, COALESCE(tournament_id, ''), COALESCE(match_id, ''), player1_id, player2_id,
		       score1, score2, winner_id, start_time, end_time, final_match, forfeit
		FROM match_results
		WHERE player1_id = $1 OR player2_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query match results for player %s: %w", playerID, err)
	}
	defer rows.Close()

	results := make([]models.MatchResult, 0)
	for rows.Next() {
		var (
			res        models.MatchResult
			start, end sql.NullTime
		)
		if err := rows.Scan(
			&res.GameID,
			&res.TournamentID,
			&res.MatchID,
			&res.Player1ID,
			&res.Player2ID,
			&res.Score1,
			&res.Score2,
			&res.WinnerID,
			&start,
			&end,
			&res.FinalMatch,
			&res.Forfeit,
		); err != nil {
			return nil, fmt.Errorf("failed to scan match result row: %w", err)
		}
		res.StartTime = start.Time
		res.EndTime = end.Time
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match results iteration: %w", err)
	}
	return results, nil
}

func validateMatchResult(result models.MatchResult) error {
	switch {
	case result.Player1ID == "" || result.Player2ID == "":
		return fmt.Errorf("%w: both players are required", ErrMatchResultInvalid)
	case result.WinnerID != result.Player1ID && result.WinnerID != result.Player2ID:
		return fmt.Errorf("%w: winner %q is not a participant", ErrMatchResultInvalid, result.WinnerID)
	case result.Score1 < 0 || result.Score2 < 0:
		return fmt.Errorf("%w: negative score", ErrMatchResultInvalid)
	}
	return nil
}

func handleMatchResultError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
		return ErrMatchResultDuplicate
	}
	return fmt.Errorf("failed to insert match result: %w", err)
}

// LogMatchResultReporter пишет результаты только в лог, когда база не настроена.
type LogMatchResultReporter struct {
	logger *slog.Logger
}

func NewLogMatchResultReporter(logger *slog.Logger) *LogMatchResultReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMatchResultReporter{logger: logger.With(slog.String("component", "ledger"))}
}

func (r *LogMatchResultReporter) ReportMatch(_ context.Context, result models.MatchResult) error {
	if err := validateMatchResult(result); err != nil {
		return err
	}
	r.logger.Info("match result recorded",
		slog.Int("game_id", result.GameID),
		slog.String("tournament_id", result.TournamentID),
		slog.String("match_id", result.MatchID),
		slog.String("winner_id", result.WinnerID),
		slog.Int("score1", result.Score1),
		slog.Int("score2", result.Score2),
		slog.Bool("forfeit", result.Forfeit))
	return nil
}
