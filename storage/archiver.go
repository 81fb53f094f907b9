package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/Dosada05/pong-tournaments/models"
)

const archivePrefix = "tournaments"

// SnapshotArchiver exports final tournament snapshots as JSON objects.
type SnapshotArchiver struct {
	uploader ObjectUploader
	logger   *slog.Logger
}

func NewSnapshotArchiver(uploader ObjectUploader, logger *slog.Logger) *SnapshotArchiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotArchiver{uploader: uploader, logger: logger.With(slog.String("component", "archive"))}
}

func archiveKey(tournamentID string) string {
	return path.Join(archivePrefix, tournamentID+".json")
}

// ArchiveTournament uploads the snapshot and returns its public location.
func (a *SnapshotArchiver) ArchiveTournament(ctx context.Context, snapshot *models.TournamentSnapshot) (string, error) {
	if snapshot == nil || snapshot.ID == "" {
		return "", errors.New("archive: snapshot without id")
	}
	body, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("archive: failed to encode snapshot %s: %w", snapshot.ID, err)
	}

	key := archiveKey(snapshot.ID)
	result, err := a.uploader.Upload(ctx, key, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	a.logger.Debug("snapshot uploaded",
		slog.String("key", result.Key),
		slog.String("etag", result.ETag),
		slog.Int("bytes", len(body)))
	return result.Location, nil
}
