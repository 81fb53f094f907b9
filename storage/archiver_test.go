package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/pong-tournaments/models"
)

type memoryUploader struct {
	objects     map[string][]byte
	contentType string
	err         error
}

func (m *memoryUploader) Upload(_ context.Context, key, contentType string, reader io.Reader) (*UploadResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = body
	m.contentType = contentType
	return &UploadResult{Key: key, Location: publicURL("https://cdn.example.com/archive/", key), ETag: "abc"}, nil
}

func TestSnapshotArchiverUploadsJSON(t *testing.T) {
	up := &memoryUploader{}
	a := NewSnapshotArchiver(up, nil)

	snap := &models.TournamentSnapshot{ID: "t-1", Name: "Cup", Phase: models.PhaseArchived, WinnerID: "p1"}
	location, err := a.ArchiveTournament(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/archive/tournaments/t-1.json", location)
	assert.Equal(t, "application/json", up.contentType)

	var decoded models.TournamentSnapshot
	require.NoError(t, json.Unmarshal(up.objects["tournaments/t-1.json"], &decoded))
	assert.Equal(t, "Cup", decoded.Name)
	assert.Equal(t, "p1", decoded.WinnerID)
}

func TestSnapshotArchiverErrors(t *testing.T) {
	a := NewSnapshotArchiver(&memoryUploader{}, nil)
	_, err := a.ArchiveTournament(context.Background(), nil)
	assert.Error(t, err)

	boom := errors.New("bucket unavailable")
	a = NewSnapshotArchiver(&memoryUploader{err: boom}, nil)
	_, err = a.ArchiveTournament(context.Background(), &models.TournamentSnapshot{ID: "t-2"})
	assert.ErrorIs(t, err, boom)
}

func TestPublicURL(t *testing.T) {
	tests := []struct {
		base, key, want string
	}{
		{"https://pub.r2.dev", "tournaments/a.json", "https://pub.r2.dev/tournaments/a.json"},
		{"https://pub.r2.dev/", "/tournaments/a.json", "https://pub.r2.dev/tournaments/a.json"},
		{"https://pub.r2.dev/bucket", "x.json", "https://pub.r2.dev/bucket/x.json"},
		{"", "x.json", ""},
		{"https://pub.r2.dev", "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, publicURL(tt.base, tt.key), "%s + %s", tt.base, tt.key)
	}
}

func TestR2ConfigValidate(t *testing.T) {
	assert.False(t, R2Config{}.Enabled())

	partial := R2Config{AccountID: "acc", BucketName: "b"}
	assert.True(t, partial.Enabled())
	assert.ErrorIs(t, partial.Validate(), ErrInvalidR2Config)

	full := R2Config{AccountID: "acc", AccessKeyID: "k", SecretAccessKey: "s", BucketName: "b", PublicBaseURL: "https://pub.r2.dev"}
	assert.NoError(t, full.Validate())
}
