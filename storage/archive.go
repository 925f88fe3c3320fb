package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/gosimple/slug"

	"github.com/Dosada05/tournaments/models"
)

const definitionContentType = "application/yaml"

// DefinitionArchive keeps a copy of every published tournament definition.
type DefinitionArchive interface {
	Archive(ctx context.Context, tournament *models.Tournament) (string, error)
	Remove(ctx context.Context, tournament *models.Tournament) error
}

type definitionArchive struct {
	uploader FileUploader
	logger   *slog.Logger
}

// NewDefinitionArchive stores definitions through the given uploader. A nil
// uploader gives an archive that does nothing.
func NewDefinitionArchive(uploader FileUploader, logger *slog.Logger) DefinitionArchive {
	if logger == nil {
		logger = slog.Default()
	}
	return &definitionArchive{uploader: uploader, logger: logger}
}

// DefinitionKey is the object key of a tournament definition.
func DefinitionKey(tournament *models.Tournament) string {
	name := slug.Make(tournament.Name)
	if name == "" {
		name = "tournament"
	}
	return fmt.Sprintf("definitions/%d/%s.yaml", tournament.ID, name)
}

// Archive uploads the definition and returns its public URL.
func (a *definitionArchive) Archive(ctx context.Context, tournament *models.Tournament) (string, error) {
	if a.uploader == nil {
		return "", nil
	}
	key := DefinitionKey(tournament)
	result, err := a.uploader.Upload(ctx, key, definitionContentType, bytes.NewReader([]byte(tournament.Definition)))
	if err != nil {
		return "", fmt.Errorf("failed to archive definition of tournament %d: %w", tournament.ID, err)
	}
	a.logger.InfoContext(ctx, "Definition archived",
		slog.Int("tournament_id", tournament.ID),
		slog.String("key", result.Key),
		slog.String("etag", result.ETag))
	return result.Location, nil
}

func (a *definitionArchive) Remove(ctx context.Context, tournament *models.Tournament) error {
	if a.uploader == nil {
		return nil
	}
	if err := a.uploader.Delete(ctx, DefinitionKey(tournament)); err != nil {
		return fmt.Errorf("failed to remove archived definition of tournament %d: %w", tournament.ID, err)
	}
	return nil
}
