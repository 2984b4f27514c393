package storage

import (
	"context"

	"artist-census/models"
)

// InfoExporter is the interface any export backend must satisfy.
type InfoExporter interface {
	ReplaceArtists(ctx context.Context, exportID string, records []models.ArtistInfo) error
	ReplaceTracks(ctx context.Context, exportID string, records []models.TrackInfo) error
	FetchArtists(ctx context.Context) ([]models.ArtistInfo, error)
	Close() error
}

var _ InfoExporter = (*PostgresWriter)(nil)
