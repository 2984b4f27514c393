package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"artist-census/catalog"
	"artist-census/models"
	"artist-census/utils"
)

var (
	// ErrLengthMismatch means parallel API result lists do not line up with
	// the requested IDs. Writing anyway would misattribute fields.
	ErrLengthMismatch = errors.New("aggregate: result lists differ in length")
	// ErrMisaligned means a result at some position belongs to another ID.
	ErrMisaligned = errors.New("aggregate: result does not match requested ID")
)

// SummarizeReleases derives the release summary from an artist's releases.
// Only albums and singles count, and a release whose date carries no
// readable year is left out of all four fields alike.
func SummarizeReleases(releases []catalog.Album) models.ReleaseSummary {
	s := models.EmptyReleaseSummary()
	for _, r := range releases {
		switch strings.ToLower(r.AlbumType) {
		case "album", "single":
		default:
			continue
		}
		year, ok := releaseYear(r.ReleaseDate)
		if !ok {
			continue
		}

		if s.NumReleases == 0 || year < s.FirstRelease {
			s.FirstRelease = year
		}
		if s.NumReleases == 0 || year > s.LastRelease {
			s.LastRelease = year
		}
		s.NumReleases++
		s.NumTracks += r.TotalTracks
	}
	return s
}

// releaseYear reads the year of a "YYYY", "YYYY-MM" or "YYYY-MM-DD" date.
func releaseYear(date string) (int, bool) {
	if len(date) < 4 {
		return 0, false
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil || y <= 0 {
		return 0, false
	}
	return y, true
}

// ArtistTable collects whole artist rows for one batch.
type ArtistTable struct {
	rows []models.ArtistInfo
}

func NewArtistTable(capacity int) *ArtistTable {
	return &ArtistTable{rows: make([]models.ArtistInfo, 0, capacity)}
}

func (t *ArtistTable) Add(a models.ArtistInfo) { t.rows = append(t.rows, a) }

func (t *ArtistTable) Len() int { return len(t.rows) }

func (t *ArtistTable) Records() []models.ArtistInfo { return t.rows }

// Rows renders the table for a ledger append.
func (t *ArtistTable) Rows() [][]string {
	out := make([][]string, len(t.rows))
	for i, a := range t.rows {
		out[i] = a.Row()
	}
	return out
}

// ReleaseLister fetches an artist's releases.
type ReleaseLister interface {
	Releases(ctx context.Context, artistID string) ([]catalog.Album, error)
}

// ArtistAggregator merges profiles with release summaries.
type ArtistAggregator struct {
	releases ReleaseLister
	logger   *utils.Logger
}

func NewArtistAggregator(releases ReleaseLister, logger *utils.Logger) *ArtistAggregator {
	return &ArtistAggregator{releases: releases, logger: logger}
}

// Aggregate builds one row per requested ID. profiles must line up with ids;
// a nil profile becomes a sentinel row. Release errors end the batch.
// Names are stored lower-cased, like the resolved name ledger, and catalog
// genres are joined with ", ".
func (a *ArtistAggregator) Aggregate(ctx context.Context, ids []string, profiles []*catalog.Artist) (*ArtistTable, error) {
	if len(profiles) != len(ids) {
		return nil, fmt.Errorf("%w: %d profiles for %d ids", ErrLengthMismatch, len(profiles), len(ids))
	}

	t := NewArtistTable(len(ids))
	missing := 0
	for i, id := range ids {
		p := profiles[i]
		if p == nil {
			t.Add(models.MissingArtist(id))
			missing++
			continue
		}
		if p.ID != id {
			return nil, fmt.Errorf("%w: position %d requested %s, got %s", ErrMisaligned, i, id, p.ID)
		}

		releases, err := a.releases.Releases(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("releases of %s: %w", id, err)
		}
		t.Add(models.ArtistInfo{
			ID:             id,
			Name:           strings.ToLower(p.Name),
			Popularity:     p.Popularity,
			Followers:      p.Followers.Total,
			Genres:         strings.Join(p.Genres, ", "),
			ReleaseSummary: SummarizeReleases(releases),
		})
	}

	if missing > 0 {
		a.logger.Warn("[aggregator] %d of %d artists unavailable, wrote sentinel rows", missing, len(ids))
	}
	return t, nil
}

// TrackTable collects whole track rows for one batch.
type TrackTable struct {
	rows []models.TrackInfo
}

func NewTrackTable(capacity int) *TrackTable {
	return &TrackTable{rows: make([]models.TrackInfo, 0, capacity)}
}

func (t *TrackTable) Add(tr models.TrackInfo) { t.rows = append(t.rows, tr) }

func (t *TrackTable) Len() int { return len(t.rows) }

func (t *TrackTable) Records() []models.TrackInfo { return t.rows }

func (t *TrackTable) Rows() [][]string {
	out := make([][]string, len(t.rows))
	for i, tr := range t.rows {
		out[i] = tr.Row()
	}
	return out
}

// TrackAggregator merges track details with audio features.
type TrackAggregator struct {
	logger *utils.Logger
}

func NewTrackAggregator(logger *utils.Logger) *TrackAggregator {
	return &TrackAggregator{logger: logger}
}

// Aggregate builds one row per requested track ID. All three lists must
// have the same length. Tracks without features keep empty feature cells.
func (a *TrackAggregator) Aggregate(ids []string, tracks []*catalog.Track, features []*catalog.AudioFeatures) (*TrackTable, error) {
	if len(tracks) != len(ids) || len(features) != len(ids) {
		return nil, fmt.Errorf("%w: %d ids, %d tracks, %d feature sets",
			ErrLengthMismatch, len(ids), len(tracks), len(features))
	}

	t := NewTrackTable(len(ids))
	outOfRange := 0
	for i, id := range ids {
		tr := tracks[i]
		if tr == nil {
			t.Add(models.MissingTrack(id))
			continue
		}
		if tr.ID != id {
			return nil, fmt.Errorf("%w: position %d requested %s, got %s", ErrMisaligned, i, id, tr.ID)
		}

		artistIDs := make([]string, len(tr.Artists))
		for j, ar := range tr.Artists {
			artistIDs[j] = ar.ID
		}
		info := models.TrackInfo{
			ID:          id,
			Name:        tr.Name,
			Popularity:  tr.Popularity,
			Markets:     len(tr.AvailableMarkets),
			Artists:     strings.Join(artistIDs, ","),
			ReleaseDate: tr.Album.ReleaseDate,
			DurationMS:  tr.DurationMS,
		}

		if f := features[i]; f != nil {
			info.Features = &models.AudioFeatures{
				Acousticness:     f.Acousticness,
				Danceability:     f.Danceability,
				Energy:           f.Energy,
				Instrumentalness: f.Instrumentalness,
				Liveness:         f.Liveness,
				Loudness:         f.Loudness,
				Speechiness:      f.Speechiness,
				Tempo:            f.Tempo,
				Valence:          f.Valence,
				Key:              f.Key,
				Mode:             f.Mode,
				TimeSignature:    f.TimeSignature,
			}
			if cols := info.Features.OutOfRange(); len(cols) > 0 {
				outOfRange++
				a.logger.Debug("[aggregator] track %s outside expected range: %v", id, cols)
			}
		}
		t.Add(info)
	}

	if outOfRange > 0 {
		a.logger.Warn("[aggregator] %d of %d tracks have features outside the expected ranges", outOfRange, len(ids))
	}
	return t, nil
}
