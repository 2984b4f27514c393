package storage

import (
	"slices"

	"artist-census/models"
)

// Playlists returns the ledgered editorial playlists in file order.
func (s *Store) Playlists() ([]models.Playlist, error) {
	var out []models.Playlist
	err := s.ledgers[Playlists].Scan(func(row []string) error {
		p, err := models.ParsePlaylist(row)
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UnfetchedEditorialIDs returns playlist artists without an editorial info row.
func (s *Store) UnfetchedEditorialIDs(limit int) []string {
	return s.without(s.ledgers[PlaylistArtists].Keys(), s.ledgers[EditorialInfo], limit)
}

// PopularityCurve returns the samples recorded for query, ordered by offset.
func (s *Store) PopularityCurve(query string) ([]models.PopularitySample, error) {
	var out []models.PopularitySample
	err := s.ledgers[PopularitySamples].Scan(func(row []string) error {
		if row[1] != query {
			return nil
		}
		p, err := models.ParsePopularitySample(row)
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b models.PopularitySample) int { return a.Offset - b.Offset })
	return out, nil
}
