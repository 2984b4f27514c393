package storage

import (
	"fmt"
	"strconv"

	"artist-census/models"
)

// Info ledgers may hold several rows for one ID: a later pass can append a
// corrected row. Readers take the last row by file position and keep the
// order in which IDs first appeared.

// LatestArtists returns one record per artist ID, last row wins.
func (s *Store) LatestArtists() ([]models.ArtistInfo, error) {
	return latestArtists(s.ledgers[ArtistInfo])
}

// LatestEditorialArtists is LatestArtists over the editorial artist ledger.
func (s *Store) LatestEditorialArtists() ([]models.ArtistInfo, error) {
	return latestArtists(s.ledgers[EditorialInfo])
}

func latestArtists(l *Ledger) ([]models.ArtistInfo, error) {
	var out []models.ArtistInfo
	pos := make(map[string]int)
	err := l.Scan(func(row []string) error {
		a, err := models.ParseArtistInfo(row)
		if err != nil {
			return err
		}
		if i, ok := pos[a.ID]; ok {
			out[i] = a
			return nil
		}
		pos[a.ID] = len(out)
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LatestTracks returns one record per track ID, last row wins.
func (s *Store) LatestTracks() ([]models.TrackInfo, error) {
	var out []models.TrackInfo
	pos := make(map[string]int)
	err := s.ledgers[TrackInfo].Scan(func(row []string) error {
		t, err := models.ParseTrackInfo(row)
		if err != nil {
			return err
		}
		if i, ok := pos[t.ID]; ok {
			out[i] = t
			return nil
		}
		pos[t.ID] = len(out)
		out = append(out, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MergeBioGenres fills empty genres from the bio-genre ledger. Catalog
// genres always take precedence.
func (s *Store) MergeBioGenres(records []models.ArtistInfo) ([]models.ArtistInfo, error) {
	bio := make(map[string]string)
	err := s.ledgers[BioGenres].Scan(func(row []string) error {
		bio[row[0]] = row[2]
		return nil
	})
	if err != nil {
		return nil, err
	}

	merged := make([]models.ArtistInfo, len(records))
	filled := 0
	for i, a := range records {
		if g, ok := bio[a.ID]; ok && a.Genres == "" && g != "" {
			a.Genres = g
			filled++
		}
		merged[i] = a
	}
	s.logger.Debug("[ledger] filled genres for %d artists from bios", filled)
	return merged, nil
}

// MergeListeners sets MonthlyListeners from the listeners ledger, last row
// wins. Artists without a row keep Missing.
func (s *Store) MergeListeners(records []models.ArtistInfo) ([]models.ArtistInfo, error) {
	counts := make(map[string]int)
	err := s.ledgers[Listeners].Scan(func(row []string) error {
		n, err := strconv.Atoi(row[1])
		if err != nil {
			return fmt.Errorf("listeners %s: %w", row[0], err)
		}
		counts[row[0]] = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	merged := make([]models.ArtistInfo, len(records))
	for i, a := range records {
		if n, ok := counts[a.ID]; ok {
			a.MonthlyListeners = n
		}
		merged[i] = a
	}
	return merged, nil
}

// Artists returns the deduplicated artist records with bio genres and
// monthly listeners merged in.
func (s *Store) Artists() ([]models.ArtistInfo, error) {
	latest, err := s.LatestArtists()
	if err != nil {
		return nil, err
	}
	merged, err := s.MergeBioGenres(latest)
	if err != nil {
		return nil, err
	}
	return s.MergeListeners(merged)
}

// EditorialArtists returns the editorial artist records with bio genres
// and monthly listeners merged in.
func (s *Store) EditorialArtists() ([]models.ArtistInfo, error) {
	latest, err := s.LatestEditorialArtists()
	if err != nil {
		return nil, err
	}
	merged, err := s.MergeBioGenres(latest)
	if err != nil {
		return nil, err
	}
	return s.MergeListeners(merged)
}

// CleanArtists returns the merged artists that have a usable value for every
// required feature. Sentinel rows never pass when anything is required.
func (s *Store) CleanArtists(required []string) ([]models.ArtistInfo, error) {
	if err := models.CheckFeatures(required); err != nil {
		return nil, err
	}
	all, err := s.Artists()
	if err != nil {
		return nil, err
	}
	out := make([]models.ArtistInfo, 0, len(all))
	for _, a := range all {
		if !lacksAny(a, required) {
			out = append(out, a)
		}
	}
	s.logger.Info("[ledger] %d of %d artists have every required feature", len(out), len(all))
	return out, nil
}

func lacksAny(a models.ArtistInfo, features []string) bool {
	for _, f := range features {
		if lacks, _ := a.Lacks(f); lacks {
			return true
		}
	}
	return false
}
