package models

import (
	"fmt"
	"strconv"
	"time"
)

// PlaylistHeader is the editorial playlist ledger header.
var PlaylistHeader = []string{"playlist_ids", "playlist_names", "owners"}

// Playlist is one public playlist of the editorial account.
type Playlist struct {
	ID    string
	Name  string
	Owner string
}

func (p Playlist) Row() []string {
	return []string{p.ID, p.Name, p.Owner}
}

func ParsePlaylist(row []string) (Playlist, error) {
	if len(row) != len(PlaylistHeader) {
		return Playlist{}, fmt.Errorf("playlist: got %d fields, want %d", len(row), len(PlaylistHeader))
	}
	return Playlist{ID: row[0], Name: row[1], Owner: row[2]}, nil
}

// PlaylistArtistHeader is the playlist-artist ledger header.
var PlaylistArtistHeader = []string{"ids", "track_ids", "playlist_names", "added_at"}

// PlaylistArtist records the first recently added track that brought an
// artist onto an editorial playlist.
type PlaylistArtist struct {
	ArtistID string
	TrackID  string
	Playlist string
	AddedAt  time.Time
}

func (p PlaylistArtist) Row() []string {
	return []string{p.ArtistID, p.TrackID, p.Playlist, p.AddedAt.UTC().Format(time.RFC3339)}
}

// PopularitySampleHeader is the popularity-by-offset ledger header. The
// samples column is the (query, offset) key.
var PopularitySampleHeader = []string{"samples", "queries", "offsets", "ids", "names", "popularity"}

// PopularitySample is the artist a search query ranks at one offset.
type PopularitySample struct {
	Query      string
	Offset     int
	ID         string
	Name       string
	Popularity int
}

// SampleKey identifies one (query, offset) pair.
func SampleKey(query string, offset int) string {
	return query + "@" + strconv.Itoa(offset)
}

// MissingSample is the row written when nothing ranks at offset.
func MissingSample(query string, offset int) PopularitySample {
	return PopularitySample{Query: query, Offset: offset, ID: MissingMarker, Name: MissingMarker, Popularity: Missing}
}

func (s PopularitySample) Row() []string {
	return []string{
		SampleKey(s.Query, s.Offset), s.Query, strconv.Itoa(s.Offset),
		s.ID, s.Name, strconv.Itoa(s.Popularity),
	}
}

func ParsePopularitySample(row []string) (PopularitySample, error) {
	if len(row) != len(PopularitySampleHeader) {
		return PopularitySample{}, fmt.Errorf("popularity sample: got %d fields, want %d", len(row), len(PopularitySampleHeader))
	}
	offset, err := strconv.Atoi(row[2])
	if err != nil {
		return PopularitySample{}, fmt.Errorf("popularity sample %s: offset: %w", row[0], err)
	}
	pop, err := parseInt(row[5])
	if err != nil {
		return PopularitySample{}, fmt.Errorf("popularity sample %s: popularity: %w", row[0], err)
	}
	return PopularitySample{Query: row[1], Offset: offset, ID: row[3], Name: row[4], Popularity: pop}, nil
}
