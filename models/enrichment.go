package models

import "strconv"

// Ledger headers for the supplementary enrichment passes.
var (
	ListenersHeader        = []string{"ids", "monthly_listeners"}
	RandomTrackHeader      = []string{"ids", "names", "track_ids"}
	BioGenresHeader        = []string{"ids", "names", "genres"}
	MissingBioGenresHeader = []string{"ids"}
)

// Listeners is the scraped monthly-listener count of an artist.
// Count is Missing when the page could not be loaded.
type Listeners struct {
	ID    string
	Count int
}

func (l Listeners) Row() []string {
	return []string{l.ID, strconv.Itoa(l.Count)}
}

// RandomTrack is one track drawn at random from an artist's releases.
// TrackID is MissingMarker when the artist had no drawable track.
type RandomTrack struct {
	ArtistID string
	Name     string
	TrackID  string
}

func (r RandomTrack) Row() []string {
	return []string{r.ArtistID, r.Name, r.TrackID}
}

// BioGenres are genre keywords found in an artist's biography.
type BioGenres struct {
	ID     string
	Name   string
	Genres string
}

func (b BioGenres) Row() []string {
	return []string{b.ID, b.Name, b.Genres}
}
