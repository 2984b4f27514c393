package models

import (
	"fmt"
	"strconv"
)

const (
	// Missing marks a numeric field that was attempted but unavailable.
	Missing = -1
	// MissingMarker marks a text field that was attempted but unavailable.
	MissingMarker = "missing"
)

// Resolution pairs a normalized artist name with its catalog ID.
type Resolution struct {
	Name string
	ID   string
}

// ReleaseSummary holds the four fields derived from an artist's releases.
// They are only ever produced together.
type ReleaseSummary struct {
	FirstRelease int
	LastRelease  int
	NumReleases  int
	NumTracks    int
}

// EmptyReleaseSummary is the summary of an artist with no usable releases.
func EmptyReleaseSummary() ReleaseSummary {
	return ReleaseSummary{FirstRelease: Missing, LastRelease: Missing, NumReleases: 0, NumTracks: 0}
}

// ArtistInfo is one row of the artist-info ledger.
type ArtistInfo struct {
	ID         string
	Name       string
	Popularity int
	Followers  int
	Genres     string
	ReleaseSummary

	// MonthlyListeners is not part of the row. It is merged in from the
	// listeners ledger and stays Missing until then.
	MonthlyListeners int
}

// ArtistInfoHeader is the artist-info ledger header.
var ArtistInfoHeader = []string{
	"ids", "names", "popularity", "followers", "genres",
	"first_release", "last_release", "num_releases", "num_tracks",
}

// MissingArtist is the row written for an ID the catalog did not return.
func MissingArtist(id string) ArtistInfo {
	return ArtistInfo{
		ID:         id,
		Name:       MissingMarker,
		Popularity: Missing,
		Followers:  Missing,
		Genres:     MissingMarker,
		ReleaseSummary: ReleaseSummary{
			FirstRelease: Missing,
			LastRelease:  Missing,
			NumReleases:  Missing,
			NumTracks:    Missing,
		},
		MonthlyListeners: Missing,
	}
}

// IsMissing reports whether a is a sentinel row.
func (a ArtistInfo) IsMissing() bool {
	return a.Name == MissingMarker && a.Popularity == Missing
}

// Row renders a in ArtistInfoHeader column order.
func (a ArtistInfo) Row() []string {
	return []string{
		a.ID,
		a.Name,
		strconv.Itoa(a.Popularity),
		strconv.Itoa(a.Followers),
		a.Genres,
		strconv.Itoa(a.FirstRelease),
		strconv.Itoa(a.LastRelease),
		strconv.Itoa(a.NumReleases),
		strconv.Itoa(a.NumTracks),
	}
}

// ParseArtistInfo reads a ledger row back into an ArtistInfo.
func ParseArtistInfo(row []string) (ArtistInfo, error) {
	if len(row) != len(ArtistInfoHeader) {
		return ArtistInfo{}, fmt.Errorf("artist info: got %d fields, want %d", len(row), len(ArtistInfoHeader))
	}
	ints := make([]int, 0, 6)
	for _, i := range []int{2, 3, 5, 6, 7, 8} {
		n, err := parseInt(row[i])
		if err != nil {
			return ArtistInfo{}, fmt.Errorf("artist info %s: column %s: %w", row[0], ArtistInfoHeader[i], err)
		}
		ints = append(ints, n)
	}
	return ArtistInfo{
		ID:         row[0],
		Name:       row[1],
		Popularity: ints[0],
		Followers:  ints[1],
		Genres:     row[4],
		ReleaseSummary: ReleaseSummary{
			FirstRelease: ints[2],
			LastRelease:  ints[3],
			NumReleases:  ints[4],
			NumTracks:    ints[5],
		},
		MonthlyListeners: Missing,
	}, nil
}

// Features are the column names a clean step can require.
var Features = []string{
	"popularity", "followers", "genres",
	"first_release", "last_release", "num_releases", "num_tracks",
	"monthly_listeners",
}

// Lacks reports whether feature is unset or a sentinel in a.
func (a ArtistInfo) Lacks(feature string) (bool, error) {
	var n int
	switch feature {
	case "genres":
		return a.Genres == "" || a.Genres == MissingMarker, nil
	case "popularity":
		n = a.Popularity
	case "followers":
		n = a.Followers
	case "first_release":
		n = a.FirstRelease
	case "last_release":
		n = a.LastRelease
	case "num_releases":
		n = a.NumReleases
	case "num_tracks":
		n = a.NumTracks
	case "monthly_listeners":
		n = a.MonthlyListeners
	default:
		return false, fmt.Errorf("unknown artist feature %q", feature)
	}
	return n == Missing, nil
}

// CheckFeatures returns an error naming the first unknown feature.
func CheckFeatures(features []string) error {
	for _, f := range features {
		if _, err := (ArtistInfo{}).Lacks(f); err != nil {
			return err
		}
	}
	return nil
}

// parseInt accepts "12" and the "12.0" form written by float-typed exports.
func parseInt(s string) (int, error) {
	if s == "" {
		return Missing, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
