package catalog

import "time"

type Followers struct {
	Total int `json:"total"`
}

// Artist is a full artist object as returned by search and lookup.
type Artist struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Popularity int       `json:"popularity"`
	Followers  Followers `json:"followers"`
	Genres     []string  `json:"genres"`
}

type SimpleArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Album is a release in an artist's discography.
type Album struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AlbumType   string `json:"album_type"`
	ReleaseDate string `json:"release_date"`
	TotalTracks int    `json:"total_tracks"`
}

type SimpleTrack struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Track is a full track object.
type Track struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Popularity       int            `json:"popularity"`
	AvailableMarkets []string       `json:"available_markets"`
	Artists          []SimpleArtist `json:"artists"`
	Album            Album          `json:"album"`
	DurationMS       int            `json:"duration_ms"`
}

type AudioFeatures struct {
	ID               string  `json:"id"`
	Acousticness     float64 `json:"acousticness"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Loudness         float64 `json:"loudness"`
	Speechiness      float64 `json:"speechiness"`
	Tempo            float64 `json:"tempo"`
	Valence          float64 `json:"valence"`
	Key              int     `json:"key"`
	Mode             int     `json:"mode"`
	TimeSignature    int     `json:"time_signature"`
}

type searchResponse struct {
	Artists struct {
		Items []Artist `json:"items"`
		Next  string   `json:"next"`
		Total int      `json:"total"`
	} `json:"artists"`
}

type albumPage struct {
	Items []Album `json:"items"`
	Next  string  `json:"next"`
}

type trackPage struct {
	Items []SimpleTrack `json:"items"`
	Next  string        `json:"next"`
}

// Playlist is a simplified playlist object from a user's playlist listing.
type Playlist struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Public bool   `json:"public"`
	Owner  struct {
		ID string `json:"id"`
	} `json:"owner"`
}

// PlaylistItem is one entry of a playlist. Track is nil for removed or
// unavailable tracks.
type PlaylistItem struct {
	AddedAt time.Time `json:"added_at"`
	Track   *Track    `json:"track"`
}

type playlistPage struct {
	Items []Playlist `json:"items"`
	Next  string     `json:"next"`
}

type playlistItemPage struct {
	Items []PlaylistItem `json:"items"`
	Next  string         `json:"next"`
}
