package models

import (
	"fmt"
	"strconv"
)

// AudioFeatures is the audio-feature vector of a track.
type AudioFeatures struct {
	Acousticness     float64
	Danceability     float64
	Energy           float64
	Instrumentalness float64
	Liveness         float64
	Loudness         float64
	Speechiness      float64
	Tempo            float64
	Valence          float64
	Key              int
	Mode             int
	TimeSignature    int
}

// TrackInfo is one row of the track-info ledger. Features is nil when the
// catalog has no audio features for the track.
type TrackInfo struct {
	ID          string
	Name        string
	Popularity  int
	Markets     int
	Artists     string
	ReleaseDate string
	DurationMS  int
	Features    *AudioFeatures
}

// TrackInfoHeader is the track-info ledger header.
var TrackInfoHeader = []string{
	"ids", "names", "popularity", "markets", "artists", "release_date", "duration_ms",
	"acousticness", "danceability", "energy", "instrumentalness", "liveness",
	"loudness", "speechiness", "tempo", "valence", "musicalkey", "musicalmode", "time_signature",
}

// Range is the closed interval a feature is expected to fall in.
type Range struct {
	Min float64
	Max float64
}

// FeatureRanges documents the valid range of every normalizable column.
var FeatureRanges = map[string]Range{
	"acousticness":     {0, 1},
	"danceability":     {0, 1},
	"energy":           {0, 1},
	"instrumentalness": {0, 1},
	"liveness":         {0, 1},
	"speechiness":      {0, 1},
	"valence":          {0, 1},
	"loudness":         {-60, 0},
	"tempo":            {0, 200},
	"musicalkey":       {0, 11},
	"musicalmode":      {0, 1},
	"time_signature":   {0, 5},
	"popularity":       {0, 100},
	"markets":          {0, 180},
}

// Normalize maps v into [0,1] using the feature's range, clamping values
// outside it. ok is false for an unknown feature.
func Normalize(feature string, v float64) (norm float64, ok bool) {
	r, ok := FeatureRanges[feature]
	if !ok || r.Max == r.Min {
		return 0, false
	}
	norm = (v - r.Min) / (r.Max - r.Min)
	if norm < 0 {
		norm = 0
	}
	if norm > 1 {
		norm = 1
	}
	return norm, true
}

// Values returns the features keyed by ledger column name.
func (f AudioFeatures) Values() map[string]float64 {
	return map[string]float64{
		"acousticness":     f.Acousticness,
		"danceability":     f.Danceability,
		"energy":           f.Energy,
		"instrumentalness": f.Instrumentalness,
		"liveness":         f.Liveness,
		"loudness":         f.Loudness,
		"speechiness":      f.Speechiness,
		"tempo":            f.Tempo,
		"valence":          f.Valence,
		"musicalkey":       float64(f.Key),
		"musicalmode":      float64(f.Mode),
		"time_signature":   float64(f.TimeSignature),
	}
}

// OutOfRange lists the columns of f that fall outside FeatureRanges.
func (f AudioFeatures) OutOfRange() []string {
	var out []string
	values := f.Values()
	for _, col := range TrackInfoHeader[7:] {
		v, r := values[col], FeatureRanges[col]
		if v < r.Min || v > r.Max {
			out = append(out, col)
		}
	}
	return out
}

// MissingTrack is the row written for a track ID the catalog did not return.
func MissingTrack(id string) TrackInfo {
	return TrackInfo{
		ID:          id,
		Name:        MissingMarker,
		Popularity:  Missing,
		Markets:     Missing,
		Artists:     MissingMarker,
		ReleaseDate: MissingMarker,
		DurationMS:  Missing,
	}
}

// Row renders t in TrackInfoHeader column order. Missing audio features are
// empty cells, since -1 is a legal loudness.
func (t TrackInfo) Row() []string {
	row := []string{
		t.ID,
		t.Name,
		strconv.Itoa(t.Popularity),
		strconv.Itoa(t.Markets),
		t.Artists,
		t.ReleaseDate,
		strconv.Itoa(t.DurationMS),
	}
	if t.Features == nil {
		return append(row, make([]string, 12)...)
	}
	f := t.Features
	return append(row,
		formatFloat(f.Acousticness),
		formatFloat(f.Danceability),
		formatFloat(f.Energy),
		formatFloat(f.Instrumentalness),
		formatFloat(f.Liveness),
		formatFloat(f.Loudness),
		formatFloat(f.Speechiness),
		formatFloat(f.Tempo),
		formatFloat(f.Valence),
		strconv.Itoa(f.Key),
		strconv.Itoa(f.Mode),
		strconv.Itoa(f.TimeSignature),
	)
}

// ParseTrackInfo reads a ledger row back into a TrackInfo.
func ParseTrackInfo(row []string) (TrackInfo, error) {
	if len(row) != len(TrackInfoHeader) {
		return TrackInfo{}, fmt.Errorf("track info: got %d fields, want %d", len(row), len(TrackInfoHeader))
	}
	t := TrackInfo{ID: row[0], Name: row[1], Artists: row[4], ReleaseDate: row[5]}
	var err error
	if t.Popularity, err = parseInt(row[2]); err != nil {
		return TrackInfo{}, fmt.Errorf("track info %s: popularity: %w", row[0], err)
	}
	if t.Markets, err = parseInt(row[3]); err != nil {
		return TrackInfo{}, fmt.Errorf("track info %s: markets: %w", row[0], err)
	}
	if t.DurationMS, err = parseInt(row[6]); err != nil {
		return TrackInfo{}, fmt.Errorf("track info %s: duration_ms: %w", row[0], err)
	}
	if row[7] == "" {
		return t, nil
	}

	floats := make([]float64, 9)
	for i := range floats {
		if floats[i], err = strconv.ParseFloat(row[7+i], 64); err != nil {
			return TrackInfo{}, fmt.Errorf("track info %s: %s: %w", row[0], TrackInfoHeader[7+i], err)
		}
	}
	ints := make([]int, 3)
	for i := range ints {
		if ints[i], err = parseInt(row[16+i]); err != nil {
			return TrackInfo{}, fmt.Errorf("track info %s: %s: %w", row[0], TrackInfoHeader[16+i], err)
		}
	}
	t.Features = &AudioFeatures{
		Acousticness:     floats[0],
		Danceability:     floats[1],
		Energy:           floats[2],
		Instrumentalness: floats[3],
		Liveness:         floats[4],
		Loudness:         floats[5],
		Speechiness:      floats[6],
		Tempo:            floats[7],
		Valence:          floats[8],
		Key:              ints[0],
		Mode:             ints[1],
		TimeSignature:    ints[2],
	}
	return t, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
