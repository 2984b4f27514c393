package models

import (
	"reflect"
	"testing"
	"time"
)

func TestArtistInfoRoundTrip(t *testing.T) {
	a := ArtistInfo{
		ID: "abc", Name: "aphex twin", Popularity: 70, Followers: 1200, Genres: "idm,ambient",
		ReleaseSummary:   ReleaseSummary{FirstRelease: 1991, LastRelease: 2023, NumReleases: 40, NumTracks: 300},
		MonthlyListeners: Missing,
	}
	got, err := ParseArtistInfo(a.Row())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != a {
		t.Errorf("round trip: got %+v, want %+v", got, a)
	}
}

func TestParseArtistInfoFloatCells(t *testing.T) {
	row := []string{"id", "n", "12.0", "5", "", "2001.0", "2002", "2", "14"}
	got, err := ParseArtistInfo(row)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Popularity != 12 || got.FirstRelease != 2001 {
		t.Errorf("got %+v", got)
	}
}

func TestParseArtistInfoWidth(t *testing.T) {
	if _, err := ParseArtistInfo([]string{"only", "two"}); err == nil {
		t.Error("expected width error")
	}
}

func TestMissingArtistSentinels(t *testing.T) {
	m := MissingArtist("x")
	if !m.IsMissing() {
		t.Error("MissingArtist should report IsMissing")
	}
	if m.FirstRelease != Missing || m.LastRelease != Missing || m.NumReleases != Missing || m.NumTracks != Missing {
		t.Errorf("sentinel summary: got %+v", m.ReleaseSummary)
	}
}

func TestArtistLacks(t *testing.T) {
	a := ArtistInfo{
		ID: "abc", Name: "aphex twin", Popularity: 70, Followers: Missing, Genres: "",
		ReleaseSummary:   ReleaseSummary{FirstRelease: 1991, LastRelease: 2023, NumReleases: 40, NumTracks: 300},
		MonthlyListeners: 5000,
	}
	cases := map[string]bool{
		"popularity":        false,
		"followers":         true,
		"genres":            true,
		"first_release":     false,
		"monthly_listeners": false,
	}
	for feature, want := range cases {
		got, err := a.Lacks(feature)
		if err != nil {
			t.Fatalf("%s: %v", feature, err)
		}
		if got != want {
			t.Errorf("Lacks(%s): got %v, want %v", feature, got, want)
		}
	}

	if MissingArtist("x").MonthlyListeners != Missing {
		t.Error("sentinel row should have missing listeners")
	}
	if err := CheckFeatures([]string{"popularity", "loudness"}); err == nil {
		t.Error("expected unknown feature error")
	}
	if err := CheckFeatures(Features); err != nil {
		t.Errorf("all known features: %v", err)
	}
}

func TestTrackRowEmptyFeatures(t *testing.T) {
	tr := TrackInfo{ID: "t1", Name: "xtal", Popularity: 40, Markets: 180, Artists: "a1", ReleaseDate: "1992-02-12", DurationMS: 291000}
	row := tr.Row()
	if len(row) != len(TrackInfoHeader) {
		t.Fatalf("width: got %d, want %d", len(row), len(TrackInfoHeader))
	}
	for i := 7; i < len(row); i++ {
		if row[i] != "" {
			t.Errorf("column %s: got %q, want empty", TrackInfoHeader[i], row[i])
		}
	}

	back, err := ParseTrackInfo(row)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if back.Features != nil {
		t.Error("features should stay nil")
	}
}

func TestTrackRowWithFeatures(t *testing.T) {
	tr := TrackInfo{
		ID: "t1", Name: "xtal", Artists: "a1", ReleaseDate: "1992",
		Features: &AudioFeatures{Acousticness: 0.5, Loudness: -1, Tempo: 120.5, Key: 7, Mode: 1, TimeSignature: 4},
	}
	back, err := ParseTrackInfo(tr.Row())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(back.Features, tr.Features) {
		t.Errorf("features: got %+v, want %+v", back.Features, tr.Features)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		feature string
		v       float64
		want    float64
		ok      bool
	}{
		{"loudness", -30, 0.5, true},
		{"loudness", 5, 1, true},
		{"tempo", 250, 1, true},
		{"tempo", -3, 0, true},
		{"popularity", 25, 0.25, true},
		{"unknown", 1, 0, false},
	}
	for _, tt := range tests {
		got, ok := Normalize(tt.feature, tt.v)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Normalize(%q, %v) = %v, %v; want %v, %v", tt.feature, tt.v, got, ok, tt.want, tt.ok)
		}
	}
}

func TestOutOfRange(t *testing.T) {
	f := AudioFeatures{Loudness: 3, Tempo: 120, Key: 12, TimeSignature: 4}
	got := f.OutOfRange()
	want := []string{"loudness", "musicalkey"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("OutOfRange: got %v, want %v", got, want)
	}
}

func TestCohortShare(t *testing.T) {
	r := &CohortReport{Releases: 8}
	if got := r.Share(2); got != 25 {
		t.Errorf("Share: got %v, want 25", got)
	}
	if got := (&CohortReport{}).Share(2); got != 0 {
		t.Errorf("Share on empty: got %v, want 0", got)
	}
}

func TestPopularitySampleRow(t *testing.T) {
	s := PopularitySample{Query: `artist:""`, Offset: 30, ID: "a1", Name: "x", Popularity: 12}
	row := s.Row()
	if row[0] != `artist:""@30` {
		t.Errorf("key: got %q", row[0])
	}
	back, err := ParsePopularitySample(row)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if back != s {
		t.Errorf("got %+v, want %+v", back, s)
	}

	missing, err := ParsePopularitySample(MissingSample("q", 990).Row())
	if err != nil {
		t.Fatalf("parse sentinel: %v", err)
	}
	if missing.Popularity != Missing || missing.ID != MissingMarker {
		t.Errorf("sentinel: got %+v", missing)
	}
}

func TestPlaylistArtistRowIsUTC(t *testing.T) {
	added := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	row := PlaylistArtist{ArtistID: "a1", TrackID: "t1", Playlist: "Fresh Finds", AddedAt: added}.Row()
	if row[3] != "2024-05-01T10:00:00Z" {
		t.Errorf("added_at: got %q", row[3])
	}
	if len(row) != len(PlaylistArtistHeader) {
		t.Errorf("width: got %d", len(row))
	}
}
