package storage

import (
	"errors"
	"fmt"

	"artist-census/models"
	"artist-census/utils"
)

// ErrDisjoint is returned when a name would sit in two name ledgers at once.
var ErrDisjoint = errors.New("store: name ledgers must stay disjoint")

// LedgerKind names one of the ledgers held by a Store.
type LedgerKind int

const (
	Resolved LedgerKind = iota
	MissingNames
	DeepMissing
	ArtistInfo
	TrackInfo
	Listeners
	RandomTracks
	BioGenres
	MissingBioGenres
	Playlists
	PlaylistArtists
	EditorialInfo
	PopularitySamples
)

func (k LedgerKind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case MissingNames:
		return "missing"
	case DeepMissing:
		return "deep-missing"
	case ArtistInfo:
		return "artist-info"
	case TrackInfo:
		return "track-info"
	case Listeners:
		return "listeners"
	case RandomTracks:
		return "random-tracks"
	case BioGenres:
		return "bio-genres"
	case MissingBioGenres:
		return "missing-bio-genres"
	case Playlists:
		return "playlists"
	case PlaylistArtists:
		return "playlist-artists"
	case EditorialInfo:
		return "editorial-info"
	case PopularitySamples:
		return "popularity-samples"
	}
	return fmt.Sprintf("ledger(%d)", int(k))
}

var (
	ResolvedHeader = []string{"names", "ids"}
	NamesHeader    = []string{"names"}
)

// Paths locates every ledger file.
type Paths struct {
	Resolved         string
	Missing          string
	DeepMissing      string
	ArtistInfo       string
	TrackInfo        string
	Listeners        string
	RandomTracks     string
	BioGenres        string
	MissingBioGenres string
	Playlists        string
	PlaylistArtists  string
	EditorialInfo    string
	Popularity       string
}

// Store owns the campaign's ledgers.
//
// Names move from the missing ledger to resolved or deep-missing, never back.
// Since ledgers are append-only, the move is logical: a name in the missing
// file that also appears in resolved or deep-missing counts as promoted.
// Under that reading the three name sets are pairwise disjoint; a name
// present in both resolved and deep-missing is an integrity violation.
type Store struct {
	ledgers map[LedgerKind]*Ledger
	logger  *utils.Logger
}

// OpenStore opens all ledgers and verifies the name ledgers are disjoint.
func OpenStore(p Paths, logger *utils.Logger) (*Store, error) {
	defs := []struct {
		kind   LedgerKind
		path   string
		header []string
	}{
		{Resolved, p.Resolved, ResolvedHeader},
		{MissingNames, p.Missing, NamesHeader},
		{DeepMissing, p.DeepMissing, NamesHeader},
		{ArtistInfo, p.ArtistInfo, models.ArtistInfoHeader},
		{TrackInfo, p.TrackInfo, models.TrackInfoHeader},
		{Listeners, p.Listeners, models.ListenersHeader},
		{RandomTracks, p.RandomTracks, models.RandomTrackHeader},
		{BioGenres, p.BioGenres, models.BioGenresHeader},
		{MissingBioGenres, p.MissingBioGenres, models.MissingBioGenresHeader},
		{Playlists, p.Playlists, models.PlaylistHeader},
		{PlaylistArtists, p.PlaylistArtists, models.PlaylistArtistHeader},
		{EditorialInfo, p.EditorialInfo, models.ArtistInfoHeader},
		{PopularitySamples, p.Popularity, models.PopularitySampleHeader},
	}

	s := &Store{ledgers: make(map[LedgerKind]*Ledger, len(defs)), logger: logger}
	for _, def := range defs {
		if def.path == "" {
			return nil, fmt.Errorf("store: no path for %s ledger", def.kind)
		}
		l, err := OpenLedger(def.path, def.header, 0)
		if err != nil {
			return nil, fmt.Errorf("store: open %s: %w", def.kind, err)
		}
		s.ledgers[def.kind] = l
		if n := l.TornBytes(); n > 0 {
			logger.Warn("[ledger] %s: ignoring %d bytes of an unterminated last row, the next append truncates them", def.kind, n)
		}
		logger.Debug("[ledger] %s: %d rows, %d keys", def.kind, l.Len(), l.KeyCount())
	}

	if err := s.CheckDisjoint(); err != nil {
		return nil, err
	}
	logger.Info("[ledger] resolved=%d missing=%d deep-missing=%d artist-info=%d track-info=%d",
		s.ledgers[Resolved].Len(), len(s.PendingMissing(0)), s.ledgers[DeepMissing].Len(),
		s.ledgers[ArtistInfo].Len(), s.ledgers[TrackInfo].Len())
	return s, nil
}

// Ledger returns the ledger of the given kind.
func (s *Store) Ledger(k LedgerKind) *Ledger {
	return s.ledgers[k]
}

// NamesAlreadyPresent returns the candidates that already have a row in ledger k.
func (s *Store) NamesAlreadyPresent(candidates []string, k LedgerKind) map[string]struct{} {
	return s.ledgers[k].Present(candidates)
}

// Known reports whether name is accounted for by any of the three name ledgers.
func (s *Store) Known(name string) bool {
	return s.ledgers[Resolved].Has(name) ||
		s.ledgers[MissingNames].Has(name) ||
		s.ledgers[DeepMissing].Has(name)
}

// RecordResolutions appends the outcome of a first-pass lookup batch.
// Every name must be new to all three name ledgers.
//
// The two ledgers are appended one after the other. If the second append
// fails, the names it carried stay unknown and are sampled again by a later
// run; no name ends up in two ledgers.
func (s *Store) RecordResolutions(resolved []models.Resolution, missing []string) error {
	batch := make(map[string]struct{}, len(resolved)+len(missing))
	check := func(name string) error {
		if _, dup := batch[name]; dup {
			return fmt.Errorf("%w: %q appears twice in one batch", ErrDisjoint, name)
		}
		batch[name] = struct{}{}
		if s.Known(name) {
			return fmt.Errorf("%w: %q is already ledgered", ErrDisjoint, name)
		}
		return nil
	}

	for _, r := range resolved {
		if err := check(r.Name); err != nil {
			return err
		}
	}
	for _, name := range missing {
		if err := check(name); err != nil {
			return err
		}
	}

	if err := s.ledgers[Resolved].Append(resolutionRows(resolved)); err != nil {
		return err
	}
	return s.ledgers[MissingNames].Append(nameRows(missing))
}

// RecordDeepResolutions appends the outcome of a deep lookup batch. Every
// name must currently be pending in the missing ledger. As with
// RecordResolutions, names whose append failed stay pending.
func (s *Store) RecordDeepResolutions(resolved []models.Resolution, deepMissing []string) error {
	batch := make(map[string]struct{}, len(resolved)+len(deepMissing))
	check := func(name string) error {
		if _, dup := batch[name]; dup {
			return fmt.Errorf("%w: %q appears twice in one batch", ErrDisjoint, name)
		}
		batch[name] = struct{}{}
		if !s.pending(name) {
			return fmt.Errorf("%w: %q is not pending in the missing ledger", ErrDisjoint, name)
		}
		return nil
	}

	for _, r := range resolved {
		if err := check(r.Name); err != nil {
			return err
		}
	}
	for _, name := range deepMissing {
		if err := check(name); err != nil {
			return err
		}
	}

	if err := s.ledgers[Resolved].Append(resolutionRows(resolved)); err != nil {
		return err
	}
	return s.ledgers[DeepMissing].Append(nameRows(deepMissing))
}

func (s *Store) pending(name string) bool {
	return s.ledgers[MissingNames].Has(name) &&
		!s.ledgers[Resolved].Has(name) &&
		!s.ledgers[DeepMissing].Has(name)
}

// PendingMissing returns missing names not yet promoted, in file order.
// limit <= 0 means no limit.
func (s *Store) PendingMissing(limit int) []string {
	var out []string
	for _, name := range s.ledgers[MissingNames].Keys() {
		if limit > 0 && len(out) == limit {
			break
		}
		if s.pending(name) {
			out = append(out, name)
		}
	}
	return out
}

// CheckDisjoint verifies the three logical name sets are pairwise disjoint.
func (s *Store) CheckDisjoint() error {
	resolved := s.ledgers[Resolved]
	for _, name := range s.ledgers[DeepMissing].Keys() {
		if resolved.Has(name) {
			return fmt.Errorf("%w: %q is both resolved and deep-missing", ErrDisjoint, name)
		}
	}
	return nil
}

// ResolvedIDs returns the distinct catalog IDs of the resolved ledger in file order.
func (s *Store) ResolvedIDs() ([]string, error) {
	seen := utils.NewKeySet()
	err := s.ledgers[Resolved].Scan(func(row []string) error {
		if row[1] != "" {
			seen.Add(row[1])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seen.Keys(), nil
}

// UnfetchedArtistIDs returns resolved IDs without an artist-info row.
func (s *Store) UnfetchedArtistIDs(limit int) ([]string, error) {
	ids, err := s.ResolvedIDs()
	if err != nil {
		return nil, err
	}
	return s.without(ids, s.ledgers[ArtistInfo], limit), nil
}

// UnfetchedTrackIDs returns sampled track IDs without a track-info row.
func (s *Store) UnfetchedTrackIDs(limit int) ([]string, error) {
	seen := utils.NewKeySet()
	err := s.ledgers[RandomTracks].Scan(func(row []string) error {
		if id := row[2]; id != "" && id != models.MissingMarker {
			seen.Add(id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.without(seen.Keys(), s.ledgers[TrackInfo], limit), nil
}

// ArtistsWithoutRandomTrack returns clean artists with releases that have
// no random-track row yet. Cleaning drops artists lacking any of required.
func (s *Store) ArtistsWithoutRandomTrack(limit int, required []string) ([]models.ArtistInfo, error) {
	clean, err := s.CleanArtists(required)
	if err != nil {
		return nil, err
	}
	var out []models.ArtistInfo
	for _, a := range clean {
		if limit > 0 && len(out) == limit {
			break
		}
		if a.NumReleases > 0 && !s.ledgers[RandomTracks].Has(a.ID) {
			out = append(out, a)
		}
	}
	return out, nil
}

// ArtistsWithoutListeners returns real artists with no listener row yet,
// census artists first and editorial artists after them.
func (s *Store) ArtistsWithoutListeners(limit int) ([]models.ArtistInfo, error) {
	census, err := s.LatestArtists()
	if err != nil {
		return nil, err
	}
	editorial, err := s.LatestEditorialArtists()
	if err != nil {
		return nil, err
	}

	seen := utils.NewKeySet()
	var out []models.ArtistInfo
	for _, a := range append(census, editorial...) {
		if limit > 0 && len(out) == limit {
			break
		}
		if !a.IsMissing() && !s.ledgers[Listeners].Has(a.ID) && seen.Add(a.ID) {
			out = append(out, a)
		}
	}
	return out, nil
}

// ArtistsWithoutGenres returns real artists whose genres are empty and whose
// bio has not been searched yet.
func (s *Store) ArtistsWithoutGenres(limit int) ([]models.ArtistInfo, error) {
	return s.artistsWhere(limit, func(a models.ArtistInfo) bool {
		return !a.IsMissing() && a.Genres == "" &&
			!s.ledgers[BioGenres].Has(a.ID) && !s.ledgers[MissingBioGenres].Has(a.ID)
	})
}

func (s *Store) artistsWhere(limit int, keep func(models.ArtistInfo) bool) ([]models.ArtistInfo, error) {
	all, err := s.LatestArtists()
	if err != nil {
		return nil, err
	}
	var out []models.ArtistInfo
	for _, a := range all {
		if limit > 0 && len(out) == limit {
			break
		}
		if keep(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) without(ids []string, l *Ledger, limit int) []string {
	var out []string
	for _, id := range ids {
		if limit > 0 && len(out) == limit {
			break
		}
		if !l.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

func resolutionRows(rs []models.Resolution) [][]string {
	rows := make([][]string, 0, len(rs))
	for _, r := range rs {
		rows = append(rows, []string{r.Name, r.ID})
	}
	return rows
}

func nameRows(names []string) [][]string {
	rows := make([][]string, 0, len(names))
	for _, n := range names {
		rows = append(rows, []string{n})
	}
	return rows
}
