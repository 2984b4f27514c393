package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"artist-census/catalog"
	"artist-census/config"
	"artist-census/fetcher"
	"artist-census/models"
	"artist-census/services"
	"artist-census/storage"
	"artist-census/utils"
)

// ErrNotConfigured means a step needs a collaborator the campaign was built without.
var ErrNotConfigured = errors.New("pipeline: collaborator not configured")

// IsIntegrity reports whether err means the ledgers or a batch are
// inconsistent, as opposed to a remote or environmental failure.
func IsIntegrity(err error) bool {
	for _, target := range []error{
		storage.ErrDisjoint,
		storage.ErrRowWidth,
		storage.ErrHeaderMismatch,
		services.ErrLengthMismatch,
		services.ErrMisaligned,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// PageScraper reads values only the public artist page shows.
type PageScraper interface {
	MonthlyListeners(ctx context.Context, artistID string) (count int, found bool, err error)
	Bio(ctx context.Context, artistID string) (string, error)
}

// NameSource pages through an upstream catalog of artist names.
type NameSource interface {
	Collect(ctx context.Context, offset, count int, sink func(names []string) error) (int, error)
}

// Deps are the collaborators of a campaign. Only Config, Store and Logger
// are required; the rest are needed by the steps that use them.
type Deps struct {
	Config   *config.Config
	Store    *storage.Store
	Catalog  catalog.Catalog
	Pages    PageScraper
	Names    NameSource
	Exporter storage.InfoExporter
	Sleep    fetcher.SleepFunc
	Now      func() time.Time
	Logger   *utils.Logger
}

// StorePaths locates every ledger under the configured output directory.
func StorePaths(cfg *config.Config) storage.Paths {
	return storage.Paths{
		Resolved:         cfg.Path(cfg.ResolvedFile),
		Missing:          cfg.Path(cfg.MissingFile),
		DeepMissing:      cfg.Path(cfg.DeepMissingFile),
		ArtistInfo:       cfg.Path(cfg.ArtistInfoFile),
		TrackInfo:        cfg.Path(cfg.TrackInfoFile),
		Listeners:        cfg.Path(cfg.ListenersFile),
		RandomTracks:     cfg.Path(cfg.RandomTracksFile),
		BioGenres:        cfg.Path(cfg.BioGenresFile),
		MissingBioGenres: cfg.Path(cfg.MissingBioGenresFile),
		Playlists:        cfg.Path(cfg.PlaylistsFile),
		PlaylistArtists:  cfg.Path(cfg.PlaylistArtistsFile),
		EditorialInfo:    cfg.Path(cfg.EditorialInfoFile),
		Popularity:       cfg.Path(cfg.PopularityFile),
	}
}

// Campaign runs the census steps against one set of ledgers.
type Campaign struct {
	Deps
	normalizer *services.Normalizer
	sampler    *services.Sampler
}

func New(d Deps) *Campaign {
	return &Campaign{
		Deps:       d,
		normalizer: services.NewNormalizer(d.Logger),
		sampler:    services.NewSampler(d.Store, d.Logger),
	}
}

func (c *Campaign) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Campaign) runner(cooldown, initialDelay time.Duration) *fetcher.Runner {
	return &fetcher.Runner{
		Timeout:      c.Config.BatchTimeout,
		Cooldown:     cooldown,
		InitialDelay: initialDelay,
		Sleep:        c.Sleep,
		Logger:       c.Logger,
	}
}

// ResolveNames samples n unseen names and looks each one up in the catalog.
func (c *Campaign) ResolveNames(ctx context.Context, n int, seed int64) (fetcher.Stats, error) {
	if c.Catalog == nil {
		return fetcher.Stats{}, fmt.Errorf("%w: catalog", ErrNotConfigured)
	}
	raw, err := storage.LoadNames(c.Config.Path(c.Config.NamesFile))
	if err != nil {
		return fetcher.Stats{}, err
	}
	names := c.normalizer.Normalize(raw)
	batch := c.sampler.Next(names, seed, n)

	resolver := fetcher.NewResolver(c.Catalog, c.Config.SearchWindow, c.Logger)
	return fetcher.Run(ctx, c.runner(c.Config.IDCooldown, 0), "resolve", batch, c.Config.IDBatchSize,
		resolver.Resolve,
		func(o fetcher.Outcome) error {
			return c.Store.RecordResolutions(o.Resolved, o.Missing)
		})
}

// DeepResolve retries up to n pending missing names with the full search
// window. Names still unmatched move to the deep-missing ledger.
func (c *Campaign) DeepResolve(ctx context.Context, n int) (fetcher.Stats, error) {
	if c.Catalog == nil {
		return fetcher.Stats{}, fmt.Errorf("%w: catalog", ErrNotConfigured)
	}
	pending := c.Store.PendingMissing(n)
	resolver := fetcher.NewResolver(c.Catalog, c.Config.DeepSearchWindow, c.Logger)
	return fetcher.Run(ctx, c.runner(c.Config.IDCooldown, 0), "deep-resolve", pending, c.Config.IDBatchSize,
		resolver.Resolve,
		func(o fetcher.Outcome) error {
			return c.Store.RecordDeepResolutions(o.Resolved, o.Missing)
		})
}

// CollectArtists fetches profile and release summary for up to n resolved
// artists without an info row.
func (c *Campaign) CollectArtists(ctx context.Context, n int) (fetcher.Stats, error) {
	if c.Catalog == nil {
		return fetcher.Stats{}, fmt.Errorf("%w: catalog", ErrNotConfigured)
	}
	ids, err := c.Store.UnfetchedArtistIDs(n)
	if err != nil {
		return fetcher.Stats{}, err
	}

	return c.collectArtistInfo(ctx, "artists", ids, c.Store.Ledger(storage.ArtistInfo))
}

func (c *Campaign) collectArtistInfo(ctx context.Context, label string, ids []string, ledger *storage.Ledger) (fetcher.Stats, error) {
	agg := services.NewArtistAggregator(c.Catalog, c.Logger)
	return fetcher.Run(ctx, c.runner(c.Config.DetailCooldown, c.Config.DetailInitialDelay), label, ids, c.Config.DetailBatchSize,
		func(ctx context.Context, batch []string) (*services.ArtistTable, error) {
			profiles, err := c.Catalog.Artists(ctx, batch)
			if err != nil {
				return nil, err
			}
			return agg.Aggregate(ctx, batch, profiles)
		},
		func(t *services.ArtistTable) error {
			return ledger.Append(t.Rows())
		})
}

// CollectRandomTracks draws one track at random from the albums and singles
// of up to n clean artists that have releases. An artist is clean when none
// of the configured required features is missing.
func (c *Campaign) CollectRandomTracks(ctx context.Context, n int, seed int64) (fetcher.Stats, error) {
	if c.Catalog == nil {
		return fetcher.Stats{}, fmt.Errorf("%w: catalog", ErrNotConfigured)
	}
	artists, err := c.Store.ArtistsWithoutRandomTrack(n, c.Config.RequiredFeatures)
	if err != nil {
		return fetcher.Stats{}, err
	}

	rng := rand.New(rand.NewSource(seed))
	ledger := c.Store.Ledger(storage.RandomTracks)
	return fetcher.Run(ctx, c.runner(c.Config.DetailCooldown, 0), "random-tracks", artists, c.Config.DetailBatchSize,
		func(ctx context.Context, batch []models.ArtistInfo) ([][]string, error) {
			rows := make([][]string, 0, len(batch))
			for _, a := range batch {
				pick, err := c.randomTrack(ctx, rng, a)
				if err != nil {
					return nil, err
				}
				rows = append(rows, pick.Row())
			}
			return rows, nil
		},
		ledger.Append)
}

func (c *Campaign) randomTrack(ctx context.Context, rng *rand.Rand, a models.ArtistInfo) (models.RandomTrack, error) {
	pick := models.RandomTrack{ArtistID: a.ID, Name: a.Name, TrackID: models.MissingMarker}

	releases, err := c.Catalog.Releases(ctx, a.ID)
	if err != nil {
		return pick, fmt.Errorf("releases of %s: %w", a.ID, err)
	}
	var eligible []catalog.Album
	for _, r := range releases {
		switch strings.ToLower(r.AlbumType) {
		case "album", "single":
			eligible = append(eligible, r)
		}
	}
	if len(eligible) == 0 {
		return pick, nil
	}

	album := eligible[rng.Intn(len(eligible))]
	tracks, err := c.Catalog.AlbumTracks(ctx, album.ID)
	if err != nil {
		return pick, fmt.Errorf("tracks of album %s: %w", album.ID, err)
	}
	if len(tracks) > 0 {
		pick.TrackID = tracks[rng.Intn(len(tracks))].ID
	}
	return pick, nil
}

// CollectTracks fetches details and audio features for up to n sampled
// tracks without an info row.
func (c *Campaign) CollectTracks(ctx context.Context, n int) (fetcher.Stats, error) {
	if c.Catalog == nil {
		return fetcher.Stats{}, fmt.Errorf("%w: catalog", ErrNotConfigured)
	}
	ids, err := c.Store.UnfetchedTrackIDs(n)
	if err != nil {
		return fetcher.Stats{}, err
	}

	agg := services.NewTrackAggregator(c.Logger)
	ledger := c.Store.Ledger(storage.TrackInfo)
	size := min(c.Config.DetailBatchSize, catalog.MaxIDsPerRequest)
	return fetcher.Run(ctx, c.runner(c.Config.DetailCooldown, c.Config.DetailInitialDelay), "tracks", ids, size,
		func(ctx context.Context, batch []string) (*services.TrackTable, error) {
			tracks, err := c.Catalog.Tracks(ctx, batch)
			if err != nil {
				return nil, err
			}
			features, err := c.Catalog.AudioFeatures(ctx, batch)
			if err != nil {
				return nil, err
			}
			return agg.Aggregate(batch, tracks, features)
		},
		func(t *services.TrackTable) error {
			return ledger.Append(t.Rows())
		})
}

// ScrapeListeners reads the monthly listener count of up to n artists. A
// page without a count records 0; a page that fails to load records Missing.
func (c *Campaign) ScrapeListeners(ctx context.Context, n int) (fetcher.Stats, error) {
	if c.Pages == nil {
		return fetcher.Stats{}, fmt.Errorf("%w: page scraper", ErrNotConfigured)
	}
	artists, err := c.Store.ArtistsWithoutListeners(n)
	if err != nil {
		return fetcher.Stats{}, err
	}

	ledger := c.Store.Ledger(storage.Listeners)
	return fetcher.Run(ctx, c.runner(c.Config.ScrapeCooldown, 0), "listeners", artists, c.Config.ScrapeBatchSize,
		func(ctx context.Context, batch []models.ArtistInfo) ([][]string, error) {
			rows := make([][]string, 0, len(batch))
			for _, a := range batch {
				l := models.Listeners{ID: a.ID}
				count, _, err := c.Pages.MonthlyListeners(ctx, a.ID)
				switch {
				case ctx.Err() != nil:
					return nil, ctx.Err()
				case err != nil:
					c.Logger.Warn("[listeners] %s (%s): %v", a.Name, a.ID, err)
					l.Count = models.Missing
				default:
					l.Count = count
				}
				rows = append(rows, l.Row())
			}
			return rows, nil
		},
		ledger.Append)
}

type bioBatch struct {
	found   [][]string
	missing [][]string
}

// ScrapeBioGenres searches the bios of up to n artists without catalog
// genres for the configured genre keywords.
func (c *Campaign) ScrapeBioGenres(ctx context.Context, n int) (fetcher.Stats, error) {
	if c.Pages == nil {
		return fetcher.Stats{}, fmt.Errorf("%w: page scraper", ErrNotConfigured)
	}
	artists, err := c.Store.ArtistsWithoutGenres(n)
	if err != nil {
		return fetcher.Stats{}, err
	}

	keywords := c.Config.GenresToFind
	if len(keywords) == 0 {
		keywords = config.DefaultGenres
	}
	found := c.Store.Ledger(storage.BioGenres)
	missing := c.Store.Ledger(storage.MissingBioGenres)

	return fetcher.Run(ctx, c.runner(c.Config.BioCooldown, 0), "bio-genres", artists, c.Config.ScrapeBatchSize,
		func(ctx context.Context, batch []models.ArtistInfo) (bioBatch, error) {
			var out bioBatch
			for _, a := range batch {
				bio, err := c.Pages.Bio(ctx, a.ID)
				if ctx.Err() != nil {
					return bioBatch{}, ctx.Err()
				}
				if err != nil {
					// left unrecorded so a later run tries again
					c.Logger.Warn("[bio-genres] %s (%s): %v", a.Name, a.ID, err)
					continue
				}
				if genres := services.FindGenres(bio, keywords); len(genres) > 0 {
					out.found = append(out.found, models.BioGenres{ID: a.ID, Name: a.Name, Genres: strings.Join(genres, ",")}.Row())
				} else {
					out.missing = append(out.missing, []string{a.ID})
				}
			}
			return out, nil
		},
		func(b bioBatch) error {
			if err := found.Append(b.found); err != nil {
				return err
			}
			return missing.Append(b.missing)
		})
}

// ClassifyOptions selects the rule preset and reference year.
type ClassifyOptions struct {
	Preset string
	Year   int
	Strict bool
	// FromExport reads the records back from the export database instead
	// of the ledgers.
	FromExport bool
	// Editorial classifies the playlist artists instead of the census.
	Editorial bool
}

// Classify partitions the deduplicated artist records into cohorts.
func (c *Campaign) Classify(ctx context.Context, opts ClassifyOptions) (*services.Classifier, *models.CohortReport, error) {
	rules, err := services.PresetRules(opts.Preset)
	if err != nil {
		return nil, nil, err
	}

	var records []models.ArtistInfo
	if opts.FromExport {
		if c.Exporter == nil {
			return nil, nil, fmt.Errorf("%w: exporter", ErrNotConfigured)
		}
		records, err = c.Exporter.FetchArtists(ctx)
	} else if opts.Editorial {
		records, err = c.Store.EditorialArtists()
	} else {
		records, err = c.Store.Artists()
	}
	if err != nil {
		return nil, nil, err
	}

	cls := services.NewClassifier(rules, opts.Year, c.Logger)
	return cls, cls.Report(records, opts.Strict), nil
}

// Export replaces the export tables with the deduplicated ledgers and
// returns the export ID.
func (c *Campaign) Export(ctx context.Context) (string, error) {
	if c.Exporter == nil {
		return "", fmt.Errorf("%w: exporter", ErrNotConfigured)
	}
	artists, err := c.Store.Artists()
	if err != nil {
		return "", err
	}
	tracks, err := c.Store.LatestTracks()
	if err != nil {
		return "", err
	}

	exportID := uuid.NewString()
	if err := c.Exporter.ReplaceArtists(ctx, exportID, artists); err != nil {
		return "", err
	}
	if err := c.Exporter.ReplaceTracks(ctx, exportID, tracks); err != nil {
		return "", err
	}
	c.Logger.Info("[export] %s: %d artists, %d tracks", exportID, len(artists), len(tracks))
	return exportID, nil
}

// IngestNames appends up to count upstream names, starting at offset, to
// the name source. count <= 0 ingests to the end of the upstream catalog.
// Names already in the file are skipped.
func (c *Campaign) IngestNames(ctx context.Context, offset, count int) (int, error) {
	if c.Names == nil {
		return 0, fmt.Errorf("%w: name source", ErrNotConfigured)
	}
	ledger, err := storage.OpenLedger(c.Config.Path(c.Config.NamesFile), storage.NameSourceHeader, 0)
	if err != nil {
		return 0, err
	}

	added := 0
	_, err = c.Names.Collect(ctx, offset, count, func(names []string) error {
		seen := utils.NewKeySet()
		rows := make([][]string, 0, len(names))
		for _, name := range names {
			if ledger.Has(name) || !seen.Add(name) {
				continue
			}
			rows = append(rows, []string{name})
		}
		if err := ledger.Append(rows); err != nil {
			return err
		}
		added += len(rows)
		return nil
	})
	c.Logger.Info("[names] %d new names, %d in %s", added, ledger.Len(), ledger.Path())
	return added, err
}

// Verify re-checks every ledger: the name sets are disjoint and every info
// row parses.
func (c *Campaign) Verify() error {
	if err := c.Store.CheckDisjoint(); err != nil {
		return err
	}
	artists, err := c.Store.LatestArtists()
	if err != nil {
		return fmt.Errorf("artist info: %w", err)
	}
	tracks, err := c.Store.LatestTracks()
	if err != nil {
		return fmt.Errorf("track info: %w", err)
	}
	c.Logger.Info("[verify] ok: %d resolved, %d pending missing, %d deep-missing, %d artists, %d tracks",
		c.Store.Ledger(storage.Resolved).Len(), len(c.Store.PendingMissing(0)),
		c.Store.Ledger(storage.DeepMissing).Len(), len(artists), len(tracks))
	return nil
}
