package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"artist-census/catalog"
	"artist-census/config"
	"artist-census/fetcher"
	"artist-census/models"
	"artist-census/pipeline"
	"artist-census/scraper/musicbrainz"
	"artist-census/scraper/spotifyweb"
	"artist-census/services"
	"artist-census/storage"
	"artist-census/utils"
)

const (
	exitOK        = 0
	exitFailure   = 1
	exitUsage     = 2
	exitQuota     = 3
	exitIntegrity = 4
)

const usage = `usage: artist-census <command> [flags]

commands:
  names              ingest artist names from MusicBrainz (-offset, -n)
  resolve            sample names and resolve them to catalog IDs (-n, -seed)
  deep               retry missing names with the full search window (-n)
  artists            collect artist info for resolved IDs (-n)
  random-tracks      draw one random track per artist (-n, -seed)
  tracks             collect track info and audio features (-n)
  listeners          scrape monthly listeners (-n)
  bio-genres         search artist bios for genres (-n)
  playlists          list the editorial account's public playlists
  playlist-artists   collect artists recently added to editorial playlists (-n, -seed)
  editorial-artists  collect artist info for playlist artists (-n)
  offsets            sample popularity by search offset (-q, -samples, -max-offset)
  classify           print activity cohorts (-year, -preset, -strict, -db, -editorial)
  export             replace the PostgreSQL tables with the ledgers
  verify             check ledger integrity
`

// writing commands hold the ledger lock
var writing = map[string]bool{
	"names": true, "resolve": true, "deep": true, "artists": true,
	"random-tracks": true, "tracks": true, "listeners": true, "bio-genres": true,
	"playlists": true, "playlist-artists": true, "editorial-artists": true, "offsets": true,
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return exitUsage
	}
	cmd := args[0]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return exitUsage
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	n := fs.Int("n", cfg.SampleSize, "number of items to process (0 = all pending)")
	seed := fs.Int64("seed", cfg.RandomSeed, "random seed")
	offset := fs.Int("offset", 0, "upstream catalog offset")
	year := fs.Int("year", cfg.Year(), "reference year")
	preset := fs.String("preset", cfg.ClassifierPreset, "classifier rule preset (r0, r1, r2)")
	strict := fs.Bool("strict", false, "strict activity thresholds")
	fromDB := fs.Bool("db", false, "classify the exported PostgreSQL table")
	editorial := fs.Bool("editorial", false, "classify the editorial playlist artists")
	query := fs.String("q", cfg.PopularityQuery, "search query to sample")
	samples := fs.Int("samples", 100, "number of offsets to sample")
	maxOffset := fs.Int("max-offset", catalog.MaxSearchWindow, "sample offsets below this one")
	if err := fs.Parse(args[1:]); err != nil {
		return exitUsage
	}

	runID := uuid.NewString()
	logger := utils.NewLoggerLevel(cfg.LogLevel).With("run_id", runID)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("=== artist-census %s starting ===", cmd)

	if writing[cmd] {
		lock, err := storage.AcquireLock(cfg.Path(cfg.LockFile), runID)
		if err != nil {
			logger.Error("%v", err)
			return exitFailure
		}
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Warn("%v", err)
			}
		}()
	}

	store, err := storage.OpenStore(pipeline.StorePaths(cfg), logger)
	if err != nil {
		return exitCode(logger, err)
	}

	cooldown := &utils.Cooldown{Display: cfg.Progress}
	deps := pipeline.Deps{
		Config: cfg,
		Store:  store,
		Sleep:  cooldown.Sleep,
		Logger: logger,
	}

	switch cmd {
	case "resolve", "deep", "artists", "random-tracks", "tracks",
		"playlists", "playlist-artists", "editorial-artists", "offsets":
		deps.Catalog = catalog.New(ctx, catalog.Config{
			BaseURL:      cfg.APIBaseURL,
			TokenURL:     cfg.TokenURL,
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
		}, logger)
	case "listeners", "bio-genres":
		web := spotifyweb.New(spotifyweb.Options{
			ChromeBin:   cfg.ChromeBin,
			RateLimitMs: cfg.ScrapeRateMs,
			MaxRetries:  cfg.MaxRetries,
		}, logger)
		defer web.Close()
		deps.Pages = web
	case "names":
		deps.Names = musicbrainz.New(musicbrainz.Options{
			BaseURL:     cfg.MusicBrainzBaseURL,
			UserAgent:   cfg.MusicBrainzUserAgent,
			MaxRetries:  cfg.MaxRetries,
			RateLimitMs: 1000,
		}, logger)
	case "export", "classify":
		if cmd == "export" || *fromDB {
			pg, err := storage.NewPostgresWriter(ctx, cfg.DSN())
			if err != nil {
				logger.Error("Failed to connect to PostgreSQL: %v", err)
				return exitFailure
			}
			defer pg.Close()
			deps.Exporter = pg
		}
	case "verify":
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		return exitUsage
	}

	c := pipeline.New(deps)

	var stats fetcher.Stats
	switch cmd {
	case "names":
		var added int
		added, err = c.IngestNames(ctx, *offset, *n)
		stats.Items = added
	case "resolve":
		stats, err = c.ResolveNames(ctx, *n, *seed)
	case "deep":
		stats, err = c.DeepResolve(ctx, *n)
	case "artists":
		stats, err = c.CollectArtists(ctx, *n)
	case "random-tracks":
		stats, err = c.CollectRandomTracks(ctx, *n, *seed)
	case "tracks":
		stats, err = c.CollectTracks(ctx, *n)
	case "listeners":
		stats, err = c.ScrapeListeners(ctx, *n)
	case "bio-genres":
		stats, err = c.ScrapeBioGenres(ctx, *n)
	case "playlists":
		stats, err = c.CollectPlaylists(ctx)
	case "playlist-artists":
		stats, err = c.CollectPlaylistArtists(ctx, *n, *seed)
	case "editorial-artists":
		stats, err = c.CollectEditorialArtists(ctx, *n)
	case "offsets":
		if stats, err = c.SamplePopularity(ctx, *query, *samples, *maxOffset); err == nil {
			var curve []models.PopularitySample
			if curve, err = c.PopularityCurve(*query); err == nil {
				services.PrintPopularityCurve(*query, curve, max(min(*maxOffset, catalog.MaxSearchWindow)/10, 1))
			}
		}
	case "classify":
		cls, report, cerr := c.Classify(ctx, pipeline.ClassifyOptions{
			Preset: *preset, Year: *year, Strict: *strict, FromExport: *fromDB, Editorial: *editorial,
		})
		if err = cerr; err == nil {
			cls.Print(report)
		}
	case "export":
		var exportID string
		if exportID, err = c.Export(ctx); err == nil {
			fmt.Printf("  Done. Export %s → PostgreSQL (artist_info, track_info)\n\n", exportID)
		}
	case "verify":
		err = c.Verify()
	}

	if err != nil {
		return exitCode(logger, err)
	}
	logger.Info("=== %s done: %d batches, %d items ===", cmd, stats.Batches, stats.Items)
	return exitOK
}

func exitCode(logger *utils.Logger, err error) int {
	switch {
	case errors.Is(err, fetcher.ErrQuotaExhausted):
		// already logged as critical by the fetcher
		logger.Error("Stopping: %v", err)
		return exitQuota
	case pipeline.IsIntegrity(err):
		logger.Critical("Integrity violation: %v", err)
		return exitIntegrity
	case errors.Is(err, context.Canceled):
		logger.Warn("Interrupted: %v", err)
		return exitFailure
	default:
		logger.Error("%v", err)
		return exitFailure
	}
}
