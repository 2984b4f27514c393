package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"artist-census/models"
)

// Config holds all application configuration loaded from environment variables,
// optionally overlaid by a TOML campaign file.
type Config struct {
	SpotifyClientID     string
	SpotifyClientSecret string
	APIBaseURL          string
	TokenURL            string

	OutputDir            string
	NamesFile            string
	ResolvedFile         string
	MissingFile          string
	DeepMissingFile      string
	ArtistInfoFile       string
	TrackInfoFile        string
	ListenersFile        string
	RandomTracksFile     string
	BioGenresFile        string
	MissingBioGenresFile string
	PlaylistsFile        string
	PlaylistArtistsFile  string
	EditorialInfoFile    string
	PopularityFile       string
	LockFile             string

	BatchTimeout       time.Duration
	IDCooldown         time.Duration
	DetailInitialDelay time.Duration
	DetailCooldown     time.Duration
	ScrapeCooldown     time.Duration
	BioCooldown        time.Duration

	IDBatchSize      int
	DetailBatchSize  int
	ScrapeBatchSize  int
	SearchWindow     int
	DeepSearchWindow int

	SampleSize       int
	RandomSeed       int64
	CurrentYear      int
	ClassifierPreset string
	GenresToFind     []string
	RequiredFeatures []string

	PlaylistOwner     string
	PlaylistWindow    time.Duration
	PlaylistBatchSize int
	PlaylistSkipWords []string
	PopularityQuery   string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	ChromeBin            string
	ScrapeRateMs         int
	MaxRetries           int
	MusicBrainzBaseURL   string
	MusicBrainzUserAgent string

	Progress bool
	LogLevel string
}

// campaignFile is the TOML overlay. Zero values leave the env-derived setting alone.
type campaignFile struct {
	OutputDir string `toml:"output_dir"`
	Files     struct {
		Names            string `toml:"names"`
		Resolved         string `toml:"resolved"`
		Missing          string `toml:"missing"`
		DeepMissing      string `toml:"deep_missing"`
		ArtistInfo       string `toml:"artist_info"`
		TrackInfo        string `toml:"track_info"`
		Listeners        string `toml:"listeners"`
		RandomTracks     string `toml:"random_tracks"`
		BioGenres        string `toml:"bio_genres"`
		MissingBioGenres string `toml:"missing_bio_genres"`
		Playlists        string `toml:"playlists"`
		PlaylistArtists  string `toml:"playlist_artists"`
		EditorialInfo    string `toml:"editorial_info"`
		Popularity       string `toml:"popularity"`
	} `toml:"files"`
	Sample struct {
		Size int   `toml:"size"`
		Seed int64 `toml:"seed"`
	} `toml:"sample"`
	Classifier struct {
		Preset string `toml:"preset"`
		Year   int    `toml:"year"`
	} `toml:"classifier"`
	GenresToFind     []string `toml:"genres_to_find"`
	RequiredFeatures []string `toml:"required_features"`
	Playlists        struct {
		Owner     string   `toml:"owner"`
		Window    string   `toml:"window"`
		SkipWords []string `toml:"skip_words"`
	} `toml:"playlists"`
}

// DefaultGenres are searched for in artist bios when the catalog lists none.
var DefaultGenres = []string{
	"classical", "ambient", "blues", "christian", "dance", "hip hop", "indie",
	"reggae", "singer-songwriter", "country", "metal", "jazz", "soul",
	"goth", "electro", "house", "tech", "rock", "rap", "traditional", "americana",
	"funk", "drone", "edm", "folk", "lo fi", "punk", "pop", "new wave",
	"grindcore", "gospel", "latin", "dubstep", "choral", "orchestral", "opera", "choir",
	"baroque", "renaissance", "medieval", "romantic", "modern", "contemporary",
}

// DefaultRequiredFeatures must all be present before an artist's tracks are sampled.
var DefaultRequiredFeatures = []string{
	"popularity", "followers", "first_release", "last_release",
	"num_releases", "num_tracks", "monthly_listeners",
}

// DefaultSkipWords exclude compilation playlists from the editorial scan.
var DefaultSkipWords = []string{"This Is", "Hits", "hits", "Top", "top", "Official", "official"}

// Load reads the .env file, the environment and the optional campaign file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		SpotifyClientID:     getEnv("SPOTIFY_CLIENT_ID", ""),
		SpotifyClientSecret: getEnv("SPOTIFY_CLIENT_SECRET", ""),
		APIBaseURL:          getEnv("API_BASE_URL", "https://api.spotify.com/v1"),
		TokenURL:            getEnv("TOKEN_URL", ""),

		OutputDir:            getEnv("OUTPUT_DIR", "./output"),
		NamesFile:            getEnv("NAMES_FILE", "all_artist_names.csv"),
		ResolvedFile:         getEnv("RESOLVED_FILE", "artist_ids.csv"),
		MissingFile:          getEnv("MISSING_FILE", "missing_names.csv"),
		DeepMissingFile:      getEnv("DEEP_MISSING_FILE", "deep_missing_names.csv"),
		ArtistInfoFile:       getEnv("ARTIST_INFO_FILE", "Spotify_artist_info.csv"),
		TrackInfoFile:        getEnv("TRACK_INFO_FILE", "Spotify_track_info.csv"),
		ListenersFile:        getEnv("LISTENERS_FILE", "Spotify_artist_listeners.csv"),
		RandomTracksFile:     getEnv("RANDOM_TRACKS_FILE", "Spotify_artist_random_track_ids.csv"),
		BioGenresFile:        getEnv("BIO_GENRES_FILE", "Spotify_bio_genres.csv"),
		MissingBioGenresFile: getEnv("MISSING_BIO_GENRES_FILE", "Spotify_missing_bio_genres.csv"),
		PlaylistsFile:        getEnv("PLAYLISTS_FILE", "Editorial_playlists.csv"),
		PlaylistArtistsFile:  getEnv("PLAYLIST_ARTISTS_FILE", "Editorial_playlist_artists.csv"),
		EditorialInfoFile:    getEnv("EDITORIAL_INFO_FILE", "Editorial_artist_info.csv"),
		PopularityFile:       getEnv("POPULARITY_FILE", "Spotify_popularity_vs_offset.csv"),
		LockFile:             getEnv("LOCK_FILE", ".census.lock"),

		BatchTimeout:       getEnvDuration("BATCH_TIMEOUT", 600*time.Second),
		IDCooldown:         getEnvDuration("ID_COOLDOWN", 30*time.Second),
		DetailInitialDelay: getEnvDuration("DETAIL_INITIAL_DELAY", 60*time.Second),
		DetailCooldown:     getEnvDuration("DETAIL_COOLDOWN", 30*time.Second),
		ScrapeCooldown:     getEnvDuration("SCRAPE_COOLDOWN", 30*time.Second),
		BioCooldown:        getEnvDuration("BIO_COOLDOWN", 10*time.Second),

		IDBatchSize:      getEnvInt("ID_BATCH_SIZE", 100),
		DetailBatchSize:  getEnvInt("DETAIL_BATCH_SIZE", 50),
		ScrapeBatchSize:  getEnvInt("SCRAPE_BATCH_SIZE", 100),
		SearchWindow:     getEnvInt("SEARCH_WINDOW", 10),
		DeepSearchWindow: getEnvInt("DEEP_SEARCH_WINDOW", 1000),

		SampleSize:       getEnvInt("SAMPLE_SIZE", 1000),
		RandomSeed:       int64(getEnvInt("RANDOM_SEED", 42)),
		CurrentYear:      getEnvInt("CURRENT_YEAR", 0),
		ClassifierPreset: getEnv("CLASSIFIER_PRESET", "r1"),
		GenresToFind:     DefaultGenres,
		RequiredFeatures: getEnvList("REQUIRED_FEATURES", DefaultRequiredFeatures),

		PlaylistOwner:     getEnv("PLAYLIST_OWNER", "spotify"),
		PlaylistWindow:    getEnvDuration("PLAYLIST_WINDOW", 24*time.Hour),
		PlaylistBatchSize: getEnvInt("PLAYLIST_BATCH_SIZE", 10),
		PlaylistSkipWords: DefaultSkipWords,
		PopularityQuery:   getEnv("POPULARITY_QUERY", `artist:""`),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "census"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "census123"),
		PostgresDB:       getEnv("POSTGRES_DB", "artist_census"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		ChromeBin:            getEnv("CHROME_BIN", ""),
		ScrapeRateMs:         getEnvInt("SCRAPE_RATE_MS", 2000),
		MaxRetries:           getEnvInt("MAX_RETRIES", 3),
		MusicBrainzBaseURL:   getEnv("MUSICBRAINZ_BASE_URL", "https://musicbrainz.org"),
		MusicBrainzUserAgent: getEnv("MUSICBRAINZ_USER_AGENT", "artist-census/1.0 (census@example.org)"),

		Progress: getEnvBool("PROGRESS", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	path := os.Getenv("CAMPAIGN_FILE")
	if path == "" {
		if _, err := os.Stat("campaign.toml"); err == nil {
			path = "campaign.toml"
		}
	}
	if path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read campaign file: %w", err)
	}
	var f campaignFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("config: parse campaign file %q: %w", path, err)
	}

	setString(&c.OutputDir, f.OutputDir)
	setString(&c.NamesFile, f.Files.Names)
	setString(&c.ResolvedFile, f.Files.Resolved)
	setString(&c.MissingFile, f.Files.Missing)
	setString(&c.DeepMissingFile, f.Files.DeepMissing)
	setString(&c.ArtistInfoFile, f.Files.ArtistInfo)
	setString(&c.TrackInfoFile, f.Files.TrackInfo)
	setString(&c.ListenersFile, f.Files.Listeners)
	setString(&c.RandomTracksFile, f.Files.RandomTracks)
	setString(&c.BioGenresFile, f.Files.BioGenres)
	setString(&c.MissingBioGenresFile, f.Files.MissingBioGenres)
	setString(&c.PlaylistsFile, f.Files.Playlists)
	setString(&c.PlaylistArtistsFile, f.Files.PlaylistArtists)
	setString(&c.EditorialInfoFile, f.Files.EditorialInfo)
	setString(&c.PopularityFile, f.Files.Popularity)
	setString(&c.ClassifierPreset, f.Classifier.Preset)
	setString(&c.PlaylistOwner, f.Playlists.Owner)

	if f.Sample.Size > 0 {
		c.SampleSize = f.Sample.Size
	}
	if f.Sample.Seed != 0 {
		c.RandomSeed = f.Sample.Seed
	}
	if f.Classifier.Year > 0 {
		c.CurrentYear = f.Classifier.Year
	}
	if len(f.GenresToFind) > 0 {
		genres := make([]string, 0, len(f.GenresToFind))
		for _, g := range f.GenresToFind {
			if g = strings.ToLower(strings.TrimSpace(g)); g != "" {
				genres = append(genres, g)
			}
		}
		c.GenresToFind = genres
	}
	if f.RequiredFeatures != nil {
		c.RequiredFeatures = trimAll(f.RequiredFeatures)
	}
	if len(f.Playlists.SkipWords) > 0 {
		c.PlaylistSkipWords = trimAll(f.Playlists.SkipWords)
	}
	if f.Playlists.Window != "" {
		d, err := time.ParseDuration(f.Playlists.Window)
		if err != nil {
			return fmt.Errorf("config: playlists.window in %q: %w", path, err)
		}
		c.PlaylistWindow = d
	}
	return nil
}

// Validate rejects settings the catalog API or the classifier cannot accept.
func (c *Config) Validate() error {
	var errs []error
	if c.IDBatchSize < 1 || c.IDBatchSize > 100 {
		errs = append(errs, fmt.Errorf("ID_BATCH_SIZE must be in [1,100], got %d", c.IDBatchSize))
	}
	if c.DetailBatchSize < 1 || c.DetailBatchSize > 50 {
		errs = append(errs, fmt.Errorf("DETAIL_BATCH_SIZE must be in [1,50], got %d", c.DetailBatchSize))
	}
	if c.ScrapeBatchSize < 1 {
		errs = append(errs, fmt.Errorf("SCRAPE_BATCH_SIZE must be positive, got %d", c.ScrapeBatchSize))
	}
	if c.SearchWindow < 1 || c.SearchWindow > 1000 {
		errs = append(errs, fmt.Errorf("SEARCH_WINDOW must be in [1,1000], got %d", c.SearchWindow))
	}
	if c.DeepSearchWindow < 1 || c.DeepSearchWindow > 1000 {
		errs = append(errs, fmt.Errorf("DEEP_SEARCH_WINDOW must be in [1,1000], got %d", c.DeepSearchWindow))
	}
	if c.BatchTimeout < 0 {
		errs = append(errs, fmt.Errorf("BATCH_TIMEOUT must not be negative"))
	}
	switch c.ClassifierPreset {
	case "r0", "r1", "r2":
	default:
		errs = append(errs, fmt.Errorf("CLASSIFIER_PRESET must be r0, r1 or r2, got %q", c.ClassifierPreset))
	}
	if err := models.CheckFeatures(c.RequiredFeatures); err != nil {
		errs = append(errs, fmt.Errorf("REQUIRED_FEATURES: %w", err))
	}
	if c.PlaylistBatchSize < 1 {
		errs = append(errs, fmt.Errorf("PLAYLIST_BATCH_SIZE must be positive, got %d", c.PlaylistBatchSize))
	}
	if c.PlaylistWindow <= 0 {
		errs = append(errs, fmt.Errorf("PLAYLIST_WINDOW must be positive, got %s", c.PlaylistWindow))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Path joins name onto the output directory.
func (c *Config) Path(name string) string {
	return filepath.Join(c.OutputDir, name)
}

// Year returns the configured reference year, or the current one.
func (c *Config) Year() int {
	if c.CurrentYear > 0 {
		return c.CurrentYear
	}
	return time.Now().Year()
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

// getEnvList splits a comma-separated value. A set but blank value yields
// an empty list.
func getEnvList(key string, fallback []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return trimAll(strings.Split(val, ","))
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
