package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"artist-census/models"
)

// PostgresWriter mirrors the deduplicated info ledgers into PostgreSQL for
// downstream analysis. The CSV ledgers remain the source of truth; every
// export replaces the tables wholesale.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(ctx context.Context, dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("postgres: ping: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS artist_info (
			id            TEXT PRIMARY KEY,
			name          TEXT    NOT NULL,
			popularity    INTEGER NOT NULL,
			followers     INTEGER NOT NULL,
			genres        TEXT    NOT NULL DEFAULT '',
			first_release INTEGER NOT NULL,
			last_release  INTEGER NOT NULL,
			num_releases  INTEGER NOT NULL,
			num_tracks    INTEGER NOT NULL,
			export_id     UUID    NOT NULL
		);

		CREATE TABLE IF NOT EXISTS track_info (
			id               TEXT PRIMARY KEY,
			name             TEXT    NOT NULL,
			popularity       INTEGER NOT NULL,
			markets          INTEGER NOT NULL,
			artists          TEXT    NOT NULL,
			release_date     TEXT    NOT NULL,
			duration_ms      INTEGER NOT NULL,
			acousticness     DOUBLE PRECISION,
			danceability     DOUBLE PRECISION,
			energy           DOUBLE PRECISION,
			instrumentalness DOUBLE PRECISION,
			liveness         DOUBLE PRECISION,
			loudness         DOUBLE PRECISION,
			speechiness      DOUBLE PRECISION,
			tempo            DOUBLE PRECISION,
			valence          DOUBLE PRECISION,
			musical_key      INTEGER,
			musical_mode     INTEGER,
			time_signature   INTEGER,
			export_id        UUID    NOT NULL
		);

		ALTER TABLE artist_info ADD COLUMN IF NOT EXISTS monthly_listeners INTEGER NOT NULL DEFAULT -1;

		CREATE INDEX IF NOT EXISTS idx_artist_info_last_release ON artist_info(last_release);
		CREATE INDEX IF NOT EXISTS idx_artist_info_popularity   ON artist_info(popularity);
	`)
	return err
}

var artistColumns = []string{
	"id", "name", "popularity", "followers", "genres",
	"first_release", "last_release", "num_releases", "num_tracks", "monthly_listeners", "export_id",
}

var trackColumns = []string{
	"id", "name", "popularity", "markets", "artists", "release_date", "duration_ms",
	"acousticness", "danceability", "energy", "instrumentalness", "liveness",
	"loudness", "speechiness", "tempo", "valence",
	"musical_key", "musical_mode", "time_signature", "export_id",
}

const insertBatchSize = 50

// ReplaceArtists swaps the artist_info table contents for records in one transaction.
func (pw *PostgresWriter) ReplaceArtists(ctx context.Context, exportID string, records []models.ArtistInfo) error {
	args := make([][]any, 0, len(records))
	for _, a := range records {
		args = append(args, artistArgs(exportID, a))
	}
	return pw.replace(ctx, "artist_info", artistColumns, args)
}

// artistArgs renders a in artistColumns order.
func artistArgs(exportID string, a models.ArtistInfo) []any {
	return []any{
		a.ID, a.Name, a.Popularity, a.Followers, a.Genres,
		a.FirstRelease, a.LastRelease, a.NumReleases, a.NumTracks, a.MonthlyListeners, exportID,
	}
}

// ReplaceTracks swaps the track_info table contents for records in one transaction.
func (pw *PostgresWriter) ReplaceTracks(ctx context.Context, exportID string, records []models.TrackInfo) error {
	args := make([][]any, 0, len(records))
	for _, t := range records {
		row := []any{t.ID, t.Name, t.Popularity, t.Markets, t.Artists, t.ReleaseDate, t.DurationMS}
		row = append(row, featureArgs(t.Features)...)
		args = append(args, append(row, exportID))
	}
	return pw.replace(ctx, "track_info", trackColumns, args)
}

func featureArgs(f *models.AudioFeatures) []any {
	if f == nil {
		return make([]any, 12)
	}
	return []any{
		f.Acousticness, f.Danceability, f.Energy, f.Instrumentalness, f.Liveness,
		f.Loudness, f.Speechiness, f.Tempo, f.Valence,
		f.Key, f.Mode, f.TimeSignature,
	}
}

func (pw *PostgresWriter) replace(ctx context.Context, table string, columns []string, rows [][]any) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("postgres: clear %s: %w", table, err)
	}

	for i := 0; i < len(rows); i += insertBatchSize {
		end := min(i+insertBatchSize, len(rows))
		batch := rows[i:end]

		query := buildInsert(table, columns, len(batch))
		flat := make([]any, 0, len(batch)*len(columns))
		for _, r := range batch {
			flat = append(flat, r...)
		}
		if _, err := tx.ExecContext(ctx, query, flat...); err != nil {
			return fmt.Errorf("postgres: insert into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit %s: %w", table, err)
	}
	return nil
}

// buildInsert renders a multi-row INSERT with $n placeholders.
func buildInsert(table string, columns []string, rows int) string {
	valueStrings := make([]string, 0, rows)
	n := 1
	for r := 0; r < rows; r++ {
		ph := make([]string, len(columns))
		for c := range columns {
			ph[c] = fmt.Sprintf("$%d", n)
			n++
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON CONFLICT (id) DO NOTHING",
		table, strings.Join(columns, ", "), strings.Join(valueStrings, ","))
}

// FetchArtists reads the exported artist records back, used by classify -db.
func (pw *PostgresWriter) FetchArtists(ctx context.Context) ([]models.ArtistInfo, error) {
	rows, err := pw.db.QueryContext(ctx, `
		SELECT id, name, popularity, followers, genres,
		       first_release, last_release, num_releases, num_tracks, monthly_listeners
		FROM artist_info
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch artists: %w", err)
	}
	defer rows.Close()

	var out []models.ArtistInfo
	for rows.Next() {
		var a models.ArtistInfo
		if err := rows.Scan(
			&a.ID, &a.Name, &a.Popularity, &a.Followers, &a.Genres,
			&a.FirstRelease, &a.LastRelease, &a.NumReleases, &a.NumTracks, &a.MonthlyListeners,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
