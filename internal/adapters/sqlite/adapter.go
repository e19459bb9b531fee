// Package sqlite persists resolved feature vectors and play history.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
	"github.com/ewilliams-labs/soundstage/internal/core/ports"
)

var (
	_ ports.FeatureStore = (*Adapter)(nil)
	_ ports.PlayRecorder = (*Adapter)(nil)
	_ ports.PlayHistory  = (*Adapter)(nil)
)

// Adapter implements the storage ports for SQLite
type Adapter struct {
	db *sql.DB
}

// NewAdapter creates a connection and runs the schema migration
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open db: %w", err)
	}
	// One connection keeps ":memory:" databases coherent and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to ping db: %w", err)
	}

	adapter := &Adapter{db: db}
	if err := adapter.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

func (a *Adapter) GetFeatures(ctx context.Context, trackID string) (domain.AudioFeatures, domain.FeatureSource, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT track_id, acousticness, danceability, energy, instrumentalness, musical_key,
			liveness, loudness, mode, speechiness, tempo, valence, source
		FROM audio_features
		WHERE track_id = ?
	`, trackID)

	var f domain.AudioFeatures
	var source string
	if err := row.Scan(
		&f.TrackID,
		&f.Acousticness,
		&f.Danceability,
		&f.Energy,
		&f.Instrumentalness,
		&f.Key,
		&f.Liveness,
		&f.Loudness,
		&f.Mode,
		&f.Speechiness,
		&f.Tempo,
		&f.Valence,
		&source,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AudioFeatures{}, "", domain.ErrNotFound
		}
		return domain.AudioFeatures{}, "", fmt.Errorf("sqlite: failed to load features: %w", err)
	}

	return f, domain.FeatureSource(source), nil
}

// SaveFeatures upserts a vector. A network vector is never replaced by a
// preview estimate.
func (a *Adapter) SaveFeatures(ctx context.Context, f domain.AudioFeatures, source domain.FeatureSource) error {
	if f.TrackID == "" {
		return fmt.Errorf("sqlite: features without track id")
	}

	_, err := a.db.ExecContext(ctx, `
		INSERT INTO audio_features (
			track_id, acousticness, danceability, energy, instrumentalness, musical_key,
			liveness, loudness, mode, speechiness, tempo, valence, source, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET
			acousticness = excluded.acousticness,
			danceability = excluded.danceability,
			energy = excluded.energy,
			instrumentalness = excluded.instrumentalness,
			musical_key = excluded.musical_key,
			liveness = excluded.liveness,
			loudness = excluded.loudness,
			mode = excluded.mode,
			speechiness = excluded.speechiness,
			tempo = excluded.tempo,
			valence = excluded.valence,
			source = excluded.source,
			updated_at = excluded.updated_at
		WHERE NOT (audio_features.source = 'network' AND excluded.source = 'preview')
	`,
		f.TrackID,
		f.Acousticness,
		f.Danceability,
		f.Energy,
		f.Instrumentalness,
		f.Key,
		f.Liveness,
		f.Loudness,
		f.Mode,
		f.Speechiness,
		f.Tempo,
		f.Valence,
		string(source),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to save features: %w", err)
	}
	return nil
}

func (a *Adapter) RecordPlay(ctx context.Context, play domain.Play) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO plays (
			id, session_id, track_id, artist_id, genre, playlist_name, bonus, auto_skipped, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		play.ID,
		play.SessionID,
		play.TrackID,
		play.ArtistID,
		play.Genre.String(),
		play.PlaylistName,
		play.Bonus,
		play.AutoSkipped,
		play.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to record play: %w", err)
	}
	return nil
}

func (a *Adapter) MarkSkipped(ctx context.Context, playID string) error {
	res, err := a.db.ExecContext(ctx, "UPDATE plays SET auto_skipped = 1 WHERE id = ?", playID)
	if err != nil {
		return fmt.Errorf("sqlite: failed to mark play skipped: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to mark play skipped: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RecentPlays returns up to limit plays, newest first.
func (a *Adapter) RecentPlays(ctx context.Context, limit int) ([]domain.Play, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, session_id, track_id, artist_id, genre, playlist_name, bonus, auto_skipped, started_at
		FROM plays
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query plays: %w", err)
	}
	defer rows.Close()

	plays := []domain.Play{}
	for rows.Next() {
		var play domain.Play
		var genre string
		var playlist sql.NullString
		if err := rows.Scan(
			&play.ID,
			&play.SessionID,
			&play.TrackID,
			&play.ArtistID,
			&genre,
			&playlist,
			&play.Bonus,
			&play.AutoSkipped,
			&play.StartedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan play: %w", err)
		}
		if g, err := domain.ParseGenre(genre); err == nil {
			play.Genre = g
		}
		if playlist.Valid {
			play.PlaylistName = playlist.String
		}
		plays = append(plays, play)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate plays: %w", err)
	}

	return plays, nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS audio_features (
		track_id TEXT PRIMARY KEY,
		acousticness REAL NOT NULL,
		danceability REAL NOT NULL,
		energy REAL NOT NULL,
		instrumentalness REAL NOT NULL,
		musical_key INTEGER NOT NULL,
		liveness REAL NOT NULL,
		loudness REAL NOT NULL,
		mode INTEGER NOT NULL,
		speechiness REAL NOT NULL,
		tempo REAL NOT NULL,
		valence REAL NOT NULL,
		source TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS plays (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		track_id TEXT NOT NULL,
		artist_id TEXT,
		genre TEXT NOT NULL,
		playlist_name TEXT,
		bonus BOOLEAN NOT NULL DEFAULT 0,
		auto_skipped BOOLEAN NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_plays_started_at ON plays(started_at);
	`
	_, err := a.db.Exec(query)
	return err
}
