package repositories

import (
	"database/sql"
	"fmt"
)

// ArtistRepository stores playlist artist membership in SQLite.
type ArtistRepository struct {
	db *sql.DB
}

// NewArtistRepository creates a new [ArtistRepository] with the given database connection
func NewArtistRepository(db *sql.DB) *ArtistRepository {
	return &ArtistRepository{db: db}
}

// Artists returns the artist ids synced into playlist in the order they were added.
func (r *ArtistRepository) Artists(playlist string) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT artist_id FROM playlist_artists
		WHERE playlist = ?
		ORDER BY position ASC
	`, playlist)
	if err != nil {
		return nil, fmt.Errorf("failed to query artists: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan artist: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

// AddArtist appends artistID to playlist. Adding an artist twice is a no-op.
func (r *ArtistRepository) AddArtist(playlist, artistID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM playlist_artists WHERE playlist = ? AND artist_id = ?)", playlist, artistID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check artist: %w", err)
	}
	if exists {
		return nil
	}

	position, err := nextPosition(tx, playlist)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(
		"INSERT INTO playlist_artists (playlist, artist_id, position) VALUES (?, ?, ?)", playlist, artistID, position,
	); err != nil {
		return fmt.Errorf("failed to insert artist: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit artist: %w", err)
	}
	return nil
}

// RemoveArtist drops artistID from playlist. Removing an absent artist is a no-op.
func (r *ArtistRepository) RemoveArtist(playlist, artistID string) error {
	if _, err := r.db.Exec("DELETE FROM playlist_artists WHERE playlist = ? AND artist_id = ?", playlist, artistID); err != nil {
		return fmt.Errorf("failed to delete artist: %w", err)
	}
	return nil
}

// Playlists lists every playlist that has at least one artist, alphabetically.
func (r *ArtistRepository) Playlists() ([]string, error) {
	rows, err := r.db.Query("SELECT DISTINCT playlist FROM playlist_artists ORDER BY playlist ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return names, nil
}
