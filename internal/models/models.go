// package models defines the data model for discog
package models

import (
	"fmt"
	"strings"
	"time"
)

// AlbumType filters an artist's catalog.
type AlbumType string

const (
	AlbumTypeAlbum       AlbumType = "album"
	AlbumTypeSingle      AlbumType = "single"
	AlbumTypeCompilation AlbumType = "compilation"
	AlbumTypeAppearsOn   AlbumType = "appears_on"
)

// DefaultAlbumTypes is the catalog filter used when none is configured.
var DefaultAlbumTypes = []AlbumType{AlbumTypeAlbum, AlbumTypeSingle, AlbumTypeCompilation}

// ParseAlbumTypes validates album type names.
func ParseAlbumTypes(names []string) ([]AlbumType, error) {
	if len(names) == 0 {
		return DefaultAlbumTypes, nil
	}

	types := make([]AlbumType, 0, len(names))
	for _, name := range names {
		at := AlbumType(strings.ToLower(strings.TrimSpace(name)))
		switch at {
		case AlbumTypeAlbum, AlbumTypeSingle, AlbumTypeCompilation, AlbumTypeAppearsOn:
			types = append(types, at)
		default:
			return nil, fmt.Errorf("unknown album type %q", name)
		}
	}
	return types, nil
}

// User is the authenticated Spotify account.
type User struct {
	ID          string
	DisplayName string
}

// Playlist represents a Spotify playlist.
type Playlist struct {
	ID         string
	Name       string
	TrackCount int
	Public     bool
	SnapshotID string
}

// Artist represents a Spotify artist.
type Artist struct {
	ID     string
	Name   string
	Genres []string
}

// Album represents an album, single or compilation in an artist's catalog.
type Album struct {
	ID          string
	Name        string
	AlbumType   AlbumType
	Artists     []string // Artist names
	ReleaseDate string
}

// Label renders the album as "name - artist, artist".
func (a Album) Label() string {
	if len(a.Artists) == 0 {
		return a.Name
	}
	return a.Name + " - " + strings.Join(a.Artists, ", ")
}

// Track represents a track, either from an album listing or a playlist.
type Track struct {
	ID        string
	Name      string
	Artists   []string
	AlbumID   string // Empty for album listings, where the album is implied
	AlbumName string
}

// MembershipStore is the durable playlist name → artist ids mapping.
//
// A playlist without an entry has no artists; that is not an error.
type MembershipStore interface {
	Artists(playlist string) ([]string, error)    // Artists returns the artist ids synced into playlist, in insertion order
	AddArtist(playlist, artistID string) error    // AddArtist appends artistID; adding a present id is a no-op
	RemoveArtist(playlist, artistID string) error // RemoveArtist drops artistID; removing an absent id is a no-op
	Playlists() ([]string, error)                 // Playlists lists every playlist with at least one artist
}

// RunRecorder persists the outcome of reconciliation runs.
type RunRecorder interface {
	RecordRun(run *SyncRun) error
}

// SyncRun is one reconciliation run against a playlist.
type SyncRun struct {
	ID         string
	Playlist   string
	Action     string
	Artists    []string
	Expected   int // Tracks submitted
	Observed   int // Observed change in the target's track total
	Mismatch   bool
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Validate checks the fields required to persist the run.
func (r *SyncRun) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("sync run id is required")
	}
	if r.Playlist == "" {
		return fmt.Errorf("sync run playlist is required")
	}
	if r.Action == "" {
		return fmt.Errorf("sync run action is required")
	}
	if r.StartedAt.IsZero() {
		return fmt.Errorf("sync run start time is required")
	}
	return nil
}

// Duration returns how long the run took, or zero while unfinished.
func (r *SyncRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
