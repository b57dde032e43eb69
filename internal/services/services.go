// package services defines interface Library for the Spotify Web API
package services

import (
	"context"

	"github.com/desertthunder/discog/internal/models"
	"github.com/desertthunder/discog/internal/pager"
)

// Library is the slice of the Spotify Web API that discog reconciles against.
//
// Paginated collections are returned as [pager.Source] values so callers decide how to drain them.
type Library interface {
	// CurrentUser returns the authenticated account.
	CurrentUser(ctx context.Context) (*models.User, error)

	// Playlists lists the current user's playlists.
	Playlists() pager.Source[models.Playlist]

	// Playlist retrieves one playlist, including its track total.
	Playlist(ctx context.Context, playlistID string) (*models.Playlist, error)

	// CreatePlaylist creates a playlist owned by userID.
	CreatePlaylist(ctx context.Context, userID, name string, public bool) (*models.Playlist, error)

	// RenamePlaylist changes a playlist's name.
	RenamePlaylist(ctx context.Context, playlistID, name string) error

	// PlaylistItems lists the tracks of a playlist. Episodes and local files are skipped.
	PlaylistItems(playlistID string) pager.Source[models.Track]

	Artist(ctx context.Context, artistID string) (*models.Artist, error)

	// ArtistAlbums lists an artist's catalog restricted to types.
	ArtistAlbums(artistID string, types []models.AlbumType) pager.Source[models.Album]

	// AlbumTracks lists an album's tracks. AlbumID is set on every track.
	AlbumTracks(albumID string) pager.Source[models.Track]

	// AddTracks appends at most [shared.MaxBatchSize] tracks to a playlist.
	AddTracks(ctx context.Context, playlistID string, trackIDs ...string) error

	// RemoveTracks removes every occurrence of at most [shared.MaxBatchSize] tracks from a playlist.
	RemoveTracks(ctx context.Context, playlistID string, trackIDs ...string) error

	FollowArtists(ctx context.Context, artistIDs ...string) error
	UnfollowArtists(ctx context.Context, artistIDs ...string) error
}
