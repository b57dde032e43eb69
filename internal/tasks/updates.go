package tasks

import (
	"fmt"

	"github.com/desertthunder/discog/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ResolvePlaylist Phase = iota
	LoadTracks
	FollowArtist
	FetchAlbums
	SyncAlbums
	Rollover
	Verify
	Complete
)

func (p Phase) String() string {
	switch p {
	case ResolvePlaylist:
		return "resolve_playlist"
	case LoadTracks:
		return "load_tracks"
	case FollowArtist:
		return "follow_artist"
	case FetchAlbums:
		return "fetch_albums"
	case SyncAlbums:
		return "sync_albums"
	case Rollover:
		return "rollover"
	case Verify:
		return "verify"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

func resolvePlaylistUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolvePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Looking up playlist %s...", name),
	}
}

func createdPlaylistUpdate(pl *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolvePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Created playlist %s", pl.Name),
		Data:    pl,
	}
}

func loadTracksUpdate(step, total int, pl models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Reading %s...", step, total, pl.Name),
	}
}

func followUpdate(action Action, artist *models.Artist, playlist string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FollowArtist,
		Step:    1,
		Total:   1,
		Message: action.Announce(artist.Name, playlist),
		Data:    artist,
	}
}

func fetchAlbumsUpdate(step, total int, artistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchAlbums,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching albums of %s...", step, total, artistID),
	}
}

func albumUpdate(step, total int, album models.Album) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncAlbums,
		Step:    step,
		Total:   total,
		Message: album.Label(),
		Data:    album,
	}
}

func rolloverUpdate(part string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Rollover,
		Step:    1,
		Total:   1,
		Message: rolloverMessage(part),
	}
}

func rolloverMessage(part string) string {
	return fmt.Sprintf("Playlist full, rolled over to %s", part)
}

func verifyUpdate(playlist string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Verify,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Checking track count of %s...", playlist),
	}
}

func completeUpdate(r *Result) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    1,
		Total:   1,
		Message: r.Summary()[0],
		Data:    r,
	}
}
