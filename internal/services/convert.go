package services

import (
	"github.com/desertthunder/discog/internal/models"
	"github.com/desertthunder/discog/internal/pager"
	"github.com/zmb3/spotify/v2"
)

func toIDs(ids []string) []spotify.ID {
	out := make([]spotify.ID, len(ids))
	for i, id := range ids {
		out[i] = spotify.ID(id)
	}
	return out
}

func albumTypes(types []models.AlbumType) []spotify.AlbumType {
	out := make([]spotify.AlbumType, 0, len(types))
	for _, t := range types {
		switch t {
		case models.AlbumTypeAlbum:
			out = append(out, spotify.AlbumTypeAlbum)
		case models.AlbumTypeSingle:
			out = append(out, spotify.AlbumTypeSingle)
		case models.AlbumTypeCompilation:
			out = append(out, spotify.AlbumTypeCompilation)
		case models.AlbumTypeAppearsOn:
			out = append(out, spotify.AlbumTypeAppearsOn)
		}
	}
	return out
}

func artistNames(artists []spotify.SimpleArtist) []string {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return names
}

func simplePlaylist(p spotify.SimplePlaylist) models.Playlist {
	return models.Playlist{
		ID:         string(p.ID),
		Name:       p.Name,
		TrackCount: int(p.Tracks.Total),
		Public:     p.IsPublic,
		SnapshotID: p.SnapshotID,
	}
}

func fullPlaylist(p *spotify.FullPlaylist) *models.Playlist {
	playlist := simplePlaylist(p.SimplePlaylist)
	playlist.TrackCount = int(p.Tracks.Total)
	return &playlist
}

func simpleAlbum(a spotify.SimpleAlbum) models.Album {
	return models.Album{
		ID:          string(a.ID),
		Name:        a.Name,
		AlbumType:   models.AlbumType(a.AlbumType),
		Artists:     artistNames(a.Artists),
		ReleaseDate: a.ReleaseDate,
	}
}

func playlistPage(p *spotify.SimplePlaylistPage) pager.Page[models.Playlist] {
	items := make([]models.Playlist, len(p.Playlists))
	for i, pl := range p.Playlists {
		items[i] = simplePlaylist(pl)
	}
	return pager.Page[models.Playlist]{Items: items, Next: p.Next, Total: int(p.Total)}
}

// playlistItemPage keeps only tracks with an id; episodes and local files are dropped.
func playlistItemPage(p *spotify.PlaylistItemPage) pager.Page[models.Track] {
	items := make([]models.Track, 0, len(p.Items))
	for _, item := range p.Items {
		t := item.Track.Track
		if t == nil || t.ID == "" {
			continue
		}
		items = append(items, models.Track{
			ID:        string(t.ID),
			Name:      t.Name,
			Artists:   artistNames(t.Artists),
			AlbumID:   string(t.Album.ID),
			AlbumName: t.Album.Name,
		})
	}
	return pager.Page[models.Track]{Items: items, Next: p.Next, Total: int(p.Total)}
}

func albumPage(p *spotify.SimpleAlbumPage) pager.Page[models.Album] {
	items := make([]models.Album, len(p.Albums))
	for i, a := range p.Albums {
		items[i] = simpleAlbum(a)
	}
	return pager.Page[models.Album]{Items: items, Next: p.Next, Total: int(p.Total)}
}

func trackPage(p *spotify.SimpleTrackPage, albumID string) pager.Page[models.Track] {
	items := make([]models.Track, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		if t.ID == "" {
			continue
		}
		items = append(items, models.Track{
			ID:      string(t.ID),
			Name:    t.Name,
			Artists: artistNames(t.Artists),
			AlbumID: albumID,
		})
	}
	return pager.Page[models.Track]{Items: items, Next: p.Next, Total: int(p.Total)}
}
