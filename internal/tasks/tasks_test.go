package tasks

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/desertthunder/discog/internal/models"
	"github.com/desertthunder/discog/internal/shared"
	tu "github.com/desertthunder/discog/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const artistID = "4Z8W4fKeB5YxbusRsdQVPb"

type recorder struct {
	runs []*models.SyncRun
}

func (r *recorder) RecordRun(run *models.SyncRun) error {
	r.runs = append(r.runs, run)
	return nil
}

func setup(t *testing.T) (*tu.FakeLibrary, *tu.MemoryStore, *recorder, *Engine) {
	t.Helper()

	lib := tu.NewFakeLibrary()
	lib.PageSize = 100
	lib.AddArtist(artistID, "Radiohead")

	store := tu.NewMemoryStore()
	rec := &recorder{}
	engine := NewEngine(lib, store, EngineOpts{Recorder: rec})
	return lib, store, rec, engine
}

func callIndex(calls []tu.Call, op string) int {
	return slices.IndexFunc(calls, func(c tu.Call) bool { return c.Op == op })
}

func TestPartSuffix(t *testing.T) {
	tests := []struct {
		name   string
		want   int
		wantOK bool
	}{
		{"mix-1", 1, true},
		{"mix-12", 12, true},
		{"mix", 0, false},
		{"mix-", 0, false},
		{"mix-0", 0, false},
		{"mix-+1", 0, false},
		{"mix-old", 0, false},
		{"mix-1-2", 0, false},
		{"other-1", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := PartSuffix("mix", tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("add")
	require.NoError(t, err)
	assert.Equal(t, "add", a.String())

	r, err := ParseAction("remove")
	require.NoError(t, err)
	assert.Equal(t, "Removed", r.Verb())

	_, err = ParseAction("toggle")
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestResolveTarget(t *testing.T) {
	t.Run("Creates Missing Primary", func(t *testing.T) {
		lib, _, _, engine := setup(t)

		target, err := engine.ResolveTarget(context.Background(), "mix", nil)
		require.NoError(t, err)
		assert.Equal(t, "mix", target.Primary.Name)
		assert.Empty(t, target.Parts)
		assert.Len(t, lib.CallsTo("create"), 1)
	})

	t.Run("Finds Parts Sorted By Suffix", func(t *testing.T) {
		lib, _, _, engine := setup(t)
		lib.AddPlaylist("mix-10")
		lib.AddPlaylist("mix")
		lib.AddPlaylist("mix-2")
		lib.AddPlaylist("mix-old")
		lib.AddPlaylist("mixtape")

		target, err := engine.ResolveTarget(context.Background(), "mix", nil)
		require.NoError(t, err)

		var names []string
		for _, p := range target.Parts {
			names = append(names, p.Name)
		}
		assert.Equal(t, []string{"mix-2", "mix-10"}, names)
		assert.Equal(t, 11, target.NextSuffix())
		assert.Empty(t, lib.CallsTo("create"))
	})

	t.Run("Same-Named Playlists Count As Part Of The Target", func(t *testing.T) {
		lib, store, _, engine := setup(t)
		primaryID := lib.AddPlaylist("mix")
		tracks := lib.AddAlbum(artistID, "al1", "Kid A", models.AlbumTypeAlbum, 4)
		dupID := lib.AddPlaylist("mix", tracks...)

		target, err := engine.ResolveTarget(context.Background(), "mix", nil)
		require.NoError(t, err)
		assert.Equal(t, primaryID, target.Primary.ID)
		require.Len(t, target.Duplicates, 1)
		assert.Equal(t, dupID, target.Duplicates[0].ID)

		require.NoError(t, store.AddArtist("mix", artistID))
		r, err := engine.Update(context.Background(), "mix", nil)
		require.NoError(t, err)
		assert.Zero(t, r.Submitted)
		assert.Empty(t, lib.CallsTo("add"))
	})

	t.Run("Missing Name", func(t *testing.T) {
		_, _, _, engine := setup(t)
		_, err := engine.ResolveTarget(context.Background(), "", nil)
		assert.ErrorIs(t, err, shared.ErrMissingArgument)
	})
}

func TestAddArtist(t *testing.T) {
	t.Run("Adds Every Album Into An Empty Playlist", func(t *testing.T) {
		lib, store, rec, engine := setup(t)
		lib.AddAlbum(artistID, "al1", "OK Computer", models.AlbumTypeAlbum, 12)
		lib.AddAlbum(artistID, "al2", "Airbag", models.AlbumTypeSingle, 3)
		progress := make(chan ProgressUpdate, 100)

		r, err := engine.AddArtist(context.Background(), "mix", "spotify:artist:"+artistID, progress)
		require.NoError(t, err)

		assert.Equal(t, 15, r.Submitted)
		assert.Equal(t, 15, r.Observed)
		assert.Nil(t, r.Mismatch)
		assert.Empty(t, r.Rollovers)
		assert.Len(t, r.Albums, 2)

		pl, ok := lib.PlaylistNamed("mix")
		require.True(t, ok)
		assert.Equal(t, 15, pl.TrackCount)
		assert.False(t, pl.Public)
		assert.True(t, lib.IsFollowing(artistID))

		ids, _ := store.Artists("mix")
		assert.Equal(t, []string{artistID}, ids)

		assert.Equal(t, []string{"Added 15 of 15 tracks to mix.", "mix contains 15 tracks."}, r.Summary())
		assert.Equal(t, []string{
			"Adding Radiohead to mix...",
			"  OK Computer - Radiohead",
			"  Airbag - Radiohead",
		}, r.Details())

		require.Len(t, rec.runs, 1)
		assert.Equal(t, "add", rec.runs[0].Action)
		assert.Equal(t, 15, rec.runs[0].Expected)
		assert.False(t, rec.runs[0].Mismatch)
		assert.NotEmpty(t, progress)
	})

	t.Run("Already Present Is A No-op", func(t *testing.T) {
		lib, store, rec, engine := setup(t)
		require.NoError(t, store.AddArtist("mix", artistID))

		r, err := engine.AddArtist(context.Background(), "mix", artistID, nil)
		require.NoError(t, err)
		assert.True(t, r.NoOp)
		assert.Equal(t, []string{"Radiohead already in mix."}, r.Summary())
		assert.Empty(t, r.Details())
		assert.Empty(t, lib.Calls)
		assert.Empty(t, rec.runs)
	})

	t.Run("Skips Albums Already In A Part", func(t *testing.T) {
		lib, _, _, engine := setup(t)
		existing := lib.AddAlbum(artistID, "al1", "Kid A", models.AlbumTypeAlbum, 10)
		lib.AddAlbum(artistID, "al2", "Amnesiac", models.AlbumTypeAlbum, 11)
		lib.AddPlaylist("mix")
		lib.AddPlaylist("mix-1", existing...)

		r, err := engine.AddArtist(context.Background(), "mix", artistID, nil)
		require.NoError(t, err)
		assert.Equal(t, 11, r.Submitted)
		require.Len(t, r.Albums, 1)
		assert.Equal(t, "al2", r.Albums[0].ID)
	})

	t.Run("Batches At The Configured Size", func(t *testing.T) {
		lib, store, _, _ := setup(t)
		engine := NewEngine(lib, store, EngineOpts{BatchSize: 100})
		lib.AddAlbum(artistID, "al1", "Box Set", models.AlbumTypeCompilation, 250)

		_, err := engine.AddArtist(context.Background(), "mix", artistID, nil)
		require.NoError(t, err)

		var sizes []int
		for _, c := range lib.CallsTo("add") {
			sizes = append(sizes, len(c.IDs))
		}
		assert.Equal(t, []int{100, 100, 50}, sizes)
	})

	t.Run("Filters Album Types", func(t *testing.T) {
		lib, store, _, _ := setup(t)
		engine := NewEngine(lib, store, EngineOpts{AlbumTypes: []models.AlbumType{models.AlbumTypeAlbum}})
		lib.AddAlbum(artistID, "al1", "Album", models.AlbumTypeAlbum, 5)
		lib.AddAlbum(artistID, "al2", "Guest Spot", models.AlbumTypeAppearsOn, 4)

		r, err := engine.AddArtist(context.Background(), "mix", artistID, nil)
		require.NoError(t, err)
		assert.Equal(t, 5, r.Submitted)
	})

	t.Run("Batch Failure Leaves Mapping Untouched", func(t *testing.T) {
		lib, store, rec, engine := setup(t)
		lib.AddAlbum(artistID, "al1", "Album", models.AlbumTypeAlbum, 5)
		lib.Errors["AddTracks"] = shared.ErrAPIRequest

		_, err := engine.AddArtist(context.Background(), "mix", artistID, nil)
		assert.ErrorIs(t, err, shared.ErrAPIRequest)

		ids, _ := store.Artists("mix")
		assert.Empty(t, ids)
		require.Len(t, rec.runs, 1)
		assert.NotEmpty(t, rec.runs[0].Error)
	})

	t.Run("Invalid Reference", func(t *testing.T) {
		_, _, _, engine := setup(t)
		_, err := engine.AddArtist(context.Background(), "mix", "spotify:album:abc", nil)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})

	t.Run("Unknown Artist", func(t *testing.T) {
		_, _, _, engine := setup(t)
		_, err := engine.AddArtist(context.Background(), "mix", "0000000000000000000000", nil)
		assert.ErrorIs(t, err, shared.ErrArtistNotFound)
	})
}

func TestRollover(t *testing.T) {
	t.Run("Rolls Over Before Adding An Overflowing Album", func(t *testing.T) {
		lib, _, _, engine := setup(t)
		primaryID := lib.AddPlaylist("mix", tu.FillerTracks("filler", 9950)...)
		lib.AddAlbum(artistID, "al1", "Long Album", models.AlbumTypeAlbum, 60)

		r, err := engine.AddArtist(context.Background(), "mix", artistID, nil)
		require.NoError(t, err)

		assert.Equal(t, []string{"mix-1"}, r.Rollovers)
		assert.Contains(t, r.Details(), "Playlist full, rolled over to mix-1")
		assert.Len(t, lib.CallsTo("rename"), 1)
		assert.Len(t, lib.CallsTo("create"), 1)

		rename := callIndex(lib.Calls, "rename")
		create := callIndex(lib.Calls, "create")
		add := callIndex(lib.Calls, "add")
		assert.Less(t, rename, create)
		assert.Less(t, create, add)

		assert.Equal(t, primaryID, lib.Calls[rename].Playlist)
		assert.Equal(t, "mix-1", lib.Calls[rename].Name)

		fresh, ok := lib.PlaylistNamed("mix")
		require.True(t, ok)
		assert.NotEqual(t, primaryID, fresh.ID)
		assert.Equal(t, 60, fresh.TrackCount)
		for _, c := range lib.CallsTo("add") {
			assert.Equal(t, fresh.ID, c.Playlist)
		}

		part, ok := lib.PlaylistNamed("mix-1")
		require.True(t, ok)
		assert.Equal(t, 9950, part.TrackCount)
		assert.Nil(t, r.Mismatch)
	})

	t.Run("Next Suffix Follows Existing Parts", func(t *testing.T) {
		lib, _, _, engine := setup(t)
		lib.AddPlaylist("mix-3")
		lib.AddPlaylist("mix", tu.FillerTracks("filler", 9990)...)
		lib.AddAlbum(artistID, "al1", "Album", models.AlbumTypeAlbum, 11)

		r, err := engine.AddArtist(context.Background(), "mix", artistID, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"mix-4"}, r.Rollovers)
	})

	t.Run("Exactly Full Does Not Roll Over", func(t *testing.T) {
		lib, _, _, engine := setup(t)
		lib.AddPlaylist("mix", tu.FillerTracks("filler", 9990)...)
		lib.AddAlbum(artistID, "al1", "Album", models.AlbumTypeAlbum, 10)

		r, err := engine.AddArtist(context.Background(), "mix", artistID, nil)
		require.NoError(t, err)
		assert.Empty(t, r.Rollovers)
	})

	t.Run("Small Capacity Rolls Over Per Album", func(t *testing.T) {
		lib, store, _, _ := setup(t)
		engine := NewEngine(lib, store, EngineOpts{Capacity: 10})
		lib.AddAlbum(artistID, "al1", "One", models.AlbumTypeAlbum, 6)
		lib.AddAlbum(artistID, "al2", "Two", models.AlbumTypeAlbum, 6)
		lib.AddAlbum(artistID, "al3", "Three", models.AlbumTypeAlbum, 6)

		r, err := engine.AddArtist(context.Background(), "mix", artistID, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"mix-1", "mix-2"}, r.Rollovers)
		assert.Equal(t, 18, r.Observed)
		assert.Nil(t, r.Mismatch)
	})
}

func TestRemoveArtist(t *testing.T) {
	t.Run("Removes From Primary And Every Part", func(t *testing.T) {
		lib, store, _, engine := setup(t)
		a1 := lib.AddAlbum(artistID, "al1", "Pablo Honey", models.AlbumTypeAlbum, 4)
		a2 := lib.AddAlbum(artistID, "al2", "Creep", models.AlbumTypeSingle, 3)

		primary := lib.AddPlaylist("mix", append(slices.Clone(a1[:2]), tu.FillerTracks("keep", 5)...)...)
		part1 := lib.AddPlaylist("mix-1", a1[2:]...)
		part2 := lib.AddPlaylist("mix-2", a2...)
		require.NoError(t, store.AddArtist("mix", artistID))
		require.NoError(t, lib.FollowArtists(context.Background(), artistID))
		lib.ResetCalls()

		r, err := engine.RemoveArtist(context.Background(), "mix", artistID, nil)
		require.NoError(t, err)

		targets := map[string]bool{}
		for _, c := range lib.CallsTo("remove") {
			targets[c.Playlist] = true
		}
		assert.Equal(t, map[string]bool{primary: true, part1: true, part2: true}, targets)

		assert.Len(t, lib.Tracks(primary), 5)
		assert.Empty(t, lib.Tracks(part1))
		assert.Empty(t, lib.Tracks(part2))

		assert.Equal(t, 7, r.Submitted)
		assert.Equal(t, 7, r.Observed)
		assert.Nil(t, r.Mismatch)
		assert.False(t, lib.IsFollowing(artistID))
		assert.Equal(t, "Removed 7 of 7 tracks from mix.", r.Summary()[0])

		ids, _ := store.Artists("mix")
		assert.Empty(t, ids)
	})

	t.Run("Absent Is A No-op", func(t *testing.T) {
		lib, _, _, engine := setup(t)

		r, err := engine.RemoveArtist(context.Background(), "mix", artistID, nil)
		require.NoError(t, err)
		assert.True(t, r.NoOp)
		assert.Equal(t, "Radiohead not in mix.", r.Message)
		assert.Empty(t, lib.Calls)
	})
}

func TestMismatch(t *testing.T) {
	lib, _, rec, engine := setup(t)
	lib.AddAlbum(artistID, "al1", "Album", models.AlbumTypeAlbum, 10)
	lib.AddFilter = func(_ string, ids []string) []string { return ids[:len(ids)-2] }

	r, err := engine.AddArtist(context.Background(), "mix", artistID, nil)
	require.NoError(t, err)

	require.NotNil(t, r.Mismatch)
	assert.Equal(t, 10, r.Mismatch.Expected)
	assert.Equal(t, 8, r.Mismatch.Observed)
	assert.Equal(t, "WARNING: Added 8 of 10 tracks to mix.", r.Summary()[0])
	assert.Equal(t, "mix contains 8 tracks.", r.Summary()[1])

	require.Len(t, rec.runs, 1)
	assert.True(t, rec.runs[0].Mismatch)
	assert.Empty(t, rec.runs[0].Error)
}

func TestUpdate(t *testing.T) {
	t.Run("Adds New Releases Only", func(t *testing.T) {
		lib, store, _, engine := setup(t)
		lib.AddAlbum(artistID, "al1", "In Rainbows", models.AlbumTypeAlbum, 10)

		_, err := engine.AddArtist(context.Background(), "mix", artistID, nil)
		require.NoError(t, err)

		lib.AddAlbum(artistID, "al2", "The King of Limbs", models.AlbumTypeAlbum, 8)
		lib.ResetCalls()

		r, err := engine.Update(context.Background(), "mix", nil)
		require.NoError(t, err)
		require.Len(t, r.Albums, 1)
		assert.Equal(t, "The King of Limbs - Radiohead", r.Albums[0].Label())
		assert.Equal(t, 8, r.Submitted)
		assert.Len(t, lib.CallsTo("add"), 1)

		ids, _ := store.Artists("mix")
		assert.Equal(t, []string{artistID}, ids)
	})

	t.Run("Second Run Submits Nothing", func(t *testing.T) {
		lib, store, rec, engine := setup(t)
		lib.AddAlbum(artistID, "al1", "Hail to the Thief", models.AlbumTypeAlbum, 14)
		require.NoError(t, store.AddArtist("mix", artistID))

		_, err := engine.Update(context.Background(), "mix", nil)
		require.NoError(t, err)
		lib.ResetCalls()

		r, err := engine.Update(context.Background(), "mix", nil)
		require.NoError(t, err)
		assert.Empty(t, lib.CallsTo("add"))
		assert.Zero(t, r.Submitted)
		assert.Nil(t, r.Mismatch)

		require.Len(t, rec.runs, 2)
		assert.Equal(t, "update", rec.runs[1].Action)
	})

	t.Run("No Artists Is Not An Error", func(t *testing.T) {
		lib, _, _, engine := setup(t)
		r, err := engine.Update(context.Background(), "empty", nil)
		require.NoError(t, err)
		assert.True(t, r.NoOp)
		assert.Empty(t, lib.Calls)
	})

	t.Run("Store Failure", func(t *testing.T) {
		_, store, _, engine := setup(t)
		store.Err = errors.New("disk full")
		_, err := engine.Update(context.Background(), "mix", nil)
		assert.Error(t, err)
	})
}

func TestApply(t *testing.T) {
	const second = "0k17h0D3J5VfsdmQ1iZtE9"

	t.Run("Add Is Idempotent", func(t *testing.T) {
		lib, store, _, engine := setup(t)
		lib.AddArtist(second, "Pink Floyd")
		lib.AddAlbum(artistID, "al1", "Album", models.AlbumTypeAlbum, 12)
		lib.AddAlbum(second, "al2", "Animals", models.AlbumTypeAlbum, 5)

		results, err := engine.Apply(context.Background(), "unfilled", []string{artistID, second}, ActionAdd, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, 12, results[0].Observed)
		assert.Equal(t, 5, results[1].Observed)
		assert.Equal(t, "unfilled contains 17 tracks.", results[1].Summary()[1])

		lib.ResetCalls()
		results, err = engine.Apply(context.Background(), "unfilled", []string{artistID, second}, ActionAdd, nil)
		require.NoError(t, err)
		assert.Empty(t, lib.CallsTo("add"))
		for _, r := range results {
			assert.Zero(t, r.Submitted)
			assert.Nil(t, r.Mismatch)
		}

		names, _ := store.Playlists()
		assert.Empty(t, names)
	})

	t.Run("Remove Unfollows", func(t *testing.T) {
		lib, _, _, engine := setup(t)
		tracks := lib.AddAlbum(artistID, "al1", "Album", models.AlbumTypeAlbum, 3)
		id := lib.AddPlaylist("unfilled", tracks...)
		require.NoError(t, lib.FollowArtists(context.Background(), artistID))

		results, err := engine.Apply(context.Background(), "unfilled", []string{artistID}, ActionRemove, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, results[0].Observed)
		assert.Empty(t, lib.Tracks(id))
		assert.False(t, lib.IsFollowing(artistID))
		assert.Len(t, lib.CallsTo("unfollow"), 1)
	})

	t.Run("Validates Input", func(t *testing.T) {
		_, _, _, engine := setup(t)

		_, err := engine.Apply(context.Background(), "unfilled", nil, ActionAdd, nil)
		assert.ErrorIs(t, err, shared.ErrMissingArgument)

		_, err = engine.Apply(context.Background(), "unfilled", []string{artistID}, Action{}, nil)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)

		_, err = engine.Apply(context.Background(), "unfilled", []string{"not an id"}, ActionAdd, nil)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})
}

func TestTotalTracks(t *testing.T) {
	lib, _, _, engine := setup(t)
	lib.PageSize = 2
	lib.AddAlbum(artistID, "al1", "One", models.AlbumTypeAlbum, 12)
	lib.AddAlbum(artistID, "al2", "Two", models.AlbumTypeSingle, 3)
	lib.AddAlbum(artistID, "al3", "Three", models.AlbumTypeCompilation, 7)

	total, err := engine.TotalTracks(context.Background(), "https://open.spotify.com/artist/"+artistID)
	require.NoError(t, err)
	assert.Equal(t, 22, total)

	lib.Errors["AlbumTracks"] = shared.ErrAPIRequest
	_, err = engine.TotalTracks(context.Background(), artistID)
	assert.ErrorIs(t, err, shared.ErrAPIRequest)
}

func TestProgressNeverBlocks(t *testing.T) {
	lib, _, _, engine := setup(t)
	lib.AddAlbum(artistID, "al1", "Album", models.AlbumTypeAlbum, 3)

	progress := make(chan ProgressUpdate)
	_, err := engine.AddArtist(context.Background(), "mix", artistID, progress)
	require.NoError(t, err)
}

func TestAnnounce(t *testing.T) {
	assert.Equal(t, "Adding Radiohead to mix...", ActionAdd.Announce("Radiohead", "mix"))
	assert.True(t, strings.HasPrefix(ActionRemove.Announce("Radiohead", "mix"), "Removing"))
}
