// package tasks implements artist → playlist reconciliation against a Spotify library.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/discog/internal/models"
	"github.com/desertthunder/discog/internal/pager"
	"github.com/desertthunder/discog/internal/services"
	"github.com/desertthunder/discog/internal/shared"
)

const (
	DefaultCapacity = 10000
	DefaultBatch    = shared.MaxBatchSize
)

// Reconciler defines the playlist operations exposed to the CLI.
type Reconciler interface {
	// AddArtist follows an artist and adds the albums the playlist is missing, then records the artist.
	AddArtist(ctx context.Context, playlist, artistRef string, progress chan<- ProgressUpdate) (*Result, error)

	// RemoveArtist unfollows an artist and removes every album of theirs from the playlist and its parts.
	RemoveArtist(ctx context.Context, playlist, artistRef string, progress chan<- ProgressUpdate) (*Result, error)

	// Update adds albums released by recorded artists since the last run.
	Update(ctx context.Context, playlist string, progress chan<- ProgressUpdate) (*Result, error)

	// Apply runs action for each artist without touching the recorded artist list.
	Apply(ctx context.Context, playlist string, artistRefs []string, action Action, progress chan<- ProgressUpdate) ([]*Result, error)

	// TotalTracks sums the track counts of an artist's albums.
	TotalTracks(ctx context.Context, artistRef string) (int, error)
}

// EngineOpts tunes an [Engine]. Zero values select defaults.
type EngineOpts struct {
	AlbumTypes []models.AlbumType
	BatchSize  int
	Capacity   int
	Pager      []pager.Option
	Logger     *log.Logger
	Recorder   models.RunRecorder
}

// Engine implements [Reconciler].
type Engine struct {
	library  services.Library
	store    models.MembershipStore
	recorder models.RunRecorder
	logger   *log.Logger
	opts     EngineOpts
	user     *models.User
}

// NewEngine creates an [Engine] reconciling playlists of library and recording artists in store.
func NewEngine(library services.Library, store models.MembershipStore, opts EngineOpts) *Engine {
	if len(opts.AlbumTypes) == 0 {
		opts.AlbumTypes = models.DefaultAlbumTypes
	}
	if opts.BatchSize < 1 || opts.BatchSize > shared.MaxBatchSize {
		opts.BatchSize = DefaultBatch
	}
	if opts.Capacity < 1 {
		opts.Capacity = DefaultCapacity
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Engine{
		library:  library,
		store:    store,
		recorder: opts.Recorder,
		logger:   logger,
		opts:     opts,
	}
}

// session is the state of one run against a target.
type session struct {
	target *Target
	albums map[string]bool           // Album ids present anywhere in the target
	items  map[string][]models.Track // Playlist id → tracks
	count  int                       // Track total of the primary
	before int                       // Track total of the target when the current step began
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func (e *Engine) pagerOpts() []pager.Option {
	return append([]pager.Option{pager.WithLogger(e.logger)}, e.opts.Pager...)
}

func (e *Engine) currentUser(ctx context.Context) (*models.User, error) {
	if e.user != nil {
		return e.user, nil
	}
	user, err := e.library.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	e.user = user
	return user, nil
}

// ResolveTarget finds the playlist called name and its rollover parts. A missing primary is created private.
func (e *Engine) ResolveTarget(ctx context.Context, name string, progress chan<- ProgressUpdate) (*Target, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	e.sendProgress(progress, resolvePlaylistUpdate(name))

	playlists, err := pager.Collect(ctx, e.library.Playlists(), e.pagerOpts()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}

	target := &Target{Name: name}
	found := false
	for _, pl := range playlists {
		if pl.Name == name {
			if !found {
				target.Primary = pl
				found = true
			} else {
				e.logger.Warn("duplicate playlist name, treating it as part of the target", "playlist", name, "id", pl.ID)
				target.Duplicates = append(target.Duplicates, pl)
			}
			continue
		}
		if n, ok := PartSuffix(name, pl.Name); ok {
			target.addPart(pl, n)
		}
	}

	if found {
		return target, nil
	}

	user, err := e.currentUser(ctx)
	if err != nil {
		return nil, err
	}

	created, err := e.library.CreatePlaylist(ctx, user.ID, name, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist %s: %w", name, err)
	}

	e.logger.Info("created playlist", "name", name, "id", created.ID)
	e.sendProgress(progress, createdPlaylistUpdate(created))
	target.Primary = *created
	return target, nil
}

// load reads every track of the target.
func (e *Engine) load(ctx context.Context, target *Target, progress chan<- ProgressUpdate) (*session, error) {
	s := &session{
		target: target,
		albums: map[string]bool{},
		items:  map[string][]models.Track{},
	}

	playlists := target.Playlists()
	for i, pl := range playlists {
		e.sendProgress(progress, loadTracksUpdate(i+1, len(playlists), pl))

		tracks, err := pager.Collect(ctx, e.library.PlaylistItems(pl.ID), e.pagerOpts()...)
		if err != nil {
			return nil, fmt.Errorf("failed to read playlist %s: %w", pl.Name, err)
		}

		s.items[pl.ID] = tracks
		for _, t := range tracks {
			if t.AlbumID != "" {
				s.albums[t.AlbumID] = true
			}
		}
	}

	if err := e.snapshot(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// snapshot re-reads the track totals of the target as the baseline for the next mismatch check.
func (e *Engine) snapshot(ctx context.Context, s *session) error {
	total, primary, err := e.totals(ctx, s.target)
	if err != nil {
		return err
	}
	s.before = total
	s.count = primary
	return nil
}

func (e *Engine) totals(ctx context.Context, target *Target) (total, primary int, err error) {
	for i, pl := range target.Playlists() {
		fresh, err := e.library.Playlist(ctx, pl.ID)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to read track total of %s: %w", pl.Name, err)
		}
		total += fresh.TrackCount
		if i == 0 {
			primary = fresh.TrackCount
		}
	}
	return total, primary, nil
}

// verify compares the observed change of the target's track total with the tracks submitted.
func (e *Engine) verify(ctx context.Context, s *session, r *Result, progress chan<- ProgressUpdate) error {
	e.sendProgress(progress, verifyUpdate(r.Playlist))

	after, _, err := e.totals(ctx, s.target)
	if err != nil {
		return err
	}

	r.Before = s.before
	r.After = after
	r.Observed = r.Action.delta(s.before, after)

	if r.Observed != r.Submitted {
		r.Mismatch = &Mismatch{Playlist: r.Playlist, Expected: r.Submitted, Observed: r.Observed}
		e.logger.Warn("track count mismatch",
			"playlist", r.Playlist, "action", r.Action, "expected", r.Submitted, "observed", r.Observed)
	}

	e.sendProgress(progress, completeUpdate(r))
	return nil
}

// submit sends ids to playlistID in batches.
func (e *Engine) submit(ctx context.Context, action Action, playlistID string, ids []string) error {
	for batch := range slices.Chunk(ids, e.opts.BatchSize) {
		if err := action.batch(e.library, ctx, playlistID, batch...); err != nil {
			return fmt.Errorf("failed to %s %d tracks: %w", action, len(batch), err)
		}
	}
	return nil
}

// rollover renames the primary to the next part name and creates a fresh primary.
func (e *Engine) rollover(ctx context.Context, s *session, r *Result, progress chan<- ProgressUpdate) error {
	t := s.target
	n := t.NextSuffix()
	partName := t.PartName(n)

	if err := e.library.RenamePlaylist(ctx, t.Primary.ID, partName); err != nil {
		return fmt.Errorf("failed to roll over %s: %w", t.Name, err)
	}

	part := t.Primary
	part.Name = partName
	t.addPart(part, n)

	user, err := e.currentUser(ctx)
	if err != nil {
		return err
	}

	created, err := e.library.CreatePlaylist(ctx, user.ID, t.Name, false)
	if err != nil {
		return fmt.Errorf("failed to create playlist %s after rollover: %w", t.Name, err)
	}

	t.Primary = *created
	s.items[created.ID] = nil
	s.count = 0
	r.Rollovers = append(r.Rollovers, partName)

	e.logger.Info("rolled over playlist", "playlist", t.Name, "part", partName)
	e.sendProgress(progress, rolloverUpdate(partName))
	return nil
}

func trackIDs(tracks []models.Track) []string {
	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if t.ID != "" {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// syncArtist adds every album of artistID missing from the target.
func (e *Engine) syncArtist(ctx context.Context, s *session, artistID string, r *Result, progress chan<- ProgressUpdate) error {
	albums, err := pager.Collect(ctx, e.library.ArtistAlbums(artistID, e.opts.AlbumTypes), e.pagerOpts()...)
	if err != nil {
		return fmt.Errorf("failed to list albums of %s: %w", artistID, err)
	}

	var missing []models.Album
	for _, album := range albums {
		if !s.albums[album.ID] && !slices.ContainsFunc(missing, func(a models.Album) bool { return a.ID == album.ID }) {
			missing = append(missing, album)
		}
	}

	e.logger.Debug("album diff", "artist", artistID, "albums", len(albums), "missing", len(missing))

	for i, album := range missing {
		tracks, err := pager.Collect(ctx, e.library.AlbumTracks(album.ID), e.pagerOpts()...)
		if err != nil {
			return fmt.Errorf("failed to list tracks of %s: %w", album.Name, err)
		}

		ids := trackIDs(tracks)
		if len(ids) == 0 {
			s.albums[album.ID] = true
			continue
		}

		if s.count > 0 && s.count+len(ids) > e.opts.Capacity {
			if err := e.rollover(ctx, s, r, progress); err != nil {
				return err
			}
		}

		if err := e.submit(ctx, ActionAdd, s.target.Primary.ID, ids); err != nil {
			return err
		}

		s.count += len(ids)
		s.albums[album.ID] = true
		s.items[s.target.Primary.ID] = append(s.items[s.target.Primary.ID], tracks...)
		r.Submitted += len(ids)
		r.Albums = append(r.Albums, album)

		e.logger.Debug("added album", "album", album.Label(), "tracks", len(ids))
		e.sendProgress(progress, albumUpdate(i+1, len(missing), album))
	}
	return nil
}

// removeArtistAlbums removes every track of artistID's albums from each playlist of the target holding it.
func (e *Engine) removeArtistAlbums(ctx context.Context, s *session, artistID string, r *Result, progress chan<- ProgressUpdate) error {
	albums, err := pager.Collect(ctx, e.library.ArtistAlbums(artistID, e.opts.AlbumTypes), e.pagerOpts()...)
	if err != nil {
		return fmt.Errorf("failed to list albums of %s: %w", artistID, err)
	}

	for i, album := range albums {
		tracks, err := pager.Collect(ctx, e.library.AlbumTracks(album.ID), e.pagerOpts()...)
		if err != nil {
			return fmt.Errorf("failed to list tracks of %s: %w", album.Name, err)
		}

		remove := map[string]bool{}
		for _, id := range trackIDs(tracks) {
			remove[id] = true
		}

		removed := 0
		for j, pl := range s.target.Playlists() {
			var ids []string
			occurrences := 0
			for _, t := range s.items[pl.ID] {
				if remove[t.ID] {
					occurrences++
					if !slices.Contains(ids, t.ID) {
						ids = append(ids, t.ID)
					}
				}
			}
			if len(ids) == 0 {
				continue
			}

			if err := e.submit(ctx, ActionRemove, pl.ID, ids); err != nil {
				return err
			}

			s.items[pl.ID] = slices.DeleteFunc(s.items[pl.ID], func(t models.Track) bool { return remove[t.ID] })
			if j == 0 {
				s.count -= occurrences
			}
			removed += occurrences
		}

		delete(s.albums, album.ID)
		if removed > 0 {
			r.Submitted += removed
			r.Albums = append(r.Albums, album)
			e.sendProgress(progress, albumUpdate(i+1, len(albums), album))
		}
	}
	return nil
}

func (e *Engine) startRun(playlist string, action Action, artists ...string) *models.SyncRun {
	return &models.SyncRun{
		ID:        shared.GenerateID(),
		Playlist:  playlist,
		Action:    action.String(),
		Artists:   artists,
		StartedAt: time.Now(),
	}
}

// finishRun records run when a recorder is configured. Recording failures are logged.
func (e *Engine) finishRun(run *models.SyncRun, r *Result, err error) {
	if e.recorder == nil {
		return
	}

	run.FinishedAt = time.Now()
	if r != nil {
		r.run(run)
	}
	if err != nil {
		run.Error = err.Error()
	}

	if rerr := e.recorder.RecordRun(run); rerr != nil {
		e.logger.Warn("failed to record sync run", "id", run.ID, "error", rerr)
	}
}

func (e *Engine) lookupArtist(ctx context.Context, ref string) (*models.Artist, error) {
	id, err := shared.ParseSpotifyID("artist", ref)
	if err != nil {
		return nil, err
	}

	artist, err := e.library.Artist(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get artist %s: %w", id, err)
	}
	return artist, nil
}

// AddArtist moves the artist from absent to present in playlist.
func (e *Engine) AddArtist(ctx context.Context, playlist, artistRef string, progress chan<- ProgressUpdate) (*Result, error) {
	artist, err := e.lookupArtist(ctx, artistRef)
	if err != nil {
		return nil, err
	}

	recorded, err := e.store.Artists(playlist)
	if err != nil {
		return nil, fmt.Errorf("failed to read artists of %s: %w", playlist, err)
	}

	if slices.Contains(recorded, artist.ID) {
		e.logger.Info("artist already in playlist", "artist", artist.Name, "playlist", playlist)
		return noOpResult(playlist, ActionAdd, artist, "%s already in %s.", artist.Name, playlist), nil
	}

	run := e.startRun(playlist, ActionAdd, artist.ID)
	r, err := e.applyArtist(ctx, playlist, nil, artist, ActionAdd, progress)
	if err == nil {
		if err = e.store.AddArtist(playlist, artist.ID); err != nil {
			err = fmt.Errorf("failed to record artist %s: %w", artist.ID, err)
		}
	}
	e.finishRun(run, r, err)

	if err != nil {
		return nil, err
	}
	return r, nil
}

// RemoveArtist moves the artist from present to absent in playlist.
func (e *Engine) RemoveArtist(ctx context.Context, playlist, artistRef string, progress chan<- ProgressUpdate) (*Result, error) {
	artist, err := e.lookupArtist(ctx, artistRef)
	if err != nil {
		return nil, err
	}

	recorded, err := e.store.Artists(playlist)
	if err != nil {
		return nil, fmt.Errorf("failed to read artists of %s: %w", playlist, err)
	}

	if !slices.Contains(recorded, artist.ID) {
		e.logger.Info("artist not in playlist", "artist", artist.Name, "playlist", playlist)
		return noOpResult(playlist, ActionRemove, artist, "%s not in %s.", artist.Name, playlist), nil
	}

	run := e.startRun(playlist, ActionRemove, artist.ID)
	r, err := e.applyArtist(ctx, playlist, nil, artist, ActionRemove, progress)
	if err == nil {
		if err = e.store.RemoveArtist(playlist, artist.ID); err != nil {
			err = fmt.Errorf("failed to forget artist %s: %w", artist.ID, err)
		}
	}
	e.finishRun(run, r, err)

	if err != nil {
		return nil, err
	}
	return r, nil
}

// applyArtist follows or unfollows artist and adds or removes its albums. A nil session loads the target first.
func (e *Engine) applyArtist(
	ctx context.Context, playlist string, s *session, artist *models.Artist, action Action, progress chan<- ProgressUpdate,
) (*Result, error) {
	if s == nil {
		target, err := e.ResolveTarget(ctx, playlist, progress)
		if err != nil {
			return nil, err
		}
		if s, err = e.load(ctx, target, progress); err != nil {
			return nil, err
		}
	} else if err := e.snapshot(ctx, s); err != nil {
		return nil, err
	}

	r := newResult(playlist, action, artist)
	e.logger.Info(action.Announce(artist.Name, playlist))
	e.sendProgress(progress, followUpdate(action, artist, playlist))

	if err := action.follow(e.library, ctx, artist.ID); err != nil {
		return r, fmt.Errorf("failed to %s artist %s: %w", action, artist.Name, err)
	}

	e.sendProgress(progress, fetchAlbumsUpdate(1, 1, artist.ID))

	var err error
	if action.name == ActionAdd.name {
		err = e.syncArtist(ctx, s, artist.ID, r, progress)
	} else {
		err = e.removeArtistAlbums(ctx, s, artist.ID, r, progress)
	}
	if err != nil {
		return r, err
	}

	if err := e.verify(ctx, s, r, progress); err != nil {
		return r, err
	}
	return r, nil
}

// Update adds missing albums of every artist recorded for playlist. A playlist without artists is a no-op.
func (e *Engine) Update(ctx context.Context, playlist string, progress chan<- ProgressUpdate) (*Result, error) {
	artists, err := e.store.Artists(playlist)
	if err != nil {
		return nil, fmt.Errorf("failed to read artists of %s: %w", playlist, err)
	}

	if len(artists) == 0 {
		e.logger.Info("no artists recorded", "playlist", playlist)
		return noOpResult(playlist, ActionAdd, nil, "No artists in %s.", playlist), nil
	}

	run := e.startRun(playlist, ActionAdd, artists...)
	run.Action = "update"

	r, err := e.update(ctx, playlist, artists, progress)
	e.finishRun(run, r, err)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (e *Engine) update(ctx context.Context, playlist string, artists []string, progress chan<- ProgressUpdate) (*Result, error) {
	target, err := e.ResolveTarget(ctx, playlist, progress)
	if err != nil {
		return nil, err
	}

	s, err := e.load(ctx, target, progress)
	if err != nil {
		return nil, err
	}

	r := newResult(playlist, ActionAdd, nil)
	for i, id := range artists {
		e.sendProgress(progress, fetchAlbumsUpdate(i+1, len(artists), id))
		if err := e.syncArtist(ctx, s, id, r, progress); err != nil {
			return r, err
		}
	}

	if err := e.verify(ctx, s, r, progress); err != nil {
		return r, err
	}
	return r, nil
}

// Apply adds or removes the albums of each artist in turn, following or unfollowing them, and checks the track
// count after each one.
func (e *Engine) Apply(
	ctx context.Context, playlist string, artistRefs []string, action Action, progress chan<- ProgressUpdate,
) ([]*Result, error) {
	if !action.valid() {
		return nil, fmt.Errorf("%w: unknown action", shared.ErrInvalidArgument)
	}
	if len(artistRefs) == 0 {
		return nil, fmt.Errorf("%w: at least one artist", shared.ErrMissingArgument)
	}

	ids := make([]string, len(artistRefs))
	for i, ref := range artistRefs {
		id, err := shared.ParseSpotifyID("artist", ref)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}

	target, err := e.ResolveTarget(ctx, playlist, progress)
	if err != nil {
		return nil, err
	}

	s, err := e.load(ctx, target, progress)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(ids))
	for _, id := range ids {
		artist, err := e.library.Artist(ctx, id)
		if err != nil {
			return results, fmt.Errorf("failed to get artist %s: %w", id, err)
		}

		run := e.startRun(playlist, action, artist.ID)
		r, err := e.applyArtist(ctx, playlist, s, artist, action, progress)
		e.finishRun(run, r, err)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}

var errStopPaging = errors.New("stop paging")

// TotalTracks sums the server-reported track totals of every album of the artist.
func (e *Engine) TotalTracks(ctx context.Context, artistRef string) (int, error) {
	id, err := shared.ParseSpotifyID("artist", artistRef)
	if err != nil {
		return 0, err
	}

	albums, err := pager.Collect(ctx, e.library.ArtistAlbums(id, e.opts.AlbumTypes), e.pagerOpts()...)
	if err != nil {
		return 0, fmt.Errorf("failed to list albums of %s: %w", id, err)
	}

	total := 0
	for _, album := range albums {
		err := pager.Each(ctx, e.library.AlbumTracks(album.ID), func(p pager.Page[models.Track]) error {
			total += p.Total
			return errStopPaging
		}, e.pagerOpts()...)
		if err != nil && !errors.Is(err, errStopPaging) {
			return 0, fmt.Errorf("failed to count tracks of %s: %w", album.Name, err)
		}
	}
	return total, nil
}
