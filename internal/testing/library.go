package testing

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/desertthunder/discog/internal/models"
	"github.com/desertthunder/discog/internal/pager"
	"github.com/desertthunder/discog/internal/services"
	"github.com/desertthunder/discog/internal/shared"
)

var (
	_ services.Library       = (*FakeLibrary)(nil)
	_ models.MembershipStore = (*MemoryStore)(nil)
)

// Call is one mutating request received by [FakeLibrary].
type Call struct {
	Op       string // add, remove, rename, create, follow, unfollow
	Playlist string // Playlist id, when the call targets one
	IDs      []string
	Name     string
}

type fakePlaylist struct {
	models.Playlist
	tracks []models.Track
}

// FakeLibrary is an in-memory Spotify account implementing services.Library.
//
// Collections are served in pages of PageSize items so callers exercise cursor following.
type FakeLibrary struct {
	mu sync.Mutex

	User     models.User
	PageSize int

	// AddFilter, when set, decides which of the submitted track ids a playlist actually accepts.
	AddFilter func(playlistID string, ids []string) []string

	// Errors fails the named operation (for example "AddTracks" or "PlaylistItems") with the given error.
	Errors map[string]error

	Calls   []Call
	Follows int // Follow requests served by paginated sources

	playlists    []*fakePlaylist
	artists      map[string]models.Artist
	artistAlbums map[string][]models.Album
	albumTracks  map[string][]models.Track
	tracks       map[string]models.Track
	followed     map[string]bool
	nextID       int
}

// NewFakeLibrary returns an empty account for user "tester".
func NewFakeLibrary() *FakeLibrary {
	return &FakeLibrary{
		User:         models.User{ID: "tester", DisplayName: "Tester"},
		PageSize:     2,
		Errors:       map[string]error{},
		artists:      map[string]models.Artist{},
		artistAlbums: map[string][]models.Album{},
		albumTracks:  map[string][]models.Track{},
		tracks:       map[string]models.Track{},
		followed:     map[string]bool{},
	}
}

// AddArtist registers an artist with no albums.
func (f *FakeLibrary) AddArtist(id, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artists[id] = models.Artist{ID: id, Name: name}
}

// AddAlbum registers an album of trackCount tracks in artistID's catalog. Track ids are "<albumID>-<n>".
func (f *FakeLibrary) AddAlbum(artistID, albumID, name string, albumType models.AlbumType, trackCount int) []models.Track {
	f.mu.Lock()
	defer f.mu.Unlock()

	artistName := f.artists[artistID].Name
	f.artistAlbums[artistID] = append(f.artistAlbums[artistID], models.Album{
		ID: albumID, Name: name, AlbumType: albumType, Artists: []string{artistName},
	})

	tracks := make([]models.Track, trackCount)
	for i := range tracks {
		t := models.Track{
			ID:        fmt.Sprintf("%s-%d", albumID, i+1),
			Name:      fmt.Sprintf("%s %d", name, i+1),
			Artists:   []string{artistName},
			AlbumID:   albumID,
			AlbumName: name,
		}
		tracks[i] = t
		f.tracks[t.ID] = t
	}
	f.albumTracks[albumID] = tracks
	return slices.Clone(tracks)
}

// AddPlaylist creates a playlist named name holding tracks and returns its id.
func (f *FakeLibrary) AddPlaylist(name string, tracks ...models.Track) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.newPlaylist(name)
	p.tracks = append(p.tracks, tracks...)
	return p.ID
}

// FillerTracks returns n tracks that belong to no registered artist.
func FillerTracks(prefix string, n int) []models.Track {
	tracks := make([]models.Track, n)
	for i := range tracks {
		tracks[i] = models.Track{ID: fmt.Sprintf("%s-%d", prefix, i+1), AlbumID: prefix}
	}
	return tracks
}

func (f *FakeLibrary) newPlaylist(name string) *fakePlaylist {
	f.nextID++
	p := &fakePlaylist{Playlist: models.Playlist{ID: "pl" + strconv.Itoa(f.nextID), Name: name}}
	f.playlists = append(f.playlists, p)
	return p
}

func (f *FakeLibrary) find(id string) (*fakePlaylist, error) {
	for _, p := range f.playlists {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
}

func (f *FakeLibrary) fail(op string) error {
	if err, ok := f.Errors[op]; ok {
		return err
	}
	return nil
}

func (p *fakePlaylist) snapshot() models.Playlist {
	pl := p.Playlist
	pl.TrackCount = len(p.tracks)
	return pl
}

// PlaylistNamed returns the first playlist called name.
func (f *FakeLibrary) PlaylistNamed(name string) (models.Playlist, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.playlists {
		if p.Name == name {
			return p.snapshot(), true
		}
	}
	return models.Playlist{}, false
}

// PlaylistNames lists every playlist name in creation order.
func (f *FakeLibrary) PlaylistNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.playlists))
	for i, p := range f.playlists {
		names[i] = p.Name
	}
	return names
}

// Tracks returns a copy of a playlist's tracks.
func (f *FakeLibrary) Tracks(playlistID string) []models.Track {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.find(playlistID)
	if err != nil {
		return nil
	}
	return slices.Clone(p.tracks)
}

// CallsTo returns the recorded calls for op.
func (f *FakeLibrary) CallsTo(op string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var calls []Call
	for _, c := range f.Calls {
		if c.Op == op {
			calls = append(calls, c)
		}
	}
	return calls
}

// ResetCalls clears the call log.
func (f *FakeLibrary) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = nil
	f.Follows = 0
}

// IsFollowing reports whether artistID is followed.
func (f *FakeLibrary) IsFollowing(artistID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.followed[artistID]
}

// paginate serves snapshot in pages, using the offset as cursor.
func paginate[T any](f *FakeLibrary, op string, snapshot func() ([]T, error)) pager.Source[T] {
	page := func(offset int) (pager.Page[T], error) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if err := f.fail(op); err != nil {
			return pager.Page[T]{}, err
		}

		items, err := snapshot()
		if err != nil {
			return pager.Page[T]{}, err
		}

		size := f.PageSize
		if size < 1 {
			size = len(items) + 1
		}
		end := min(offset+size, len(items))

		p := pager.Page[T]{Items: slices.Clone(items[offset:end]), Total: len(items)}
		if end < len(items) {
			p.Next = strconv.Itoa(end)
		}
		return p, nil
	}

	return pager.Source[T]{
		Fetch: func(ctx context.Context) (pager.Page[T], error) { return page(0) },
		Follow: func(ctx context.Context, cursor string) (pager.Page[T], error) {
			f.mu.Lock()
			f.Follows++
			f.mu.Unlock()

			offset, err := strconv.Atoi(cursor)
			if err != nil {
				return pager.Page[T]{}, fmt.Errorf("bad cursor %q", cursor)
			}
			return page(offset)
		},
	}
}

func (f *FakeLibrary) CurrentUser(ctx context.Context) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CurrentUser"); err != nil {
		return nil, err
	}
	u := f.User
	return &u, nil
}

func (f *FakeLibrary) Playlists() pager.Source[models.Playlist] {
	return paginate(f, "Playlists", func() ([]models.Playlist, error) {
		out := make([]models.Playlist, len(f.playlists))
		for i, p := range f.playlists {
			out[i] = p.snapshot()
		}
		return out, nil
	})
}

func (f *FakeLibrary) Playlist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("Playlist"); err != nil {
		return nil, err
	}
	p, err := f.find(playlistID)
	if err != nil {
		return nil, err
	}
	pl := p.snapshot()
	return &pl, nil
}

func (f *FakeLibrary) CreatePlaylist(ctx context.Context, userID, name string, public bool) (*models.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreatePlaylist"); err != nil {
		return nil, err
	}
	p := f.newPlaylist(name)
	p.Public = public
	f.Calls = append(f.Calls, Call{Op: "create", Playlist: p.ID, Name: name})
	pl := p.snapshot()
	return &pl, nil
}

func (f *FakeLibrary) RenamePlaylist(ctx context.Context, playlistID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("RenamePlaylist"); err != nil {
		return err
	}
	p, err := f.find(playlistID)
	if err != nil {
		return err
	}
	p.Name = name
	f.Calls = append(f.Calls, Call{Op: "rename", Playlist: playlistID, Name: name})
	return nil
}

func (f *FakeLibrary) PlaylistItems(playlistID string) pager.Source[models.Track] {
	return paginate(f, "PlaylistItems", func() ([]models.Track, error) {
		p, err := f.find(playlistID)
		if err != nil {
			return nil, err
		}
		return p.tracks, nil
	})
}

func (f *FakeLibrary) Artist(ctx context.Context, artistID string) (*models.Artist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("Artist"); err != nil {
		return nil, err
	}
	a, ok := f.artists[artistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrArtistNotFound, artistID)
	}
	return &a, nil
}

func (f *FakeLibrary) ArtistAlbums(artistID string, types []models.AlbumType) pager.Source[models.Album] {
	return paginate(f, "ArtistAlbums", func() ([]models.Album, error) {
		if _, ok := f.artists[artistID]; !ok {
			return nil, fmt.Errorf("%w: %s", shared.ErrArtistNotFound, artistID)
		}
		var out []models.Album
		for _, a := range f.artistAlbums[artistID] {
			if slices.Contains(types, a.AlbumType) {
				out = append(out, a)
			}
		}
		return out, nil
	})
}

func (f *FakeLibrary) AlbumTracks(albumID string) pager.Source[models.Track] {
	return paginate(f, "AlbumTracks", func() ([]models.Track, error) {
		return f.albumTracks[albumID], nil
	})
}

func (f *FakeLibrary) AddTracks(ctx context.Context, playlistID string, trackIDs ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("AddTracks"); err != nil {
		return err
	}
	if len(trackIDs) > shared.MaxBatchSize {
		return fmt.Errorf("%w: batch of %d", shared.ErrInvalidArgument, len(trackIDs))
	}
	p, err := f.find(playlistID)
	if err != nil {
		return err
	}

	f.Calls = append(f.Calls, Call{Op: "add", Playlist: playlistID, IDs: slices.Clone(trackIDs)})

	accepted := trackIDs
	if f.AddFilter != nil {
		accepted = f.AddFilter(playlistID, trackIDs)
	}
	for _, id := range accepted {
		t, ok := f.tracks[id]
		if !ok {
			t = models.Track{ID: id}
		}
		p.tracks = append(p.tracks, t)
	}
	return nil
}

func (f *FakeLibrary) RemoveTracks(ctx context.Context, playlistID string, trackIDs ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("RemoveTracks"); err != nil {
		return err
	}
	if len(trackIDs) > shared.MaxBatchSize {
		return fmt.Errorf("%w: batch of %d", shared.ErrInvalidArgument, len(trackIDs))
	}
	p, err := f.find(playlistID)
	if err != nil {
		return err
	}

	f.Calls = append(f.Calls, Call{Op: "remove", Playlist: playlistID, IDs: slices.Clone(trackIDs)})
	p.tracks = slices.DeleteFunc(p.tracks, func(t models.Track) bool { return slices.Contains(trackIDs, t.ID) })
	return nil
}

func (f *FakeLibrary) FollowArtists(ctx context.Context, artistIDs ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("FollowArtists"); err != nil {
		return err
	}
	for _, id := range artistIDs {
		f.followed[id] = true
	}
	f.Calls = append(f.Calls, Call{Op: "follow", IDs: slices.Clone(artistIDs)})
	return nil
}

func (f *FakeLibrary) UnfollowArtists(ctx context.Context, artistIDs ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("UnfollowArtists"); err != nil {
		return err
	}
	for _, id := range artistIDs {
		delete(f.followed, id)
	}
	f.Calls = append(f.Calls, Call{Op: "unfollow", IDs: slices.Clone(artistIDs)})
	return nil
}

// MemoryStore is an in-memory models.MembershipStore.
type MemoryStore struct {
	mu   sync.Mutex
	Data map[string][]string
	Err  error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Data: map[string][]string{}}
}

func (s *MemoryStore) Artists(playlist string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return slices.Clone(s.Data[playlist]), nil
}

func (s *MemoryStore) AddArtist(playlist, artistID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if !slices.Contains(s.Data[playlist], artistID) {
		s.Data[playlist] = append(s.Data[playlist], artistID)
	}
	return nil
}

func (s *MemoryStore) RemoveArtist(playlist, artistID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Data[playlist] = slices.DeleteFunc(s.Data[playlist], func(id string) bool { return id == artistID })
	return nil
}

func (s *MemoryStore) Playlists() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for name, ids := range s.Data {
		if len(ids) > 0 {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}
