// Spotify Web API implementation of [Library]
package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/discog/internal/models"
	"github.com/desertthunder/discog/internal/pager"
	"github.com/desertthunder/discog/internal/shared"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultRedirectURI = "http://127.0.0.1:8080/callback"
	DefaultRateLimit   = 10.0

	playlistPageSize = 50
	itemPageSize     = 100
	albumPageSize    = 50
	trackPageSize    = 50
)

// Scopes are the OAuth scopes discog asks for.
var Scopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopeUserFollowRead,
	spotifyauth.ScopeUserFollowModify,
}

// SpotifyService implements [Library] for the Spotify Web API.
type SpotifyService struct {
	config    *oauth2.Config
	client    *spotify.Client
	source    oauth2.TokenSource
	base      http.RoundTripper
	baseURL   string
	autoRetry bool
	limiter   *rate.Limiter
	logger    *log.Logger
	trace     bool

	onTokenRefresh func(*oauth2.Token)
}

// Option configures a [SpotifyService].
type Option func(*SpotifyService)

// WithBaseURL points the API client at another host. The URL must end with a slash.
func WithBaseURL(url string) Option {
	return func(s *SpotifyService) { s.baseURL = url }
}

// WithRateLimit caps outgoing requests per second. Non-positive values disable the limiter.
func WithRateLimit(rps float64) Option {
	return func(s *SpotifyService) {
		if rps <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithAutoRetry toggles the client's own handling of 429 responses.
func WithAutoRetry(enabled bool) Option {
	return func(s *SpotifyService) { s.autoRetry = enabled }
}

// WithTrace logs every request through l at debug level.
func WithTrace(l *log.Logger) Option {
	return func(s *SpotifyService) {
		s.logger = l
		s.trace = l != nil
	}
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts ...Option) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}

	s := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyauth.AuthURL,
				TokenURL: spotifyauth.TokenURL,
			},
		},
		base:      http.DefaultTransport,
		autoRetry: true,
		limiter:   rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
	}

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AuthURL returns the authorization URL for user login, bound to state and the PKCE verifier.
func (s *SpotifyService) AuthURL(state, verifier string) string {
	return s.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// RedirectURL returns the configured OAuth callback.
func (s *SpotifyService) RedirectURL() string {
	return s.config.RedirectURL
}

// Exchange trades an authorization code for a token.
func (s *SpotifyService) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: s.base})
	token, err := s.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// Authenticate builds the API client around token. Expired tokens are refreshed on demand.
func (s *SpotifyService) Authenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return fmt.Errorf("%w: empty token", shared.ErrNotAuthenticated)
	}

	var transport http.RoundTripper = &rateLimitTransport{limiter: s.limiter, base: s.base}
	if s.trace {
		transport = &TraceTransport{Base: transport, Logger: s.logger}
	}

	refreshCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, &http.Client{Transport: transport})
	s.source = &refreshableTokenSource{
		source:   s.config.TokenSource(refreshCtx, token),
		callback: s.tokenRefreshed,
	}

	httpClient := &http.Client{Transport: &oauth2.Transport{Source: s.source, Base: transport}}

	clientOpts := []spotify.ClientOption{spotify.WithRetry(s.autoRetry)}
	if s.baseURL != "" {
		clientOpts = append(clientOpts, spotify.WithBaseURL(s.baseURL))
	}
	s.client = spotify.New(httpClient, clientOpts...)
	return nil
}

// SetTokenRefreshCallback registers fn to receive every new token, including the first one used.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

func (s *SpotifyService) tokenRefreshed(token *oauth2.Token) {
	if s.onTokenRefresh != nil {
		s.onTokenRefresh(token)
	}
}

// Token returns the current, possibly refreshed, token.
func (s *SpotifyService) Token() (*oauth2.Token, error) {
	if s.source == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return s.source.Token()
}

func (s *SpotifyService) api() (*spotify.Client, error) {
	if s.client == nil {
		return nil, fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}
	return s.client, nil
}

// CurrentUser returns the authenticated account.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*models.User, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return nil, apiError("get current user", err, nil)
	}
	return &models.User{ID: user.ID, DisplayName: user.DisplayName}, nil
}

// Playlists lists the current user's playlists.
func (s *SpotifyService) Playlists() pager.Source[models.Playlist] {
	fetch := func(ctx context.Context) (*spotify.SimplePlaylistPage, error) {
		client, err := s.api()
		if err != nil {
			return nil, err
		}
		page, err := client.CurrentUsersPlaylists(ctx, spotify.Limit(playlistPageSize))
		if err != nil {
			return nil, apiError("list playlists", err, nil)
		}
		return page, nil
	}

	return pager.Source[models.Playlist]{
		Fetch: pager.Unwrap(fetch, playlistPage),
		Follow: func(ctx context.Context, cursor string) (pager.Page[models.Playlist], error) {
			client, err := s.api()
			if err != nil {
				return pager.Page[models.Playlist]{}, err
			}
			page := &spotify.SimplePlaylistPage{}
			page.Next = cursor
			if err := client.NextPage(ctx, page); err != nil && !errors.Is(err, spotify.ErrNoMorePages) {
				return pager.Page[models.Playlist]{}, apiError("list playlists", err, nil)
			}
			return playlistPage(page), nil
		},
	}
}

// Playlist retrieves one playlist, including its track total.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	p, err := client.GetPlaylist(ctx, spotify.ID(playlistID))
	if err != nil {
		return nil, apiError("get playlist "+playlistID, err, shared.ErrPlaylistNotFound)
	}
	return fullPlaylist(p), nil
}

// CreatePlaylist creates a playlist owned by userID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, userID, name string, public bool) (*models.Playlist, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	p, err := client.CreatePlaylistForUser(ctx, userID, name, "", public, false)
	if err != nil {
		return nil, apiError("create playlist "+name, err, nil)
	}
	return fullPlaylist(p), nil
}

// RenamePlaylist changes a playlist's name.
func (s *SpotifyService) RenamePlaylist(ctx context.Context, playlistID, name string) error {
	client, err := s.api()
	if err != nil {
		return err
	}

	if err := client.ChangePlaylistName(ctx, spotify.ID(playlistID), name); err != nil {
		return apiError("rename playlist "+playlistID, err, shared.ErrPlaylistNotFound)
	}
	return nil
}

// PlaylistItems lists the tracks of a playlist.
func (s *SpotifyService) PlaylistItems(playlistID string) pager.Source[models.Track] {
	op := "list items of playlist " + playlistID
	fetch := func(ctx context.Context) (*spotify.PlaylistItemPage, error) {
		client, err := s.api()
		if err != nil {
			return nil, err
		}
		page, err := client.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(itemPageSize))
		if err != nil {
			return nil, apiError(op, err, shared.ErrPlaylistNotFound)
		}
		return page, nil
	}

	return pager.Source[models.Track]{
		Fetch: pager.Unwrap(fetch, playlistItemPage),
		Follow: func(ctx context.Context, cursor string) (pager.Page[models.Track], error) {
			client, err := s.api()
			if err != nil {
				return pager.Page[models.Track]{}, err
			}
			page := &spotify.PlaylistItemPage{}
			page.Next = cursor
			if err := client.NextPage(ctx, page); err != nil && !errors.Is(err, spotify.ErrNoMorePages) {
				return pager.Page[models.Track]{}, apiError(op, err, shared.ErrPlaylistNotFound)
			}
			return playlistItemPage(page), nil
		},
	}
}

// Artist retrieves an artist by ID.
func (s *SpotifyService) Artist(ctx context.Context, artistID string) (*models.Artist, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	a, err := client.GetArtist(ctx, spotify.ID(artistID))
	if err != nil {
		return nil, apiError("get artist "+artistID, err, shared.ErrArtistNotFound)
	}
	return &models.Artist{ID: string(a.ID), Name: a.Name, Genres: a.Genres}, nil
}

// ArtistAlbums lists an artist's catalog restricted to types.
func (s *SpotifyService) ArtistAlbums(artistID string, types []models.AlbumType) pager.Source[models.Album] {
	op := "list albums of artist " + artistID
	fetch := func(ctx context.Context) (*spotify.SimpleAlbumPage, error) {
		client, err := s.api()
		if err != nil {
			return nil, err
		}
		page, err := client.GetArtistAlbums(ctx, spotify.ID(artistID), albumTypes(types), spotify.Limit(albumPageSize))
		if err != nil {
			return nil, apiError(op, err, shared.ErrArtistNotFound)
		}
		return page, nil
	}

	return pager.Source[models.Album]{
		Fetch: pager.Unwrap(fetch, albumPage),
		Follow: func(ctx context.Context, cursor string) (pager.Page[models.Album], error) {
			client, err := s.api()
			if err != nil {
				return pager.Page[models.Album]{}, err
			}
			page := &spotify.SimpleAlbumPage{}
			page.Next = cursor
			if err := client.NextPage(ctx, page); err != nil && !errors.Is(err, spotify.ErrNoMorePages) {
				return pager.Page[models.Album]{}, apiError(op, err, shared.ErrArtistNotFound)
			}
			return albumPage(page), nil
		},
	}
}

// AlbumTracks lists an album's tracks.
func (s *SpotifyService) AlbumTracks(albumID string) pager.Source[models.Track] {
	op := "list tracks of album " + albumID
	toPage := func(p *spotify.SimpleTrackPage) pager.Page[models.Track] { return trackPage(p, albumID) }
	fetch := func(ctx context.Context) (*spotify.SimpleTrackPage, error) {
		client, err := s.api()
		if err != nil {
			return nil, err
		}
		page, err := client.GetAlbumTracks(ctx, spotify.ID(albumID), spotify.Limit(trackPageSize))
		if err != nil {
			return nil, apiError(op, err, nil)
		}
		return page, nil
	}

	return pager.Source[models.Track]{
		Fetch: pager.Unwrap(fetch, toPage),
		Follow: func(ctx context.Context, cursor string) (pager.Page[models.Track], error) {
			client, err := s.api()
			if err != nil {
				return pager.Page[models.Track]{}, err
			}
			page := &spotify.SimpleTrackPage{}
			page.Next = cursor
			if err := client.NextPage(ctx, page); err != nil && !errors.Is(err, spotify.ErrNoMorePages) {
				return pager.Page[models.Track]{}, apiError(op, err, nil)
			}
			return toPage(page), nil
		},
	}
}

// AddTracks appends tracks to a playlist in a single request.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, trackIDs ...string) error {
	client, err := s.api()
	if err != nil {
		return err
	}
	if err := checkBatch(trackIDs); err != nil || len(trackIDs) == 0 {
		return err
	}

	if _, err := client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), toIDs(trackIDs)...); err != nil {
		return apiError("add tracks to playlist "+playlistID, err, shared.ErrPlaylistNotFound)
	}
	return nil
}

// RemoveTracks removes every occurrence of tracks from a playlist in a single request.
func (s *SpotifyService) RemoveTracks(ctx context.Context, playlistID string, trackIDs ...string) error {
	client, err := s.api()
	if err != nil {
		return err
	}
	if err := checkBatch(trackIDs); err != nil || len(trackIDs) == 0 {
		return err
	}

	if _, err := client.RemoveTracksFromPlaylist(ctx, spotify.ID(playlistID), toIDs(trackIDs)...); err != nil {
		return apiError("remove tracks from playlist "+playlistID, err, shared.ErrPlaylistNotFound)
	}
	return nil
}

func (s *SpotifyService) FollowArtists(ctx context.Context, artistIDs ...string) error {
	client, err := s.api()
	if err != nil {
		return err
	}
	if len(artistIDs) == 0 {
		return nil
	}

	if err := client.FollowArtist(ctx, toIDs(artistIDs)...); err != nil {
		return apiError("follow artists", err, shared.ErrArtistNotFound)
	}
	return nil
}

func (s *SpotifyService) UnfollowArtists(ctx context.Context, artistIDs ...string) error {
	client, err := s.api()
	if err != nil {
		return err
	}
	if len(artistIDs) == 0 {
		return nil
	}

	if err := client.UnfollowArtist(ctx, toIDs(artistIDs)...); err != nil {
		return apiError("unfollow artists", err, shared.ErrArtistNotFound)
	}
	return nil
}

func checkBatch(ids []string) error {
	if len(ids) > shared.MaxBatchSize {
		return fmt.Errorf("%w: %d tracks exceeds the batch limit of %d", shared.ErrInvalidArgument, len(ids), shared.MaxBatchSize)
	}
	return nil
}

// apiError maps client failures onto the shared error taxonomy. notFound, when set, replaces 404s.
func apiError(op string, err error, notFound error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var se spotify.Error
	if errors.As(err, &se) {
		switch {
		case se.Status == http.StatusUnauthorized:
			return fmt.Errorf("%w: %s: %s", shared.ErrTokenExpired, op, se.Message)
		case se.Status == http.StatusNotFound && notFound != nil:
			return fmt.Errorf("%w: %s: %s", notFound, op, se.Message)
		case se.Status == http.StatusServiceUnavailable:
			return fmt.Errorf("%w: %w: %w: %s: %s", shared.ErrAPIRequest, shared.ErrTransient, shared.ErrServiceUnavailable, op, se.Message)
		case se.Status == http.StatusTooManyRequests || se.Status >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %w: %s: %s (status %d)", shared.ErrAPIRequest, shared.ErrTransient, op, se.Message, se.Status)
		default:
			return fmt.Errorf("%w: %s: %s (status %d)", shared.ErrAPIRequest, op, se.Message, se.Status)
		}
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return fmt.Errorf("%w: %s: %v", shared.ErrAuthFailed, op, err)
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %w: %s: %v", shared.ErrAPIRequest, shared.ErrTransient, op, err)
	}

	return fmt.Errorf("%w: %s: %v", shared.ErrAPIRequest, op, err)
}
