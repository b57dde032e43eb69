package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/discog/internal/models"
	"github.com/desertthunder/discog/internal/pager"
	"github.com/desertthunder/discog/internal/shared"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

var testCredentials = map[string]string{
	"client_id":     "test_client_id",
	"client_secret": "test_client_secret",
	"redirect_uri":  "http://127.0.0.1:9999/callback",
}

// fakeSpotify serves the handful of Web API endpoints the service uses.
type fakeSpotify struct {
	srv     *httptest.Server
	added   [][]string
	removed [][]string
	follows []string
	auth    string
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func apiErrorBody(status int, msg string) string {
	return fmt.Sprintf(`{"error":{"status":%d,"message":%q}}`, status, msg)
}

func newFakeSpotify(t *testing.T) *fakeSpotify {
	t.Helper()
	f := &fakeSpotify{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
		f.auth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, `{"id":"user1","display_name":"User One"}`)
	})
	mux.HandleFunc("GET /me/playlists", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "1" {
			writeJSON(w, http.StatusOK, `{"items":[{"id":"p2","name":"unfilled-1","public":false,"tracks":{"total":7}}],"total":2,"next":null}`)
			return
		}
		next := f.srv.URL + "/me/playlists?offset=1&limit=1"
		writeJSON(w, http.StatusOK, fmt.Sprintf(`{"items":[{"id":"p1","name":"unfilled","public":false,"tracks":{"total":3}}],"total":2,"next":%q}`, next))
	})
	mux.HandleFunc("GET /playlists/p1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":"p1","name":"unfilled","snapshot_id":"snap","tracks":{"total":3,"items":[]}}`)
	})
	mux.HandleFunc("GET /playlists/missing", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, apiErrorBody(http.StatusNotFound, "Not found"))
	})
	mux.HandleFunc("GET /playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"items":[
			{"track":{"type":"track","id":"t1","name":"One","artists":[{"id":"a1","name":"Artist"}],"album":{"id":"al1","name":"Album"}}},
			{"track":{"type":"track","id":null,"name":"Local file","artists":[],"album":{"id":null,"name":""}}},
			{"track":{"type":"track","id":"t2","name":"Two","artists":[{"id":"a1","name":"Artist"}],"album":{"id":"al1","name":"Album"}}}
		],"total":3,"next":null}`)
	})
	mux.HandleFunc("POST /playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			URIs []string `json:"uris"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.added = append(f.added, body.URIs)
		writeJSON(w, http.StatusCreated, `{"snapshot_id":"snap2"}`)
	})
	mux.HandleFunc("DELETE /playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Tracks []struct {
				URI string `json:"uri"`
			} `json:"tracks"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		uris := []string{}
		for _, tr := range body.Tracks {
			uris = append(uris, tr.URI)
		}
		f.removed = append(f.removed, uris)
		writeJSON(w, http.StatusOK, `{"snapshot_id":"snap3"}`)
	})
	mux.HandleFunc("GET /artists/a1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":"a1","name":"Artist","genres":["rock"]}`)
	})
	mux.HandleFunc("GET /artists/a1/albums", func(w http.ResponseWriter, r *http.Request) {
		groups := r.URL.Query().Get("include_groups")
		if groups != "album,single" {
			writeJSON(w, http.StatusBadRequest, apiErrorBody(http.StatusBadRequest, "unexpected include_groups "+groups))
			return
		}
		writeJSON(w, http.StatusOK, `{"items":[
			{"id":"al1","name":"Album","album_type":"album","release_date":"2001","artists":[{"id":"a1","name":"Artist"}]},
			{"id":"al2","name":"Single","album_type":"single","release_date":"2002","artists":[{"id":"a1","name":"Artist"},{"id":"a2","name":"Guest"}]}
		],"total":2,"next":null}`)
	})
	mux.HandleFunc("GET /artists/flaky/albums", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadGateway, apiErrorBody(http.StatusBadGateway, "bad gateway"))
	})
	mux.HandleFunc("GET /artists/expired", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, apiErrorBody(http.StatusUnauthorized, "The access token expired"))
	})
	mux.HandleFunc("GET /albums/al1/tracks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"items":[{"id":"t1","name":"One","artists":[{"id":"a1","name":"Artist"}]},{"id":"t2","name":"Two","artists":[]}],"total":2,"next":null}`)
	})
	mux.HandleFunc("PUT /me/following", func(w http.ResponseWriter, r *http.Request) {
		f.follows = append(f.follows, "follow:"+r.URL.Query().Get("ids"))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("DELETE /me/following", func(w http.ResponseWriter, r *http.Request) {
		f.follows = append(f.follows, "unfollow:"+r.URL.Query().Get("ids"))
		w.WriteHeader(http.StatusNoContent)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func newTestService(t *testing.T, f *fakeSpotify) *SpotifyService {
	t.Helper()

	srv, err := NewSpotifyService(testCredentials, WithBaseURL(f.srv.URL+"/"), WithRateLimit(0), WithAutoRetry(false))
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	token := &oauth2.Token{AccessToken: "test_access_token", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
	if err := srv.Authenticate(context.Background(), token); err != nil {
		t.Fatalf("failed to authenticate: %v", err)
	}
	return srv
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			srv, err := NewSpotifyService(testCredentials)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.RedirectURL() != "http://127.0.0.1:9999/callback" {
				t.Errorf("unexpected redirect URL %s", srv.RedirectURL())
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_secret": "test_client_secret"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_id": "test_client_id"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Default Redirect URI", func(t *testing.T) {
			srv, err := NewSpotifyService(map[string]string{"client_id": "id", "client_secret": "secret"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.config.RedirectURL != DefaultRedirectURI {
				t.Errorf("expected default redirect URI, got %s", srv.config.RedirectURL)
			}
		})
	})

	t.Run("AuthURL", func(t *testing.T) {
		srv, _ := NewSpotifyService(testCredentials)
		authURL := srv.AuthURL("test_state", oauth2.GenerateVerifier())

		for _, want := range []string{"accounts.spotify.com", "test_client_id", "test_state", "code_challenge", "user-follow-modify"} {
			if !strings.Contains(authURL, want) {
				t.Errorf("auth URL should contain %q: %s", want, authURL)
			}
		}
	})

	t.Run("Not Authenticated", func(t *testing.T) {
		srv, _ := NewSpotifyService(testCredentials)

		if _, err := srv.CurrentUser(context.Background()); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if _, err := srv.Token(); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated from Token, got %v", err)
		}
		if err := srv.Authenticate(context.Background(), &oauth2.Token{}); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated for empty token, got %v", err)
		}
	})

	t.Run("Library Interface", func(t *testing.T) {
		var _ Library = (*SpotifyService)(nil)
	})
}

func TestSpotifyServiceAPI(t *testing.T) {
	f := newFakeSpotify(t)
	srv := newTestService(t, f)
	ctx := context.Background()

	t.Run("CurrentUser", func(t *testing.T) {
		user, err := srv.CurrentUser(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if user.ID != "user1" || user.DisplayName != "User One" {
			t.Errorf("unexpected user %+v", user)
		}
		if f.auth != "Bearer test_access_token" {
			t.Errorf("expected bearer token, got %q", f.auth)
		}
	})

	t.Run("Playlists Follows Next", func(t *testing.T) {
		playlists, err := pager.Collect(ctx, srv.Playlists())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(playlists) != 2 {
			t.Fatalf("expected 2 playlists, got %d", len(playlists))
		}
		if playlists[0].Name != "unfilled" || playlists[1].Name != "unfilled-1" || playlists[1].TrackCount != 7 {
			t.Errorf("unexpected playlists %+v", playlists)
		}
	})

	t.Run("Playlist", func(t *testing.T) {
		p, err := srv.Playlist(ctx, "p1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if p.TrackCount != 3 || p.SnapshotID != "snap" {
			t.Errorf("unexpected playlist %+v", p)
		}

		_, err = srv.Playlist(ctx, "missing")
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("PlaylistItems Skips Local Files", func(t *testing.T) {
		tracks, err := pager.Collect(ctx, srv.PlaylistItems("p1"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(tracks))
		}
		if tracks[0].AlbumID != "al1" || tracks[1].ID != "t2" {
			t.Errorf("unexpected tracks %+v", tracks)
		}
	})

	t.Run("Artist", func(t *testing.T) {
		a, err := srv.Artist(ctx, "a1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if a.Name != "Artist" || len(a.Genres) != 1 {
			t.Errorf("unexpected artist %+v", a)
		}
	})

	t.Run("ArtistAlbums", func(t *testing.T) {
		types := []models.AlbumType{models.AlbumTypeAlbum, models.AlbumTypeSingle}
		albums, err := pager.Collect(ctx, srv.ArtistAlbums("a1", types))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(albums) != 2 {
			t.Fatalf("expected 2 albums, got %d", len(albums))
		}
		if got := albums[1].Label(); got != "Single - Artist, Guest" {
			t.Errorf("unexpected label %q", got)
		}
		if albums[1].AlbumType != models.AlbumTypeSingle {
			t.Errorf("unexpected album type %q", albums[1].AlbumType)
		}
	})

	t.Run("AlbumTracks Sets Album", func(t *testing.T) {
		tracks, err := pager.Collect(ctx, srv.AlbumTracks("al1"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, tr := range tracks {
			if tr.AlbumID != "al1" {
				t.Errorf("expected album id al1, got %q", tr.AlbumID)
			}
		}
	})

	t.Run("AddTracks", func(t *testing.T) {
		if err := srv.AddTracks(ctx, "p1", "t1", "t2"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(f.added) != 1 || len(f.added[0]) != 2 || f.added[0][0] != "spotify:track:t1" {
			t.Errorf("unexpected add requests %v", f.added)
		}

		if err := srv.AddTracks(ctx, "p1"); err != nil {
			t.Errorf("empty batch should be a no-op, got %v", err)
		}
		if len(f.added) != 1 {
			t.Errorf("empty batch should not hit the API")
		}
	})

	t.Run("AddTracks Over Limit", func(t *testing.T) {
		ids := make([]string, shared.MaxBatchSize+1)
		for i := range ids {
			ids[i] = fmt.Sprintf("t%d", i)
		}
		if err := srv.AddTracks(ctx, "p1", ids...); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("RemoveTracks", func(t *testing.T) {
		if err := srv.RemoveTracks(ctx, "p1", "t1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(f.removed) != 1 || f.removed[0][0] != "spotify:track:t1" {
			t.Errorf("unexpected remove requests %v", f.removed)
		}
	})

	t.Run("Follow And Unfollow", func(t *testing.T) {
		if err := srv.FollowArtists(ctx, "a1"); err != nil {
			t.Fatalf("follow failed: %v", err)
		}
		if err := srv.UnfollowArtists(ctx, "a1"); err != nil {
			t.Fatalf("unfollow failed: %v", err)
		}
		if len(f.follows) != 2 || f.follows[0] != "follow:a1" || f.follows[1] != "unfollow:a1" {
			t.Errorf("unexpected follow requests %v", f.follows)
		}
	})

	t.Run("Server Errors Are Transient", func(t *testing.T) {
		_, err := srv.ArtistAlbums("flaky", models.DefaultAlbumTypes).Fetch(ctx)
		if !errors.Is(err, shared.ErrTransient) || !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected transient API error, got %v", err)
		}
	})

	t.Run("Unauthorized", func(t *testing.T) {
		_, err := srv.Artist(ctx, "expired")
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
	})

	t.Run("Token", func(t *testing.T) {
		token, err := srv.Token()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if token.AccessToken != "test_access_token" {
			t.Errorf("unexpected token %s", token.AccessToken)
		}
	})
}

func TestRefreshableTokenSource(t *testing.T) {
	t.Run("calls callback on first token fetch", func(t *testing.T) {
		var captured *oauth2.Token
		source := &refreshableTokenSource{
			source:   &mockTokenSource{token: &oauth2.Token{AccessToken: "test_token"}},
			callback: func(token *oauth2.Token) { captured = token },
		}

		token, err := source.Token()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if captured == nil || captured.AccessToken != "test_token" {
			t.Errorf("expected callback with test_token, got %v", captured)
		}
		if token.AccessToken != "test_token" {
			t.Errorf("expected returned token to be 'test_token', got %s", token.AccessToken)
		}
	})

	t.Run("calls callback only when token changes", func(t *testing.T) {
		calls := 0
		mock := &mockTokenSource{token: &oauth2.Token{AccessToken: "token1"}}
		source := &refreshableTokenSource{source: mock, callback: func(*oauth2.Token) { calls++ }}

		source.Token()
		source.Token()
		if calls != 1 {
			t.Errorf("expected callback called once, got %d", calls)
		}

		mock.token = &oauth2.Token{AccessToken: "token2"}
		source.Token()
		if calls != 2 {
			t.Errorf("expected callback called twice, got %d", calls)
		}
	})

	t.Run("handles nil callback", func(t *testing.T) {
		source := &refreshableTokenSource{source: &mockTokenSource{token: &oauth2.Token{AccessToken: "x"}}}
		if _, err := source.Token(); err != nil {
			t.Fatalf("expected no error with nil callback, got %v", err)
		}
	})

	t.Run("propagates source errors", func(t *testing.T) {
		source := &refreshableTokenSource{
			source:   &mockTokenSource{err: errors.New("token source error")},
			callback: func(*oauth2.Token) { t.Error("callback should not be called on error") },
		}

		token, err := source.Token()
		if err == nil || !strings.Contains(err.Error(), "token source error") {
			t.Errorf("expected source error, got %v", err)
		}
		if token != nil {
			t.Error("expected nil token on error")
		}
	})

	t.Run("service forwards refreshed tokens", func(t *testing.T) {
		f := newFakeSpotify(t)
		srv := newTestService(t, f)

		var saved []string
		srv.SetTokenRefreshCallback(func(token *oauth2.Token) { saved = append(saved, token.AccessToken) })

		if _, err := srv.CurrentUser(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := srv.CurrentUser(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(saved) != 1 || saved[0] != "test_access_token" {
			t.Errorf("expected a single saved token, got %v", saved)
		}
	})
}

func TestTokenCache(t *testing.T) {
	dir := t.TempDir()
	cache := NewTokenCache(dir, "someone")

	t.Run("Missing", func(t *testing.T) {
		_, err := cache.Load()
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("Round Trip", func(t *testing.T) {
		expiry := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		if err := cache.Save(&oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: expiry}); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		token, err := cache.Load()
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if token.RefreshToken != "r" || !token.Expiry.Equal(expiry) {
			t.Errorf("unexpected token %+v", token)
		}
		if !strings.HasSuffix(cache.Path(), "someone.json") {
			t.Errorf("unexpected path %s", cache.Path())
		}
	})

	t.Run("Nil Token", func(t *testing.T) {
		if err := cache.Save(nil); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

// mockTokenSource implements [oauth2.TokenSource] for testing
type mockTokenSource struct {
	token *oauth2.Token
	err   error
}

func (m *mockTokenSource) Token() (*oauth2.Token, error) {
	return m.token, m.err
}

func TestAPIError(t *testing.T) {
	tt := []struct {
		name   string
		status int
		want   []error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: []error{shared.ErrTokenExpired}},
		{name: "not found", status: http.StatusNotFound, want: []error{shared.ErrArtistNotFound}},
		{name: "unavailable", status: http.StatusServiceUnavailable, want: []error{shared.ErrAPIRequest, shared.ErrTransient, shared.ErrServiceUnavailable}},
		{name: "rate limited", status: http.StatusTooManyRequests, want: []error{shared.ErrAPIRequest, shared.ErrTransient}},
		{name: "bad request", status: http.StatusBadRequest, want: []error{shared.ErrAPIRequest}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			err := apiError("artist", spotify.Error{Status: tc.status, Message: "boom"}, shared.ErrArtistNotFound)
			for _, want := range tc.want {
				if !errors.Is(err, want) {
					t.Errorf("expected %v in %v", want, err)
				}
			}
		})
	}

	t.Run("bad request is not transient", func(t *testing.T) {
		err := apiError("artist", spotify.Error{Status: http.StatusBadRequest, Message: "nope"}, nil)
		if errors.Is(err, shared.ErrTransient) {
			t.Errorf("expected permanent error, got %v", err)
		}
	})

	t.Run("context errors pass through", func(t *testing.T) {
		if err := apiError("artist", context.Canceled, nil); err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestTraceTransport(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer ts.Close()

	var buf bytes.Buffer
	logger := log.New(&buf)
	logger.SetLevel(log.DebugLevel)

	client := &http.Client{Transport: &TraceTransport{Logger: logger}}
	resp, err := client.Get(ts.URL + "/v1/me")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	out := buf.String()
	if !strings.Contains(out, "/v1/me") || !strings.Contains(out, "418") {
		t.Errorf("expected traced request in log, got %q", out)
	}
}
