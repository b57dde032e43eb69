package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Store.Backend != StoreYAML {
			t.Errorf("expected store backend yaml, got %s", config.Store.Backend)
		}

		if config.Sync.Capacity != 10000 {
			t.Errorf("expected capacity 10000, got %d", config.Sync.Capacity)
		}

		if config.Sync.BatchSize != 100 {
			t.Errorf("expected batch size 100, got %d", config.Sync.BatchSize)
		}

		if config.Sync.DefaultPlaylist != "unfilled" {
			t.Errorf("expected default playlist unfilled, got %s", config.Sync.DefaultPlaylist)
		}

		want := []string{"album", "single", "compilation"}
		if len(config.Sync.AlbumTypes) != len(want) {
			t.Fatalf("expected album types %v, got %v", want, config.Sync.AlbumTypes)
		}
		for i, at := range want {
			if config.Sync.AlbumTypes[i] != at {
				t.Errorf("album type %d: expected %s, got %s", i, at, config.Sync.AlbumTypes[i])
			}
		}

		if config.HasSpotifyCredentials() {
			t.Error("default config must not carry Spotify credentials")
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nested", "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `username = "bagratte"

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"

[store]
backend = "sqlite"

[sync]
capacity = 500
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Username != "bagratte" {
			t.Errorf("expected username bagratte, got %s", config.Username)
		}
		if config.Store.Backend != StoreSQLite {
			t.Errorf("expected sqlite backend, got %s", config.Store.Backend)
		}
		if config.Sync.Capacity != 500 {
			t.Errorf("expected capacity 500, got %d", config.Sync.Capacity)
		}
		if config.Sync.BatchSize != 100 {
			t.Errorf("expected default batch size to survive, got %d", config.Sync.BatchSize)
		}
		if config.Credentials.Spotify.RedirectURI == "" {
			t.Error("expected default redirect URI to survive")
		}
	})

	t.Run("LoadConfig rejects invalid values", func(t *testing.T) {
		tt := []struct {
			name    string
			content string
		}{
			{name: "unknown backend", content: "[store]\nbackend = \"redis\"\n"},
			{name: "batch too large", content: "[sync]\nbatch_size = 101\n"},
			{name: "zero capacity", content: "[sync]\ncapacity = 0\n"},
			{name: "malformed", content: "username = \n"},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				configPath := filepath.Join(t.TempDir(), "config.toml")
				if err := os.WriteFile(configPath, []byte(tc.content), 0644); err != nil {
					t.Fatalf("failed to write test config: %v", err)
				}

				_, err := LoadConfig(configPath)
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("SaveConfig round trip", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		config := DefaultConfig()
		config.Username = "someone"
		config.ApplySpotifyOverrides("id", "secret", "")

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}

		if loaded.Username != "someone" {
			t.Errorf("expected username someone, got %s", loaded.Username)
		}
		if !loaded.HasSpotifyCredentials() {
			t.Error("expected credentials to be saved")
		}
		if loaded.Credentials.Spotify.RedirectURI != config.Credentials.Spotify.RedirectURI {
			t.Error("empty override must not clear the redirect URI")
		}
	})

	t.Run("LoadOrDefault without file", func(t *testing.T) {
		config, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if config.Store.Backend != StoreYAML {
			t.Errorf("expected defaults, got backend %s", config.Store.Backend)
		}
	})

	t.Run("ExpandPath", func(t *testing.T) {
		home, err := os.UserHomeDir()
		if err != nil {
			t.Skip("no home directory")
		}

		if got := ExpandPath("~/.discog/x"); got != filepath.Join(home, ".discog", "x") {
			t.Errorf("unexpected expansion %s", got)
		}
		if got := ExpandPath("/abs/path"); got != "/abs/path" {
			t.Errorf("absolute path changed to %s", got)
		}
		if got := ExpandPath("~user/x"); got != "~user/x" {
			t.Errorf("~user form must be left alone, got %s", got)
		}
	})
}
