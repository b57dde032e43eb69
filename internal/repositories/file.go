package repositories

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// fileDocument is the on-disk layout. Unknown top-level keys (such as a
// username) are preserved across saves.
type fileDocument struct {
	Playlists map[string][]string `yaml:"playlists"`
	Extra     map[string]any      `yaml:",inline"`
}

// FileStore keeps playlist artist membership in a YAML file.
//
// The file is re-read on every call and rewritten after every change, so edits made between runs are honored.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a [FileStore] backed by path. The file is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) load() (*fileDocument, error) {
	doc := &fileDocument{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse store file %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *FileStore) save(doc *fileDocument) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode store file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

// Artists returns the artist ids synced into playlist.
func (s *FileStore) Artists(playlist string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	ids := doc.Playlists[playlist]
	if ids == nil {
		return []string{}, nil
	}
	return slices.Clone(ids), nil
}

// AddArtist appends artistID to playlist and saves the file.
func (s *FileStore) AddArtist(playlist, artistID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	if slices.Contains(doc.Playlists[playlist], artistID) {
		return nil
	}

	if doc.Playlists == nil {
		doc.Playlists = map[string][]string{}
	}
	doc.Playlists[playlist] = append(doc.Playlists[playlist], artistID)
	return s.save(doc)
}

// RemoveArtist drops artistID from playlist and saves the file.
//
// The playlist key is kept even when its list becomes empty.
func (s *FileStore) RemoveArtist(playlist, artistID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	ids := doc.Playlists[playlist]
	idx := slices.Index(ids, artistID)
	if idx < 0 {
		return nil
	}

	doc.Playlists[playlist] = slices.Delete(ids, idx, idx+1)
	return s.save(doc)
}

// Playlists lists every playlist that has at least one artist, alphabetically.
func (s *FileStore) Playlists() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	names := []string{}
	for name, ids := range doc.Playlists {
		if len(ids) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
