// Package savedsearch persists named RQL queries in a YAML file.
package savedsearch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// MaxNameLength bounds a saved search name, in characters.
const MaxNameLength = 100

var (
	ErrNotFound      = errors.New("savedsearch: not found")
	ErrDuplicateName = errors.New("savedsearch: name already exists")
)

// ValidationError reports an invalid saved search.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("savedsearch: %s %s", e.Field, e.Reason)
}

// Search is a named query.
type Search struct {
	Name      string    `yaml:"name" json:"name"`
	Query     string    `yaml:"query" json:"query"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`
}

type document struct {
	Searches []Search `yaml:"saved_searches"`
}

// Store keeps saved searches in memory and rewrites the backing file on
// every change. An empty path keeps them in memory only.
type Store struct {
	mu       sync.RWMutex
	path     string
	searches map[string]Search
	now      func() time.Time
}

// Open loads the store from path. A missing file is an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path, searches: make(map[string]Search), now: time.Now}
	if path == "" {
		return s, nil
	}

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read saved searches: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse saved searches %s: %w", path, err)
	}
	for _, search := range doc.Searches {
		if search.Name == "" {
			continue
		}
		s.searches[search.Name] = search
	}
	return s, nil
}

func validate(name, query string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return &ValidationError{Field: "name", Reason: "can't be blank"}
	case utf8.RuneCountInString(name) > MaxNameLength:
		return &ValidationError{Field: "name", Reason: fmt.Sprintf("is too long (maximum is %d characters)", MaxNameLength)}
	case strings.TrimSpace(query) == "":
		return &ValidationError{Field: "query", Reason: "can't be blank"}
	}
	return nil
}

// List returns every saved search, most recently updated first.
func (s *Store) List() []Search {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted()
}

func (s *Store) sorted() []Search {
	out := make([]Search, 0, len(s.searches))
	for _, search := range s.searches {
		out = append(out, search)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Get returns the search called name.
func (s *Store) Get(name string) (Search, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	search, ok := s.searches[name]
	if !ok {
		return Search{}, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return search, nil
}

// Create adds a new search. Names are unique.
func (s *Store) Create(name, query string) (Search, error) {
	if err := validate(name, query); err != nil {
		return Search{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.searches[name]; exists {
		return Search{}, fmt.Errorf("%q: %w", name, ErrDuplicateName)
	}
	now := s.now().UTC()
	search := Search{Name: name, Query: query, CreatedAt: now, UpdatedAt: now}
	s.searches[name] = search
	if err := s.save(); err != nil {
		delete(s.searches, name)
		return Search{}, err
	}
	return search, nil
}

// Update replaces the query of an existing search.
func (s *Store) Update(name, query string) (Search, error) {
	if err := validate(name, query); err != nil {
		return Search{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.searches[name]
	if !ok {
		return Search{}, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	search := prev
	search.Query = query
	search.UpdatedAt = s.now().UTC()
	s.searches[name] = search
	if err := s.save(); err != nil {
		s.searches[name] = prev
		return Search{}, err
	}
	return search, nil
}

// Delete removes a search.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.searches[name]
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	delete(s.searches, name)
	if err := s.save(); err != nil {
		s.searches[name] = prev
		return err
	}
	return nil
}

// save writes the file atomically. Callers hold the write lock.
func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	b, err := yaml.Marshal(document{Searches: s.sorted()})
	if err != nil {
		return fmt.Errorf("encode saved searches: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create saved searches dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return fmt.Errorf("write saved searches: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace saved searches: %w", err)
	}
	return nil
}
