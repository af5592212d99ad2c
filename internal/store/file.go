package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/seenimoa/dealscope/internal/loader"
)

// FormatVersion is written into every file's metadata.
const FormatVersion = "1.0"

// Metadata is stored alongside the document under "_metadata".
type Metadata struct {
	DealID  string    `json:"deal_id"`
	SavedAt time.Time `json:"saved_at"`
	Version string    `json:"version"`
}

type envelope struct {
	Metadata *Metadata `json:"_metadata,omitempty"`
	loader.Document
}

// FileStore keeps one JSON file per deal in a directory. File names are
// the deal ID with anything but letters, digits, '-' and '_' replaced.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating deal directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir is the storage directory.
func (s *FileStore) Dir() string { return s.dir }

// SanitizeID maps a deal ID to a safe file stem.
func SanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, SanitizeID(id)+".json")
}

func (s *FileStore) Save(doc *loader.Document) error {
	if err := validID(doc.ID); err != nil {
		return err
	}
	env := envelope{
		Metadata: &Metadata{DealID: doc.ID, SavedAt: time.Now().UTC(), Version: FormatVersion},
		Document: *doc,
	}
	raw, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding deal %s: %w", doc.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Write then rename so a crash never leaves a truncated deal.
	tmp := s.path(doc.ID) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("writing deal %s: %w", doc.ID, err)
	}
	if err := os.Rename(tmp, s.path(doc.ID)); err != nil {
		return fmt.Errorf("writing deal %s: %w", doc.ID, err)
	}
	slog.Debug("deal saved", "id", doc.ID, "path", s.path(doc.ID))
	return nil
}

func (s *FileStore) read(path string) (*envelope, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Load returns the document without its metadata.
func (s *FileStore) Load(id string) (*loader.Document, error) {
	env, err := s.read(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading deal %s: %w", id, err)
	}
	doc := env.Document
	return &doc, nil
}

// List reads every deal file in the directory. Unreadable files are
// skipped with a warning; files without metadata are listed by name.
func (s *FileStore) List() ([]Entry, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing deals: %w", err)
	}
	out := make([]Entry, 0, len(paths))
	for _, p := range paths {
		env, err := s.read(p)
		if err != nil {
			slog.Warn("skipping unreadable deal file", "path", p, "error", err)
			continue
		}
		e := Entry{ID: strings.TrimSuffix(filepath.Base(p), ".json"), Name: env.Name}
		if env.Metadata != nil && env.Metadata.DealID != "" {
			e.ID = env.Metadata.DealID
			e.SavedAt = env.Metadata.SavedAt
		} else if env.ID != "" {
			e.ID = env.ID
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *FileStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("deleting deal %s: %w", id, err)
	}
	return nil
}

func (s *FileStore) Exists(id string) (bool, error) {
	_, err := os.Stat(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
