// Package store persists deal documents.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/seenimoa/dealscope/internal/loader"
)

// ErrNotFound is returned for an unknown deal ID.
var ErrNotFound = errors.New("deal not found")

// Entry describes a stored deal.
type Entry struct {
	ID      string    `json:"deal_id"`
	Name    string    `json:"deal_name"`
	SavedAt time.Time `json:"saved_at"`
}

// Repository is a deal store keyed by deal ID.
type Repository interface {
	Save(doc *loader.Document) error
	Load(id string) (*loader.Document, error)
	List() ([]Entry, error)
	Delete(id string) error
	Exists(id string) (bool, error)
}

func validID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("deal ID is required")
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════
// In-memory store
// ════════════════════════════════════════════════════════════════════

type memEntry struct {
	raw     []byte
	name    string
	savedAt time.Time
}

// MemoryStore keeps documents in memory. Documents are copied on the way
// in and out, so callers may keep mutating their own.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memEntry)}
}

func (s *MemoryStore) Save(doc *loader.Document) error {
	if err := validID(doc.ID); err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding deal %s: %w", doc.ID, err)
	}
	s.mu.Lock()
	s.entries[doc.ID] = memEntry{raw: raw, name: doc.Name, savedAt: time.Now()}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(id string) (*loader.Document, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var doc loader.Document
	if err := json.Unmarshal(e.raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding deal %s: %w", id, err)
	}
	return &doc, nil
}

func (s *MemoryStore) List() ([]Entry, error) {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.entries))
	for id, e := range s.entries {
		out = append(out, Entry{ID: id, Name: e.name, SavedAt: e.savedAt})
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) Exists(id string) (bool, error) {
	s.mu.RLock()
	_, ok := s.entries[id]
	s.mu.RUnlock()
	return ok, nil
}
