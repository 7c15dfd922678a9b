package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sakif/green-gaming/internal/model"
)

// Item is one entry in a guest cart: the whole game, so the cart can be
// listed and priced without asking the server.
type Item struct {
	Game     model.Game `json:"game"`
	Quantity int        `json:"quantity"`
}

// GuestStore persists the guest cart between runs.
type GuestStore interface {
	Load() ([]Item, error)
	Save(items []Item) error
}

// ===== FILE STORE =====

// FileStore keeps the guest cart as a JSON array in one file.
type FileStore struct {
	path string
}

var _ GuestStore = (*FileStore)(nil)

// NewFileStore stores the cart at path. Nothing touches the disk until the
// first Load or Save; Save creates the parent directory if needed.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns the saved items. A missing file is an empty cart; a corrupt
// one is an error, so the caller can decide whether to start over.
func (s *FileStore) Load() ([]Item, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cart: reading %s: %w", s.path, err)
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("cart: decoding %s: %w", s.path, err)
	}
	return items, nil
}

// Save writes to a temp file and renames it over the old one, so a crash
// mid-write leaves the previous cart intact.
func (s *FileStore) Save(items []Item) error {
	if items == nil {
		items = []Item{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("cart: encoding: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("cart: creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".cart-*.json")
	if err != nil {
		return fmt.Errorf("cart: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("cart: writing: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cart: writing: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("cart: saving %s: %w", s.path, err)
	}
	return nil
}

// ===== MEMORY STORE =====

// MemoryStore is a GuestStore for tests and short-lived sessions.
type MemoryStore struct {
	mu    sync.Mutex
	items []Item
	saves int
}

var _ GuestStore = (*MemoryStore)(nil)

// NewMemoryStore starts with items already "saved".
func NewMemoryStore(items ...Item) *MemoryStore {
	return &MemoryStore{items: items}
}

// Load returns a copy, so callers cannot alter what was saved.
func (m *MemoryStore) Load() ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Item(nil), m.items...), nil
}

func (m *MemoryStore) Save(items []Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append([]Item(nil), items...)
	m.saves++
	return nil
}

// Saves counts calls to Save.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
