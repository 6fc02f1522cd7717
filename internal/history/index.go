package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	indexFileName = "index.json"
	indexVersion  = 1
)

// historyIndex is the sidecar file holding per-conversation flags
type historyIndex struct {
	Version int             `json:"version"`
	Pinned  map[string]bool `json:"pinned"`
}

func newIndex() *historyIndex {
	return &historyIndex{
		Version: indexVersion,
		Pinned:  make(map[string]bool),
	}
}

func (s *Store) indexPath() string {
	return filepath.Join(s.baseDir, indexFileName)
}

// loadIndex returns an empty index when the file does not exist yet
func (s *Store) loadIndex() (*historyIndex, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return newIndex(), nil
		}
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}

	var idx historyIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to parse index file: %w", err)
	}
	if idx.Pinned == nil {
		idx.Pinned = make(map[string]bool)
	}
	return &idx, nil
}

func (s *Store) saveIndex(idx *historyIndex) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	if err := os.WriteFile(s.indexPath(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write index file: %w", err)
	}
	return nil
}

// SetPinned pins or unpins a conversation; pinned ones list first
func (s *Store) SetPinned(id string, pinned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.loadConversation(id); err != nil {
		return err
	}

	idx, err := s.loadIndex()
	if err != nil {
		return err
	}
	if pinned {
		idx.Pinned[id] = true
	} else {
		delete(idx.Pinned, id)
	}
	return s.saveIndex(idx)
}

// IsPinned reports whether a conversation is pinned
func (s *Store) IsPinned(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, err := s.loadIndex()
	if err != nil {
		return false, err
	}
	return idx.Pinned[id], nil
}

// unpinLocked drops a deleted conversation from the index.
// MUST be called with s.mu held.
func (s *Store) unpinLocked(id string) error {
	idx, err := s.loadIndex()
	if err != nil {
		return err
	}
	if !idx.Pinned[id] {
		return nil
	}
	delete(idx.Pinned, id)
	return s.saveIndex(idx)
}
