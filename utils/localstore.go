// File: utils/localstore.go
package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"tripsync/models"
)

// itineraryBlobName is the fixed key under which the last normalized itinerary
// is persisted so it survives restarts.
const itineraryBlobName = "itinerary.json"

// ItineraryStore persists a single cached-itinerary blob on disk. It is read
// once at startup and overwritten whenever a new itinerary is successfully
// normalized.
type ItineraryStore struct {
	dir string
}

// NewItineraryStore returns a store rooted at dir, creating it if needed.
func NewItineraryStore(dir string) (*ItineraryStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &ItineraryStore{dir: dir}, nil
}

// Load reads the cached itinerary. A missing blob returns (nil, nil); a
// corrupt one is discarded rather than propagated, since the cache is only an
// optimization.
func (s *ItineraryStore) Load() (*models.CanonicalItinerary, error) {
	data, err := os.ReadFile(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read itinerary blob: %w", err)
	}

	var it models.CanonicalItinerary
	if err := json.Unmarshal(data, &it); err != nil {
		_ = os.Remove(s.path())
		return nil, nil
	}
	return &it, nil
}

// Save overwrites the cached itinerary blob atomically.
func (s *ItineraryStore) Save(it *models.CanonicalItinerary) error {
	data, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("encode itinerary: %w", err)
	}

	tmp := s.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write itinerary blob: %w", err)
	}
	if err := os.Rename(tmp, s.path()); err != nil {
		return fmt.Errorf("replace itinerary blob: %w", err)
	}
	return nil
}

func (s *ItineraryStore) path() string {
	return filepath.Join(s.dir, itineraryBlobName)
}
