package catalog

import (
	"sync/atomic"
)

// Store publishes the current catalog snapshot.  Readers take a snapshot
// and keep using it for the life of a compilation while a loader swaps
// in refreshed snapshots.
type Store struct {
	current atomic.Pointer[Catalog]
}

func NewStore(c *Catalog) *Store {
	s := &Store{}
	s.current.Store(c)
	return s
}

func (s *Store) Snapshot() *Catalog {
	return s.current.Load()
}

// Swap installs c and returns the previous snapshot.
func (s *Store) Swap(c *Catalog) *Catalog {
	return s.current.Swap(c)
}

// Reload loads the YAML catalog at path and installs it.  The current
// snapshot is left in place if the file cannot be loaded.
func (s *Store) Reload(path string) error {
	c, err := LoadFile(path)
	if err != nil {
		return err
	}
	s.Swap(c)
	return nil
}
