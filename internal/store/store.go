package store

import (
	"sync"

	"github.com/JNickson/kubelog-viewer/internal/directory"
	"github.com/samber/mo"
)

// Store holds the outcome of resource discovery. It is written once at
// startup and read by the HTTP handlers.
type Store struct {
	mu       sync.RWMutex
	entity   string
	clusters []directory.ClusterResources
	err      mo.Option[string]
	ready    bool
}

func New(entity string) *Store {
	return &Store{
		entity:   entity,
		clusters: make([]directory.ClusterResources, 0),
	}
}

func (s *Store) Entity() string {
	return s.entity
}

func (s *Store) ReplaceClusters(clusters []directory.ClusterResources) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clusters = clusters
	s.err = mo.None[string]()
	s.ready = true
}

// Fail records a discovery failure. The store then reports zero clusters.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clusters = make([]directory.ClusterResources, 0)
	s.err = mo.Some(err.Error())
	s.ready = true
}

func (s *Store) ListClusters() []directory.ClusterResources {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]directory.ClusterResources, len(s.clusters))
	copy(out, s.clusters)
	return out
}

func (s *Store) DiscoveryError() mo.Option[string] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Ready reports whether discovery has completed, successfully or not.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}
