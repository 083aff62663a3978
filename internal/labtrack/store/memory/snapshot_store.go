package memory

import (
	"context"
	"sync"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/store"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

type snapshot struct {
	meta   store.SnapshotMeta
	events []types.AccessEvent
}

type SnapshotStore struct {
	mu    sync.Mutex
	saved []snapshot
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

func (s *SnapshotStore) SaveSnapshot(_ context.Context, meta store.SnapshotMeta, events []types.AccessEvent) error {
	cp := make([]types.AccessEvent, len(events))
	copy(cp, events)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, snapshot{meta: meta, events: cp})
	return nil
}

func (s *SnapshotStore) LatestSnapshot(_ context.Context) (store.SnapshotMeta, []types.AccessEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) == 0 {
		return store.SnapshotMeta{}, nil, store.ErrNoSnapshot
	}
	last := s.saved[len(s.saved)-1]
	cp := make([]types.AccessEvent, len(last.events))
	copy(cp, last.events)
	return last.meta, cp, nil
}

func (s *SnapshotStore) PruneKeepLatest(_ context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) <= keep {
		return 0, nil
	}
	removed := len(s.saved) - keep
	s.saved = append([]snapshot(nil), s.saved[removed:]...)
	return int64(removed), nil
}

// Len reports how many snapshots are stored. Test-only helper.
func (s *SnapshotStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}
