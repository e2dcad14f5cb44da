package display

import (
	"context"
	"sync"

	"esperanza/pkg/domain"
	"esperanza/pkg/platform/sentinel"
)

// MemoryBoard holds snapshots in process. Unit tests and broker-less local
// runs use it in place of redis.
type MemoryBoard struct {
	mu    sync.RWMutex
	snaps map[domain.Day]*Snapshot
}

func NewMemoryBoard() *MemoryBoard {
	return &MemoryBoard{snaps: make(map[domain.Day]*Snapshot)}
}

func (b *MemoryBoard) Publish(_ context.Context, snap *Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snaps[snap.Day] = snap
	return nil
}

func (b *MemoryBoard) Current(_ context.Context, day domain.Day) (*Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snap, ok := b.snaps[day]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return snap, nil
}
