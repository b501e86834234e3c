package memdb

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/zkcred/zkcred/wallet"
)

// Store keeps records in memory, in insertion order.
type Store struct {
	storeMtx *sync.RWMutex
	store    []wallet.Record
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		storeMtx: &sync.RWMutex{},
		store:    []wallet.Record{},
	}
}

func (m *Store) Len(_ context.Context) (int, error) {
	m.storeMtx.RLock()
	defer m.storeMtx.RUnlock()

	return len(m.store), nil
}

func (m *Store) Put(ctx context.Context, r *wallet.Record) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m.storeMtx.Lock()
	defer m.storeMtx.Unlock()

	for _, sr := range m.store {
		if sr.ID == r.ID {
			return wallet.ErrExists
		}
	}
	m.store = append(m.store, *r)
	return nil
}

func (m *Store) Get(_ context.Context, id uuid.UUID) (*wallet.Record, error) {
	m.storeMtx.RLock()
	defer m.storeMtx.RUnlock()

	for _, r := range m.store {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, wallet.ErrNotFound
}

func (m *Store) List(_ context.Context) ([]*wallet.Record, error) {
	m.storeMtx.RLock()
	defer m.storeMtx.RUnlock()

	out := make([]*wallet.Record, len(m.store))
	for i := range m.store {
		r := m.store[i]
		out[i] = &r
	}
	return out, nil
}

func (m *Store) Delete(_ context.Context, id uuid.UUID) error {
	m.storeMtx.Lock()
	defer m.storeMtx.Unlock()

	foundIdx := -1
	for idx, r := range m.store {
		if r.ID == id {
			foundIdx = idx
			break
		}
	}
	if foundIdx == -1 {
		return wallet.ErrNotFound
	}

	m.store = append(m.store[:foundIdx], m.store[foundIdx+1:]...)
	return nil
}

// Close is a noop
func (m *Store) Close(_ context.Context) error {
	return nil
}
