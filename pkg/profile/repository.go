// Package profile keeps the bounded local diagnosis log and derives the
// learner's cognitive profile from it.
package profile

import (
	"context"
	"sync"

	"github.com/senseihq/sensei-go/pkg/core/types"
)

// Namespace is the fixed key under which the history log is persisted.
const Namespace = "sensei_history"

// Repository loads and saves the whole history log. The log is small and
// bounded, so whole-log read-modify-write keeps the storage interface to
// two calls and lets tests use an in-memory fake.
type Repository interface {
	Load(ctx context.Context) ([]types.Analysis, error)
	Save(ctx context.Context, log []types.Analysis) error
}

// MemoryRepository is a Repository backed by process memory. It is the
// fallback when durable storage is unavailable, and the fake used in
// tests.
type MemoryRepository struct {
	mu  sync.Mutex
	log []types.Analysis
}

func NewMemoryRepository() *MemoryRepository { return &MemoryRepository{} }

func (r *MemoryRepository) Load(ctx context.Context) ([]types.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Analysis(nil), r.log...), nil
}

func (r *MemoryRepository) Save(ctx context.Context, log []types.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log[:0:0], log...)
	return nil
}
