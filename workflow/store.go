package workflow

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrWorkflowNotFound is returned by stores for unknown ids.
var ErrWorkflowNotFound = errors.New("workflow not found")

// StatusStore holds the latest snapshot of each workflow.
//
// Put replaces the whole snapshot. Get and List return copies the caller may
// mutate freely.
type StatusStore interface {
	Put(ctx context.Context, wf *Workflow) error
	Get(ctx context.Context, id string) (*Workflow, error)
	List(ctx context.Context) ([]*Workflow, error)
}

// CancelRequests is implemented by stores shared between processes. A stop
// received by a process that does not own the run is recorded here and acted
// on by the owning orchestrator.
type CancelRequests interface {
	RequestCancel(ctx context.Context, id string) error
	CancelRequested(ctx context.Context, id string) (bool, error)
}

// MemoryStore is the in-process StatusStore.
type MemoryStore struct {
	mu        sync.RWMutex
	workflows map[string]*Workflow
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{workflows: make(map[string]*Workflow)}
}

// Put stores a private copy of wf.
func (s *MemoryStore) Put(_ context.Context, wf *Workflow) error {
	snap := wf.Clone()
	s.mu.Lock()
	s.workflows[wf.ID] = snap
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the snapshot for id.
func (s *MemoryStore) Get(_ context.Context, id string) (*Workflow, error) {
	s.mu.RLock()
	snap, ok := s.workflows[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrWorkflowNotFound
	}
	// stored snapshots are never mutated, cloning outside the lock is safe
	return snap.Clone(), nil
}

// List returns copies of all snapshots ordered by creation time.
func (s *MemoryStore) List(_ context.Context) ([]*Workflow, error) {
	s.mu.RLock()
	snaps := make([]*Workflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		snaps = append(snaps, wf)
	}
	s.mu.RUnlock()

	out := make([]*Workflow, len(snaps))
	for i, wf := range snaps {
		out[i] = wf.Clone()
	}
	SortByCreated(out)
	return out, nil
}

// SortByCreated orders workflows oldest first, ties broken by id.
func SortByCreated(wfs []*Workflow) {
	sort.SliceStable(wfs, func(i, j int) bool {
		if wfs[i].CreatedAt.Equal(wfs[j].CreatedAt) {
			return wfs[i].ID < wfs[j].ID
		}
		return wfs[i].CreatedAt.Before(wfs[j].CreatedAt)
	})
}
