package ps

import (
	"fmt"
	"sort"
	"sync"
)

// OperationStore persists merge operations, their conflicts, and branch
// integrity holds. The Git object store holds the immutable history; the
// operation store holds the mutable operational state around merges.
type OperationStore interface {
	// PutMergeOperation inserts or replaces an operation and its conflicts
	// as one atomic write
	PutMergeOperation(op *MergeOperation) error
	// GetMergeOperation loads an operation with its conflicts, or ErrUnknownMerge
	GetMergeOperation(id string) (*MergeOperation, error)
	// ListMergeOperations returns all operations, most recent first
	ListMergeOperations() ([]*MergeOperation, error)
	// PutConflict updates a single conflict row
	PutConflict(conflict Conflict) error

	// SetHold marks a branch as held after an integrity violation
	SetHold(branch, reason string) error
	// ClearHold releases a branch hold
	ClearHold(branch string) error
	// Hold returns the hold reason for a branch, if any
	Hold(branch string) (string, bool, error)

	Close() error
}

// MemoryOperationStore keeps merge state in process memory. Suitable for
// ephemeral instances and tests; durable instances use the DuckDB store.
type MemoryOperationStore struct {
	mu    sync.RWMutex
	ops   map[string]*MergeOperation
	order []string
	holds map[string]string
}

func NewMemoryOperationStore() *MemoryOperationStore {
	return &MemoryOperationStore{
		ops:   make(map[string]*MergeOperation),
		holds: make(map[string]string),
	}
}

func (s *MemoryOperationStore) PutMergeOperation(op *MergeOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ops[op.Id]; !ok {
		s.order = append(s.order, op.Id)
	}
	s.ops[op.Id] = op.clone()
	return nil
}

func (s *MemoryOperationStore) GetMergeOperation(id string) (*MergeOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, ok := s.ops[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMerge, id)
	}
	return op.clone(), nil
}

func (s *MemoryOperationStore) ListMergeOperations() ([]*MergeOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ops := make([]*MergeOperation, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		ops = append(ops, s.ops[s.order[i]].clone())
	}
	return ops, nil
}

func (s *MemoryOperationStore) PutConflict(conflict Conflict) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.ops[conflict.MergeId]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMerge, conflict.MergeId)
	}
	for i := range op.Conflicts {
		if op.Conflicts[i].Id == conflict.Id {
			op.Conflicts[i] = conflict
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownConflict, conflict.Id)
}

func (s *MemoryOperationStore) SetHold(branch, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holds[branch] = reason
	return nil
}

func (s *MemoryOperationStore) ClearHold(branch string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.holds, branch)
	return nil
}

func (s *MemoryOperationStore) Hold(branch string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reason, ok := s.holds[branch]
	return reason, ok, nil
}

func (s *MemoryOperationStore) Close() error {
	return nil
}

// clone guards the store's copy against caller mutation
func (op *MergeOperation) clone() *MergeOperation {
	copied := *op
	copied.Conflicts = make([]Conflict, len(op.Conflicts))
	copy(copied.Conflicts, op.Conflicts)
	return &copied
}

// sortConflicts orders conflicts by identity for stable listings
func sortConflicts(conflicts []Conflict) {
	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].Identity.Kind != conflicts[j].Identity.Kind {
			return conflicts[i].Identity.Kind < conflicts[j].Identity.Kind
		}
		return conflicts[i].Identity.Name < conflicts[j].Identity.Name
	})
}
