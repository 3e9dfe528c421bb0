package ps

import (
	"errors"
	"testing"
	"time"

	"github.com/nickyhof/SchemaVC/core"
)

func sampleOperation(id string, createdAt time.Time) *MergeOperation {
	return &MergeOperation{
		Id:           id,
		SourceBranch: "feature",
		TargetBranch: "master",
		BaseCommit:   "1111111111111111111111111111111111111111",
		SourceCommit: "2222222222222222222222222222222222222222",
		TargetCommit: "3333333333333333333333333333333333333333",
		Strategy:     StrategyAuto,
		Status:       MergeConflicted,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
		Conflicts: []Conflict{
			{
				Id:         id + "-1",
				MergeId:    id,
				Identity:   core.ObjectIdentity{Kind: core.KindTable, Name: "public.users"},
				Type:       BothModified,
				BaseBlob:   "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
				SourceBlob: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
				TargetBlob: "cccccccccccccccccccccccccccccccccccccccc",
			},
		},
	}
}

// exerciseOperationStore runs the store contract shared by every backend
func exerciseOperationStore(t *testing.T, store OperationStore) {
	t.Helper()

	base := time.Now().Truncate(time.Second)
	first := sampleOperation("merge-1", base)
	second := sampleOperation("merge-2", base.Add(time.Minute))

	if err := store.PutMergeOperation(first); err != nil {
		t.Fatalf("PutMergeOperation failed: %v", err)
	}
	if err := store.PutMergeOperation(second); err != nil {
		t.Fatalf("PutMergeOperation failed: %v", err)
	}

	loaded, err := store.GetMergeOperation("merge-1")
	if err != nil {
		t.Fatalf("GetMergeOperation failed: %v", err)
	}
	if loaded.SourceBranch != "feature" || loaded.Strategy != StrategyAuto || loaded.Status != MergeConflicted {
		t.Errorf("loaded op = %+v", loaded)
	}
	if len(loaded.Conflicts) != 1 || loaded.Conflicts[0].Type != BothModified {
		t.Fatalf("loaded conflicts = %+v", loaded.Conflicts)
	}
	if loaded.Conflicts[0].Resolved() {
		t.Error("fresh conflict should be unresolved")
	}

	if _, err := store.GetMergeOperation("merge-0"); !errors.Is(err, ErrUnknownMerge) {
		t.Errorf("expected ErrUnknownMerge, got %v", err)
	}

	ops, err := store.ListMergeOperations()
	if err != nil {
		t.Fatalf("ListMergeOperations failed: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(ops))
	}
	if ops[0].Id != "merge-2" || ops[1].Id != "merge-1" {
		t.Errorf("order = [%s %s], want most recent first", ops[0].Id, ops[1].Id)
	}

	// Resolve the conflict through PutConflict
	now := time.Now().Truncate(time.Second)
	conflict := loaded.Conflicts[0]
	conflict.Resolution = TakeSource
	conflict.ResolvedBy = "Test <test@test.com>"
	conflict.ResolvedAt = &now
	if err := store.PutConflict(conflict); err != nil {
		t.Fatalf("PutConflict failed: %v", err)
	}

	loaded, err = store.GetMergeOperation("merge-1")
	if err != nil {
		t.Fatalf("GetMergeOperation failed: %v", err)
	}
	if loaded.PendingConflicts() != 0 {
		t.Errorf("pending = %d after resolution", loaded.PendingConflicts())
	}
	if loaded.Conflicts[0].Resolution != TakeSource || loaded.Conflicts[0].ResolvedAt == nil {
		t.Errorf("persisted conflict = %+v", loaded.Conflicts[0])
	}

	unknown := conflict
	unknown.Id = "merge-1-99"
	if err := store.PutConflict(unknown); !errors.Is(err, ErrUnknownConflict) {
		t.Errorf("expected ErrUnknownConflict, got %v", err)
	}

	// Replacing an operation replaces its conflict set
	first.Status = MergeCompleted
	first.Conflicts = nil
	if err := store.PutMergeOperation(first); err != nil {
		t.Fatalf("PutMergeOperation replace failed: %v", err)
	}
	loaded, _ = store.GetMergeOperation("merge-1")
	if loaded.Status != MergeCompleted || len(loaded.Conflicts) != 0 {
		t.Errorf("replaced op = %s with %d conflicts", loaded.Status, len(loaded.Conflicts))
	}

	// Branch holds
	if _, held, err := store.Hold("master"); err != nil || held {
		t.Fatalf("unexpected initial hold (held=%v, err=%v)", held, err)
	}
	if err := store.SetHold("master", "integrity failure"); err != nil {
		t.Fatalf("SetHold failed: %v", err)
	}
	reason, held, err := store.Hold("master")
	if err != nil || !held || reason != "integrity failure" {
		t.Fatalf("hold = (%q, %v, %v)", reason, held, err)
	}
	if err := store.ClearHold("master"); err != nil {
		t.Fatalf("ClearHold failed: %v", err)
	}
	if _, held, _ := store.Hold("master"); held {
		t.Error("hold survived ClearHold")
	}
}

func TestMemoryOperationStore(t *testing.T) {
	store := NewMemoryOperationStore()
	defer store.Close()
	exerciseOperationStore(t, store)
}

func TestMemoryOperationStoreCloneGuard(t *testing.T) {
	store := NewMemoryOperationStore()
	op := sampleOperation("merge-1", time.Now())
	if err := store.PutMergeOperation(op); err != nil {
		t.Fatalf("PutMergeOperation failed: %v", err)
	}

	// Mutating the caller's copy must not leak into the store
	op.Status = MergeAborted
	op.Conflicts[0].Resolution = TakeTarget

	loaded, _ := store.GetMergeOperation("merge-1")
	if loaded.Status != MergeConflicted {
		t.Errorf("status = %s, store copy was mutated", loaded.Status)
	}
	if loaded.Conflicts[0].Resolved() {
		t.Error("conflict resolution leaked into the store")
	}
}

func TestDuckDBOperationStore(t *testing.T) {
	store, err := NewDuckDBOperationStore("")
	if err != nil {
		t.Fatalf("NewDuckDBOperationStore failed: %v", err)
	}
	defer store.Close()
	exerciseOperationStore(t, store)
}

func TestDuckDBOperationStoreFile(t *testing.T) {
	path := t.TempDir() + "/ops.db"

	store, err := NewDuckDBOperationStore(path)
	if err != nil {
		t.Fatalf("NewDuckDBOperationStore failed: %v", err)
	}
	if err := store.PutMergeOperation(sampleOperation("merge-1", time.Now().Truncate(time.Second))); err != nil {
		t.Fatalf("PutMergeOperation failed: %v", err)
	}
	store.Close()

	// State survives reopening the database file
	store, err = NewDuckDBOperationStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()

	loaded, err := store.GetMergeOperation("merge-1")
	if err != nil {
		t.Fatalf("GetMergeOperation after reopen failed: %v", err)
	}
	if len(loaded.Conflicts) != 1 {
		t.Errorf("expected conflicts to survive reopen, got %d", len(loaded.Conflicts))
	}
}
