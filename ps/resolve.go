package ps

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/nickyhof/SchemaVC/core"
	"github.com/nickyhof/SchemaVC/ddl"
)

// GetMergeOperation returns a merge operation with its conflicts
func (p *Persistence) GetMergeOperation(mergeId string) (*MergeOperation, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}
	return p.ops.GetMergeOperation(mergeId)
}

// ListMergeOperations returns all merge operations, most recent first
func (p *Persistence) ListMergeOperations() ([]*MergeOperation, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}
	return p.ops.ListMergeOperations()
}

// GetConflicts returns the conflicts of a merge operation
func (p *Persistence) GetConflicts(mergeId string) ([]Conflict, error) {
	op, err := p.GetMergeOperation(mergeId)
	if err != nil {
		return nil, err
	}
	return op.Conflicts, nil
}

// ResolveConflict records an operator's choice for one pending conflict of
// a suspended merge. Custom resolutions carry the replacement definition.
func (p *Persistence) ResolveConflict(mergeId, conflictId string, resolution Resolution, customDefinition string, identity core.Identity) (Conflict, error) {
	if err := p.ensureInitialized(); err != nil {
		return Conflict{}, err
	}
	if !resolution.IsValid() {
		return Conflict{}, fmt.Errorf("%w: unknown resolution %q", ErrInvalidChange, resolution)
	}
	if resolution == Custom && customDefinition == "" {
		return Conflict{}, fmt.Errorf("%w: custom resolution carries no definition", ErrInvalidChange)
	}
	if resolution != Custom && customDefinition != "" {
		return Conflict{}, fmt.Errorf("%w: definition given for %s resolution", ErrInvalidChange, resolution)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	op, err := p.ops.GetMergeOperation(mergeId)
	if err != nil {
		return Conflict{}, err
	}
	if op.Status != MergeConflicted {
		return Conflict{}, fmt.Errorf("%w: %s is %s", ErrNotConflicted, mergeId, op.Status)
	}

	var conflict *Conflict
	for i := range op.Conflicts {
		if op.Conflicts[i].Id == conflictId {
			conflict = &op.Conflicts[i]
			break
		}
	}
	if conflict == nil {
		return Conflict{}, fmt.Errorf("%w: %s", ErrUnknownConflict, conflictId)
	}
	if conflict.Resolved() {
		return Conflict{}, fmt.Errorf("%w: %s", ErrConflictResolved, conflictId)
	}

	now := time.Now()
	conflict.Resolution = resolution
	conflict.CustomDefinition = customDefinition
	conflict.ResolvedBy = fmt.Sprintf("%s <%s>", identity.Name, identity.Email)
	conflict.ResolvedAt = &now

	if err := p.ops.PutConflict(*conflict); err != nil {
		return Conflict{}, err
	}
	return *conflict, nil
}

// FinalizeMerge re-attempts assembly of a suspended merge once every
// conflict is resolved. The target ref is re-validated against the tip
// the merge was computed from; a moved tip fails with ErrDirtyTarget
// rather than merging against stale state.
func (p *Persistence) FinalizeMerge(mergeId string, identity core.Identity) (*MergeOperation, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	op, err := p.ops.GetMergeOperation(mergeId)
	if err != nil {
		return nil, err
	}
	if op.Status != MergeConflicted {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotConflicted, mergeId, op.Status)
	}
	if pending := op.PendingConflicts(); pending > 0 {
		return op, fmt.Errorf("%w: %d remaining", ErrUnresolvedConflicts, pending)
	}

	if reason, held, err := p.ops.Hold(op.TargetBranch); err != nil {
		return nil, err
	} else if held {
		return nil, fmt.Errorf("%w: %s (%s)", ErrBranchHeld, op.TargetBranch, reason)
	}

	currentHead, err := p.branchHead(op.TargetBranch)
	if err != nil {
		return nil, err
	}
	if currentHead.String() != op.TargetCommit {
		op.Status = MergeFailed
		op.UpdatedAt = time.Now()
		p.ops.PutMergeOperation(op)
		return op, fmt.Errorf("%w: %s is at %s, merge computed at %s",
			ErrDirtyTarget, op.TargetBranch, currentHead, op.TargetCommit)
	}

	// Re-plan from the recorded commits; classification is deterministic,
	// so the plan's conflict ids line up with the stored rows
	plan, err := p.planMerge(op)
	if err != nil {
		return nil, err
	}

	stored := make(map[string]Conflict, len(op.Conflicts))
	for _, conflict := range op.Conflicts {
		stored[conflict.Id] = conflict
	}

	for _, planned := range plan.conflicts {
		conflict, ok := stored[planned.Id]
		if !ok || !conflict.Resolved() {
			return op, fmt.Errorf("%w: %s", ErrUnresolvedConflicts, planned.Id)
		}

		switch conflict.Resolution {
		case TakeSource:
			applyBlob(plan.result, conflict.Identity, conflict.SourceBlob)
		case TakeTarget:
			applyBlob(plan.result, conflict.Identity, conflict.TargetBlob)
		case Custom:
			blobHash, err := p.createBlob([]byte(ddl.Normalize(conflict.CustomDefinition)))
			if err != nil {
				return nil, fmt.Errorf("failed to store custom definition for %s: %w", conflict.Identity, err)
			}
			plan.result[conflict.Identity] = blobHash
		}
	}

	if err := p.commitMerge(op, plan.result, identity); err != nil {
		return op, err
	}
	return op, nil
}

// AbortMerge discards a suspended merge and its conflicts. Branches are
// unaffected: nothing was committed and no ref moved.
func (p *Persistence) AbortMerge(mergeId string) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	op, err := p.ops.GetMergeOperation(mergeId)
	if err != nil {
		return err
	}
	if op.Status != MergeConflicted {
		return fmt.Errorf("%w: %s is %s", ErrNotConflicted, mergeId, op.Status)
	}

	op.Status = MergeAborted
	op.UpdatedAt = time.Now()
	return p.ops.PutMergeOperation(op)
}

// ReleaseBranch clears an integrity hold after investigation
func (p *Persistence) ReleaseBranch(branch string) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}
	return p.ops.ClearHold(branch)
}

// verifyCommitTree checks that every blob a commit's tree references is
// present in the object store. A miss is corruption, not bad input.
func (p *Persistence) verifyCommitTree(commitHash plumbing.Hash) error {
	snapshot, err := p.snapshotAt(commitHash)
	if err != nil {
		return err
	}

	for id, blobHash := range snapshot {
		if _, err := p.repo.Storer.EncodedObject(plumbing.BlobObject, blobHash); err != nil {
			return fmt.Errorf("%w: %s missing blob %s", ErrIntegrity, id, blobHash)
		}
	}
	return nil
}

// VerifyBranch runs the integrity check against a branch tip and sets a
// hold when the tree is broken
func (p *Persistence) VerifyBranch(branch string) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	head, err := p.branchHead(branch)
	if err != nil {
		return err
	}
	if err := p.verifyCommitTree(head); err != nil {
		p.ops.SetHold(branch, err.Error())
		return err
	}
	return nil
}
