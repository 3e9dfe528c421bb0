package ps

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/nickyhof/SchemaVC/core"
)

// MergeStrategy defines how ambiguous conflicts are handled
type MergeStrategy string

const (
	// StrategyAuto resolves everything single-sided; true conflicts and
	// delete-versus-modify stay pending
	StrategyAuto MergeStrategy = "auto"
	// StrategySourceWins resolves every ambiguous conflict to the source side
	StrategySourceWins MergeStrategy = "source_wins"
	// StrategyTargetWins resolves every ambiguous conflict to the target side
	StrategyTargetWins MergeStrategy = "target_wins"
	// StrategyManualReview leaves every conflict record pending, however many
	StrategyManualReview MergeStrategy = "manual_review"
	// StrategyUnion synthesizes provably disjoint changes and falls back to
	// manual review per conflict otherwise
	StrategyUnion MergeStrategy = "union"
)

// IsValid returns true for a known strategy
func (s MergeStrategy) IsValid() bool {
	switch s {
	case StrategyAuto, StrategySourceWins, StrategyTargetWins, StrategyManualReview, StrategyUnion:
		return true
	}
	return false
}

// MergeStatus is the lifecycle state of a merge operation
type MergeStatus string

const (
	MergeInProgress MergeStatus = "in_progress"
	MergeCompleted  MergeStatus = "completed"
	MergeConflicted MergeStatus = "conflicted"
	MergeFailed     MergeStatus = "failed"
	MergeAborted    MergeStatus = "aborted"
)

// MergeOperation records one merge request and its outcome. A conflicted
// operation is suspended, not failed: it persists until finalized or
// aborted.
type MergeOperation struct {
	Id           string        `json:"id"`
	SourceBranch string        `json:"source_branch"`
	TargetBranch string        `json:"target_branch"`
	BaseCommit   string        `json:"base_commit,omitempty"` // empty for unrelated histories
	SourceCommit string        `json:"source_commit"`
	TargetCommit string        `json:"target_commit"`
	Strategy     MergeStrategy `json:"strategy"`
	Status       MergeStatus   `json:"status"`
	ResultCommit string        `json:"result_commit,omitempty"`
	FastForward  bool          `json:"fast_forward,omitempty"`
	Unrelated    bool          `json:"unrelated_histories,omitempty"`
	Conflicts    []Conflict    `json:"conflicts,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// PendingConflicts counts conflicts still awaiting resolution
func (op *MergeOperation) PendingConflicts() int {
	pending := 0
	for _, conflict := range op.Conflicts {
		if !conflict.Resolved() {
			pending++
		}
	}
	return pending
}

func newMergeId() string {
	return fmt.Sprintf("merge-%d", time.Now().UnixNano())
}

// Merge merges the source branch into the target branch under the given
// strategy. It always returns an operation describing what happened;
// conflicts are state on that operation, never errors. Hard errors are
// limited to malformed input, a held branch, a moved target ref, and
// detected corruption.
func (p *Persistence) Merge(source, target string, strategy MergeStrategy, identity core.Identity) (*MergeOperation, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}
	if !strategy.IsValid() {
		return nil, fmt.Errorf("%w: unknown merge strategy %q", ErrInvalidChange, strategy)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, branch := range []string{source, target} {
		if reason, held, err := p.ops.Hold(branch); err != nil {
			return nil, err
		} else if held {
			return nil, fmt.Errorf("%w: %s (%s)", ErrBranchHeld, branch, reason)
		}
	}

	sourceHead, err := p.branchHead(source)
	if err != nil {
		return nil, err
	}
	targetHead, err := p.branchHead(target)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	op := &MergeOperation{
		Id:           newMergeId(),
		SourceBranch: source,
		TargetBranch: target,
		SourceCommit: sourceHead.String(),
		TargetCommit: targetHead.String(),
		Strategy:     strategy,
		Status:       MergeInProgress,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Empty merge: the source tip is already part of the target history
	if sourceHead == targetHead {
		op.Status = MergeCompleted
		op.ResultCommit = targetHead.String()
		return op, p.ops.PutMergeOperation(op)
	}
	if ok, err := p.isAncestor(sourceHead, targetHead); err != nil {
		return nil, err
	} else if ok {
		op.Status = MergeCompleted
		op.ResultCommit = targetHead.String()
		return op, p.ops.PutMergeOperation(op)
	}

	// Fast-forward: the target tip is an ancestor of the source tip, so
	// advancing the pointer needs no new commit
	if ok, err := p.isAncestor(targetHead, sourceHead); err != nil {
		return nil, err
	} else if ok {
		if err := p.advanceRef(target, targetHead, sourceHead); err != nil {
			op.Status = MergeFailed
			p.ops.PutMergeOperation(op)
			return op, err
		}
		op.Status = MergeCompleted
		op.FastForward = true
		op.ResultCommit = sourceHead.String()
		return op, p.ops.PutMergeOperation(op)
	}

	// Corruption check before any merge computation; a broken tree holds
	// its branch until an operator intervenes
	for _, tip := range []struct {
		branch string
		head   plumbing.Hash
	}{{source, sourceHead}, {target, targetHead}} {
		if err := p.verifyCommitTree(tip.head); err != nil {
			p.ops.SetHold(tip.branch, err.Error())
			op.Status = MergeFailed
			p.ops.PutMergeOperation(op)
			return op, fmt.Errorf("%w: branch %s: %v", ErrIntegrity, tip.branch, err)
		}
	}

	base, found, err := p.mergeBase(sourceHead, targetHead)
	if err != nil {
		return nil, err
	}
	if found {
		op.BaseCommit = base.String()
	} else {
		// Unrelated histories: merge against an empty base, so every
		// identity present on both sides counts as independently added
		op.Unrelated = true
	}

	plan, err := p.planMerge(op)
	if err != nil {
		return nil, err
	}
	op.Conflicts = plan.conflicts

	if plan.pending > 0 {
		op.Status = MergeConflicted
		op.UpdatedAt = time.Now()
		return op, p.ops.PutMergeOperation(op)
	}

	return op, p.commitMerge(op, plan.result, identity)
}

// mergePlan is the computed outcome of a merge before any commit: the
// assembled result snapshot (pending identities still carry the target
// side) plus every conflict record, resolved or pending.
type mergePlan struct {
	result    Snapshot
	conflicts []Conflict
	pending   int
}

// planMerge computes both diffs against the base, classifies every
// touched identity, and applies the operation's strategy. Pure with
// respect to the operation's commits: replaying it for an unfinalized
// merge reproduces the same conflict ids and the same pending set.
func (p *Persistence) planMerge(op *MergeOperation) (*mergePlan, error) {
	baseHash := plumbing.ZeroHash
	if op.BaseCommit != "" {
		baseHash = plumbing.NewHash(op.BaseCommit)
	}

	baseSnap, err := p.snapshotAt(baseHash)
	if err != nil {
		return nil, err
	}
	sourceSnap, err := p.snapshotAt(plumbing.NewHash(op.SourceCommit))
	if err != nil {
		return nil, err
	}
	targetSnap, err := p.snapshotAt(plumbing.NewHash(op.TargetCommit))
	if err != nil {
		return nil, err
	}

	result := make(Snapshot, len(targetSnap))
	for id, hash := range targetSnap {
		result[id] = hash
	}

	plan := &mergePlan{result: result}

	for id, cl := range classifySnapshots(baseSnap, sourceSnap, targetSnap) {
		if cl.Type == NoConflict {
			applyBlob(result, id, cl.ResolvedBlob)
			continue
		}

		conflict := Conflict{
			MergeId:    op.Id,
			Identity:   id,
			Type:       cl.Type,
			BaseBlob:   hashOf(baseSnap, id),
			SourceBlob: hashOf(sourceSnap, id),
			TargetBlob: hashOf(targetSnap, id),
		}

		resolution, resolved := resolveByStrategy(cl, op.Strategy)
		if resolved {
			conflict.Resolution = resolution
			conflict.ResolvedBy = "strategy:" + string(op.Strategy)
			switch resolution {
			case TakeSource:
				applyBlob(result, id, conflict.SourceBlob)
			case TakeTarget:
				applyBlob(result, id, conflict.TargetBlob)
			}
		} else {
			plan.pending++
		}

		plan.conflicts = append(plan.conflicts, conflict)
	}

	sortConflicts(plan.conflicts)
	for i := range plan.conflicts {
		plan.conflicts[i].Id = fmt.Sprintf("%s-%d", op.Id, i+1)
	}

	return plan, nil
}

// resolveByStrategy decides whether a conflict record resolves without an
// operator, and to which side
func resolveByStrategy(cl classification, strategy MergeStrategy) (Resolution, bool) {
	if strategy == StrategyManualReview {
		// Every conflict record waits for review, even the auto-resolvable ones
		return ResolutionNone, false
	}

	if cl.Auto {
		switch cl.Type {
		case SourceModified, DeletedSource:
			return TakeSource, true
		case TargetModified, DeletedTarget:
			return TakeTarget, true
		}
	}

	switch strategy {
	case StrategySourceWins:
		return TakeSource, true
	case StrategyTargetWins:
		return TakeTarget, true
	case StrategyUnion:
		// Both sides rewrote the same object's definition, so their
		// changes are never provably disjoint at this granularity;
		// fall back to review for this conflict
		return ResolutionNone, false
	default:
		return ResolutionNone, false
	}
}

// applyBlob sets or deletes one identity in the result snapshot
func applyBlob(result Snapshot, id core.ObjectIdentity, blob string) {
	if blob == "" {
		delete(result, id)
		return
	}
	result[id] = plumbing.NewHash(blob)
}

// commitMerge assembles the merged tree, creates the two-parent merge
// commit, and advances the target ref with compare-and-swap. Objects are
// written before the ref moves, so a failed swap leaves nothing visible.
func (p *Persistence) commitMerge(op *MergeOperation, result Snapshot, identity core.Identity) error {
	treeHash, err := p.buildSnapshotTree(result)
	if err != nil {
		return fmt.Errorf("failed to build merged tree: %w", err)
	}

	targetHead := plumbing.NewHash(op.TargetCommit)
	sourceHead := plumbing.NewHash(op.SourceCommit)
	message := fmt.Sprintf("Merge branch '%s' into '%s'\n\nStrategy: %s\n", op.SourceBranch, op.TargetBranch, op.Strategy)

	commitHash, _, err := p.createCommit(treeHash, []plumbing.Hash{targetHead, sourceHead}, identity, message)
	if err != nil {
		return err
	}

	if err := p.advanceRef(op.TargetBranch, targetHead, commitHash); err != nil {
		op.Status = MergeFailed
		op.UpdatedAt = time.Now()
		p.ops.PutMergeOperation(op)
		return err
	}

	op.Status = MergeCompleted
	op.ResultCommit = commitHash.String()
	op.UpdatedAt = time.Now()
	return p.ops.PutMergeOperation(op)
}
