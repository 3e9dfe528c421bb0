package ps

import (
	"fmt"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/nickyhof/SchemaVC/core"
	"github.com/nickyhof/SchemaVC/ddl"
)

// ChangeEvent is one schema-altering operation reported by the change
// capture collaborator. Definition is empty for drops.
type ChangeEvent struct {
	Identity   core.ObjectIdentity `json:"identity"`
	ChangeKind core.ChangeKind     `json:"change_kind"`
	Definition string              `json:"definition,omitempty"`
}

func (event ChangeEvent) validate() error {
	if !event.Identity.Kind.IsValid() {
		return fmt.Errorf("%w: unknown object kind %q", ErrInvalidChange, event.Identity.Kind)
	}
	if event.Identity.Name == "" {
		return fmt.Errorf("%w: empty object name", ErrInvalidChange)
	}
	if !event.ChangeKind.IsValid() {
		return fmt.Errorf("%w: unknown change kind %q", ErrInvalidChange, event.ChangeKind)
	}
	if event.ChangeKind == core.ChangeDrop {
		if event.Definition != "" {
			return fmt.Errorf("%w: drop of %s carries a definition", ErrInvalidChange, event.Identity)
		}
	} else if event.Definition == "" {
		return fmt.Errorf("%w: %s of %s carries no definition", ErrInvalidChange, event.ChangeKind, event.Identity)
	}
	return nil
}

// message renders the commit message for a change set: a summary line plus
// trailers recording the change kind and derived severity
func changeMessage(events []ChangeEvent) string {
	first := events[0]
	summary := fmt.Sprintf("%s %s %s", first.ChangeKind, first.Identity.Kind, first.Identity.Name)
	if len(events) > 1 {
		summary = fmt.Sprintf("%s (+%d more)", summary, len(events)-1)
	}

	severity := first.ChangeKind.Severity()
	for _, event := range events[1:] {
		if event.ChangeKind.Severity() == core.SeverityHigh {
			severity = core.SeverityHigh
		} else if event.ChangeKind.Severity() == core.SeverityMedium && severity == core.SeverityLow {
			severity = core.SeverityMedium
		}
	}

	return fmt.Sprintf("%s\n\nChange-Kind: %s\nSeverity: %s\n", summary, first.ChangeKind, severity)
}

// RecordChange records a single schema change as a commit on branch.
// A branch that does not exist yet is only created when it is the default
// branch receiving its first change (the root commit).
func (p *Persistence) RecordChange(branch string, event ChangeEvent, identity core.Identity) (Transaction, error) {
	return p.RecordChanges(branch, []ChangeEvent{event}, identity)
}

// RecordChanges records a set of schema changes as one commit on branch.
// The capture collaborator calls this within the transaction that observed
// the changes, so the whole set lands atomically or not at all.
func (p *Persistence) RecordChanges(branch string, events []ChangeEvent, identity core.Identity) (Transaction, error) {
	if err := p.ensureInitialized(); err != nil {
		return Transaction{}, err
	}
	if len(events) == 0 {
		return Transaction{}, fmt.Errorf("%w: empty change set", ErrInvalidChange)
	}
	for _, event := range events {
		if err := event.validate(); err != nil {
			return Transaction{}, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	head, err := p.branchHead(branch)
	bootstrap := false
	if err != nil {
		if branch != DefaultBranch || p.branchExists(branch) {
			return Transaction{}, err
		}
		// First change ever: root commit on the default branch
		bootstrap = true
		head = plumbing.ZeroHash
	}

	snapshot, err := p.snapshotAt(head)
	if err != nil {
		return Transaction{}, err
	}

	for _, event := range events {
		if event.ChangeKind == core.ChangeDrop {
			// A drop must name an object present on the branch (or added
			// earlier in this set); rejecting here keeps the ref untouched
			if _, exists := snapshot[event.Identity]; !exists {
				return Transaction{}, fmt.Errorf("%w: drop of unknown object %s", ErrInvalidChange, event.Identity)
			}
			delete(snapshot, event.Identity)
			continue
		}

		blobHash, err := p.createBlob([]byte(ddl.Normalize(event.Definition)))
		if err != nil {
			return Transaction{}, fmt.Errorf("failed to create blob for %s: %w", event.Identity, err)
		}
		snapshot[event.Identity] = blobHash
	}

	treeHash, err := p.buildSnapshotTree(snapshot)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to build tree: %w", err)
	}

	var parents []plumbing.Hash
	if !bootstrap {
		parents = []plumbing.Hash{head}
	}

	commitHash, txn, err := p.createCommit(treeHash, parents, identity, changeMessage(events))
	if err != nil {
		return Transaction{}, err
	}

	refName := plumbing.NewBranchReferenceName(branch)
	if bootstrap {
		if err := p.repo.Storer.SetReference(plumbing.NewHashReference(refName, commitHash)); err != nil {
			return Transaction{}, fmt.Errorf("failed to create branch ref: %w", err)
		}
	} else if err := p.advanceRef(branch, head, commitHash); err != nil {
		return Transaction{}, err
	}

	return txn, nil
}
