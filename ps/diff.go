package ps

import (
	"fmt"
	"sort"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/nickyhof/SchemaVC/core"
)

// ChangeStatus classifies one side of a diff entry
type ChangeStatus string

const (
	StatusAdded    ChangeStatus = "added"
	StatusModified ChangeStatus = "modified"
	StatusDeleted  ChangeStatus = "deleted"
)

// ChangeRecord is one entry of a tree diff. OldBlob/NewBlob are blob
// hashes; empty means the identity is absent on that side.
type ChangeRecord struct {
	Identity core.ObjectIdentity `json:"identity"`
	Status   ChangeStatus        `json:"status"`
	OldBlob  string              `json:"old_blob,omitempty"`
	NewBlob  string              `json:"new_blob,omitempty"`
}

// diffSnapshots compares two schema states: a full outer join over object
// identity, comparing blob hashes. Unchanged entries are elided. Pure and
// deterministic: identical inputs always yield identical output, in
// identity order.
func diffSnapshots(a, b Snapshot) []ChangeRecord {
	identities := make(map[core.ObjectIdentity]bool)
	for id := range a {
		identities[id] = true
	}
	for id := range b {
		identities[id] = true
	}

	records := []ChangeRecord{}
	for id := range identities {
		oldHash, inA := a[id]
		newHash, inB := b[id]

		switch {
		case inA && !inB:
			records = append(records, ChangeRecord{
				Identity: id,
				Status:   StatusDeleted,
				OldBlob:  oldHash.String(),
			})
		case !inA && inB:
			records = append(records, ChangeRecord{
				Identity: id,
				Status:   StatusAdded,
				NewBlob:  newHash.String(),
			})
		case oldHash != newHash:
			records = append(records, ChangeRecord{
				Identity: id,
				Status:   StatusModified,
				OldBlob:  oldHash.String(),
				NewBlob:  newHash.String(),
			})
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Identity.Kind != records[j].Identity.Kind {
			return records[i].Identity.Kind < records[j].Identity.Kind
		}
		return records[i].Identity.Name < records[j].Identity.Name
	})

	return records
}

// Diff compares the schema states of two commits
func (p *Persistence) Diff(commitA, commitB string) ([]ChangeRecord, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	hashA := plumbing.NewHash(commitA)
	hashB := plumbing.NewHash(commitB)
	if hashA == plumbing.ZeroHash || hashB == plumbing.ZeroHash {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommit, commitA+" "+commitB)
	}

	snapA, err := p.snapshotAt(hashA)
	if err != nil {
		return nil, err
	}
	snapB, err := p.snapshotAt(hashB)
	if err != nil {
		return nil, err
	}

	return diffSnapshots(snapA, snapB), nil
}

// DiffBranches compares the schema states at two branch tips
func (p *Persistence) DiffBranches(branchA, branchB string) ([]ChangeRecord, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	headA, err := p.branchHead(branchA)
	if err != nil {
		return nil, err
	}
	headB, err := p.branchHead(branchB)
	if err != nil {
		return nil, err
	}

	snapA, err := p.snapshotAt(headA)
	if err != nil {
		return nil, err
	}
	snapB, err := p.snapshotAt(headB)
	if err != nil {
		return nil, err
	}

	return diffSnapshots(snapA, snapB), nil
}
