package ps

import (
	"fmt"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"
)

// GCStats reports one garbage collection pass
type GCStats struct {
	Reachable   int `json:"reachable"`
	Unreachable int `json:"unreachable"`
	Deleted     int `json:"deleted"`
}

// looseObjectStorer is the subset of storage backends that can enumerate
// and delete individual loose objects. Filesystem storage supports both;
// memory storage enumerates but rejects deletes, so GC there only reports.
type looseObjectStorer interface {
	ForEachObjectHash(func(plumbing.Hash) error) error
	DeleteLooseObject(plumbing.Hash) error
}

// GarbageCollect removes objects unreachable from any ref: blobs and trees
// whose last referencing commit became unreachable after a hard branch
// delete or a reset. Reachability covers active branches, soft-deleted
// branches and tags, so a soft delete never loses history. The graph is a
// DAG, so a single mark pass suffices; fan-in from many trees to one blob
// is common and handled by the visited set.
func (p *Persistence) GarbageCollect() (GCStats, error) {
	if err := p.ensureInitialized(); err != nil {
		return GCStats{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	reachable := make(map[plumbing.Hash]bool)

	refs, err := p.repo.References()
	if err != nil {
		return GCStats{}, fmt.Errorf("failed to list references: %w", err)
	}
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		return p.markCommit(ref.Hash(), reachable)
	})
	if err != nil {
		return GCStats{}, err
	}

	stats := GCStats{Reachable: len(reachable)}

	var unreachable []plumbing.Hash
	los, canSweep := p.repo.Storer.(looseObjectStorer)
	if canSweep {
		err = los.ForEachObjectHash(func(hash plumbing.Hash) error {
			if !reachable[hash] {
				unreachable = append(unreachable, hash)
			}
			return nil
		})
		if err != nil {
			return stats, err
		}
	} else {
		iter, err := p.repo.Storer.IterEncodedObjects(plumbing.AnyObject)
		if err != nil {
			return stats, err
		}
		iter.ForEach(func(obj plumbing.EncodedObject) error {
			if !reachable[obj.Hash()] {
				unreachable = append(unreachable, obj.Hash())
			}
			return nil
		})
	}
	stats.Unreachable = len(unreachable)

	// Memory storage rejects individual deletes; report only
	if !canSweep || p.isMemoryMode {
		return stats, nil
	}

	for _, hash := range unreachable {
		if err := los.DeleteLooseObject(hash); err != nil {
			return stats, fmt.Errorf("failed to delete %s: %w", hash, err)
		}
		stats.Deleted++
	}

	return stats, nil
}

// markCommit marks a commit, its ancestry, and every tree and blob those
// commits reference
func (p *Persistence) markCommit(tip plumbing.Hash, reachable map[plumbing.Hash]bool) error {
	queue := []plumbing.Hash{tip}

	for len(queue) > 0 {
		hash := queue[0]
		queue = queue[1:]

		if reachable[hash] {
			continue
		}

		commit, err := p.repo.CommitObject(hash)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrUnknownCommit, hash)
		}
		reachable[hash] = true

		if err := p.markTree(commit.TreeHash, reachable); err != nil {
			return err
		}

		queue = append(queue, commit.ParentHashes...)
	}

	return nil
}

func (p *Persistence) markTree(treeHash plumbing.Hash, reachable map[plumbing.Hash]bool) error {
	if reachable[treeHash] {
		return nil
	}

	tree, err := object.GetTree(p.repo.Storer, treeHash)
	if err != nil {
		return fmt.Errorf("failed to get tree %s: %w", treeHash, err)
	}
	reachable[treeHash] = true

	for _, entry := range tree.Entries {
		if entry.Mode == filemode.Dir {
			if err := p.markTree(entry.Hash, reachable); err != nil {
				return err
			}
			continue
		}
		reachable[entry.Hash] = true
	}

	return nil
}
