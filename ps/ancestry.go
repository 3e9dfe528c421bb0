package ps

import (
	"fmt"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
)

// MergeBase computes the lowest common ancestor of two commits: a common
// ancestor that is not itself an ancestor of another common ancestor.
// Returns found=false when the histories share no commit (a valid state,
// not an error). Computed once per merge request.
func (p *Persistence) MergeBase(a, b plumbing.Hash) (plumbing.Hash, bool, error) {
	if err := p.ensureInitialized(); err != nil {
		return plumbing.ZeroHash, false, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.mergeBase(a, b)
}

func (p *Persistence) mergeBase(a, b plumbing.Hash) (plumbing.Hash, bool, error) {
	if a == b {
		return a, true, nil
	}

	ancestorsA, err := p.ancestorSet(a)
	if err != nil {
		return plumbing.ZeroHash, false, err
	}
	ancestorsB, err := p.ancestorSet(b)
	if err != nil {
		return plumbing.ZeroHash, false, err
	}

	// Common ancestors. The set is closed under "parent of": every
	// ancestor of a common ancestor is itself common.
	common := make(map[plumbing.Hash]*object.Commit)
	for hash, commit := range ancestorsA {
		if _, ok := ancestorsB[hash]; ok {
			common[hash] = commit
		}
	}
	if len(common) == 0 {
		return plumbing.ZeroHash, false, nil
	}

	// A common ancestor is covered when some other common ancestor
	// descends from it. Because common is parent-closed, covered nodes
	// are exactly the direct parents of common nodes.
	covered := make(map[plumbing.Hash]bool)
	for _, commit := range common {
		for _, parent := range commit.ParentHashes {
			if _, ok := common[parent]; ok {
				covered[parent] = true
			}
		}
	}

	// Among the uncovered candidates (usually one; several only in
	// criss-cross histories) pick deterministically: latest commit time,
	// ties broken by hash.
	var best *object.Commit
	for hash, commit := range common {
		if covered[hash] {
			continue
		}
		if best == nil ||
			commit.Committer.When.After(best.Committer.When) ||
			(commit.Committer.When.Equal(best.Committer.When) && commit.Hash.String() > best.Hash.String()) {
			best = commit
		}
	}
	if best == nil {
		return plumbing.ZeroHash, false, fmt.Errorf("no maximal common ancestor in a DAG")
	}

	return best.Hash, true, nil
}

// ancestorSet collects a commit and all its ancestors by breadth-first
// traversal over parent hashes. The graph is append-only and acyclic, so
// a visited set bounds the walk.
func (p *Persistence) ancestorSet(tip plumbing.Hash) (map[plumbing.Hash]*object.Commit, error) {
	visited := make(map[plumbing.Hash]*object.Commit)
	queue := []plumbing.Hash{tip}

	for len(queue) > 0 {
		hash := queue[0]
		queue = queue[1:]

		if _, ok := visited[hash]; ok {
			continue
		}

		commit, err := p.repo.CommitObject(hash)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCommit, hash)
		}
		visited[hash] = commit

		queue = append(queue, commit.ParentHashes...)
	}

	return visited, nil
}

// isAncestor reports whether ancestor is reachable from descendant
func (p *Persistence) isAncestor(ancestor, descendant plumbing.Hash) (bool, error) {
	if ancestor == descendant {
		return true, nil
	}

	ancestorCommit, err := p.repo.CommitObject(ancestor)
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrUnknownCommit, ancestor)
	}
	descendantCommit, err := p.repo.CommitObject(descendant)
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrUnknownCommit, descendant)
	}

	return ancestorCommit.IsAncestor(descendantCommit)
}
