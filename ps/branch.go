package ps

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v6/plumbing"
)

// DefaultBranch is the branch that receives changes recorded without an
// explicit branch, created on the first recorded change.
const DefaultBranch = "master"

// deletedRefPrefix is the ref namespace holding soft-deleted branches.
// Commits stay reachable (and safe from GC) until the branch is hard-deleted.
const deletedRefPrefix = "refs/schemavc/deleted/"

// BranchStatus is the lifecycle state of a branch
type BranchStatus string

const (
	BranchActive  BranchStatus = "active"
	BranchDeleted BranchStatus = "deleted"
)

// BranchInfo describes one branch ref
type BranchInfo struct {
	Name   string       `json:"name"`
	Head   string       `json:"head"`
	Status BranchStatus `json:"status"`
}

func deletedRefName(name string) plumbing.ReferenceName {
	return plumbing.ReferenceName(deletedRefPrefix + name)
}

// branchHead resolves an active branch name to its tip commit hash
func (p *Persistence) branchHead(name string) (plumbing.Hash, error) {
	ref, err := p.repo.Reference(plumbing.NewBranchReferenceName(name), true)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: %s", ErrUnknownBranch, name)
	}
	return ref.Hash(), nil
}

// branchExists reports whether the name is taken, active or soft-deleted.
// Soft-deleted names stay reserved until hard delete.
func (p *Persistence) branchExists(name string) bool {
	if _, err := p.repo.Reference(plumbing.NewBranchReferenceName(name), true); err == nil {
		return true
	}
	if _, err := p.repo.Reference(deletedRefName(name), true); err == nil {
		return true
	}
	return false
}

// advanceRef moves a branch ref with compare-and-swap semantics: the ref
// must still equal old, else the tip moved under us and the caller gets
// ErrDirtyTarget. This serializes concurrent merges into the same branch.
func (p *Persistence) advanceRef(name string, old, new plumbing.Hash) error {
	refName := plumbing.NewBranchReferenceName(name)
	newRef := plumbing.NewHashReference(refName, new)

	current, err := p.repo.Reference(refName, true)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownBranch, name)
	}
	if current.Hash() != old {
		return fmt.Errorf("%w: %s is at %s, expected %s", ErrDirtyTarget, name, current.Hash(), old)
	}

	oldRef := plumbing.NewHashReference(refName, old)
	if err := p.repo.Storer.CheckAndSetReference(newRef, oldRef); err != nil {
		return fmt.Errorf("%w: %s", ErrDirtyTarget, name)
	}
	return nil
}

// CreateBranch creates a new branch pointing at the current tip of from.
// Branch creation copies one pointer; no objects are duplicated.
func (p *Persistence) CreateBranch(name, from string) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if name == "" || strings.ContainsAny(name, " ~^:?*[\\") {
		return fmt.Errorf("%w: invalid branch name %q", ErrUnknownBranch, name)
	}
	if p.branchExists(name) {
		return fmt.Errorf("%w: %s", ErrBranchExists, name)
	}

	head, err := p.branchHead(from)
	if err != nil {
		return err
	}

	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), head)
	return p.repo.Storer.SetReference(ref)
}

// CreateBranchAt creates a branch at a specific commit
func (p *Persistence) CreateBranchAt(name string, commitId string) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.branchExists(name) {
		return fmt.Errorf("%w: %s", ErrBranchExists, name)
	}

	hash := plumbing.NewHash(commitId)
	if _, err := p.repo.CommitObject(hash); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownCommit, commitId)
	}

	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), hash)
	return p.repo.Storer.SetReference(ref)
}

// DeleteBranch deletes a branch. A soft delete moves the ref aside so the
// branch's history survives garbage collection and the delete can be
// inspected; a hard delete removes the ref entirely.
func (p *Persistence) DeleteBranch(name string, hard bool) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	refName := plumbing.NewBranchReferenceName(name)
	ref, err := p.repo.Reference(refName, true)
	if err != nil {
		// Hard delete also clears a previously soft-deleted branch
		if hard {
			if _, derr := p.repo.Reference(deletedRefName(name), true); derr == nil {
				return p.repo.Storer.RemoveReference(deletedRefName(name))
			}
		}
		return fmt.Errorf("%w: %s", ErrUnknownBranch, name)
	}

	if hard {
		return p.repo.Storer.RemoveReference(refName)
	}

	aside := plumbing.NewHashReference(deletedRefName(name), ref.Hash())
	if err := p.repo.Storer.SetReference(aside); err != nil {
		return err
	}
	return p.repo.Storer.RemoveReference(refName)
}

// ResetRef moves a branch to an arbitrary commit. This is the only way a
// branch pointer may move to a non-descendant.
func (p *Persistence) ResetRef(name string, commitId string) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.branchHead(name); err != nil {
		return err
	}

	hash := plumbing.NewHash(commitId)
	if _, err := p.repo.CommitObject(hash); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownCommit, commitId)
	}

	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), hash)
	return p.repo.Storer.SetReference(ref)
}

// ListBranches returns all branches, active and soft-deleted
func (p *Persistence) ListBranches() ([]BranchInfo, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	branches := []BranchInfo{}

	refs, err := p.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	refs.ForEach(func(ref *plumbing.Reference) error {
		branches = append(branches, BranchInfo{
			Name:   ref.Name().Short(),
			Head:   ref.Hash().String(),
			Status: BranchActive,
		})
		return nil
	})

	allRefs, err := p.repo.References()
	if err != nil {
		return nil, fmt.Errorf("failed to list references: %w", err)
	}
	allRefs.ForEach(func(ref *plumbing.Reference) error {
		name := string(ref.Name())
		if strings.HasPrefix(name, deletedRefPrefix) {
			branches = append(branches, BranchInfo{
				Name:   strings.TrimPrefix(name, deletedRefPrefix),
				Head:   ref.Hash().String(),
				Status: BranchDeleted,
			})
		}
		return nil
	})

	return branches, nil
}

// BranchTip returns the tip transaction of a branch
func (p *Persistence) BranchTip(name string) (Transaction, error) {
	if err := p.ensureInitialized(); err != nil {
		return Transaction{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	head, err := p.branchHead(name)
	if err != nil {
		return Transaction{}, err
	}

	commit, err := p.repo.CommitObject(head)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: %s", ErrUnknownCommit, head)
	}

	return Transaction{
		Id:     head.String(),
		When:   commit.Committer.When,
		Author: fmt.Sprintf("%s <%s>", commit.Author.Name, commit.Author.Email),
	}, nil
}
