package ps

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/nickyhof/SchemaVC/core"
)

// Commit describes one node of the commit graph
type Commit struct {
	Id      string    `json:"id"`
	Parents []string  `json:"parents,omitempty"`
	Tree    string    `json:"tree"`
	Author  string    `json:"author"`
	Message string    `json:"message"`
	When    time.Time `json:"when"`
}

func commitInfo(c *object.Commit) Commit {
	parents := make([]string, 0, len(c.ParentHashes))
	for _, parent := range c.ParentHashes {
		parents = append(parents, parent.String())
	}
	return Commit{
		Id:      c.Hash.String(),
		Parents: parents,
		Tree:    c.TreeHash.String(),
		Author:  fmt.Sprintf("%s <%s>", c.Author.Name, c.Author.Email),
		Message: c.Message,
		When:    c.Committer.When,
	}
}

// GetCommit returns one commit by id
func (p *Persistence) GetCommit(commitId string) (Commit, error) {
	if err := p.ensureInitialized(); err != nil {
		return Commit{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	commit, err := p.repo.CommitObject(plumbing.NewHash(commitId))
	if err != nil {
		return Commit{}, fmt.Errorf("%w: %s", ErrUnknownCommit, commitId)
	}
	return commitInfo(commit), nil
}

// Log returns the commits reachable from a branch tip, most recent first.
// A limit of 0 means unbounded.
func (p *Persistence) Log(branch string, limit int) ([]Commit, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	head, err := p.branchHead(branch)
	if err != nil {
		return nil, err
	}

	tip, err := p.repo.CommitObject(head)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommit, head)
	}

	var commits []Commit
	iter := object.NewCommitIterCTime(tip, nil, nil)
	err = iter.ForEach(func(c *object.Commit) error {
		commits = append(commits, commitInfo(c))
		if limit > 0 && len(commits) >= limit {
			return errStopIteration
		}
		return nil
	})
	if err != nil && err != errStopIteration {
		return nil, err
	}

	return commits, nil
}

// History returns the commits in which an object identity's definition
// changed on a branch, most recent first: its history is the sequence of
// blobs the identity mapped to across commits. An identity that never
// existed on the branch yields an empty history, not an error; only the
// branch name is validated.
func (p *Persistence) History(branch string, id core.ObjectIdentity) ([]Commit, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	head, err := p.branchHead(branch)
	if err != nil {
		return nil, err
	}

	tip, err := p.repo.CommitObject(head)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommit, head)
	}

	var commits []Commit
	iter := object.NewCommitIterCTime(tip, nil, nil)
	err = iter.ForEach(func(c *object.Commit) error {
		blob, err := p.blobAt(c, id)
		if err != nil {
			return err
		}

		// A commit touches the identity when its blob differs from the
		// first parent's (merge commits: from the target-side parent)
		parentBlob := plumbing.ZeroHash
		if len(c.ParentHashes) > 0 {
			parent, err := p.repo.CommitObject(c.ParentHashes[0])
			if err != nil {
				return fmt.Errorf("%w: %s", ErrUnknownCommit, c.ParentHashes[0])
			}
			parentBlob, err = p.blobAt(parent, id)
			if err != nil {
				return err
			}
		}

		if blob != parentBlob {
			commits = append(commits, commitInfo(c))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return commits, nil
}

// blobAt returns the blob hash an identity maps to in a commit's tree,
// or ZeroHash when absent
func (p *Persistence) blobAt(c *object.Commit, id core.ObjectIdentity) (plumbing.Hash, error) {
	tree, err := object.GetTree(p.repo.Storer, c.TreeHash)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to get tree for %s: %w", c.Hash, err)
	}

	for _, kindEntry := range tree.Entries {
		if kindEntry.Name != string(id.Kind) || kindEntry.Mode != filemode.Dir {
			continue
		}

		kindTree, err := object.GetTree(p.repo.Storer, kindEntry.Hash)
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("failed to get %s subtree: %w", kindEntry.Name, err)
		}

		for _, entry := range kindTree.Entries {
			if entry.Name == id.Name+".sql" {
				return entry.Hash, nil
			}
		}
	}

	return plumbing.ZeroHash, nil
}

// errStopIteration breaks commit iteration early
var errStopIteration = fmt.Errorf("stop iteration")
