package ps

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/nickyhof/SchemaVC/core"
)

// Snapshot maps every object identity in one schema state to the hash of
// the blob holding its normalized definition.
type Snapshot map[core.ObjectIdentity]plumbing.Hash

// createBlob creates a blob object directly in the object store without filesystem I/O.
// Identical content always yields the same hash, so insert is idempotent.
func (p *Persistence) createBlob(data []byte) (plumbing.Hash, error) {
	obj := p.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))

	writer, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to create blob writer: %w", err)
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return plumbing.ZeroHash, fmt.Errorf("failed to write blob data: %w", err)
	}
	writer.Close()

	hash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store blob: %w", err)
	}

	return hash, nil
}

// readBlob returns the content of a blob
func (p *Persistence) readBlob(hash plumbing.Hash) ([]byte, error) {
	blob, err := object.GetBlob(p.repo.Storer, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get blob %s: %w", hash, err)
	}

	reader, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s: %w", hash, err)
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

// snapshotAt reads the full schema state at a commit: one entry per object
// identity, keyed to its definition blob. A zero commit hash yields an
// empty snapshot (used for unrelated-history merges).
func (p *Persistence) snapshotAt(commitHash plumbing.Hash) (Snapshot, error) {
	snapshot := make(Snapshot)

	if commitHash == plumbing.ZeroHash {
		return snapshot, nil
	}

	commit, err := p.repo.CommitObject(commitHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommit, commitHash)
	}

	tree, err := object.GetTree(p.repo.Storer, commit.TreeHash)
	if err != nil {
		return nil, fmt.Errorf("failed to get tree for %s: %w", commitHash, err)
	}

	for _, kindEntry := range tree.Entries {
		if kindEntry.Mode != filemode.Dir {
			continue
		}

		kindTree, err := object.GetTree(p.repo.Storer, kindEntry.Hash)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s subtree: %w", kindEntry.Name, err)
		}

		for _, entry := range kindTree.Entries {
			if entry.Mode != filemode.Regular {
				continue
			}

			id, ok := core.ParseObjectPath(kindEntry.Name + "/" + entry.Name)
			if !ok {
				continue
			}
			snapshot[id] = entry.Hash
		}
	}

	return snapshot, nil
}

// buildSnapshotTree writes the tree objects for a snapshot and returns the
// root tree hash: one subtree per object kind, one file entry per identity.
func (p *Persistence) buildSnapshotTree(snapshot Snapshot) (plumbing.Hash, error) {
	byKind := make(map[core.ObjectKind][]object.TreeEntry)
	for id, blobHash := range snapshot {
		byKind[id.Kind] = append(byKind[id.Kind], object.TreeEntry{
			Name: id.Name + ".sql",
			Mode: filemode.Regular,
			Hash: blobHash,
		})
	}

	rootEntries := make([]object.TreeEntry, 0, len(byKind))
	for kind, entries := range byKind {
		subTreeHash, err := p.buildTreeFromEntries(entries)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		rootEntries = append(rootEntries, object.TreeEntry{
			Name: string(kind),
			Mode: filemode.Dir,
			Hash: subTreeHash,
		})
	}

	return p.buildTreeFromEntries(rootEntries)
}

// buildTreeFromEntries creates a tree object from a list of entries
func (p *Persistence) buildTreeFromEntries(entries []object.TreeEntry) (plumbing.Hash, error) {
	// Sort entries by name (Git requirement)
	sort.Slice(entries, func(i, j int) bool {
		// Directories are sorted with trailing slash for comparison
		nameI := entries[i].Name
		nameJ := entries[j].Name
		if entries[i].Mode == filemode.Dir {
			nameI += "/"
		}
		if entries[j].Mode == filemode.Dir {
			nameJ += "/"
		}
		return nameI < nameJ
	})

	tree := &object.Tree{Entries: entries}

	obj := p.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode tree: %w", err)
	}

	hash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store tree: %w", err)
	}

	return hash, nil
}

// createCommit creates a commit object directly, with explicit parents.
// Merge commits carry two parents: target tip first, source tip second.
// The commit is not reachable until a ref advances to it, so a failure
// after this point leaves no visible partial state.
func (p *Persistence) createCommit(treeHash plumbing.Hash, parents []plumbing.Hash, identity core.Identity, message string) (plumbing.Hash, Transaction, error) {
	sig := object.Signature{
		Name:  identity.Name,
		Email: identity.Email,
		When:  time.Now(),
	}

	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     treeHash,
		ParentHashes: parents,
	}

	obj := p.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, Transaction{}, fmt.Errorf("failed to encode commit: %w", err)
	}

	commitHash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, Transaction{}, fmt.Errorf("failed to store commit: %w", err)
	}

	return commitHash, Transaction{
		Id:     commitHash.String(),
		When:   sig.When,
		Author: fmt.Sprintf("%s <%s>", sig.Name, sig.Email),
	}, nil
}

// Definition returns the stored definition text of an identity at a branch tip
// ObjectDefinition pairs an object identity with its stored definition
type ObjectDefinition struct {
	Identity   core.ObjectIdentity `json:"identity"`
	Definition string              `json:"definition"`
}

// ListDefinitions returns every object at a branch tip with its
// definition, ordered by kind then name
func (p *Persistence) ListDefinitions(branch string) ([]ObjectDefinition, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	head, err := p.branchHead(branch)
	if err != nil {
		return nil, err
	}

	snapshot, err := p.snapshotAt(head)
	if err != nil {
		return nil, err
	}

	definitions := make([]ObjectDefinition, 0, len(snapshot))
	for id, blobHash := range snapshot {
		data, err := p.readBlob(blobHash)
		if err != nil {
			return nil, err
		}
		definitions = append(definitions, ObjectDefinition{Identity: id, Definition: string(data)})
	}

	sort.Slice(definitions, func(i, j int) bool {
		if definitions[i].Identity.Kind != definitions[j].Identity.Kind {
			return definitions[i].Identity.Kind < definitions[j].Identity.Kind
		}
		return definitions[i].Identity.Name < definitions[j].Identity.Name
	})

	return definitions, nil
}

func (p *Persistence) Definition(branch string, id core.ObjectIdentity) (string, bool, error) {
	if err := p.ensureInitialized(); err != nil {
		return "", false, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	head, err := p.branchHead(branch)
	if err != nil {
		return "", false, err
	}

	snapshot, err := p.snapshotAt(head)
	if err != nil {
		return "", false, err
	}

	blobHash, ok := snapshot[id]
	if !ok {
		return "", false, nil
	}

	data, err := p.readBlob(blobHash)
	if err != nil {
		return "", false, err
	}

	return string(data), true, nil
}
