// Package ps provides the persistence layer for SchemaVC.
//
// The persistence layer is backed by Git, using go-git for storage. Every
// recorded schema change creates a Git commit whose tree maps each object
// identity to the blob holding its normalized definition, providing full
// version control and history tracking of the schema.
//
// # Memory Persistence
//
// For testing or ephemeral instances:
//
//	persistence, err := ps.NewMemoryPersistence()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # File Persistence
//
// For persistent storage (pass a DuckDB operation store for durable merge
// state, or nil for in-memory merge state):
//
//	persistence, err := ps.NewFilePersistence("/path/to/data", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Recording Changes
//
// Schema-altering operations are reported by the change-capture
// collaborator and become commits on a branch:
//
//	event := ps.ChangeEvent{
//	    Identity:   core.ObjectIdentity{Kind: core.KindTable, Name: "public.users"},
//	    ChangeKind: core.ChangeCreate,
//	    Definition: "CREATE TABLE public.users (id INT PRIMARY KEY)",
//	}
//	txn, err := persistence.RecordChange("master", event, identity)
//
// # Branching and Merging
//
// Branches are O(1) pointer copies. Merging is three-way: the merge base
// is the true lowest common ancestor of the two tips, each touched object
// is classified into one of six conflict types, and the chosen strategy
// decides what resolves automatically. A merge with pending conflicts is
// suspended, not failed: resolve each conflict and finalize.
//
//	op, err := persistence.Merge("feature", "master", ps.StrategyAuto, identity)
//	if op.Status == ps.MergeConflicted {
//	    for _, c := range op.Conflicts {
//	        persistence.ResolveConflict(op.Id, c.Id, ps.TakeSource, "", identity)
//	    }
//	    op, err = persistence.FinalizeMerge(op.Id, identity)
//	}
package ps
