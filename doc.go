// Package SchemaVC provides Git-style version control for database schemas.
//
// SchemaVC tracks DDL definitions (tables, views, indexes, functions,
// sequences, triggers) as content addressed objects in a Git object store.
// Every applied change is a commit, branches isolate parallel schema work,
// and merges between branches classify conflicts per object with manual
// resolution when both sides changed the same definition.
//
// # Quick Start
//
// Create an in-memory instance:
//
//	persistence, _ := ps.NewMemoryPersistence()
//	schemavc := SchemaVC.Open(&persistence)
//	engine := schemavc.Engine(core.Identity{Name: "App", Email: "app@example.com"})
//
//	engine.Apply("CREATE TABLE users (id INT PRIMARY KEY, email TEXT)")
//	engine.CreateBranch("feature")
//	engine.Checkout("feature")
//	engine.Apply("ALTER TABLE users ADD COLUMN name TEXT")
//
//	engine.Checkout("master")
//	op, _ := engine.Merge("feature", ps.StrategyAuto)
//
// # Capabilities
//
//   - Tracked DDL: CREATE/ALTER/DROP for tables, views, materialized views,
//     indexes, functions, procedures, sequences and triggers
//   - Statement normalization so formatting-only edits converge to the
//     same content hash
//   - Branching with soft and hard deletion, branch reset, and integrity
//     verification
//   - True merge-base ancestry, pure tree diffs, and six-way conflict
//     classification with auto, source_wins, target_wins, manual_review
//     and union strategies
//   - Suspended merges with per-conflict resolution and deterministic
//     finalization
//   - Schema export and import over file, S3 and HTTP sources
//   - Reachability based garbage collection
package SchemaVC
