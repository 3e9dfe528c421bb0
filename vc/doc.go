// Package vc is the high-level engine over the versioned schema store.
// An Engine binds an operator identity and a working branch to a
// ps.Persistence, accepts raw DDL text, and drives branching, merging,
// conflict resolution and schema import/export.
//
// Typical usage:
//
//	persistence, _ := ps.NewMemoryPersistence()
//	engine := vc.NewEngine(&persistence, core.Identity{Name: "Amy", Email: "amy@example.com"})
//
//	engine.Apply("CREATE TABLE public.users (id INT PRIMARY KEY)")
//	engine.CreateBranch("feature")
//	engine.Checkout("feature")
//	engine.Apply("ALTER TABLE public.users ADD COLUMN email TEXT")
//
//	engine.Checkout("master")
//	op, _ := engine.Merge("feature", ps.StrategyAuto)
package vc
