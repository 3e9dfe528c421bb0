// Package core provides core types used throughout SchemaVC.
//
// The package defines fundamental types like Identity, ObjectIdentity,
// ChangeKind, and Severity.
//
// # Identity
//
// Identity identifies the author of schema changes (Git commit author):
//
//	identity := core.Identity{
//	    Name:  "John Doe",
//	    Email: "john@example.com",
//	}
//
// # Object Identity
//
// ObjectIdentity is the stable key of a versioned schema object,
// independent of its definition text:
//
//	id := core.ObjectIdentity{Kind: core.KindTable, Name: "public.users"}
//
// Supported object kinds:
//   - KindTable: tables
//   - KindView: views (virtual or materialized)
//   - KindIndex: indexes
//   - KindFunction: functions and stored procedures
//   - KindTrigger: triggers
//   - KindSequence: sequences
//
// # Change Kinds
//
// Each recorded change carries a ChangeKind (create, alter, drop) from
// which a Severity is derived: creates are low, alters medium, drops high.
package core
