// Package ddl provides tokenization and normalization of SQL DDL text.
//
// SchemaVC stores schema object definitions content-addressed by the hash
// of their normalized text, so two definitions that differ only in
// whitespace, comments, or keyword case map to the same blob. Normalize
// produces that canonical form:
//
//	norm := ddl.Normalize("create table  users (id int)")
//	// "CREATE TABLE users (id INT)"
//
// ParseStatement extracts the object identity and change kind from a
// schema-altering statement, for callers that capture raw DDL rather than
// structured change events:
//
//	stmt, err := ddl.ParseStatement("ALTER TABLE public.users ADD COLUMN age INT")
//	// stmt.ChangeKind == core.ChangeAlter
//	// stmt.Identity == core.ObjectIdentity{Kind: core.KindTable, Name: "public.users"}
package ddl
