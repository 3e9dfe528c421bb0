package core

import (
	"fmt"
	"strings"
)

// ObjectKind classifies a versioned schema object
type ObjectKind string

const (
	KindTable    ObjectKind = "table"
	KindView     ObjectKind = "view"
	KindIndex    ObjectKind = "index"
	KindFunction ObjectKind = "function"
	KindTrigger  ObjectKind = "trigger"
	KindSequence ObjectKind = "sequence"
)

// KnownKinds lists every supported object kind
var KnownKinds = []ObjectKind{
	KindTable, KindView, KindIndex, KindFunction, KindTrigger, KindSequence,
}

// IsValid returns true if the kind is one of the supported object kinds
func (k ObjectKind) IsValid() bool {
	switch k {
	case KindTable, KindView, KindIndex, KindFunction, KindTrigger, KindSequence:
		return true
	}
	return false
}

// ObjectIdentity is the stable key of a schema object: kind plus qualified
// name ("schema.object"). The identity never changes when the definition
// text does.
type ObjectIdentity struct {
	Kind ObjectKind `json:"kind"`
	Name string     `json:"name"`
}

func (id ObjectIdentity) String() string {
	return fmt.Sprintf("%s:%s", id.Kind, id.Name)
}

// Path returns the Git tree path for the identity, "<kind>/<name>.sql"
func (id ObjectIdentity) Path() string {
	return fmt.Sprintf("%s/%s.sql", id.Kind, id.Name)
}

// ParseObjectPath reverses Path. Returns false for paths that do not name
// a schema object (unknown kind, wrong depth, wrong extension).
func ParseObjectPath(p string) (ObjectIdentity, bool) {
	parts := strings.SplitN(p, "/", 2)
	if len(parts) != 2 {
		return ObjectIdentity{}, false
	}

	kind := ObjectKind(parts[0])
	if !kind.IsValid() {
		return ObjectIdentity{}, false
	}

	name, found := strings.CutSuffix(parts[1], ".sql")
	if !found || name == "" || strings.Contains(name, "/") {
		return ObjectIdentity{}, false
	}

	return ObjectIdentity{Kind: kind, Name: name}, true
}

// ChangeKind classifies a recorded schema change
type ChangeKind string

const (
	ChangeCreate ChangeKind = "create"
	ChangeAlter  ChangeKind = "alter"
	ChangeDrop   ChangeKind = "drop"
)

// IsValid returns true if the change kind is one of create, alter, drop
func (c ChangeKind) IsValid() bool {
	switch c {
	case ChangeCreate, ChangeAlter, ChangeDrop:
		return true
	}
	return false
}

// Severity grades the risk of a schema change
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Severity derives the change severity: creates are additive (low),
// alters rewrite existing definitions (medium), drops remove them (high).
func (c ChangeKind) Severity() Severity {
	switch c {
	case ChangeCreate:
		return SeverityLow
	case ChangeAlter:
		return SeverityMedium
	case ChangeDrop:
		return SeverityHigh
	}
	return SeverityMedium
}
