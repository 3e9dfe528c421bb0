package ps

import (
	"time"

	"github.com/nickyhof/SchemaVC/core"
)

// ConflictType classifies the three-way relationship of one touched
// identity between merge base, source and target.
type ConflictType string

const (
	NoConflict     ConflictType = "NO_CONFLICT"
	SourceModified ConflictType = "SOURCE_MODIFIED"
	TargetModified ConflictType = "TARGET_MODIFIED"
	BothModified   ConflictType = "BOTH_MODIFIED"
	DeletedSource  ConflictType = "DELETED_SOURCE"
	DeletedTarget  ConflictType = "DELETED_TARGET"
)

// Resolution is an operator's (or strategy's) choice for one conflict
type Resolution string

const (
	ResolutionNone Resolution = ""
	TakeSource     Resolution = "take_source"
	TakeTarget     Resolution = "take_target"
	Custom         Resolution = "custom_definition"
)

// IsValid returns true for a resolution an operator may submit
func (r Resolution) IsValid() bool {
	switch r {
	case TakeSource, TakeTarget, Custom:
		return true
	}
	return false
}

// Conflict is one object whose divergent states need a rule or a manual
// choice. It belongs to exactly one merge operation.
type Conflict struct {
	Id               string              `json:"id"`
	MergeId          string              `json:"merge_id"`
	Identity         core.ObjectIdentity `json:"identity"`
	Type             ConflictType        `json:"type"`
	BaseBlob         string              `json:"base_blob,omitempty"`
	SourceBlob       string              `json:"source_blob,omitempty"`
	TargetBlob       string              `json:"target_blob,omitempty"`
	Resolution       Resolution          `json:"resolution,omitempty"`
	CustomDefinition string              `json:"custom_definition,omitempty"`
	ResolvedBy       string              `json:"resolved_by,omitempty"`
	ResolvedAt       *time.Time          `json:"resolved_at,omitempty"`
}

// Resolved returns true once the conflict carries a resolution
func (c Conflict) Resolved() bool {
	return c.Resolution != ResolutionNone
}

// classification is the outcome of the three-way decision table for one
// identity. Auto marks outcomes that need no strategy rule; for those,
// ResolvedBlob is the winning blob hash ("" means the identity is deleted).
type classification struct {
	Type         ConflictType
	Auto         bool
	ResolvedBlob string
	Drop         bool // identity leaves the result entirely
}

// classifyEntry evaluates the three-way decision table for one identity.
// Inputs are blob hashes at base, source and target; "" means absent.
// Pure: the full input truth table is covered by tests.
//
// Precedence, in order:
//  1. unchanged on both sides           -> NoConflict, keep
//  2. deleted on both sides             -> NoConflict, drop (convergent delete)
//  3. deleted on one side, other unchanged -> DeletedSource/Target, auto (delete wins)
//  4. deleted on one side, other modified  -> DeletedSource/Target, ambiguous
//  5. changed on exactly one side       -> SourceModified/TargetModified, auto
//  6. changed on both to same content   -> NoConflict, keep (convergent edit)
//  7. changed on both to different content -> BothModified (true conflict);
//     independent double-adds land here too
func classifyEntry(base, source, target string) classification {
	sourceChanged := source != base
	targetChanged := target != base

	switch {
	case !sourceChanged && !targetChanged:
		return classification{Type: NoConflict, Auto: true, ResolvedBlob: base, Drop: base == ""}

	case source == "" && target == "" && base != "":
		// Convergent deletion
		return classification{Type: NoConflict, Auto: true, Drop: true}

	case source == "" && base != "":
		if !targetChanged {
			return classification{Type: DeletedSource, Auto: true, Drop: true}
		}
		return classification{Type: DeletedSource}

	case target == "" && base != "":
		if !sourceChanged {
			return classification{Type: DeletedTarget, Auto: true, Drop: true}
		}
		return classification{Type: DeletedTarget}

	case sourceChanged && !targetChanged:
		return classification{Type: SourceModified, Auto: true, ResolvedBlob: source}

	case targetChanged && !sourceChanged:
		return classification{Type: TargetModified, Auto: true, ResolvedBlob: target}

	case source == target:
		// Convergent edit or convergent add
		return classification{Type: NoConflict, Auto: true, ResolvedBlob: source}

	default:
		return classification{Type: BothModified}
	}
}

// classifySnapshots runs the decision table over every identity touched on
// either side and returns, per identity, its classification. Unchanged
// identities produce no entry. Deterministic for fixed inputs: re-running
// it for an unfinalized merge yields the same conflict set.
func classifySnapshots(base, source, target Snapshot) map[core.ObjectIdentity]classification {
	touched := make(map[core.ObjectIdentity]bool)
	for _, record := range diffSnapshots(base, source) {
		touched[record.Identity] = true
	}
	for _, record := range diffSnapshots(base, target) {
		touched[record.Identity] = true
	}

	result := make(map[core.ObjectIdentity]classification, len(touched))
	for id := range touched {
		result[id] = classifyEntry(hashOf(base, id), hashOf(source, id), hashOf(target, id))
	}
	return result
}

func hashOf(snapshot Snapshot, id core.ObjectIdentity) string {
	if hash, ok := snapshot[id]; ok {
		return hash.String()
	}
	return ""
}
