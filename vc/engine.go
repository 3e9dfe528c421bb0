package vc

import (
	"fmt"

	"github.com/nickyhof/SchemaVC/core"
	"github.com/nickyhof/SchemaVC/ddl"
	"github.com/nickyhof/SchemaVC/ps"
)

// Context carries the operator identity and working branch an Engine
// binds to every operation
type Context struct {
	Identity core.Identity
	Branch   string
}

// Engine exposes the version control operations against one persistence,
// with the bound identity attributed to every commit and resolution.
// Read operations of the underlying Persistence are promoted directly.
type Engine struct {
	*ps.Persistence
	Context

	// Remote configures S3 access for schema import/export; nil uses
	// the ambient AWS configuration
	Remote *S3Config
}

func NewEngine(persistence *ps.Persistence, identity core.Identity) *Engine {
	return &Engine{
		Persistence: persistence,
		Context:     Context{Identity: identity, Branch: ps.DefaultBranch},
	}
}

// Checkout switches the working branch
func (engine *Engine) Checkout(branch string) error {
	if _, err := engine.Persistence.BranchTip(branch); err != nil {
		return err
	}
	engine.Branch = branch
	return nil
}

// Apply records one DDL statement as a commit on the working branch
func (engine *Engine) Apply(sql string) (ps.Transaction, error) {
	statement, err := ddl.ParseStatement(sql)
	if err != nil {
		return ps.Transaction{}, fmt.Errorf("%w: %v", ps.ErrInvalidChange, err)
	}
	return engine.Persistence.RecordChange(engine.Branch, changeEvent(statement), engine.Identity)
}

// ApplyScript records a multi-statement DDL script as one atomic commit
func (engine *Engine) ApplyScript(script string) (ps.Transaction, error) {
	statements := ddl.SplitStatements(script)
	if len(statements) == 0 {
		return ps.Transaction{}, fmt.Errorf("%w: empty script", ps.ErrInvalidChange)
	}

	events := make([]ps.ChangeEvent, 0, len(statements))
	for _, sql := range statements {
		statement, err := ddl.ParseStatement(sql)
		if err != nil {
			return ps.Transaction{}, fmt.Errorf("%w: %v", ps.ErrInvalidChange, err)
		}
		events = append(events, changeEvent(statement))
	}

	return engine.Persistence.RecordChanges(engine.Branch, events, engine.Identity)
}

func changeEvent(statement ddl.Statement) ps.ChangeEvent {
	event := ps.ChangeEvent{
		Identity:   statement.Identity,
		ChangeKind: statement.ChangeKind,
	}
	if statement.ChangeKind != core.ChangeDrop {
		event.Definition = statement.Definition
	}
	return event
}

// CreateBranch forks a new branch from the working branch tip
func (engine *Engine) CreateBranch(name string) error {
	return engine.Persistence.CreateBranch(name, engine.Branch)
}

// Merge merges a source branch into the working branch
func (engine *Engine) Merge(source string, strategy ps.MergeStrategy) (*ps.MergeOperation, error) {
	return engine.Persistence.Merge(source, engine.Branch, strategy, engine.Identity)
}

// Resolve records a resolution for one conflict of a suspended merge
func (engine *Engine) Resolve(mergeId, conflictId string, resolution ps.Resolution, customDefinition string) (ps.Conflict, error) {
	return engine.Persistence.ResolveConflict(mergeId, conflictId, resolution, customDefinition, engine.Identity)
}

// Finalize completes a suspended merge once every conflict is resolved
func (engine *Engine) Finalize(mergeId string) (*ps.MergeOperation, error) {
	return engine.Persistence.FinalizeMerge(mergeId, engine.Identity)
}

// Objects lists every schema object on the working branch
func (engine *Engine) Objects() ([]ps.ObjectDefinition, error) {
	return engine.Persistence.ListDefinitions(engine.Branch)
}

// Definition returns one object's definition on the working branch
func (engine *Engine) Definition(id core.ObjectIdentity) (string, bool, error) {
	return engine.Persistence.Definition(engine.Branch, id)
}

// Log returns the working branch history, most recent first
func (engine *Engine) Log(limit int) ([]ps.Commit, error) {
	return engine.Persistence.Log(engine.Branch, limit)
}

// History returns the commits that changed one object on the working branch
func (engine *Engine) History(id core.ObjectIdentity) ([]ps.Commit, error) {
	return engine.Persistence.History(engine.Branch, id)
}

// Verify runs the integrity check against the working branch tip
func (engine *Engine) Verify() error {
	return engine.Persistence.VerifyBranch(engine.Branch)
}
