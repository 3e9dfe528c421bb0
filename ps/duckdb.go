package ps

import (
	"database/sql"
	"fmt"

	"github.com/nickyhof/SchemaVC/core"

	_ "github.com/duckdb/duckdb-go/v2"
)

// DuckDBOperationStore persists merge state in a DuckDB database, giving
// durable merge_operations and conflicts tables next to the Git object
// store. An empty path opens an in-memory database.
type DuckDBOperationStore struct {
	db *sql.DB
}

const duckdbSchema = `
CREATE TABLE IF NOT EXISTS merge_operations (
    id            TEXT PRIMARY KEY,
    source_branch TEXT NOT NULL,
    target_branch TEXT NOT NULL,
    base_commit   TEXT,
    source_commit TEXT NOT NULL,
    target_commit TEXT NOT NULL,
    strategy      TEXT NOT NULL,
    status        TEXT NOT NULL,
    result_commit TEXT,
    fast_forward  BOOLEAN NOT NULL DEFAULT FALSE,
    unrelated     BOOLEAN NOT NULL DEFAULT FALSE,
    created_at    TIMESTAMP NOT NULL,
    updated_at    TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS conflicts (
    id                TEXT PRIMARY KEY,
    merge_id          TEXT NOT NULL,
    object_kind       TEXT NOT NULL,
    object_name       TEXT NOT NULL,
    conflict_type     TEXT NOT NULL,
    base_blob         TEXT,
    source_blob       TEXT,
    target_blob       TEXT,
    resolution        TEXT,
    custom_definition TEXT,
    resolved_by       TEXT,
    resolved_at       TIMESTAMP
);
CREATE TABLE IF NOT EXISTS branch_holds (
    branch     TEXT PRIMARY KEY,
    reason     TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);
`

func NewDuckDBOperationStore(path string) (*DuckDBOperationStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb at %q: %w", path, err)
	}

	if _, err := db.Exec(duckdbSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DuckDBOperationStore{db: db}, nil
}

func (s *DuckDBOperationStore) PutMergeOperation(op *MergeOperation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM conflicts WHERE merge_id = ?`, op.Id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM merge_operations WHERE id = ?`, op.Id); err != nil {
		return err
	}

	_, err = tx.Exec(`INSERT INTO merge_operations
		(id, source_branch, target_branch, base_commit, source_commit, target_commit,
		 strategy, status, result_commit, fast_forward, unrelated, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.Id, op.SourceBranch, op.TargetBranch, nullable(op.BaseCommit),
		op.SourceCommit, op.TargetCommit, string(op.Strategy), string(op.Status),
		nullable(op.ResultCommit), op.FastForward, op.Unrelated, op.CreatedAt, op.UpdatedAt)
	if err != nil {
		return err
	}

	for _, conflict := range op.Conflicts {
		if err := insertConflict(tx, conflict); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func insertConflict(tx *sql.Tx, conflict Conflict) error {
	_, err := tx.Exec(`INSERT INTO conflicts
		(id, merge_id, object_kind, object_name, conflict_type,
		 base_blob, source_blob, target_blob, resolution, custom_definition,
		 resolved_by, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		conflict.Id, conflict.MergeId, string(conflict.Identity.Kind), conflict.Identity.Name,
		string(conflict.Type), nullable(conflict.BaseBlob), nullable(conflict.SourceBlob),
		nullable(conflict.TargetBlob), nullable(string(conflict.Resolution)),
		nullable(conflict.CustomDefinition), nullable(conflict.ResolvedBy), conflict.ResolvedAt)
	return err
}

func (s *DuckDBOperationStore) GetMergeOperation(id string) (*MergeOperation, error) {
	row := s.db.QueryRow(`SELECT id, source_branch, target_branch, base_commit,
		source_commit, target_commit, strategy, status, result_commit,
		fast_forward, unrelated, created_at, updated_at
		FROM merge_operations WHERE id = ?`, id)

	op, err := scanOperation(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMerge, id)
	}
	if err != nil {
		return nil, err
	}

	if op.Conflicts, err = s.conflictsFor(op.Id); err != nil {
		return nil, err
	}
	return op, nil
}

func (s *DuckDBOperationStore) ListMergeOperations() ([]*MergeOperation, error) {
	rows, err := s.db.Query(`SELECT id, source_branch, target_branch, base_commit,
		source_commit, target_commit, strategy, status, result_commit,
		fast_forward, unrelated, created_at, updated_at
		FROM merge_operations ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []*MergeOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, op := range ops {
		if op.Conflicts, err = s.conflictsFor(op.Id); err != nil {
			return nil, err
		}
	}
	return ops, nil
}

func (s *DuckDBOperationStore) PutConflict(conflict Conflict) error {
	result, err := s.db.Exec(`UPDATE conflicts SET
		resolution = ?, custom_definition = ?, resolved_by = ?, resolved_at = ?
		WHERE id = ? AND merge_id = ?`,
		nullable(string(conflict.Resolution)), nullable(conflict.CustomDefinition),
		nullable(conflict.ResolvedBy), conflict.ResolvedAt, conflict.Id, conflict.MergeId)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownConflict, conflict.Id)
	}
	return nil
}

func (s *DuckDBOperationStore) conflictsFor(mergeId string) ([]Conflict, error) {
	rows, err := s.db.Query(`SELECT id, merge_id, object_kind, object_name,
		conflict_type, base_blob, source_blob, target_blob, resolution,
		custom_definition, resolved_by, resolved_at
		FROM conflicts WHERE merge_id = ? ORDER BY object_kind, object_name`, mergeId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conflicts []Conflict
	for rows.Next() {
		conflict, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, conflict)
	}
	return conflicts, rows.Err()
}

func (s *DuckDBOperationStore) SetHold(branch, reason string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO branch_holds (branch, reason) VALUES (?, ?)`,
		branch, reason)
	return err
}

func (s *DuckDBOperationStore) ClearHold(branch string) error {
	_, err := s.db.Exec(`DELETE FROM branch_holds WHERE branch = ?`, branch)
	return err
}

func (s *DuckDBOperationStore) Hold(branch string) (string, bool, error) {
	var reason string
	err := s.db.QueryRow(`SELECT reason FROM branch_holds WHERE branch = ?`, branch).Scan(&reason)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return reason, true, nil
}

func (s *DuckDBOperationStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (*MergeOperation, error) {
	var op MergeOperation
	var baseCommit, resultCommit sql.NullString
	var strategy, status string

	err := row.Scan(&op.Id, &op.SourceBranch, &op.TargetBranch, &baseCommit,
		&op.SourceCommit, &op.TargetCommit, &strategy, &status, &resultCommit,
		&op.FastForward, &op.Unrelated, &op.CreatedAt, &op.UpdatedAt)
	if err != nil {
		return nil, err
	}

	op.BaseCommit = baseCommit.String
	op.ResultCommit = resultCommit.String
	op.Strategy = MergeStrategy(strategy)
	op.Status = MergeStatus(status)
	return &op, nil
}

func scanConflict(row rowScanner) (Conflict, error) {
	var conflict Conflict
	var kind, conflictType string
	var baseBlob, sourceBlob, targetBlob, resolution, customDef, resolvedBy sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(&conflict.Id, &conflict.MergeId, &kind, &conflict.Identity.Name,
		&conflictType, &baseBlob, &sourceBlob, &targetBlob, &resolution,
		&customDef, &resolvedBy, &resolvedAt)
	if err != nil {
		return Conflict{}, err
	}

	conflict.Identity.Kind = core.ObjectKind(kind)
	conflict.Type = ConflictType(conflictType)
	conflict.BaseBlob = baseBlob.String
	conflict.SourceBlob = sourceBlob.String
	conflict.TargetBlob = targetBlob.String
	conflict.Resolution = Resolution(resolution.String)
	conflict.CustomDefinition = customDef.String
	conflict.ResolvedBy = resolvedBy.String
	if resolvedAt.Valid {
		conflict.ResolvedAt = &resolvedAt.Time
	}
	return conflict, nil
}

// nullable maps "" to NULL for optional text columns
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
