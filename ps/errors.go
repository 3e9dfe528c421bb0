package ps

import "errors"

var (
	ErrNotInitialized = errors.New("persistence layer not initialized")

	// Input errors: the named branch, commit, merge or conflict does not exist
	ErrUnknownBranch   = errors.New("unknown branch")
	ErrUnknownCommit   = errors.New("unknown commit")
	ErrUnknownMerge    = errors.New("unknown merge operation")
	ErrUnknownConflict = errors.New("unknown conflict")
	ErrBranchExists    = errors.New("branch already exists")
	ErrInvalidChange   = errors.New("invalid change event")

	// ErrDirtyTarget means the target branch ref moved between the start of
	// a merge and its commit; the caller must retry against the new tip
	ErrDirtyTarget = errors.New("target branch moved during merge")

	// ErrIntegrity means a tree references a blob missing from the object
	// store; merges on the affected branch are held pending investigation
	ErrIntegrity  = errors.New("integrity violation: tree references missing blob")
	ErrBranchHeld = errors.New("branch held after integrity violation")

	ErrUnresolvedConflicts = errors.New("merge has unresolved conflicts")
	ErrNotConflicted       = errors.New("merge operation is not awaiting resolution")
	ErrConflictResolved    = errors.New("conflict already resolved")
)
