package ps

import (
	"errors"
	"strings"
	"testing"

	"github.com/nickyhof/SchemaVC/core"
)

var testIdentity = core.Identity{Name: "Test", Email: "test@test.com"}

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()
	persistence, err := NewMemoryPersistence()
	if err != nil {
		t.Fatalf("NewMemoryPersistence failed: %v", err)
	}
	return &persistence
}

func recordCreate(t *testing.T, p *Persistence, branch string, kind core.ObjectKind, name, definition string) Transaction {
	t.Helper()
	txn, err := p.RecordChange(branch, ChangeEvent{
		Identity:   core.ObjectIdentity{Kind: kind, Name: name},
		ChangeKind: core.ChangeCreate,
		Definition: definition,
	}, testIdentity)
	if err != nil {
		t.Fatalf("RecordChange(create %s) failed: %v", name, err)
	}
	return txn
}

func recordAlter(t *testing.T, p *Persistence, branch string, kind core.ObjectKind, name, definition string) Transaction {
	t.Helper()
	txn, err := p.RecordChange(branch, ChangeEvent{
		Identity:   core.ObjectIdentity{Kind: kind, Name: name},
		ChangeKind: core.ChangeAlter,
		Definition: definition,
	}, testIdentity)
	if err != nil {
		t.Fatalf("RecordChange(alter %s) failed: %v", name, err)
	}
	return txn
}

func recordDrop(t *testing.T, p *Persistence, branch string, kind core.ObjectKind, name string) Transaction {
	t.Helper()
	txn, err := p.RecordChange(branch, ChangeEvent{
		Identity:   core.ObjectIdentity{Kind: kind, Name: name},
		ChangeKind: core.ChangeDrop,
	}, testIdentity)
	if err != nil {
		t.Fatalf("RecordChange(drop %s) failed: %v", name, err)
	}
	return txn
}

func TestRecordChangeBootstrap(t *testing.T) {
	persistence := newTestPersistence(t)

	txn := recordCreate(t, persistence, DefaultBranch, core.KindTable, "public.users",
		"CREATE TABLE public.users (id INT PRIMARY KEY)")
	if txn.Id == "" {
		t.Fatal("expected a commit id")
	}

	commit, err := persistence.GetCommit(txn.Id)
	if err != nil {
		t.Fatalf("GetCommit failed: %v", err)
	}
	if len(commit.Parents) != 0 {
		t.Errorf("root commit has %d parents, want 0", len(commit.Parents))
	}
	if !strings.Contains(commit.Message, "Severity: low") {
		t.Errorf("expected low severity trailer, got %q", commit.Message)
	}

	definition, exists, err := persistence.Definition(DefaultBranch, core.ObjectIdentity{Kind: core.KindTable, Name: "public.users"})
	if err != nil {
		t.Fatalf("Definition failed: %v", err)
	}
	if !exists {
		t.Fatal("expected public.users to exist")
	}
	if !strings.Contains(definition, "PUBLIC.USERS") && !strings.Contains(definition, "public.users") {
		t.Errorf("unexpected stored definition: %q", definition)
	}
}

func TestRecordChangeOnlyDefaultBranchBootstraps(t *testing.T) {
	persistence := newTestPersistence(t)

	_, err := persistence.RecordChange("feature", ChangeEvent{
		Identity:   core.ObjectIdentity{Kind: core.KindTable, Name: "public.users"},
		ChangeKind: core.ChangeCreate,
		Definition: "CREATE TABLE public.users (id INT)",
	}, testIdentity)
	if !errors.Is(err, ErrUnknownBranch) {
		t.Fatalf("expected ErrUnknownBranch, got %v", err)
	}
}

func TestRecordChangeValidation(t *testing.T) {
	persistence := newTestPersistence(t)

	cases := []struct {
		name  string
		event ChangeEvent
	}{
		{"unknown kind", ChangeEvent{
			Identity:   core.ObjectIdentity{Kind: "widget", Name: "x"},
			ChangeKind: core.ChangeCreate, Definition: "CREATE",
		}},
		{"empty name", ChangeEvent{
			Identity:   core.ObjectIdentity{Kind: core.KindTable},
			ChangeKind: core.ChangeCreate, Definition: "CREATE",
		}},
		{"unknown change kind", ChangeEvent{
			Identity:   core.ObjectIdentity{Kind: core.KindTable, Name: "x"},
			ChangeKind: "rename", Definition: "CREATE",
		}},
		{"drop with definition", ChangeEvent{
			Identity:   core.ObjectIdentity{Kind: core.KindTable, Name: "x"},
			ChangeKind: core.ChangeDrop, Definition: "DROP TABLE x",
		}},
		{"create without definition", ChangeEvent{
			Identity:   core.ObjectIdentity{Kind: core.KindTable, Name: "x"},
			ChangeKind: core.ChangeCreate,
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := persistence.RecordChange(DefaultBranch, tc.event, testIdentity)
			if !errors.Is(err, ErrInvalidChange) {
				t.Errorf("expected ErrInvalidChange, got %v", err)
			}
		})
	}

	_, err := persistence.RecordChanges(DefaultBranch, nil, testIdentity)
	if !errors.Is(err, ErrInvalidChange) {
		t.Errorf("empty change set: expected ErrInvalidChange, got %v", err)
	}
}

func TestRecordChangesAtomicCommit(t *testing.T) {
	persistence := newTestPersistence(t)

	txn, err := persistence.RecordChanges(DefaultBranch, []ChangeEvent{
		{
			Identity:   core.ObjectIdentity{Kind: core.KindTable, Name: "public.users"},
			ChangeKind: core.ChangeCreate,
			Definition: "CREATE TABLE public.users (id INT)",
		},
		{
			Identity:   core.ObjectIdentity{Kind: core.KindIndex, Name: "public.users_pk"},
			ChangeKind: core.ChangeCreate,
			Definition: "CREATE UNIQUE INDEX public.users_pk ON public.users (id)",
		},
	}, testIdentity)
	if err != nil {
		t.Fatalf("RecordChanges failed: %v", err)
	}

	// Both changes land in one commit
	log, err := persistence.Log(DefaultBranch, 0)
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if len(log) != 1 {
		t.Fatalf("expected 1 commit, got %d", len(log))
	}
	if log[0].Id != txn.Id {
		t.Errorf("tip is %s, want %s", log[0].Id, txn.Id)
	}

	for _, id := range []core.ObjectIdentity{
		{Kind: core.KindTable, Name: "public.users"},
		{Kind: core.KindIndex, Name: "public.users_pk"},
	} {
		if _, exists, err := persistence.Definition(DefaultBranch, id); err != nil || !exists {
			t.Errorf("expected %s present after commit (exists=%v, err=%v)", id, exists, err)
		}
	}
}

func TestRecordChangeDrop(t *testing.T) {
	persistence := newTestPersistence(t)
	id := core.ObjectIdentity{Kind: core.KindView, Name: "public.report"}

	recordCreate(t, persistence, DefaultBranch, core.KindView, "public.report",
		"CREATE VIEW public.report AS SELECT 1")
	txn := recordDrop(t, persistence, DefaultBranch, core.KindView, "public.report")

	if _, exists, _ := persistence.Definition(DefaultBranch, id); exists {
		t.Fatal("expected public.report gone after drop")
	}

	commit, err := persistence.GetCommit(txn.Id)
	if err != nil {
		t.Fatalf("GetCommit failed: %v", err)
	}
	if !strings.Contains(commit.Message, "Severity: high") {
		t.Errorf("expected high severity trailer on drop, got %q", commit.Message)
	}
}

func TestRecordChangeDropUnknownObject(t *testing.T) {
	persistence := newTestPersistence(t)

	recordCreate(t, persistence, DefaultBranch, core.KindTable, "public.users",
		"CREATE TABLE public.users (id INT)")

	_, err := persistence.RecordChange(DefaultBranch, ChangeEvent{
		Identity:   core.ObjectIdentity{Kind: core.KindTable, Name: "public.ghost"},
		ChangeKind: core.ChangeDrop,
	}, testIdentity)
	if !errors.Is(err, ErrInvalidChange) {
		t.Fatalf("expected ErrInvalidChange for drop of unknown object, got %v", err)
	}

	commits, err := persistence.Log(DefaultBranch, 0)
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if len(commits) != 1 {
		t.Errorf("rejected drop landed a commit: %d commits, want 1", len(commits))
	}
}

func TestRecordChangeDropOnEmptyRepository(t *testing.T) {
	persistence := newTestPersistence(t)

	_, err := persistence.RecordChange(DefaultBranch, ChangeEvent{
		Identity:   core.ObjectIdentity{Kind: core.KindTable, Name: "public.ghost"},
		ChangeKind: core.ChangeDrop,
	}, testIdentity)
	if !errors.Is(err, ErrInvalidChange) {
		t.Fatalf("expected ErrInvalidChange, got %v", err)
	}

	// The rejected drop must not bootstrap the default branch
	if _, err := persistence.BranchTip(DefaultBranch); !errors.Is(err, ErrUnknownBranch) {
		t.Errorf("expected ErrUnknownBranch after rejected drop, got %v", err)
	}
}

func TestRecordChangesCreateThenDropInOneSet(t *testing.T) {
	persistence := newTestPersistence(t)
	temp := core.ObjectIdentity{Kind: core.KindTable, Name: "public.temp_load"}

	// A set may drop an object it added earlier, as a migration would
	txn, err := persistence.RecordChanges(DefaultBranch, []ChangeEvent{
		{Identity: core.ObjectIdentity{Kind: core.KindTable, Name: "public.users"},
			ChangeKind: core.ChangeCreate, Definition: "CREATE TABLE public.users (id INT)"},
		{Identity: temp, ChangeKind: core.ChangeCreate, Definition: "CREATE TABLE public.temp_load (id INT)"},
		{Identity: temp, ChangeKind: core.ChangeDrop},
	}, testIdentity)
	if err != nil {
		t.Fatalf("RecordChanges failed: %v", err)
	}

	if _, exists, _ := persistence.Definition(DefaultBranch, temp); exists {
		t.Error("expected public.temp_load gone after in-set drop")
	}
	if _, exists, _ := persistence.Definition(DefaultBranch, core.ObjectIdentity{Kind: core.KindTable, Name: "public.users"}); !exists {
		t.Error("expected public.users to survive")
	}
	if txn.Id == "" {
		t.Error("expected a commit id")
	}
}

func TestNormalizationConvergence(t *testing.T) {
	// Two textual variants of the same definition hash to the same blob,
	// so re-recording the variant produces no diff between the commits
	persistence := newTestPersistence(t)
	id := core.ObjectIdentity{Kind: core.KindTable, Name: "public.users"}

	txn1 := recordCreate(t, persistence, DefaultBranch, core.KindTable, "public.users",
		"CREATE TABLE public.users (id INT);")
	txn2, err := persistence.RecordChange(DefaultBranch, ChangeEvent{
		Identity:   id,
		ChangeKind: core.ChangeAlter,
		Definition: "create   table public.users ( id int )  -- same thing\n;",
	}, testIdentity)
	if err != nil {
		t.Fatalf("RecordChange failed: %v", err)
	}

	records, err := persistence.Diff(txn1.Id, txn2.Id)
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no diff between equivalent definitions, got %d records", len(records))
	}
}
