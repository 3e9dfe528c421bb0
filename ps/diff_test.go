package ps

import (
	"errors"
	"testing"

	"github.com/nickyhof/SchemaVC/core"
)

func TestDiffCommits(t *testing.T) {
	persistence := newTestPersistence(t)

	txn1, err := persistence.RecordChanges(DefaultBranch, []ChangeEvent{
		{
			Identity:   core.ObjectIdentity{Kind: core.KindTable, Name: "public.users"},
			ChangeKind: core.ChangeCreate,
			Definition: "CREATE TABLE public.users (id INT)",
		},
		{
			Identity:   core.ObjectIdentity{Kind: core.KindView, Name: "public.report"},
			ChangeKind: core.ChangeCreate,
			Definition: "CREATE VIEW public.report AS SELECT 1",
		},
	}, testIdentity)
	if err != nil {
		t.Fatalf("RecordChanges failed: %v", err)
	}

	txn2, err := persistence.RecordChanges(DefaultBranch, []ChangeEvent{
		{
			Identity:   core.ObjectIdentity{Kind: core.KindTable, Name: "public.users"},
			ChangeKind: core.ChangeAlter,
			Definition: "CREATE TABLE public.users (id INT, email TEXT)",
		},
		{
			Identity:   core.ObjectIdentity{Kind: core.KindView, Name: "public.report"},
			ChangeKind: core.ChangeDrop,
		},
		{
			Identity:   core.ObjectIdentity{Kind: core.KindTable, Name: "public.orders"},
			ChangeKind: core.ChangeCreate,
			Definition: "CREATE TABLE public.orders (id INT)",
		},
	}, testIdentity)
	if err != nil {
		t.Fatalf("RecordChanges failed: %v", err)
	}

	records, err := persistence.Diff(txn1.Id, txn2.Id)
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	// Sorted by kind then name: orders added, users modified, report deleted
	expect := []struct {
		name   string
		status ChangeStatus
	}{
		{"public.orders", StatusAdded},
		{"public.users", StatusModified},
		{"public.report", StatusDeleted},
	}
	for i, want := range expect {
		if records[i].Identity.Name != want.name || records[i].Status != want.status {
			t.Errorf("record %d = %s %s, want %s %s",
				i, records[i].Identity.Name, records[i].Status, want.name, want.status)
		}
	}

	added := records[0]
	if added.OldBlob != "" || added.NewBlob == "" {
		t.Errorf("added record blobs = (%q, %q)", added.OldBlob, added.NewBlob)
	}
	modified := records[1]
	if modified.OldBlob == "" || modified.NewBlob == "" || modified.OldBlob == modified.NewBlob {
		t.Errorf("modified record blobs = (%q, %q)", modified.OldBlob, modified.NewBlob)
	}
	deleted := records[2]
	if deleted.OldBlob == "" || deleted.NewBlob != "" {
		t.Errorf("deleted record blobs = (%q, %q)", deleted.OldBlob, deleted.NewBlob)
	}
}

func TestDiffIdenticalCommits(t *testing.T) {
	persistence := newTestPersistence(t)
	txn := recordCreate(t, persistence, DefaultBranch, core.KindTable, "public.users",
		"CREATE TABLE public.users (id INT)")

	records, err := persistence.Diff(txn.Id, txn.Id)
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty diff, got %d records", len(records))
	}
}

func TestDiffUnknownCommit(t *testing.T) {
	persistence := newTestPersistence(t)
	txn := recordCreate(t, persistence, DefaultBranch, core.KindTable, "public.users",
		"CREATE TABLE public.users (id INT)")

	if _, err := persistence.Diff(txn.Id, "not-a-hash"); !errors.Is(err, ErrUnknownCommit) {
		t.Errorf("expected ErrUnknownCommit, got %v", err)
	}
}

func TestDiffBranches(t *testing.T) {
	persistence := newTestPersistence(t)

	recordCreate(t, persistence, DefaultBranch, core.KindTable, "public.users",
		"CREATE TABLE public.users (id INT)")
	if err := persistence.CreateBranch("feature", DefaultBranch); err != nil {
		t.Fatalf("CreateBranch failed: %v", err)
	}
	recordAlter(t, persistence, "feature", core.KindTable, "public.users",
		"CREATE TABLE public.users (id INT, email TEXT)")

	records, err := persistence.DiffBranches(DefaultBranch, "feature")
	if err != nil {
		t.Fatalf("DiffBranches failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Status != StatusModified {
		t.Errorf("status = %s, want %s", records[0].Status, StatusModified)
	}

	if _, err := persistence.DiffBranches(DefaultBranch, "nope"); !errors.Is(err, ErrUnknownBranch) {
		t.Errorf("expected ErrUnknownBranch, got %v", err)
	}
}

func TestDiffSnapshotsDeterministicOrder(t *testing.T) {
	persistence := newTestPersistence(t)

	events := make([]ChangeEvent, 0, 8)
	for _, name := range []string{"public.a", "public.b", "public.c", "public.d"} {
		events = append(events, ChangeEvent{
			Identity:   core.ObjectIdentity{Kind: core.KindTable, Name: name},
			ChangeKind: core.ChangeCreate,
			Definition: "CREATE TABLE " + name + " (id INT)",
		})
	}
	txn1, err := persistence.RecordChanges(DefaultBranch, events, testIdentity)
	if err != nil {
		t.Fatalf("RecordChanges failed: %v", err)
	}
	txn2 := recordDrop(t, persistence, DefaultBranch, core.KindTable, "public.a")

	first, err := persistence.Diff(txn1.Id, txn2.Id)
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := persistence.Diff(txn1.Id, txn2.Id)
		if err != nil {
			t.Fatalf("Diff failed: %v", err)
		}
		if len(again) != len(first) {
			t.Fatal("diff length changed between runs")
		}
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("diff order changed between runs at %d", j)
			}
		}
	}
}
