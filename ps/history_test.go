package ps

import (
	"errors"
	"testing"

	"github.com/nickyhof/SchemaVC/core"
)

func TestLog(t *testing.T) {
	persistence := newTestPersistence(t)

	txn1 := recordCreate(t, persistence, DefaultBranch, core.KindTable, "public.users",
		"CREATE TABLE public.users (id INT)")
	txn2 := recordCreate(t, persistence, DefaultBranch, core.KindTable, "public.orders",
		"CREATE TABLE public.orders (id INT)")
	txn3 := recordDrop(t, persistence, DefaultBranch, core.KindTable, "public.orders")

	log, err := persistence.Log(DefaultBranch, 0)
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if len(log) != 3 {
		t.Fatalf("expected 3 commits, got %d", len(log))
	}
	for i, want := range []string{txn3.Id, txn2.Id, txn1.Id} {
		if log[i].Id != want {
			t.Errorf("log[%d] = %s, want %s", i, log[i].Id, want)
		}
	}

	limited, err := persistence.Log(DefaultBranch, 2)
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 commits with limit, got %d", len(limited))
	}

	if _, err := persistence.Log("nope", 0); !errors.Is(err, ErrUnknownBranch) {
		t.Errorf("expected ErrUnknownBranch, got %v", err)
	}
}

func TestHistory(t *testing.T) {
	persistence := newTestPersistence(t)
	id := core.ObjectIdentity{Kind: core.KindTable, Name: "public.users"}

	created := recordCreate(t, persistence, DefaultBranch, core.KindTable, "public.users",
		"CREATE TABLE public.users (id INT)")
	recordCreate(t, persistence, DefaultBranch, core.KindTable, "public.orders",
		"CREATE TABLE public.orders (id INT)")
	altered := recordAlter(t, persistence, DefaultBranch, core.KindTable, "public.users",
		"CREATE TABLE public.users (id INT, email TEXT)")
	recordDrop(t, persistence, DefaultBranch, core.KindTable, "public.orders")

	history, err := persistence.History(DefaultBranch, id)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 touching commits, got %d", len(history))
	}
	if history[0].Id != altered.Id || history[1].Id != created.Id {
		t.Errorf("history = [%s %s], want [%s %s]",
			history[0].Id, history[1].Id, altered.Id, created.Id)
	}
}

func TestHistoryIncludesDrop(t *testing.T) {
	persistence := newTestPersistence(t)
	id := core.ObjectIdentity{Kind: core.KindView, Name: "public.report"}

	recordCreate(t, persistence, DefaultBranch, core.KindTable, "public.users",
		"CREATE TABLE public.users (id INT)")
	recordCreate(t, persistence, DefaultBranch, core.KindView, "public.report",
		"CREATE VIEW public.report AS SELECT 1")
	dropped := recordDrop(t, persistence, DefaultBranch, core.KindView, "public.report")

	history, err := persistence.History(DefaultBranch, id)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected create and drop, got %d commits", len(history))
	}
	if history[0].Id != dropped.Id {
		t.Errorf("most recent touching commit = %s, want the drop %s", history[0].Id, dropped.Id)
	}
}

func TestHistoryUnknownIdentity(t *testing.T) {
	persistence := newTestPersistence(t)

	recordCreate(t, persistence, DefaultBranch, core.KindTable, "public.users",
		"CREATE TABLE public.users (id INT)")

	// An identity that never existed has an empty history, not an error
	history, err := persistence.History(DefaultBranch, core.ObjectIdentity{Kind: core.KindTable, Name: "public.ghost"})
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("expected empty history for unknown identity, got %d commits", len(history))
	}
}

func TestGetCommit(t *testing.T) {
	persistence := newTestPersistence(t)
	txn := recordCreate(t, persistence, DefaultBranch, core.KindTable, "public.users",
		"CREATE TABLE public.users (id INT)")

	commit, err := persistence.GetCommit(txn.Id)
	if err != nil {
		t.Fatalf("GetCommit failed: %v", err)
	}
	if commit.Id != txn.Id || commit.Tree == "" {
		t.Errorf("commit = %+v", commit)
	}
	if commit.Author != "Test <test@test.com>" {
		t.Errorf("author = %q", commit.Author)
	}

	if _, err := persistence.GetCommit("ffffffffffffffffffffffffffffffffffffffff"); !errors.Is(err, ErrUnknownCommit) {
		t.Errorf("expected ErrUnknownCommit, got %v", err)
	}
}
