package ps

import (
	"testing"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/nickyhof/SchemaVC/core"
)

func tipHash(t *testing.T, p *Persistence, branch string) plumbing.Hash {
	t.Helper()
	tip, err := p.BranchTip(branch)
	if err != nil {
		t.Fatalf("BranchTip(%s) failed: %v", branch, err)
	}
	return plumbing.NewHash(tip.Id)
}

func TestMergeBaseForkPoint(t *testing.T) {
	persistence := newTestPersistence(t)

	recordCreate(t, persistence, DefaultBranch, core.KindTable, "public.users",
		"CREATE TABLE public.users (id INT)")
	fork := recordCreate(t, persistence, DefaultBranch, core.KindTable, "public.orders",
		"CREATE TABLE public.orders (id INT)")

	if err := persistence.CreateBranch("feature", DefaultBranch); err != nil {
		t.Fatalf("CreateBranch failed: %v", err)
	}
	recordAlter(t, persistence, "feature", core.KindTable, "public.users",
		"CREATE TABLE public.users (id INT, email TEXT)")
	recordAlter(t, persistence, DefaultBranch, core.KindTable, "public.orders",
		"CREATE TABLE public.orders (id INT, total INT)")

	base, found, err := persistence.MergeBase(tipHash(t, persistence, "feature"), tipHash(t, persistence, DefaultBranch))
	if err != nil {
		t.Fatalf("MergeBase failed: %v", err)
	}
	if !found {
		t.Fatal("expected a merge base")
	}
	if base.String() != fork.Id {
		t.Errorf("base = %s, want fork point %s", base, fork.Id)
	}
}

func TestMergeBaseIdentical(t *testing.T) {
	persistence := newTestPersistence(t)

	txn := recordCreate(t, persistence, DefaultBranch, core.KindTable, "public.users",
		"CREATE TABLE public.users (id INT)")
	head := plumbing.NewHash(txn.Id)

	base, found, err := persistence.MergeBase(head, head)
	if err != nil {
		t.Fatalf("MergeBase failed: %v", err)
	}
	if !found || base != head {
		t.Errorf("MergeBase(h, h) = (%s, %v), want (%s, true)", base, found, head)
	}
}

func TestMergeBaseLinear(t *testing.T) {
	// On a linear history the base of an ancestor and a descendant is the
	// ancestor itself
	persistence := newTestPersistence(t)

	txn1 := recordCreate(t, persistence, DefaultBranch, core.KindTable, "public.users",
		"CREATE TABLE public.users (id INT)")
	txn2 := recordCreate(t, persistence, DefaultBranch, core.KindTable, "public.orders",
		"CREATE TABLE public.orders (id INT)")

	base, found, err := persistence.MergeBase(plumbing.NewHash(txn1.Id), plumbing.NewHash(txn2.Id))
	if err != nil {
		t.Fatalf("MergeBase failed: %v", err)
	}
	if !found || base.String() != txn1.Id {
		t.Errorf("base = (%s, %v), want (%s, true)", base, found, txn1.Id)
	}
}

func TestMergeBaseUnrelated(t *testing.T) {
	persistence := newTestPersistence(t)

	recordCreate(t, persistence, DefaultBranch, core.KindTable, "public.users",
		"CREATE TABLE public.users (id INT)")

	// Handcraft a second root commit that shares no ancestry with master
	treeHash, err := persistence.buildSnapshotTree(Snapshot{})
	if err != nil {
		t.Fatalf("buildSnapshotTree failed: %v", err)
	}
	root, _, err := persistence.createCommit(treeHash, nil, testIdentity, "independent root\n")
	if err != nil {
		t.Fatalf("createCommit failed: %v", err)
	}

	_, found, err := persistence.MergeBase(tipHash(t, persistence, DefaultBranch), root)
	if err != nil {
		t.Fatalf("MergeBase failed: %v", err)
	}
	if found {
		t.Error("unrelated histories should have no merge base")
	}
}

func TestMergeBaseAfterCrissCross(t *testing.T) {
	// Two branches that merged each other's tips have multiple common
	// ancestors; the best base is one no other candidate descends from
	persistence := newTestPersistence(t)

	recordCreate(t, persistence, DefaultBranch, core.KindTable, "public.users",
		"CREATE TABLE public.users (id INT)")
	if err := persistence.CreateBranch("feature", DefaultBranch); err != nil {
		t.Fatalf("CreateBranch failed: %v", err)
	}

	recordCreate(t, persistence, "feature", core.KindTable, "public.orders",
		"CREATE TABLE public.orders (id INT)")
	recordCreate(t, persistence, DefaultBranch, core.KindView, "public.report",
		"CREATE VIEW public.report AS SELECT 1")

	// Merge feature into master, then keep both moving
	op, err := persistence.Merge("feature", DefaultBranch, StrategyAuto, testIdentity)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if op.Status != MergeCompleted {
		t.Fatalf("merge status = %s, want %s", op.Status, MergeCompleted)
	}
	recordCreate(t, persistence, "feature", core.KindSequence, "public.seq",
		"CREATE SEQUENCE public.seq")

	base, found, err := persistence.MergeBase(tipHash(t, persistence, "feature"), tipHash(t, persistence, DefaultBranch))
	if err != nil {
		t.Fatalf("MergeBase failed: %v", err)
	}
	if !found {
		t.Fatal("expected a merge base")
	}

	// The merge commit absorbed the old feature tip, so that tip is now
	// the best common ancestor of the two new tips, not the fork point
	if base.String() != op.SourceCommit {
		t.Errorf("base = %s, want pre-merge feature tip %s", base, op.SourceCommit)
	}
}
