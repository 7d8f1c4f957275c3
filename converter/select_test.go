package main

import (
	"path/filepath"
	"testing"
)

func selectFixture(t *testing.T, target TargetRepo, recorded ...string) *CommitLedger {
	t.Helper()
	ledger := newCommitLedger(filepath.Join(t.TempDir(), "commits"), target)
	for _, hash := range recorded {
		ledger.put(hash, "somecommit")
	}
	return ledger
}

func TestSelectPendingAllRecorded(t *testing.T) {
	patches := []*PatchRecord{{Hash: "a.gz"}, {Hash: "b.gz"}, {Hash: "c.gz"}}
	ledger := selectFixture(t, newFakeTarget("c0"), "a.gz", "b.gz", "c.gz")
	assertIntEqual(t, len(selectPending(patches, ledger, 0)), 0)
}

func TestSelectPendingPartial(t *testing.T) {
	patches := []*PatchRecord{{Hash: "a.gz"}, {Hash: "b.gz"}, {Hash: "c.gz"}}
	ledger := selectFixture(t, newFakeTarget("c0"), "b.gz")
	pending := selectPending(patches, ledger, 0)
	assertIntEqual(t, len(pending), 2)
	assertEqual(t, pending[0].Hash, "a.gz")
	assertEqual(t, pending[1].Hash, "c.gz")
}

func TestSelectPendingEmptyTarget(t *testing.T) {
	// A leftover ledger next to a fresh target repository is ignored.
	patches := []*PatchRecord{{Hash: "a.gz"}, {Hash: "b.gz"}}
	ledger := selectFixture(t, newFakeTarget(), "a.gz", "b.gz")
	assertIntEqual(t, len(selectPending(patches, ledger, 0)), 2)
}

func TestSelectPendingMax(t *testing.T) {
	patches := []*PatchRecord{{Hash: "a.gz"}, {Hash: "b.gz"}, {Hash: "c.gz"}}
	ledger := selectFixture(t, newFakeTarget("c0"))
	pending := selectPending(patches, ledger, 2)
	assertIntEqual(t, len(pending), 2)
	assertEqual(t, pending[0].Hash, "a.gz")
	pending = selectPending(patches, ledger, 10)
	assertIntEqual(t, len(pending), 3)
}
