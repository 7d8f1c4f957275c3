package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

// fakeSource scripts darcs behavior: Status() consumes the statuses
// queue (empty queue means clean forever), Pull and RevertAll record
// their invocations.
type fakeSource struct {
	statuses  []bool
	dirt      string
	pullErr   map[string]error
	pulled    []string
	reverts   int
	revertErr error
}

func (f *fakeSource) Patches() ([]*PatchRecord, error) { return nil, nil }

func (f *fakeSource) Pull(hash string) error {
	f.pulled = append(f.pulled, hash)
	if f.pullErr != nil {
		return f.pullErr[hash]
	}
	return nil
}

func (f *fakeSource) Status() (bool, string, error) {
	if len(f.statuses) == 0 {
		return true, "No changes!", nil
	}
	clean := f.statuses[0]
	f.statuses = f.statuses[1:]
	if clean {
		return true, "No changes!", nil
	}
	return false, f.dirt, nil
}

func (f *fakeSource) RevertAll() error {
	f.reverts++
	return f.revertErr
}

func (f *fakeSource) Format() (string, error) { return "hashed", nil }

func (f *fakeSource) Init() error { return nil }

// fakeTarget scripts git behavior: Changes() pops the queued change
// sets, Commit invents sequential ids, Tag records name -> head.
type fakeTarget struct {
	commits   []string
	messages  []string
	staged    []string
	queue     []*changeSet
	tags      map[string]string
	markerLog string
}

func newFakeTarget(commits ...string) *fakeTarget {
	return &fakeTarget{commits: commits, tags: make(map[string]string)}
}

func (f *fakeTarget) Init() error { return nil }

func (f *fakeTarget) IsEmpty() bool { return len(f.commits) == 0 }

func (f *fakeTarget) Changes() (*changeSet, error) {
	if len(f.queue) == 0 {
		return newChangeSet(), nil
	}
	cs := f.queue[0]
	f.queue = f.queue[1:]
	return cs, nil
}

func (f *fakeTarget) Stage(paths []string) error {
	f.staged = append(f.staged, paths...)
	return nil
}

func (f *fakeTarget) Commit(message string, ident identity) (string, error) {
	sha := fmt.Sprintf("commit-%d", len(f.commits)+1)
	f.commits = append(f.commits, sha)
	f.messages = append(f.messages, message)
	return sha, nil
}

func (f *fakeTarget) Tag(name string, message string, ident identity) error {
	f.tags[name] = f.Head()
	return nil
}

func (f *fakeTarget) Head() string {
	if len(f.commits) == 0 {
		return noneCommit
	}
	return f.commits[len(f.commits)-1]
}

func (f *fakeTarget) ResolveTag(name string) (string, bool) {
	sha, ok := f.tags[name]
	return sha, ok
}

func (f *fakeTarget) MarkerLog() (string, error) { return f.markerLog, nil }

func testPatch(hash string, name string) *PatchRecord {
	date, _ := newPatchDate("20061002142328", "Mon Oct  2 16:23:28 CEST 2006")
	return &PatchRecord{Hash: hash, AuthorRaw: "jane@example.com", Date: date, Name: name}
}

func testLedger(t *testing.T, target TargetRepo) *CommitLedger {
	t.Helper()
	return newCommitLedger(filepath.Join(t.TempDir(), "commits"), target)
}

func changed(files ...string) *changeSet {
	cs := newChangeSet()
	for _, file := range files {
		cs.modified.Add(file)
	}
	return cs
}

func TestEngineAppliesInOrder(t *testing.T) {
	source := &fakeSource{}
	target := newFakeTarget()
	added := newChangeSet()
	added.added.Add("b.txt")
	target.queue = []*changeSet{changed("a.txt"), added}
	ledger := testLedger(t, target)
	engine := newImporter(source, target, testAuthorMap(), ledger, true, false)

	p1 := testPatch("hash1.gz", "first patch")
	p2 := testPatch("hash2.gz", "second patch")
	if err := engine.Run([]*PatchRecord{p1, p2}); err != nil {
		t.Fatal(err)
	}
	assertIntEqual(t, len(source.pulled), 2)
	assertEqual(t, source.pulled[0], "hash1.gz")
	assertEqual(t, source.pulled[1], "hash2.gz")
	assertIntEqual(t, len(target.commits), 2)
	assertEqual(t, ledger.entries["hash1.gz"], "commit-1")
	assertEqual(t, ledger.entries["hash2.gz"], "commit-2")
	assertEqual(t, target.staged[0], "b.txt")
	assertTrue(t, strings.Contains(target.messages[0], markerPrefix+"hash1.gz"))
	assertIntEqual(t, engine.applied, 2)
	// Resolved identity is cached on the record.
	assertEqual(t, p1.authorName, "jane")
	assertEqual(t, p1.authorEmail, "jane@example.com")
}

func TestEngineConflictRecovery(t *testing.T) {
	// Pre-check clean, dirty after pull, clean again after one revert:
	// the engine must carry on and record the patch.
	source := &fakeSource{statuses: []bool{true, false, true}, dirt: "M ./foo.c +8"}
	target := newFakeTarget()
	ledger := testLedger(t, target)
	engine := newImporter(source, target, testAuthorMap(), ledger, true, false)

	patch := testPatch("hash1.gz", "conflicting patch")
	if err := engine.Run([]*PatchRecord{patch}); err != nil {
		t.Fatal(err)
	}
	assertIntEqual(t, source.reverts, 1)
	// Nothing left to commit after the revert; the patch still counts,
	// mapped to the NONE sentinel since the target is empty.
	assertIntEqual(t, len(target.commits), 0)
	assertEqual(t, ledger.entries["hash1.gz"], noneCommit)
}

func TestEngineUnrecoverableConflict(t *testing.T) {
	// Still dirty after the single revert attempt: abort, no ledger entry.
	source := &fakeSource{statuses: []bool{true, false, false}, dirt: "M ./foo.c +8"}
	target := newFakeTarget()
	ledger := testLedger(t, target)
	engine := newImporter(source, target, testAuthorMap(), ledger, true, false)

	err := engine.Run([]*PatchRecord{testPatch("hash1.gz", "bad patch")})
	if err == nil {
		t.Fatal("expected an unrecoverable-conflict error")
	}
	assertTrue(t, strings.Contains(err.Error(), "still dirty"))
	assertTrue(t, strings.Contains(err.Error(), "hash1.gz"))
	assertIntEqual(t, source.reverts, 1)
	assertBool(t, ledger.contains("hash1.gz"), false)
	assertIntEqual(t, engine.applied, 0)
}

func TestEngineAppliedCountOnAbort(t *testing.T) {
	// First patch lands, second dies unrecoverably: the applied count
	// reports the progress made before the abort.
	source := &fakeSource{
		statuses: []bool{true, true, true, false, false},
		dirt:     "M ./foo.c +8",
	}
	target := newFakeTarget()
	target.queue = []*changeSet{changed("a.txt")}
	ledger := testLedger(t, target)
	engine := newImporter(source, target, testAuthorMap(), ledger, true, false)

	err := engine.Run([]*PatchRecord{
		testPatch("hash1.gz", "good patch"),
		testPatch("hash2.gz", "bad patch"),
	})
	if err == nil {
		t.Fatal("expected an unrecoverable-conflict error")
	}
	assertIntEqual(t, engine.applied, 1)
	assertTrue(t, ledger.contains("hash1.gz"))
	assertBool(t, ledger.contains("hash2.gz"), false)
}

func TestEngineDirtyPrecheck(t *testing.T) {
	source := &fakeSource{statuses: []bool{false}, dirt: "A ./stray.txt"}
	target := newFakeTarget()
	engine := newImporter(source, target, testAuthorMap(), testLedger(t, target), true, false)

	err := engine.Run([]*PatchRecord{testPatch("hash1.gz", "patch")})
	if err == nil {
		t.Fatal("expected a dirty-tree error")
	}
	assertTrue(t, strings.Contains(err.Error(), "stray.txt"))
	assertIntEqual(t, len(source.pulled), 0)
}

func TestEngineChecksDisabled(t *testing.T) {
	// With checks off the status probes never run at all.
	source := &fakeSource{statuses: []bool{false, false, false}}
	target := newFakeTarget()
	ledger := testLedger(t, target)
	engine := newImporter(source, target, testAuthorMap(), ledger, false, false)

	if err := engine.Run([]*PatchRecord{testPatch("hash1.gz", "patch")}); err != nil {
		t.Fatal(err)
	}
	assertIntEqual(t, source.reverts, 0)
	assertIntEqual(t, len(source.statuses), 3)
	assertTrue(t, ledger.contains("hash1.gz"))
}

func TestEnginePullFailure(t *testing.T) {
	source := &fakeSource{pullErr: map[string]error{"hash1.gz": fmt.Errorf("no such patch")}}
	target := newFakeTarget()
	ledger := testLedger(t, target)
	engine := newImporter(source, target, testAuthorMap(), ledger, true, false)

	err := engine.Run([]*PatchRecord{testPatch("hash1.gz", "patch")})
	if err == nil {
		t.Fatal("expected a pull error")
	}
	assertIntEqual(t, ledger.size(), 0)
}

func TestEngineNoopPatch(t *testing.T) {
	// A pull that changes nothing still gets a ledger entry, mapped to
	// the current HEAD.
	source := &fakeSource{}
	target := newFakeTarget("c0")
	ledger := testLedger(t, target)
	engine := newImporter(source, target, testAuthorMap(), ledger, true, false)

	if err := engine.Run([]*PatchRecord{testPatch("hash1.gz", "noop")}); err != nil {
		t.Fatal(err)
	}
	assertIntEqual(t, len(target.commits), 1)
	assertEqual(t, ledger.entries["hash1.gz"], "c0")
}

func TestEngineTagSkippedOnEmptyRepo(t *testing.T) {
	source := &fakeSource{}
	target := newFakeTarget()
	ledger := testLedger(t, target)
	engine := newImporter(source, target, testAuthorMap(), ledger, true, false)

	if err := engine.Run([]*PatchRecord{testPatch("tag1.gz", "TAG 1.0")}); err != nil {
		t.Fatal(err)
	}
	assertIntEqual(t, len(target.tags), 0)
	assertEqual(t, ledger.entries["tag1.gz"], noneCommit)
}

func TestEngineTagOverwrite(t *testing.T) {
	// Two tag records with the same sanitized label: one tag survives,
	// pointing at the later record's commit.
	source := &fakeSource{}
	target := newFakeTarget("c0")
	target.queue = []*changeSet{changed("a.txt")}
	ledger := testLedger(t, target)
	engine := newImporter(source, target, testAuthorMap(), ledger, true, false)

	err := engine.Run([]*PatchRecord{
		testPatch("tag1.gz", "TAG v1"),
		testPatch("hash1.gz", "another patch"),
		testPatch("tag2.gz", "TAG v1"),
	})
	if err != nil {
		t.Fatal(err)
	}
	assertIntEqual(t, len(target.tags), 1)
	assertEqual(t, target.tags["v1"], "commit-2")
	assertIntEqual(t, ledger.size(), 3)
}

func TestEngineStateNames(t *testing.T) {
	assertEqual(t, statePending.String(), "PENDING")
	assertEqual(t, stateCleanAfterRevert.String(), "CLEAN_AFTER_REVERT")
	assertEqual(t, stateRecorded.String(), "RECORDED")
}
