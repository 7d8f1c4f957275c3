// The apply engine: drives pull -> conflict detection -> revert-on-conflict
// -> commit-or-tag for each pending patch, recording every completed step
// in the ledger.
//
// The working tree is a disposable staging area owned entirely by this
// engine; conflict recovery destroys uncommitted local edits.  Patches are
// applied strictly one at a time, in upstream order - each step depends on
// the tree being in exactly the state the previous step left it in.
//
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"errors"
)

type patchState int

const (
	statePending patchState = iota
	statePulling
	stateClean
	stateConflicted
	stateReverting
	stateCleanAfterRevert
	stateUnrecoverable
	stateCommitting
	stateTagging
	stateRecorded
)

func (s patchState) String() string {
	return [...]string{
		"PENDING", "PULLING", "CLEAN", "CONFLICTED", "REVERTING",
		"CLEAN_AFTER_REVERT", "UNRECOVERABLE", "COMMITTING", "TAGGING",
		"RECORDED",
	}[s]
}

// Importer holds everything one run of the engine needs.  There is no
// package-level mutable state; a run constructs its resolver and ledger
// and threads them through here explicitly.
type Importer struct {
	source        SourceRepo
	target        TargetRepo
	authors       *AuthorMap
	ledger        *CommitLedger
	checks        bool // consistency probes before/after each pull
	cleanMessages bool // omit identifier markers from commit messages
	state         patchState
	applied       int
}

func newImporter(source SourceRepo, target TargetRepo, authors *AuthorMap,
	ledger *CommitLedger, checks bool, cleanMessages bool) *Importer {
	return &Importer{
		source:        source,
		target:        target,
		authors:       authors,
		ledger:        ledger,
		checks:        checks,
		cleanMessages: cleanMessages,
		state:         statePending,
	}
}

// Run applies the pending patches in order.  The first failure of any
// kind aborts the whole run; the ledger only ever records completed
// patches, so an aborted run resumes cleanly.
func (imp *Importer) Run(pending []*PatchRecord) (err error) {
	defer func() {
		if thrown := catch("import", recover()); thrown != nil {
			err = errors.New(thrown.message)
		}
	}()
	for index, patch := range pending {
		announce("(%d/%d) importing %s", index+1, len(pending), patch.describe())
		imp.applyOne(patch)
		imp.applied++
	}
	return nil
}

// mustBeClean probes the source tree and throws unless it is clean,
// dumping the raw status output for diagnosis.
func (imp *Importer) mustBeClean(legend string, patch *PatchRecord) {
	clean, out, err := imp.source.Status()
	if err != nil {
		panic(throw("import", "%s %s: %v", legend, patch.describe(), err))
	}
	if !clean {
		panic(throw("import",
			"tree has pending changes %s %s (engine state %s); outstanding changes:\n%s",
			legend, patch.describe(), imp.state, out))
	}
}

func (imp *Importer) applyOne(patch *PatchRecord) {
	imp.state = statePending
	// Pre-check.  Dirt here means the tree state is untrustworthy and
	// must not be silently overwritten.
	if imp.checks {
		imp.mustBeClean("before pulling", patch)
	}

	imp.state = statePulling
	if err := imp.source.Pull(patch.Hash); err != nil {
		panic(throw("import", "while importing %s: %v", patch.describe(), err))
	}

	// Conflict detection.  A dirty tree after the pull means conflict
	// markers or backup droppings; one forced revert is the whole
	// recovery policy - if the tree still won't come clean the state
	// is unrecoverable by construction.
	if imp.checks {
		clean, out, err := imp.source.Status()
		if err != nil {
			panic(throw("import", "probing after pull of %s: %v", patch.describe(), err))
		}
		if clean {
			imp.state = stateClean
		} else {
			imp.state = stateConflicted
			complain("conflict while pulling %s; reverting local changes:\n%s",
				patch.describe(), out)
			imp.state = stateReverting
			if err := imp.source.RevertAll(); err != nil {
				panic(throw("import", "reverting conflicted pull of %s: %v", patch.describe(), err))
			}
			clean2, out2, err2 := imp.source.Status()
			if err2 != nil {
				panic(throw("import", "re-probing after revert of %s: %v", patch.describe(), err2))
			}
			if !clean2 {
				imp.state = stateUnrecoverable
				panic(throw("import",
					"tree still dirty after revert of %s; outstanding changes:\n%s",
					patch.describe(), out2))
			}
			imp.state = stateCleanAfterRevert
		}
	}

	name, email := imp.authors.resolve(patch.AuthorRaw)
	patch.authorName, patch.authorEmail = name, email
	ident := identity{name: name, email: email, date: patch.Date.gitDate()}
	message := patch.commitMessage(imp.cleanMessages)

	if patch.isTag() {
		imp.state = stateTagging
		if imp.target.IsEmpty() {
			// Tagging an empty history is impossible.
			complain("cannot tag an empty repository, skipping tag %q", patch.tagName())
		} else if err := imp.target.Tag(patch.tagName(), message, ident); err != nil {
			panic(throw("import", "while importing %s: %v", patch.describe(), err))
		}
	} else {
		imp.state = stateCommitting
		changes, err := imp.target.Changes()
		if err != nil {
			panic(throw("import", "while importing %s: %v", patch.describe(), err))
		}
		if err := imp.target.Stage(changes.added.Ordered()); err != nil {
			panic(throw("import", "while importing %s: %v", patch.describe(), err))
		}
		if changes.empty() {
			// A no-op or already-applied patch.  Nothing to commit,
			// but the patch itself is done.
			announce("patch %s produced no content changes", patch.Hash)
		} else if _, err := imp.target.Commit(message, ident); err != nil {
			panic(throw("import", "while importing %s: %v", patch.describe(), err))
		}
	}

	// Whatever branch was taken, the patch is now applied; remember it
	// against the current reference (or the NONE sentinel if the target
	// is still empty) before anything else can go wrong.
	if err := imp.ledger.recordCommit(patch.Hash, imp.target.Head()); err != nil {
		panic(throw("import", "recording %s in the ledger: %v", patch.Hash, err))
	}
	imp.state = stateRecorded
}
