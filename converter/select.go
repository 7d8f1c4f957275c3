// Patch selection: which upstream patches still need importing.
//
// SPDX-License-Identifier: BSD-2-Clause

package main

// selectPending filters the full ordered patch list down to the patches
// absent from the ledger, preserving upstream creation order.  When the
// target repository has no commits at all, every patch is pending no
// matter what the ledger says - a leftover ledger next to a fresh target
// must not cause silent skips.  A positive max caps the result.
func selectPending(patches []*PatchRecord, ledger *CommitLedger, max int) []*PatchRecord {
	pending := make([]*PatchRecord, 0, len(patches))
	targetEmpty := ledger.isTargetEmpty()
	for _, patch := range patches {
		if targetEmpty || !ledger.contains(patch.Hash) {
			pending = append(pending, patch)
		}
	}
	if max > 0 && len(pending) > max {
		pending = pending[:max]
	}
	return pending
}
