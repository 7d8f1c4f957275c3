// The commit ledger: the durable one-to-one correspondence between source
// patch identifiers and target commit ids.  This is what makes repeated
// runs idempotent.
//
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v2"
)

// ledgerFile is where the mapping persists, inside the git directory so
// it neither dirties the darcs tree nor escapes the repository.
const ledgerFile = ".git/darcs-to-git-commits"

// CommitLedger maps source patch identifiers to target commit ids.  An
// identifier, once recorded, stays recorded for the life of the target
// repository.  Entries keep insertion (application) order so the
// persisted file reads like a history.
type CommitLedger struct {
	path    string
	target  TargetRepo
	entries map[string]string
	order   []string
}

func newCommitLedger(path string, target TargetRepo) *CommitLedger {
	return &CommitLedger{
		path:    path,
		target:  target,
		entries: make(map[string]string),
	}
}

// loadLedger reads the persisted mapping.  A missing file is an empty
// ledger unless the target already has history, in which case the mapping
// is reconstructed from the identifier markers embedded in commit
// messages.  A present but malformed file is a fatal error: guessing at a
// corrupt ledger could duplicate history.
func loadLedger(path string, target TargetRepo) (*CommitLedger, error) {
	ledger := newCommitLedger(path, target)
	if exists(path) {
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading ledger %s: %v", path, err)
		}
		var doc yaml.MapSlice
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("ledger %s is not a mapping: %v", path, err)
		}
		for _, item := range doc {
			key, kok := item.Key.(string)
			value, vok := item.Value.(string)
			if !kok || !vok {
				return nil, fmt.Errorf("ledger %s has a non-string entry %v", path, item)
			}
			ledger.put(key, value)
		}
		return ledger, nil
	}
	if !target.IsEmpty() {
		text, err := target.MarkerLog()
		if err != nil {
			return nil, err
		}
		pairs := parseMarkerLog(text)
		for _, pair := range pairs {
			ledger.put(pair[0], pair[1])
		}
		if len(pairs) > 0 {
			announce("rebuilt ledger from %d marked commits", len(pairs))
			if err := ledger.save(); err != nil {
				return nil, err
			}
		}
	}
	return ledger, nil
}

// parseMarkerLog extracts (identifier, commit) pairs from git log output:
// unindented "commit <sha>" headers paired with indented marker lines in
// the body below them.
func parseMarkerLog(text string) [][2]string {
	pairs := make([][2]string, 0)
	seen := make(map[string]bool)
	sha := ""
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "commit ") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				sha = fields[1]
			}
			continue
		}
		trimmed := strings.TrimSpace(line)
		if sha != "" && strings.HasPrefix(trimmed, markerPrefix) {
			id := strings.TrimSpace(trimmed[len(markerPrefix):])
			if id != "" && !seen[id] {
				seen[id] = true
				pairs = append(pairs, [2]string{id, sha})
			}
		}
	}
	return pairs
}

func (ledger *CommitLedger) put(sourceID string, targetID string) {
	if _, ok := ledger.entries[sourceID]; !ok {
		ledger.order = append(ledger.order, sourceID)
	}
	ledger.entries[sourceID] = targetID
}

func (ledger *CommitLedger) contains(sourceID string) bool {
	_, ok := ledger.entries[sourceID]
	return ok
}

func (ledger *CommitLedger) size() int {
	return len(ledger.entries)
}

// recordCommit upserts one mapping and persists the whole table before
// returning.  Exactly one call per successfully applied patch or tag; a
// crash can therefore never leave the file claiming work that wasn't done.
func (ledger *CommitLedger) recordCommit(sourceID string, targetID string) error {
	ledger.put(sourceID, targetID)
	return ledger.save()
}

// save rewrites the ledger atomically: full marshal to a temporary file
// in the same directory, then rename over the old one.
func (ledger *CommitLedger) save() error {
	doc := make(yaml.MapSlice, 0, len(ledger.order))
	for _, key := range ledger.order {
		doc = append(doc, yaml.MapItem{Key: key, Value: ledger.entries[key]})
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshalling ledger: %v", err)
	}
	tmp := filepath.Join(filepath.Dir(ledger.path), ".ledger-tmp")
	if err := ioutil.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing ledger: %v", err)
	}
	if err := os.Rename(tmp, ledger.path); err != nil {
		return fmt.Errorf("replacing ledger: %v", err)
	}
	return nil
}

// findTarget looks up the target id for a source patch.  Tags absent from
// the ledger fall back to a direct lookup in the target repository, which
// handles histories created before the ledger existed.
func (ledger *CommitLedger) findTarget(isTag bool, tagName string, sourceID string) (string, bool) {
	if targetID, ok := ledger.entries[sourceID]; ok {
		return targetID, true
	}
	if isTag && tagName != "" {
		return ledger.target.ResolveTag(tagName)
	}
	return "", false
}

func (ledger *CommitLedger) isTargetEmpty() bool {
	return ledger.target.IsEmpty()
}
