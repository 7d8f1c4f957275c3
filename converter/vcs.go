// vcs - the two repository capability interfaces and their CLI-backed
// implementations.
//
// The engine only sees SourceRepo and TargetRepo; everything darcs- or
// git-shaped lives here.  Both implementations operate on the current
// working directory, which is simultaneously the darcs working tree and
// the git working tree.
//
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SourceRepo is the upstream system patches are imported from.
type SourceRepo interface {
	// Full ordered patch history, oldest first.
	Patches() ([]*PatchRecord, error)
	// Bring exactly one patch, matched by identifier, into the tree.
	Pull(hash string) error
	// Cleanliness probe: clean flag plus the raw status output.
	Status() (bool, string, error)
	// Forcibly discard all working-tree changes and transient backup
	// artifacts left behind by a conflicted pull.
	RevertAll() error
	// Repository format/edition report, used only to pick an init mode.
	Format() (string, error)
	// Create the local tree in a format compatible with the source.
	Init() error
}

// TargetRepo is the repository commits are written to.
type TargetRepo interface {
	Init() error
	IsEmpty() bool
	// Working-tree changes since the last commit, ignored paths excluded.
	Changes() (*changeSet, error)
	Stage(paths []string) error
	Commit(message string, ident identity) (string, error)
	Tag(name string, message string, ident identity) error
	// Current HEAD commit id, or the NONE sentinel on an empty history.
	Head() string
	ResolveTag(name string) (string, bool)
	// Raw log of commits carrying identifier markers, for ledger bootstrap.
	MarkerLog() (string, error)
}

// noneCommit is the ledger value recorded when a patch was applied while
// the target still had no commits (a skipped tag or a contentless pull).
const noneCommit = "NONE"

// identity carries the resolved author fields a commit or tag is made
// under.  It travels to git through the environment.
type identity struct {
	name  string
	email string
	date  string
}

func (id identity) gitEnv() []string {
	return []string{
		"GIT_AUTHOR_NAME=" + id.name,
		"GIT_AUTHOR_EMAIL=" + id.email,
		"GIT_AUTHOR_DATE=" + id.date,
		"GIT_COMMITTER_NAME=" + id.name,
		"GIT_COMMITTER_EMAIL=" + id.email,
		"GIT_COMMITTER_DATE=" + id.date,
	}
}

// changeSet is the enumeration of working-tree changes since a pull, in
// the order the target VCS reported them.
type changeSet struct {
	added    orderedStringSet // untracked/new files to be staged
	modified orderedStringSet
	deleted  orderedStringSet
	renamed  orderedStringSet // "old -> new" pairs
}

func newChangeSet() *changeSet {
	return &changeSet{
		added:    newOrderedStringSet(),
		modified: newOrderedStringSet(),
		deleted:  newOrderedStringSet(),
		renamed:  newOrderedStringSet(),
	}
}

func (cs *changeSet) empty() bool {
	return cs.added.Empty() && cs.modified.Empty() && cs.deleted.Empty() && cs.renamed.Empty()
}

func (cs *changeSet) String() string {
	return fmt.Sprintf("added %s modified %s deleted %s renamed %s",
		cs.added, cs.modified, cs.deleted, cs.renamed)
}

// parsePorcelainStatus digests git status --porcelain output.  Paths with
// unusual characters come back C-quoted and are unquoted here.
func parsePorcelainStatus(text string) *changeSet {
	cs := newChangeSet()
	unquote := func(path string) string {
		if strings.HasPrefix(path, `"`) {
			if unquoted, err := strconv.Unquote(path); err == nil {
				return unquoted
			}
		}
		return path
	}
	for _, line := range strings.Split(text, "\n") {
		if len(line) < 4 {
			continue
		}
		code, rest := line[:2], line[3:]
		switch {
		case code == "??" || strings.Contains(code, "A"):
			cs.added.Add(unquote(rest))
		case strings.Contains(code, "R") || strings.Contains(code, "C"):
			if i := strings.Index(rest, " -> "); i >= 0 {
				cs.renamed.Add(unquote(rest[:i]) + " -> " + unquote(rest[i+4:]))
			} else {
				cs.renamed.Add(unquote(rest))
			}
		case strings.Contains(code, "D"):
			cs.deleted.Add(unquote(rest))
		case strings.Contains(code, "M") || strings.Contains(code, "T"):
			cs.modified.Add(unquote(rest))
		}
	}
	return cs
}

// DarcsRepo drives the darcs CLI against the working directory, pulling
// from a fixed source location.
type DarcsRepo struct {
	location string
}

func newDarcsRepo(location string) *DarcsRepo {
	return &DarcsRepo{location: location}
}

func (d *DarcsRepo) Patches() ([]*PatchRecord, error) {
	command := quoteArgs("darcs", "changes", "--xml-output", "--reverse",
		"--repo", d.location)
	data, err := captureOfProcess(command)
	if err != nil {
		return nil, fmt.Errorf("listing darcs patches: %v\n%s", err, data)
	}
	return parsePatches(strings.NewReader(data))
}

// Pull brings one patch into the tree.  --set-scripts-executable carries
// executable bits over; --set-default makes the source the default pull
// location for later runs.
func (d *DarcsRepo) Pull(hash string) error {
	command := quoteArgs("darcs", "pull", "--all", "--quiet",
		"--match", "hash "+hash,
		"--set-default", "--set-scripts-executable", d.location)
	data, err := captureOfProcess(command)
	if err != nil {
		return fmt.Errorf("pulling %s: %v\n%s", hash, err, data)
	}
	return nil
}

// darcsCleanOutput recognizes the whatsnew report of an unmodified tree.
func darcsCleanOutput(out string) bool {
	return strings.Contains(out, "No changes!")
}

// Status probes the tree with whatsnew.  Note that darcs exits nonzero
// precisely in the clean case, so the exit status alone means nothing.
func (d *DarcsRepo) Status() (bool, string, error) {
	out, err := captureOfProcess("darcs whatsnew --summary --look-for-adds")
	if darcsCleanOutput(out) {
		return true, out, nil
	}
	if err != nil {
		return false, out, fmt.Errorf("darcs whatsnew failed: %v\n%s", err, out)
	}
	return false, out, nil
}

// darcsBackupMark appears in the names of the transient backup artifacts
// a conflicted pull or forced revert leaves in the tree.
const darcsBackupMark = `-darcs-backup`

func (d *DarcsRepo) RevertAll() error {
	out, err := captureOfProcess("darcs revert --all")
	if err != nil {
		return fmt.Errorf("darcs revert failed: %v\n%s", err, out)
	}
	// Backup droppings would read as dirt on the next probe.
	return filepath.Walk(".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() && (info.Name() == "_darcs" || info.Name() == ".git") {
			return filepath.SkipDir
		}
		if !info.IsDir() && strings.Contains(info.Name(), darcsBackupMark) {
			os.Remove(path)
		}
		return nil
	})
}

func (d *DarcsRepo) Format() (string, error) {
	command := quoteArgs("darcs", "show", "repo", "--repo", d.location)
	out, err := captureOfProcess(command)
	if err != nil {
		return "", fmt.Errorf("querying source format: %v\n%s", err, out)
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "Format:") {
			return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "Format:")), nil
		}
	}
	return "", nil
}

// Init creates the local darcs tree in a format compatible with the
// source repository.  Stale legacy formats get an advisory warning only;
// pulling a tag across an old-fashioned inventory needs darcs' own
// tag-consistency helper and is the user's problem, not a reason to stop.
func (d *DarcsRepo) Init() error {
	if isdir("_darcs") {
		return nil
	}
	format, err := d.Format()
	if err != nil {
		return err
	}
	command := "darcs initialize"
	switch {
	case strings.Contains(format, "darcs-2"):
		command += " --darcs-2"
	case strings.Contains(format, "old-fashioned"):
		complain("source uses the legacy old-fashioned inventory format; tag pulls may need 'darcs optimize --reorder' on the source")
		command += " --old-fashioned-inventory"
	case strings.Contains(format, "hashed"):
		command += " --hashed"
	}
	out, err := captureOfProcess(command)
	if err != nil {
		return fmt.Errorf("darcs initialize failed: %v\n%s", err, out)
	}
	return nil
}

// GitRepo drives the git CLI against the working directory.
type GitRepo struct {
}

func newGitRepo() *GitRepo {
	return &GitRepo{}
}

func (g *GitRepo) Init() error {
	if isdir(".git") {
		return nil
	}
	out, err := captureOfProcess("git init --quiet")
	if err != nil {
		return fmt.Errorf("git init failed: %v\n%s", err, out)
	}
	return nil
}

func (g *GitRepo) IsEmpty() bool {
	out, err := captureOfProcess("git branch")
	return err != nil || strings.TrimSpace(out) == ""
}

func (g *GitRepo) Changes() (*changeSet, error) {
	out, err := captureOfProcess("git status --porcelain")
	if err != nil {
		return nil, fmt.Errorf("git status failed: %v\n%s", err, out)
	}
	return parsePorcelainStatus(out), nil
}

func (g *GitRepo) Stage(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	command := quoteArgs(append([]string{"git", "add", "--"}, paths...)...)
	out, err := captureOfProcess(command)
	if err != nil {
		return fmt.Errorf("git add failed: %v\n%s", err, out)
	}
	return nil
}

func (g *GitRepo) Commit(message string, ident identity) (string, error) {
	command := quoteArgs("git", "commit", "--all", "--quiet", "-m", message)
	out, err := captureWithEnv(command, ident.gitEnv())
	if err != nil {
		return "", fmt.Errorf("git commit failed: %v\n%s", err, out)
	}
	return g.Head(), nil
}

// Tag creates an annotated tag, forcibly: on duplicate sanitized names
// the later record wins.
func (g *GitRepo) Tag(name string, message string, ident identity) error {
	command := quoteArgs("git", "tag", "-a", "-f", "-m", message, name)
	out, err := captureWithEnv(command, ident.gitEnv())
	if err != nil {
		return fmt.Errorf("git tag %s failed: %v\n%s", name, err, out)
	}
	return nil
}

func (g *GitRepo) Head() string {
	out, err := captureOfProcess("git rev-parse HEAD")
	if err != nil {
		return noneCommit
	}
	return strings.TrimSpace(out)
}

func (g *GitRepo) ResolveTag(name string) (string, bool) {
	command := quoteArgs("git", "rev-parse", "refs/tags/"+name)
	out, err := captureOfProcess(command)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(out), true
}

func (g *GitRepo) MarkerLog() (string, error) {
	if g.IsEmpty() {
		return "", nil
	}
	out, err := captureOfProcess("git log --grep=" + markerPrefix)
	if err != nil {
		return "", fmt.Errorf("scanning target history: %v\n%s", err, out)
	}
	return out, nil
}
