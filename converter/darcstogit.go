// darcs-to-git incrementally converts the patch history of a darcs
// repository into git commits, preserving authorship, dates, tags, and
// patch identity.  Run it inside the target directory; repeated runs
// import only the patches that are new since the last one.
//
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"flag"
	"fmt"
	"os"

	readline "github.com/chzyer/readline"
	godotenv "github.com/joho/godotenv"
	terminal "golang.org/x/crypto/ssh/terminal"
)

const version = "1.0"

var maxPatches int
var authorName string
var authorEmail string
var authorFile string
var listAuthorsMode bool
var noChecks bool
var cleanMessages bool
var verify bool
var basedir string

func input(prompt string) string {
	rl, err := readline.New(prompt)
	if err != nil {
		croak("reading input: %v", err)
	}
	defer rl.Close()
	line, _ := rl.Readline()
	return line
}

func main() {
	flags := flag.NewFlagSet("darcs-to-git", flag.ExitOnError)

	flags.IntVar(&maxPatches, "n", 0, "import at most n patches")
	flags.StringVar(&authorName, "author-name", "", "default author name for unresolvable authors")
	flags.StringVar(&authorEmail, "author-email", "", "default author email for unresolvable authors")
	flags.StringVar(&authorFile, "authors", "", "YAML author override table (see darcsmapper)")
	flags.StringVar(&basedir, "d", "", "chdir to the target directory before importing")
	flags.BoolVar(&listAuthorsMode, "list-authors", false, "list raw source authors and exit")
	flags.BoolVar(&noChecks, "no-checks", false, "disable repository consistency checks")
	flags.BoolVar(&cleanMessages, "clean", false, "omit darcs-hash markers from commit messages")
	flags.BoolVar(&verify, "verify", false, "compare the migrated tree against the source afterwards")
	flags.BoolVar(&quiet, "q", false, "run as quietly as possible")
	flags.BoolVar(&verbose, "v", false, "show subcommands and diagnostics")

	flags.Usage = func() {
		fmt.Fprint(os.Stderr, `darcs-to-git [options] SOURCE-REPOSITORY

Imports the patch history of the darcs repository at SOURCE-REPOSITORY
(a directory or URL) into a git repository in the current directory,
creating it if necessary.  Already-imported patches are skipped.

darcs-to-git options:
`)
		flags.PrintDefaults()
	}

	flags.Parse(os.Args[1:])
	args := flags.Args()
	if len(args) > 0 && args[0] == "version" {
		fmt.Println(version)
		return
	}

	// .env and the environment supply fallback identity defaults.
	godotenv.Load()
	defaultName, defaultEmail := defaultIdentity(authorName, authorEmail,
		os.Getenv("DARCS_TO_GIT_AUTHOR"), os.Getenv("DARCS_TO_GIT_EMAIL"))

	var source string
	if len(args) > 0 {
		source = args[0]
	} else if terminal.IsTerminal(int(os.Stdin.Fd())) {
		source = input("darcs-to-git: what darcs repository do you want to import? ")
	}
	if source == "" {
		croak("a source repository location is required.")
	}

	if basedir != "" {
		if err := os.Chdir(basedir); err != nil {
			croak("changing directory: %v", err)
		}
	}

	darcs := newDarcsRepo(source)
	git := newGitRepo()

	patches, err := darcs.Patches()
	if err != nil {
		croak("%v", err)
	}
	announce("%d patches in source history", len(patches))

	if listAuthorsMode {
		for _, author := range listAuthors(patches) {
			fmt.Println(author)
		}
		return
	}

	if err := git.Init(); err != nil {
		croak("%v", err)
	}
	if err := darcs.Init(); err != nil {
		croak("%v", err)
	}

	authors, err := loadAuthorMap(authorFile, defaultName, defaultEmail)
	if err != nil {
		croak("%v", err)
	}
	ledger, err := loadLedger(ledgerFile, git)
	if err != nil {
		croak("%v", err)
	}

	pending := selectPending(patches, ledger, maxPatches)
	if len(pending) == 0 {
		announce("nothing to import; all %d patches already applied", len(patches))
	} else {
		engine := newImporter(darcs, git, authors, ledger, !noChecks, cleanMessages)
		if err := engine.Run(pending); err != nil {
			croak("after %d of %d patches: %v", engine.applied, len(pending), err)
		}
		announce("imported %d patches", engine.applied)
	}

	if verify {
		changes, err := git.Changes()
		if err != nil {
			croak("%v", err)
		}
		if !changes.empty() {
			croak("target tree not clean after import: %s", changes)
		}
		if err := verifyTrees(source); err != nil {
			croak("%v", err)
		}
		announce("verification passed: trees are identical")
	}
}

// end
