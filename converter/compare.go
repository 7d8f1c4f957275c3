// Post-flight verification: compare the migrated working tree against a
// pristine copy of the source repository, file by file.
//
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	difflib "github.com/ianbruene/go-difflib/difflib"
	shutil "github.com/termie/go-shutil"
)

// ignorableTreePath says whether a path is VCS metadata or a transient
// artifact that the comparison must skip.
func ignorableTreePath(path string) bool {
	for _, meta := range []string{"_darcs", ".git"} {
		if path == meta || strings.HasPrefix(path, meta+string(os.PathSeparator)) {
			return true
		}
	}
	return strings.Contains(filepath.Base(path), darcsBackupMark)
}

// pristineCopy materializes an unmodified copy of the source repository
// under a fresh temporary directory and returns its path.  A local source
// is copied wholesale; a remote one is fetched with darcs get, with its
// progress chatter passed through to the console.
func pristineCopy(source string) (string, error) {
	scratch, err := ioutil.TempDir(os.Getenv("TMPDIR"), "darcstogitverify")
	if err != nil {
		return "", err
	}
	pristine := filepath.Join(scratch, "pristine")
	if isdir(source) {
		if err := shutil.CopyTree(source, pristine, nil); err != nil {
			os.RemoveAll(scratch)
			return "", fmt.Errorf("copying source for verification: %v", err)
		}
	} else {
		command := quoteArgs("darcs", "get", "--quiet", source, pristine)
		if err := runProcess(command, "fetching source for verification"); err != nil {
			os.RemoveAll(scratch)
			return "", err
		}
	}
	return pristine, nil
}

// compareTrees diffs two directory trees and returns a human-readable
// report, empty when they match.  VCS metadata is ignored on both sides.
func compareTrees(sourcedir string, targetdir string) string {
	sourcefiles := dirlist(sourcedir)
	targetfiles := dirlist(targetdir)
	var report string
	for _, path := range sourcefiles.Union(targetfiles).Ordered() {
		if ignorableTreePath(path) {
			continue
		}
		sourcepath := filepath.Join(sourcedir, path)
		targetpath := filepath.Join(targetdir, path)
		if isdir(sourcepath) || isdir(targetpath) {
			continue
		}
		if !targetfiles.Contains(path) {
			report += fmt.Sprintf("%s: source only\n", path)
			continue
		}
		if !sourcefiles.Contains(path) {
			report += fmt.Sprintf("%s: target only\n", path)
			continue
		}
		sourceText, err := ioutil.ReadFile(sourcepath)
		if err != nil {
			complain("source %s is unreadable", path)
			continue
		}
		targetText, err := ioutil.ReadFile(targetpath)
		if err != nil {
			complain("target %s is unreadable", path)
			continue
		}
		if !bytes.Equal(sourceText, targetText) {
			text, _ := difflib.GetUnifiedDiffString(difflib.LineDiffParams{
				A:        difflib.SplitLines(string(sourceText)),
				B:        difflib.SplitLines(string(targetText)),
				FromFile: path + " (source)",
				ToFile:   path + " (target)",
				Context:  3,
			})
			report += text
		}
	}
	return report
}

// verifyTrees is the final sanity check: the migrated tree must be
// byte-identical to a pristine checkout of the source.
func verifyTrees(source string) error {
	pristine, err := pristineCopy(source)
	if err != nil {
		return err
	}
	defer os.RemoveAll(filepath.Dir(pristine))
	target, err := os.Getwd()
	if err != nil {
		return err
	}
	var diff string
	under(pristine, func() {
		diff = compareTrees(".", target)
	})
	if diff != "" {
		return fmt.Errorf("migrated tree differs from source:\n%s", diff)
	}
	return nil
}
