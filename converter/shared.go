// Small filesystem helpers shared across the converter.
//
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"os"
	"path/filepath"
)

func exists(pathname string) bool {
	_, err := os.Stat(pathname)
	return !os.IsNotExist(err)
}

func isdir(pathname string) bool {
	st, err := os.Stat(pathname)
	return err == nil && st.Mode().IsDir()
}

// under runs a hook with the working directory temporarily changed.
func under(target string, hook func()) {
	source, err := os.Getwd()
	if err != nil {
		croak("getting working directory: %v", err)
	}
	if err = os.Chdir(target); err != nil {
		croak("changing directory to %s: %v", target, err)
	}
	hook()
	os.Chdir(source)
}

// dirlist lists all paths under a specified directory, relative to it.
func dirlist(top string) orderedStringSet {
	outset := newOrderedStringSet()
	filepath.Walk(top, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(top, path)
		if rerr != nil || rel == "." {
			return nil
		}
		outset.Add(rel)
		return nil
	})
	return outset
}
