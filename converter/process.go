// Console reporting, classed exceptions, and external process plumbing.
// The converter talks to darcs and git exclusively through these helpers;
// nothing else in the tree spawns processes.
//
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	shlex "github.com/anmitsu/go-shlex"
	shellquote "github.com/kballard/go-shellquote"
)

var verbose bool
var quiet bool

func croak(msg string, args ...interface{}) {
	content := fmt.Sprintf(msg, args...)
	os.Stderr.WriteString("darcs-to-git: " + content + "\n")
	os.Exit(1)
}

func announce(msg string, args ...interface{}) {
	if !quiet {
		content := fmt.Sprintf(msg, args...)
		os.Stdout.WriteString("darcs-to-git: " + content + "\n")
	}
}

func complain(msg string, args ...interface{}) {
	if !quiet {
		content := fmt.Sprintf(msg, args...)
		os.Stderr.WriteString("darcs-to-git: " + content + "\n")
	}
}

// Go's panic/defer/recover feature is a weak primitive for catchable
// exceptions, so we write a throw/catch pair.  throw() must pass its
// payload to panic(); catch() can only be called in a defer hook, with
// recover() as its second argument.
//
// One error class is defined:
//
// import = failure while applying a patch to the target repository.
// Caught at the top of the engine run and turned into a fatal abort
// after the diagnostic context has been printed.

type exception struct {
	class   string
	message string
}

func (e exception) Error() string {
	return e.message
}

func throw(class string, msg string, args ...interface{}) *exception {
	e := new(exception)
	e.class = class
	e.message = fmt.Sprintf(msg, args...)
	return e
}

func catch(accept string, x interface{}) *exception {
	if x == nil {
		return nil
	}
	if err, ok := x.(*exception); ok && err.class == accept {
		return err
	}
	panic(x)
}

// captureOfProcess runs a specified command, capturing the combined output.
// The exit status comes back as the error; callers that expect a nonzero
// exit (darcs whatsnew in the clean case) must inspect the output instead.
func captureOfProcess(command string) (string, error) {
	return captureWithEnv(command, nil)
}

// captureWithEnv is captureOfProcess with extra environment entries, used
// to hand git its author and committer identity.
func captureWithEnv(command string, env []string) (string, error) {
	if verbose {
		announce("%s: capturing %s", time.Now().Format(time.RFC3339), command)
	}
	cmd := exec.Command("sh", "-c", command)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	content, err := cmd.CombinedOutput()
	if verbose {
		os.Stdout.Write(content)
	}
	return string(content), err
}

// runProcess executes a command with stdio passed through, or errors out.
func runProcess(dcmd string, legend string) error {
	if legend != "" {
		legend = " " + legend
	}
	if verbose {
		announce("executing '%s'%s", dcmd, legend)
	}
	words, err := shlex.Split(dcmd, true)
	if err != nil {
		return fmt.Errorf("preparing %q for execution: %v", dcmd, err)
	}
	cmd := exec.Command(words[0], words[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err = cmd.Run()
	if err != nil {
		return fmt.Errorf("executing %q: %v", dcmd, err)
	}
	return nil
}

// quoteArgs assembles an argv into a shell-safe command string.
func quoteArgs(words ...string) string {
	return shellquote.Join(words...)
}
