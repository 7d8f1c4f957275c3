// darcsmapper builds and updates the author override table that
// darcs-to-git consults: a YAML mapping from raw darcs author strings to
// canonical "Name <email>" identities.
//
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net/mail"
	"os"
	"sort"
	"strings"

	yaml "gopkg.in/yaml.v2"
)

// OverrideMap holds raw-author -> canonical-identity entries.
type OverrideMap map[string]string

// incomplete says whether an entry still needs a human: no email yet.
func incomplete(canonical string) bool {
	return !strings.Contains(canonical, "@")
}

/* apply a specified function to each line of a file */
func bylines(fn string, hook func(string)) {
	file, err := os.Open(fn)
	if err != nil {
		log.Fatal(err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		hook(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		log.Fatal(err)
	}
}

// NewOverrideMap initializes an override map from a YAML file.
func NewOverrideMap(fn string) OverrideMap {
	data, err := os.ReadFile(fn)
	if err != nil {
		log.Fatal(err)
	}
	om := make(OverrideMap)
	if err := yaml.Unmarshal(data, &om); err != nil {
		log.Fatalf("darcsmapper: %s is not a YAML mapping: %v", fn, err)
	}
	return om
}

// Suffix completes entries lacking an address with login@host.
func (om OverrideMap) Suffix(host string) {
	for raw, canonical := range om {
		if incomplete(canonical) {
			login := strings.ToLower(strings.Fields(canonical)[0])
			om[raw] = fmt.Sprintf("%s <%s@%s>", canonical, login, host)
		}
	}
}

// Stub adds an identity entry for a raw author not yet in the table, so
// a human can edit the canonical side in place.
func (om OverrideMap) Stub(raw string) {
	if _, ok := om[raw]; !ok && strings.TrimSpace(raw) != "" {
		om[raw] = strings.TrimSpace(raw)
	}
}

// Mine fills incomplete entries from Name <addr> pairs found in mail
// headers, matched on the address local part or the display name.
func (om OverrideMap) Mine(address string) {
	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Name == "" || parsed.Name == parsed.Address {
		return
	}
	local := strings.Split(parsed.Address, "@")[0]
	for raw, canonical := range om {
		if !incomplete(canonical) {
			continue
		}
		if canonical == local || canonical == parsed.Name || strings.HasPrefix(raw, local+"@") {
			om[raw] = fmt.Sprintf("%s <%s>", parsed.Name, parsed.Address)
		}
	}
}

/* Write the current state of this override map as YAML. */
func (om OverrideMap) Write(fp *os.File, incompleteOnly bool) {
	keys := make([]string, 0, len(om))
	for raw := range om {
		if incompleteOnly && !incomplete(om[raw]) {
			continue
		}
		keys = append(keys, raw)
	}
	sort.Strings(keys)
	doc := make(yaml.MapSlice, 0, len(keys))
	for _, raw := range keys {
		doc = append(doc, yaml.MapItem{Key: raw, Value: om[raw]})
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		log.Fatal(err)
	}
	fp.Write(out)
}

func main() {
	var host string
	var incompleteOnly bool

	flag.StringVar(&host, "h", "", "set host for suffixing")
	flag.BoolVar(&incompleteOnly, "i", false, "dump incomplete entries only")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr,
			"darcsmapper: requires an override-map file argument.\n")
		os.Exit(1)
	}

	// Read in the existing override table.  Existing entries always win.
	overrides := NewOverrideMap(flag.Arg(0))

	for i := 1; i < flag.NArg(); i++ {
		fn := flag.Arg(i)
		file, err := os.Open(fn)
		if err != nil {
			log.Fatal(err)
		}
		scanner := bufio.NewScanner(file)
		scanner.Scan()
		firstline := scanner.Text()
		if err := scanner.Err(); err != nil {
			log.Fatal(err)
		}
		file.Close()

		// Another YAML map?  Merge, existing entries first.
		if strings.Contains(firstline, ": ") || strings.HasPrefix(firstline, "#") {
			for raw, canonical := range NewOverrideMap(fn) {
				if _, ok := overrides[raw]; !ok {
					overrides[raw] = canonical
				}
			}
			continue
		}

		// A mailbox?  Mine Name <addr> pairs from its headers.
		if strings.HasPrefix(firstline, "From ") {
			bylines(fn, func(line string) {
				for _, header := range []string{"From:", "To:", "Cc:"} {
					if strings.HasPrefix(line, header) {
						for _, fld := range strings.Split(line[len(header):], ",") {
							overrides.Mine(strings.TrimSpace(fld))
						}
					}
				}
			})
			continue
		}

		// Otherwise a raw author list, one per line, as produced by
		// darcs-to-git -list-authors.
		bylines(fn, func(line string) {
			overrides.Stub(line)
		})
	}

	// Apply the -h option
	if host != "" {
		overrides.Suffix(host)
	}

	overrides.Write(os.Stdout, incompleteOnly)
}

// end
