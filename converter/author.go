// Author identity resolution.
//
// Darcs author fields are free text: sometimes "Name <addr>", sometimes a
// bare address, sometimes a login or nothing at all.  An optional override
// table (YAML, raw string -> canonical string) is consulted first, then
// the heuristics below.  Resolution is a pure function of the raw author,
// the table, and the configured defaults.
//
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"fmt"
	"io/ioutil"
	"net/mail"
	"strings"

	fqme "gitlab.com/esr/fqme"
	yaml "gopkg.in/yaml.v2"
)

// AuthorMap resolves raw darcs author strings to (display name, email)
// pairs for git attribution.
type AuthorMap struct {
	overrides    map[string]string
	defaultName  string
	defaultEmail string
}

func newAuthorMap(defaultName string, defaultEmail string) *AuthorMap {
	return &AuthorMap{
		overrides:    make(map[string]string),
		defaultName:  defaultName,
		defaultEmail: defaultEmail,
	}
}

// loadAuthorMap reads a YAML override table.  The table is read-only at
// runtime; darcsmapper is the tool for building and updating it.
func loadAuthorMap(path string, defaultName string, defaultEmail string) (*AuthorMap, error) {
	am := newAuthorMap(defaultName, defaultEmail)
	if path == "" {
		return am, nil
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading author map %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, &am.overrides); err != nil {
		return nil, fmt.Errorf("author map %s is not a mapping: %v", path, err)
	}
	return am, nil
}

// resolve maps a raw author string to a (display name, email) pair.  It
// never fails; unusable input falls back to the configured defaults.
func (am *AuthorMap) resolve(raw string) (string, string) {
	author := strings.TrimSpace(raw)
	if canonical, ok := am.overrides[raw]; ok {
		author = strings.TrimSpace(canonical)
	}
	if author == "" {
		return am.defaultName, am.defaultEmail
	}
	if addr, err := mail.ParseAddress(author); err == nil {
		if addr.Name != "" {
			return addr.Name, addr.Address
		}
		// Bare or bracketed address: display as the local part.
		if at := strings.Index(addr.Address, "@"); at > 0 {
			return addr.Address[:at], addr.Address
		}
		return addr.Address, addr.Address
	}
	// Free text that doesn't parse as an address.
	return author, am.defaultEmail
}

// Fallback identity when neither flags nor environment supply one.
const stockAuthorName = "darcs-to-git"
const stockAuthorEmail = "darcs-to-git@localhost"

// defaultIdentity picks the default author name and email: explicit flag
// values win, then the environment (godotenv has already folded in any
// .env file by the time this runs), then the fqme who-am-I lookup, then
// the stock constants.
func defaultIdentity(flagName string, flagEmail string, envName string, envEmail string) (string, string) {
	name, email := flagName, flagEmail
	if name == "" {
		name = envName
	}
	if email == "" {
		email = envEmail
	}
	if name == "" || email == "" {
		if whoName, whoEmail, err := fqme.WhoAmI(); err == nil {
			if name == "" {
				name = whoName
			}
			if email == "" {
				email = whoEmail
			}
		}
	}
	if name == "" {
		name = stockAuthorName
	}
	if email == "" {
		email = stockAuthorEmail
	}
	return name, email
}
