// The patch record model: one entry per darcs patch, parsed from
// "darcs changes --xml-output --reverse" (oldest first).
//
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"

	ianaindex "golang.org/x/text/encoding/ianaindex"
)

// PatchRecord identifies one upstream change.  Records are built once per
// run from a full read of the upstream history and never mutated after
// construction, except for the cached author-resolution fields the engine
// fills in.
type PatchRecord struct {
	Hash      string    // opaque stable identifier, the ledger key
	AuthorRaw string    // raw upstream author string
	Date      PatchDate // UTC stamp plus reconstructed offset
	Inverted  bool      // true if this patch reverses an earlier one
	Name      string
	Comment   string
	// Filled in by the engine, once, from the author resolver.
	authorName  string
	authorEmail string
}

var tagNameRE = regexp.MustCompile(`^TAG (.*)`)
var tagSanitizeRE = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// bookkeepingRE matches tla-style version cookies like "[project @ 42]"
// that some histories carry as patch names; they make useless commit
// titles and are dropped.
var bookkeepingRE = regexp.MustCompile(`^\[\w+ @ \d+\]`)

var ignoreThisRE = regexp.MustCompile(`(?m)^Ignore-this: \S+\n?`)

// markerPrefix is the line embedded in commit and tag messages that ties
// a git object back to its source patch.  Ledger bootstrap depends on it.
const markerPrefix = "darcs-hash:"

// isTag reports whether this record marks a tag rather than a content
// change.
func (p *PatchRecord) isTag() bool {
	return tagNameRE.MatchString(p.Name)
}

// tagName is the tag label sanitized into a git-safe refname component.
// Distinct labels can collide after sanitizing; last write wins.
func (p *PatchRecord) tagName() string {
	m := tagNameRE.FindStringSubmatch(p.Name)
	if m == nil {
		return ""
	}
	return tagSanitizeRE.ReplaceAllString(strings.TrimSpace(m[1]), "_")
}

// title is the commit title derived from the patch name.
func (p *PatchRecord) title() string {
	name := strings.TrimSpace(p.Name)
	if bookkeepingRE.MatchString(name) {
		return ""
	}
	if p.Inverted {
		return "UNDO: " + name
	}
	return name
}

// commitMessage derives the git commit (or tag annotation) message.  In
// normal mode the identifier marker line is appended; in clean mode the
// marker is omitted and darcs' Ignore-this noise lines are stripped
// from the comment.
func (p *PatchRecord) commitMessage(clean bool) string {
	comment := strings.TrimRight(p.Comment, "\n")
	if clean {
		comment = strings.TrimRight(ignoreThisRE.ReplaceAllString(comment+"\n", ""), "\n")
	}
	parts := make([]string, 0, 3)
	if title := p.title(); title != "" {
		parts = append(parts, title)
	}
	if comment != "" {
		parts = append(parts, comment)
	}
	if !clean {
		parts = append(parts, markerPrefix+p.Hash)
	}
	if len(parts) == 0 {
		// Clean mode can strip a bookkeeping-only patch down to
		// nothing, and git insists on a nonempty message.
		parts = append(parts, p.Hash)
	}
	return strings.Join(parts, "\n\n") + "\n"
}

// describe renders the identification context used in diagnostics.
func (p *PatchRecord) describe() string {
	kind := "patch"
	if p.isTag() {
		kind = "tag"
	}
	return fmt.Sprintf("%s %q (%s) by %s, %s", kind, p.Name, p.Hash, p.AuthorRaw, p.Date)
}

// Wire format of the darcs changelog document.
type changelogDoc struct {
	XMLName xml.Name       `xml:"changelog"`
	Patches []changelogEnt `xml:"patch"`
}

type changelogEnt struct {
	Author    string `xml:"author,attr"`
	Date      string `xml:"date,attr"`
	LocalDate string `xml:"local_date,attr"`
	Inverted  string `xml:"inverted,attr"`
	Hash      string `xml:"hash,attr"`
	Name      string `xml:"name"`
	Comment   string `xml:"comment"`
}

// parsePatches decodes a darcs changelog document into patch records,
// preserving the document's (creation) order.  Old darcs versions emit
// latin-1 rather than UTF-8; the decoder respects whatever charset the
// XML declaration names.
func parsePatches(fp io.Reader) ([]*PatchRecord, error) {
	decoder := xml.NewDecoder(fp)
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := ianaindex.IANA.Encoding(charset)
		if err != nil || enc == nil {
			return nil, fmt.Errorf("unsupported charset %q in changelog", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}
	var doc changelogDoc
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("malformed darcs changelog: %v", err)
	}
	patches := make([]*PatchRecord, 0, len(doc.Patches))
	for _, entry := range doc.Patches {
		date, err := newPatchDate(entry.Date, entry.LocalDate)
		if err != nil {
			return nil, fmt.Errorf("in patch %q: %v", entry.Hash, err)
		}
		patches = append(patches, &PatchRecord{
			Hash:      entry.Hash,
			AuthorRaw: entry.Author,
			Date:      date,
			Inverted:  strings.EqualFold(strings.TrimSpace(entry.Inverted), "True"),
			Name:      strings.TrimSpace(entry.Name),
			Comment:   strings.Trim(entry.Comment, "\n"),
		})
	}
	return patches, nil
}

// listAuthors returns the distinct raw author strings of a patch list in
// first-appearance order, for -list-authors mode and darcsmapper input.
func listAuthors(patches []*PatchRecord) []string {
	seen := newOrderedStringSet()
	for _, patch := range patches {
		seen.Add(patch.AuthorRaw)
	}
	return seen.Ordered()
}
