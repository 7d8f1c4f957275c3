// Patch timestamps.
//
// Darcs records two timestamps per patch: a compressed UTC stamp and a
// free-form local-time string whose timezone *name* is unreliable (it is
// whatever the recording machine's C library printed).  The difference
// between the two wall clocks is the only trustworthy zone information,
// so we derive the offset arithmetically and ignore the name.
//
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"fmt"
	"time"
)

// darcsUTCFormat is the compressed stamp in the date= attribute,
// e.g. "20061002142328", always UTC.
const darcsUTCFormat = "20060102150405"

// Layouts tried against the local_date= attribute.  UnixDate covers the
// common ctime-with-zone form; ANSIC covers older darcs versions that
// omitted the zone name.
var localDateLayouts = []string{
	time.UnixDate,
	time.ANSIC,
	time.RubyDate,
}

// PatchDate is a patch's UTC timestamp plus the zone offset reconstructed
// from its local-time string.
type PatchDate struct {
	utc    time.Time
	offset time.Duration
}

// newPatchDate parses the two darcs date attributes.  An unparseable or
// empty local string silently yields a zero offset (same as UTC); a
// malformed UTC stamp is an error since that field is machine-generated.
func newPatchDate(utcText string, localText string) (PatchDate, error) {
	var d PatchDate
	utc, err := time.ParseInLocation(darcsUTCFormat, utcText, time.UTC)
	if err != nil {
		return d, fmt.Errorf("unparseable darcs date %q: %v", utcText, err)
	}
	d.utc = utc
	for _, layout := range localDateLayouts {
		trial, err2 := time.Parse(layout, localText)
		if err2 != nil {
			continue
		}
		// Reinterpret the parsed wall clock as UTC.  Go attaches a
		// zero-offset fake zone to unknown abbreviations like CEST,
		// but we must not depend on what it did or didn't recognize.
		wallclock := time.Date(trial.Year(), trial.Month(), trial.Day(),
			trial.Hour(), trial.Minute(), trial.Second(), 0, time.UTC)
		d.offset = wallclock.Sub(d.utc).Truncate(time.Minute)
		break
	}
	return d, nil
}

// isZero tells us if this is an uninitialized date object.
func (d PatchDate) isZero() bool {
	return d.utc.IsZero()
}

// local is the patch's wall-clock time in its reconstructed zone.
func (d PatchDate) local() time.Time {
	return d.utc.Add(d.offset)
}

// gitDate renders the date in the form git accepts through
// GIT_AUTHOR_DATE/GIT_COMMITTER_DATE: "2006-10-02 16:23:28 +0200".
func (d PatchDate) gitDate() string {
	minutes := int(d.offset.Minutes())
	sign := "+"
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	return fmt.Sprintf("%s %s%02d%02d",
		d.local().Format("2006-01-02 15:04:05"),
		sign, minutes/60, minutes%60)
}

func (d PatchDate) String() string {
	return d.gitDate()
}

// Before tests time ordering of PatchDate objects.
func (d PatchDate) Before(other PatchDate) bool {
	return d.utc.Before(other.utc)
}
