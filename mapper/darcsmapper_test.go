package main

import (
	"testing"
)

func assertEqual(t *testing.T, a string, b string) {
	t.Helper()
	if a != b {
		t.Fatalf("assertEqual: expected %q == %q", a, b)
	}
}

func TestIncomplete(t *testing.T) {
	if !incomplete("fred") {
		t.Error("bare name should be incomplete")
	}
	if incomplete("Fred Foonly <fred@example.com>") {
		t.Error("full identity should be complete")
	}
}

func TestStub(t *testing.T) {
	om := make(OverrideMap)
	om.Stub("  jdoe  ")
	om.Stub("")
	om.Stub("   ")
	assertEqual(t, om["jdoe"], "jdoe")
	if len(om) != 1 {
		t.Errorf("expected 1 entry, saw %d", len(om))
	}
	// Existing entries survive restubbing.
	om["jdoe"] = "Jane Doe <jane@example.com>"
	om.Stub("jdoe")
	assertEqual(t, om["jdoe"], "Jane Doe <jane@example.com>")
}

func TestSuffix(t *testing.T) {
	om := OverrideMap{
		"jdoe":                      "Jane Doe",
		"bob <bob@old.example.com>": "Bob Dobbs <bob@example.com>",
	}
	om.Suffix("example.org")
	assertEqual(t, om["jdoe"], "Jane Doe <jane@example.org>")
	assertEqual(t, om["bob <bob@old.example.com>"], "Bob Dobbs <bob@example.com>")
}

func TestMine(t *testing.T) {
	om := OverrideMap{
		"jane@example.com": "jane",
		"bob":              "Bob Dobbs <bob@example.com>",
	}
	om.Mine("Jane Doe <jane@lists.example.net>")
	assertEqual(t, om["jane@example.com"], "Jane Doe <jane@lists.example.net>")
	// Complete entries are left alone.
	om.Mine("Robert Dobbs <bob@lists.example.net>")
	assertEqual(t, om["bob"], "Bob Dobbs <bob@example.com>")
	// Nameless addresses contribute nothing.
	om.Mine("carol@example.com")
	om.Mine("not an address")
	if len(om) != 2 {
		t.Errorf("expected 2 entries, saw %d", len(om))
	}
}
