// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"fmt"
	"strings"

	orderedset "github.com/emirpasic/gods/sets/linkedhashset"
)

// orderedStringSet is a set of strings with deterministic, insertion-order
// iteration. Pull and status enumerations depend on that ordering so that
// staged files and diagnostics come out in the order git reported them.
type orderedStringSet struct {
	set *orderedset.Set
}

func newOrderedStringSet(elements ...string) orderedStringSet {
	s := orderedset.New()
	for _, element := range elements {
		s.Add(element)
	}
	return orderedStringSet{s}
}

func (s orderedStringSet) Add(element string) {
	s.set.Add(element)
}

func (s orderedStringSet) Remove(element string) {
	s.set.Remove(element)
}

func (s orderedStringSet) Contains(element string) bool {
	return s.set.Contains(element)
}

func (s orderedStringSet) Len() int {
	return s.set.Size()
}

func (s orderedStringSet) Empty() bool {
	return s.set.Size() == 0
}

func (s orderedStringSet) Ordered() []string {
	out := make([]string, 0, s.set.Size())
	it := s.set.Iterator()
	for it.Next() {
		out = append(out, it.Value().(string))
	}
	return out
}

func (s orderedStringSet) Union(other orderedStringSet) orderedStringSet {
	out := newOrderedStringSet(s.Ordered()...)
	for _, element := range other.Ordered() {
		out.Add(element)
	}
	return out
}

func (s orderedStringSet) Subtract(other orderedStringSet) orderedStringSet {
	out := newOrderedStringSet()
	for _, element := range s.Ordered() {
		if !other.Contains(element) {
			out.Add(element)
		}
	}
	return out
}

func (s orderedStringSet) Equal(other orderedStringSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, element := range s.Ordered() {
		if !other.Contains(element) {
			return false
		}
	}
	return true
}

func (s orderedStringSet) String() string {
	quoted := make([]string, 0, s.Len())
	for _, element := range s.Ordered() {
		quoted = append(quoted, fmt.Sprintf("%q", element))
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
