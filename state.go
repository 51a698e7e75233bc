package plandomain

import (
	"strings"

	"github.com/joeycumines/go-plandomain/problem"
)

// State is an immutable assignment of values to the domain's fixed,
// ordered fluent-key sequence. The key sequence and index are shared by
// every state of a domain instance; only the value vector differs.
// Transitions always produce a new State, never mutate one in place.
type State struct {
	keys   []string
	index  map[string]int
	values []problem.Value
}

var _ problem.StateView = (*State)(nil)

// Len returns the number of keys (and values) in the state.
func (s *State) Len() int { return len(s.values) }

// Keys returns a copy of the fixed key sequence.
func (s *State) Keys() []string {
	return append([]string(nil), s.keys...)
}

// Value returns the value bound to a grounded key.
func (s *State) Value(key string) (problem.Value, bool) {
	i, ok := s.index[key]
	if !ok {
		return problem.Value{}, false
	}
	return s.values[i], true
}

// At returns the value at position i of the key sequence.
func (s *State) At(i int) problem.Value { return s.values[i] }

// Values returns a copy of the value vector, aligned to Keys.
func (s *State) Values() []problem.Value {
	return append([]problem.Value(nil), s.values...)
}

// Fingerprint returns a canonical identity for the state, suitable for
// duplicate detection by search procedures. Two states of the same domain
// have equal fingerprints iff they assign equal values throughout.
func (s *State) Fingerprint() string {
	var b strings.Builder
	for i, v := range s.values {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(v.Encode())
	}
	return b.String()
}

// String renders the state as {key: value, ...}.
func (s *State) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(s.values[i].String())
	}
	b.WriteByte('}')
	return b.String()
}

// with returns a copy of the state with the given positional updates
// applied. Shared structure (keys, index) is reused.
func (s *State) with(updates []update) *State {
	values := append([]problem.Value(nil), s.values...)
	for _, u := range updates {
		values[u.idx] = u.val
	}
	return &State{keys: s.keys, index: s.index, values: values}
}

type update struct {
	idx int
	val problem.Value
}
