// Package fsm declares named state machines: ordered, immutable lists of the
// legal state names for one kind of artifact. Definitions are process-wide
// configuration; the store seeds one state row per (machine, value) pair.
//
// No transition graph is enforced. A machine guarantees membership of a name
// in its value set, nothing more; legality of a particular transition is the
// calling component's concern.
package fsm

import (
	"slices"

	"provisioncore/pkg/domain"
)

// Machine is a named, ordered list of distinct state names. The zero value
// is invalid; obtain instances from New.
type Machine struct {
	name   string
	values []string
}

// New validates and builds a machine definition. The name and value list
// must be non-empty and the values distinct; violations are configuration
// errors surfaced at process start.
func New(name string, values ...string) (Machine, error) {
	if name == "" {
		return Machine{}, domain.Configf("machine name is empty")
	}
	if len(values) == 0 {
		return Machine{}, domain.Configf("machine %q has no states", name)
	}
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			return Machine{}, domain.Configf("machine %q has an empty state name", name)
		}
		if _, dup := seen[v]; dup {
			return Machine{}, domain.Configf("machine %q repeats state %q", name, v)
		}
		seen[v] = struct{}{}
	}
	return Machine{name: name, values: slices.Clone(values)}, nil
}

// MustNew is New for statically-known definitions; it panics on error.
func MustNew(name string, values ...string) Machine {
	m, err := New(name, values...)
	if err != nil {
		panic(err)
	}
	return m
}

// Name returns the machine's catalogue name.
func (m Machine) Name() string { return m.name }

// Values returns the ordered state names. The slice is a copy.
func (m Machine) Values() []string { return slices.Clone(m.values) }

// Initial returns the first value in the list. It is the default used by
// convenience constructors, not an enforced starting state.
func (m Machine) Initial() domain.StateRef {
	return domain.StateRef{Machine: m.name, Name: m.values[0]}
}

// Contains reports whether name is a legal value of the machine.
func (m Machine) Contains(name string) bool {
	return slices.Contains(m.values, name)
}

// Ref names one of the machine's states for ledger operations. The value is
// not checked here; the store resolves it against seeded rows and fails with
// a referential error if absent.
func (m Machine) Ref(name string) domain.StateRef {
	return domain.StateRef{Machine: m.name, Name: name}
}

// Equal reports whether two definitions agree on name and ordered values.
func (m Machine) Equal(other Machine) bool {
	return m.name == other.name && slices.Equal(m.values, other.values)
}
