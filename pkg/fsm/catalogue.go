package fsm

import (
	"slices"

	"provisioncore/pkg/domain"
)

// Catalogue is the ordered, process-wide collection of machine definitions.
// Machine names are unique within it. A catalogue is built once at start-up
// and injected into the components that need it; it is not safe for
// concurrent mutation.
type Catalogue struct {
	machines []Machine
	index    map[string]int
}

// NewCatalogue builds a catalogue from the given machines. It fails on the
// first conflicting definition.
func NewCatalogue(machines ...Machine) (*Catalogue, error) {
	c := &Catalogue{index: make(map[string]int)}
	for _, m := range machines {
		if err := c.Add(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add registers a machine definition. Re-adding an identical definition is
// a no-op; a different definition under an existing name is a configuration
// error.
func (c *Catalogue) Add(m Machine) error {
	if m.name == "" {
		return domain.Configf("machine is zero-valued")
	}
	if i, ok := c.index[m.name]; ok {
		if c.machines[i].Equal(m) {
			return nil
		}
		return domain.Configf("machine %q redefined with different states", m.name)
	}
	c.index[m.name] = len(c.machines)
	c.machines = append(c.machines, m)
	return nil
}

// Machines returns the definitions in registration order.
func (c *Catalogue) Machines() []Machine {
	return slices.Clone(c.machines)
}

// Lookup returns the machine registered under name.
func (c *Catalogue) Lookup(name string) (Machine, bool) {
	i, ok := c.index[name]
	if !ok {
		return Machine{}, false
	}
	return c.machines[i], true
}

// Len returns the number of registered machines.
func (c *Catalogue) Len() int { return len(c.machines) }

// Refs returns every (machine, name) pair in the catalogue, in machine
// registration order then value order. This is the seeding work list.
func (c *Catalogue) Refs() []domain.StateRef {
	var refs []domain.StateRef
	for _, m := range c.machines {
		for _, v := range m.values {
			refs = append(refs, domain.StateRef{Machine: m.name, Name: v})
		}
	}
	return refs
}
