package fsm

import (
	"errors"
	"testing"

	"provisioncore/pkg/domain"
)

func TestCatalogueAddIdempotentForIdenticalDefinition(t *testing.T) {
	c, err := NewCatalogue(MustNew("host", "requested", "up"))
	if err != nil {
		t.Fatalf("NewCatalogue: %v", err)
	}
	if err := c.Add(MustNew("host", "requested", "up")); err != nil {
		t.Fatalf("re-adding identical definition: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d after duplicate add, want 1", c.Len())
	}
}

func TestCatalogueAddRejectsConflictingDefinition(t *testing.T) {
	c, err := NewCatalogue(MustNew("host", "requested", "up"))
	if err != nil {
		t.Fatalf("NewCatalogue: %v", err)
	}
	err = c.Add(MustNew("host", "requested", "down"))
	if err == nil {
		t.Fatalf("conflicting redefinition accepted")
	}
	var ce *domain.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("conflict error is %T, want *domain.ConfigError", err)
	}
}

func TestCatalogueRejectsZeroMachine(t *testing.T) {
	c, _ := NewCatalogue()
	if err := c.Add(Machine{}); err == nil {
		t.Fatalf("zero-valued machine accepted")
	}
}

func TestCatalogueLookup(t *testing.T) {
	host := MustNew("host", "requested", "up")
	c, err := NewCatalogue(host, MustNew("credential", "untrusted", "trusted"))
	if err != nil {
		t.Fatalf("NewCatalogue: %v", err)
	}
	got, ok := c.Lookup("host")
	if !ok || !got.Equal(host) {
		t.Fatalf("Lookup(host) = %+v, %v", got, ok)
	}
	if _, ok := c.Lookup("absent"); ok {
		t.Fatalf("Lookup(absent) found a machine")
	}
}

func TestCatalogueRefsPreserveOrder(t *testing.T) {
	c, err := NewCatalogue(
		MustNew("host", "requested", "up"),
		MustNew("credential", "untrusted"),
	)
	if err != nil {
		t.Fatalf("NewCatalogue: %v", err)
	}
	want := []domain.StateRef{
		{Machine: "host", Name: "requested"},
		{Machine: "host", Name: "up"},
		{Machine: "credential", Name: "untrusted"},
	}
	got := c.Refs()
	if len(got) != len(want) {
		t.Fatalf("Refs() returned %d refs, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Refs()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestBuiltinCatalogue(t *testing.T) {
	c := Builtin()
	for _, name := range []string{
		"access", "appliance", "host", "monitored",
		"membership", "registration", "subscription", "credential",
	} {
		if _, ok := c.Lookup(name); !ok {
			t.Fatalf("builtin catalogue missing machine %q", name)
		}
	}
	if got := Host.Initial(); got.Name != "requested" {
		t.Fatalf("host initial state = %q, want requested", got.Name)
	}
}
