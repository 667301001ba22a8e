package discovery

import (
	"errors"
	"testing"

	"provisioncore/pkg/fsm"
)

type failing struct{ name string }

func (f failing) Name() string { return f.name }

func (f failing) Machines() ([]fsm.Machine, error) {
	return nil, errors.New("load failed")
}

func TestDiscoverSkipsFailingContributor(t *testing.T) {
	good := Static{
		ContributorName: "burst",
		Defined:         []fsm.Machine{fsm.MustNew("host", "requested", "up")},
	}
	result := Discover(nil, failing{name: "broken"}, good)

	if got := result.Skipped(); len(got) != 1 || got[0] != "broken" {
		t.Fatalf("Skipped() = %v, want [broken]", got)
	}
	if _, ok := result.Catalogue().Lookup("host"); !ok {
		t.Fatalf("surviving contributor's machine missing from catalogue")
	}
}

func TestDiscoverSkipsConflictingContributorWholly(t *testing.T) {
	first := Static{
		ContributorName: "burst",
		Defined:         []fsm.Machine{fsm.MustNew("host", "requested", "up")},
	}
	second := Static{
		ContributorName: "rival",
		Defined: []fsm.Machine{
			fsm.MustNew("credential", "untrusted", "trusted"),
			fsm.MustNew("host", "requested", "down"),
		},
	}
	result := Discover(nil, first, second)

	if got := result.Skipped(); len(got) != 1 || got[0] != "rival" {
		t.Fatalf("Skipped() = %v, want [rival]", got)
	}
	// The conflicting contributor must leave no partial trace.
	if _, ok := result.Catalogue().Lookup("credential"); ok {
		t.Fatalf("machine from skipped contributor leaked into catalogue")
	}
	m, ok := result.Catalogue().Lookup("host")
	if !ok || !m.Equal(first.Defined[0]) {
		t.Fatalf("first contributor's host machine not preserved")
	}
}

func TestDiscoverAcceptsIdenticalRedefinition(t *testing.T) {
	host := fsm.MustNew("host", "requested", "up")
	a := Static{ContributorName: "a", Defined: []fsm.Machine{host}}
	b := Static{ContributorName: "b", Defined: []fsm.Machine{host}}
	result := Discover(nil, a, b)

	if got := result.Skipped(); len(got) != 0 {
		t.Fatalf("Skipped() = %v, want none", got)
	}
	if result.Catalogue().Len() != 1 {
		t.Fatalf("catalogue has %d machines, want 1", result.Catalogue().Len())
	}
}

func TestDiscoverParsesSettings(t *testing.T) {
	c := Static{
		ContributorName: "burst",
		Defined:         []fsm.Machine{fsm.MustNew("host", "requested")},
		SettingsYAML:    []byte("endpoint: https://cloud.example.com\nregion: eu-west\n"),
		BundlePaths:     []string{"/etc/pki/burst.pem"},
	}
	result := Discover(nil, c)

	settings := result.Settings()["burst"]
	if settings["endpoint"] != "https://cloud.example.com" || settings["region"] != "eu-west" {
		t.Fatalf("settings = %v", settings)
	}
	if got := result.Bundles(); len(got) != 1 || got[0] != "/etc/pki/burst.pem" {
		t.Fatalf("Bundles() = %v", got)
	}
}

func TestDiscoverSkipsContributorWithBadSettings(t *testing.T) {
	c := Static{
		ContributorName: "burst",
		Defined:         []fsm.Machine{fsm.MustNew("host", "requested")},
		SettingsYAML:    []byte("{not yaml"),
	}
	result := Discover(nil, c)

	if got := result.Skipped(); len(got) != 1 {
		t.Fatalf("Skipped() = %v, want the bad-settings contributor", got)
	}
	if _, ok := result.Catalogue().Lookup("host"); ok {
		t.Fatalf("machines accepted despite settings failure")
	}
}
