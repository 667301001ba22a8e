// Package discovery aggregates the configuration contributed by
// independently-deployed components at process start: state machine
// definitions, settings bundles and certificate bundle paths.
//
// Contributors register explicitly; there is no package-manager scan. A
// contributor that fails to load is logged and skipped so that one broken
// component cannot keep the rest of the platform from starting.
package discovery

import (
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"provisioncore/pkg/fsm"
)

// Contributor supplies state machine definitions for one component.
type Contributor interface {
	// Name identifies the contributor in logs and settings.
	Name() string
	// Machines returns the contributor's state machine definitions.
	Machines() ([]fsm.Machine, error)
}

// SettingsContributor optionally supplies a YAML settings bundle.
type SettingsContributor interface {
	Settings() ([]byte, error)
}

// BundleContributor optionally supplies certificate bundle paths.
type BundleContributor interface {
	Bundles() []string
}

// Result is the aggregated configuration of one discovery pass.
type Result struct {
	catalogue *fsm.Catalogue
	settings  map[string]map[string]string
	bundles   []string
	skipped   []string
}

// Catalogue returns the machine definitions accepted during discovery.
func (r *Result) Catalogue() *fsm.Catalogue { return r.catalogue }

// Settings returns the parsed settings bundles keyed by contributor name.
func (r *Result) Settings() map[string]map[string]string { return r.settings }

// Bundles returns every contributed certificate bundle path.
func (r *Result) Bundles() []string { return r.bundles }

// Skipped returns the names of contributors excluded by load failures.
func (r *Result) Skipped() []string { return r.skipped }

// Discover loads every contributor in order. Contributors failing to load,
// or contributing a machine that conflicts with one already registered, are
// excluded as a whole and reported in Skipped; discovery itself never fails.
func Discover(logger *zap.Logger, contributors ...Contributor) *Result {
	if logger == nil {
		logger = zap.NewNop()
	}
	catalogue, _ := fsm.NewCatalogue()
	result := &Result{
		catalogue: catalogue,
		settings:  make(map[string]map[string]string),
	}
	for _, c := range contributors {
		if err := load(result, c); err != nil {
			logger.Warn("contributor skipped",
				zap.String("contributor", c.Name()),
				zap.Error(err))
			result.skipped = append(result.skipped, c.Name())
			continue
		}
		logger.Debug("contributor loaded", zap.String("contributor", c.Name()))
	}
	return result
}

func load(result *Result, c Contributor) error {
	machines, err := c.Machines()
	if err != nil {
		return err
	}
	// Validate the whole contribution before touching shared state so a
	// partially-bad contributor leaves no trace.
	staged, err := fsm.NewCatalogue(machines...)
	if err != nil {
		return err
	}
	for _, m := range staged.Machines() {
		if existing, ok := result.catalogue.Lookup(m.Name()); ok && !existing.Equal(m) {
			return errConflict(m.Name())
		}
	}

	var settings map[string]string
	if sc, ok := c.(SettingsContributor); ok {
		raw, err := sc.Settings()
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(raw, &settings); err != nil {
			return err
		}
	}

	for _, m := range staged.Machines() {
		if err := result.catalogue.Add(m); err != nil {
			return err
		}
	}
	if settings != nil {
		result.settings[c.Name()] = settings
	}
	if bc, ok := c.(BundleContributor); ok {
		result.bundles = append(result.bundles, bc.Bundles()...)
	}
	return nil
}

type errConflict string

func (e errConflict) Error() string {
	return "machine " + string(e) + " conflicts with an earlier contributor"
}

// Static adapts a fixed machine list into a Contributor, for components
// that declare their definitions in code.
type Static struct {
	ContributorName string
	Defined         []fsm.Machine
	SettingsYAML    []byte
	BundlePaths     []string
}

// Name implements Contributor.
func (s Static) Name() string { return s.ContributorName }

// Machines implements Contributor.
func (s Static) Machines() ([]fsm.Machine, error) { return s.Defined, nil }

// Settings implements SettingsContributor when a bundle was declared.
func (s Static) Settings() ([]byte, error) { return s.SettingsYAML, nil }

// Bundles implements BundleContributor.
func (s Static) Bundles() []string { return s.BundlePaths }
