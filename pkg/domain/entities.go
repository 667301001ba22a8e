// Package domain defines the persistent entities of the provisioning ledger:
// states, actors, artifacts, touches and the resources attached to them.
package domain

import "time"

// Model is the schema version stamped onto artifacts at creation time. It
// travels with the record so consumers can recognise rows written by older
// deployments.
const Model = "0.1.0"

// ActorKind discriminates the concrete variant of an actor record.
type ActorKind string

// Supported actor kinds.
const (
	// KindUser identifies a human account.
	KindUser ActorKind = "user"
	// KindComponent identifies an autonomous platform component.
	KindComponent ActorKind = "component"
)

// ArtifactKind discriminates the concrete variant of an artifact record.
type ArtifactKind string

// Supported artifact kinds, one per tracked lifecycle.
const (
	KindHost         ArtifactKind = "host"
	KindAppliance    ArtifactKind = "appliance"
	KindMembership   ArtifactKind = "membership"
	KindRegistration ArtifactKind = "registration"
	KindSubscription ArtifactKind = "subscription"
)

// ProviderKind discriminates the concrete variant of a provider record.
type ProviderKind string

// Supported provider kinds.
const (
	// KindProvider identifies a plain external service account.
	KindProvider ProviderKind = "provider"
	// KindArchive identifies a data archive provider.
	KindArchive ProviderKind = "archive"
)

// State is one legal value of one named state machine. The (Machine, Name)
// pair is unique across the whole table; the same name may recur under
// different machines. Rows are seeded once per machine and never updated.
type State struct {
	ID      int64  `json:"id"`
	Machine string `json:"machine"`
	Name    string `json:"name"`
}

// StateRef names a seeded state row without knowing its surrogate key.
type StateRef struct {
	Machine string `json:"machine"`
	Name    string `json:"name"`
}

// Actor holds the fields shared by every entity capable of causing a state
// change. Handle is optional but unique when present.
type Actor struct {
	ID     int64     `json:"id"`
	UUID   string    `json:"uuid"`
	Handle *string   `json:"handle,omitempty"`
	Kind   ActorKind `json:"kind"`
}

// User is a human actor.
type User struct {
	Actor
	Surname *string `json:"surname,omitempty"`
}

// Component is an autonomous actor such as a controller process.
type Component struct {
	Actor
}

// Artifact holds the fields shared by every entity whose lifecycle is
// tracked through the touch ledger.
type Artifact struct {
	ID    int64        `json:"id"`
	UUID  string       `json:"uuid"`
	Model string       `json:"model"`
	Kind  ArtifactKind `json:"kind"`
}

// Host is a provisioned virtual machine requested by name.
type Host struct {
	Artifact
	OrganisationID int64  `json:"organisation_id"`
	Name           string `json:"name"`
}

// Appliance is a catalogue-templated virtual machine.
type Appliance struct {
	Artifact
	OrganisationID int64 `json:"organisation_id"`
}

// Membership records a user's role within an organisation.
type Membership struct {
	Artifact
	OrganisationID int64  `json:"organisation_id"`
	Role           string `json:"role"`
}

// Registration tracks the onboarding lifecycle of a user account.
type Registration struct {
	Artifact
}

// Subscription binds an organisation to a provider account.
type Subscription struct {
	Artifact
	OrganisationID int64 `json:"organisation_id"`
	ProviderID     int64 `json:"provider_id"`
}

// Organisation is a tenancy grouping. Its name is unique platform-wide and
// deleting it cascades to its subscriptions.
type Organisation struct {
	ID   int64  `json:"id"`
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// Provider is an external service account that artifacts and resources may
// reference.
type Provider struct {
	ID   int64        `json:"id"`
	UUID string       `json:"uuid"`
	Name string       `json:"name"`
	Kind ProviderKind `json:"kind"`
}

// Archive is a data-archive provider variant.
type Archive struct {
	Provider
}

// CatalogueItem is a deployable template offered to an organisation's users.
// Names are unique across the whole catalogue.
type CatalogueItem struct {
	ID             int64   `json:"id"`
	UUID           string  `json:"uuid"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	Note           *string `json:"note,omitempty"`
	Logo           *string `json:"logo,omitempty"`
	OrganisationID int64   `json:"organisation_id"`
}

// Touch is one immutable event in the append-only ledger: an actor put an
// artifact into a state at a point in time. Timestamps are not required to
// increase in insertion order; current-state queries sort explicitly.
type Touch struct {
	ID         int64     `json:"id"`
	ArtifactID int64     `json:"artifact_id"`
	ActorID    int64     `json:"actor_id"`
	StateID    int64     `json:"state_id"`
	At         time.Time `json:"at"`
}

// TouchRecord is a hydrated ledger entry as returned by history queries.
type TouchRecord struct {
	Touch
	State State `json:"state"`
	Actor Actor `json:"actor"`
}
