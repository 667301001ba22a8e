package domain

import "time"

// ResourceKind discriminates the concrete variant of a resource record.
type ResourceKind string

// Supported resource kinds, one per variant table.
const (
	KindIPAddress        ResourceKind = "ip_address"
	KindNode             ResourceKind = "node"
	KindLabel            ResourceKind = "label"
	KindDirectory        ResourceKind = "directory"
	KindEmailAddress     ResourceKind = "email_address"
	KindPublicKey        ResourceKind = "public_key"
	KindTimeInterval     ResourceKind = "time_interval"
	KindOSImage          ResourceKind = "os_image"
	KindSDN              ResourceKind = "software_defined_network"
	KindCatalogueChoice  ResourceKind = "catalogue_choice"
	KindBcryptedPassword ResourceKind = "bcrypted_password"
)

// ResourceCore holds the fields shared by every resource variant: a link
// back to the owning touch and an optional provider reference. A resource is
// a fact established at a particular event, not a mutable attribute of the
// artifact; the current value of a given kind is resolved from the most
// recent touch carrying one.
type ResourceCore struct {
	ID         int64  `json:"id"`
	TouchID    int64  `json:"touch_id"`
	ProviderID *int64 `json:"provider_id,omitempty"`
}

// Resource is implemented by every resource variant.
type Resource interface {
	ResourceKind() ResourceKind
	Core() *ResourceCore
}

// IPAddress records an address assignment. Values are unique so that an
// address can only ever be attached to one artifact at a time.
type IPAddress struct {
	ResourceCore
	Value string `json:"value"`
}

// Node records the provider-side node backing an artifact.
type Node struct {
	ResourceCore
	Name string  `json:"name"`
	URI  *string `json:"uri,omitempty"`
}

// Label records a user-supplied name and description.
type Label struct {
	ResourceCore
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// Directory records a mounted storage path granted to a membership.
type Directory struct {
	ResourceCore
	Description string `json:"description"`
	MountPath   string `json:"mount_path"`
}

// EmailAddress records a contact address established at an event.
type EmailAddress struct {
	ResourceCore
	Value string `json:"value"`
}

// PublicKey records an SSH public key supplied by a user.
type PublicKey struct {
	ResourceCore
	Value string `json:"value"`
}

// TimeInterval records a deadline, e.g. the expiry of an invitation.
type TimeInterval struct {
	ResourceCore
	End time.Time `json:"end"`
}

// OSImage records the operating system image chosen for an artifact.
type OSImage struct {
	ResourceCore
	Name string `json:"name"`
}

// SoftwareDefinedNetwork records the network an artifact was placed on.
type SoftwareDefinedNetwork struct {
	ResourceCore
	Name string `json:"name"`
}

// CatalogueChoice snapshots the catalogue item selected for an appliance.
type CatalogueChoice struct {
	ResourceCore
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Logo        *string `json:"logo,omitempty"`
	NATRouted   bool    `json:"natrouted"`
}

// BcryptedPassword records a password hash captured during registration.
// Hashing itself happens upstream; the ledger only stores the digest.
type BcryptedPassword struct {
	ResourceCore
	Value string `json:"value"`
}

// ResourceKind implementations for each variant.

func (IPAddress) ResourceKind() ResourceKind              { return KindIPAddress }
func (Node) ResourceKind() ResourceKind                   { return KindNode }
func (Label) ResourceKind() ResourceKind                  { return KindLabel }
func (Directory) ResourceKind() ResourceKind              { return KindDirectory }
func (EmailAddress) ResourceKind() ResourceKind           { return KindEmailAddress }
func (PublicKey) ResourceKind() ResourceKind              { return KindPublicKey }
func (TimeInterval) ResourceKind() ResourceKind           { return KindTimeInterval }
func (OSImage) ResourceKind() ResourceKind                { return KindOSImage }
func (SoftwareDefinedNetwork) ResourceKind() ResourceKind { return KindSDN }
func (CatalogueChoice) ResourceKind() ResourceKind        { return KindCatalogueChoice }
func (BcryptedPassword) ResourceKind() ResourceKind       { return KindBcryptedPassword }

// Core returns the shared portion of the resource record.
func (r *ResourceCore) Core() *ResourceCore { return r }
