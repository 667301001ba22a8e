package fsm

// Machine definitions shipped with the platform. External components may
// contribute further machines through discovery; these cover the artifact
// kinds the core itself knows about.
var (
	// Access governs a user's entitlement to an organisation's resources.
	Access = MustNew("access",
		"created", "invited", "accepted", "active", "expired", "withdrawn")

	// Appliance tracks a catalogue-templated virtual machine.
	Appliance = MustNew("appliance",
		"requested", "configuring", "pre_provision", "provisioning",
		"pre_operational", "operational", "running", "pre_check",
		"pre_start", "pre_stop", "stopped", "pre_delete", "deleted")

	// Host tracks a directly-requested virtual machine.
	Host = MustNew("host",
		"requested", "scheduling", "unknown", "up", "deleting", "down")

	// Monitored tracks the liveness of an observed artifact.
	Monitored = MustNew("monitored", "up", "down")

	// Membership tracks a user's role within an organisation.
	Membership = MustNew("membership",
		"created", "invited", "accepted", "active", "expired", "withdrawn")

	// Registration tracks account onboarding through the directory steps.
	Registration = MustNew("registration",
		"pre_registration_person",
		"pre_registration_inetorgperson",
		"pre_registration_inetorgperson_cn",
		"pre_user_inetorgperson_dn",
		"pre_user_posixaccount",
		"user_posixaccount",
		"pre_user_ldappublickey",
		"valid", "active", "expired", "withdrawn")

	// Subscription tracks an organisation's account with a provider.
	Subscription = MustNew("subscription",
		"maintenance", "unchecked", "inactive", "active")

	// Credential tracks the trust status of a stored credential.
	Credential = MustNew("credential", "untrusted", "trusted", "expired")
)

// Builtin returns a catalogue of the platform's own machines.
func Builtin() *Catalogue {
	c, err := NewCatalogue(
		Access, Appliance, Host, Monitored,
		Membership, Registration, Subscription, Credential)
	if err != nil {
		panic(err) // definitions above are static and distinct
	}
	return c
}
