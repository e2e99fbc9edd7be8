package model

// Spoke provisioning phases, in order. A run resumes from the last
// recorded phase; every step is safe to re-apply.
const (
	PhaseUnprovisioned         = "unprovisioned"
	PhaseNetworkCreated        = "network_created"
	PhasePeeredToHub           = "peered_to_hub"
	PhaseDomainResourceCreated = "domain_resource_created"
	PhaseDNSLinked             = "dns_linked"
	PhaseSecretsStored         = "secrets_stored"
	PhaseProvisioned           = "provisioned"
)
