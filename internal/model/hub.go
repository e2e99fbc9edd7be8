package model

// Hub subnet roles. Subnet names on the platform are fixed per role;
// callers choose only the prefixes.
const (
	SubnetGateway        = "gateway"
	SubnetFirewall       = "firewall"
	SubnetBastion        = "bastion"
	SubnetSharedServices = "shared-services"
)

// Spoke domains supported by the hub. The hub pre-registers one
// private DNS zone per domain.
const (
	DomainKeyVault = "keyvault"
	DomainDatabase = "database"
	DomainStorage  = "storage"
)

// PrivateDNSZoneNames maps each spoke domain to the private DNS zone
// the hub registers for it.
var PrivateDNSZoneNames = map[string]string{
	DomainKeyVault: "privatelink.vaultcore.azure.net",
	DomainDatabase: "privatelink.postgres.database.azure.com",
	DomainStorage:  "privatelink.blob.core.windows.net",
}

// DNSZoneRef identifies one of the hub's pre-registered private DNS
// zones.
type DNSZoneRef struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// HubOutputs is the output bundle the hub publishes after a successful
// apply. Spokes treat it as a read-only snapshot; it is the sole
// interface between hub and spokes.
type HubOutputs struct {
	Environment   string                `json:"environment"`
	Region        string                `json:"region"`
	ResourceGroup string                `json:"resource_group"`
	NetworkID     string                `json:"network_id"`
	NetworkName   string                `json:"network_name"`
	AddressSpace  string                `json:"address_space"`
	SubnetIDs     map[string]string     `json:"subnet_ids"`
	DNSZones      map[string]DNSZoneRef `json:"dns_zones"`
	LogSinkID     string                `json:"log_sink_id"`
	Tags          TagSet                `json:"tags"`
}

// SharedServicesSubnetID returns the subnet ID spokes must admit for
// management access, or "" if the hub was built without one.
func (h *HubOutputs) SharedServicesSubnetID() string {
	return h.SubnetIDs[SubnetSharedServices]
}
