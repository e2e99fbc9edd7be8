package model

// PeeringPair is the bidirectional hub↔spoke association. The platform
// models it as two directional records; both must exist for the spoke
// to be reachable.
type PeeringPair struct {
	SpokeToHub PeeringLink `json:"spoke_to_hub"`
	HubToSpoke PeeringLink `json:"hub_to_spoke"`
}

// PeeringLink is one directional peering record.
type PeeringLink struct {
	Name          string `json:"name"`
	ID            string `json:"id"`
	RemoteNetwork string `json:"remote_network"`
}

// Complete reports whether both directions of the pair exist.
func (p *PeeringPair) Complete() bool {
	return p.SpokeToHub.ID != "" && p.HubToSpoke.ID != ""
}

// ConnectionInfo is the connection descriptor a domain spoke exposes
// for downstream application configuration. Secret holds the raw
// credential only when the spoke was asked not to store it in the Key
// Vault spoke; otherwise SecretRef points at the stored secret.
type ConnectionInfo struct {
	Endpoint  string `json:"endpoint"`
	Username  string `json:"username,omitempty"`
	SecretRef string `json:"secret_ref,omitempty"`
	Secret    string `json:"secret,omitempty"`
}

// SpokeOutputs is the output bundle a spoke persists after a
// successful apply.
type SpokeOutputs struct {
	Environment   string         `json:"environment"`
	Domain        string         `json:"domain"`
	Suffix        string         `json:"suffix"`
	ResourceGroup string         `json:"resource_group"`
	NetworkID     string         `json:"network_id"`
	NetworkName   string         `json:"network_name"`
	AddressSpace  string         `json:"address_space"`
	Peering       PeeringPair    `json:"peering"`
	ResourceID    string         `json:"resource_id"`
	ResourceName  string         `json:"resource_name"`
	VaultURI      string         `json:"vault_uri,omitempty"`
	Connection    ConnectionInfo `json:"connection"`
	Phase         string         `json:"phase"`
	Tags          TagSet         `json:"tags"`
}
