package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/edvin/landingzone/internal/backend"
	"github.com/edvin/landingzone/internal/config"
	"github.com/edvin/landingzone/internal/crypto"
	"github.com/edvin/landingzone/internal/model"
	"github.com/edvin/landingzone/internal/naming"
	"github.com/edvin/landingzone/internal/netplan"
	"github.com/edvin/landingzone/internal/state"
)

// Secret names used when a spoke stores its credential in the Key
// Vault spoke.
const (
	SecretDatabaseAdminPassword = "database-admin-password"
	SecretStorageAccountKey     = "storage-account-key"
)

// spokeRun carries the working state of one spoke apply through its
// steps.
type spokeRun struct {
	p      *Provisioner
	m      *config.Manifest
	hub    *model.HubOutputs
	domain string
	common *config.SpokeCommon
	cohort naming.Cohort
	out    *model.SpokeOutputs
	logger zerolog.Logger

	// vaultURI is the Key Vault spoke's vault, resolved up front when
	// this spoke wants to store a credential there.
	vaultURI string
	// pendingSecret carries a credential from the resource step to the
	// secrets step within one run. Never persisted.
	pendingSecret crypto.Sensitive
}

// ApplySpoke converges one spoke. A spoke run loads the hub outputs as
// a read-only snapshot, resumes the name cohort of an earlier partial
// run if one is recorded, and walks the phase sequence; every step is
// safe to re-apply, so recovery from any failure is simply running the
// apply again.
func (p *Provisioner) ApplySpoke(ctx context.Context, m *config.Manifest, domain string) (*model.SpokeOutputs, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	var common *config.SpokeCommon
	switch domain {
	case model.DomainKeyVault:
		if m.Spokes.KeyVault == nil {
			return nil, fmt.Errorf("spokes.keyvault: not configured in manifest")
		}
		common = &m.Spokes.KeyVault.SpokeCommon
	case model.DomainDatabase:
		if m.Spokes.Database == nil {
			return nil, fmt.Errorf("spokes.database: not configured in manifest")
		}
		common = &m.Spokes.Database.SpokeCommon
	case model.DomainStorage:
		if m.Spokes.Storage == nil {
			return nil, fmt.Errorf("spokes.storage: not configured in manifest")
		}
		common = &m.Spokes.Storage.SpokeCommon
	default:
		return nil, fmt.Errorf("unknown spoke domain %q", domain)
	}

	hub, err := p.store.LoadHubOutputs(ctx, m.Environment)
	if err != nil {
		return nil, fmt.Errorf("spoke %s: %w", domain, err)
	}

	// The hub on record may predate this manifest; the spoke's space
	// must not overlap what the hub actually carries.
	disjoint, err := netplan.Disjoint(hub.AddressSpace, common.VNetAddressSpace)
	if err != nil {
		return nil, fmt.Errorf("spoke %s: %w", domain, err)
	}
	if !disjoint {
		return nil, fmt.Errorf("spoke %s: address space %s overlaps the provisioned hub's %s",
			domain, common.VNetAddressSpace, hub.AddressSpace)
	}

	run := &spokeRun{
		p:      p,
		m:      m,
		hub:    hub,
		domain: domain,
		common: common,
		logger: p.logger.With().Str("spoke", domain).Str("environment", m.Environment).Logger(),
	}

	// If this spoke will store a credential, the Key Vault spoke must
	// already be provisioned. Checked before any resource is touched so
	// a misordered rollout fails without side effects.
	if run.wantsVault() {
		kv, err := p.store.LoadSpokeOutputs(ctx, m.Environment, model.DomainKeyVault)
		if err != nil {
			return nil, fmt.Errorf("spoke %s stores a secret but the keyvault spoke is unavailable: %w", domain, err)
		}
		if kv.Phase != model.PhaseProvisioned || kv.VaultURI == "" {
			return nil, fmt.Errorf("spoke %s stores a secret but the keyvault spoke is not provisioned (phase %s)", domain, kv.Phase)
		}
		run.vaultURI = kv.VaultURI
	}

	if err := run.begin(ctx); err != nil {
		return nil, err
	}
	for _, step := range []func(context.Context) error{
		run.network,
		run.peering,
		run.domainResource,
		run.dnsLink,
		run.secrets,
		run.finish,
	} {
		if err := step(ctx); err != nil {
			return nil, fmt.Errorf("spoke %s: %w", domain, err)
		}
	}
	run.logger.Info().Str("suffix", run.cohort.Suffix).Msg("spoke provisioned")
	return run.out, nil
}

func (r *spokeRun) wantsVault() bool {
	switch r.domain {
	case model.DomainDatabase:
		return r.m.Spokes.Database.StorePasswordInKeyVault
	case model.DomainStorage:
		return r.m.Spokes.Storage.StoreKeyInKeyVault
	}
	return false
}

// begin resolves the name cohort and records the run before any
// resource exists. A previous partial run leaves its suffix in the
// state store; resuming it makes the randomized names converge the
// same way the deterministic ones do.
func (r *spokeRun) begin(ctx context.Context) error {
	prev, err := r.p.store.LoadSpokeOutputs(ctx, r.m.Environment, r.domain)
	switch {
	case err == nil && prev.Suffix != "":
		r.cohort = naming.Resume(r.m.Environment, prev.Suffix)
		r.out = prev
		r.logger.Info().Str("suffix", prev.Suffix).Str("phase", prev.Phase).Msg("resuming earlier run")
	case err == nil || errors.Is(err, state.ErrSpokeNotProvisioned):
		r.cohort = naming.NewCohort(r.m.Environment)
		r.out = &model.SpokeOutputs{
			Environment: r.m.Environment,
			Domain:      r.domain,
			Suffix:      r.cohort.Suffix,
			Phase:       model.PhaseUnprovisioned,
		}
	default:
		return fmt.Errorf("spoke %s: %w", r.domain, err)
	}
	r.out.AddressSpace = r.common.VNetAddressSpace
	r.out.Tags = model.MergeTags(baseTags(r.m.Environment), r.m.Tags, r.common.Tags)
	// Persist the suffix before creating anything so an interrupted run
	// is resumable.
	return r.p.store.SaveSpokeOutputs(ctx, r.out)
}

// save records the phase transition.
func (r *spokeRun) save(ctx context.Context, phase string) error {
	r.out.Phase = phase
	if err := r.p.store.SaveSpokeOutputs(ctx, r.out); err != nil {
		return err
	}
	r.logger.Info().Str("phase", phase).Msg("phase recorded")
	return nil
}

func (r *spokeRun) network(ctx context.Context) error {
	rgName := r.cohort.Resource(r.domain + "-rg")
	if _, err := r.p.backend.EnsureResourceGroup(ctx, rgName, r.m.Region, r.out.Tags); err != nil {
		return err
	}
	r.out.ResourceGroup = rgName

	vnetName := r.cohort.Resource(r.domain + "-vnet")
	vnetID, err := r.p.backend.EnsureVirtualNetwork(ctx, rgName, vnetName, r.m.Region, r.common.VNetAddressSpace, r.out.Tags)
	if err != nil {
		return err
	}
	r.out.NetworkID = vnetID
	r.out.NetworkName = vnetName

	if _, err := r.p.backend.EnsureSubnet(ctx, rgName, vnetName, "default", r.common.SubnetPrefix, r.subnetConfig()); err != nil {
		return err
	}
	return r.save(ctx, model.PhaseNetworkCreated)
}

// subnetConfig returns the domain's subnet features. The database
// subnet is delegated to the server; vault and storage subnets carry
// the matching service endpoint.
func (r *spokeRun) subnetConfig() backend.SubnetConfig {
	switch r.domain {
	case model.DomainKeyVault:
		return backend.SubnetConfig{ServiceEndpoints: []string{"Microsoft.KeyVault"}}
	case model.DomainDatabase:
		return backend.SubnetConfig{Delegation: "Microsoft.DBforPostgreSQL/flexibleServers"}
	case model.DomainStorage:
		return backend.SubnetConfig{ServiceEndpoints: []string{"Microsoft.Storage"}}
	}
	return backend.SubnetConfig{}
}

// peering creates both directions of the hub association. Both records
// are re-ensured on every run so a pair can never be left asymmetric
// by a crash between the two calls.
func (r *spokeRun) peering(ctx context.Context) error {
	spokeToHub := naming.SpokeToHub(r.domain)
	id, err := r.p.backend.EnsurePeering(ctx, r.out.ResourceGroup, r.out.NetworkName, spokeToHub, r.hub.NetworkID)
	if err != nil {
		return err
	}
	r.out.Peering.SpokeToHub = model.PeeringLink{Name: spokeToHub, ID: id, RemoteNetwork: r.hub.NetworkID}

	hubToSpoke := naming.HubToSpoke(r.domain)
	id, err = r.p.backend.EnsurePeering(ctx, r.hub.ResourceGroup, r.hub.NetworkName, hubToSpoke, r.out.NetworkID)
	if err != nil {
		return err
	}
	r.out.Peering.HubToSpoke = model.PeeringLink{Name: hubToSpoke, ID: id, RemoteNetwork: r.out.NetworkID}

	return r.save(ctx, model.PhasePeeredToHub)
}

// networkRules is the deny-by-default access posture of the domain
// resource: the spoke's own subnet, the hub shared-services subnet,
// and any explicitly allowed ranges.
func (r *spokeRun) networkRules(ctx context.Context) (backend.NetworkRules, error) {
	subnetID, err := r.p.backend.EnsureSubnet(ctx, r.out.ResourceGroup, r.out.NetworkName, "default", r.common.SubnetPrefix, r.subnetConfig())
	if err != nil {
		return backend.NetworkRules{}, err
	}
	subnets := []string{subnetID}
	if shared := r.hub.SharedServicesSubnetID(); shared != "" {
		subnets = append(subnets, shared)
	}
	allowed, err := netplan.Normalize(r.common.AllowedCIDRs)
	if err != nil {
		return backend.NetworkRules{}, fmt.Errorf("allowed_cidrs: %w", err)
	}
	return backend.NetworkRules{
		PublicAccess: r.common.AllowPublicAccess,
		SubnetIDs:    subnets,
		AllowedCIDRs: allowed,
	}, nil
}

func (r *spokeRun) domainResource(ctx context.Context) error {
	var err error
	switch r.domain {
	case model.DomainKeyVault:
		err = r.keyVaultResource(ctx)
	case model.DomainDatabase:
		err = r.databaseResource(ctx)
	case model.DomainStorage:
		err = r.storageResource(ctx)
	}
	if err != nil {
		return err
	}
	return r.save(ctx, model.PhaseDomainResourceCreated)
}

func (r *spokeRun) keyVaultResource(ctx context.Context) error {
	rules, err := r.networkRules(ctx)
	if err != nil {
		return err
	}
	name := r.cohort.Resource("kv")
	id, uri, err := r.p.backend.EnsureVault(ctx, r.out.ResourceGroup, name, r.m.Region, rules, r.out.Tags)
	if err != nil {
		return err
	}
	r.out.ResourceID = id
	r.out.ResourceName = name
	r.out.VaultURI = uri
	r.out.Connection = model.ConnectionInfo{Endpoint: uri}
	return nil
}

func (r *spokeRun) databaseResource(ctx context.Context) error {
	db := r.m.Spokes.Database

	username := db.AdminUsername
	if username == "" {
		username = "lzadmin"
	}
	password, err := r.databasePassword(ctx)
	if err != nil {
		return err
	}

	subnetID, err := r.p.backend.EnsureSubnet(ctx, r.out.ResourceGroup, r.out.NetworkName, "default", r.common.SubnetPrefix, r.subnetConfig())
	if err != nil {
		return err
	}

	name := r.cohort.Resource("pg")
	id, fqdn, err := r.p.backend.EnsureFlexibleServer(ctx, r.out.ResourceGroup, name, r.m.Region, backend.FlexibleServerConfig{
		AdminUsername:     username,
		AdminPassword:     password,
		DelegatedSubnetID: subnetID,
		PrivateDNSZoneID:  r.hub.DNSZones[model.DomainDatabase].ID,
		Tags:              r.out.Tags,
	})
	if err != nil {
		return err
	}
	if db.DatabaseName != "" {
		if err := r.p.backend.EnsureServerDatabase(ctx, r.out.ResourceGroup, name, db.DatabaseName); err != nil {
			return err
		}
	}

	r.out.ResourceID = id
	r.out.ResourceName = name
	r.out.Connection = model.ConnectionInfo{Endpoint: fqdn, Username: username}
	if db.StorePasswordInKeyVault {
		r.out.Connection.SecretRef = SecretDatabaseAdminPassword
		// Stash for the secrets step; never persisted.
		r.pendingSecret = password
	} else {
		r.out.Connection.Secret = password.Reveal()
	}
	return nil
}

// databasePassword returns the admin credential: the manifest's if
// supplied (already policy-checked by Validate), otherwise the one an
// earlier run established — from the resumed outputs or the vault —
// and only generated when none exists. Converging must never rotate a
// live credential.
func (r *spokeRun) databasePassword(ctx context.Context) (crypto.Sensitive, error) {
	db := r.m.Spokes.Database
	if db.AdminPassword != "" {
		return crypto.NewSensitive(db.AdminPassword), nil
	}
	if r.out.Connection.Secret != "" {
		return crypto.NewSensitive(r.out.Connection.Secret), nil
	}
	if db.StorePasswordInKeyVault {
		stored, found, err := r.p.backend.GetSecret(ctx, r.vaultURI, SecretDatabaseAdminPassword)
		if err != nil {
			return crypto.Sensitive{}, err
		}
		if found && !stored.IsZero() {
			return stored, nil
		}
	}
	generated, err := crypto.GeneratePassword()
	if err != nil {
		return crypto.Sensitive{}, err
	}
	return crypto.NewSensitive(generated), nil
}

func (r *spokeRun) storageResource(ctx context.Context) error {
	st := r.m.Spokes.Storage

	rules, err := r.networkRules(ctx)
	if err != nil {
		return err
	}
	name := r.cohort.Compact("st")
	id, blobEndpoint, err := r.p.backend.EnsureStorageAccount(ctx, r.out.ResourceGroup, name, r.m.Region, rules, r.out.Tags)
	if err != nil {
		return err
	}
	for _, c := range st.Containers {
		if err := r.p.backend.EnsureBlobContainer(ctx, r.out.ResourceGroup, name, c); err != nil {
			return err
		}
	}
	for _, s := range st.Shares {
		if err := r.p.backend.EnsureFileShare(ctx, r.out.ResourceGroup, name, s); err != nil {
			return err
		}
	}
	for _, t := range st.Tables {
		if err := r.p.backend.EnsureTable(ctx, r.out.ResourceGroup, name, t); err != nil {
			return err
		}
	}
	for _, q := range st.Queues {
		if err := r.p.backend.EnsureQueue(ctx, r.out.ResourceGroup, name, q); err != nil {
			return err
		}
	}

	if !st.AllowPublicAccess {
		// Private blob access path. The endpoint name is deterministic,
		// so repeated applies converge on a single endpoint.
		if _, err := r.p.backend.EnsurePrivateEndpoint(ctx, r.out.ResourceGroup,
			naming.PrivateEndpoint(r.domain, "blob"), r.m.Region, rules.SubnetIDs[0], id, "blob", r.out.Tags); err != nil {
			return err
		}
	}

	r.out.ResourceID = id
	r.out.ResourceName = name
	r.out.Connection = model.ConnectionInfo{Endpoint: blobEndpoint}
	if st.StoreKeyInKeyVault {
		r.out.Connection.SecretRef = SecretStorageAccountKey
	}
	return nil
}

// dnsLink joins the spoke network to the hub's private DNS zone for
// this domain, so the resource's private address resolves from inside
// the spoke.
func (r *spokeRun) dnsLink(ctx context.Context) error {
	zone, ok := r.hub.DNSZones[r.domain]
	if !ok {
		return fmt.Errorf("hub outputs carry no DNS zone for domain %s", r.domain)
	}
	if _, err := r.p.backend.EnsureDNSZoneLink(ctx, r.hub.ResourceGroup, zone.Name, naming.DNSLink(r.domain), r.out.NetworkID); err != nil {
		return err
	}
	return r.save(ctx, model.PhaseDNSLinked)
}

// secrets stores this spoke's credential in the Key Vault spoke and
// seeds the vault's declared secret names. Storing is all-or-nothing:
// a failed write fails the run rather than leaving the spoke
// provisioned without its credential on record.
func (r *spokeRun) secrets(ctx context.Context) error {
	switch r.domain {
	case model.DomainKeyVault:
		// Seeding is create-if-absent: once an application has written a
		// value, a converging re-apply must not touch it.
		for _, name := range r.m.Spokes.KeyVault.SeedSecrets {
			_, found, err := r.p.backend.GetSecret(ctx, r.out.VaultURI, name)
			if err != nil {
				return fmt.Errorf("seed secret %s: %w", name, err)
			}
			if found {
				continue
			}
			if err := r.p.backend.SetSecret(ctx, r.out.VaultURI, name, crypto.Sensitive{}); err != nil {
				return fmt.Errorf("seed secret %s: %w", name, err)
			}
		}
	case model.DomainDatabase:
		if r.m.Spokes.Database.StorePasswordInKeyVault {
			if err := r.p.backend.SetSecret(ctx, r.vaultURI, SecretDatabaseAdminPassword, r.pendingSecret); err != nil {
				return fmt.Errorf("store admin password: %w", err)
			}
			r.pendingSecret = crypto.Sensitive{}
		}
	case model.DomainStorage:
		if r.m.Spokes.Storage.StoreKeyInKeyVault {
			key, err := r.p.backend.GetStorageAccountKey(ctx, r.out.ResourceGroup, r.out.ResourceName)
			if err != nil {
				return err
			}
			if err := r.p.backend.SetSecret(ctx, r.vaultURI, SecretStorageAccountKey, key); err != nil {
				return fmt.Errorf("store account key: %w", err)
			}
		}
	}
	return r.save(ctx, model.PhaseSecretsStored)
}

// finish points the resource's diagnostics at the hub log sink and
// records the terminal phase.
func (r *spokeRun) finish(ctx context.Context) error {
	if err := r.p.backend.EnsureDiagnostics(ctx, naming.Diagnostics(r.domain), r.out.ResourceID, r.hub.LogSinkID); err != nil {
		return err
	}
	return r.save(ctx, model.PhaseProvisioned)
}
