package provision

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/landingzone/internal/backend"
	"github.com/edvin/landingzone/internal/config"
	"github.com/edvin/landingzone/internal/crypto"
	"github.com/edvin/landingzone/internal/model"
	"github.com/edvin/landingzone/internal/state"
)

func testManifest() *config.Manifest {
	return &config.Manifest{
		Environment: "dev",
		Region:      "westeurope",
		Hub: config.HubConfig{
			VNetAddressSpace: "10.0.0.0/16",
			Subnets: map[string]string{
				model.SubnetSharedServices: "10.0.1.0/24",
			},
			LogRetentionDays: 30,
		},
		Spokes: config.SpokesConfig{
			KeyVault: &config.KeyVaultSpoke{
				SpokeCommon: config.SpokeCommon{
					VNetAddressSpace: "10.1.0.0/16",
					SubnetPrefix:     "10.1.1.0/24",
				},
			},
			Database: &config.DatabaseSpoke{
				SpokeCommon: config.SpokeCommon{
					VNetAddressSpace: "10.2.0.0/16",
					SubnetPrefix:     "10.2.1.0/24",
				},
				AdminUsername:           "dbadmin",
				DatabaseName:            "appdb",
				StorePasswordInKeyVault: true,
			},
			Storage: &config.StorageSpoke{
				SpokeCommon: config.SpokeCommon{
					VNetAddressSpace: "10.3.0.0/16",
					SubnetPrefix:     "10.3.1.0/24",
				},
				Containers: []string{"assets"},
			},
		},
	}
}

func newTestProvisioner(t *testing.T) (*Provisioner, *backend.Memory, state.Store) {
	t.Helper()
	mem := backend.NewMemory()
	store := state.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	t.Cleanup(func() { store.Close() })
	return New(mem, store, zerolog.Nop()), mem, store
}

func TestApplyHub_CreatesContract(t *testing.T) {
	p, mem, store := newTestProvisioner(t)
	ctx := context.Background()

	out, err := p.ApplyHub(ctx, testManifest())
	require.NoError(t, err)

	assert.Equal(t, "dev-hub-rg", out.ResourceGroup)
	assert.Equal(t, "dev-hub-vnet", out.NetworkName)
	assert.NotEmpty(t, out.SubnetIDs[model.SubnetSharedServices])
	assert.NotEmpty(t, out.LogSinkID)

	// All three zones exist whether or not spokes are configured.
	assert.Len(t, out.DNSZones, 3)
	assert.Equal(t, 3, mem.Count(backend.KindDNSZone))

	saved, err := store.LoadHubOutputs(ctx, "dev")
	require.NoError(t, err)
	assert.Equal(t, out.NetworkID, saved.NetworkID)
}

func TestApplyHub_ReapplyConverges(t *testing.T) {
	p, mem, _ := newTestProvisioner(t)
	ctx := context.Background()

	_, err := p.ApplyHub(ctx, testManifest())
	require.NoError(t, err)
	_, err = p.ApplyHub(ctx, testManifest())
	require.NoError(t, err)

	assert.Equal(t, 1, mem.Count(backend.KindResourceGroup))
	assert.Equal(t, 1, mem.Count(backend.KindVirtualNetwork))
	rg := mem.Get(backend.KindResourceGroup, "", "dev-hub-rg")
	require.NotNil(t, rg)
	assert.Equal(t, 2, rg.Ensures)
}

func TestApplyHub_FirewallRequiresSubnet(t *testing.T) {
	p, _, _ := newTestProvisioner(t)
	m := testManifest()
	m.Hub.DeployFirewall = true

	_, err := p.ApplyHub(context.Background(), m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hub.subnets.firewall")
}

func TestApplySpoke_RequiresHub(t *testing.T) {
	p, mem, _ := newTestProvisioner(t)

	_, err := p.ApplySpoke(context.Background(), testManifest(), model.DomainKeyVault)
	require.Error(t, err)
	assert.ErrorIs(t, err, state.ErrHubNotProvisioned)
	assert.Equal(t, 0, mem.Count(backend.KindResourceGroup))
}

func TestApplySpoke_RejectsOverlapWithProvisionedHub(t *testing.T) {
	p, mem, _ := newTestProvisioner(t)
	ctx := context.Background()

	_, err := p.ApplyHub(ctx, testManifest())
	require.NoError(t, err)

	// A later manifest revision that moved the hub space but reuses the
	// recorded hub's old range for a spoke. Internally consistent, yet
	// it overlaps what is actually provisioned.
	m := testManifest()
	m.Hub.VNetAddressSpace = "10.9.0.0/16"
	m.Hub.Subnets[model.SubnetSharedServices] = "10.9.1.0/24"
	m.Spokes.KeyVault.VNetAddressSpace = "10.0.0.0/16"
	m.Spokes.KeyVault.SubnetPrefix = "10.0.1.0/24"

	before := mem.Count(backend.KindResourceGroup)
	_, err = p.ApplySpoke(ctx, m, model.DomainKeyVault)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlaps the provisioned hub")
	assert.Equal(t, before, mem.Count(backend.KindResourceGroup))
}

func TestApplySpoke_KeyVault(t *testing.T) {
	p, mem, _ := newTestProvisioner(t)
	ctx := context.Background()
	m := testManifest()
	m.Spokes.KeyVault.SeedSecrets = []string{"api-token"}

	_, err := p.ApplyHub(ctx, m)
	require.NoError(t, err)
	out, err := p.ApplySpoke(ctx, m, model.DomainKeyVault)
	require.NoError(t, err)

	assert.Equal(t, model.PhaseProvisioned, out.Phase)
	assert.Regexp(t, `^dev-kv-[a-z0-9]{10}$`, out.ResourceName)
	assert.NotEmpty(t, out.VaultURI)
	assert.True(t, out.Peering.Complete())

	_, ok := mem.Secret(out.VaultURI, "api-token")
	assert.True(t, ok, "seed secret should exist")
}

func TestApplySpoke_ReapplyPreservesSeededSecret(t *testing.T) {
	p, mem, _ := newTestProvisioner(t)
	ctx := context.Background()
	m := testManifest()
	m.Spokes.KeyVault.SeedSecrets = []string{"api-token"}

	_, err := p.ApplyHub(ctx, m)
	require.NoError(t, err)
	out, err := p.ApplySpoke(ctx, m, model.DomainKeyVault)
	require.NoError(t, err)

	// An application fills in the seeded secret between runs.
	require.NoError(t, mem.SetSecret(ctx, out.VaultURI, "api-token", crypto.NewSensitive("real-value")))

	_, err = p.ApplySpoke(ctx, m, model.DomainKeyVault)
	require.NoError(t, err)

	v, ok := mem.Secret(out.VaultURI, "api-token")
	require.True(t, ok)
	assert.Equal(t, "real-value", v, "re-apply must not touch an existing secret")
}

func TestApplySpoke_ReapplyKeepsDatabasePassword(t *testing.T) {
	p, _, _ := newTestProvisioner(t)
	ctx := context.Background()
	m := testManifest()
	m.Spokes.Database.StorePasswordInKeyVault = false

	_, err := p.ApplyHub(ctx, m)
	require.NoError(t, err)
	first, err := p.ApplySpoke(ctx, m, model.DomainDatabase)
	require.NoError(t, err)
	second, err := p.ApplySpoke(ctx, m, model.DomainDatabase)
	require.NoError(t, err)

	require.NotEmpty(t, first.Connection.Secret)
	assert.Equal(t, first.Connection.Secret, second.Connection.Secret,
		"converging must not rotate the admin credential")
}

func TestApplySpoke_ReapplyKeepsVaultStoredPassword(t *testing.T) {
	p, mem, _ := newTestProvisioner(t)
	ctx := context.Background()
	m := testManifest()

	_, err := p.ApplyHub(ctx, m)
	require.NoError(t, err)
	kv, err := p.ApplySpoke(ctx, m, model.DomainKeyVault)
	require.NoError(t, err)
	_, err = p.ApplySpoke(ctx, m, model.DomainDatabase)
	require.NoError(t, err)

	first, ok := mem.Secret(kv.VaultURI, SecretDatabaseAdminPassword)
	require.True(t, ok)

	_, err = p.ApplySpoke(ctx, m, model.DomainDatabase)
	require.NoError(t, err)

	second, ok := mem.Secret(kv.VaultURI, SecretDatabaseAdminPassword)
	require.True(t, ok)
	assert.Equal(t, first, second, "converging must not rotate the vault-stored credential")
}

func TestApplySpoke_DatabaseStoresPassword(t *testing.T) {
	p, mem, _ := newTestProvisioner(t)
	ctx := context.Background()
	m := testManifest()

	_, err := p.ApplyHub(ctx, m)
	require.NoError(t, err)
	kv, err := p.ApplySpoke(ctx, m, model.DomainKeyVault)
	require.NoError(t, err)
	out, err := p.ApplySpoke(ctx, m, model.DomainDatabase)
	require.NoError(t, err)

	// Both peering directions, deterministically named.
	assert.Equal(t, "database-to-hub", out.Peering.SpokeToHub.Name)
	assert.Equal(t, "hub-to-database", out.Peering.HubToSpoke.Name)
	assert.ElementsMatch(t, []string{"database-to-hub"},
		mem.Names(backend.KindPeering, out.ResourceGroup+"/"+out.NetworkName))

	// The server subnet is delegated.
	subnet := mem.Get(backend.KindSubnet, out.ResourceGroup+"/"+out.NetworkName, "default")
	require.NotNil(t, subnet)
	assert.Equal(t, "Microsoft.DBforPostgreSQL/flexibleServers", subnet.Meta["delegation"])

	// The credential went to the vault, not into the outputs.
	secret, ok := mem.Secret(kv.VaultURI, SecretDatabaseAdminPassword)
	require.True(t, ok)
	assert.NotEmpty(t, secret)
	assert.Equal(t, SecretDatabaseAdminPassword, out.Connection.SecretRef)
	assert.Empty(t, out.Connection.Secret)
	assert.Equal(t, "dbadmin", out.Connection.Username)
	assert.NotEmpty(t, out.Connection.Endpoint)

	db := mem.Get(backend.KindServerDatabase, out.ResourceGroup+"/"+out.ResourceName, "appdb")
	assert.NotNil(t, db)
}

func TestApplySpoke_DatabaseWithoutVaultKeepsSecretInOutputs(t *testing.T) {
	p, mem, _ := newTestProvisioner(t)
	ctx := context.Background()
	m := testManifest()
	m.Spokes.Database.StorePasswordInKeyVault = false

	_, err := p.ApplyHub(ctx, m)
	require.NoError(t, err)
	out, err := p.ApplySpoke(ctx, m, model.DomainDatabase)
	require.NoError(t, err)

	assert.NotEmpty(t, out.Connection.Secret)
	assert.Empty(t, out.Connection.SecretRef)
	assert.Equal(t, 0, mem.SecretCount(), "flag off must never write a secret")
}

func TestApplySpoke_VaultUnavailableFailsBeforeAnyMutation(t *testing.T) {
	p, mem, _ := newTestProvisioner(t)
	ctx := context.Background()
	m := testManifest()

	_, err := p.ApplyHub(ctx, m)
	require.NoError(t, err)
	before := mem.Count(backend.KindResourceGroup)

	// Database wants the vault, but the keyvault spoke was never
	// applied.
	_, err = p.ApplySpoke(ctx, m, model.DomainDatabase)
	require.Error(t, err)
	assert.ErrorIs(t, err, state.ErrSpokeNotProvisioned)

	assert.Equal(t, before, mem.Count(backend.KindResourceGroup), "no spoke resources may exist")
	assert.Equal(t, 0, mem.Count(backend.KindFlexibleServer))
}

func TestApplySpoke_ReapplyResumesCohort(t *testing.T) {
	p, mem, _ := newTestProvisioner(t)
	ctx := context.Background()
	m := testManifest()

	_, err := p.ApplyHub(ctx, m)
	require.NoError(t, err)
	first, err := p.ApplySpoke(ctx, m, model.DomainKeyVault)
	require.NoError(t, err)
	second, err := p.ApplySpoke(ctx, m, model.DomainKeyVault)
	require.NoError(t, err)

	assert.Equal(t, first.Suffix, second.Suffix)
	assert.Equal(t, first.ResourceName, second.ResourceName)
	assert.Equal(t, 1, mem.Count(backend.KindVault))

	// The peering name set is identical across runs: one record per
	// direction, never a duplicate.
	spokeSide := mem.Names(backend.KindPeering, first.ResourceGroup+"/"+first.NetworkName)
	assert.ElementsMatch(t, []string{"keyvault-to-hub"}, spokeSide)
	hubSide := mem.Names(backend.KindPeering, "dev-hub-rg/dev-hub-vnet")
	assert.ElementsMatch(t, []string{"hub-to-keyvault"}, hubSide)
}

func TestApplySpoke_ResumeAfterMidRunFailure(t *testing.T) {
	p, mem, store := newTestProvisioner(t)
	ctx := context.Background()
	m := testManifest()

	_, err := p.ApplyHub(ctx, m)
	require.NoError(t, err)

	// First run dies while creating the vault.
	mem.FailOn["EnsureVault"] = errors.New("throttled")
	_, err = p.ApplySpoke(ctx, m, model.DomainKeyVault)
	require.Error(t, err)

	partial, err := store.LoadSpokeOutputs(ctx, "dev", model.DomainKeyVault)
	require.NoError(t, err)
	assert.Equal(t, model.PhasePeeredToHub, partial.Phase)
	require.NotEmpty(t, partial.Suffix)

	// The retry resumes the recorded suffix and finishes.
	delete(mem.FailOn, "EnsureVault")
	out, err := p.ApplySpoke(ctx, m, model.DomainKeyVault)
	require.NoError(t, err)
	assert.Equal(t, partial.Suffix, out.Suffix)
	assert.Equal(t, model.PhaseProvisioned, out.Phase)
	assert.Equal(t, 1, mem.Count(backend.KindVirtualNetwork)-1, "one spoke vnet besides the hub's")
}

func TestApplySpoke_StoragePrivateEndpointConverges(t *testing.T) {
	p, mem, _ := newTestProvisioner(t)
	ctx := context.Background()
	m := testManifest()

	_, err := p.ApplyHub(ctx, m)
	require.NoError(t, err)
	_, err = p.ApplySpoke(ctx, m, model.DomainStorage)
	require.NoError(t, err)
	out, err := p.ApplySpoke(ctx, m, model.DomainStorage)
	require.NoError(t, err)

	assert.Equal(t, 1, mem.Count(backend.KindPrivateEndpoint))
	pe := mem.Get(backend.KindPrivateEndpoint, out.ResourceGroup, "storage-blob-pe")
	require.NotNil(t, pe)
	assert.Equal(t, "blob", pe.Meta["group_id"])
	assert.Equal(t, out.ResourceID, pe.Meta["target"])

	assert.Regexp(t, `^devst[a-z0-9]{10}$`, out.ResourceName)
	container := mem.Get(backend.KindBlobContainer, out.ResourceGroup+"/"+out.ResourceName, "assets")
	assert.NotNil(t, container)
}

func TestApplySpoke_StoragePublicSkipsPrivateEndpoint(t *testing.T) {
	p, mem, _ := newTestProvisioner(t)
	ctx := context.Background()
	m := testManifest()
	m.Spokes.Storage.AllowPublicAccess = true

	_, err := p.ApplyHub(ctx, m)
	require.NoError(t, err)
	_, err = p.ApplySpoke(ctx, m, model.DomainStorage)
	require.NoError(t, err)

	assert.Equal(t, 0, mem.Count(backend.KindPrivateEndpoint))
}

func TestApplySpoke_StorageKeyToVault(t *testing.T) {
	p, mem, _ := newTestProvisioner(t)
	ctx := context.Background()
	m := testManifest()
	m.Spokes.Storage.StoreKeyInKeyVault = true

	_, err := p.ApplyHub(ctx, m)
	require.NoError(t, err)
	kv, err := p.ApplySpoke(ctx, m, model.DomainKeyVault)
	require.NoError(t, err)
	out, err := p.ApplySpoke(ctx, m, model.DomainStorage)
	require.NoError(t, err)

	key, ok := mem.Secret(kv.VaultURI, SecretStorageAccountKey)
	require.True(t, ok)
	assert.NotEmpty(t, key)
	assert.Equal(t, SecretStorageAccountKey, out.Connection.SecretRef)
}

func TestApplyEnvironment(t *testing.T) {
	p, mem, _ := newTestProvisioner(t)
	ctx := context.Background()

	out, err := p.ApplyEnvironment(ctx, testManifest())
	require.NoError(t, err)

	require.NotNil(t, out.Hub)
	assert.Len(t, out.Spokes, 3)
	for _, domain := range []string{model.DomainKeyVault, model.DomainDatabase, model.DomainStorage} {
		require.Contains(t, out.Spokes, domain)
		assert.Equal(t, model.PhaseProvisioned, out.Spokes[domain].Phase)
	}
	// Hub RG plus three spoke RGs.
	assert.Equal(t, 4, mem.Count(backend.KindResourceGroup))
}

func TestDestroyHub_RefusesWhileSpokesExist(t *testing.T) {
	p, _, _ := newTestProvisioner(t)
	ctx := context.Background()
	m := testManifest()

	_, err := p.ApplyHub(ctx, m)
	require.NoError(t, err)
	_, err = p.ApplySpoke(ctx, m, model.DomainKeyVault)
	require.NoError(t, err)

	err = p.DestroyHub(ctx, "dev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keyvault")
}

func TestDestroySpoke_RemovesHubSidePeering(t *testing.T) {
	p, mem, store := newTestProvisioner(t)
	ctx := context.Background()
	m := testManifest()

	_, err := p.ApplyHub(ctx, m)
	require.NoError(t, err)
	_, err = p.ApplySpoke(ctx, m, model.DomainKeyVault)
	require.NoError(t, err)

	require.NoError(t, p.DestroySpoke(ctx, "dev", model.DomainKeyVault))

	assert.Empty(t, mem.Names(backend.KindPeering, "dev-hub-rg/dev-hub-vnet"))
	_, err = store.LoadSpokeOutputs(ctx, "dev", model.DomainKeyVault)
	assert.ErrorIs(t, err, state.ErrSpokeNotProvisioned)

	// Destroying an absent spoke is a no-op.
	require.NoError(t, p.DestroySpoke(ctx, "dev", model.DomainKeyVault))

	// With the spokes gone the hub can go too.
	require.NoError(t, p.DestroyHub(ctx, "dev"))
	_, err = store.LoadHubOutputs(ctx, "dev")
	assert.ErrorIs(t, err, state.ErrHubNotProvisioned)
}
