package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/edvin/landingzone/internal/crypto"
	"github.com/edvin/landingzone/internal/model"
)

// Memory is an in-memory Backend for tests. It records every resource
// keyed by kind, scope and name, counts ensure calls, and can be told
// to fail a specific verb to simulate a platform-side failure
// mid-deployment.
type Memory struct {
	mu        sync.Mutex
	resources map[string]*FakeResource
	secrets   map[string]string

	// FailOn maps "Verb" or "Verb:name" to the error that verb should
	// return. Matching by name wins.
	FailOn map[string]error
}

// FakeResource is one recorded resource.
type FakeResource struct {
	Kind    string
	Scope   string
	Name    string
	ID      string
	Ensures int
	Meta    map[string]string
}

// NewMemory creates an empty fake backend.
func NewMemory() *Memory {
	return &Memory{
		resources: map[string]*FakeResource{},
		secrets:   map[string]string{},
		FailOn:    map[string]error{},
	}
}

func (m *Memory) fail(verb, name string) error {
	if err, ok := m.FailOn[verb+":"+name]; ok {
		return err
	}
	if err, ok := m.FailOn[verb]; ok {
		return err
	}
	return nil
}

func key(kind, scope, name string) string {
	return kind + "|" + scope + "|" + name
}

// ensure records the resource if absent and returns its fake platform
// ID. Re-ensuring an existing name converges: the count goes up, the
// resource does not duplicate.
func (m *Memory) ensure(verb, kind, scope, name string, meta map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(verb, name); err != nil {
		return "", err
	}
	k := key(kind, scope, name)
	res, ok := m.resources[k]
	if !ok {
		res = &FakeResource{
			Kind:  kind,
			Scope: scope,
			Name:  name,
			ID:    fmt.Sprintf("/fake/%s/%s/%s", kind, scope, name),
			Meta:  map[string]string{},
		}
		m.resources[k] = res
	}
	for mk, mv := range meta {
		res.Meta[mk] = mv
	}
	res.Ensures++
	return res.ID, nil
}

// Names returns the recorded names of a kind within a scope, in any
// order. Scope "" matches all scopes.
func (m *Memory) Names(kind, scope string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, r := range m.resources {
		if r.Kind == kind && (scope == "" || r.Scope == scope) {
			names = append(names, r.Name)
		}
	}
	return names
}

// Count returns how many distinct resources of a kind exist.
func (m *Memory) Count(kind string) int {
	return len(m.Names(kind, ""))
}

// Get returns a recorded resource or nil.
func (m *Memory) Get(kind, scope, name string) *FakeResource {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resources[key(kind, scope, name)]
}

// Secret returns a stored secret value and whether it exists.
func (m *Memory) Secret(vaultURI, name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.secrets[vaultURI+"|"+name]
	return v, ok
}

// SecretCount returns the number of stored secrets.
func (m *Memory) SecretCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.secrets)
}

// Resource kinds recorded by the fake.
const (
	KindResourceGroup   = "resource-group"
	KindVirtualNetwork  = "vnet"
	KindSubnet          = "subnet"
	KindPeering         = "peering"
	KindDNSZone         = "dns-zone"
	KindDNSLink         = "dns-link"
	KindLogWorkspace    = "log-workspace"
	KindFirewall        = "firewall"
	KindBastion         = "bastion"
	KindDiagnostics     = "diagnostics"
	KindVault           = "vault"
	KindStorageAccount  = "storage-account"
	KindBlobContainer   = "blob-container"
	KindFileShare       = "file-share"
	KindTable           = "table"
	KindQueue           = "queue"
	KindPrivateEndpoint = "private-endpoint"
	KindFlexibleServer  = "flexible-server"
	KindServerDatabase  = "server-database"
)

func (m *Memory) EnsureResourceGroup(_ context.Context, name, region string, tags model.TagSet) (string, error) {
	return m.ensure("EnsureResourceGroup", KindResourceGroup, "", name, map[string]string{"region": region})
}

func (m *Memory) DeleteResourceGroup(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteResourceGroup", name); err != nil {
		return err
	}
	delete(m.resources, key(KindResourceGroup, "", name))
	return nil
}

func (m *Memory) EnsureVirtualNetwork(_ context.Context, rg, name, region, addressSpace string, tags model.TagSet) (string, error) {
	return m.ensure("EnsureVirtualNetwork", KindVirtualNetwork, rg, name, map[string]string{"address_space": addressSpace})
}

func (m *Memory) EnsureSubnet(_ context.Context, rg, vnetName, name, prefix string, cfg SubnetConfig) (string, error) {
	return m.ensure("EnsureSubnet", KindSubnet, rg+"/"+vnetName, name, map[string]string{
		"prefix":     prefix,
		"delegation": cfg.Delegation,
	})
}

func (m *Memory) EnsurePeering(_ context.Context, rg, vnetName, peeringName, remoteNetworkID string) (string, error) {
	return m.ensure("EnsurePeering", KindPeering, rg+"/"+vnetName, peeringName, map[string]string{
		"remote_network": remoteNetworkID,
	})
}

func (m *Memory) DeletePeering(_ context.Context, rg, vnetName, peeringName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeletePeering", peeringName); err != nil {
		return err
	}
	delete(m.resources, key(KindPeering, rg+"/"+vnetName, peeringName))
	return nil
}

func (m *Memory) EnsurePrivateDNSZone(_ context.Context, rg, zoneName string, tags model.TagSet) (string, error) {
	return m.ensure("EnsurePrivateDNSZone", KindDNSZone, rg, zoneName, nil)
}

func (m *Memory) EnsureDNSZoneLink(_ context.Context, rg, zoneName, linkName, networkID string) (string, error) {
	return m.ensure("EnsureDNSZoneLink", KindDNSLink, rg+"/"+zoneName, linkName, map[string]string{
		"network": networkID,
	})
}

func (m *Memory) EnsureLogWorkspace(_ context.Context, rg, name, region string, retentionDays int32, tags model.TagSet) (string, error) {
	return m.ensure("EnsureLogWorkspace", KindLogWorkspace, rg, name, nil)
}

func (m *Memory) EnsureFirewall(_ context.Context, rg, name, region, subnetID string, tags model.TagSet) (string, error) {
	return m.ensure("EnsureFirewall", KindFirewall, rg, name, map[string]string{"subnet": subnetID})
}

func (m *Memory) EnsureBastion(_ context.Context, rg, name, region, subnetID string, tags model.TagSet) (string, error) {
	return m.ensure("EnsureBastion", KindBastion, rg, name, map[string]string{"subnet": subnetID})
}

func (m *Memory) EnsureDiagnostics(_ context.Context, settingName, resourceID, logSinkID string) error {
	_, err := m.ensure("EnsureDiagnostics", KindDiagnostics, resourceID, settingName, map[string]string{
		"log_sink": logSinkID,
	})
	return err
}

func (m *Memory) EnsureVault(_ context.Context, rg, name, region string, rules NetworkRules, tags model.TagSet) (string, string, error) {
	id, err := m.ensure("EnsureVault", KindVault, rg, name, map[string]string{
		"public_access": fmt.Sprint(rules.PublicAccess),
	})
	if err != nil {
		return "", "", err
	}
	return id, "https://" + name + ".vault.fake.net/", nil
}

func (m *Memory) SetSecret(_ context.Context, vaultURI, name string, value crypto.Sensitive) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("SetSecret", name); err != nil {
		return err
	}
	m.secrets[vaultURI+"|"+name] = value.Reveal()
	return nil
}

func (m *Memory) GetSecret(_ context.Context, vaultURI, name string) (crypto.Sensitive, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetSecret", name); err != nil {
		return crypto.Sensitive{}, false, err
	}
	v, ok := m.secrets[vaultURI+"|"+name]
	if !ok {
		return crypto.Sensitive{}, false, nil
	}
	return crypto.NewSensitive(v), true, nil
}

func (m *Memory) EnsureStorageAccount(_ context.Context, rg, name, region string, rules NetworkRules, tags model.TagSet) (string, string, error) {
	id, err := m.ensure("EnsureStorageAccount", KindStorageAccount, rg, name, map[string]string{
		"public_access": fmt.Sprint(rules.PublicAccess),
	})
	if err != nil {
		return "", "", err
	}
	return id, "https://" + name + ".blob.fake.net/", nil
}

func (m *Memory) GetStorageAccountKey(_ context.Context, rg, account string) (crypto.Sensitive, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetStorageAccountKey", account); err != nil {
		return crypto.Sensitive{}, err
	}
	return crypto.NewSensitive("fake-key-" + account), nil
}

func (m *Memory) EnsureBlobContainer(_ context.Context, rg, account, name string) error {
	_, err := m.ensure("EnsureBlobContainer", KindBlobContainer, rg+"/"+account, name, nil)
	return err
}

func (m *Memory) EnsureFileShare(_ context.Context, rg, account, name string) error {
	_, err := m.ensure("EnsureFileShare", KindFileShare, rg+"/"+account, name, nil)
	return err
}

func (m *Memory) EnsureTable(_ context.Context, rg, account, name string) error {
	_, err := m.ensure("EnsureTable", KindTable, rg+"/"+account, name, nil)
	return err
}

func (m *Memory) EnsureQueue(_ context.Context, rg, account, name string) error {
	_, err := m.ensure("EnsureQueue", KindQueue, rg+"/"+account, name, nil)
	return err
}

func (m *Memory) EnsurePrivateEndpoint(_ context.Context, rg, name, region, subnetID, targetID, groupID string, tags model.TagSet) (string, error) {
	return m.ensure("EnsurePrivateEndpoint", KindPrivateEndpoint, rg, name, map[string]string{
		"subnet":   subnetID,
		"target":   targetID,
		"group_id": groupID,
	})
}

func (m *Memory) EnsureFlexibleServer(_ context.Context, rg, name, region string, cfg FlexibleServerConfig) (string, string, error) {
	id, err := m.ensure("EnsureFlexibleServer", KindFlexibleServer, rg, name, map[string]string{
		"admin_username":      cfg.AdminUsername,
		"delegated_subnet":    cfg.DelegatedSubnetID,
		"private_dns_zone_id": cfg.PrivateDNSZoneID,
	})
	if err != nil {
		return "", "", err
	}
	return id, name + ".postgres.fake.net", nil
}

func (m *Memory) EnsureServerDatabase(_ context.Context, rg, serverName, name string) error {
	_, err := m.ensure("EnsureServerDatabase", KindServerDatabase, rg+"/"+serverName, name, nil)
	return err
}

var _ Backend = (*Memory)(nil)
