package config

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"slices"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/edvin/landingzone/internal/crypto"
	"github.com/edvin/landingzone/internal/model"
	"github.com/edvin/landingzone/internal/netplan"
)

// DefaultAllowedRegions is the region allow-list used when the
// manifest does not supply its own.
var DefaultAllowedRegions = []string{
	"westeurope",
	"northeurope",
	"eastus",
	"eastus2",
	"westus2",
	"uksouth",
	"swedencentral",
}

var validate = validator.New()

var slugRegex = regexp.MustCompile(`^[a-z][a-z0-9-]{1,22}$`)

func init() {
	if err := validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugRegex.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	// Masked IPv4 network blocks only; stricter than the built-in cidr
	// tag, which accepts host bits and IPv6.
	if err := validate.RegisterValidation("cidrblock", func(fl validator.FieldLevel) bool {
		return netplan.Valid(fl.Field().String())
	}); err != nil {
		panic(err)
	}
}

// Manifest is the declarative description of one environment: a hub
// and up to three spokes.
type Manifest struct {
	Environment    string       `yaml:"environment" validate:"required,slug"`
	Region         string       `yaml:"region" validate:"required"`
	AllowedRegions []string     `yaml:"allowed_regions,omitempty"`
	Tags           model.TagSet `yaml:"tags,omitempty"`
	Hub            HubConfig    `yaml:"hub" validate:"required"`
	Spokes         SpokesConfig `yaml:"spokes"`
}

// HubConfig describes the shared hub network.
type HubConfig struct {
	VNetAddressSpace string            `yaml:"vnet_address_space" validate:"required,cidrblock"`
	Subnets          map[string]string `yaml:"subnets" validate:"required,dive,cidrblock"`
	DeployFirewall   bool              `yaml:"deploy_firewall"`
	DeployBastion    bool              `yaml:"deploy_bastion"`
	LogRetentionDays int32             `yaml:"log_retention_days"`
	Tags             model.TagSet      `yaml:"tags,omitempty"`
}

// SpokesConfig holds the optional per-domain spokes.
type SpokesConfig struct {
	KeyVault *KeyVaultSpoke `yaml:"keyvault,omitempty"`
	Database *DatabaseSpoke `yaml:"database,omitempty"`
	Storage  *StorageSpoke  `yaml:"storage,omitempty"`
}

// SpokeCommon is the part every spoke shares: its own network,
// network-access posture and extra tags.
type SpokeCommon struct {
	VNetAddressSpace  string       `yaml:"vnet_address_space" validate:"required,cidrblock"`
	SubnetPrefix      string       `yaml:"subnet_prefix" validate:"required,cidrblock"`
	AllowPublicAccess bool         `yaml:"allow_public_access"`
	AllowedCIDRs      []string     `yaml:"allowed_cidrs,omitempty" validate:"dive,cidrblock"`
	Tags              model.TagSet `yaml:"tags,omitempty"`
}

// KeyVaultSpoke describes the secret-store spoke.
type KeyVaultSpoke struct {
	SpokeCommon `yaml:",inline"`
	// SeedSecrets are secret names created empty on first apply so
	// applications can reference them before values exist.
	SeedSecrets []string `yaml:"seed_secrets,omitempty" validate:"dive,slug"`
}

// DatabaseSpoke describes the relational database spoke.
type DatabaseSpoke struct {
	SpokeCommon             `yaml:",inline"`
	AdminUsername           string `yaml:"admin_username"`
	AdminPassword           string `yaml:"admin_password,omitempty"`
	DatabaseName            string `yaml:"database_name" validate:"omitempty,slug"`
	StorePasswordInKeyVault bool   `yaml:"store_password_in_keyvault"`
}

// StorageSpoke describes the storage-account spoke.
type StorageSpoke struct {
	SpokeCommon       `yaml:",inline"`
	Containers        []string `yaml:"containers,omitempty" validate:"dive,slug"`
	Shares            []string `yaml:"shares,omitempty" validate:"dive,slug"`
	Tables            []string `yaml:"tables,omitempty"`
	Queues            []string `yaml:"queues,omitempty" validate:"dive,slug"`
	StoreKeyInKeyVault bool    `yaml:"store_key_in_keyvault"`
}

// Load reads and validates an environment manifest. Unknown YAML keys
// are rejected so typos surface before any resource mutation.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates manifest bytes.
func Parse(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest in full before any resource is
// created: field shapes via struct tags, then the cross-field rules
// (region allow-list, subnet containment, address-space
// disjointness, password policy). Errors name the offending field.
func (m *Manifest) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("manifest validation: %w", err)
	}

	allowed := m.AllowedRegions
	if len(allowed) == 0 {
		allowed = DefaultAllowedRegions
	}
	if !slices.Contains(allowed, m.Region) {
		return fmt.Errorf("region: %q is not in the allow-list %v", m.Region, allowed)
	}

	for role := range m.Hub.Subnets {
		switch role {
		case model.SubnetGateway, model.SubnetFirewall, model.SubnetBastion, model.SubnetSharedServices:
		default:
			return fmt.Errorf("hub.subnets: unknown subnet role %q", role)
		}
	}
	for role, prefix := range m.Hub.Subnets {
		ok, err := netplan.Contains(m.Hub.VNetAddressSpace, prefix)
		if err != nil {
			return fmt.Errorf("hub.subnets.%s: %w", role, err)
		}
		if !ok {
			return fmt.Errorf("hub.subnets.%s: %s is not contained in hub.vnet_address_space %s",
				role, prefix, m.Hub.VNetAddressSpace)
		}
	}

	spaces := []netplan.NamedSpace{{Name: "hub.vnet_address_space", CIDR: m.Hub.VNetAddressSpace}}
	for domain, common := range m.spokeCommons() {
		spaces = append(spaces, netplan.NamedSpace{
			Name: fmt.Sprintf("spokes.%s.vnet_address_space", domain),
			CIDR: common.VNetAddressSpace,
		})
		ok, err := netplan.Contains(common.VNetAddressSpace, common.SubnetPrefix)
		if err != nil {
			return fmt.Errorf("spokes.%s.subnet_prefix: %w", domain, err)
		}
		if !ok {
			return fmt.Errorf("spokes.%s.subnet_prefix: %s is not contained in %s",
				domain, common.SubnetPrefix, common.VNetAddressSpace)
		}
	}
	if err := netplan.CheckPairwiseDisjoint(spaces); err != nil {
		return fmt.Errorf("address spaces: %w", err)
	}

	if db := m.Spokes.Database; db != nil {
		// The server sits on a delegated subnet and is reachable only
		// through it; the network-access overrides cannot apply there,
		// so rejecting them beats silently dropping them.
		if db.AllowPublicAccess {
			return fmt.Errorf("spokes.database.allow_public_access: not supported, the database is reachable only through its delegated subnet")
		}
		if len(db.AllowedCIDRs) > 0 {
			return fmt.Errorf("spokes.database.allowed_cidrs: not supported, the database is reachable only through its delegated subnet")
		}
		if db.AdminPassword != "" {
			if err := crypto.ValidatePassword(db.AdminPassword); err != nil {
				return fmt.Errorf("spokes.database.admin_password: %w", err)
			}
		}
	}

	return nil
}

// spokeCommons returns the common section of each configured spoke,
// keyed by domain.
func (m *Manifest) spokeCommons() map[string]*SpokeCommon {
	commons := map[string]*SpokeCommon{}
	if m.Spokes.KeyVault != nil {
		commons[model.DomainKeyVault] = &m.Spokes.KeyVault.SpokeCommon
	}
	if m.Spokes.Database != nil {
		commons[model.DomainDatabase] = &m.Spokes.Database.SpokeCommon
	}
	if m.Spokes.Storage != nil {
		commons[model.DomainStorage] = &m.Spokes.Storage.SpokeCommon
	}
	return commons
}

// SpokeWantsVault reports whether any configured spoke asks to store a
// credential in the Key Vault spoke.
func (m *Manifest) SpokeWantsVault() bool {
	if db := m.Spokes.Database; db != nil && db.StorePasswordInKeyVault {
		return true
	}
	if st := m.Spokes.Storage; st != nil && st.StoreKeyInKeyVault {
		return true
	}
	return false
}
