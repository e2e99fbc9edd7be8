package netplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ValidBlocks(t *testing.T) {
	for _, s := range []string{
		"10.0.0.0/16",
		"10.2.0.0/16",
		"192.168.0.0/24",
		"172.16.0.0/12",
		"10.0.1.0/27",
		"0.0.0.0/0",
	} {
		_, err := Parse(s)
		assert.NoError(t, err, s)
	}
}

func TestParse_MalformedRejected(t *testing.T) {
	for _, s := range []string{
		"",
		"10.0.0.0",
		"10.0.0.0/33",
		"10.0.0/16",
		"300.0.0.0/8",
		"10.0.0.0/16 ",
		"not-a-cidr",
		"fd00::/64",
		"10.0.1.5/24", // host bits set
	} {
		_, err := Parse(s)
		assert.Error(t, err, s)
	}
}

func TestContains(t *testing.T) {
	ok, err := Contains("10.0.0.0/16", "10.0.3.0/24")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Contains("10.0.0.0/16", "10.1.0.0/24")
	require.NoError(t, err)
	assert.False(t, ok)

	// A subnet equal to the whole space is contained.
	ok, err = Contains("10.0.0.0/16", "10.0.0.0/16")
	require.NoError(t, err)
	assert.True(t, ok)

	// Containment is not symmetric.
	ok, err = Contains("10.0.3.0/24", "10.0.0.0/16")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDisjoint(t *testing.T) {
	ok, err := Disjoint("10.0.0.0/16", "10.2.0.0/16")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Disjoint("10.0.0.0/16", "10.0.128.0/17")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckPairwiseDisjoint(t *testing.T) {
	err := CheckPairwiseDisjoint([]NamedSpace{
		{Name: "hub_vnet_address_space", CIDR: "10.0.0.0/16"},
		{Name: "keyvault.vnet_address_space", CIDR: "10.1.0.0/16"},
		{Name: "database.vnet_address_space", CIDR: "10.2.0.0/16"},
		{Name: "storage.vnet_address_space", CIDR: "10.3.0.0/16"},
	})
	assert.NoError(t, err)

	err = CheckPairwiseDisjoint([]NamedSpace{
		{Name: "hub_vnet_address_space", CIDR: "10.0.0.0/16"},
		{Name: "database.vnet_address_space", CIDR: "10.0.64.0/18"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hub_vnet_address_space")
	assert.Contains(t, err.Error(), "database.vnet_address_space")
}

func TestNormalize_MergesOverlapping(t *testing.T) {
	merged, err := Normalize([]string{"10.0.0.0/24", "10.0.1.0/24", "10.0.0.0/23"})
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/23"}, merged)
}

func TestNormalize_RejectsMalformed(t *testing.T) {
	_, err := Normalize([]string{"10.0.0.0/24", "bogus"})
	assert.Error(t, err)
}
