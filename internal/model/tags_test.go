package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeTags_LaterWins(t *testing.T) {
	hub := TagSet{"environment": "dev", "managed-by": "lzctl", "cost-center": "platform"}
	spoke := TagSet{"workload": "database", "cost-center": "data"}
	user := TagSet{"owner": "team-a"}

	merged := MergeTags(hub, spoke, user)

	assert.Equal(t, "data", merged["cost-center"])
	assert.Equal(t, "dev", merged["environment"])
	assert.Equal(t, "database", merged["workload"])
	assert.Equal(t, "team-a", merged["owner"])
}

func TestMergeTags_DoesNotMutateInputs(t *testing.T) {
	hub := TagSet{"environment": "dev"}
	spoke := TagSet{"environment": "prod"}

	_ = MergeTags(hub, spoke)

	assert.Equal(t, "dev", hub["environment"])
}

func TestMergeTags_Empty(t *testing.T) {
	assert.Empty(t, MergeTags())
	assert.Empty(t, MergeTags(nil, TagSet{}))
}

func TestPeeringPair_Complete(t *testing.T) {
	p := PeeringPair{}
	assert.False(t, p.Complete())

	p.SpokeToHub = PeeringLink{Name: "database-to-hub", ID: "/peerings/1"}
	assert.False(t, p.Complete())

	p.HubToSpoke = PeeringLink{Name: "hub-to-database", ID: "/peerings/2"}
	assert.True(t, p.Complete())
}
