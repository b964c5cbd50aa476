package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceAttrRoundTrip(t *testing.T) {
	inst := &Instance{Key: "demo", Label: "Demo"}

	tests := []struct {
		name  string
		value any
	}{
		{"allow_delegate", true},
		{"milestones", true},
		{"use_norms", true},
		{"theme", "dark"},
		{"css", "body { color: red }"},
		{"thumbnailbadges_width", 48},
		{"label", "Renamed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, inst.SetAttr(tt.name, tt.value))
			got, ok := inst.Attr(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestInstanceAttrUnknown(t *testing.T) {
	inst := &Instance{}

	_, ok := inst.Attr("no_such_attribute")
	assert.False(t, ok)

	err := inst.SetAttr("no_such_attribute", true)
	assert.Error(t, err)
}

func TestInstanceSetAttrTypeMismatch(t *testing.T) {
	inst := &Instance{}

	assert.Error(t, inst.SetAttr("allow_delegate", "yes"))
	assert.Error(t, inst.SetAttr("theme", 7))
	assert.False(t, inst.AllowDelegate, "failed set must not mutate")
}

func TestInstanceDefaultGroupAttr(t *testing.T) {
	inst := &Instance{}

	require.NoError(t, inst.SetAttr("default_group", int64(3)))
	require.NotNil(t, inst.DefaultGroupID)
	assert.Equal(t, int64(3), *inst.DefaultGroupID)

	require.NoError(t, inst.SetAttr("default_group", nil))
	assert.Nil(t, inst.DefaultGroupID)
}
