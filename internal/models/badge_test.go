package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func categoryChain() (a, b, c *Badge) {
	a = &Badge{ID: 1, Type: BadgeTypeCategory, Title: "A", Category: &CategoryBadgeFields{}}
	b = &Badge{ID: 2, Type: BadgeTypeCategory, Title: "B", Category: &CategoryBadgeFields{ParentID: &a.ID, Parent: a}}
	c = &Badge{ID: 3, Type: BadgeTypeCategory, Title: "C", Category: &CategoryBadgeFields{ParentID: &b.ID, Parent: b}}
	return a, b, c
}

func TestCategoryAncestry(t *testing.T) {
	a, b, c := categoryChain()

	assert.True(t, c.IsAncestor(a), "A is an ancestor of C")
	assert.True(t, c.IsAncestor(b), "B is an ancestor of C")
	assert.True(t, c.IsAncestor(c), "a badge is its own ancestor")
	assert.False(t, a.IsAncestor(c), "C is not an ancestor of A")
	assert.False(t, b.IsAncestor(c), "C is not an ancestor of B")
}

func TestCategoryKey(t *testing.T) {
	a, b, c := categoryChain()

	assert.Equal(t, "A > B > C", c.Key(nil, ""))
	assert.Equal(t, "B / C", c.Key(a, " / "), "root is excluded from the path")
	assert.Equal(t, "A > B", b.Key(nil, ""))
	assert.Equal(t, "A", a.Key(nil, ""))
}

// Badge lists are ordered by ascending title; this test pins the
// ordering so it cannot silently flip.
func TestSortBadgesByTitleAscending(t *testing.T) {
	badges := []*Badge{
		{ID: 1, Title: "zeta"},
		{ID: 2, Title: "Alpha"},
		{ID: 3, Title: "beta"},
	}
	SortBadgesByTitle(badges)

	titles := make([]string, len(badges))
	for i, b := range badges {
		titles[i] = b.Title
	}
	// case-sensitive byte ordering: uppercase sorts first
	assert.Equal(t, []string{"Alpha", "beta", "zeta"}, titles)
}

func TestMergeBadgeLists(t *testing.T) {
	one := int64(1)
	scoped := []*Badge{
		{ID: 10, Title: "local", InstanceID: &one},
		{ID: 11, Title: "both", InstanceID: &one},
	}
	global := []*Badge{
		{ID: 11, Title: "both", InstanceID: &one}, // same badge seen twice
		{ID: 12, Title: "both"},                   // distinct badge, colliding title
		{ID: 13, Title: "aaa"},
	}

	merged := MergeBadgeLists(scoped, global)
	require.Len(t, merged, 4, "duplicate ids collapse, title collisions survive")

	ids := make([]int64, len(merged))
	for i, b := range merged {
		ids[i] = b.ID
	}
	assert.Equal(t, []int64{13, 11, 12, 10}, ids)
}

func TestBadgeTypeTargetKind(t *testing.T) {
	tests := []struct {
		badgeType BadgeType
		want      BadgeTargetKind
	}{
		{BadgeTypeUser, TargetUser},
		{BadgeTypeInstance, TargetInstance},
		{BadgeTypeDelegateable, TargetDelegateable},
		{BadgeTypeCategory, TargetDelegateable},
		{BadgeTypeThumbnail, TargetDelegateable},
	}
	for _, tt := range tests {
		t.Run(string(tt.badgeType), func(t *testing.T) {
			if got := tt.badgeType.TargetKind(); got != tt.want {
				t.Errorf("TargetKind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBadgeTypeValid(t *testing.T) {
	for _, valid := range []BadgeType{BadgeTypeUser, BadgeTypeInstance, BadgeTypeDelegateable, BadgeTypeCategory, BadgeTypeThumbnail} {
		assert.True(t, valid.Valid())
	}
	assert.False(t, BadgeType("milestone").Valid())
	assert.False(t, BadgeType("").Valid())
}
