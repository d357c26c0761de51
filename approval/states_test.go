package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/apruver/errors"
	"github.com/teranos/apruver/node/feeds"
)

func TestNewStateSet(t *testing.T) {
	set, err := NewStateSet([]string{"pending", " PROPOSED", "requires-admin-approval", "PENDING"})
	require.NoError(t, err)

	assert.True(t, set.Contains(feeds.StatusPending))
	assert.True(t, set.Contains(feeds.StatusProposed))
	assert.True(t, set.Contains(feeds.StatusRequiresAdminApproval))
	assert.False(t, set.Contains(feeds.StatusApproved))
	assert.Equal(t, []string{"PENDING", "PROPOSED", "REQUIRES_ADMIN_APPROVAL"}, set.Strings())
}

func TestNewStateSet_Unknown(t *testing.T) {
	_, err := NewStateSet([]string{"PENDING", "PENDNG"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidConfig(err))
	assert.Contains(t, err.Error(), "PENDNG")
}

func TestNewStateSet_Empty(t *testing.T) {
	set, err := NewStateSet(nil)
	require.NoError(t, err)
	assert.True(t, set.Empty())
	assert.False(t, set.Contains(feeds.StatusPending))
	assert.Empty(t, set.Statuses())
}

func TestMustStateSet_Panics(t *testing.T) {
	assert.Panics(t, func() { MustStateSet("NOPE") })
}
