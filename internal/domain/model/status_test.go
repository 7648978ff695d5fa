package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusHappyPath(t *testing.T) {
	assert.True(t, StatusSending.CanAdvance(StatusSent))
	assert.True(t, StatusSent.CanAdvance(StatusDelivered))
	assert.True(t, StatusDelivered.CanAdvance(StatusRead))
}

func TestStatusOfflineBranch(t *testing.T) {
	assert.True(t, StatusSent.CanAdvance(StatusQueued))
	assert.True(t, StatusQueued.CanAdvance(StatusDelivered))
	assert.True(t, StatusQueued.CanAdvance(StatusFailed))
}

func TestStatusNeverRegresses(t *testing.T) {
	cases := []struct {
		from, to Status
	}{
		{StatusSent, StatusSending},
		{StatusDelivered, StatusSent},
		{StatusDelivered, StatusQueued},
		{StatusRead, StatusDelivered},
		{StatusQueued, StatusSent},
		{StatusFailed, StatusQueued},
	}
	for _, c := range cases {
		assert.False(t, c.from.CanAdvance(c.to), "%s -> %s must be rejected", c.from, c.to)
	}
}

func TestStatusNeverSkips(t *testing.T) {
	// read requires delivered, delivered requires sent or queued.
	assert.False(t, StatusSending.CanAdvance(StatusDelivered))
	assert.False(t, StatusSending.CanAdvance(StatusRead))
	assert.False(t, StatusSent.CanAdvance(StatusRead))
	assert.False(t, StatusQueued.CanAdvance(StatusRead))
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusRead.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusSending.Terminal())
	assert.False(t, StatusQueued.Terminal())
}

func TestStatusJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, `"delivered"`, string(data))

	var s Status
	require.NoError(t, json.Unmarshal(data, &s))
	assert.Equal(t, StatusDelivered, s)
}

func TestStatusUnmarshalRejectsUnknownName(t *testing.T) {
	var s Status
	err := json.Unmarshal([]byte(`"teleported"`), &s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "teleported")

	assert.Error(t, json.Unmarshal([]byte(`42`), &s), "status is a string on the wire")
}
