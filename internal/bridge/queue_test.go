package bridge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/discordplex/discordplex/internal/bridge"
)

func TestFrameQueue_PushDropOldest(t *testing.T) {
	q := bridge.NewFrameQueue(2)

	assert.False(t, q.PushDropOldest([]byte{1}))
	assert.False(t, q.PushDropOldest([]byte{2}))
	assert.True(t, q.PushDropOldest([]byte{3}))

	assert.Equal(t, []byte{2}, q.Poll())
	assert.Equal(t, []byte{3}, q.Poll())
	assert.Nil(t, q.Poll())
}

func TestFrameQueue_PushDropNewest(t *testing.T) {
	q := bridge.NewFrameQueue(2)

	assert.False(t, q.PushDropNewest([]byte{1}))
	assert.False(t, q.PushDropNewest([]byte{2}))
	assert.True(t, q.PushDropNewest([]byte{3}))

	assert.Equal(t, 2, q.Len())
	assert.Equal(t, []byte{1}, q.Poll())
	assert.Equal(t, []byte{2}, q.Poll())
}

func TestFrameQueue_PollEmpty(t *testing.T) {
	q := bridge.NewFrameQueue(1)
	assert.Nil(t, q.Poll())
	assert.Equal(t, 0, q.Len())
}
