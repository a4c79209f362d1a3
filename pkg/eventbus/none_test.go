package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratusmedia/cedrus/pkg/types"
)

func TestNonePublishNeverInvokesSubscribedHandlers(t *testing.T) {
	bus := NewNone()
	ctx := context.Background()

	called := false
	require.NoError(t, bus.Subscribe(ctx, func(context.Context, Event) error {
		called = true
		return nil
	}))

	id, err := types.NewProjectID()
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, ProjectCreate("instance-a", id)))

	assert.False(t, called)
	assert.NoError(t, bus.Close())
}

func TestNewBuildsNoneFromConfig(t *testing.T) {
	bus, err := New(NoneConfig{})
	require.NoError(t, err)
	_, ok := bus.(*None)
	assert.True(t, ok)
}

func TestNewBuildsDistributedFromConfig(t *testing.T) {
	supplied := NewNone()
	bus, err := New(DistributedConfig{Bus: supplied})
	require.NoError(t, err)
	assert.Same(t, supplied, bus)
}

func TestNewRejectsUnknownConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}
