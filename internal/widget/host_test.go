package widget

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaicui/mosaic/internal/mediator"
	"github.com/mosaicui/mosaic/internal/permission"
)

func newHostFixture(t *testing.T) (*mediator.Mediator, *permission.StaticSource) {
	t.Helper()

	source := permission.NewStaticSource()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return mediator.New(source, mediator.WithLogger(logger)), source
}

func TestHost_SubscribePublishRoundTrip(t *testing.T) {
	med, source := newHostFixture(t)
	source.SetShared("w", "news.*")
	require.NoError(t, med.Gate().Load("w"))
	host := newHost("w", med)

	var got [][]any
	id, err := host.Subscribe("news.*", func(args []any) {
		got = append(got, args)
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, 1, host.Subscriptions())

	delivered, err := host.Publish("news.update", "x", 2)
	require.NoError(t, err)
	assert.True(t, delivered)
	require.Len(t, got, 1)
	assert.Equal(t, []any{"x", 2}, got[0])

	assert.True(t, host.Unsubscribe(id))
	assert.Zero(t, host.Subscriptions())
	assert.False(t, host.Unsubscribe(id))
}

func TestHost_SubscribeFilteredWithoutGrant(t *testing.T) {
	med, _ := newHostFixture(t)
	host := newHost("w", med)

	id, err := host.Subscribe("news.*", func([]any) {})
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Zero(t, host.Subscriptions())
}

func TestHost_SubscribeReservedPath(t *testing.T) {
	med, _ := newHostFixture(t)
	host := newHost("w", med)

	_, err := host.Subscribe("perm.on.news", func([]any) {})
	assert.Error(t, err)
}

func TestHost_UnsubscribeUnknown(t *testing.T) {
	med, _ := newHostFixture(t)
	host := newHost("w", med)

	assert.False(t, host.Unsubscribe("nope"))
}

func TestHost_LifecycleTransitions(t *testing.T) {
	med, _ := newHostFixture(t)
	host := newHost("w", med)
	assert.Equal(t, StateUnloaded, host.State())

	host.begin(map[string]any{"tz": "UTC"}, "#clock")
	assert.Equal(t, StateLoading, host.State())
	assert.Equal(t, "#clock", host.Element())

	boom := errors.New("boom")
	host.fail(boom)
	assert.Equal(t, StateError, host.State())
	assert.ErrorIs(t, host.Err(), boom)

	spec := host.spec()
	assert.Equal(t, Spec{Identity: "w", Options: map[string]any{"tz": "UTC"}, Element: "#clock"}, spec)

	host.begin(nil, "")
	assert.NoError(t, host.Err())

	host.ready()
	assert.Equal(t, StateReady, host.State())

	host.shutdown()
	assert.Equal(t, StateUnloaded, host.State())
}
