package tools

import (
	"meetassist/app/config"
	"meetassist/app/service/realtime"
	"testing"

	"github.com/samber/do"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, tools ...config.Tool) *Service {
	t.Helper()

	di := do.New()
	do.ProvideValue(di, &config.Config{Tools: tools})

	svc, err := New(di)
	require.NoError(t, err)

	return svc
}

func TestSeedFromConfig(t *testing.T) {
	svc := newService(t,
		config.Tool{Name: "lookup_order", Enabled: true, Scheduling: "WHEN_IDLE"},
		config.Tool{Name: "send_email"},
	)

	names := make([]string, 0)
	for _, d := range svc.List() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"lookup_order", "send_email"}, names)

	specs := svc.Specs()
	require.Len(t, specs, 1)
	assert.Equal(t, realtime.SchedulingWhenIdle, specs[0].Scheduling)
}

func TestSeedDuplicateFails(t *testing.T) {
	di := do.New()
	do.ProvideValue(di, &config.Config{Tools: []config.Tool{{Name: "a"}, {Name: "a"}}})

	_, err := New(di)
	require.Error(t, err)
}

func TestAddDuplicate(t *testing.T) {
	svc := newService(t)

	require.NoError(t, svc.Add(Definition{Name: "lookup"}))

	err := svc.Add(Definition{Name: " lookup "})
	require.Error(t, err)

	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, "tool_exists", oopsErr.Code())

	assert.Error(t, svc.Add(Definition{Name: "  "}))
}

func TestRenameCollisionKeepsPriorState(t *testing.T) {
	svc := newService(t)
	require.NoError(t, svc.Add(Definition{Name: "a", Description: "first"}))
	require.NoError(t, svc.Add(Definition{Name: "b", Description: "second"}))

	updated, err := svc.Update("a", Definition{Name: "b", Description: "changed"})
	require.NoError(t, err)
	assert.False(t, updated)

	a, ok := svc.Get("a")
	require.True(t, ok)
	assert.Equal(t, "first", a.Description)

	updated, err = svc.Update("a", Definition{Name: "c", Description: "renamed", Enabled: true})
	require.NoError(t, err)
	assert.True(t, updated)

	_, ok = svc.Get("a")
	assert.False(t, ok)
	c, ok := svc.Get("c")
	require.True(t, ok)
	assert.True(t, c.Enabled)

	updated, err = svc.Update("c", Definition{Description: "same name"})
	require.NoError(t, err)
	assert.True(t, updated)

	_, err = svc.Update("missing", Definition{Name: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemove(t *testing.T) {
	svc := newService(t)
	require.NoError(t, svc.Add(Definition{Name: "a"}))
	require.NoError(t, svc.Add(Definition{Name: "b"}))

	assert.True(t, svc.Remove("a"))
	assert.False(t, svc.Remove("a"))

	list := svc.List()
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].Name)
}
