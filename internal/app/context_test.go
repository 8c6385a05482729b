package app

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onepager/internal/config"
	"onepager/internal/engine"
)

func TestOpenDefaultsToSQLite(t *testing.T) {
	dir := t.TempDir()
	env, err := Open(dir, nil)
	require.NoError(t, err)
	defer env.Close()

	assert.Equal(t, "sqlite", env.Config.Storage.Driver)
	_, err = os.Stat(dir + "/.onepager/onepager.db")
	assert.NoError(t, err)
}

func TestResolveProject(t *testing.T) {
	t.Setenv(DefaultProjectKey, "")
	ctx := context.Background()
	dir := t.TempDir()
	env, err := Open(dir, nil)
	require.NoError(t, err)
	defer env.Close()
	r := env.Engine.Repo

	_, err = ResolveProject(ctx, dir, "", r)
	assert.ErrorIs(t, err, ErrNoProject)

	id, err := ResolveProject(ctx, dir, "explicit", r)
	require.NoError(t, err)
	assert.Equal(t, "explicit", id)

	first, err := env.Engine.CreateProject(ctx, engine.CreateOptions{Title: "First"})
	require.NoError(t, err)
	id, err = ResolveProject(ctx, dir, "", r)
	require.NoError(t, err)
	assert.Equal(t, first.ID, id)

	second, err := env.Engine.CreateProject(ctx, engine.CreateOptions{Title: "Second"})
	require.NoError(t, err)
	_, err = ResolveProject(ctx, dir, "", r)
	assert.ErrorIs(t, err, ErrNoProject)

	require.NoError(t, UseProject(ctx, dir, second.ID, r))
	stored, err := config.EnvValue(dir, DefaultProjectKey)
	require.NoError(t, err)
	assert.Equal(t, second.ID, stored)
	id, err = ResolveProject(ctx, dir, "", r)
	require.NoError(t, err)
	assert.Equal(t, second.ID, id)

	assert.Error(t, UseProject(ctx, dir, "missing", r))
}
