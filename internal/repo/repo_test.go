package repo

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onepager/internal/db"
	"onepager/internal/domain"
	"onepager/internal/events"
	"onepager/internal/migrate"
)

func newTestRepo(t *testing.T, now time.Time) Repo {
	t.Helper()
	conn, dialect, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, migrate.Migrate(conn, dialect))
	return Repo{DB: conn, Dialect: dialect, Now: func() time.Time { return now }}
}

func withTx(t *testing.T, r Repo, fn func(tx *sql.Tx)) {
	t.Helper()
	tx, err := r.DB.Begin()
	require.NoError(t, err)
	fn(tx)
	require.NoError(t, tx.Commit())
}

func TestProjectRoundTrip(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRepo(t, now)

	p := domain.Project{ID: "p1", Title: "Widget", Phase: 2, Phases: domain.NewPhases(), CreatedAt: "2026-01-01T00:00:00Z", UpdatedAt: "2026-01-01T00:00:00Z"}
	p.FormData.ProjectName = "Widget"
	require.NoError(t, p.Phases.Set(1, domain.PhaseRecord{Prompt: "x", Response: "y", Completed: true}))
	require.NoError(t, r.InsertProject(ctx, p))

	got, err := r.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Widget", got.FormData.ProjectName)
	assert.Equal(t, 2, got.Phase)
	assert.True(t, got.Phases.Get(1).Completed)

	_, err = r.GetProject(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveProjectRefreshesUpdatedAt(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRepo(t, now)

	p := domain.Project{ID: "p1", Title: "A", Phase: 1, Phases: domain.NewPhases(), CreatedAt: "2026-01-01T00:00:00Z", UpdatedAt: "2026-01-01T00:00:00Z"}
	require.NoError(t, r.InsertProject(ctx, p))

	p.Title = "B"
	withTx(t, r, func(tx *sql.Tx) {
		saved, err := r.SaveProjectTx(ctx, tx, p)
		require.NoError(t, err)
		assert.Equal(t, "2026-03-01T12:00:00Z", saved.UpdatedAt)
	})

	got, err := r.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "B", got.Title)
	assert.Equal(t, "2026-03-01T12:00:00Z", got.UpdatedAt)
	assert.Equal(t, "2026-01-01T00:00:00Z", got.CreatedAt)

	withTx(t, r, func(tx *sql.Tx) {
		_, err := r.SaveProjectTx(ctx, tx, domain.Project{ID: "ghost"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t, time.Now())
	require.NoError(t, r.InsertProject(ctx, domain.Project{ID: "old", Phase: 1, UpdatedAt: "2026-01-01T00:00:00Z"}))
	require.NoError(t, r.InsertProject(ctx, domain.Project{ID: "new", Phase: 1, UpdatedAt: "2026-02-01T00:00:00Z"}))

	list, err := r.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)

	require.NoError(t, r.DeleteProject(ctx, "old"))
	assert.ErrorIs(t, r.DeleteProject(ctx, "old"), ErrNotFound)
}

func TestLatestEventsFilters(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRepo(t, now)
	w := events.Writer{Dialect: r.Dialect, Now: func() time.Time { return now }}

	withTx(t, r, func(tx *sql.Tx) {
		require.NoError(t, w.Append(ctx, tx, events.ProjectCreated, "p1", "project", "p1", "cli", nil))
		require.NoError(t, w.Append(ctx, tx, events.FormUpdated, "p1", "project", "p1", "cli", events.EventPayload{"fields": 2}))
		require.NoError(t, w.Append(ctx, tx, events.ProjectCreated, "p2", "project", "p2", "cli", nil))
	})

	all, err := r.LatestEvents(ctx, 10, "", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "p2", all[0].ProjectID)

	forP1, err := r.LatestEvents(ctx, 10, "p1", "")
	require.NoError(t, err)
	require.Len(t, forP1, 2)
	assert.JSONEq(t, `{"fields":2}`, forP1[0].Payload)

	created, err := r.LatestEvents(ctx, 10, "", events.ProjectCreated)
	require.NoError(t, err)
	assert.Len(t, created, 2)

	older, err := r.LatestEventsFrom(ctx, 10, all[0].ID, "", "")
	require.NoError(t, err)
	assert.Len(t, older, 2)
}
