package onepagersdk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onepager/internal/config"
	"onepager/internal/db"
	"onepager/internal/engine"
	"onepager/internal/migrate"
	"onepager/internal/server"
)

func newClient(t *testing.T) *Client {
	t.Helper()
	conn, dialect, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, migrate.Migrate(conn, dialect))
	handler, err := server.New(server.Config{
		Engine:   engine.New(conn, dialect, config.Default(), nil),
		BasePath: "/v1",
		ActorID:  "sdk-test",
	})
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	t.Cleanup(func() {
		ts.Close()
		conn.Close()
	})
	c := New(ts.URL)
	c.HTTPClient = ts.Client()
	return c
}

func TestClientWorkflow(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	p, err := c.CreateProject(ctx, CreateProject{Title: "Search Revamp"})
	require.NoError(t, err)
	assert.Equal(t, "Search Revamp", p.FormData.ProjectName)
	assert.Equal(t, 1, p.CurrentPhase)

	_, err = c.Advance(ctx, p.ID)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnprocessableEntity))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "validation_failed", apiErr.Code)

	_, err = c.UpdateForm(ctx, p.ID, map[string]string{
		"problemStatement": "Users cannot find products",
		"proposedSolution": "Rebuild search on a ranked index",
	})
	require.NoError(t, err)

	for phase := 1; phase <= 3; phase++ {
		prompt, err := c.GeneratePrompt(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, phase, prompt.Phase)
		assert.NotEmpty(t, prompt.ChatURL)

		_, err = c.SaveResponse(ctx, p.ID, "# Search Revamp\n\nResponse for phase with enough words to pass.")
		require.NoError(t, err)
		v, err := c.Validate(ctx, p.ID)
		require.NoError(t, err)
		require.True(t, v.Valid, v.Error)

		res, err := c.Advance(ctx, p.ID)
		require.NoError(t, err)
		require.True(t, res.Advanced)
		p = res.Project
	}
	assert.True(t, p.IsComplete)
	assert.Equal(t, 100, p.Progress)

	again, err := c.Advance(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, again.Advanced)
	assert.Equal(t, 4, again.CurrentPhase)
	assert.Equal(t, p.UpdatedAt, again.UpdatedAt)

	exp, err := c.Export(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "search-revamp-one-pager.md", exp.Filename)
	assert.Contains(t, exp.Markdown, "# Search Revamp")

	score, err := c.ScoreProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, score.Scope.MaxScore)

	page, err := c.EventsPage(ctx, p.ID, 3, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "phase.advanced", page.Items[0].Type)
	assert.NotEmpty(t, page.NextCursor)
}

func TestClientProjectLifecycle(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	p, err := c.CreateProject(ctx, CreateProject{Title: "Budget", Starter: "budgetAsk"})
	require.NoError(t, err)
	assert.NotEmpty(t, p.FormData.ProblemStatement)

	list, err := c.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	got, err := c.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	require.NoError(t, c.DeleteProject(ctx, p.ID))
	_, err = c.GetProject(ctx, p.ID)
	assert.True(t, IsStatus(err, http.StatusNotFound))
}

func TestClientScoreText(t *testing.T) {
	c := newClient(t)
	res, err := c.ScoreText(context.Background(), "too short")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)
	assert.Equal(t, "Incomplete", res.Label)
}
