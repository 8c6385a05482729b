package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onepager/internal/config"
	"onepager/internal/db"
	"onepager/internal/domain"
	"onepager/internal/engine"
	"onepager/internal/events"
	"onepager/internal/migrate"
	"onepager/internal/repo"
	"onepager/internal/templates"
	"onepager/internal/workflow"
)

var fixedNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T, src templates.Source) testEnv {
	t.Helper()
	conn, dialect, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, migrate.Migrate(conn, dialect))
	eng := engine.New(conn, dialect, config.Default(), src).WithClock(func() time.Time { return fixedNow })
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func strPtr(s string) *string { return &s }

func (env testEnv) create(t *testing.T, title string) domain.Project {
	t.Helper()
	p, err := env.Engine.CreateProject(env.Ctx, engine.CreateOptions{Title: title, ActorID: "tester"})
	require.NoError(t, err)
	return p
}

func TestCreateProjectDefaults(t *testing.T) {
	env := newTestEnv(t, nil)
	p, err := env.Engine.CreateProject(env.Ctx, engine.CreateOptions{Title: "Checkout", Problems: "Too many steps", ActorID: "tester"})
	require.NoError(t, err)

	assert.Len(t, p.ID, 36)
	assert.Equal(t, 1, p.Phase)
	assert.Equal(t, "Checkout", p.FormData.ProjectName)
	assert.Equal(t, "Too many steps", p.FormData.ProblemStatement)
	assert.Equal(t, "2024-01-01T00:00:00Z", p.CreatedAt)
	assert.Equal(t, 0, workflow.Progress(&p))

	_, err = env.Engine.CreateProject(env.Ctx, engine.CreateOptions{})
	var verr *engine.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCreateProjectFromStarter(t *testing.T) {
	env := newTestEnv(t, nil)
	p, err := env.Engine.CreateProject(env.Ctx, engine.CreateOptions{Title: "Q3 budget", Starter: "budgetAsk"})
	require.NoError(t, err)
	assert.Equal(t, "Q3 budget", p.FormData.ProjectName)
	assert.NotEmpty(t, p.FormData.ProblemStatement)

	_, err = env.Engine.CreateProject(env.Ctx, engine.CreateOptions{Title: "x", Starter: "nope"})
	var verr *engine.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestValidationCitesMissingField(t *testing.T) {
	env := newTestEnv(t, nil)
	p, err := env.Engine.CreateProject(env.Ctx, engine.CreateOptions{Title: "T"})
	require.NoError(t, err)
	_, err = env.Engine.UpdateForm(env.Ctx, p.ID, domain.FormPatch{ProjectName: strPtr("")}, "tester")
	require.NoError(t, err)

	v, err := env.Engine.Validate(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Contains(t, v.Error, "project name")

	_, _, err = env.Engine.Advance(env.Ctx, p.ID, "tester")
	var verr *engine.ValidationError
	require.ErrorAs(t, err, &verr)

	got, err := env.Engine.GetProject(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Phase)
}

func TestShortResponseAdvances(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.create(t, "Checkout")
	_, err := env.Engine.UpdateForm(env.Ctx, p.ID, domain.FormPatch{
		ProblemStatement: strPtr("Carts are abandoned"),
		ProposedSolution: strPtr("One-page checkout"),
	}, "tester")
	require.NoError(t, err)
	_, err = env.Engine.SaveResponse(env.Ctx, p.ID, "abc", "tester")
	require.NoError(t, err)

	v, err := env.Engine.Validate(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, v.Valid, v.Error)

	p, advanced, err := env.Engine.Advance(env.Ctx, p.ID, "tester")
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, 2, p.Phase)
	assert.True(t, p.Phases.Get(1).Completed)
	assert.Equal(t, 33, workflow.Progress(&p))
}

func TestFullWorkflow(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.create(t, "Checkout")
	_, err := env.Engine.UpdateForm(env.Ctx, p.ID, domain.FormPatch{
		ProblemStatement: strPtr("Carts are abandoned"),
		ProposedSolution: strPtr("One-page checkout"),
	}, "tester")
	require.NoError(t, err)

	responses := []string{"draft one", "critique two", "final three"}
	for i, resp := range responses {
		_, prompt, err := env.Engine.GeneratePrompt(env.Ctx, p.ID, "tester")
		require.NoError(t, err)
		assert.Equal(t, i+1, prompt.Phase)
		assert.NotContains(t, prompt.Text, "{{")
		if i > 0 {
			assert.Contains(t, prompt.Text, "draft one")
		}
		_, err = env.Engine.SaveResponse(env.Ctx, p.ID, resp, "tester")
		require.NoError(t, err)
		var advanced bool
		p, advanced, err = env.Engine.Advance(env.Ctx, p.ID, "tester")
		require.NoError(t, err)
		require.True(t, advanced)
	}
	assert.Equal(t, domain.PhaseComplete, p.Phase)
	assert.True(t, workflow.IsComplete(&p))
	assert.Equal(t, 100, workflow.Progress(&p))

	before, err := env.Engine.ListEvents(env.Ctx, p.ID, 50)
	require.NoError(t, err)
	again, advanced, err := env.Engine.Advance(env.Ctx, p.ID, "tester")
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, domain.PhaseComplete, again.Phase)
	assert.Equal(t, p.UpdatedAt, again.UpdatedAt)
	after, err := env.Engine.ListEvents(env.Ctx, p.ID, 50)
	require.NoError(t, err)
	assert.Len(t, after, len(before))

	_, _, err = env.Engine.GeneratePrompt(env.Ctx, p.ID, "tester")
	assert.ErrorIs(t, err, workflow.ErrWorkflowComplete)

	exp, err := env.Engine.Export(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "checkout-one-pager.md", exp.Filename)
	assert.Contains(t, exp.Markdown, "final three")
	assert.Contains(t, exp.Markdown, "One-Pager Assistant")
}

func TestPromptPasteRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.create(t, "Checkout")
	_, err := env.Engine.UpdateForm(env.Ctx, p.ID, domain.FormPatch{
		ProblemStatement: strPtr("Carts are abandoned"),
		ProposedSolution: strPtr("One-page checkout"),
	}, "tester")
	require.NoError(t, err)
	_, prompt, err := env.Engine.GeneratePrompt(env.Ctx, p.ID, "tester")
	require.NoError(t, err)
	_, err = env.Engine.SaveResponse(env.Ctx, p.ID, prompt.Text, "tester")
	require.NoError(t, err)

	v, err := env.Engine.Validate(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Contains(t, v.Error, "prompt")
}

func TestTemplateFailureLeavesProjectUntouched(t *testing.T) {
	env := newTestEnv(t, templates.DirSource{Dir: t.TempDir()})
	p := env.create(t, "Checkout")

	_, _, err := env.Engine.GeneratePrompt(env.Ctx, p.ID, "tester")
	var rerr *templates.RetrievalError
	require.ErrorAs(t, err, &rerr)
	assert.True(t, errors.Is(err, templates.ErrTemplateNotFound))

	got, err := env.Engine.GetProject(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Phases.Get(1).Prompt)

	evts, err := env.Engine.ListEvents(env.Ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, events.ProjectCreated, evts[0].Type)
}

func TestBackKeepsCompletion(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.create(t, "Checkout")
	_, err := env.Engine.Back(env.Ctx, p.ID, "tester")
	assert.ErrorIs(t, err, engine.ErrAtFirstPhase)

	_, err = env.Engine.UpdateForm(env.Ctx, p.ID, domain.FormPatch{
		ProblemStatement: strPtr("x"), ProposedSolution: strPtr("y"),
	}, "tester")
	require.NoError(t, err)
	_, err = env.Engine.SaveResponse(env.Ctx, p.ID, "done", "tester")
	require.NoError(t, err)
	_, _, err = env.Engine.Advance(env.Ctx, p.ID, "tester")
	require.NoError(t, err)

	p, err = env.Engine.Back(env.Ctx, p.ID, "tester")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Phase)
	assert.True(t, p.Phases.Get(1).Completed)
}

func TestUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.create(t, "Checkout")

	p, err := env.Engine.UpdateProject(env.Ctx, engine.UpdateOptions{ID: p.ID, Title: strPtr("Faster checkout"), ActorID: "tester"})
	require.NoError(t, err)
	assert.Equal(t, "Faster checkout", p.Title)

	_, err = env.Engine.UpdateProject(env.Ctx, engine.UpdateOptions{ID: p.ID, Title: strPtr("  ")})
	var verr *engine.ValidationError
	assert.ErrorAs(t, err, &verr)

	require.NoError(t, env.Engine.DeleteProject(env.Ctx, p.ID, "tester"))
	_, err = env.Engine.GetProject(env.Ctx, p.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.ErrorIs(t, env.Engine.DeleteProject(env.Ctx, p.ID, "tester"), repo.ErrNotFound)

	evts, err := env.Engine.ListEvents(env.Ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, evts, 3)
	assert.Equal(t, events.ProjectDeleted, evts[0].Type)

	_, err = env.Engine.ListEvents(env.Ctx, "never-existed", 10)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestScoreUsesFinalMarkdown(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.create(t, "Tiny")
	r, err := env.Engine.Score(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Total)

	_, err = env.Engine.Score(env.Ctx, "missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestImportLegacyBackup(t *testing.T) {
	env := newTestEnv(t, nil)
	existing := env.create(t, "Existing")

	raw := `{"version":1,"projects":[
		{"id":"legacy-list","name":"Old list","currentPhase":2,"created":1700000000000,
		 "phases":[{"prompt":"p","response":"r1","completed":true},{"prompt":"","response":"same","completed":true},{}]},
		{"id":"legacy-map","title":"Old map","phase":2,
		 "phases":{"1":{"prompt":"p","response":"r1","completed":true},"2":{"prompt":"","response":"same","completed":true}}},
		{"id":"` + existing.ID + `","title":"dupe"},
		{"title":"no id"}
	]}`
	var backup domain.ProjectBackup
	require.NoError(t, json.Unmarshal([]byte(raw), &backup))

	res, err := env.Engine.Import(env.Ctx, backup, "tester")
	require.NoError(t, err)
	assert.Len(t, res.Imported, 3)
	assert.Equal(t, []string{existing.ID}, res.Skipped)

	list, err := env.Engine.GetProject(env.Ctx, "legacy-list")
	require.NoError(t, err)
	keyed, err := env.Engine.GetProject(env.Ctx, "legacy-map")
	require.NoError(t, err)

	assert.Equal(t, "Old list", list.Title)
	assert.Equal(t, "2023-11-14T22:13:20Z", list.CreatedAt)
	assert.Equal(t, workflow.CurrentPhase(&list), workflow.CurrentPhase(&keyed))
	assert.Equal(t, workflow.IsComplete(&list), workflow.IsComplete(&keyed))
	assert.Equal(t, workflow.Progress(&list), workflow.Progress(&keyed))
	assert.Equal(t, 67, workflow.Progress(&keyed))

	backupOut, err := env.Engine.Backup(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, backupOut.ProjectCount)
	assert.Equal(t, "2024-01-01T00:00:00Z", backupOut.ExportedAt)
}
