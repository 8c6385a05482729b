package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onepager/internal/domain"
	"onepager/internal/subst"
	"onepager/internal/templates"
)

func newProject() *domain.Project {
	return &domain.Project{
		ID:     "p1",
		Title:  "Faster Checkout",
		Phase:  1,
		Phases: domain.NewPhases(),
		FormData: domain.FormData{
			ProjectName:      "Faster Checkout",
			ProblemStatement: "Checkout takes 9 steps",
			ProposedSolution: "One-page checkout",
		},
	}
}

type fakeSource struct {
	byPhase map[int]string
	err     error
}

func (f fakeSource) PhaseTemplate(_ context.Context, phase int) (string, error) {
	if f.err != nil {
		return "", &templates.RetrievalError{Phase: phase, Err: f.err}
	}
	return f.byPhase[phase], nil
}

func TestPhaseMetadata(t *testing.T) {
	for n := 1; n <= 3; n++ {
		m, ok := PhaseMetadata(n)
		require.True(t, ok)
		assert.Equal(t, n, m.Number)
	}
	m, _ := PhaseMetadata(2)
	assert.Equal(t, "Gemini", m.AI)
	_, ok := PhaseMetadata(0)
	assert.False(t, ok)
	_, ok = PhaseMetadata(4)
	assert.False(t, ok)
	assert.Len(t, AllPhases(), 3)
}

func TestValidatePhaseCompletion(t *testing.T) {
	p := newProject()
	p.FormData.ProjectName = "   "
	assert.Equal(t, Validation{Error: "Please fill in the project name"}, ValidatePhaseCompletion(p))

	p = newProject()
	p.FormData.ProposedSolution = ""
	assert.Equal(t, "Please fill in the proposed solution", ValidatePhaseCompletion(p).Error)

	p = newProject()
	assert.Equal(t, "Please paste the AI response", ValidatePhaseCompletion(p).Error)

	require.NoError(t, SetResponse(p, "  \n "))
	assert.False(t, ValidatePhaseCompletion(p).Valid)
	assert.False(t, CurrentPhase(p).Completed)

	require.NoError(t, SetResponse(p, "# Faster Checkout\n\nA real draft."))
	assert.Equal(t, Validation{Valid: true}, ValidatePhaseCompletion(p))
}

func TestValidateLaterPhasesSkipFormCheck(t *testing.T) {
	p := newProject()
	p.FormData = domain.FormData{}
	p.Phase = 2
	require.NoError(t, SetResponse(p, "improved draft"))
	assert.True(t, ValidatePhaseCompletion(p).Valid)
}

func TestValidateRejectsPastedPrompt(t *testing.T) {
	p := newProject()
	tpl, err := templates.EmbeddedSource{}.PhaseTemplate(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, SetResponse(p, subst.Render(tpl, PromptVars(p, 1))))

	v := ValidatePhaseCompletion(p)
	assert.False(t, v.Valid)
	assert.Equal(t, pasteReason, v.Error)
}

func TestDetectPromptPaste(t *testing.T) {
	assert.False(t, DetectPromptPaste("# Plan\n\nWe will ship in Q3.").IsPrompt)
	assert.True(t, DetectPromptPaste("Hello {{PROJECT_NAME}}").IsPrompt)
	assert.True(t, DetectPromptPaste("You are an expert.\n<output_rules>\n- x\n</output_rules>").IsPrompt)
	assert.False(t, DetectPromptPaste("You are an expert reader, so here is the summary.").IsPrompt)
}

func TestAdvanceThroughAllPhases(t *testing.T) {
	p := newProject()
	assert.Equal(t, 0, Progress(p))

	want := []int{33, 67, 100}
	last := 0
	for i, w := range want {
		require.NoError(t, SetResponse(p, "response"))
		require.True(t, ValidatePhaseCompletion(p).Valid)
		require.True(t, Advance(p))
		assert.Equal(t, i+2, p.Phase)
		assert.Equal(t, w, Progress(p))
		assert.GreaterOrEqual(t, Progress(p), last)
		last = Progress(p)
	}
	assert.True(t, IsComplete(p))
	assert.Equal(t, domain.PhaseRecord{}, CurrentPhase(p))

	before := *p
	assert.False(t, Advance(p))
	assert.Equal(t, before.Phase, p.Phase)
	assert.Equal(t, 100, Progress(p))
	assert.ErrorIs(t, SetResponse(p, "late"), ErrWorkflowComplete)
	assert.ErrorIs(t, SetPrompt(p, "late"), ErrWorkflowComplete)
}

func TestPreviousKeepsCompletion(t *testing.T) {
	p := newProject()
	assert.False(t, Previous(p))

	require.NoError(t, SetResponse(p, "one"))
	Advance(p)
	require.True(t, Previous(p))
	assert.Equal(t, 1, p.Phase)
	assert.True(t, CurrentPhase(p).Completed)
	assert.Equal(t, 33, Progress(p))
}

func TestUnsetPhaseTreatedAsOne(t *testing.T) {
	p := newProject()
	p.Phase = 0
	assert.Equal(t, 1, PhaseNumber(p))
	require.NoError(t, SetResponse(p, "x"))
	assert.Equal(t, "x", p.Phases.Get(1).Response)
}

func TestListAndMapShapesAgree(t *testing.T) {
	records := []domain.PhaseRecord{
		{Prompt: "p1", Response: "r1", Completed: true},
		{Prompt: "p2", Response: "r2", Completed: true},
	}
	listed := newProject()
	listed.Phase = 2
	listed.Phases = domain.PhasesFromList(records)

	keyed := newProject()
	keyed.Phase = 2
	for i, r := range records {
		require.NoError(t, keyed.Phases.Set(i+1, r))
	}

	assert.Equal(t, CurrentPhase(listed), CurrentPhase(keyed))
	assert.Equal(t, IsComplete(listed), IsComplete(keyed))
	assert.Equal(t, Progress(listed), Progress(keyed))
	assert.Equal(t, 67, Progress(listed))
}

func TestGeneratePrompt(t *testing.T) {
	src := fakeSource{byPhase: map[int]string{
		1: "Name={{PROJECT_NAME}} Problem={{PROBLEM_STATEMENT}} Ctx={{CONTEXT}} Gone={{NOT_A_FIELD}}",
		2: "Review: {{PHASE1_OUTPUT}}",
		3: "A={{PHASE1_OUTPUT}} B={{PHASE2_OUTPUT}}",
	}}
	g := NewGenerator(src)
	ctx := context.Background()

	p := newProject()
	p.FormData.ProjectName = ""
	p.Context = "from project"
	prompt, err := g.GeneratePrompt(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "Name=Faster Checkout Problem=Checkout takes 9 steps Ctx=from project Gone=", prompt.Text)
	assert.Equal(t, []string{"NOT_A_FIELD"}, prompt.Dropped)
	assert.False(t, subst.Unresolved(prompt.Text))

	p.Phase = 2
	prompt, err = g.GeneratePrompt(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "Review: [No Phase 1 output]", prompt.Text)

	require.NoError(t, p.Phases.Set(1, domain.PhaseRecord{Response: "draft one", Completed: true}))
	p.Phase = 3
	prompt, err = g.GeneratePrompt(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "A=draft one B=[No Phase 2 output]", prompt.Text)

	p.Phase = 4
	_, err = g.GeneratePrompt(ctx, p)
	assert.ErrorIs(t, err, ErrWorkflowComplete)

	_, err = g.Render(ctx, p, 7)
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestGeneratePromptPropagatesRetrievalError(t *testing.T) {
	g := NewGenerator(fakeSource{err: errors.New("404")})
	p := newProject()
	before := p.Phases.Get(1)

	_, err := g.GeneratePrompt(context.Background(), p)
	var rerr *templates.RetrievalError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 1, rerr.Phase)
	assert.Equal(t, before, p.Phases.Get(1))
}

func TestEmbeddedPromptsRenderCleanly(t *testing.T) {
	g := NewGenerator(nil)
	p := newProject()
	for n := 1; n <= 3; n++ {
		prompt, err := g.Render(context.Background(), p, n)
		require.NoError(t, err)
		assert.False(t, subst.Unresolved(prompt.Text), "phase %d", n)
		assert.Empty(t, prompt.Dropped, "phase %d", n)
	}
}

func TestExport(t *testing.T) {
	p := newProject()
	p.Problems = "Carts are abandoned"
	assert.Equal(t, "# Faster Checkout\n\nCarts are abandoned", FinalMarkdown(p))

	require.NoError(t, p.Phases.Set(2, domain.PhaseRecord{Response: "two"}))
	assert.Equal(t, "two", FinalMarkdown(p))
	require.NoError(t, p.Phases.Set(1, domain.PhaseRecord{Response: "one"}))
	assert.Equal(t, "one", FinalMarkdown(p))
	require.NoError(t, p.Phases.Set(3, domain.PhaseRecord{Response: "three"}))
	assert.Equal(t, "three", FinalMarkdown(p))

	out := ExportMarkdown(p)
	assert.True(t, strings.HasPrefix(out, "three\n\n---\n\n"))
	assert.True(t, strings.HasSuffix(out, "*Generated with [One-Pager Assistant](https://bordenet.github.io/one-pager/)*"))
}

func TestExportFilename(t *testing.T) {
	cases := map[string]string{
		"Faster Checkout!": "faster-checkout--one-pager.md",
		"Q3 Plan":          "q3-plan-one-pager.md",
		"":                 "one-pager-one-pager.md",
		"Café":             "caf--one-pager.md",
	}
	for title, want := range cases {
		p := newProject()
		p.Title = title
		assert.Equal(t, want, ExportFilename(p), title)
	}
}
