package workflow

import (
	"context"
	"fmt"
	"strings"

	"onepager/internal/domain"
	"onepager/internal/subst"
	"onepager/internal/templates"
)

// Prompt is a rendered phase prompt. Dropped lists placeholders the template
// used that had no value.
type Prompt struct {
	Phase   int      `json:"phase"`
	Text    string   `json:"text"`
	Dropped []string `json:"dropped,omitempty"`
}

// Generator renders phase prompts from a template source.
type Generator struct {
	Templates templates.Source
}

func NewGenerator(src templates.Source) *Generator {
	if src == nil {
		src = templates.EmbeddedSource{}
	}
	return &Generator{Templates: src}
}

// GeneratePrompt renders the prompt for the active phase. It does not modify
// the project; template failures come back as *templates.RetrievalError.
func (g *Generator) GeneratePrompt(ctx context.Context, p *domain.Project) (Prompt, error) {
	n := PhaseNumber(p)
	if n > domain.PhaseCount {
		return Prompt{}, ErrWorkflowComplete
	}
	return g.Render(ctx, p, n)
}

// Render renders the prompt for phase n regardless of the active phase.
func (g *Generator) Render(ctx context.Context, p *domain.Project, n int) (Prompt, error) {
	if n < 1 || n > domain.PhaseCount {
		return Prompt{}, fmt.Errorf("%w: %d", ErrInvalidPhase, n)
	}
	tpl, err := g.Templates.PhaseTemplate(ctx, n)
	if err != nil {
		return Prompt{}, err
	}
	text, dropped := subst.RenderReport(tpl, PromptVars(p, n))
	return Prompt{Phase: n, Text: text, Dropped: dropped}, nil
}

// PromptVars builds the substitution map for phase n.
func PromptVars(p *domain.Project, n int) map[string]string {
	switch n {
	case 1:
		form := p.FormData
		form.ProjectName = orElse(form.ProjectName, p.Title)
		form.ProblemStatement = orElse(form.ProblemStatement, p.Problems)
		form.Context = orElse(form.Context, p.Context)
		return form.Vars()
	case 2:
		return map[string]string{
			"PHASE1_OUTPUT": orElse(p.Phases.Get(1).Response, noPhase1Output),
		}
	case 3:
		return map[string]string{
			"PHASE1_OUTPUT": orElse(p.Phases.Get(1).Response, noPhase1Output),
			"PHASE2_OUTPUT": orElse(p.Phases.Get(2).Response, noPhase2Output),
		}
	default:
		return map[string]string{}
	}
}

func orElse(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
