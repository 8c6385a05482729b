package engine

import (
	"context"
	"errors"
	"fmt"

	"onepager/internal/domain"
	"onepager/internal/events"
	"onepager/internal/scoring"
	"onepager/internal/workflow"
)

// GeneratePrompt renders and stores the prompt for the active phase. A
// template failure returns before anything is written.
func (e Engine) GeneratePrompt(ctx context.Context, id, actorID string) (domain.Project, workflow.Prompt, error) {
	p, err := e.Repo.GetProject(ctx, id)
	if err != nil {
		return domain.Project{}, workflow.Prompt{}, err
	}
	prompt, err := e.Prompts.GeneratePrompt(ctx, &p)
	if err != nil {
		e.log().Warn("prompt generation failed", "project_id", id, "phase", p.Phase, "err", err)
		return domain.Project{}, workflow.Prompt{}, err
	}
	if len(prompt.Dropped) > 0 {
		e.log().Debug("placeholders without value removed", "project_id", id, "phase", prompt.Phase, "names", prompt.Dropped)
	}
	saved, err := e.mutate(ctx, id, events.PromptGenerated, actorID, func(p *domain.Project) (events.EventPayload, error) {
		if workflow.PhaseNumber(p) != prompt.Phase {
			return nil, fmt.Errorf("phase changed while generating prompt")
		}
		if err := workflow.SetPrompt(p, prompt.Text); err != nil {
			return nil, err
		}
		return events.EventPayload{"dropped": prompt.Dropped}, nil
	})
	if err != nil {
		return domain.Project{}, workflow.Prompt{}, err
	}
	return saved, prompt, nil
}

func (e Engine) SaveResponse(ctx context.Context, id, response, actorID string) (domain.Project, error) {
	return e.mutate(ctx, id, events.ResponseSaved, actorID, func(p *domain.Project) (events.EventPayload, error) {
		if err := workflow.SetResponse(p, response); err != nil {
			return nil, err
		}
		return events.EventPayload{"chars": len(response)}, nil
	})
}

func (e Engine) Validate(ctx context.Context, id string) (workflow.Validation, error) {
	p, err := e.Repo.GetProject(ctx, id)
	if err != nil {
		return workflow.Validation{}, err
	}
	return workflow.ValidatePhaseCompletion(&p), nil
}

var errAlreadyComplete = errors.New("already complete")

// Advance validates the active phase and moves to the next one. Once every
// phase is done it returns the project unchanged with advanced false and
// records no event.
func (e Engine) Advance(ctx context.Context, id, actorID string) (domain.Project, bool, error) {
	p, err := e.mutate(ctx, id, events.PhaseAdvanced, actorID, func(p *domain.Project) (events.EventPayload, error) {
		from := workflow.PhaseNumber(p)
		if from > domain.PhaseCount {
			return nil, errAlreadyComplete
		}
		if v := workflow.ValidatePhaseCompletion(p); !v.Valid {
			return nil, &ValidationError{Message: v.Error}
		}
		workflow.Advance(p)
		return events.EventPayload{"from": from, "complete": workflow.IsComplete(p)}, nil
	})
	if errors.Is(err, errAlreadyComplete) {
		p, err = e.Repo.GetProject(ctx, id)
		return p, false, err
	}
	if err != nil {
		return domain.Project{}, false, err
	}
	return p, true, nil
}

// Back moves to the previous phase. Completion flags are kept.
func (e Engine) Back(ctx context.Context, id, actorID string) (domain.Project, error) {
	return e.mutate(ctx, id, events.PhaseBack, actorID, func(p *domain.Project) (events.EventPayload, error) {
		from := workflow.PhaseNumber(p)
		if !workflow.Previous(p) {
			return nil, ErrAtFirstPhase
		}
		return events.EventPayload{"from": from}, nil
	})
}

// Score grades the project's final markdown.
func (e Engine) Score(ctx context.Context, id string) (scoring.Result, error) {
	p, err := e.Repo.GetProject(ctx, id)
	if err != nil {
		return scoring.Result{}, err
	}
	return e.ScoreText(workflow.FinalMarkdown(&p)), nil
}

func (e Engine) ScoreText(text string) scoring.Result {
	return e.Scorer.Score(text)
}

// Export is a downloadable document.
type Export struct {
	Filename string `json:"filename"`
	Markdown string `json:"markdown"`
}

func (e Engine) Export(ctx context.Context, id string) (Export, error) {
	p, err := e.Repo.GetProject(ctx, id)
	if err != nil {
		return Export{}, err
	}
	return Export{Filename: workflow.ExportFilename(&p), Markdown: workflow.ExportMarkdown(&p)}, nil
}
