package server

import (
	"encoding/json"

	"onepager/internal/domain"
	"onepager/internal/engine"
	"onepager/internal/scoring"
	"onepager/internal/workflow"
)

// Request payloads

type CreateProjectRequest struct {
	Title    string            `json:"title,omitempty"`
	Problems string            `json:"problems,omitempty"`
	Context  string            `json:"context,omitempty"`
	Starter  string            `json:"starter,omitempty" enum:"blank,statusUpdate,featurePitch,budgetAsk,incidentRetro"`
	FormData *domain.FormPatch `json:"formData,omitempty"`
}

type UpdateProjectRequest struct {
	Title    *string `json:"title,omitempty"`
	Problems *string `json:"problems,omitempty"`
	Context  *string `json:"context,omitempty"`
}

type SaveResponseRequest struct {
	Response string `json:"response"`
}

type ScoreRequest struct {
	Text string `json:"text"`
}

type ScorePromptRequest struct {
	Text string `json:"text"`
	Kind string `json:"kind,omitempty" enum:"score,critique,rewrite" default:"score"`
}

// Response payloads

// ProjectResponse is the canonical project document plus derived progress.
type ProjectResponse struct {
	ID           string                        `json:"id"`
	Title        string                        `json:"title"`
	Problems     string                        `json:"problems"`
	Context      string                        `json:"context"`
	Phase        int                           `json:"phase" minimum:"1" maximum:"4"`
	CurrentPhase int                           `json:"currentPhase" minimum:"1" maximum:"4"`
	FormData     domain.FormData               `json:"formData"`
	Phases       map[string]domain.PhaseRecord `json:"phases"`
	Progress     int                           `json:"progress" minimum:"0" maximum:"100"`
	IsComplete   bool                          `json:"isComplete"`
	CreatedAt    string                        `json:"createdAt" format:"date-time"`
	UpdatedAt    string                        `json:"updatedAt" format:"date-time"`
}

// AdvanceResponse is the project after an advance. Advanced is false when
// the project was already complete.
type AdvanceResponse struct {
	ProjectResponse
	Advanced bool `json:"advanced"`
}

type PhaseStateResponse struct {
	Phase      int                 `json:"phase"`
	Complete   bool                `json:"complete"`
	Metadata   *workflow.Metadata  `json:"metadata,omitempty"`
	Record     domain.PhaseRecord  `json:"record"`
	Progress   int                 `json:"progress"`
	Validation workflow.Validation `json:"validation"`
}

type PromptResponse struct {
	Phase   int      `json:"phase"`
	Prompt  string   `json:"prompt"`
	Dropped []string `json:"dropped"`
	ChatURL string   `json:"chat_url,omitempty"`
}

type ScorePromptResponse struct {
	Kind   string `json:"kind"`
	Prompt string `json:"prompt"`
}

type ExportResponse = engine.Export

type ScoreResponse = scoring.Result

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	ProjectID  string         `json:"project_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func projectResponse(p domain.Project) ProjectResponse {
	phase := domain.NormalizePhase(p.Phase)
	return ProjectResponse{
		ID:           p.ID,
		Title:        p.Title,
		Problems:     p.Problems,
		Context:      p.Context,
		Phase:        phase,
		CurrentPhase: phase,
		FormData:     p.FormData,
		Phases:       p.Phases.Map(),
		Progress:     workflow.Progress(&p),
		IsComplete:   workflow.IsComplete(&p),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func mapProjects(items []domain.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		out = append(out, projectResponse(p))
	}
	return out
}

func phaseStateResponse(p domain.Project) PhaseStateResponse {
	n := workflow.PhaseNumber(&p)
	res := PhaseStateResponse{
		Phase:      n,
		Complete:   n > domain.PhaseCount,
		Record:     workflow.CurrentPhase(&p),
		Progress:   workflow.Progress(&p),
		Validation: workflow.ValidatePhaseCompletion(&p),
	}
	if meta, ok := workflow.PhaseMetadata(n); ok {
		res.Metadata = &meta
	}
	return res
}

func promptResponse(pr workflow.Prompt) PromptResponse {
	res := PromptResponse{Phase: pr.Phase, Prompt: pr.Text, Dropped: nonNilSlice(pr.Dropped)}
	if meta, ok := workflow.PhaseMetadata(pr.Phase); ok {
		res.ChatURL = meta.ChatURL
	}
	return res
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		ProjectID:  e.ProjectID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
