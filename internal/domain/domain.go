package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// PhaseCount is the number of working phases; ordinal PhaseCount+1 means complete.
const (
	PhaseCount    = 3
	PhaseComplete = PhaseCount + 1
)

type PhaseRecord struct {
	Prompt    string `json:"prompt"`
	Response  string `json:"response"`
	Completed bool   `json:"completed"`
}

// FormData holds the structured answers collected before phase 1.
type FormData struct {
	ProjectName        string `json:"projectName" yaml:"projectName"`
	ProblemStatement   string `json:"problemStatement" yaml:"problemStatement"`
	CostOfDoingNothing string `json:"costOfDoingNothing" yaml:"costOfDoingNothing"`
	ProposedSolution   string `json:"proposedSolution" yaml:"proposedSolution"`
	KeyGoals           string `json:"keyGoals" yaml:"keyGoals"`
	ScopeInScope       string `json:"scopeInScope" yaml:"scopeInScope"`
	ScopeOutOfScope    string `json:"scopeOutOfScope" yaml:"scopeOutOfScope"`
	SuccessMetrics     string `json:"successMetrics" yaml:"successMetrics"`
	KeyStakeholders    string `json:"keyStakeholders" yaml:"keyStakeholders"`
	TimelineEstimate   string `json:"timelineEstimate" yaml:"timelineEstimate"`
	Context            string `json:"context" yaml:"context"`
}

// Vars returns the template variables for the form, keyed by upper snake case.
func (f FormData) Vars() map[string]string {
	return map[string]string{
		"PROJECT_NAME":          f.ProjectName,
		"PROBLEM_STATEMENT":     f.ProblemStatement,
		"COST_OF_DOING_NOTHING": f.CostOfDoingNothing,
		"PROPOSED_SOLUTION":     f.ProposedSolution,
		"KEY_GOALS":             f.KeyGoals,
		"SCOPE_IN_SCOPE":        f.ScopeInScope,
		"SCOPE_OUT_OF_SCOPE":    f.ScopeOutOfScope,
		"SUCCESS_METRICS":       f.SuccessMetrics,
		"KEY_STAKEHOLDERS":      f.KeyStakeholders,
		"TIMELINE_ESTIMATE":     f.TimelineEstimate,
		"CONTEXT":               f.Context,
	}
}

// FormPatch carries a partial form update. Nil fields are left untouched.
type FormPatch struct {
	ProjectName        *string `json:"projectName,omitempty"`
	ProblemStatement   *string `json:"problemStatement,omitempty"`
	CostOfDoingNothing *string `json:"costOfDoingNothing,omitempty"`
	ProposedSolution   *string `json:"proposedSolution,omitempty"`
	KeyGoals           *string `json:"keyGoals,omitempty"`
	ScopeInScope       *string `json:"scopeInScope,omitempty"`
	ScopeOutOfScope    *string `json:"scopeOutOfScope,omitempty"`
	SuccessMetrics     *string `json:"successMetrics,omitempty"`
	KeyStakeholders    *string `json:"keyStakeholders,omitempty"`
	TimelineEstimate   *string `json:"timelineEstimate,omitempty"`
	Context            *string `json:"context,omitempty"`
}

// Apply copies every non-nil field of the patch into f.
func (p FormPatch) Apply(f *FormData) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&f.ProjectName, p.ProjectName)
	set(&f.ProblemStatement, p.ProblemStatement)
	set(&f.CostOfDoingNothing, p.CostOfDoingNothing)
	set(&f.ProposedSolution, p.ProposedSolution)
	set(&f.KeyGoals, p.KeyGoals)
	set(&f.ScopeInScope, p.ScopeInScope)
	set(&f.ScopeOutOfScope, p.ScopeOutOfScope)
	set(&f.SuccessMetrics, p.SuccessMetrics)
	set(&f.KeyStakeholders, p.KeyStakeholders)
	set(&f.TimelineEstimate, p.TimelineEstimate)
	set(&f.Context, p.Context)
}

// Empty reports whether the patch changes nothing.
func (p FormPatch) Empty() bool {
	return p.ProjectName == nil && p.ProblemStatement == nil && p.CostOfDoingNothing == nil &&
		p.ProposedSolution == nil && p.KeyGoals == nil && p.ScopeInScope == nil &&
		p.ScopeOutOfScope == nil && p.SuccessMetrics == nil && p.KeyStakeholders == nil &&
		p.TimelineEstimate == nil && p.Context == nil
}

// Project is one one-pager document and its workflow state.
type Project struct {
	ID        string
	Title     string
	Problems  string
	Context   string
	Phase     int
	FormData  FormData
	Phases    Phases
	CreatedAt string
	UpdatedAt string
}

type projectJSON struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Problems     string   `json:"problems"`
	Context      string   `json:"context"`
	Phase        int      `json:"phase"`
	CurrentPhase int      `json:"currentPhase"`
	FormData     FormData `json:"formData"`
	Phases       Phases   `json:"phases"`
	CreatedAt    string   `json:"createdAt"`
	UpdatedAt    string   `json:"updatedAt"`
}

// legacyProjectJSON covers every field name older exports have used.
type legacyProjectJSON struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Name         string          `json:"name"`
	Problems     string          `json:"problems"`
	Description  string          `json:"description"`
	Context      string          `json:"context"`
	Phase        *int            `json:"phase"`
	CurrentPhase *int            `json:"currentPhase"`
	FormData     FormData        `json:"formData"`
	Phases       Phases          `json:"phases"`
	CreatedAt    json.RawMessage `json:"createdAt"`
	UpdatedAt    json.RawMessage `json:"updatedAt"`
	Created      json.RawMessage `json:"created"`
	Modified     json.RawMessage `json:"modified"`
}

// MarshalJSON writes the canonical shape with phase and currentPhase in sync.
func (p Project) MarshalJSON() ([]byte, error) {
	phase := NormalizePhase(p.Phase)
	return json.Marshal(projectJSON{
		ID:           p.ID,
		Title:        p.Title,
		Problems:     p.Problems,
		Context:      p.Context,
		Phase:        phase,
		CurrentPhase: phase,
		FormData:     p.FormData,
		Phases:       p.Phases,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	})
}

// UnmarshalJSON accepts the canonical shape and the legacy synonyms. A
// positive currentPhase wins over phase; zero or missing values fall through.
func (p *Project) UnmarshalJSON(data []byte) error {
	var raw legacyProjectJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	phase := 1
	switch {
	case raw.CurrentPhase != nil && *raw.CurrentPhase > 0:
		phase = *raw.CurrentPhase
	case raw.Phase != nil && *raw.Phase > 0:
		phase = *raw.Phase
	}
	*p = Project{
		ID:        raw.ID,
		Title:     firstNonEmpty(raw.Title, raw.Name),
		Problems:  firstNonEmpty(raw.Problems, raw.Description),
		Context:   raw.Context,
		Phase:     NormalizePhase(phase),
		FormData:  raw.FormData,
		Phases:    raw.Phases,
		CreatedAt: firstNonEmpty(timestamp(raw.CreatedAt), timestamp(raw.Created)),
		UpdatedAt: firstNonEmpty(timestamp(raw.UpdatedAt), timestamp(raw.Modified)),
	}
	return nil
}

// NormalizePhase clamps an ordinal into 1..PhaseComplete.
func NormalizePhase(n int) int {
	if n <= 0 {
		return 1
	}
	if n > PhaseComplete {
		return PhaseComplete
	}
	return n
}

// timestamp reads either an RFC 3339 string or epoch milliseconds.
func timestamp(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC().Format(time.RFC3339)
		}
		return s
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(int64(ms)).UTC().Format(time.RFC3339)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// ProjectBackup is the export format for a set of projects.
type ProjectBackup struct {
	Version      int       `json:"version"`
	ExportedAt   string    `json:"exportedAt"`
	ProjectCount int       `json:"projectCount"`
	Projects     []Project `json:"projects"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
