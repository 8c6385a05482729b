// Package workflow implements the three-phase one-pager state machine. Every
// function here is pure over *domain.Project except prompt generation, which
// fetches a template.
package workflow

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"onepager/internal/domain"
	"onepager/internal/subst"
)

var (
	ErrWorkflowComplete = errors.New("workflow is complete")
	ErrInvalidPhase     = errors.New("invalid phase")
)

const (
	noPhase1Output = "[No Phase 1 output]"
	noPhase2Output = "[No Phase 2 output]"

	attribution = "\n\n---\n\n*Generated with [One-Pager Assistant](https://bordenet.github.io/one-pager/)*"
)

// Validation is the outcome of a pre-advance check. Error is a message meant
// for the user.
type Validation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// PhaseNumber returns the active ordinal, treating unset values as 1.
func PhaseNumber(p *domain.Project) int {
	return domain.NormalizePhase(p.Phase)
}

// CurrentPhase returns the record of the active phase. Once the workflow is
// complete this is the empty default record.
func CurrentPhase(p *domain.Project) domain.PhaseRecord {
	return p.Phases.Get(PhaseNumber(p))
}

// SetPrompt stores a freshly generated prompt on the active phase.
func SetPrompt(p *domain.Project, prompt string) error {
	n := PhaseNumber(p)
	if n > domain.PhaseCount {
		return ErrWorkflowComplete
	}
	rec := p.Phases.Get(n)
	rec.Prompt = prompt
	return p.Phases.Set(n, rec)
}

// SetResponse stores the pasted AI reply on the active phase. The phase counts
// as completed exactly when the trimmed reply is non-empty.
func SetResponse(p *domain.Project, response string) error {
	n := PhaseNumber(p)
	if n > domain.PhaseCount {
		return ErrWorkflowComplete
	}
	rec := p.Phases.Get(n)
	rec.Response = response
	rec.Completed = strings.TrimSpace(response) != ""
	return p.Phases.Set(n, rec)
}

// UpdateFormData applies a partial form update.
func UpdateFormData(p *domain.Project, patch domain.FormPatch) {
	patch.Apply(&p.FormData)
}

var requiredFields = []struct {
	label string
	get   func(domain.FormData) string
}{
	{"project name", func(f domain.FormData) string { return f.ProjectName }},
	{"problem statement", func(f domain.FormData) string { return f.ProblemStatement }},
	{"proposed solution", func(f domain.FormData) string { return f.ProposedSolution }},
}

// ValidatePhaseCompletion checks whether the active phase may advance.
func ValidatePhaseCompletion(p *domain.Project) Validation {
	n := PhaseNumber(p)
	if n > domain.PhaseCount {
		return Validation{Error: "All phases are already complete"}
	}
	if n == 1 {
		for _, field := range requiredFields {
			if strings.TrimSpace(field.get(p.FormData)) == "" {
				return Validation{Error: fmt.Sprintf("Please fill in the %s", field.label)}
			}
		}
	}
	rec := p.Phases.Get(n)
	if strings.TrimSpace(rec.Response) == "" {
		return Validation{Error: "Please paste the AI response"}
	}
	if check := DetectPromptPaste(rec.Response); check.IsPrompt {
		return Validation{Error: check.Reason}
	}
	return Validation{Valid: true}
}

// Advance marks the active phase completed and moves to the next ordinal.
// It reports false and changes nothing once the workflow is complete.
// Callers validate first.
func Advance(p *domain.Project) bool {
	n := PhaseNumber(p)
	if n > domain.PhaseCount {
		return false
	}
	rec := p.Phases.Get(n)
	rec.Completed = true
	_ = p.Phases.Set(n, rec)
	p.Phase = n + 1
	return true
}

// Previous moves back one phase without touching completion flags.
func Previous(p *domain.Project) bool {
	n := PhaseNumber(p)
	if n <= 1 {
		return false
	}
	p.Phase = n - 1
	return true
}

// IsComplete reports whether all three phases are completed.
func IsComplete(p *domain.Project) bool {
	return completedCount(p) == domain.PhaseCount
}

// Progress is the completed share of phases as a whole percentage.
func Progress(p *domain.Project) int {
	return int(math.Round(float64(completedCount(p)) / domain.PhaseCount * 100))
}

func completedCount(p *domain.Project) int {
	n := 0
	for i := 1; i <= domain.PhaseCount; i++ {
		if p.Phases.Get(i).Completed {
			n++
		}
	}
	return n
}

// PasteCheck reports whether a response looks like one of our own prompts.
type PasteCheck struct {
	IsPrompt bool   `json:"is_prompt"`
	Reason   string `json:"reason,omitempty"`
}

const pasteReason = "This looks like the prompt, not the AI response. Paste the reply you got back from the AI instead"

var promptMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)</?output_rules>`),
	regexp.MustCompile(`(?m)^#{1,3}\s*YOUR TASK\s*$`),
	regexp.MustCompile(`(?i)^\s*you are an? (expert|skeptical|senior)\b`),
	regexp.MustCompile(`(?m)^##\s*(Draft to review|Version [AB] \()`),
}

// DetectPromptPaste flags text that carries the structural markers of a
// generated prompt or still has unfilled placeholders.
func DetectPromptPaste(text string) PasteCheck {
	if subst.Unresolved(text) {
		return PasteCheck{IsPrompt: true, Reason: pasteReason}
	}
	hits := 0
	for _, re := range promptMarkers {
		if re.MatchString(text) {
			hits++
		}
	}
	if hits >= 2 {
		return PasteCheck{IsPrompt: true, Reason: pasteReason}
	}
	return PasteCheck{}
}

// FinalMarkdown picks the best available document: the phase 3 reply, then
// phase 1, then phase 2, then a stub built from the title and problem.
func FinalMarkdown(p *domain.Project) string {
	for _, n := range []int{3, 1, 2} {
		if resp := p.Phases.Get(n).Response; strings.TrimSpace(resp) != "" {
			return resp
		}
	}
	return fmt.Sprintf("# %s\n\n%s", p.Title, p.Problems)
}

// ExportMarkdown is FinalMarkdown with the attribution footer.
func ExportMarkdown(p *domain.Project) string {
	return FinalMarkdown(p) + attribution
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// ExportFilename derives the download name from the title.
func ExportFilename(p *domain.Project) string {
	title := p.Title
	if title == "" {
		title = "one-pager"
	}
	return strings.ToLower(nonAlnum.ReplaceAllString(title, "-")) + "-one-pager.md"
}
