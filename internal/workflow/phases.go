package workflow

import "onepager/internal/domain"

// Metadata describes a working phase for display.
type Metadata struct {
	Number      int    `json:"number"`
	Name        string `json:"name"`
	AI          string `json:"ai"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	Description string `json:"description"`
	ChatURL     string `json:"chat_url"`
}

var phaseTable = [domain.PhaseCount]Metadata{
	{
		Number:      1,
		Name:        "Initial Draft",
		AI:          "Claude",
		Icon:        "📝",
		Color:       "blue",
		Description: "Generate the first draft of your one-pager using Claude",
		ChatURL:     "https://claude.ai/new",
	},
	{
		Number:      2,
		Name:        "Alternative Perspective",
		AI:          "Gemini",
		Icon:        "🔄",
		Color:       "green",
		Description: "Get a different perspective and improvements from Gemini",
		ChatURL:     "https://gemini.google.com/app",
	},
	{
		Number:      3,
		Name:        "Final Synthesis",
		AI:          "Claude",
		Icon:        "✨",
		Color:       "purple",
		Description: "Combine the best elements into a polished final version",
		ChatURL:     "https://claude.ai/new",
	},
}

// PhaseMetadata returns the metadata for phase n; false outside 1..3.
func PhaseMetadata(n int) (Metadata, bool) {
	if n < 1 || n > domain.PhaseCount {
		return Metadata{}, false
	}
	return phaseTable[n-1], true
}

// AllPhases lists the metadata of every working phase in order.
func AllPhases() []Metadata {
	out := make([]Metadata, len(phaseTable))
	copy(out, phaseTable[:])
	return out
}
