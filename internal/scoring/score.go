// Package scoring grades one-pager markdown against a fixed 100 point rubric
// using keyword and pattern heuristics.
package scoring

import (
	"fmt"
	"strings"
)

// DefaultMinLength is the trimmed length below which a document is not scored.
const DefaultMinLength = 50

const (
	MaxProblemClarity = 30
	MaxSolution       = 25
	MaxScope          = 25
	MaxCompleteness   = 20
)

type Dimension struct {
	Score     int      `json:"score"`
	MaxScore  int      `json:"max_score"`
	Issues    []string `json:"issues"`
	Strengths []string `json:"strengths"`
}

func newDimension(max int) Dimension {
	return Dimension{MaxScore: max, Issues: []string{}, Strengths: []string{}}
}

func (d *Dimension) add(points int, strength string) {
	d.Score += points
	if strength != "" {
		d.Strengths = append(d.Strengths, strength)
	}
}

func (d *Dimension) partial(points int, issue string) {
	d.Score += points
	d.Issues = append(d.Issues, issue)
}

func (d *Dimension) clamp() {
	if d.Score > d.MaxScore {
		d.Score = d.MaxScore
	}
}

type Result struct {
	Total          int             `json:"total"`
	Label          string          `json:"label"`
	Color          string          `json:"color"`
	ProblemClarity Dimension       `json:"problem_clarity"`
	Solution       Dimension       `json:"solution"`
	Scope          Dimension       `json:"scope"`
	Completeness   Dimension       `json:"completeness"`
	CircularLogic  CircularFinding `json:"circular_logic"`
	BaselineTarget BaselineFinding `json:"baseline_target"`
	Notes          []string        `json:"notes"`
}

// Issues flattens the issue lists of every dimension in rubric order.
func (r Result) Issues() []string {
	var out []string
	for _, d := range []Dimension{r.ProblemClarity, r.Solution, r.Scope, r.Completeness} {
		out = append(out, d.Issues...)
	}
	return out
}

// Scorer scores documents. The zero value uses DefaultMinLength.
type Scorer struct {
	MinLength int
}

// Score grades text with the default Scorer.
func Score(text string) Result {
	return Scorer{}.Score(text)
}

func (s Scorer) Score(text string) Result {
	floor := s.MinLength
	if floor <= 0 {
		floor = DefaultMinLength
	}
	if len([]rune(strings.TrimSpace(text))) < floor {
		return emptyResult()
	}
	r := Result{
		ProblemClarity: scoreProblemClarity(text),
		Solution:       scoreSolution(text),
		Scope:          scoreScope(text),
		Completeness:   scoreCompleteness(text),
		CircularLogic:  DetectCircularLogic(text),
		BaselineTarget: DetectBaselineTarget(text),
		Notes:          []string{},
	}
	if r.CircularLogic.IsCircular {
		r.Notes = append(r.Notes, "Circular logic: the solution restates the problem. Address the root cause instead")
	}
	if r.BaselineTarget.HasVagueMetrics && !r.BaselineTarget.HasBaselineTarget {
		r.Notes = append(r.Notes, `Vague metrics without baselines. Use [Current] → [Target], e.g. "100/day → 30/day"`)
	}
	total := r.ProblemClarity.Score + r.Solution.Score + r.Scope.Score + r.Completeness.Score
	r.Total = max(0, min(100, total))
	r.Label = Label(r.Total)
	r.Color = Color(r.Total)
	return r
}

func emptyResult() Result {
	return Result{
		Label:          Label(0),
		Color:          Color(0),
		ProblemClarity: newDimension(MaxProblemClarity),
		Solution:       newDimension(MaxSolution),
		Scope:          newDimension(MaxScope),
		Completeness:   newDimension(MaxCompleteness),
		Notes:          []string{},
	}
}

func scoreProblemClarity(text string) Dimension {
	d := newDimension(MaxProblemClarity)
	problem := DetectProblemStatement(text)
	switch {
	case problem.HasSection && problem.HasLanguage:
		d.add(10, "Clear problem statement with a dedicated section")
	case problem.HasLanguage:
		d.partial(6, "Problem mentioned but has no dedicated problem statement section")
	default:
		d.partial(0, "Missing problem statement section - define the specific problem")
	}

	cost := DetectCostOfInaction(text)
	switch {
	case cost.HasLanguage && cost.IsQuantified:
		d.add(10, "Cost of inaction quantified")
	case cost.HasLanguage:
		d.partial(5, "Cost of inaction mentioned but not quantified - add amounts or percentages")
	default:
		d.partial(0, "Missing cost of inaction - explain what happens if nothing is done")
	}

	if problem.HasBusinessFocus {
		d.add(10, "Problem tied to customer or business value")
	} else {
		d.partial(0, "Tie the problem to customer or business impact")
	}
	d.clamp()
	return d
}

func scoreSolution(text string) Dimension {
	d := newDimension(MaxSolution)
	solution := DetectSolution(text)
	problem := DetectProblemStatement(text)
	switch {
	case solution.HasSection && problem.HasLanguage:
		d.add(10, "Solution section maps back to the stated problem")
	case solution.HasLanguage:
		d.partial(6, "Solution present but its link to the problem is unclear")
	default:
		d.partial(0, "Missing solution section")
	}

	goals := DetectMeasurableGoals(text)
	switch {
	case goals.HasMeasurable && goals.HasGoals:
		d.add(10, "Goals are measurable")
	case goals.HasGoals:
		d.partial(5, "Goals defined but not measurable - add numeric targets")
	default:
		d.partial(0, "Missing goals - define what success looks like")
	}

	switch {
	case solution.IsHighLevel:
		d.add(5, "Solution stays high-level")
	case solution.HasImplementation:
		d.partial(0, "Solution includes implementation detail - keep it high-level")
	}
	d.clamp()
	return d
}

func scoreScope(text string) Dimension {
	d := newDimension(MaxScope)
	scope := DetectScope(text)
	switch {
	case scope.HasInScope && scope.HasSection:
		d.add(8, "In-scope items clearly defined")
	case scope.HasInScope:
		d.partial(4, "In-scope items mentioned without a scope section")
	default:
		d.partial(0, "In-scope not defined - list what you will do")
	}

	if scope.HasOutOfScope {
		d.add(9, "Out-of-scope explicitly defined")
	} else {
		d.partial(0, "No out-of-scope items found - state explicitly what you won't do")
	}

	metrics := DetectSuccessMetrics(text)
	switch {
	case metrics.HasSection && metrics.HasQuantified:
		d.add(8, "Success metrics are quantified")
	case metrics.HasMetrics:
		d.partial(4, "Metrics present but not SMART - make them specific, measurable and time-bound")
	default:
		d.partial(0, "Missing success metrics - define how success is measured")
	}
	d.clamp()
	return d
}

func scoreCompleteness(text string) Dimension {
	d := newDimension(MaxCompleteness)
	sections := DetectSections(text)
	switch {
	case sections.Coverage >= 0.85:
		d.add(8, fmt.Sprintf("%d/%d expected sections present", len(sections.Found), len(requiredSections)))
	case sections.Coverage >= 0.70:
		d.partial(5, "Missing sections: "+strings.Join(sections.Missing, ", "))
	default:
		d.partial(2, fmt.Sprintf("Only %d of %d expected sections present", len(sections.Found), len(requiredSections)))
	}

	people := DetectStakeholders(text)
	switch {
	case people.HasSection && people.HasRoles:
		d.add(6, "Stakeholders and roles identified")
	case people.HasMentions:
		d.partial(3, "Stakeholders mentioned but roles are not defined")
	default:
		d.partial(0, "Missing stakeholders - name who is involved and their role")
	}

	timeline := DetectTimeline(text)
	switch {
	case timeline.HasSection && timeline.HasPhasing:
		d.add(6, "Timeline is phased")
	case timeline.HasTimeline:
		d.partial(3, "Timeline present but not phased")
	default:
		d.partial(0, "Missing timeline - give milestones and phases")
	}
	d.clamp()
	return d
}
