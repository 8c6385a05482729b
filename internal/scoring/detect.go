package scoring

import (
	"regexp"
	"strings"
	"unicode"
)

type sectionRule struct {
	name    string
	pattern *regexp.Regexp
	weight  int
}

var requiredSections = []sectionRule{
	{"Problem/Challenge", regexp.MustCompile(`(?im)^#+\s*(problem|challenge|pain.?point|context)`), 2},
	{"Solution/Proposal", regexp.MustCompile(`(?im)^#+\s*(solution|proposal|approach|recommendation)`), 2},
	{"Goals/Benefits", regexp.MustCompile(`(?im)^#+\s*(goal|objective|benefit|outcome)`), 2},
	{"Scope Definition", regexp.MustCompile(`(?im)^#+\s*(scope|in.scope|out.of.scope|boundary|boundaries)`), 2},
	{"Success Metrics", regexp.MustCompile(`(?im)^#+\s*(success|metric|kpi|measure)`), 1},
	{"Stakeholders/Team", regexp.MustCompile(`(?im)^#+\s*(stakeholder|team|owner|raci|responsible)`), 1},
	{"Timeline/Milestones", regexp.MustCompile(`(?im)^#+\s*(timeline|milestone|phase|schedule|roadmap)`), 1},
}

var (
	problemSection   = regexp.MustCompile(`(?im)^#+\s*(problem|challenge|pain.?point|context|why)`)
	problemLanguage  = regexp.MustCompile(`(?i)\b(problem|challenge|pain.?point|issue|struggle|difficult|frustrat\w*|current.?state|today|existing)\b`)
	costLanguage     = regexp.MustCompile(`(?i)\b(cost|impact|consequence|risk|without|if.?not|delay|postpone|inaction|doing.?nothing|status.?quo)\b`)
	costSection      = regexp.MustCompile(`(?im)^#+\s*(cost|impact|consequence|risk|why.now|urgency)`)
	quantified       = regexp.MustCompile(`(?i)(\$\s*\d|\d+\s*(%|million|thousand|hour|day|week|month|year|\$|dollar|user|customer|transaction|request|response))`)
	businessLanguage = regexp.MustCompile(`(?i)\b(business|customer|user|market|revenue|profit|competitive|strategic|value)\b`)

	solutionSection  = regexp.MustCompile(`(?im)^#+\s*(solution|proposal|approach|recommendation|how)`)
	solutionLanguage = regexp.MustCompile(`(?i)\b(solution|approach|proposal|implement|build|create|develop|enable|provide|deliver)\b`)
	measurable       = regexp.MustCompile(`(?i)\b(measure|metric|kpi|track|monitor|quantify|achieve|reach|target|goal)\b`)
	goalLanguage     = regexp.MustCompile(`(?i)\b(goal|objective|benefit|outcome|result)s?\b`)
	highLevel        = regexp.MustCompile(`(?i)\b(overview|summary|high.?level|architecture|design|flow|process|workflow)\b`)
	implementation   = regexp.MustCompile(`(?i)\b(code|function|class|method|api|database|sql|algorithm|library|framework)\b`)

	inScope      = regexp.MustCompile(`(?i)\b(in.scope|included|within.scope|we.will|we.are|we.provide|we.deliver)\b`)
	outOfScope   = regexp.MustCompile(`(?i)\b(out.of.scope|not.included|excluded|we.will.not|won't|outside.scope|future|phase.2|post.mvp|not.in.v1)\b`)
	scopeSection = regexp.MustCompile(`(?im)^#+\s*(scope|boundaries|in.scope|out.of.scope)`)

	smartLanguage   = regexp.MustCompile(`(?i)\b(specific|measurable|achievable|relevant|time.bound|smart)\b`)
	metricsSection  = regexp.MustCompile(`(?im)^#+\s*(success|metric|kpi|measure)`)
	metricsLanguage = regexp.MustCompile(`(?i)\b(metric|kpi|measure|target|goal|achieve|reach|improve|reduce|increase)\b`)

	stakeholderSection  = regexp.MustCompile(`(?im)^#+\s*(stakeholder|team|owner|raci|responsible)`)
	stakeholderLanguage = regexp.MustCompile(`(?i)\b(stakeholder|owner|lead|team|responsible|accountable|raci|sponsor|approver)s?\b`)
	stakeholderConcerns = regexp.MustCompile(`(?i)\b(finance|fp&a|financial.planning|hr|people.?team|people.?ops|legal|compliance|approval|sign.?off|cfo|cto|ceo|vp|director)\b`)
	roleLanguage        = regexp.MustCompile(`(?i)\b(responsible|accountable|consulted|informed|raci|owner|sponsor|approver|lead)\b`)

	timelineSection  = regexp.MustCompile(`(?im)^#+\s*(timeline|milestone|phase|schedule|roadmap)`)
	timelineLanguage = regexp.MustCompile(`(?i)\b(week|month|quarter|q[1-4]|phase|milestone|sprint|release|v\d+)s?\b`)
	phasingLanguage  = regexp.MustCompile(`(?i)\b(phase|stage|wave|iteration|sprint|release|milestone)s?\b`)
)

type ProblemFindings struct {
	HasSection       bool `json:"has_section"`
	HasLanguage      bool `json:"has_language"`
	HasBusinessFocus bool `json:"has_business_focus"`
	QuantifiedCount  int  `json:"quantified_count"`
}

// DetectProblemStatement looks for a headed problem section and problem framing.
func DetectProblemStatement(text string) ProblemFindings {
	return ProblemFindings{
		HasSection:       problemSection.MatchString(text),
		HasLanguage:      problemLanguage.MatchString(text),
		HasBusinessFocus: businessLanguage.MatchString(text),
		QuantifiedCount:  len(quantified.FindAllString(text, -1)),
	}
}

type CostFindings struct {
	HasLanguage  bool `json:"has_language"`
	HasSection   bool `json:"has_section"`
	IsQuantified bool `json:"is_quantified"`
	Mentions     int  `json:"mentions"`
}

// DetectCostOfInaction looks for cost-of-doing-nothing language and numbers.
func DetectCostOfInaction(text string) CostFindings {
	mentions := len(costLanguage.FindAllString(text, -1))
	return CostFindings{
		HasLanguage:  mentions > 0,
		HasSection:   costSection.MatchString(text),
		IsQuantified: quantified.MatchString(text),
		Mentions:     mentions,
	}
}

type SolutionFindings struct {
	HasSection        bool `json:"has_section"`
	HasLanguage       bool `json:"has_language"`
	IsHighLevel       bool `json:"is_high_level"`
	HasImplementation bool `json:"has_implementation"`
}

// DetectSolution looks for a solution section and checks it stays strategic.
func DetectSolution(text string) SolutionFindings {
	impl := implementation.MatchString(text)
	return SolutionFindings{
		HasSection:        solutionSection.MatchString(text),
		HasLanguage:       solutionLanguage.MatchString(text),
		IsHighLevel:       highLevel.MatchString(text) && !impl,
		HasImplementation: impl,
	}
}

type GoalFindings struct {
	HasGoals      bool `json:"has_goals"`
	HasMeasurable bool `json:"has_measurable"`
	GoalCount     int  `json:"goal_count"`
}

// DetectMeasurableGoals looks for goals and measurable language.
func DetectMeasurableGoals(text string) GoalFindings {
	goals := len(goalLanguage.FindAllString(text, -1))
	return GoalFindings{
		HasGoals:      goals > 0,
		HasMeasurable: measurable.MatchString(text),
		GoalCount:     goals,
	}
}

type ScopeFindings struct {
	HasInScope    bool `json:"has_in_scope"`
	HasOutOfScope bool `json:"has_out_of_scope"`
	HasSection    bool `json:"has_section"`
}

// DetectScope checks in-scope and out-of-scope language independently.
func DetectScope(text string) ScopeFindings {
	return ScopeFindings{
		HasInScope:    inScope.MatchString(text),
		HasOutOfScope: outOfScope.MatchString(text),
		HasSection:    scopeSection.MatchString(text),
	}
}

type MetricsFindings struct {
	HasSection    bool `json:"has_section"`
	HasSmart      bool `json:"has_smart"`
	HasQuantified bool `json:"has_quantified"`
	HasMetrics    bool `json:"has_metrics"`
}

// DetectSuccessMetrics looks for a metrics section and quantified targets.
func DetectSuccessMetrics(text string) MetricsFindings {
	return MetricsFindings{
		HasSection:    metricsSection.MatchString(text),
		HasSmart:      smartLanguage.MatchString(text),
		HasQuantified: quantified.MatchString(text),
		HasMetrics:    metricsLanguage.MatchString(text),
	}
}

type SectionFindings struct {
	Found    []string `json:"found"`
	Missing  []string `json:"missing"`
	Coverage float64  `json:"coverage"`
}

// DetectSections reports which expected headings are present, with the
// weighted share found.
func DetectSections(text string) SectionFindings {
	out := SectionFindings{Found: []string{}, Missing: []string{}}
	got, total := 0, 0
	for _, s := range requiredSections {
		total += s.weight
		if s.pattern.MatchString(text) {
			got += s.weight
			out.Found = append(out.Found, s.name)
		} else {
			out.Missing = append(out.Missing, s.name)
		}
	}
	out.Coverage = float64(got) / float64(total)
	return out
}

type StakeholderFindings struct {
	HasSection  bool `json:"has_section"`
	HasMentions bool `json:"has_mentions"`
	HasRoles    bool `json:"has_roles"`
	HasConcerns bool `json:"has_concerns"`
}

// DetectStakeholders looks for named stakeholders and their roles.
func DetectStakeholders(text string) StakeholderFindings {
	return StakeholderFindings{
		HasSection:  stakeholderSection.MatchString(text),
		HasMentions: stakeholderLanguage.MatchString(text),
		HasRoles:    roleLanguage.MatchString(text),
		HasConcerns: stakeholderConcerns.MatchString(text),
	}
}

type TimelineFindings struct {
	HasSection  bool `json:"has_section"`
	HasTimeline bool `json:"has_timeline"`
	HasPhasing  bool `json:"has_phasing"`
}

// DetectTimeline looks for milestones and phasing.
func DetectTimeline(text string) TimelineFindings {
	return TimelineFindings{
		HasSection:  timelineSection.MatchString(text),
		HasTimeline: timelineLanguage.MatchString(text),
		HasPhasing:  phasingLanguage.MatchString(text),
	}
}

var (
	circularProblem  = regexp.MustCompile(`(?im)^#+\s*(problem|challenge|pain.?point|context)[^#]*`)
	circularSolution = regexp.MustCompile(`(?im)^#+\s*(solution|proposal|approach|recommendation)[^#]*`)
	longWord         = regexp.MustCompile(`\b[a-z]{4,}\b`)
)

const actionVerbs = `build|create|add|implement|develop|make|establish|introduce|launch`

var stopWords = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`been being have were would could should might must shall need dare
		ought used from about into through during before after above below between under again further
		then once here there when where each more most other some such only same than very just that
		this these those with what which while because until`) {
		stopWords[w] = true
	}
}

type CircularFinding struct {
	IsCircular bool   `json:"is_circular"`
	Confidence int    `json:"confidence"`
	Matches    int    `json:"matches"`
	Reason     string `json:"reason"`
}

// DetectCircularLogic flags a solution that only restates the problem, e.g.
// "we have no dashboard" answered by "build a dashboard".
func DetectCircularLogic(text string) CircularFinding {
	problem := strings.ToLower(circularProblem.FindString(text))
	solution := strings.ToLower(circularSolution.FindString(text))
	if problem == "" || solution == "" {
		return CircularFinding{Reason: "Sections not found"}
	}
	matches := 0
	seen := map[string]bool{}
	for _, noun := range longWord.FindAllString(problem, -1) {
		if seen[noun] || stopWords[noun] || isActionVerb(noun) {
			continue
		}
		seen[noun] = true
		re := regexp.MustCompile(`\b(` + actionVerbs + `)\s+(?:an?\s+|the\s+)?` + regexp.QuoteMeta(noun))
		verbs := map[string]bool{}
		for _, m := range re.FindAllStringSubmatch(solution, -1) {
			verbs[m[1]] = true
		}
		matches += len(verbs)
	}
	f := CircularFinding{
		IsCircular: matches >= 2,
		Confidence: min(100, matches*25),
		Matches:    matches,
		Reason:     "Solution addresses root cause",
	}
	if f.IsCircular {
		f.Reason = "Solution appears to restate the problem"
	}
	return f
}

func isActionVerb(w string) bool {
	for _, v := range strings.Split(actionVerbs, "|") {
		if v == w {
			return true
		}
	}
	return false
}

var (
	arrowPair   = regexp.MustCompile(`\$?\d[\d,.]*\s*[%$]?(?:/\w+)?\s*(?:→|->|=>)\s*\$?\d[\d,.]*`)
	fromToPair  = regexp.MustCompile(`(?i)\bfrom\s+\$?\d[\d,.]*\s*[%$]?(?:/\w+)?\s+to\s+\$?\d[\d,.]*`)
	currentPair = regexp.MustCompile(`(?i)\bcurrently?\s+\$?\d[\d,.]*.*\btarget\w*\s+\$?\d[\d,.]*`)
	bracketPair = regexp.MustCompile(`(?i)\[(?:current|baseline)[^\]]*\]\s*(?:→|->|=>)\s*\[(?:target|goal)[^\]]*\]`)
	vagueWord   = regexp.MustCompile(`(?i)\b(improve|increase|decrease|reduce|enhance|better|more|less|faster|slower)\b`)
)

type BaselineFinding struct {
	HasBaselineTarget bool     `json:"has_baseline_target"`
	Count             int      `json:"count"`
	VagueCount        int      `json:"vague_count"`
	HasVagueMetrics   bool     `json:"has_vague_metrics"`
	Examples          []string `json:"examples,omitempty"`
}

// DetectBaselineTarget finds before/after numeric pairs such as "40% → 10%" or
// "from 9 to 3", and counts improvement words that carry no number in the
// rest of their sentence.
func DetectBaselineTarget(text string) BaselineFinding {
	var examples []string
	count := 0
	for _, re := range []*regexp.Regexp{arrowPair, fromToPair, currentPair, bracketPair} {
		found := re.FindAllString(text, -1)
		count += len(found)
		for _, f := range found {
			if len(examples) < 3 {
				examples = append(examples, strings.TrimSpace(f))
			}
		}
	}
	vague := 0
	for _, loc := range vagueWord.FindAllStringIndex(text, -1) {
		if !digitBeforeSentenceEnd(text[loc[1]:]) {
			vague++
		}
	}
	return BaselineFinding{
		HasBaselineTarget: count > 0,
		Count:             count,
		VagueCount:        vague,
		HasVagueMetrics:   vague > count,
		Examples:          examples,
	}
}

func digitBeforeSentenceEnd(rest string) bool {
	for _, r := range rest {
		if r == '.' {
			return false
		}
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
