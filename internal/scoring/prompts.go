package scoring

import (
	"fmt"
	"regexp"
	"strings"
)

const rubric = `### 1. Problem Clarity (30 points)
- Problem statement (10): a headed problem section naming the root cause, not symptoms
- Cost of doing nothing (10): impact quantified in $ or %
- Business focus (10): tied to customers, users, revenue or strategy

### 2. Solution Quality (25 points)
- Addresses the problem (10): a headed solution section that bridges back to the problem
- Measurable goals (10): goals written as [Baseline] → [Target]
- High level (5): no implementation detail such as code, APIs or databases

### 3. Scope Discipline (25 points)
- In scope (8): explicit "in scope" or "we will" statements under a scope heading
- Out of scope (9): explicit "out of scope" or "we will not" statements
- SMART metrics (8): [Current] → [Target] by [Date]

### 4. Completeness (20 points)
- Sections (8): Problem, Solution, Goals, Scope, Metrics, Stakeholders, Timeline
- Stakeholders (6): owner, approvers and roles named
- Timeline (6): phased milestones with dates`

const scoringPromptTemplate = `You are an expert product manager grading a one-pager.

Score it from 0 to 100 with this rubric.

## RUBRIC

%s

## LOGICAL BRIDGE CHECK

Before scoring, decide whether the solution is only the inverse of the problem
("we have no dashboard" → "build a dashboard"). If it is, cap the total at 50.

## CALIBRATION

- Be strict. Most one-pagers land between 40 and 60; 80+ is exceptional.
- Deduct for every vague qualifier without a baseline and target.
- Deduct for weasel words and marketing superlatives.
- Deduct heavily if the cost of doing nothing is missing.

## ONE-PAGER

` + "```" + `
%s
` + "```" + `

<output_rules>
- Start with "**LOGICAL BRIDGE CHECK:**" and no preamble.
- End after "Top 3 Strengths" with no sign-off.
- Do not wrap the answer in code fences.
</output_rules>

## REQUIRED OUTPUT FORMAT

**LOGICAL BRIDGE CHECK: [PASS/FAIL]**

**TOTAL SCORE: [X]/100**

### Problem Clarity: [X]/30
### Solution Quality: [X]/25
### Scope Discipline: [X]/25
### Completeness: [X]/20
(two or three sentences of justification under each)

### Top 3 Issues
1.
2.
3.

### Top 3 Strengths
1.
2.
3.`

// ScoringPrompt asks an external LLM to grade doc with the same rubric the
// heuristic scorer uses.
func ScoringPrompt(doc string) string {
	return fmt.Sprintf(scoringPromptTemplate, rubric, doc)
}

const critiquePromptTemplate = `You are a senior product manager giving detailed feedback on a one-pager.

## AUTOMATED SCAN

Total: %d/100
- Problem Clarity: %d/30
- Solution Quality: %d/25
- Scope Discipline: %d/25
- Completeness: %d/20

Issues found:
%s

## ONE-PAGER

` + "```" + `
%s
` + "```" + `

## YOUR TASK

First check whether the solution merely inverts the problem; if so, that is the
main issue. Then give:
1. An executive summary of two or three sentences.
2. A critique per rubric dimension.
3. A complete revised one-pager that fixes every issue, at most 450 words.

<output_rules>
- Start with "## Executive Summary" and no preamble.
- End with the revised one-pager and no sign-off.
- Do not wrap the answer in code fences.
</output_rules>`

// CritiquePrompt asks for feedback on doc seeded with the heuristic result.
func CritiquePrompt(doc string, r Result) string {
	issues := r.Issues()
	if len(issues) > 5 {
		issues = issues[:5]
	}
	list := "- None detected by the automated scan"
	if len(issues) > 0 {
		list = "- " + strings.Join(issues, "\n- ")
	}
	return fmt.Sprintf(critiquePromptTemplate,
		r.Total, r.ProblemClarity.Score, r.Solution.Score, r.Scope.Score, r.Completeness.Score,
		list, doc)
}

const rewritePromptTemplate = `You are a senior product manager rewriting a one-pager so that it scores 85 or more.

## CURRENT SCORE: %d/100

## ORIGINAL

` + "```" + `
%s
` + "```" + `

## RUBRIC

%s

## REQUIREMENTS

- At most 450 words.
- The solution addresses the root cause and is not the inverse of the problem.
- No vague qualifiers, weasel words or marketing language.

<output_rules>
- Output only the rewritten one-pager, starting with "# [Project Name]".
- End after the Timeline section with no sign-off.
- Do not wrap the answer in code fences.
</output_rules>`

// RewritePrompt asks for a full rewrite of doc aimed at the top band.
func RewritePrompt(doc string, r Result) string {
	return fmt.Sprintf(rewritePromptTemplate, r.Total, doc, rubric)
}

var (
	chatterPrefix = regexp.MustCompile(`(?i)^\s*(here's|here is|i've|i have|below is)[^:\n]*:\s*`)
	fencedBlock   = regexp.MustCompile("(?s)```(?:markdown|md)?\\s*(.*?)```")
)

// CleanAIResponse strips a leading "Here is..." line and unwraps a fenced
// markdown block from a pasted LLM reply.
func CleanAIResponse(text string) string {
	cleaned := chatterPrefix.ReplaceAllString(text, "")
	if m := fencedBlock.FindStringSubmatch(cleaned); m != nil {
		cleaned = m[1]
	}
	return strings.TrimSpace(cleaned)
}
