// Package subst fills {{NAME}} placeholders in prompt templates.
package subst

import "regexp"

var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Render replaces every {{NAME}} found in vars with its value and removes every
// {{NAME}} that has no entry. Replacement is a single pass: substituted values
// are never scanned for further placeholders.
func Render(template string, vars map[string]string) string {
	out, _ := RenderReport(template, vars)
	return out
}

// RenderReport is Render plus the names of removed placeholders, deduplicated
// in first-seen order.
func RenderReport(template string, vars map[string]string) (string, []string) {
	var dropped []string
	seen := map[string]bool{}
	out := tokenPattern.ReplaceAllStringFunc(template, func(token string) string {
		name := tokenPattern.FindStringSubmatch(token)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		if !seen[name] {
			seen[name] = true
			dropped = append(dropped, name)
		}
		return ""
	})
	return out, dropped
}

// Placeholders lists the distinct placeholder names in template.
func Placeholders(template string) []string {
	var names []string
	seen := map[string]bool{}
	for _, m := range tokenPattern.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Unresolved reports whether text still contains a placeholder token.
func Unresolved(text string) bool {
	return tokenPattern.MatchString(text)
}
