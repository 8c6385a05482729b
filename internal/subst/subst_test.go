package subst

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	cases := []struct {
		name string
		tpl  string
		vars map[string]string
		want string
	}{
		{"known", "Hello {{NAME}}!", map[string]string{"NAME": "Ada"}, "Hello Ada!"},
		{"empty value", "[{{NAME}}]", map[string]string{"NAME": ""}, "[]"},
		{"unknown removed", "A {{MISSING}} B", nil, "A  B"},
		{"padded token", "{{ NAME }}", map[string]string{"NAME": "x"}, "x"},
		{"repeated", "{{A}}-{{A}}", map[string]string{"A": "1"}, "1-1"},
		{"not a token", "{NAME} {{bad-name}}", map[string]string{"NAME": "x"}, "{NAME} {{bad-name}}"},
		{"no recursion", "{{A}}", map[string]string{"A": "{{B}}", "B": "deep"}, "{{B}}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Render(tc.tpl, tc.vars))
		})
	}
}

func TestRenderReportListsDropped(t *testing.T) {
	out, dropped := RenderReport("{{X}} {{KNOWN}} {{Y}} {{X}}", map[string]string{"KNOWN": "k"})
	assert.Equal(t, " k  ", out)
	assert.Equal(t, []string{"X", "Y"}, dropped)
	assert.False(t, Unresolved(out))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, Placeholders("{{A}} {{B}} {{A}}"))
	assert.Empty(t, Placeholders("plain"))
}
