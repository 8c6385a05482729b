package templates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onepager/internal/config"
	"onepager/internal/domain"
	"onepager/internal/subst"
)

func TestEmbeddedTemplates(t *testing.T) {
	ctx := context.Background()
	want := map[int][]string{
		1: {"PROJECT_NAME", "PROBLEM_STATEMENT", "PROPOSED_SOLUTION"},
		2: {"PHASE1_OUTPUT"},
		3: {"PHASE1_OUTPUT", "PHASE2_OUTPUT"},
	}
	for phase, names := range want {
		tpl, err := EmbeddedSource{}.PhaseTemplate(ctx, phase)
		require.NoError(t, err)
		placeholders := subst.Placeholders(tpl)
		for _, n := range names {
			assert.Contains(t, placeholders, n, "phase %d", phase)
		}
	}

	_, err := EmbeddedSource{}.PhaseTemplate(ctx, 4)
	var rerr *RetrievalError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 4, rerr.Phase)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "phase2.md"), []byte("review {{PHASE1_OUTPUT}}"), 0o644))

	src := DirSource{Dir: dir}
	tpl, err := src.PhaseTemplate(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "review {{PHASE1_OUTPUT}}", tpl)

	_, err = src.PhaseTemplate(context.Background(), 1)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestExportDefaultsFeedsDirSource(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prompts")
	written, err := ExportDefaults(dir)
	require.NoError(t, err)
	assert.Len(t, written, 3)

	embedded, err := EmbeddedSource{}.PhaseTemplate(context.Background(), 3)
	require.NoError(t, err)
	fromDir, err := DirSource{Dir: dir}.PhaseTemplate(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, embedded, fromDir)

	again, err := ExportDefaults(dir)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/prompts/phase1.md":
			_, _ = w.Write([]byte("hello {{PROJECT_NAME}}"))
		case "/prompts/phase2.md":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL + "/prompts/")
	tpl, err := src.PhaseTemplate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "hello {{PROJECT_NAME}}", tpl)

	_, err = src.PhaseTemplate(context.Background(), 2)
	var rerr *RetrievalError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 2, rerr.Phase)

	_, err = src.PhaseTemplate(context.Background(), 3)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

type countingSource struct {
	calls atomic.Int32
	fail  bool
}

func (s *countingSource) PhaseTemplate(_ context.Context, phase int) (string, error) {
	s.calls.Add(1)
	if s.fail {
		return "", &RetrievalError{Phase: phase, Err: errors.New("offline")}
	}
	return "tpl", nil
}

func TestCachedSource(t *testing.T) {
	next := &countingSource{}
	cached, err := NewCachedSource(next, 4)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		tpl, err := cached.PhaseTemplate(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "tpl", tpl)
	}
	assert.EqualValues(t, 1, next.calls.Load())

	cached.Purge()
	_, err = cached.PhaseTemplate(context.Background(), 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, next.calls.Load())
}

func TestCachedSourceDoesNotCacheFailures(t *testing.T) {
	next := &countingSource{fail: true}
	cached, err := NewCachedSource(next, 0)
	require.NoError(t, err)

	_, err = cached.PhaseTemplate(context.Background(), 2)
	require.Error(t, err)
	_, err = cached.PhaseTemplate(context.Background(), 2)
	require.Error(t, err)
	assert.EqualValues(t, 2, next.calls.Load())
}

func TestFromConfig(t *testing.T) {
	src, err := FromConfig(config.TemplatesConfig{Source: "embedded"})
	require.NoError(t, err)
	assert.IsType(t, EmbeddedSource{}, src)

	src, err = FromConfig(config.TemplatesConfig{Source: "http", BaseURL: "http://localhost"})
	require.NoError(t, err)
	assert.IsType(t, &CachedSource{}, src)

	_, err = FromConfig(config.TemplatesConfig{Source: "s3", S3: config.S3Config{Endpoint: "localhost:9000", Bucket: "b"}})
	assert.Error(t, err, "missing credentials")

	_, err = FromConfig(config.TemplatesConfig{Source: "gopher"})
	assert.Error(t, err)
}

func TestStarters(t *testing.T) {
	list, err := Starters()
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, s := range list {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"blank", "statusUpdate", "featurePitch", "budgetAsk", "incidentRetro"}, ids)

	blank, err := LookupStarter("blank")
	require.NoError(t, err)
	assert.Equal(t, domain.FormData{}, blank.Form)

	pitch, err := LookupStarter("featurePitch")
	require.NoError(t, err)
	assert.Contains(t, pitch.Form.CostOfDoingNothing, "lost revenue")
	assert.Contains(t, pitch.Form.ScopeOutOfScope, "Legacy migration")

	form := domain.FormData{ProjectName: "Mine", ProblemStatement: "gone"}
	pitch.Apply(&form)
	assert.Equal(t, "Mine", form.ProjectName)
	assert.Equal(t, pitch.Form.ProblemStatement, form.ProblemStatement)

	_, err = LookupStarter("nope")
	assert.ErrorIs(t, err, ErrStarterNotFound)
}
