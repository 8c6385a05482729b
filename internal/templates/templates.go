// Package templates provides the per-phase prompt templates and the document
// starters.
package templates

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed prompts/*.md
var promptsFS embed.FS

// ErrTemplateNotFound is returned when a source has no template for a phase.
var ErrTemplateNotFound = errors.New("template not found")

// Source fetches the raw markdown template for a phase.
type Source interface {
	PhaseTemplate(ctx context.Context, phase int) (string, error)
}

// RetrievalError wraps any failure to fetch a phase template.
type RetrievalError struct {
	Phase int
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("load template for phase %d: %v", e.Phase, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// FileName is the conventional template name for a phase.
func FileName(phase int) string {
	return fmt.Sprintf("phase%d.md", phase)
}

// EmbeddedSource serves the templates compiled into the binary.
type EmbeddedSource struct{}

func (EmbeddedSource) PhaseTemplate(_ context.Context, phase int) (string, error) {
	return readFS(promptsFS, "prompts/"+FileName(phase), phase)
}

// DirSource reads phaseN.md files from a directory on disk.
type DirSource struct {
	Dir string
}

func (s DirSource) PhaseTemplate(ctx context.Context, phase int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &RetrievalError{Phase: phase, Err: err}
	}
	data, err := os.ReadFile(filepath.Join(s.Dir, FileName(phase)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = ErrTemplateNotFound
		}
		return "", &RetrievalError{Phase: phase, Err: err}
	}
	return string(data), nil
}

func readFS(fsys fs.FS, name string, phase int) (string, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = ErrTemplateNotFound
		}
		return "", &RetrievalError{Phase: phase, Err: err}
	}
	return string(data), nil
}

// ExportDefaults writes the embedded templates into dir so they can be edited
// and served with DirSource.
func ExportDefaults(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(promptsFS, "prompts")
	if err != nil {
		return nil, err
	}
	var written []string
	for _, e := range entries {
		data, err := promptsFS.ReadFile("prompts/" + e.Name())
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, e.Name())
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, err
		}
		written = append(written, path)
	}
	return written, nil
}
