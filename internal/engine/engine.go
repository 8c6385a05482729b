package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"onepager/internal/config"
	"onepager/internal/db"
	"onepager/internal/domain"
	"onepager/internal/events"
	"onepager/internal/repo"
	"onepager/internal/scoring"
	"onepager/internal/templates"
	"onepager/internal/workflow"
)

// ValidationError is a user-correctable rejection. Nothing was persisted.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var ErrAtFirstPhase = errors.New("already at the first phase")

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Prompts *workflow.Generator
	Scorer  scoring.Scorer
	Config  *config.Config
	Logger  *slog.Logger
	Now     func() time.Time
}

// New wires an engine over an open, migrated database. A nil source falls
// back to the embedded templates.
func New(conn *sql.DB, dialect db.Dialect, cfg *config.Config, src templates.Source) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	e := Engine{
		DB:      conn,
		Prompts: workflow.NewGenerator(src),
		Scorer:  scoring.Scorer{MinLength: cfg.Scoring.MinLength},
		Config:  cfg,
		Logger:  slog.Default(),
		Now:     time.Now,
	}
	e.Repo = repo.Repo{DB: conn, Dialect: dialect, Now: e.now}
	e.Events = events.Writer{Dialect: dialect, Now: e.now}
	return e
}

// WithClock returns a copy whose repo and event writer share clock fn.
func (e Engine) WithClock(fn func() time.Time) Engine {
	e.Now = fn
	e.Repo.Now = fn
	e.Events.Now = fn
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// CreateOptions are parameters for creating a project.
type CreateOptions struct {
	Title    string
	Problems string
	Context  string
	Starter  string
	Form     domain.FormPatch
	ActorID  string
}

func (e Engine) CreateProject(ctx context.Context, opts CreateOptions) (domain.Project, error) {
	var form domain.FormData
	if opts.Starter != "" {
		st, err := templates.LookupStarter(opts.Starter)
		if err != nil {
			return domain.Project{}, &ValidationError{Message: fmt.Sprintf("unknown starter %q", opts.Starter)}
		}
		st.Apply(&form)
	}
	opts.Form.Apply(&form)

	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = strings.TrimSpace(form.ProjectName)
	}
	if title == "" {
		return domain.Project{}, &ValidationError{Message: "title is required"}
	}
	if form.ProjectName == "" {
		form.ProjectName = title
	}
	if form.ProblemStatement == "" {
		form.ProblemStatement = opts.Problems
	}
	if form.Context == "" {
		form.Context = opts.Context
	}

	now := e.timestamp()
	p := domain.Project{
		ID:        uuid.NewString(),
		Title:     title,
		Problems:  opts.Problems,
		Context:   opts.Context,
		Phase:     1,
		FormData:  form,
		Phases:    domain.NewPhases(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertProjectTx(ctx, tx, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.ProjectCreated, p.ID, "project", p.ID, opts.ActorID, events.EventPayload{"title": p.Title, "starter": opts.Starter}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	e.log().Info("project created", "project_id", p.ID, "starter", opts.Starter)
	return p, nil
}

func (e Engine) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return e.Repo.GetProject(ctx, id)
}

func (e Engine) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return e.Repo.ListProjects(ctx)
}

// UpdateOptions patches the descriptive fields of a project.
type UpdateOptions struct {
	ID       string
	Title    *string
	Problems *string
	Context  *string
	ActorID  string
}

func (e Engine) UpdateProject(ctx context.Context, opts UpdateOptions) (domain.Project, error) {
	if opts.Title != nil && strings.TrimSpace(*opts.Title) == "" {
		return domain.Project{}, &ValidationError{Message: "title must not be empty"}
	}
	return e.mutate(ctx, opts.ID, events.ProjectUpdated, opts.ActorID, func(p *domain.Project) (events.EventPayload, error) {
		changed := []string{}
		if opts.Title != nil {
			p.Title = strings.TrimSpace(*opts.Title)
			changed = append(changed, "title")
		}
		if opts.Problems != nil {
			p.Problems = *opts.Problems
			changed = append(changed, "problems")
		}
		if opts.Context != nil {
			p.Context = *opts.Context
			changed = append(changed, "context")
		}
		return events.EventPayload{"fields": changed}, nil
	})
}

func (e Engine) UpdateForm(ctx context.Context, id string, patch domain.FormPatch, actorID string) (domain.Project, error) {
	if patch.Empty() {
		return e.Repo.GetProject(ctx, id)
	}
	return e.mutate(ctx, id, events.FormUpdated, actorID, func(p *domain.Project) (events.EventPayload, error) {
		workflow.UpdateFormData(p, patch)
		return nil, nil
	})
}

func (e Engine) DeleteProject(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteProjectTx(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.ProjectDeleted, id, "project", id, actorID, nil); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.log().Info("project deleted", "project_id", id)
	return nil
}

// ListEvents returns the newest events of a project.
func (e Engine) ListEvents(ctx context.Context, projectID string, limit int) ([]domain.Event, error) {
	return e.ProjectEvents(ctx, projectID, "", 0, limit)
}

// ProjectEvents pages through a project's events, newest first, starting
// below cursor when it is non-zero. Events of deleted projects stay
// readable; ids that never existed are repo.ErrNotFound.
func (e Engine) ProjectEvents(ctx context.Context, projectID, evtType string, cursor int64, limit int) ([]domain.Event, error) {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
		deleted, derr := e.Repo.LatestEvents(ctx, 1, projectID, events.ProjectDeleted)
		if derr != nil {
			return nil, derr
		}
		if len(deleted) == 0 {
			return nil, err
		}
	}
	return e.Repo.LatestEventsFrom(ctx, limit, cursor, projectID, evtType)
}

// mutate loads a project inside a transaction, applies fn, saves it and
// appends one event. Any error rolls everything back.
func (e Engine) mutate(ctx context.Context, id, evtType, actorID string, fn func(p *domain.Project) (events.EventPayload, error)) (domain.Project, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProjectTx(ctx, tx, id)
	if err != nil {
		return domain.Project{}, err
	}
	payload, err := fn(&p)
	if err != nil {
		return domain.Project{}, err
	}
	saved, err := e.Repo.SaveProjectTx(ctx, tx, p)
	if err != nil {
		return domain.Project{}, fmt.Errorf("save project: %w", err)
	}
	if payload == nil {
		payload = events.EventPayload{}
	}
	payload["phase"] = saved.Phase
	if err := e.Events.Append(ctx, tx, evtType, saved.ID, "project", saved.ID, actorID, payload); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	e.log().Info(evtType, "project_id", saved.ID, "phase", saved.Phase)
	return saved, nil
}
