package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"onepager/internal/config"
	"onepager/internal/db"
	"onepager/internal/engine"
	"onepager/internal/migrate"
	"onepager/internal/repo"
	"onepager/internal/templates"
)

// DefaultProjectKey names the env entry `project use` writes.
const DefaultProjectKey = "ONEPAGER_DEFAULT_PROJECT"

var ErrNoProject = errors.New("project not specified; use --project or 'onepager project use <id>'")

// Env is an opened workspace: config loaded, database migrated, engine wired.
type Env struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Engine    engine.Engine
}

// Open loads the workspace config and opens its store. Callers must Close.
func Open(workspace string, logger *slog.Logger) (*Env, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, err
	}
	conn, dialect, err := db.Open(db.Config{Workspace: workspace, Driver: cfg.Storage.Driver, DSN: cfg.Storage.DSN})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn, dialect); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	src, err := templates.FromConfig(cfg.Templates)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	e := engine.New(conn, dialect, cfg, src)
	if logger != nil {
		e.Logger = logger
	}
	return &Env{Workspace: workspace, Config: cfg, DB: conn, Engine: e}, nil
}

func (env *Env) Close() error {
	return env.DB.Close()
}

// ResolveProject picks the target project. It prefers the override, then the
// workspace default, then the only project in the store.
func ResolveProject(ctx context.Context, workspace, override string, r repo.Repo) (string, error) {
	if id := strings.TrimSpace(override); id != "" {
		return id, nil
	}
	if id := strings.TrimSpace(os.Getenv(DefaultProjectKey)); id != "" {
		return id, nil
	}
	id, err := config.EnvValue(workspace, DefaultProjectKey)
	if err != nil {
		return "", err
	}
	if id = strings.TrimSpace(id); id != "" {
		return id, nil
	}
	projects, err := r.ListProjects(ctx)
	if err != nil {
		return "", err
	}
	switch len(projects) {
	case 0:
		return "", ErrNoProject
	case 1:
		return projects[0].ID, nil
	default:
		return "", fmt.Errorf("multiple projects exist: %w", ErrNoProject)
	}
}

// UseProject records id as the workspace default after checking it exists.
func UseProject(ctx context.Context, workspace, id string, r repo.Repo) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("project id is required")
	}
	if _, err := r.GetProject(ctx, id); err != nil {
		return err
	}
	return config.SetEnvValue(workspace, DefaultProjectKey, id)
}
