package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"onepager/internal/domain"
	"onepager/internal/events"
)

const backupVersion = 1

func (e Engine) Backup(ctx context.Context) (domain.ProjectBackup, error) {
	projects, err := e.Repo.ListProjects(ctx)
	if err != nil {
		return domain.ProjectBackup{}, err
	}
	if projects == nil {
		projects = []domain.Project{}
	}
	return domain.ProjectBackup{
		Version:      backupVersion,
		ExportedAt:   e.timestamp(),
		ProjectCount: len(projects),
		Projects:     projects,
	}, nil
}

// ImportResult lists what an import did with each project id.
type ImportResult struct {
	Imported []string `json:"imported"`
	Skipped  []string `json:"skipped"`
}

// Import stores backed-up projects. Projects whose id already exists are
// skipped; projects without an id get a new one. Everything is written in
// one transaction.
func (e Engine) Import(ctx context.Context, backup domain.ProjectBackup, actorID string) (ImportResult, error) {
	res := ImportResult{Imported: []string{}, Skipped: []string{}}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	now := e.timestamp()
	for _, p := range backup.Projects {
		if p.ID == "" {
			p.ID = uuid.NewString()
		} else {
			exists, err := e.Repo.ProjectExistsTx(ctx, tx, p.ID)
			if err != nil {
				return ImportResult{}, err
			}
			if exists {
				res.Skipped = append(res.Skipped, p.ID)
				continue
			}
		}
		if p.CreatedAt == "" {
			p.CreatedAt = now
		}
		if p.UpdatedAt == "" {
			p.UpdatedAt = p.CreatedAt
		}
		p.Phase = domain.NormalizePhase(p.Phase)
		if err := e.Repo.InsertProjectTx(ctx, tx, p); err != nil {
			return ImportResult{}, fmt.Errorf("import project %s: %w", p.ID, err)
		}
		if err := e.Events.Append(ctx, tx, events.ProjectImported, p.ID, "project", p.ID, actorID, events.EventPayload{"phase": p.Phase, "shape": p.Phases.Shape()}); err != nil {
			return ImportResult{}, err
		}
		res.Imported = append(res.Imported, p.ID)
	}
	if err := tx.Commit(); err != nil {
		return ImportResult{}, err
	}
	e.log().Info("backup imported", "imported", len(res.Imported), "skipped", len(res.Skipped))
	return res, nil
}
