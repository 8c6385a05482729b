package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"onepager/internal/db"
	"onepager/internal/domain"
)

// Repo persists projects as JSON documents with a few indexed columns.
type Repo struct {
	DB      *sql.DB
	Dialect db.Dialect
	Now     func() time.Time
}

var ErrNotFound = errors.New("not found")

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r Repo) q(query string) string {
	return r.Dialect.Rebind(query)
}

func (r Repo) now() string {
	if r.Now == nil {
		return time.Now().UTC().Format(time.RFC3339)
	}
	return r.Now().UTC().Format(time.RFC3339)
}

func decodeDocument(doc string) (domain.Project, error) {
	var p domain.Project
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return p, fmt.Errorf("decode project document: %w", err)
	}
	return p, nil
}

func scanProject(row *sql.Row) (domain.Project, error) {
	var id, doc string
	err := row.Scan(&id, &doc)
	if err == sql.ErrNoRows {
		return domain.Project{}, ErrNotFound
	}
	if err != nil {
		return domain.Project{}, err
	}
	p, err := decodeDocument(doc)
	if err != nil {
		return p, err
	}
	p.ID = id
	return p, nil
}

func (r Repo) InsertProject(ctx context.Context, p domain.Project) error {
	return r.insertProject(ctx, r.DB, p)
}

func (r Repo) InsertProjectTx(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	return r.insertProject(ctx, tx, p)
}

func (r Repo) insertProject(ctx context.Context, qr queryer, p domain.Project) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}
	_, err = qr.ExecContext(ctx, r.q(`INSERT INTO projects(id,title,phase,document,created_at,updated_at) VALUES (?,?,?,?,?,?)`),
		p.ID, p.Title, domain.NormalizePhase(p.Phase), string(doc), p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return scanProject(r.DB.QueryRowContext(ctx, r.q(`SELECT id,document FROM projects WHERE id=?`), id))
}

func (r Repo) GetProjectTx(ctx context.Context, tx *sql.Tx, id string) (domain.Project, error) {
	return scanProject(tx.QueryRowContext(ctx, r.q(`SELECT id,document FROM projects WHERE id=?`), id))
}

// SaveProjectTx writes the whole document back and refreshes UpdatedAt.
// The stored copy is returned.
func (r Repo) SaveProjectTx(ctx context.Context, tx *sql.Tx, p domain.Project) (domain.Project, error) {
	p.UpdatedAt = r.now()
	doc, err := json.Marshal(p)
	if err != nil {
		return p, fmt.Errorf("encode project: %w", err)
	}
	res, err := tx.ExecContext(ctx, r.q(`UPDATE projects SET title=?,phase=?,document=?,updated_at=? WHERE id=?`),
		p.Title, domain.NormalizePhase(p.Phase), string(doc), p.UpdatedAt, p.ID)
	if err != nil {
		return p, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return p, err
	}
	if n == 0 {
		return p, ErrNotFound
	}
	return p, nil
}

func (r Repo) DeleteProject(ctx context.Context, id string) error {
	return r.deleteProject(ctx, r.DB, id)
}

func (r Repo) DeleteProjectTx(ctx context.Context, tx *sql.Tx, id string) error {
	return r.deleteProject(ctx, tx, id)
}

func (r Repo) deleteProject(ctx context.Context, qr queryer, id string) error {
	res, err := qr.ExecContext(ctx, r.q(`DELETE FROM projects WHERE id=?`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ProjectExistsTx reports whether a project id is taken.
func (r Repo) ProjectExistsTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var n int
	if err := tx.QueryRowContext(ctx, r.q(`SELECT COUNT(1) FROM projects WHERE id=?`), id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListProjects returns every project, most recently updated first.
func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,document FROM projects ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, err
		}
		p, err := decodeDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", id, err)
		}
		p.ID = id
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) LatestEvents(ctx context.Context, limit int, projectID, evtType string) ([]domain.Event, error) {
	return r.LatestEventsFrom(ctx, limit, 0, projectID, evtType)
}

func (r Repo) LatestEventsFrom(ctx context.Context, limit int, cursor int64, projectID, evtType string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	clauses := []string{"1=1"}
	var args []any
	if projectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, projectID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,project_id,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var projectID, entityID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &projectID, &e.EntityKind, &entityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		e.ProjectID = projectID.String
		e.EntityID = entityID.String
		e.Payload = payload.String
		res = append(res, e)
	}
	return res, rows.Err()
}
