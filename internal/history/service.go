// Package history records scored reports per workspace in Postgres.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a workspace or report does not exist.
var ErrNotFound = errors.New("not found")

// Service provides workspace and score history storage backed by Postgres.
type Service struct {
	db *sql.DB
}

// Workspace is one business being scored.
type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Report is the indexed summary of one archived score. The full result
// lives in the archive under StorageRef.
type Report struct {
	ID           string    `json:"id"`
	WorkspaceID  string    `json:"workspace_id"`
	Workspace    string    `json:"workspace"`
	Total        float64   `json:"total"`
	TotalRounded int       `json:"total_rounded"`
	Band         string    `json:"band"`
	Profit       float64   `json:"profit"`
	Cashflow     float64   `json:"cashflow"`
	Efficiency   float64   `json:"efficiency"`
	Risk         float64   `json:"risk"`
	StorageRef   string    `json:"storage_ref"`
	ScoredAt     time.Time `json:"scored_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// Point is one entry of a workspace's score trend.
type Point struct {
	ReportID   string    `json:"report_id"`
	ScoredAt   time.Time `json:"scored_at"`
	Total      float64   `json:"total"`
	Profit     float64   `json:"profit"`
	Cashflow   float64   `json:"cashflow"`
	Efficiency float64   `json:"efficiency"`
	Risk       float64   `json:"risk"`
}

// NewService creates a new history Service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Ping checks the database connection.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureWorkspace gets or creates the workspace with the given name.
func (s *Service) EnsureWorkspace(ctx context.Context, name string) (*Workspace, error) {
	w := &Workspace{}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO workspaces (id, name)
		 VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, name, created_at`,
		uuid.NewString(), name,
	).Scan(&w.ID, &w.Name, &w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ensure workspace %s: %w", name, err)
	}
	return w, nil
}

// GetWorkspace looks up a workspace by name.
func (s *Service) GetWorkspace(ctx context.Context, name string) (*Workspace, error) {
	w := &Workspace{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM workspaces WHERE name = $1`,
		name,
	).Scan(&w.ID, &w.Name, &w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get workspace %s: %w", name, notFound(err))
	}
	return w, nil
}

// ListWorkspaces returns all workspaces ordered by name.
func (s *Service) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM workspaces ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	workspaces := []Workspace{}
	for rows.Next() {
		var w Workspace
		if err := rows.Scan(&w.ID, &w.Name, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		workspaces = append(workspaces, w)
	}
	return workspaces, rows.Err()
}

// RecordReport inserts a report row, creating its workspace if needed.
// r.ID must already be set; r.WorkspaceID and r.CreatedAt are filled in.
func (s *Service) RecordReport(ctx context.Context, r *Report) error {
	if r.ID == "" {
		return fmt.Errorf("record report: missing id")
	}
	w, err := s.EnsureWorkspace(ctx, r.Workspace)
	if err != nil {
		return fmt.Errorf("record report: %w", err)
	}
	r.WorkspaceID = w.ID
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO score_reports (id, workspace_id, total, total_rounded, band,
		                            profit, cashflow, efficiency, risk, storage_ref, scored_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at`,
		r.ID, r.WorkspaceID, r.Total, r.TotalRounded, r.Band,
		r.Profit, r.Cashflow, r.Efficiency, r.Risk, r.StorageRef, r.ScoredAt,
	).Scan(&r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert report %s: %w", r.ID, err)
	}
	return nil
}

const reportColumns = `r.id, r.workspace_id, w.name, r.total, r.total_rounded, r.band,
		        r.profit, r.cashflow, r.efficiency, r.risk, r.storage_ref, r.scored_at, r.created_at`

func scanReport(sc interface{ Scan(...any) error }, r *Report) error {
	return sc.Scan(&r.ID, &r.WorkspaceID, &r.Workspace, &r.Total, &r.TotalRounded, &r.Band,
		&r.Profit, &r.Cashflow, &r.Efficiency, &r.Risk, &r.StorageRef, &r.ScoredAt, &r.CreatedAt)
}

// GetReport returns a single report by ID.
func (s *Service) GetReport(ctx context.Context, id string) (*Report, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, ErrNotFound)
	}
	r := &Report{}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+`
		 FROM score_reports r JOIN workspaces w ON w.id = r.workspace_id
		 WHERE r.id = $1`,
		id,
	)
	if err := scanReport(row, r); err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, notFound(err))
	}
	return r, nil
}

// ListReports returns a workspace's reports, newest first. limit <= 0
// means no limit.
func (s *Service) ListReports(ctx context.Context, workspace string, limit int) ([]Report, error) {
	if _, err := s.GetWorkspace(ctx, workspace); err != nil {
		return nil, err
	}
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reportColumns+`
		 FROM score_reports r JOIN workspaces w ON w.id = r.workspace_id
		 WHERE w.name = $1
		 ORDER BY r.scored_at DESC, r.created_at DESC
		 LIMIT $2`,
		workspace, lim,
	)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	reports := []Report{}
	for rows.Next() {
		var r Report
		if err := scanReport(rows, &r); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// Trend returns a workspace's scores scored at or after since, oldest
// first. A zero since returns the full history.
func (s *Service) Trend(ctx context.Context, workspace string, since time.Time) ([]Point, error) {
	if _, err := s.GetWorkspace(ctx, workspace); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.scored_at, r.total, r.profit, r.cashflow, r.efficiency, r.risk
		 FROM score_reports r JOIN workspaces w ON w.id = r.workspace_id
		 WHERE w.name = $1 AND r.scored_at >= $2
		 ORDER BY r.scored_at ASC, r.created_at ASC`,
		workspace, since,
	)
	if err != nil {
		return nil, fmt.Errorf("query trend: %w", err)
	}
	defer rows.Close()

	points := []Point{}
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.ReportID, &p.ScoredAt, &p.Total, &p.Profit, &p.Cashflow, &p.Efficiency, &p.Risk); err != nil {
			return nil, fmt.Errorf("scan trend point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
