package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bizhealth/bizhealth/internal/history"
	"github.com/bizhealth/bizhealth/internal/logging"
	"github.com/bizhealth/bizhealth/internal/metrics"
	"github.com/bizhealth/bizhealth/pkg/facts"
	"github.com/bizhealth/bizhealth/pkg/scoring"
)

// DefaultWorkspace names snapshots that do not carry a workspace.
const DefaultWorkspace = "default"

// Scorer abstracts the scoring engine so the ingestion package does not
// depend on a concrete implementation.
type Scorer interface {
	Score(snap *facts.Snapshot) (*scoring.Result, error)
}

// ReportStore indexes archived reports. *history.Service implements it.
type ReportStore interface {
	RecordReport(ctx context.Context, r *history.Report) error
	GetReport(ctx context.Context, id string) (*history.Report, error)
}

// Report is one scored, archived snapshot.
type Report struct {
	ID         string          `json:"id"`
	Workspace  string          `json:"workspace"`
	StorageRef string          `json:"storage_ref"`
	Result     *scoring.Result `json:"result"`
}

// Service orchestrates the scoring pipeline.
type Service struct {
	scorer  Scorer
	archive Archive
	store   ReportStore
	metrics *metrics.Recorder
	logger  *zap.Logger
	newID   func() string
}

// NewService creates a new ingestion Service. store, rec and logger may be
// nil.
func NewService(scorer Scorer, archive Archive, store ReportStore, rec *metrics.Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		scorer:  scorer,
		archive: archive,
		store:   store,
		metrics: rec,
		logger:  logging.WithComponent(logger, "ingestion"),
		newID:   uuid.NewString,
	}
}

// Ingest scores snap, archives the facts and the result, and records the
// report in history.
func (s *Service) Ingest(ctx context.Context, snap *facts.Snapshot) (*Report, error) {
	if snap == nil {
		return nil, scoring.ErrNilSnapshot
	}
	workspace := snap.Workspace
	if workspace == "" {
		workspace = DefaultWorkspace
	}

	// 1. Score
	start := time.Now()
	result, err := s.scorer.Score(snap)
	if err != nil {
		s.metrics.ObserveScore(workspace, 0, nil, time.Since(start), err)
		return nil, fmt.Errorf("score: %w", err)
	}
	s.metrics.ObserveScore(workspace, result.Total, map[string]float64{
		string(scoring.CategoryProfit):     result.Scores.Profit,
		string(scoring.CategoryCashflow):   result.Scores.Cashflow,
		string(scoring.CategoryEfficiency): result.Scores.Efficiency,
		string(scoring.CategoryRisk):       result.Scores.Risk,
	}, time.Since(start), nil)

	rep := &Report{
		ID:        s.newID(),
		Workspace: workspace,
		Result:    result,
	}
	rep.StorageRef = StorageRef(workspace, rep.ID)

	// 2. Archive facts and result
	factsData, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal facts: %w", err)
	}
	if err := s.archive.PutFacts(ctx, workspace, rep.ID, factsData); err != nil {
		s.metrics.ArchiveError("put_facts")
		return nil, fmt.Errorf("archive facts: %w", err)
	}
	reportData, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	if err := s.archive.PutReport(ctx, workspace, rep.ID, reportData); err != nil {
		s.metrics.ArchiveError("put_report")
		return nil, fmt.Errorf("archive report: %w", err)
	}

	// 3. Index
	if s.store != nil {
		row := &history.Report{
			ID:           rep.ID,
			Workspace:    workspace,
			Total:        result.Total,
			TotalRounded: result.TotalRounded,
			Band:         string(result.Band),
			Profit:       result.Scores.Profit,
			Cashflow:     result.Scores.Cashflow,
			Efficiency:   result.Scores.Efficiency,
			Risk:         result.Scores.Risk,
			StorageRef:   rep.StorageRef,
			ScoredAt:     result.ScoredAt,
		}
		if err := s.store.RecordReport(ctx, row); err != nil {
			return nil, fmt.Errorf("record history: %w", err)
		}
	}

	logging.WithFields(s.logger, logging.Fields{Workspace: workspace, ReportID: rep.ID}).Info("report archived",
		zap.Float64("total", result.Total),
		zap.String("band", string(result.Band)),
	)
	return rep, nil
}

// Load returns an archived report by ID.
func (s *Service) Load(ctx context.Context, reportID string) (*Report, error) {
	row, err := s.lookup(ctx, reportID)
	if err != nil {
		return nil, err
	}
	data, err := s.archive.GetReport(ctx, row.Workspace, reportID)
	if err != nil {
		s.metrics.ArchiveError("get_report")
		return nil, fmt.Errorf("load report %s: %w", reportID, err)
	}
	var result scoring.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal report %s: %w", reportID, err)
	}
	return &Report{ID: reportID, Workspace: row.Workspace, StorageRef: row.StorageRef, Result: &result}, nil
}

// LoadFacts returns the archived input of a report.
func (s *Service) LoadFacts(ctx context.Context, reportID string) (*facts.Snapshot, error) {
	row, err := s.lookup(ctx, reportID)
	if err != nil {
		return nil, err
	}
	data, err := s.archive.GetFacts(ctx, row.Workspace, reportID)
	if err != nil {
		s.metrics.ArchiveError("get_facts")
		return nil, fmt.Errorf("load facts %s: %w", reportID, err)
	}
	snap, err := facts.Decode(data, "json")
	if err != nil {
		return nil, fmt.Errorf("decode facts %s: %w", reportID, err)
	}
	return snap, nil
}

// Rescore runs the current engine over a report's archived facts and
// archives the outcome as a new report. The original is left untouched.
func (s *Service) Rescore(ctx context.Context, reportID string) (*Report, error) {
	snap, err := s.LoadFacts(ctx, reportID)
	if err != nil {
		return nil, err
	}
	rep, err := s.Ingest(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("rescore %s: %w", reportID, err)
	}
	return rep, nil
}

func (s *Service) lookup(ctx context.Context, reportID string) (*history.Report, error) {
	if s.store == nil {
		return nil, fmt.Errorf("lookup report %s: no history store: %w", reportID, ErrNotFound)
	}
	row, err := s.store.GetReport(ctx, reportID)
	if errors.Is(err, history.ErrNotFound) {
		return nil, fmt.Errorf("lookup report %s: %w", reportID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup report %s: %w", reportID, err)
	}
	return row, nil
}
