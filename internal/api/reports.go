package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bizhealth/bizhealth/internal/ingestion"
	"github.com/bizhealth/bizhealth/pkg/scoring"
	"github.com/bizhealth/bizhealth/pkg/surface"
	"github.com/bizhealth/bizhealth/pkg/viewstate"
)

// loadReport loads a report by ID, checking the cache first.
func (h *Handler) loadReport(ctx context.Context, id string) (*ingestion.Report, error) {
	if rep := h.cache.Get(id); rep != nil {
		h.metrics.CacheLookup(true)
		return rep, nil
	}
	h.metrics.CacheLookup(false)

	rep, err := h.reports.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	h.cache.Put(id, rep)
	return rep, nil
}

// writeLoadError maps a report lookup failure onto a response.
func writeLoadError(w http.ResponseWriter, err error) {
	if errors.Is(err, ingestion.ErrNotFound) {
		writeError(w, http.StatusNotFound, "score not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "failed to load score: "+err.Error())
}

// handleGetScore returns a report as JSON, or as Markdown with
// ?format=markdown.
func (h *Handler) handleGetScore(w http.ResponseWriter, r *http.Request) {
	rep, err := h.loadReport(r.Context(), r.PathValue("scoreID"))
	if err != nil {
		writeLoadError(w, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, scoreResponse{
			ReportID:   rep.ID,
			Workspace:  rep.Workspace,
			StorageRef: rep.StorageRef,
			Result:     rep.Result,
		})
	case "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, surface.BuildMarkdownSummary(rep.Result))
	default:
		writeError(w, http.StatusBadRequest, "format must be json or markdown")
	}
}

type treeResponse struct {
	Category scoring.Category `json:"category"`
	State    viewstate.State  `json:"state"`
	Visible  []string         `json:"visible"`
	Tree     any              `json:"tree"`
}

// handleGetTree returns one category tree. ?activate= and ?focus= are
// applied through the view-state reducer and the visible node ids are
// returned alongside the tree.
func (h *Handler) handleGetTree(w http.ResponseWriter, r *http.Request) {
	rep, err := h.loadReport(r.Context(), r.PathValue("scoreID"))
	if err != nil {
		writeLoadError(w, err)
		return
	}

	category := scoring.Category(strings.ToLower(r.PathValue("category")))
	tree := rep.Result.Tree(category)
	if tree == nil {
		writeError(w, http.StatusNotFound, "unknown category "+string(category))
		return
	}

	state := viewstate.State{}
	q := r.URL.Query()
	if id := q.Get("activate"); id != "" {
		state = viewstate.Reduce(tree, state, viewstate.Activate{ID: id})
	}
	if id := q.Get("focus"); id != "" {
		state = viewstate.Reduce(tree, state, viewstate.Focus{ID: id})
	}

	writeJSON(w, http.StatusOK, treeResponse{
		Category: category,
		State:    state,
		Visible:  viewstate.Visible(tree, state),
		Tree:     tree,
	})
}

// handleRescore re-runs the current engine over a report's archived facts
// and stores the outcome as a new report.
func (h *Handler) handleRescore(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.Rescore(r.Context(), r.PathValue("scoreID"))
	if err != nil {
		writeLoadError(w, err)
		return
	}
	h.cache.Put(rep.ID, rep)

	writeJSON(w, http.StatusCreated, scoreResponse{
		ReportID:   rep.ID,
		Workspace:  rep.Workspace,
		StorageRef: rep.StorageRef,
		Result:     rep.Result,
	})
}
