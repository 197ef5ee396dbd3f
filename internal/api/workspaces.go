package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/bizhealth/bizhealth/internal/history"
)

func (h *Handler) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	workspaces, err := h.history.ListWorkspaces(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list workspaces: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, workspaces)
}

// handleListScores returns a workspace's reports, newest first. ?limit=N
// caps the list (default 50).
func (h *Handler) handleListScores(w http.ResponseWriter, r *http.Request) {
	workspace := r.PathValue("workspace")

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	reports, err := h.history.ListReports(r.Context(), workspace, limit)
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "workspace not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list scores: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// handleHistory returns a workspace's score trend, oldest first.
// ?since= accepts RFC3339 or YYYY-MM-DD; ?days=N is relative to now.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	workspace := r.PathValue("workspace")
	q := r.URL.Query()

	var since time.Time
	switch {
	case q.Get("since") != "":
		t, err := parseSince(q.Get("since"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339 or YYYY-MM-DD")
			return
		}
		since = t
	case q.Get("days") != "":
		days, err := strconv.Atoi(q.Get("days"))
		if err != nil || days <= 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		since = time.Now().AddDate(0, 0, -days)
	}

	points, err := h.history.Trend(r.Context(), workspace, since)
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "workspace not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workspace": workspace,
		"points":    points,
	})
}

func parseSince(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
