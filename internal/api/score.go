package api

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/bizhealth/bizhealth/pkg/facts"
)

// maxBodyBytes bounds decoded request bodies.
const maxBodyBytes = 8 << 20

type scoreResponse struct {
	ReportID   string `json:"report_id"`
	Workspace  string `json:"workspace"`
	StorageRef string `json:"storage_ref"`
	Result     any    `json:"result"`
}

// readBody returns the request body, transparently gunzipped.
func readBody(r *http.Request) ([]byte, error) {
	var body io.Reader = r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil, fmt.Errorf("invalid gzip body: %w", err)
		}
		defer gz.Close()
		body = gz
	}
	data, err := io.ReadAll(io.LimitReader(body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) > maxBodyBytes {
		return nil, errors.New("request body too large")
	}
	return data, nil
}

// factsFormat maps a Content-Type onto a facts decoder format. JSON is the
// default.
func factsFormat(contentType string) string {
	mt, _, _ := mime.ParseMediaType(contentType)
	switch mt {
	case "application/yaml", "application/x-yaml", "text/yaml":
		return "yaml"
	case "application/toml", "text/toml":
		return "toml"
	}
	return "json"
}

// handleScore handles POST /api/v1/score: score a facts snapshot, archive
// it and return the report.
func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := facts.Decode(data, factsFormat(r.Header.Get("Content-Type")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid facts: "+err.Error())
		return
	}

	rep, err := h.reports.Ingest(r.Context(), snap)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to score: "+err.Error())
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
