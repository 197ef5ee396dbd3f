package api

import (
	"encoding/json"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/bizhealth/bizhealth/pkg/clienthealth"
	"github.com/bizhealth/bizhealth/pkg/facts"
)

// scoreClientsRequest is the JSON body for POST /api/v1/clients/score.
type scoreClientsRequest struct {
	Clients []facts.ClientFacts `json:"clients"`
	Sort    string              `json:"sort"` // score, revenue or risk
}

type scoreClientsResponse struct {
	Clients []clienthealth.HealthScore `json:"clients"`
	Summary clienthealth.Summary       `json:"summary"`
}

func (h *Handler) handleScoreClients(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req scoreClientsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	sortBy, ok := clienthealth.ParseSortBy(req.Sort)
	if !ok {
		writeError(w, http.StatusBadRequest, "sort must be one of score, revenue, risk")
		return
	}

	// Results land in their input slot so ties keep input order.
	scores := make([]clienthealth.HealthScore, len(req.Clients))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(h.concurrency)
	for i := range req.Clients {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			scores[i] = h.clients.Score(req.Clients[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "client scoring cancelled: "+err.Error())
		return
	}
	clienthealth.Sort(scores, sortBy)
	h.metrics.ClientsScored(len(scores))

	writeJSON(w, http.StatusOK, scoreClientsResponse{
		Clients: scores,
		Summary: clienthealth.Summarize(scores),
	})
}
