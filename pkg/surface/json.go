package surface

import (
	"encoding/json"
	"io"

	"github.com/bizhealth/bizhealth/pkg/clienthealth"
	"github.com/bizhealth/bizhealth/pkg/scoring"
)

// JSONRenderer marshals a Result to indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(w io.Writer, result *scoring.Result) error {
	return writeJSON(w, result)
}

// ClientReport is the JSON shape of a scored client batch.
type ClientReport struct {
	Clients []clienthealth.HealthScore `json:"clients"`
	Summary clienthealth.Summary       `json:"summary"`
}

// RenderClientsJSON writes scores and their summary as indented JSON.
func RenderClientsJSON(w io.Writer, scores []clienthealth.HealthScore) error {
	return writeJSON(w, ClientReport{Clients: scores, Summary: clienthealth.Summarize(scores)})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
