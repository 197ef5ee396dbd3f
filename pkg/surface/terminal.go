package surface

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bizhealth/bizhealth/pkg/breakdown"
	"github.com/bizhealth/bizhealth/pkg/clienthealth"
	"github.com/bizhealth/bizhealth/pkg/scoring"
	"github.com/bizhealth/bizhealth/pkg/viewstate"
)

// TerminalRenderer renders a Result as colored terminal output.
type TerminalRenderer struct {
	// MaxRecommendations caps the recommendation list. Zero means 5.
	MaxRecommendations int
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

func bandColor(b breakdown.Band) string {
	if noColor() {
		return ""
	}
	switch b {
	case breakdown.BandExcellent, breakdown.BandGood:
		return colorGreen
	case breakdown.BandNeedsImprovement:
		return colorYellow
	case breakdown.BandCritical:
		return colorRed
	default:
		return ""
	}
}

func statusColor(s clienthealth.Status) string {
	switch s {
	case clienthealth.StatusExcellent, clienthealth.StatusGood:
		return colorGreen
	case clienthealth.StatusWarning:
		return colorYellow
	default:
		return colorRed
	}
}

func noColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

func bold(s string) string {
	if noColor() {
		return s
	}
	return colorBold + s + colorReset
}

func dim(s string) string {
	if noColor() {
		return s
	}
	return colorDim + s + colorReset
}

func colored(s, color string) string {
	if noColor() || color == "" {
		return s
	}
	return color + s + colorReset
}

func (r *TerminalRenderer) Render(w io.Writer, result *scoring.Result) error {
	title := "Business Health"
	if result.Workspace != "" {
		title += ": " + result.Workspace
	}
	fmt.Fprintf(w, "%s\n\n", bold(fmt.Sprintf("%s — %s/100 (%s)",
		title, breakdown.Points(result.Total), colored(string(result.Band), bandColor(result.Band)))))

	// Categories
	for _, ex := range result.Explanations {
		fmt.Fprintf(w, "  %-20s %6s/%s  %s\n", ex.Title,
			breakdown.Points(ex.Score), breakdown.Points(ex.MaxScore),
			colored(string(ex.Band), bandColor(ex.Band)))
		for _, line := range wrapText(ex.Summary, 70) {
			fmt.Fprintf(w, "    %s\n", dim(line))
		}
	}
	fmt.Fprintln(w)

	limit := r.MaxRecommendations
	if limit <= 0 {
		limit = 5
	}
	if len(result.Recommendations) == 0 {
		fmt.Fprintln(w, "No recommendations. Every calculation is at its maximum.")
		fmt.Fprintln(w)
		return nil
	}

	fmt.Fprintln(w, "Recommendations:")
	for i, rec := range result.Recommendations {
		if i >= limit {
			fmt.Fprintf(w, "  %s\n", dim(fmt.Sprintf("... and %d more", len(result.Recommendations)-limit)))
			break
		}
		fmt.Fprintf(w, "  %s %s %s\n", priorityMarker(rec.Priority), bold(rec.Title),
			dim(fmt.Sprintf("(+%s pts, %s effort, %s)", breakdown.Points(rec.Impact), rec.Effort, rec.Timeframe)))
		for _, line := range wrapText(rec.Description, 70) {
			fmt.Fprintf(w, "    %s\n", dim(line))
		}
	}
	fmt.Fprintln(w)

	writeList(w, "Top priorities", result.Insights.TopPriorities)
	writeList(w, "Quick wins", result.Insights.QuickWins)
	writeList(w, "Long-term goals", result.Insights.LongTermGoals)
	return nil
}

func priorityMarker(p scoring.Priority) string {
	switch p {
	case scoring.PriorityHigh:
		return colored("●", colorRed)
	case scoring.PriorityMedium:
		return colored("●", colorYellow)
	default:
		return colored("●", colorGreen)
	}
}

func writeList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(w, "  • %s\n", it)
	}
	fmt.Fprintln(w)
}

// RenderTree draws the nodes of tree that are visible under state. Siblings
// of the active node are dimmed and the focused node shows its calculation.
func RenderTree(w io.Writer, tree *breakdown.Node, state viewstate.State) error {
	if tree == nil {
		return fmt.Errorf("render tree: nil tree")
	}
	for _, id := range viewstate.Visible(tree, state) {
		n := breakdown.Find(tree, id)
		if n == nil {
			continue
		}
		marker := "•"
		if !n.IsLeaf() {
			marker = "▸"
			if viewstate.Expanded(tree, state, id) {
				marker = "▾"
			}
		}
		line := fmt.Sprintf("%s%s %s  %s/%s", strings.Repeat("  ", n.Level), marker, n.Name,
			breakdown.Points(n.Score), breakdown.Points(n.MaxScore))
		if n.IsLeaf() && n.CalculationValue != "" {
			line += "  " + n.CalculationValue
		}
		band := n.Band()
		if viewstate.Dimmed(tree, state, id) {
			fmt.Fprintln(w, dim(line+"  "+string(band)))
		} else {
			fmt.Fprintf(w, "%s  %s\n", line, colored(string(band), bandColor(band)))
		}
		if id == state.Focus && n.CalculationDescription != "" {
			fmt.Fprintf(w, "%s  %s\n", strings.Repeat("  ", n.Level+1), dim(n.CalculationDescription))
		}
	}
	return nil
}

// RenderClients writes one line per client followed by a status summary.
func RenderClients(w io.Writer, scores []clienthealth.HealthScore) error {
	if len(scores) == 0 {
		fmt.Fprintln(w, "No clients.")
		return nil
	}
	for _, h := range scores {
		name := h.Client.Name
		if name == "" {
			name = h.Client.ID
		}
		fmt.Fprintf(w, "  %-28s %3d  %s\n", name, h.Score, colored(string(h.Status), statusColor(h.Status)))
		if len(h.RiskFactors) > 0 {
			fmt.Fprintf(w, "      %s\n", dim("risk: "+h.RiskFactors[0]))
		}
		if len(h.Opportunities) > 0 {
			fmt.Fprintf(w, "      %s\n", dim("opportunity: "+h.Opportunities[0]))
		}
	}
	sum := clienthealth.Summarize(scores)
	fmt.Fprintf(w, "\n%d clients, average %s: %d excellent, %d good, %d warning, %d at risk\n",
		sum.Total, breakdown.Points(sum.AverageScore),
		sum.ByStatus[clienthealth.StatusExcellent], sum.ByStatus[clienthealth.StatusGood],
		sum.ByStatus[clienthealth.StatusWarning], sum.ByStatus[clienthealth.StatusAtRisk])
	return nil
}

// wrapText wraps a string at the given width, returning lines.
func wrapText(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]

	for _, word := range words[1:] {
		if len(current)+1+len(word) > width {
			lines = append(lines, current)
			current = word
		} else {
			current += " " + word
		}
	}
	lines = append(lines, current)
	return lines
}
