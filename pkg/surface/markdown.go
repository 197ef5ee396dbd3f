package surface

import (
	"fmt"
	"io"
	"strings"

	"github.com/bizhealth/bizhealth/pkg/breakdown"
	"github.com/bizhealth/bizhealth/pkg/scoring"
)

// MarkdownRenderer produces a Markdown report, suitable for chat or
// ticketing integrations.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(w io.Writer, result *scoring.Result) error {
	_, err := io.WriteString(w, BuildMarkdownSummary(result))
	return err
}

// BuildMarkdownSummary renders result as a Markdown document.
func BuildMarkdownSummary(result *scoring.Result) string {
	var sb strings.Builder

	title := "Business Health"
	if result.Workspace != "" {
		title += ": " + result.Workspace
	}
	sb.WriteString(fmt.Sprintf("## %s %s %s/100 (%s)\n\n", bandIcon(result.Band), title, breakdown.Points(result.Total), result.Band))

	sb.WriteString("### Categories\n\n")
	sb.WriteString("| Category | Score | Band |\n|----------|-------|------|\n")
	for _, ex := range result.Explanations {
		sb.WriteString(fmt.Sprintf("| %s | %s/%s | %s %s |\n", ex.Title,
			breakdown.Points(ex.Score), breakdown.Points(ex.MaxScore), bandIcon(ex.Band), ex.Band))
	}
	sb.WriteString("\n")

	for _, ex := range result.Explanations {
		sb.WriteString(fmt.Sprintf("**%s.** %s\n", ex.Title, ex.Summary))
		for _, d := range ex.Details {
			sb.WriteString(fmt.Sprintf("  - %s\n", d))
		}
		sb.WriteString("\n")
	}

	// Recommendations (max 5)
	if len(result.Recommendations) > 0 {
		sb.WriteString("### Recommendations\n\n")
		for i, rec := range result.Recommendations {
			if i >= 5 {
				sb.WriteString(fmt.Sprintf("_... and %d more recommendations_\n", len(result.Recommendations)-5))
				break
			}
			sb.WriteString(fmt.Sprintf("- %s **%s** (+%s pts) — %s\n",
				priorityIcon(rec.Priority), rec.Title, breakdown.Points(rec.Impact), priorityLabel(rec.Priority)))
			sb.WriteString(fmt.Sprintf("  - %s\n", rec.Description))
			if rec.Metrics.Current != "" {
				sb.WriteString(fmt.Sprintf("  - Current: %s, target: %s\n", rec.Metrics.Current, rec.Metrics.Target))
			}
		}
		sb.WriteString("\n")
	}

	if len(result.Insights.QuickWins) > 0 {
		sb.WriteString("### Quick wins\n\n")
		for _, q := range result.Insights.QuickWins {
			sb.WriteString(fmt.Sprintf("- %s\n", q))
		}
	}

	return sb.String()
}

func bandIcon(b breakdown.Band) string {
	switch b {
	case breakdown.BandExcellent:
		return ":green_circle:"
	case breakdown.BandGood:
		return ":large_blue_circle:"
	case breakdown.BandNeedsImprovement:
		return ":orange_circle:"
	default:
		return ":red_circle:"
	}
}

func priorityIcon(p scoring.Priority) string {
	switch p {
	case scoring.PriorityHigh:
		return ":red_circle:"
	case scoring.PriorityMedium:
		return ":orange_circle:"
	default:
		return ":yellow_circle:"
	}
}

func priorityLabel(p scoring.Priority) string {
	switch p {
	case scoring.PriorityHigh:
		return "HIGH"
	case scoring.PriorityMedium:
		return "MEDIUM"
	default:
		return "LOW"
	}
}
