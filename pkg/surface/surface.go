// Package surface defines output rendering for bizhealth results.
// Implementations handle different output targets: terminal, Markdown, JSON.
package surface

import (
	"fmt"
	"io"

	"github.com/bizhealth/bizhealth/pkg/scoring"
)

// Renderer produces formatted output from a scoring Result.
type Renderer interface {
	// Render writes the formatted result to the writer.
	Render(w io.Writer, result *scoring.Result) error
}

// ForFormat returns the renderer for an --output value: text, json or
// markdown.
func ForFormat(format string) (Renderer, error) {
	switch format {
	case "", "text":
		return &TerminalRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	case "markdown", "md":
		return &MarkdownRenderer{}, nil
	}
	return nil, fmt.Errorf("unknown output format %q (want text, json or markdown)", format)
}
