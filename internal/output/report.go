package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redthread-tools/redthread/pkg/models"
)

// reportName is the run summary written at the output root.
const reportName = "report.txt"

// WriteReport summarizes a finished run. Written even for empty results so
// the user can tell an empty thread from a failed one.
func WriteReport(dir, title string, res *models.RunResult) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("Comment extraction report\n\n")
	fmt.Fprintf(&b, "Note ID: %s\n", res.NoteID)
	fmt.Fprintf(&b, "URL: %s\n", res.URL)
	if title != "" {
		fmt.Fprintf(&b, "Title: %s\n", title)
	}
	fmt.Fprintf(&b, "Extracted at: %s\n", res.FinishedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Duration: %s\n", res.FinishedAt.Sub(res.StartedAt).Round(time.Second))
	fmt.Fprintf(&b, "Comments: %d\n", len(res.Comments))
	fmt.Fprintf(&b, "Iterations: %d\n", res.Iterations)
	fmt.Fprintf(&b, "Stop reason: %s\n", res.Reason)
	b.WriteString("Order: newest first\n")

	return os.WriteFile(filepath.Join(dir, reportName), []byte(b.String()), 0644)
}
