// Package present renders upload batches for people: as plain text for the
// command line and as the HTML form page for the server.
package present

import (
	"fmt"
	"io"
	"strings"

	"github.com/tomasbasham/s3apo/internal/upload"
)

const barWidth = 20

// WriteStatus writes a single record. Records with progress get a bar; a
// URL, when present, follows on its own indented line.
func WriteStatus(w io.Writer, s upload.Status) error {
	line := s.Message
	if s.HasProgress() {
		line = fmt.Sprintf("%s %s %3d%%", line, Bar(s.Percent()), s.Percent())
	}
	if _, err := fmt.Fprintln(w, line); err != nil {
		return err
	}
	if s.URL != "" {
		if _, err := fmt.Fprintf(w, "  %s\n", s.URL); err != nil {
			return err
		}
	}
	return nil
}

// Bar draws a fixed-width progress bar for percent, clamped to 0-100.
func Bar(percent int) string {
	percent = min(max(percent, 0), 100)
	filled := percent * barWidth / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled) + "]"
}
