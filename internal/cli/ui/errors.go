package ui

import (
	"fmt"
	"strings"
)

// FormatError returns a styled error line followed by optional suggestions.
func FormatError(msg string, suggestions ...string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", StyleBoldRed.Render("Error:"), msg)
	if len(suggestions) > 0 {
		b.WriteString("\n" + StyleHint.Render("  Try:") + "\n")
		for _, s := range suggestions {
			fmt.Fprintf(&b, "    %s %s\n", StyleHint.Render(SymbolArrow), s)
		}
	}
	return b.String()
}

// Suggestions returns fixes for well-known startup failures.
func Suggestions(msg string) []string {
	switch {
	case strings.Contains(msg, "address already in use"):
		return []string{"imgfit start --port <other port>"}
	case strings.Contains(msg, "origin.local_path"), strings.Contains(msg, "opening origin"):
		return []string{"imgfit start --origin <directory with images>"}
	case strings.Contains(msg, "s3"):
		return []string{"imgfit config get origin.s3_endpoint", "check the bucket exists and the credentials can read it"}
	case strings.Contains(msg, "scaler.match"):
		return []string{"imgfit config set scaler.match \"\"  (restore the default pattern)"}
	}
	return nil
}
