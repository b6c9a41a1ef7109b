package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/joseph-ayodele/brd-breakdown/internal/entity"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	titleColor   = color.New(color.FgMagenta, color.Bold)
)

func printSuccess(w io.Writer, format string, args ...any) {
	_, _ = successColor.Fprintf(w, "✅ "+format+"\n", args...)
}

func printError(w io.Writer, format string, args ...any) {
	_, _ = errorColor.Fprintf(w, "❌ "+format+"\n", args...)
}

func printWarning(w io.Writer, format string, args ...any) {
	_, _ = warningColor.Fprintf(w, "⚠️  "+format+"\n", args...)
}

func printInfo(w io.Writer, format string, args ...any) {
	_, _ = infoColor.Fprintf(w, "ℹ️  "+format+"\n", args...)
}

// printBreakdown writes a short outline: one line per epic, indented stories.
func printBreakdown(w io.Writer, epics []entity.Epic) {
	_, _ = titleColor.Fprintf(w, "🎯 %d epics\n", len(epics))
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 60))
	for i, e := range epics {
		_, _ = fmt.Fprintf(w, "%d. %s (%d stories)\n", i+1, e.EpicName, len(e.UserStories))
		for _, s := range e.UserStories {
			_, _ = fmt.Fprintf(w, "   - [%s] %s\n", s.Label, s.StoryName)
		}
	}
}
