package errors

import (
	"strings"

	"go.uber.org/atomic"
)

type style string

const (
	styleNone    style = ""
	styleError   style = "\033[1;31m"
	styleWarning style = "\033[1;33m"
	styleStrong  style = "\033[1m"
	styleFile    style = "\033[36m"
	styleMuted   style = "\033[90m"
	styleEnd           = "\033[0m"
)

var colors = atomic.NewBool(true)

// DisableColors turns off ANSI escapes in Format and WarningMarker.
func DisableColors() { colors.Store(false) }

// EnableColors turns ANSI escapes back on.
func EnableColors() { colors.Store(true) }

func (s style) paint(text string) string {
	if s == styleNone || !colors.Load() {
		return text
	}
	return string(s) + text + styleEnd
}

// WarningMarker is the prefix the CLI prints before one-line warnings.
func WarningMarker() string {
	return styleWarning.paint("⚠")
}

// Format renders the error as an indented block for the terminal:
//
//	ERROR E211: Prerender URL does not match any page
//
//	  /pages/movie/index.page.server.go
//
//	  URL "/bogus" does not match any page
//
//	  Hint: Check the URLs returned by your prerender hook
func (e *VPSError) Format() string {
	header, headerStyle := "ERROR", styleError
	if e.Category == CategoryWarning {
		header, headerStyle = "WARNING", styleWarning
	}
	title := headerStyle.paint(header)
	if e.Code != "" {
		title += styleStrong.paint(" " + e.Code + ":")
	} else {
		title += styleStrong.paint(":")
	}
	title += " " + e.Message

	sections := [][]string{{title}}
	if e.Location != nil {
		sections = append(sections, indent(styleFile.paint(e.Location.String())))
	}
	if e.Detail != "" {
		sections = append(sections, indent(wrapText(e.Detail, 70)...))
	}
	if e.Wrapped != nil {
		sections = append(sections, indent(styleMuted.paint("Caused by: ")+e.Wrapped.Error()))
	}
	if e.Suggestion != "" {
		sections = append(sections, indent(styleFile.paint("Hint: ")+e.Suggestion))
	}

	blocks := make([]string, len(sections))
	for i, lines := range sections {
		blocks[i] = strings.Join(lines, "\n")
	}
	return "\n" + strings.Join(blocks, "\n\n") + "\n"
}

// FormatCompact renders the error on one line as
// "file: CODE: message (detail)".
func (e *VPSError) FormatCompact() string {
	parts := make([]string, 0, 3)
	if e.Location != nil {
		parts = append(parts, e.Location.String())
	}
	if e.Code != "" {
		parts = append(parts, e.Code)
	}
	msg := e.Message
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return strings.Join(append(parts, msg), ": ")
}

func indent(lines ...string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = "  " + line
	}
	return out
}

// wrapText breaks text into lines of at most width bytes, never splitting
// a word.
func wrapText(text string, width int) []string {
	var (
		lines []string
		line  strings.Builder
	)
	for _, word := range strings.Fields(text) {
		if line.Len() > 0 && line.Len()+1+len(word) > width {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}
