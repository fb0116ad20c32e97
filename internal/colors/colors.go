// Package colors renders contentsync CLI output with ANSI colors when the
// terminal supports them. NO_COLOR disables colors and FORCE_COLOR enables them.
package colors

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// ANSI color codes
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorDim   = "\033[2m"
	ColorGray  = "\033[90m"

	BrightRed    = "\033[91m"
	BrightGreen  = "\033[92m"
	BrightYellow = "\033[93m"
	BrightBlue   = "\033[94m"
	BrightCyan   = "\033[96m"
)

var colorEnabled = shouldUseColor()

func shouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}

	term := strings.ToLower(os.Getenv("TERM"))
	if runtime.GOOS == "windows" {
		return os.Getenv("WT_SESSION") != "" || strings.Contains(term, "xterm") || strings.Contains(term, "color")
	}
	if term == "dumb" || term == "" {
		return false
	}

	if fileInfo, err := os.Stdout.Stat(); err == nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return true
}

// SetColorEnabled allows manual control of color output
func SetColorEnabled(enabled bool) {
	colorEnabled = enabled
}

// IsColorEnabled returns whether colors are currently enabled
func IsColorEnabled() bool {
	return colorEnabled
}

func colorize(text, color string) string {
	if !colorEnabled {
		return text
	}
	return color + text + ColorReset
}

func Red(text string) string    { return colorize(text, BrightRed) }
func Green(text string) string  { return colorize(text, BrightGreen) }
func Yellow(text string) string { return colorize(text, BrightYellow) }
func Blue(text string) string   { return colorize(text, BrightBlue) }
func Cyan(text string) string   { return colorize(text, BrightCyan) }
func Gray(text string) string   { return colorize(text, ColorGray) }
func Bold(text string) string   { return colorize(text, ColorBold) }
func Dim(text string) string    { return colorize(text, ColorDim) }

func SectionHeader(text string) string { return Bold(text) }
func ErrorText(text string) string     { return Red(text) }
func SuccessText(text string) string   { return Green(text) }
func InfoText(text string) string      { return Cyan(text) }
func WarningText(text string) string   { return Yellow(text) }

// BlockLine formats one block for status and verify listings, prefixed
// with a one-letter marker for its state.
func BlockLine(state, id, detail string) string {
	var marker string
	switch strings.ToLower(state) {
	case "installed", "ok":
		marker, id = Green("✓"), Green(id)
	case "download", "new":
		marker, id = Blue("+"), Blue(id)
	case "remove", "obsolete":
		marker, id = Red("-"), Red(id)
	case "damaged":
		marker, id = Red("!"), Red(id)
	case "untracked", "stale":
		marker, id = Yellow("?"), Yellow(id)
	default:
		marker = " "
	}
	if detail == "" {
		return fmt.Sprintf("  %s  %s", marker, id)
	}
	return fmt.Sprintf("  %s  %s  %s", marker, id, Gray(detail))
}
