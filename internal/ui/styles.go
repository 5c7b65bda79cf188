package ui

import "fmt"

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorOK     = 114 // green
	colorWarn   = 179 // yellow
	colorError  = 167 // red
)

var noColor bool

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

func RenderOK(s string) string    { return render(colorOK, s) }
func RenderWarn(s string) string  { return render(colorWarn, s) }
func RenderError(s string) string { return render(colorError, s) }

// RenderStatus colors a health or check value: "ok" green, "degraded"
// yellow, anything else red.
func RenderStatus(s string) string {
	switch s {
	case "ok":
		return RenderOK(s)
	case "degraded":
		return RenderWarn(s)
	}
	return RenderError(s)
}

// RenderTier colors a resolution tier: cache hits stand out, filesystem
// fallbacks are flagged.
func RenderTier(tier string) string {
	switch tier {
	case "cache":
		return RenderOK(tier)
	case "database":
		return RenderAccent(tier)
	case "filesystem":
		return RenderWarn(tier)
	}
	return tier
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
