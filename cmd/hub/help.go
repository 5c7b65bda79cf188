package main

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/kuhandran/Content-Hub-sub001/internal/ui"
)

// helpRule styles one capture group of every match of re.
type helpRule struct {
	re    *regexp.Regexp
	group int
	style func(string) string
}

// Rules applied in order to Cobra's plain help text.
var helpRules = []helpRule{
	// Section headers such as "Content:" or "Flags:".
	{regexp.MustCompile(`(?m)^([A-Z][^\n]*:)[ \t]*$`), 1, ui.RenderAccent},
	// Command names in the command lists.
	{regexp.MustCompile(`(?m)^  (\S+)  `), 1, ui.RenderCommand},
	// Flag value types, e.g. "--url string".
	{regexp.MustCompile(`--?\S+\s+(string|int|duration|strings)\b`), 1, ui.RenderMuted},
	// (default "...") annotations.
	{regexp.MustCompile(`(\(default "[^"]*"\))`), 1, ui.RenderMuted},
}

// colorizedHelpFunc returns a Cobra help function that colors the default
// help output when stdout supports it.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelp(buf.String()))
	}
}

func colorizeHelp(s string) string {
	for _, r := range helpRules {
		s = applyRule(s, r)
	}
	return s
}

// applyRule replaces the rule's group inside each match, leaving the rest of
// the match untouched.
func applyRule(s string, r helpRule) string {
	var b bytes.Buffer
	last := 0
	for _, m := range r.re.FindAllStringSubmatchIndex(s, -1) {
		start, end := m[2*r.group], m[2*r.group+1]
		if start < 0 {
			continue
		}
		b.WriteString(s[last:start])
		b.WriteString(r.style(s[start:end]))
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}
