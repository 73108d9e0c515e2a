package inference

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// ExtractReasoning splits a raw model response into discrete reasoning
// steps and the remaining answer. Every <think>…</think> span is removed
// from the answer; span contents are split on line breaks, trimmed, and
// emptied lines dropped, preserving order. A response with no marked span
// yields no steps and the full trimmed input as the answer.
func ExtractReasoning(raw string) (steps []string, answer string) {
	steps = []string{}
	var remainder strings.Builder

	rest := raw
	for {
		open := strings.Index(rest, thinkOpen)
		if open < 0 {
			remainder.WriteString(rest)
			break
		}
		remainder.WriteString(rest[:open])
		rest = rest[open+len(thinkOpen):]

		closeIdx := strings.Index(rest, thinkClose)
		if closeIdx < 0 {
			// Unterminated span: treat everything after the marker as
			// thinking rather than leaking it into the answer.
			steps = append(steps, splitSteps(rest)...)
			rest = ""
			break
		}
		steps = append(steps, splitSteps(rest[:closeIdx])...)
		rest = rest[closeIdx+len(thinkClose):]
	}

	return steps, strings.TrimSpace(remainder.String())
}

func splitSteps(span string) []string {
	lines := strings.Split(span, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
