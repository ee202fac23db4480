package chat

import (
	"strings"
	"unicode/utf8"
)

const (
	maxFollowups = 3
	titleRunes   = 40
)

type topic struct {
	keywords    []string
	suggestions []string
}

// Checked in order; each matching topic contributes both suggestions.
var topics = []topic{
	{
		keywords: []string{"budget"},
		suggestions: []string{
			"Can you build a monthly budget template for me?",
			"What 3 changes would save me the most next month?",
		},
	},
	{
		keywords: []string{"invest", "portfolio"},
		suggestions: []string{
			"What is a simple diversified plan for my risk level?",
			"Explain dollar-cost averaging for my situation.",
		},
	},
	{
		keywords: []string{"tax"},
		suggestions: []string{
			"Which deductions might apply to me?",
			"How can I reduce my taxable income legally?",
		},
	},
}

var fallbackFollowups = []string{
	"What should I do next to reach my goal?",
	"Summarize my options and trade-offs.",
}

// Followups suggests next questions from a finished exchange. At most three
// distinct suggestions are returned; the two generic ones are used only when
// no topic matches.
func Followups(userText, botText string) []string {
	corpus := strings.ToLower(userText + " " + botText)

	var candidates []string
	for _, t := range topics {
		for _, kw := range t.keywords {
			if strings.Contains(corpus, kw) {
				candidates = append(candidates, t.suggestions...)
				break
			}
		}
	}
	if len(candidates) == 0 {
		candidates = fallbackFollowups
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, maxFollowups)
	for _, c := range candidates {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
		if len(out) == maxFollowups {
			break
		}
	}
	return out
}

// Title derives a chat title from the first user message.
func Title(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= titleRunes {
		return text
	}
	return string([]rune(text)[:titleRunes]) + "…"
}
