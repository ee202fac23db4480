package chat_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/wuwenbin0122/finbot/internal/chat"
)

var (
	budgetFollowups = []string{
		"Can you build a monthly budget template for me?",
		"What 3 changes would save me the most next month?",
	}
	investFollowups = []string{
		"What is a simple diversified plan for my risk level?",
		"Explain dollar-cost averaging for my situation.",
	}
	genericFollowups = []string{
		"What should I do next to reach my goal?",
		"Summarize my options and trade-offs.",
	}
)

func TestFollowups(t *testing.T) {
	cases := []struct {
		name string
		user string
		bot  string
		want []string
	}{
		{
			name: "budget question",
			user: "How do I budget better?",
			bot:  "Track spending and set savings goals.",
			want: budgetFollowups,
		},
		{
			name: "no keyword falls back",
			user: "Hello there",
			bot:  "Hi! How can I help?",
			want: genericFollowups,
		},
		{
			name: "portfolio counts as investing",
			user: "Review my PORTFOLIO",
			bot:  "Looks fine.",
			want: investFollowups,
		},
		{
			name: "keyword only in reply",
			user: "What now?",
			bot:  "Consider where you invest next.",
			want: investFollowups,
		},
		{
			name: "all topics capped at three in order",
			user: "budget and tax",
			bot:  "invest",
			want: []string{budgetFollowups[0], budgetFollowups[1], investFollowups[0]},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := chat.Followups(tc.user, tc.bot)
			if !slices.Equal(got, tc.want) {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestFollowupsAreDistinctAndBounded(t *testing.T) {
	inputs := []string{"budget", "invest", "portfolio", "tax", "budget invest", "tax portfolio invest", ""}
	for _, in := range inputs {
		got := chat.Followups(in, in)
		if len(got) > 3 {
			t.Fatalf("%q: expected at most 3 suggestions, got %d", in, len(got))
		}
		seen := map[string]bool{}
		for _, s := range got {
			if seen[s] {
				t.Fatalf("%q: duplicate suggestion %q", in, s)
			}
			seen[s] = true
		}
		generic := slices.Equal(got, genericFollowups)
		if generic != (in == "") {
			t.Fatalf("%q: generic fallback returned=%v", in, generic)
		}
	}
}

func TestTitle(t *testing.T) {
	if got := chat.Title("  How do I budget better?  "); got != "How do I budget better?" {
		t.Fatalf("expected short title unchanged, got %q", got)
	}

	long := strings.Repeat("a", 40) + "bcd"
	if got := chat.Title(long); got != strings.Repeat("a", 40)+"…" {
		t.Fatalf("expected truncated title, got %q", got)
	}

	exact := strings.Repeat("é", 40)
	if got := chat.Title(exact); got != exact {
		t.Fatalf("expected 40-rune title without ellipsis, got %q", got)
	}
}
