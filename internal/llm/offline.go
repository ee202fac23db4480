package llm

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/wuwenbin0122/finbot/internal/models"
)

// Offline answers with canned advice when no API key is configured, streamed
// word by word so clients exercise the same rendering path.
type Offline struct {
	Delay time.Duration
}

func (o Offline) StartSession(ctx context.Context, spec Spec) (Session, error) {
	return offlineSession{persona: spec.Persona, delay: o.Delay}, nil
}

type offlineSession struct {
	persona models.Persona
	delay   time.Duration
}

func (s offlineSession) SendStream(ctx context.Context, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, word := range strings.Split(OfflineReply(text, s.persona), " ") {
			if s.delay > 0 {
				timer := time.NewTimer(s.delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					yield("", ctx.Err())
					return
				case <-timer.C:
				}
			} else if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(word+" ", nil) {
				return
			}
		}
	}
}

// OfflineReply picks the canned answer for message.
func OfflineReply(message string, persona models.Persona) string {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "hello") || strings.Contains(lower, "hi"):
		return "Hello! I'm your personal finance assistant. I can help with budgeting, saving, investing and taxes. What would you like to know about?"
	case strings.Contains(lower, "budget") || strings.Contains(lower, "saving"):
		return "Great question about budgeting! Here are some key tips:\n\n1. Track your income and expenses\n2. Set financial goals\n3. Create spending categories\n4. Monitor and adjust regularly\n\nWould you like help creating a personalised budget plan?"
	case strings.Contains(lower, "invest") || strings.Contains(lower, "stock"):
		if persona == "" {
			persona = models.PersonaStudent
		}
		return fmt.Sprintf("Investment advice depends on your risk tolerance and goals. Based on your profile (%s), I'd start with:\n\n1. Emergency fund first\n2. Diversified index funds\n3. Dollar-cost averaging\n4. Regular portfolio review\n\nWhat's your investment timeline and risk preference?", persona)
	case strings.Contains(lower, "tax") || strings.Contains(lower, "deduction"):
		return "Tax optimisation is important! Some general tips:\n\n1. Maximise retirement contributions\n2. Consider tax-loss harvesting\n3. Keep good records\n4. Consult a tax professional\n\nWhat specific tax questions do you have?"
	default:
		return fmt.Sprintf("I understand you're asking about %q. I'm currently in offline mode, but I can still offer general financial guidance. For personalised advice, configure an API key. What financial topic would you like to discuss?", message)
	}
}
