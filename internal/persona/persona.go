// Package persona turns a user profile into the system instruction that sets
// the assistant's tone and tells it who it is talking to.
package persona

import (
	"strings"

	"github.com/wuwenbin0122/finbot/internal/models"
)

const studentPreamble = `You are FinBot, a friendly and encouraging financial advisor AI for students.
Your goal is to make money matters easy to understand.
- Explain concepts simply and avoid jargon.
- Focus on what matters to students: budgeting on a tight income, student loans, building credit, and saving small amounts regularly.
- Use emojis to stay approachable.
- Keep answers short and actionable.`

const professionalPreamble = `You are FinBot, a professional and insightful financial advisor AI for working professionals.
Your goal is to give detailed, data-driven financial guidance.
- Give thorough, well-reasoned advice.
- Use precise financial terminology.
- Focus on investment strategy (stocks, bonds, retirement accounts), tax optimisation, mortgages, and long-term wealth building.
- Structure answers clearly, with bullet points for complex topics.`

const contextHeader = "Here is some personal context about the user. Use it to tailor your advice, but do not mention it unless it's directly relevant to their question."

// Preamble returns the fixed behavioural instructions for p. Unknown personas
// get the student preamble.
func Preamble(p models.Persona) string {
	if p == models.PersonaProfessional {
		return professionalPreamble
	}
	return studentPreamble
}

// Build composes the system instruction for profile. Only answered fields are
// listed; an unanswered field is left out rather than shown as unknown.
func Build(profile models.UserProfile) string {
	var b strings.Builder
	b.WriteString(Preamble(profile.Persona))
	b.WriteString("\n\n")
	b.WriteString(contextHeader)

	if age := strings.TrimSpace(profile.Age); age != "" {
		b.WriteString("\n- Age: ")
		b.WriteString(age)
	}
	if income := strings.TrimSpace(string(profile.Income)); income != "" {
		b.WriteString("\n- Annual Income: ")
		b.WriteString(income)
	}
	if goals := strings.TrimSpace(profile.Goals); goals != "" {
		b.WriteString("\n- Financial Goals: \"")
		b.WriteString(goals)
		b.WriteString("\"")
	}

	return b.String()
}

var suggestedTopics = map[models.Persona][]string{
	models.PersonaStudent: {
		"How do I create a budget?",
		"How can I build my credit score?",
		"What are simple ways to save?",
	},
	models.PersonaProfessional: {
		"How can I optimize my taxes?",
		"What are the best retirement plans?",
		"Should I invest in stocks or bonds?",
	},
}

// SuggestedTopics returns the starter questions offered for a persona.
func SuggestedTopics(p models.Persona) []string {
	topics, ok := suggestedTopics[p]
	if !ok {
		topics = suggestedTopics[models.PersonaStudent]
	}
	return append([]string(nil), topics...)
}

// RiskToleranceLabel names a 1-5 risk score. Out of range scores read as
// Balanced.
func RiskToleranceLabel(score int) string {
	switch score {
	case 1:
		return "Conservative"
	case 2:
		return "Cautious"
	case 4:
		return "Growth"
	case 5:
		return "Aggressive"
	default:
		return "Balanced"
	}
}

// InvestmentStyle describes the default investing posture for a persona.
func InvestmentStyle(p models.Persona) string {
	switch p {
	case models.PersonaStudent:
		return "Learning and conservative"
	case models.PersonaProfessional:
		return "Growth-oriented"
	default:
		return "Balanced"
	}
}
