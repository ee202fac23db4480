package chat

import (
	"strings"

	"github.com/wuwenbin0122/finbot/internal/models"
	"github.com/wuwenbin0122/finbot/internal/persona"
)

const advisorNote = "You are a comprehensive financial advisor with access to the user's complete financial data. Use this information to provide personalized, data-driven advice."

const dataNote = `IMPORTANT: You have access to the user's real financial data including:
- Portfolio holdings and performance
- Transaction history and spending patterns
- Financial health metrics
- Goals progress
- Tax information

Always reference specific data points when providing advice. Use actual numbers, percentages, and holdings when relevant.`

// Instructions composes the system instruction a session is opened with.
// financial is the formatted data block; it is omitted when blank.
func Instructions(profile models.UserProfile, financial string) string {
	parts := []string{persona.Build(profile), advisorNote, dataNote}
	if financial = strings.TrimSpace(financial); financial != "" {
		parts = append(parts, "USER'S CURRENT FINANCIAL DATA:\n"+financial+
			"\n\nUse this data to provide specific, personalized advice. Reference actual numbers, holdings, and financial metrics when relevant.")
	}
	return strings.Join(parts, "\n\n")
}
