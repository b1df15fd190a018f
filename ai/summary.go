package ai

import (
	"fmt"
	"strings"

	"kanban-api/domain"
)

const summaryPreviewCards = 3

// IsSummaryRequest reports whether the most recent user turn asks for a board
// summary. Only the latest user message is inspected; a match short-circuits
// the gateway entirely.
func IsSummaryRequest(messages []domain.ChatMessage) bool {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != domain.RoleUser {
			continue
		}
		content := strings.ToLower(messages[i].Content)
		return strings.Contains(content, "summarize") || strings.Contains(content, "summary")
	}
	return false
}

// BuildSummary renders a deterministic overview of the board: overall counts,
// then one line per column with a preview of its first cards.
func BuildSummary(board domain.Board) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summary: %d columns, %d cards.", len(board.Columns), len(board.Cards))

	for _, column := range board.Columns {
		titles := make([]string, 0, len(column.CardIDs))
		for _, cardID := range column.CardIDs {
			if card, ok := board.Cards[cardID]; ok {
				titles = append(titles, card.Title)
			}
		}
		if len(titles) == 0 {
			fmt.Fprintf(&b, "\n%s (0): No cards.", column.Title)
			continue
		}
		preview := strings.Join(titles[:min(summaryPreviewCards, len(titles))], "; ")
		if len(titles) > summaryPreviewCards {
			preview += "; ..."
		}
		fmt.Fprintf(&b, "\n%s (%d): %s", column.Title, len(titles), preview)
	}
	return b.String()
}
