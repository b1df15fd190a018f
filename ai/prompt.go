package ai

import (
	"github.com/bytedance/sonic"

	"kanban-api/domain"
)

// SchemaVersion is the single response contract version the service accepts.
const SchemaVersion = 1

func intPtr(v int) *int { return &v }

// BuildSystemPrompt serializes the current board together with the response
// schema, a worked example and behavioral instructions into the system turn
// sent ahead of the user conversation. Pure function of the board.
func BuildSystemPrompt(board domain.Board) (string, error) {
	exampleBoard := domain.Board{
		Columns: []domain.Column{
			{ID: "col-1", Title: "Todo", CardIDs: []string{"card-1"}},
		},
		Cards: map[string]domain.Card{
			"card-1": {ID: "card-1", Title: "Title", Details: "Details"},
		},
	}
	schemaExample := domain.BoardResponse{
		SchemaVersion: SchemaVersion,
		Board:         exampleBoard,
		Operations: []domain.Operation{
			{Type: domain.OpUpdateCard, CardID: "card-1", Title: "Title", Details: "Details"},
			{Type: domain.OpMoveCard, CardID: "card-1", ColumnID: "col-1", Position: intPtr(0)},
		},
		AssistantMessage: "Updated card-1 details.",
	}
	summaryExample := domain.BoardResponse{
		SchemaVersion:    SchemaVersion,
		Board:            exampleBoard,
		Operations:       []domain.Operation{},
		AssistantMessage: "Summary: The board tracks planning, discovery, delivery, and QA work.",
	}

	boardJSON, err := sonic.MarshalString(board)
	if err != nil {
		return "", err
	}
	schemaJSON, err := sonic.MarshalString(schemaExample)
	if err != nil {
		return "", err
	}
	summaryJSON, err := sonic.MarshalString(summaryExample)
	if err != nil {
		return "", err
	}

	return "You are a project management assistant. " +
		"Return a single JSON object only, no markdown or extra text. " +
		"Return exactly this schema with double-quoted keys: " +
		"{schemaVersion:1, board:{columns:[{id,title,cardIds}], cards:{[id]:{id,title,details}}}, operations:[...]} " +
		"Include a full board replacement and an operations list. " +
		"Echo existing ids verbatim; never invent new ids for entities you did not modify. " +
		"If no changes are needed, return the current board and an empty operations array. " +
		"If the user asks for a summary or non-board update, you MUST include assistantMessage with the reply," +
		" keep the board unchanged, and set operations to an empty array. " +
		"Use schemaVersion 1. " +
		"Use unique string ids; for new cards prefer 'card-' prefix. " +
		"Operation field names (use exactly these): " +
		"create_card(card, columnId, position), " +
		"update_card(cardId, title, details), " +
		"move_card(cardId, columnId, position), " +
		"delete_card(cardId), " +
		"rename_column(columnId, title). " +
		"Ensure every cardId in columns exists in cards. " +
		"Schema example: " + schemaJSON + " " +
		"Summary example: " + summaryJSON + " " +
		"Board context: " + boardJSON, nil
}

// BuildConversation prepends the system prompt to the end-user turns.
func BuildConversation(systemPrompt string, messages []domain.ChatMessage) []domain.ChatMessage {
	conversation := make([]domain.ChatMessage, 0, len(messages)+1)
	conversation = append(conversation, domain.ChatMessage{Role: domain.RoleSystem, Content: systemPrompt})
	return append(conversation, messages...)
}
