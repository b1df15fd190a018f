package domain

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Operation types the model may report.
const (
	OpCreateCard   = "create_card"
	OpUpdateCard   = "update_card"
	OpMoveCard     = "move_card"
	OpDeleteCard   = "delete_card"
	OpRenameColumn = "rename_column"
)

// Operation is a single semantic edit reported back to the caller. It is
// informational only; persistence always uses the full replacement board.
type Operation struct {
	Type     string `json:"type"`
	Card     *Card  `json:"card,omitempty"`
	CardID   string `json:"cardId,omitempty"`
	ColumnID string `json:"columnId,omitempty"`
	Title    string `json:"title,omitempty"`
	Details  string `json:"details,omitempty"`
	Position *int   `json:"position,omitempty"`
}

// rawOperation carries every field name a model has been observed to emit.
// Alias columns for move_card are normalized into the canonical ColumnID;
// keep this table in sync as new aliases show up with prompt or model
// changes.
type rawOperation struct {
	Type            *string `json:"type"`
	Card            *Card   `json:"card"`
	CardID          *string `json:"cardId"`
	CardIDSnake     *string `json:"card_id"`
	ColumnID        *string `json:"columnId"`
	ToColumnID      *string `json:"toColumnId"`
	TargetColumnID  *string `json:"targetColumnId"`
	ColumnIDSnake   *string `json:"column_id"`
	ToColumnIDSnake *string `json:"to_column_id"`
	Title           *string `json:"title"`
	Details         *string `json:"details"`
	Position        *int    `json:"position"`
}

func firstString(candidates ...*string) (string, bool) {
	for _, c := range candidates {
		if c != nil {
			return *c, true
		}
	}
	return "", false
}

// UnmarshalJSON binds a model-emitted operation, enforcing the required
// fields per type and normalizing column-id aliases on move_card.
func (o *Operation) UnmarshalJSON(data []byte) error {
	var raw rawOperation
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type == nil {
		return fmt.Errorf("operation missing type")
	}

	op := Operation{Type: *raw.Type}
	switch op.Type {
	case OpCreateCard:
		if raw.Card == nil {
			return fmt.Errorf("create_card: missing card")
		}
		columnID, ok := firstString(raw.ColumnID)
		if !ok {
			return fmt.Errorf("create_card: missing columnId")
		}
		if raw.Position == nil {
			return fmt.Errorf("create_card: missing position")
		}
		op.Card = raw.Card
		op.ColumnID = columnID
		op.Position = raw.Position
	case OpUpdateCard:
		cardID, ok := firstString(raw.CardID)
		if !ok {
			return fmt.Errorf("update_card: missing cardId")
		}
		if raw.Title == nil {
			return fmt.Errorf("update_card: missing title")
		}
		if raw.Details == nil {
			return fmt.Errorf("update_card: missing details")
		}
		op.CardID = cardID
		op.Title = *raw.Title
		op.Details = *raw.Details
	case OpMoveCard:
		cardID, ok := firstString(raw.CardID, raw.CardIDSnake)
		if !ok {
			return fmt.Errorf("move_card: missing cardId")
		}
		columnID, ok := firstString(raw.ColumnID, raw.ToColumnID, raw.TargetColumnID, raw.ColumnIDSnake, raw.ToColumnIDSnake)
		if !ok {
			return fmt.Errorf("move_card: missing columnId")
		}
		op.CardID = cardID
		op.ColumnID = columnID
		op.Position = raw.Position
	case OpDeleteCard:
		cardID, ok := firstString(raw.CardID)
		if !ok {
			return fmt.Errorf("delete_card: missing cardId")
		}
		op.CardID = cardID
	case OpRenameColumn:
		columnID, ok := firstString(raw.ColumnID)
		if !ok {
			return fmt.Errorf("rename_column: missing columnId")
		}
		if raw.Title == nil {
			return fmt.Errorf("rename_column: missing title")
		}
		op.ColumnID = columnID
		op.Title = *raw.Title
	default:
		return fmt.Errorf("unknown operation type %q", op.Type)
	}

	*o = op
	return nil
}

// BoardResponse is the validated payload the model must return: a full board
// replacement plus the operations it claims to have performed.
type BoardResponse struct {
	SchemaVersion    int         `json:"schemaVersion"`
	Board            Board       `json:"board"`
	Operations       []Operation `json:"operations"`
	AssistantMessage string      `json:"assistantMessage,omitempty"`
}
