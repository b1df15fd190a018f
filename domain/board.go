package domain

import "fmt"

// Board size and field limits enforced on every direct client write.
const (
	MaxColumns        = 20
	MaxCards          = 500
	MaxColumnTitleLen = 100
	MaxCardTitleLen   = 200
	MaxCardDetailsLen = 10000
)

// Card is a single work item on the board.
type Card struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Details string `json:"details"`
}

// Column is an ordered lane of card ids. The order of CardIDs is the display
// order within the column.
type Column struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	CardIDs []string `json:"cardIds"`
}

// Board is the full kanban state: ordered columns plus a card map keyed by id.
type Board struct {
	Columns []Column        `json:"columns"`
	Cards   map[string]Card `json:"cards"`
}

// FieldError reports a field-shape violation in a submitted payload. Unlike
// referential-integrity errors it names the offending field, since it only
// ever describes the caller's own input.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

// ValidateShape checks size and length limits. Referential integrity is not
// checked here; that is BuildWriteSet's job.
func (b Board) ValidateShape() error {
	if len(b.Columns) > MaxColumns {
		return &FieldError{Field: "columns", Reason: fmt.Sprintf("at most %d columns allowed", MaxColumns)}
	}
	if len(b.Cards) > MaxCards {
		return &FieldError{Field: "cards", Reason: fmt.Sprintf("at most %d cards allowed", MaxCards)}
	}
	for i, column := range b.Columns {
		if column.ID == "" {
			return &FieldError{Field: fmt.Sprintf("columns[%d].id", i), Reason: "must not be empty"}
		}
		if len(column.Title) > MaxColumnTitleLen {
			return &FieldError{Field: fmt.Sprintf("columns[%d].title", i), Reason: fmt.Sprintf("exceeds %d characters", MaxColumnTitleLen)}
		}
		if len(column.CardIDs) > MaxCards {
			return &FieldError{Field: fmt.Sprintf("columns[%d].cardIds", i), Reason: fmt.Sprintf("at most %d entries allowed", MaxCards)}
		}
	}
	for id, card := range b.Cards {
		if card.ID == "" {
			return &FieldError{Field: fmt.Sprintf("cards[%s].id", id), Reason: "must not be empty"}
		}
		if len(card.Title) > MaxCardTitleLen {
			return &FieldError{Field: fmt.Sprintf("cards[%s].title", id), Reason: fmt.Sprintf("exceeds %d characters", MaxCardTitleLen)}
		}
		if len(card.Details) > MaxCardDetailsLen {
			return &FieldError{Field: fmt.Sprintf("cards[%s].details", id), Reason: fmt.Sprintf("exceeds %d characters", MaxCardDetailsLen)}
		}
	}
	return nil
}
