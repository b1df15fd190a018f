package domain

import "errors"

// ColumnWrite is one fully ordered column row ready for atomic persistence.
type ColumnWrite struct {
	ID       string
	Title    string
	Position int
	CardIDs  []string
}

// CardWrite is one fully ordered card row ready for atomic persistence.
type CardWrite struct {
	ID       string
	ColumnID string
	Title    string
	Details  string
	Position int
}

// Reconciliation errors are deliberately generic: they never name the
// offending id, so content influenced by the model or a client is not echoed
// back through error messages.
var (
	ErrMissingCard = errors.New("board references a card that does not exist")
	ErrUnusedCard  = errors.New("board contains a card not referenced by any column")
)

// BuildWriteSet converts a candidate board into ordered column and card
// writes, enforcing referential integrity: every referenced card must exist
// and every card must be referenced by exactly one column. It is the single
// authority on board validity, applied identically to client submissions and
// model output.
func BuildWriteSet(b Board) ([]ColumnWrite, []CardWrite, error) {
	columnWrites := make([]ColumnWrite, 0, len(b.Columns))
	cardWrites := make([]CardWrite, 0, len(b.Cards))

	for index, column := range b.Columns {
		columnWrites = append(columnWrites, ColumnWrite{
			ID:       column.ID,
			Title:    column.Title,
			Position: index,
			CardIDs:  append([]string(nil), column.CardIDs...),
		})
		for position, cardID := range column.CardIDs {
			card, ok := b.Cards[cardID]
			if !ok {
				return nil, nil, ErrMissingCard
			}
			cardWrites = append(cardWrites, CardWrite{
				ID:       card.ID,
				ColumnID: column.ID,
				Title:    card.Title,
				Details:  card.Details,
				Position: position,
			})
		}
	}

	// A count mismatch means a card was never referenced, or was referenced
	// more than once; either way the board is not a valid replacement.
	if len(cardWrites) != len(b.Cards) {
		return nil, nil, ErrUnusedCard
	}
	return columnWrites, cardWrites, nil
}
