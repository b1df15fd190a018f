package ai

import (
	"strings"
	"testing"

	"kanban-api/domain"
)

func TestIsSummaryRequest(t *testing.T) {
	tests := []struct {
		name     string
		messages []domain.ChatMessage
		want     bool
	}{
		{
			"summarize keyword",
			[]domain.ChatMessage{{Role: domain.RoleUser, Content: "Please summarize the board"}},
			true,
		},
		{
			"summary keyword",
			[]domain.ChatMessage{{Role: domain.RoleUser, Content: "Give me a SUMMARY"}},
			true,
		},
		{
			"plain request",
			[]domain.ChatMessage{{Role: domain.RoleUser, Content: "add a card to backlog"}},
			false,
		},
		{
			"only latest user turn counts",
			[]domain.ChatMessage{
				{Role: domain.RoleUser, Content: "summarize the board"},
				{Role: domain.RoleAssistant, Content: "Summary: ..."},
				{Role: domain.RoleUser, Content: "now move card-1 to done"},
			},
			false,
		},
		{
			"assistant turns are skipped",
			[]domain.ChatMessage{
				{Role: domain.RoleUser, Content: "summarize please"},
				{Role: domain.RoleAssistant, Content: "sure"},
			},
			true,
		},
		{"no messages", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSummaryRequest(tt.messages); got != tt.want {
				t.Errorf("IsSummaryRequest = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildSummary(t *testing.T) {
	board := domain.Board{
		Columns: []domain.Column{
			{ID: "col-1", Title: "Todo", CardIDs: []string{"card-1", "card-2", "card-3", "card-4"}},
			{ID: "col-2", Title: "Done", CardIDs: []string{}},
		},
		Cards: map[string]domain.Card{
			"card-1": {ID: "card-1", Title: "First"},
			"card-2": {ID: "card-2", Title: "Second"},
			"card-3": {ID: "card-3", Title: "Third"},
			"card-4": {ID: "card-4", Title: "Fourth"},
		},
	}

	want := "Summary: 2 columns, 4 cards.\n" +
		"Todo (4): First; Second; Third; ...\n" +
		"Done (0): No cards."
	if got := BuildSummary(board); got != want {
		t.Errorf("BuildSummary =\n%q\nwant\n%q", got, want)
	}
}

func TestBuildSummaryShortColumn(t *testing.T) {
	board := domain.Board{
		Columns: []domain.Column{
			{ID: "col-1", Title: "Todo", CardIDs: []string{"card-1"}},
		},
		Cards: map[string]domain.Card{
			"card-1": {ID: "card-1", Title: "Only"},
		},
	}

	got := BuildSummary(board)
	if !strings.HasPrefix(got, "Summary: 1 columns, 1 cards.") {
		t.Errorf("summary prefix wrong: %q", got)
	}
	if !strings.Contains(got, "Todo (1): Only") || strings.Contains(got, "...") {
		t.Errorf("unexpected preview: %q", got)
	}
}

func TestBuildSummaryEmptyBoard(t *testing.T) {
	if got := BuildSummary(domain.Board{}); got != "Summary: 0 columns, 0 cards." {
		t.Errorf("BuildSummary = %q", got)
	}
}
