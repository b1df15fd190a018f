package ai

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
)

const validResponse = `{
	"schemaVersion": 1,
	"board": {
		"columns": [{"id": "col-1", "title": "Todo", "cardIds": ["card-1"]}],
		"cards": {"card-1": {"id": "card-1", "title": "A", "details": "B"}}
	},
	"operations": [{"type": "update_card", "cardId": "card-1", "title": "A", "details": "B"}],
	"assistantMessage": "Updated card-1."
}`

func newTestParser() *Parser {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return NewParser(logger)
}

func TestParseValidResponse(t *testing.T) {
	parsed, err := newTestParser().Parse(validResponse)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if parsed.SchemaVersion != 1 {
		t.Errorf("schemaVersion = %d, want 1", parsed.SchemaVersion)
	}
	if len(parsed.Board.Columns) != 1 || parsed.Board.Columns[0].ID != "col-1" {
		t.Errorf("columns = %+v", parsed.Board.Columns)
	}
	if len(parsed.Operations) != 1 || parsed.Operations[0].CardID != "card-1" {
		t.Errorf("operations = %+v", parsed.Operations)
	}
	if parsed.AssistantMessage != "Updated card-1." {
		t.Errorf("assistantMessage = %q", parsed.AssistantMessage)
	}
}

func TestParseRecoversFromProse(t *testing.T) {
	wrapped := "Here you go: " + validResponse + " thanks"

	parsed, err := newTestParser().Parse(wrapped)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	direct, err := newTestParser().Parse(validResponse)
	if err != nil {
		t.Fatalf("Parse of bare payload returned error: %v", err)
	}
	if !reflect.DeepEqual(parsed, direct) {
		t.Errorf("recovered parse differs from direct parse:\n%+v\n%+v", parsed, direct)
	}
}

func TestParseDeterministic(t *testing.T) {
	p := newTestParser()
	first, err1 := p.Parse(validResponse)
	second, err2 := p.Parse(validResponse)
	if err1 != nil || err2 != nil {
		t.Fatalf("errors: %v, %v", err1, err2)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated parses differ:\n%+v\n%+v", first, second)
	}
}

func TestParseNilOperationsBecomesEmpty(t *testing.T) {
	raw := `{"schemaVersion":1,"board":{"columns":[],"cards":{}},"operations":[]}`
	parsed, err := newTestParser().Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if parsed.Operations == nil || len(parsed.Operations) != 0 {
		t.Errorf("operations = %#v, want empty slice", parsed.Operations)
	}
}

func TestParseRejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", "the board looks great", ErrInvalidJSON},
		{"broken braces", "result {not json here", ErrInvalidJSON},
		{"top level array", `[1,2,3]`, ErrInvalidSchema},
		{"missing board", `{"schemaVersion":1,"operations":[]}`, ErrMissingBoard},
		{"board not object", `{"schemaVersion":1,"board":[],"operations":[]}`, ErrMissingBoard},
		{"missing columns", `{"schemaVersion":1,"board":{"cards":{}},"operations":[]}`, ErrMissingColumns},
		{"missing cards", `{"schemaVersion":1,"board":{"columns":[]},"operations":[]}`, ErrMissingCards},
		{"missing operations", `{"schemaVersion":1,"board":{"columns":[],"cards":{}}}`, ErrInvalidSchema},
		{"missing version", `{"board":{"columns":[],"cards":{}},"operations":[]}`, ErrInvalidSchema},
		{"wrong version", `{"schemaVersion":2,"board":{"columns":[],"cards":{}},"operations":[]}`, ErrSchemaVersionMismatch},
		{
			"card id mismatch",
			`{"schemaVersion":1,"board":{"columns":[],"cards":{"card-1":{"id":"card-2","title":"t","details":""}}},"operations":[]}`,
			ErrCardIDMismatch,
		},
		{
			"dangling card ref",
			`{"schemaVersion":1,"board":{"columns":[{"id":"col-1","title":"Todo","cardIds":["card-9"]}],"cards":{}},"operations":[]}`,
			ErrDanglingCardRef,
		},
		{
			"column without cardIds",
			`{"schemaVersion":1,"board":{"columns":[{"id":"col-1","title":"Todo"}],"cards":{}},"operations":[]}`,
			ErrInvalidSchema,
		},
		{
			"invalid operation",
			`{"schemaVersion":1,"board":{"columns":[],"cards":{}},"operations":[{"type":"teleport_card"}]}`,
			ErrInvalidSchema,
		},
	}

	p := newTestParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Parse(tt.raw); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseEnforcesBoardLimits(t *testing.T) {
	longTitle := strings.Repeat("x", 201)
	raw := `{"schemaVersion":1,"board":{"columns":[],"cards":{"card-1":{"id":"card-1","title":"` +
		longTitle + `","details":""}}},"operations":[]}`

	if _, err := newTestParser().Parse(raw); !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("err = %v, want ErrInvalidSchema", err)
	}
}

func TestParseWithNilLogger(t *testing.T) {
	p := NewParser(nil)
	if _, err := p.Parse("nope"); !errors.Is(err, ErrInvalidJSON) {
		t.Fatalf("err = %v, want ErrInvalidJSON", err)
	}
}
