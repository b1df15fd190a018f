package ai

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"kanban-api/domain"
)

// Validation failures are distinguishable so the handler can map each to a
// specific upstream-contract error code.
var (
	ErrInvalidJSON           = errors.New("model response is not valid JSON")
	ErrMissingBoard          = errors.New("model response is missing the board object")
	ErrMissingColumns        = errors.New("model response board has no columns array")
	ErrMissingCards          = errors.New("model response board has no cards object")
	ErrCardIDMismatch        = errors.New("card entry id does not match its map key")
	ErrDanglingCardRef       = errors.New("column references a card missing from cards")
	ErrSchemaVersionMismatch = errors.New("unsupported schema version")
	ErrInvalidSchema         = errors.New("model response does not match the board schema")
)

// Raw payloads are logged for prompt-regression debugging, truncated to keep
// log lines bounded.
const maxLoggedPayload = 2048

// Parser validates raw model output into a typed BoardResponse. It fails
// closed: any structural deviation is an error, never repaired. Parsing is a
// pure function of the input text; the logger only records rejections.
type Parser struct {
	logger *log.Logger
}

// NewParser creates a parser that logs rejected payloads to the given logger.
func NewParser(logger *log.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse turns the raw model reply into a validated BoardResponse.
func (p *Parser) Parse(raw string) (domain.BoardResponse, error) {
	data, err := decodeWithRecovery(raw)
	if err != nil {
		return domain.BoardResponse{}, p.reject(raw, err)
	}

	var root map[string]any
	if err := sonic.Unmarshal(data, &root); err != nil {
		return domain.BoardResponse{}, p.reject(raw, fmt.Errorf("%w: top level is not an object", ErrInvalidSchema))
	}
	if err := validateShape(root); err != nil {
		return domain.BoardResponse{}, p.reject(raw, err)
	}

	var parsed domain.BoardResponse
	if err := sonic.Unmarshal(data, &parsed); err != nil {
		return domain.BoardResponse{}, p.reject(raw, fmt.Errorf("%w: %v", ErrInvalidSchema, err))
	}
	if err := parsed.Board.ValidateShape(); err != nil {
		return domain.BoardResponse{}, p.reject(raw, fmt.Errorf("%w: %v", ErrInvalidSchema, err))
	}
	if parsed.Operations == nil {
		parsed.Operations = []domain.Operation{}
	}
	return parsed, nil
}

// decodeWithRecovery returns a byte slice that parses as JSON. When the raw
// text does not, it retries on the window from the first '{' to the last '}',
// which tolerates models that wrap JSON in prose or markdown fences. Recovery
// is a pre-processing step only; full schema validation still follows.
func decodeWithRecovery(raw string) ([]byte, error) {
	data := []byte(raw)
	if sonic.Valid(data) {
		return data, nil
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, ErrInvalidJSON
	}
	window := []byte(raw[start : end+1])
	if !sonic.Valid(window) {
		return nil, ErrInvalidJSON
	}
	return window, nil
}

// validateShape applies the explicit key checks on the decoded generic value:
// board/columns/cards presence and kind, schema version, card key/id
// equality and dangling card references.
func validateShape(root map[string]any) error {
	board, ok := root["board"].(map[string]any)
	if !ok {
		return ErrMissingBoard
	}
	columns, ok := board["columns"].([]any)
	if !ok {
		return ErrMissingColumns
	}
	cards, ok := board["cards"].(map[string]any)
	if !ok {
		return ErrMissingCards
	}
	if _, ok := root["operations"].([]any); !ok {
		return fmt.Errorf("%w: missing operations array", ErrInvalidSchema)
	}

	version, ok := root["schemaVersion"].(float64)
	if !ok {
		return fmt.Errorf("%w: schemaVersion is not a number", ErrInvalidSchema)
	}
	if version != SchemaVersion {
		return ErrSchemaVersionMismatch
	}

	for key, value := range cards {
		card, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: card entry is not an object", ErrInvalidSchema)
		}
		id, ok := card["id"].(string)
		if !ok {
			return fmt.Errorf("%w: card entry has no id", ErrInvalidSchema)
		}
		if id != key {
			return ErrCardIDMismatch
		}
	}

	for _, value := range columns {
		column, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: column entry is not an object", ErrInvalidSchema)
		}
		cardIDs, ok := column["cardIds"].([]any)
		if !ok {
			return fmt.Errorf("%w: column has no cardIds array", ErrInvalidSchema)
		}
		for _, rawID := range cardIDs {
			id, ok := rawID.(string)
			if !ok {
				return fmt.Errorf("%w: cardIds entry is not a string", ErrInvalidSchema)
			}
			if _, ok := cards[id]; !ok {
				return ErrDanglingCardRef
			}
		}
	}
	return nil
}

func (p *Parser) reject(raw string, err error) error {
	if p.logger != nil {
		payload := raw
		if len(payload) > maxLoggedPayload {
			payload = payload[:maxLoggedPayload]
		}
		p.logger.WithFields(log.Fields{
			"error":        err.Error(),
			"payload":      payload,
			"payload_size": len(raw),
		}).Warn("ai.response.rejected")
	}
	return err
}
