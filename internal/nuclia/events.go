//-------------------------------------------------------------------------
//
// pgEdge Ask Gateway
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package nuclia

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pgEdge/pgedge-ask-gateway/internal/answer"
)

// Item types sent on the ask stream.
const (
	ItemAnswer    = "answer"
	ItemRetrieval = "retrieval"
	ItemCitations = "citations"
	ItemError     = "error"
	ItemStatus    = "status"
	ItemMetadata  = "metadata"
)

// Event is one item of an ask stream.
type Event interface {
	// Type returns the wire item type.
	Type() string
}

// AnswerEvent carries a fragment of the generated answer.
type AnswerEvent struct {
	Text string
}

// RetrievalEvent carries the documents retrieved for the query.
type RetrievalEvent struct {
	// Resources is results.resources, untouched.
	Resources json.RawMessage
	// Results is the full retrieval payload.
	Results json.RawMessage
}

// CitationsEvent carries the citation list backing the answer.
type CitationsEvent struct {
	Citations []answer.Citation
}

// OtherEvent is any item type the gateway does not act on.
type OtherEvent struct {
	ItemType string
	Raw      json.RawMessage
}

func (AnswerEvent) Type() string    { return ItemAnswer }
func (RetrievalEvent) Type() string { return ItemRetrieval }
func (CitationsEvent) Type() string { return ItemCitations }
func (e OtherEvent) Type() string   { return e.ItemType }

// streamLine is one NDJSON line of the ask stream.
type streamLine struct {
	Item json.RawMessage `json:"item"`
}

type streamItem struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Results   json.RawMessage `json:"results"`
	Citations json.RawMessage `json:"citations"`
	Error     string          `json:"error"`
}

// decodeLine converts a single stream line into an Event. An "error" item
// is returned as an *Error.
func decodeLine(line []byte) (Event, error) {
	var sl streamLine
	if err := json.Unmarshal(line, &sl); err != nil {
		return nil, &Error{
			Code:    ErrCodeDecodeError,
			Message: fmt.Sprintf("malformed stream line: %v", err),
			Err:     err,
		}
	}

	var item streamItem
	if err := json.Unmarshal(sl.Item, &item); err != nil {
		return nil, &Error{
			Code:    ErrCodeDecodeError,
			Message: fmt.Sprintf("malformed stream item: %v", err),
			Err:     err,
		}
	}

	switch item.Type {
	case ItemAnswer:
		return AnswerEvent{Text: item.Text}, nil

	case ItemRetrieval:
		ev := RetrievalEvent{Results: item.Results}
		if len(item.Results) > 0 && !isNull(item.Results) {
			var results struct {
				Resources json.RawMessage `json:"resources"`
			}
			if err := json.Unmarshal(item.Results, &results); err != nil {
				return nil, &Error{
					Code:    ErrCodeDecodeError,
					Message: fmt.Sprintf("malformed retrieval results: %v", err),
					Err:     err,
				}
			}
			if !isNull(results.Resources) {
				ev.Resources = results.Resources
			}
		}
		return ev, nil

	case ItemCitations:
		citations, err := decodeCitations(item.Citations)
		if err != nil {
			return nil, &Error{
				Code:    ErrCodeDecodeError,
				Message: fmt.Sprintf("malformed citations: %v", err),
				Err:     err,
			}
		}
		return CitationsEvent{Citations: citations}, nil

	case ItemError:
		msg := item.Error
		if msg == "" {
			msg = "remote stream reported an error"
		}
		return nil, &Error{Code: ErrCodeStreamError, Message: msg}

	default:
		return OtherEvent{ItemType: item.Type, Raw: sl.Item}, nil
	}
}

// decodeCitations reads either a list of citation records or an object of
// paragraph id -> spans. Object keys keep the order they were sent in.
func decodeCitations(raw json.RawMessage) ([]answer.Citation, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return []answer.Citation{}, nil
	}

	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		citations := make([]answer.Citation, 0, len(items))
		for _, item := range items {
			citations = append(citations, answer.Citation{Data: item})
		}
		return citations, nil

	case '{':
		dec := json.NewDecoder(bytes.NewReader(raw))
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		var citations []answer.Citation
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := tok.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected citation key %v", tok)
			}
			var value json.RawMessage
			if err := dec.Decode(&value); err != nil {
				return nil, err
			}
			citations = append(citations, answer.Citation{ID: key, Data: value})
		}
		if citations == nil {
			citations = []answer.Citation{}
		}
		return citations, nil

	default:
		return nil, fmt.Errorf("citations must be a list or an object")
	}
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
