package client

import (
	"encoding/json"
	"fmt"
)

// ResponseShape selects how a call site wants the raw payload decoded.
// Brightpearl payloads are loosely typed, so the expected shape is picked
// explicitly per call, never inferred at runtime.
type ResponseShape int

const (
	// ShapeObject decodes the payload as a JSON object. A wrapping
	// {"response": {...}} envelope is unwrapped.
	ShapeObject ResponseShape = iota

	// ShapeList decodes the payload as a JSON array, either top-level
	// or wrapped as {"response": [...]}.
	ShapeList

	// ShapeSearch decodes the paginated search envelope with positional
	// result rows and page metadata.
	ShapeSearch
)

// String returns the shape name used in decode error messages.
func (s ResponseShape) String() string {
	switch s {
	case ShapeObject:
		return "object"
	case ShapeList:
		return "list"
	case ShapeSearch:
		return "search envelope"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// Column describes one named column of a search result set. Rows are
// positional; the column list gives each position its name.
type Column struct {
	Name         string `json:"name"`
	SortPossible bool   `json:"sortPossible,omitempty"`
	DataType     string `json:"reportDataType,omitempty"`
}

// SortOrder describes one entry of the server-reported sort order.
type SortOrder struct {
	ColumnName string `json:"columnName,omitempty"`
	Direction  string `json:"direction,omitempty"`
}

// PageMetadata is the paging state the server reports with each search
// page.
type PageMetadata struct {
	MorePagesAvailable bool        `json:"morePagesAvailable"`
	ResultsAvailable   int         `json:"resultsAvailable"`
	ResultsReturned    int         `json:"resultsReturned"`
	FirstResult        int         `json:"firstResult"`
	LastResult         int         `json:"lastResult"`
	Columns            []Column    `json:"columns"`
	Sorting            []SortOrder `json:"sorting,omitempty"`
}

// SearchPage is one page of a paginated search result: positional rows
// plus the metadata needed to ask for the next page.
type SearchPage struct {
	Results  [][]any      `json:"results"`
	MetaData PageMetadata `json:"metaData"`
}

// searchEnvelope is the wire wrapper around a search page.
type searchEnvelope struct {
	Response *SearchPage `json:"response"`
}

// decodePayload decodes raw according to the requested shape. A payload
// that matches neither the shape nor its enveloped form is a
// *DecodeError, distinct from transport failures.
func decodePayload(raw []byte, shape ResponseShape) (any, error) {
	switch shape {
	case ShapeSearch:
		return decodeSearch(raw)
	case ShapeList:
		return decodeList(raw)
	case ShapeObject:
		return decodeObject(raw)
	default:
		return nil, &DecodeError{Expected: shape.String(), Got: "unsupported shape"}
	}
}

func decodeSearch(raw []byte) (*SearchPage, error) {
	var env searchEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &DecodeError{Expected: "search envelope", Got: "malformed JSON", Err: err}
	}
	if env.Response == nil {
		return nil, &DecodeError{Expected: "search envelope", Got: "payload without response field"}
	}
	return env.Response, nil
}

func decodeObject(raw []byte) (map[string]any, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, &DecodeError{Expected: "object", Got: "malformed JSON", Err: err}
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, &DecodeError{Expected: "object", Got: describeJSON(value)}
	}

	// Unwrap the {"response": {...}} envelope when present.
	if inner, ok := obj["response"].(map[string]any); ok {
		return inner, nil
	}
	return obj, nil
}

func decodeList(raw []byte) ([]any, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, &DecodeError{Expected: "list", Got: "malformed JSON", Err: err}
	}

	if list, ok := value.([]any); ok {
		return list, nil
	}

	// A list may arrive wrapped as {"response": [...]}.
	if obj, ok := value.(map[string]any); ok {
		if inner, ok := obj["response"].([]any); ok {
			return inner, nil
		}
	}

	return nil, &DecodeError{Expected: "list", Got: describeJSON(value)}
}

// describeJSON names a decoded JSON value for error messages.
func describeJSON(value any) string {
	switch value.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "list"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", value)
	}
}
