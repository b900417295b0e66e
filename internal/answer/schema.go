//-------------------------------------------------------------------------
//
// pgEdge Ask Gateway
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package answer

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"sync"
)

// ChartJSONSchema is the JSON schema that constrains structured answers from
// the charts knowledge base to {answer, charts}. It is sent to the remote
// service unmodified.
//
//go:embed chart_schema.json
var ChartJSONSchema string

var (
	schemaOnce sync.Once
	schemaDoc  json.RawMessage
)

// ChartSchemaDocument returns the chart schema as a compact JSON document,
// ready to be embedded in an ask request.
func ChartSchemaDocument() json.RawMessage {
	schemaOnce.Do(func() {
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(ChartJSONSchema)); err != nil {
			// The schema is compiled into the binary; a broken file is a
			// build defect.
			panic("answer: embedded chart schema is not valid JSON: " + err.Error())
		}
		schemaDoc = buf.Bytes()
	})

	out := make(json.RawMessage, len(schemaDoc))
	copy(out, schemaDoc)
	return out
}
