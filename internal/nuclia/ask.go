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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"sync/atomic"
)

// DefaultTopK is the number of results requested when none is given.
const DefaultTopK = 5

// maxLineSize bounds a single stream line. Retrieval items carry whole
// resources and can be large.
const maxLineSize = 16 * 1024 * 1024

// ErrStreamConsumed is yielded when an ask stream is ranged over twice.
var ErrStreamConsumed = errors.New("nuclia: ask stream already consumed")

// AskRequest is the body of an ask call.
type AskRequest struct {
	Query            string          `json:"query"`
	TopK             int             `json:"top_k,omitempty"`
	AnswerJSONSchema json.RawMessage `json:"answer_json_schema,omitempty"`
	Citations        *bool           `json:"citations,omitempty"`
}

// AskResponse is the result of a synchronous ask call. The payload shape
// varies across service versions, so it is kept as raw JSON.
type AskResponse struct {
	Data json.RawMessage
}

// Ask performs a synchronous (non-streaming) ask call.
func (c *Client) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	resp, err := c.request(ctx, http.MethodPost, "/ask", req, map[string]string{
		"X-Synchronous": "true",
		"Accept":        "application/json",
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &AskResponse{Data: body}, nil
}

// AskStream opens a streaming ask call. The request is sent when the
// sequence is first ranged over; the sequence can be consumed only once.
// Stopping the range early closes the response body.
func (c *Client) AskStream(ctx context.Context, req AskRequest) iter.Seq2[Event, error] {
	var started atomic.Bool

	return func(yield func(Event, error) bool) {
		if !started.CompareAndSwap(false, true) {
			yield(nil, ErrStreamConsumed)
			return
		}

		resp, err := c.request(ctx, http.MethodPost, "/ask", req, map[string]string{
			"Accept": "application/x-ndjson",
		})
		if err != nil {
			yield(nil, err)
			return
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			yield(nil, parseError(resp))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			event, err := decodeLine(line)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(event, nil) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				yield(nil, ctxErr)
				return
			}
			yield(nil, &Error{
				Code:      ErrCodeStreamError,
				Message:   fmt.Sprintf("stream read error: %v", err),
				Retryable: true,
				Err:       err,
			})
		}
	}
}
