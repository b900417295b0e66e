//-------------------------------------------------------------------------
//
// pgEdge Ask Gateway
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package ask

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"strings"

	"github.com/pgEdge/pgedge-ask-gateway/internal/answer"
	"github.com/pgEdge/pgedge-ask-gateway/internal/config"
	"github.com/pgEdge/pgedge-ask-gateway/internal/nuclia"
)

// Target names a knowledge base an ask is sent to.
type Target string

// Knowledge bases every deployment provides.
const (
	TargetDefault Target = config.KnowledgeBaseDefault
	TargetCharts  Target = config.KnowledgeBaseCharts
	TargetVerse   Target = config.KnowledgeBaseVerse
)

// Mode selects how an ask is carried out.
type Mode string

const (
	// ModeStream consumes the remote event stream and reports the answer
	// as it grows.
	ModeStream Mode = config.ModeStream

	// ModeSchema makes a single synchronous call constrained by the chart
	// schema. The remote service cannot stream schema-constrained output.
	ModeSchema Mode = config.ModeSchema
)

// Client is the part of the knowledge base client the orchestrator uses.
type Client interface {
	AskStream(ctx context.Context, req nuclia.AskRequest) iter.Seq2[nuclia.Event, error]
	Ask(ctx context.Context, req nuclia.AskRequest) (*nuclia.AskResponse, error)
}

// UpdateFunc receives the full answer text accumulated so far.
type UpdateFunc func(text string)

// Binding ties a target to the client that serves it.
type Binding struct {
	Client Client
	Mode   Mode
	TopK   int
}

// Orchestrator runs ask calls against the bound knowledge bases. It holds
// no per-call state and is safe for concurrent use.
type Orchestrator struct {
	bindings map[Target]Binding
	logger   *slog.Logger
}

// OrchestratorConfig contains the configuration for creating an orchestrator.
type OrchestratorConfig struct {
	Bindings map[Target]Binding
	Logger   *slog.Logger
}

// NewOrchestrator creates a new ask orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	bindings := make(map[Target]Binding, len(cfg.Bindings))
	for target, b := range cfg.Bindings {
		if b.TopK <= 0 {
			b.TopK = nuclia.DefaultTopK
		}
		bindings[target] = b
	}

	return &Orchestrator{
		bindings: bindings,
		logger:   logger,
	}
}

// AskOption adjusts a single ask call.
type AskOption func(*askOptions)

type askOptions struct {
	topK int
}

// WithTopK overrides the number of results requested. Values below one are
// ignored.
func WithTopK(n int) AskOption {
	return func(o *askOptions) {
		if n > 0 {
			o.topK = n
		}
	}
}

// AskGeneral asks the default knowledge base.
func (o *Orchestrator) AskGeneral(
	ctx context.Context,
	query string,
	onUpdate UpdateFunc,
	opts ...AskOption,
) (*answer.StreamingAskResult, error) {
	return o.Ask(ctx, TargetDefault, query, onUpdate, opts...)
}

// AskCharts asks the charts knowledge base. The response is the JSON text
// of a chart-augmented answer; see answer.ParseChartAnswer.
func (o *Orchestrator) AskCharts(
	ctx context.Context,
	query string,
	onUpdate UpdateFunc,
	opts ...AskOption,
) (*answer.StreamingAskResult, error) {
	return o.Ask(ctx, TargetCharts, query, onUpdate, opts...)
}

// AskVerse asks the verse knowledge base.
func (o *Orchestrator) AskVerse(
	ctx context.Context,
	query string,
	onUpdate UpdateFunc,
	opts ...AskOption,
) (*answer.StreamingAskResult, error) {
	return o.Ask(ctx, TargetVerse, query, onUpdate, opts...)
}

// Ask sends query to target and returns the assembled result. onUpdate is
// called with the accumulated answer text; in stream mode once per answer
// fragment, in schema mode exactly once. It may be nil.
//
// When ctx is cancelled the partial result is returned together with an
// error matching ErrCancelled. Remote failures are returned as
// *RemoteCallError, also with the partial result.
func (o *Orchestrator) Ask(
	ctx context.Context,
	target Target,
	query string,
	onUpdate UpdateFunc,
	opts ...AskOption,
) (*answer.StreamingAskResult, error) {
	b, ok := o.bindings[target]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKnowledgeBaseNotFound, target)
	}

	options := askOptions{topK: b.TopK}
	for _, opt := range opts {
		opt(&options)
	}

	if onUpdate == nil {
		onUpdate = func(string) {}
	}

	logger := o.logger.With("knowledge_base", string(target))
	logger.Debug("executing ask",
		"query", query,
		"mode", string(b.Mode),
		"top_k", options.topK,
	)

	req := nuclia.AskRequest{
		Query: query,
		TopK:  options.topK,
	}

	result := &answer.StreamingAskResult{}

	if err := ctx.Err(); err != nil {
		return result, cancelled(err)
	}

	if b.Mode == ModeSchema {
		return o.askSchema(ctx, logger, target, b.Client, req, result, onUpdate)
	}
	return o.askStream(ctx, logger, target, b.Client, req, result, onUpdate)
}

// askStream consumes the event stream, growing the response one fragment
// at a time.
func (o *Orchestrator) askStream(
	ctx context.Context,
	logger *slog.Logger,
	target Target,
	client Client,
	req nuclia.AskRequest,
	result *answer.StreamingAskResult,
	onUpdate UpdateFunc,
) (*answer.StreamingAskResult, error) {
	var text strings.Builder
	fragments := 0

	for event, err := range client.AskStream(ctx, req) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Debug("ask cancelled", "fragments", fragments)
			return result, cancelled(ctxErr)
		}
		if err != nil {
			logger.Error("ask stream failed", "error", err, "fragments", fragments)
			return result, &RemoteCallError{Target: target, Err: err}
		}

		switch e := event.(type) {
		case nuclia.AnswerEvent:
			text.WriteString(e.Text)
			fragments++
			result.Response = text.String()
			onUpdate(result.Response)
			runtime.Gosched()

		case nuclia.RetrievalEvent:
			result.OriginalResources = e.Resources

		case nuclia.CitationsEvent:
			result.Citations = answer.IndexCitations(e.Citations)

		default:
			logger.Debug("ignoring stream item", "type", event.Type())
		}
	}

	logger.Debug("ask completed",
		"fragments", fragments,
		"response_length", len(result.Response),
		"citations", len(result.Citations),
	)

	return result, nil
}

// askSchema makes one synchronous call carrying the chart schema and
// reconciles the reply into a single response string.
func (o *Orchestrator) askSchema(
	ctx context.Context,
	logger *slog.Logger,
	target Target,
	client Client,
	req nuclia.AskRequest,
	result *answer.StreamingAskResult,
	onUpdate UpdateFunc,
) (*answer.StreamingAskResult, error) {
	noCitations := false
	req.AnswerJSONSchema = answer.ChartSchemaDocument()
	req.Citations = &noCitations

	resp, err := client.Ask(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, cancelled(ctxErr)
		}
		logger.Error("schema ask failed", "error", err)
		return result, &RemoteCallError{Target: target, Err: err}
	}

	text, ok := Reconcile(resp.Data)
	if !ok {
		logger.Warn("response carried neither answer_json nor answer; returning empty response")
	}

	result.Response = text
	onUpdate(result.Response)

	logger.Debug("ask completed", "response_length", len(result.Response))

	return result, nil
}

// Reconcile extracts the response text from a synchronous ask payload.
// A non-null answer_json is returned as its exact JSON text; otherwise a
// string answer is returned. ok is false when neither is present.
func Reconcile(raw json.RawMessage) (text string, ok bool) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", false
	}

	if aj, found := payload["answer_json"]; found && !isNull(aj) {
		return string(aj), true
	}

	if a, found := payload["answer"]; found {
		var s string
		if err := json.Unmarshal(a, &s); err == nil {
			return s, true
		}
	}

	return "", false
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
