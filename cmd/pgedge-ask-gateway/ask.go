//-------------------------------------------------------------------------
//
// pgEdge Ask Gateway
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-ask-gateway/internal/answer"
	"github.com/pgEdge/pgedge-ask-gateway/internal/ask"
	"github.com/pgEdge/pgedge-ask-gateway/internal/config"
)

type askOptions struct {
	knowledgeBase string
	topK          int
	verbose       bool
	timeout       time.Duration
}

func newAskCmd(global *globalOptions) *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask [flags] QUERY",
		Short: "Ask a knowledge base and print the answer",
		Long: `Ask a knowledge base and print the answer as it arrives.

Answers from chart knowledge bases are printed as text followed by one
table per chart. Logs go to stderr.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), global.logLevel)
			if err != nil {
				return err
			}

			cfg, err := config.Load(global.configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			kbm, err := ask.NewManagerWithLogger(ask.ManagerConfig{
				Config: cfg,
				Logger: logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create knowledge base manager: %w", err)
			}
			defer func() { _ = kbm.Close() }()

			kb, err := kbm.Get(opts.knowledgeBase)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if opts.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.timeout)
				defer cancel()
			}

			return runAsk(ctx, cmd.OutOrStdout(), kb, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.knowledgeBase, "kb", config.KnowledgeBaseDefault,
		"Knowledge base to ask")
	cmd.Flags().IntVar(&opts.topK, "top-k", 0,
		"Number of passages to retrieve (0 uses the configured value)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"Print retrieved resources and citations")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute,
		"Give up after this long (0 disables)")

	return cmd
}

// asker is the part of a knowledge base the ask command needs.
type asker interface {
	Mode() ask.Mode
	Ask(ctx context.Context, query string, onUpdate ask.UpdateFunc,
		opts ...ask.AskOption) (*answer.StreamingAskResult, error)
}

func runAsk(ctx context.Context, out io.Writer, kb asker, query string, opts *askOptions) error {
	var askOpts []ask.AskOption
	if opts.topK > 0 {
		askOpts = append(askOpts, ask.WithTopK(opts.topK))
	}

	var onUpdate ask.UpdateFunc
	printer := &streamPrinter{out: out}
	if kb.Mode() == ask.ModeStream {
		onUpdate = printer.Update
	}

	result, err := kb.Ask(ctx, query, onUpdate, askOpts...)
	if err != nil {
		if printer.printed > 0 {
			fmt.Fprintln(out)
		}
		return err
	}

	if kb.Mode() == ask.ModeSchema {
		printChartAnswer(out, result.Response)
	} else {
		fmt.Fprintln(out)
	}

	if opts.verbose {
		printDetails(out, result)
	}
	return nil
}

// streamPrinter writes only the text each update adds to what was already
// printed.
type streamPrinter struct {
	out     io.Writer
	printed int
}

func (p *streamPrinter) Update(text string) {
	if len(text) <= p.printed {
		return
	}
	fmt.Fprint(p.out, text[p.printed:])
	p.printed = len(text)
}

// printChartAnswer prints a chart answer as text plus one table per chart,
// or the raw text when it is not a chart answer.
func printChartAnswer(out io.Writer, response string) {
	parsed, err := answer.ParseChartAnswer(response)
	if err != nil {
		fmt.Fprintln(out, response)
		return
	}

	fmt.Fprintln(out, parsed.Answer)
	if err := parsed.Validate(); err != nil {
		fmt.Fprintf(out, "\n(charts omitted: %v)\n", err)
		return
	}
	for _, chart := range parsed.Charts {
		fmt.Fprintln(out)
		printChart(out, chart)
	}
}

func printChart(out io.Writer, chart answer.Chart) {
	fmt.Fprintln(out, chart.Title)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight|tabwriter.Debug)
	header := []string{""}
	for _, s := range chart.Series {
		header = append(header, s.Name)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")

	for i, category := range chart.Categories {
		row := []string{category}
		for _, s := range chart.Series {
			row = append(row, strconv.FormatFloat(s.Data[i], 'f', -1, 64))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t")+"\t")
	}
	_ = tw.Flush()
}

func printDetails(out io.Writer, result *answer.StreamingAskResult) {
	if len(result.OriginalResources) > 0 {
		fmt.Fprintln(out, "\nResources:")
		fmt.Fprintln(out, indentJSON(result.OriginalResources))
	}

	citations := result.Citations.Ordered()
	if len(citations) > 0 {
		fmt.Fprintln(out, "\nCitations:")
		for i, c := range citations {
			label := strconv.Itoa(i + 1)
			if c.ID != "" {
				label += " " + c.ID
			}
			fmt.Fprintf(out, "  [%s] %s\n", label, c.Data)
		}
	}
}

func indentJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "  ", "  "); err != nil {
		return "  " + string(raw)
	}
	return "  " + buf.String()
}
