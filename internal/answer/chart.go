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
	"encoding/json"
	"fmt"
	"strings"
)

// MaxCharts is the largest number of charts the schema allows per answer.
const MaxCharts = 3

// ChartAugmentedAnswer is a factual answer optionally accompanied by up to
// three bar charts.
type ChartAugmentedAnswer struct {
	Answer string  `json:"answer"`
	Charts []Chart `json:"charts"`
}

// Chart is a bar chart: a title, ordered categories (x-axis labels) and one
// or more series aligned with the categories.
type Chart struct {
	Title      string   `json:"title"`
	Categories []string `json:"categories"`
	Series     []Series `json:"series"`
}

// Series is a single named bar series. Data[i] belongs to Categories[i] of
// the enclosing chart.
type Series struct {
	Name string    `json:"name"`
	Data []float64 `json:"data"`
}

// ParseError is returned when a response cannot be read as a
// ChartAugmentedAnswer. Callers fall back to showing the raw text.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("response is not a chart answer: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseChartAnswer parses a response string into a ChartAugmentedAnswer.
func ParseChartAnswer(text string) (*ChartAugmentedAnswer, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, &ParseError{Err: fmt.Errorf("empty response")}
	}

	var a ChartAugmentedAnswer
	if err := json.Unmarshal([]byte(trimmed), &a); err != nil {
		return nil, &ParseError{Err: err}
	}
	if a.Charts == nil {
		a.Charts = []Chart{}
	}

	return &a, nil
}

// ContractViolation lists the ways a chart answer breaks the schema
// contract enforced by the remote service.
type ContractViolation struct {
	Problems []string
}

func (e *ContractViolation) Error() string {
	return "chart answer violates schema contract: " + strings.Join(e.Problems, "; ")
}

// Validate checks the invariants the remote schema is expected to enforce.
// It never modifies the answer.
func (a *ChartAugmentedAnswer) Validate() error {
	var problems []string

	if len(a.Charts) > MaxCharts {
		problems = append(problems,
			fmt.Sprintf("charts: %d charts, at most %d allowed", len(a.Charts), MaxCharts))
	}

	for i, c := range a.Charts {
		if len(c.Categories) == 0 {
			problems = append(problems, fmt.Sprintf("charts[%d].categories: empty", i))
		}
		if len(c.Series) == 0 {
			problems = append(problems, fmt.Sprintf("charts[%d].series: empty", i))
		}
		for j, s := range c.Series {
			if len(s.Data) != len(c.Categories) {
				problems = append(problems, fmt.Sprintf(
					"charts[%d].series[%d].data: %d values for %d categories",
					i, j, len(s.Data), len(c.Categories)))
			}
		}
	}

	if len(problems) > 0 {
		return &ContractViolation{Problems: problems}
	}
	return nil
}
