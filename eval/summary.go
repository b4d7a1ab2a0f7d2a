package eval

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"

	"github.com/makolon/og-vlm/config"
	"github.com/makolon/og-vlm/executor"
)

// Episode is the record of one evaluated episode.
type Episode struct {
	Index    int
	Fraction float64
	// FractionAvailable is false when the engine could not score the episode and Fraction was
	// taken as 0.
	FractionAvailable bool
	Success           bool
	PlanFailed        bool
	Steps             int
	Succeeded         int
	Failed            int
	Skipped           int
	Duration          time.Duration
}

// Summary is the single structured result of a run.
type Summary struct {
	RunID             string  `json:"run_id"`
	Activity          string  `json:"activity"`
	Episodes          int     `json:"episodes"`
	Successes         int     `json:"successes"`
	SuccessRate       float64 `json:"success_rate"`
	AvgFraction       float64 `json:"avg_fraction"`
	FractionStdDev    float64 `json:"fraction_stddev"`
	PlanFailures      int     `json:"plan_failures"`
	SuccessThreshold  float64 `json:"success_threshold"`
	Provider          string  `json:"provider"`
	Model             string  `json:"model"`
	Executor          string  `json:"executor"`
	RequestedExecutor string  `json:"requested_executor"`
	Robot             string  `json:"robot"`
	Temperature       float64 `json:"temperature"`

	Records []Episode `json:"-"`
}

// Summarize aggregates episode records. success_rate is successes/episodes and avg_fraction is
// the sum of fractions over episodes; both are 0 for a run without episodes.
func Summarize(runID string, cfg *config.Config, ran executor.Kind, records []Episode) *Summary {
	s := &Summary{
		RunID:             runID,
		Activity:          cfg.Activity,
		Episodes:          len(records),
		SuccessThreshold:  cfg.SuccessThreshold,
		Provider:          cfg.Provider,
		Model:             cfg.Model,
		Executor:          string(ran),
		RequestedExecutor: cfg.Executor,
		Robot:             cfg.Robot,
		Temperature:       cfg.Temperature,
		Records:           records,
	}
	if len(records) == 0 {
		return s
	}

	fractions := make(stats.Float64Data, 0, len(records))
	var fractionSum float64
	for _, ep := range records {
		fractionSum += ep.Fraction
		fractions = append(fractions, ep.Fraction)
		if ep.Success {
			s.Successes++
		}
		if ep.PlanFailed {
			s.PlanFailures++
		}
	}
	s.SuccessRate = float64(s.Successes) / float64(s.Episodes)
	s.AvgFraction = fractionSum / float64(s.Episodes)
	if sd, err := stats.StandardDeviationPopulation(fractions); err == nil {
		s.FractionStdDev = sd
	}
	return s
}

// WriteJSON writes the summary as indented JSON followed by a newline.
func (s *Summary) WriteJSON(w io.Writer) error {
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", out)
	return err
}

// Table renders the per-episode records with a totals footer.
func (s *Summary) Table() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Fraction", "Success", "Steps", "Succeeded", "Failed", "Skipped", "Plan", "Duration"})
	for _, ep := range s.Records {
		fraction := fmt.Sprintf("%.3f", ep.Fraction)
		if !ep.FractionAvailable {
			fraction += " (n/a)"
		}
		planState := "ok"
		if ep.PlanFailed {
			planState = "failed"
		}
		t.AppendRow(table.Row{
			ep.Index + 1,
			fraction,
			ep.Success,
			ep.Steps,
			ep.Succeeded,
			ep.Failed,
			ep.Skipped,
			planState,
			ep.Duration.Round(time.Millisecond),
		})
	}
	t.AppendFooter(table.Row{
		"",
		fmt.Sprintf("avg %.3f", s.AvgFraction),
		fmt.Sprintf("%d/%d", s.Successes, s.Episodes),
		"", "", "", "",
		fmt.Sprintf("%d failed", s.PlanFailures),
		"",
	})
	return t.Render()
}
