package application

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/csd2000/Trade-Flow-sub002/internal/scan"
	"github.com/csd2000/Trade-Flow-sub002/internal/signal"
)

// WriteScanReport renders a scan result as indented JSON or as tables
func WriteScanReport(w io.Writer, res *scan.ScanResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	t := res.Totals
	fmt.Fprintf(w, "Scan %s (%s) at %s in %v\n", res.ID, res.Timeframe,
		res.StartedAt.UTC().Format(time.RFC3339), res.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "attempted %d  analyzed %d  insufficient %d  signaled %d  emitted %d  throttled %d  exits %d  errors %d\n\n",
		t.Attempted, t.Analyzed, t.Insufficient, t.Signaled, t.Emitted, t.Throttled, t.Exits, t.Errors)

	if len(res.Signals) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "Symbol\tType\tTier\tEntry\tStop\tTarget\tR:R\tConf\tScore\tExpires")
		fmt.Fprintln(tw, "------\t----\t----\t-----\t----\t------\t---\t----\t-----\t-------")
		for _, s := range res.Signals {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%.2f\t%.1f%%\t%.1f\t%s\n",
				s.Symbol, s.Type, s.Tier, s.Entry, s.Stop, s.PrimaryTarget().Price, s.RiskReward,
				s.Confidence, s.FinalScore, s.ExpiresAt.UTC().Format("01-02 15:04"))
		}
		tw.Flush()
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "No new signals.")
		fmt.Fprintln(w)
	}

	if len(res.Exits) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "Exit\tReason\tEntry\tPrice\tP&L\tHeld")
		for _, e := range res.Exits {
			r := e.Result
			fmt.Fprintf(tw, "%s\t%s\t%.6g\t%.6g\t%+.2f%%\t%.1fh\n",
				r.Symbol, r.ReasonString, r.EntryPrice, r.CurrentPrice, r.UnrealizedPnL, r.HoursHeld)
		}
		tw.Flush()
		fmt.Fprintln(w)
	}

	if len(res.Throttled) > 0 {
		names := make([]string, len(res.Throttled))
		for i, th := range res.Throttled {
			names[i] = fmt.Sprintf("%s (%s, %d suppressed)", th.Symbol, th.Type, th.Episode.SuppressedCount)
		}
		fmt.Fprintf(w, "Throttled: %s\n", strings.Join(names, ", "))
	}
	for _, e := range res.Errors {
		fmt.Fprintf(w, "error %s [%s]: %s\n", e.Symbol, e.Kind, e.Error)
	}
	return nil
}

// WriteAnalysis renders one analysis: gate checklist, then the trade plan
// when a signal qualified
func WriteAnalysis(w io.Writer, a *scan.Analysis, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	}

	fmt.Fprintf(w, "%s %s (%s) via %s, %d bars\n", a.Symbol, a.Timeframe, a.Class, orDash(a.Provider), a.Bars)
	if a.InsufficientData {
		fmt.Fprintf(w, "Insufficient data: %s\n", a.Reason)
		return nil
	}
	if a.Quality.Degraded() {
		fmt.Fprintf(w, "Data quality: %+v\n", a.Quality)
	}

	c := a.Confluence
	fmt.Fprintln(w, c.Summary())
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Gate\tPassed\tWeight\tValue\tThreshold")
	for _, g := range c.Checks {
		mark := "no"
		if g.Passed {
			mark = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%v\t%v\n", g.Name, mark, g.Weight, g.Value, g.Threshold)
	}
	tw.Flush()
	for _, b := range c.Bonuses {
		fmt.Fprintf(w, "bonus %s +%.1f\n", b.Name, b.Points)
	}
	fmt.Fprintf(w, "sentiment %.0f  narrative %.0f (%s)  final score %.1f\n",
		a.Sentiment, a.Narrative.Probability, a.Narrative.Source, a.FinalScore)

	if a.Signal == nil {
		fmt.Fprintln(w, "No entry.")
		return nil
	}
	writeSignal(w, a.Signal)
	return nil
}

func writeSignal(w io.Writer, s *signal.Signal) {
	fmt.Fprintf(w, "\n%s %s via %s: entry %s stop %s (%s)\n", s.Symbol, s.Type, s.Trigger, s.Entry, s.Stop, s.StopBasis)
	for _, t := range s.Targets {
		fmt.Fprintf(w, "  %s %s (%.2fR)\n", t.Label, t.Price, t.RMultiple)
	}
	for _, line := range s.Reasoning {
		fmt.Fprintf(w, "  - %s\n", line)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
