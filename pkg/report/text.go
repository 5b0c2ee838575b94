package report

import (
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// formatMs renders milliseconds with three decimals and digit grouping.
func formatMs(v float64) string {
	return printer.Sprintf("%.3f", v)
}

// WriteText prints a console summary: overall MAE, relative improvements,
// plan-quality counters and a per-category breakdown.
func WriteText(w io.Writer, s Summary) error {
	p := printer
	rule := strings.Repeat("-", 80)
	upper := cases.Upper(language.Und)

	var b strings.Builder
	b.WriteString(strings.Repeat("=", 80) + "\n")
	b.WriteString("HYBRID QUERY COST MODEL EVALUATION - RESULTS SUMMARY\n")
	b.WriteString(strings.Repeat("=", 80) + "\n\n")

	b.WriteString("1. DATASET OVERVIEW\n" + rule + "\n")
	p.Fprintf(&b, "Total Queries Evaluated: %d\n", s.Queries)
	for _, c := range s.Categories {
		p.Fprintf(&b, "  - %s: %d queries\n", c.Category, c.Queries)
	}
	b.WriteString("\n")

	b.WriteString("2. MODEL ACCURACY (Mean Absolute Error in milliseconds)\n" + rule + "\n")
	p.Fprintf(&b, "Baseline:  %.2f ms\n", s.MAEBaseline)
	p.Fprintf(&b, "LCM:       %.2f ms\n", s.MAELCM)
	p.Fprintf(&b, "Hybrid:    %.2f ms\n\n", s.MAEHybrid)
	b.WriteString("Relative Improvements:\n")
	writeImprovement(&b, "LCM vs Baseline", s.MAEBaseline, s.MAELCM)
	writeImprovement(&b, "Hybrid vs Baseline", s.MAEBaseline, s.MAEHybrid)
	writeImprovement(&b, "Hybrid vs LCM", s.MAELCM, s.MAEHybrid)
	b.WriteString("\n")

	b.WriteString("3. PLAN QUALITY ANALYSIS\n" + rule + "\n")
	pct := func(n int) float64 {
		if s.Queries == 0 {
			return 0
		}
		return float64(n) / float64(s.Queries) * 100
	}
	p.Fprintf(&b, "LCM Predicted Faster:    %2d queries (%5.1f%%)\n", s.LCMPredictedBetterCount, pct(s.LCMPredictedBetterCount))
	p.Fprintf(&b, "Hybrid Predicted Faster: %2d queries (%5.1f%%)\n", s.HybridPredictedBetterCount, pct(s.HybridPredictedBetterCount))
	p.Fprintf(&b, "Hybrid Routed to LCM:    %5.1f%%\n", s.HybridLCMShare*100)
	if s.ChosenPredMeanMs != nil {
		p.Fprintf(&b, "LCM Chosen-Plan Predicted Mean: %.2f ms\n", *s.ChosenPredMeanMs)
	}
	p.Fprintf(&b, "Actual Query Runtime Mean:      %.2f ms\n\n", s.ActualMeanMs)

	b.WriteString("4. PERFORMANCE BY QUERY CATEGORY\n" + rule + "\n")
	for _, c := range s.Categories {
		p.Fprintf(&b, "%s Queries (%d queries):\n", upper.String(c.Category), c.Queries)
		p.Fprintf(&b, "  Baseline MAE: %.2f ms\n", c.MAEBaseline)
		p.Fprintf(&b, "  LCM MAE:      %.2f ms\n", c.MAELCM)
		p.Fprintf(&b, "  Hybrid MAE:   %.2f ms\n", c.MAEHybrid)
		if c.HybridImprovementPct != nil {
			p.Fprintf(&b, "  Hybrid Improvement: %+.1f%%\n", *c.HybridImprovementPct)
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeImprovement(b *strings.Builder, label string, from, to float64) {
	pct := improvement(from, to)
	if pct == nil {
		printer.Fprintf(b, "  %-20s n/a\n", label+":")
		return
	}
	printer.Fprintf(b, "  %-20s %+.1f%% (%.2f ms)\n", label+":", *pct, from-to)
}
