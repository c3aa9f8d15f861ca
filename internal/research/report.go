package research

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"
	"unicode/utf8"
)

// FormatReport writes a human-readable summary of a finished run to out.
func FormatReport(out io.Writer, res *RunResult) {
	if res == nil || res.Run == nil {
		return
	}
	run := res.Run

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Objective:\t%s\n", run.Objective)
	_, _ = fmt.Fprintf(w, "Site:\t%s\n", run.Site)
	if run.SearchPhrase != "" {
		_, _ = fmt.Fprintf(w, "Search phrase:\t%s\n", run.SearchPhrase)
	}
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", run.Status)
	if run.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:\t%s\n", truncate(run.Error, 100))
	}
	_ = w.Flush()

	if len(res.Pages) > 0 {
		_, _ = fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "#\tPAGE\tVENDORS\tTIME\tRESULT")
		for i, p := range res.Pages {
			outcome := "ok"
			if p.Err != nil {
				outcome = "failed: " + truncate(p.Err.Error(), 60)
			}
			_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
				i+1,
				truncate(p.URL, 60),
				p.Vendors,
				p.Duration.Round(10*time.Millisecond),
				outcome,
			)
		}
		_ = w.Flush()
	}

	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Pages:\t%d processed, %d failed, %d matched\n",
		run.PagesDone, run.PagesFailed, run.PagesMatched)
	_, _ = fmt.Fprintf(w, "Vendors added:\t%d\n", run.VendorsAdded)
	_, _ = fmt.Fprintf(w, "Tokens:\t%d in / %d out\n", run.InputTokens, run.OutputTokens)
	_, _ = fmt.Fprintf(w, "Estimated cost:\t$%.4f\n", run.CostUSD)
	_, _ = fmt.Fprintf(w, "Duration:\t%s\n", run.Duration().Round(time.Second))
	if res.OutputPath != "" {
		_, _ = fmt.Fprintf(w, "Results:\t%s\n", res.OutputPath)
	}
	_ = w.Flush()
}

// truncate shortens s to at most n runes for compact display. Slicing on rune
// boundaries keeps multi-byte objectives and URLs intact.
func truncate(s string, n int) string {
	if n <= 3 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
