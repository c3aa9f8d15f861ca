package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/scoutline/vendorscout/internal/research"
)

var (
	runObjective string
	runSite      string
	runOutput    string
	runMaxPages  int
	runBudget    time.Duration
	runPreset    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Research one objective against a seed website",
	Long:  "Derives a search phrase from the objective, maps the site for matching pages, extracts vendor records from each page, and appends them to the result document. Prompts for the site and objective when the flags are absent.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("research"); err != nil {
			return err
		}

		objective, site := runObjective, runSite
		maxPages, output := cfg.Research.MaxPages, cfg.Research.OutputPath
		if cmd.Flags().Changed("max-pages") {
			maxPages = runMaxPages
		}

		if runPreset != "" {
			presets, err := research.LoadPresets(cfg.Research.PresetsPath)
			if err != nil {
				return err
			}
			p, err := research.FindPreset(presets, runPreset)
			if err != nil {
				return err
			}
			objective, site = p.Objective, p.Site
			if p.MaxPages > 0 && !cmd.Flags().Changed("max-pages") {
				maxPages = p.MaxPages
			}
			if p.Output != "" {
				output = p.Output
			}
		}
		if runOutput != "" {
			output = runOutput
		}

		// The tool is interactive by origin: anything not supplied by flag or
		// preset is asked for on stdin.
		reader := bufio.NewReader(cmd.InOrStdin())
		var err error
		if site, err = promptIfEmpty(cmd.OutOrStdout(), reader, site, "Enter the website to crawl"); err != nil {
			return err
		}
		if objective, err = promptIfEmpty(cmd.OutOrStdout(), reader, objective, "Enter your research objective"); err != nil {
			return err
		}

		budget := cfg.Research.RunBudget
		if cmd.Flags().Changed("budget") {
			budget = runBudget
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		p := newPipeline(cfg, st, output, maxPages, budget)

		result, runErr := p.Run(ctx, objective, site)
		if result != nil {
			fmt.Fprintln(os.Stdout)
			research.FormatReport(os.Stdout, result)
		}
		return runErr
	},
}

// promptIfEmpty returns value trimmed if non-empty, otherwise asks for it.
func promptIfEmpty(out io.Writer, in *bufio.Reader, value, label string) (string, error) {
	if v := strings.TrimSpace(value); v != "" {
		return v, nil
	}
	fmt.Fprintf(out, "%s: ", label)
	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", eris.Wrap(err, "read input")
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", eris.Errorf("%s: no value given", strings.ToLower(label))
	}
	return line, nil
}

func init() {
	runCmd.Flags().StringVar(&runObjective, "objective", "", "research objective (prompted for when absent)")
	runCmd.Flags().StringVar(&runSite, "site", "", "seed website URL (prompted for when absent)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "result document path (default from config)")
	runCmd.Flags().IntVar(&runMaxPages, "max-pages", 0, "cap on candidate pages processed (0 = all)")
	runCmd.Flags().DurationVar(&runBudget, "budget", 0, "wall-clock run budget (default from config)")
	runCmd.Flags().StringVar(&runPreset, "preset", "", "named preset from the presets file")
	rootCmd.AddCommand(runCmd)
}
