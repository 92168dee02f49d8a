package cmd

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/app"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/config"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/crawler"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/dispatcher"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/input"
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/logging"
)

type scanFlags struct {
	country     string
	concurrency int
	output      string
	serve       int
	noShots     bool
}

// newScanCmd creates the 'scan' subcommand.
func newScanCmd(cfgFile *string) *cobra.Command {
	var flags scanFlags
	cmd := &cobra.Command{
		Use:   "scan <url|file>",
		Short: "Scan one homepage or a file of homepages",
		Long: `Scan takes a single http(s) URL or a file with one URL per line. Blank
lines and lines starting with # are ignored. Results are written to the
configured CSV file; warnings also go to the diagnostics log.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, &cfg); err != nil {
				return err
			}
			return runScan(cmd, cfg, args[0])
		},
	}

	cmd.Flags().StringVar(&flags.country, "country", "", "restrict site metrics lookups to this country")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, "maximum concurrent site scans")
	cmd.Flags().StringVar(&flags.output, "output", "", "CSV output path")
	cmd.Flags().IntVar(&flags.serve, "serve", 0, "serve status and metrics on this port while scanning")
	cmd.Flags().BoolVar(&flags.noShots, "no-screenshots", false, "skip viewport screenshots")
	return cmd
}

// apply overrides cfg with the flags the user actually set.
func (f scanFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	set := cmd.Flags().Changed
	if set("country") {
		cfg.Metrics.Country = f.country
	}
	if set("concurrency") {
		cfg.Scan.MaxConcurrent = f.concurrency
	}
	if set("output") {
		cfg.Output.CSV = f.output
	}
	if set("serve") {
		cfg.Server.Enabled = true
		cfg.Server.Port = f.serve
	}
	if set("no-screenshots") {
		cfg.Storage.Screenshots = !f.noShots
	}
	return cfg.Validate()
}

func runScan(cmd *cobra.Command, cfg config.Config, target string) (err error) {
	logger, diagnostics, err := logging.New(cfg.Logging.Development, cfg.DiagnosticsPath())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
		if cerr := diagnostics.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close diagnostics log: %w", cerr)
		}
	}()

	list, err := input.Load(target)
	if err != nil {
		return fmt.Errorf("load urls: %w", err)
	}
	for _, line := range list.Invalid {
		logger.Warn("skipping invalid url", zap.String("line", line))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{BoardOut: cmd.ErrOrStderr()}, logger)
	if err != nil {
		return fmt.Errorf("init services: %w", err)
	}
	sum, runErr := a.Run(ctx, list.Requests())
	closeErr := a.Close()

	printSummary(cmd.OutOrStdout(), cfg.CSVPath(), sum)
	return errors.Join(runErr, closeErr)
}

func printSummary(w io.Writer, csvPath string, sum dispatcher.Summary) {
	fmt.Fprintf(w, "scanned %d sites in %s (%d written, %d failed, %d canceled)\n",
		sum.Total, sum.Duration.Round(time.Millisecond), sum.Persisted, sum.Failed, sum.Canceled)
	outcomes := make([]string, 0, len(sum.Outcomes))
	for o := range sum.Outcomes {
		outcomes = append(outcomes, string(o))
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Fprintf(w, "  %-14s %d\n", o, sum.Outcomes[crawler.Outcome(o)])
	}
	fmt.Fprintf(w, "results: %s\n", csvPath)
}
