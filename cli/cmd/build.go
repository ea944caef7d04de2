package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fluxbase-eu/webminifier/cli/output"
	"github.com/fluxbase-eu/webminifier/cli/util"
	"github.com/fluxbase-eu/webminifier/internal/config"
	"github.com/fluxbase-eu/webminifier/internal/observability"
	"github.com/fluxbase-eu/webminifier/internal/pipeline"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Bundle and minify scripts, then rewrite the documents",
	Long: `Copy the source folder into the destination folder, bundle the scripts
referenced by every matching HTML document, minify the bundles and point the
documents at them. Scripts that went into bundles and directories left empty
are removed from the destination.

Examples:
  webminifier build
  webminifier build --clean
  webminifier build --compressor minify -o json`,
	RunE: runBuild,
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the bundles a build would produce",
	Long: `Compute the bundles for every document of the source folder without
writing anything. Bundles found in the destination folder are reported as
reused.

Examples:
  webminifier plan
  webminifier plan -o yaml`,
	RunE: runPlan,
}

func init() {
	buildCmd.Flags().Bool("clean", false, "remove the destination folder before building")
	buildCmd.Flags().String("compressor", "", "compressor to use: none, minify, esbuild")
	buildCmd.Flags().Bool("split-dependencies", true, "bundle dependency scripts apart from project scripts")

	_ = viper.BindPFlag("clean", buildCmd.Flags().Lookup("clean"))
	_ = viper.BindPFlag("compressor.type", buildCmd.Flags().Lookup("compressor"))
	_ = viper.BindPFlag("split_dependencies", buildCmd.Flags().Lookup("split-dependencies"))
}

func runBuild(cmd *cobra.Command, args []string) error {
	return execute(cmd, false)
}

func runPlan(cmd *cobra.Command, args []string) error {
	return execute(cmd, true)
}

func execute(cmd *cobra.Command, dryRun bool) error {
	formatter, err := GetFormatter()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, err := observability.NewTracer(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to flush traces")
		}
	}()

	p, err := pipeline.New(cfg, pipeline.WithTracer(tracer))
	if err != nil {
		return err
	}

	var report *pipeline.Report
	if dryRun {
		report, err = p.Plan(ctx)
	} else {
		report, err = p.Run(ctx)
	}
	if err != nil {
		return err
	}

	return printReport(formatter, cfg, report)
}

func printReport(f *output.Formatter, cfg *config.Config, report *pipeline.Report) error {
	if f.Format != output.FormatTable {
		return f.Print(report)
	}

	if err := f.PrintTable(reportTable(report)); err != nil {
		return err
	}

	summary := fmt.Sprintf("Built %d bundles for %d documents in %s (%d compressed with %s)",
		report.Bundles(), len(report.Documents), report.Duration.Round(time.Millisecond),
		report.Compressions(), cfg.Compressor.Type)
	if report.DryRun {
		summary = fmt.Sprintf("Planned %d bundles for %d documents", report.Bundles(), len(report.Documents))
	}
	f.PrintSuccess(summary)
	if len(report.Published) > 0 {
		f.PrintInfo(fmt.Sprintf("Published %d objects via %s", len(report.Published), cfg.Publish.Provider))
	}
	return nil
}

func reportTable(report *pipeline.Report) output.TableData {
	data := output.TableData{
		Headers: []string{"DOCUMENT", "BUNDLE", "MEMBERS", "OUTPUT", "STATUS", "SIZE"},
	}
	for _, d := range report.Documents {
		if len(d.Bundles) == 0 {
			data.Rows = append(data.Rows, []string{d.Path, "-", "-", "-", "unchanged", "-"})
			continue
		}
		for _, b := range d.Bundles {
			data.Rows = append(data.Rows, []string{
				d.Path,
				b.Name,
				util.TruncateString(strings.Join(b.Members, ","), 48),
				b.Output,
				bundleStatus(b),
				bundleSize(b),
			})
		}
	}
	return data
}

func bundleStatus(b pipeline.BundleReport) string {
	status := "new"
	if b.Preexisting {
		status = "reused"
	}
	switch {
	case b.Warnings > 0:
		status += ", minified with warnings"
	case b.Compressed:
		status += ", minified"
	}
	if b.Pruned {
		status += ", pruned"
	}
	return status
}

func bundleSize(b pipeline.BundleReport) string {
	if b.SizeBefore == 0 {
		return "-"
	}
	if b.SizeAfter == 0 {
		return util.FormatBytes(b.SizeBefore)
	}
	return fmt.Sprintf("%s -> %s", util.FormatBytes(b.SizeBefore), util.FormatBytes(b.SizeAfter))
}
