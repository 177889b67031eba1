package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	internalconfig "github.com/DrSkyle/fleetledger/pkg/config"
	"github.com/DrSkyle/fleetledger/pkg/engine"
	"github.com/DrSkyle/fleetledger/pkg/engine/aws"
	"github.com/DrSkyle/fleetledger/pkg/engine/lifecycle"
	"github.com/DrSkyle/fleetledger/pkg/engine/report"
	"github.com/DrSkyle/fleetledger/pkg/storage"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Reconstruct instance lifecycles for a closed window",
	Long: `Run the lifecycle reconstruction headlessly. Useful for CI/CD pipelines
or cron jobs.

Example:
  fleetledger audit --days 30 --regions us-east-1,eu-west-1
  fleetledger audit --start 2026-07-01 --end 2026-07-31 --output s3://audits/fleet`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().String("start", "", "Window start date (YYYY-MM-DD)")
	auditCmd.Flags().String("end", "", "Window end date (YYYY-MM-DD)")
	auditCmd.Flags().Int("days", internalconfig.DefaultWindowDays, "Window length ending today (ignored when --start/--end are set)")
	auditCmd.Flags().String("output", "fleetledger-out", "Output directory or s3://bucket/prefix")
	auditCmd.Flags().Int("concurrency", internalconfig.DefaultConcurrency, "Max concurrent region fetches")
	auditCmd.Flags().Int("retries", internalconfig.DefaultFetchRetries, "Retry budget per regional fetch")
	auditCmd.Flags().Duration("fetch-timeout", internalconfig.DefaultFetchTimeout, "Per-region fetch timeout")
	auditCmd.Flags().Bool("strict", false, "Exit non-zero when any region is partial or failed")
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	window, err := resolveWindow(cmd)
	if err != nil {
		return err
	}

	logger := newLogger()

	awsClient, err := aws.NewClient(ctx, internalconfig.DefaultRegion, flagProfile, flagVerbose)
	if err != nil {
		return fmt.Errorf("failed to create AWS client: %w", err)
	}
	account, err := awsClient.VerifyIdentity(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify identity: %w", err)
	}
	logger.Info("Connected to AWS", "account", account)

	var regions []string
	if flagRegions != "" && flagRegions != "all" {
		for _, r := range strings.Split(flagRegions, ",") {
			if r = strings.TrimSpace(r); r != "" {
				regions = append(regions, r)
			}
		}
	}

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	retries, _ := cmd.Flags().GetInt("retries")
	fetchTimeout, _ := cmd.Flags().GetDuration("fetch-timeout")
	strict, _ := cmd.Flags().GetBool("strict")
	output, _ := cmd.Flags().GetString("output")

	auditSource := aws.NewAuditSource(awsClient.Config)
	ec2Source := aws.NewEC2Source(awsClient.Config)

	eng, err := engine.New(ctx,
		engine.WithConfig(engine.Config{
			Regions:        regions,
			Window:         window,
			MaxConcurrency: concurrency,
			FetchRetries:   retries,
			FetchTimeout:   fetchTimeout,
			StrictMode:     strict,
			JsonLogs:       flagJsonLogs,
			Verbose:        flagVerbose,
			Logger:         logger,
		}),
		engine.WithSources(auditSource, auditSource, ec2Source),
		engine.WithRegionLister(ec2Source),
		engine.WithStore(storage.ForTarget(awsClient.Config, output)),
	)
	if err != nil {
		return err
	}

	rep, runErr := eng.Run(ctx)
	if runErr != nil && !errors.Is(runErr, engine.ErrPartialResult) {
		return runErr
	}

	if !flagJsonLogs {
		fmt.Println(report.Summary(rep))
	}
	if err := eng.Export(ctx, rep); err != nil {
		return err
	}

	return runErr
}

func resolveWindow(cmd *cobra.Command) (lifecycle.Window, error) {
	startStr, _ := cmd.Flags().GetString("start")
	endStr, _ := cmd.Flags().GetString("end")
	days, _ := cmd.Flags().GetInt("days")

	var start, end time.Time
	switch {
	case startStr != "" && endStr != "":
		var err error
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return lifecycle.Window{}, fmt.Errorf("invalid --start: %w", err)
		}
		end, err = time.Parse("2006-01-02", endStr)
		if err != nil {
			return lifecycle.Window{}, fmt.Errorf("invalid --end: %w", err)
		}
	case startStr != "" || endStr != "":
		return lifecycle.Window{}, fmt.Errorf("--start and --end must be given together")
	default:
		end = time.Now().UTC()
		start = end.AddDate(0, 0, -days)
	}

	lo, hi := internalconfig.DayBounds(start, end)
	w := lifecycle.Window{Start: lo, End: hi}
	return w, w.Validate()
}

func newLogger() *slog.Logger {
	if flagJsonLogs {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}
