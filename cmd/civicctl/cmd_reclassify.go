package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/civicsafe/api/internal/classifier"
	"github.com/civicsafe/api/internal/database"
	"github.com/civicsafe/api/internal/llm"
	"github.com/civicsafe/api/internal/model"
	"github.com/civicsafe/api/internal/report"
	"github.com/civicsafe/api/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	reclassifyWorkers  int
	reclassifyDryRun   bool
	reclassifyStatus   string
	reclassifyPageSize int
	reclassifyMax      int
)

var reclassifyCmd = &cobra.Command{
	Use:   "reclassify",
	Short: "Re-run AI classification over stored reports",
	Long: `Re-run AI classification over stored reports, newest first.

Only a model classification replaces the stored department. Reports the model
cannot classify keep their current values. With --dry-run nothing is written
and the command prints what would change.`,
	Example: `  civicctl reclassify --status PENDING --workers 8 --dry-run`,
	RunE:    runReclassifyCmd,
}

func init() {
	reclassifyCmd.Flags().IntVar(&reclassifyWorkers, "workers", 4, "parallel classification requests")
	reclassifyCmd.Flags().BoolVar(&reclassifyDryRun, "dry-run", false, "print changes without saving them")
	reclassifyCmd.Flags().StringVar(&reclassifyStatus, "status", "", "only reports with this status")
	reclassifyCmd.Flags().IntVar(&reclassifyPageSize, "page-size", 100, "reports loaded per query")
	reclassifyCmd.Flags().IntVar(&reclassifyMax, "max", 0, "stop after this many reports (0 = all)")
}

func runReclassifyCmd(cmd *cobra.Command, args []string) error {
	opts := reclassifyOptions{
		Workers:  reclassifyWorkers,
		DryRun:   reclassifyDryRun,
		PageSize: reclassifyPageSize,
		Max:      reclassifyMax,
	}
	if reclassifyStatus != "" {
		status, ok := model.ParseReportStatus(reclassifyStatus)
		if !ok {
			return fmt.Errorf("unknown status %q", reclassifyStatus)
		}
		opts.Status = status
	}

	ctx := cmd.Context()
	client, models, err := llm.NewProvider(ctx, llm.ProviderConfig{
		Provider: cfg.LLMProvider,
		OpenRouter: llm.OpenRouterConfig{
			BaseURL:  cfg.OpenRouterBaseURL,
			APIKey:   cfg.OpenRouterAPIKey,
			SiteURL:  cfg.SiteURL,
			SiteName: cfg.SiteName,
			Timeout:  cfg.LLMTimeout,
		},
		GeminiAPIKey: cfg.GeminiAPIKey,
		GeminiModel:  cfg.GeminiModel,
	}, logger)
	if err != nil {
		return err
	}
	if client == nil {
		return classifier.ErrNotConfigured
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close(db)

	st := store.NewGormReportStore(db)
	svc := report.NewService(report.Deps{
		Store: st,
		Classifier: classifier.New(client, models, logger.Named("classifier"), classifier.Options{
			MaxAttempts: cfg.ClassifyMaxAttempts,
			RetryDelay:  cfg.ClassifyRetryDelay,
		}),
		Logger: logger.Named("report"),
	})

	sum, err := reclassify(ctx, st, svc, opts, logger, func(rc *report.Reclassification) {
		if rc.Changed {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", rc.ReportID, rc.Previous, rc.Result.Department)
		}
	})
	fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, changed %d, degraded %d, failed %d\n",
		sum.Scanned, sum.Changed, sum.Degraded, sum.Failed)
	return err
}

type reclassifier interface {
	Reclassify(ctx context.Context, r *model.Report, persist bool) (*report.Reclassification, error)
}

type reclassifyOptions struct {
	Workers  int
	DryRun   bool
	Status   model.ReportStatus
	PageSize int
	Max      int
}

type reclassifySummary struct {
	Scanned  int
	Changed  int
	Degraded int
	Failed   int
}

// reclassify walks the matching reports page by page and runs up to
// opts.Workers classifications at once. A per-report failure is counted and
// logged; a store failure or a missing backend stops the run.
func reclassify(ctx context.Context, st store.ReportStore, svc reclassifier, opts reclassifyOptions, log *zap.Logger, onResult func(*report.Reclassification)) (reclassifySummary, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.PageSize < 1 || opts.PageSize > 100 {
		opts.PageSize = 100
	}

	var (
		mu  sync.Mutex
		sum reclassifySummary
	)

	for page := 1; ; page++ {
		reports, _, err := st.FindMany(ctx, store.ReportFilter{
			Status: opts.Status,
			Page:   page,
			Limit:  opts.PageSize,
		})
		if err != nil {
			return sum, err
		}
		if opts.Max > 0 && sum.Scanned+len(reports) > opts.Max {
			reports = reports[:opts.Max-sum.Scanned]
		}
		if len(reports) == 0 {
			return sum, nil
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Workers)
		for i := range reports {
			r := &reports[i]
			g.Go(func() error {
				rc, err := svc.Reclassify(gctx, r, !opts.DryRun)

				mu.Lock()
				defer mu.Unlock()
				sum.Scanned++
				switch {
				case errors.Is(err, classifier.ErrNotConfigured):
					return err
				case err != nil:
					sum.Failed++
					log.Warn("reclassify failed", zap.String("reportId", r.ReportID), zap.Error(err))
					return nil
				case rc.Changed:
					sum.Changed++
				case rc.Result.Outcome == classifier.OutcomeDegraded:
					sum.Degraded++
				}
				if onResult != nil {
					onResult(rc)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return sum, err
		}
		if len(reports) < opts.PageSize || (opts.Max > 0 && sum.Scanned >= opts.Max) {
			return sum, nil
		}
	}
}
