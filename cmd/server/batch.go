package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/schedule"
)

var batchDate string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Report absences and unregistered exits for one work date",
	Long: `Runs the end-of-day sweep for every employee. Anomalies already
reported for the date are skipped, so the command is safe to re-run.

Examples:
  attendance sweep                    # yesterday
  attendance sweep --date 2025-03-10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd.Context(), "sweep", func(e *attendance.Engine) batchFunc { return e.Sweep })
	},
}

var autoCloseCmd = &cobra.Command{
	Use:   "autoclose",
	Short: "Close forgotten check-outs for one work date",
	Long: `Appends a synthetic CHECK_OUT for every open day whose check-out
window has closed. Days already closed are skipped.

Examples:
  attendance autoclose                    # yesterday
  attendance autoclose --date 2025-03-10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd.Context(), "autoclose", func(e *attendance.Engine) batchFunc { return e.AutoCloseAll })
	},
}

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Apply the demo catalog, or a catalog file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		if seedFile != "" {
			err = a.applyCatalogFile(ctx, seedFile)
		} else {
			err = a.applyCatalog(ctx, []byte(factory.DemoCatalogJSON()))
		}
		if err != nil {
			return err
		}

		employees, err := a.store.ListEmployees(ctx)
		if err != nil {
			return err
		}
		log.Info("catalog seeded", zap.Int("employees", len(employees)))
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{sweepCmd, autoCloseCmd} {
		cmd.Flags().StringVar(&batchDate, "date", "", "work date YYYY-MM-DD (default: yesterday)")
	}
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "catalog JSON file (default: demo catalog)")
}

type batchFunc func(ctx context.Context, day time.Time) (attendance.BatchSummary, error)

func runBatch(ctx context.Context, name string, pick func(*attendance.Engine) batchFunc) error {
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	loc := a.engine.Location()
	day := schedule.DateOf(time.Now(), loc).AddDate(0, 0, -1)
	if batchDate != "" {
		if day, err = schedule.ParseDate(batchDate, loc); err != nil {
			return err
		}
	}

	summary, err := pick(a.engine)(ctx, day)
	if err != nil {
		return err
	}
	log.Info(name+" completed",
		zap.String("date", schedule.FormatDate(day)),
		zap.Int("employees", summary.Employees),
		zap.Int("failed", summary.Failed),
		zap.Int("reported", len(summary.Reported)),
		zap.Int("closed", len(summary.Closed)),
	)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
