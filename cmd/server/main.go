/*
main.go - Application entry point

PURPOSE:
  Command-line entry point for the attendance engine. Loads configuration,
  wires the store, the incident collaborators and the engine, then runs one
  of the commands below.

COMMANDS:
  serve      HTTP API plus the background auto-close/sweep scheduler
  sweep      One end-of-day anomaly sweep (cron-friendly)
  autoclose  One auto-close batch (cron-friendly)
  seed       Apply the demo catalog or a catalog file

CONFIGURATION:
  --config points at a YAML file. Every key can be overridden with an
  ATTENDANCE_* environment variable (see config/config.go), and a .env file
  in the working directory is loaded first.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM serve:
  1. Stops the scheduler after its current tick
  2. Stops accepting new connections
  3. Waits for active requests to complete (30s timeout)
  4. Closes the publisher, the code store and the database

EXAMPLES:
  attendance serve
  attendance --config ./config/attendance.yaml serve
  ATTENDANCE_DB_DRIVER=postgres ATTENDANCE_DB_DSN=postgres://... attendance serve
  attendance sweep --date 2025-03-10
  attendance seed --file ./catalog.json

SEE ALSO:
  - app.go: Dependency wiring
  - api/server.go: Router configuration
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Attendance scheduling and anomaly detection engine",
	Long: `Resolves employee schedules, validates clock punches against shift
windows (including shifts that cross midnight) and reports late arrivals,
early departures, unregistered exits and absences.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		log, err = logger.New(cfg.Log)
		if err != nil {
			return err
		}
		log.Debug("command start", zap.String("command", cmd.CommandPath()))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.AddCommand(serveCmd, sweepCmd, autoCloseCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
