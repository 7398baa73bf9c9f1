package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sharpedge/pickengine/internal/app"
	"github.com/sharpedge/pickengine/internal/config"
	"github.com/sharpedge/pickengine/internal/models"
	"github.com/sharpedge/pickengine/internal/upstream"
)

const (
	appName = "pickengine"
	version = "v1.4.0"
)

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Pick scoring and lifecycle pipeline",
		Version: version,
		Long: `pickengine builds today's candidate slates, scores them through the
four-engine pipeline, persists picks to the append-only store, and grades
them against final results on the ET calendar.`,
		SilenceUsage: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler daemon",
		Long:  "Hosts the ET job table, the live scoreboard feed and the shared caches until interrupted",
		RunE:  runServe,
	}

	bestbetsCmd := &cobra.Command{
		Use:   "bestbets",
		Short: "Generate best bets for one sport",
		RunE:  runBestBets,
	}
	bestbetsCmd.Flags().String("sport", "NBA", "Sport (NBA|NFL|MLB|NHL|NCAAB)")
	bestbetsCmd.Flags().Int("top-n", 0, "Cap per class; 0 returns everything")
	bestbetsCmd.Flags().String("et-date", "", "ET date override (YYYY-MM-DD)")

	gradeCmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade pending picks for one ET date",
		RunE:  runGrade,
	}
	gradeCmd.Flags().String("et-date", "", "ET date to settle; defaults to yesterday")
	gradeCmd.Flags().Bool("dry-run", false, "Preview without writing grades")
	gradeCmd.Flags().String("stage", "post", "Dry-run stage (pre|post)")

	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Run the performance audit and weight tuning",
		RunE:  runAudit,
	}
	auditCmd.Flags().Int("days-back", 14, "Trailing window in days")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Report storage, grader, scheduler and integration status",
		RunE:  runStatus,
	}
	statusCmd.Flags().String("sport", "NBA", "Sport for integration health")

	debugTimeCmd := &cobra.Command{
		Use:   "debug-time",
		Short: "Show every clock the pipeline reasons about",
		RunE:  runDebugTime,
	}

	rootCmd.AddCommand(serveCmd, bestbetsCmd, gradeCmd, auditCmd, statusCmd, debugTimeCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildEngine resolves config and storage and wires the live adapters.
func buildEngine(ctx context.Context) (*app.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	vol, err := config.ResolveVolume(cfg.VolumePath, true)
	if err != nil {
		return nil, fmt.Errorf("resolve volume: %w", err)
	}
	return app.New(ctx, cfg, config.NewRegistry(), *vol, app.Sources{
		Market:  upstream.NewMarketAPI(),
		Results: upstream.NewResultsAPI(),
		Splits:  upstream.NewSplitsAPI(),
		Intel:   upstream.NewSerpAPI(),
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	log.Info().Str("version", version).Msg("pickengine serving")
	eng.Serve(ctx)
	return nil
}

func runBestBets(cmd *cobra.Command, args []string) error {
	sportFlag, _ := cmd.Flags().GetString("sport")
	topN, _ := cmd.Flags().GetInt("top-n")
	etDate, _ := cmd.Flags().GetString("et-date")

	sport, ok := models.ParseSport(sportFlag)
	if !ok {
		return fmt.Errorf("unknown sport %q", sportFlag)
	}
	ctx := cmd.Context()
	eng, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	resp := eng.GenerateBestBets(ctx, sport, app.Options{TopN: topN, ETDate: etDate})
	return printJSON(resp)
}

func runGrade(cmd *cobra.Command, args []string) error {
	etDate, _ := cmd.Flags().GetString("et-date")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	stage, _ := cmd.Flags().GetString("stage")

	ctx := cmd.Context()
	eng, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	if dryRun {
		report, err := eng.GraderDryRun(ctx, etDate, stage)
		if err != nil {
			return err
		}
		return printJSON(report)
	}
	sum, err := eng.GradeDate(ctx, etDate)
	if err != nil {
		return err
	}
	return printJSON(sum)
}

func runAudit(cmd *cobra.Command, args []string) error {
	daysBack, _ := cmd.Flags().GetInt("days-back")

	eng, err := buildEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer eng.Close()

	snap, err := eng.Audit(daysBack)
	if err != nil {
		return err
	}
	return printJSON(snap)
}

func runStatus(cmd *cobra.Command, args []string) error {
	sportFlag, _ := cmd.Flags().GetString("sport")
	sport, ok := models.ParseSport(sportFlag)
	if !ok {
		return fmt.Errorf("unknown sport %q", sportFlag)
	}

	eng, err := buildEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer eng.Close()

	return printJSON(map[string]interface{}{
		"storage":      eng.StorageHealth(),
		"grader":       eng.GraderStatus(),
		"scheduler":    eng.SchedulerStatus(time.Now()),
		"integrations": eng.IntegrationHealth(sport),
	})
}

func runDebugTime(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer eng.Close()
	return printJSON(eng.DebugTime())
}

func printJSON(v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}
