// File: cmd/history.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formprobe/internal/config"
	"github.com/xkilldash9x/formprobe/internal/observability"
	"github.com/xkilldash9x/formprobe/internal/reporting"
	"github.com/xkilldash9x/formprobe/internal/store"
)

// runStore is the slice of the store the commands rely on.
type runStore interface {
	Migrate(ctx context.Context) error
	SaveRun(ctx context.Context, summary reporting.RunSummary, cases []*reporting.CaseResult) error
	Recent(ctx context.Context, limit int) ([]store.RunRecord, error)
	CasesByRunID(ctx context.Context, runID string) ([]store.CaseRecord, error)
}

// storeProvider creates a runStore and a cleanup function releasing its
// resources. Tests inject a mock instead of a live database.
type storeProvider interface {
	Create(ctx context.Context, cfg config.Interface) (runStore, func(), error)
}

type defaultStoreProvider struct{}

// NewStoreProvider returns the PostgreSQL-backed provider.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

// Create connects to the configured database and makes sure the schema exists.
func (p *defaultStoreProvider) Create(ctx context.Context, cfg config.Interface) (runStore, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database().URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (%s_DATABASE_URL)", envPrefix)
	}

	pool, err := pgxpool.New(ctx, cfg.Database().URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}
	return s, cleanup, nil
}

func newHistoryCmd(provider storeProvider) *cobra.Command {
	var limit int
	var runID string

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent suite runs stored in the database",
		Long: `Lists the most recent suite runs recorded by 'formprobe run' when a database
is configured. With --run, prints the cases of that run instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			return runHistory(cmd.Context(), observability.GetLogger(), cfg, provider, cmd.OutOrStdout(), limit, runID)
		},
	}

	historyCmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to list")
	historyCmd.Flags().StringVar(&runID, "run", "", "Show the cases of one run")
	return historyCmd
}

func runHistory(ctx context.Context, logger *zap.Logger, cfg config.Interface, provider storeProvider, out io.Writer, limit int, runID string) error {
	if runID == "" && limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}

	s, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	if runID != "" {
		cases, err := s.CasesByRunID(ctx, runID)
		if err != nil {
			return err
		}
		logger.Debug("Loaded run cases.", zap.String("run_id", runID), zap.Int("cases", len(cases)))
		return printCases(out, runID, cases)
	}

	runs, err := s.Recent(ctx, limit)
	if err != nil {
		return err
	}
	return printRuns(out, runs)
}

func printRuns(out io.Writer, runs []store.RunRecord) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(out, "No runs recorded.")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTARTED\tDURATION\tTOTAL\tPASSED\tFAILED\tSKIPPED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.RunID,
			r.Start.Local().Format(time.DateTime),
			r.Duration().Round(time.Millisecond),
			r.Total, r.Passed, r.Failed, r.Skipped)
	}
	return w.Flush()
}

func printCases(out io.Writer, runID string, cases []store.CaseRecord) error {
	if len(cases) == 0 {
		_, err := fmt.Fprintf(out, "No cases recorded for run %s.\n", runID)
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tDURATION\tSCENARIO\tFAILURE")
	for _, c := range cases {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Status, c.Duration.Round(time.Millisecond), c.Name, c.Failure)
	}
	return w.Flush()
}
