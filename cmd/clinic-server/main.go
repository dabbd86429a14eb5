package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicops/clinic/internal/config"
	"github.com/clinicops/clinic/internal/domain/formulary"
	"github.com/clinicops/clinic/internal/platform/db"
	"github.com/clinicops/clinic/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Drug-testing clinic API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(formularyCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string, w io.Writer) zerolog.Logger {
	if env == "development" {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, _ := cmd.Flags().GetInt("to")
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator, schema string) error {
				fmt.Fprintf(cmd.OutOrStdout(), "Running migrations on schema: %s\n", schema)
				var (
					count int
					err   error
				)
				if target > 0 {
					count, err = m.UpTo(ctx, schema, target)
				} else {
					count, err = m.Up(ctx, schema)
				}
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().Int("to", 0, "Stop after this version (0 applies everything)")
	cmd.AddCommand(upCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator, schema string) error {
				statuses, err := m.Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration status: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Migration status for schema: %s\n", schema)
				printMigrationStatus(cmd.OutOrStdout(), statuses)
				return nil
			})
		},
	})

	cmd.PersistentFlags().String("schema", "", "Target schema (defaults to DB_SCHEMA)")
	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(ctx context.Context, m *db.Migrator, schema string) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	schema, _ := cmd.Flags().GetString("schema")
	if schema == "" {
		schema = cfg.DBSchema
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: 2, MinConns: 1})
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, migrations.FS), schema)
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
	for _, s := range statuses {
		status, appliedAt := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Version, s.Name, status, appliedAt)
	}
	tw.Flush()
}

func formularyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formulary",
		Short: "Inspect the medication formulary",
	}

	checkCmd := &cobra.Command{
		Use:   "check [path]",
		Short: "Validate a formulary file (the embedded catalog when no path is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return checkFormulary(cmd.OutOrStdout(), path)
		},
	}
	cmd.AddCommand(checkCmd)
	return cmd
}

func checkFormulary(w io.Writer, path string) error {
	catalog, err := formulary.Load(path)
	if err != nil {
		return err
	}
	source := path
	if source == "" {
		source = "embedded catalog"
	}
	fmt.Fprintf(w, "%s: %d medication(s) OK\n", source, catalog.Len())
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, e := range catalog.Entries() {
		fmt.Fprintf(tw, "%s\t%v\tconfirm=%t\n", e.Name, e.Substances.Sorted(), e.RequireConfirmation)
	}
	return tw.Flush()
}
