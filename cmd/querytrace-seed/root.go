package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/querytrace/querytrace/internal/config"
	"github.com/querytrace/querytrace/internal/database"
	"github.com/querytrace/querytrace/internal/migrations"
	"github.com/querytrace/querytrace/internal/query/sqldb"
	"github.com/querytrace/querytrace/internal/seed"
	"github.com/querytrace/querytrace/internal/storage"
	s3store "github.com/querytrace/querytrace/internal/storage/s3"
)

// app holds the database opened for one command invocation.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	db     *sql.DB
	target database.Target

	connector *s3store.Connector
}

func (a *app) open(ctx context.Context) error {
	db, target, err := database.Open(ctx, database.DBConfig{
		URL:             a.cfg.Database.URL,
		MaxOpenConns:    a.cfg.Database.MaxOpenConns,
		MaxIdleConns:    a.cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: a.cfg.Database.ConnMaxIdleTime,
		ConnMaxLifetime: a.cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", database.Redact(a.cfg.Database.URL), err)
	}
	a.db, a.target = db, target
	return nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
		a.db = nil
	}
}

func (a *app) seeder() *seed.Seeder {
	return &seed.Seeder{
		DB:       a.db,
		Dialect:  a.target.Dialect,
		Datasets: storage.Datasets{Remote: a.buckets().Bucket},
		Logger:   a.logger,
	}
}

// buckets connects lazily to the configured S3 endpoint on first use.
func (a *app) buckets() *s3store.Connector {
	if a.connector == nil {
		a.connector = s3store.NewConnector(s3store.Config{
			Endpoint:         a.cfg.ObjectStore.Endpoint,
			Region:           a.cfg.ObjectStore.Region,
			Bucket:           a.cfg.ObjectStore.Bucket,
			AccessKeyID:      a.cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  a.cfg.ObjectStore.SecretAccessKey,
			UseSSL:           a.cfg.ObjectStore.UseSSL,
			Prefix:           a.cfg.ObjectStore.Prefix,
			AutoCreateBucket: a.cfg.ObjectStore.AutoCreateBucket,
		})
	}
	return a.connector
}

func newRootCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	a := &app{cfg: cfg, logger: logger}

	root := &cobra.Command{
		Use:   "querytrace-seed",
		Short: "Seed and inspect the QueryTrace reference datasets",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.cfg.Database.URL, "database-url", cfg.Database.URL, "database URL (overrides QUERYTRACE_DATABASE_URL)")

	root.AddCommand(newMigrateCommand(a))
	root.AddCommand(newMachinesCommand(a))
	root.AddCommand(newLoadCSVCommand(a))
	root.AddCommand(newLoadParquetCommand(a))
	root.AddCommand(newExportParquetCommand(a))
	root.AddCommand(newPreviewCommand(a))
	return root
}

func newMigrateCommand(a *app) *cobra.Command {
	var (
		down   bool
		status bool
		steps  int
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back dataset migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner := migrations.NewRunner(a.target.Dialect)
			if status {
				return printMigrationStatus(cmd, runner, a.db)
			}
			if down {
				n, err := runner.Down(cmd.Context(), a.db, steps)
				if err != nil {
					return fmt.Errorf("migration down failed: %w", err)
				}
				cmd.Printf("rolled back %d migration(s)\n", n)
				return nil
			}
			var (
				n   int
				err error
			)
			if steps == 0 {
				n, err = a.seeder().Migrate(cmd.Context())
			} else {
				n, err = runner.Up(cmd.Context(), a.db, steps)
			}
			if err != nil {
				return fmt.Errorf("migration up failed: %w", err)
			}
			cmd.Printf("applied %d migration(s)\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back instead of applying")
	cmd.Flags().BoolVar(&status, "status", false, "list migrations and whether they are applied")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of steps; 0 means all for up, 1 for down")
	return cmd
}

func printMigrationStatus(cmd *cobra.Command, runner *migrations.Runner, db *sql.DB) error {
	status, err := runner.Status(cmd.Context(), db)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	for _, s := range status {
		state := "pending"
		if s.Applied {
			state = "applied"
		}
		cmd.Printf("%06d %-24s %s\n", s.Version, s.Name, state)
	}
	pending, err := runner.Pending(cmd.Context(), db)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	cmd.Printf("%d pending\n", len(pending))
	return nil
}

func newMachinesCommand(a *app) *cobra.Command {
	var (
		rows      int
		seedValue int64
	)
	cmd := &cobra.Command{
		Use:   "machines",
		Short: "Generate the synthetic Machines table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := a.seeder().Machines(cmd.Context(), rows, seedValue)
			if err != nil {
				return err
			}
			cmd.Printf("inserted %d rows into %s\n", n, seed.MachinesTable)
			return nil
		},
	}
	cmd.Flags().IntVar(&rows, "rows", a.cfg.Seed.MachineRows, "number of machines to generate")
	cmd.Flags().Int64Var(&seedValue, "seed", a.cfg.Seed.RandomSeed, "random seed")
	return cmd
}

func newLoadCSVCommand(a *app) *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "load-csv <path|s3://bucket/key>",
		Short: "Load a CSV file into a TEXT-typed table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := storage.ParseLocation(args[0])
			if err != nil {
				return err
			}
			n, err := a.seeder().LoadCSV(cmd.Context(), loc, strings.TrimSpace(table))
			if err != nil {
				return err
			}
			cmd.Printf("inserted %d rows into %s\n", n, table)
			return nil
		},
	}
	cmd.Flags().StringVar(&table, "table", a.cfg.Seed.CSVTable, "destination table")
	return cmd
}

func newLoadParquetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load-parquet <path|dir|s3://bucket/prefix/>",
		Short: "Import Machines rows from Parquet files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := storage.ParseLocation(args[0])
			if err != nil {
				return err
			}
			n, err := a.seeder().ImportParquet(cmd.Context(), loc)
			if err != nil {
				return err
			}
			cmd.Printf("inserted %d rows into %s\n", n, seed.MachinesTable)
			return nil
		},
	}
}

func newExportParquetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export-parquet <path|s3://bucket/key|s3://bucket/prefix/>",
		Short: "Export the Machines table as Parquet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := storage.ParseLocation(args[0])
			if err != nil {
				return err
			}
			written, n, err := a.seeder().ExportParquet(cmd.Context(), loc)
			if err != nil {
				return err
			}
			cmd.Printf("exported %d rows to %s\n", n, written)
			return nil
		},
	}
}

func newPreviewCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "preview [table]",
		Short: "Print the first rows of a table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := seed.MachinesTable
			if len(args) == 1 {
				table = args[0]
			}
			return seed.Preview(cmd.Context(), sqldb.NewEngine(a.db, a.target.Dialect, false), table, limit, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&limit, "limit", seed.DefaultPreviewRows, "rows to print")
	return cmd
}
