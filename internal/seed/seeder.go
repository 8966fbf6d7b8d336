package seed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/querytrace/querytrace/internal/database"
	"github.com/querytrace/querytrace/internal/migrations"
	"github.com/querytrace/querytrace/internal/storage"
)

// Seeder fills the reference database with the demo datasets.
type Seeder struct {
	DB       *sql.DB
	Dialect  database.Dialect
	Datasets storage.Datasets
	Logger   *slog.Logger
	Now      func() time.Time
}

func (s *Seeder) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

// Migrate applies pending dataset migrations.
func (s *Seeder) Migrate(ctx context.Context) (int, error) {
	applied, err := migrations.NewRunner(s.Dialect).Up(ctx, s.DB, 0)
	if err != nil {
		return applied, err
	}
	s.logger().InfoContext(ctx, "migrations applied", "count", applied)
	return applied, nil
}

// Machines migrates and inserts n synthetic machines for seed.
func (s *Seeder) Machines(ctx context.Context, n int, seed int64) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("row count must be > 0")
	}
	if _, err := s.Migrate(ctx); err != nil {
		return 0, err
	}
	inserted, err := InsertMachines(ctx, s.DB, s.Dialect, NewGenerator(seed).Generate(n))
	if err != nil {
		return inserted, err
	}
	s.logger().InfoContext(ctx, "machines inserted", "rows", inserted, "seed", seed)
	return inserted, nil
}

// LoadCSV loads a CSV file from a local path or bucket into table.
func (s *Seeder) LoadCSV(ctx context.Context, loc storage.Location, table string) (int, error) {
	rc, err := s.Datasets.Open(ctx, loc)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rc.Close() }()

	inserted, err := LoadCSV(ctx, s.DB, s.Dialect, table, rc)
	if err != nil {
		return inserted, fmt.Errorf("load %s: %w", loc, err)
	}
	s.logger().InfoContext(ctx, "csv loaded", "source", loc.String(), "table", table, "rows", inserted)
	return inserted, nil
}

// ImportParquet migrates and loads every Parquet file at loc into Machines.
func (s *Seeder) ImportParquet(ctx context.Context, loc storage.Location) (int, error) {
	files, err := s.Datasets.Expand(ctx, loc, ".parquet")
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no parquet files at %s", loc)
	}
	if _, err := s.Migrate(ctx); err != nil {
		return 0, err
	}

	total := 0
	for _, file := range files {
		body, err := s.Datasets.ReadAll(ctx, file)
		if err != nil {
			return total, err
		}
		machines, err := DecodeMachines(body)
		if err != nil {
			return total, fmt.Errorf("decode %s: %w", file, err)
		}
		inserted, err := InsertMachines(ctx, s.DB, s.Dialect, machines)
		total += inserted
		if err != nil {
			return total, fmt.Errorf("import %s: %w", file, err)
		}
		s.logger().InfoContext(ctx, "parquet imported", "source", file.String(), "rows", inserted)
	}
	return total, nil
}

// ExportParquet writes the Machines table to loc. A bucket prefix receives a
// timestamped object name.
func (s *Seeder) ExportParquet(ctx context.Context, loc storage.Location) (storage.Location, int, error) {
	machines, err := ReadMachines(ctx, s.DB, 0)
	if err != nil {
		return loc, 0, err
	}
	body, err := EncodeMachines(machines)
	if err != nil {
		return loc, 0, err
	}
	if loc.IsPrefix() {
		now := time.Now
		if s.Now != nil {
			now = s.Now
		}
		loc = loc.Child(loc.Key + ExportKeyName(now()))
	}
	opts := storage.PutOptions{
		ContentType: "application/vnd.apache.parquet",
		Metadata:    map[string]string{"table": MachinesTable, "rows": strconv.Itoa(len(machines))},
	}
	if err := s.Datasets.Write(ctx, loc, body, opts); err != nil {
		return loc, 0, err
	}
	s.logger().InfoContext(ctx, "parquet exported", "destination", loc.String(), "rows", len(machines))
	return loc, len(machines), nil
}

// ExportKeyName is the object key used for Machines exports at a time.
func ExportKeyName(at time.Time) string {
	return storage.ExportKey(MachinesTable, at)
}
