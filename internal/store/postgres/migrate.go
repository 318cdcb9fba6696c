package postgres

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	mpg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator applies the embedded schema.
type Migrator struct {
	m      *migrate.Migrate
	logger hclog.Logger
}

// NewMigrator opens a migrate instance over the embedded migrations.
func NewMigrator(dsn string, logger hclog.Logger) (*Migrator, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open migration connection: %w", err)
	}
	driver, err := mpg.WithInstance(db, &mpg.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create migration driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return &Migrator{m: m, logger: logger}, nil
}

// Up applies every pending migration, repairing a dirty version first.
func (g *Migrator) Up() error {
	version, dirty, err := g.m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		g.logger.Warn("schema is dirty, forcing version", "version", version)
		if err := g.m.Force(int(version)); err != nil {
			return fmt.Errorf("force version %d: %w", version, err)
		}
	}
	if err := g.m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			g.logger.Info("schema up to date", "version", version)
			return nil
		}
		return fmt.Errorf("migrate up: %w", err)
	}
	version, _, _ = g.m.Version()
	g.logger.Info("schema migrated", "version", version)
	return nil
}

// Down rolls back one step.
func (g *Migrator) Down() error {
	if err := g.m.Steps(-1); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migrate down: %w", err)
	}
	version, _, _ := g.m.Version()
	g.logger.Info("schema rolled back", "version", version)
	return nil
}

// Version returns the applied version and whether it is dirty.
func (g *Migrator) Version() (uint, bool, error) { return g.m.Version() }

func (g *Migrator) Close() error {
	var result *multierror.Error
	srcErr, dbErr := g.m.Close()
	if srcErr != nil {
		result = multierror.Append(result, fmt.Errorf("close migration source: %w", srcErr))
	}
	if dbErr != nil {
		result = multierror.Append(result, fmt.Errorf("close migration database: %w", dbErr))
	}
	return result.ErrorOrNil()
}
