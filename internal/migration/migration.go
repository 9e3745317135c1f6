package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	customerdomain "github.com/smallbiznis/storesync/internal/customer/domain"
	ingestiondomain "github.com/smallbiznis/storesync/internal/ingestion/domain"
	orderdomain "github.com/smallbiznis/storesync/internal/order/domain"
	productdomain "github.com/smallbiznis/storesync/internal/product/domain"
	tenantdomain "github.com/smallbiznis/storesync/internal/tenant/domain"
	webhookdomain "github.com/smallbiznis/storesync/internal/webhook/domain"
	"github.com/smallbiznis/storesync/pkg/db"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models lists every table the service owns, parents before children.
func Models() []any {
	return []any{
		&tenantdomain.Tenant{},
		&customerdomain.Customer{},
		&productdomain.Product{},
		&productdomain.ProductVariant{},
		&orderdomain.Order{},
		&orderdomain.LineItem{},
		&ingestiondomain.SyncLog{},
		&ingestiondomain.SyncCheckpoint{},
		&webhookdomain.Receipt{},
		&webhookdomain.CustomEvent{},
	}
}

// Migrate brings the schema up to date. PostgreSQL runs the embedded SQL
// migrations, SQLite only adds what is missing, and other dialects fall back
// to AutoMigrate.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	switch {
	case db.IsPostgres(conn):
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	case db.IsSQLite(conn):
		if err := migrateAdditive(conn, Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	default:
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
}

// migrateAdditive creates missing tables, columns and indexes but never
// alters an existing column. The sqlite migrators rebuild a table to alter a
// column and cannot round-trip types such as numeric(20,4).
func migrateAdditive(conn *gorm.DB, models ...any) error {
	m := conn.Migrator()
	for _, model := range models {
		if !m.HasTable(model) {
			if err := m.CreateTable(model); err != nil {
				return err
			}
			continue
		}

		stmt := &gorm.Statement{DB: conn}
		if err := stmt.Parse(model); err != nil {
			return err
		}
		for _, column := range stmt.Schema.DBNames {
			if m.HasColumn(model, column) {
				continue
			}
			if err := m.AddColumn(model, column); err != nil {
				return fmt.Errorf("add column %s.%s: %w", stmt.Schema.Table, column, err)
			}
		}
		for _, idx := range stmt.Schema.ParseIndexes() {
			if m.HasIndex(model, idx.Name) {
				continue
			}
			if err := m.CreateIndex(model, idx.Name); err != nil {
				return fmt.Errorf("create index %s: %w", idx.Name, err)
			}
		}
	}
	return nil
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Closing the migrator would close the shared *sql.DB.
	return nil
}
