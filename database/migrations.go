/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/tomoncle/fleetbook/schema"
	"github.com/uptrace/bun"
)

// MigrationManager creates the tables described by registered table
// configurations and records every applied step.
type MigrationManager struct {
	db     *bun.DB
	logger Logger
	seedFS fs.FS
	items  []MigrationItem
}

// Migration represents an applied migration record stored in the database.
type Migration struct {
	bun.BaseModel `bun:"table:fleetbook_migrations"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name"`
	AppliedAt   time.Time `bun:"applied_at"`
	Description string    `bun:"description"`
}

// MigrationFunc is a migration step executed within a transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

// MigrationItem describes a single migration version with up/down functions.
type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
	Down        MigrationFunc
}

func NewMigrationManager(db *bun.DB, logger Logger) *MigrationManager {
	return &MigrationManager{db: db, logger: logger}
}

// SetSeedFS replaces the seed directory configured in MigrateConfig.SeedPath.
func (mm *MigrationManager) SetSeedFS(fsys fs.FS) {
	mm.seedFS = fsys
}

// Plan returns the steps for the given tables: one create step per table in
// registration order, then foreign keys and seed data when enabled.
func (mm *MigrationManager) Plan(tables []schema.Table, opts MigrateConfig) []MigrationItem {
	var items []MigrationItem
	for _, t := range tables {
		items = append(items, MigrationItem{
			Version:     "001_create_" + strings.ToLower(t.TableName()),
			Name:        "create_" + t.TableName(),
			Description: fmt.Sprintf("Create table %s", t.TableName()),
			Up: func(ctx context.Context, db bun.IDB) error {
				stmt, err := CreateTableSQL(db, t)
				if err != nil {
					return err
				}
				_, err = db.ExecContext(ctx, stmt)
				return err
			},
			Down: func(ctx context.Context, db bun.IDB) error {
				_, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(db, t.TableName()))
				return err
			},
		})
	}
	if opts.EnableForeignKey && len(opts.ForeignKeys) > 0 {
		fkm := NewForeignKeyManager(mm.logger, opts.ForeignKeys)
		items = append(items, MigrationItem{
			Version:     "002_add_foreign_keys",
			Name:        "add_foreign_keys",
			Description: "Add table foreign key constraints",
			Up: func(ctx context.Context, db bun.IDB) error {
				if errs := fkm.ValidateConstraints(tables); len(errs) > 0 {
					for _, err := range errs {
						if mm.logger != nil {
							mm.logger.Debug("Foreign key constraint validation failed", "error", err.Error())
						}
					}
					return fmt.Errorf("foreign key constraint validation failed, %d errors in total", len(errs))
				}
				return fkm.AddAllForeignKeys(ctx, db)
			},
		})
	}
	if opts.SeedOnMigration {
		seedFS := mm.seedFS
		if seedFS == nil && opts.SeedPath != "" {
			seedFS = os.DirFS(opts.SeedPath)
		}
		if seedFS != nil {
			seeder := NewSQLSeeder(seedFS, opts.Environment, mm.logger)
			items = append(items, MigrationItem{
				Version:     "003_seed_" + opts.Environment,
				Name:        "seed_initial_data",
				Description: fmt.Sprintf("Seed initial data for %s", opts.Environment),
				Up: func(ctx context.Context, db bun.IDB) error {
					_, err := seeder.Seed(ctx, db)
					return err
				},
			})
		}
	}
	return items
}

// RunMigrations creates the tracking table and applies every step of the
// plan that has not been recorded yet.
func (mm *MigrationManager) RunMigrations(ctx context.Context, tables []schema.Table, opts MigrateConfig) error {
	if _, ok := os.LookupEnv("BUNDEBUG_MIGRATION"); !ok {
		EnableBunSqlSilent(true)
		defer EnableBunSqlSilent(false)
	}
	if mm.db == nil {
		return ErrNotConnected
	}
	if err := mm.createMigrationTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	mm.items = mm.Plan(tables, opts)
	for _, migration := range mm.items {
		if err := mm.runMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", migration.Version, err)
		}
	}
	if mm.logger != nil {
		mm.logger.Info("Database migrations completed!", "steps", len(mm.items))
	}
	return nil
}

func (mm *MigrationManager) createMigrationTable(ctx context.Context) error {
	_, err := mm.db.NewCreateTable().
		Model((*Migration)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (mm *MigrationManager) runMigration(ctx context.Context, migration MigrationItem) error {
	exists, err := mm.db.NewSelect().
		Model((*Migration)(nil)).
		Where("version = ?", migration.Version).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = mm.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := migration.Up(ctx, tx); err != nil {
			return err
		}
		_, err := tx.NewInsert().
			Model(&Migration{
				Version:     migration.Version,
				Name:        migration.Name,
				AppliedAt:   time.Now(),
				Description: migration.Description,
			}).
			Exec(ctx)
		return err
	})
	if err != nil {
		return err
	}
	if mm.logger != nil {
		mm.logger.Info("Migration executed successfully", "version", migration.Version, "name", migration.Name)
	}
	return nil
}

// GetAppliedMigrations lists recorded migrations ordered by version.
func (mm *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	var migrations []Migration
	err := mm.db.NewSelect().
		Model(&migrations).
		Order("version ASC").
		Scan(ctx)
	return migrations, err
}

// RollbackMigration runs the down step of an applied migration from the
// last plan and removes its record.
func (mm *MigrationManager) RollbackMigration(ctx context.Context, version string) error {
	var item *MigrationItem
	for i := range mm.items {
		if mm.items[i].Version == version {
			item = &mm.items[i]
			break
		}
	}
	if item == nil {
		return fmt.Errorf("migration %s is not part of the current plan", version)
	}
	if item.Down == nil {
		return fmt.Errorf("migration %s cannot be rolled back", version)
	}
	return mm.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := item.Down(ctx, tx); err != nil {
			return err
		}
		_, err := tx.NewDelete().
			Model((*Migration)(nil)).
			Where("version = ?", version).
			Exec(ctx)
		return err
	})
}
