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
	"fmt"

	"github.com/tomoncle/fleetbook/schema"
	"github.com/uptrace/bun"
)

// ForeignKeyConstraint describes a foreign key relationship between tables.
type ForeignKeyConstraint struct {
	Table           string `yaml:"table" json:"table"`
	Column          string `yaml:"column" json:"column"`
	ReferenceTable  string `yaml:"reference_table" json:"reference_table"`
	ReferenceColumn string `yaml:"reference_column" json:"reference_column"`
	OnDelete        string `yaml:"on_delete" json:"on_delete"` // CASCADE, RESTRICT, SET NULL, NO ACTION
	OnUpdate        string `yaml:"on_update" json:"on_update"`
	ConstraintName  string `yaml:"constraint_name" json:"constraint_name"`
}

// GenerateConstraintName returns the explicit name or a derived name.
func (fk *ForeignKeyConstraint) GenerateConstraintName() string {
	if fk.ConstraintName != "" {
		return fk.ConstraintName
	}
	return fmt.Sprintf("fk_%s_%s", fk.Table, fk.Column)
}

// GenerateSQL returns the ALTER TABLE statement adding the constraint.
func (fk *ForeignKeyConstraint) GenerateSQL(db bun.IDB) string {
	stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		quoteIdent(db, fk.Table), quoteIdent(db, fk.GenerateConstraintName()), quoteIdent(db, fk.Column),
		quoteIdent(db, fk.ReferenceTable), quoteIdent(db, fk.ReferenceColumn))
	if fk.OnDelete != "" {
		stmt += " ON DELETE " + fk.OnDelete
	}
	if fk.OnUpdate != "" {
		stmt += " ON UPDATE " + fk.OnUpdate
	}
	return stmt
}

// ForeignKeyManager validates constraints against the registered tables
// and adds them to the database.
type ForeignKeyManager struct {
	constraints []ForeignKeyConstraint
	logger      Logger
}

func NewForeignKeyManager(logger Logger, constraints []ForeignKeyConstraint) *ForeignKeyManager {
	return &ForeignKeyManager{constraints: constraints, logger: logger}
}

// ValidateConstraints checks that every referenced table and column is
// registered.
func (fkm *ForeignKeyManager) ValidateConstraints(tables []schema.Table) []error {
	byName := make(map[string]schema.Table, len(tables))
	for _, t := range tables {
		byName[t.TableName()] = t
	}
	hasColumn := func(table, column string) bool {
		t, ok := byName[table]
		if !ok {
			return false
		}
		for _, c := range t.Columns() {
			if c.Name() == column {
				return true
			}
		}
		return false
	}

	var errs []error
	for _, c := range fkm.constraints {
		if !hasColumn(c.Table, c.Column) {
			errs = append(errs, fmt.Errorf("%s: unknown column %s.%s", c.GenerateConstraintName(), c.Table, c.Column))
		}
		if !hasColumn(c.ReferenceTable, c.ReferenceColumn) {
			errs = append(errs, fmt.Errorf("%s: unknown reference %s.%s", c.GenerateConstraintName(), c.ReferenceTable, c.ReferenceColumn))
		}
	}
	return errs
}

// AddAllForeignKeys adds every constraint. SQLite cannot add constraints
// to an existing table, so the step is skipped there.
func (fkm *ForeignKeyManager) AddAllForeignKeys(ctx context.Context, db bun.IDB) error {
	if DialectName(db) == TypeSQLite {
		if fkm.logger != nil {
			fkm.logger.Debug("Skipping foreign keys on sqlite", "count", len(fkm.constraints))
		}
		return nil
	}
	for _, c := range fkm.constraints {
		if _, err := db.ExecContext(ctx, c.GenerateSQL(db)); err != nil {
			return fmt.Errorf("failed to add foreign key %s: %w", c.GenerateConstraintName(), err)
		}
		if fkm.logger != nil {
			fkm.logger.Debug("Foreign key added", "constraint", c.GenerateConstraintName())
		}
	}
	return nil
}
