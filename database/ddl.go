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
	"fmt"
	"strings"

	"github.com/tomoncle/fleetbook/schema"
	"github.com/tomoncle/fleetbook/types"
	"github.com/uptrace/bun"
)

func quoteIdent(db bun.IDB, s string) string {
	if DialectName(db) == TypeMySQL {
		return "`" + strings.ReplaceAll(s, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// columnType maps a storage type onto the dialect's column type.
func columnType(dialectName string, col schema.ColumnConfig) string {
	switch col.StorageType() {
	case types.StorageInteger:
		if dialectName == TypeSQLite {
			return "INTEGER"
		}
		return "BIGINT"
	case types.StorageText:
		if n, ok := col.Size(); ok {
			return fmt.Sprintf("VARCHAR(%d)", n)
		}
		if dialectName == TypeMySQL && col.IsUnique() {
			return "VARCHAR(255)"
		}
		return "TEXT"
	case types.StorageBoolean:
		return "BOOLEAN"
	case types.StorageDecimal:
		return "DECIMAL(18,4)"
	case types.StorageDateTime:
		switch dialectName {
		case TypePostgres:
			return "TIMESTAMP"
		case TypeMySQL:
			return "DATETIME(6)"
		default:
			return "DATETIME"
		}
	}
	return "TEXT"
}

func identityDefinition(dialectName string) string {
	switch dialectName {
	case TypePostgres:
		return "BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"
	case TypeMySQL:
		return "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY"
	default:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}

// CreateTableSQL renders a CREATE TABLE IF NOT EXISTS statement for t.
func CreateTableSQL(db bun.IDB, t schema.Table) (string, error) {
	cols := t.Columns()
	if len(cols) == 0 {
		return "", fmt.Errorf("table %s has no columns", t.TableName())
	}
	dialectName := DialectName(db)
	defs := make([]string, 0, len(cols))
	for _, col := range cols {
		name := quoteIdent(db, col.Name())
		if col.IsIdentity() {
			if col.Name() != t.PrimaryKey() || col.StorageType() != types.StorageInteger {
				return "", fmt.Errorf("identity column %s.%s must be the integer primary key", t.TableName(), col.Name())
			}
			defs = append(defs, name+" "+identityDefinition(dialectName))
			continue
		}
		def := name + " " + columnType(dialectName, col)
		if col.Name() == t.PrimaryKey() {
			def += " PRIMARY KEY"
		} else {
			if !col.IsNullable() {
				def += " NOT NULL"
			}
			if col.IsUnique() {
				def += " UNIQUE"
			}
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(db, t.TableName()), strings.Join(defs, ", ")), nil
}
