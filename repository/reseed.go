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

package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tomoncle/fleetbook/database"
	"github.com/uptrace/bun"
)

// Reseed resets the identity counter so the next generated key is seed+1.
// Rows already stored are left alone.
func (r *baseRepositoryImpl[T]) Reseed(ctx context.Context, seed int64) error {
	if seed < 0 {
		return fmt.Errorf("reseed %s: negative seed %d", r.cfg.TableName(), seed)
	}
	err := r.run(ctx, "Reseed", func(ctx context.Context) error {
		return reseed(ctx, r.db, r.cfg.TableName(), r.cfg.PrimaryKey(), seed)
	})
	if err != nil {
		return fmt.Errorf("reseed %s: %w", r.cfg.TableName(), err)
	}
	r.logger.Info("Identity reseeded", "table", r.cfg.TableName(), "seed", seed)
	return nil
}

func reseed(ctx context.Context, idb bun.IDB, table, column string, seed int64) error {
	switch database.DialectName(idb) {
	case database.TypeSQLite:
		res, err := idb.ExecContext(ctx, "UPDATE sqlite_sequence SET seq = ? WHERE name = ?", seed, table)
		if err != nil {
			return err
		}
		if ok, err := affected(res); err != nil || ok {
			return err
		}
		_, err = idb.ExecContext(ctx, "INSERT INTO sqlite_sequence (name, seq) VALUES (?, ?)", table, seed)
		return err
	case database.TypePostgres:
		// pg_get_serial_sequence parses the table argument as an
		// identifier, so mixed-case names need their own quotes.
		quoted := strconv.Quote(table)
		var err error
		if seed == 0 {
			_, err = idb.ExecContext(ctx, "SELECT setval(pg_get_serial_sequence(?, ?), 1, false)", quoted, column)
		} else {
			_, err = idb.ExecContext(ctx, "SELECT setval(pg_get_serial_sequence(?, ?), ?, true)", quoted, column, seed)
		}
		return err
	case database.TypeMySQL:
		_, err := idb.ExecContext(ctx, "ALTER TABLE ? AUTO_INCREMENT = ?", bun.Ident(table), seed+1)
		return err
	default:
		return fmt.Errorf("reseed is not supported on %s", database.DialectName(idb))
	}
}
