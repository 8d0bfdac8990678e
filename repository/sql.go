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
	"database/sql"
	"fmt"
	"strings"

	"github.com/tomoncle/fleetbook/schema"
	"github.com/tomoncle/fleetbook/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/feature"
)

// Statements are built from bun placeholders only: identifiers go through
// bun.Ident and values are formatted by the dialect.

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func insertColumns(t schema.Table) []string {
	var cols []string
	for _, c := range t.Columns() {
		if !c.IsIdentity() {
			cols = append(cols, c.Name())
		}
	}
	return cols
}

func isIdentityKey(t schema.Table) bool {
	for _, c := range t.Columns() {
		if c.Name() == t.PrimaryKey() {
			return c.IsIdentity()
		}
	}
	return false
}

// insertRow writes one row and returns its key. The key comes from
// RETURNING where the dialect has it, from LastInsertId otherwise.
func insertRow(ctx context.Context, idb bun.IDB, t schema.Table, params schema.Params) (int64, error) {
	cols := insertColumns(t)
	args := make([]interface{}, 0, 2*len(cols)+2)
	args = append(args, bun.Ident(t.TableName()))
	for _, c := range cols {
		args = append(args, bun.Ident(c))
	}
	for _, c := range cols {
		args = append(args, params[c])
	}
	query := fmt.Sprintf("INSERT INTO ? (%s) VALUES (%s)", placeholders(len(cols)), placeholders(len(cols)))
	if len(cols) == 0 && idb.Dialect().Name() != dialect.MySQL {
		query = "INSERT INTO ? DEFAULT VALUES"
	}

	if idb.Dialect().Features().Has(feature.InsertReturning) {
		var id int64
		args = append(args, bun.Ident(t.PrimaryKey()))
		if err := idb.QueryRowContext(ctx, query+" RETURNING ?", args...).Scan(&id); err != nil {
			return InsertFailed, err
		}
		return id, nil
	}

	res, err := idb.ExecContext(ctx, query, args...)
	if err != nil {
		return InsertFailed, err
	}
	if !isIdentityKey(t) {
		return types.Row(params).Int64(t.PrimaryKey())
	}
	return res.LastInsertId()
}

// updateRow reports false without touching the table when there is no
// column to set.
func updateRow(ctx context.Context, idb bun.IDB, t schema.Table, columns []string, params schema.Params) (bool, error) {
	if len(columns) == 0 {
		return false, nil
	}
	sets := make([]string, 0, len(columns))
	args := make([]interface{}, 0, 2*len(columns)+3)
	args = append(args, bun.Ident(t.TableName()))
	for _, c := range columns {
		sets = append(sets, "? = ?")
		args = append(args, bun.Ident(c), params[c])
	}
	args = append(args, bun.Ident(t.PrimaryKey()), params[t.PrimaryKey()])
	query := fmt.Sprintf("UPDATE ? SET %s WHERE ? = ?", strings.Join(sets, ", "))
	res, err := idb.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func deleteRows(ctx context.Context, idb bun.IDB, table, column string, value interface{}) (bool, error) {
	res, err := idb.ExecContext(ctx, "DELETE FROM ? WHERE ? = ?", bun.Ident(table), bun.Ident(column), value)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func countRows(ctx context.Context, idb bun.IDB, query string, args ...interface{}) (int, error) {
	var n int
	if err := idb.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// queryResult reads every row of query into a ResultSet keyed by
// keyColumn. The key column must be part of the result.
func queryResult(ctx context.Context, idb bun.IDB, keyColumn string, query string, args ...interface{}) (*types.ResultSet, error) {
	rows, err := idb.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	rs := types.NewResultSet(cols, keyColumn)
	if !rs.HasColumn(keyColumn) {
		return nil, fmt.Errorf("%w: key column %s missing from %v", ErrSchemaDrift, keyColumn, cols)
	}

	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(types.Row, len(cols))
		for i, c := range cols {
			row[c] = types.NormalizeValue(values[i])
		}
		rs.Append(row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}
