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

package types

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrColumnMissing   = errors.New("column not present in row")
	ErrColumnNull      = errors.New("column value is null")
	ErrColumnTypeMatch = errors.New("column value has an unexpected type")
)

// Row is one record of a tabular result, keyed by column name.
type Row map[string]interface{}

// Value returns the raw value of a column.
func (r Row) Value(col string) (interface{}, bool) {
	v, ok := r[col]
	return v, ok
}

// IsNull reports whether the column is absent or SQL NULL.
func (r Row) IsNull(col string) bool {
	v, ok := r[col]
	return !ok || v == nil
}

func (r Row) get(col string) (interface{}, error) {
	v, ok := r[col]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnMissing, col)
	}
	if v == nil {
		return nil, fmt.Errorf("%w: %s", ErrColumnNull, col)
	}
	return v, nil
}

func mismatch(col string, v interface{}) error {
	return fmt.Errorf("%w: %s is %T", ErrColumnTypeMatch, col, v)
}

// Int64 reads an integer column. Drivers disagree on integer widths and
// some hand back numerics as text, so all of them are accepted.
func (r Row) Int64(col string) (int64, error) {
	v, err := r.get(col)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, mismatch(col, v)
		}
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	case string:
		return strconv.ParseInt(x, 10, 64)
	}
	return 0, mismatch(col, v)
}

// String reads a text column.
func (r Row) String(col string) (string, error) {
	v, err := r.get(col)
	if err != nil {
		return "", err
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	}
	return "", mismatch(col, v)
}

// NullString reads a nullable text column; NULL yields "".
func (r Row) NullString(col string) (string, error) {
	if _, ok := r[col]; ok && r[col] == nil {
		return "", nil
	}
	return r.String(col)
}

// Bool reads a boolean column, including the 0/1 integers used by
// SQLite and MySQL.
func (r Row) Bool(col string) (bool, error) {
	v, err := r.get(col)
	if err != nil {
		return false, err
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case int:
		return x != 0, nil
	case []byte:
		return strconv.ParseBool(string(x))
	case string:
		return strconv.ParseBool(x)
	}
	return false, mismatch(col, v)
}

// Float64 reads a decimal column.
func (r Row) Float64(col string) (float64, error) {
	v, err := r.get(col)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case []byte:
		return strconv.ParseFloat(string(x), 64)
	case string:
		return strconv.ParseFloat(x, 64)
	}
	return 0, mismatch(col, v)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time reads a datetime column. Text values are parsed with the layouts
// the supported drivers produce.
func (r Row) Time(col string) (time.Time, error) {
	v, err := r.get(col)
	if err != nil {
		return time.Time{}, err
	}
	var s string
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case []byte:
		s = string(x)
	case string:
		s = x
	default:
		return time.Time{}, mismatch(col, v)
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, perr := time.Parse(layout, s); perr == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s=%q is not a timestamp", ErrColumnTypeMatch, col, s)
}

// NormalizeValue converts driver values into the forms kept in a Row.
// Byte slices are copied into strings because drivers reuse their buffers.
func NormalizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case []byte:
		return string(x)
	default:
		return v
	}
}

// NormalizeKey maps equal keys of different Go integer types to one
// representation so index lookups do not depend on the driver.
func NormalizeKey(v interface{}) interface{} {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x)
		}
		return x
	case []byte:
		return string(x)
	case string:
		if n, err := strconv.ParseInt(x, 10, 64); err == nil {
			return n
		}
		return x
	default:
		return v
	}
}

// ResultSet is an in-memory, ordered set of rows with a designated key
// column. Lookups by key are O(1).
type ResultSet struct {
	columns   []string
	keyColumn string
	rows      []Row
	index     map[interface{}]int
}

// NewResultSet creates an empty result with the given shape.
func NewResultSet(columns []string, keyColumn string) *ResultSet {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &ResultSet{
		columns:   cols,
		keyColumn: keyColumn,
		rows:      make([]Row, 0),
		index:     make(map[interface{}]int),
	}
}

// Columns returns the column names in result order.
func (rs *ResultSet) Columns() []string {
	cols := make([]string, len(rs.columns))
	copy(cols, rs.columns)
	return cols
}

// KeyColumn returns the name of the identity column of the result.
func (rs *ResultSet) KeyColumn() string { return rs.keyColumn }

// HasColumn reports whether name is part of the result shape.
func (rs *ResultSet) HasColumn(name string) bool {
	for _, c := range rs.columns {
		if c == name {
			return true
		}
	}
	return false
}

// Append adds a row and indexes it by its key value.
func (rs *ResultSet) Append(row Row) {
	rs.rows = append(rs.rows, row)
	if rs.keyColumn == "" {
		return
	}
	if k, ok := row[rs.keyColumn]; ok && k != nil {
		rs.index[NormalizeKey(k)] = len(rs.rows) - 1
	}
}

// Len returns the number of rows.
func (rs *ResultSet) Len() int { return len(rs.rows) }

// Rows returns the rows in result order.
func (rs *ResultSet) Rows() []Row {
	out := make([]Row, len(rs.rows))
	copy(out, rs.rows)
	return out
}

// Row returns the i-th row.
func (rs *ResultSet) Row(i int) Row { return rs.rows[i] }

// Find returns the row whose key column equals key.
func (rs *ResultSet) Find(key interface{}) (Row, bool) {
	i, ok := rs.index[NormalizeKey(key)]
	if !ok {
		return nil, false
	}
	return rs.rows[i], true
}

// Keys returns the key values in result order.
func (rs *ResultSet) Keys() []interface{} {
	keys := make([]interface{}, 0, len(rs.rows))
	for _, r := range rs.rows {
		keys = append(keys, NormalizeKey(r[rs.keyColumn]))
	}
	return keys
}
