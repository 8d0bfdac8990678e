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

package schema

import (
	"fmt"
	"strings"

	"github.com/tomoncle/fleetbook/types"
)

// Params holds statement parameters keyed by column name.
type Params map[string]interface{}

// Table is the read-only, type-erased view of a TableConfig.
type Table interface {
	TableName() string
	PrimaryKey() string
	Columns() []ColumnConfig
}

// TableConfig describes how entities of type T are stored: the table, its
// primary key, the ordered columns and the four mapping hooks that replace
// field introspection.
type TableConfig[T any] struct {
	tableName  string
	primaryKey string
	columns    []ColumnConfig

	insertMapper func(*T) Params
	updateMapper func(*T) Params
	rowPatcher   func(types.Row, *T)
	rowExtractor func(types.Row) (*T, error)

	frozen   bool
	buildErr error
}

var _ Table = (*TableConfig[struct{}])(nil)

// NewTableConfig starts a table configuration for entity type T.
func NewTableConfig[T any](tableName, primaryKey string) *TableConfig[T] {
	return &TableConfig[T]{
		tableName:  tableName,
		primaryKey: primaryKey,
		columns:    make([]ColumnConfig, 0),
	}
}

func (t *TableConfig[T]) mutable(what string) bool {
	if t.frozen {
		t.fail(fmt.Errorf("%w: %s on %s", ErrFrozen, what, t.tableName))
		return false
	}
	return true
}

func (t *TableConfig[T]) fail(err error) {
	if t.buildErr == nil {
		t.buildErr = err
	}
}

// AddColumn appends a column. Builder errors (duplicates, late mutation)
// are kept and reported by Validate.
func (t *TableConfig[T]) AddColumn(c ColumnConfig) *TableConfig[T] {
	if !t.mutable("AddColumn") {
		return t
	}
	if strings.TrimSpace(c.Name()) == "" || !c.StorageType().IsValid() {
		t.fail(fmt.Errorf("%w: %q (%s) on %s", ErrInvalidColumn, c.Name(), c.StorageType(), t.tableName))
		return t
	}
	if _, ok := t.Column(c.Name()); ok {
		t.fail(fmt.Errorf("%w: %s.%s", ErrDuplicateColumn, t.tableName, c.Name()))
		return t
	}
	t.columns = append(t.columns, c)
	return t
}

// OnInsert sets the entity → insert-parameters hook.
func (t *TableConfig[T]) OnInsert(fn func(*T) Params) *TableConfig[T] {
	if t.mutable("OnInsert") {
		t.insertMapper = fn
	}
	return t
}

// OnUpdate sets the entity → update-parameters hook. The returned
// parameters must include the primary key.
func (t *TableConfig[T]) OnUpdate(fn func(*T) Params) *TableConfig[T] {
	if t.mutable("OnUpdate") {
		t.updateMapper = fn
	}
	return t
}

// OnApply sets the hook that patches a result row from an entity.
func (t *TableConfig[T]) OnApply(fn func(types.Row, *T)) *TableConfig[T] {
	if t.mutable("OnApply") {
		t.rowPatcher = fn
	}
	return t
}

// OnExtract sets the row → entity hook.
func (t *TableConfig[T]) OnExtract(fn func(types.Row) (*T, error)) *TableConfig[T] {
	if t.mutable("OnExtract") {
		t.rowExtractor = fn
	}
	return t
}

func (t *TableConfig[T]) TableName() string  { return t.tableName }
func (t *TableConfig[T]) PrimaryKey() string { return t.primaryKey }

// Columns returns a copy of the ordered column list.
func (t *TableConfig[T]) Columns() []ColumnConfig {
	out := make([]ColumnConfig, len(t.columns))
	copy(out, t.columns)
	return out
}

// Column looks a column up by name.
func (t *TableConfig[T]) Column(name string) (ColumnConfig, bool) {
	for _, c := range t.columns {
		if c.Name() == name {
			return c, true
		}
	}
	return ColumnConfig{}, false
}

// ColumnNames returns the column names in order.
func (t *TableConfig[T]) ColumnNames() []string {
	names := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		names = append(names, c.Name())
	}
	return names
}

// InsertColumns lists the columns written by an insert: every column that
// is not server generated.
func (t *TableConfig[T]) InsertColumns() []string {
	names := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		if !c.IsIdentity() {
			names = append(names, c.Name())
		}
	}
	return names
}

// UpdateColumns lists the columns of an update's SET clause.
func (t *TableConfig[T]) UpdateColumns() []string {
	names := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		if !c.IsIdentity() && c.Name() != t.primaryKey {
			names = append(names, c.Name())
		}
	}
	return names
}

// UniqueColumns lists the columns flagged unique.
func (t *TableConfig[T]) UniqueColumns() []string {
	var names []string
	for _, c := range t.columns {
		if c.IsUnique() {
			names = append(names, c.Name())
		}
	}
	return names
}

// Validate checks the builder state and the primary key invariant.
func (t *TableConfig[T]) Validate() error {
	if t.buildErr != nil {
		return t.buildErr
	}
	if strings.TrimSpace(t.tableName) == "" {
		return fmt.Errorf("%w: empty table name", ErrConfiguration)
	}
	if _, ok := t.Column(t.primaryKey); !ok {
		return fmt.Errorf("%w: %s.%s", ErrPrimaryKeyNotInColumns, t.tableName, t.primaryKey)
	}
	return nil
}

// Frozen reports whether the config has been registered.
func (t *TableConfig[T]) Frozen() bool { return t.frozen }

func (t *TableConfig[T]) freeze() { t.frozen = true }

func (t *TableConfig[T]) hookErr(hook string) error {
	return fmt.Errorf("%w: %s.%s", ErrHookNotConfigured, t.tableName, hook)
}

// MapInsertParameters runs the insert hook and checks that every insert
// column received a value.
func (t *TableConfig[T]) MapInsertParameters(entity *T) (Params, error) {
	if t.insertMapper == nil {
		return nil, t.hookErr("MapInsertParameters")
	}
	params := t.insertMapper(entity)
	if err := t.requireParams(params, t.InsertColumns()); err != nil {
		return nil, err
	}
	return params, nil
}

// MapUpdateParameters runs the update hook and checks that the SET
// columns and the primary key received values.
func (t *TableConfig[T]) MapUpdateParameters(entity *T) (Params, error) {
	if t.updateMapper == nil {
		return nil, t.hookErr("MapUpdateParameters")
	}
	params := t.updateMapper(entity)
	required := append(t.UpdateColumns(), t.primaryKey)
	if err := t.requireParams(params, required); err != nil {
		return nil, err
	}
	return params, nil
}

// ApplyToRow patches row in place from entity.
func (t *TableConfig[T]) ApplyToRow(row types.Row, entity *T) error {
	if t.rowPatcher == nil {
		return t.hookErr("ApplyToRow")
	}
	t.rowPatcher(row, entity)
	return nil
}

// ExtractFromRow builds an entity from a result row.
func (t *TableConfig[T]) ExtractFromRow(row types.Row) (*T, error) {
	if t.rowExtractor == nil {
		return nil, t.hookErr("ExtractFromRow")
	}
	return t.rowExtractor(row)
}

func (t *TableConfig[T]) requireParams(params Params, columns []string) error {
	for _, col := range columns {
		if _, ok := params[col]; !ok {
			return fmt.Errorf("%w: %s.%s", ErrMissingParameter, t.tableName, col)
		}
	}
	for key := range params {
		if _, ok := t.Column(key); !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.tableName, key)
		}
	}
	return nil
}
