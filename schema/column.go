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

import "github.com/tomoncle/fleetbook/types"

// ColumnConfig describes one table column. It is a value object: all
// fields are read through accessors and never change after NewColumn.
type ColumnConfig struct {
	name        string
	storageType types.StorageType
	identity    bool
	unique      bool
	nullable    bool
	size        int
}

// ColumnOption customizes a column at construction time.
type ColumnOption func(*ColumnConfig)

// Identity marks a server-generated column. Identity columns are left out
// of insert and update parameter lists.
func Identity() ColumnOption { return func(c *ColumnConfig) { c.identity = true } }

// Unique marks a column whose values must be checked before insert.
func Unique() ColumnOption { return func(c *ColumnConfig) { c.unique = true } }

// Nullable allows SQL NULL in the column.
func Nullable() ColumnOption { return func(c *ColumnConfig) { c.nullable = true } }

// Size bounds a text column.
func Size(n int) ColumnOption {
	return func(c *ColumnConfig) {
		if n > 0 {
			c.size = n
		}
	}
}

// NewColumn builds a column descriptor.
func NewColumn(name string, storageType types.StorageType, opts ...ColumnOption) ColumnConfig {
	c := ColumnConfig{name: name, storageType: storageType}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c ColumnConfig) Name() string                   { return c.name }
func (c ColumnConfig) StorageType() types.StorageType { return c.storageType }
func (c ColumnConfig) IsIdentity() bool               { return c.identity }
func (c ColumnConfig) IsUnique() bool                 { return c.unique }
func (c ColumnConfig) IsNullable() bool               { return c.nullable }

// Size returns the text bound and whether one is set.
func (c ColumnConfig) Size() (int, bool) { return c.size, c.size > 0 }
