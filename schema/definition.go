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
	"io"

	"gopkg.in/yaml.v3"

	"github.com/tomoncle/fleetbook/types"
)

// ColumnDefinition is the YAML form of a column.
type ColumnDefinition struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Identity bool   `yaml:"identity"`
	Unique   bool   `yaml:"unique"`
	Nullable bool   `yaml:"nullable"`
	Size     int    `yaml:"size"`
}

// Definition is the YAML form of one table.
type Definition struct {
	Entity     string             `yaml:"entity"`
	Table      string             `yaml:"table"`
	PrimaryKey string             `yaml:"primary_key"`
	Columns    []ColumnDefinition `yaml:"columns"`
}

// Definitions is a parsed table document keyed by entity name.
type Definitions map[string]Definition

type definitionsFile struct {
	Tables []Definition `yaml:"tables"`
}

// LoadDefinitions parses a YAML document of the form
//
//	tables:
//	  - entity: Driver
//	    table: Drivers
//	    primary_key: DriverId
//	    columns:
//	      - {name: DriverId, type: integer, identity: true}
func LoadDefinitions(r io.Reader) (Definitions, error) {
	var file definitionsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse table definitions: %w", err)
	}
	defs := make(Definitions, len(file.Tables))
	for _, d := range file.Tables {
		if d.Entity == "" {
			return nil, fmt.Errorf("%w: table %q has no entity name", ErrConfiguration, d.Table)
		}
		if _, ok := defs[d.Entity]; ok {
			return nil, fmt.Errorf("%w: entity %q defined twice", ErrDuplicateTable, d.Entity)
		}
		defs[d.Entity] = d
	}
	return defs, nil
}

// Get returns the definition of an entity.
func (d Definitions) Get(entity string) (Definition, error) {
	def, ok := d[entity]
	if !ok {
		return Definition{}, fmt.Errorf("%w: no definition for entity %q", ErrTableNotRegistered, entity)
	}
	return def, nil
}

// FromDefinition builds a TableConfig from a parsed definition. The
// mapping hooks still have to be attached by the caller.
func FromDefinition[T any](def Definition) (*TableConfig[T], error) {
	cfg := NewTableConfig[T](def.Table, def.PrimaryKey)
	for _, cd := range def.Columns {
		st, err := types.ParseStorageType(cd.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidColumn, def.Table, cd.Name, err)
		}
		var opts []ColumnOption
		if cd.Identity {
			opts = append(opts, Identity())
		}
		if cd.Unique {
			opts = append(opts, Unique())
		}
		if cd.Nullable {
			opts = append(opts, Nullable())
		}
		if cd.Size > 0 {
			opts = append(opts, Size(cd.Size))
		}
		cfg.AddColumn(NewColumn(cd.Name, st, opts...))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
