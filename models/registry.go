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

package models

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/tomoncle/fleetbook/database"
	"github.com/tomoncle/fleetbook/schema"
)

//go:embed tables.yaml
var tablesYAML []byte

// Definitions parses the embedded table document.
func Definitions() (schema.Definitions, error) {
	return schema.LoadDefinitions(bytes.NewReader(tablesYAML))
}

// NewRegistry builds the registry of every fleet table. Registration order
// is the order tables are created in.
func NewRegistry() (*schema.Registry, error) {
	defs, err := Definitions()
	if err != nil {
		return nil, err
	}
	b := schema.NewRegistryBuilder()

	drivers, err := DriverTable(defs)
	if err != nil {
		return nil, err
	}
	vehicles, err := VehicleTable(defs)
	if err != nil {
		return nil, err
	}
	tasks, err := DeliveryTaskTable(defs)
	if err != nil {
		return nil, err
	}
	deliveries, err := DeliveryTable(defs)
	if err != nil {
		return nil, err
	}

	_ = schema.Register(b, drivers)
	_ = schema.Register(b, vehicles)
	_ = schema.Register(b, tasks)
	_ = schema.Register(b, deliveries)

	reg, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build table registry: %w", err)
	}
	return reg, nil
}

// ForeignKeys lists the constraints between the fleet tables.
func ForeignKeys() []database.ForeignKeyConstraint {
	return []database.ForeignKeyConstraint{
		{
			Table:           DeliveryTableName,
			Column:          DeliveryTaskColumn,
			ReferenceTable:  DeliveryTaskTableName,
			ReferenceColumn: DeliveryTaskKeyColumn,
			OnDelete:        "CASCADE",
		},
		{
			Table:           DeliveryTableName,
			Column:          DeliveryDriverColumn,
			ReferenceTable:  DriverTableName,
			ReferenceColumn: DriverKeyColumn,
			OnDelete:        "RESTRICT",
		},
	}
}
