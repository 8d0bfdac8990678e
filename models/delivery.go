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
	"time"

	"github.com/tomoncle/fleetbook/schema"
	"github.com/tomoncle/fleetbook/types"
)

const (
	DeliveryTableName      = "Delivery"
	DeliveryKeyColumn      = "DeliveryId"
	DeliveryTaskColumn     = "TaskId"
	DeliveryDriverColumn   = "DriverId"
	DeliveryAssignedColumn = "AssignedAt"
)

// Delivery links a task to the driver it was assigned to.
type Delivery struct {
	DeliveryId int64
	TaskId     int64
	DriverId   int64
	AssignedAt time.Time
}

func DeliveryTable(defs schema.Definitions) (*schema.TableConfig[Delivery], error) {
	def, err := defs.Get("Delivery")
	if err != nil {
		return nil, err
	}
	cfg, err := schema.FromDefinition[Delivery](def)
	if err != nil {
		return nil, err
	}
	params := func(d *Delivery) schema.Params {
		return schema.Params{
			DeliveryTaskColumn:     d.TaskId,
			DeliveryDriverColumn:   d.DriverId,
			DeliveryAssignedColumn: d.AssignedAt,
		}
	}
	return cfg.
		OnInsert(params).
		OnUpdate(func(d *Delivery) schema.Params {
			p := params(d)
			p[DeliveryKeyColumn] = d.DeliveryId
			return p
		}).
		OnApply(func(row types.Row, d *Delivery) {
			row[DeliveryKeyColumn] = d.DeliveryId
			row[DeliveryTaskColumn] = d.TaskId
			row[DeliveryDriverColumn] = d.DriverId
			row[DeliveryAssignedColumn] = d.AssignedAt
		}).
		OnExtract(func(row types.Row) (*Delivery, error) {
			r := rowReader{row: row}
			d := &Delivery{
				DeliveryId: r.int64(DeliveryKeyColumn),
				TaskId:     r.int64(DeliveryTaskColumn),
				DriverId:   r.int64(DeliveryDriverColumn),
				AssignedAt: r.time(DeliveryAssignedColumn),
			}
			if r.err != nil {
				return nil, r.err
			}
			return d, nil
		}), nil
}
