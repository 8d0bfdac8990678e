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
	DeliveryTaskTableName = "DeliveryTask"
	DeliveryTaskKeyColumn = "TaskId"
)

// Task statuses.
const (
	StatusPending   = "pending"
	StatusAssigned  = "assigned"
	StatusInTransit = "in_transit"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

// DeliveryTask is a pickup/drop-off job. DriverName is not stored on the
// task: the delivery-task repository resolves it to a Drivers row and
// records the assignment in the Delivery table.
type DeliveryTask struct {
	TaskId         int64
	Title          string
	PickupAddress  string
	DropoffAddress string
	WeightKg       float64
	Status         string
	ScheduledAt    time.Time

	DriverName string
}

func DeliveryTaskTable(defs schema.Definitions) (*schema.TableConfig[DeliveryTask], error) {
	def, err := defs.Get("DeliveryTask")
	if err != nil {
		return nil, err
	}
	cfg, err := schema.FromDefinition[DeliveryTask](def)
	if err != nil {
		return nil, err
	}
	return cfg.
		OnInsert(taskParams).
		OnUpdate(func(t *DeliveryTask) schema.Params {
			p := taskParams(t)
			p[DeliveryTaskKeyColumn] = t.TaskId
			return p
		}).
		OnApply(func(row types.Row, t *DeliveryTask) {
			row[DeliveryTaskKeyColumn] = t.TaskId
			for k, v := range taskParams(t) {
				row[k] = v
			}
		}).
		OnExtract(func(row types.Row) (*DeliveryTask, error) {
			r := rowReader{row: row}
			t := &DeliveryTask{
				TaskId:         r.int64(DeliveryTaskKeyColumn),
				Title:          r.string("Title"),
				PickupAddress:  r.string("PickupAddress"),
				DropoffAddress: r.string("DropoffAddress"),
				WeightKg:       r.float64("WeightKg"),
				Status:         r.string("Status"),
				ScheduledAt:    r.time("ScheduledAt"),
			}
			if r.err != nil {
				return nil, r.err
			}
			return t, nil
		}), nil
}

func taskParams(t *DeliveryTask) schema.Params {
	status := t.Status
	if status == "" {
		status = StatusPending
	}
	return schema.Params{
		"Title":          t.Title,
		"PickupAddress":  t.PickupAddress,
		"DropoffAddress": t.DropoffAddress,
		"WeightKg":       t.WeightKg,
		"Status":         status,
		"ScheduledAt":    t.ScheduledAt,
	}
}
