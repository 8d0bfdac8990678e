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
	"github.com/tomoncle/fleetbook/schema"
	"github.com/tomoncle/fleetbook/types"
)

type Vehicle struct {
	VehicleId   int64
	PlateNumber string
	Model       string
	CapacityKg  float64
	InService   bool
}

func VehicleTable(defs schema.Definitions) (*schema.TableConfig[Vehicle], error) {
	def, err := defs.Get("Vehicle")
	if err != nil {
		return nil, err
	}
	cfg, err := schema.FromDefinition[Vehicle](def)
	if err != nil {
		return nil, err
	}
	return cfg.
		OnInsert(func(v *Vehicle) schema.Params {
			return schema.Params{
				"PlateNumber": v.PlateNumber,
				"Model":       v.Model,
				"CapacityKg":  v.CapacityKg,
				"InService":   v.InService,
			}
		}).
		OnUpdate(func(v *Vehicle) schema.Params {
			return schema.Params{
				"VehicleId":   v.VehicleId,
				"PlateNumber": v.PlateNumber,
				"Model":       v.Model,
				"CapacityKg":  v.CapacityKg,
				"InService":   v.InService,
			}
		}).
		OnApply(func(row types.Row, v *Vehicle) {
			row["VehicleId"] = v.VehicleId
			row["PlateNumber"] = v.PlateNumber
			row["Model"] = v.Model
			row["CapacityKg"] = v.CapacityKg
			row["InService"] = v.InService
		}).
		OnExtract(func(row types.Row) (*Vehicle, error) {
			r := rowReader{row: row}
			v := &Vehicle{
				VehicleId:   r.int64("VehicleId"),
				PlateNumber: r.string("PlateNumber"),
				Model:       r.string("Model"),
				CapacityKg:  r.float64("CapacityKg"),
				InService:   r.bool("InService"),
			}
			if r.err != nil {
				return nil, r.err
			}
			return v, nil
		}), nil
}
