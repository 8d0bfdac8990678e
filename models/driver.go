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
	DriverTableName     = "Drivers"
	DriverKeyColumn     = "DriverId"
	DriverNameColumn    = "Name"
	DriverLicenseColumn = "LicenseNumber"
)

type Driver struct {
	DriverId      int64
	Name          string
	Phone         string // empty is stored as NULL
	LicenseNumber string
	Active        bool
	HiredAt       time.Time
}

func DriverTable(defs schema.Definitions) (*schema.TableConfig[Driver], error) {
	def, err := defs.Get("Driver")
	if err != nil {
		return nil, err
	}
	cfg, err := schema.FromDefinition[Driver](def)
	if err != nil {
		return nil, err
	}
	return cfg.
		OnInsert(driverInsertParams).
		OnUpdate(func(d *Driver) schema.Params {
			p := driverInsertParams(d)
			p[DriverKeyColumn] = d.DriverId
			return p
		}).
		OnApply(func(row types.Row, d *Driver) {
			row[DriverKeyColumn] = d.DriverId
			row[DriverNameColumn] = d.Name
			row["Phone"] = nullIfEmpty(d.Phone)
			row[DriverLicenseColumn] = d.LicenseNumber
			row["Active"] = d.Active
			row["HiredAt"] = d.HiredAt
		}).
		OnExtract(extractDriver), nil
}

func driverInsertParams(d *Driver) schema.Params {
	return schema.Params{
		DriverNameColumn:    d.Name,
		"Phone":             nullIfEmpty(d.Phone),
		DriverLicenseColumn: d.LicenseNumber,
		"Active":            d.Active,
		"HiredAt":           d.HiredAt,
	}
}

func extractDriver(row types.Row) (*Driver, error) {
	r := rowReader{row: row}
	d := &Driver{
		DriverId:      r.int64(DriverKeyColumn),
		Name:          r.string(DriverNameColumn),
		Phone:         r.nullString("Phone"),
		LicenseNumber: r.string(DriverLicenseColumn),
		Active:        r.bool("Active"),
		HiredAt:       r.time("HiredAt"),
	}
	if r.err != nil {
		return nil, r.err
	}
	return d, nil
}
