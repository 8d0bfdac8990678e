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
	"fmt"
	"time"

	"github.com/tomoncle/fleetbook/types"
)

// rowReader keeps the first conversion error so extractors read every
// column without checking after each one.
type rowReader struct {
	row types.Row
	err error
}

func (r *rowReader) keep(col string, err error) {
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("column %s: %w", col, err)
	}
}

func (r *rowReader) int64(col string) int64 {
	v, err := r.row.Int64(col)
	r.keep(col, err)
	return v
}

func (r *rowReader) string(col string) string {
	v, err := r.row.String(col)
	r.keep(col, err)
	return v
}

func (r *rowReader) nullString(col string) string {
	v, err := r.row.NullString(col)
	r.keep(col, err)
	return v
}

func (r *rowReader) bool(col string) bool {
	v, err := r.row.Bool(col)
	r.keep(col, err)
	return v
}

func (r *rowReader) float64(col string) float64 {
	v, err := r.row.Float64(col)
	r.keep(col, err)
	return v
}

func (r *rowReader) time(col string) time.Time {
	v, err := r.row.Time(col)
	r.keep(col, err)
	return v
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
