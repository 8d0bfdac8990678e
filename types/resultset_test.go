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
	"testing"
	"time"
)

func TestResultSetFindByKey(t *testing.T) {
	rs := NewResultSet([]string{"DriverId", "Name"}, "DriverId")
	rs.Append(Row{"DriverId": int64(7), "Name": "ana"})
	rs.Append(Row{"DriverId": int64(9), "Name": "bo"})

	for _, key := range []interface{}{int64(9), 9, int32(9), "9"} {
		row, ok := rs.Find(key)
		if !ok {
			t.Fatalf("Find(%T %v) missed", key, key)
		}
		if name, _ := row.String("Name"); name != "bo" {
			t.Errorf("Find(%v) returned %q", key, name)
		}
	}
	if _, ok := rs.Find(8); ok {
		t.Error("Find(8) should miss")
	}
	if rs.Len() != 2 || !rs.HasColumn("Name") || rs.HasColumn("Phone") {
		t.Errorf("unexpected shape: len=%d cols=%v", rs.Len(), rs.Columns())
	}
	keys := rs.Keys()
	if keys[0] != int64(7) || keys[1] != int64(9) {
		t.Errorf("Keys() = %v", keys)
	}
}

func TestRowAccessors(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	row := Row{
		"n":     "42",
		"b":     int64(1),
		"f":     []byte("12.50"),
		"t":     "2026-03-04 05:06:07+00:00",
		"tt":    at,
		"s":     []byte("text"),
		"null":  nil,
		"weird": struct{}{},
		"bool":  true,
		"float": float64(3),
	}
	if v, err := row.Int64("n"); err != nil || v != 42 {
		t.Errorf("Int64 = %v, %v", v, err)
	}
	if v, err := row.Bool("b"); err != nil || !v {
		t.Errorf("Bool = %v, %v", v, err)
	}
	if v, err := row.Bool("bool"); err != nil || !v {
		t.Errorf("Bool(bool) = %v, %v", v, err)
	}
	if v, err := row.Float64("f"); err != nil || v != 12.5 {
		t.Errorf("Float64 = %v, %v", v, err)
	}
	if v, err := row.Int64("float"); err != nil || v != 3 {
		t.Errorf("Int64(float) = %v, %v", v, err)
	}
	if v, err := row.Time("t"); err != nil || !v.Equal(at) {
		t.Errorf("Time(text) = %v, %v", v, err)
	}
	if v, err := row.Time("tt"); err != nil || !v.Equal(at) {
		t.Errorf("Time(time) = %v, %v", v, err)
	}
	if v, err := row.String("s"); err != nil || v != "text" {
		t.Errorf("String = %v, %v", v, err)
	}
	if v, err := row.NullString("null"); err != nil || v != "" {
		t.Errorf("NullString(null) = %q, %v", v, err)
	}
	if _, err := row.String("null"); !errors.Is(err, ErrColumnNull) {
		t.Errorf("String(null) err = %v", err)
	}
	if _, err := row.Int64("missing"); !errors.Is(err, ErrColumnMissing) {
		t.Errorf("Int64(missing) err = %v", err)
	}
	if _, err := row.Int64("weird"); !errors.Is(err, ErrColumnTypeMatch) {
		t.Errorf("Int64(weird) err = %v", err)
	}
	if !row.IsNull("null") || !row.IsNull("missing") || row.IsNull("n") {
		t.Error("IsNull mismatch")
	}
}

func TestStorageTypeEnum(t *testing.T) {
	st, err := ParseStorageType("VARCHAR")
	if err != nil || st != StorageText {
		t.Fatalf("ParseStorageType(VARCHAR) = %v, %v", st, err)
	}
	if st.Name() != "text" || st.Number() != int(StorageText) || !st.IsValid() {
		t.Errorf("unexpected enum values for %v", st)
	}
	var bad StorageType = 99
	if bad.IsValid() || bad.Number() != IllegalValue || bad.Name() != IllegalName || bad.Desc() != IllegalDesc {
		t.Errorf("invalid storage type leaked values: %v", bad)
	}
	if _, err := ParseStorageType("blob"); err == nil {
		t.Error("blob should not parse")
	}
}
