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
	"fmt"
	"strings"
)

// Common illegal/default values used by enums.
const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum represents a basic enum contract used by domain types.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

// StorageType is the storage class of a table column.
type StorageType int

const (
	StorageInteger StorageType = iota + 1
	StorageText
	StorageBoolean
	StorageDecimal
	StorageDateTime
)

var storageTypeNames = map[StorageType]string{
	StorageInteger:  "integer",
	StorageText:     "text",
	StorageBoolean:  "boolean",
	StorageDecimal:  "decimal",
	StorageDateTime: "datetime",
}

var storageTypeDescs = map[StorageType]string{
	StorageInteger:  "64-bit signed integer",
	StorageText:     "character data, optionally bounded",
	StorageBoolean:  "true/false flag",
	StorageDecimal:  "fixed-point number",
	StorageDateTime: "timestamp",
}

var _ BaseEnum = StorageType(0)

func (t StorageType) IsValid() bool {
	_, ok := storageTypeNames[t]
	return ok
}

func (t StorageType) Number() int {
	if !t.IsValid() {
		return IllegalValue
	}
	return int(t)
}

func (t StorageType) Name() string {
	if n, ok := storageTypeNames[t]; ok {
		return n
	}
	return IllegalName
}

func (t StorageType) Desc() string {
	if d, ok := storageTypeDescs[t]; ok {
		return d
	}
	return IllegalDesc
}

func (t StorageType) String() string { return t.Name() }

// ParseStorageType resolves a storage type by name. A few SQL spellings are
// accepted as aliases ("int", "varchar", "bool", "numeric", "timestamp").
func ParseStorageType(s string) (StorageType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "integer", "int", "bigint":
		return StorageInteger, nil
	case "text", "varchar", "string":
		return StorageText, nil
	case "boolean", "bool":
		return StorageBoolean, nil
	case "decimal", "numeric":
		return StorageDecimal, nil
	case "datetime", "timestamp":
		return StorageDateTime, nil
	}
	return 0, fmt.Errorf("unknown storage type %q", s)
}
