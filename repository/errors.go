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

package repository

import (
	"errors"
	"fmt"

	"github.com/tomoncle/fleetbook/database"
	"github.com/tomoncle/fleetbook/schema"
)

var (
	// ErrSchemaDrift means the table no longer has the shape its config
	// describes, e.g. the key column is missing from a result.
	ErrSchemaDrift = fmt.Errorf("%w: result does not match table config", schema.ErrConfiguration)
	// ErrDriverNotFound is raised inside the delivery transaction when the
	// task names a driver that does not exist.
	ErrDriverNotFound = errors.New("driver not found")
	// ErrTransactionPanic wraps a panic recovered inside a transaction.
	ErrTransactionPanic = errors.New("panic in transaction")
)

// OperationError describes a failed data-access operation.
type OperationError struct {
	Op    string
	Table string
	Key   interface{}
	Err   error
}

func (e *OperationError) Error() string {
	if e.Key != nil {
		return fmt.Sprintf("%s %s [key=%v]: %v", e.Op, e.Table, e.Key, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// Kind names the SQL error class, "unknown" when it cannot be classified.
func (e *OperationError) Kind() string {
	if errors.Is(e.Err, ErrDriverNotFound) {
		return "driver_not_found"
	}
	if errors.Is(e.Err, ErrTransactionPanic) {
		return "panic"
	}
	if ok, kind := database.IsSqlError(e.Err); ok {
		return kind.String()
	}
	return "unknown"
}
