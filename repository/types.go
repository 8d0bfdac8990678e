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
	"context"

	"github.com/tomoncle/fleetbook/schema"
	"github.com/tomoncle/fleetbook/types"
	"github.com/uptrace/bun"
)

const (
	// InsertFailed is returned by Insert when no row was written.
	InsertFailed int64 = -1
	// FieldCountOnError is returned by GetFieldCount when the count query fails,
	// so a failed uniqueness check reads as "value taken".
	FieldCountOnError = 1
)

// ReadRepository defines the read operations of a table.
type ReadRepository[T any] interface {
	GetPage(ctx context.Context, page int) (*types.ResultSet, error)
	GetAll(ctx context.Context) (*types.ResultSet, error)
	GetCount(ctx context.Context) (int, error)
	GetByKey(ctx context.Context, key interface{}) (*types.ResultSet, error)
	GetFieldCount(ctx context.Context, field string, value interface{}) (int, error)
	GetEntity(ctx context.Context, key interface{}) (*T, error)
}

// WriteRepository defines the write operations of a table.
type WriteRepository[T any] interface {
	Insert(ctx context.Context, entity *T) (int64, error)
	Update(ctx context.Context, entity *T) (bool, error)
	Delete(ctx context.Context, key interface{}) (bool, error)
}

// TransactionRepository defines operations executed on a caller-owned
// connection or transaction. The caller commits or rolls back.
type TransactionRepository[T any] interface {
	GetByKeyWithTx(ctx context.Context, idb bun.IDB, key interface{}) (*types.ResultSet, error)
	InsertWithTx(ctx context.Context, idb bun.IDB, entity *T) (int64, error)
	UpdateWithTx(ctx context.Context, idb bun.IDB, entity *T) (bool, error)
	DeleteWithTx(ctx context.Context, idb bun.IDB, key interface{}) (bool, error)
}

// Repository combines read, write and transactional operations over one
// configured table, plus helpers that move data between result rows and
// entities.
type Repository[T any] interface {
	ReadRepository[T]
	WriteRepository[T]
	TransactionRepository[T]
	TableConfig() *schema.TableConfig[T]
	ToEntities(rs *types.ResultSet) ([]*T, error)
	PatchRow(rs *types.ResultSet, entity *T) (bool, error)
}

// Reseeder resets the identity counter of a table. It is meant for test
// fixtures: the next generated key is seed+1.
type Reseeder interface {
	Reseed(ctx context.Context, seed int64) error
}
