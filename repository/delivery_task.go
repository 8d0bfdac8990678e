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
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomoncle/fleetbook/models"
	"github.com/tomoncle/fleetbook/resilience"
	"github.com/tomoncle/fleetbook/schema"
	"github.com/uptrace/bun"
)

// DeliveryTaskRepository is the DeliveryTask repository whose inserts also
// assign the task to a driver. The task row and its Delivery row are
// written in one transaction: either both exist afterwards or neither.
type DeliveryTaskRepository struct {
	Repository[models.DeliveryTask]

	base       *baseRepositoryImpl[models.DeliveryTask]
	drivers    *schema.TableConfig[models.Driver]
	deliveries *schema.TableConfig[models.Delivery]
	now        func() time.Time
}

var _ Repository[models.DeliveryTask] = (*DeliveryTaskRepository)(nil)

// NewDeliveryTaskRepository resolves the task, driver and delivery tables
// from reg.
func NewDeliveryTaskRepository(db *bun.DB, reg *schema.Registry, pipeline *resilience.Pipeline, opts ...Option) (*DeliveryTaskRepository, error) {
	tasks, err := schema.Resolve[models.DeliveryTask](reg)
	if err != nil {
		return nil, err
	}
	drivers, err := schema.Resolve[models.Driver](reg)
	if err != nil {
		return nil, err
	}
	deliveries, err := schema.Resolve[models.Delivery](reg)
	if err != nil {
		return nil, err
	}
	base := newBaseRepository(db, tasks, pipeline, opts...)
	return &DeliveryTaskRepository{
		Repository: base,
		base:       base,
		drivers:    drivers,
		deliveries: deliveries,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Insert stores task and assigns it to the driver named by
// task.DriverName. A missing driver, a failed statement or a panic rolls
// the whole unit back and returns InsertFailed. The unit is retried as a
// whole on transient failures.
func (r *DeliveryTaskRepository) Insert(ctx context.Context, task *models.DeliveryTask) (int64, error) {
	return r.insertOn(ctx, r.base.db, task)
}

// InsertWithTx is Insert on the caller's transaction. Both rows are written
// under a savepoint: on failure neither is left in idb and InsertFailed is
// returned. Committing or rolling back idb stays with the caller.
func (r *DeliveryTaskRepository) InsertWithTx(ctx context.Context, idb bun.IDB, task *models.DeliveryTask) (int64, error) {
	return r.insertOn(ctx, idb, task)
}

func (r *DeliveryTaskRepository) insertOn(ctx context.Context, idb bun.IDB, task *models.DeliveryTask) (int64, error) {
	params, err := r.base.cfg.MapInsertParameters(task)
	if err != nil {
		return InsertFailed, err
	}
	var id int64
	err = r.base.run(ctx, "Insert", func(ctx context.Context) error {
		var err error
		id, err = r.insertAssigned(ctx, idb, task.DriverName, params)
		return err
	})
	if err != nil {
		return InsertFailed, r.base.handle("Insert", task.DriverName, err)
	}
	return id, nil
}

// insertAssigned runs in a transaction of its own, or in a savepoint when
// idb is already a transaction.
func (r *DeliveryTaskRepository) insertAssigned(ctx context.Context, idb bun.IDB, driverName string, params schema.Params) (int64, error) {
	taskID := InsertFailed
	err := idb.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("%w: %v", ErrTransactionPanic, p)
			}
		}()

		driverID, err := r.driverID(ctx, tx, driverName)
		if err != nil {
			return err
		}
		id, err := insertRow(ctx, tx, r.base.cfg, params)
		if err != nil {
			return err
		}
		delivery, err := r.deliveries.MapInsertParameters(&models.Delivery{
			TaskId:     id,
			DriverId:   driverID,
			AssignedAt: r.now(),
		})
		if err != nil {
			return err
		}
		if _, err := insertRow(ctx, tx, r.deliveries, delivery); err != nil {
			return err
		}
		taskID = id
		return nil
	})
	if err != nil {
		return InsertFailed, err
	}
	return taskID, nil
}

func (r *DeliveryTaskRepository) driverID(ctx context.Context, idb bun.IDB, name string) (int64, error) {
	var id int64
	err := idb.QueryRowContext(ctx, "SELECT ? FROM ? WHERE ? = ?",
		bun.Ident(r.drivers.PrimaryKey()), bun.Ident(r.drivers.TableName()),
		bun.Ident(models.DriverNameColumn), name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", ErrDriverNotFound, name)
	}
	return id, err
}

// Delete removes the task and its Delivery rows in one transaction.
func (r *DeliveryTaskRepository) Delete(ctx context.Context, key interface{}) (bool, error) {
	return r.deleteOn(ctx, r.base.db, key)
}

// DeleteWithTx is Delete on the caller's transaction, under a savepoint.
func (r *DeliveryTaskRepository) DeleteWithTx(ctx context.Context, idb bun.IDB, key interface{}) (bool, error) {
	return r.deleteOn(ctx, idb, key)
}

func (r *DeliveryTaskRepository) deleteOn(ctx context.Context, idb bun.IDB, key interface{}) (bool, error) {
	var ok bool
	err := r.base.run(ctx, "Delete", func(ctx context.Context) error {
		return idb.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := deleteRows(ctx, tx, r.deliveries.TableName(), models.DeliveryTaskColumn, key); err != nil {
				return err
			}
			var err error
			ok, err = deleteRows(ctx, tx, r.base.cfg.TableName(), r.base.cfg.PrimaryKey(), key)
			return err
		})
	})
	if err != nil {
		return false, r.base.handle("Delete", key, err)
	}
	return ok, nil
}

// AssignedDriver returns the name of the driver the task was last assigned
// to, or "" when there is none or the lookup fails.
func (r *DeliveryTaskRepository) AssignedDriver(ctx context.Context, taskID int64) (string, error) {
	var name string
	err := r.base.run(ctx, "AssignedDriver", func(ctx context.Context) error {
		err := r.base.db.QueryRowContext(ctx,
			"SELECT d.? FROM ? AS d JOIN ? AS x ON x.? = d.? WHERE x.? = ? ORDER BY x.? DESC LIMIT 1",
			bun.Ident(models.DriverNameColumn),
			bun.Ident(r.drivers.TableName()),
			bun.Ident(r.deliveries.TableName()),
			bun.Ident(models.DeliveryDriverColumn), bun.Ident(r.drivers.PrimaryKey()),
			bun.Ident(models.DeliveryTaskColumn), taskID,
			bun.Ident(r.deliveries.PrimaryKey()),
		).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			name = ""
			return nil
		}
		return err
	})
	if err != nil {
		return "", r.base.handle("AssignedDriver", taskID, err)
	}
	return name, nil
}

// Reseed resets the DeliveryTask identity counter.
func (r *DeliveryTaskRepository) Reseed(ctx context.Context, seed int64) error {
	return r.base.Reseed(ctx, seed)
}
