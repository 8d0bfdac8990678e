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
	"testing"
	"time"

	"github.com/tomoncle/fleetbook/models"
	"github.com/tomoncle/fleetbook/resilience"
	"github.com/tomoncle/fleetbook/schema"
)

type deliveryFixture struct {
	*fixture
	tasks      *DeliveryTaskRepository
	deliveries Repository[models.Delivery]
}

func setupDelivery(t *testing.T) *deliveryFixture {
	t.Helper()
	f := setup(t)
	tasks, err := NewDeliveryTaskRepository(f.db, f.reg, testPipeline())
	if err != nil {
		t.Fatalf("NewDeliveryTaskRepository: %v", err)
	}
	f.seedDrivers(t, 2)
	return &deliveryFixture{
		fixture:    f,
		tasks:      tasks,
		deliveries: NewRepository(f.db, schema.MustResolve[models.Delivery](f.reg), testPipeline()),
	}
}

func task(driverName string) *models.DeliveryTask {
	return &models.DeliveryTask{
		Title:          "Pallets",
		PickupAddress:  "1 Dock Rd",
		DropoffAddress: "9 High St",
		WeightKg:       250.5,
		ScheduledAt:    time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC),
		DriverName:     driverName,
	}
}

func (f *deliveryFixture) counts(t *testing.T) (tasks, deliveries int) {
	t.Helper()
	ctx := context.Background()
	tasks, _ = f.tasks.GetCount(ctx)
	deliveries, _ = f.deliveries.GetCount(ctx)
	return tasks, deliveries
}

func TestDeliveryInsertWritesBothRows(t *testing.T) {
	ctx := context.Background()
	f := setupDelivery(t)

	id, err := f.tasks.Insert(ctx, task("driver-002"))
	if err != nil || id <= 0 {
		t.Fatalf("Insert = %d, %v", id, err)
	}
	if tasks, deliveries := f.counts(t); tasks != 1 || deliveries != 1 {
		t.Fatalf("counts = %d tasks, %d deliveries", tasks, deliveries)
	}

	name, err := f.tasks.AssignedDriver(ctx, id)
	if err != nil || name != "driver-002" {
		t.Errorf("AssignedDriver = %q, %v", name, err)
	}

	got, err := f.tasks.GetEntity(ctx, id)
	if err != nil || got == nil {
		t.Fatalf("GetEntity = %v, %v", got, err)
	}
	if got.Status != models.StatusPending || got.WeightKg != 250.5 {
		t.Errorf("stored task = %+v", got)
	}

	rs, _ := f.deliveries.GetAll(ctx)
	links, err := f.deliveries.ToEntities(rs)
	if err != nil || len(links) != 1 {
		t.Fatalf("deliveries = %v, %v", links, err)
	}
	if links[0].TaskId != id || links[0].AssignedAt.IsZero() {
		t.Errorf("delivery = %+v", links[0])
	}
}

func TestDeliveryInsertIsAtomic(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, f *deliveryFixture)
		driver  string
	}{
		{
			name:   "unknown driver",
			driver: "nobody",
		},
		{
			name:   "delivery insert fails",
			driver: "driver-001",
			prepare: func(t *testing.T, f *deliveryFixture) {
				if _, err := f.db.ExecContext(context.Background(), `DROP TABLE "Delivery"`); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name:   "panic inside the transaction",
			driver: "driver-001",
			prepare: func(t *testing.T, f *deliveryFixture) {
				f.tasks.now = func() time.Time { panic("clock failure") }
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := setupDelivery(t)
			if tt.prepare != nil {
				tt.prepare(t, f)
			}

			id, err := f.tasks.Insert(ctx, task(tt.driver))
			if id != InsertFailed || err != nil {
				t.Fatalf("Insert = %d, %v; want %d, nil", id, err, InsertFailed)
			}
			if n, _ := f.tasks.GetCount(ctx); n != 0 {
				t.Errorf("task row survived the rollback, count = %d", n)
			}
		})
	}
}

func TestDeliveryAtomicRollbackKeepsDeliveries(t *testing.T) {
	ctx := context.Background()
	f := setupDelivery(t)

	if id, _ := f.tasks.Insert(ctx, task("driver-001")); id <= 0 {
		t.Fatalf("first insert failed: %d", id)
	}
	if id, _ := f.tasks.Insert(ctx, task("nobody")); id != InsertFailed {
		t.Fatalf("second insert = %d, want %d", id, InsertFailed)
	}
	if tasks, deliveries := f.counts(t); tasks != 1 || deliveries != 1 {
		t.Errorf("counts = %d tasks, %d deliveries; want 1, 1", tasks, deliveries)
	}
}

func TestDeliveryDeleteRemovesAssignment(t *testing.T) {
	ctx := context.Background()
	f := setupDelivery(t)

	id, _ := f.tasks.Insert(ctx, task("driver-001"))
	ok, err := f.tasks.Delete(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	if tasks, deliveries := f.counts(t); tasks != 0 || deliveries != 0 {
		t.Errorf("counts = %d tasks, %d deliveries", tasks, deliveries)
	}
	if name, err := f.tasks.AssignedDriver(ctx, id); name != "" || err != nil {
		t.Errorf("AssignedDriver after delete = %q, %v", name, err)
	}
	if ok, err := f.tasks.Delete(ctx, id); ok || err != nil {
		t.Errorf("second Delete = %v, %v", ok, err)
	}
}

func TestDeliveryInsertWithTxKeepsBothRowsTogether(t *testing.T) {
	ctx := context.Background()
	f := setupDelivery(t)

	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	first, err := f.tasks.InsertWithTx(ctx, tx, task("driver-001"))
	if err != nil || first <= 0 {
		_ = tx.Rollback()
		t.Fatalf("InsertWithTx = %d, %v", first, err)
	}
	if id, err := f.tasks.InsertWithTx(ctx, tx, task("nobody")); id != InsertFailed || err != nil {
		_ = tx.Rollback()
		t.Fatalf("InsertWithTx(unknown driver) = %d, %v; want %d, nil", id, err, InsertFailed)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	if tasks, deliveries := f.counts(t); tasks != 1 || deliveries != 1 {
		t.Errorf("counts = %d tasks, %d deliveries; want 1, 1", tasks, deliveries)
	}
	if name, _ := f.tasks.AssignedDriver(ctx, first); name != "driver-001" {
		t.Errorf("AssignedDriver = %q", name)
	}
}

func TestDeliveryInsertWithTxCallerRollback(t *testing.T) {
	ctx := context.Background()
	f := setupDelivery(t)

	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := f.tasks.InsertWithTx(ctx, tx, task("driver-002"))
	if id <= 0 {
		_ = tx.Rollback()
		t.Fatalf("InsertWithTx = %d", id)
	}
	if ok, _ := f.tasks.DeleteWithTx(ctx, tx, id); !ok {
		_ = tx.Rollback()
		t.Fatal("DeleteWithTx reported nothing deleted")
	}
	if err := tx.Rollback(); err != nil {
		t.Fatal(err)
	}
	if tasks, deliveries := f.counts(t); tasks != 0 || deliveries != 0 {
		t.Errorf("counts = %d tasks, %d deliveries", tasks, deliveries)
	}
}

func TestGenericConstructorsKeepDeliveryTasksAtomic(t *testing.T) {
	ctx := context.Background()
	f := setupDelivery(t)

	pipelines, err := resilience.NewRegistry(nil, nil, resilience.Policy{
		Name:            resilience.DatabasePipeline,
		MaxAttempts:     1,
		InitialInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	repo, err := NewFromRegistry[models.DeliveryTask](f.db, f.reg, pipelines)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := repo.(*DeliveryTaskRepository); !ok {
		t.Fatalf("NewFromRegistry returned %T", repo)
	}
	if id, _ := repo.Insert(ctx, task("nobody")); id != InsertFailed {
		t.Errorf("Insert(unknown driver) = %d", id)
	}
	if tasks, deliveries := f.counts(t); tasks != 0 || deliveries != 0 {
		t.Errorf("counts = %d tasks, %d deliveries", tasks, deliveries)
	}

	defer func() {
		if recover() == nil {
			t.Error("NewRepository accepted the DeliveryTask table")
		}
	}()
	NewRepository(f.db, schema.MustResolve[models.DeliveryTask](f.reg), testPipeline())
}
