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
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/tomoncle/fleetbook/database"
	"github.com/tomoncle/fleetbook/models"
	"github.com/tomoncle/fleetbook/resilience"
	"github.com/tomoncle/fleetbook/schema"
	"github.com/tomoncle/fleetbook/types"
	"github.com/uptrace/bun"
)

var hiredAt = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func testPipeline() *resilience.Pipeline {
	return resilience.NewPipeline(resilience.Policy{
		Name:            resilience.DatabasePipeline,
		MaxAttempts:     2,
		InitialInterval: time.Millisecond,
		ShouldRetry:     database.IsTransient,
	}, nil, nil)
}

type fixture struct {
	db      *bun.DB
	reg     *schema.Registry
	drivers Repository[models.Driver]
}

func setup(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenSQLiteMemory(name)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	reg, err := models.NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	if err := database.NewMigrationManager(db, nil).RunMigrations(context.Background(), reg.Tables(), database.MigrateConfig{}); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	return &fixture{
		db:      db,
		reg:     reg,
		drivers: NewRepository(db, schema.MustResolve[models.Driver](reg), testPipeline()),
	}
}

func driver(i int) *models.Driver {
	return &models.Driver{
		Name:          fmt.Sprintf("driver-%03d", i),
		LicenseNumber: fmt.Sprintf("LIC-%03d", i),
		Active:        i%2 == 0,
		HiredAt:       hiredAt,
	}
}

func (f *fixture) seedDrivers(t *testing.T, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := 1; i <= n; i++ {
		id, err := f.drivers.Insert(context.Background(), driver(i))
		if err != nil || id == InsertFailed {
			t.Fatalf("Insert %d: id=%d err=%v", i, id, err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestPagesCoverEveryRowOnce(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.seedDrivers(t, 105)

	count, err := f.drivers.GetCount(ctx)
	if err != nil || count != 105 {
		t.Fatalf("GetCount = %d, %v", count, err)
	}
	pages := types.TotalPages(count, types.PageSize)
	if pages != 6 {
		t.Fatalf("TotalPages = %d, want 6", pages)
	}

	seen := make(map[interface{}]bool)
	var last int64
	for p := 1; p <= pages; p++ {
		rs, err := f.drivers.GetPage(ctx, p)
		if err != nil || rs == nil {
			t.Fatalf("GetPage(%d) = %v, %v", p, rs, err)
		}
		want := types.PageSize
		if p == pages {
			want = 5
		}
		if rs.Len() != want {
			t.Errorf("page %d has %d rows, want %d", p, rs.Len(), want)
		}
		for _, k := range rs.Keys() {
			id := k.(int64)
			if seen[id] {
				t.Errorf("key %d returned twice", id)
			}
			if id <= last {
				t.Errorf("key %d out of order after %d", id, last)
			}
			seen[id] = true
			last = id
		}
	}
	if len(seen) != 105 {
		t.Errorf("saw %d keys, want 105", len(seen))
	}

	rs, err := f.drivers.GetPage(ctx, pages+1)
	if err != nil || rs == nil || rs.Len() != 0 {
		t.Errorf("page past the end should be empty, got %v, %v", rs, err)
	}
}

func TestGetPageIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.seedDrivers(t, 30)

	a, _ := f.drivers.GetPage(ctx, 2)
	b, _ := f.drivers.GetPage(ctx, 2)
	if a.Len() != b.Len() {
		t.Fatalf("lengths differ: %d vs %d", a.Len(), b.Len())
	}
	ka, kb := a.Keys(), b.Keys()
	for i := range ka {
		if ka[i] != kb[i] {
			t.Fatalf("key %d differs: %v vs %v", i, ka[i], kb[i])
		}
	}
}

func TestInsertReadUpdateDelete(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	d := driver(1)
	d.Phone = "555-0101"
	id, err := f.drivers.Insert(ctx, d)
	if err != nil || id <= 0 {
		t.Fatalf("Insert = %d, %v", id, err)
	}

	rs, err := f.drivers.GetByKey(ctx, id)
	if err != nil || rs.Len() != 1 {
		t.Fatalf("GetByKey = %v, %v", rs, err)
	}
	if _, ok := rs.Find(id); !ok {
		t.Fatal("Find by inserted key failed")
	}

	got, err := f.drivers.GetEntity(ctx, id)
	if err != nil || got == nil {
		t.Fatalf("GetEntity = %v, %v", got, err)
	}
	if got.DriverId != id || got.Name != d.Name || got.Phone != d.Phone || got.Active != d.Active || !got.HiredAt.Equal(d.HiredAt) {
		t.Errorf("round trip = %+v, want %+v", got, d)
	}

	got.Phone = ""
	got.Active = true
	ok, err := f.drivers.Update(ctx, got)
	if err != nil || !ok {
		t.Fatalf("Update = %v, %v", ok, err)
	}
	again, _ := f.drivers.GetEntity(ctx, id)
	if again.Phone != "" || !again.Active {
		t.Errorf("after update = %+v", again)
	}

	ok, err = f.drivers.Delete(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	rs, err = f.drivers.GetByKey(ctx, id)
	if err != nil || rs == nil || rs.Len() != 0 {
		t.Errorf("GetByKey after delete = %v, %v", rs, err)
	}
	if e, err := f.drivers.GetEntity(ctx, id); e != nil || err != nil {
		t.Errorf("GetEntity after delete = %v, %v", e, err)
	}
}

func TestZeroRowWritesReportFalse(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	missing := driver(9)
	missing.DriverId = 9999
	if ok, err := f.drivers.Update(ctx, missing); ok || err != nil {
		t.Errorf("Update missing = %v, %v", ok, err)
	}
	if ok, err := f.drivers.Delete(ctx, int64(9999)); ok || err != nil {
		t.Errorf("Delete missing = %v, %v", ok, err)
	}
}

func TestGetFieldCount(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.seedDrivers(t, 3)

	tests := []struct {
		field string
		value interface{}
		want  int
	}{
		{models.DriverNameColumn, "driver-002", 1},
		{models.DriverNameColumn, "nobody", 0},
		{"Phone", nil, 3},
		{"Active", true, 1},
	}
	for _, tt := range tests {
		got, err := f.drivers.GetFieldCount(ctx, tt.field, tt.value)
		if err != nil || got != tt.want {
			t.Errorf("GetFieldCount(%s, %v) = %d, %v; want %d", tt.field, tt.value, got, err, tt.want)
		}
	}

	if _, err := f.drivers.GetFieldCount(ctx, "Nickname", "x"); !errors.Is(err, schema.ErrUnknownColumn) {
		t.Errorf("unknown field error = %v", err)
	}
}

func TestFailuresBecomeSentinels(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.seedDrivers(t, 2)
	m, err := NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	repo := NewRepository(f.db, schema.MustResolve[models.Driver](f.reg), testPipeline(), WithMetrics(m))
	_ = f.db.Close()

	if n, err := repo.GetCount(ctx); n != 0 || err != nil {
		t.Errorf("GetCount = %d, %v", n, err)
	}
	if n, err := repo.GetFieldCount(ctx, models.DriverNameColumn, "driver-001"); n != FieldCountOnError || err != nil {
		t.Errorf("GetFieldCount = %d, %v; want fail-closed %d", n, err, FieldCountOnError)
	}
	if rs, err := repo.GetPage(ctx, 1); rs != nil || err != nil {
		t.Errorf("GetPage = %v, %v", rs, err)
	}
	if rs, err := repo.GetAll(ctx); rs != nil || err != nil {
		t.Errorf("GetAll = %v, %v", rs, err)
	}
	if rs, err := repo.GetByKey(ctx, int64(1)); rs != nil || err != nil {
		t.Errorf("GetByKey = %v, %v", rs, err)
	}
	if id, err := repo.Insert(ctx, driver(3)); id != InsertFailed || err != nil {
		t.Errorf("Insert = %d, %v", id, err)
	}
	if ok, err := repo.Delete(ctx, int64(1)); ok || err != nil {
		t.Errorf("Delete = %v, %v", ok, err)
	}
	if got := testutil.CollectAndCount(m.failures); got != 7 {
		t.Errorf("failure series = %d, want 7", got)
	}
}

type ghost struct{}

func TestSchemaDriftIsReturned(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.seedDrivers(t, 1)

	cfg := schema.NewTableConfig[ghost](models.DriverTableName, "Badge").
		AddColumn(schema.NewColumn("Badge", types.StorageInteger, schema.Identity()))
	repo := NewRepository(f.db, cfg, testPipeline())

	if _, err := repo.GetAll(ctx); !errors.Is(err, ErrSchemaDrift) {
		t.Errorf("GetAll error = %v, want ErrSchemaDrift", err)
	}
	if !schema.IsConfiguration(ErrSchemaDrift) {
		t.Error("schema drift should be a configuration error")
	}
}

func TestUnsetHookIsReturned(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	cfg := schema.NewTableConfig[models.Driver](models.DriverTableName, models.DriverKeyColumn).
		AddColumn(schema.NewColumn(models.DriverKeyColumn, types.StorageInteger, schema.Identity()))
	repo := NewRepository(f.db, cfg, testPipeline())

	if id, err := repo.Insert(ctx, driver(1)); id != InsertFailed || !errors.Is(err, schema.ErrHookNotConfigured) {
		t.Errorf("Insert = %d, %v", id, err)
	}
	if ok, err := repo.Update(ctx, driver(1)); ok || !errors.Is(err, schema.ErrHookNotConfigured) {
		t.Errorf("Update = %v, %v", ok, err)
	}
}

func TestCallerOwnedTransaction(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	id, err := f.drivers.InsertWithTx(ctx, tx, driver(1))
	if err != nil || id <= 0 {
		t.Fatalf("InsertWithTx = %d, %v", id, err)
	}
	rs, err := f.drivers.GetByKeyWithTx(ctx, tx, id)
	if err != nil || rs.Len() != 1 {
		t.Fatalf("GetByKeyWithTx = %v, %v", rs, err)
	}
	d := driver(1)
	d.DriverId = id
	d.Phone = "555-0199"
	if ok, err := f.drivers.UpdateWithTx(ctx, tx, d); !ok || err != nil {
		t.Fatalf("UpdateWithTx = %v, %v", ok, err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatal(err)
	}

	if n, _ := f.drivers.GetCount(ctx); n != 0 {
		t.Errorf("rolled back insert is visible, count = %d", n)
	}

	tx, err = f.db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	id, _ = f.drivers.InsertWithTx(ctx, tx, driver(2))
	if ok, err := f.drivers.DeleteWithTx(ctx, tx, id); !ok || err != nil {
		t.Fatalf("DeleteWithTx = %v, %v", ok, err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	if n, _ := f.drivers.GetCount(ctx); n != 0 {
		t.Errorf("count = %d, want 0", n)
	}
}

func TestToEntitiesAndPatchRow(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.seedDrivers(t, 3)

	rs, err := f.drivers.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	entities, err := f.drivers.ToEntities(rs)
	if err != nil || len(entities) != 3 {
		t.Fatalf("ToEntities = %d, %v", len(entities), err)
	}

	e := entities[1]
	e.Name = "renamed"
	ok, err := f.drivers.PatchRow(rs, e)
	if err != nil || !ok {
		t.Fatalf("PatchRow = %v, %v", ok, err)
	}
	row, _ := rs.Find(e.DriverId)
	if name, _ := row.String(models.DriverNameColumn); name != "renamed" {
		t.Errorf("patched name = %q", name)
	}

	e.DriverId = 4242
	if ok, _ := f.drivers.PatchRow(rs, e); ok {
		t.Error("PatchRow should miss an absent key")
	}
}

func TestReseed(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.seedDrivers(t, 3)

	reseeder, ok := f.drivers.(Reseeder)
	if !ok {
		t.Fatal("repository does not implement Reseeder")
	}
	if err := reseeder.Reseed(ctx, 100); err != nil {
		t.Fatalf("Reseed: %v", err)
	}
	id, err := f.drivers.Insert(ctx, driver(4))
	if err != nil || id != 101 {
		t.Errorf("Insert after reseed = %d, %v; want 101", id, err)
	}
}

func TestCancelledContextGivesSentinel(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if n, err := f.drivers.GetCount(ctx); n != 0 || err != nil {
		t.Errorf("GetCount = %d, %v", n, err)
	}
}

type ticket struct{ TicketId int64 }

func TestKeyOnlyTable(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	if _, err := f.db.ExecContext(ctx, `CREATE TABLE "Tickets" ("TicketId" INTEGER PRIMARY KEY AUTOINCREMENT)`); err != nil {
		t.Fatal(err)
	}
	cfg := schema.NewTableConfig[ticket]("Tickets", "TicketId").
		AddColumn(schema.NewColumn("TicketId", types.StorageInteger, schema.Identity())).
		OnInsert(func(*ticket) schema.Params { return schema.Params{} }).
		OnUpdate(func(e *ticket) schema.Params { return schema.Params{"TicketId": e.TicketId} })
	repo := NewRepository(f.db, cfg, testPipeline())

	for want := int64(1); want <= 2; want++ {
		if id, err := repo.Insert(ctx, &ticket{}); id != want || err != nil {
			t.Fatalf("Insert = %d, %v; want %d", id, err, want)
		}
	}
	if ok, err := repo.Update(ctx, &ticket{TicketId: 1}); ok || err != nil {
		t.Errorf("Update with nothing to set = %v, %v", ok, err)
	}
	if n, _ := repo.GetCount(ctx); n != 2 {
		t.Errorf("count = %d", n)
	}
}
