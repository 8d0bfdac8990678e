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
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/tomoncle/fleetbook/database"
	"github.com/tomoncle/fleetbook/models"
	"github.com/tomoncle/fleetbook/schema"
	"github.com/uptrace/bun"
)

// setupPostgres starts a PostgreSQL container and migrates the fleet
// tables with foreign keys.
func setupPostgres(t *testing.T, driverName string) (*bun.DB, *schema.Registry) {
	t.Helper()
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION is not set")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("fleetbook_test"),
		postgres.WithUsername("fleetbook"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to stop container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	db, err := database.Open(&database.ConnectionConfig{
		Type:             database.TypePostgres,
		Driver:           driverName,
		ConnectionString: dsn,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	reg, err := models.NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	err = database.NewMigrationManager(db, nil).RunMigrations(ctx, reg.Tables(), database.MigrateConfig{
		EnableForeignKey: true,
		ForeignKeys:      models.ForeignKeys(),
	})
	if err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	return db, reg
}

func TestPostgresRepository(t *testing.T) {
	for _, drv := range []string{"pq", "pgx"} {
		t.Run(drv, func(t *testing.T) {
			ctx := context.Background()
			db, reg := setupPostgres(t, drv)
			drivers := NewRepository(db, schema.MustResolve[models.Driver](reg), testPipeline())

			for i := 1; i <= 25; i++ {
				if id, err := drivers.Insert(ctx, driver(i)); id <= 0 || err != nil {
					t.Fatalf("Insert %d = %d, %v", i, id, err)
				}
			}
			if n, _ := drivers.GetCount(ctx); n != 25 {
				t.Fatalf("GetCount = %d", n)
			}
			rs, _ := drivers.GetPage(ctx, 2)
			if rs == nil || rs.Len() != 5 {
				t.Fatalf("page 2 = %v", rs)
			}
			if n, _ := drivers.GetFieldCount(ctx, models.DriverNameColumn, "driver-007"); n != 1 {
				t.Errorf("GetFieldCount = %d", n)
			}
			if id, _ := drivers.Insert(ctx, driver(7)); id != InsertFailed {
				t.Errorf("duplicate insert = %d, want %d", id, InsertFailed)
			}

			if err := drivers.(Reseeder).Reseed(ctx, 500); err != nil {
				t.Fatalf("Reseed: %v", err)
			}
			if id, _ := drivers.Insert(ctx, driver(26)); id != 501 {
				t.Errorf("Insert after reseed = %d, want 501", id)
			}

			tasks, err := NewDeliveryTaskRepository(db, reg, testPipeline())
			if err != nil {
				t.Fatal(err)
			}
			id, err := tasks.Insert(ctx, task("driver-003"))
			if id <= 0 || err != nil {
				t.Fatalf("task Insert = %d, %v", id, err)
			}
			if name, _ := tasks.AssignedDriver(ctx, id); name != "driver-003" {
				t.Errorf("AssignedDriver = %q", name)
			}
			if id, _ := tasks.Insert(ctx, task("nobody")); id != InsertFailed {
				t.Errorf("insert with unknown driver = %d", id)
			}
			if n, _ := tasks.GetCount(ctx); n != 1 {
				t.Errorf("task count = %d, want 1", n)
			}
			if ok, _ := tasks.Delete(ctx, id); !ok {
				t.Error("Delete returned false")
			}
		})
	}
}
