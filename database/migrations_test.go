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

package database

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/tomoncle/fleetbook/schema"
	"github.com/tomoncle/fleetbook/types"
	"github.com/uptrace/bun"
)

type depot struct{}

type bay struct{}

func testTables(t *testing.T) []schema.Table {
	t.Helper()
	b := schema.NewRegistryBuilder()
	_ = schema.Register(b, schema.NewTableConfig[depot]("Depots", "DepotId").
		AddColumn(schema.NewColumn("DepotId", types.StorageInteger, schema.Identity())).
		AddColumn(schema.NewColumn("Code", types.StorageText, schema.Unique(), schema.Size(10))).
		AddColumn(schema.NewColumn("Capacity", types.StorageDecimal)).
		AddColumn(schema.NewColumn("OpenedAt", types.StorageDateTime, schema.Nullable())))
	_ = schema.Register(b, schema.NewTableConfig[bay]("Bays", "BayId").
		AddColumn(schema.NewColumn("BayId", types.StorageInteger, schema.Identity())).
		AddColumn(schema.NewColumn("DepotId", types.StorageInteger)).
		AddColumn(schema.NewColumn("Covered", types.StorageBoolean)))
	reg, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return reg.Tables()
}

func openTestDB(t *testing.T) *bun.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := OpenSQLiteMemory(name)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCreateTableSQL(t *testing.T) {
	db := openTestDB(t)
	stmt, err := CreateTableSQL(db, testTables(t)[0])
	if err != nil {
		t.Fatal(err)
	}
	want := `CREATE TABLE IF NOT EXISTS "Depots" ("DepotId" INTEGER PRIMARY KEY AUTOINCREMENT, "Code" VARCHAR(10) NOT NULL UNIQUE, "Capacity" DECIMAL(18,4) NOT NULL, "OpenedAt" DATETIME)`
	if stmt != want {
		t.Fatalf("got  %s\nwant %s", stmt, want)
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	mm := NewMigrationManager(db, nil)
	mm.SetSeedFS(fstest.MapFS{
		"common/010_depots.sql":          {Data: []byte("-- depots\nINSERT INTO \"Depots\" (\"Code\", \"Capacity\")\nVALUES ('NORTH', 12.5);\nINSERT INTO \"Depots\" (\"Code\", \"Capacity\") VALUES ('SOUTH', 4);\n")},
		"environments/test/020_bays.sql": {Data: []byte("INSERT INTO \"Bays\" (\"DepotId\", \"Covered\") VALUES (1, TRUE);")},
		"environments/prod/020_bays.sql": {Data: []byte("INSERT INTO \"Bays\" (\"DepotId\", \"Covered\") VALUES (2, FALSE);")},
	})
	opts := MigrateConfig{SeedOnMigration: true, Environment: "test", EnableForeignKey: true,
		ForeignKeys: []ForeignKeyConstraint{{Table: "Bays", Column: "DepotId", ReferenceTable: "Depots", ReferenceColumn: "DepotId"}}}

	tables := testTables(t)
	for i := 0; i < 2; i++ {
		if err := mm.RunMigrations(ctx, tables, opts); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	applied, err := mm.GetAppliedMigrations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(applied) != 4 {
		t.Fatalf("expected 4 applied migrations, got %+v", applied)
	}

	var depots, bays int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM "Depots"`).Scan(&depots); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM "Bays"`).Scan(&bays); err != nil {
		t.Fatal(err)
	}
	if depots != 2 || bays != 1 {
		t.Fatalf("seed ran more than once or not at all: depots=%d bays=%d", depots, bays)
	}

	if err := mm.RollbackMigration(ctx, "001_create_bays"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, `SELECT 1 FROM "Bays"`); err == nil {
		t.Fatal("expected Bays to be dropped")
	}
	if err := mm.RollbackMigration(ctx, "002_add_foreign_keys"); err == nil {
		t.Fatal("foreign key step has no down migration")
	}
}

func TestForeignKeyValidation(t *testing.T) {
	fkm := NewForeignKeyManager(nil, []ForeignKeyConstraint{
		{Table: "Bays", Column: "DepotId", ReferenceTable: "Depots", ReferenceColumn: "DepotId"},
		{Table: "Bays", Column: "Missing", ReferenceTable: "Nowhere", ReferenceColumn: "Id"},
	})
	errs := fkm.ValidateConstraints(testTables(t))
	if len(errs) != 2 {
		t.Fatalf("expected 2 validation errors, got %v", errs)
	}
}

func TestSplitSQLStatements(t *testing.T) {
	got := splitSQLStatements("-- header\nINSERT INTO a\nVALUES (1);\n\nDELETE FROM b;\nUPDATE c SET x = 1")
	want := []string{"INSERT INTO a VALUES (1)", "DELETE FROM b", "UPDATE c SET x = 1"}
	if len(got) != len(want) {
		t.Fatalf("got %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("statement %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestSeedFileOrder(t *testing.T) {
	s := NewSQLSeeder(fstest.MapFS{
		"common/020_b.sql":         {Data: []byte("SELECT 1;")},
		"common/003_a.sql":         {Data: []byte("SELECT 1;")},
		"common/readme.txt":        {Data: []byte("ignored")},
		"environments/dev/1_c.sql": {Data: []byte("SELECT 1;")},
	}, "dev", nil)
	files, err := s.GetSQLFiles()
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	if strings.Join(names, ",") != "003_a.sql,020_b.sql,1_c.sql" {
		t.Fatalf("unexpected order %v", names)
	}
}
