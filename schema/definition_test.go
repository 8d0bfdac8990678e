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

package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/tomoncle/fleetbook/types"
)

const widgetsYAML = `
tables:
  - entity: Widget
    table: Widgets
    primary_key: WidgetId
    columns:
      - {name: WidgetId, type: integer, identity: true}
      - {name: Label, type: varchar, size: 40}
      - {name: Price, type: decimal, nullable: true}
      - {name: Code, type: text, unique: true}
`

func TestLoadDefinitions(t *testing.T) {
	defs, err := LoadDefinitions(strings.NewReader(widgetsYAML))
	if err != nil {
		t.Fatalf("LoadDefinitions: %v", err)
	}
	def, err := defs.Get("Widget")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	cfg, err := FromDefinition[widget](def)
	if err != nil {
		t.Fatalf("FromDefinition: %v", err)
	}
	if cfg.TableName() != "Widgets" || cfg.PrimaryKey() != "WidgetId" {
		t.Errorf("unexpected table %s/%s", cfg.TableName(), cfg.PrimaryKey())
	}
	label, _ := cfg.Column("Label")
	if n, ok := label.Size(); !ok || n != 40 || label.StorageType() != types.StorageText {
		t.Errorf("Label column = %+v", label)
	}
	price, _ := cfg.Column("Price")
	if !price.IsNullable() || price.StorageType() != types.StorageDecimal {
		t.Errorf("Price column = %+v", price)
	}
	if _, err := defs.Get("Gadget"); !errors.Is(err, ErrTableNotRegistered) {
		t.Errorf("Get(Gadget): %v", err)
	}
}

func TestLoadDefinitionsRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown field": "tables:\n  - entity: W\n    table: W\n    colour: red\n",
		"duplicate":     "tables:\n  - {entity: W, table: A}\n  - {entity: W, table: B}\n",
		"no entity":     "tables:\n  - {table: A}\n",
	}
	for name, doc := range cases {
		if _, err := LoadDefinitions(strings.NewReader(doc)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}

	def := Definition{
		Entity: "Widget", Table: "Widgets", PrimaryKey: "WidgetId",
		Columns: []ColumnDefinition{{Name: "WidgetId", Type: "blob"}},
	}
	if _, err := FromDefinition[widget](def); !errors.Is(err, ErrInvalidColumn) {
		t.Errorf("unknown storage type: %v", err)
	}
}
