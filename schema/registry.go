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
	"fmt"
	"reflect"
	"sync"
)

type registration struct {
	table  Table
	freeze func()
}

// RegistryBuilder collects table configurations during startup.
type RegistryBuilder struct {
	mu      sync.Mutex
	byType  map[reflect.Type]registration
	order   []reflect.Type
	byTable map[string]reflect.Type
	err     error
}

// NewRegistryBuilder returns an empty builder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{
		byType:  make(map[reflect.Type]registration),
		byTable: make(map[string]reflect.Type),
	}
}

func typeKey[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Register adds the configuration of entity type T. It validates the
// config and rejects a second registration for the same type or table.
func Register[T any](b *RegistryBuilder, cfg *TableConfig[T]) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := func() error {
		if cfg == nil {
			return fmt.Errorf("%w: nil table config for %v", ErrConfiguration, typeKey[T]())
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		key := typeKey[T]()
		if _, ok := b.byType[key]; ok {
			return fmt.Errorf("%w: entity type %v", ErrDuplicateTable, key)
		}
		if other, ok := b.byTable[cfg.TableName()]; ok {
			return fmt.Errorf("%w: %s is bound to %v", ErrDuplicateTable, cfg.TableName(), other)
		}
		b.byType[key] = registration{table: cfg, freeze: cfg.freeze}
		b.byTable[cfg.TableName()] = key
		b.order = append(b.order, key)
		return nil
	}()
	if err != nil && b.err == nil {
		b.err = err
	}
	return err
}

// Build freezes every registered configuration and returns the registry.
// The first registration error, if any, is returned instead.
func (b *RegistryBuilder) Build() (*Registry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	r := &Registry{
		byType: make(map[reflect.Type]Table, len(b.byType)),
		byName: make(map[string]Table, len(b.byType)),
		order:  make([]Table, 0, len(b.order)),
	}
	for _, key := range b.order {
		reg := b.byType[key]
		reg.freeze()
		r.byType[key] = reg.table
		r.byName[reg.table.TableName()] = reg.table
		r.order = append(r.order, reg.table)
	}
	return r, nil
}

// Registry maps entity types to their table configurations. It has no
// mutators; share it freely.
type Registry struct {
	byType map[reflect.Type]Table
	byName map[string]Table
	order  []Table
}

// Resolve returns the configuration registered for entity type T.
func Resolve[T any](r *Registry) (*TableConfig[T], error) {
	key := typeKey[T]()
	if r == nil {
		return nil, fmt.Errorf("%w: %v (nil registry)", ErrTableNotRegistered, key)
	}
	t, ok := r.byType[key]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrTableNotRegistered, key)
	}
	cfg, ok := t.(*TableConfig[T])
	if !ok {
		return nil, fmt.Errorf("%w: %v is bound to %T", ErrTableNotRegistered, key, t)
	}
	return cfg, nil
}

// MustResolve is Resolve for startup code that cannot continue without
// the configuration.
func MustResolve[T any](r *Registry) *TableConfig[T] {
	cfg, err := Resolve[T](r)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Tables returns every table in registration order.
func (r *Registry) Tables() []Table {
	out := make([]Table, len(r.order))
	copy(out, r.order)
	return out
}

// Lookup finds a table by its name.
func (r *Registry) Lookup(tableName string) (Table, bool) {
	t, ok := r.byName[tableName]
	return t, ok
}
