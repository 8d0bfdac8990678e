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
	"fmt"
	"time"

	"github.com/tomoncle/fleetbook/database"
	"github.com/tomoncle/fleetbook/models"
	"github.com/tomoncle/fleetbook/resilience"
	"github.com/tomoncle/fleetbook/schema"
	"github.com/tomoncle/fleetbook/types"
	"github.com/uptrace/bun"
)

type baseRepositoryImpl[T any] struct {
	db       *bun.DB
	cfg      *schema.TableConfig[T]
	pipeline *resilience.Pipeline
	logger   database.Logger
	metrics  *Metrics
}

// Option configures a repository.
type Option func(*options)

type options struct {
	logger  database.Logger
	metrics *Metrics
}

// WithLogger replaces the REPOSITORY logger.
func WithLogger(logger database.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records call durations and failures.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// NewRepository returns a repository for the table described by cfg. SQL
// runs through pipeline; a nil pipeline gets the default database policy
// without retry events. It panics for models.DeliveryTask, whose writes
// need the registry; see NewDeliveryTaskRepository.
func NewRepository[T any](db *bun.DB, cfg *schema.TableConfig[T], pipeline *resilience.Pipeline, opts ...Option) Repository[T] {
	if isDeliveryTask[T]() {
		panic("repository: DeliveryTask writes span two tables, use NewDeliveryTaskRepository")
	}
	return newBaseRepository(db, cfg, pipeline, opts...)
}

// NewFromRegistry resolves the table config of T and binds it to the
// database pipeline of pipelines. models.DeliveryTask gets a
// DeliveryTaskRepository.
func NewFromRegistry[T any](db *bun.DB, reg *schema.Registry, pipelines *resilience.Registry, opts ...Option) (Repository[T], error) {
	cfg, err := schema.Resolve[T](reg)
	if err != nil {
		return nil, err
	}
	p, err := pipelines.Get(resilience.DatabasePipeline)
	if err != nil {
		return nil, err
	}
	if isDeliveryTask[T]() {
		tasks, err := NewDeliveryTaskRepository(db, reg, p, opts...)
		if err != nil {
			return nil, err
		}
		return any(tasks).(Repository[T]), nil
	}
	return newBaseRepository(db, cfg, p, opts...), nil
}

func isDeliveryTask[T any]() bool {
	_, ok := any((*T)(nil)).(*models.DeliveryTask)
	return ok
}

func newBaseRepository[T any](db *bun.DB, cfg *schema.TableConfig[T], pipeline *resilience.Pipeline, opts ...Option) *baseRepositoryImpl[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = database.NewNamedLogger("REPOSITORY")
	}
	if pipeline == nil {
		policy := resilience.DefaultPolicy(resilience.DatabasePipeline)
		policy.ShouldRetry = database.IsTransient
		pipeline = resilience.NewPipeline(policy, nil, o.logger)
	}
	return &baseRepositoryImpl[T]{
		db:       db,
		cfg:      cfg,
		pipeline: pipeline,
		logger:   o.logger,
		metrics:  o.metrics,
	}
}

func (r *baseRepositoryImpl[T]) TableConfig() *schema.TableConfig[T] { return r.cfg }

func (r *baseRepositoryImpl[T]) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := r.pipeline.Execute(ctx, r.cfg.TableName()+"."+op, fn)
	r.metrics.observe(r.cfg.TableName(), op, time.Since(start))
	return err
}

// handle returns configuration errors to the caller. Everything else is
// logged with its context and swallowed; the caller returns its sentinel.
func (r *baseRepositoryImpl[T]) handle(op string, key interface{}, err error) error {
	if schema.IsConfiguration(err) {
		return err
	}
	opErr := &OperationError{Op: op, Table: r.cfg.TableName(), Key: key, Err: err}
	r.metrics.failed(opErr.Table, op, opErr.Kind())
	r.logger.Error("Database operation failed",
		"op", op,
		"table", opErr.Table,
		"key", key,
		"kind", opErr.Kind(),
		"error", err,
	)
	return nil
}

func (r *baseRepositoryImpl[T]) GetPage(ctx context.Context, page int) (*types.ResultSet, error) {
	var rs *types.ResultSet
	err := r.run(ctx, "GetPage", func(ctx context.Context) error {
		var err error
		rs, err = queryResult(ctx, r.db, r.cfg.PrimaryKey(),
			"SELECT * FROM ? ORDER BY ? ASC LIMIT ? OFFSET ?",
			bun.Ident(r.cfg.TableName()), bun.Ident(r.cfg.PrimaryKey()),
			types.PageSize, types.Offset(page, types.PageSize))
		return err
	})
	if err != nil {
		return nil, r.handle("GetPage", page, err)
	}
	return rs, nil
}

func (r *baseRepositoryImpl[T]) GetAll(ctx context.Context) (*types.ResultSet, error) {
	var rs *types.ResultSet
	err := r.run(ctx, "GetAll", func(ctx context.Context) error {
		var err error
		rs, err = queryResult(ctx, r.db, r.cfg.PrimaryKey(),
			"SELECT * FROM ?", bun.Ident(r.cfg.TableName()))
		return err
	})
	if err != nil {
		return nil, r.handle("GetAll", nil, err)
	}
	return rs, nil
}

func (r *baseRepositoryImpl[T]) GetCount(ctx context.Context) (int, error) {
	var n int
	err := r.run(ctx, "GetCount", func(ctx context.Context) error {
		var err error
		n, err = countRows(ctx, r.db, "SELECT count(*) FROM ?", bun.Ident(r.cfg.TableName()))
		return err
	})
	if err != nil {
		return 0, r.handle("GetCount", nil, err)
	}
	return n, nil
}

// GetByKey reads one row on a private connection that is released before
// returning. A missing key gives an empty result.
func (r *baseRepositoryImpl[T]) GetByKey(ctx context.Context, key interface{}) (*types.ResultSet, error) {
	var rs *types.ResultSet
	err := r.run(ctx, "GetByKey", func(ctx context.Context) error {
		conn, err := r.db.Conn(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()
		rs, err = r.selectByKey(ctx, &conn, key)
		return err
	})
	if err != nil {
		return nil, r.handle("GetByKey", key, err)
	}
	return rs, nil
}

// GetByKeyWithTx reads one row on idb. The connection or transaction
// stays open.
func (r *baseRepositoryImpl[T]) GetByKeyWithTx(ctx context.Context, idb bun.IDB, key interface{}) (*types.ResultSet, error) {
	var rs *types.ResultSet
	err := r.run(ctx, "GetByKey", func(ctx context.Context) error {
		var err error
		rs, err = r.selectByKey(ctx, idb, key)
		return err
	})
	if err != nil {
		return nil, r.handle("GetByKey", key, err)
	}
	return rs, nil
}

func (r *baseRepositoryImpl[T]) selectByKey(ctx context.Context, idb bun.IDB, key interface{}) (*types.ResultSet, error) {
	return queryResult(ctx, idb, r.cfg.PrimaryKey(),
		"SELECT * FROM ? WHERE ? = ?",
		bun.Ident(r.cfg.TableName()), bun.Ident(r.cfg.PrimaryKey()), key)
}

func (r *baseRepositoryImpl[T]) GetEntity(ctx context.Context, key interface{}) (*T, error) {
	rs, err := r.GetByKey(ctx, key)
	if err != nil || rs == nil || rs.Len() == 0 {
		return nil, err
	}
	entities, err := r.ToEntities(rs)
	if err != nil {
		return nil, err
	}
	return entities[0], nil
}

// GetFieldCount counts the rows whose field equals value. When the query
// fails it reports FieldCountOnError so the value is treated as taken.
func (r *baseRepositoryImpl[T]) GetFieldCount(ctx context.Context, field string, value interface{}) (int, error) {
	if _, ok := r.cfg.Column(field); !ok {
		return FieldCountOnError, fmt.Errorf("%w: %s.%s", schema.ErrUnknownColumn, r.cfg.TableName(), field)
	}
	var n int
	err := r.run(ctx, "GetFieldCount", func(ctx context.Context) error {
		var err error
		if value == nil {
			n, err = countRows(ctx, r.db, "SELECT count(*) FROM ? WHERE ? IS NULL",
				bun.Ident(r.cfg.TableName()), bun.Ident(field))
		} else {
			n, err = countRows(ctx, r.db, "SELECT count(*) FROM ? WHERE ? = ?",
				bun.Ident(r.cfg.TableName()), bun.Ident(field), value)
		}
		return err
	})
	if err != nil {
		return FieldCountOnError, r.handle("GetFieldCount", field, err)
	}
	return n, nil
}

func (r *baseRepositoryImpl[T]) Insert(ctx context.Context, entity *T) (int64, error) {
	return r.insertOn(ctx, r.db, entity)
}

func (r *baseRepositoryImpl[T]) InsertWithTx(ctx context.Context, idb bun.IDB, entity *T) (int64, error) {
	return r.insertOn(ctx, idb, entity)
}

func (r *baseRepositoryImpl[T]) insertOn(ctx context.Context, idb bun.IDB, entity *T) (int64, error) {
	params, err := r.cfg.MapInsertParameters(entity)
	if err != nil {
		return InsertFailed, err
	}
	var id int64
	err = r.run(ctx, "Insert", func(ctx context.Context) error {
		var err error
		id, err = insertRow(ctx, idb, r.cfg, params)
		return err
	})
	if err != nil {
		return InsertFailed, r.handle("Insert", nil, err)
	}
	return id, nil
}

func (r *baseRepositoryImpl[T]) Update(ctx context.Context, entity *T) (bool, error) {
	return r.updateOn(ctx, r.db, entity)
}

func (r *baseRepositoryImpl[T]) UpdateWithTx(ctx context.Context, idb bun.IDB, entity *T) (bool, error) {
	return r.updateOn(ctx, idb, entity)
}

func (r *baseRepositoryImpl[T]) updateOn(ctx context.Context, idb bun.IDB, entity *T) (bool, error) {
	params, err := r.cfg.MapUpdateParameters(entity)
	if err != nil {
		return false, err
	}
	key := params[r.cfg.PrimaryKey()]
	var ok bool
	err = r.run(ctx, "Update", func(ctx context.Context) error {
		var err error
		ok, err = updateRow(ctx, idb, r.cfg, r.cfg.UpdateColumns(), params)
		return err
	})
	if err != nil {
		return false, r.handle("Update", key, err)
	}
	return ok, nil
}

func (r *baseRepositoryImpl[T]) Delete(ctx context.Context, key interface{}) (bool, error) {
	return r.deleteOn(ctx, r.db, key)
}

func (r *baseRepositoryImpl[T]) DeleteWithTx(ctx context.Context, idb bun.IDB, key interface{}) (bool, error) {
	return r.deleteOn(ctx, idb, key)
}

func (r *baseRepositoryImpl[T]) deleteOn(ctx context.Context, idb bun.IDB, key interface{}) (bool, error) {
	var ok bool
	err := r.run(ctx, "Delete", func(ctx context.Context) error {
		var err error
		ok, err = deleteRows(ctx, idb, r.cfg.TableName(), r.cfg.PrimaryKey(), key)
		return err
	})
	if err != nil {
		return false, r.handle("Delete", key, err)
	}
	return ok, nil
}

// ToEntities extracts every row of rs. A row the extractor cannot read
// means the table and its config disagree.
func (r *baseRepositoryImpl[T]) ToEntities(rs *types.ResultSet) ([]*T, error) {
	if rs == nil {
		return nil, nil
	}
	entities := make([]*T, 0, rs.Len())
	for i := 0; i < rs.Len(); i++ {
		e, err := r.cfg.ExtractFromRow(rs.Row(i))
		if err != nil {
			if schema.IsConfiguration(err) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s row %d: %v", ErrSchemaDrift, r.cfg.TableName(), i, err)
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// PatchRow applies entity to the row of rs holding the same key. It
// reports false when rs has no such row.
func (r *baseRepositoryImpl[T]) PatchRow(rs *types.ResultSet, entity *T) (bool, error) {
	params, err := r.cfg.MapUpdateParameters(entity)
	if err != nil {
		return false, err
	}
	if rs == nil {
		return false, nil
	}
	row, ok := rs.Find(params[r.cfg.PrimaryKey()])
	if !ok {
		return false, nil
	}
	if err := r.cfg.ApplyToRow(row, entity); err != nil {
		return false, err
	}
	return true, nil
}
