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

package fleetbook

import (
	"context"

	"github.com/tomoncle/fleetbook/pagination"
	"github.com/tomoncle/fleetbook/repository"
	"github.com/tomoncle/fleetbook/types"
	"github.com/uptrace/bun"
)

type Service[T any] interface {
	// Get returns a single entity by its key, nil when it does not exist.
	Get(ctx context.Context, key any) (*T, error)

	// All returns all entities.
	All(ctx context.Context) ([]*T, error)

	// Count returns the number of stored entities.
	Count(ctx context.Context) (int, error)

	// Page returns one page of entities with pagination metadata. When
	// the rows of a non-empty table cannot be read it fails with
	// pagination.ErrPageUnavailable.
	Page(ctx context.Context, page int) (*types.Pagination[T], error)

	// Exists reports whether any entity has value in field. A failed
	// check reports true.
	Exists(ctx context.Context, field string, value any) (bool, error)

	// Save inserts a new entity and returns its key, or
	// repository.InsertFailed.
	Save(ctx context.Context, model *T) (int64, error)

	// Update modifies an existing entity.
	Update(ctx context.Context, model *T) (bool, error)

	// Delete removes an entity by its key.
	Delete(ctx context.Context, key any) (bool, error)

	// SaveWithTx inserts an entity within an existing transaction.
	SaveWithTx(ctx context.Context, tx bun.IDB, model *T) (int64, error)

	// UpdateWithTx updates an entity within a transaction.
	UpdateWithTx(ctx context.Context, tx bun.IDB, model *T) (bool, error)

	// DeleteWithTx removes an entity within a transaction.
	DeleteWithTx(ctx context.Context, tx bun.IDB, key any) (bool, error)

	// Pager returns a new pagination manager over the same table.
	Pager() *pagination.PaginationManager[T]

	// Repository returns the underlying repository.
	Repository() repository.Repository[T]
}

type baseServiceImpl[T any] struct {
	repo repository.Repository[T]
}

// NewService returns a Service backed by repo.
func NewService[T any](repo repository.Repository[T]) Service[T] {
	return &baseServiceImpl[T]{repo: repo}
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, key any) (*T, error) {
	return s.repo.GetEntity(ctx, key)
}

func (s *baseServiceImpl[T]) All(ctx context.Context) ([]*T, error) {
	rs, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ToEntities(rs)
}

func (s *baseServiceImpl[T]) Count(ctx context.Context) (int, error) {
	return s.repo.GetCount(ctx)
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, page int) (*types.Pagination[T], error) {
	total, err := s.repo.GetCount(ctx)
	if err != nil {
		return nil, err
	}
	pages := types.TotalPages(total, types.PageSize)
	page = types.ClampPage(page, pages)
	result := types.NewDefaultPagination[T](page, types.PageSize)
	result.Total = total
	result.TotalPages = pages
	if total == 0 {
		return result, nil
	}
	rs, err := s.repo.GetPage(ctx, page)
	if err != nil {
		return nil, err
	}
	if rs == nil {
		return nil, pagination.ErrPageUnavailable
	}
	items, err := s.repo.ToEntities(rs)
	if err != nil {
		return nil, err
	}
	if items != nil {
		result.Items = items
	}
	return result, nil
}

func (s *baseServiceImpl[T]) Exists(ctx context.Context, field string, value any) (bool, error) {
	n, err := s.repo.GetFieldCount(ctx, field, value)
	return n > 0, err
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, model *T) (int64, error) {
	return s.repo.Insert(ctx, model)
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, model *T) (bool, error) {
	return s.repo.Update(ctx, model)
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, key any) (bool, error) {
	return s.repo.Delete(ctx, key)
}

func (s *baseServiceImpl[T]) SaveWithTx(ctx context.Context, tx bun.IDB, model *T) (int64, error) {
	return s.repo.InsertWithTx(ctx, tx, model)
}

func (s *baseServiceImpl[T]) UpdateWithTx(ctx context.Context, tx bun.IDB, model *T) (bool, error) {
	return s.repo.UpdateWithTx(ctx, tx, model)
}

func (s *baseServiceImpl[T]) DeleteWithTx(ctx context.Context, tx bun.IDB, key any) (bool, error) {
	return s.repo.DeleteWithTx(ctx, tx, key)
}

func (s *baseServiceImpl[T]) Pager() *pagination.PaginationManager[T] {
	return pagination.NewPaginationManager[T](s.repo)
}

func (s *baseServiceImpl[T]) Repository() repository.Repository[T] { return s.repo }
