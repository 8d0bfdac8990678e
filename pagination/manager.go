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

package pagination

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomoncle/fleetbook/schema"
	"github.com/tomoncle/fleetbook/types"
)

// ErrInitialize is returned when the record count cannot be read at
// initialization. The manager is unusable until Initialize succeeds.
var ErrInitialize = fmt.Errorf("%w: pagination initialization failed", schema.ErrConfiguration)

// ErrPageUnavailable is returned by FetchEntities when the source could
// not read the current page.
var ErrPageUnavailable = errors.New("page unavailable")

// PageSource is what the manager needs from a repository.
type PageSource[T any] interface {
	GetCount(ctx context.Context) (int, error)
	GetPage(ctx context.Context, page int) (*types.ResultSet, error)
	ToEntities(rs *types.ResultSet) ([]*T, error)
}

// PageChanged is published after every navigation.
type PageChanged struct {
	Page        int
	TotalPages  int
	RecordCount int
}

// Handler receives page changes. Handlers run synchronously, in
// subscription order, before the navigation call returns.
type Handler func(ctx context.Context, ev PageChanged)

type subscription struct {
	id int
	fn Handler
}

// PaginationManager holds the page state of one view. It is not safe for
// concurrent use.
type PaginationManager[T any] struct {
	source      PageSource[T]
	pageSize    int
	currentPage int
	totalPages  int
	recordCount int

	nextID      int
	subscribers []subscription
}

// NewPaginationManager returns a manager on page 1 of 1.
func NewPaginationManager[T any](source PageSource[T]) *PaginationManager[T] {
	return &PaginationManager[T]{
		source:      source,
		pageSize:    types.PageSize,
		currentPage: 1,
		totalPages:  1,
	}
}

func (m *PaginationManager[T]) CurrentPage() int { return m.currentPage }
func (m *PaginationManager[T]) TotalPages() int  { return m.totalPages }
func (m *PaginationManager[T]) RecordCount() int { return m.recordCount }
func (m *PaginationManager[T]) PageSize() int    { return m.pageSize }

// Subscribe adds a handler and returns a function that removes it.
func (m *PaginationManager[T]) Subscribe(fn Handler) (unsubscribe func()) {
	m.nextID++
	id := m.nextID
	m.subscribers = append(m.subscribers, subscription{id: id, fn: fn})
	return func() {
		for i, s := range m.subscribers {
			if s.id == id {
				m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Initialize reads the record count from the source and recomputes the
// page bounds. Only errors the source returns fail it. A repository
// reports a database failure as a count of 0 with a nil error, so an
// outage at load leaves the manager on page 1 of 1 rather than failing.
func (m *PaginationManager[T]) Initialize(ctx context.Context) error {
	count, err := m.source.GetCount(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInitialize, err)
	}
	m.setRecordCount(count)
	return nil
}

// Refresh recounts the records and re-publishes the current page.
func (m *PaginationManager[T]) Refresh(ctx context.Context) error {
	count, err := m.source.GetCount(ctx)
	if err != nil {
		return err
	}
	m.setRecordCount(count)
	m.EnsureValidPage(ctx)
	return nil
}

// UpdateRecordCount sets the record count after a local insert or delete
// without asking the source.
func (m *PaginationManager[T]) UpdateRecordCount(count int) {
	m.setRecordCount(count)
}

func (m *PaginationManager[T]) setRecordCount(count int) {
	if count < 0 {
		count = 0
	}
	m.recordCount = count
	m.totalPages = types.TotalPages(count, m.pageSize)
	m.currentPage = types.ClampPage(m.currentPage, m.totalPages)
}

// EnsureValidPage clamps the current page into the page bounds and
// re-publishes it.
func (m *PaginationManager[T]) EnsureValidPage(ctx context.Context) int {
	return m.moveTo(ctx, m.currentPage)
}

func (m *PaginationManager[T]) GoToFirst(ctx context.Context) int {
	return m.moveTo(ctx, 1)
}

func (m *PaginationManager[T]) GoToLast(ctx context.Context) int {
	return m.moveTo(ctx, m.totalPages)
}

// GoToPrevious does nothing on the first page.
func (m *PaginationManager[T]) GoToPrevious(ctx context.Context) int {
	if m.currentPage <= 1 {
		return m.currentPage
	}
	return m.moveTo(ctx, m.currentPage-1)
}

// GoToNext does nothing on the last page.
func (m *PaginationManager[T]) GoToNext(ctx context.Context) int {
	if m.currentPage >= m.totalPages {
		return m.currentPage
	}
	return m.moveTo(ctx, m.currentPage+1)
}

// GoToPage moves to page n clamped into [1, TotalPages].
func (m *PaginationManager[T]) GoToPage(ctx context.Context, n int) int {
	return m.moveTo(ctx, n)
}

func (m *PaginationManager[T]) moveTo(ctx context.Context, page int) int {
	m.currentPage = types.ClampPage(page, m.totalPages)
	ev := PageChanged{Page: m.currentPage, TotalPages: m.totalPages, RecordCount: m.recordCount}
	for _, s := range append([]subscription(nil), m.subscribers...) {
		s.fn(ctx, ev)
	}
	return m.currentPage
}

// FetchPage returns the rows of the current page. A nil result with a nil
// error means the source could not read the page.
func (m *PaginationManager[T]) FetchPage(ctx context.Context) (*types.ResultSet, error) {
	return m.source.GetPage(ctx, m.currentPage)
}

// FetchEntities returns the entities of the current page.
func (m *PaginationManager[T]) FetchEntities(ctx context.Context) ([]*T, error) {
	rs, err := m.FetchPage(ctx)
	if err != nil {
		return nil, err
	}
	if rs == nil {
		return nil, ErrPageUnavailable
	}
	return m.source.ToEntities(rs)
}
