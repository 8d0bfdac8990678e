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

package types

// PageSize is the number of rows per page used process-wide.
const PageSize = 20

// TotalPages returns the number of pages needed for count records. It is
// never less than one, so an empty table still has a single (empty) page.
func TotalPages(count, pageSize int) int {
	if pageSize < 1 {
		pageSize = PageSize
	}
	if count <= 0 {
		return 1
	}
	return (count + pageSize - 1) / pageSize
}

// ClampPage moves page into [1, totalPages].
func ClampPage(page, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// Offset returns the row offset of a 1-based page number.
func Offset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = PageSize
	}
	return (page - 1) * pageSize
}

// Pagination holds paged result items along with pagination metadata.
type Pagination[T any] struct {
	Page       int
	PageSize   int
	Total      int
	TotalPages int
	Items      []*T
}

// NewDefaultPagination constructs an empty pagination container.
func NewDefaultPagination[T any](page int, pageSize int) *Pagination[T] {
	return &Pagination[T]{
		Page:       page,
		PageSize:   pageSize,
		TotalPages: 1,
		Items:      make([]*T, 0),
	}
}
