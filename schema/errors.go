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
	"fmt"
)

// ErrConfiguration is the root of every configuration error. These are
// fatal: the table layer cannot work until the setup code is fixed, so they
// are never retried and never turned into sentinel results.
var ErrConfiguration = errors.New("configuration error")

var (
	ErrHookNotConfigured      = fmt.Errorf("%w: mapping hook not configured", ErrConfiguration)
	ErrTableNotRegistered     = fmt.Errorf("%w: no table registered for entity type", ErrConfiguration)
	ErrPrimaryKeyNotInColumns = fmt.Errorf("%w: primary key is not a configured column", ErrConfiguration)
	ErrDuplicateColumn        = fmt.Errorf("%w: duplicate column", ErrConfiguration)
	ErrDuplicateTable         = fmt.Errorf("%w: table already registered", ErrConfiguration)
	ErrUnknownColumn          = fmt.Errorf("%w: unknown column", ErrConfiguration)
	ErrMissingParameter       = fmt.Errorf("%w: mapper did not supply a column value", ErrConfiguration)
	ErrFrozen                 = fmt.Errorf("%w: table config is read-only after registration", ErrConfiguration)
	ErrInvalidColumn          = fmt.Errorf("%w: invalid column", ErrConfiguration)
)

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
