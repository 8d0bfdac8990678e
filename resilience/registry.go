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

package resilience

import (
	"errors"
	"fmt"
	"sort"
)

// DatabasePipeline is the pipeline every repository runs its SQL through.
const DatabasePipeline = "database"

var (
	ErrPipelineNotFound  = errors.New("retry pipeline not found")
	ErrDuplicatePipeline = errors.New("duplicate retry pipeline")
)

// Registry holds the named pipelines. It is built once and never changes,
// so lookups need no locking.
type Registry struct {
	pipelines map[string]*Pipeline
	events    *RetryEventService
}

// NewRegistry builds one pipeline per policy, all reporting to events.
func NewRegistry(events *RetryEventService, logger Logger, policies ...Policy) (*Registry, error) {
	r := &Registry{pipelines: make(map[string]*Pipeline, len(policies)), events: events}
	for _, p := range policies {
		if p.Name == "" {
			return nil, errors.New("retry policy name cannot be empty")
		}
		if _, ok := r.pipelines[p.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePipeline, p.Name)
		}
		r.pipelines[p.Name] = NewPipeline(p, events, logger)
	}
	return r, nil
}

// Get returns the pipeline registered under name.
func (r *Registry) Get(name string) (*Pipeline, error) {
	if p, ok := r.pipelines[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrPipelineNotFound, name)
}

// MustGet is like Get but panics when the pipeline is missing.
func (r *Registry) MustGet(name string) *Pipeline {
	p, err := r.Get(name)
	if err != nil {
		panic(err)
	}
	return p
}

// Names lists the registered pipelines in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.pipelines))
	for n := range r.pipelines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Events returns the service the pipelines notify.
func (r *Registry) Events() *RetryEventService { return r.events }
