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
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RetryEvent describes an operation that succeeded after being retried.
type RetryEvent struct {
	ID        string
	Pipeline  string
	Operation string
	Attempts  int
	LastError error
	Elapsed   time.Duration
	At        time.Time
}

func newRetryEvent(pipeline, operation string, attempts int, lastErr error, elapsed time.Duration) RetryEvent {
	return RetryEvent{
		ID:        uuid.NewString(),
		Pipeline:  pipeline,
		Operation: operation,
		Attempts:  attempts,
		LastError: lastErr,
		Elapsed:   elapsed,
		At:        time.Now(),
	}
}

// RetryObserver receives retry events.
type RetryObserver func(RetryEvent)

// RetryEventService fans retry events out to observers fixed at
// construction. Each observer runs in its own goroutine so a slow or
// panicking observer never blocks or breaks the database call that
// produced the event.
type RetryEventService struct {
	observers []RetryObserver
	logger    Logger
	wg        sync.WaitGroup
}

// NewRetryEventService creates the service. logger receives observer panics
// and may be nil.
func NewRetryEventService(logger Logger, observers ...RetryObserver) *RetryEventService {
	obs := make([]RetryObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			obs = append(obs, o)
		}
	}
	return &RetryEventService{observers: obs, logger: logger}
}

// Notify delivers ev to every observer. It never blocks. A nil service
// drops the event.
func (s *RetryEventService) Notify(ev RetryEvent) {
	if s == nil {
		return
	}
	for _, o := range s.observers {
		s.wg.Add(1)
		go s.deliver(o, ev)
	}
}

func (s *RetryEventService) deliver(o RetryObserver, ev RetryEvent) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil && s.logger != nil {
			s.logger.Warn("Retry observer panicked",
				"pipeline", ev.Pipeline,
				"operation", ev.Operation,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	o(ev)
}

// Wait blocks until every notification already issued has been delivered.
func (s *RetryEventService) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

// NewLogObserver returns an observer that records each recovery at info level.
func NewLogObserver(logger Logger) RetryObserver {
	return func(ev RetryEvent) {
		fields := []interface{}{
			"event_id", ev.ID,
			"pipeline", ev.Pipeline,
			"operation", ev.Operation,
			"attempts", ev.Attempts,
			"elapsed", ev.Elapsed,
		}
		if ev.LastError != nil {
			fields = append(fields, "last_error", ev.LastError.Error())
		}
		logger.Info("Operation recovered after retry", fields...)
	}
}
