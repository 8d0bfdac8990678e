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
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Logger is the subset of the database logger the pipeline writes to.
type Logger interface {
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Pipeline runs operations under one retry policy. It holds no per-call
// state and is safe for concurrent use.
type Pipeline struct {
	policy Policy
	events *RetryEventService
	logger Logger
}

// NewPipeline builds a pipeline. events and logger may be nil.
func NewPipeline(policy Policy, events *RetryEventService, logger Logger) *Pipeline {
	return &Pipeline{policy: policy.normalized(), events: events, logger: logger}
}

// Name returns the policy name.
func (p *Pipeline) Name() string { return p.policy.Name }

// Policy returns a copy of the effective policy.
func (p *Pipeline) Policy() Policy { return p.policy }

func (p *Pipeline) newBackOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff
	switch p.policy.Strategy {
	case Fixed:
		b = backoff.NewConstantBackOff(p.policy.InitialInterval)
	default:
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = p.policy.InitialInterval
		eb.MaxInterval = p.policy.MaxInterval
		eb.Multiplier = p.policy.Multiplier
		eb.MaxElapsedTime = 0
		b = eb
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.policy.MaxAttempts-1)), ctx)
}

// Execute runs fn until it succeeds, fails with a non-retryable error, the
// attempts are used up or ctx is done. Cancellation aborts the remaining
// attempts. When fn succeeds after at least one retry the event service is
// notified.
func (p *Pipeline) Execute(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	start := time.Now()
	attempts := 0
	var lastErr error

	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempts++
		attemptCtx := ctx
		if p.policy.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.policy.AttemptTimeout)
			defer cancel()
		}
		err := fn(attemptCtx)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || !p.policy.retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		if p.logger != nil {
			p.logger.Warn("Retrying operation after transient failure",
				"pipeline", p.policy.Name,
				"operation", operation,
				"attempt", attempts,
				"wait", wait,
				"error", err,
			)
		}
	}

	err := backoff.RetryNotify(op, p.newBackOff(ctx), notify)
	if err != nil {
		return err
	}
	if attempts > 1 {
		p.events.Notify(newRetryEvent(p.policy.Name, operation, attempts, lastErr, time.Since(start)))
	}
	return nil
}
