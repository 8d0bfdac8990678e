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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomoncle/fleetbook/schema"
)

// Strategy selects how the delay between attempts grows.
type Strategy int

const (
	Exponential Strategy = iota
	Fixed
)

func (s Strategy) String() string {
	if s == Fixed {
		return "fixed"
	}
	return "exponential"
}

// ParseStrategy resolves a strategy name; the empty string means exponential.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exponential", "exp":
		return Exponential, nil
	case "fixed", "constant":
		return Fixed, nil
	}
	return Exponential, fmt.Errorf("unknown retry strategy %q", s)
}

// Policy configures one pipeline.
type Policy struct {
	Name            string
	Strategy        Strategy
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	AttemptTimeout  time.Duration
	// ShouldRetry decides whether a failed attempt may be repeated. When
	// nil every error is retried except context cancellation and
	// configuration errors, which are never retried.
	ShouldRetry func(error) bool
}

// DefaultPolicy returns the policy used for database calls when nothing is
// configured: four attempts with exponential backoff from 200ms to 2s.
func DefaultPolicy(name string) Policy {
	return Policy{
		Name:            name,
		Strategy:        Exponential,
		MaxAttempts:     4,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = 100 * time.Millisecond
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	return p
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, schema.ErrConfiguration) {
		return false
	}
	if p.ShouldRetry == nil {
		return true
	}
	return p.ShouldRetry(err)
}

// PolicyConfig is the configuration-file form of a Policy.
type PolicyConfig struct {
	Name            string        `yaml:"name" json:"name"`
	Strategy        string        `yaml:"strategy" json:"strategy"`
	MaxAttempts     int           `yaml:"max_attempts" json:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval" json:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval" json:"max_interval"`
	Multiplier      float64       `yaml:"multiplier" json:"multiplier"`
	AttemptTimeout  time.Duration `yaml:"attempt_timeout" json:"attempt_timeout"`
}

// ToPolicy converts the configuration into a Policy. Unset numeric fields
// fall back to DefaultPolicy.
func (c PolicyConfig) ToPolicy(shouldRetry func(error) bool) (Policy, error) {
	if strings.TrimSpace(c.Name) == "" {
		return Policy{}, errors.New("retry policy name cannot be empty")
	}
	strategy, err := ParseStrategy(c.Strategy)
	if err != nil {
		return Policy{}, fmt.Errorf("policy %s: %w", c.Name, err)
	}
	p := DefaultPolicy(c.Name)
	p.Strategy = strategy
	p.ShouldRetry = shouldRetry
	if c.MaxAttempts > 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	if c.InitialInterval > 0 {
		p.InitialInterval = c.InitialInterval
	}
	if c.MaxInterval > 0 {
		p.MaxInterval = c.MaxInterval
	}
	if c.Multiplier > 0 {
		p.Multiplier = c.Multiplier
	}
	p.AttemptTimeout = c.AttemptTimeout
	return p, nil
}
