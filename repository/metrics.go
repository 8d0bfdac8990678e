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
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records repository call durations and failures. A nil *Metrics
// records nothing.
type Metrics struct {
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the repository collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleetbook",
			Subsystem: "repository",
			Name:      "failures_total",
			Help:      "Data-access failures turned into sentinel results.",
		}, []string{"table", "operation", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fleetbook",
			Subsystem: "repository",
			Name:      "duration_seconds",
			Help:      "Repository call latency including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"table", "operation"}),
	}
	for _, c := range []prometheus.Collector{m.failures, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(table, op string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(table, op).Observe(d.Seconds())
}

func (m *Metrics) failed(table, op, kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(table, op, kind).Inc()
}
