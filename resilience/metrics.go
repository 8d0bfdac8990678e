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
	"github.com/prometheus/client_golang/prometheus"
)

// NewMetricsObserver registers the retry collectors on reg and returns an
// observer feeding them.
func NewMetricsObserver(reg prometheus.Registerer) (RetryObserver, error) {
	recovered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetbook",
		Subsystem: "retry",
		Name:      "recovered_total",
		Help:      "Operations that succeeded after at least one retry.",
	}, []string{"pipeline", "operation"})
	attempts := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fleetbook",
		Subsystem: "retry",
		Name:      "attempts",
		Help:      "Attempts needed by operations that recovered after retry.",
		Buckets:   []float64{2, 3, 4, 5, 6, 8, 10},
	}, []string{"pipeline"})

	for _, c := range []prometheus.Collector{recovered, attempts} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return func(ev RetryEvent) {
		recovered.WithLabelValues(ev.Pipeline, ev.Operation).Inc()
		attempts.WithLabelValues(ev.Pipeline).Observe(float64(ev.Attempts))
	}, nil
}
