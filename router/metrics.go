// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type routerMetrics struct {
	calls        *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	modules      prometheus.Gauge
}

func newRouterMetrics(promRegistry prometheus.Registerer) *routerMetrics {
	promautoFactory := promauto.With(promRegistry)
	return &routerMetrics{
		calls: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbiter_router_calls_total",
				Help: "routed calls by method, kind and result",
			},
			[]string{"method", "kind", "result"},
		),
		callDuration: promautoFactory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbiter_router_call_duration_seconds",
				Help:    "time spent executing routed calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		modules: promautoFactory.NewGauge(
			prometheus.GaugeOpts{
				Name: "arbiter_router_modules",
				Help: "number of deployed modules",
			},
		),
	}
}
