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

package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type outboxMetrics struct {
	enqueued prometheus.Counter
	relayed  prometheus.Counter
	failed   prometheus.Counter
	dropped  *prometheus.CounterVec
	pending  prometheus.Gauge
}

func newOutboxMetrics(promRegistry prometheus.Registerer) *outboxMetrics {
	promautoFactory := promauto.With(promRegistry)
	return &outboxMetrics{
		enqueued: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "arbiter_outbox_enqueued_total",
			Help: "messages added to the outbox",
		}),
		relayed: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "arbiter_outbox_relayed_total",
			Help: "messages accepted by the submitter",
		}),
		failed: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "arbiter_outbox_submit_failures_total",
			Help: "failed submission attempts",
		}),
		dropped: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbiter_outbox_dropped_total",
				Help: "messages removed without being submitted",
			},
			[]string{"reason"},
		),
		pending: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "arbiter_outbox_pending",
			Help: "messages waiting in the outbox",
		}),
	}
}
