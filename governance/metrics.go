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

package governance

import (
	"github.com/blinklabs-io/arbiter/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts committed governance activity from the event bus
type Metrics struct {
	eventBus  *event.EventBus
	subs      map[event.EventType]event.EventSubscriberId
	proposals prometheus.Counter
	votes     *prometheus.CounterVec
	tallies   *prometheus.CounterVec
	actions   *prometheus.CounterVec
	executed  prometheus.Counter
	delegates prometheus.Counter
}

func NewMetrics(eventBus *event.EventBus, promRegistry prometheus.Registerer) *Metrics {
	factory := promauto.With(promRegistry)
	m := &Metrics{
		eventBus: eventBus,
		subs:     make(map[event.EventType]event.EventSubscriberId),
		proposals: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbiter_governance_proposals_created_total",
			Help: "total proposals created",
		}),
		votes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbiter_governance_votes_total",
			Help: "total vote weight cast",
		}, []string{"kind", "support"}),
		tallies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbiter_governance_tallies_total",
			Help: "total proposals tallied by outcome",
		}, []string{"status"}),
		actions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbiter_governance_actions_total",
			Help: "total proposal actions executed",
		}, []string{"target", "result"}),
		executed: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbiter_governance_proposals_executed_total",
			Help: "total proposals executed",
		}),
		delegates: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbiter_governance_delegation_changes_total",
			Help: "total delegation changes",
		}),
	}
	m.subscribe(ProposalCreatedEventType, func(event.Event) { m.proposals.Inc() })
	m.subscribe(VoteCastEventType, func(evt event.Event) {
		if data, ok := evt.Data.(VoteCastEvent); ok {
			m.votes.WithLabelValues("direct", supportLabel(data.Support)).Inc()
		}
	})
	m.subscribe(ProxyVoteCastEventType, func(evt event.Event) {
		if data, ok := evt.Data.(ProxyVoteCastEvent); ok {
			m.votes.WithLabelValues("proxy", supportLabel(data.Support)).
				Add(float64(data.Weight))
		}
	})
	m.subscribe(ProposalTalliedEventType, func(evt event.Event) {
		if data, ok := evt.Data.(ProposalTalliedEvent); ok {
			m.tallies.WithLabelValues(StatusName(data.Status)).Inc()
		}
	})
	m.subscribe(LocalActionExecutedEventType, func(event.Event) {
		m.actions.WithLabelValues("local", "ok").Inc()
	})
	m.subscribe(RemoteActionSubmittedEventType, func(event.Event) {
		m.actions.WithLabelValues("remote", "ok").Inc()
	})
	m.subscribe(ActionFailedEventType, func(evt event.Event) {
		target := "local"
		if data, ok := evt.Data.(ActionFailedEvent); ok && data.ChainID != 0 {
			target = "remote"
		}
		m.actions.WithLabelValues(target, "failed").Inc()
	})
	m.subscribe(ProposalExecutedEventType, func(event.Event) { m.executed.Inc() })
	m.subscribe(DelegationChangedEventType, func(event.Event) { m.delegates.Inc() })
	return m
}

func (m *Metrics) subscribe(eventType event.EventType, fn event.EventHandlerFunc) {
	if m.eventBus == nil {
		return
	}
	m.subs[eventType] = m.eventBus.SubscribeFunc(eventType, fn)
}

// Close unsubscribes from the event bus
func (m *Metrics) Close() {
	if m.eventBus == nil {
		return
	}
	for eventType, id := range m.subs {
		m.eventBus.Unsubscribe(eventType, id)
	}
	clear(m.subs)
}

func supportLabel(support bool) string {
	if support {
		return "for"
	}
	return "against"
}
