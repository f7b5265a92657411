package client

import (
	"github.com/prometheus/client_golang/prometheus"

	"rollupclient/syncengine"
)

// metrics mirrors syncengine.Summary's fields as Prometheus counters for
// operators (SPEC_FULL domain stack: ambient observability carried
// regardless of spec.md's Non-goals, following the teacher's habit of
// wiring Prometheus even where the spec itself stays silent on metrics).
// Each Client gets its own registry so multiple clients in one process
// don't collide on metric registration.
type metrics struct {
	registry *prometheus.Registry

	newPublicNotes        prometheus.Counter
	committedNotes        prometheus.Counter
	consumedNotes         prometheus.Counter
	updatedAccounts       prometheus.Counter
	lockedAccounts        prometheus.Counter
	committedTransactions prometheus.Counter
	syncHeight            prometheus.Gauge
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	m := &metrics{
		registry: reg,
		newPublicNotes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rollupclient_sync_new_public_notes_total",
			Help: "Public notes first observed during sync_state.",
		}),
		committedNotes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rollupclient_sync_committed_notes_total",
			Help: "Input notes that reached the Committed state during sync_state.",
		}),
		consumedNotes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rollupclient_sync_consumed_notes_total",
			Help: "Input notes consumed (locally or externally) during sync_state.",
		}),
		updatedAccounts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rollupclient_sync_updated_accounts_total",
			Help: "Tracked accounts whose commitment was reconciled during sync_state.",
		}),
		lockedAccounts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rollupclient_sync_locked_accounts_total",
			Help: "Tracked accounts locked due to a commitment mismatch during sync_state.",
		}),
		committedTransactions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rollupclient_sync_committed_transactions_total",
			Help: "Local transactions observed committed during sync_state.",
		}),
		syncHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rollupclient_sync_height",
			Help: "Block number the store was synced to as of the last sync_state round.",
		}),
	}
	reg.MustRegister(m.newPublicNotes, m.committedNotes, m.consumedNotes, m.updatedAccounts, m.lockedAccounts, m.committedTransactions, m.syncHeight)
	return m
}

func (m *metrics) observe(s syncengine.Summary) {
	m.newPublicNotes.Add(float64(s.NewPublicNotes))
	m.committedNotes.Add(float64(s.CommittedNotes))
	m.consumedNotes.Add(float64(s.ConsumedNotes))
	m.updatedAccounts.Add(float64(s.UpdatedAccounts))
	m.lockedAccounts.Add(float64(s.LockedAccounts))
	m.committedTransactions.Add(float64(s.CommittedTransactions))
	m.syncHeight.Set(float64(s.BlockNum))
}

// Registry exposes the client's metric registry so a caller can serve it
// over /metrics (e.g. with promhttp.HandlerFor) without this package taking
// an opinion on HTTP transport.
func (c *Client) Registry() *prometheus.Registry {
	return c.metrics.registry
}
