package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "rotor_cycles_total", Help: "Decision cycles run"},
	)
	FetchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rotor_fetch_failures_total", Help: "Exchange fetches that came back unavailable"},
		[]string{"op"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rotor_orders_total", Help: "Order legs by outcome"},
		[]string{"side", "outcome"},
	)
	LedgerEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rotor_ledger_entries_total", Help: "Transaction ledger appends"},
		[]string{"outcome"},
	)
	ActiveHoldings = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "rotor_active_holdings", Help: "Tracked assets with a positive balance"},
	)
)

func init() {
	prometheus.MustRegister(CyclesTotal, FetchFailuresTotal, OrdersTotal, LedgerEntriesTotal, ActiveHoldings)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
