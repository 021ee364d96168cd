package promclient

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var OpenOrderBookGauge = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "marketfeed_open_order_books",
		Help: "number of locally maintained order books",
	},
	[]string{"provider"},
)

var AppliedBookUpdatesCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "marketfeed_applied_book_updates_total",
		Help: "depth updates merged into materialized books",
	},
	[]string{"provider"},
)

var NormalizedTradesCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "marketfeed_normalized_trades_total",
		Help: "vendor trade events normalized into ticks",
	},
	[]string{"provider"},
)

func StartPromClientServer(addr string) {
	reg := prometheus.NewRegistry()
	promHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	reg.MustRegister(OpenOrderBookGauge)
	reg.MustRegister(AppliedBookUpdatesCounter)
	reg.MustRegister(NormalizedTradesCounter)
	reg.MustRegister(collectors.NewGoCollector())

	http.Handle("/metrics", promHandler)
	logrus.Infof("prometheus server listening at %s", addr)

	if err := http.ListenAndServe(addr, nil); err != nil {
		logrus.Fatalf("failed to serve metrics: %v", err)
	}
}
