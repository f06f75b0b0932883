package rpcsrv

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics used in monitoring service.
var rpcTimes = map[string]prometheus.Histogram{}
var rpcCounter = map[string]prometheus.Counter{}

func addReqTimeMetric(name string, t time.Duration) {
	hist, ok := rpcTimes[name]
	if ok {
		hist.Observe(t.Seconds())
	}
	ctr, ok := rpcCounter[name]
	if ok {
		ctr.Inc()
	}
}

func regCounter(call string) {
	ctr := prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of calls to " + call + " rpc endpoint",
			Name:      call + "_called",
			Namespace: "countergo",
		},
	)
	prometheus.MustRegister(ctr)
	rpcCounter[call] = ctr

	hist := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Help:      call + " request handling time",
			Name:      call + "_time",
			Namespace: "countergo",
		},
	)
	prometheus.MustRegister(hist)
	rpcTimes[call] = hist
}

func init() {
	for call := range rpcHandlers {
		regCounter(call)
	}
	for call := range rpcWsHandlers {
		regCounter(call)
	}
}
