package metrics

import (
	"net/http"

	"github.com/dankorotin/countergo/pkg/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewPrometheusService creates a new service for gathering prometheus metrics.
func NewPrometheusService(cfg config.BasicService, log *zap.Logger) *Service {
	if log == nil {
		return nil
	}
	var httpServers []*http.Server
	if cfg.Enabled {
		addrs := cfg.GetAddresses()
		httpServers = make([]*http.Server, len(addrs))
		for i, addr := range addrs {
			httpServers[i] = &http.Server{
				Addr:    addr,
				Handler: promhttp.Handler(),
			}
		}
	}
	return &Service{
		http:        httpServers,
		log:         log,
		serviceType: "Prometheus",
	}
}
