package metrics

import (
	"net/http"
	"net/http/pprof"

	"github.com/dankorotin/countergo/pkg/config"
	"go.uber.org/zap"
)

// NewPprofService creates a new service for gathering pprof metrics.
func NewPprofService(cfg config.BasicService, log *zap.Logger) *Service {
	if log == nil {
		return nil
	}
	var httpServers []*http.Server
	if cfg.Enabled {
		handler := http.NewServeMux()
		handler.HandleFunc("/debug/pprof/", pprof.Index)
		handler.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		handler.HandleFunc("/debug/pprof/profile", pprof.Profile)
		handler.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		handler.HandleFunc("/debug/pprof/trace", pprof.Trace)

		addrs := cfg.GetAddresses()
		httpServers = make([]*http.Server, len(addrs))
		for i, addr := range addrs {
			httpServers[i] = &http.Server{
				Addr:    addr,
				Handler: handler,
			}
		}
	}
	return &Service{
		http:        httpServers,
		log:         log,
		serviceType: "Pprof",
	}
}
