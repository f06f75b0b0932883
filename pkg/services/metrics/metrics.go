// Package metrics provides Prometheus and pprof services.
package metrics

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// Service serves metrics.
type Service struct {
	http        []*http.Server
	log         *zap.Logger
	serviceType string
	started     bool
}

// Start runs http service with the exposed endpoint on the configured port.
func (ms *Service) Start() error {
	if ms.http == nil {
		ms.log.Info("service hasn't started since it's disabled",
			zap.String("service", ms.serviceType))
		return nil
	}
	if ms.started {
		ms.log.Info("service already started", zap.String("service", ms.serviceType))
		return nil
	}
	for _, srv := range ms.http {
		ms.log.Info("starting service", zap.String("service", ms.serviceType), zap.String("endpoint", srv.Addr))
		go func(srv *http.Server) {
			err := srv.ListenAndServe()
			if !errors.Is(err, http.ErrServerClosed) {
				ms.log.Error("failed to start service",
					zap.String("endpoint", srv.Addr),
					zap.String("service", ms.serviceType),
					zap.Error(err))
			}
		}(srv)
	}
	ms.started = true
	return nil
}

// ShutDown stops the service.
func (ms *Service) ShutDown() {
	if !ms.started {
		return
	}
	for _, srv := range ms.http {
		ms.log.Info("shutting down service", zap.String("service", ms.serviceType), zap.String("endpoint", srv.Addr))
		err := srv.Shutdown(context.Background())
		if err != nil {
			ms.log.Error("can't shut service down", zap.String("endpoint", srv.Addr), zap.Error(err))
		}
	}
	ms.started = false
}
