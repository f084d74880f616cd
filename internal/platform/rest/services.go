package rest

import (
	"context"
	"fmt"
	"log/slog"
	"mlops-pipeline/internal/platform"
	"net/http"
)

type services struct {
	c *Client
}

func (s *services) Deploy(ctx context.Context, spec platform.ServiceSpec) (platform.Operation[platform.Service], error) {
	var svc platform.Service
	err := s.c.do(ctx, "deploy service "+spec.Name, request{
		method: http.MethodPut,
		path:   "/services/{name}",
		params: map[string]string{"name": spec.Name},
		body:   spec,
	}, &svc)
	if err != nil {
		return nil, err
	}

	slog.Info("deployment submitted", "service", spec.Name, "state", svc.State)

	return platform.NewPollingOperation(spec.Name, func(ctx context.Context) (platform.Service, bool, error) {
		current, err := s.Get(ctx, spec.Name)
		if err != nil {
			return current, false, err
		}
		switch current.State {
		case platform.ServiceHealthy:
			return current, true, nil
		case platform.ServiceFailed, platform.ServiceUnhealthy:
			return current, false, fmt.Errorf("service %s ended %s: %s: %w", spec.Name, current.State, current.Error, platform.ErrOperationFailed)
		}
		return current, false, nil
	}, s.c.waitOptions("deploying "+spec.Name, 0)), nil
}

func (s *services) Get(ctx context.Context, name string) (platform.Service, error) {
	var svc platform.Service
	err := s.c.do(ctx, "get service "+name, request{
		method: http.MethodGet,
		path:   "/services/{name}",
		params: map[string]string{"name": name},
	}, &svc)
	return svc, err
}
