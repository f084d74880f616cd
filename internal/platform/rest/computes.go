package rest

import (
	"context"
	"fmt"
	"log/slog"
	"mlops-pipeline/internal/platform"
	"net/http"
)

type computes struct {
	c *Client
}

func (cs *computes) Get(ctx context.Context, name string) (platform.ComputeTarget, error) {
	var target platform.ComputeTarget
	err := cs.c.do(ctx, "get compute "+name, request{
		method: http.MethodGet,
		path:   "/computes/{name}",
		params: map[string]string{"name": name},
	}, &target)
	return target, err
}

func (cs *computes) Create(ctx context.Context, spec platform.ComputeSpec) (platform.Operation[platform.ComputeTarget], error) {
	var target platform.ComputeTarget
	err := cs.c.do(ctx, "create compute "+spec.Name, request{
		method: http.MethodPut,
		path:   "/computes/{name}",
		params: map[string]string{"name": spec.Name},
		body:   spec,
	}, &target)
	if err != nil {
		return nil, err
	}

	slog.Info("compute provisioning requested", "compute", spec.Name, "vm_size", spec.VMSize, "state", target.ProvisioningState)

	return platform.NewPollingOperation(spec.Name, func(ctx context.Context) (platform.ComputeTarget, bool, error) {
		current, err := cs.Get(ctx, spec.Name)
		if err != nil {
			return current, false, err
		}
		switch current.ProvisioningState {
		case platform.ProvisioningSucceeded:
			return current, true, nil
		case platform.ProvisioningFailed, platform.ProvisioningCanceled:
			return current, false, fmt.Errorf("compute %s provisioning ended %s: %s: %w",
				spec.Name, current.ProvisioningState, current.ProvisioningError, platform.ErrOperationFailed)
		}
		return current, false, nil
	}, cs.c.waitOptions("provisioning "+spec.Name, 0)), nil
}
