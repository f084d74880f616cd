package rest

import (
	"context"
	"mlops-pipeline/internal/platform"
	"net/http"
)

type environments struct {
	c *Client
}

func (e *environments) Register(ctx context.Context, spec platform.EnvironmentSpec) (platform.Environment, error) {
	var env platform.Environment
	err := e.c.do(ctx, "register environment "+spec.Name, request{
		method: http.MethodPost,
		path:   "/environments/{name}/versions",
		params: map[string]string{"name": spec.Name},
		body:   spec,
	}, &env)
	return env, err
}

func (e *environments) Get(ctx context.Context, name, version string) (platform.Environment, error) {
	var env platform.Environment
	err := e.c.do(ctx, "get environment "+name+":"+version, request{
		method: http.MethodGet,
		path:   "/environments/{name}/versions/{version}",
		params: map[string]string{"name": name, "version": version},
	}, &env)
	return env, err
}
