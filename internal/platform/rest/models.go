package rest

import (
	"context"
	"fmt"
	"mlops-pipeline/internal/platform"
	"net/http"
	"strconv"
)

type models struct {
	c *Client
}

func (m *models) Latest(ctx context.Context, name string) (platform.ModelRecord, error) {
	var model platform.ModelRecord
	err := m.c.do(ctx, "get latest model "+name, request{
		method: http.MethodGet,
		path:   "/models/{name}/versions/latest",
		params: map[string]string{"name": name},
	}, &model)
	return model, err
}

func (m *models) Get(ctx context.Context, name string, version int) (platform.ModelRecord, error) {
	var model platform.ModelRecord
	err := m.c.do(ctx, fmt.Sprintf("get model %s:%d", name, version), request{
		method: http.MethodGet,
		path:   "/models/{name}/versions/{version}",
		params: map[string]string{"name": name, "version": strconv.Itoa(version)},
	}, &model)
	return model, err
}

func (m *models) Register(ctx context.Context, reg platform.ModelRegistration) (platform.ModelRecord, error) {
	var model platform.ModelRecord
	err := m.c.do(ctx, "register model "+reg.Name, request{
		method: http.MethodPost,
		path:   "/models/{name}/versions",
		params: map[string]string{"name": reg.Name},
		body:   reg,
	}, &model)
	return model, err
}
