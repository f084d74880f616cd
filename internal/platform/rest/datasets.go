package rest

import (
	"context"
	"mlops-pipeline/internal/platform"
	"net/http"
)

type datasets struct {
	c *Client
}

func (d *datasets) Register(ctx context.Context, req platform.DatasetRegistration) (platform.DatasetVersion, error) {
	var version platform.DatasetVersion
	err := d.c.do(ctx, "register dataset "+req.Name, request{
		method: http.MethodPost,
		path:   "/datasets/{name}/versions",
		params: map[string]string{"name": req.Name},
		body:   req,
	}, &version)
	return version, err
}

func (d *datasets) Latest(ctx context.Context, name string) (platform.DatasetVersion, error) {
	var version platform.DatasetVersion
	err := d.c.do(ctx, "get dataset "+name, request{
		method: http.MethodGet,
		path:   "/datasets/{name}/versions/latest",
		params: map[string]string{"name": name},
	}, &version)
	return version, err
}
