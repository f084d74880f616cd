package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mlops-pipeline/internal/platform"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const workspacePath = "/subscriptions/{subscriptionId}/resourceGroups/{resourceGroup}/workspaces/{workspace}"

type Config struct {
	Endpoint     string
	Token        string
	Workspace    platform.Workspace
	PollInterval time.Duration
	// ShowProgress renders a spinner on stderr during long waits.
	ShowProgress bool
}

// Client talks to the ML platform's workspace REST API.
type Client struct {
	client *resty.Client
	cfg    Config
}

func NewClient(cfg Config) *Client {
	client := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetTimeout(2 * time.Minute).
		SetPathParams(map[string]string{
			"subscriptionId": cfg.Workspace.SubscriptionID,
			"resourceGroup":  cfg.Workspace.ResourceGroup,
			"workspace":      cfg.Workspace.Name,
		})

	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	return &Client{client: client, cfg: cfg}
}

// Platform returns the workspace services backed by this client.
func (c *Client) Platform() platform.Platform {
	return platform.Platform{
		Datasets:     &datasets{c},
		Computes:     &computes{c},
		Environments: &environments{c},
		Jobs:         &jobs{c},
		Models:       &models{c},
		Services:     &services{c},
	}
}

type request struct {
	method string
	path   string
	params map[string]string
	query  map[string]string
	body   any
}

func (c *Client) do(ctx context.Context, op string, req request, dest any) error {
	r := c.client.R().SetContext(ctx)
	if req.params != nil {
		r.SetPathParams(req.params)
	}
	if req.query != nil {
		r.SetQueryParams(req.query)
	}
	if req.body != nil {
		r.SetBody(req.body)
	}

	res, err := r.Execute(req.method, workspacePath+req.path)
	if err != nil {
		slog.Error("platform request failed", "op", op, "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}

	if !res.IsSuccess() {
		slog.Error("platform returned error", "op", op, "status_code", res.StatusCode(), "body", res.String())
		return &platform.Error{Op: op, StatusCode: res.StatusCode(), Body: res.String()}
	}

	if dest == nil || res.StatusCode() == http.StatusNoContent {
		return nil
	}

	if err := json.Unmarshal(res.Body(), dest); err != nil {
		return fmt.Errorf("%s: error parsing platform response: %w", op, err)
	}
	return nil
}

func (c *Client) waitOptions(progress string, timeout time.Duration) platform.WaitOptions {
	opts := platform.WaitOptions{Interval: c.cfg.PollInterval, Timeout: timeout}
	if c.cfg.ShowProgress {
		opts.Progress = progress
	}
	return opts
}
