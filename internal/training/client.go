package training

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rileyhilliard/trainwatch/internal/errors"
)

// Default endpoint paths of the training service.
const (
	DefaultStartPath     = "/api/training/start"
	DefaultStatusPath    = "/api/training/status"
	DefaultSubscribePath = "/api/training/subscribe"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 1 << 20

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL       string
	StartPath     string
	StatusPath    string
	SubscribePath string
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// Client talks to the training service's request/response endpoints.
// It is a plain pass-through: no retries.
type Client struct {
	base          *url.URL
	startPath     string
	statusPath    string
	subscribePath string
	http          *http.Client
}

// NewClient validates the base URL and returns a client.
func NewClient(opts ClientOptions) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		if err == nil {
			err = fmt.Errorf("expected http(s)://host[:port], got %q", opts.BaseURL)
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid training server URL",
			"Set server.url to something like http://localhost:8080")
	}

	c := &Client{
		base:          base,
		startPath:     pathOr(opts.StartPath, DefaultStartPath),
		statusPath:    pathOr(opts.StatusPath, DefaultStatusPath),
		subscribePath: pathOr(opts.SubscribePath, DefaultSubscribePath),
		http:          opts.HTTPClient,
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		c.http = &http.Client{Timeout: timeout}
	}
	return c, nil
}

func pathOr(p, def string) string {
	if p == "" {
		return def
	}
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

// SubscribeURL is the metric stream endpoint.
func (c *Client) SubscribeURL() string {
	return c.base.String() + c.subscribePath
}

// Start asks the service to begin a training session.
func (c *Client) Start(ctx context.Context, numEpochs int) (*StartResponse, error) {
	if numEpochs <= 0 {
		numEpochs = DefaultEpochs
	}
	body, err := json.Marshal(StartRequest{NumEpochs: numEpochs})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTraining, "Failed to encode start request", "")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.String()+c.startPath, bytes.NewReader(body))
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTraining, "Failed to build start request", "")
	}
	req.Header.Set("Content-Type", "application/json")

	var resp StartResponse
	if err := c.do(req, "start training", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status fetches the current training status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String()+c.statusPath, nil)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTraining, "Failed to build status request", "")
	}

	var resp StatusResponse
	if err := c.do(req, "get training status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do executes req and decodes a 2xx body into out. Non-2xx responses and
// bodies carrying an "error" field become BusinessError.
func (c *Client) do(req *http.Request, action string, out interface{}) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req) //nolint:gosec // URL is validated in NewClient
	if err != nil {
		return errors.WrapWithCode(&TransportError{Op: action, Err: err}, errors.ErrTraining,
			fmt.Sprintf("Couldn't %s", action),
			"Check that the training server is running and server.url is correct")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return errors.WrapWithCode(&TransportError{Op: action, Err: err}, errors.ErrTraining,
			fmt.Sprintf("Couldn't read %s response", action), "")
	}

	var envelope ErrorResponse
	_ = json.Unmarshal(raw, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode > 299 || envelope.Error != "" {
		msg := envelope.Error
		if msg == "" {
			msg = fmt.Sprintf("Failed to %s", action)
		}
		return errors.WrapWithCode(&BusinessError{StatusCode: resp.StatusCode, Message: msg}, errors.ErrTraining,
			msg, "")
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errors.WrapWithCode(err, errors.ErrTraining,
			fmt.Sprintf("Unexpected %s response", action),
			"The server returned something that isn't JSON")
	}
	return nil
}
