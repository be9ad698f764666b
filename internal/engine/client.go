// Package engine is the outbound HTTP boundary to the external workflow
// engine. Every call is converted into a Result value; transport failures,
// timeouts, and non-2xx statuses never surface as raised errors past this
// package.
package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"metagapura_portal_backend/platform/config"
	"metagapura_portal_backend/platform/logger"
)

// Endpoint names the engine entry points the portal can trigger.
type Endpoint string

const (
	EndpointCreateCampaign Endpoint = "create_campaign"
	EndpointTriggerSync    Endpoint = "trigger_sync"
	EndpointBroadcast      Endpoint = "broadcast"
	EndpointNotesSummary   Endpoint = "notes_summary"
)

// Result is the uniform outcome envelope for a dispatch attempt. OK is true
// only for a 2xx response; Body holds the raw response payload when one was
// read; TransportErr is set when the request never produced a response.
type Result struct {
	OK           bool
	Status       int
	Body         []byte
	TransportErr error
}

// Detail renders a short diagnostic string for logs and audit records.
func (r Result) Detail() string {
	if r.TransportErr != nil {
		return r.TransportErr.Error()
	}
	body := strings.TrimSpace(string(r.Body))
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("status %d: %s", r.Status, body)
}

// Client dispatches webhooks to the configured engine endpoints.
type Client struct {
	urls     map[Endpoint]string
	username string
	password string
	http     *http.Client
	log      *logger.Logger
}

func NewClient(cfg config.EngineConfig, log *logger.Logger) *Client {
	timeout := cfg.GetEngineTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	urls := map[Endpoint]string{
		EndpointCreateCampaign: strings.TrimSpace(cfg.GetEngineCreateURL()),
		EndpointTriggerSync:    strings.TrimSpace(cfg.GetEngineSyncURL()),
		EndpointBroadcast:      strings.TrimSpace(cfg.GetEngineBroadcastURL()),
		EndpointNotesSummary:   strings.TrimSpace(cfg.GetEngineSummaryURL()),
	}

	for endpoint, url := range urls {
		if url == "" {
			log.Warn("engine endpoint not configured", "endpoint", string(endpoint))
		}
	}

	return &Client{
		urls:     urls,
		username: cfg.GetEngineUsername(),
		password: cfg.GetEnginePassword(),
		http:     &http.Client{Timeout: timeout},
		log:      log,
	}
}

// Configured reports whether the endpoint has a URL bound to it.
func (c *Client) Configured(endpoint Endpoint) bool {
	return c != nil && c.urls[endpoint] != ""
}

// Dispatch POSTs a JSON payload to the named endpoint.
func (c *Client) Dispatch(ctx context.Context, endpoint Endpoint, payload any) Result {
	url := c.urls[endpoint]
	if url == "" {
		return Result{TransportErr: fmt.Errorf("engine endpoint %s not configured", endpoint)}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{TransportErr: fmt.Errorf("marshal engine payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{TransportErr: err}
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(endpoint, req)
}

// DispatchMultipart POSTs form fields plus an optional file part to the
// named endpoint. The file is attached under the "image" field when data is
// non-empty.
func (c *Client) DispatchMultipart(ctx context.Context, endpoint Endpoint, fields map[string]string, filename string, data []byte) Result {
	url := c.urls[endpoint]
	if url == "" {
		return Result{TransportErr: fmt.Errorf("engine endpoint %s not configured", endpoint)}
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return Result{TransportErr: fmt.Errorf("write form field %s: %w", key, err)}
		}
	}
	if len(data) > 0 {
		part, err := writer.CreateFormFile("image", filename)
		if err != nil {
			return Result{TransportErr: fmt.Errorf("create form file: %w", err)}
		}
		if _, err := part.Write(data); err != nil {
			return Result{TransportErr: fmt.Errorf("write form file: %w", err)}
		}
	}
	if err := writer.Close(); err != nil {
		return Result{TransportErr: fmt.Errorf("close multipart writer: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return Result{TransportErr: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(endpoint, req)
}

func (c *Client) do(endpoint Endpoint, req *http.Request) Result {
	if c.username != "" || c.password != "" {
		req.Header.Set("Authorization", basicAuthHeader(c.username, c.password))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		result := Result{TransportErr: err}
		c.log.WebhookDispatch(string(endpoint), 0, false, result.Detail())
		return result
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	result := Result{
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status: resp.StatusCode,
		Body:   body,
	}

	c.log.WebhookDispatch(string(endpoint), result.Status, result.OK, result.Detail())
	return result
}

func basicAuthHeader(username, password string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return "Basic " + encoded
}
