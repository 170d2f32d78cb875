// Package decompile talks to a remote bytecode decompilation service that
// follows an asynchronous job pattern: upload a payload, poll the job until it
// reaches the "done" stage, then fetch the reconstructed source.
package decompile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/asynkron/edpatch/internal/logging"
)

// StageDone is the terminal stage reported by the progress endpoint.
const StageDone = "done"

const maxResponseBytes = 32 << 20

// ServiceError is returned when the service rejects a request or answers with
// something the client cannot use. Message is the server supplied text when
// there is one.
type ServiceError struct {
	Op         string
	Message    string
	StatusCode int
}

func (e *ServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("decompile: %s: %s (status %d)", e.Op, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("decompile: %s: %s", e.Op, e.Message)
}

// Client is a small HTTP client for the decompilation service.
type Client struct {
	BaseURL      string
	HTTPClient   *http.Client
	PollInterval time.Duration
	Retry        *RetryConfig
	Logger       logging.Logger
}

// NewClient returns a Client with default polling and retry settings.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		HTTPClient:   &http.Client{Timeout: timeout},
		PollInterval: time.Second,
		Retry:        DefaultRetryConfig(),
		Logger:       &logging.NoOpLogger{},
	}
}

type uploadResponse struct {
	Success    bool   `json:"success"`
	Identifier string `json:"identifier"`
	Message    string `json:"message"`
}

type progressResponse struct {
	Success bool   `json:"success"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

type viewResponse struct {
	EditorContent struct {
		EditorTabs []struct {
			EditorContent string `json:"editor_content"`
		} `json:"editor_tabs"`
	} `json:"editor_content"`
}

// Upload submits payload as the multipart field "file" and returns the job
// identifier.
func (c *Client) Upload(ctx context.Context, name string, payload []byte) (string, error) {
	if name == "" {
		name = "file.pyc"
	}
	build := func() (*http.Request, error) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", name)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(payload); err != nil {
			return nil, err
		}
		if err := mw.Close(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/upload", &body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req, nil
	}

	var resp uploadResponse
	if err := c.do(ctx, "upload", build, uploadSchema, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", &ServiceError{Op: "upload", Message: messageOr(resp.Message, "Unknown error during upload")}
	}
	if strings.TrimSpace(resp.Identifier) == "" {
		return "", &ServiceError{Op: "upload", Message: "response did not include an identifier"}
	}
	c.logger().Debug(ctx, "payload uploaded", logging.F("identifier", resp.Identifier), logging.F("bytes", len(payload)))
	return resp.Identifier, nil
}

// Progress returns the current stage of job id.
func (c *Client) Progress(ctx context.Context, id string) (string, error) {
	var resp progressResponse
	if err := c.do(ctx, "progress", c.getter(ctx, "/get_progress", id), progressSchema, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", &ServiceError{Op: "progress", Message: messageOr(resp.Message, "Error checking progress")}
	}
	if strings.TrimSpace(resp.Stage) == "" {
		return "", &ServiceError{Op: "progress", Message: "response did not include a stage"}
	}
	return resp.Stage, nil
}

// Wait polls job id until it reaches StageDone. onStage, when non-nil, is
// called with every stage observed.
func (c *Client) Wait(ctx context.Context, id string, onStage func(string)) error {
	interval := c.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	for {
		stage, err := c.Progress(ctx, id)
		if err != nil {
			return err
		}
		if onStage != nil {
			onStage(stage)
		}
		if stage == StageDone {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("decompile: waiting for %s: %w", id, ctx.Err())
		case <-time.After(interval):
		}
	}
}

// Fetch returns the reconstructed source of a finished job.
func (c *Client) Fetch(ctx context.Context, id string) (string, error) {
	var resp viewResponse
	if err := c.do(ctx, "view", c.getter(ctx, "/view", id), viewSchema, &resp); err != nil {
		return "", err
	}
	return resp.EditorContent.EditorTabs[0].EditorContent, nil
}

// Decompile runs the whole job: upload, wait and fetch.
func (c *Client) Decompile(ctx context.Context, name string, payload []byte, onStage func(string)) (string, error) {
	id, err := c.Upload(ctx, name, payload)
	if err != nil {
		return "", err
	}
	if err := c.Wait(ctx, id, onStage); err != nil {
		return "", err
	}
	return c.Fetch(ctx, id)
}

func (c *Client) getter(ctx context.Context, path, id string) func() (*http.Request, error) {
	return func() (*http.Request, error) {
		target := c.BaseURL + path + "?identifier=" + url.QueryEscape(id)
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	}
}

func (c *Client) do(ctx context.Context, op string, build func() (*http.Request, error), schema gojsonschema.JSONLoader, out any) error {
	var body []byte
	err := withRetry(ctx, c.Retry, func() error {
		req, err := build()
		if err != nil {
			return fmt.Errorf("decompile: %s: build request: %w", op, err)
		}
		resp, err := c.httpClient().Do(req)
		if err != nil {
			c.logger().Warn(ctx, "request failed", logging.F("op", op), logging.F("error", err))
			return &requestError{err: err, transient: transientNetError(err)}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return &requestError{err: err, transient: true}
		}
		if resp.StatusCode >= 400 {
			if transientStatus(resp.StatusCode) {
				return &requestError{err: errors.New(http.StatusText(resp.StatusCode)), status: resp.StatusCode, transient: true}
			}
			return &ServiceError{Op: op, Message: errorMessage(data, resp.StatusCode), StatusCode: resp.StatusCode}
		}
		body = data
		return nil
	})
	if err != nil {
		var se *ServiceError
		if errors.As(err, &se) {
			return se
		}
		return fmt.Errorf("decompile: %s: %w", op, err)
	}

	if err := validateResponse(schema, body); err != nil {
		return &ServiceError{Op: op, Message: "unexpected response: " + err.Error()}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ServiceError{Op: op, Message: "unexpected response: " + err.Error()}
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) logger() logging.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return &logging.NoOpLogger{}
}

// errorMessage prefers a "message" field from a JSON error body.
func errorMessage(body []byte, status int) string {
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && strings.TrimSpace(payload.Message) != "" {
		return payload.Message
	}
	return http.StatusText(status)
}

func messageOr(message, fallback string) string {
	if strings.TrimSpace(message) == "" {
		return fallback
	}
	return message
}
