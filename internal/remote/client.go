// Package remote is the HTTP client side of the sync engine: it implements
// engine.Gateway and engine.Uploader against the task API, translating
// transport and status failures into the engine's error taxonomy.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cadence/internal/engine"
	"cadence/internal/model"
	"cadence/internal/task"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

type apiError struct {
	Error string `json:"error"`
}

// do runs one request and decodes a 2xx JSON body into out (out may be nil).
// Non-2xx statuses become ValidationError, ConflictError or NetworkError.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &engine.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &engine.NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}

	msg := readAPIError(resp.Body)
	switch resp.StatusCode {
	case http.StatusBadRequest:
		return &engine.ValidationError{Message: msg}
	case http.StatusNotFound, http.StatusConflict:
		return &engine.ConflictError{Op: op, Message: msg}
	default:
		return &engine.NetworkError{Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, msg)}
	}
}

func readAPIError(r io.Reader) string {
	var ae apiError
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&ae); err == nil && ae.Error != "" {
		return ae.Error
	}
	return "request failed"
}

func (c *Client) CreateEntity(ctx context.Context, fields model.RecurringTask) (model.RecurringTask, error) {
	var out model.RecurringTask
	if err := c.do(ctx, "create task", http.MethodPost, "/api/recurring", fields, &out); err != nil {
		return model.RecurringTask{}, err
	}
	return out, nil
}

func (c *Client) PatchEntity(ctx context.Context, id model.TaskID, patch model.TaskPatch) (model.RecurringTask, error) {
	var out model.RecurringTask
	err := c.do(ctx, "patch task", http.MethodPatch, "/api/recurring/"+string(id), patch, &out)
	if err != nil {
		return model.RecurringTask{}, err
	}
	return out, nil
}

func (c *Client) DeleteEntity(ctx context.Context, id model.TaskID) error {
	return c.do(ctx, "delete task", http.MethodDelete, "/api/recurring/"+string(id), nil, nil)
}

func (c *Client) BulkDeleteEntities(ctx context.Context, ids []model.TaskID) (engine.BulkDeleteResult, error) {
	in := task.BulkDeleteRequest{IDs: make([]string, 0, len(ids))}
	for _, id := range ids {
		in.IDs = append(in.IDs, string(id))
	}

	var out task.BulkDeleteResponse
	if err := c.do(ctx, "bulk delete", http.MethodPost, "/api/recurring/bulk-delete", in, &out); err != nil {
		return engine.BulkDeleteResult{}, err
	}
	return engine.BulkDeleteResult{Succeeded: out.Succeeded, Failed: out.Failed}, nil
}

func (c *Client) ToggleActive(ctx context.Context, id model.TaskID) (bool, error) {
	var out model.RecurringTask
	err := c.do(ctx, "toggle active", http.MethodPost, "/api/recurring/"+string(id)+"/active", nil, &out)
	if err != nil {
		return false, err
	}
	return out.Active, nil
}

func (c *Client) RegisterAttachment(ctx context.Context, id model.TaskID, meta model.Attachment) (model.Attachment, error) {
	var out model.Attachment
	err := c.do(ctx, "register attachment", http.MethodPost, "/api/recurring/"+string(id)+"/attachments", meta, &out)
	if err != nil {
		return model.Attachment{}, err
	}
	return out, nil
}

func (c *Client) RemoveAttachment(ctx context.Context, id model.TaskID, attachmentID string) error {
	return c.do(ctx, "remove attachment", http.MethodDelete,
		"/api/recurring/"+string(id)+"/attachments/"+attachmentID, nil, nil)
}

// Upload sends the raw payload to the blob endpoint and returns the URL the
// server will serve it under.
func (c *Client) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	const op = "upload blob"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/blobs", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Blob-Name", name)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &engine.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg := readAPIError(resp.Body)
		if resp.StatusCode == http.StatusBadRequest {
			return "", &engine.ValidationError{Field: "attachments", Message: msg}
		}
		return "", &engine.NetworkError{Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, msg)}
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &engine.NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return c.baseURL + out.URL, nil
}
