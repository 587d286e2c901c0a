package runway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const apiVersion = "2024-11-06"

// Task states reported by the service.
const (
	StatusPending   = "PENDING"
	StatusThrottled = "THROTTLED"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

var ErrMissingAPIKey = errors.New("runway api key is not configured")

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	sleep      func(context.Context, time.Duration) error
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		sleep: sleepContext,
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	c.httpClient = httpClient
	return c
}

// WithSleeper replaces the wait used between polls and retries.
func (c *Client) WithSleeper(sleep func(context.Context, time.Duration) error) *Client {
	c.sleep = sleep
	return c
}

func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

// ImageToVideoRequest is the body of POST /v1/image_to_video.
type ImageToVideoRequest struct {
	Model       string `json:"model"`
	PromptImage string `json:"promptImage"`
	PromptText  string `json:"promptText,omitempty"`
	Ratio       string `json:"ratio"`
	Duration    int    `json:"duration"`
}

type TaskCreated struct {
	ID string `json:"id"`
}

// Task is the body of GET /v1/tasks/{id} and of webhook deliveries.
type Task struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	CreatedAt   string          `json:"createdAt,omitempty"`
	Progress    float64         `json:"progress,omitempty"`
	Failure     string          `json:"failure,omitempty"`
	FailureCode string          `json:"failureCode,omitempty"`
	Output      json.RawMessage `json:"output,omitempty"`
}

// Terminal reports whether the task will not change state again.
func (t *Task) Terminal() bool {
	switch strings.ToUpper(t.Status) {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// OutputURL returns the first media URL found in the task output.
func (t *Task) OutputURL() string {
	return ExtractOutputURL(t.Output)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Runway-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) CreateImageToVideo(ctx context.Context, in ImageToVideoRequest) (*TaskCreated, error) {
	jsonData, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/v1/image_to_video", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("failed to create task: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result TaskCreated
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}
	if result.ID == "" {
		return nil, fmt.Errorf("failed to create task: empty task id, body: %s", string(body))
	}

	return &result, nil
}

func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/tasks/"+taskID, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get task: status %d, body: %s", resp.StatusCode, string(body))
	}

	var task Task
	if err := json.Unmarshal(body, &task); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	return &task, nil
}

// ErrWaitTimeout is returned when a task is still running after the wait budget.
var ErrWaitTimeout = errors.New("task did not finish before the wait timeout")

// WaitForTask polls the task every interval until it is terminal or timeout
// elapses. Transient status errors are retried with backoff.
func (c *Client) WaitForTask(ctx context.Context, taskID string, interval, timeout time.Duration) (*Task, error) {
	deadline := time.Now().Add(timeout)
	for {
		var task *Task
		err := c.RetryWithBackoff(ctx, func() error {
			var err error
			task, err = c.GetTask(ctx, taskID)
			return err
		}, 3)
		if err != nil {
			return nil, err
		}
		if task.Terminal() {
			return task, nil
		}
		if time.Now().Add(interval).After(deadline) {
			return task, ErrWaitTimeout
		}
		if err := c.sleep(ctx, interval); err != nil {
			return task, err
		}
	}
}

// RetryWithBackoff retries fn with exponential backoff starting at one second.
func (c *Client) RetryWithBackoff(ctx context.Context, fn func() error, maxRetries int) error {
	var lastErr error
	backoff := time.Second

	for i := 0; i < maxRetries; i++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrMissingAPIKey) {
			return lastErr
		}

		if i < maxRetries-1 {
			if err := c.sleep(ctx, backoff); err != nil {
				return err
			}
			backoff *= 2
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
