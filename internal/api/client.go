package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apphandlers "github.com/pursuitlab/roadchase/internal/handlers"
	"github.com/pursuitlab/roadchase/internal/storage"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// Client reads runs and status from a running chasesim.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the server is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// ListRuns returns the newest runs first. limit <= 0 returns all.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	path := "/runs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []RunSummary
	return out, c.get(ctx, path, &out)
}

// GetRun returns one run with its track. A missing run wraps storage.ErrRunNotFound.
func (c *Client) GetRun(ctx context.Context, id string) (RunSummary, error) {
	var out RunSummary
	return out, c.get(ctx, "/runs/"+url.PathEscape(id), &out)
}

// RunFrames returns the recorded samples of a run.
func (c *Client) RunFrames(ctx context.Context, id string) ([]core.FrameSample, error) {
	var out []core.FrameSample
	return out, c.get(ctx, "/runs/"+url.PathEscape(id)+"/frames", &out)
}

// RunEvents returns the recorded events of a run.
func (c *Client) RunEvents(ctx context.Context, id string) ([]core.FrameEvent, error) {
	var out []core.FrameEvent
	return out, c.get(ctx, "/runs/"+url.PathEscape(id)+"/events", &out)
}

// Status returns the live snapshot of the frame loop.
func (c *Client) Status(ctx context.Context) (apphandlers.Status, error) {
	var out apphandlers.Status
	return out, c.get(ctx, "/status", &out)
}

// Reset restarts the chase, reseeding first when seed is non-nil.
func (c *Client) Reset(ctx context.Context, seed *uint64) error {
	return c.post(ctx, "/control/reset", ControlRequest{Seed: seed}, nil)
}

// SetSpeed applies a speed factor and returns the clamped value in effect.
func (c *Client) SetSpeed(ctx context.Context, factor float64) (float64, error) {
	var out struct {
		Result float64 `json:"result"`
	}
	err := c.post(ctx, "/control/speed", ControlRequest{Factor: &factor}, &out)
	return out.Result, err
}

// SetColor changes the car colour and returns the normalized value.
func (c *Client) SetColor(ctx context.Context, color string) (string, error) {
	var out struct {
		Result string `json:"result"`
	}
	err := c.post(ctx, "/control/color", ControlRequest{Color: color}, &out)
	return out.Result, err
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		err := fmt.Errorf("%s returned status %d: %s", req.URL.Path, resp.StatusCode, msg)
		if resp.StatusCode == http.StatusNotFound {
			err = fmt.Errorf("%w: %s", storage.ErrRunNotFound, msg)
		}
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", req.URL.Path, err)
	}
	return nil
}

// IsNotFound reports whether err means the run does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrRunNotFound)
}
