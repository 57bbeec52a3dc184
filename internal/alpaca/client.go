// Package alpaca is a minimal REST client for the Alpaca trading API:
// account, assets, positions, portfolio history, clock, and order
// submission. Requests are serialised through a single rate-limiting
// worker goroutine, the same queue-and-worker shape the teacher's
// Tradernet SDK client uses for its own broker.
package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	minRequestInterval = 200 * time.Millisecond
	requestQueueSize   = 100
)

type requestJob struct {
	ctx      context.Context
	method   string
	path     string
	body     interface{}
	resultCh chan requestResult
}

type requestResult struct {
	status int
	body   []byte
	err    error
}

// Client is a rate-limited Alpaca REST client.
type Client struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger

	queue    chan requestJob
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce chan struct{}
}

// New creates an Alpaca client targeting baseURL (paper or live endpoint,
// selected by the caller from config) and starts its rate-limiting worker.
func New(apiKey, apiSecret, baseURL string, log zerolog.Logger) *Client {
	c := &Client{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With().Str("component", "alpaca-client").Logger(),
		queue:      make(chan requestJob, requestQueueSize),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	go c.worker()
	return c
}

// Close drains the queue and stops the worker goroutine.
func (c *Client) Close() {
	select {
	case <-c.stopCh:
		return
	default:
	}
	close(c.stopCh)
	<-c.doneCh
}

func (c *Client) worker() {
	defer close(c.doneCh)
	var last time.Time
	first := true

	process := func(job requestJob) {
		if !first {
			if elapsed := time.Since(last); elapsed < minRequestInterval {
				time.Sleep(minRequestInterval - elapsed)
			}
		}
		first = false
		status, body, err := c.do(job.ctx, job.method, job.path, job.body)
		last = time.Now()
		job.resultCh <- requestResult{status: status, body: body, err: err}
	}

	for {
		select {
		case <-c.stopCh:
			for {
				select {
				case job := <-c.queue:
					process(job)
				default:
					return
				}
			}
		case job := <-c.queue:
			process(job)
		}
	}
}

func (c *Client) call(ctx context.Context, method, path string, body interface{}) ([]byte, int, error) {
	resultCh := make(chan requestResult, 1)
	job := requestJob{ctx: ctx, method: method, path: path, body: body, resultCh: resultCh}

	select {
	case c.queue <- job:
	case <-c.stopCh:
		return nil, 0, fmt.Errorf("alpaca client is closed")
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	default:
		select {
		case c.queue <- job:
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}

	select {
	case res := <-resultCh:
		return res.body, res.status, res.err
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", c.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", c.apiSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("transport error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// StatusError is returned when the broker responds with a non-2xx status.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("alpaca returned status %d: %s", e.Status, e.Body)
}

func checkStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	bodyStr := string(body)
	if len(bodyStr) > 500 {
		bodyStr = bodyStr[:500] + "..."
	}
	return &StatusError{Status: status, Body: bodyStr}
}
