package mock

import (
	"context"
	"sync"
	"time"

	"github.com/kitbuilder587/crawldock/internal/search"
)

// Client - подставной движок для тестов оркестратора
type Client struct {
	EngineName string
	Results    []search.Result
	Error      error
	Delay      time.Duration
	// Unconfigured = движок без ключей, как google без API key
	Unconfigured bool

	CallCount   int
	LastRequest search.Request
	AllRequests []search.Request

	mu sync.Mutex
}

func New(name string) *Client {
	return &Client{EngineName: name}
}

func (c *Client) WithResults(results ...search.Result) *Client {
	c.Results = results
	return c
}

func (c *Client) WithError(err error) *Client {
	c.Error = err
	return c
}

func (c *Client) WithDelay(delay time.Duration) *Client {
	c.Delay = delay
	return c
}

func (c *Client) WithUnconfigured() *Client {
	c.Unconfigured = true
	return c
}

func (c *Client) Name() string {
	return c.EngineName
}

func (c *Client) IsConfigured() bool {
	return !c.Unconfigured
}

func (c *Client) Search(ctx context.Context, req search.Request) (*search.Response, error) {
	c.mu.Lock()
	c.CallCount++
	c.LastRequest = req
	c.AllRequests = append(c.AllRequests, req)
	delay := c.Delay
	err := c.Error
	results := c.Results
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if err != nil {
		return nil, err
	}

	if limit := req.Options.MaxResults; limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return &search.Response{
		Query:            req.Query,
		Results:          append([]search.Result(nil), results...),
		SearchEngine:     c.EngineName,
		Timestamp:        time.Now().UTC(),
		ProcessingTimeMs: delay.Milliseconds(),
	}, nil
}

func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CallCount
}

func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCount = 0
	c.LastRequest = search.Request{}
	c.AllRequests = nil
}
