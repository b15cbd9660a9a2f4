package backend

import (
	"context"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	m3errors "github.com/m3-mcp/m3/internal/errors"
	"github.com/m3-mcp/m3/internal/retry"
)

// clientCreateRetry bounds the transient failures (DNS blips, auth token
// refresh races) that can surface while dialing a fresh BigQuery client.
var clientCreateRetry = retry.Config{
	MaxRetries:     3,
	InitialBackoff: 200 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
	Jitter:         0.2,
}

// clientCache is a package-level cache of BigQuery clients keyed by
// project, guarded by a mutex, populated lazily on first use. This is the
// direct analogue of the teacher's mesh-registry caches and the design
// note's "BigQuery client cache + lazy init" guidance.
var clientCache = struct {
	mu      sync.Mutex
	clients map[string]*bigquery.Client
}{clients: map[string]*bigquery.Client{}}

func getOrCreateClient(ctx context.Context, project string) (*bigquery.Client, error) {
	clientCache.mu.Lock()
	defer clientCache.mu.Unlock()

	if client, ok := clientCache.clients[project]; ok {
		return client, nil
	}

	var client *bigquery.Client
	err := retry.Do(ctx, clientCreateRetry, func() error {
		c, err := bigquery.NewClient(ctx, project)
		if err != nil {
			return err
		}
		client = c
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}

	clientCache.clients[project] = client
	return client, nil
}

// Cloud addresses a BigQuery warehouse hosting the same logical schema.
// The client is created lazily on first use and cached by project.
type Cloud struct {
	project string

	mu     sync.Mutex
	client *bigquery.Client
	state  State
}

// NewCloud constructs a Cloud backend for the given billing/auth project.
func NewCloud(project string) *Cloud {
	return &Cloud{project: project, state: StateUninitialized}
}

func (c *Cloud) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, err := getOrCreateClient(ctx, c.project)
	if err != nil {
		return m3errors.Wrap(m3errors.KindInitialization, "failed to create BigQuery client for project "+c.project, err)
	}
	c.client = client
	c.state = StateOpen
	return nil
}

func (c *Cloud) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	// The client is shared via clientCache; Cloud.Close only marks this
	// handle closed, it does not tear down the cached client, since other
	// Cloud values for the same project may still be open.
	c.client = nil
	c.state = StateClosed
	return nil
}

func (c *Cloud) Execute(ctx context.Context, sql string) (string, error) {
	c.mu.Lock()
	client := c.client
	state := c.state
	c.mu.Unlock()

	if state != StateOpen || client == nil {
		return "", m3errors.Validation("cloud backend is not open")
	}

	q := client.Query(sql)
	it, err := q.Read(ctx)
	if err != nil {
		return "", m3errors.Validation("cloud backend execution failed: %v", err)
	}

	var columns []string
	var results [][]any
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", m3errors.Validation("cloud backend execution failed: %v", err)
		}
		if columns == nil {
			for _, field := range it.Schema {
				columns = append(columns, field.Name)
			}
		}
		values := make([]any, len(row))
		for i, v := range row {
			values[i] = v
		}
		results = append(results, values)
	}

	return FormatResult(columns, results), nil
}

func (c *Cloud) ToDict() map[string]any {
	return map[string]any{"type": "cloud", "params": map[string]any{"project": c.project}}
}

func (c *Cloud) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Project returns the backend's billing/auth project, used by the MIMIC
// tool to render the backend-info banner.
func (c *Cloud) Project() string {
	return c.project
}
