// Package subgraph reads funding rounds, contributor messages and recipients
// from the indexing service's GraphQL endpoint.
package subgraph

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

	"github.com/ethereum/go-ethereum/log"
)

var (
	ErrMissingURL       = errors.New("subgraph URL is required")
	ErrUnexpectedStatus = errors.New("unexpected subgraph response status")
)

// Config holds subgraph client settings
type Config struct {
	URL string

	// PageSize is the number of entities requested per page.
	PageSize int

	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// IPFSGateway prefixes image hashes found in recipient metadata.
	IPFSGateway string
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		PageSize:     1000,
		Timeout:      30 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 500 * time.Millisecond,
		IPFSGateway:  "https://ipfs.io/ipfs/",
	}
}

// Client is a minimal GraphQL client for the indexing service.
type Client struct {
	config     *Config
	httpClient *http.Client
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// QueryError carries the errors reported by the GraphQL endpoint.
type QueryError struct {
	Messages []string
}

func (e *QueryError) Error() string {
	return "subgraph query failed: " + strings.Join(e.Messages, "; ")
}

// NewClient creates a client for config.URL.
func NewClient(config *Config) (*Client, error) {
	if config == nil || config.URL == "" {
		return nil, ErrMissingURL
	}
	if config.PageSize <= 0 {
		config.PageSize = DefaultConfig().PageSize
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Query runs a GraphQL query and decodes its data into out. Transport errors
// and 5xx/429 responses are retried up to MaxRetries times.
func (c *Client) Query(ctx context.Context, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("encode query: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Debug("Retrying subgraph query", "attempt", attempt, "err", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.RetryBackoff * time.Duration(attempt)):
			}
		}

		data, retry, err := c.do(ctx, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("decode query data: %w", err)
			}
			return nil
		}
		if !retry || ctx.Err() != nil {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("subgraph query failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *Client) do(ctx context.Context, body []byte) (json.RawMessage, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("subgraph request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		retry := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retry, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var gr graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}
	if len(gr.Errors) > 0 {
		qe := &QueryError{}
		for _, e := range gr.Errors {
			qe.Messages = append(qe.Messages, e.Message)
		}
		return nil, false, qe
	}
	return gr.Data, false, nil
}
