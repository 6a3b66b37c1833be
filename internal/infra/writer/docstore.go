package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"feedbrief/internal/domain/entity"
	"feedbrief/internal/resilience/circuitbreaker"
)

// DocStoreConfig contains configuration for the remote document store writer.
type DocStoreConfig struct {
	// BaseURL is the document store endpoint, e.g. "https://docs.internal/api".
	BaseURL string

	// APIToken authenticates requests when set.
	APIToken string

	// Timeout is the HTTP request timeout per call.
	Timeout time.Duration
}

// DocStore posts bucket documents to a remote document store.
type DocStore struct {
	cfg        DocStoreConfig
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
}

// NewDocStore creates a document store writer.
func NewDocStore(cfg DocStoreConfig, client *http.Client) *DocStore {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &DocStore{
		cfg:        cfg,
		httpClient: client,
		breaker:    circuitbreaker.New(circuitbreaker.DocStoreConfig()),
	}
}

// document is the JSON payload posted for each bucket.
type document struct {
	Channel     string        `json:"channel"`
	Bucket      string        `json:"bucket"`
	Summary     string        `json:"summary,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
	Items       []documentRow `json:"items"`
}

type documentRow struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// ClientError represents a 4xx response from the document store.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("document store client error (%d): %s", e.StatusCode, e.Message)
}

// ServerError represents a 5xx response from the document store.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("document store server error (%d): %s", e.StatusCode, e.Message)
}

// Write posts the bucket as one document. Non-2xx responses are turned
// into typed errors so callers can distinguish client from server
// failures.
func (d *DocStore) Write(ctx context.Context, channel string, bucket *entity.Bucket) error {
	_, err := d.breaker.Execute(func() (interface{}, error) {
		return nil, d.post(ctx, channel, bucket)
	})
	return err
}

func (d *DocStore) post(ctx context.Context, channel string, bucket *entity.Bucket) error {
	doc := document{
		Channel:     channel,
		Bucket:      bucket.Name,
		Summary:     bucket.Summary,
		GeneratedAt: time.Now(),
		Items:       make([]documentRow, 0, len(bucket.Records)),
	}
	for _, r := range bucket.Records {
		doc.Items = append(doc.Items, documentRow{
			Title:       r.Title,
			Link:        r.Link,
			Source:      r.SourceTitle,
			PublishedAt: r.PublishedAt,
		})
	}

	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.BaseURL+"/documents", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+d.cfg.APIToken)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		slog.Debug("document posted",
			slog.String("channel", channel),
			slog.String("bucket", bucket.Name),
			slog.Int("status", resp.StatusCode))
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &ClientError{StatusCode: resp.StatusCode, Message: string(body)}
	case resp.StatusCode >= 500:
		return &ServerError{StatusCode: resp.StatusCode, Message: string(body)}
	default:
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}
}

// Ping checks the document store health endpoint.
func (d *DocStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("document store unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("document store health check failed: status %d", resp.StatusCode)
	}
	return nil
}
