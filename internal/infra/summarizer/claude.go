package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"feedbrief/internal/domain/entity"
	"feedbrief/internal/resilience/circuitbreaker"
)

// Claude summarizes buckets through Anthropic's Messages API.
type Claude struct {
	client  anthropic.Client
	breaker *circuitbreaker.CircuitBreaker
	limiter *rate.Limiter
	cfg     Config
}

// NewClaude creates a Claude summarizer with the given API key.
func NewClaude(apiKey string, cfg Config) *Claude {
	if cfg.Model == "" {
		cfg.Model = string(anthropic.ModelClaudeSonnet4_5_20250929)
	}

	slog.Info("claude summarizer initialized",
		slog.String("model", cfg.Model),
		slog.Int("character_limit", cfg.CharacterLimit),
		slog.String("language", cfg.Language))

	return &Claude{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		breaker: circuitbreaker.New(circuitbreaker.ModelAPIConfig()),
		limiter: rate.NewLimiter(rate.Every(cfg.perRequestInterval()), 1),
		cfg:     cfg,
	}
}

// SummarizeBucket generates a summary of the bucket's records.
func (c *Claude) SummarizeBucket(ctx context.Context, bucket *entity.Bucket) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("claude rate limiter: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doSummarize(ctx, bucket)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			slog.Warn("claude call rejected, circuit breaker open",
				slog.String("state", c.breaker.State().String()))
			return "", fmt.Errorf("claude api unavailable: circuit breaker open")
		}
		return "", err
	}
	return result.(string), nil
}

func (c *Claude) doSummarize(ctx context.Context, bucket *entity.Bucket) (string, error) {
	prompt := buildPrompt(bucket, c.cfg)
	start := time.Now()

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: int64(c.cfg.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude api error: %w", err)
	}
	if len(message.Content) == 0 {
		return "", fmt.Errorf("claude api returned empty response")
	}

	block, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return "", fmt.Errorf("claude api returned unexpected content type")
	}

	slog.Debug("bucket summarized",
		slog.String("bucket", bucket.Name),
		slog.Int("summary_length", len(block.Text)),
		slog.Duration("duration", time.Since(start)))

	return block.Text, nil
}

// Ping verifies connectivity by listing available models.
func (c *Claude) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := c.client.Models.List(ctx, anthropic.ModelListParams{}); err != nil {
		return fmt.Errorf("claude ping: %w", err)
	}
	return nil
}
