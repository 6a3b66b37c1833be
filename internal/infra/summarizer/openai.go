package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"feedbrief/internal/domain/entity"
	"feedbrief/internal/resilience/circuitbreaker"
)

// OpenAI summarizes buckets through the chat completions API.
type OpenAI struct {
	client  *openai.Client
	breaker *circuitbreaker.CircuitBreaker
	limiter *rate.Limiter
	cfg     Config
}

// NewOpenAI creates an OpenAI summarizer with the given API key.
func NewOpenAI(apiKey string, cfg Config) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}

	slog.Info("openai summarizer initialized",
		slog.String("model", cfg.Model),
		slog.Int("character_limit", cfg.CharacterLimit),
		slog.String("language", cfg.Language))

	return &OpenAI{
		client:  openai.NewClient(apiKey),
		breaker: circuitbreaker.New(circuitbreaker.ModelAPIConfig()),
		limiter: rate.NewLimiter(rate.Every(cfg.perRequestInterval()), 1),
		cfg:     cfg,
	}
}

// SummarizeBucket generates a summary of the bucket's records.
func (o *OpenAI) SummarizeBucket(ctx context.Context, bucket *entity.Bucket) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("openai rate limiter: %w", err)
	}

	result, err := o.breaker.Execute(func() (interface{}, error) {
		return o.doSummarize(ctx, bucket)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			slog.Warn("openai call rejected, circuit breaker open",
				slog.String("state", o.breaker.State().String()))
			return "", fmt.Errorf("openai api unavailable: circuit breaker open")
		}
		return "", err
	}
	return result.(string), nil
}

func (o *OpenAI) doSummarize(ctx context.Context, bucket *entity.Bucket) (string, error) {
	prompt := buildPrompt(bucket, o.cfg)
	start := time.Now()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.cfg.Model,
		MaxTokens: o.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai api returned no choices")
	}

	slog.Debug("bucket summarized",
		slog.String("bucket", bucket.Name),
		slog.Int("summary_length", len(resp.Choices[0].Message.Content)),
		slog.Duration("duration", time.Since(start)))

	return resp.Choices[0].Message.Content, nil
}

// Ping verifies connectivity by listing available models.
func (o *OpenAI) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := o.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai ping: %w", err)
	}
	return nil
}
