// Package summarizer provides language-model collaborators that turn a
// bucket of records into a short digest summary. Adapters exist for the
// Anthropic and OpenAI APIs plus a local no-op fallback; all of them are
// rate-limited and circuit-broken. Retry is owned by the pipeline.
package summarizer

import (
	"fmt"
	"log/slog"
	"time"

	pkgconfig "feedbrief/internal/pkg/config"
)

// Config holds the shared summarizer parameters.
type Config struct {
	// CharacterLimit is the maximum summary length requested from the model.
	CharacterLimit int

	// Language is the target language for summaries.
	Language string

	// Model overrides the provider's default model identifier when set.
	Model string

	// MaxTokens bounds the model response.
	MaxTokens int

	// RequestsPerMinute throttles model calls across the whole process.
	RequestsPerMinute int
}

const (
	defaultCharLimit = 600
	minCharLimit     = 100
	maxCharLimit     = 5000
)

// LoadConfig loads summarizer settings from the environment, falling back
// to defaults on invalid values.
//
// Environment variables:
//   - SUMMARIZER_CHAR_LIMIT: summary length limit (default 600, range 100-5000)
//   - SUMMARIZER_LANGUAGE: target language (default "english")
//   - SUMMARIZER_MODEL: provider model identifier (default per provider)
//   - SUMMARIZER_RPM: model calls per minute (default 30, range 1-600)
func LoadConfig() Config {
	charLimit := pkgconfig.Int("SUMMARIZER_CHAR_LIMIT", defaultCharLimit, func(v int) error {
		return pkgconfig.ValidateIntRange(v, minCharLimit, maxCharLimit)
	})
	rpm := pkgconfig.Int("SUMMARIZER_RPM", 30, func(v int) error {
		return pkgconfig.ValidateIntRange(v, 1, 600)
	})

	for _, result := range []pkgconfig.LoadResult[int]{charLimit, rpm} {
		if result.FallbackApplied {
			slog.Warn("summarizer configuration fallback applied", slog.String("warning", result.Warning))
		}
	}

	return Config{
		CharacterLimit:    charLimit.Value,
		Language:          pkgconfig.String("SUMMARIZER_LANGUAGE", "english"),
		Model:             pkgconfig.String("SUMMARIZER_MODEL", ""),
		MaxTokens:         1024,
		RequestsPerMinute: rpm.Value,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := pkgconfig.ValidateIntRange(c.CharacterLimit, minCharLimit, maxCharLimit); err != nil {
		return fmt.Errorf("character limit: %w", err)
	}
	if c.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	if c.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests per minute must be positive, got %d", c.RequestsPerMinute)
	}
	return nil
}

// perRequestInterval converts the rate limit to a limiter interval.
func (c Config) perRequestInterval() time.Duration {
	return time.Minute / time.Duration(c.RequestsPerMinute)
}
