package summarizer

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedbrief/internal/domain/entity"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("SUMMARIZER_CHAR_LIMIT", "")
	t.Setenv("SUMMARIZER_RPM", "")
	t.Setenv("SUMMARIZER_LANGUAGE", "")

	cfg := LoadConfig()

	assert.Equal(t, 600, cfg.CharacterLimit)
	assert.Equal(t, 30, cfg.RequestsPerMinute)
	assert.Equal(t, "english", cfg.Language)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SUMMARIZER_CHAR_LIMIT", "10")
	t.Setenv("SUMMARIZER_RPM", "not-a-number")

	cfg := LoadConfig()

	assert.Equal(t, 600, cfg.CharacterLimit)
	assert.Equal(t, 30, cfg.RequestsPerMinute)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{CharacterLimit: 600, Language: "english", MaxTokens: 1024, RequestsPerMinute: 30}
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Language = ""
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.MaxTokens = 0
	assert.Error(t, bad.Validate())
}

func TestBuildPrompt(t *testing.T) {
	bucket := &entity.Bucket{
		Name: "tech/ai",
		Records: []*entity.Record{
			{Title: "Model release", SourceTitle: "AI Weekly", Description: "A new model shipped."},
			{Title: "Benchmark results", SourceTitle: "Research Blog"},
		},
		Count: 2,
	}
	cfg := Config{CharacterLimit: 600, Language: "english"}

	prompt := buildPrompt(bucket, cfg)

	assert.Contains(t, prompt, `"tech/ai"`)
	assert.Contains(t, prompt, "600 characters")
	assert.Contains(t, prompt, "- Model release (AI Weekly)")
	assert.Contains(t, prompt, "A new model shipped.")
	assert.Contains(t, prompt, "- Benchmark results (Research Blog)")
}

func TestBuildPrompt_TruncatesOversizedBuckets(t *testing.T) {
	long := strings.Repeat("x", 200)
	records := make([]*entity.Record, 200)
	for i := range records {
		records[i] = &entity.Record{Title: long, SourceTitle: "src", Description: long}
	}
	bucket := &entity.Bucket{Name: "big", Records: records, Count: len(records)}

	prompt := buildPrompt(bucket, Config{CharacterLimit: 600, Language: "english"})

	assert.LessOrEqual(t, len(prompt), maxPromptChars+100)
	assert.Contains(t, prompt, "(remaining items omitted)")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))

	// A cut falling inside a multibyte rune backs up to the boundary.
	assert.Equal(t, "速...", truncate("速報です", 4))
	for limit := 1; limit < 12; limit++ {
		assert.True(t, utf8.ValidString(truncate("速報です", limit)),
			"limit %d must not split a rune", limit)
	}
}

func TestNoopSummarizer(t *testing.T) {
	n := NewNoop()
	require.NoError(t, n.Ping(context.Background()))

	single := &entity.Bucket{
		Name:    "watch",
		Records: []*entity.Record{{Title: "Security advisory"}},
		Count:   1,
	}
	got, err := n.SummarizeBucket(context.Background(), single)
	require.NoError(t, err)
	assert.Equal(t, "1 item in watch: Security advisory", got)

	many := &entity.Bucket{Name: "tech", Count: 5}
	got, err = n.SummarizeBucket(context.Background(), many)
	require.NoError(t, err)
	assert.Equal(t, "5 items in tech", got)
}
