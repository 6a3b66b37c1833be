package summarizer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"feedbrief/internal/domain/entity"
)

const (
	// maxPromptChars keeps prompts well under provider token limits.
	maxPromptChars = 10000

	// maxDescriptionChars bounds each record's contribution to the prompt.
	maxDescriptionChars = 300
)

// buildPrompt renders one bucket into a summarization prompt: an
// instruction line followed by one entry per record, truncated to stay
// inside maxPromptChars.
func buildPrompt(bucket *entity.Bucket, cfg Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the following %q news items in %s, in at most %d characters. Highlight shared themes; do not list every item.\n\n",
		bucket.Name, cfg.Language, cfg.CharacterLimit)

	for _, r := range bucket.Records {
		entry := fmt.Sprintf("- %s (%s)\n", r.Title, r.SourceTitle)
		if desc := truncate(r.Description, maxDescriptionChars); desc != "" {
			entry += "  " + desc + "\n"
		}
		if b.Len()+len(entry) > maxPromptChars {
			b.WriteString("(remaining items omitted)\n")
			break
		}
		b.WriteString(entry)
	}

	return b.String()
}

// truncate shortens s to at most limit bytes, backing up to the nearest
// rune boundary so multibyte text is never cut mid-rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
