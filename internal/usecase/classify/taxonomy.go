package classify

import "strings"

// TaxonomyEntry maps one label to the keywords that imply it.
type TaxonomyEntry struct {
	Label    string
	Keywords []string
}

// Taxonomy is a static keyword table used to infer a label from a raw,
// free-form source tag. Entries are tested in order; the first entry with
// a matching keyword wins.
type Taxonomy struct {
	Entries  []TaxonomyEntry
	Fallback string
}

// Classification is the result of a label inference.
type Classification struct {
	Label string

	// Matched is false when no keyword matched and the fallback was used.
	Matched bool
}

// DefaultTaxonomy returns the built-in label inference table.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		Entries: []TaxonomyEntry{
			{Label: "tech/ai", Keywords: []string{"ai", "ml", "machine-learning", "llm", "model"}},
			{Label: "tech/dev", Keywords: []string{"dev", "programming", "software", "engineering", "code"}},
			{Label: "business", Keywords: []string{"business", "startup", "finance", "market"}},
			{Label: "science", Keywords: []string{"science", "research", "paper", "study"}},
		},
		Fallback: "general",
	}
}

// Classify infers a label for a raw source tag. It is a pure function:
// the same input and taxonomy always yield the same classification.
func Classify(rawLabel string, taxonomy Taxonomy) Classification {
	raw := strings.ToLower(strings.TrimSpace(rawLabel))
	if raw != "" {
		for _, entry := range taxonomy.Entries {
			for _, keyword := range entry.Keywords {
				if strings.Contains(raw, keyword) {
					return Classification{Label: entry.Label, Matched: true}
				}
			}
		}
	}
	return Classification{Label: taxonomy.Fallback}
}
