package model

// TaxonomySnapshot is the topic/subtopic/tag vocabulary derived from the
// processed corpus. Read-only for the duration of one invocation.
type TaxonomySnapshot struct {
	Topics    []string `json:"topics"`
	Subtopics []string `json:"subtopics"`
	Tags      []string `json:"tags"`
}

// IsEmpty reports whether the snapshot carries no usable topic vocabulary.
func (t TaxonomySnapshot) IsEmpty() bool {
	return len(t.Topics) == 0
}

// DefaultTaxonomy is the static fallback used when the corpus has no
// completed documents, so classification never runs on an empty vocabulary.
func DefaultTaxonomy() TaxonomySnapshot {
	return TaxonomySnapshot{
		Topics:    []string{"Software", "Hardware", "Abuso del sistema", "General"},
		Subtopics: []string{SubtopicGeneral},
	}
}
