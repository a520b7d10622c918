package model

import (
	"strings"
)

// PassageMetadata is the classification metadata attached to a corpus chunk.
type PassageMetadata struct {
	Topic    string   `json:"topic"`
	Subtopic string   `json:"subtopic"`
	Tags     []string `json:"tags"`
	Source   string   `json:"source"`
}

// Passage is a scored corpus chunk returned by the retrieval backend.
// Score is a similarity distance: lower means more similar.
type Passage struct {
	Text     string          `json:"text"`
	Score    float64         `json:"score"`
	Metadata PassageMetadata `json:"metadata"`
}

// FilterExpr is a retrieval filter predicate. Backends translate it to their
// native query form; Match gives the reference in-memory semantics.
type FilterExpr interface {
	Match(meta PassageMetadata) bool
}

// TopicIs matches passages classified under the given topic.
type TopicIs string

func (f TopicIs) Match(meta PassageMetadata) bool {
	return strings.EqualFold(meta.Topic, string(f))
}

// SubtopicIs matches passages classified under the given subtopic.
type SubtopicIs string

func (f SubtopicIs) Match(meta PassageMetadata) bool {
	return strings.EqualFold(meta.Subtopic, string(f))
}

// TagAny matches passages carrying at least one of the given tags.
type TagAny []string

func (f TagAny) Match(meta PassageMetadata) bool {
	for _, want := range f {
		for _, have := range meta.Tags {
			if strings.EqualFold(have, want) {
				return true
			}
		}
	}
	return false
}

// And matches passages satisfying every sub-expression.
type And []FilterExpr

func (f And) Match(meta PassageMetadata) bool {
	for _, expr := range f {
		if !expr.Match(meta) {
			return false
		}
	}
	return true
}
