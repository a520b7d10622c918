package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/helpdesk-ai/support-engine/internal/model"
	"github.com/helpdesk-ai/support-engine/pkg/metrics"
)

// tier is one cascade attempt: a name for observability plus its filter.
type tier struct {
	name   string
	filter model.FilterExpr
}

// buildTiers constructs the cascade for a topic/subtopic/tags triple:
//
//	1. topic AND subtopic (subtopic omitted when "general")
//	2. topic AND any-of-tags, only when tags are present
//	3. topic only
//
// When the subtopic is "general", tier 1 already degenerates to topic-only
// and the final tier would repeat it, so it is folded away.
func buildTiers(topic, subtopic string, tags []string) []tier {
	topicOnly := model.TopicIs(topic)

	if model.IsGeneralSubtopic(subtopic) {
		tiers := []tier{{name: "1", filter: topicOnly}}
		if len(tags) > 0 {
			tiers = append(tiers, tier{name: "2", filter: model.And{topicOnly, model.TagAny(tags)}})
		}
		return tiers
	}

	tiers := []tier{
		{name: "1", filter: model.And{topicOnly, model.SubtopicIs(subtopic)}},
	}
	if len(tags) > 0 {
		tiers = append(tiers, tier{name: "2", filter: model.And{topicOnly, model.TagAny(tags)}})
	}
	tiers = append(tiers, tier{name: "3", filter: topicOnly})
	return tiers
}

// runRetrieve executes the cascade: sequential attempts with progressively
// looser filters, stopping at the first tier with at least one passage below
// the relevance threshold. An exhausted cascade returns empty, a first-class
// outcome that drives escalation downstream. A failing tier counts as empty
// and the cascade continues.
func (e *Engine) runRetrieve(ctx context.Context, p *pass) (node, error) {
	tiers := buildTiers(p.interp.Topic, p.interp.Subtopic, p.interp.Tags)

	for _, t := range tiers {
		candidates, err := e.searcher.Search(ctx, p.rewritten, t.filter, e.opts.TopK)
		if err != nil {
			metrics.RetrievalAttempts.WithLabelValues(t.name, "error").Inc()
			e.logger.Warn("retrieval tier failed, continuing cascade",
				zap.String("conversation_id", p.conversationID),
				zap.String("tier", t.name),
				zap.Error(err),
			)
			continue
		}

		kept := thresholdFilter(candidates, e.opts.RelevanceThreshold)
		if len(kept) > 0 {
			metrics.RetrievalAttempts.WithLabelValues(t.name, "hit").Inc()
			e.logger.Debug("retrieval hit",
				zap.String("conversation_id", p.conversationID),
				zap.String("tier", t.name),
				zap.Int("passages", len(kept)),
			)
			p.passages = kept
			return nodePostRoute, nil
		}
		metrics.RetrievalAttempts.WithLabelValues(t.name, "miss").Inc()
	}

	p.passages = nil
	return nodePostRoute, nil
}

// thresholdFilter keeps passages whose distance score is strictly below the
// threshold, preserving the backend's ordering.
func thresholdFilter(candidates []model.Passage, threshold float64) []model.Passage {
	var kept []model.Passage
	for _, c := range candidates {
		if c.Score < threshold {
			kept = append(kept, c)
		}
	}
	return kept
}

// runPostRoute is the binary post-retrieval decision: passages found means
// synthesis, none means escalation. No retries beyond the cascade.
func (e *Engine) runPostRoute(p *pass) (node, error) {
	if len(p.passages) > 0 {
		return nodeRespond, nil
	}
	return nodeEscalate, nil
}
