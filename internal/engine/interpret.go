package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/helpdesk-ai/support-engine/internal/llm"
	"github.com/helpdesk-ai/support-engine/internal/model"
	"github.com/helpdesk-ai/support-engine/pkg/metrics"
)

// interpretation is the structured reading of the latest user turn.
type interpretation struct {
	Topic      string
	Subtopic   string
	Route      model.Route
	Confidence model.Confidence
	Tags       []string
}

// interpretPayload is the JSON shape requested from the classifier.
type interpretPayload struct {
	Topic      string   `json:"topic"`
	Subtopic   string   `json:"subtopic"`
	Route      string   `json:"route"`
	Confidence string   `json:"confidence"`
	Tags       []string `json:"tags"`
}

const maxHistoryTurns = 10

// runInterpret classifies the latest utterance into topic, subtopic, route
// and confidence. With a locked topic it short-circuits without calling the
// classification service: once a search was committed, the topic is not
// re-litigated mid-cascade.
func (e *Engine) runInterpret(ctx context.Context, p *pass) (node, error) {
	if p.prior.TopicLocked {
		p.interp = interpretation{
			Topic:      p.prior.CurrentTopic,
			Subtopic:   p.prior.CurrentSubtopic,
			Route:      model.RouteSearch,
			Confidence: model.ConfidenceHigh,
		}
		return nodeRoute, nil
	}

	prompt := buildInterpretPrompt(p.userText, p.history, p.taxonomy)

	start := time.Now()
	resp, err := e.llm.Complete(ctx, &llm.CompletionRequest{
		Model:       e.opts.ClassifierModel,
		Messages:    []llm.ChatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
		JSONOnly:    true,
	})
	if err == nil {
		metrics.RecordLLMCall("interpret", resp.Model, "success", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)
		interp, perr := parseInterpretation(resp.Content)
		if perr == nil {
			p.interp = interp
			return nodeRoute, nil
		}
		err = perr
	} else {
		metrics.RecordLLMCall("interpret", e.opts.ClassifierModel, "error", time.Since(start).Seconds(), 0, 0)
	}

	// Classification failures are an escalation signal, not a retryable
	// fault. The only hard error is a total outage of both backends.
	if e.backendsDown(ctx) {
		return nodeDone, fmt.Errorf("%w: %v", ErrBackendsUnavailable, err)
	}

	e.logger.Warn("interpretation failed, degrading to escalation",
		zap.String("conversation_id", p.conversationID),
		zap.Error(err),
	)

	topic := p.prior.CurrentTopic
	if topic == "" {
		topic = "General"
	}
	p.interp = interpretation{
		Topic:      topic,
		Subtopic:   model.SubtopicGeneral,
		Route:      model.RouteEscalateHuman,
		Confidence: model.ConfidenceLow,
	}
	// Bypass the routing policy: a turn the system could not even classify
	// goes to a human, never into another clarification loop.
	return nodeEscalate, nil
}

// buildInterpretPrompt encodes the taxonomy and the ordered decision rules
// into a single classification request.
func buildInterpretPrompt(userText string, history []model.Turn, taxonomy model.TaxonomySnapshot) string {
	var b strings.Builder

	b.WriteString("You are the query classifier of a support helpdesk. ")
	b.WriteString("Classify the latest user message against the taxonomy below and decide the resolution route.\n\n")

	b.WriteString("Available topics:\n")
	b.WriteString(strings.Join(taxonomy.Topics, ", "))
	b.WriteString("\n\n")

	if len(taxonomy.Subtopics) > 0 {
		b.WriteString("Known subtopics (specific systems or entities, weak hints only):\n")
		b.WriteString(strings.Join(taxonomy.Subtopics, ", "))
		b.WriteString("\n\n")
	}
	if len(taxonomy.Tags) > 0 {
		b.WriteString("Known tags (weak hints only):\n")
		b.WriteString(strings.Join(taxonomy.Tags, ", "))
		b.WriteString("\n\n")
	}

	b.WriteString("Decision rules, in strict priority order:\n")
	b.WriteString("1. If the previous system turn asked the user to name a specific system or entity and the new message names a known entity, route MUST be \"search\" with confidence \"high\".\n")
	b.WriteString("2. If the message describes a physical or actionable failure (broken device, something that must be fixed on site), route MUST be \"escalate-human\".\n")
	b.WriteString("3. If the message is vague and names no specific entity, route MUST be \"clarify\".\n")
	b.WriteString("4. If the message is clearly outside the helpdesk's domain, route MUST be \"escalate-out-of-domain\".\n")
	b.WriteString("5. Otherwise, if it reads as an answerable informational question naming a clear entity, route is \"search\".\n\n")

	b.WriteString("Use \"general\" as subtopic when no specific entity is identified. ")
	b.WriteString("Confidence is one of \"high\", \"medium\", \"low\"; use \"high\" only when the message is explicit.\n\n")

	if len(history) > 0 {
		b.WriteString("Conversation history:\n")
		b.WriteString(formatHistory(history, maxHistoryTurns))
		b.WriteString("\n")
	}

	b.WriteString("Latest user message:\n")
	b.WriteString(userText)
	b.WriteString("\n\n")

	b.WriteString("Respond with a single JSON object: ")
	b.WriteString(`{"topic": "...", "subtopic": "...", "route": "search|clarify|escalate-human|escalate-out-of-domain", "confidence": "high|medium|low", "tags": ["..."]}`)

	return b.String()
}

// parseInterpretation decodes the classifier's JSON reply. Malformed JSON is
// a classification failure handled by the caller.
func parseInterpretation(raw string) (interpretation, error) {
	cleaned := stripCodeFence(raw)

	var payload interpretPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return interpretation{}, fmt.Errorf("malformed classifier reply: %w", err)
	}
	if payload.Topic == "" {
		return interpretation{}, fmt.Errorf("classifier reply missing topic")
	}

	interp := interpretation{
		Topic: payload.Topic,
		Tags:  payload.Tags,
	}

	interp.Subtopic = payload.Subtopic
	if model.IsGeneralSubtopic(interp.Subtopic) {
		interp.Subtopic = model.SubtopicGeneral
	}

	switch model.Route(strings.ToLower(payload.Route)) {
	case model.RouteSearch:
		interp.Route = model.RouteSearch
	case model.RouteClarify:
		interp.Route = model.RouteClarify
	case model.RouteEscalateOutOfDomain:
		interp.Route = model.RouteEscalateOutOfDomain
	case model.RouteEscalateHuman:
		interp.Route = model.RouteEscalateHuman
	default:
		return interpretation{}, fmt.Errorf("classifier reply has unknown route %q", payload.Route)
	}

	switch model.Confidence(strings.ToLower(payload.Confidence)) {
	case model.ConfidenceHigh:
		interp.Confidence = model.ConfidenceHigh
	case model.ConfidenceMedium:
		interp.Confidence = model.ConfidenceMedium
	case model.ConfidenceLow, "":
		interp.Confidence = model.ConfidenceLow
	default:
		interp.Confidence = model.ConfidenceLow
	}

	return interp, nil
}

// stripCodeFence removes a surrounding markdown code fence, which some
// providers add around JSON replies.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// formatHistory renders the last n turns as speaker-prefixed lines.
func formatHistory(turns []model.Turn, n int) string {
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(string(t.Speaker))
		b.WriteString(": ")
		b.WriteString(t.Text)
		b.WriteString("\n")
	}
	return b.String()
}
