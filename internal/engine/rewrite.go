package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/helpdesk-ai/support-engine/internal/llm"
	"github.com/helpdesk-ai/support-engine/pkg/metrics"
)

// runRewrite turns the raw utterance into a standalone question. The
// rewritten form is generated once and reused across all retrieval tiers.
// A rewrite failure aborts the search path: a pronoun-laden query would
// corrupt every tier equally, so the turn falls through to escalation.
func (e *Engine) runRewrite(ctx context.Context, p *pass) (node, error) {
	prompt := fmt.Sprintf(
		"Rewrite the following user message as a complete, self-contained question, "+
			"resolving pronouns and references from the conversation history. "+
			"Reply with the question only, in the user's language.\n\n"+
			"History:\n%s\nMessage: %s\nQuestion:",
		formatHistory(p.history, maxHistoryTurns), p.userText,
	)

	start := time.Now()
	resp, err := e.llm.Complete(ctx, &llm.CompletionRequest{
		Model:       e.opts.GenerationModel,
		Messages:    []llm.ChatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
	})
	if err != nil {
		metrics.RecordLLMCall("rewrite", e.opts.GenerationModel, "error", time.Since(start).Seconds(), 0, 0)
		if e.backendsDown(ctx) {
			return nodeDone, fmt.Errorf("%w: %v", ErrBackendsUnavailable, err)
		}
		e.logger.Error("query rewrite failed, aborting search path",
			zap.String("conversation_id", p.conversationID),
			zap.Error(err),
		)
		return nodeEscalate, nil
	}
	metrics.RecordLLMCall("rewrite", resp.Model, "success", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)

	p.rewritten = strings.TrimSpace(resp.Content)
	if p.rewritten == "" {
		p.rewritten = p.userText
	}

	return nodeRetrieve, nil
}
