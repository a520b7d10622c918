package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/helpdesk-ai/support-engine/internal/llm"
	"github.com/helpdesk-ai/support-engine/internal/model"
	"github.com/helpdesk-ai/support-engine/pkg/metrics"
)

// runRespond composes the final reply strictly from the retrieved passages.
// A generation failure is absorbed like any other model-backed failure and
// falls through to escalation. On success the topic is locked: the search was
// committed and must not be re-litigated on the next turn.
func (e *Engine) runRespond(ctx context.Context, p *pass) (node, error) {
	prompt := buildSynthesisPrompt(p.rewritten, p.passages)

	start := time.Now()
	resp, err := e.llm.Complete(ctx, &llm.CompletionRequest{
		Model:       e.opts.GenerationModel,
		Messages:    []llm.ChatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.2,
	})
	if err != nil {
		metrics.RecordLLMCall("synthesize", e.opts.GenerationModel, "error", time.Since(start).Seconds(), 0, 0)
		e.logger.Error("response synthesis failed, escalating",
			zap.String("conversation_id", p.conversationID),
			zap.Error(err),
		)
		return nodeEscalate, nil
	}
	metrics.RecordLLMCall("synthesize", resp.Model, "success", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return nodeEscalate, nil
	}

	p.result = &Result{
		Reply:    reply,
		Decision: model.DecisionSearch,
		State:    p.nextState(true),
	}
	return nodeDone, nil
}

func buildSynthesisPrompt(question string, passages []model.Passage) string {
	var ctxText strings.Builder
	for i, passage := range passages {
		fmt.Fprintf(&ctxText, "[%d] (%s)\n%s\n\n", i+1, passage.Metadata.Source, passage.Text)
	}

	return fmt.Sprintf(
		"You are an expert support assistant. Answer the user's question based STRICTLY "+
			"on the context below. Synthesize the information in your own words instead of "+
			"quoting, and say so explicitly if the context only covers the question partially. "+
			"Answer in the user's language.\n\n"+
			"Question: %s\n\nContext:\n---\n%s---\n\nAnswer:",
		question, ctxText.String(),
	)
}
