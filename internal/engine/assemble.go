package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/helpdesk-ai/support-engine/internal/model"
)

// runAssemble loads the conversation history and the taxonomy snapshot.
// Read-only: an unknown conversation yields an empty history (fresh start),
// and an empty corpus yields the static default taxonomy so classification
// never runs on an empty vocabulary.
func (e *Engine) runAssemble(ctx context.Context, p *pass) (node, error) {
	turns, err := e.history.Turns(ctx, p.conversationID)
	if err != nil {
		e.logger.Warn("history read failed, treating as fresh start",
			zap.String("conversation_id", p.conversationID),
			zap.Error(err),
		)
		turns = nil
	}
	p.history = turns

	snapshot, err := e.taxonomy.Snapshot(ctx)
	if err != nil {
		e.logger.Warn("taxonomy read failed, using default topics", zap.Error(err))
		snapshot = model.DefaultTaxonomy()
	}
	if snapshot.IsEmpty() {
		snapshot = model.DefaultTaxonomy()
	}
	p.taxonomy = snapshot

	return nodeInterpret, nil
}
